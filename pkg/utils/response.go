package utils

// ResponseData is the JSON envelope returned by every REST endpoint.
type ResponseData struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Results any    `json:"results,omitempty"`
}

// PanicIfNeeded aborts the handler on error; the Recovery middleware
// turns the panic into the proper error response.
func PanicIfNeeded(err any) {
	if err != nil {
		panic(err)
	}
}
