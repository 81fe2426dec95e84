package error

// GenericError is implemented by all typed application errors so the
// REST layer can map them to a status code and machine-readable code.
type GenericError interface {
	Error() string
	ErrCode() string
	StatusCode() int
}
