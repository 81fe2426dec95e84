package error

import "net/http"

// ConfigurationError signals a programmer error such as a missing
// tenant for a tenant-scoped data type. It is fatal to the calling
// operation and never retried.
type ConfigurationError string

func (err ConfigurationError) Error() string {
	return string(err)
}

func (err ConfigurationError) ErrCode() string {
	return "CONFIGURATION_ERROR"
}

func (err ConfigurationError) StatusCode() int {
	return http.StatusInternalServerError
}
