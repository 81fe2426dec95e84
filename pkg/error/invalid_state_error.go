package error

import "net/http"

// InvalidStateError is returned when a job lifecycle transition is
// requested from a state that does not permit it (e.g. retrying a
// pending job). The job is left unmodified.
type InvalidStateError string

func (err InvalidStateError) Error() string {
	return string(err)
}

func (err InvalidStateError) ErrCode() string {
	return "INVALID_STATE"
}

func (err InvalidStateError) StatusCode() int {
	return http.StatusConflict
}
