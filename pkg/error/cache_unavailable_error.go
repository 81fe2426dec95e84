package error

import "net/http"

// CacheUnavailableError marks a connectivity or timeout failure against
// the cache store. Read paths downgrade it to a miss; it should never
// surface to an API caller.
type CacheUnavailableError string

func (err CacheUnavailableError) Error() string {
	return string(err)
}

func (err CacheUnavailableError) ErrCode() string {
	return "CACHE_UNAVAILABLE"
}

func (err CacheUnavailableError) StatusCode() int {
	return http.StatusServiceUnavailable
}
