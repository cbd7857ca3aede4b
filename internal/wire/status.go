package wire

// Status classifies the outcome of a remote call for the error handler.
type Status string

const (
	StatusOK               Status = "ok"
	StatusNotModified      Status = "not_modified"
	StatusClientError      Status = "client_error"
	StatusAuthExpired      Status = "auth_expired"
	StatusForbidden        Status = "forbidden"
	StatusRateLimited      Status = "rate_limited"
	StatusServerError      Status = "server_error"
	StatusTransportFailure Status = "transport_failure"
)

// ClassifyHTTP maps an HTTP response code to a Status. Transport failures
// never reach this function; callers use StatusTransportFailure directly.
func ClassifyHTTP(code int) Status {
	switch {
	case code == 304:
		return StatusNotModified
	case code >= 200 && code < 300:
		return StatusOK
	case code == 401:
		return StatusAuthExpired
	case code == 403:
		return StatusForbidden
	case code == 429:
		return StatusRateLimited
	case code >= 500:
		return StatusServerError
	default:
		return StatusClientError
	}
}

// Success reports whether the call completed without an error condition.
// 304 counts as success: the remote served a cached answer.
func (s Status) Success() bool {
	return s == StatusOK || s == StatusNotModified
}
