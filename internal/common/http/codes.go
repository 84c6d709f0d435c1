package http

const (
	CodeUnknown              = "UNKNOWN"
	CodeMethodNotAllowed     = "METHOD_NOT_ALLOWED"
	CodeNotFound             = "NOT_FOUND"
	CodeMissingAuthorization = "MISSING_AUTHORIZATION"
	CodeInvalidToken         = "INVALID_TOKEN"
	CodeRateLimited          = "RATE_LIMITED"
	CodeUnhealthy            = "UNHEALTHY"
)
