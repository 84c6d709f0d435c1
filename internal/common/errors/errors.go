package commonerrors

import "net/http"

// Start-up.
var (
	ErrMissingRequiredEnv = NewDomainError("MISSING_REQUIRED_ENV", CategoryValidation, http.StatusInternalServerError, "missing required environment variable")
	ErrInvalidJWTSecret   = NewDomainError("INVALID_JWT_SECRET", CategoryValidation, http.StatusInternalServerError, "JWT_SECRET must be at least 32 bytes")
	ErrInvalidConfig      = NewDomainError("INVALID_CONFIG", CategoryValidation, http.StatusInternalServerError, "invalid configuration")
)

// Connection authentication. The messages of ErrInvalidCredential and
// ErrAuthenticationRequired double as the rejection reason sent to clients.
var (
	ErrInvalidCredential         = NewDomainError("INVALID_CREDENTIAL", CategoryUnauthorized, http.StatusUnauthorized, "invalid_credential")
	ErrAuthenticationRequired    = NewDomainError("AUTHENTICATION_REQUIRED", CategoryUnauthorized, http.StatusUnauthorized, "authentication_required")
	ErrInvalidTokenSigningMethod = NewDomainError("INVALID_TOKEN_SIGNING_METHOD", CategoryUnauthorized, http.StatusUnauthorized, "invalid token signing method")
	ErrInvalidTokenClaims        = NewDomainError("INVALID_TOKEN_CLAIMS", CategoryUnauthorized, http.StatusUnauthorized, "invalid token claims")
	ErrMissingTokenClaims        = NewDomainError("MISSING_TOKEN_CLAIMS", CategoryUnauthorized, http.StatusUnauthorized, "missing required token claims")
	ErrMalformedToken            = NewDomainError("MALFORMED_TOKEN", CategoryValidation, http.StatusBadRequest, "token is malformed")
)

// User directory.
var (
	ErrUserNotFound  = NewDomainError("USER_NOT_FOUND", CategoryNotFound, http.StatusNotFound, "user not found")
	ErrUserGetFailed = NewDomainError("USER_GET_FAILED", CategoryInternal, http.StatusInternalServerError, "failed to get user")
	ErrCircuitOpen   = NewDomainError("CIRCUIT_OPEN", CategoryExternal, http.StatusServiceUnavailable, "circuit breaker is open")
)

// Group membership and delivery.
var (
	ErrRegistrationFailed = NewDomainError("REGISTRATION_FAILED", CategoryExternal, http.StatusServiceUnavailable, "failed to join group")
	ErrDeliveryFailed     = NewDomainError("DELIVERY_FAILED", CategoryExternal, http.StatusInternalServerError, "failed to deliver message")
	ErrMemberQueueFull    = NewDomainError("MEMBER_QUEUE_FULL", CategoryExternal, http.StatusServiceUnavailable, "member outbound queue is full")
	ErrTransportClosed    = NewDomainError("TRANSPORT_CLOSED", CategoryExternal, http.StatusServiceUnavailable, "transport closed")
)

var (
	ErrMarshalError  = NewDomainError("MARSHAL_ERROR", CategoryInternal, http.StatusInternalServerError, "failed to marshal data")
	ErrInternalError = NewDomainError("INTERNAL_ERROR", CategoryInternal, http.StatusInternalServerError, "internal server error")
)
