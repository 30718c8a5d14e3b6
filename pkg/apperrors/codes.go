package apperrors

// Code classifies an application error. Codes are stable machine-readable
// strings returned to clients alongside the human-readable message.
type Code string

const (
	CodeValidation      Code = "VALIDATION_ERROR"
	CodeUnauthorized    Code = "UNAUTHORIZED"
	CodeForbidden       Code = "FORBIDDEN"
	CodeConflict        Code = "CONFLICT"
	CodeNotFound        Code = "NOT_FOUND"
	CodeExpired         Code = "EXPIRED"
	CodeAlreadyConsumed Code = "ALREADY_CONSUMED"
	CodeInternal        Code = "INTERNAL"
)

// HTTPStatus maps an error code to the HTTP status handlers respond with.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeValidation:
		return 400
	case CodeUnauthorized, CodeExpired, CodeAlreadyConsumed:
		return 401
	case CodeForbidden:
		return 403
	case CodeNotFound:
		return 404
	case CodeConflict:
		return 409
	default:
		return 500
	}
}
