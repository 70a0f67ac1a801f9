package errs

import (
	"errors"
	"net/http"
)

const (
	ServerInternalError = 500

	ArgsError         = 1001
	DuplicateKeyError = 1003

	TokenInvalidError = 1501
	TokenExpiredError = 1502

	NotParticipantError = 1601
	RecordNotFoundError = 1602

	PersistenceError = 1701
)

var (
	ErrInternalServer = NewCodeError(ServerInternalError, "server internal error")
	ErrArgs           = NewCodeError(ArgsError, "args invalid")
	ErrDuplicateKey   = NewCodeError(DuplicateKeyError, "duplicate key")

	ErrTokenInvalid = NewCodeError(TokenInvalidError, "token invalid")
	ErrTokenExpired = NewCodeError(TokenExpiredError, "token expired")

	ErrNotParticipant = NewCodeError(NotParticipantError, "not a participant of this chat")
	ErrRecordNotFound = NewCodeError(RecordNotFoundError, "record not found")

	ErrPersistence = NewCodeError(PersistenceError, "persistence failure")
)

// Parse normalizes any error into a CodeError for response rendering.
func Parse(err error) *CodeError {
	var ce *CodeError
	if errors.As(err, &ce) {
		return ce
	}
	return ErrInternalServer.WithDetail(err.Error())
}

// HTTPStatus maps a CodeError code to the transport status.
func HTTPStatus(err error) int {
	switch Parse(err).Code {
	case ArgsError:
		return http.StatusBadRequest
	case TokenInvalidError, TokenExpiredError:
		return http.StatusUnauthorized
	case NotParticipantError:
		return http.StatusForbidden
	case RecordNotFoundError:
		return http.StatusNotFound
	case DuplicateKeyError:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
