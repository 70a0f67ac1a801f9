package errs

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithDetailDoesNotMutateOriginal(t *testing.T) {
	e := ErrNotParticipant.WithDetail("user 9 not in chat 42")
	assert.Equal(t, "", ErrNotParticipant.Detail)
	assert.Equal(t, "user 9 not in chat 42", e.Detail)
	assert.Equal(t, ErrNotParticipant.Code, e.Code)
}

func TestErrorsIsMatchesByCode(t *testing.T) {
	wrapped := ErrPersistence.WrapMsg("create message", "chat", 42)
	assert.True(t, errors.Is(wrapped, ErrPersistence))
	assert.False(t, errors.Is(wrapped, ErrNotParticipant))
}

func TestParseForeignError(t *testing.T) {
	e := Parse(errors.New("boom"))
	assert.Equal(t, ServerInternalError, e.Code)
	assert.Contains(t, e.Detail, "boom")
}

func TestHTTPStatusMapping(t *testing.T) {
	assert.Equal(t, http.StatusUnauthorized, HTTPStatus(ErrTokenInvalid))
	assert.Equal(t, http.StatusForbidden, HTTPStatus(ErrNotParticipant))
	assert.Equal(t, http.StatusNotFound, HTTPStatus(ErrRecordNotFound))
	assert.Equal(t, http.StatusConflict, HTTPStatus(ErrDuplicateKey))
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(ErrArgs))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("x")))
}
