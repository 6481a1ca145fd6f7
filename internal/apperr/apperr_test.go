package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindStatus(t *testing.T) {
	cases := map[Kind]int{
		Internal:        http.StatusInternalServerError,
		Unauthenticated: http.StatusUnauthorized,
		Forbidden:       http.StatusForbidden,
		InvalidArgument: http.StatusBadRequest,
		Conflict:        http.StatusConflict,
		NotFound:        http.StatusNotFound,
		TooManyRequests: http.StatusTooManyRequests,
	}
	for k, want := range cases {
		assert.Equal(t, want, k.HTTPStatus(), k.String())
	}
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("db down")
	err := fmt.Errorf("load: %w", Wrap(Internal, "could not load", cause))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, Internal, KindOf(err))
	assert.Equal(t, Internal, KindOf(errors.New("plain")))
}

func TestIsMatchesKindAndReason(t *testing.T) {
	err := Unauthorized(ReasonExpired, "token expired")
	assert.True(t, Is(err, Unauthenticated))
	assert.True(t, errors.Is(err, New(Unauthenticated, "")))
	assert.True(t, errors.Is(err, New(Unauthenticated, "").WithReason(ReasonExpired)))
	assert.False(t, errors.Is(err, New(Unauthenticated, "").WithReason(ReasonStale)))
	assert.False(t, errors.Is(err, New(Forbidden, "")))
	assert.Equal(t, ReasonExpired, ReasonOf(err))
}
