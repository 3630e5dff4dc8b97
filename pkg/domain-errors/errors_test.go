package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapAndInspect(t *testing.T) {
	t.Run("wrap nil is nil", func(t *testing.T) {
		assert.NoError(t, Wrap(nil, CodeInternal, "noop"))
	})

	t.Run("HasCode walks nested domain errors", func(t *testing.T) {
		inner := New(CodeNotFound, "attribute not found")
		outer := Wrap(inner, CodeInvalidTransition, "update failed")

		assert.True(t, HasCode(outer, CodeInvalidTransition))
		assert.True(t, HasCode(outer, CodeNotFound))
		assert.False(t, HasCode(outer, CodeUnauthorized))
	})

	t.Run("Is only inspects the outermost code", func(t *testing.T) {
		inner := New(CodeNotFound, "attribute not found")
		outer := Wrap(inner, CodeInvalidTransition, "update failed")

		assert.True(t, Is(outer, CodeInvalidTransition))
		assert.False(t, Is(outer, CodeNotFound))
	})

	t.Run("survives fmt wrapping", func(t *testing.T) {
		err := fmt.Errorf("handler: %w", New(CodeRateLimited, "blocklock active"))
		assert.True(t, HasCode(err, CodeRateLimited))
		assert.Equal(t, CodeRateLimited, CodeOf(err))
	})

	t.Run("plain errors default to internal", func(t *testing.T) {
		assert.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
	})

	t.Run("message includes cause", func(t *testing.T) {
		err := Wrap(errors.New("connection reset"), CodeInternal, "load identity")
		require.Error(t, err)
		assert.Equal(t, "load identity: connection reset", err.Error())
	})
}

func TestHTTPStatus(t *testing.T) {
	cases := map[Code]int{
		CodeUnauthenticated:   http.StatusUnauthorized,
		CodeUnauthorized:      http.StatusForbidden,
		CodeNotFound:          http.StatusNotFound,
		CodeAlreadyExists:     http.StatusConflict,
		CodeInvalidTransition: http.StatusConflict,
		CodeRateLimited:       http.StatusTooManyRequests,
		CodeDisposed:          http.StatusGone,
		CodeNotApproved:       http.StatusUnprocessableEntity,
		CodeBadRequest:        http.StatusBadRequest,
		CodeInternal:          http.StatusInternalServerError,
	}
	for code, want := range cases {
		assert.Equal(t, want, HTTPStatus(code), "code %s", code)
	}
}
