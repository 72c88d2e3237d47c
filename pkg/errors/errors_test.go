package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindsMapToStatus(t *testing.T) {
	cases := []struct {
		err    *Error
		kind   Kind
		status int
	}{
		{Validation("bad %s", "input"), KindValidation, http.StatusBadRequest},
		{NotFound("alert %s", "a1"), KindNotFound, http.StatusNotFound},
		{Forbidden("no"), KindForbidden, http.StatusForbidden},
		{Conflict("transition"), KindConflict, http.StatusConflict},
		{Delivery("offline"), KindDelivery, http.StatusBadGateway},
		{New("boom"), KindInternal, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.kind, KindOf(tc.err))
		assert.Equal(t, tc.status, HTTPStatus(tc.err))
		assert.True(t, IsKind(tc.err, tc.kind))
	}
}

func TestKindSurvivesWrapping(t *testing.T) {
	base := NotFound("alert missing")
	wrapped := fmt.Errorf("reinforce: %w", base)

	assert.True(t, IsKind(wrapped, KindNotFound))
	assert.Equal(t, KindNotFound, Wrap(wrapped, "outer").Kind)
	assert.Equal(t, "alert missing", GetMessage(wrapped))
}

func TestPlainErrorsAreInternal(t *testing.T) {
	assert.Equal(t, KindInternal, KindOf(fmt.Errorf("plain")))
	assert.False(t, IsKind(nil, KindInternal))
	assert.Nil(t, Wrap(nil, "nothing"))
}

func TestWithContextCopies(t *testing.T) {
	e := Conflict("bad transition")
	withCtx := e.WithContext("alert_id", "a1")

	assert.Empty(t, e.Context)
	assert.Equal(t, []KeyValue{{Key: "alert_id", Value: "a1"}}, withCtx.Context)
	assert.Equal(t, KindConflict, withCtx.Kind)
}
