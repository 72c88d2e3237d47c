package response

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/THORISO2Nnoi/GBV-sub000/pkg/errors"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(h gin.HandlerFunc) (int, Body) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	h(c)
	var b Body
	_ = json.Unmarshal(w.Body.Bytes(), &b)
	return w.Code, b
}

func TestErrorUsesKind(t *testing.T) {
	code, body := run(func(c *gin.Context) { Error(c, errors.Conflict("cannot move from resolved")) })
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "cannot move from resolved", body.Msg)

	code, body = run(func(c *gin.Context) { Error(c, fmt.Errorf("wrapped: %w", errors.NotFound("alert a1"))) })
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, http.StatusNotFound, body.Code)
}

func TestInternalErrorsAreMasked(t *testing.T) {
	code, body := run(func(c *gin.Context) { Error(c, fmt.Errorf("dial tcp 10.0.0.3:5432: refused")) })
	require.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "Internal Server Error", body.Msg)
}

func TestSuccessEnvelope(t *testing.T) {
	code, body := run(func(c *gin.Context) { Created(c, "ok", gin.H{"id": "a1"}) })
	assert.Equal(t, http.StatusCreated, code)
	assert.Equal(t, map[string]interface{}{"id": "a1"}, body.Data)
}
