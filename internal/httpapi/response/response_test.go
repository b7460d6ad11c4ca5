package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRespondErrorIncludesTraceID(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Set("trace_id", "trace-123")

	RespondError(c, http.StatusBadRequest, "bad_input", errors.New("missing field"))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var env ErrorEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.Equal(t, "missing field", env.Error.Message)
	assert.Equal(t, "bad_input", env.Error.Code)
	assert.Equal(t, "trace-123", env.TraceID)
}

func TestRespondOKAndCreated(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	RespondOK(c, gin.H{"status": "ok"})
	assert.Equal(t, http.StatusOK, w.Code)

	w2 := httptest.NewRecorder()
	c2, _ := gin.CreateTestContext(w2)
	RespondCreated(c2, gin.H{"id": 1})
	assert.Equal(t, http.StatusCreated, w2.Code)
}
