package handler_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"certflow/internal/handler"
	"certflow/internal/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var (
	testOrgID  = uuid.MustParse("11111111-1111-1111-1111-111111111111")
	testUserID = uuid.MustParse("22222222-2222-2222-2222-222222222222")
)

// authedContext builds a test context carrying the caller identity the auth
// middleware would have set.
func authedContext(method, path string, body interface{}, params ...gin.Param) (*gin.Context, *httptest.ResponseRecorder) {
	var reader *bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(method, path, reader)
	if body != nil {
		c.Request.Header.Set("Content-Type", "application/json")
	}
	c.Set(middleware.ContextKeyOrgID, testOrgID)
	c.Set(middleware.ContextKeyUserID, testUserID)
	c.Params = params
	return c, w
}

func idParam(id uuid.UUID) gin.Param {
	return gin.Param{Key: "id", Value: id.String()}
}

func decode(t *testing.T, w *httptest.ResponseRecorder) handler.APIResponse {
	t.Helper()
	var resp handler.APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}
