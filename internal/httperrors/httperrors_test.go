package httperrors

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestRespondBadRequest(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	RespondBadRequest(c, "missing parameter")

	assert.Equal(t, 400, w.Code)
	resp := decodeError(t, w)
	assert.Equal(t, "missing parameter", resp.Error)
	assert.Equal(t, CodeBadRequest, resp.Code)
}

func TestRespondBadRequest_DefaultMessage(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	RespondBadRequest(c, "")

	assert.Equal(t, 400, w.Code)
	resp := decodeError(t, w)
	assert.Equal(t, MsgBadRequest, resp.Error)
}

func TestRespondMalformedJSON_ClosesConnection(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	RespondMalformedJSON(c)

	assert.Equal(t, 400, w.Code)
	assert.Equal(t, "close", w.Header().Get("Connection"))
	resp := decodeError(t, w)
	assert.Equal(t, MsgMalformedJSON, resp.Error)
}

func TestRespondPayloadTooLarge_ClosesConnection(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	RespondPayloadTooLarge(c)

	assert.Equal(t, 413, w.Code)
	assert.Equal(t, "close", w.Header().Get("Connection"))
	resp := decodeError(t, w)
	assert.Equal(t, CodePayloadTooLarge, resp.Code)
}

func TestRespondForbidden(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	RespondForbidden(c)

	assert.Equal(t, 403, w.Code)
	resp := decodeError(t, w)
	assert.Equal(t, CodeForbidden, resp.Code)
}

func TestRespondInternalError(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	RespondInternalError(c)

	assert.Equal(t, 500, w.Code)
	resp := decodeError(t, w)
	assert.Equal(t, MsgInternalError, resp.Error)
	assert.Equal(t, CodeInternalError, resp.Code)
}

func TestRespondServiceUnavailable(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	RespondServiceUnavailable(c)

	assert.Equal(t, 503, w.Code)
	resp := decodeError(t, w)
	assert.Equal(t, CodeServiceUnavailable, resp.Code)
}

func TestRespondNotFound(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	RespondNotFound(c, "")

	assert.Equal(t, 404, w.Code)
	resp := decodeError(t, w)
	assert.Equal(t, MsgResourceNotFound, resp.Error)
}
