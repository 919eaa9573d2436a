package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/devforge-org/devforge-backend/internal/errordata"
	"github.com/devforge-org/devforge-backend/internal/services"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestPublicError(t *testing.T) {
	cases := []struct {
		err    error
		status int
		msg    string
	}{
		{fmt.Errorf("%w: title too long", services.ErrInvalidInput), http.StatusBadRequest, "invalid input: title too long"},
		{services.ErrUnauthorized, http.StatusUnauthorized, services.ErrUnauthorized.Error()},
		{services.ErrForbidden, http.StatusForbidden, services.ErrForbidden.Error()},
		{fmt.Errorf("conversation: %w", services.ErrNotFound), http.StatusNotFound, "conversation: " + services.ErrNotFound.Error()},
		{services.ErrConflict, http.StatusConflict, services.ErrConflict.Error()},
		{fmt.Errorf("%w: model offline", services.ErrUpstream), http.StatusBadGateway, services.ErrUpstream.Error() + ": model offline"},
		{errors.New("pq: connection refused"), http.StatusInternalServerError, "internal server error"},
	}
	for _, tc := range cases {
		status, msg := publicError(tc.err)
		assert.Equal(t, tc.status, status, tc.err.Error())
		assert.Equal(t, tc.msg, msg)
	}
}

func TestRespondError_RecordsCause(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	c.Request = req.WithContext(errordata.WithErrorData(req.Context()))

	respondError(c, errors.New("disk on fire"))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"internal server error"}`, w.Body.String())
	assert.Equal(t, "disk on fire", errordata.GetErrorData(c.Request.Context()).Message)
	assert.True(t, c.IsAborted())
}

func TestQueryIntAndPathID(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/?limit=5&page=x", nil)
	assert.Equal(t, 5, queryInt(c, "limit", 20))
	assert.Equal(t, 1, queryInt(c, "page", 1))
	assert.Equal(t, 7, queryInt(c, "missing", 7))

	c.Params = gin.Params{{Key: "id", Value: "nope"}}
	_, ok := pathID(c, "id")
	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSizeOrUnknown(t *testing.T) {
	assert.Equal(t, int64(-1), sizeOrUnknown(0))
	assert.Equal(t, int64(42), sizeOrUnknown(42))
}
