package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/medscan/scangate/internal/pkg/apperrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func detailOf(t *testing.T, body []byte) string {
	t.Helper()
	var out map[string]string
	require.NoError(t, json.Unmarshal(body, &out))
	return out["detail"]
}

func TestErrorHandlerRendersDetail(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(ErrorHandler())
	r.GET("/boom", func(c *gin.Context) {
		c.Error(apperrors.NewNotFound("记录不存在"))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "记录不存在", detailOf(t, w.Body.Bytes()))
}

func TestErrorHandlerWrapsUnknownErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(ErrorHandler())
	r.GET("/boom", func(c *gin.Context) {
		c.Error(errors.New("pq: connection reset"))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestErrorHandlerStatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{apperrors.NewValidation("x"), http.StatusBadRequest},
		{apperrors.NewInvalidState("x"), http.StatusBadRequest},
		{apperrors.NewUnauthenticated("x"), http.StatusUnauthorized},
		{apperrors.NewForbidden("x"), http.StatusForbidden},
		{apperrors.New(apperrors.ErrUpstream, "x", nil), http.StatusBadGateway},
	}
	for _, tc := range cases {
		gin.SetMode(gin.TestMode)
		r := gin.New()
		r.Use(ErrorHandler())
		r.GET("/boom", func(c *gin.Context) { c.Error(tc.err) })

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
		assert.Equal(t, tc.want, w.Code)
	}
}

func TestRequestIDGeneratedAndEchoed(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.NotEmpty(t, w.Header().Get(HeaderRequestID))

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(HeaderRequestID, "req-123")
	r.ServeHTTP(w, req)
	assert.Equal(t, "req-123", w.Header().Get(HeaderRequestID))
}
