package common_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-quote/internal/common"
)

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:5555"
	require.Equal(t, "192.0.2.1", common.ClientIP(req))

	req.Header.Set("X-Real-IP", "198.51.100.2")
	require.Equal(t, "198.51.100.2", common.ClientIP(req))

	req.Header.Set("X-Forwarded-For", " 203.0.113.9 , 10.0.0.1")
	require.Equal(t, "203.0.113.9", common.ClientIP(req))

	require.Equal(t, "", common.ClientIP(nil))
}

func TestBearerToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	require.Equal(t, "", common.BearerToken(req))

	req.Header.Set("Authorization", "Basic Zm9vOmJhcg==")
	require.Equal(t, "", common.BearerToken(req))

	req.Header.Set("Authorization", "bearer  s3cret ")
	require.Equal(t, "s3cret", common.BearerToken(req))
}

func TestWriteErrorHidesUnknownErrors(t *testing.T) {
	rr := httptest.NewRecorder()
	common.WriteError(rr, http.ErrAbortHandler)
	require.Equal(t, http.StatusInternalServerError, rr.Code)
	require.JSONEq(t, `{"error":{"code":"INTERNAL","message":"internal error"}}`, rr.Body.String())

	rr = httptest.NewRecorder()
	common.WriteError(rr, common.BadRequest("INVALID_MODE", "bad mode").WithDetails(map[string]any{"mode": "x"}))
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.JSONEq(t, `{"error":{"code":"INVALID_MODE","message":"bad mode","details":{"mode":"x"}}}`, rr.Body.String())
}
