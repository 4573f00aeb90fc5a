package common_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-quote/internal/common"
)

func newIdem(t *testing.T) (common.Idem, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return common.Idem{R: client, Prefix: "test:", TTL: time.Minute, Logger: zerolog.Nop()}, mr
}

func TestIdemReplaysStoredResponse(t *testing.T) {
	idem, _ := newIdem(t)
	var calls int32
	handler := idem.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		common.Data(w, http.StatusOK, map[string]any{"call": n})
	}))

	do := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/quotes", strings.NewReader(`{}`))
		req.Header.Set("Idempotency-Key", "abc")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr
	}

	first := do()
	second := do()

	require.Equal(t, int32(1), atomic.LoadInt32(&calls))
	require.Equal(t, http.StatusOK, second.Code)
	require.Equal(t, first.Body.String(), second.Body.String())
	require.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
	require.Equal(t, "application/json", second.Header().Get("Content-Type"))
}

func TestIdemWithoutHeaderPassesThrough(t *testing.T) {
	idem, _ := newIdem(t)
	var calls int32
	handler := idem.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNoContent)
	}))
	for i := 0; i < 2; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", nil))
	}
	require.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestIdemInProgressConflict(t *testing.T) {
	idem, mr := newIdem(t)
	handler := idem.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run while a request is pending")
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/quotes", nil)
	req.Header.Set("Idempotency-Key", "busy")
	key := "test:idem:" + common.Sha256Hex(http.MethodPost, "/api/v1/quotes", "busy")
	require.NoError(t, mr.Set(key, "pending"))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusConflict, rr.Code)
	require.Contains(t, rr.Body.String(), "IDEMPOTENT_IN_PROGRESS")
}

func TestIdemForgetsServerErrors(t *testing.T) {
	idem, mr := newIdem(t)
	handler := idem.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, "boom")
	}))
	req := httptest.NewRequest(http.MethodPost, "/x", nil)
	req.Header.Set("Idempotency-Key", "k")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	require.Empty(t, mr.Keys())
}

func TestIdemReleasesKeyWhenHandlerPanics(t *testing.T) {
	idem, mr := newIdem(t)
	var calls int32
	handler := idem.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			panic("boom")
		}
		common.Data(w, http.StatusOK, map[string]any{"ok": true})
	}))

	newReq := func() *http.Request {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/quotes", strings.NewReader(`{}`))
		req.Header.Set("Idempotency-Key", "panicky")
		return req
	}

	require.PanicsWithValue(t, "boom", func() {
		handler.ServeHTTP(httptest.NewRecorder(), newReq())
	})
	require.Empty(t, mr.Keys())

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, newReq())
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, int32(2), atomic.LoadInt32(&calls))
}
