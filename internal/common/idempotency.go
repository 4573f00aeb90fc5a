package common

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	idemPending      = "pending"
	idemHeader       = "Idempotency-Key"
	idemReplayHeader = "Idempotent-Replayed"
	defaultIdemTTL   = 24 * time.Hour
)

// Idem provides an Idempotency-Key middleware backed by Redis. The first request under a
// key runs and its response is stored; retries with the same key, method and path get
// the stored response back. A retry racing the first request gets 409.
type Idem struct {
	R      redis.UniversalClient
	Prefix string
	TTL    time.Duration
	Logger zerolog.Logger
}

type storedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body"`
}

func (i Idem) key(r *http.Request, header string) string {
	return i.Prefix + "idem:" + Sha256Hex(r.Method, r.URL.Path, header)
}

func (i Idem) ttl() time.Duration {
	if i.TTL <= 0 {
		return defaultIdemTTL
	}
	return i.TTL
}

// Middleware enforces idempotency semantics for write endpoints.
func (i Idem) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get(idemHeader)
		if header == "" || i.R == nil {
			next.ServeHTTP(w, r)
			return
		}
		if len(header) > 255 {
			JSONError(w, http.StatusBadRequest, "BAD_IDEMPOTENCY_KEY", "idempotency key too long", nil)
			return
		}
		ctx := r.Context()
		key := i.key(r, header)
		ok, err := i.R.SetNX(ctx, key, idemPending, i.ttl()).Result()
		if err != nil {
			i.Logger.Warn().Err(err).Msg("idempotency store unavailable; serving without replay")
			next.ServeHTTP(w, r)
			return
		}
		if !ok {
			i.replay(ctx, w, key)
			return
		}

		store := context.WithoutCancel(ctx)
		defer func() {
			// a panicking handler must not leave the key pending for the whole TTL
			if p := recover(); p != nil {
				_ = i.R.Del(store, key).Err()
				panic(p)
			}
		}()

		rec := &captureWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		// Server errors are not remembered so the client can retry.
		if rec.status >= http.StatusInternalServerError {
			_ = i.R.Del(store, key).Err()
			return
		}
		payload, err := json.Marshal(storedResponse{
			Status:      rec.status,
			ContentType: rec.Header().Get("Content-Type"),
			Body:        rec.body.Bytes(),
		})
		if err == nil {
			err = i.R.Set(store, key, payload, i.ttl()).Err()
		}
		if err != nil {
			i.Logger.Warn().Err(err).Msg("idempotency store write failed")
			_ = i.R.Del(store, key).Err()
		}
	})
}

func (i Idem) replay(ctx context.Context, w http.ResponseWriter, key string) {
	raw, err := i.R.Get(ctx, key).Bytes()
	if err != nil && !errors.Is(err, redis.Nil) {
		JSONError(w, http.StatusInternalServerError, "INTERNAL", "idempotency store error", nil)
		return
	}
	if errors.Is(err, redis.Nil) || string(raw) == idemPending {
		JSONError(w, http.StatusConflict, "IDEMPOTENT_IN_PROGRESS", "a request with this idempotency key is in progress", nil)
		return
	}
	var stored storedResponse
	if err := json.Unmarshal(raw, &stored); err != nil {
		JSONError(w, http.StatusInternalServerError, "INTERNAL", "idempotency store corrupt", nil)
		return
	}
	if stored.ContentType != "" {
		w.Header().Set("Content-Type", stored.ContentType)
	}
	w.Header().Set(idemReplayHeader, "true")
	w.WriteHeader(stored.Status)
	_, _ = w.Write(stored.Body)
}

type captureWriter struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (c *captureWriter) WriteHeader(code int) {
	c.status = code
	c.ResponseWriter.WriteHeader(code)
}

func (c *captureWriter) Write(p []byte) (int, error) {
	c.body.Write(p)
	return c.ResponseWriter.Write(p)
}
