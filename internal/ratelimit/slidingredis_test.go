package ratelimit

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestLimiterAllowSlidingWindow(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = client.Close() }()
	limiter := Limiter{Client: client, Prefix: "test:"}

	ctx := context.Background()
	window := 2 * time.Second
	max := 2

	for i := 0; i < max; i++ {
		allowed, remaining, _, err := limiter.Allow(ctx, "key", window, max)
		if err != nil {
			t.Fatalf("allow: %v", err)
		}
		if !allowed {
			t.Fatalf("expected request %d to be allowed", i)
		}
		if remaining != max-(i+1) {
			t.Fatalf("unexpected remaining: %d", remaining)
		}
	}

	allowed, remaining, _, err := limiter.Allow(ctx, "key", window, max)
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if allowed {
		t.Fatal("expected third request to be rejected")
	}
	if remaining != 0 {
		t.Fatalf("expected remaining 0, got %d", remaining)
	}

	mr.FastForward(window)

	allowed, _, _, err = limiter.Allow(ctx, "key", window, max)
	if err != nil {
		t.Fatalf("allow after window: %v", err)
	}
	if !allowed {
		t.Fatal("expected request after window to be allowed")
	}
}

func TestLimiterRejectedEventsDoNotCount(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = client.Close() }()

	now := time.Unix(1_700_000_000, 0)
	limiter := Limiter{Client: client, Prefix: "test:", Now: func() time.Time { return now }}
	ctx := context.Background()

	if allowed, _, _, err := limiter.Allow(ctx, "k", time.Minute, 1); err != nil || !allowed {
		t.Fatalf("expected first event allowed, got %v %v", allowed, err)
	}
	for i := 0; i < 3; i++ {
		now = now.Add(time.Second)
		allowed, _, reset, err := limiter.Allow(ctx, "k", time.Minute, 1)
		if err != nil {
			t.Fatalf("allow: %v", err)
		}
		if allowed {
			t.Fatal("expected rejection inside the window")
		}
		if want := time.Unix(1_700_000_000, 0).Add(time.Minute); !reset.Equal(want) {
			t.Fatalf("expected reset at oldest event + window %v, got %v", want, reset)
		}
	}
	if n := client.ZCard(ctx, "test:k").Val(); n != 1 {
		t.Fatalf("expected only the admitted event to be stored, got %d", n)
	}

	now = time.Unix(1_700_000_000, 0).Add(time.Minute + time.Second)
	if allowed, _, _, err := limiter.Allow(ctx, "k", time.Minute, 1); err != nil || !allowed {
		t.Fatalf("expected event after window allowed, got %v %v", allowed, err)
	}
}
