package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/fd1az/mordor-monitor/internal/apperror"
)

func TestLimiter_Burst(t *testing.T) {
	l := New(1, 3)

	for i := 0; i < 3; i++ {
		if !l.Allow() {
			t.Fatalf("request %d should be allowed within burst", i)
		}
	}
	if l.Allow() {
		t.Error("request beyond burst should be denied")
	}
}

func TestLimiter_WaitHonoursContext(t *testing.T) {
	l := New(0.001, 1)
	l.Allow()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := l.Wait(ctx)
	if !apperror.IsCode(err, apperror.CodeRateLimitExceeded) {
		t.Errorf("err = %v, want RATE_LIMIT_EXCEEDED", err)
	}
}

func TestLimiter_Unlimited(t *testing.T) {
	l := New(0, 0)
	for i := 0; i < 1000; i++ {
		if !l.Allow() {
			t.Fatalf("unlimited limiter denied request %d", i)
		}
	}

	l.SetRate(0.001)
	l.Allow()
	if l.Allow() {
		t.Error("limiter should be bounded after SetRate")
	}
}
