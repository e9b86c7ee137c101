package breaker

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errBoom = errors.New("boom")

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	b := New(Opts{FailThreshold: 2, Cooldown: time.Minute})
	fail := func(context.Context) error { return errBoom }

	if err := b.Call(context.Background(), fail); !errors.Is(err, errBoom) {
		t.Fatalf("call 1: got %v, want errBoom", err)
	}
	if err := b.Call(context.Background(), fail); !errors.Is(err, errBoom) {
		t.Fatalf("call 2: got %v, want errBoom", err)
	}
	if b.State() != StateOpen {
		t.Fatalf("state = %v, want open", b.State())
	}
	if err := b.Call(context.Background(), fail); !errors.Is(err, ErrOpen) {
		t.Fatalf("call 3 (should be shed): got %v, want ErrOpen", err)
	}
}

func TestBreaker_HalfOpenProbeRecovers(t *testing.T) {
	now := time.Now()
	b := New(Opts{FailThreshold: 1, Cooldown: 10 * time.Second})
	b.now = func() time.Time { return now }

	_ = b.Call(context.Background(), func(context.Context) error { return errBoom })
	if b.State() != StateOpen {
		t.Fatalf("expected open after one failure")
	}

	now = now.Add(11 * time.Second)
	if b.State() != StateHalfOpen {
		t.Fatalf("expected half-open after cooldown elapsed")
	}

	err := b.Call(context.Background(), func(context.Context) error { return nil })
	if err != nil {
		t.Fatalf("half-open probe should succeed: %v", err)
	}
	if b.State() != StateClosed {
		t.Fatalf("expected closed after successful probe, got %v", b.State())
	}
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	b := New(Opts{FailThreshold: 2, Cooldown: time.Minute})
	_ = b.Call(context.Background(), func(context.Context) error { return errBoom })
	_ = b.Call(context.Background(), func(context.Context) error { return nil })
	_ = b.Call(context.Background(), func(context.Context) error { return errBoom })
	if b.State() != StateClosed {
		t.Fatalf("single trailing failure after a success should not trip the breaker, got %v", b.State())
	}
}
