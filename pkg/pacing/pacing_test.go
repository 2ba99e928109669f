package pacing

import (
	"context"
	"testing"
	"time"
)

func TestWait_ZeroDelayDoesNotBlock(t *testing.T) {
	p := New(0, 0)

	start := time.Now()
	if err := p.Wait(context.Background()); err != nil {
		t.Fatalf("Wait returned error: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 10*time.Millisecond {
		t.Errorf("zero-delay Wait took %v", elapsed)
	}
}

func TestWait_NilPacerIsNoop(t *testing.T) {
	var p *Pacer
	if err := p.Wait(context.Background()); err != nil {
		t.Fatalf("nil pacer Wait returned error: %v", err)
	}
}

func TestWait_SleepsApproximatelyDelay(t *testing.T) {
	p := New(30*time.Millisecond, 0)

	start := time.Now()
	if err := p.Wait(context.Background()); err != nil {
		t.Fatalf("Wait returned error: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 25*time.Millisecond {
		t.Errorf("Wait returned after %v, expected ~30ms", elapsed)
	}
}

func TestWait_CanceledContext(t *testing.T) {
	p := New(10*time.Second, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := p.Wait(ctx); err != context.Canceled {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestWait_JitterStaysNonNegative(t *testing.T) {
	p := New(time.Millisecond, 1.0)

	for i := 0; i < 20; i++ {
		if err := p.Wait(context.Background()); err != nil {
			t.Fatalf("Wait returned error: %v", err)
		}
	}
}
