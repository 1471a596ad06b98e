package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"
)

// TestNewRateLimiterStartsFull verifies the bucket starts at full capacity.
func TestNewRateLimiterStartsFull(t *testing.T) {
	rl := NewRateLimiter(1.0, 10.0)
	tokens := rl.GetCurrentTokens()
	if tokens < 9.9 { // Allow small float imprecision
		t.Errorf("expected ~10 tokens, got %.2f", tokens)
	}
}

// TestTryAcquireConsumesToken verifies token consumption.
func TestTryAcquireConsumesToken(t *testing.T) {
	rl := NewRateLimiter(1.0, 5.0)

	for i := 0; i < 5; i++ {
		if !rl.tryAcquire() {
			t.Fatalf("tryAcquire() failed on attempt %d", i+1)
		}
	}

	if rl.tryAcquire() {
		t.Error("tryAcquire() should fail when bucket is empty")
	}
}

// TestTokenRefillCapsAtMax verifies tokens don't exceed max capacity.
func TestTokenRefillCapsAtMax(t *testing.T) {
	rl := NewRateLimiter(100.0, 5.0)
	time.Sleep(100 * time.Millisecond)

	if tokens := rl.GetCurrentTokens(); tokens > 5.1 {
		t.Errorf("tokens should cap at 5, got %.2f", tokens)
	}
}

// TestWaitBlocksUntilTokenAvailable verifies Wait blocks and then succeeds.
func TestWaitBlocksUntilTokenAvailable(t *testing.T) {
	rl := NewRateLimiter(10.0, 1.0)
	rl.tryAcquire()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	start := time.Now()
	if err := rl.Wait(ctx); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Errorf("Wait() returned after %v, expected to block for a refill", elapsed)
	}
}

// TestWaitRespectsCancellation verifies Wait returns when ctx is cancelled.
func TestWaitRespectsCancellation(t *testing.T) {
	rl := NewRateLimiter(0.01, 1.0)
	rl.tryAcquire()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := rl.Wait(ctx); err != context.DeadlineExceeded {
		t.Errorf("Wait() error = %v, want DeadlineExceeded", err)
	}
}

// TestConcurrentWait verifies no more than burst callers pass immediately.
func TestConcurrentWait(t *testing.T) {
	rl := NewRateLimiter(0.01, 3.0)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	var mu sync.Mutex
	passed := 0
	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if rl.Wait(ctx) == nil {
				mu.Lock()
				passed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if passed != 3 {
		t.Errorf("passed = %d, want 3", passed)
	}
}
