package settlement

import (
	"context"
	"fmt"
	"testing"
	"time"

	domain "github.com/NovaBridge-Network/settlement_layer/internal/app/domain/settlement"
)

func TestWorkerPool_DrainsPendingSettlements(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const jobs = 8
	ids := make([]string, 0, jobs)
	for i := 0; i < jobs; i++ {
		user := fmt.Sprintf("u%d", i)
		f.chains.SetBalance("chainA", user, 1000)
		rec, err := f.engine.Initiate(ctx, "chainA", "chainB", 100, user, fmt.Sprintf("k%d", i))
		if err != nil {
			t.Fatalf("initiate %d: %v", i, err)
		}
		ids = append(ids, rec.ID)
	}

	pool := NewWorkerPool(f.engine, 4, nil).WithInterval(5 * time.Millisecond)
	if err := pool.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer pool.Stop(ctx)

	deadline := time.Now().Add(5 * time.Second)
	for {
		remaining, err := f.engine.Pending(ctx)
		if err != nil {
			t.Fatalf("pending: %v", err)
		}
		if len(remaining) == 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("%d settlements still pending after deadline", len(remaining))
		}
		time.Sleep(10 * time.Millisecond)
	}

	for i, id := range ids {
		got, err := f.engine.Get(ctx, id)
		if err != nil {
			t.Fatalf("get %s: %v", id, err)
		}
		if got.Status != domain.StatusCompleted {
			t.Fatalf("settlement %d not completed: %s", i, got.Status)
		}
		user := fmt.Sprintf("u%d", i)
		if !almostEqual(f.chains.Balance("chainA", user), 900) {
			t.Fatalf("user %s source balance: %v", user, f.chains.Balance("chainA", user))
		}
		if !almostEqual(f.chains.Balance("chainB", user), 100) {
			t.Fatalf("user %s dest balance: %v", user, f.chains.Balance("chainB", user))
		}
	}
}

func TestWorkerPool_StartIsIdempotentAndStopIsBounded(t *testing.T) {
	f := newFixture(t)
	pool := NewWorkerPool(f.engine, 3, nil).WithInterval(5 * time.Millisecond)

	ctx := context.Background()
	if err := pool.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := pool.Start(ctx); err != nil {
		t.Fatalf("second start should be a no-op: %v", err)
	}

	stopCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := pool.Stop(stopCtx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := pool.Stop(stopCtx); err != nil {
		t.Fatalf("second stop should be a no-op: %v", err)
	}
}

func TestWorkerPool_LeavesFailedSettlementsForRetry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.chains.SetBalance("chainA", "u1", 1000)

	rec, err := f.engine.Initiate(ctx, "chainA", "chainB", 100, "u1", "k1")
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}

	f.chains.FailMint(true)
	pool := NewWorkerPool(f.engine, 2, nil).WithInterval(5 * time.Millisecond)
	if err := pool.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		got, err := f.engine.Get(ctx, rec.ID)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.Status == domain.StatusFailed {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("settlement never failed, status %s", got.Status)
		}
		time.Sleep(10 * time.Millisecond)
	}

	stopCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := pool.Stop(stopCtx); err != nil {
		t.Fatalf("stop: %v", err)
	}

	// The pool only sweeps PENDING work; the failed settlement waits for an
	// explicit retry.
	f.chains.FailMint(false)
	retried, err := f.engine.Retry(ctx, rec.ID)
	if err != nil || !retried {
		t.Fatalf("retry: %v %v", retried, err)
	}
	got, _ := f.engine.Get(ctx, rec.ID)
	if got.Status != domain.StatusCompleted {
		t.Fatalf("status after retry: %s", got.Status)
	}
}
