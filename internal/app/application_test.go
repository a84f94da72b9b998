package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	domain "github.com/NovaBridge-Network/settlement_layer/internal/app/domain/settlement"
	"github.com/NovaBridge-Network/settlement_layer/internal/app/idempotency"
	"github.com/NovaBridge-Network/settlement_layer/internal/app/ledger"
)

func TestApplication_EndToEnd(t *testing.T) {
	idemp, err := idempotency.NewFileStore(filepath.Join(t.TempDir(), "keys.json"), nil)
	if err != nil {
		t.Fatalf("idempotency store: %v", err)
	}
	chains := ledger.NewSimulator()
	chains.SetBalance("chainA", "u1", 1000)

	application, err := New(Stores{Idempotency: idemp}, Options{
		Chains:        chains,
		WorkerCount:   2,
		SweepInterval: 5 * time.Millisecond,
	}, nil)
	if err != nil {
		t.Fatalf("new application: %v", err)
	}

	ctx := context.Background()
	if err := application.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	rec, err := application.Settlements.Initiate(ctx, "chainA", "chainB", 250, "u1", "k1")
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		got, err := application.Settlements.Get(ctx, rec.ID)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.Status == domain.StatusCompleted {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("settlement never completed, status %s", got.Status)
		}
		time.Sleep(10 * time.Millisecond)
	}

	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := application.Stop(stopCtx); err != nil {
		t.Fatalf("stop: %v", err)
	}

	if chains.Balance("chainA", "u1") != 750 {
		t.Fatalf("source balance: %v", chains.Balance("chainA", "u1"))
	}
	if chains.Balance("chainB", "u1") != 250 {
		t.Fatalf("dest balance: %v", chains.Balance("chainB", "u1"))
	}
}
