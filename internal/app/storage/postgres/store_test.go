package postgres

import (
	"context"
	"database/sql"
	"os"
	"testing"

	_ "github.com/lib/pq"

	"github.com/NovaBridge-Network/settlement_layer/internal/app/domain/settlement"
	"github.com/NovaBridge-Network/settlement_layer/internal/platform/migrations"
)

func TestStoreIntegration(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set; skipping postgres integration test")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	if err := migrations.Apply(ctx, db); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}

	store := New(db)

	rec, err := store.CreateSettlement(ctx, settlement.Settlement{
		SourceChain: "chainA",
		DestChain:   "chainB",
		Amount:      100,
		UserID:      "u1",
		Status:      settlement.StatusPending,
	})
	if err != nil {
		t.Fatalf("create settlement: %v", err)
	}

	rec.Status = settlement.StatusProcessing
	if _, err := store.UpdateSettlement(ctx, rec); err != nil {
		t.Fatalf("update settlement: %v", err)
	}

	got, err := store.GetSettlement(ctx, rec.ID)
	if err != nil {
		t.Fatalf("get settlement: %v", err)
	}
	if got.Status != settlement.StatusProcessing {
		t.Fatalf("status not persisted: %s", got.Status)
	}

	pending, err := store.ListSettlementsByStatus(ctx, settlement.StatusPending)
	if err != nil {
		t.Fatalf("list by status: %v", err)
	}
	for _, p := range pending {
		if p.ID == rec.ID {
			t.Fatalf("settlement should no longer be pending")
		}
	}

	canonical, err := store.Put("key-1", rec.ID)
	if err != nil {
		t.Fatalf("put idempotency key: %v", err)
	}
	if canonical != rec.ID {
		t.Fatalf("first writer should win: %s", canonical)
	}
	canonical, err = store.Put("key-1", "other-id")
	if err != nil {
		t.Fatalf("second put: %v", err)
	}
	if canonical != rec.ID {
		t.Fatalf("mapping must not be overwritten: %s", canonical)
	}
}
