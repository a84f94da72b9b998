// Package storage defines the persistence contracts for settlement records.
package storage

import (
	"context"
	"errors"

	"github.com/NovaBridge-Network/settlement_layer/internal/app/domain/settlement"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// SettlementStore persists settlement records. Implementations must be safe
// for concurrent use; per-settlement write ordering is the engine's job (it
// only writes while holding the settlement's distributed lock).
type SettlementStore interface {
	CreateSettlement(ctx context.Context, s settlement.Settlement) (settlement.Settlement, error)
	UpdateSettlement(ctx context.Context, s settlement.Settlement) (settlement.Settlement, error)
	GetSettlement(ctx context.Context, id string) (settlement.Settlement, error)
	ListSettlements(ctx context.Context) ([]settlement.Settlement, error)
	ListSettlementsByStatus(ctx context.Context, status settlement.Status) ([]settlement.Settlement, error)
	// DeleteSettlement discards a record. The engine uses it only for
	// stillborn duplicates that lost an idempotency race and were never
	// visible to any caller.
	DeleteSettlement(ctx context.Context, id string) error
}
