// Package postgres implements the settlement persistence contracts on
// PostgreSQL for deployments where replicas share one database.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/NovaBridge-Network/settlement_layer/internal/app/domain/settlement"
	"github.com/NovaBridge-Network/settlement_layer/internal/app/idempotency"
	"github.com/NovaBridge-Network/settlement_layer/internal/app/storage"
)

// Store implements the storage interfaces backed by PostgreSQL.
type Store struct {
	db *sql.DB
}

var _ storage.SettlementStore = (*Store)(nil)
var _ idempotency.Store = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// --- SettlementStore ---------------------------------------------------------

func (s *Store) CreateSettlement(ctx context.Context, rec settlement.Settlement) (settlement.Settlement, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settlements (
			id, source_chain, dest_chain, amount, user_id, status,
			error_message, burn_tx_hash, mint_tx_hash, compensation_tx_hash,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, rec.ID, rec.SourceChain, rec.DestChain, rec.Amount, rec.UserID, rec.Status,
		rec.ErrorMessage, rec.BurnTxHash, rec.MintTxHash, rec.CompensationTxHash,
		rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		return settlement.Settlement{}, err
	}
	return rec, nil
}

func (s *Store) UpdateSettlement(ctx context.Context, rec settlement.Settlement) (settlement.Settlement, error) {
	rec.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE settlements
		SET status = $2, error_message = $3, burn_tx_hash = $4,
		    mint_tx_hash = $5, compensation_tx_hash = $6, updated_at = $7
		WHERE id = $1
	`, rec.ID, rec.Status, rec.ErrorMessage, rec.BurnTxHash,
		rec.MintTxHash, rec.CompensationTxHash, rec.UpdatedAt)
	if err != nil {
		return settlement.Settlement{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return settlement.Settlement{}, storage.ErrNotFound
	}
	return rec, nil
}

func (s *Store) GetSettlement(ctx context.Context, id string) (settlement.Settlement, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, source_chain, dest_chain, amount, user_id, status,
		       error_message, burn_tx_hash, mint_tx_hash, compensation_tx_hash,
		       created_at, updated_at
		FROM settlements
		WHERE id = $1
	`, id)

	rec, err := scanSettlement(row)
	if errors.Is(err, sql.ErrNoRows) {
		return settlement.Settlement{}, storage.ErrNotFound
	}
	return rec, err
}

func (s *Store) ListSettlements(ctx context.Context) ([]settlement.Settlement, error) {
	return s.list(ctx, `
		SELECT id, source_chain, dest_chain, amount, user_id, status,
		       error_message, burn_tx_hash, mint_tx_hash, compensation_tx_hash,
		       created_at, updated_at
		FROM settlements
		ORDER BY created_at
	`)
}

func (s *Store) ListSettlementsByStatus(ctx context.Context, status settlement.Status) ([]settlement.Settlement, error) {
	return s.list(ctx, `
		SELECT id, source_chain, dest_chain, amount, user_id, status,
		       error_message, burn_tx_hash, mint_tx_hash, compensation_tx_hash,
		       created_at, updated_at
		FROM settlements
		WHERE status = $1
		ORDER BY created_at
	`, string(status))
}

func (s *Store) DeleteSettlement(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM settlements WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) list(ctx context.Context, query string, args ...any) ([]settlement.Settlement, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []settlement.Settlement
	for rows.Next() {
		rec, err := scanSettlement(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSettlement(row scanner) (settlement.Settlement, error) {
	var rec settlement.Settlement
	err := row.Scan(
		&rec.ID, &rec.SourceChain, &rec.DestChain, &rec.Amount, &rec.UserID,
		&rec.Status, &rec.ErrorMessage, &rec.BurnTxHash, &rec.MintTxHash,
		&rec.CompensationTxHash, &rec.CreatedAt, &rec.UpdatedAt,
	)
	return rec, err
}

// --- idempotency.Store --------------------------------------------------------

// Put records the mapping with insert-if-absent semantics and returns the
// canonical settlement id for the key.
func (s *Store) Put(key, settlementID string) (string, error) {
	ctx := context.Background()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO idempotency_keys (key, settlement_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO NOTHING
	`, key, settlementID, time.Now().UTC())
	if err != nil {
		return "", err
	}

	var canonical string
	err = s.db.QueryRowContext(ctx, `
		SELECT settlement_id FROM idempotency_keys WHERE key = $1
	`, key).Scan(&canonical)
	if err != nil {
		return "", err
	}
	return canonical, nil
}

// Get returns the mapped settlement id; a missing row is a normal miss.
func (s *Store) Get(key string) (string, bool) {
	var id string
	err := s.db.QueryRowContext(context.Background(), `
		SELECT settlement_id FROM idempotency_keys WHERE key = $1
	`, key).Scan(&id)
	if err != nil {
		return "", false
	}
	return id, true
}

// Delete removes a mapping. Deleting an absent key is a no-op.
func (s *Store) Delete(key string) error {
	_, err := s.db.ExecContext(context.Background(), `
		DELETE FROM idempotency_keys WHERE key = $1
	`, key)
	return err
}
