// Package memory provides an in-memory SettlementStore for tests and local
// development.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/NovaBridge-Network/settlement_layer/internal/app/domain/settlement"
	"github.com/NovaBridge-Network/settlement_layer/internal/app/storage"
)

// Store is an in-memory implementation of the storage interfaces. It is safe
// for concurrent use. Reads hand out copies so callers never observe a torn
// record.
type Store struct {
	mu          sync.RWMutex
	settlements map[string]settlement.Settlement
}

var _ storage.SettlementStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{settlements: make(map[string]settlement.Settlement)}
}

func (s *Store) CreateSettlement(_ context.Context, rec settlement.Settlement) (settlement.Settlement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now

	s.settlements[rec.ID] = rec
	return rec, nil
}

func (s *Store) UpdateSettlement(_ context.Context, rec settlement.Settlement) (settlement.Settlement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.settlements[rec.ID]
	if !ok {
		return settlement.Settlement{}, storage.ErrNotFound
	}

	rec.CreatedAt = original.CreatedAt
	rec.UpdatedAt = time.Now().UTC()
	s.settlements[rec.ID] = rec
	return rec, nil
}

func (s *Store) GetSettlement(_ context.Context, id string) (settlement.Settlement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.settlements[id]
	if !ok {
		return settlement.Settlement{}, storage.ErrNotFound
	}
	return rec, nil
}

func (s *Store) ListSettlements(_ context.Context) ([]settlement.Settlement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]settlement.Settlement, 0, len(s.settlements))
	for _, rec := range s.settlements {
		result = append(result, rec)
	}
	sortByCreation(result)
	return result, nil
}

func (s *Store) ListSettlementsByStatus(_ context.Context, status settlement.Status) ([]settlement.Settlement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []settlement.Settlement
	for _, rec := range s.settlements {
		if rec.Status == status {
			result = append(result, rec)
		}
	}
	sortByCreation(result)
	return result, nil
}

func (s *Store) DeleteSettlement(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.settlements[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.settlements, id)
	return nil
}

func sortByCreation(recs []settlement.Settlement) {
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].CreatedAt.Equal(recs[j].CreatedAt) {
			return recs[i].ID < recs[j].ID
		}
		return recs[i].CreatedAt.Before(recs[j].CreatedAt)
	})
}
