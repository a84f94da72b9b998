package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/NovaBridge-Network/settlement_layer/internal/errors"
)

// Simulator is an in-process ledger keeping chain -> user -> balance tables.
// It stands in for the real chains during tests and local development and
// can inject failures per operation. The internal mutex is released before
// the simulated network latency so callers see I/O-shaped blocking without
// serialising on the balance table.
type Simulator struct {
	mu        sync.Mutex
	balances  map[string]map[string]float64
	txCounter int

	latency  time.Duration
	failBurn bool
	failMint bool
}

var _ Ledger = (*Simulator)(nil)

// NewSimulator creates an empty simulator with a small default latency.
func NewSimulator() *Simulator {
	return &Simulator{
		balances: make(map[string]map[string]float64),
		latency:  10 * time.Millisecond,
	}
}

// WithLatency overrides the simulated chain round-trip time.
func (s *Simulator) WithLatency(d time.Duration) *Simulator {
	s.mu.Lock()
	s.latency = d
	s.mu.Unlock()
	return s
}

// SetBalance seeds a user balance on a chain.
func (s *Simulator) SetBalance(chain, userID string, amount float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.balances[chain] == nil {
		s.balances[chain] = make(map[string]float64)
	}
	s.balances[chain][userID] = amount
}

// Balance returns the user balance on a chain, zero when unknown.
func (s *Simulator) Balance(chain, userID string) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balances[chain][userID]
}

// FailBurn toggles burn failure injection.
func (s *Simulator) FailBurn(fail bool) {
	s.mu.Lock()
	s.failBurn = fail
	s.mu.Unlock()
}

// FailMint toggles mint failure injection.
func (s *Simulator) FailMint(fail bool) {
	s.mu.Lock()
	s.failMint = fail
	s.mu.Unlock()
}

func (s *Simulator) sleep(ctx context.Context) error {
	s.mu.Lock()
	latency := s.latency
	s.mu.Unlock()

	if latency <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(latency)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Burn debits the user on the source chain and returns the burn tx hash.
func (s *Simulator) Burn(ctx context.Context, chain, userID string, amount float64) (string, error) {
	if err := s.sleep(ctx); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failBurn {
		return "", errors.ChainFailure("burn", chain, fmt.Errorf("simulated chain fault"))
	}

	current := s.balances[chain][userID]
	if current < amount {
		return "", errors.InsufficientBalance(chain, userID)
	}

	if s.balances[chain] == nil {
		s.balances[chain] = make(map[string]float64)
	}
	s.balances[chain][userID] = current - amount
	s.txCounter++
	return fmt.Sprintf("burn_tx_%06d", s.txCounter), nil
}

// Mint credits the user on the destination chain and returns the mint tx
// hash.
func (s *Simulator) Mint(ctx context.Context, chain, userID string, amount float64) (string, error) {
	if err := s.sleep(ctx); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failMint {
		return "", errors.ChainFailure("mint", chain, fmt.Errorf("simulated chain fault"))
	}

	if s.balances[chain] == nil {
		s.balances[chain] = make(map[string]float64)
	}
	s.balances[chain][userID] += amount
	s.txCounter++
	return fmt.Sprintf("mint_tx_%06d", s.txCounter), nil
}
