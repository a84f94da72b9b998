// Package settlement implements the cross-chain settlement engine. It owns
// every settlement record and drives each through its state machine,
// composing the distributed lock manager (one processing attempt per
// settlement at a time), the idempotency store (one settlement per client
// key) and the ledger (the actual burn and mint).
package settlement

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	domain "github.com/NovaBridge-Network/settlement_layer/internal/app/domain/settlement"
	"github.com/NovaBridge-Network/settlement_layer/internal/app/dlock"
	"github.com/NovaBridge-Network/settlement_layer/internal/app/idempotency"
	"github.com/NovaBridge-Network/settlement_layer/internal/app/ledger"
	"github.com/NovaBridge-Network/settlement_layer/internal/app/metrics"
	"github.com/NovaBridge-Network/settlement_layer/internal/app/storage"
	svcerrors "github.com/NovaBridge-Network/settlement_layer/internal/errors"
	"github.com/NovaBridge-Network/settlement_layer/pkg/logger"
)

// DefaultLockTTL covers a burn plus a mint with generous headroom; stages
// extend the lock at their boundary, so the TTL only has to outlive a single
// chain call plus a crash-detection margin.
const DefaultLockTTL = 30 * time.Second

// Service is the settlement engine.
type Service struct {
	store   storage.SettlementStore
	idemp   idempotency.Store
	locks   dlock.Manager
	chains  ledger.Ledger
	log     *logger.Logger
	lockTTL time.Duration
}

// New constructs a settlement engine.
func New(store storage.SettlementStore, idemp idempotency.Store, locks dlock.Manager, chains ledger.Ledger, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("settlement")
	}
	return &Service{
		store:   store,
		idemp:   idemp,
		locks:   locks,
		chains:  chains,
		log:     log,
		lockTTL: DefaultLockTTL,
	}
}

// WithLockTTL overrides the per-settlement lock TTL. Tests shorten it to
// exercise crashed-holder recovery quickly.
func (s *Service) WithLockTTL(ttl time.Duration) *Service {
	if ttl > 0 {
		s.lockTTL = ttl
	}
	return s
}

func lockKey(id string) string { return "settlement:" + id }

// Initiate creates a settlement in PENDING, or returns the settlement a
// previous call with the same idempotency key produced. The idempotency
// mapping is written only after the settlement record is durably visible,
// so no reader ever resolves a key to a missing settlement.
func (s *Service) Initiate(ctx context.Context, sourceChain, destChain string, amount float64, userID, idempotencyKey string) (domain.Settlement, error) {
	sourceChain = strings.TrimSpace(sourceChain)
	destChain = strings.TrimSpace(destChain)
	userID = strings.TrimSpace(userID)
	idempotencyKey = strings.TrimSpace(idempotencyKey)

	if amount <= 0 {
		metrics.RecordInitiation("rejected")
		return domain.Settlement{}, svcerrors.Validation("amount must be positive")
	}
	if sourceChain == "" || destChain == "" {
		metrics.RecordInitiation("rejected")
		return domain.Settlement{}, svcerrors.Validation("source_chain and dest_chain are required")
	}
	if userID == "" {
		metrics.RecordInitiation("rejected")
		return domain.Settlement{}, svcerrors.Validation("user_id is required")
	}
	if idempotencyKey == "" {
		metrics.RecordInitiation("rejected")
		return domain.Settlement{}, svcerrors.Validation("idempotency_key is required")
	}

	// Replay returns the prior settlement unconditionally, whatever its
	// status has moved to since.
	if existingID, ok := s.idemp.Get(idempotencyKey); ok {
		metrics.RecordInitiation("replayed")
		return s.Get(ctx, existingID)
	}

	rec := domain.Settlement{
		ID:          uuid.NewString(),
		SourceChain: sourceChain,
		DestChain:   destChain,
		Amount:      amount,
		UserID:      userID,
		Status:      domain.StatusPending,
	}
	rec, err := s.store.CreateSettlement(ctx, rec)
	if err != nil {
		return domain.Settlement{}, fmt.Errorf("create settlement: %w", err)
	}

	canonical, err := s.idemp.Put(idempotencyKey, rec.ID)
	if err != nil {
		// The mapping never became durable, so the record must not be
		// reachable either: a client retry has to produce a fresh attempt.
		_ = s.store.DeleteSettlement(ctx, rec.ID)
		return domain.Settlement{}, fmt.Errorf("record idempotency key: %w", err)
	}
	if canonical != rec.ID {
		// Lost a concurrent race for this key. The loser record was never
		// returned to anyone; discard it and hand back the canonical one.
		_ = s.store.DeleteSettlement(ctx, rec.ID)
		metrics.RecordInitiation("replayed")
		return s.Get(ctx, canonical)
	}

	metrics.RecordInitiation("created")
	s.log.WithField("settlement_id", rec.ID).
		WithField("source_chain", sourceChain).
		WithField("dest_chain", destChain).
		Infof("settlement initiated for %s", userID)
	return rec, nil
}

// Process drives a PENDING settlement through burn and mint. It returns
// (false, nil) when another holder owns the settlement's lock or the
// settlement is no longer PENDING — both normal outcomes, not errors — and
// (true, nil) once the settlement completed. A ledger failure marks the
// settlement FAILED and surfaces the error.
func (s *Service) Process(ctx context.Context, id string) (bool, error) {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return false, err
	}

	holder := uuid.NewString()
	key := lockKey(rec.ID)
	if !s.locks.Acquire(key, holder, s.lockTTL) {
		metrics.RecordLockContention()
		return false, nil
	}
	defer s.locks.Release(key, holder)

	// Status is only trustworthy under the lock; every writer of this
	// settlement holds it, so this read-check-transition is linearizable.
	rec, err = s.Get(ctx, id)
	if err != nil {
		return false, err
	}
	if rec.Status != domain.StatusPending {
		metrics.RecordOutcome("skipped")
		return false, nil
	}

	if err := s.setStatus(ctx, &rec, domain.StatusProcessing); err != nil {
		return false, err
	}
	if err := s.executeStages(ctx, &rec, holder); err != nil {
		return false, err
	}

	metrics.RecordOutcome("completed")
	return true, nil
}

// Retry resumes a settlement from its last durable stage. It is idempotent:
// terminal settlements return (true, nil) untouched, and a settlement whose
// burn already happened is never burned again. A settlement stuck in an
// in-flight status is eligible once its previous holder's lock expired —
// holding the lock here proves that holder is gone.
func (s *Service) Retry(ctx context.Context, id string) (bool, error) {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return false, err
	}
	if rec.Status.IsTerminal() {
		return true, nil
	}

	holder := uuid.NewString()
	key := lockKey(rec.ID)
	if !s.locks.Acquire(key, holder, s.lockTTL) {
		metrics.RecordLockContention()
		return false, nil
	}
	defer s.locks.Release(key, holder)

	rec, err = s.Get(ctx, id)
	if err != nil {
		return false, err
	}
	if rec.Status.IsTerminal() {
		return true, nil
	}
	if rec.Status == domain.StatusCompensating {
		return false, svcerrors.InvalidState("settlement %s is compensating and cannot be retried", id)
	}

	if rec.Status == domain.StatusPending || rec.Status == domain.StatusFailed {
		rec.ErrorMessage = ""
		if err := s.setStatus(ctx, &rec, domain.StatusProcessing); err != nil {
			return false, err
		}
	}
	if err := s.executeStages(ctx, &rec, holder); err != nil {
		return false, err
	}

	metrics.RecordOutcome("completed")
	return true, nil
}

// Compensate reverses a completed burn by minting the amount back onto the
// source chain, for settlements that burned but can no longer complete. It
// returns (false, nil) on lock contention. A failed compensating mint
// leaves the settlement in COMPENSATING and reports an error demanding
// operator intervention; re-invoking Compensate is the manual retry.
func (s *Service) Compensate(ctx context.Context, id string) (bool, error) {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return false, err
	}

	holder := uuid.NewString()
	key := lockKey(rec.ID)
	if !s.locks.Acquire(key, holder, s.lockTTL) {
		metrics.RecordLockContention()
		return false, nil
	}
	defer s.locks.Release(key, holder)

	rec, err = s.Get(ctx, id)
	if err != nil {
		return false, err
	}
	if rec.Status == domain.StatusCompensated {
		return true, nil
	}
	if rec.BurnTxHash == "" {
		return false, svcerrors.InvalidState("settlement %s has no completed burn to compensate", id)
	}
	if rec.Status == domain.StatusCompleted || rec.MintTxHash != "" {
		return false, svcerrors.InvalidState("settlement %s already delivered value on %s", id, rec.DestChain)
	}

	if err := s.setStatus(ctx, &rec, domain.StatusCompensating); err != nil {
		return false, err
	}

	start := time.Now()
	tx, err := s.chains.Mint(ctx, rec.SourceChain, rec.UserID, rec.Amount)
	metrics.RecordStage("compensation", time.Since(start))
	if err != nil {
		rec.ErrorMessage = err.Error()
		if _, updateErr := s.store.UpdateSettlement(ctx, rec); updateErr != nil {
			s.log.WithError(updateErr).WithField("settlement_id", rec.ID).
				Warn("record compensation failure")
		}
		metrics.RecordOutcome("compensation_failed")
		s.log.WithError(err).WithField("settlement_id", rec.ID).
			Error("compensating mint failed; settlement needs manual intervention")
		return false, svcerrors.CompensationFailed(rec.ID, err)
	}

	rec.CompensationTxHash = tx
	rec.ErrorMessage = ""
	if err := s.setStatus(ctx, &rec, domain.StatusCompensated); err != nil {
		return false, err
	}

	metrics.RecordOutcome("compensated")
	s.log.WithField("settlement_id", rec.ID).
		WithField("compensation_tx", tx).
		Infof("burn of %v reversed on %s", rec.Amount, rec.SourceChain)
	return true, nil
}

// Get returns a copy of one settlement.
func (s *Service) Get(ctx context.Context, id string) (domain.Settlement, error) {
	rec, err := s.store.GetSettlement(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return domain.Settlement{}, svcerrors.NotFound("settlement", id)
	}
	return rec, err
}

// List returns a point-in-time snapshot of all settlements.
func (s *Service) List(ctx context.Context) ([]domain.Settlement, error) {
	return s.store.ListSettlements(ctx)
}

// Pending returns the settlements currently waiting for a worker.
func (s *Service) Pending(ctx context.Context) ([]domain.Settlement, error) {
	return s.store.ListSettlementsByStatus(ctx, domain.StatusPending)
}

// executeStages runs the burn and mint stages, resuming past any stage whose
// tx hash is already durable. The caller must hold the settlement's lock.
// Each hash is persisted in the same write that advances the status, so a
// stage acknowledged by the ledger is never re-executed.
func (s *Service) executeStages(ctx context.Context, rec *domain.Settlement, holder string) error {
	key := lockKey(rec.ID)

	if rec.BurnTxHash == "" {
		if err := s.setStatus(ctx, rec, domain.StatusBurning); err != nil {
			return err
		}
		start := time.Now()
		tx, err := s.chains.Burn(ctx, rec.SourceChain, rec.UserID, rec.Amount)
		metrics.RecordStage("burn", time.Since(start))
		if err != nil {
			return s.fail(ctx, rec, err)
		}
		rec.BurnTxHash = tx
		if err := s.setStatus(ctx, rec, domain.StatusBurned); err != nil {
			return err
		}
	}

	if rec.MintTxHash == "" {
		// Refresh the lock so the mint never runs with an expired claim.
		if !s.locks.Extend(key, holder, s.lockTTL) {
			s.log.WithField("settlement_id", rec.ID).
				Warn("lock extension refused before mint stage")
		}
		if err := s.setStatus(ctx, rec, domain.StatusMinting); err != nil {
			return err
		}
		start := time.Now()
		tx, err := s.chains.Mint(ctx, rec.DestChain, rec.UserID, rec.Amount)
		metrics.RecordStage("mint", time.Since(start))
		if err != nil {
			return s.fail(ctx, rec, err)
		}
		rec.MintTxHash = tx
		if err := s.setStatus(ctx, rec, domain.StatusMinted); err != nil {
			return err
		}
	} else if rec.Status != domain.StatusMinted {
		if err := s.setStatus(ctx, rec, domain.StatusMinted); err != nil {
			return err
		}
	}

	if err := s.setStatus(ctx, rec, domain.StatusCompleted); err != nil {
		return err
	}

	s.log.WithField("settlement_id", rec.ID).
		WithField("burn_tx", rec.BurnTxHash).
		WithField("mint_tx", rec.MintTxHash).
		Infof("settlement completed: %v moved %s -> %s", rec.Amount, rec.SourceChain, rec.DestChain)
	return nil
}

// fail records the stage error, moves the settlement to FAILED and returns
// the original error for the caller to surface.
func (s *Service) fail(ctx context.Context, rec *domain.Settlement, cause error) error {
	rec.ErrorMessage = cause.Error()
	if err := s.setStatus(ctx, rec, domain.StatusFailed); err != nil {
		s.log.WithError(err).WithField("settlement_id", rec.ID).
			Warn("record settlement failure")
	}
	metrics.RecordOutcome("failed")
	return cause
}

// setStatus validates the transition and persists the whole record, so any
// hashes or error message set on rec ride along in the same write.
func (s *Service) setStatus(ctx context.Context, rec *domain.Settlement, status domain.Status) error {
	if !domain.CanTransition(rec.Status, status) {
		return svcerrors.InvalidState("settlement %s cannot move from %s to %s", rec.ID, rec.Status, status)
	}
	rec.Status = status
	updated, err := s.store.UpdateSettlement(ctx, *rec)
	if err != nil {
		return fmt.Errorf("persist settlement %s: %w", rec.ID, err)
	}
	*rec = updated
	return nil
}
