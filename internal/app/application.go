// Package app composes the settlement layer's services and manages their
// lifecycle.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/NovaBridge-Network/settlement_layer/internal/app/dlock"
	"github.com/NovaBridge-Network/settlement_layer/internal/app/idempotency"
	"github.com/NovaBridge-Network/settlement_layer/internal/app/ledger"
	settlementsvc "github.com/NovaBridge-Network/settlement_layer/internal/app/services/settlement"
	"github.com/NovaBridge-Network/settlement_layer/internal/app/storage"
	"github.com/NovaBridge-Network/settlement_layer/internal/app/storage/memory"
	"github.com/NovaBridge-Network/settlement_layer/internal/app/system"
	"github.com/NovaBridge-Network/settlement_layer/pkg/logger"
)

// Stores encapsulates persistence dependencies. Nil stores default to
// in-memory implementations suitable for tests and local development.
type Stores struct {
	Settlements storage.SettlementStore
	Idempotency idempotency.Store
}

// Options tune the application's background machinery. Zero values fall back
// to sensible defaults.
type Options struct {
	Locks           dlock.Manager
	Chains          ledger.Ledger
	LockTTL         time.Duration
	WorkerCount     int
	SweepInterval   time.Duration
	CleanupSchedule string
}

// Application ties the settlement engine together and manages the lifecycle
// of its background services.
type Application struct {
	manager *system.Manager
	log     *logger.Logger

	Settlements *settlementsvc.Service
	Locks       dlock.Manager
}

// New builds a fully initialised application.
func New(stores Stores, opts Options, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}

	if stores.Settlements == nil {
		stores.Settlements = memory.New()
	}
	if stores.Idempotency == nil {
		idemp, err := idempotency.NewFileStore("idempotency.json", log)
		if err != nil {
			return nil, fmt.Errorf("open idempotency store: %w", err)
		}
		stores.Idempotency = idemp
	}
	if opts.Locks == nil {
		opts.Locks = dlock.NewMemoryManager()
	}
	if opts.Chains == nil {
		opts.Chains = ledger.NewSimulator()
	}

	engine := settlementsvc.New(stores.Settlements, stores.Idempotency, opts.Locks, opts.Chains, log)
	if opts.LockTTL > 0 {
		engine.WithLockTTL(opts.LockTTL)
	}

	manager := system.NewManager()

	pool := settlementsvc.NewWorkerPool(engine, opts.WorkerCount, log)
	if opts.SweepInterval > 0 {
		pool.WithInterval(opts.SweepInterval)
	}
	if err := manager.Register(pool); err != nil {
		return nil, fmt.Errorf("register worker pool: %w", err)
	}

	janitor := dlock.NewJanitor(opts.Locks, opts.CleanupSchedule, log)
	if err := manager.Register(janitor); err != nil {
		return nil, fmt.Errorf("register lock janitor: %w", err)
	}

	return &Application{
		manager:     manager,
		log:         log,
		Settlements: engine,
		Locks:       opts.Locks,
	}, nil
}

// Attach registers an additional lifecycle-managed service. Call before Start.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// Start begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops all services in reverse registration order.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}
