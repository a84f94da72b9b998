package settlement

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/NovaBridge-Network/settlement_layer/internal/app/metrics"
	"github.com/NovaBridge-Network/settlement_layer/internal/app/system"
	"github.com/NovaBridge-Network/settlement_layer/pkg/logger"
)

var _ system.Service = (*WorkerPool)(nil)

// WorkerPool runs N concurrent workers that sweep for PENDING settlements
// and hand them to the engine. It models horizontally scaled service
// instances: overlap between workers is prevented by the distributed lock,
// never by the pool's own run state.
type WorkerPool struct {
	engine   *Service
	workers  int
	interval time.Duration
	log      *logger.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewWorkerPool creates a pool of n workers. n defaults to 5 when not
// positive.
func NewWorkerPool(engine *Service, n int, log *logger.Logger) *WorkerPool {
	if log == nil {
		log = logger.NewDefault("settlement-workers")
	}
	if n <= 0 {
		n = 5
	}
	return &WorkerPool{
		engine:   engine,
		workers:  n,
		interval: 50 * time.Millisecond,
		log:      log,
	}
}

// WithInterval overrides the delay between sweeps.
func (p *WorkerPool) WithInterval(d time.Duration) *WorkerPool {
	if d > 0 {
		p.interval = d
	}
	return p
}

func (p *WorkerPool) Name() string { return "settlement-workers" }

func (p *WorkerPool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.running = true

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go func(worker int) {
			defer p.wg.Done()
			p.loop(runCtx, fmt.Sprintf("worker-%d", worker))
		}(i)
	}

	p.log.Infof("settlement worker pool started (%d workers)", p.workers)
	return nil
}

// Stop cancels the workers and waits for them, bounded by ctx. A worker
// never abandons a settlement mid-stage: it finishes the item it holds the
// lock for and observes cancellation on the next sweep.
func (p *WorkerPool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	cancel := p.cancel
	p.running = false
	p.cancel = nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		p.wg.Wait()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	return nil
}

func (p *WorkerPool) loop(ctx context.Context, name string) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.sweep(ctx, name)
		}
	}
}

// sweep processes one snapshot of pending settlements. Per-item errors are
// reported and skipped so one bad settlement never stalls the rest.
func (p *WorkerPool) sweep(ctx context.Context, name string) {
	metrics.RecordWorkerSweep()

	pending, err := p.engine.Pending(ctx)
	if err != nil {
		p.log.WithError(err).Warnf("%s: list pending settlements failed", name)
		return
	}

	for _, rec := range pending {
		if ctx.Err() != nil {
			return
		}
		processed, err := p.engine.Process(ctx, rec.ID)
		if err != nil {
			p.log.WithError(err).
				WithField("settlement_id", rec.ID).
				Warnf("%s: settlement processing failed", name)
			continue
		}
		if processed {
			p.log.WithField("settlement_id", rec.ID).
				Debugf("%s: settlement processed", name)
		}
	}
}
