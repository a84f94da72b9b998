package dlock

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/NovaBridge-Network/settlement_layer/internal/app/system"
	"github.com/NovaBridge-Network/settlement_layer/pkg/logger"
)

var _ system.Service = (*Janitor)(nil)

// Janitor periodically evicts expired lock records. Acquire already evicts
// lazily, so the sweep only bounds the memory held by keys nobody contends
// for anymore.
type Janitor struct {
	manager  Manager
	schedule string
	log      *logger.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
}

// NewJanitor creates a sweep job on a cron schedule such as "@every 30s".
func NewJanitor(manager Manager, schedule string, log *logger.Logger) *Janitor {
	if log == nil {
		log = logger.NewDefault("dlock-janitor")
	}
	if schedule == "" {
		schedule = "@every 30s"
	}
	return &Janitor{manager: manager, schedule: schedule, log: log}
}

func (j *Janitor) Name() string { return "dlock-janitor" }

func (j *Janitor) Start(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.running {
		return nil
	}

	c := cron.New()
	if _, err := c.AddFunc(j.schedule, func() {
		if removed := j.manager.CleanupExpired(); removed > 0 {
			j.log.Debugf("evicted %d expired locks", removed)
		}
	}); err != nil {
		return fmt.Errorf("schedule lock cleanup: %w", err)
	}
	c.Start()

	j.cron = c
	j.running = true
	j.log.Infof("lock janitor started (schedule %s)", j.schedule)
	return nil
}

func (j *Janitor) Stop(ctx context.Context) error {
	j.mu.Lock()
	c := j.cron
	j.running = false
	j.cron = nil
	j.mu.Unlock()

	if c == nil {
		return nil
	}

	select {
	case <-c.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
