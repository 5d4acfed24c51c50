// Package scheduler runs the client's periodic ledger syncs: treasury balance,
// selected pet stats, owned inventory and pet decay.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/MarkoPoloResearchLab/focusledger/internal/localstate"
	"github.com/MarkoPoloResearchLab/focusledger/pkg/economy"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const (
	DefaultTreasuryInterval  = 30 * time.Second
	DefaultPetStatsInterval  = time.Minute
	DefaultInventoryInterval = 5 * time.Minute
	DefaultDecayInterval     = time.Hour

	jobTreasury  = "treasury"
	jobPetStats  = "pet_stats"
	jobInventory = "inventory"
	jobDecay     = "decay"
)

// ErrInvalidConfig reports an unusable schedule.
var ErrInvalidConfig = errors.New("invalid scheduler config")

// Jobs is the work the scheduler drives; *client.Client implements it.
type Jobs interface {
	RefreshTreasury(ctx context.Context) (economy.Treasury, error)
	SyncPetStats(ctx context.Context) (localstate.State, error)
	SyncInventory(ctx context.Context) (localstate.State, error)
	TickDecay(ctx context.Context) (localstate.State, error)
}

// Config sets each job's period. A negative interval disables the job and zero
// selects its default.
type Config struct {
	TreasuryInterval  time.Duration
	PetStatsInterval  time.Duration
	InventoryInterval time.Duration
	DecayInterval     time.Duration
}

// Scheduler owns the cron runner.
type Scheduler struct {
	cron   *cron.Cron
	jobs   Jobs
	logger *zap.Logger

	ctxMutex sync.RWMutex
	ctx      context.Context
}

type job struct {
	name     string
	interval time.Duration
	run      func(ctx context.Context) error
}

// New registers the enabled jobs. Overlapping runs of the same job are skipped.
func New(jobs Jobs, config Config, logger *zap.Logger) (*Scheduler, error) {
	if jobs == nil {
		return nil, fmt.Errorf("%w: jobs are required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cronLogger := cron.PrintfLogger(zap.NewStdLog(logger.Named("cron")))
	scheduler := &Scheduler{
		cron: cron.New(
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		jobs:   jobs,
		logger: logger,
		ctx:    context.Background(),
	}
	for _, registered := range scheduler.jobList(config) {
		if registered.interval < 0 {
			continue
		}
		registered := registered
		spec := fmt.Sprintf("@every %s", registered.interval)
		if _, err := scheduler.cron.AddFunc(spec, func() { scheduler.runJob(registered) }); err != nil {
			return nil, fmt.Errorf("register %s job: %w", registered.name, err)
		}
	}
	return scheduler, nil
}

// Jobs returns how many jobs are scheduled.
func (scheduler *Scheduler) Jobs() int {
	return len(scheduler.cron.Entries())
}

// Run starts the cron runner and blocks until ctx ends, then waits for running
// jobs to finish.
func (scheduler *Scheduler) Run(ctx context.Context) error {
	scheduler.ctxMutex.Lock()
	scheduler.ctx = ctx
	scheduler.ctxMutex.Unlock()

	scheduler.cron.Start()
	scheduler.logger.Info("scheduler started", zap.Int("jobs", scheduler.Jobs()))
	<-ctx.Done()
	<-scheduler.cron.Stop().Done()
	scheduler.logger.Info("scheduler stopped")
	return nil
}

// RunOnce runs every job immediately, in order, and returns the first failure.
func (scheduler *Scheduler) RunOnce(ctx context.Context) error {
	var firstErr error
	for _, registered := range scheduler.jobList(Config{}) {
		if err := registered.run(ctx); err != nil {
			scheduler.logger.Warn("scheduled job failed", zap.String("job", registered.name), zap.Error(err))
			if firstErr == nil {
				firstErr = fmt.Errorf("%s: %w", registered.name, err)
			}
		}
	}
	return firstErr
}

func (scheduler *Scheduler) runJob(registered job) {
	scheduler.ctxMutex.RLock()
	ctx := scheduler.ctx
	scheduler.ctxMutex.RUnlock()
	if ctx.Err() != nil {
		return
	}
	started := time.Now()
	if err := registered.run(ctx); err != nil {
		scheduler.logger.Warn("scheduled job failed", zap.String("job", registered.name), zap.Error(err))
		return
	}
	scheduler.logger.Debug("scheduled job finished", zap.String("job", registered.name), zap.Duration("elapsed", time.Since(started)))
}

func (scheduler *Scheduler) jobList(config Config) []job {
	return []job{
		{name: jobTreasury, interval: withDefault(config.TreasuryInterval, DefaultTreasuryInterval), run: func(ctx context.Context) error {
			_, err := scheduler.jobs.RefreshTreasury(ctx)
			return err
		}},
		{name: jobInventory, interval: withDefault(config.InventoryInterval, DefaultInventoryInterval), run: func(ctx context.Context) error {
			_, err := scheduler.jobs.SyncInventory(ctx)
			return err
		}},
		{name: jobPetStats, interval: withDefault(config.PetStatsInterval, DefaultPetStatsInterval), run: func(ctx context.Context) error {
			_, err := scheduler.jobs.SyncPetStats(ctx)
			return err
		}},
		{name: jobDecay, interval: withDefault(config.DecayInterval, DefaultDecayInterval), run: func(ctx context.Context) error {
			_, err := scheduler.jobs.TickDecay(ctx)
			return err
		}},
	}
}

func withDefault(interval time.Duration, fallback time.Duration) time.Duration {
	if interval == 0 {
		return fallback
	}
	return interval
}
