package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MarkoPoloResearchLab/focusledger/internal/localstate"
	"github.com/MarkoPoloResearchLab/focusledger/pkg/economy"
)

type countingJobs struct {
	mutex       sync.Mutex
	calls       map[string]int
	decayErr    error
	treasuryRun chan struct{}
}

func newCountingJobs() *countingJobs {
	return &countingJobs{calls: map[string]int{}, treasuryRun: make(chan struct{}, 16)}
}

func (jobs *countingJobs) record(name string) {
	jobs.mutex.Lock()
	defer jobs.mutex.Unlock()
	jobs.calls[name]++
}

func (jobs *countingJobs) count(name string) int {
	jobs.mutex.Lock()
	defer jobs.mutex.Unlock()
	return jobs.calls[name]
}

func (jobs *countingJobs) RefreshTreasury(context.Context) (economy.Treasury, error) {
	jobs.record(jobTreasury)
	select {
	case jobs.treasuryRun <- struct{}{}:
	default:
	}
	return economy.Treasury{}, nil
}

func (jobs *countingJobs) SyncPetStats(context.Context) (localstate.State, error) {
	jobs.record(jobPetStats)
	return localstate.State{}, nil
}

func (jobs *countingJobs) SyncInventory(context.Context) (localstate.State, error) {
	jobs.record(jobInventory)
	return localstate.State{}, nil
}

func (jobs *countingJobs) TickDecay(context.Context) (localstate.State, error) {
	jobs.record(jobDecay)
	return localstate.State{}, jobs.decayErr
}

func TestNewRegistersEnabledJobs(test *testing.T) {
	test.Parallel()
	testCases := []struct {
		name         string
		config       Config
		expectedJobs int
	}{
		{name: "defaults", config: Config{}, expectedJobs: 4},
		{name: "decay disabled", config: Config{DecayInterval: -1}, expectedJobs: 3},
		{name: "only treasury", config: Config{PetStatsInterval: -1, InventoryInterval: -1, DecayInterval: -1}, expectedJobs: 1},
	}
	for _, testCase := range testCases {
		testCase := testCase
		test.Run(testCase.name, func(test *testing.T) {
			test.Parallel()
			scheduler, err := New(newCountingJobs(), testCase.config, nil)
			if err != nil {
				test.Fatalf("new: %v", err)
			}
			if scheduler.Jobs() != testCase.expectedJobs {
				test.Fatalf("expected %d jobs, got %d", testCase.expectedJobs, scheduler.Jobs())
			}
		})
	}
	if _, err := New(nil, Config{}, nil); !errors.Is(err, ErrInvalidConfig) {
		test.Fatalf("expected missing jobs to fail, got %v", err)
	}
}

func TestRunOnceRunsEveryJobAndReportsFirstFailure(test *testing.T) {
	test.Parallel()
	jobs := newCountingJobs()
	jobs.decayErr = errors.New("ledger down")
	scheduler, err := New(jobs, Config{}, nil)
	if err != nil {
		test.Fatalf("new: %v", err)
	}
	if err := scheduler.RunOnce(context.Background()); !errors.Is(err, jobs.decayErr) {
		test.Fatalf("expected decay failure, got %v", err)
	}
	for _, name := range []string{jobTreasury, jobInventory, jobPetStats, jobDecay} {
		if jobs.count(name) != 1 {
			test.Fatalf("expected %s to run once, got %d", name, jobs.count(name))
		}
	}
}

func TestRunTicksUntilCanceled(test *testing.T) {
	test.Parallel()
	jobs := newCountingJobs()
	scheduler, err := New(jobs, Config{TreasuryInterval: time.Second, PetStatsInterval: -1, InventoryInterval: -1, DecayInterval: -1}, nil)
	if err != nil {
		test.Fatalf("new: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- scheduler.Run(ctx)
	}()

	select {
	case <-jobs.treasuryRun:
	case <-time.After(5 * time.Second):
		test.Fatalf("treasury job never ran")
	}
	cancel()
	select {
	case err := <-done:
		if err != nil {
			test.Fatalf("run: %v", err)
		}
	case <-time.After(5 * time.Second):
		test.Fatalf("scheduler did not stop")
	}
}
