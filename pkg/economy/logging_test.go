package economy

import (
	"context"
	"testing"
)

type recorderLogger struct {
	entries []OperationLog
}

func (logger *recorderLogger) LogOperation(_ context.Context, entry OperationLog) {
	logger.entries = append(logger.entries, entry)
}

func TestServiceLogsClaimOperation(test *testing.T) {
	test.Parallel()
	logger := &recorderLogger{}
	fixture := newEconomyFixture(test, Amount(10*TokenScale), WithOperationLogger(logger))
	logger.entries = nil

	if _, err := fixture.claim(test, "claim-1"); err != nil {
		test.Fatalf("claim failed: %v", err)
	}
	if len(logger.entries) != 1 {
		test.Fatalf("expected one log entry, got %d", len(logger.entries))
	}
	entry := logger.entries[0]
	if entry.Operation != operationClaimSessionReward || entry.Sender != fixture.user || entry.Amount != DefaultSessionReward || entry.IdempotencyKey != "claim-1" {
		test.Fatalf("unexpected log entry: %+v", entry)
	}
	if entry.Error != nil || entry.Status != operationStatusOK {
		test.Fatalf("expected successful log entry, got %+v", entry)
	}
}

func TestServiceLogsErrorStatus(test *testing.T) {
	test.Parallel()
	logger := &recorderLogger{}
	fixture := newEconomyFixture(test, 0, WithOperationLogger(logger))
	logger.entries = nil

	if _, err := fixture.claim(test, "claim-1"); err == nil {
		test.Fatalf("expected error")
	}
	if len(logger.entries) != 1 {
		test.Fatalf("expected one log entry, got %d", len(logger.entries))
	}
	if logger.entries[0].Status != operationStatusError || logger.entries[0].Error == nil {
		test.Fatalf("expected error log entry, got %+v", logger.entries[0])
	}
}

func TestServiceLogsSubmitReplay(test *testing.T) {
	test.Parallel()
	logger := &recorderLogger{}
	fixture := newEconomyFixture(test, Amount(10*TokenScale), WithOperationLogger(logger))
	submission := Submission{
		Digest:    "digest-replay",
		Sender:    fixture.user,
		Network:   testNetwork,
		GasBudget: testGasPerCall,
		Call:      Call{Kind: CallClaimSessionReward, IdempotencyKey: "claim-1"},
	}
	for attempt := 0; attempt < 2; attempt++ {
		if _, err := fixture.service.Submit(context.Background(), submission); err != nil {
			test.Fatalf("submit %d failed: %v", attempt, err)
		}
	}
	last := logger.entries[len(logger.entries)-1]
	if !last.Replayed || last.Digest != "digest-replay" {
		test.Fatalf("expected replayed submit log, got %+v", last)
	}
}
