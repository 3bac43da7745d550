package operation

import (
	"context"
	"errors"
	"testing"
)

type recorderLogger struct {
	entries []Entry
}

func (logger *recorderLogger) LogOperation(_ context.Context, entry Entry) {
	logger.entries = append(logger.entries, entry)
}

func TestEmitDerivesStatus(test *testing.T) {
	test.Parallel()
	logger := &recorderLogger{}
	Emit(context.Background(), logger, Entry{Component: "wallet", Operation: "add_funds"})
	Emit(context.Background(), logger, Entry{Component: "wallet", Operation: "add_funds", Error: errors.New("boom")})
	Emit(context.Background(), logger, Entry{Component: "cart", Operation: "merge", Status: "skipped"})

	if len(logger.entries) != 3 {
		test.Fatalf("expected 3 entries, got %d", len(logger.entries))
	}
	if logger.entries[0].Status != StatusOK {
		test.Fatalf("expected ok status, got %q", logger.entries[0].Status)
	}
	if logger.entries[1].Status != StatusError {
		test.Fatalf("expected error status, got %q", logger.entries[1].Status)
	}
	if logger.entries[2].Status != "skipped" {
		test.Fatalf("expected explicit status to be kept, got %q", logger.entries[2].Status)
	}
}

func TestEmitNilLogger(test *testing.T) {
	test.Parallel()
	Emit(context.Background(), nil, Entry{Operation: "noop"})
}
