package operation

import (
	"context"

	"github.com/shopspring/decimal"
)

const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Logger records domain-level events emitted by service operations.
type Logger interface {
	LogOperation(ctx context.Context, entry Entry)
}

// Entry describes a state-changing operation on a wallet or cart.
type Entry struct {
	Component string
	Operation string
	Subject   string
	Amount    decimal.Decimal
	Reference string
	Status    string
	Error     error
}

// Emit fills in the status from the error and forwards the entry to logger.
// A nil logger is a no-op.
func Emit(ctx context.Context, logger Logger, entry Entry) {
	if logger == nil {
		return
	}
	if entry.Status == "" {
		if entry.Error != nil {
			entry.Status = StatusError
		} else {
			entry.Status = StatusOK
		}
	}
	logger.LogOperation(ctx, entry)
}
