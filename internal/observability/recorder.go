// Package observability turns domain operation entries into zap logs and Prometheus counters.
package observability

import (
	"context"
	"errors"
	"fmt"

	"github.com/MarkoPoloResearchLab/bookingledger/pkg/operation"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const (
	metricsNamespace = "bookingledger"

	labelComponent = "component"
	labelOperation = "operation"
	labelStatus    = "status"
)

// ErrInvalidConfig reports a missing dependency.
var ErrInvalidConfig = errors.New("invalid observability config")

// OperationRecorder implements operation.Logger.
type OperationRecorder struct {
	logger     *zap.Logger
	operations *prometheus.CounterVec
}

// NewOperationRecorder registers the operation counter on registerer.
func NewOperationRecorder(logger *zap.Logger, registerer prometheus.Registerer) (*OperationRecorder, error) {
	if logger == nil {
		return nil, fmt.Errorf("%w: logger is nil", ErrInvalidConfig)
	}
	if registerer == nil {
		return nil, fmt.Errorf("%w: registerer is nil", ErrInvalidConfig)
	}
	operations := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "operations_total",
			Help:      "Wallet and cart operations by outcome.",
		},
		[]string{labelComponent, labelOperation, labelStatus},
	)
	if err := registerer.Register(operations); err != nil {
		return nil, fmt.Errorf("register operations counter: %w", err)
	}
	return &OperationRecorder{logger: logger, operations: operations}, nil
}

func (recorder *OperationRecorder) LogOperation(_ context.Context, entry operation.Entry) {
	recorder.operations.WithLabelValues(entry.Component, entry.Operation, entry.Status).Inc()

	fields := []zap.Field{
		zap.String(labelComponent, entry.Component),
		zap.String(labelOperation, entry.Operation),
		zap.String(labelStatus, entry.Status),
	}
	if entry.Subject != "" {
		fields = append(fields, zap.String("subject", entry.Subject))
	}
	if !entry.Amount.IsZero() {
		fields = append(fields, zap.String("amount", entry.Amount.StringFixed(2)))
	}
	if entry.Reference != "" {
		fields = append(fields, zap.String("reference", entry.Reference))
	}
	if entry.Error != nil {
		recorder.logger.Warn("operation failed", append(fields, zap.Error(entry.Error))...)
		return
	}
	recorder.logger.Info("operation completed", fields...)
}

var _ operation.Logger = (*OperationRecorder)(nil)
