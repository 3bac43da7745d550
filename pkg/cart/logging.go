package cart

import (
	"context"
	"time"

	"github.com/MarkoPoloResearchLab/bookingledger/pkg/operation"
	"github.com/shopspring/decimal"
)

// ServiceOption configures a Service instance.
type ServiceOption func(*Service)

// WithOperationLogger wires a logger that receives callbacks for every mutation.
func WithOperationLogger(logger operation.Logger) ServiceOption {
	return func(service *Service) {
		service.logger = logger
	}
}

// WithTTL overrides how long new carts stay open.
func WithTTL(ttl time.Duration) ServiceOption {
	return func(service *Service) {
		if ttl > 0 {
			service.ttl = ttl
		}
	}
}

// WithCountCache serves GetCartItemCount through cache.
func WithCountCache(cache CountCache) ServiceOption {
	return func(service *Service) {
		service.counts = cache
	}
}

func (service *Service) logOperation(ctx context.Context, name string, subject string, reference string, err error) {
	operation.Emit(ctx, service.logger, operation.Entry{
		Component: componentName,
		Operation: name,
		Subject:   subject,
		Amount:    decimal.Zero,
		Reference: reference,
		Error:     err,
	})
}
