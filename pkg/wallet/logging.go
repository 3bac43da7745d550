package wallet

import (
	"context"

	"github.com/MarkoPoloResearchLab/bookingledger/pkg/operation"
	"github.com/shopspring/decimal"
)

// ServiceOption configures a Service instance.
type ServiceOption func(*Service)

// WithOperationLogger wires a logger that receives callbacks for every operation.
func WithOperationLogger(logger operation.Logger) ServiceOption {
	return func(service *Service) {
		service.logger = logger
	}
}

// WithCurrency overrides the currency assigned to new wallets.
func WithCurrency(currency string) ServiceOption {
	return func(service *Service) {
		if currency != "" {
			service.currency = currency
		}
	}
}

func (service *Service) logOperation(ctx context.Context, name string, userID UserID, amount decimal.Decimal, reference string, err error) {
	operation.Emit(ctx, service.logger, operation.Entry{
		Component: componentName,
		Operation: name,
		Subject:   userID.String(),
		Amount:    amount,
		Reference: reference,
		Error:     err,
	})
}
