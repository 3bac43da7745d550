package wallet

import (
	"context"
	"fmt"
	"time"

	"github.com/MarkoPoloResearchLab/bookingledger/pkg/operation"
	"github.com/shopspring/decimal"
)

// Service contains the wallet domain logic over a Store.
type Service struct {
	store    Store
	nowFn    func() time.Time
	logger   operation.Logger
	currency string
}

// NewService wires a Service.
func NewService(store Store, now func() time.Time, options ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ErrInvalidServiceConfig)
	}
	if now == nil {
		return nil, fmt.Errorf("%w: clock dependency is nil", ErrInvalidServiceConfig)
	}
	service := &Service{store: store, nowFn: now, currency: DefaultCurrency}
	for _, option := range options {
		if option != nil {
			option(service)
		}
	}
	return service, nil
}

// GetOrCreateWallet returns the wallet of userID, creating an empty one on first use.
// Concurrent first calls converge on a single wallet.
func (service *Service) GetOrCreateWallet(ctx context.Context, userID UserID) (Wallet, error) {
	account, err := service.store.GetOrCreateWallet(ctx, userID, service.currency)
	if err != nil {
		service.logOperation(ctx, operationGetOrCreate, userID, decimal.Zero, "", err)
		return Wallet{}, err
	}
	return account, nil
}

// GetBalance returns the current balance, creating the wallet if needed.
func (service *Service) GetBalance(ctx context.Context, userID UserID) (decimal.Decimal, error) {
	account, err := service.GetOrCreateWallet(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	return account.Balance, nil
}

// AddFunds credits amount and records a deposit in one transaction.
func (service *Service) AddFunds(ctx context.Context, userID UserID, amount Amount, options FundingOptions) (Transaction, error) {
	var recorded Transaction
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		account, err := activeWallet(ctx, transactionStore, userID, service.currency)
		if err != nil {
			return err
		}
		change, err := transactionStore.CreditBalance(ctx, account.ID, amount)
		if err != nil {
			return err
		}
		recorded, err = transactionStore.InsertTransaction(ctx, Transaction{
			WalletID:          account.ID,
			UserID:            userID.String(),
			Type:              TransactionDeposit,
			Amount:            amount.Decimal(),
			BalanceBefore:     change.Before,
			BalanceAfter:      change.After,
			Description:       descriptionOrDefault(options.Description, descriptionDeposit),
			Status:            TransactionStatusCompleted,
			ExternalReference: options.ExternalReference,
			CreatedAt:         service.nowFn().UTC(),
		})
		return err
	})
	service.logOperation(ctx, operationAddFunds, userID, amount.Decimal(), options.ExternalReference, operationError)
	if operationError != nil {
		return Transaction{}, operationError
	}
	return recorded, nil
}

// WithdrawFunds debits amount and records a withdrawal.
// The balance check and the debit happen under the same guarded update.
func (service *Service) WithdrawFunds(ctx context.Context, userID UserID, amount Amount, description string) (Transaction, error) {
	var recorded Transaction
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		account, err := activeWallet(ctx, transactionStore, userID, service.currency)
		if err != nil {
			return err
		}
		if err := checkSufficientBalance(account, amount); err != nil {
			return err
		}
		recorded, err = debitAndRecord(ctx, transactionStore, account, amount, Transaction{
			Type:        TransactionWithdraw,
			Description: descriptionOrDefault(description, descriptionWithdrawal),
			CreatedAt:   service.nowFn().UTC(),
		})
		return err
	})
	service.logOperation(ctx, operationWithdrawFunds, userID, amount.Decimal(), "", operationError)
	if operationError != nil {
		return Transaction{}, operationError
	}
	return recorded, nil
}

// UpdateAutoReloadSettings stores the auto-reload preferences of a wallet.
func (service *Service) UpdateAutoReloadSettings(ctx context.Context, userID UserID, settings AutoReloadSettings) (Wallet, error) {
	if err := settings.Validate(); err != nil {
		service.logOperation(ctx, operationUpdateAutoReload, userID, settings.Amount, "", err)
		return Wallet{}, err
	}
	var updated Wallet
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		account, err := transactionStore.GetOrCreateWallet(ctx, userID, service.currency)
		if err != nil {
			return err
		}
		if err := transactionStore.UpdateAutoReload(ctx, account.ID, settings); err != nil {
			return err
		}
		updated, err = transactionStore.GetOrCreateWallet(ctx, userID, service.currency)
		return err
	})
	service.logOperation(ctx, operationUpdateAutoReload, userID, settings.Amount, settings.PaymentMethodID, operationError)
	if operationError != nil {
		return Wallet{}, operationError
	}
	return updated, nil
}

// GetTransactions returns a newest-first page of the wallet history.
func (service *Service) GetTransactions(ctx context.Context, userID UserID, limit int, offset int) ([]Transaction, error) {
	page, err := NewPage(limit, offset)
	if err != nil {
		return nil, err
	}
	account, err := service.GetOrCreateWallet(ctx, userID)
	if err != nil {
		return nil, err
	}
	return service.store.ListTransactions(ctx, account.ID, page)
}

func activeWallet(ctx context.Context, store Store, userID UserID, currency string) (Wallet, error) {
	account, err := store.GetOrCreateWallet(ctx, userID, currency)
	if err != nil {
		return Wallet{}, err
	}
	if !account.IsActive {
		return Wallet{}, ErrWalletInactive
	}
	return account, nil
}

func descriptionOrDefault(description string, fallback string) string {
	if description == "" {
		return fallback
	}
	return description
}
