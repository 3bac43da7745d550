package wallet

import (
	"context"
	"errors"
	"fmt"
)

// ProcessPayment debits a booking payment from the wallet of userID.
//
// The balance is checked twice. The pre-check reads the wallet outside any
// transaction and rejects obviously short balances with ErrInsufficientBalance.
// It is advisory only: the debit itself is a conditional update that applies
// solely while the stored balance still covers amount, and a miss there is
// reported as ErrConcurrentDepletion.
//
// A booking is paid at most once. A second payment for the same BookingID
// fails with ErrBookingAlreadyPaid and leaves the balance untouched.
func (service *Service) ProcessPayment(ctx context.Context, userID UserID, amount Amount, options PaymentOptions) (Transaction, error) {
	recorded, operationError := service.processPayment(ctx, userID, amount, options)
	service.logOperation(ctx, operationProcessPayment, userID, amount.Decimal(), options.BookingID, operationError)
	if operationError != nil {
		return Transaction{}, operationError
	}
	return recorded, nil
}

func (service *Service) processPayment(ctx context.Context, userID UserID, amount Amount, options PaymentOptions) (Transaction, error) {
	account, err := service.store.GetOrCreateWallet(ctx, userID, service.currency)
	if err != nil {
		return Transaction{}, err
	}
	if !account.IsActive {
		return Transaction{}, ErrWalletInactive
	}
	if err := checkSufficientBalance(account, amount); err != nil {
		return Transaction{}, err
	}
	if options.BookingID != "" {
		if _, err := service.store.FindBookingTransaction(ctx, options.BookingID, TransactionPayment); err == nil {
			return Transaction{}, ErrBookingAlreadyPaid
		} else if !errors.Is(err, ErrNotFound) {
			return Transaction{}, err
		}
	}

	var recorded Transaction
	err = service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		var txErr error
		recorded, txErr = debitAndRecord(ctx, transactionStore, account, amount, Transaction{
			Type:        TransactionPayment,
			Description: descriptionOrDefault(options.Description, descriptionPayment),
			BookingID:   options.BookingID,
			ServiceID:   options.ServiceID,
			CreatedAt:   service.nowFn().UTC(),
		})
		return txErr
	})
	if errors.Is(err, ErrDuplicateTransaction) {
		return Transaction{}, ErrBookingAlreadyPaid
	}
	if err != nil {
		return Transaction{}, err
	}
	return recorded, nil
}

// checkSufficientBalance is the non-authoritative pre-check.
func checkSufficientBalance(account Wallet, amount Amount) error {
	if account.Balance.LessThan(amount.Decimal()) {
		return fmt.Errorf("%w: balance %s, requested %s", ErrInsufficientBalance, account.Balance.StringFixed(amountScale), amount.String())
	}
	return nil
}

// debitAndRecord runs the guarded debit and writes the matching ledger row.
// The before/after values come from the update itself, never from an earlier read.
func debitAndRecord(ctx context.Context, store Store, account Wallet, amount Amount, template Transaction) (Transaction, error) {
	change, err := store.DebitBalanceIfSufficient(ctx, account.ID, amount)
	if err != nil {
		return Transaction{}, err
	}
	template.WalletID = account.ID
	template.UserID = account.UserID
	template.Amount = amount.Decimal()
	template.BalanceBefore = change.Before
	template.BalanceAfter = change.After
	template.Status = TransactionStatusCompleted
	return store.InsertTransaction(ctx, template)
}
