package wallet

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// FindBookingPayment returns the payment userID made for bookingID.
// A booking paid by someone else is reported as ErrBookingNotPaid.
func (service *Service) FindBookingPayment(ctx context.Context, userID UserID, bookingID string) (Transaction, error) {
	return findBookingPayment(ctx, service.store, userID, bookingID)
}

func findBookingPayment(ctx context.Context, store Store, userID UserID, bookingID string) (Transaction, error) {
	bookingID = strings.TrimSpace(bookingID)
	if bookingID == "" {
		return Transaction{}, fmt.Errorf("%w: missing booking id", ErrBookingNotPaid)
	}
	payment, err := store.FindBookingTransaction(ctx, bookingID, TransactionPayment)
	if errors.Is(err, ErrNotFound) {
		return Transaction{}, fmt.Errorf("%w: %s", ErrBookingNotPaid, bookingID)
	}
	if err != nil {
		return Transaction{}, err
	}
	if payment.UserID != userID.String() {
		return Transaction{}, fmt.Errorf("%w: %s", ErrBookingNotPaid, bookingID)
	}
	return payment, nil
}

// RefundBooking credits amount back for a booking userID paid for and records
// it as a deposit carrying the booking id. Each booking is refunded once;
// later calls fail with ErrBookingRefunded. amount may not exceed the payment.
func (service *Service) RefundBooking(ctx context.Context, userID UserID, bookingID string, amount Amount, description string) (Transaction, error) {
	var recorded Transaction
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		payment, err := findBookingPayment(ctx, transactionStore, userID, bookingID)
		if err != nil {
			return err
		}
		if amount.Decimal().GreaterThan(payment.Amount) {
			return fmt.Errorf("%w: refund %s exceeds payment %s", ErrInvalidAmount, amount.String(), payment.Amount.StringFixed(amountScale))
		}
		if _, err := transactionStore.FindBookingTransaction(ctx, payment.BookingID, TransactionDeposit); err == nil {
			return ErrBookingRefunded
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}
		account, err := activeWallet(ctx, transactionStore, userID, service.currency)
		if err != nil {
			return err
		}
		change, err := transactionStore.CreditBalance(ctx, account.ID, amount)
		if err != nil {
			return err
		}
		recorded, err = transactionStore.InsertTransaction(ctx, Transaction{
			WalletID:      account.ID,
			UserID:        userID.String(),
			Type:          TransactionDeposit,
			Amount:        amount.Decimal(),
			BalanceBefore: change.Before,
			BalanceAfter:  change.After,
			Description:   descriptionOrDefault(description, descriptionRefund),
			Status:        TransactionStatusCompleted,
			BookingID:     payment.BookingID,
			ServiceID:     payment.ServiceID,
			CreatedAt:     service.nowFn().UTC(),
		})
		return err
	})
	if errors.Is(operationError, ErrDuplicateTransaction) {
		operationError = ErrBookingRefunded
	}
	service.logOperation(ctx, operationRefundBooking, userID, amount.Decimal(), bookingID, operationError)
	if operationError != nil {
		return Transaction{}, operationError
	}
	return recorded, nil
}
