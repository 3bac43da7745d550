package gormstore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MarkoPoloResearchLab/bookingledger/pkg/wallet"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var walletTestNow = time.Date(2026, time.July, 1, 8, 0, 0, 0, time.UTC)

func newWalletService(test *testing.T, store wallet.Store) *wallet.Service {
	test.Helper()
	service, err := wallet.NewService(store, func() time.Time { return walletTestNow })
	require.NoError(test, err)
	return service
}

func mustUserID(test *testing.T, raw string) wallet.UserID {
	test.Helper()
	userID, err := wallet.NewUserID(raw)
	require.NoError(test, err)
	return userID
}

func mustAmount(test *testing.T, raw string) wallet.Amount {
	test.Helper()
	amount, err := wallet.ParseAmount(raw)
	require.NoError(test, err)
	return amount
}

func requireDecimal(test *testing.T, expected string, actual decimal.Decimal) {
	test.Helper()
	require.Truef(test, decimal.RequireFromString(expected).Equal(actual), "expected %s, got %s", expected, actual)
}

// racingWalletStore lets a competing payment land between the pre-check read and the guarded debit.
type racingWalletStore struct {
	*WalletStore
	once    sync.Once
	compete func()
}

func (store *racingWalletStore) GetOrCreateWallet(ctx context.Context, userID wallet.UserID, currency string) (wallet.Wallet, error) {
	account, err := store.WalletStore.GetOrCreateWallet(ctx, userID, currency)
	if err != nil {
		return account, err
	}
	store.once.Do(store.compete)
	return account, nil
}

func TestWalletStoreGetOrCreateIsIdempotent(test *testing.T) {
	test.Parallel()
	store := NewWalletStore(newTestDatabase(test))
	ctx := context.Background()
	userID := mustUserID(test, "user-idem")

	first, err := store.GetOrCreateWallet(ctx, userID, wallet.DefaultCurrency)
	require.NoError(test, err)
	second, err := store.GetOrCreateWallet(ctx, userID, wallet.DefaultCurrency)
	require.NoError(test, err)

	require.Equal(test, first.ID, second.ID)
	require.True(test, first.IsActive)
	require.Equal(test, "ZAR", first.Currency)
	requireDecimal(test, "0", first.Balance)

	var count int64
	require.NoError(test, store.db.Model(&Wallet{}).Where("user_id = ?", userID.String()).Count(&count).Error)
	require.EqualValues(test, 1, count)
}

func TestWalletStoreLedgerRoundTrip(test *testing.T) {
	test.Parallel()
	store := NewWalletStore(newTestDatabase(test))
	service := newWalletService(test, store)
	ctx := context.Background()
	userID := mustUserID(test, "user-ledger")

	_, err := service.AddFunds(ctx, userID, mustAmount(test, "150.00"), wallet.FundingOptions{ExternalReference: "pi_1"})
	require.NoError(test, err)
	payment, err := service.ProcessPayment(ctx, userID, mustAmount(test, "80.25"), wallet.PaymentOptions{BookingID: "booking-1", ServiceID: "svc-1"})
	require.NoError(test, err)
	requireDecimal(test, "150", payment.BalanceBefore)
	requireDecimal(test, "69.75", payment.BalanceAfter)
	_, err = service.WithdrawFunds(ctx, userID, mustAmount(test, "19.75"), "")
	require.NoError(test, err)

	balance, err := service.GetBalance(ctx, userID)
	require.NoError(test, err)
	requireDecimal(test, "50", balance)

	replayed, err := service.VerifyLedger(ctx, userID)
	require.NoError(test, err)
	requireDecimal(test, "50", replayed)

	history, err := service.GetTransactions(ctx, userID, 0, 0)
	require.NoError(test, err)
	require.Len(test, history, 3)
	require.Equal(test, wallet.TransactionWithdraw, history[0].Type)
	require.Equal(test, wallet.TransactionPayment, history[1].Type)
	require.Equal(test, "booking-1", history[1].BookingID)
	require.Equal(test, wallet.TransactionDeposit, history[2].Type)
	require.Equal(test, "pi_1", history[2].ExternalReference)
	require.True(test, history[2].CreatedAt.Equal(walletTestNow))

	page, err := service.GetTransactions(ctx, userID, 1, 1)
	require.NoError(test, err)
	require.Len(test, page, 1)
	require.Equal(test, history[1].ID, page[0].ID)
}

func TestWalletStorePaymentRaceLeavesOneDebit(test *testing.T) {
	test.Parallel()
	db := newTestDatabase(test)
	plain := NewWalletStore(db)
	ctx := context.Background()
	userID := mustUserID(test, "user-race")
	_, err := newWalletService(test, plain).AddFunds(ctx, userID, mustAmount(test, "100"), wallet.FundingOptions{})
	require.NoError(test, err)

	racing := &racingWalletStore{WalletStore: plain}
	racing.compete = func() {
		_, competeErr := newWalletService(test, plain).ProcessPayment(ctx, userID, mustAmount(test, "80"), wallet.PaymentOptions{BookingID: "booking-a"})
		require.NoError(test, competeErr)
	}

	_, err = newWalletService(test, racing).ProcessPayment(ctx, userID, mustAmount(test, "80"), wallet.PaymentOptions{BookingID: "booking-b"})
	require.ErrorIs(test, err, wallet.ErrConcurrentDepletion)
	require.ErrorIs(test, err, wallet.ErrInsufficientBalance)

	balance, err := newWalletService(test, plain).GetBalance(ctx, userID)
	require.NoError(test, err)
	requireDecimal(test, "20", balance)

	var payments int64
	require.NoError(test, db.Model(&WalletTransaction{}).Where("type = ?", "payment").Count(&payments).Error)
	require.EqualValues(test, 1, payments)
}

func TestWalletStoreConcurrentPaymentsNeverOverdraw(test *testing.T) {
	test.Parallel()
	db := newTestDatabase(test)
	store := NewWalletStore(db)
	service := newWalletService(test, store)
	ctx := context.Background()
	userID := mustUserID(test, "user-contended")
	_, err := service.AddFunds(ctx, userID, mustAmount(test, "100"), wallet.FundingOptions{})
	require.NoError(test, err)

	const attempts = 6
	var waitGroup sync.WaitGroup
	errs := make(chan error, attempts)
	for index := 0; index < attempts; index++ {
		waitGroup.Add(1)
		go func() {
			defer waitGroup.Done()
			_, paymentErr := service.ProcessPayment(ctx, userID, mustAmount(test, "30"), wallet.PaymentOptions{})
			errs <- paymentErr
		}()
	}
	waitGroup.Wait()
	close(errs)

	succeeded := 0
	for paymentErr := range errs {
		if paymentErr == nil {
			succeeded++
			continue
		}
		require.True(test, errors.Is(paymentErr, wallet.ErrInsufficientBalance), "unexpected error: %v", paymentErr)
	}
	require.Equal(test, 3, succeeded)

	balance, err := service.GetBalance(ctx, userID)
	require.NoError(test, err)
	requireDecimal(test, "10", balance)
	_, err = service.VerifyLedger(ctx, userID)
	require.NoError(test, err)
}

func TestWalletStoreBalanceCheckConstraint(test *testing.T) {
	test.Parallel()
	db := newTestDatabase(test)
	store := NewWalletStore(db)
	account, err := store.GetOrCreateWallet(context.Background(), mustUserID(test, "user-check"), wallet.DefaultCurrency)
	require.NoError(test, err)

	err = db.Model(&Wallet{}).Where("id = ?", account.ID).Update("balance", decimal.NewFromInt(-1)).Error
	require.Error(test, err)
}

func TestWalletStoreDebitWithoutFunds(test *testing.T) {
	test.Parallel()
	store := NewWalletStore(newTestDatabase(test))
	account, err := store.GetOrCreateWallet(context.Background(), mustUserID(test, "user-empty"), wallet.DefaultCurrency)
	require.NoError(test, err)

	_, err = store.DebitBalanceIfSufficient(context.Background(), account.ID, mustAmount(test, "1"))
	require.ErrorIs(test, err, wallet.ErrConcurrentDepletion)
	require.Contains(test, err.Error(), "store.wallet.debit")
}

func TestWalletStoreAutoReload(test *testing.T) {
	test.Parallel()
	store := NewWalletStore(newTestDatabase(test))
	service := newWalletService(test, store)
	userID := mustUserID(test, "user-reload")

	updated, err := service.UpdateAutoReloadSettings(context.Background(), userID, wallet.AutoReloadSettings{
		Enabled:         true,
		Threshold:       decimal.RequireFromString("25.50"),
		Amount:          decimal.RequireFromString("100"),
		PaymentMethodID: "pm_123",
	})
	require.NoError(test, err)
	require.True(test, updated.AutoReload.Enabled)
	requireDecimal(test, "25.5", updated.AutoReload.Threshold)
	requireDecimal(test, "100", updated.AutoReload.Amount)
	require.Equal(test, "pm_123", updated.AutoReload.PaymentMethodID)

	err = store.UpdateAutoReload(context.Background(), "missing-wallet", wallet.AutoReloadSettings{})
	require.ErrorIs(test, err, wallet.ErrNotFound)
}

// bookingRaceStore lets a competing payment for the same booking land after the booking lookup.
type bookingRaceStore struct {
	*WalletStore
	once    sync.Once
	compete func()
}

func (store *bookingRaceStore) FindBookingTransaction(ctx context.Context, bookingID string, transactionType wallet.TransactionType) (wallet.Transaction, error) {
	transaction, err := store.WalletStore.FindBookingTransaction(ctx, bookingID, transactionType)
	store.once.Do(store.compete)
	return transaction, err
}

func TestWalletStoreRejectsDuplicateBookingRows(test *testing.T) {
	test.Parallel()
	store := NewWalletStore(newTestDatabase(test))
	ctx := context.Background()
	account, err := store.GetOrCreateWallet(ctx, mustUserID(test, "user-dup"), wallet.DefaultCurrency)
	require.NoError(test, err)

	row := func(transactionType wallet.TransactionType, bookingID string) wallet.Transaction {
		return wallet.Transaction{
			WalletID:  account.ID,
			UserID:    account.UserID,
			Type:      transactionType,
			Amount:    decimal.RequireFromString("10"),
			Status:    wallet.TransactionStatusCompleted,
			BookingID: bookingID,
		}
	}

	_, err = store.InsertTransaction(ctx, row(wallet.TransactionPayment, "booking-1"))
	require.NoError(test, err)
	_, err = store.InsertTransaction(ctx, row(wallet.TransactionPayment, "booking-1"))
	require.ErrorIs(test, err, wallet.ErrDuplicateTransaction)

	_, err = store.InsertTransaction(ctx, row(wallet.TransactionDeposit, "booking-1"))
	require.NoError(test, err)
	_, err = store.InsertTransaction(ctx, row(wallet.TransactionDeposit, "booking-1"))
	require.ErrorIs(test, err, wallet.ErrDuplicateTransaction)

	// Rows without a booking never collide.
	_, err = store.InsertTransaction(ctx, row(wallet.TransactionPayment, ""))
	require.NoError(test, err)
	_, err = store.InsertTransaction(ctx, row(wallet.TransactionPayment, ""))
	require.NoError(test, err)

	payment, err := store.FindBookingTransaction(ctx, "booking-1", wallet.TransactionPayment)
	require.NoError(test, err)
	require.Equal(test, "booking-1", payment.BookingID)
	_, err = store.FindBookingTransaction(ctx, "booking-2", wallet.TransactionPayment)
	require.ErrorIs(test, err, wallet.ErrNotFound)
}

func TestWalletStoreDuplicateBookingRaceChargesOnce(test *testing.T) {
	test.Parallel()
	db := newTestDatabase(test)
	plain := NewWalletStore(db)
	ctx := context.Background()
	userID := mustUserID(test, "user-double")
	_, err := newWalletService(test, plain).AddFunds(ctx, userID, mustAmount(test, "100"), wallet.FundingOptions{})
	require.NoError(test, err)

	racing := &bookingRaceStore{WalletStore: plain}
	racing.compete = func() {
		_, competeErr := newWalletService(test, plain).ProcessPayment(ctx, userID, mustAmount(test, "30"), wallet.PaymentOptions{BookingID: "booking-same"})
		require.NoError(test, competeErr)
	}

	_, err = newWalletService(test, racing).ProcessPayment(ctx, userID, mustAmount(test, "30"), wallet.PaymentOptions{BookingID: "booking-same"})
	require.ErrorIs(test, err, wallet.ErrBookingAlreadyPaid)

	balance, err := newWalletService(test, plain).GetBalance(ctx, userID)
	require.NoError(test, err)
	requireDecimal(test, "70", balance)

	var payments int64
	require.NoError(test, db.Model(&WalletTransaction{}).Where("booking_id = ?", "booking-same").Count(&payments).Error)
	require.EqualValues(test, 1, payments)
}

func TestWalletStoreRefundsBookingOnce(test *testing.T) {
	test.Parallel()
	store := NewWalletStore(newTestDatabase(test))
	service := newWalletService(test, store)
	ctx := context.Background()
	userID := mustUserID(test, "user-refund")

	_, err := service.AddFunds(ctx, userID, mustAmount(test, "100"), wallet.FundingOptions{})
	require.NoError(test, err)
	_, err = service.ProcessPayment(ctx, userID, mustAmount(test, "80"), wallet.PaymentOptions{BookingID: "booking-r"})
	require.NoError(test, err)

	refunded, err := service.RefundBooking(ctx, userID, "booking-r", mustAmount(test, "72"), "")
	require.NoError(test, err)
	require.Equal(test, wallet.TransactionDeposit, refunded.Type)
	require.Equal(test, "booking-r", refunded.BookingID)

	_, err = service.RefundBooking(ctx, userID, "booking-r", mustAmount(test, "72"), "")
	require.ErrorIs(test, err, wallet.ErrBookingRefunded)
	_, err = service.RefundBooking(ctx, mustUserID(test, "someone-else"), "booking-r", mustAmount(test, "1"), "")
	require.ErrorIs(test, err, wallet.ErrBookingNotPaid)

	balance, err := service.GetBalance(ctx, userID)
	require.NoError(test, err)
	requireDecimal(test, "92", balance)

	replayed, err := service.VerifyLedger(ctx, userID)
	require.NoError(test, err)
	requireDecimal(test, "92", replayed)
}
