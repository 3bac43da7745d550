package pgstore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/MarkoPoloResearchLab/bookingledger/internal/store/gormstore"
	"github.com/MarkoPoloResearchLab/bookingledger/pkg/wallet"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testDatabaseURLEnv = "BOOKINGLEDGER_TEST_DATABASE_URL"

func newIntegrationStore(test *testing.T) *Store {
	test.Helper()
	databaseURL := os.Getenv(testDatabaseURLEnv)
	if testing.Short() || databaseURL == "" {
		test.Skipf("set %s to run postgres integration tests", testDatabaseURLEnv)
	}
	gormDB, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(test, err)
	require.NoError(test, gormstore.Migrate(gormDB))
	sqlDB, err := gormDB.DB()
	require.NoError(test, err)
	require.NoError(test, sqlDB.Close())

	pool, err := pgxpool.New(context.Background(), databaseURL)
	require.NoError(test, err)
	test.Cleanup(pool.Close)
	return New(pool)
}

func mustAmount(test *testing.T, raw string) wallet.Amount {
	test.Helper()
	amount, err := wallet.ParseAmount(raw)
	require.NoError(test, err)
	return amount
}

func TestStorePaymentRace(test *testing.T) {
	store := newIntegrationStore(test)
	service, err := wallet.NewService(store, time.Now)
	require.NoError(test, err)
	ctx := context.Background()
	userID, err := wallet.NewUserID("pg-" + uuid.NewString())
	require.NoError(test, err)

	_, err = service.AddFunds(ctx, userID, mustAmount(test, "100.00"), wallet.FundingOptions{ExternalReference: "pi_pg"})
	require.NoError(test, err)

	bookingID := "booking-" + uuid.NewString()
	stale, err := store.GetOrCreateWallet(ctx, userID, wallet.DefaultCurrency)
	require.NoError(test, err)
	_, err = service.ProcessPayment(ctx, userID, mustAmount(test, "80.00"), wallet.PaymentOptions{BookingID: bookingID})
	require.NoError(test, err)

	_, err = store.DebitBalanceIfSufficient(ctx, stale.ID, mustAmount(test, "80.00"))
	require.ErrorIs(test, err, wallet.ErrConcurrentDepletion)

	balance, err := service.GetBalance(ctx, userID)
	require.NoError(test, err)
	require.True(test, decimal.RequireFromString("20").Equal(balance), "balance %s", balance)

	replayed, err := service.VerifyLedger(ctx, userID)
	require.NoError(test, err)
	require.True(test, balance.Equal(replayed))

	history, err := service.GetTransactions(ctx, userID, 10, 0)
	require.NoError(test, err)
	require.Len(test, history, 2)
	require.Equal(test, bookingID, history[0].BookingID)
	require.Equal(test, "pi_pg", history[1].ExternalReference)
}

func TestStoreAutoReloadUnknownWallet(test *testing.T) {
	store := newIntegrationStore(test)
	err := store.UpdateAutoReload(context.Background(), uuid.NewString(), wallet.AutoReloadSettings{})
	require.ErrorIs(test, err, wallet.ErrNotFound)
}

func TestStoreBookingPaidAndRefundedOnce(test *testing.T) {
	store := newIntegrationStore(test)
	service, err := wallet.NewService(store, time.Now)
	require.NoError(test, err)
	ctx := context.Background()
	userID, err := wallet.NewUserID("pg-" + uuid.NewString())
	require.NoError(test, err)
	bookingID := "booking-" + uuid.NewString()

	_, err = service.AddFunds(ctx, userID, mustAmount(test, "100.00"), wallet.FundingOptions{})
	require.NoError(test, err)
	payment, err := service.ProcessPayment(ctx, userID, mustAmount(test, "40.00"), wallet.PaymentOptions{BookingID: bookingID})
	require.NoError(test, err)

	duplicate := payment
	duplicate.ID = 0
	_, err = store.InsertTransaction(ctx, duplicate)
	require.ErrorIs(test, err, wallet.ErrDuplicateTransaction)
	_, err = service.ProcessPayment(ctx, userID, mustAmount(test, "40.00"), wallet.PaymentOptions{BookingID: bookingID})
	require.ErrorIs(test, err, wallet.ErrBookingAlreadyPaid)

	found, err := store.FindBookingTransaction(ctx, bookingID, wallet.TransactionPayment)
	require.NoError(test, err)
	require.Equal(test, payment.ID, found.ID)

	_, err = service.RefundBooking(ctx, userID, bookingID, mustAmount(test, "36.00"), "")
	require.NoError(test, err)
	_, err = service.RefundBooking(ctx, userID, bookingID, mustAmount(test, "36.00"), "")
	require.ErrorIs(test, err, wallet.ErrBookingRefunded)

	balance, err := service.GetBalance(ctx, userID)
	require.NoError(test, err)
	require.True(test, decimal.RequireFromString("96").Equal(balance), "balance %s", balance)
}
