package wallet

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// UserID identifies a wallet owner.
type UserID struct {
	value string
}

// NewUserID validates and normalizes a user id.
func NewUserID(raw string) (UserID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return UserID{}, fmt.Errorf("%w: empty value", ErrInvalidUserID)
	}
	return UserID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id UserID) String() string {
	return id.value
}

// Amount is a strictly positive money value with at most two fractional digits.
type Amount struct {
	value decimal.Decimal
}

// NewAmount validates a positive two-decimal amount.
func NewAmount(value decimal.Decimal) (Amount, error) {
	if !value.IsPositive() {
		return Amount{}, fmt.Errorf("%w: must be greater than zero", ErrInvalidAmount)
	}
	if !value.Equal(value.Round(amountScale)) {
		return Amount{}, fmt.Errorf("%w: more than %d decimal places", ErrInvalidAmount, amountScale)
	}
	return Amount{value: value}, nil
}

// ParseAmount parses a decimal string such as "150.00".
func ParseAmount(raw string) (Amount, error) {
	value, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return Amount{}, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}
	return NewAmount(value)
}

// Decimal exposes the underlying value.
func (amount Amount) Decimal() decimal.Decimal {
	return amount.value
}

// String renders the amount with two decimals.
func (amount Amount) String() string {
	return amount.value.StringFixed(amountScale)
}

// TransactionType classifies a wallet transaction.
type TransactionType string

const (
	TransactionDeposit  TransactionType = "deposit"
	TransactionWithdraw TransactionType = "withdraw"
	TransactionPayment  TransactionType = "payment"
)

// ParseTransactionType validates a stored transaction type.
func ParseTransactionType(raw string) (TransactionType, error) {
	switch TransactionType(raw) {
	case TransactionDeposit, TransactionWithdraw, TransactionPayment:
		return TransactionType(raw), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidTransaction, raw)
	}
}

// String returns the stored representation.
func (transactionType TransactionType) String() string {
	return string(transactionType)
}

// Apply moves balance by amount in the direction of the transaction type.
func (transactionType TransactionType) Apply(balance decimal.Decimal, amount decimal.Decimal) decimal.Decimal {
	if transactionType == TransactionDeposit {
		return balance.Add(amount)
	}
	return balance.Sub(amount)
}

// TransactionStatusCompleted is the only status written today.
const TransactionStatusCompleted = "completed"

// AutoReloadSettings is stored on the wallet; no reload is ever triggered from it.
type AutoReloadSettings struct {
	Enabled         bool
	Threshold       decimal.Decimal
	Amount          decimal.Decimal
	PaymentMethodID string
}

// Validate rejects negative thresholds and amounts.
func (settings AutoReloadSettings) Validate() error {
	if settings.Threshold.IsNegative() {
		return fmt.Errorf("%w: negative threshold", ErrInvalidAutoReload)
	}
	if settings.Amount.IsNegative() {
		return fmt.Errorf("%w: negative amount", ErrInvalidAutoReload)
	}
	return nil
}

// Wallet is the stored balance record of a user.
type Wallet struct {
	ID         string
	UserID     string
	Balance    decimal.Decimal
	Currency   string
	IsActive   bool
	AutoReload AutoReloadSettings
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Transaction is an immutable ledger row. Empty reference fields are absent.
type Transaction struct {
	ID                int64
	WalletID          string
	UserID            string
	Type              TransactionType
	Amount            decimal.Decimal
	BalanceBefore     decimal.Decimal
	BalanceAfter      decimal.Decimal
	Description       string
	Status            string
	BookingID         string
	ServiceID         string
	ExternalReference string
	CreatedAt         time.Time
}

// BalanceChange is the balance observed immediately around an atomic update.
type BalanceChange struct {
	Before decimal.Decimal
	After  decimal.Decimal
}

// FundingOptions carries optional deposit metadata.
type FundingOptions struct {
	ExternalReference string
	Description       string
}

// PaymentOptions carries optional booking references for a payment.
type PaymentOptions struct {
	BookingID   string
	ServiceID   string
	Description string
}

// Page bounds a transaction history query.
type Page struct {
	Limit  int
	Offset int
}

// NewPage applies the default limit and rejects negative values.
func NewPage(limit int, offset int) (Page, error) {
	if limit < 0 {
		return Page{}, fmt.Errorf("%w: negative limit", ErrInvalidPagination)
	}
	if offset < 0 {
		return Page{}, fmt.Errorf("%w: negative offset", ErrInvalidPagination)
	}
	if limit == 0 {
		limit = DefaultTransactionLimit
	}
	if limit > MaxTransactionLimit {
		limit = MaxTransactionLimit
	}
	return Page{Limit: limit, Offset: offset}, nil
}

// Store persists wallets and their transactions.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error
	GetOrCreateWallet(ctx context.Context, userID UserID, currency string) (Wallet, error)
	// CreditBalance increments the balance unconditionally.
	CreditBalance(ctx context.Context, walletID string, amount Amount) (BalanceChange, error)
	// DebitBalanceIfSufficient decrements the balance only while it covers amount
	// and returns ErrConcurrentDepletion when no row qualified.
	DebitBalanceIfSufficient(ctx context.Context, walletID string, amount Amount) (BalanceChange, error)
	// InsertTransaction returns ErrDuplicateTransaction when the booking already
	// has a row of the same type.
	InsertTransaction(ctx context.Context, transaction Transaction) (Transaction, error)
	// FindBookingTransaction returns the row of transactionType recorded for
	// bookingID, or ErrNotFound.
	FindBookingTransaction(ctx context.Context, bookingID string, transactionType TransactionType) (Transaction, error)
	// ListTransactions returns newest first.
	ListTransactions(ctx context.Context, walletID string, page Page) ([]Transaction, error)
	// ListAllTransactions returns every transaction in creation order.
	ListAllTransactions(ctx context.Context, walletID string) ([]Transaction, error)
	UpdateAutoReload(ctx context.Context, walletID string, settings AutoReloadSettings) error
}
