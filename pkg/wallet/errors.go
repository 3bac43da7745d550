package wallet

import (
	"errors"
	"fmt"
)

// Domain-level error values returned by the wallet service.
var (
	ErrInvalidUserID        = errors.New("invalid user id")
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrInvalidTransaction   = errors.New("invalid transaction type")
	ErrInvalidPagination    = errors.New("invalid pagination")
	ErrInvalidAutoReload    = errors.New("invalid auto reload settings")
	ErrInvalidServiceConfig = errors.New("invalid service config")
	ErrInsufficientBalance  = errors.New("insufficient balance")
	ErrWalletInactive       = errors.New("wallet inactive")
	ErrNotFound             = errors.New("wallet not found")
	ErrLedgerMismatch       = errors.New("ledger mismatch")
	ErrBookingNotPaid       = errors.New("booking not paid")

	// ErrDuplicateTransaction is returned by stores when a booking already has
	// a row of the same type.
	ErrDuplicateTransaction = errors.New("duplicate booking transaction")
	ErrBookingAlreadyPaid   = fmt.Errorf("%w: booking already paid", ErrDuplicateTransaction)
	ErrBookingRefunded      = fmt.Errorf("%w: booking already refunded", ErrDuplicateTransaction)

	// ErrConcurrentDepletion is returned when the balance passed the pre-check
	// but was spent by a concurrent writer before the guarded debit ran.
	ErrConcurrentDepletion = fmt.Errorf("%w: race detected", ErrInsufficientBalance)
)
