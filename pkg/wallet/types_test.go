package wallet

import (
	"errors"
	"testing"
)

func TestNewAmountValidation(test *testing.T) {
	test.Parallel()
	testCases := []struct {
		name    string
		raw     string
		want    string
		wantErr error
	}{
		{name: "whole", raw: "100", want: "100.00"},
		{name: "two decimals", raw: "80.25", want: "80.25"},
		{name: "trailing zeros", raw: "12.500", want: "12.50"},
		{name: "zero", raw: "0", wantErr: ErrInvalidAmount},
		{name: "negative", raw: "-5", wantErr: ErrInvalidAmount},
		{name: "three decimals", raw: "1.005", wantErr: ErrInvalidAmount},
		{name: "not a number", raw: "ten", wantErr: ErrInvalidAmount},
	}
	for _, testCase := range testCases {
		testCase := testCase
		test.Run(testCase.name, func(test *testing.T) {
			test.Parallel()
			amount, err := ParseAmount(testCase.raw)
			if testCase.wantErr != nil {
				if !errors.Is(err, testCase.wantErr) {
					test.Fatalf("expected %v, got %v", testCase.wantErr, err)
				}
				return
			}
			if err != nil {
				test.Fatalf("parse amount: %v", err)
			}
			if amount.String() != testCase.want {
				test.Fatalf("expected %s, got %s", testCase.want, amount.String())
			}
		})
	}
}

func TestNewUserIDRejectsBlank(test *testing.T) {
	test.Parallel()
	if _, err := NewUserID("   "); !errors.Is(err, ErrInvalidUserID) {
		test.Fatalf("expected ErrInvalidUserID, got %v", err)
	}
	userID, err := NewUserID("  user-1 ")
	if err != nil {
		test.Fatalf("user id: %v", err)
	}
	if userID.String() != "user-1" {
		test.Fatalf("expected trimmed id, got %q", userID.String())
	}
}

func TestNewPageDefaults(test *testing.T) {
	test.Parallel()
	testCases := []struct {
		name       string
		limit      int
		offset     int
		wantLimit  int
		wantOffset int
		wantErr    bool
	}{
		{name: "default limit", limit: 0, offset: 0, wantLimit: DefaultTransactionLimit},
		{name: "explicit", limit: 10, offset: 20, wantLimit: 10, wantOffset: 20},
		{name: "capped", limit: 5000, offset: 0, wantLimit: MaxTransactionLimit},
		{name: "negative offset", limit: 10, offset: -1, wantErr: true},
		{name: "negative limit", limit: -1, offset: 0, wantErr: true},
	}
	for _, testCase := range testCases {
		testCase := testCase
		test.Run(testCase.name, func(test *testing.T) {
			test.Parallel()
			page, err := NewPage(testCase.limit, testCase.offset)
			if testCase.wantErr {
				if !errors.Is(err, ErrInvalidPagination) {
					test.Fatalf("expected ErrInvalidPagination, got %v", err)
				}
				return
			}
			if err != nil {
				test.Fatalf("new page: %v", err)
			}
			if page.Limit != testCase.wantLimit || page.Offset != testCase.wantOffset {
				test.Fatalf("unexpected page %+v", page)
			}
		})
	}
}

func TestParseTransactionType(test *testing.T) {
	test.Parallel()
	for _, raw := range []string{"deposit", "withdraw", "payment"} {
		if _, err := ParseTransactionType(raw); err != nil {
			test.Fatalf("parse %q: %v", raw, err)
		}
	}
	if _, err := ParseTransactionType("refund"); !errors.Is(err, ErrInvalidTransaction) {
		test.Fatalf("expected ErrInvalidTransaction, got %v", err)
	}
}

func TestConcurrentDepletionMatchesInsufficientBalance(test *testing.T) {
	test.Parallel()
	if !errors.Is(ErrConcurrentDepletion, ErrInsufficientBalance) {
		test.Fatalf("expected concurrent depletion to be an insufficient balance error")
	}
	if errors.Is(ErrInsufficientBalance, ErrConcurrentDepletion) {
		test.Fatalf("expected plain insufficient balance to stay distinct")
	}
}
