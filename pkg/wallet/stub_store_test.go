package wallet

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
)

type stubStore struct {
	// txMu serializes WithTx so a rollback never clobbers another writer.
	txMu         sync.Mutex
	mu           sync.Mutex
	wallets      map[string]Wallet
	transactions []Transaction
	nextID       int64

	getOrCreateErr error
	insertErr      error
	listErr        error
	// beforeDebit runs inside the guarded debit, before the balance is compared.
	beforeDebit func(store *stubStore, walletID string)
}

func newStubStore(test *testing.T) *stubStore {
	test.Helper()
	return &stubStore{wallets: map[string]Wallet{}}
}

func (store *stubStore) seedWallet(test *testing.T, userID string, balance string) Wallet {
	test.Helper()
	store.mu.Lock()
	defer store.mu.Unlock()
	account := Wallet{
		ID:       "wallet-" + userID,
		UserID:   userID,
		Balance:  mustDecimal(test, balance),
		Currency: DefaultCurrency,
		IsActive: true,
	}
	store.wallets[userID] = account
	return account
}

func (store *stubStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error {
	store.txMu.Lock()
	defer store.txMu.Unlock()
	store.mu.Lock()
	walletSnapshot := make(map[string]Wallet, len(store.wallets))
	for key, value := range store.wallets {
		walletSnapshot[key] = value
	}
	transactionCount := len(store.transactions)
	store.mu.Unlock()

	if err := fn(ctx, store); err != nil {
		store.mu.Lock()
		store.wallets = walletSnapshot
		store.transactions = store.transactions[:transactionCount]
		store.mu.Unlock()
		return err
	}
	return nil
}

func (store *stubStore) GetOrCreateWallet(ctx context.Context, userID UserID, currency string) (Wallet, error) {
	if store.getOrCreateErr != nil {
		return Wallet{}, store.getOrCreateErr
	}
	store.mu.Lock()
	defer store.mu.Unlock()
	if account, ok := store.wallets[userID.String()]; ok {
		return account, nil
	}
	account := Wallet{
		ID:       "wallet-" + userID.String(),
		UserID:   userID.String(),
		Balance:  decimal.Zero,
		Currency: currency,
		IsActive: true,
	}
	store.wallets[userID.String()] = account
	return account, nil
}

func (store *stubStore) CreditBalance(ctx context.Context, walletID string, amount Amount) (BalanceChange, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	for key, account := range store.wallets {
		if account.ID != walletID {
			continue
		}
		change := BalanceChange{Before: account.Balance, After: account.Balance.Add(amount.Decimal())}
		account.Balance = change.After
		store.wallets[key] = account
		return change, nil
	}
	return BalanceChange{}, ErrNotFound
}

func (store *stubStore) DebitBalanceIfSufficient(ctx context.Context, walletID string, amount Amount) (BalanceChange, error) {
	if store.beforeDebit != nil {
		hook := store.beforeDebit
		store.beforeDebit = nil
		hook(store, walletID)
	}
	store.mu.Lock()
	defer store.mu.Unlock()
	for key, account := range store.wallets {
		if account.ID != walletID {
			continue
		}
		if account.Balance.LessThan(amount.Decimal()) {
			return BalanceChange{}, ErrConcurrentDepletion
		}
		change := BalanceChange{Before: account.Balance, After: account.Balance.Sub(amount.Decimal())}
		account.Balance = change.After
		store.wallets[key] = account
		return change, nil
	}
	return BalanceChange{}, ErrNotFound
}

func (store *stubStore) InsertTransaction(ctx context.Context, transaction Transaction) (Transaction, error) {
	if store.insertErr != nil {
		return Transaction{}, store.insertErr
	}
	store.mu.Lock()
	defer store.mu.Unlock()
	if transaction.BookingID != "" {
		for _, existing := range store.transactions {
			if existing.BookingID == transaction.BookingID && existing.Type == transaction.Type {
				return Transaction{}, ErrDuplicateTransaction
			}
		}
	}
	store.nextID++
	transaction.ID = store.nextID
	store.transactions = append(store.transactions, transaction)
	return transaction, nil
}

func (store *stubStore) FindBookingTransaction(ctx context.Context, bookingID string, transactionType TransactionType) (Transaction, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	for _, transaction := range store.transactions {
		if transaction.BookingID == bookingID && transaction.Type == transactionType {
			return transaction, nil
		}
	}
	return Transaction{}, ErrNotFound
}

func (store *stubStore) ListTransactions(ctx context.Context, walletID string, page Page) ([]Transaction, error) {
	if store.listErr != nil {
		return nil, store.listErr
	}
	all, _ := store.ListAllTransactions(ctx, walletID)
	result := make([]Transaction, 0, len(all))
	for index := len(all) - 1; index >= 0; index-- {
		result = append(result, all[index])
	}
	if page.Offset >= len(result) {
		return []Transaction{}, nil
	}
	result = result[page.Offset:]
	if len(result) > page.Limit {
		result = result[:page.Limit]
	}
	return result, nil
}

func (store *stubStore) ListAllTransactions(ctx context.Context, walletID string) ([]Transaction, error) {
	if store.listErr != nil {
		return nil, store.listErr
	}
	store.mu.Lock()
	defer store.mu.Unlock()
	result := make([]Transaction, 0, len(store.transactions))
	for _, transaction := range store.transactions {
		if transaction.WalletID == walletID {
			result = append(result, transaction)
		}
	}
	return result, nil
}

func (store *stubStore) UpdateAutoReload(ctx context.Context, walletID string, settings AutoReloadSettings) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	for key, account := range store.wallets {
		if account.ID == walletID {
			account.AutoReload = settings
			store.wallets[key] = account
			return nil
		}
	}
	return ErrNotFound
}

func (store *stubStore) balanceOf(userID string) decimal.Decimal {
	store.mu.Lock()
	defer store.mu.Unlock()
	return store.wallets[userID].Balance
}

func (store *stubStore) transactionCount() int {
	store.mu.Lock()
	defer store.mu.Unlock()
	return len(store.transactions)
}
