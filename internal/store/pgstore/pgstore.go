package pgstore

import (
	"context"
	"errors"
	"time"

	"github.com/MarkoPoloResearchLab/bookingledger/pkg/operation"
	"github.com/MarkoPoloResearchLab/bookingledger/pkg/wallet"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const (
	errorOperationStore     = "store"
	errorSubjectWallet      = "wallet"
	errorSubjectTransaction = "transaction"
	errorCodeBegin          = "begin"
	errorCodeCommit         = "commit"
	errorCodeCredit         = "credit"
	errorCodeDebit          = "debit"
	errorCodeDuplicate      = "duplicate"
	errorCodeGet            = "get"
	errorCodeInsert         = "insert"
	errorCodeInvalid        = "invalid"
	errorCodeList           = "list"
	errorCodeLookup         = "lookup"
	errorCodeUpdate         = "update"

	moneyScale = 2

	pgUniqueViolationCode = "23505"

	walletColumns = `
		id::text, user_id, balance::text, currency, is_active,
		auto_reload_enabled, auto_reload_threshold::text, auto_reload_amount::text,
		coalesce(auto_reload_payment_method_id,''), created_at, updated_at
	`

	transactionColumns = `
		id, wallet_id::text, user_id, type, amount::text, balance_before::text, balance_after::text,
		description, status, coalesce(booking_id,''), coalesce(service_id,''),
		coalesce(stripe_payment_intent_id,''), created_at
	`

	sqlInsertOrGetWallet = `
		insert into wallets(
			id, user_id, balance, currency, is_active,
			auto_reload_enabled, auto_reload_threshold, auto_reload_amount, created_at, updated_at
		)
		values(gen_random_uuid(), $1, 0, $2, true, false, 0, 0, $3, $3)
		on conflict (user_id) do update set user_id = excluded.user_id
		returning ` + walletColumns

	sqlCreditBalance = `
		update wallets
		set balance = balance + $2::numeric, updated_at = $3
		where id = $1
		returning balance::text
	`

	// The guard and the decrement are one statement; no row means the balance no longer covers amount.
	sqlDebitBalanceIfSufficient = `
		update wallets
		set balance = balance - $2::numeric, updated_at = $3
		where id = $1 and balance >= $2::numeric
		returning balance::text
	`

	sqlInsertTransaction = `
		insert into wallet_transactions(
			wallet_id, user_id, type, amount, balance_before, balance_after,
			description, status, booking_id, service_id, stripe_payment_intent_id, created_at
		)
		values($1, $2, $3, $4::numeric, $5::numeric, $6::numeric, $7, $8, nullif($9,''), nullif($10,''), nullif($11,''), $12)
		returning id
	`

	sqlFindBookingTransaction = `
		select ` + transactionColumns + `
		from wallet_transactions
		where booking_id = $1 and type = $2
		limit 1
	`

	sqlListTransactions = `
		select ` + transactionColumns + `
		from wallet_transactions
		where wallet_id = $1
		order by id desc
		limit $2 offset $3
	`

	sqlListAllTransactions = `
		select ` + transactionColumns + `
		from wallet_transactions
		where wallet_id = $1
		order by id asc
	`

	sqlUpdateAutoReload = `
		update wallets
		set auto_reload_enabled = $2, auto_reload_threshold = $3::numeric, auto_reload_amount = $4::numeric,
			auto_reload_payment_method_id = nullif($5,''), updated_at = $6
		where id = $1
	`
)

// queryer is the subset shared by *pgxpool.Pool and pgx.Tx.
type queryer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type queries struct {
	db    queryer
	nowFn func() time.Time
}

// Store implements wallet.Store using a pgx connection pool (autocommit).
type Store struct {
	queries
	pool *pgxpool.Pool
}

// TxStore implements wallet.Store for an active transaction.
type TxStore struct {
	queries
	tx pgx.Tx
}

// New returns a Store backed by a pgx pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{queries: queries{db: pool, nowFn: time.Now}, pool: pool}
}

func (store *Store) WithTx(ctx context.Context, fn func(ctx context.Context, txStore wallet.Store) error) error {
	tx, err := store.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return wrapStoreError(errorSubjectTransaction, errorCodeBegin, err)
	}
	transactionStore := &TxStore{queries: queries{db: tx, nowFn: store.nowFn}, tx: tx}
	if err := fn(ctx, transactionStore); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return wrapStoreError(errorSubjectTransaction, errorCodeCommit, err)
	}
	return nil
}

func (store *TxStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore wallet.Store) error) error {
	return fn(ctx, store)
}

func (store *queries) GetOrCreateWallet(ctx context.Context, userID wallet.UserID, currency string) (wallet.Wallet, error) {
	row := store.db.QueryRow(ctx, sqlInsertOrGetWallet, userID.String(), currency, store.now())
	account, err := scanWallet(row)
	if err != nil {
		return wallet.Wallet{}, wrapStoreError(errorSubjectWallet, errorCodeLookup, err)
	}
	return account, nil
}

func (store *queries) CreditBalance(ctx context.Context, walletID string, amount wallet.Amount) (wallet.BalanceChange, error) {
	after, err := store.updateBalance(ctx, sqlCreditBalance, walletID, amount)
	if errors.Is(err, pgx.ErrNoRows) {
		return wallet.BalanceChange{}, wrapStoreError(errorSubjectWallet, errorCodeCredit, wallet.ErrNotFound)
	}
	if err != nil {
		return wallet.BalanceChange{}, wrapStoreError(errorSubjectWallet, errorCodeCredit, err)
	}
	return wallet.BalanceChange{Before: after.Sub(amount.Decimal()), After: after}, nil
}

func (store *queries) DebitBalanceIfSufficient(ctx context.Context, walletID string, amount wallet.Amount) (wallet.BalanceChange, error) {
	after, err := store.updateBalance(ctx, sqlDebitBalanceIfSufficient, walletID, amount)
	if errors.Is(err, pgx.ErrNoRows) {
		return wallet.BalanceChange{}, wrapStoreError(errorSubjectWallet, errorCodeDebit, wallet.ErrConcurrentDepletion)
	}
	if err != nil {
		return wallet.BalanceChange{}, wrapStoreError(errorSubjectWallet, errorCodeDebit, err)
	}
	return wallet.BalanceChange{Before: after.Add(amount.Decimal()), After: after}, nil
}

func (store *queries) updateBalance(ctx context.Context, statement string, walletID string, amount wallet.Amount) (decimal.Decimal, error) {
	var balanceValue string
	if err := store.db.QueryRow(ctx, statement, walletID, amount.String(), store.now()).Scan(&balanceValue); err != nil {
		return decimal.Zero, err
	}
	return parseMoney(balanceValue)
}

func (store *queries) InsertTransaction(ctx context.Context, transaction wallet.Transaction) (wallet.Transaction, error) {
	if transaction.CreatedAt.IsZero() {
		transaction.CreatedAt = store.now()
	}
	transaction.CreatedAt = transaction.CreatedAt.UTC()
	err := store.db.QueryRow(ctx, sqlInsertTransaction,
		transaction.WalletID,
		transaction.UserID,
		transaction.Type.String(),
		transaction.Amount.StringFixed(moneyScale),
		transaction.BalanceBefore.StringFixed(moneyScale),
		transaction.BalanceAfter.StringFixed(moneyScale),
		transaction.Description,
		transaction.Status,
		transaction.BookingID,
		transaction.ServiceID,
		transaction.ExternalReference,
		transaction.CreatedAt,
	).Scan(&transaction.ID)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolationCode {
		return wallet.Transaction{}, wrapStoreError(errorSubjectTransaction, errorCodeDuplicate, wallet.ErrDuplicateTransaction)
	}
	if err != nil {
		return wallet.Transaction{}, wrapStoreError(errorSubjectTransaction, errorCodeInsert, err)
	}
	return transaction, nil
}

func (store *queries) FindBookingTransaction(ctx context.Context, bookingID string, transactionType wallet.TransactionType) (wallet.Transaction, error) {
	rows, err := store.db.Query(ctx, sqlFindBookingTransaction, bookingID, transactionType.String())
	if err != nil {
		return wallet.Transaction{}, wrapStoreError(errorSubjectTransaction, errorCodeGet, err)
	}
	defer rows.Close()
	transactions, err := scanTransactions(rows)
	if err != nil {
		return wallet.Transaction{}, wrapStoreError(errorSubjectTransaction, errorCodeInvalid, err)
	}
	if len(transactions) == 0 {
		return wallet.Transaction{}, wallet.ErrNotFound
	}
	return transactions[0], nil
}

func (store *queries) ListTransactions(ctx context.Context, walletID string, page wallet.Page) ([]wallet.Transaction, error) {
	rows, err := store.db.Query(ctx, sqlListTransactions, walletID, page.Limit, page.Offset)
	if err != nil {
		return nil, wrapStoreError(errorSubjectTransaction, errorCodeList, err)
	}
	defer rows.Close()
	transactions, err := scanTransactions(rows)
	if err != nil {
		return nil, wrapStoreError(errorSubjectTransaction, errorCodeInvalid, err)
	}
	return transactions, nil
}

func (store *queries) ListAllTransactions(ctx context.Context, walletID string) ([]wallet.Transaction, error) {
	rows, err := store.db.Query(ctx, sqlListAllTransactions, walletID)
	if err != nil {
		return nil, wrapStoreError(errorSubjectTransaction, errorCodeList, err)
	}
	defer rows.Close()
	transactions, err := scanTransactions(rows)
	if err != nil {
		return nil, wrapStoreError(errorSubjectTransaction, errorCodeInvalid, err)
	}
	return transactions, nil
}

func (store *queries) UpdateAutoReload(ctx context.Context, walletID string, settings wallet.AutoReloadSettings) error {
	tag, err := store.db.Exec(ctx, sqlUpdateAutoReload,
		walletID,
		settings.Enabled,
		settings.Threshold.StringFixed(moneyScale),
		settings.Amount.StringFixed(moneyScale),
		settings.PaymentMethodID,
		store.now(),
	)
	if err != nil {
		return wrapStoreError(errorSubjectWallet, errorCodeUpdate, err)
	}
	if tag.RowsAffected() == 0 {
		return wrapStoreError(errorSubjectWallet, errorCodeUpdate, wallet.ErrNotFound)
	}
	return nil
}

func (store *queries) now() time.Time {
	return store.nowFn().UTC()
}

func scanWallet(row pgx.Row) (wallet.Wallet, error) {
	var (
		account        wallet.Wallet
		balanceValue   string
		thresholdValue string
		reloadValue    string
	)
	err := row.Scan(
		&account.ID,
		&account.UserID,
		&balanceValue,
		&account.Currency,
		&account.IsActive,
		&account.AutoReload.Enabled,
		&thresholdValue,
		&reloadValue,
		&account.AutoReload.PaymentMethodID,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		return wallet.Wallet{}, err
	}
	if account.Balance, err = parseMoney(balanceValue); err != nil {
		return wallet.Wallet{}, err
	}
	if account.AutoReload.Threshold, err = parseMoney(thresholdValue); err != nil {
		return wallet.Wallet{}, err
	}
	if account.AutoReload.Amount, err = parseMoney(reloadValue); err != nil {
		return wallet.Wallet{}, err
	}
	account.CreatedAt = account.CreatedAt.UTC()
	account.UpdatedAt = account.UpdatedAt.UTC()
	return account, nil
}

func scanTransactions(rows pgx.Rows) ([]wallet.Transaction, error) {
	transactions := make([]wallet.Transaction, 0, 32)
	for rows.Next() {
		var (
			transaction wallet.Transaction
			typeValue   string
			amountValue string
			beforeValue string
			afterValue  string
		)
		if err := rows.Scan(
			&transaction.ID,
			&transaction.WalletID,
			&transaction.UserID,
			&typeValue,
			&amountValue,
			&beforeValue,
			&afterValue,
			&transaction.Description,
			&transaction.Status,
			&transaction.BookingID,
			&transaction.ServiceID,
			&transaction.ExternalReference,
			&transaction.CreatedAt,
		); err != nil {
			return nil, err
		}
		transactionType, err := wallet.ParseTransactionType(typeValue)
		if err != nil {
			return nil, err
		}
		transaction.Type = transactionType
		if transaction.Amount, err = parseMoney(amountValue); err != nil {
			return nil, err
		}
		if transaction.BalanceBefore, err = parseMoney(beforeValue); err != nil {
			return nil, err
		}
		if transaction.BalanceAfter, err = parseMoney(afterValue); err != nil {
			return nil, err
		}
		transaction.CreatedAt = transaction.CreatedAt.UTC()
		transactions = append(transactions, transaction)
	}
	return transactions, rows.Err()
}

func parseMoney(raw string) (decimal.Decimal, error) {
	value, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, err
	}
	return value.Round(moneyScale), nil
}

func wrapStoreError(subject string, code string, err error) error {
	return operation.WrapError(errorOperationStore, subject, code, err)
}

var (
	_ wallet.Store = (*Store)(nil)
	_ wallet.Store = (*TxStore)(nil)
)
