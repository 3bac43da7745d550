package gormstore

import (
	"context"
	"time"

	"github.com/MarkoPoloResearchLab/bookingledger/pkg/wallet"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const moneyScale = 2

// WalletStore implements wallet.Store using GORM.
type WalletStore struct {
	db *gorm.DB
}

// NewWalletStore returns a WalletStore backed by gorm.DB.
func NewWalletStore(db *gorm.DB) *WalletStore {
	return &WalletStore{db: db}
}

// WithTx executes fn within a transaction.
func (store *WalletStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore wallet.Store) error) error {
	return store.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		return fn(ctx, &WalletStore{db: transaction})
	})
}

func (store *WalletStore) GetOrCreateWallet(ctx context.Context, userID wallet.UserID, currency string) (wallet.Wallet, error) {
	var model Wallet
	now := time.Now().UTC()
	result := store.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"user_id": clause.Expr{SQL: "excluded.user_id"},
			}),
		}).
		Attrs(Wallet{Balance: decimal.Zero, Currency: currency, IsActive: true, CreatedAt: now, UpdatedAt: now}).
		FirstOrCreate(&model, Wallet{UserID: userID.String()})
	if result.Error != nil {
		return wallet.Wallet{}, wrapStoreError(errorSubjectWallet, errorCodeLookup, result.Error)
	}
	if result.RowsAffected > 0 {
		// A concurrent creator may have won the upsert; read back the stored row.
		if err := store.db.WithContext(ctx).Where("user_id = ?", userID.String()).Take(&model).Error; err != nil {
			return wallet.Wallet{}, wrapStoreError(errorSubjectWallet, errorCodeGet, err)
		}
	}
	return mapWallet(model), nil
}

func (store *WalletStore) CreditBalance(ctx context.Context, walletID string, amount wallet.Amount) (wallet.BalanceChange, error) {
	var change wallet.BalanceChange
	err := store.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		result := transaction.
			Model(&Wallet{}).
			Where("id = ?", walletID).
			Updates(map[string]interface{}{
				"balance":    gorm.Expr("balance + ?", amount.Decimal()),
				"updated_at": time.Now().UTC(),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return wallet.ErrNotFound
		}
		after, err := readBalance(transaction, walletID)
		if err != nil {
			return err
		}
		change = wallet.BalanceChange{Before: after.Sub(amount.Decimal()), After: after}
		return nil
	})
	if err != nil {
		return wallet.BalanceChange{}, wrapStoreError(errorSubjectWallet, errorCodeCredit, err)
	}
	return change, nil
}

// DebitBalanceIfSufficient is the authoritative balance guard: the WHERE clause
// only matches while the stored balance still covers amount.
func (store *WalletStore) DebitBalanceIfSufficient(ctx context.Context, walletID string, amount wallet.Amount) (wallet.BalanceChange, error) {
	var change wallet.BalanceChange
	err := store.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		result := transaction.
			Model(&Wallet{}).
			Where("id = ? AND balance >= ?", walletID, amount.Decimal()).
			Updates(map[string]interface{}{
				"balance":    gorm.Expr("balance - ?", amount.Decimal()),
				"updated_at": time.Now().UTC(),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return wallet.ErrConcurrentDepletion
		}
		after, err := readBalance(transaction, walletID)
		if err != nil {
			return err
		}
		change = wallet.BalanceChange{Before: after.Add(amount.Decimal()), After: after}
		return nil
	})
	if err != nil {
		return wallet.BalanceChange{}, wrapStoreError(errorSubjectWallet, errorCodeDebit, err)
	}
	return change, nil
}

func readBalance(db *gorm.DB, walletID string) (decimal.Decimal, error) {
	var row struct {
		Balance decimal.Decimal
	}
	if err := db.Model(&Wallet{}).Select("balance").Where("id = ?", walletID).Take(&row).Error; err != nil {
		return decimal.Zero, err
	}
	return row.Balance.Round(moneyScale), nil
}

func (store *WalletStore) InsertTransaction(ctx context.Context, transaction wallet.Transaction) (wallet.Transaction, error) {
	model := WalletTransaction{
		WalletID:              transaction.WalletID,
		UserID:                transaction.UserID,
		Type:                  transaction.Type.String(),
		Amount:                transaction.Amount,
		BalanceBefore:         transaction.BalanceBefore,
		BalanceAfter:          transaction.BalanceAfter,
		Description:           transaction.Description,
		Status:                transaction.Status,
		BookingID:             optionalString(transaction.BookingID),
		ServiceID:             optionalString(transaction.ServiceID),
		StripePaymentIntentID: optionalString(transaction.ExternalReference),
		CreatedAt:             transaction.CreatedAt.UTC(),
	}
	if model.CreatedAt.IsZero() {
		model.CreatedAt = time.Now().UTC()
	}
	if err := store.db.WithContext(ctx).Create(&model).Error; err != nil {
		if isUniqueViolation(err) {
			return wallet.Transaction{}, wrapStoreError(errorSubjectTransaction, errorCodeDuplicate, wallet.ErrDuplicateTransaction)
		}
		return wallet.Transaction{}, wrapStoreError(errorSubjectTransaction, errorCodeInsert, err)
	}
	recorded, err := mapTransaction(model)
	if err != nil {
		return wallet.Transaction{}, wrapStoreError(errorSubjectTransaction, errorCodeInvalid, err)
	}
	return recorded, nil
}

func (store *WalletStore) FindBookingTransaction(ctx context.Context, bookingID string, transactionType wallet.TransactionType) (wallet.Transaction, error) {
	var row WalletTransaction
	err := store.db.WithContext(ctx).
		Where("booking_id = ? AND type = ?", bookingID, transactionType.String()).
		Take(&row).Error
	if errorsIsNotFound(err) {
		return wallet.Transaction{}, wallet.ErrNotFound
	}
	if err != nil {
		return wallet.Transaction{}, wrapStoreError(errorSubjectTransaction, errorCodeGet, err)
	}
	transaction, err := mapTransaction(row)
	if err != nil {
		return wallet.Transaction{}, wrapStoreError(errorSubjectTransaction, errorCodeInvalid, err)
	}
	return transaction, nil
}

func (store *WalletStore) ListTransactions(ctx context.Context, walletID string, page wallet.Page) ([]wallet.Transaction, error) {
	var rows []WalletTransaction
	err := store.db.WithContext(ctx).
		Where("wallet_id = ?", walletID).
		Order("id DESC").
		Limit(page.Limit).
		Offset(page.Offset).
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectTransaction, errorCodeList, err)
	}
	return mapTransactions(rows)
}

func (store *WalletStore) ListAllTransactions(ctx context.Context, walletID string) ([]wallet.Transaction, error) {
	var rows []WalletTransaction
	err := store.db.WithContext(ctx).
		Where("wallet_id = ?", walletID).
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectTransaction, errorCodeList, err)
	}
	return mapTransactions(rows)
}

func (store *WalletStore) UpdateAutoReload(ctx context.Context, walletID string, settings wallet.AutoReloadSettings) error {
	result := store.db.WithContext(ctx).
		Model(&Wallet{}).
		Where("id = ?", walletID).
		Updates(map[string]interface{}{
			"auto_reload_enabled":           settings.Enabled,
			"auto_reload_threshold":         settings.Threshold,
			"auto_reload_amount":            settings.Amount,
			"auto_reload_payment_method_id": optionalString(settings.PaymentMethodID),
			"updated_at":                    time.Now().UTC(),
		})
	if result.Error != nil {
		return wrapStoreError(errorSubjectWallet, errorCodeUpdate, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectWallet, errorCodeUpdate, wallet.ErrNotFound)
	}
	return nil
}

func mapWallet(model Wallet) wallet.Wallet {
	return wallet.Wallet{
		ID:       model.ID,
		UserID:   model.UserID,
		Balance:  model.Balance.Round(moneyScale),
		Currency: model.Currency,
		IsActive: model.IsActive,
		AutoReload: wallet.AutoReloadSettings{
			Enabled:         model.AutoReloadEnabled,
			Threshold:       model.AutoReloadThreshold.Round(moneyScale),
			Amount:          model.AutoReloadAmount.Round(moneyScale),
			PaymentMethodID: stringOrEmpty(model.AutoReloadPaymentMethodID),
		},
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
	}
}

func mapTransactions(rows []WalletTransaction) ([]wallet.Transaction, error) {
	transactions := make([]wallet.Transaction, 0, len(rows))
	for _, row := range rows {
		transaction, err := mapTransaction(row)
		if err != nil {
			return nil, wrapStoreError(errorSubjectTransaction, errorCodeInvalid, err)
		}
		transactions = append(transactions, transaction)
	}
	return transactions, nil
}

func mapTransaction(row WalletTransaction) (wallet.Transaction, error) {
	transactionType, err := wallet.ParseTransactionType(row.Type)
	if err != nil {
		return wallet.Transaction{}, err
	}
	return wallet.Transaction{
		ID:                row.ID,
		WalletID:          row.WalletID,
		UserID:            row.UserID,
		Type:              transactionType,
		Amount:            row.Amount.Round(moneyScale),
		BalanceBefore:     row.BalanceBefore.Round(moneyScale),
		BalanceAfter:      row.BalanceAfter.Round(moneyScale),
		Description:       row.Description,
		Status:            row.Status,
		BookingID:         stringOrEmpty(row.BookingID),
		ServiceID:         stringOrEmpty(row.ServiceID),
		ExternalReference: stringOrEmpty(row.StripePaymentIntentID),
		CreatedAt:         row.CreatedAt,
	}, nil
}

func optionalString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func stringOrEmpty(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

var _ wallet.Store = (*WalletStore)(nil)
