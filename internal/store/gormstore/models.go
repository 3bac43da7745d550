package gormstore

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Wallet represents the wallets table.
type Wallet struct {
	ID                        string          `gorm:"type:uuid;primaryKey"`
	UserID                    string          `gorm:"not null;uniqueIndex:uniq_wallets_user_id"`
	Balance                   decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0;check:chk_wallets_balance_non_negative,balance >= 0"`
	Currency                  string          `gorm:"type:varchar(3);not null;default:'ZAR'"`
	IsActive                  bool            `gorm:"not null;default:true"`
	AutoReloadEnabled         bool            `gorm:"not null;default:false"`
	AutoReloadThreshold       decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0"`
	AutoReloadAmount          decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0"`
	AutoReloadPaymentMethodID *string
	CreatedAt                 time.Time `gorm:"not null"`
	UpdatedAt                 time.Time `gorm:"not null"`
}

func (Wallet) TableName() string { return "wallets" }

func (wallet *Wallet) BeforeCreate(tx *gorm.DB) error {
	if wallet.ID == "" {
		wallet.ID = uuid.NewString()
	}
	return nil
}

// WalletTransaction mirrors the wallet_transactions table. Rows are append-only;
// the auto-increment id is the replay order.
type WalletTransaction struct {
	ID                    int64           `gorm:"primaryKey;autoIncrement"`
	WalletID              string          `gorm:"type:uuid;not null;index:idx_wallet_transactions_wallet,priority:1"`
	UserID                string          `gorm:"not null;index:idx_wallet_transactions_user"`
	Type                  string          `gorm:"type:varchar(16);not null;uniqueIndex:uniq_wallet_transactions_booking_type,priority:2"`
	Amount                decimal.Decimal `gorm:"type:numeric(12,2);not null;check:chk_wallet_transactions_amount_positive,amount > 0"`
	BalanceBefore         decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	BalanceAfter          decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	Description           string          `gorm:"not null;default:''"`
	Status                string          `gorm:"type:varchar(16);not null"`
	BookingID             *string         `gorm:"uniqueIndex:uniq_wallet_transactions_booking_type,priority:1"`
	ServiceID             *string
	StripePaymentIntentID *string
	CreatedAt             time.Time `gorm:"not null;index:idx_wallet_transactions_wallet,priority:2"`
}

func (WalletTransaction) TableName() string { return "wallet_transactions" }

// Cart represents the carts table. Exactly one of UserID and SessionToken is set.
type Cart struct {
	ID           string     `gorm:"type:uuid;primaryKey"`
	UserID       *string    `gorm:"index:idx_carts_user_status,priority:1;check:chk_carts_identity,user_id IS NOT NULL OR session_token IS NOT NULL"`
	SessionToken *string    `gorm:"index:idx_carts_session_status,priority:1"`
	Status       string     `gorm:"type:varchar(16);not null;index:idx_carts_user_status,priority:2;index:idx_carts_session_status,priority:2"`
	ExpiresAt    time.Time  `gorm:"not null"`
	CreatedAt    time.Time  `gorm:"not null"`
	UpdatedAt    time.Time  `gorm:"not null"`
	Items        []CartItem `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
}

func (Cart) TableName() string { return "carts" }

func (cart *Cart) BeforeCreate(tx *gorm.DB) error {
	if cart.ID == "" {
		cart.ID = uuid.NewString()
	}
	return nil
}

// CartItem mirrors the cart_items table.
type CartItem struct {
	ID             string                      `gorm:"type:uuid;primaryKey"`
	CartID         string                      `gorm:"type:uuid;not null;uniqueIndex:uniq_cart_items_slot,priority:1"`
	ServiceID      string                      `gorm:"not null;uniqueIndex:uniq_cart_items_slot,priority:2"`
	ScheduledDate  string                      `gorm:"type:varchar(10);not null;uniqueIndex:uniq_cart_items_slot,priority:3"`
	ScheduledTime  string                      `gorm:"type:varchar(5);not null;uniqueIndex:uniq_cart_items_slot,priority:4"`
	Duration       int                         `gorm:"not null;default:0"`
	BasePrice      decimal.Decimal             `gorm:"type:numeric(12,2);not null;default:0"`
	AddOnsPrice    decimal.Decimal             `gorm:"type:numeric(12,2);not null;default:0"`
	Subtotal       decimal.Decimal             `gorm:"type:numeric(12,2);not null;default:0"`
	SelectedAddOns datatypes.JSONSlice[string] `gorm:"not null"`
	ServiceDetails datatypes.JSON
	Comments       string                      `gorm:"not null;default:''"`
	ProviderID     *string
	AddedAt        time.Time `gorm:"not null;index:idx_cart_items_added"`
	UpdatedAt      time.Time `gorm:"not null"`
}

func (CartItem) TableName() string { return "cart_items" }

func (item *CartItem) BeforeCreate(tx *gorm.DB) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	return nil
}

// Models lists every table in migration order.
func Models() []any {
	return []any{&Wallet{}, &WalletTransaction{}, &Cart{}, &CartItem{}}
}

// Migrate creates or updates the schema.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return wrapStoreError(errorSubjectSchema, errorCodeMigrate, err)
	}
	return nil
}
