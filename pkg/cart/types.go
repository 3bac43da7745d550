package cart

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of a cart.
type Status string

const (
	StatusActive    Status = "active"
	StatusConverted Status = "converted"
)

// Cart is a pre-checkout container owned by a user or a guest session.
type Cart struct {
	ID        string
	Identity  Identity
	Status    Status
	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsOpen reports whether the cart still accepts changes at now.
func (cart Cart) IsOpen(now time.Time) bool {
	return cart.Status == StatusActive && now.Before(cart.ExpiresAt)
}

// Slot identifies a bookable service occurrence. A cart holds each slot once.
type Slot struct {
	ServiceID     string
	ScheduledDate string
	ScheduledTime string
}

// Validate checks the slot formats.
func (slot Slot) Validate() error {
	if strings.TrimSpace(slot.ServiceID) == "" {
		return fmt.Errorf("%w: missing service id", ErrInvalidItem)
	}
	if err := validateScheduledDate(slot.ScheduledDate); err != nil {
		return err
	}
	return validateScheduledTime(slot.ScheduledTime)
}

// Item is a stored cart line.
type Item struct {
	ID     string
	CartID string
	Slot
	Duration       int
	BasePrice      decimal.Decimal
	AddOnsPrice    decimal.Decimal
	Subtotal       decimal.Decimal
	SelectedAddOns []string
	ServiceDetails json.RawMessage
	Comments       string
	ProviderID     string
	AddedAt        time.Time
	UpdatedAt      time.Time
}

// NewItem is the input for AddItemToCart.
type NewItem struct {
	Slot
	Duration       int
	BasePrice      decimal.Decimal
	AddOnsPrice    decimal.Decimal
	Subtotal       decimal.Decimal
	SelectedAddOns []string
	ServiceDetails json.RawMessage
	Comments       string
	ProviderID     string
}

// Validate checks the slot, prices, and details payload.
func (item NewItem) Validate() error {
	if err := item.Slot.Validate(); err != nil {
		return err
	}
	if item.Duration < 0 {
		return fmt.Errorf("%w: negative duration", ErrInvalidItem)
	}
	if err := validatePrices(item.BasePrice, item.AddOnsPrice, item.Subtotal); err != nil {
		return err
	}
	return validateDetails(item.ServiceDetails)
}

// CartWithItems is a cart together with its lines ordered by AddedAt.
type CartWithItems struct {
	Cart  Cart
	Items []Item
}

// Total sums the item subtotals.
func (cartWithItems CartWithItems) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range cartWithItems.Items {
		total = total.Add(item.Subtotal)
	}
	return total
}

// Store persists carts and their items.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error
	// FindActiveCart returns the newest active cart of identity that has not expired at now.
	FindActiveCart(ctx context.Context, identity Identity, now time.Time) (Cart, error)
	CreateCart(ctx context.Context, cart Cart) (Cart, error)
	GetCart(ctx context.Context, cartID string) (Cart, error)
	// UpdateCartStatus flips status only while the cart is still in from.
	UpdateCartStatus(ctx context.Context, cartID string, from Status, to Status, at time.Time) error
	TouchCart(ctx context.Context, cartID string, at time.Time) error
	FindItemBySlot(ctx context.Context, cartID string, slot Slot) (Item, error)
	// InsertItem returns ErrDuplicateItem when the slot is already taken.
	InsertItem(ctx context.Context, item Item) (Item, error)
	GetItem(ctx context.Context, itemID string) (Item, error)
	UpdateItem(ctx context.Context, itemID string, update ItemUpdate, at time.Time) (Item, error)
	DeleteItem(ctx context.Context, itemID string) error
	DeleteItems(ctx context.Context, cartID string) (int64, error)
	ListItems(ctx context.Context, cartID string) ([]Item, error)
	CountItems(ctx context.Context, cartID string) (int64, error)
	// ReassignItems moves every item of fromCartID to toCartID.
	ReassignItems(ctx context.Context, fromCartID string, toCartID string, at time.Time) (int64, error)
}

// CountCache caches item counts per cart. Implementations may be lossy.
type CountCache interface {
	Get(ctx context.Context, cartID string) (int64, bool, error)
	Set(ctx context.Context, cartID string, count int64) error
	Invalidate(ctx context.Context, cartIDs ...string) error
}

func validateScheduledDate(raw string) error {
	if _, err := time.Parse(scheduledDateLayout, raw); err != nil {
		return fmt.Errorf("%w: scheduled date %q", ErrInvalidItem, raw)
	}
	return nil
}

func validateScheduledTime(raw string) error {
	if _, err := time.Parse(scheduledTimeLayout, raw); err != nil {
		return fmt.Errorf("%w: scheduled time %q", ErrInvalidItem, raw)
	}
	return nil
}

func validatePrices(prices ...decimal.Decimal) error {
	for _, price := range prices {
		if price.IsNegative() {
			return fmt.Errorf("%w: negative price", ErrInvalidItem)
		}
	}
	return nil
}

func validateDetails(details json.RawMessage) error {
	if len(details) == 0 {
		return nil
	}
	if !json.Valid(details) {
		return fmt.Errorf("%w: service details are not valid json", ErrInvalidItem)
	}
	return nil
}
