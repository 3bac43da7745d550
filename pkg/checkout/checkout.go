// Package checkout ties carts, wallet payments, and refunds together.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/MarkoPoloResearchLab/bookingledger/pkg/cart"
	"github.com/MarkoPoloResearchLab/bookingledger/pkg/refund"
	"github.com/MarkoPoloResearchLab/bookingledger/pkg/wallet"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrEmptyCart            = errors.New("cart is empty")
	ErrCartOwnership        = errors.New("cart belongs to another owner")
	ErrCartNotCleared       = errors.New("cart not cleared after payment")
	ErrInvalidBooking       = errors.New("invalid booking")
	ErrInvalidServiceConfig = errors.New("invalid service config")
)

const (
	cartPaymentDescription = "Cart checkout"
	checkoutBookingPrefix  = "bookingledger:checkout:"
)

// Payments is the wallet surface used by checkout.
type Payments interface {
	ProcessPayment(ctx context.Context, userID wallet.UserID, amount wallet.Amount, options wallet.PaymentOptions) (wallet.Transaction, error)
	FindBookingPayment(ctx context.Context, userID wallet.UserID, bookingID string) (wallet.Transaction, error)
	RefundBooking(ctx context.Context, userID wallet.UserID, bookingID string, amount wallet.Amount, description string) (wallet.Transaction, error)
}

// Carts is the cart surface used by checkout.
type Carts interface {
	GetCartWithItems(ctx context.Context, cartID string) (cart.CartWithItems, error)
	ClearCart(ctx context.Context, cartID string) (int64, error)
}

// Receipt describes a paid cart.
type Receipt struct {
	CartID      string
	BookingID   string
	ItemCount   int
	Total       decimal.Decimal
	Transaction wallet.Transaction
}

// Cancellation identifies a paid booking being cancelled. The refund is based
// on the payment recorded for BookingID, never on a caller-supplied amount.
type Cancellation struct {
	UserID      wallet.UserID
	BookingID   string
	ScheduledAt time.Time
}

// CancellationResult carries the quote and, when money was returned, the deposit.
type CancellationResult struct {
	Quote  refund.Quote
	Refund *wallet.Transaction
}

// Service runs checkout and cancellation flows.
type Service struct {
	payments Payments
	carts    Carts
	nowFn    func() time.Time
}

// NewService wires a Service.
func NewService(payments Payments, carts Carts, now func() time.Time) (*Service, error) {
	if payments == nil || carts == nil {
		return nil, fmt.Errorf("%w: missing dependency", ErrInvalidServiceConfig)
	}
	if now == nil {
		return nil, fmt.Errorf("%w: clock dependency is nil", ErrInvalidServiceConfig)
	}
	return &Service{payments: payments, carts: carts, nowFn: now}, nil
}

// PayCart charges the cart total to the owner's wallet and empties the cart.
// When the payment succeeded but clearing failed, the receipt is returned with ErrCartNotCleared.
// The booking id is derived from the cart and its items, so paying the same
// contents twice fails with wallet.ErrBookingAlreadyPaid.
func (service *Service) PayCart(ctx context.Context, userID wallet.UserID, cartID string) (Receipt, error) {
	contents, err := service.carts.GetCartWithItems(ctx, cartID)
	if err != nil {
		return Receipt{}, err
	}
	owner := contents.Cart.Identity
	if owner == nil || owner.Kind() != cart.IdentityUser || owner.Value() != userID.String() {
		return Receipt{}, ErrCartOwnership
	}
	if len(contents.Items) == 0 {
		return Receipt{}, ErrEmptyCart
	}
	total := contents.Total()
	amount, err := wallet.NewAmount(total)
	if err != nil {
		return Receipt{}, err
	}
	bookingID := checkoutBookingID(cartID, contents.Items)
	transaction, err := service.payments.ProcessPayment(ctx, userID, amount, wallet.PaymentOptions{
		BookingID:   bookingID,
		ServiceID:   singleServiceID(contents.Items),
		Description: cartPaymentDescription,
	})
	if err != nil {
		return Receipt{}, err
	}
	receipt := Receipt{
		CartID:      cartID,
		BookingID:   bookingID,
		ItemCount:   len(contents.Items),
		Total:       total,
		Transaction: transaction,
	}
	if _, err := service.carts.ClearCart(ctx, cartID); err != nil {
		return receipt, fmt.Errorf("%w: %v", ErrCartNotCleared, err)
	}
	return receipt, nil
}

// CancelBooking quotes the refund for a booking userID paid for and credits it
// to the wallet. Unpaid bookings fail with wallet.ErrBookingNotPaid and a
// booking already refunded fails with wallet.ErrBookingRefunded.
func (service *Service) CancelBooking(ctx context.Context, cancellation Cancellation) (CancellationResult, error) {
	bookingID := strings.TrimSpace(cancellation.BookingID)
	if bookingID == "" {
		return CancellationResult{}, fmt.Errorf("%w: missing booking id", ErrInvalidBooking)
	}
	payment, err := service.payments.FindBookingPayment(ctx, cancellation.UserID, bookingID)
	if err != nil {
		return CancellationResult{}, err
	}
	quote, err := refund.Calculate(cancellation.ScheduledAt, service.nowFn(), payment.Amount)
	if err != nil {
		return CancellationResult{}, err
	}
	result := CancellationResult{Quote: quote}
	if !quote.Refund.IsPositive() {
		return result, nil
	}
	amount, err := wallet.NewAmount(quote.Refund)
	if err != nil {
		return CancellationResult{}, err
	}
	deposit, err := service.payments.RefundBooking(ctx, cancellation.UserID, bookingID, amount,
		fmt.Sprintf("Refund for booking %s (%s)", bookingID, quote.Tier))
	if err != nil {
		return CancellationResult{}, err
	}
	result.Refund = &deposit
	return result, nil
}

// checkoutBookingID names the booking a cart checkout pays for. Item ids are
// sorted so the id depends only on which items are in the cart.
func checkoutBookingID(cartID string, items []cart.Item) string {
	itemIDs := make([]string, 0, len(items))
	for _, item := range items {
		itemIDs = append(itemIDs, item.ID)
	}
	sort.Strings(itemIDs)
	name := checkoutBookingPrefix + cartID + ":" + strings.Join(itemIDs, ",")
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(name)).String()
}

// singleServiceID returns the service of a one-line cart; mixed carts carry none.
func singleServiceID(items []cart.Item) string {
	if len(items) == 1 {
		return items[0].ServiceID
	}
	return ""
}
