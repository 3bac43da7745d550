package httpapi

import (
	"encoding/json"
	"time"

	"github.com/MarkoPoloResearchLab/bookingledger/pkg/cart"
	"github.com/MarkoPoloResearchLab/bookingledger/pkg/checkout"
	"github.com/MarkoPoloResearchLab/bookingledger/pkg/refund"
	"github.com/MarkoPoloResearchLab/bookingledger/pkg/wallet"
	"github.com/shopspring/decimal"
)

const moneyScale = 2

type depositRequest struct {
	Amount            decimal.Decimal `json:"amount"`
	ExternalReference string          `json:"externalReference"`
	Description       string          `json:"description"`
}

type withdrawalRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
}

type paymentRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	BookingID   string          `json:"bookingId"`
	ServiceID   string          `json:"serviceId"`
	Description string          `json:"description"`
}

type autoReloadRequest struct {
	Enabled         bool            `json:"enabled"`
	Threshold       decimal.Decimal `json:"threshold"`
	Amount          decimal.Decimal `json:"amount"`
	PaymentMethodID string          `json:"paymentMethodId"`
}

type addItemRequest struct {
	ServiceID      string          `json:"serviceId"`
	ScheduledDate  string          `json:"scheduledDate"`
	ScheduledTime  string          `json:"scheduledTime"`
	Duration       int             `json:"duration"`
	BasePrice      decimal.Decimal `json:"basePrice"`
	AddOnsPrice    decimal.Decimal `json:"addOnsPrice"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	SelectedAddOns []string        `json:"selectedAddOns"`
	ServiceDetails json.RawMessage `json:"serviceDetails"`
	Comments       string          `json:"comments"`
	ProviderID     string          `json:"providerId"`
}

func (request addItemRequest) newItem() cart.NewItem {
	return cart.NewItem{
		Slot: cart.Slot{
			ServiceID:     request.ServiceID,
			ScheduledDate: request.ScheduledDate,
			ScheduledTime: request.ScheduledTime,
		},
		Duration:       request.Duration,
		BasePrice:      request.BasePrice,
		AddOnsPrice:    request.AddOnsPrice,
		Subtotal:       request.Subtotal,
		SelectedAddOns: request.SelectedAddOns,
		ServiceDetails: request.ServiceDetails,
		Comments:       request.Comments,
		ProviderID:     request.ProviderID,
	}
}

// scheduleRequest accepts either an RFC 3339 instant or a cart-style date and time in UTC.
type scheduleRequest struct {
	ScheduledAt   *time.Time `json:"scheduledAt"`
	ScheduledDate string     `json:"scheduledDate"`
	ScheduledTime string     `json:"scheduledTime"`
}

// quoteRequest prices a hypothetical cancellation; nothing is credited.
type quoteRequest struct {
	scheduleRequest
	AmountPaid decimal.Decimal `json:"amountPaid"`
}

func (request scheduleRequest) schedule() (time.Time, error) {
	if request.ScheduledAt != nil {
		return request.ScheduledAt.UTC(), nil
	}
	return refund.ParseSchedule(request.ScheduledDate, request.ScheduledTime, time.UTC)
}

type autoReloadPayload struct {
	Enabled         bool   `json:"enabled"`
	Threshold       string `json:"threshold"`
	Amount          string `json:"amount"`
	PaymentMethodID string `json:"paymentMethodId,omitempty"`
}

type walletPayload struct {
	ID         string            `json:"id"`
	UserID     string            `json:"userId"`
	Balance    string            `json:"balance"`
	Currency   string            `json:"currency"`
	IsActive   bool              `json:"isActive"`
	AutoReload autoReloadPayload `json:"autoReload"`
	CreatedAt  time.Time         `json:"createdAt"`
	UpdatedAt  time.Time         `json:"updatedAt"`
}

func newWalletPayload(account wallet.Wallet) walletPayload {
	return walletPayload{
		ID:       account.ID,
		UserID:   account.UserID,
		Balance:  money(account.Balance),
		Currency: account.Currency,
		IsActive: account.IsActive,
		AutoReload: autoReloadPayload{
			Enabled:         account.AutoReload.Enabled,
			Threshold:       money(account.AutoReload.Threshold),
			Amount:          money(account.AutoReload.Amount),
			PaymentMethodID: account.AutoReload.PaymentMethodID,
		},
		CreatedAt: account.CreatedAt,
		UpdatedAt: account.UpdatedAt,
	}
}

type transactionPayload struct {
	ID                int64     `json:"id"`
	WalletID          string    `json:"walletId"`
	Type              string    `json:"type"`
	Amount            string    `json:"amount"`
	BalanceBefore     string    `json:"balanceBefore"`
	BalanceAfter      string    `json:"balanceAfter"`
	Description       string    `json:"description"`
	Status            string    `json:"status"`
	BookingID         string    `json:"bookingId,omitempty"`
	ServiceID         string    `json:"serviceId,omitempty"`
	ExternalReference string    `json:"externalReference,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
}

func newTransactionPayload(transaction wallet.Transaction) transactionPayload {
	return transactionPayload{
		ID:                transaction.ID,
		WalletID:          transaction.WalletID,
		Type:              transaction.Type.String(),
		Amount:            money(transaction.Amount),
		BalanceBefore:     money(transaction.BalanceBefore),
		BalanceAfter:      money(transaction.BalanceAfter),
		Description:       transaction.Description,
		Status:            transaction.Status,
		BookingID:         transaction.BookingID,
		ServiceID:         transaction.ServiceID,
		ExternalReference: transaction.ExternalReference,
		CreatedAt:         transaction.CreatedAt,
	}
}

type cartPayload struct {
	ID           string    `json:"id"`
	IdentityKind string    `json:"identityKind"`
	Status       string    `json:"status"`
	ExpiresAt    time.Time `json:"expiresAt"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func newCartPayload(value cart.Cart) cartPayload {
	payload := cartPayload{
		ID:        value.ID,
		Status:    string(value.Status),
		ExpiresAt: value.ExpiresAt,
		CreatedAt: value.CreatedAt,
		UpdatedAt: value.UpdatedAt,
	}
	if value.Identity != nil {
		payload.IdentityKind = string(value.Identity.Kind())
	}
	return payload
}

type itemPayload struct {
	ID             string          `json:"id"`
	CartID         string          `json:"cartId"`
	ServiceID      string          `json:"serviceId"`
	ScheduledDate  string          `json:"scheduledDate"`
	ScheduledTime  string          `json:"scheduledTime"`
	Duration       int             `json:"duration"`
	BasePrice      string          `json:"basePrice"`
	AddOnsPrice    string          `json:"addOnsPrice"`
	Subtotal       string          `json:"subtotal"`
	SelectedAddOns []string        `json:"selectedAddOns"`
	ServiceDetails json.RawMessage `json:"serviceDetails,omitempty"`
	Comments       string          `json:"comments"`
	ProviderID     string          `json:"providerId,omitempty"`
	AddedAt        time.Time       `json:"addedAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

func newItemPayload(item cart.Item) itemPayload {
	addOns := item.SelectedAddOns
	if addOns == nil {
		addOns = []string{}
	}
	return itemPayload{
		ID:             item.ID,
		CartID:         item.CartID,
		ServiceID:      item.ServiceID,
		ScheduledDate:  item.ScheduledDate,
		ScheduledTime:  item.ScheduledTime,
		Duration:       item.Duration,
		BasePrice:      money(item.BasePrice),
		AddOnsPrice:    money(item.AddOnsPrice),
		Subtotal:       money(item.Subtotal),
		SelectedAddOns: addOns,
		ServiceDetails: item.ServiceDetails,
		Comments:       item.Comments,
		ProviderID:     item.ProviderID,
		AddedAt:        item.AddedAt,
		UpdatedAt:      item.UpdatedAt,
	}
}

type cartWithItemsPayload struct {
	Cart  cartPayload   `json:"cart"`
	Items []itemPayload `json:"items"`
	Total string        `json:"total"`
}

func newCartWithItemsPayload(contents cart.CartWithItems) cartWithItemsPayload {
	items := make([]itemPayload, 0, len(contents.Items))
	for _, item := range contents.Items {
		items = append(items, newItemPayload(item))
	}
	return cartWithItemsPayload{
		Cart:  newCartPayload(contents.Cart),
		Items: items,
		Total: money(contents.Total()),
	}
}

type receiptPayload struct {
	CartID      string             `json:"cartId"`
	BookingID   string             `json:"bookingId"`
	ItemCount   int                `json:"itemCount"`
	Total       string             `json:"total"`
	Transaction transactionPayload `json:"transaction"`
	CartCleared bool               `json:"cartCleared"`
}

func newReceiptPayload(receipt checkout.Receipt, cleared bool) receiptPayload {
	return receiptPayload{
		CartID:      receipt.CartID,
		BookingID:   receipt.BookingID,
		ItemCount:   receipt.ItemCount,
		Total:       money(receipt.Total),
		Transaction: newTransactionPayload(receipt.Transaction),
		CartCleared: cleared,
	}
}

type quotePayload struct {
	Tier              string  `json:"tier"`
	AmountPaid        string  `json:"amountPaid"`
	Refund            string  `json:"refund"`
	Deduction         string  `json:"deduction"`
	ProviderShare     string  `json:"providerShare"`
	HoursUntilService float64 `json:"hoursUntilService"`
}

func newQuotePayload(quote refund.Quote) quotePayload {
	return quotePayload{
		Tier:              string(quote.Tier),
		AmountPaid:        money(quote.AmountPaid),
		Refund:            money(quote.Refund),
		Deduction:         money(quote.Deduction),
		ProviderShare:     money(quote.ProviderShare),
		HoursUntilService: quote.HoursUntilService,
	}
}

type cancellationPayload struct {
	Quote  quotePayload        `json:"quote"`
	Refund *transactionPayload `json:"refund,omitempty"`
}

func money(value decimal.Decimal) string {
	return value.StringFixed(moneyScale)
}
