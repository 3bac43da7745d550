package gormstore

import (
	"context"
	"encoding/json"
	"time"

	"github.com/MarkoPoloResearchLab/bookingledger/pkg/cart"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// CartStore implements cart.Store using GORM.
type CartStore struct {
	db *gorm.DB
}

// NewCartStore returns a CartStore backed by gorm.DB.
func NewCartStore(db *gorm.DB) *CartStore {
	return &CartStore{db: db}
}

// WithTx executes fn within a transaction.
func (store *CartStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore cart.Store) error) error {
	return store.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		return fn(ctx, &CartStore{db: transaction})
	})
}

func (store *CartStore) FindActiveCart(ctx context.Context, identity cart.Identity, now time.Time) (cart.Cart, error) {
	query := store.db.WithContext(ctx).
		Where("status = ? AND expires_at > ?", string(cart.StatusActive), now.UTC())
	switch identity.Kind() {
	case cart.IdentityUser:
		query = query.Where("user_id = ?", identity.Value())
	case cart.IdentityGuest:
		query = query.Where("session_token = ?", identity.Value())
	default:
		return cart.Cart{}, wrapStoreError(errorSubjectCart, errorCodeLookup, cart.ErrMissingIdentity)
	}
	var model Cart
	if err := query.Order("created_at DESC").Take(&model).Error; err != nil {
		if errorsIsNotFound(err) {
			return cart.Cart{}, wrapStoreError(errorSubjectCart, errorCodeLookup, cart.ErrNotFound)
		}
		return cart.Cart{}, wrapStoreError(errorSubjectCart, errorCodeLookup, err)
	}
	return mapCart(model)
}

func (store *CartStore) CreateCart(ctx context.Context, value cart.Cart) (cart.Cart, error) {
	model := Cart{
		ID:        value.ID,
		Status:    string(value.Status),
		ExpiresAt: value.ExpiresAt.UTC(),
		CreatedAt: value.CreatedAt.UTC(),
		UpdatedAt: value.UpdatedAt.UTC(),
	}
	owner := value.Identity.Value()
	switch value.Identity.Kind() {
	case cart.IdentityUser:
		model.UserID = &owner
	case cart.IdentityGuest:
		model.SessionToken = &owner
	}
	if err := store.db.WithContext(ctx).Omit("Items").Create(&model).Error; err != nil {
		return cart.Cart{}, wrapStoreError(errorSubjectCart, errorCodeCreate, err)
	}
	return mapCart(model)
}

func (store *CartStore) GetCart(ctx context.Context, cartID string) (cart.Cart, error) {
	var model Cart
	if err := store.db.WithContext(ctx).Where("id = ?", cartID).Take(&model).Error; err != nil {
		if errorsIsNotFound(err) {
			return cart.Cart{}, wrapStoreError(errorSubjectCart, errorCodeGet, cart.ErrNotFound)
		}
		return cart.Cart{}, wrapStoreError(errorSubjectCart, errorCodeGet, err)
	}
	return mapCart(model)
}

func (store *CartStore) UpdateCartStatus(ctx context.Context, cartID string, from cart.Status, to cart.Status, at time.Time) error {
	result := store.db.WithContext(ctx).
		Model(&Cart{}).
		Where("id = ? AND status = ?", cartID, string(from)).
		Updates(map[string]interface{}{"status": string(to), "updated_at": at.UTC()})
	if result.Error != nil {
		return wrapStoreError(errorSubjectCart, errorCodeUpdateStatus, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectCart, errorCodeUpdateStatus, cart.ErrNotFound)
	}
	return nil
}

func (store *CartStore) TouchCart(ctx context.Context, cartID string, at time.Time) error {
	result := store.db.WithContext(ctx).
		Model(&Cart{}).
		Where("id = ?", cartID).
		Update("updated_at", at.UTC())
	if result.Error != nil {
		return wrapStoreError(errorSubjectCart, errorCodeTouch, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectCart, errorCodeTouch, cart.ErrNotFound)
	}
	return nil
}

func (store *CartStore) FindItemBySlot(ctx context.Context, cartID string, slot cart.Slot) (cart.Item, error) {
	var model CartItem
	err := store.db.WithContext(ctx).
		Where("cart_id = ? AND service_id = ? AND scheduled_date = ? AND scheduled_time = ?", cartID, slot.ServiceID, slot.ScheduledDate, slot.ScheduledTime).
		Take(&model).Error
	if err != nil {
		if errorsIsNotFound(err) {
			return cart.Item{}, wrapStoreError(errorSubjectItem, errorCodeLookup, cart.ErrNotFound)
		}
		return cart.Item{}, wrapStoreError(errorSubjectItem, errorCodeLookup, err)
	}
	return mapItem(model), nil
}

func (store *CartStore) InsertItem(ctx context.Context, item cart.Item) (cart.Item, error) {
	model := CartItem{
		ID:             item.ID,
		CartID:         item.CartID,
		ServiceID:      item.ServiceID,
		ScheduledDate:  item.ScheduledDate,
		ScheduledTime:  item.ScheduledTime,
		Duration:       item.Duration,
		BasePrice:      item.BasePrice,
		AddOnsPrice:    item.AddOnsPrice,
		Subtotal:       item.Subtotal,
		SelectedAddOns: addOnsColumn(item.SelectedAddOns),
		ServiceDetails: datatypes.JSON(item.ServiceDetails),
		Comments:       item.Comments,
		ProviderID:     optionalString(item.ProviderID),
		AddedAt:        item.AddedAt.UTC(),
		UpdatedAt:      item.UpdatedAt.UTC(),
	}
	err := store.db.WithContext(ctx).Create(&model).Error
	if isUniqueViolation(err) {
		return cart.Item{}, wrapStoreError(errorSubjectItem, errorCodeDuplicate, cart.ErrDuplicateItem)
	}
	if err != nil {
		return cart.Item{}, wrapStoreError(errorSubjectItem, errorCodeInsert, err)
	}
	return mapItem(model), nil
}

func (store *CartStore) GetItem(ctx context.Context, itemID string) (cart.Item, error) {
	var model CartItem
	if err := store.db.WithContext(ctx).Where("id = ?", itemID).Take(&model).Error; err != nil {
		if errorsIsNotFound(err) {
			return cart.Item{}, wrapStoreError(errorSubjectItem, errorCodeGet, cart.ErrNotFound)
		}
		return cart.Item{}, wrapStoreError(errorSubjectItem, errorCodeGet, err)
	}
	return mapItem(model), nil
}

func (store *CartStore) UpdateItem(ctx context.Context, itemID string, update cart.ItemUpdate, at time.Time) (cart.Item, error) {
	result := store.db.WithContext(ctx).
		Model(&CartItem{}).
		Where("id = ?", itemID).
		Updates(itemUpdateColumns(update, at))
	if isUniqueViolation(result.Error) {
		return cart.Item{}, wrapStoreError(errorSubjectItem, errorCodeDuplicate, cart.ErrDuplicateItem)
	}
	if result.Error != nil {
		return cart.Item{}, wrapStoreError(errorSubjectItem, errorCodeUpdate, result.Error)
	}
	if result.RowsAffected == 0 {
		return cart.Item{}, wrapStoreError(errorSubjectItem, errorCodeUpdate, cart.ErrNotFound)
	}
	return store.GetItem(ctx, itemID)
}

// itemUpdateColumns maps the allow-listed fields to columns. Identity columns never appear here.
func itemUpdateColumns(update cart.ItemUpdate, at time.Time) map[string]interface{} {
	columns := map[string]interface{}{"updated_at": at.UTC()}
	if update.Comments != nil {
		columns["comments"] = *update.Comments
	}
	if update.ScheduledDate != nil {
		columns["scheduled_date"] = *update.ScheduledDate
	}
	if update.ScheduledTime != nil {
		columns["scheduled_time"] = *update.ScheduledTime
	}
	if update.Duration != nil {
		columns["duration"] = *update.Duration
	}
	if update.SelectedAddOns != nil {
		columns["selected_add_ons"] = addOnsColumn(*update.SelectedAddOns)
	}
	if update.BasePrice != nil {
		columns["base_price"] = *update.BasePrice
	}
	if update.AddOnsPrice != nil {
		columns["add_ons_price"] = *update.AddOnsPrice
	}
	if update.Subtotal != nil {
		columns["subtotal"] = *update.Subtotal
	}
	if update.ServiceDetails != nil {
		columns["service_details"] = datatypes.JSON(*update.ServiceDetails)
	}
	return columns
}

func (store *CartStore) DeleteItem(ctx context.Context, itemID string) error {
	result := store.db.WithContext(ctx).Where("id = ?", itemID).Delete(&CartItem{})
	if result.Error != nil {
		return wrapStoreError(errorSubjectItem, errorCodeDelete, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectItem, errorCodeDelete, cart.ErrNotFound)
	}
	return nil
}

func (store *CartStore) DeleteItems(ctx context.Context, cartID string) (int64, error) {
	result := store.db.WithContext(ctx).Where("cart_id = ?", cartID).Delete(&CartItem{})
	if result.Error != nil {
		return 0, wrapStoreError(errorSubjectItem, errorCodeDelete, result.Error)
	}
	return result.RowsAffected, nil
}

func (store *CartStore) ListItems(ctx context.Context, cartID string) ([]cart.Item, error) {
	var rows []CartItem
	err := store.db.WithContext(ctx).
		Where("cart_id = ?", cartID).
		Order("added_at ASC").
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectItem, errorCodeList, err)
	}
	items := make([]cart.Item, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapItem(row))
	}
	return items, nil
}

func (store *CartStore) CountItems(ctx context.Context, cartID string) (int64, error) {
	var count int64
	if err := store.db.WithContext(ctx).Model(&CartItem{}).Where("cart_id = ?", cartID).Count(&count).Error; err != nil {
		return 0, wrapStoreError(errorSubjectItem, errorCodeCount, err)
	}
	return count, nil
}

func (store *CartStore) ReassignItems(ctx context.Context, fromCartID string, toCartID string, at time.Time) (int64, error) {
	result := store.db.WithContext(ctx).
		Model(&CartItem{}).
		Where("cart_id = ?", fromCartID).
		Updates(map[string]interface{}{"cart_id": toCartID, "updated_at": at.UTC()})
	if isUniqueViolation(result.Error) {
		return 0, wrapStoreError(errorSubjectItem, errorCodeReassign, cart.ErrDuplicateItem)
	}
	if result.Error != nil {
		return 0, wrapStoreError(errorSubjectItem, errorCodeReassign, result.Error)
	}
	return result.RowsAffected, nil
}

func mapCart(model Cart) (cart.Cart, error) {
	var identity cart.Identity
	var err error
	switch {
	case model.UserID != nil:
		identity, err = cart.NewUserIdentity(*model.UserID)
	case model.SessionToken != nil:
		identity, err = cart.NewGuestIdentity(*model.SessionToken)
	default:
		err = cart.ErrMissingIdentity
	}
	if err != nil {
		return cart.Cart{}, wrapStoreError(errorSubjectCart, errorCodeInvalid, err)
	}
	return cart.Cart{
		ID:        model.ID,
		Identity:  identity,
		Status:    cart.Status(model.Status),
		ExpiresAt: model.ExpiresAt.UTC(),
		CreatedAt: model.CreatedAt.UTC(),
		UpdatedAt: model.UpdatedAt.UTC(),
	}, nil
}

func mapItem(model CartItem) cart.Item {
	var details json.RawMessage
	if len(model.ServiceDetails) > 0 && string(model.ServiceDetails) != jsonNull {
		details = json.RawMessage(model.ServiceDetails)
	}
	return cart.Item{
		ID:     model.ID,
		CartID: model.CartID,
		Slot: cart.Slot{
			ServiceID:     model.ServiceID,
			ScheduledDate: model.ScheduledDate,
			ScheduledTime: model.ScheduledTime,
		},
		Duration:       model.Duration,
		BasePrice:      model.BasePrice.Round(moneyScale),
		AddOnsPrice:    model.AddOnsPrice.Round(moneyScale),
		Subtotal:       model.Subtotal.Round(moneyScale),
		SelectedAddOns: []string(model.SelectedAddOns),
		ServiceDetails: details,
		Comments:       model.Comments,
		ProviderID:     stringOrEmpty(model.ProviderID),
		AddedAt:        model.AddedAt.UTC(),
		UpdatedAt:      model.UpdatedAt.UTC(),
	}
}

const jsonNull = "null"

// addOnsColumn never stores SQL NULL: JSONSlice cannot scan it back.
func addOnsColumn(addOns []string) datatypes.JSONSlice[string] {
	if addOns == nil {
		return datatypes.JSONSlice[string]{}
	}
	return datatypes.JSONSlice[string](addOns)
}

var _ cart.Store = (*CartStore)(nil)
