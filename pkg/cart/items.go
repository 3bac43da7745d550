package cart

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// AddItemToCart adds a line for a slot. When the slot is already in the cart
// the existing line is returned unchanged.
func (service *Service) AddItemToCart(ctx context.Context, cartID string, newItem NewItem) (Item, error) {
	if err := newItem.Validate(); err != nil {
		service.logOperation(ctx, operationAddItem, cartID, newItem.ServiceID, err)
		return Item{}, err
	}
	var result Item
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		now := service.nowFn().UTC()
		found, err := transactionStore.GetCart(ctx, cartID)
		if err != nil {
			return err
		}
		if !found.IsOpen(now) {
			return ErrCartClosed
		}
		existing, err := transactionStore.FindItemBySlot(ctx, cartID, newItem.Slot)
		if err == nil {
			result = existing
			return nil
		}
		if !errors.Is(err, ErrNotFound) {
			return err
		}
		result, err = transactionStore.InsertItem(ctx, Item{
			ID:             uuid.NewString(),
			CartID:         cartID,
			Slot:           newItem.Slot,
			Duration:       newItem.Duration,
			BasePrice:      newItem.BasePrice,
			AddOnsPrice:    newItem.AddOnsPrice,
			Subtotal:       newItem.Subtotal,
			SelectedAddOns: newItem.SelectedAddOns,
			ServiceDetails: newItem.ServiceDetails,
			Comments:       newItem.Comments,
			ProviderID:     newItem.ProviderID,
			AddedAt:        now,
			UpdatedAt:      now,
		})
		if err != nil {
			return err
		}
		return transactionStore.TouchCart(ctx, cartID, now)
	})
	if errors.Is(operationError, ErrDuplicateItem) {
		// A concurrent insert won the unique index; hand back its row.
		result, operationError = service.store.FindItemBySlot(ctx, cartID, newItem.Slot)
	}
	service.logOperation(ctx, operationAddItem, cartID, newItem.ServiceID, operationError)
	if operationError != nil {
		return Item{}, operationError
	}
	service.invalidateCounts(ctx, cartID)
	return result, nil
}

// GetItem returns one cart line.
func (service *Service) GetItem(ctx context.Context, itemID string) (Item, error) {
	return service.store.GetItem(ctx, itemID)
}

// UpdateCartItem applies the mutable fields of update to an item.
func (service *Service) UpdateCartItem(ctx context.Context, itemID string, update ItemUpdate) (Item, error) {
	if err := update.Validate(); err != nil {
		service.logOperation(ctx, operationUpdateItem, itemID, "", err)
		return Item{}, err
	}
	if update.IsEmpty() {
		return service.store.GetItem(ctx, itemID)
	}
	var result Item
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		now := service.nowFn().UTC()
		updated, err := transactionStore.UpdateItem(ctx, itemID, update, now)
		if err != nil {
			return err
		}
		result = updated
		return transactionStore.TouchCart(ctx, updated.CartID, now)
	})
	service.logOperation(ctx, operationUpdateItem, itemID, result.CartID, operationError)
	if operationError != nil {
		return Item{}, operationError
	}
	return result, nil
}

// RemoveCartItem deletes one line.
func (service *Service) RemoveCartItem(ctx context.Context, itemID string) error {
	var cartID string
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		item, err := transactionStore.GetItem(ctx, itemID)
		if err != nil {
			return err
		}
		cartID = item.CartID
		if err := transactionStore.DeleteItem(ctx, itemID); err != nil {
			return err
		}
		return transactionStore.TouchCart(ctx, cartID, service.nowFn().UTC())
	})
	service.logOperation(ctx, operationRemoveItem, itemID, cartID, operationError)
	if operationError != nil {
		return operationError
	}
	service.invalidateCounts(ctx, cartID)
	return nil
}

// ClearCart deletes every line of a cart and returns how many were removed.
func (service *Service) ClearCart(ctx context.Context, cartID string) (int64, error) {
	var removed int64
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		if _, err := transactionStore.GetCart(ctx, cartID); err != nil {
			return err
		}
		var err error
		removed, err = transactionStore.DeleteItems(ctx, cartID)
		if err != nil {
			return err
		}
		return transactionStore.TouchCart(ctx, cartID, service.nowFn().UTC())
	})
	service.logOperation(ctx, operationClear, cartID, "", operationError)
	if operationError != nil {
		return 0, operationError
	}
	service.invalidateCounts(ctx, cartID)
	return removed, nil
}
