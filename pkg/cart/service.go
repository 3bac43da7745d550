package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MarkoPoloResearchLab/bookingledger/pkg/operation"
)

// Service contains the cart domain logic over a Store.
type Service struct {
	store  Store
	nowFn  func() time.Time
	ttl    time.Duration
	counts CountCache
	logger operation.Logger
}

// NewService wires a Service.
func NewService(store Store, now func() time.Time, options ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ErrInvalidServiceConfig)
	}
	if now == nil {
		return nil, fmt.Errorf("%w: clock dependency is nil", ErrInvalidServiceConfig)
	}
	service := &Service{store: store, nowFn: now, ttl: DefaultTTL}
	for _, option := range options {
		if option != nil {
			option(service)
		}
	}
	return service, nil
}

// GetOrCreateCart returns the open cart of identity or starts a new one.
// Expired carts are never reused.
func (service *Service) GetOrCreateCart(ctx context.Context, identity Identity) (Cart, error) {
	if identity == nil {
		return Cart{}, ErrMissingIdentity
	}
	var result Cart
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		var err error
		result, err = getOrCreateCart(ctx, transactionStore, identity, service.nowFn().UTC(), service.ttl)
		return err
	})
	if operationError != nil {
		service.logOperation(ctx, operationGetOrCreate, identity.Value(), "", operationError)
		return Cart{}, operationError
	}
	return result, nil
}

func getOrCreateCart(ctx context.Context, store Store, identity Identity, now time.Time, ttl time.Duration) (Cart, error) {
	existing, err := store.FindActiveCart(ctx, identity, now)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Cart{}, err
	}
	return store.CreateCart(ctx, Cart{
		Identity:  identity,
		Status:    StatusActive,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
		UpdatedAt: now,
	})
}

// MergeGuestCartToUser moves the guest cart lines into the user's cart and retires the guest cart.
// Guest lines whose slot is already in the user cart are dropped.
// An expired guest cart is abandoned: it is not merged and keeps its lines.
func (service *Service) MergeGuestCartToUser(ctx context.Context, sessionToken string, userID string) (Cart, error) {
	guest, err := NewGuestIdentity(sessionToken)
	if err != nil {
		return Cart{}, err
	}
	user, err := NewUserIdentity(userID)
	if err != nil {
		return Cart{}, err
	}

	var merged Cart
	var guestCartID string
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		now := service.nowFn().UTC()
		guestCart, err := transactionStore.FindActiveCart(ctx, guest, now)
		if errors.Is(err, ErrNotFound) {
			merged, err = getOrCreateCart(ctx, transactionStore, user, now, service.ttl)
			return err
		}
		if err != nil {
			return err
		}
		guestCartID = guestCart.ID

		userCart, err := getOrCreateCart(ctx, transactionStore, user, now, service.ttl)
		if err != nil {
			return err
		}
		if err := dropCollidingItems(ctx, transactionStore, guestCart.ID, userCart.ID); err != nil {
			return err
		}
		moved, err := transactionStore.ReassignItems(ctx, guestCart.ID, userCart.ID, now)
		if err != nil {
			return err
		}
		if moved > 0 {
			if err := transactionStore.TouchCart(ctx, userCart.ID, now); err != nil {
				return err
			}
		}
		if err := transactionStore.UpdateCartStatus(ctx, guestCart.ID, StatusActive, StatusConverted, now); err != nil {
			return err
		}
		merged, err = transactionStore.GetCart(ctx, userCart.ID)
		return err
	})
	service.logOperation(ctx, operationMerge, user.Value(), guestCartID, operationError)
	if operationError != nil {
		return Cart{}, operationError
	}
	if guestCartID != "" {
		service.invalidateCounts(ctx, guestCartID, merged.ID)
	}
	return merged, nil
}

func dropCollidingItems(ctx context.Context, store Store, guestCartID string, userCartID string) error {
	userItems, err := store.ListItems(ctx, userCartID)
	if err != nil {
		return err
	}
	if len(userItems) == 0 {
		return nil
	}
	occupied := make(map[Slot]struct{}, len(userItems))
	for _, item := range userItems {
		occupied[item.Slot] = struct{}{}
	}
	guestItems, err := store.ListItems(ctx, guestCartID)
	if err != nil {
		return err
	}
	for _, item := range guestItems {
		if _, taken := occupied[item.Slot]; !taken {
			continue
		}
		if err := store.DeleteItem(ctx, item.ID); err != nil {
			return err
		}
	}
	return nil
}

// GetCart returns a cart by id.
func (service *Service) GetCart(ctx context.Context, cartID string) (Cart, error) {
	return service.store.GetCart(ctx, cartID)
}

// GetCartWithItems returns a cart and its lines ordered by AddedAt.
func (service *Service) GetCartWithItems(ctx context.Context, cartID string) (CartWithItems, error) {
	var result CartWithItems
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		found, err := transactionStore.GetCart(ctx, cartID)
		if err != nil {
			return err
		}
		items, err := transactionStore.ListItems(ctx, cartID)
		if err != nil {
			return err
		}
		result = CartWithItems{Cart: found, Items: items}
		return nil
	})
	if operationError != nil {
		return CartWithItems{}, operationError
	}
	return result, nil
}

// GetCartItemCount counts the lines of a cart, consulting the count cache first.
func (service *Service) GetCartItemCount(ctx context.Context, cartID string) (int64, error) {
	if service.counts != nil {
		if count, ok, err := service.counts.Get(ctx, cartID); err == nil && ok {
			return count, nil
		}
	}
	if _, err := service.store.GetCart(ctx, cartID); err != nil {
		return 0, err
	}
	count, err := service.store.CountItems(ctx, cartID)
	if err != nil {
		return 0, err
	}
	if service.counts != nil {
		_ = service.counts.Set(ctx, cartID, count)
	}
	return count, nil
}

func (service *Service) invalidateCounts(ctx context.Context, cartIDs ...string) {
	if service.counts == nil {
		return
	}
	_ = service.counts.Invalidate(ctx, cartIDs...)
}
