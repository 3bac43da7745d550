package httpapi

import (
	"errors"
	"io"
	"net/http"

	"github.com/MarkoPoloResearchLab/bookingledger/pkg/cart"
	"github.com/MarkoPoloResearchLab/bookingledger/pkg/checkout"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func (handler *httpHandler) handleGetOrCreateCart(ctx *gin.Context) {
	identity, err := cartIdentity(ctx)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	owned, err := handler.carts.GetOrCreateCart(ctx.Request.Context(), identity)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"cart": newCartPayload(owned)})
}

func (handler *httpHandler) handleMergeCart(ctx *gin.Context) {
	sessionToken := ctx.GetString(contextKeySessionToken)
	if sessionToken == "" {
		ctx.JSON(http.StatusBadRequest, errorResponse(errorCodeMissingIdentity))
		return
	}
	merged, err := handler.carts.MergeGuestCartToUser(ctx.Request.Context(), sessionToken, ctx.GetString(contextKeyUserID))
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"cart": newCartPayload(merged)})
}

func (handler *httpHandler) handleGetCart(ctx *gin.Context) {
	cartID, ok := handler.authorizeCart(ctx, ctx.Param("cartID"))
	if !ok {
		return
	}
	contents, err := handler.carts.GetCartWithItems(ctx.Request.Context(), cartID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, newCartWithItemsPayload(contents))
}

func (handler *httpHandler) handleCountItems(ctx *gin.Context) {
	cartID, ok := handler.authorizeCart(ctx, ctx.Param("cartID"))
	if !ok {
		return
	}
	count, err := handler.carts.GetCartItemCount(ctx.Request.Context(), cartID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"count": count})
}

func (handler *httpHandler) handleAddItem(ctx *gin.Context) {
	cartID, ok := handler.authorizeCart(ctx, ctx.Param("cartID"))
	if !ok {
		return
	}
	var request addItemRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse(errorCodeInvalidRequest))
		return
	}
	item, err := handler.carts.AddItemToCart(ctx.Request.Context(), cartID, request.newItem())
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"item": newItemPayload(item)})
}

func (handler *httpHandler) handleUpdateItem(ctx *gin.Context) {
	itemID, ok := handler.authorizeItem(ctx, ctx.Param("itemID"))
	if !ok {
		return
	}
	body, err := io.ReadAll(ctx.Request.Body)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse(errorCodeInvalidRequest))
		return
	}
	update, err := cart.DecodeItemUpdate(body)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	item, err := handler.carts.UpdateCartItem(ctx.Request.Context(), itemID, update)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"item": newItemPayload(item)})
}

func (handler *httpHandler) handleRemoveItem(ctx *gin.Context) {
	itemID, ok := handler.authorizeItem(ctx, ctx.Param("itemID"))
	if !ok {
		return
	}
	if err := handler.carts.RemoveCartItem(ctx.Request.Context(), itemID); err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.Status(http.StatusNoContent)
}

func (handler *httpHandler) handleClearCart(ctx *gin.Context) {
	cartID, ok := handler.authorizeCart(ctx, ctx.Param("cartID"))
	if !ok {
		return
	}
	removed, err := handler.carts.ClearCart(ctx.Request.Context(), cartID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"removed": removed})
}

func (handler *httpHandler) handleCheckout(ctx *gin.Context) {
	userID, err := walletUser(ctx)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	cartID := ctx.Param("cartID")
	receipt, err := handler.bookings.PayCart(ctx.Request.Context(), userID, cartID)
	if errors.Is(err, checkout.ErrCartNotCleared) {
		// The money moved; report success and leave the stale cart to the client.
		handler.logger.Warn("cart not cleared after payment", zap.String("cart_id", cartID), zap.Error(err))
		ctx.JSON(http.StatusCreated, gin.H{"receipt": newReceiptPayload(receipt, false)})
		return
	}
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"receipt": newReceiptPayload(receipt, true)})
}

// authorizeCart loads cartID and rejects callers holding neither of its credentials.
func (handler *httpHandler) authorizeCart(ctx *gin.Context, cartID string) (string, bool) {
	owned, err := handler.carts.GetCart(ctx.Request.Context(), cartID)
	if err != nil {
		handler.respondError(ctx, err)
		return "", false
	}
	if !ownsCart(ctx, owned) {
		ctx.JSON(http.StatusForbidden, errorResponse(errorCodeForbidden))
		return "", false
	}
	return owned.ID, true
}

func (handler *httpHandler) authorizeItem(ctx *gin.Context, itemID string) (string, bool) {
	item, err := handler.carts.GetItem(ctx.Request.Context(), itemID)
	if err != nil {
		handler.respondError(ctx, err)
		return "", false
	}
	if _, ok := handler.authorizeCart(ctx, item.CartID); !ok {
		return "", false
	}
	return item.ID, true
}
