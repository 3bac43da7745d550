package httpapi

import (
	"errors"
	"net/http"

	"github.com/MarkoPoloResearchLab/bookingledger/pkg/cart"
	"github.com/MarkoPoloResearchLab/bookingledger/pkg/checkout"
	"github.com/MarkoPoloResearchLab/bookingledger/pkg/refund"
	"github.com/MarkoPoloResearchLab/bookingledger/pkg/wallet"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	errorCodeInvalidAmount       = "invalid_amount"
	errorCodeInsufficientBalance = "insufficient_balance"
	errorCodeConcurrentDepletion = "concurrent_depletion"
	errorCodeMissingIdentity     = "missing_identity"
	errorCodeNotFound            = "not_found"
	errorCodeInvalidRequest      = "invalid_request"
	errorCodeUnauthorized        = "unauthorized"
	errorCodeForbidden           = "forbidden"
	errorCodeCartClosed          = "cart_closed"
	errorCodeWalletInactive      = "wallet_inactive"
	errorCodeBookingNotPaid      = "booking_not_paid"
	errorCodeAlreadyPaid         = "already_paid"
	errorCodeAlreadyRefunded     = "already_refunded"
	errorCodeInternal            = "internal"
)

type errorMapping struct {
	target error
	status int
	code   string
}

// errorMappings is ordered: ErrConcurrentDepletion wraps ErrInsufficientBalance and must match first.
var errorMappings = []errorMapping{
	{target: wallet.ErrBookingNotPaid, status: http.StatusNotFound, code: errorCodeBookingNotPaid},
	{target: wallet.ErrBookingAlreadyPaid, status: http.StatusConflict, code: errorCodeAlreadyPaid},
	{target: wallet.ErrBookingRefunded, status: http.StatusConflict, code: errorCodeAlreadyRefunded},
	{target: wallet.ErrConcurrentDepletion, status: http.StatusConflict, code: errorCodeConcurrentDepletion},
	{target: wallet.ErrInsufficientBalance, status: http.StatusPaymentRequired, code: errorCodeInsufficientBalance},
	{target: wallet.ErrInvalidAmount, status: http.StatusBadRequest, code: errorCodeInvalidAmount},
	{target: refund.ErrInvalidAmount, status: http.StatusBadRequest, code: errorCodeInvalidAmount},
	{target: wallet.ErrInvalidUserID, status: http.StatusBadRequest, code: errorCodeMissingIdentity},
	{target: cart.ErrMissingIdentity, status: http.StatusBadRequest, code: errorCodeMissingIdentity},
	{target: wallet.ErrNotFound, status: http.StatusNotFound, code: errorCodeNotFound},
	{target: cart.ErrNotFound, status: http.StatusNotFound, code: errorCodeNotFound},
	{target: wallet.ErrWalletInactive, status: http.StatusForbidden, code: errorCodeWalletInactive},
	{target: checkout.ErrCartOwnership, status: http.StatusForbidden, code: errorCodeForbidden},
	{target: cart.ErrCartClosed, status: http.StatusConflict, code: errorCodeCartClosed},
	{target: cart.ErrDuplicateItem, status: http.StatusConflict, code: errorCodeInvalidRequest},
	{target: cart.ErrInvalidItem, status: http.StatusBadRequest, code: errorCodeInvalidRequest},
	{target: wallet.ErrInvalidPagination, status: http.StatusBadRequest, code: errorCodeInvalidRequest},
	{target: wallet.ErrInvalidAutoReload, status: http.StatusBadRequest, code: errorCodeInvalidRequest},
	{target: refund.ErrInvalidSchedule, status: http.StatusBadRequest, code: errorCodeInvalidRequest},
	{target: checkout.ErrEmptyCart, status: http.StatusBadRequest, code: errorCodeInvalidRequest},
	{target: checkout.ErrInvalidBooking, status: http.StatusBadRequest, code: errorCodeInvalidRequest},
}

func (handler *httpHandler) respondError(ctx *gin.Context, err error) {
	for _, mapping := range errorMappings {
		if errors.Is(err, mapping.target) {
			ctx.JSON(mapping.status, errorResponse(mapping.code))
			return
		}
	}
	handler.logger.Error("request failed", zap.String("path", ctx.FullPath()), zap.Error(err))
	ctx.JSON(http.StatusInternalServerError, errorResponse(errorCodeInternal))
}

func abortWithError(ctx *gin.Context, status int, code string) {
	ctx.AbortWithStatusJSON(status, errorResponse(code))
}

func errorResponse(code string) gin.H {
	return gin.H{"error": code}
}
