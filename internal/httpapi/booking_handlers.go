package httpapi

import (
	"net/http"

	"github.com/MarkoPoloResearchLab/bookingledger/pkg/checkout"
	"github.com/MarkoPoloResearchLab/bookingledger/pkg/refund"
	"github.com/gin-gonic/gin"
)

func (handler *httpHandler) handleCancelBooking(ctx *gin.Context) {
	userID, err := walletUser(ctx)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	var request scheduleRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse(errorCodeInvalidRequest))
		return
	}
	scheduledAt, err := request.schedule()
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	result, err := handler.bookings.CancelBooking(ctx.Request.Context(), checkout.Cancellation{
		UserID:      userID,
		BookingID:   ctx.Param("bookingID"),
		ScheduledAt: scheduledAt,
	})
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	payload := cancellationPayload{Quote: newQuotePayload(result.Quote)}
	if result.Refund != nil {
		refunded := newTransactionPayload(*result.Refund)
		payload.Refund = &refunded
	}
	ctx.JSON(http.StatusOK, payload)
}

func (handler *httpHandler) handleRefundQuote(ctx *gin.Context) {
	var request quoteRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse(errorCodeInvalidRequest))
		return
	}
	scheduledAt, err := request.schedule()
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	quote, err := refund.Calculate(scheduledAt, handler.nowFn(), request.AmountPaid)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"quote": newQuotePayload(quote)})
}
