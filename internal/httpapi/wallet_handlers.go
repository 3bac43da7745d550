package httpapi

import (
	"net/http"
	"strconv"

	"github.com/MarkoPoloResearchLab/bookingledger/pkg/wallet"
	"github.com/gin-gonic/gin"
)

func (handler *httpHandler) handleGetWallet(ctx *gin.Context) {
	userID, err := walletUser(ctx)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	account, err := handler.wallets.GetOrCreateWallet(ctx.Request.Context(), userID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"wallet": newWalletPayload(account)})
}

func (handler *httpHandler) handleGetBalance(ctx *gin.Context) {
	userID, err := walletUser(ctx)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	balance, err := handler.wallets.GetBalance(ctx.Request.Context(), userID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"balance": money(balance)})
}

func (handler *httpHandler) handleAddFunds(ctx *gin.Context) {
	userID, err := walletUser(ctx)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	var request depositRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse(errorCodeInvalidRequest))
		return
	}
	amount, err := wallet.NewAmount(request.Amount)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	transaction, err := handler.wallets.AddFunds(ctx.Request.Context(), userID, amount, wallet.FundingOptions{
		ExternalReference: request.ExternalReference,
		Description:       request.Description,
	})
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"transaction": newTransactionPayload(transaction)})
}

func (handler *httpHandler) handleWithdrawFunds(ctx *gin.Context) {
	userID, err := walletUser(ctx)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	var request withdrawalRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse(errorCodeInvalidRequest))
		return
	}
	amount, err := wallet.NewAmount(request.Amount)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	transaction, err := handler.wallets.WithdrawFunds(ctx.Request.Context(), userID, amount, request.Description)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"transaction": newTransactionPayload(transaction)})
}

func (handler *httpHandler) handleProcessPayment(ctx *gin.Context) {
	userID, err := walletUser(ctx)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	var request paymentRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse(errorCodeInvalidRequest))
		return
	}
	amount, err := wallet.NewAmount(request.Amount)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	transaction, err := handler.wallets.ProcessPayment(ctx.Request.Context(), userID, amount, wallet.PaymentOptions{
		BookingID:   request.BookingID,
		ServiceID:   request.ServiceID,
		Description: request.Description,
	})
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"transaction": newTransactionPayload(transaction)})
}

func (handler *httpHandler) handleListTransactions(ctx *gin.Context) {
	userID, err := walletUser(ctx)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	limit, limitErr := queryInt(ctx, "limit")
	offset, offsetErr := queryInt(ctx, "offset")
	if limitErr != nil || offsetErr != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse(errorCodeInvalidRequest))
		return
	}
	transactions, err := handler.wallets.GetTransactions(ctx.Request.Context(), userID, limit, offset)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	payload := make([]transactionPayload, 0, len(transactions))
	for _, transaction := range transactions {
		payload = append(payload, newTransactionPayload(transaction))
	}
	ctx.JSON(http.StatusOK, gin.H{"transactions": payload})
}

func (handler *httpHandler) handleUpdateAutoReload(ctx *gin.Context) {
	userID, err := walletUser(ctx)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	var request autoReloadRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse(errorCodeInvalidRequest))
		return
	}
	account, err := handler.wallets.UpdateAutoReloadSettings(ctx.Request.Context(), userID, wallet.AutoReloadSettings{
		Enabled:         request.Enabled,
		Threshold:       request.Threshold,
		Amount:          request.Amount,
		PaymentMethodID: request.PaymentMethodID,
	})
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"wallet": newWalletPayload(account)})
}

// queryInt reads an optional integer query parameter; absent means zero.
func queryInt(ctx *gin.Context, name string) (int, error) {
	raw := ctx.Query(name)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}
