// Package httpapi exposes the wallet, cart, and booking flows over HTTP.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/MarkoPoloResearchLab/bookingledger/pkg/cart"
	"github.com/MarkoPoloResearchLab/bookingledger/pkg/checkout"
	"github.com/MarkoPoloResearchLab/bookingledger/pkg/wallet"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ErrInvalidRouterConfig reports a missing dependency.
var ErrInvalidRouterConfig = errors.New("invalid router config")

// Wallets is the wallet surface served over HTTP.
type Wallets interface {
	GetOrCreateWallet(ctx context.Context, userID wallet.UserID) (wallet.Wallet, error)
	GetBalance(ctx context.Context, userID wallet.UserID) (decimal.Decimal, error)
	AddFunds(ctx context.Context, userID wallet.UserID, amount wallet.Amount, options wallet.FundingOptions) (wallet.Transaction, error)
	WithdrawFunds(ctx context.Context, userID wallet.UserID, amount wallet.Amount, description string) (wallet.Transaction, error)
	ProcessPayment(ctx context.Context, userID wallet.UserID, amount wallet.Amount, options wallet.PaymentOptions) (wallet.Transaction, error)
	GetTransactions(ctx context.Context, userID wallet.UserID, limit int, offset int) ([]wallet.Transaction, error)
	UpdateAutoReloadSettings(ctx context.Context, userID wallet.UserID, settings wallet.AutoReloadSettings) (wallet.Wallet, error)
}

// Carts is the cart surface served over HTTP.
type Carts interface {
	GetOrCreateCart(ctx context.Context, identity cart.Identity) (cart.Cart, error)
	MergeGuestCartToUser(ctx context.Context, sessionToken string, userID string) (cart.Cart, error)
	GetCart(ctx context.Context, cartID string) (cart.Cart, error)
	GetCartWithItems(ctx context.Context, cartID string) (cart.CartWithItems, error)
	GetCartItemCount(ctx context.Context, cartID string) (int64, error)
	GetItem(ctx context.Context, itemID string) (cart.Item, error)
	AddItemToCart(ctx context.Context, cartID string, newItem cart.NewItem) (cart.Item, error)
	UpdateCartItem(ctx context.Context, itemID string, update cart.ItemUpdate) (cart.Item, error)
	RemoveCartItem(ctx context.Context, itemID string) error
	ClearCart(ctx context.Context, cartID string) (int64, error)
}

// Bookings is the checkout surface served over HTTP.
type Bookings interface {
	PayCart(ctx context.Context, userID wallet.UserID, cartID string) (checkout.Receipt, error)
	CancelBooking(ctx context.Context, cancellation checkout.Cancellation) (checkout.CancellationResult, error)
}

// RouterConfig carries the dependencies of NewRouter.
type RouterConfig struct {
	Logger         *zap.Logger
	Wallets        Wallets
	Carts          Carts
	Bookings       Bookings
	Tokens         *TokenValidator
	Gatherer       prometheus.Gatherer
	AllowedOrigins []string
	RequestTimeout time.Duration
	Now            func() time.Time
}

type httpHandler struct {
	logger   *zap.Logger
	wallets  Wallets
	carts    Carts
	bookings Bookings
	nowFn    func() time.Time
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(cfg RouterConfig) (*gin.Engine, error) {
	if cfg.Logger == nil || cfg.Wallets == nil || cfg.Carts == nil || cfg.Bookings == nil || cfg.Tokens == nil {
		return nil, fmt.Errorf("%w: missing dependency", ErrInvalidRouterConfig)
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	handler := &httpHandler{
		logger:   cfg.Logger,
		wallets:  cfg.Wallets,
		carts:    cfg.Carts,
		bookings: cfg.Bookings,
		nowFn:    cfg.Now,
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(cfg.Logger))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Origin", "Accept", "Authorization", sessionTokenHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))

	api := router.Group("/api")
	api.Use(authenticate(cfg.Tokens))
	if cfg.RequestTimeout > 0 {
		api.Use(requestTimeout(cfg.RequestTimeout))
	}

	walletRoutes := api.Group("/wallet", requireUser())
	walletRoutes.GET("", handler.handleGetWallet)
	walletRoutes.GET("/balance", handler.handleGetBalance)
	walletRoutes.POST("/deposits", handler.handleAddFunds)
	walletRoutes.POST("/withdrawals", handler.handleWithdrawFunds)
	walletRoutes.POST("/payments", handler.handleProcessPayment)
	walletRoutes.GET("/transactions", handler.handleListTransactions)
	walletRoutes.PUT("/auto-reload", handler.handleUpdateAutoReload)

	cartRoutes := api.Group("/cart", requireIdentity())
	cartRoutes.POST("", handler.handleGetOrCreateCart)
	cartRoutes.POST("/merge", requireUser(), handler.handleMergeCart)
	cartRoutes.PATCH("/items/:itemID", handler.handleUpdateItem)
	cartRoutes.DELETE("/items/:itemID", handler.handleRemoveItem)
	cartRoutes.GET("/:cartID", handler.handleGetCart)
	cartRoutes.GET("/:cartID/count", handler.handleCountItems)
	cartRoutes.POST("/:cartID/items", handler.handleAddItem)
	cartRoutes.DELETE("/:cartID/items", handler.handleClearCart)
	cartRoutes.POST("/:cartID/checkout", requireUser(), handler.handleCheckout)

	api.POST("/bookings/:bookingID/cancellation", requireUser(), handler.handleCancelBooking)
	api.POST("/refunds/quote", handler.handleRefundQuote)

	return router, nil
}

// Serve runs server until ctx is cancelled, then shuts it down within shutdownTimeout.
func Serve(ctx context.Context, server *http.Server, logger *zap.Logger, shutdownTimeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("bookingledger listening", zap.String("addr", server.Addr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
			logger.Warn("server shutdown error", zap.Error(shutdownErr))
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		started := time.Now()
		ctx.Next()
		logger.Info("http request",
			zap.String("method", ctx.Request.Method),
			zap.String("path", ctx.FullPath()),
			zap.Int("status", ctx.Writer.Status()),
			zap.Duration("latency", time.Since(started)),
		)
	}
}

func requestTimeout(timeout time.Duration) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		requestCtx, cancel := context.WithTimeout(ctx.Request.Context(), timeout)
		defer cancel()
		ctx.Request = ctx.Request.WithContext(requestCtx)
		ctx.Next()
	}
}
