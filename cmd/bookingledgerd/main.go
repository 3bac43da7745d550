package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/MarkoPoloResearchLab/bookingledger/internal/cache"
	"github.com/MarkoPoloResearchLab/bookingledger/internal/config"
	"github.com/MarkoPoloResearchLab/bookingledger/internal/httpapi"
	"github.com/MarkoPoloResearchLab/bookingledger/internal/observability"
	"github.com/MarkoPoloResearchLab/bookingledger/internal/store/gormstore"
	"github.com/MarkoPoloResearchLab/bookingledger/pkg/cart"
	"github.com/MarkoPoloResearchLab/bookingledger/pkg/checkout"
	"github.com/MarkoPoloResearchLab/bookingledger/pkg/wallet"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	flagListenAddr      = "listen-addr"
	flagDatabaseURL     = "database-url"
	flagRedisURL        = "redis-url"
	flagAllowedOrigins  = "allowed-origins"
	flagJWTSigningKey   = "jwt-signing-key"
	flagJWTIssuer       = "jwt-issuer"
	flagCurrency        = "currency"
	flagCartTTL         = "cart-ttl"
	flagCountCacheTTL   = "count-cache-ttl"
	flagRequestTimeout  = "request-timeout"
	flagShutdownTimeout = "shutdown-timeout"
	envPrefix           = "BOOKINGLEDGER"
	readHeaderTimeout   = 5 * time.Second
)

func main() {
	rootCmd := newRootCommand()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "bookingledgerd: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cfg := config.Config{}
	cmd := &cobra.Command{
		Use:           "bookingledgerd",
		Short:         "Wallet, cart, and refund HTTP service for bookings",
		SilenceUsage:  true,
		SilenceErrors: true,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("load .env: %w", err)
			}
			return loadConfig(cmd, &cfg)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, cfg)
		},
	}

	cmd.Flags().String(flagListenAddr, "", "HTTP listen address")
	cmd.Flags().String(flagDatabaseURL, "", "postgres:// or sqlite:// connection string")
	cmd.Flags().String(flagRedisURL, "", "redis:// URL for the cart count cache (optional)")
	cmd.Flags().String(flagAllowedOrigins, "", "comma-separated list of allowed CORS origins")
	cmd.Flags().String(flagJWTSigningKey, "", "HS256 key used to verify bearer tokens (required)")
	cmd.Flags().String(flagJWTIssuer, "", "expected JWT issuer")
	cmd.Flags().String(flagCurrency, "", "ISO currency of new wallets")
	cmd.Flags().Duration(flagCartTTL, 0, "lifetime of a new cart")
	cmd.Flags().Duration(flagCountCacheTTL, 0, "expiry of cached cart counts")
	cmd.Flags().Duration(flagRequestTimeout, 0, "per-request timeout")
	cmd.Flags().Duration(flagShutdownTimeout, 0, "graceful shutdown timeout")

	return cmd
}

func loadConfig(cmd *cobra.Command, cfg *config.Config) error {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindEnv(flagDatabaseURL, envPrefix+"_DATABASE_URL", "DATABASE_URL"); err != nil {
		return err
	}
	if err := v.BindEnv(flagRedisURL, envPrefix+"_REDIS_URL", "REDIS_URL"); err != nil {
		return err
	}
	for _, flagName := range []string{flagListenAddr, flagDatabaseURL, flagRedisURL, flagAllowedOrigins, flagJWTSigningKey, flagJWTIssuer, flagCurrency, flagCartTTL, flagCountCacheTTL, flagRequestTimeout, flagShutdownTimeout} {
		if err := v.BindPFlag(flagName, cmd.Flags().Lookup(flagName)); err != nil {
			return err
		}
	}

	cfg.ListenAddr = strings.TrimSpace(v.GetString(flagListenAddr))
	cfg.DatabaseURL = strings.TrimSpace(v.GetString(flagDatabaseURL))
	cfg.RedisURL = strings.TrimSpace(v.GetString(flagRedisURL))
	cfg.AllowedOrigins = config.ParseAllowedOrigins(v.GetString(flagAllowedOrigins))
	cfg.JWTSigningKey = v.GetString(flagJWTSigningKey)
	cfg.JWTIssuer = strings.TrimSpace(v.GetString(flagJWTIssuer))
	cfg.Currency = strings.TrimSpace(v.GetString(flagCurrency))
	cfg.CartTTL = v.GetDuration(flagCartTTL)
	cfg.CountCacheTTL = v.GetDuration(flagCountCacheTTL)
	cfg.RequestTimeout = v.GetDuration(flagRequestTimeout)
	cfg.ShutdownTimeout = v.GetDuration(flagShutdownTimeout)

	return cfg.Validate()
}

func runServer(ctx context.Context, cfg config.Config) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	gormDB, cleanup, driver, err := openDatabase(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("database open: %w", err)
	}
	defer func() { _ = cleanup() }()

	if err := gormstore.Migrate(gormDB); err != nil {
		return err
	}

	walletStore, closeWalletStore, err := openWalletStore(ctx, driver, cfg.DatabaseURL, gormDB)
	if err != nil {
		return fmt.Errorf("wallet store: %w", err)
	}
	defer closeWalletStore()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder, err := observability.NewOperationRecorder(logger, registry)
	if err != nil {
		return fmt.Errorf("metrics init: %w", err)
	}

	clock := func() time.Time { return time.Now().UTC() }
	walletService, err := wallet.NewService(walletStore, clock,
		wallet.WithOperationLogger(recorder),
		wallet.WithCurrency(cfg.Currency),
	)
	if err != nil {
		return fmt.Errorf("wallet service init: %w", err)
	}

	cartOptions := []cart.ServiceOption{
		cart.WithOperationLogger(recorder),
		cart.WithTTL(cfg.CartTTL),
	}
	if cfg.CacheEnabled() {
		redisClient, err := cache.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("redis init: %w", err)
		}
		defer func() { _ = redisClient.Close() }()
		counts, err := cache.NewCartCountCache(redisClient, cfg.CountCacheTTL)
		if err != nil {
			return fmt.Errorf("cart count cache init: %w", err)
		}
		cartOptions = append(cartOptions, cart.WithCountCache(counts))
	}
	cartService, err := cart.NewService(gormstore.NewCartStore(gormDB), clock, cartOptions...)
	if err != nil {
		return fmt.Errorf("cart service init: %w", err)
	}

	checkoutService, err := checkout.NewService(walletService, cartService, clock)
	if err != nil {
		return fmt.Errorf("checkout service init: %w", err)
	}

	tokens, err := httpapi.NewTokenValidator([]byte(cfg.JWTSigningKey), cfg.JWTIssuer)
	if err != nil {
		return fmt.Errorf("token validator init: %w", err)
	}

	gin.SetMode(gin.ReleaseMode)
	router, err := httpapi.NewRouter(httpapi.RouterConfig{
		Logger:         logger,
		Wallets:        walletService,
		Carts:          cartService,
		Bookings:       checkoutService,
		Tokens:         tokens,
		Gatherer:       registry,
		AllowedOrigins: cfg.AllowedOrigins,
		RequestTimeout: cfg.RequestTimeout,
		Now:            clock,
	})
	if err != nil {
		return fmt.Errorf("router init: %w", err)
	}

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	logger.Info("bookingledgerd starting",
		zap.String("listen_addr", cfg.ListenAddr),
		zap.String("database_driver", driver),
		zap.Bool("count_cache", cfg.CacheEnabled()),
	)
	return httpapi.Serve(ctx, server, logger, cfg.ShutdownTimeout)
}
