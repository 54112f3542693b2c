package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/growersmarket/farmdirect-backend/api/controllers"
	"github.com/growersmarket/farmdirect-backend/api/routes"
	"github.com/growersmarket/farmdirect-backend/internal/auth"
	"github.com/growersmarket/farmdirect-backend/internal/cart"
	checkoutsvc "github.com/growersmarket/farmdirect-backend/internal/checkout"
	"github.com/growersmarket/farmdirect-backend/internal/delivery"
	"github.com/growersmarket/farmdirect-backend/internal/orders"
	"github.com/growersmarket/farmdirect-backend/internal/products"
	"github.com/growersmarket/farmdirect-backend/internal/shippingfee"
	"github.com/growersmarket/farmdirect-backend/internal/users"
	"github.com/growersmarket/farmdirect-backend/pkg/auth/session"
	"github.com/growersmarket/farmdirect-backend/pkg/config"
	"github.com/growersmarket/farmdirect-backend/pkg/db"
	"github.com/growersmarket/farmdirect-backend/pkg/logger"
	"github.com/growersmarket/farmdirect-backend/pkg/metrics"
	"github.com/growersmarket/farmdirect-backend/pkg/migrate"
	"github.com/growersmarket/farmdirect-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
		os.Exit(1)
	}

	orderMetrics := metrics.NewOrderMetrics(prometheus.DefaultRegisterer)

	gormDB := dbClient.DB()
	userRepo := users.NewRepository(gormDB)
	productRepo := products.NewRepository(gormDB)
	cartRepo := cart.NewRepository(gormDB)
	groupRepo := checkoutsvc.NewRepository(gormDB)
	orderRepo := orders.NewRepository(gormDB)
	feeRepo := shippingfee.NewRepository(gormDB)
	areaRepo := delivery.NewRepository(gormDB)

	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:       userRepo,
		SessionManager: sessionManager,
		JWTConfig:      cfg.JWT,
		PasswordConfig: cfg.Password,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create auth service", err)
		os.Exit(1)
	}

	productService, err := products.NewService(productRepo, dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create products service", err)
		os.Exit(1)
	}

	cartService, err := cart.NewService(cartRepo, productRepo, dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create cart service", err)
		os.Exit(1)
	}

	feeService, err := shippingfee.NewService(feeRepo, dbClient, cfg.Checkout.FallbackShippingFeeCents)
	if err != nil {
		logg.Error(context.Background(), "failed to create shipping fee service", err)
		os.Exit(1)
	}

	deliveryService, err := delivery.NewService(areaRepo, dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create delivery service", err)
		os.Exit(1)
	}

	checkoutService, err := checkoutsvc.NewService(dbClient, groupRepo, cartRepo, productRepo, feeService, nil, orderMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	orderService, err := orders.NewService(orderRepo, productRepo, dbClient, nil, orderMetrics, cfg.Checkout.BatchShipCap)
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	readiness := map[string]controllers.ReadyDep{
		"database": dbClient,
		"redis":    redisClient,
	}

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			readiness,
			redisClient,
			sessionManager,
			authService,
			productService,
			cartService,
			checkoutService,
			orderService,
			feeService,
			deliveryService,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
