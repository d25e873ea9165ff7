package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kisanmarket/kisan-golang/internal/auth"
	"github.com/kisanmarket/kisan-golang/internal/cart"
	"github.com/kisanmarket/kisan-golang/internal/checkout"
	"github.com/kisanmarket/kisan-golang/internal/config"
	"github.com/kisanmarket/kisan-golang/internal/database"
	"github.com/kisanmarket/kisan-golang/internal/email"
	"github.com/kisanmarket/kisan-golang/internal/events"
	"github.com/kisanmarket/kisan-golang/internal/handlers"
	"github.com/kisanmarket/kisan-golang/internal/metrics"
	"github.com/kisanmarket/kisan-golang/internal/orders"
	"github.com/kisanmarket/kisan-golang/internal/payment"
	"github.com/kisanmarket/kisan-golang/internal/routes"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	// 0. --- Load configuration (.env, then environment) ---
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("CRITICAL ERROR: %v", err)
	}

	// 1. --- Main Database Connection ---
	db, err := database.OpenDB(context.Background(), cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("Failed to connect to primary database: %v", err)
	}
	defer db.Close()

	if err := database.RunMigrations(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	repo := orders.NewMySQLRepository(db, cfg.DBTimeout)

	// 2. --- Redis (optional): carts and the customer cache ---
	var (
		carts         cart.Store = cart.NewMemoryStore()
		customerCache payment.CustomerCache
	)
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatalf("Failed to connect to redis: %v", err)
		}
		cancel()

		carts = cart.NewRedisStore(rdb)
		customerCache = payment.NewRedisCustomerCache(rdb)
	} else {
		log.Println("WARNING: REDIS_ADDR is not set. Carts are kept in memory.")
	}

	// 3. --- Payment provider ---
	var provider payment.Gateway
	switch cfg.PaymentProvider {
	case config.ProviderStripe:
		provider, err = payment.NewStripeGateway(cfg.StripeSecretKey, nil)
		if err != nil {
			log.Fatalf("CRITICAL ERROR: %v", err)
		}
	case config.ProviderMemory:
		log.Println("WARNING: PAYMENT_PROVIDER=memory. No real payments will be taken.")
		provider = payment.NewMemoryGateway(cfg.FrontendOrigin)
	}
	gateway := payment.NewResilientGateway(provider, payment.ResilienceOptions{
		Timeout: cfg.ProviderTimeout,
		Cache:   customerCache,
	})

	// 4. --- Settlement listeners ---
	var publisher interface {
		checkout.SettlementListener
		Close() error
	} = events.NopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
	}
	defer publisher.Close()
	notifier := email.NewConfirmationNotifier(email.LogSender{}, cfg.GuestEmail)

	// 5. --- Metrics ---
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// --- Application Setup ---
	verifier := auth.NewVerifier(cfg.JWTSecret)
	checkoutCfg := checkout.Config{
		Currency:       cfg.Currency,
		GuestEmail:     cfg.GuestEmail,
		FrontendOrigin: cfg.FrontendOrigin,
	}
	app := &handlers.Handlers{
		Initiator:  checkout.NewInitiator(repo, gateway, verifier, checkoutCfg, m),
		Reconciler: checkout.NewReconciler(repo, gateway, m, notifier, publisher),
		Orders:     repo,
		Carts:      carts,
	}

	// --- Router Setup ---
	router := routes.SetupRouter(app, routes.Options{
		Verifier:        verifier,
		Metrics:         m,
		CORSAllowOrigin: cfg.CORSAllowOrigin,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      otelhttp.NewHandler(router, "kisan-api"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.ProviderTimeout + 20*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Start Server ---
	go func() {
		log.Printf("Starting Kisan Marketplace API server on port %s...", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("server forced to shutdown: %v", err)
	}
	log.Println("server exited")
}
