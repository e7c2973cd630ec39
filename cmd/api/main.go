package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	redisclient "github.com/redis/go-redis/v9"
	mongoadapter "github.com/velumart/elite-slot/internal/adapters/mongo"
	"github.com/velumart/elite-slot/internal/adapters/postgres"
	"github.com/velumart/elite-slot/internal/adapters/rabbit"
	redisadapter "github.com/velumart/elite-slot/internal/adapters/redis"
	"github.com/velumart/elite-slot/internal/app"
	"github.com/velumart/elite-slot/internal/clock"
	"github.com/velumart/elite-slot/internal/config"
	httphandler "github.com/velumart/elite-slot/internal/http"
	"github.com/velumart/elite-slot/internal/idempotency"
	"github.com/velumart/elite-slot/internal/notify"
	"github.com/velumart/elite-slot/internal/observability"
	"github.com/velumart/elite-slot/internal/rateLimit"
	"github.com/velumart/elite-slot/migrations"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	shutdown, err := observability.SetupOTel(context.Background(), cfg)
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdown()

	logger := observability.NewLogger()

	pool, err := pgxpool.New(context.Background(), cfg.PGDSN)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()
	if err := migrations.Apply(context.Background(), pool); err != nil {
		log.Fatalf("failed to apply migrations: %v", err)
	}
	store := postgres.NewStore(pool)

	mongoClient, err := mongo.Connect(context.Background(), options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatalf("failed to connect to mongo: %v", err)
	}
	defer mongoClient.Disconnect(context.Background())
	profiles := mongoadapter.NewProfileRepository(mongoClient.Database("velumart"), logger)

	redisClient := redisclient.NewClient(&redisclient.Options{Addr: cfg.RedisAddr})
	redisCache := redisadapter.NewCache(redisClient)
	redisIdemp := redisadapter.NewIdempotency(redisClient)
	idemp := idempotency.NewIdempotency(redisIdemp, time.Hour)
	rl := rateLimit.NewRateLimiter(redisCache)

	rabbitConn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("failed to connect to rabbitmq: %v", err)
	}
	defer rabbitConn.Close()
	rabbitPub, err := rabbit.NewPublisher(rabbitConn)
	if err != nil {
		log.Fatalf("failed to create publisher: %v", err)
	}
	notifier := notify.NewNotifier(rabbitPub, logger)

	clk := clock.NewSystem()
	pricing := app.NewPricingService(store, clk, cfg.ReferenceCountry, cfg.ReferenceCurrency)
	holds := app.NewHoldService(store, pricing, profiles, redisCache, clk, cfg.HoldTTL)
	payments := app.NewPaymentService(store, profiles, notifier, clk, cfg.InvoicePrefix, cfg.ReferenceCountry)
	approvals := app.NewApprovalService(store, profiles, notifier, redisCache, clk)
	periods := app.NewPeriodService(store, notifier, clk, cfg.PeriodDuration)
	catalog := app.NewCatalogService(store, profiles, clk)
	extensions := app.NewExtensionService(store, notifier, clk, cfg.ExtensionDayPrice, cfg.ReferenceCurrency, cfg.InvoicePrefix)
	eligibility := app.NewEligibilityService(profiles)

	handlers := httphandler.NewHandlers(cfg, holds, payments, approvals, periods, catalog, pricing, extensions, eligibility, idemp)

	r := httphandler.SetupRouter(handlers, logger, rl)

	srv := &http.Server{
		Addr:    ":8080",
		Handler: r,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutdown Server ...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server Shutdown:", err)
	}
	logger.Info("Server exiting")
}
