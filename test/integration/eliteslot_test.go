package integration_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	redisclient "github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	mongoadapter "github.com/velumart/elite-slot/internal/adapters/mongo"
	"github.com/velumart/elite-slot/internal/adapters/postgres"
	"github.com/velumart/elite-slot/internal/adapters/rabbit"
	redisadapter "github.com/velumart/elite-slot/internal/adapters/redis"
	"github.com/velumart/elite-slot/internal/app"
	"github.com/velumart/elite-slot/internal/clock"
	"github.com/velumart/elite-slot/internal/config"
	"github.com/velumart/elite-slot/internal/domain"
	httphandler "github.com/velumart/elite-slot/internal/http"
	"github.com/velumart/elite-slot/internal/idempotency"
	"github.com/velumart/elite-slot/internal/notify"
	"github.com/velumart/elite-slot/internal/observability"
	"github.com/velumart/elite-slot/internal/rateLimit"
	"github.com/velumart/elite-slot/migrations"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func TestIntegration_HoldConfirmAvailability(t *testing.T) {
	ctx := context.Background()

	pgContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			Env:          map[string]string{"POSTGRES_USER": "eliteslot", "POSTGRES_PASSWORD": "eliteslot", "POSTGRES_DB": "eliteslot"},
			ExposedPorts: []string{"5432/tcp"},
			WaitingFor:   wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
		},
		Started: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer pgContainer.Terminate(ctx)

	mongoContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "mongo:7",
			ExposedPorts: []string{"27017/tcp"},
			WaitingFor:   wait.ForExec([]string{"mongosh", "--eval", "db.runCommand('ping').ok"}),
		},
		Started: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer mongoContainer.Terminate(ctx)

	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForExec([]string{"redis-cli", "ping"}),
		},
		Started: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer redisContainer.Terminate(ctx)

	rabbitContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "rabbitmq:3.13-management",
			ExposedPorts: []string{"5672/tcp", "15672/tcp"},
			WaitingFor:   wait.ForHTTP("/api/health").WithPort("15672"),
		},
		Started: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer rabbitContainer.Terminate(ctx)

	pgHost, err := pgContainer.Host(ctx)
	if err != nil {
		t.Fatal(err)
	}
	pgPort, err := pgContainer.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatal(err)
	}
	mongoHost, err := mongoContainer.Host(ctx)
	if err != nil {
		t.Fatal(err)
	}
	mongoPort, err := mongoContainer.MappedPort(ctx, "27017")
	if err != nil {
		t.Fatal(err)
	}
	redisHost, err := redisContainer.Host(ctx)
	if err != nil {
		t.Fatal(err)
	}
	redisPort, err := redisContainer.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatal(err)
	}
	rabbitHost, err := rabbitContainer.Host(ctx)
	if err != nil {
		t.Fatal(err)
	}
	rabbitPort, err := rabbitContainer.MappedPort(ctx, "5672")
	if err != nil {
		t.Fatal(err)
	}

	cfg := &config.Config{
		PGDSN:             "postgres://eliteslot:eliteslot@" + pgHost + ":" + pgPort.Port() + "/eliteslot?sslmode=disable",
		MongoURI:          "mongodb://" + mongoHost + ":" + mongoPort.Port(),
		RedisAddr:         redisHost + ":" + redisPort.Port(),
		RabbitURL:         "amqp://guest:guest@" + rabbitHost + ":" + rabbitPort.Port() + "/",
		HoldTTL:           15 * time.Minute,
		PeriodDuration:    30 * 24 * time.Hour,
		ExtensionDayPrice: 10,
		InvoicePrefix:     "ELS",
		ReferenceCountry:  "US",
		ReferenceCurrency: "USD",
		OTLPEndpoint:      "", // Skip otel for test
	}

	// Setup dependencies
	pool, err := pgxpool.New(ctx, cfg.PGDSN)
	if err != nil {
		t.Fatal(err)
	}
	defer pool.Close()
	if err := migrations.Apply(ctx, pool); err != nil {
		t.Fatal(err)
	}
	store := postgres.NewStore(pool)

	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		t.Fatal(err)
	}
	defer mongoClient.Disconnect(ctx)
	logger := observability.NewLogger()
	profiles := mongoadapter.NewProfileRepository(mongoClient.Database("velumart"), logger)

	redisClient := redisclient.NewClient(&redisclient.Options{Addr: cfg.RedisAddr})
	redisCache := redisadapter.NewCache(redisClient)
	redisIdemp := redisadapter.NewIdempotency(redisClient)
	idemp := idempotency.NewIdempotency(redisIdemp, time.Hour)
	rl := rateLimit.NewRateLimiter(redisCache)

	rabbitConn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		t.Fatal(err)
	}
	defer rabbitConn.Close()
	rabbitPub, err := rabbit.NewPublisher(rabbitConn)
	if err != nil {
		t.Fatal(err)
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

	// Start server
	srv := &http.Server{Addr: ":8089", Handler: r}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			t.Error(err)
		}
	}()
	defer srv.Shutdown(ctx)
	time.Sleep(100 * time.Millisecond)

	base := "http://localhost:8089"

	// Seed a slot and the surrounding platform's documents
	slot := domain.Slot{
		ID:        uuid.New(),
		Row:       1,
		Col:       1,
		Tier:      domain.TierTop,
		BasePrice: 100,
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}
	if err := store.InsertSlot(ctx, slot); err != nil {
		t.Fatal(err)
	}

	sellerID := uuid.New()
	listingID := uuid.New()
	if err := profiles.UpsertSeller(ctx, mongoadapter.SellerDoc{ID: sellerID, Tier: "business"}); err != nil {
		t.Fatal(err)
	}
	if err := profiles.UpsertListing(ctx, mongoadapter.ListingDoc{
		ID:               listingID,
		SellerID:         sellerID,
		Title:            "Vintage Turntable",
		ModerationStatus: "approved",
	}); err != nil {
		t.Fatal(err)
	}

	// The first period request bootstraps the active period
	req, _ := http.NewRequest("GET", base+"/v1/period/current", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("current period failed: %v, status: %d", err, resp.StatusCode)
	}
	resp.Body.Close()

	// Place a hold
	holdReq := map[string]interface{}{
		"slot_id":      slot.ID.String(),
		"listing_id":   listingID.String(),
		"country_code": "US",
	}
	holdBody, _ := json.Marshal(holdReq)
	holdKey := uuid.New().String()
	req, _ = http.NewRequest("POST", base+"/v1/holds", bytes.NewReader(holdBody))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", holdKey)
	req.Header.Set("X-Buyer-ID", sellerID.String())
	resp, err = http.DefaultClient.Do(req)
	if err != nil || resp.StatusCode != http.StatusCreated {
		t.Fatalf("hold failed: %v, status: %d", err, resp.StatusCode)
	}

	var holdResp struct {
		ID     uuid.UUID `json:"id"`
		Status string    `json:"status"`
		Price  float64   `json:"price"`
	}
	json.NewDecoder(resp.Body).Decode(&holdResp)
	resp.Body.Close()
	if holdResp.Status != "held" || holdResp.Price != 100 {
		t.Fatalf("unexpected hold: %+v", holdResp)
	}

	// Replaying the same key must return the original reservation
	req, _ = http.NewRequest("POST", base+"/v1/holds", bytes.NewReader(holdBody))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", holdKey)
	req.Header.Set("X-Buyer-ID", sellerID.String())
	resp, err = http.DefaultClient.Do(req)
	if err != nil || resp.StatusCode != http.StatusCreated {
		t.Fatalf("hold replay failed: %v, status: %d", err, resp.StatusCode)
	}
	var replayResp struct {
		ID uuid.UUID `json:"id"`
	}
	json.NewDecoder(resp.Body).Decode(&replayResp)
	resp.Body.Close()
	if replayResp.ID != holdResp.ID {
		t.Fatalf("replay returned a different reservation: %s vs %s", replayResp.ID, holdResp.ID)
	}

	// Confirm payment
	payReq := map[string]interface{}{
		"reservation_id": holdResp.ID.String(),
		"payment_method": "card",
	}
	payBody, _ := json.Marshal(payReq)
	req, _ = http.NewRequest("POST", base+"/v1/confirm-payment", bytes.NewReader(payBody))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", uuid.New().String())
	req.Header.Set("X-Buyer-ID", sellerID.String())
	resp, err = http.DefaultClient.Do(req)
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("confirm payment failed: %v, status: %d", err, resp.StatusCode)
	}
	var payResp struct {
		Status        string `json:"status"`
		InvoiceNumber string `json:"invoice_number"`
	}
	json.NewDecoder(resp.Body).Decode(&payResp)
	resp.Body.Close()
	if payResp.Status != "confirmed" {
		t.Errorf("expected status confirmed, got %s", payResp.Status)
	}
	wantInvoice := fmt.Sprintf("ELS-%d-000001", time.Now().Year())
	if payResp.InvoiceNumber != wantInvoice {
		t.Errorf("expected invoice %s, got %s", wantInvoice, payResp.InvoiceNumber)
	}

	// The slot must show as booked
	req, _ = http.NewRequest("GET", base+"/v1/availability", nil)
	resp, err = http.DefaultClient.Do(req)
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("availability failed: %v, status: %d", err, resp.StatusCode)
	}
	var availResp struct {
		Slots []struct {
			SlotID uuid.UUID `json:"slot_id"`
			Status string    `json:"status"`
		} `json:"slots"`
	}
	json.NewDecoder(resp.Body).Decode(&availResp)
	resp.Body.Close()
	if len(availResp.Slots) != 1 {
		t.Fatalf("expected 1 slot, got %d", len(availResp.Slots))
	}
	if availResp.Slots[0].Status != "booked" {
		t.Errorf("expected status booked, got %s", availResp.Slots[0].Status)
	}
}
