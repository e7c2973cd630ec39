package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/velumart/elite-slot/internal/adapters/postgres"
	"github.com/velumart/elite-slot/internal/adapters/rabbit"
	"github.com/velumart/elite-slot/internal/app"
	"github.com/velumart/elite-slot/internal/clock"
	"github.com/velumart/elite-slot/internal/config"
	"github.com/velumart/elite-slot/internal/notify"
	"github.com/velumart/elite-slot/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	shutdownOtel, err := observability.SetupOTel(context.Background(), cfg)
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdownOtel()

	logger := observability.NewLogger()

	pool, err := pgxpool.New(context.Background(), cfg.PGDSN)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()
	store := postgres.NewStore(pool)

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

	periods := app.NewPeriodService(store, notifier, clock.NewSystem(), cfg.PeriodDuration)

	worker := NewRotationWorker(periods, rabbitPub, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go worker.Run(ctx, time.Minute)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("Shutdown rotation worker")
}

// RotationWorker sweeps lapsed holds and rotates lapsed periods on a
// timer. Both steps are idempotent; availability is already correct
// without the sweep, so a missed tick only delays reporting.
type RotationWorker struct {
	periods   *app.PeriodService
	rabbitPub *rabbit.Publisher
	logger    observability.Logger
}

func NewRotationWorker(periods *app.PeriodService, rabbitPub *rabbit.Publisher, logger observability.Logger) *RotationWorker {
	return &RotationWorker{periods: periods, rabbitPub: rabbitPub, logger: logger}
}

func (w *RotationWorker) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *RotationWorker) tick(ctx context.Context) {
	swept, err := w.periods.Sweep(ctx)
	if err != nil {
		w.logger.WithError(err).Error("failed to sweep expired holds")
	}
	for _, id := range swept {
		w.publish(ctx, "hold.expired", map[string]interface{}{"reservation_id": id})
	}

	result, err := w.periods.Rotate(ctx)
	if err != nil {
		w.logger.WithError(err).Error("failed to rotate period")
		return
	}
	if !result.Rotated {
		return
	}
	w.logger.WithField("expired", result.Expired).WithField("notified", result.Notified).Info("period rotated")
	w.publish(ctx, "period.rotated", map[string]interface{}{
		"ended_period_id": result.OldPeriod.ID,
		"new_period_id":   result.NewPeriod.ID,
		"expired":         result.Expired,
		"notified":        result.Notified,
	})
}

func (w *RotationWorker) publish(ctx context.Context, eventType string, payload map[string]interface{}) {
	body, _ := json.Marshal(payload)
	msg := amqp.Publishing{
		MessageId:   uuid.New().String(),
		ContentType: "application/json",
		Body:        body,
	}
	if err := w.rabbitPub.Publish(ctx, eventType, msg); err != nil {
		w.logger.WithError(err).Error("failed to publish " + eventType)
	}
}
