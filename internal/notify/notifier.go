package notify

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/velumart/elite-slot/internal/adapters/rabbit"
	"github.com/velumart/elite-slot/internal/observability"
)

// Notifier is the fire-and-forget sink for user and admin messages.
// Publish failures are logged and swallowed: a dropped notification must
// never roll back the transaction that triggered it.
type Notifier struct {
	pub    *rabbit.Publisher
	logger observability.Logger
}

func NewNotifier(pub *rabbit.Publisher, logger observability.Logger) *Notifier {
	return &Notifier{pub: pub, logger: logger}
}

func (n *Notifier) User(ctx context.Context, userID uuid.UUID, kind string, data map[string]interface{}) {
	n.publish(ctx, "notify.user", userID.String(), kind, data)
}

func (n *Notifier) Admins(ctx context.Context, kind string, data map[string]interface{}) {
	n.publish(ctx, "notify.admin", "", kind, data)
}

func (n *Notifier) publish(ctx context.Context, key, userID, kind string, data map[string]interface{}) {
	payload, err := json.Marshal(map[string]interface{}{
		"user_id": userID,
		"kind":    kind,
		"data":    data,
	})
	if err != nil {
		n.logger.WithError(err).Error("marshal notification")
		return
	}
	msg := amqp.Publishing{
		MessageId:   uuid.New().String(),
		ContentType: "application/json",
		Body:        payload,
	}
	if err := n.pub.Publish(ctx, key, msg); err != nil {
		observability.NotifyFailures.Inc()
		n.logger.WithField("kind", kind).WithError(err).Error("publish notification")
	}
}
