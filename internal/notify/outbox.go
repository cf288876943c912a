package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/tradesmatepro/portal-identity/internal/model"
	redisclient "github.com/tradesmatepro/portal-identity/internal/redis"
	"github.com/tradesmatepro/portal-identity/internal/util"
)

// Outbox hands emails to the delivery worker through a Redis list. A publish
// on EmailOutboxChannel wakes idle workers; the list is the source of truth,
// so a missed publish only delays delivery.
type Outbox struct {
	redis *redisclient.Client
}

func NewOutbox(client *redisclient.Client) *Outbox {
	return &Outbox{redis: client}
}

func (o *Outbox) Notify(ctx context.Context, n model.EmailNotification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	if err := o.redis.LPush(ctx, redisclient.EmailOutboxKey, data).Err(); err != nil {
		return fmt.Errorf("enqueue notification: %w", err)
	}

	if err := o.redis.Publish(ctx, redisclient.EmailOutboxChannel, n.ID).Err(); err != nil {
		log.Warn().Err(err).Str("notificationId", n.ID).Msg("outbox wake-up publish failed")
	}

	log.Debug().
		Str("notificationId", n.ID).
		Str("kind", string(n.Kind)).
		Str("to", util.MaskEmail(n.To)).
		Msg("notification enqueued")
	return nil
}

// Pending reports how many notifications wait for the delivery worker.
func (o *Outbox) Pending(ctx context.Context) (int64, error) {
	return o.redis.LLen(ctx, redisclient.EmailOutboxKey).Result()
}
