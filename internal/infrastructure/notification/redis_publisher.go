// Package notification delivers invoice status notifications to the
// external notification service.
package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	appledger "github.com/clinic/backend/internal/application/ledger"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Publisher is the part of a Redis client the notifier needs.
// redis.UniversalClient satisfies it.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisPublisher publishes status notifications as JSON on a Redis pub/sub
// channel. Subscribers fan them out to the recipient.
type RedisPublisher struct {
	client  Publisher
	channel string
	timeout time.Duration
	logger  *zap.Logger
}

// NewRedisPublisher creates a new RedisPublisher
func NewRedisPublisher(client Publisher, channel string, timeout time.Duration, logger *zap.Logger) *RedisPublisher {
	return &RedisPublisher{
		client:  client,
		channel: channel,
		timeout: timeout,
		logger:  logger,
	}
}

// NotifyStatusChanged publishes the notification. A publish with no
// subscriber is not an error; the message is dropped by Redis.
func (p *RedisPublisher) NotifyStatusChanged(ctx context.Context, notification appledger.StatusNotification) error {
	payload, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("failed to encode status notification: %w", err)
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	receivers, err := p.client.Publish(ctx, p.channel, payload).Result()
	if err != nil {
		return fmt.Errorf("failed to publish status notification: %w", err)
	}

	p.logger.Debug("status notification published",
		zap.String("channel", p.channel),
		zap.String("invoice_no", notification.InvoiceNo),
		zap.Int64("receivers", receivers),
	)
	return nil
}

var _ appledger.StatusNotifier = (*RedisPublisher)(nil)
