package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/amm-trade-engine/internal/constants"
	"github.com/aman-zulfiqar/amm-trade-engine/internal/models"
	"github.com/aman-zulfiqar/amm-trade-engine/internal/storage"
)

// PubSubManager publishes trade attempts and streams them to subscribers.
type PubSubManager struct {
	client redis.UniversalClient
	logger *logrus.Logger
}

func NewPubSubManager(client redis.UniversalClient, logger *logrus.Logger) *PubSubManager {
	if logger == nil {
		logger = logrus.New()
	}
	return &PubSubManager{client: client, logger: logger}
}

func (p *PubSubManager) RecordAttempt(ctx context.Context, attempt *models.TradeAttempt) error {
	return p.PublishAttempt(ctx, attempt)
}

// PublishAttempt fans attempt out to the global, per-trade and per-outcome
// channels.
func (p *PubSubManager) PublishAttempt(ctx context.Context, attempt *models.TradeAttempt) error {
	data, err := json.Marshal(attempt)
	if err != nil {
		return err
	}

	channels := []string{
		constants.PubSubChannelAttempts,
		constants.PubSubChannelTradePrefix + attempt.TradeID,
		constants.PubSubChannelOutcomePrefix + string(attempt.Outcome),
	}

	pipe := p.client.Pipeline()
	for _, channel := range channels {
		pipe.Publish(ctx, channel, data)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("publish attempt: %w", err)
	}
	return nil
}

// Subscribe delivers attempts from channel until ctx is cancelled.
func (p *PubSubManager) Subscribe(ctx context.Context, channel string, handler storage.AttemptHandler) error {
	return p.consume(ctx, p.client.Subscribe(ctx, channel), channel, handler)
}

// PSubscribe is Subscribe for a pattern such as "trades:outcome:*".
func (p *PubSubManager) PSubscribe(ctx context.Context, pattern string, handler storage.AttemptHandler) error {
	return p.consume(ctx, p.client.PSubscribe(ctx, pattern), pattern, handler)
}

func (p *PubSubManager) consume(ctx context.Context, sub *redis.PubSub, name string, handler storage.AttemptHandler) error {
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", name, err)
	}
	p.logger.WithField("channel", name).Info("subscribed")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var attempt models.TradeAttempt
			if err := json.Unmarshal([]byte(msg.Payload), &attempt); err != nil {
				p.logger.WithError(err).WithField("channel", msg.Channel).Warn("dropping malformed attempt")
				continue
			}
			handler(&attempt)
		}
	}
}
