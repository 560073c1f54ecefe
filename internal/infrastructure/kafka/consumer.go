package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/campuspoints/loyalty-service/internal/infrastructure/redis"
	"github.com/segmentio/kafka-go"
)

// TransactionEvent is the payload published to the transactions topic every
// time the engine creates a transaction or mutates its flags. Balances are
// written synchronously inside the engine's database transaction; the stream
// exists for cache invalidation and as an audit feed.
type TransactionEvent struct {
	EventType     string `json:"event_type"`
	TransactionID int32  `json:"transaction_id"`
	Type          string `json:"type"`
	UserID        int32  `json:"user_id"`
	RelatedUserID int32  `json:"related_user_id,omitempty"`
	Amount        int32  `json:"amount"`
	Suspicious    bool   `json:"suspicious"`
	Processed     bool   `json:"processed"`
	CreatedAt     string `json:"created_at"`
}

type Consumer struct {
	reader      *kafka.Reader
	redisClient redis.RedisClient
}

func NewConsumer(brokers []string, topic, groupID string, redisClient redis.RedisClient) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			Topic:    topic,
			GroupID:  groupID,
			MinBytes: 10e3,
			MaxBytes: 10e6,
		}),
		redisClient: redisClient,
	}
}

// Consume invalidates cached balances for every user a transaction event
// touches and writes an audit log line per event.
func (c *Consumer) Consume(ctx context.Context) {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Error("failed to read Kafka message", "topic", c.reader.Config().Topic, "error", err)
			continue
		}

		var event TransactionEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			slog.Error("failed to unmarshal transaction event", "error", err)
			continue
		}

		if event.UserID != 0 {
			if err := c.redisClient.Del(ctx, fmt.Sprintf("user:%d:balance", event.UserID)); err != nil {
				slog.Error("failed to invalidate balance cache", "user_id", event.UserID, "error", err)
			}
		}
		if event.RelatedUserID != 0 {
			if err := c.redisClient.Del(ctx, fmt.Sprintf("user:%d:balance", event.RelatedUserID)); err != nil {
				slog.Error("failed to invalidate balance cache", "user_id", event.RelatedUserID, "error", err)
			}
		}

		slog.Info("transaction event consumed",
			"event_type", event.EventType,
			"transaction_id", event.TransactionID,
			"type", event.Type,
			"user_id", event.UserID,
			"amount", event.Amount,
			"suspicious", event.Suspicious,
			"processed", event.Processed)
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
