// Package events publishes post lifecycle notifications.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"memories/internal/config"
)

type Type string

const (
	PostCreated   Type = "post.created"
	PostUpdated   Type = "post.updated"
	PostDeleted   Type = "post.deleted"
	PostLiked     Type = "post.liked"
	PostCommented Type = "post.commented"
)

// Event is the JSON value written for every post mutation.
type Event struct {
	Type   Type      `json:"type"`
	PostID string    `json:"postId"`
	UserID string    `json:"userId,omitempty"`
	At     time.Time `json:"at"`
}

func New(t Type, postID, userID string) Event {
	return Event{Type: t, PostID: postID, UserID: userID, At: time.Now().UTC()}
}

// Publisher delivers events. Handlers treat publish failures as non-fatal.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// NewPublisher returns a Kafka publisher, or a no-op one when no brokers
// are configured.
func NewPublisher(cfg config.KafkaConfig) Publisher {
	if len(cfg.Brokers) == 0 {
		slog.Info("event publishing disabled, no KAFKA_BROKERS configured")
		return Noop{}
	}
	slog.Info("publishing post events", "brokers", cfg.Brokers, "topic", cfg.Topic)
	return NewKafkaPublisher(&kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        true,
		BatchTimeout: 50 * time.Millisecond,
	})
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events keyed by post id, so events for one post stay
// on one partition in order.
type KafkaPublisher struct {
	w messageWriter
}

func NewKafkaPublisher(w messageWriter) *KafkaPublisher {
	return &KafkaPublisher{w: w}
}

func (p *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	value, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return p.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(e.PostID),
		Value: value,
		Time:  e.At,
	})
}

func (p *KafkaPublisher) Close() error { return p.w.Close() }

type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }
func (Noop) Close() error                         { return nil }
