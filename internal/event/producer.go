package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/utafrali/storefront-sync/internal/notify"
	pkgkafka "github.com/utafrali/storefront-sync/pkg/kafka"
	"github.com/utafrali/storefront-sync/pkg/logger"
)

// TopicCartFlashed carries mini-cart flash events.
var TopicCartFlashed = pkgkafka.Topic("cart", "flashed")

// Aggregate type constant.
const AggregateTypeSession = "session"

// Source identifier for events originating from this service.
const SourceStorefrontSync = "storefront-sync"

// CartFlashedData is the payload for a cart.flashed event.
type CartFlashedData struct {
	Session   string `json:"session"`
	Source    string `json:"source,omitempty"`
	ItemCount int    `json:"item_count"`
	FlashedAt string `json:"flashed_at"`
}

// Publisher is the subset of *pkgkafka.Producer used here.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes storefront sync events to Kafka. It implements
// notify.Notifier.
type Producer struct {
	kafka  Publisher
	logger *slog.Logger
}

// NewProducer creates a new event producer.
func NewProducer(kafka Publisher, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishCartFlashed publishes a cart.flashed event.
func (p *Producer) PublishCartFlashed(ctx context.Context, n notify.Notification) error {
	data := CartFlashedData{
		Session:   n.Session,
		Source:    n.Source,
		ItemCount: n.ItemCount,
		FlashedAt: n.At.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	}

	event, err := pkgkafka.NewEvent(TopicCartFlashed, n.Session, AggregateTypeSession, SourceStorefrontSync, data)
	if err != nil {
		return fmt.Errorf("create cart.flashed event: %w", err)
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		event.WithCorrelationID(id)
	}
	if n.Source != "" {
		event.WithMetadata("command", n.Source)
	}

	if err := p.kafka.Publish(ctx, TopicCartFlashed, event); err != nil {
		return fmt.Errorf("publish cart.flashed event: %w", err)
	}

	p.logger.DebugContext(ctx, "published cart.flashed event",
		slog.String("session", n.Session),
		slog.Int("item_count", n.ItemCount),
	)

	return nil
}

// Notify publishes cart-updated notifications and ignores other kinds.
func (p *Producer) Notify(ctx context.Context, n notify.Notification) error {
	if n.Kind != notify.CartUpdated {
		return nil
	}
	return p.PublishCartFlashed(ctx, n)
}
