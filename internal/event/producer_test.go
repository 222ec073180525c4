package event

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront-sync/internal/notify"
	pkgkafka "github.com/utafrali/storefront-sync/pkg/kafka"
	"github.com/utafrali/storefront-sync/pkg/logger"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, topic string, event *pkgkafka.Event) error {
	args := m.Called(ctx, topic, event)
	return args.Error(0)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestProducer_NotifyPublishesCartFlashed(t *testing.T) {
	pub := new(mockPublisher)
	pub.On("Publish", mock.Anything, "storefront.cart.flashed", mock.MatchedBy(func(e *pkgkafka.Event) bool {
		var data CartFlashedData
		if err := e.UnmarshalData(&data); err != nil {
			return false
		}
		return e.AggregateID == "user-7" &&
			e.AggregateType == AggregateTypeSession &&
			e.Source == SourceStorefrontSync &&
			e.CorrelationID == "corr-1" &&
			data.ItemCount == 4 &&
			data.Source == "moveItemToCart" &&
			e.Metadata["command"] == "moveItemToCart"
	})).Return(nil).Once()

	p := NewProducer(pub, quietLogger())
	ctx := logger.WithCorrelationID(context.Background(), "corr-1")
	err := p.Notify(ctx, notify.Notification{
		Kind:      notify.CartUpdated,
		Session:   "user-7",
		Source:    "moveItemToCart",
		ItemCount: 4,
		At:        time.Now(),
	})

	require.NoError(t, err)
	pub.AssertExpectations(t)
}

func TestProducer_NotifyIgnoresOtherKinds(t *testing.T) {
	pub := new(mockPublisher)
	p := NewProducer(pub, quietLogger())

	require.NoError(t, p.Notify(context.Background(), notify.Notification{Kind: "something_else"}))
	pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

func TestProducer_PublishError(t *testing.T) {
	pub := new(mockPublisher)
	boom := errors.New("broker unavailable")
	pub.On("Publish", mock.Anything, TopicCartFlashed, mock.Anything).Return(boom)

	err := NewProducer(pub, quietLogger()).Notify(context.Background(),
		notify.Notification{Kind: notify.CartUpdated, Session: "user-7"})

	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "publish cart.flashed event")
}
