package publisher

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/fjod/go_cart/pos-service/domain"
	"github.com/fjod/go_cart/pos-service/internal/store"
	"github.com/segmentio/kafka-go"
	"github.com/sony/gobreaker/v2"
)

// MessageWriter is the part of *kafka.Writer the poller uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// OutboxPoller publishes committed order events to Kafka. Events are marked
// processed only after a successful write, so delivery is at least once.
type OutboxPoller struct {
	eventTick time.Duration
	batchSize int
	repo      store.Outbox
	writer    MessageWriter
	breaker   *gobreaker.CircuitBreaker[struct{}]
	log       *slog.Logger
}

func NewOutboxPoller(repo store.Outbox, log *slog.Logger, topic string, brokers ...string) *OutboxPoller {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		WriteTimeout:           5 * time.Second,
	}
	return newOutboxPoller(repo, w, log, time.Second)
}

func newOutboxPoller(repo store.Outbox, writer MessageWriter, log *slog.Logger, tick time.Duration) *OutboxPoller {
	p := &OutboxPoller{
		eventTick: tick,
		batchSize: 100,
		repo:      repo,
		writer:    writer,
		log:       log,
	}
	p.breaker = gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "outbox-kafka",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return p
}

func (p *OutboxPoller) Run(ctx context.Context) {
	eventTicker := time.NewTicker(p.eventTick)
	defer eventTicker.Stop()
	for {
		select {
		case <-eventTicker.C:
			p.processUnpublishedEvents(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (p *OutboxPoller) Close() error {
	return p.writer.Close()
}

// processUnpublishedEvents publishes one batch and returns how many events
// were marked processed.
func (p *OutboxPoller) processUnpublishedEvents(ctx context.Context) int {
	events, err := p.repo.GetUnprocessedEvents(ctx, p.batchSize)
	if err != nil {
		p.log.ErrorContext(ctx, "failed to fetch outbox events", "error", err)
		return 0
	}

	published := make([]int64, 0, len(events))
	for _, event := range events {
		_, errPublish := p.breaker.Execute(func() (struct{}, error) {
			return struct{}{}, p.publishToKafka(ctx, event)
		})
		if errors.Is(errPublish, gobreaker.ErrOpenState) || errors.Is(errPublish, gobreaker.ErrTooManyRequests) {
			p.log.WarnContext(ctx, "kafka circuit open, postponing outbox batch", "pending", len(events)-len(published))
			break
		}
		if errPublish != nil {
			p.log.ErrorContext(ctx, "failed to publish outbox event", "event_id", event.ID, "error", errPublish)
			continue
		}
		published = append(published, event.ID)
	}

	if len(published) == 0 {
		return 0
	}
	if errMark := p.repo.MarkEventsAsProcessed(ctx, published); errMark != nil {
		p.log.ErrorContext(ctx, "failed to mark outbox events as processed", "count", len(published), "error", errMark)
		return 0
	}
	return len(published)
}

func (p *OutboxPoller) publishToKafka(ctx context.Context, event *domain.OutboxEvent) error {
	msg := kafka.Message{
		Key:   []byte(event.AggregateID), // order code keeps one order on one partition
		Value: event.Payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
		},
	}
	return p.writer.WriteMessages(ctx, msg)
}
