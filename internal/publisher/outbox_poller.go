package publisher

import (
	"context"
	"log"
	"time"

	"github.com/Luffyzera/onde-comprar/internal/repository"
	"github.com/segmentio/kafka-go"
)

// ReservationExpirer releases pickup reservations whose hold window has
// passed.
type ReservationExpirer interface {
	ExpireOverduePickups(ctx context.Context) (int, error)
}

// OutboxPoller drains the order outbox into Kafka and periodically expires
// overdue pickup reservations.
type OutboxPoller struct {
	eventTick  time.Duration
	expiryTick time.Duration
	repo       repository.OutboxRepository
	expirer    ReservationExpirer
	writer     *kafka.Writer
}

func NewOutboxPoller(repo repository.OutboxRepository, expirer ReservationExpirer, brokers ...string) *OutboxPoller {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  "order-events",
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
	return &OutboxPoller{time.Second, time.Minute, repo, expirer, w}
}

func (p *OutboxPoller) Run(ctx context.Context) {
	eventTicker := time.NewTicker(p.eventTick)
	expiryTicker := time.NewTicker(p.expiryTick)
	defer eventTicker.Stop()
	defer expiryTicker.Stop()
	for {
		select {
		case <-eventTicker.C:
			p.processUnpublishedEvents(ctx)
		case <-expiryTicker.C:
			p.expireOverduePickups(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (p *OutboxPoller) Close() error {
	return p.writer.Close()
}

func (p *OutboxPoller) processUnpublishedEvents(ctx context.Context) {
	events, err := p.repo.GetUnprocessedEvents(ctx, 100)
	if err != nil {
		log.Printf("failed to fetch outbox events: %v", err)
		return
	}

	for _, event := range events {
		if err := p.publishToKafka(ctx, event); err != nil {
			log.Printf("failed to publish event id = %v with error %v", event.ID, err)
			continue
		}

		if err := p.repo.MarkEventAsProcessed(ctx, event.ID); err != nil {
			log.Printf("failed to mark event as processed id = %v with error %v", event.ID, err)
			continue
		}
	}
}

func (p *OutboxPoller) expireOverduePickups(ctx context.Context) {
	expired, err := p.expirer.ExpireOverduePickups(ctx)
	if err != nil {
		log.Printf("failed to expire overdue pickups: %v", err)
		return
	}
	if expired > 0 {
		log.Printf("expired %d overdue pickup reservations", expired)
	}
}

func (p *OutboxPoller) publishToKafka(ctx context.Context, event *repository.OutboxEvent) error {
	msg := kafka.Message{
		Key:   []byte(event.AggregateID), // order id for ordering
		Value: event.Payload,             // already JSON from the outbox
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
		},
	}

	return p.writer.WriteMessages(ctx, msg)
}
