// Package ingest consumes announcement-created events and feeds them to the
// matching pipeline, one ordered loop per partition.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog"

	"github.com/PaulChelaru/petfinder-matching-service/internal/globaltime"
	"github.com/PaulChelaru/petfinder-matching-service/internal/matching"
	"github.com/PaulChelaru/petfinder-matching-service/internal/metrics"
	eventschema "github.com/PaulChelaru/petfinder-matching-service/schema"
)

type Processor interface {
	ProcessAnnouncement(ctx context.Context, id string) (matching.Result, error)
}

// Recorder receives one observation per handled event. A nil Recorder
// records nothing.
type Recorder interface {
	EventProcessed(outcome string, took time.Duration)
}

type Consumer struct {
	subscriber message.Subscriber
	topics     []string
	processor  Processor
	logger     zerolog.Logger
	recorder   Recorder
}

func NewConsumer(subscriber message.Subscriber, topics []string, processor Processor, logger zerolog.Logger, recorder Recorder) (*Consumer, error) {
	if subscriber == nil {
		return nil, fmt.Errorf("subscriber is required")
	}
	if processor == nil {
		return nil, fmt.Errorf("processor is required")
	}
	cleaned := make([]string, 0, len(topics))
	for _, t := range topics {
		if t = strings.TrimSpace(t); t != "" {
			cleaned = append(cleaned, t)
		}
	}
	if len(cleaned) == 0 {
		return nil, fmt.Errorf("at least one topic is required")
	}
	return &Consumer{
		subscriber: subscriber,
		topics:     cleaned,
		processor:  processor,
		logger:     logger.With().Str("component", "ingest").Logger(),
		recorder:   recorder,
	}, nil
}

// Run subscribes to every partition topic and blocks until ctx is cancelled
// and each partition loop has finished its in-flight event.
func (c *Consumer) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	for _, topic := range c.topics {
		messages, err := c.subscriber.Subscribe(ctx, topic)
		if err != nil {
			cancel()
			wg.Wait()
			return fmt.Errorf("subscribe to %s: %w", topic, err)
		}

		wg.Add(1)
		go func(topic string, messages <-chan *message.Message) {
			defer wg.Done()
			c.consumePartition(ctx, topic, messages)
		}(topic, messages)
	}

	c.logger.Info().Strs("topics", c.topics).Msg("consumer started")
	wg.Wait()
	c.logger.Info().Msg("consumer stopped")
	return nil
}

func (c *Consumer) consumePartition(ctx context.Context, topic string, messages <-chan *message.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			c.handle(topic, msg)
		}
	}
}

// handle processes one event. The event is always acknowledged: failures are
// logged and the partition moves on.
func (c *Consumer) handle(topic string, msg *message.Message) {
	started := globaltime.Now()
	defer msg.Ack()

	log := c.logger.With().Str("topic", topic).Str("message_uuid", msg.UUID).Logger()

	ev, err := eventschema.ValidateAnnouncementEvent(msg.Payload)
	if err != nil {
		log.Warn().Err(err).Int("code", int(matching.CodeInvalidPayload)).Msg("drop undecodable event")
		c.record(metrics.OutcomeInvalid, started)
		return
	}
	log = log.With().Str("announcement_id", ev.AnnouncementID).Logger()

	// Shutdown must not abort an event halfway through its writes.
	ctx := context.WithoutCancel(msg.Context())
	res, err := c.processor.ProcessAnnouncement(ctx, ev.AnnouncementID)
	switch {
	case errors.Is(err, matching.ErrAnnouncementNotFound):
		log.Warn().Err(err).Msg("drop event for unknown announcement")
		c.record(metrics.OutcomeNotFound, started)
	case err != nil:
		log.Error().Err(err).Int("code", int(matching.CodeOf(err))).Msg("matching failed")
		c.record(metrics.OutcomeFailed, started)
	case len(res.Matches) == 0:
		c.record(metrics.OutcomeNoMatch, started)
	default:
		c.record(metrics.OutcomeMatched, started)
	}
}

func (c *Consumer) record(outcome string, started time.Time) {
	if c.recorder != nil {
		c.recorder.EventProcessed(outcome, globaltime.Since(started))
	}
}
