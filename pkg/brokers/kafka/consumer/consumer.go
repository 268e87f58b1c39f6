package consumer

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/IBM/sarama"

	"github.com/grubline/fulfillment_service/internal/dispatcher"
	"github.com/grubline/fulfillment_service/internal/domain/models"
	"github.com/grubline/fulfillment_service/pkg/logger"
)

type EventDispatcher interface {
	Dispatch(ctx context.Context, envelope models.EventEnvelope) error
}

// Consumer pulls inbound envelopes from the event topic. Messages are keyed
// by order uuid, so one partition carries all events of an order in order.
type Consumer struct {
	log        logger.Logger
	group      sarama.ConsumerGroup
	topic      string
	dispatcher EventDispatcher
}

func New(log logger.Logger, brokerList []string, groupID, topic string, eventDispatcher EventDispatcher) (*Consumer, error) {
	cfg := sarama.NewConfig()
	cfg.Consumer.Offsets.Initial = sarama.OffsetOldest

	group, err := sarama.NewConsumerGroup(brokerList, groupID, cfg)
	if err != nil {
		return nil, err
	}

	return &Consumer{
		log:        log,
		group:      group,
		topic:      topic,
		dispatcher: eventDispatcher,
	}, nil
}

// Run consumes until the context is cancelled or the group is closed.
func (c *Consumer) Run(ctx context.Context) error {
	const op = "brokers.kafka.consumer.Run"

	handler := &groupHandler{log: c.log, dispatcher: c.dispatcher}

	for {
		if err := c.group.Consume(ctx, []string{c.topic}, handler); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			c.log.Error(op, logger.String("consume error", err.Error()))
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (c *Consumer) Close() error {
	return c.group.Close()
}

type groupHandler struct {
	log        logger.Logger
	dispatcher EventDispatcher
}

func (h *groupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

// ConsumeClaim acknowledges by marking the offset. Terminal outcomes are
// always marked, even on failure, so a poison envelope cannot stall the
// partition. Retryable outcomes end the claim without marking, which makes
// the transport redeliver from the last committed offset.
func (h *groupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	const op = "brokers.kafka.consumer.ConsumeClaim"

	for message := range claim.Messages() {
		var envelope models.EventEnvelope
		if err := json.Unmarshal(message.Value, &envelope); err != nil {
			h.log.Warn(op,
				logger.String("skipping undecodable message", err.Error()),
				logger.Int("partition", int(message.Partition)),
			)
			session.MarkMessage(message, "")
			continue
		}

		err := h.dispatcher.Dispatch(session.Context(), envelope)

		switch dispatcher.Classify(err) {
		case dispatcher.OutcomeAck:
			session.MarkMessage(message, "")
		case dispatcher.OutcomeRetry:
			h.log.Warn(op,
				logger.String("event_uuid", envelope.EventUUID.String()),
				logger.String("redelivering after", err.Error()),
			)
			return nil
		}
	}

	return nil
}
