// Package send relays pending outbox rows to Kafka. Messages are keyed by
// order uuid so the transport preserves per-order ordering; rows are deleted
// only after the producer acknowledges the batch, which keeps delivery
// at-least-once.
package send

import (
	"context"
	"fmt"

	"github.com/IBM/sarama"

	"github.com/grubline/fulfillment_service/internal/config"
	"github.com/grubline/fulfillment_service/internal/domain/models"
	"github.com/grubline/fulfillment_service/pkg/logger"
)

type outBoxGetter interface {
	FetchUnprocessedMessages(ctx context.Context) (messages []models.OutBoxMessage, err error)
}

type outBoxRemover interface {
	Delete(ctx context.Context, ids []int) error
}

type Service struct {
	log           logger.Logger
	kafkaConfig   config.KafkaConfig
	producer      sarama.SyncProducer
	outBoxGetter  outBoxGetter
	outBoxRemover outBoxRemover
}

func New(
	log logger.Logger,
	kafkaConfig config.KafkaConfig,
	producer sarama.SyncProducer,
	outBoxGetter outBoxGetter,
	outBoxRemover outBoxRemover,
) *Service {
	return &Service{
		log:           log,
		kafkaConfig:   kafkaConfig,
		producer:      producer,
		outBoxGetter:  outBoxGetter,
		outBoxRemover: outBoxRemover,
	}
}

func (s *Service) Send(ctx context.Context) error {
	messages, err := s.outBoxGetter.FetchUnprocessedMessages(ctx)
	if err != nil {
		return fmt.Errorf("fetch unprocessed messages: %w", err)
	}

	if len(messages) == 0 {
		return nil
	}

	saramaMessages := make([]*sarama.ProducerMessage, 0, len(messages))
	processedIDs := make([]int, 0, len(messages))

	for _, msg := range messages {
		saramaMessages = append(saramaMessages, &sarama.ProducerMessage{
			Topic: s.kafkaConfig.EventTopic,
			Key:   sarama.StringEncoder(msg.OrderUUID.String()),
			Value: sarama.ByteEncoder(msg.Payload),
		})

		processedIDs = append(processedIDs, msg.ID)
	}

	if err = s.producer.SendMessages(saramaMessages); err != nil {
		return fmt.Errorf("send messages: %w", err)
	}

	if err = s.outBoxRemover.Delete(ctx, processedIDs); err != nil {
		return fmt.Errorf("remove messages: %w", err)
	}

	s.log.InfoContext(ctx, "outbox relay", logger.Int("messages sent", len(messages)))

	return nil
}
