package producer

import (
	"fmt"

	"github.com/IBM/sarama"
)

// NewSyncProducer builds the producer used by the outbox relay. WaitForAll
// keeps the relay's delete-after-ack contract honest: a row is only removed
// once the cluster has the message.
func NewSyncProducer(brokerList []string) (sarama.SyncProducer, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Return.Successes = true

	producer, err := sarama.NewSyncProducer(brokerList, cfg)
	if err != nil {
		return nil, fmt.Errorf("start sarama producer: %w", err)
	}

	return producer, nil
}
