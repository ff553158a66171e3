package sender

import (
	"context"
	"encoding/json"
	"fmt"

	"payment-relay/internal/apperror"
	"payment-relay/internal/domain"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	log "github.com/sirupsen/logrus"
)

const BrokerSinkName = "kafka"

// Producer is the part of *kafka.Producer the publisher needs.
type Producer interface {
	Produce(msg *kafka.Message, deliveryChan chan kafka.Event) error
}

// PurchasePublisher publishes paid events keyed by transaction id and waits
// for the broker's delivery report.
type PurchasePublisher struct {
	producer Producer
	topic    string
}

func NewKafkaProducer(servers string) (*kafka.Producer, error) {
	configMap := &kafka.ConfigMap{
		"bootstrap.servers":  servers,
		"acks":               "all",
		"enable.idempotence": true,
	}
	log.WithField("kafka_servers", servers).Info("Connecting to Kafka")
	return kafka.NewProducer(configMap)
}

func NewPurchasePublisher(producer Producer, topic string) *PurchasePublisher {
	return &PurchasePublisher{producer: producer, topic: topic}
}

func (p *PurchasePublisher) Name() string { return BrokerSinkName }

func (p *PurchasePublisher) Publish(ctx context.Context, ev domain.PaidEvent) error {
	value, err := json.Marshal(ev)
	if err != nil {
		return apperror.SinkDelivery(BrokerSinkName, fmt.Errorf("failed to encode paid event: %w", err))
	}

	delivery := make(chan kafka.Event, 1)
	msg := &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &p.topic, Partition: kafka.PartitionAny},
		Key:            []byte(ev.TransactionID),
		Value:          value,
	}
	if err := p.producer.Produce(msg, delivery); err != nil {
		return apperror.SinkDelivery(BrokerSinkName, err)
	}

	select {
	case <-ctx.Done():
		return apperror.SinkDelivery(BrokerSinkName, ctx.Err())
	case e := <-delivery:
		m, ok := e.(*kafka.Message)
		if !ok {
			return apperror.SinkDelivery(BrokerSinkName, fmt.Errorf("unexpected delivery event %v", e))
		}
		if m.TopicPartition.Error != nil {
			return apperror.SinkDelivery(BrokerSinkName, m.TopicPartition.Error)
		}
		log.WithFields(log.Fields{
			"transaction_id": ev.TransactionID,
			"topic":          p.topic,
			"partition":      m.TopicPartition.Partition,
			"offset":         m.TopicPartition.Offset.String(),
		}).Info("Paid event published")
		return nil
	}
}
