package sender_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"payment-relay/internal/apperror"
	"payment-relay/internal/domain"
	"payment-relay/internal/sender"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProducer struct {
	produced   []*kafka.Message
	produceErr error
	deliverErr error
}

func (f *fakeProducer) Produce(msg *kafka.Message, deliveryChan chan kafka.Event) error {
	if f.produceErr != nil {
		return f.produceErr
	}
	f.produced = append(f.produced, msg)
	report := &kafka.Message{TopicPartition: kafka.TopicPartition{
		Topic:     msg.TopicPartition.Topic,
		Partition: 0,
		Offset:    kafka.Offset(7),
		Error:     f.deliverErr,
	}}
	go func() { deliveryChan <- report }()
	return nil
}

func TestPurchasePublisherPublishesKeyedEvent(t *testing.T) {
	producer := &fakeProducer{}
	pub := sender.NewPurchasePublisher(producer, "successful_payments")

	err := pub.Publish(context.Background(), domain.PaidEvent{TransactionID: "tx_1", Amount: 1000, UserEmail: "a@x.com"})
	require.NoError(t, err)

	require.Len(t, producer.produced, 1)
	msg := producer.produced[0]
	assert.Equal(t, "successful_payments", *msg.TopicPartition.Topic)
	assert.Equal(t, []byte("tx_1"), msg.Key)

	var ev domain.PaidEvent
	require.NoError(t, json.Unmarshal(msg.Value, &ev))
	assert.Equal(t, int64(1000), ev.Amount)
}

func TestPurchasePublisherDeliveryFailure(t *testing.T) {
	pub := sender.NewPurchasePublisher(&fakeProducer{deliverErr: errors.New("broker down")}, "successful_payments")

	err := pub.Publish(context.Background(), domain.PaidEvent{TransactionID: "tx_1"})

	assert.Equal(t, apperror.KindSinkDelivery, apperror.KindOf(err))
	assert.ErrorContains(t, err, "broker down")
}

func TestPurchasePublisherProduceFailure(t *testing.T) {
	pub := sender.NewPurchasePublisher(&fakeProducer{produceErr: errors.New("queue full")}, "successful_payments")

	err := pub.Publish(context.Background(), domain.PaidEvent{TransactionID: "tx_1"})

	assert.ErrorContains(t, err, "queue full")
}
