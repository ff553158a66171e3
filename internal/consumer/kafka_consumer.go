package consumer

import (
	"context"
	"sync/atomic"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	log "github.com/sirupsen/logrus"
)

const defaultPollTimeoutMs = 100

type MessageHandler interface {
	HandleMessage(ctx context.Context, message []byte) error
}

// Client is the part of *kafka.Consumer the loop uses.
type Client interface {
	SubscribeTopics(topics []string, rebalanceCb kafka.RebalanceCb) error
	Poll(timeoutMs int) kafka.Event
	Close() error
}

func NewKafkaClient(servers, groupID string) (*kafka.Consumer, error) {
	return kafka.NewConsumer(&kafka.ConfigMap{
		"bootstrap.servers": servers,
		"group.id":          groupID,
		"auto.offset.reset": "earliest",
	})
}

// PaidEventConsumer feeds the paid-event topic to a handler. A message the
// handler fails on is logged and skipped.
type PaidEventConsumer struct {
	client  Client
	topic   string
	handler MessageHandler

	handled atomic.Int64
	failed  atomic.Int64
}

func Subscribe(client Client, topic string, handler MessageHandler) (*PaidEventConsumer, error) {
	if err := client.SubscribeTopics([]string{topic}, nil); err != nil {
		return nil, err
	}
	log.WithField("topic", topic).Info("Subscribed to paid events")
	return &PaidEventConsumer{client: client, topic: topic, handler: handler}, nil
}

// Run polls until ctx is cancelled, which returns nil, or the broker reports
// a fatal error, which is returned.
func (c *PaidEventConsumer) Run(ctx context.Context) error {
	for ctx.Err() == nil {
		switch e := c.client.Poll(defaultPollTimeoutMs).(type) {
		case nil, kafka.PartitionEOF, kafka.OffsetsCommitted:
		case *kafka.Message:
			c.dispatch(ctx, e)
		case kafka.Error:
			if e.IsFatal() {
				log.WithError(e).WithField("topic", c.topic).Error("Fatal Kafka error, consumer stopping")
				return e
			}
			log.WithError(e).Warn("Kafka error")
		default:
			log.WithField("event", e.String()).Debug("Ignored Kafka event")
		}
	}
	log.WithFields(log.Fields{
		"topic":   c.topic,
		"handled": c.handled.Load(),
		"failed":  c.failed.Load(),
	}).Info("Paid event consumer stopped")
	return nil
}

func (c *PaidEventConsumer) dispatch(ctx context.Context, m *kafka.Message) {
	if err := c.handler.HandleMessage(ctx, m.Value); err != nil {
		c.failed.Add(1)
		log.WithError(err).WithFields(log.Fields{
			"key":       string(m.Key),
			"partition": m.TopicPartition.Partition,
			"offset":    m.TopicPartition.Offset.String(),
		}).Error("Failed to handle paid event")
		return
	}
	c.handled.Add(1)
}

// Stats returns how many messages were handled and how many failed.
func (c *PaidEventConsumer) Stats() (handled, failed int64) {
	return c.handled.Load(), c.failed.Load()
}

func (c *PaidEventConsumer) Close() error {
	return c.client.Close()
}
