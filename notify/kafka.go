package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
)

const DefaultTopic = "wallet_notifications"

type event struct {
	Address string    `json:"address"`
	Message string    `json:"message"`
	SentAt  time.Time `json:"sent_at"`
}

// KafkaNotifier publishes one message per notification, keyed by address.
type KafkaNotifier struct {
	writer *kafka.Writer
}

func NewKafkaNotifier(brokers []string, topic string) *KafkaNotifier {
	if topic == "" {
		topic = DefaultTopic
	}
	return &KafkaNotifier{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			AllowAutoTopicCreation: true,
		},
	}
}

func (n *KafkaNotifier) Notify(ctx context.Context, address, message string) error {
	data, err := json.Marshal(event{Address: address, Message: message, SentAt: time.Now().UTC()})
	if err != nil {
		return err
	}
	return n.writer.WriteMessages(ctx, kafka.Message{Key: []byte(address), Value: data})
}

func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}
