package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Kunal6688/PestDetect/internal/models"

	"github.com/IBM/sarama"
)

// KafkaPublisher exports events to a topic keyed by entity, so all events
// of one relay or sensor land on the same partition in order.
type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
}

func NewKafkaPublisher(brokers []string, topic string) (*KafkaPublisher, error) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return newKafkaPublisher(producer, topic), nil
}

func newKafkaPublisher(producer sarama.SyncProducer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

func (p *KafkaPublisher) Name() string { return "kafka" }

// Write sends the event synchronously. ctx is not honoured by sarama's
// sync producer; the producer's own timeouts bound the call.
func (p *KafkaPublisher) Write(_ context.Context, e models.Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal %s event %d: %w", e.Type, e.Seq, err)
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(e.Key()),
		Value: sarama.ByteEncoder(payload),
		Headers: []sarama.RecordHeader{
			{Key: []byte("type"), Value: []byte(e.Type)},
		},
	}
	if _, _, err := p.producer.SendMessage(msg); err != nil {
		return fmt.Errorf("send %s event %d to kafka: %w", e.Type, e.Seq, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error { return p.producer.Close() }
