// Package events publishes a completion event for every complaint the AI
// processor finishes writing back. The processor is the only place outside
// the store that knows a complaint's processing has completed, so it is
// also the natural place to announce it to downstream systems (notification
// services, department dashboards) without coupling them to the document
// store.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"

	"github.com/civicsignal/complaint-ai-core/internal/model"
)

// ProcessedEvent is the wire payload published to KafkaTopic on every
// successful write-back.
type ProcessedEvent struct {
	CID            string    `json:"cid"`
	Category       string    `json:"category"`
	Department     string    `json:"department,omitempty"`
	SeverityScore  float64   `json:"severityScore"`
	PriorityScore  float64   `json:"priorityScore"`
	PriorityLevel  string    `json:"priorityLevel"`
	IsDuplicate    bool      `json:"isDuplicate"`
	ReviewRequired bool      `json:"reviewRequired"`
	ProcessedAt    time.Time `json:"processedAt"`
}

// Publisher wraps a synchronous sarama producer. Disabled entirely when
// Brokers is empty — callers pass a nil *Publisher in that case and the
// aiprocessor treats it as an optional collaborator.
type Publisher struct {
	producer sarama.SyncProducer
	topic    string
}

// New dials the given brokers and returns a Publisher targeting topic, or
// (nil, nil) if brokers is empty (feature disabled).
func New(brokers []string, topic string) (*Publisher, error) {
	if len(brokers) == 0 {
		return nil, nil
	}

	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_1_0_0
	cfg.Producer.RequiredAcks = sarama.WaitForLocal
	cfg.Producer.Return.Successes = true
	cfg.Producer.Retry.Max = 3

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("events: new producer: %w", err)
	}
	return &Publisher{producer: producer, topic: topic}, nil
}

func (p *Publisher) Close() error {
	if p == nil || p.producer == nil {
		return nil
	}
	return p.producer.Close()
}

// PublishProcessed implements internal/aiprocessor.EventPublisher. It
// ignores ctx (sarama's SyncProducer has no context-aware send) and
// publishes a JSON-encoded ProcessedEvent keyed by cid, so partitioning
// keeps a given complaint's events ordered.
func (p *Publisher) PublishProcessed(_ context.Context, c model.Complaint) error {
	if p == nil || p.producer == nil {
		return nil
	}

	ev := ProcessedEvent{
		CID:            c.CID,
		Category:       c.Category,
		Department:     c.Department,
		SeverityScore:  c.SeverityScore,
		PriorityScore:  c.Priority.Score,
		PriorityLevel:  string(c.Priority.Level),
		IsDuplicate:    c.AIMeta.IsAIDuplicate,
		ReviewRequired: c.Priority.AIProcessingStatus == model.StatusReviewRequired,
		ProcessedAt:    c.AIMeta.ProcessedAt,
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("events: marshal: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(c.CID),
		Value: sarama.ByteEncoder(payload),
	}
	_, _, err = p.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("events: send message: %w", err)
	}
	return nil
}
