package events

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jakubhajek6/mdg-ubo-tool/internal/ownership/models"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

var jsonMarshal = json.Marshal

type EventType string

const (
	CompanyRegistered EventType = "company_registered"
	CompanyUpdated    EventType = "company_updated"
	CompanyDeleted    EventType = "company_deleted"
	OwnerRecorded     EventType = "owner_recorded"
	OwnersReplaced    EventType = "owners_replaced"
	CacheUpdated      EventType = "cache_updated"
)

// Event is the message published after a successful register mutation. Ico
// names the company the mutation belongs to and doubles as the partition key.
type Event struct {
	ID      string                `json:"id"`
	Type    EventType             `json:"type"`
	Ico     string                `json:"ico"`
	Company *models.Company       `json:"company,omitempty"`
	Edge    *models.OwnershipEdge `json:"edge,omitempty"`
}

type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Producer struct {
	writer    KafkaWriter // Use interface instead of concrete type
	events    chan Event
	logger    *zap.Logger
	closeChan chan struct{}
}

func NewProducer(brokers []string, logger *zap.Logger, topic string) (*Producer, error) {
	// Create topic if it doesn't exist
	conn, err := kafka.Dial("tcp", brokers[0])
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	topicConfigs := []kafka.TopicConfig{
		{
			Topic:             topic,
			NumPartitions:     3,
			ReplicationFactor: 1,
		},
	}

	err = conn.CreateTopics(topicConfigs...)
	if err != nil {
		logger.Warn("failed to create topic (may already exist)", zap.Error(err))
	}
	p := &Producer{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Balancer: &kafka.LeastBytes{},
			Topic:    topic,
		},
		events:    make(chan Event, 1000), // Buffered channel
		logger:    logger.Named("kafka_producer"),
		closeChan: make(chan struct{}),
	}

	go p.eventLoop()
	return p, nil
}

// Produce enqueues the event for asynchronous delivery, stamping a fresh id
// when the caller did not set one. A full queue drops the event with a warn
// rather than blocking the write path.
func (p *Producer) Produce(event Event) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	select {
	case p.events <- event:
	default:
		p.logger.Warn("Kafka producer queue full, dropping event",
			zap.String("event_type", string(event.Type)),
			zap.String("ico", event.Ico),
		)
	}
}

func (p *Producer) eventLoop() {
	for {
		select {
		case event := <-p.events:
			p.sendEvent(context.Background(), event)
		case <-p.closeChan:
			return
		}
	}
}

func (p *Producer) sendEvent(ctx context.Context, event Event) {
	value, err := jsonMarshal(event)
	if err != nil {
		p.logger.Error("Failed to serialize event",
			zap.Error(err),
			zap.String("ico", event.Ico),
		)
		return
	}
	key := event.Ico
	if key == "" {
		key = event.ID
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: value,
	})
	if err != nil {
		p.logger.Error("Failed to produce event",
			zap.Error(err),
			zap.String("event_type", string(event.Type)),
			zap.String("ico", event.Ico),
		)
		return
	}
}

func (p *Producer) Close() {
	close(p.closeChan)
	if err := p.writer.Close(); err != nil {
		p.logger.Error("Failed to close Kafka writer", zap.Error(err))
	}
}
