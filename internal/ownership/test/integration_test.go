package test

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jakubhajek6/mdg-ubo-tool/internal/ownership/controller"
	"github.com/jakubhajek6/mdg-ubo-tool/internal/ownership/db"
	e "github.com/jakubhajek6/mdg-ubo-tool/internal/ownership/errors"
	"github.com/jakubhajek6/mdg-ubo-tool/internal/ownership/events"
	"github.com/jakubhajek6/mdg-ubo-tool/internal/ownership/models"
	"github.com/jakubhajek6/mdg-ubo-tool/internal/pkg/utils"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
)

const integrationTopic = "ownership.events.integration"

type IntegrationTestSuite struct {
	suite.Suite
	dbRepo       *db.Repository
	kafkaReader  *kafka.Reader
	producer     *events.Producer
	logger       *zap.Logger
	testTimeout  time.Duration
	cleanupFuncs []func()
}

func TestIntegrationSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration tests")
	}
	suite.Run(t, new(IntegrationTestSuite))
}

func (s *IntegrationTestSuite) SetupSuite() {
	s.logger = zap.NewNop()
	s.testTimeout = 20 * time.Second

	repo, err := db.NewRepository(&db.Config{
		Driver: db.DriverSQLite,
		Path:   filepath.Join(s.T().TempDir(), "ownership.sqlite"),
	})
	if err != nil {
		s.T().Fatal("Database initialization failed:", err)
	}
	s.dbRepo = repo
	s.cleanupFuncs = append(s.cleanupFuncs, func() {
		_ = repo.Close()
	})
}

func initializeKafkaWithRetry(topic string) (*events.Producer, *kafka.Reader, error) {
	kafkaBrokers := []string{"localhost:9092"}
	var producer *events.Producer
	var err error

	err = backoff.Retry(func() error {
		producer, err = events.NewProducer(kafkaBrokers, zap.NewNop(), topic)
		if err != nil || producer == nil {
			return fmt.Errorf("failed to create Kafka producer: %v", err)
		}
		return nil
	}, backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 10))
	if err != nil {
		return nil, nil, fmt.Errorf("Kafka producer initialization failed: %w", err)
	}

	// Verify the topic exists through metadata instead of blocking on a read
	err = backoff.Retry(func() error {
		conn, err := kafka.Dial("tcp", kafkaBrokers[0])
		if err != nil {
			return err
		}
		defer conn.Close()

		partitions, err := conn.ReadPartitions(topic)
		if err != nil || len(partitions) == 0 {
			return fmt.Errorf("topic %s not found", topic)
		}
		return nil
	}, backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 5))
	if err != nil {
		return nil, nil, fmt.Errorf("Kafka topic check failed: %w", err)
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     kafkaBrokers,
		Topic:       topic,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafka.LastOffset,
	})

	return producer, reader, nil
}

func (s *IntegrationTestSuite) TearDownSuite() {
	for _, fn := range s.cleanupFuncs {
		fn()
	}
}

func (s *IntegrationTestSuite) SetupTest() {
	if s.dbRepo == nil {
		s.T().Fatal("Database connection not initialized")
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.testTimeout)
	defer cancel()

	// child tables first so the edge references never block the wipe
	for _, stmt := range []string{
		"DELETE FROM ownership_edge",
		"DELETE FROM entity",
		"DELETE FROM company",
		"DELETE FROM ares_vr_cache",
	} {
		if err := s.dbRepo.Exec(ctx, stmt); err != nil {
			s.T().Fatal("Failed to clean database:", err)
		}
	}
}

func (s *IntegrationTestSuite) initKafka() {
	var err error
	s.producer, s.kafkaReader, err = initializeKafkaWithRetry(integrationTopic)
	if err != nil {
		s.T().Fatal("Kafka initialization failed:", err)
	}
	s.cleanupFuncs = append(s.cleanupFuncs, func() {
		s.producer.Close()
		_ = s.kafkaReader.Close()
	})
}

func (s *IntegrationTestSuite) TestCompanyRegisterFlow() {
	s.initKafka()

	ctx, cancel := context.WithTimeout(context.Background(), s.testTimeout)
	defer cancel()

	service := controller.NewOwnershipService(s.dbRepo, s.producer, s.logger)
	company, err := service.RegisterCompany(ctx, "255 96 641", "Alfa a.s.")
	if err != nil {
		s.T().Fatal("RegisterCompany failed:", err)
	}
	assert.Equal(s.T(), "25596641", company.Ico)

	stored, err := s.dbRepo.GetCompany(ctx, "25596641")
	if err != nil {
		s.T().Fatal("GetCompany failed:", err)
	}
	assert.Equal(s.T(), "Alfa a.s.", stored.Name)

	event := s.consumeKafkaEvent(ctx, events.CompanyRegistered, "25596641")
	if event.Company == nil {
		s.T().Fatal("Received nil company in Kafka event")
	}
	assert.Equal(s.T(), "25596641", event.Company.Ico)
}

func (s *IntegrationTestSuite) TestRecordOwnerFlow() {
	s.initKafka()

	ctx, cancel := context.WithTimeout(context.Background(), s.testTimeout)
	defer cancel()

	service := controller.NewOwnershipService(s.dbRepo, s.producer, s.logger)
	if _, err := service.RegisterCompany(ctx, "25596641", "Alfa a.s."); err != nil {
		s.T().Fatal("RegisterCompany failed:", err)
	}

	edge, err := service.RecordOwner(ctx, &controller.OwnerRecord{
		TargetIco: "25596641",
		Kind:      models.OwnerPerson,
		Name:      "Jan Novák",
		ShareRaw:  "1/2",
	})
	if err != nil {
		s.T().Fatal("RecordOwner failed:", err)
	}
	assert.NotZero(s.T(), edge.ID)
	assert.Equal(s.T(), utils.Ptr(50.0), edge.SharePct)

	owners, err := service.CompanyOwners(ctx, "25596641")
	if err != nil {
		s.T().Fatal("CompanyOwners failed:", err)
	}
	assert.Len(s.T(), owners, 1)
	assert.Equal(s.T(), "Jan Novák", owners[0].Owner.Name)

	event := s.consumeKafkaEvent(ctx, events.OwnerRecorded, "25596641")
	if event.Edge == nil {
		s.T().Fatal("Received nil edge in Kafka event")
	}
	assert.Equal(s.T(), edge.ID, event.Edge.ID)
}

func (s *IntegrationTestSuite) TestReplaceOwnersFlow() {
	s.initKafka()

	ctx, cancel := context.WithTimeout(context.Background(), s.testTimeout)
	defer cancel()

	service := controller.NewOwnershipService(s.dbRepo, s.producer, s.logger)
	if _, err := service.RegisterCompany(ctx, "25596641", "Alfa a.s."); err != nil {
		s.T().Fatal("RegisterCompany failed:", err)
	}

	inserted, err := service.ReplaceOwners(ctx, "25596641", []models.Owner{
		{Kind: models.OwnerPerson, Name: "Jan Novák", ShareRaw: "1/2"},
		{Kind: models.OwnerCompany, Name: "Beta s.r.o.", Ico: "45274649", ShareRaw: "30 %"},
		{Kind: models.OwnerForeign, Name: "Offshore Ltd", Ico: "Z45156824", ShareRaw: "20 %"},
	})
	if err != nil {
		s.T().Fatal("ReplaceOwners failed:", err)
	}
	assert.Equal(s.T(), 2, inserted)

	owners, err := service.CompanyOwners(ctx, "25596641")
	if err != nil {
		s.T().Fatal("CompanyOwners failed:", err)
	}
	assert.Len(s.T(), owners, 2)

	time.Sleep(2 * time.Second)
	s.consumeKafkaEvent(ctx, events.OwnersReplaced, "25596641")
}

func (s *IntegrationTestSuite) TestRegistryCacheFlow() {
	s.initKafka()

	ctx, cancel := context.WithTimeout(context.Background(), s.testTimeout)
	defer cancel()

	service := controller.NewOwnershipService(s.dbRepo, s.producer, s.logger)
	payload := []byte(`{"ico":"25596641","obchodniJmeno":"Alfa a.s."}`)

	record, err := service.StoreRegistryPayload(ctx, "25596641", payload)
	if err != nil {
		s.T().Fatal("StoreRegistryPayload failed:", err)
	}
	assert.False(s.T(), record.FetchedAt.IsZero())

	cached, err := service.CachedPayload(ctx, "25596641")
	if err != nil {
		s.T().Fatal("CachedPayload failed:", err)
	}
	assert.JSONEq(s.T(), string(payload), string(cached.Payload))
	assert.False(s.T(), controller.IsErrorPayload(cached.Payload))

	// a later fetch replaces the row instead of adding a second one
	if _, err := service.StoreRegistryError(ctx, "25596641", 404, "https://ares.gov.cz/ekonomicke-subjekty-v-be/rest/ekonomicke-subjekty-vr/25596641"); err != nil {
		s.T().Fatal("StoreRegistryError failed:", err)
	}
	cached, err = service.CachedPayload(ctx, "25596641")
	if err != nil {
		s.T().Fatal("CachedPayload failed:", err)
	}
	assert.True(s.T(), controller.IsErrorPayload(cached.Payload))

	stale, err := service.StaleIcos(ctx, time.Now().UTC().Add(time.Hour))
	if err != nil {
		s.T().Fatal("StaleIcos failed:", err)
	}
	assert.Contains(s.T(), stale, "25596641")

	_, err = service.CachedPayload(ctx, "45274649")
	assert.ErrorIs(s.T(), err, e.ErrNotFound)

	s.consumeKafkaEvent(ctx, events.CacheUpdated, "25596641")
}

// TestConsumerReceivesEvents drives a full produce-consume round trip
// through the group consumer instead of a bare reader.
func (s *IntegrationTestSuite) TestConsumerReceivesEvents() {
	s.initKafka()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	received := make(chan events.Event, 10)
	consumer := events.NewConsumer([]string{"localhost:9092"}, "ownership-integration", integrationTopic, s.logger)
	consumer.RegisterHandler(func(_ context.Context, event events.Event) error {
		received <- event
		return nil
	})
	consumer.Start(ctx)
	s.cleanupFuncs = append(s.cleanupFuncs, consumer.Close)

	service := controller.NewOwnershipService(s.dbRepo, s.producer, s.logger)
	if _, err := service.RegisterCompany(ctx, "45274649", "Beta s.r.o."); err != nil {
		s.T().Fatal("RegisterCompany failed:", err)
	}

	deadline := time.After(60 * time.Second)
	for {
		select {
		case event := <-received:
			if event.Type == events.CompanyRegistered && event.Ico == "45274649" {
				return
			}
			s.T().Logf("Skipping event %s for %s", event.Type, event.Ico)
		case <-deadline:
			s.T().Fatal("Timeout waiting for consumed event")
		}
	}
}

func (s *IntegrationTestSuite) consumeKafkaEvent(ctx context.Context, eventType events.EventType, targetIco string) events.Event {
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	maxRetries := 200
	attempts := 0
	for {
		select {
		case <-ctx.Done():
			s.T().Fatalf("Timeout: No %s event received after %d attempts", eventType, attempts)
			return events.Event{}
		default:
			if attempts >= maxRetries {
				s.T().Fatalf("Max retry attempts reached for %s", eventType)
				return events.Event{}
			}
			msg, err := s.kafkaReader.ReadMessage(ctx)
			if err != nil {
				s.T().Logf("Kafka read attempt %d failed: %v", attempts, err)
				attempts++
				time.Sleep(1 * time.Second)
				continue
			}
			if string(msg.Key) != targetIco {
				s.T().Logf("Skipping message with unmatched key: %s (Expected: %s)", string(msg.Key), targetIco)
				attempts++
				continue
			}
			var event events.Event
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				s.T().Fatalf("Failed to unmarshal Kafka message: %v", err)
			}
			if event.Type != eventType {
				s.T().Logf("Skipping message with unmatched eventType: %s (Expected: %s)", event.Type, eventType)
				attempts++
				continue
			}
			s.T().Logf("Successfully consumed event: %s, ico=%s, attempts=%d", eventType, event.Ico, attempts)
			return event
		}
	}
}
