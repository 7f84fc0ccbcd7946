//go:build integration

package audit_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	"shepherd/internal/audit"
	"shepherd/internal/platform/config"
	"shepherd/internal/platform/kafka"
	"shepherd/pkg/testutil/containers"
)

type RelayIntegrationSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	redpanda *containers.RedpandaContainer
	producer *kgo.Client
}

func TestRelayIntegrationSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RelayIntegrationSuite))
}

func (s *RelayIntegrationSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.redpanda = mgr.GetRedpanda(s.T())

	producer, err := kafka.NewProducer(context.Background(), config.KafkaConfig{
		Brokers:    []string{s.redpanda.Broker},
		AuditTopic: "checkin.audit",
	})
	s.Require().NoError(err)
	s.producer = producer
}

func (s *RelayIntegrationSuite) TearDownSuite() {
	if s.producer != nil {
		s.producer.Close()
	}
}

func (s *RelayIntegrationSuite) TestPostgresOutboxToKafka() {
	ctx := context.Background()
	s.Require().NoError(s.postgres.TruncateTables(ctx, "audit_outbox"))

	outbox := audit.NewPostgresOutbox(s.postgres.DB)
	pub := audit.NewPublisher(outbox)
	s.Require().NoError(pub.Emit(ctx, audit.Event{
		Action:    audit.ActionCheckoutOverridden,
		SubjectID: "attendance-1",
		ActorID:   "supervisor-1",
	}))

	relay := audit.NewOutboxRelay(outbox, s.producer, "checkin.audit", 10, nil)
	n, err := relay.RelayOnce(ctx)
	s.Require().NoError(err)
	s.Equal(1, n)

	pending, err := outbox.Unpublished(ctx, 10)
	s.Require().NoError(err)
	s.Empty(pending)

	consumer := s.redpanda.Consumer(s.T(), "checkin.audit")
	pollCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	fetches := consumer.PollFetches(pollCtx)
	s.Require().NoError(fetches.Err())

	var got audit.Event
	records := fetches.Records()
	s.Require().NotEmpty(records)
	s.Require().NoError(json.Unmarshal(records[0].Value, &got))
	s.Equal(audit.ActionCheckoutOverridden, got.Action)
	s.Equal("attendance-1", string(records[0].Key))
}
