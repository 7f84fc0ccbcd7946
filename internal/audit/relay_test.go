package audit

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"
)

type fakeProducer struct {
	produced []*kgo.Record
	failKey  string
}

func (p *fakeProducer) ProduceSync(_ context.Context, rs ...*kgo.Record) kgo.ProduceResults {
	results := make(kgo.ProduceResults, 0, len(rs))
	// reverse order mimics out-of-order completion
	for i := len(rs) - 1; i >= 0; i-- {
		r := rs[i]
		if string(r.Key) == p.failKey {
			results = append(results, kgo.ProduceResult{Record: r, Err: errors.New("broker down")})
			continue
		}
		p.produced = append(p.produced, r)
		results = append(results, kgo.ProduceResult{Record: r})
	}
	return results
}

type RelaySuite struct {
	suite.Suite
	outbox   *InMemoryOutbox
	producer *fakeProducer
	relay    *OutboxRelay
	ctx      context.Context
}

func TestRelaySuite(t *testing.T) {
	suite.Run(t, new(RelaySuite))
}

func (s *RelaySuite) SetupTest() {
	s.outbox = NewInMemoryOutbox()
	s.producer = &fakeProducer{}
	s.relay = NewOutboxRelay(s.outbox, s.producer, "checkin.audit", 10, nil)
	s.ctx = context.Background()
	pub := NewPublisher(s.outbox)
	for _, subject := range []string{"a", "b", "c"} {
		s.Require().NoError(pub.Emit(s.ctx, Event{Action: ActionAttendanceRecorded, SubjectID: subject}))
	}
}

func (s *RelaySuite) TestRelaysAndMarks() {
	n, err := s.relay.RelayOnce(s.ctx)
	s.Require().NoError(err)
	s.Equal(3, n)

	var decoded Event
	s.Require().NoError(json.Unmarshal(s.producer.produced[0].Value, &decoded))
	s.Equal(ActionAttendanceRecorded, decoded.Action)
	s.Equal("checkin.audit", s.producer.produced[0].Topic)

	n, err = s.relay.RelayOnce(s.ctx)
	s.Require().NoError(err)
	s.Zero(n)
}

func (s *RelaySuite) TestFailedRecordsStayQueued() {
	s.producer.failKey = "b"
	n, err := s.relay.RelayOnce(s.ctx)
	s.Error(err)
	s.Equal(2, n)

	rest, err := s.outbox.Unpublished(s.ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(rest, 1)
	s.Equal("b", rest[0].Event.SubjectID)
}
