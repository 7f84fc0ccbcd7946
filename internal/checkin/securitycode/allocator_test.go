package securitycode

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"

	"shepherd/internal/checkin/models"
	codestore "shepherd/internal/checkin/store/code"
	dErrors "shepherd/pkg/domain-errors"
)

// zeroReader always yields the first alphabet letter.
type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 0
	}
	return len(p), nil
}

type failingStore struct{ err error }

func (s failingStore) Create(context.Context, *models.AttendanceCode) error { return s.err }

type AllocatorSuite struct {
	suite.Suite
	store *codestore.InMemory
	ctx   context.Context
	day   models.Date
}

func TestAllocatorSuite(t *testing.T) {
	suite.Run(t, new(AllocatorSuite))
}

func (s *AllocatorSuite) SetupTest() {
	s.store = codestore.NewInMemory()
	s.ctx = context.Background()
	s.day = models.NewDate(2024, 6, 2)
}

func (s *AllocatorSuite) TestCodesUseUnambiguousAlphabet() {
	a := New(s.store)
	for range 200 {
		code, err := a.Allocate(s.ctx, s.day)
		s.Require().NoError(err)
		s.Len(code.Code, DefaultLength)
		for _, r := range code.Code {
			s.True(strings.ContainsRune(Alphabet, r), "unexpected rune %q", r)
		}
		s.NotContains(code.Code, "0")
		s.NotContains(code.Code, "O")
		s.NotContains(code.Code, "1")
		s.NotContains(code.Code, "I")
	}
	n, err := s.store.CountForDate(s.ctx, s.day)
	s.Require().NoError(err)
	s.Equal(200, n)
}

func (s *AllocatorSuite) TestSameCodeOnDifferentDays() {
	a := New(s.store, WithRandom(zeroReader{}))
	first, err := a.Allocate(s.ctx, s.day)
	s.Require().NoError(err)
	second, err := a.Allocate(s.ctx, s.day.AddDays(1))
	s.Require().NoError(err)
	s.Equal(first.Code, second.Code)
}

func (s *AllocatorSuite) TestExhaustion() {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	a := New(s.store, WithRandom(zeroReader{}), WithMaxAttempts(5), WithLogger(logger))

	_, err := a.Allocate(s.ctx, s.day)
	s.Require().NoError(err)

	_, err = a.Allocate(s.ctx, s.day)
	s.True(dErrors.HasCode(err, dErrors.CodeCodeSpaceExhausted))
	s.Contains(logs.String(), "CRITICAL")
	s.Contains(logs.String(), "level=ERROR")
}

func (s *AllocatorSuite) TestStoreFailureIsNotRetried() {
	boom := errors.New("connection reset")
	a := New(failingStore{err: boom})
	_, err := a.Allocate(s.ctx, s.day)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	s.ErrorIs(err, boom)
}

func (s *AllocatorSuite) TestLongerCodes() {
	a := New(s.store, WithLength(6))
	code, err := a.Allocate(s.ctx, s.day)
	s.Require().NoError(err)
	s.Len(code.Code, 6)
}
