package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	dErrors "zonecore/pkg/domain-errors"
)

type LimiterSuite struct {
	suite.Suite
	ctx     context.Context
	now     time.Time
	limiter *Limiter
}

func TestLimiterSuite(t *testing.T) {
	suite.Run(t, new(LimiterSuite))
}

func (s *LimiterSuite) SetupTest() {
	s.ctx = context.Background()
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.limiter = New(NewMemoryStore(), 3, time.Minute, 5*time.Minute,
		WithClock(func() time.Time { return s.now }))
}

func (s *LimiterSuite) allow(source string) Decision {
	d, err := s.limiter.Allow(s.ctx, source)
	s.Require().NoError(err)
	return d
}

func (s *LimiterSuite) TestThreshold() {
	s.Run("queries under the threshold pass", func() {
		for i := 0; i < 3; i++ {
			s.True(s.allow("192.0.2.1").Allowed)
		}
	})

	s.Run("the query over the threshold is blocked", func() {
		d := s.allow("192.0.2.1")
		s.False(d.Allowed)
		s.Equal(s.now.Add(5*time.Minute), d.BlockedUntil)
	})

	s.Run("sources are independent", func() {
		s.True(s.allow("192.0.2.2").Allowed)
	})
}

func (s *LimiterSuite) TestBlockExpiry() {
	for i := 0; i < 4; i++ {
		s.allow("192.0.2.1")
	}
	s.False(s.allow("192.0.2.1").Allowed)

	s.Run("still blocked before the block elapses", func() {
		s.now = s.now.Add(4 * time.Minute)
		s.False(s.allow("192.0.2.1").Allowed)
	})

	s.Run("block elapse resets the whole window", func() {
		s.now = s.now.Add(2 * time.Minute)
		for i := 0; i < 3; i++ {
			s.True(s.allow("192.0.2.1").Allowed)
		}
	})
}

func (s *LimiterSuite) TestSlidingWindow() {
	s.True(s.allow("192.0.2.1").Allowed)
	s.True(s.allow("192.0.2.1").Allowed)

	// The early queries slide out of the one-minute window.
	s.now = s.now.Add(61 * time.Second)
	for i := 0; i < 3; i++ {
		s.True(s.allow("192.0.2.1").Allowed)
	}
	s.False(s.allow("192.0.2.1").Allowed)
}

func (s *LimiterSuite) TestDecisionErr() {
	s.NoError(Decision{Allowed: true}.Err())

	err := Decision{Allowed: false, BlockedUntil: s.now}.Err()
	s.Require().Error(err)
	s.True(dErrors.Is(err, dErrors.CodeRateLimited))
}
