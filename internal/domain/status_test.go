package domain

import (
	"testing"

	"github.com/stretchr/testify/suite"

	dErrors "zonecore/pkg/domain-errors"
)

type StatusSetSuite struct {
	suite.Suite
}

func TestStatusSetSuite(t *testing.T) {
	suite.Run(t, new(StatusSetSuite))
}

func (s *StatusSetSuite) TestOKExclusivity() {
	s.Run("adding a flag removes ok", func() {
		set := NewStatusSet(StatusOK)
		set.Add(StatusClientHold)
		s.False(set.Has(StatusOK))
		s.True(set.Has(StatusClientHold))
	})

	s.Run("normalize restores ok on empty set", func() {
		set := NewStatusSet(StatusClientHold)
		set.Remove(StatusClientHold)
		set.Normalize()
		s.True(set.Has(StatusOK))
	})

	s.Run("ok combined with another flag fails validation", func() {
		set := NewStatusSet(StatusOK, StatusClientHold)
		err := set.Validate()
		s.Require().Error(err)
		s.True(dErrors.Is(err, dErrors.CodeInvalidInput))
	})
}

func (s *StatusSetSuite) TestPendingExclusivity() {
	s.Run("two pending flags fail validation", func() {
		set := NewStatusSet(StatusPendingDelete, StatusPendingTransfer)
		err := set.Validate()
		s.Require().Error(err)
		s.True(dErrors.Is(err, dErrors.CodeInvalidInput))
	})

	s.Run("redemptionPeriod counts as pending", func() {
		set := NewStatusSet(StatusRedemptionPeriod, StatusPendingTransfer)
		s.Error(set.Validate())

		flag, pending := NewStatusSet(StatusRedemptionPeriod).Pending()
		s.True(pending)
		s.Equal(StatusRedemptionPeriod, flag)
	})

	s.Run("single pending flag passes", func() {
		set := NewStatusSet(StatusPendingDelete, StatusClientHold)
		s.NoError(set.Validate())
	})
}

func (s *StatusSetSuite) TestValidation() {
	s.Run("unknown flag rejected", func() {
		set := NewStatusSet(Status("madeUp"))
		s.Error(set.Validate())
	})

	s.Run("empty set rejected", func() {
		s.Error(StatusSet{}.Validate())
	})

	s.Run("prohibitions and holds combine freely", func() {
		set := NewStatusSet(StatusClientHold, StatusServerHold,
			StatusClientDeleteProhibited, StatusServerTransferProhibited)
		s.NoError(set.Validate())
	})
}

func (s *StatusSetSuite) TestSerialization() {
	s.Run("flags come back sorted and stable", func() {
		set := NewStatusSet(StatusServerHold, StatusClientHold)
		s.Equal([]string{"clientHold", "serverHold"}, set.Strings())
		s.Equal(set.Strings(), set.Strings())
	})

	s.Run("parse round-trips and normalizes", func() {
		set := ParseStatusSet([]string{"clientHold", ""})
		s.True(set.Has(StatusClientHold))
		s.False(set.Has(StatusOK))

		empty := ParseStatusSet(nil)
		s.True(empty.Has(StatusOK))
	})
}

func (s *StatusSetSuite) TestClientSettable() {
	s.True(StatusClientHold.ClientSettable())
	s.True(StatusClientUpdateProhibited.ClientSettable())
	s.False(StatusServerHold.ClientSettable())
	s.False(StatusPendingDelete.ClientSettable())
	s.False(StatusRedemptionPeriod.ClientSettable())
}

func (s *StatusSetSuite) TestCloneIsIndependent() {
	set := NewStatusSet(StatusClientHold)
	clone := set.Clone()
	clone.Add(StatusServerHold)
	s.False(set.Has(StatusServerHold))
}
