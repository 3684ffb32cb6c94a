package lifecycle

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"zonecore/internal/domain"
	"zonecore/internal/store"
	dErrors "zonecore/pkg/domain-errors"
)

type EngineSuite struct {
	suite.Suite
	ctx    context.Context
	store  *store.Memory
	engine *Engine
	now    time.Time
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineSuite))
}

func (s *EngineSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = store.NewMemory()
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.engine = New(5*24*time.Hour, 30*24*time.Hour,
		WithClock(func() time.Time { return s.now }))

	for _, id := range []domain.RegistrarID{"reg-a", "reg-b"} {
		s.Require().NoError(s.store.Registrars().Create(s.ctx, domain.Registrar{
			ID: id, Name: string(id), Status: domain.RegistrarActive, CreatedAt: s.now,
		}))
	}
	s.Require().NoError(s.store.Contacts().Create(s.ctx, domain.Contact{
		ID: "c-100", RegistrarID: "reg-a", Name: "Holder",
		Status: domain.NewStatusSet(domain.StatusOK), CreatedAt: s.now, UpdatedAt: s.now,
	}))
	s.Require().NoError(s.store.Hosts().Create(s.ctx, domain.Host{
		Name: "ns1.dns.test", RegistrarID: "reg-a",
		Status: domain.NewStatusSet(domain.StatusOK), CreatedAt: s.now, UpdatedAt: s.now,
	}))
}

func (s *EngineSuite) create(name string) domain.Domain {
	d, err := s.engine.Create(s.ctx, s.store, "reg-a", CreateRequest{
		Name:        name,
		Registrant:  "c-100",
		Nameservers: []string{"ns1.dns.test"},
	})
	s.Require().NoError(err)
	return d
}

func (s *EngineSuite) TestCreate() {
	s.Run("defaults to one year and status ok", func() {
		d := s.create("example.test")
		s.Equal(s.now.AddDate(1, 0, 0), d.ExpiresAt)
		s.True(d.Status.Has(domain.StatusOK))
		s.NotEmpty(d.AuthCode)
	})

	s.Run("duplicate name is rejected", func() {
		_, err := s.engine.Create(s.ctx, s.store, "reg-b", CreateRequest{Name: "EXAMPLE.test"})
		s.Require().Error(err)
		s.True(dErrors.Is(err, dErrors.CodeAlreadyExists))
	})

	s.Run("unknown contact is a policy error", func() {
		_, err := s.engine.Create(s.ctx, s.store, "reg-a", CreateRequest{
			Name: "other.test", Registrant: "c-missing",
		})
		s.True(dErrors.Is(err, dErrors.CodePolicy))
	})

	s.Run("unknown nameserver is a policy error", func() {
		_, err := s.engine.Create(s.ctx, s.store, "reg-a", CreateRequest{
			Name: "other.test", Nameservers: []string{"ns9.dns.test"},
		})
		s.True(dErrors.Is(err, dErrors.CodePolicy))
	})

	s.Run("invalid name is rejected", func() {
		_, err := s.engine.Create(s.ctx, s.store, "reg-a", CreateRequest{Name: "-bad-.test"})
		s.True(dErrors.Is(err, dErrors.CodeInvalidInput))
	})

	s.Run("period above the cap is rejected", func() {
		_, err := s.engine.Create(s.ctx, s.store, "reg-a", CreateRequest{Name: "long.test", PeriodYears: 11})
		s.True(dErrors.Is(err, dErrors.CodePolicy))
	})
}

func (s *EngineSuite) TestRenew() {
	d := s.create("renew.test")

	s.Run("extends from the current expiry", func() {
		got, err := s.engine.Renew(s.ctx, s.store, "reg-a", "renew.test", d.ExpiresAt, 2)
		s.Require().NoError(err)
		s.Equal(d.ExpiresAt.AddDate(2, 0, 0), got.ExpiresAt)
	})

	s.Run("mismatched current expiry is rejected", func() {
		_, err := s.engine.Renew(s.ctx, s.store, "reg-a", "renew.test", d.ExpiresAt, 1)
		s.True(dErrors.Is(err, dErrors.CodePolicy))
	})

	s.Run("only the sponsor may renew", func() {
		cur, err := s.engine.Info(s.ctx, s.store, "renew.test")
		s.Require().NoError(err)
		_, err = s.engine.Renew(s.ctx, s.store, "reg-b", "renew.test", cur.ExpiresAt, 1)
		s.True(dErrors.Is(err, dErrors.CodeUnauthorized))
	})

	s.Run("cannot exceed the ten-year horizon", func() {
		cur, err := s.engine.Info(s.ctx, s.store, "renew.test")
		s.Require().NoError(err)
		_, err = s.engine.Renew(s.ctx, s.store, "reg-a", "renew.test", cur.ExpiresAt, 9)
		s.True(dErrors.Is(err, dErrors.CodePolicy))
	})

	s.Run("renew prohibition blocks renewal", func() {
		cur, err := s.engine.Info(s.ctx, s.store, "renew.test")
		s.Require().NoError(err)
		cur.Status.Add(domain.StatusClientRenewProhibited)
		s.Require().NoError(s.store.Domains().Update(s.ctx, cur))

		cur, _ = s.engine.Info(s.ctx, s.store, "renew.test")
		_, err = s.engine.Renew(s.ctx, s.store, "reg-a", "renew.test", cur.ExpiresAt, 1)
		s.True(dErrors.Is(err, dErrors.CodeProhibited))
	})
}

func (s *EngineSuite) TestDeleteLifecycle() {
	s.create("doomed.test")

	s.Run("delete enters pendingDelete with a redeem deadline", func() {
		d, err := s.engine.Delete(s.ctx, s.store, "reg-a", "doomed.test")
		s.Require().NoError(err)
		s.True(d.Status.Has(domain.StatusPendingDelete))
		s.Equal(s.now.Add(5*24*time.Hour), d.RedeemAt)
	})

	s.Run("second delete is blocked by the pending flag", func() {
		_, err := s.engine.Delete(s.ctx, s.store, "reg-a", "doomed.test")
		s.True(dErrors.Is(err, dErrors.CodeProhibited))
	})

	s.Run("sweep before the deadline does nothing", func() {
		n, err := s.engine.SweepRedemptions(s.ctx, s.store)
		s.Require().NoError(err)
		s.Zero(n)
	})

	s.Run("sweep after the deadline moves to redemptionPeriod", func() {
		s.now = s.now.Add(5*24*time.Hour + time.Minute)
		n, err := s.engine.SweepRedemptions(s.ctx, s.store)
		s.Require().NoError(err)
		s.Equal(1, n)

		d, err := s.engine.Info(s.ctx, s.store, "doomed.test")
		s.Require().NoError(err)
		s.True(d.Status.Has(domain.StatusRedemptionPeriod))
		s.Equal(s.now.Add(30*24*time.Hour), d.PurgeAt)
	})

	s.Run("purge sweep releases the name after redemption", func() {
		s.now = s.now.Add(30*24*time.Hour + time.Minute)
		n, err := s.engine.SweepPurges(s.ctx, s.store)
		s.Require().NoError(err)
		s.Equal(1, n)

		_, err = s.engine.Info(s.ctx, s.store, "doomed.test")
		s.True(dErrors.Is(err, dErrors.CodeNotFound))
	})

	s.Run("released name can be registered again", func() {
		s.create("doomed.test")
	})
}

func (s *EngineSuite) TestRestore() {
	s.create("phoenix.test")
	_, err := s.engine.Delete(s.ctx, s.store, "reg-a", "phoenix.test")
	s.Require().NoError(err)

	s.Run("restore outside redemption is prohibited", func() {
		_, err := s.engine.Restore(s.ctx, s.store, "reg-a", "phoenix.test")
		s.True(dErrors.Is(err, dErrors.CodeProhibited))
	})

	s.now = s.now.Add(5*24*time.Hour + time.Minute)
	_, err = s.engine.SweepRedemptions(s.ctx, s.store)
	s.Require().NoError(err)

	s.Run("restore from redemption returns to ok", func() {
		d, err := s.engine.Restore(s.ctx, s.store, "reg-a", "phoenix.test")
		s.Require().NoError(err)
		s.True(d.Status.Has(domain.StatusOK))
		s.True(d.PurgeAt.IsZero())
	})

	s.Run("nothing left for the purge sweep", func() {
		s.now = s.now.Add(31 * 24 * time.Hour)
		n, err := s.engine.SweepPurges(s.ctx, s.store)
		s.Require().NoError(err)
		s.Zero(n)
	})
}

func (s *EngineSuite) TestDeleteDependencyChecks() {
	s.create("parent.test")
	s.Require().NoError(s.store.Hosts().Create(s.ctx, domain.Host{
		Name: "ns1.parent.test", RegistrarID: "reg-a", AddrsV4: []string{"192.0.2.53"},
		Status: domain.NewStatusSet(domain.StatusOK), CreatedAt: s.now, UpdatedAt: s.now,
	}))

	_, err := s.engine.Create(s.ctx, s.store, "reg-b", CreateRequest{
		Name: "dependent.test", Nameservers: []string{"ns1.parent.test"},
	})
	s.Require().NoError(err)

	s.Run("delete blocked while a subordinate host serves other domains", func() {
		_, err := s.engine.Delete(s.ctx, s.store, "reg-a", "parent.test")
		s.Require().Error(err)
		s.True(dErrors.Is(err, dErrors.CodeAssociation))
	})

	s.Run("removing the delegation unblocks the delete", func() {
		_, err := s.engine.Update(s.ctx, s.store, "reg-b", UpdateRequest{
			Name:              "dependent.test",
			RemoveNameservers: []string{"ns1.parent.test"},
		})
		s.Require().NoError(err)

		_, err = s.engine.Delete(s.ctx, s.store, "reg-a", "parent.test")
		s.NoError(err)
	})
}

func (s *EngineSuite) TestUpdate() {
	s.create("mutable.test")

	s.Run("client may set and remove its own prohibitions", func() {
		d, err := s.engine.Update(s.ctx, s.store, "reg-a", UpdateRequest{
			Name:        "mutable.test",
			AddStatuses: []domain.Status{domain.StatusClientUpdateProhibited},
		})
		s.Require().NoError(err)
		s.True(d.Status.Has(domain.StatusClientUpdateProhibited))
	})

	s.Run("updates are blocked while update-prohibited", func() {
		_, err := s.engine.Update(s.ctx, s.store, "reg-a", UpdateRequest{
			Name:        "mutable.test",
			AddStatuses: []domain.Status{domain.StatusClientHold},
		})
		s.True(dErrors.Is(err, dErrors.CodeProhibited))
	})

	s.Run("except the update that removes the prohibition", func() {
		d, err := s.engine.Update(s.ctx, s.store, "reg-a", UpdateRequest{
			Name:           "mutable.test",
			RemoveStatuses: []domain.Status{domain.StatusClientUpdateProhibited},
		})
		s.Require().NoError(err)
		s.True(d.Status.Has(domain.StatusOK))
	})

	s.Run("server statuses are not client-settable", func() {
		_, err := s.engine.Update(s.ctx, s.store, "reg-a", UpdateRequest{
			Name:        "mutable.test",
			AddStatuses: []domain.Status{domain.StatusServerHold},
		})
		s.True(dErrors.Is(err, dErrors.CodePolicy))
	})

	s.Run("auth code change is persisted", func() {
		d, err := s.engine.Update(s.ctx, s.store, "reg-a", UpdateRequest{
			Name: "mutable.test", NewAuthCode: "new-code",
		})
		s.Require().NoError(err)
		s.Equal("new-code", d.AuthCode)
	})
}

func (s *EngineSuite) TestCheck() {
	s.create("taken.test")

	results, err := s.engine.Check(s.ctx, s.store, []string{"taken.test", "free.test", "!bad!"})
	s.Require().NoError(err)
	s.Require().Len(results, 3)

	s.False(results[0].Available)
	s.Equal("in use", results[0].Reason)
	s.True(results[1].Available)
	s.False(results[2].Available)
	s.Equal("invalid name", results[2].Reason)
}
