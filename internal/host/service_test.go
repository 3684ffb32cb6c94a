package host

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"zonecore/internal/domain"
	"zonecore/internal/store"
	dErrors "zonecore/pkg/domain-errors"
)

type ServiceSuite struct {
	suite.Suite
	ctx   context.Context
	store *store.Memory
	svc   *Service
	now   time.Time
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = store.NewMemory()
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.svc = New(WithClock(func() time.Time { return s.now }))
}

func (s *ServiceSuite) TestCreate() {
	s.Run("name is normalized and glue recorded", func() {
		h, err := s.svc.Create(s.ctx, s.store, "reg-a", CreateRequest{
			Name:    "NS1.Example.Test",
			AddrsV4: []string{"192.0.2.53"},
			AddrsV6: []string{"2001:db8::53"},
		})
		s.Require().NoError(err)
		s.Equal("ns1.example.test", h.Name)
		s.Equal([]string{"192.0.2.53"}, h.AddrsV4)
		s.True(h.Status.Has(domain.StatusOK))
	})

	s.Run("duplicate name conflicts", func() {
		_, err := s.svc.Create(s.ctx, s.store, "reg-b", CreateRequest{Name: "ns1.example.test"})
		s.True(dErrors.Is(err, dErrors.CodeAlreadyExists))
	})

	s.Run("v4 literal in a v6 slot is rejected", func() {
		_, err := s.svc.Create(s.ctx, s.store, "reg-a", CreateRequest{
			Name: "ns2.example.test", AddrsV6: []string{"192.0.2.53"},
		})
		s.True(dErrors.Is(err, dErrors.CodeInvalidInput))
	})

	s.Run("malformed address is rejected", func() {
		_, err := s.svc.Create(s.ctx, s.store, "reg-a", CreateRequest{
			Name: "ns2.example.test", AddrsV4: []string{"not-an-ip"},
		})
		s.True(dErrors.Is(err, dErrors.CodeInvalidInput))
	})
}

func (s *ServiceSuite) TestUpdate() {
	_, err := s.svc.Create(s.ctx, s.store, "reg-a", CreateRequest{
		Name: "ns1.glue.test", AddrsV4: []string{"192.0.2.1", "192.0.2.2"},
	})
	s.Require().NoError(err)

	s.Run("addresses add and remove with dedupe", func() {
		h, err := s.svc.Update(s.ctx, s.store, "reg-a", UpdateRequest{
			Name:     "ns1.glue.test",
			AddV4:    []string{"192.0.2.3", "192.0.2.1"},
			RemoveV4: []string{"192.0.2.2"},
		})
		s.Require().NoError(err)
		s.ElementsMatch([]string{"192.0.2.1", "192.0.2.3"}, h.AddrsV4)
	})

	s.Run("only the owner may update", func() {
		_, err := s.svc.Update(s.ctx, s.store, "reg-b", UpdateRequest{Name: "ns1.glue.test"})
		s.True(dErrors.Is(err, dErrors.CodeUnauthorized))
	})

	s.Run("server statuses are not client-settable", func() {
		_, err := s.svc.Update(s.ctx, s.store, "reg-a", UpdateRequest{
			Name: "ns1.glue.test", AddStatus: []domain.Status{domain.StatusServerUpdateProhibited},
		})
		s.True(dErrors.Is(err, dErrors.CodePolicy))
	})

	s.Run("update lock blocks further changes", func() {
		_, err := s.svc.Update(s.ctx, s.store, "reg-a", UpdateRequest{
			Name: "ns1.glue.test", AddStatus: []domain.Status{domain.StatusClientUpdateProhibited},
		})
		s.Require().NoError(err)
		_, err = s.svc.Update(s.ctx, s.store, "reg-a", UpdateRequest{
			Name: "ns1.glue.test", AddV4: []string{"192.0.2.9"},
		})
		s.True(dErrors.Is(err, dErrors.CodeProhibited))
	})
}

func (s *ServiceSuite) TestDelete() {
	_, err := s.svc.Create(s.ctx, s.store, "reg-a", CreateRequest{Name: "ns1.busy.test"})
	s.Require().NoError(err)

	s.Run("delegated host cannot be deleted", func() {
		s.Require().NoError(s.store.Domains().Create(s.ctx, domain.Domain{
			ID:          uuid.New(),
			Name:        "dependent.test",
			RegistrarID: "reg-b",
			Nameservers: []string{"ns1.busy.test"},
			Status:      domain.NewStatusSet(domain.StatusOK),
			CreatedAt:   s.now,
			ExpiresAt:   s.now.AddDate(1, 0, 0),
			UpdatedAt:   s.now,
		}))
		err := s.svc.Delete(s.ctx, s.store, "reg-a", "ns1.busy.test")
		s.True(dErrors.Is(err, dErrors.CodeAssociation))
	})

	s.Run("delete succeeds once undelegated", func() {
		d, err := s.store.Domains().GetByName(s.ctx, "dependent.test")
		s.Require().NoError(err)
		d.Nameservers = nil
		s.Require().NoError(s.store.Domains().Update(s.ctx, d))

		s.Require().NoError(s.svc.Delete(s.ctx, s.store, "reg-a", "ns1.busy.test"))
		_, err = s.svc.Info(s.ctx, s.store, "ns1.busy.test")
		s.True(dErrors.Is(err, dErrors.CodeNotFound))
	})
}

func (s *ServiceSuite) TestCheck() {
	_, err := s.svc.Create(s.ctx, s.store, "reg-a", CreateRequest{Name: "ns1.taken.test"})
	s.Require().NoError(err)

	results, err := s.svc.Check(s.ctx, s.store, []string{"NS1.taken.test", "ns2.free.test"})
	s.Require().NoError(err)
	s.Require().Len(results, 2)
	s.False(results[0].Available)
	s.True(results[1].Available)
}
