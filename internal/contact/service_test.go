package contact

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

func (s *ServiceSuite) create(id string) domain.Contact {
	c, err := s.svc.Create(s.ctx, s.store, "reg-a", CreateRequest{
		ID:    id,
		Name:  "Jordan Example",
		Email: "jordan@example.test",
		City:  "Oslo",
	})
	s.Require().NoError(err)
	return c
}

func (s *ServiceSuite) TestCreate() {
	s.Run("new contact starts at ok", func() {
		c := s.create("c-100")
		s.True(c.Status.Has(domain.StatusOK))
		s.EqualValues("reg-a", c.RegistrarID)
	})

	s.Run("duplicate id conflicts", func() {
		_, err := s.svc.Create(s.ctx, s.store, "reg-b", CreateRequest{ID: "c-100", Name: "Other"})
		s.True(dErrors.Is(err, dErrors.CodeAlreadyExists))
	})

	s.Run("name is required", func() {
		_, err := s.svc.Create(s.ctx, s.store, "reg-a", CreateRequest{ID: "c-101"})
		s.True(dErrors.Is(err, dErrors.CodeMissingParameter))
	})

	s.Run("id must be well formed", func() {
		_, err := s.svc.Create(s.ctx, s.store, "reg-a", CreateRequest{ID: "bad id!", Name: "X"})
		s.True(dErrors.Is(err, dErrors.CodeInvalidInput))
	})
}

func (s *ServiceSuite) TestUpdate() {
	s.create("c-200")

	s.Run("empty fields stay unchanged", func() {
		c, err := s.svc.Update(s.ctx, s.store, "reg-a", UpdateRequest{
			ID: "c-200", Email: "new@example.test",
		})
		s.Require().NoError(err)
		s.Equal("new@example.test", c.Email)
		s.Equal("Jordan Example", c.Name)
		s.Equal("Oslo", c.City)
	})

	s.Run("only the owner may update", func() {
		_, err := s.svc.Update(s.ctx, s.store, "reg-b", UpdateRequest{ID: "c-200", Name: "Hijack"})
		s.True(dErrors.Is(err, dErrors.CodeUnauthorized))
	})

	s.Run("update-prohibited blocks changes", func() {
		c, err := s.store.Contacts().Get(s.ctx, "c-200")
		s.Require().NoError(err)
		c.Status.Add(domain.StatusClientUpdateProhibited)
		s.Require().NoError(s.store.Contacts().Update(s.ctx, c))

		_, err = s.svc.Update(s.ctx, s.store, "reg-a", UpdateRequest{ID: "c-200", Name: "Nope"})
		s.True(dErrors.Is(err, dErrors.CodeProhibited))
	})
}

func (s *ServiceSuite) TestDelete() {
	s.create("c-300")

	s.Run("referenced contact cannot be deleted", func() {
		s.Require().NoError(s.store.Domains().Create(s.ctx, domain.Domain{
			ID:          uuid.New(),
			Name:        "example.test",
			RegistrarID: "reg-a",
			Registrant:  "c-300",
			Status:      domain.NewStatusSet(domain.StatusOK),
			CreatedAt:   s.now,
			ExpiresAt:   s.now.AddDate(1, 0, 0),
			UpdatedAt:   s.now,
		}))
		err := s.svc.Delete(s.ctx, s.store, "reg-a", "c-300")
		s.True(dErrors.Is(err, dErrors.CodeAssociation))
	})

	s.Run("delete succeeds once unreferenced", func() {
		d, err := s.store.Domains().GetByName(s.ctx, "example.test")
		s.Require().NoError(err)
		d.Registrant = ""
		s.Require().NoError(s.store.Domains().Update(s.ctx, d))

		s.Require().NoError(s.svc.Delete(s.ctx, s.store, "reg-a", "c-300"))
		_, err = s.svc.Info(s.ctx, s.store, "c-300")
		s.True(dErrors.Is(err, dErrors.CodeNotFound))
	})
}

func (s *ServiceSuite) TestCheck() {
	s.create("c-400")

	results, err := s.svc.Check(s.ctx, s.store, []string{"c-400", "c-401"})
	s.Require().NoError(err)
	s.Require().Len(results, 2)
	s.False(results[0].Available)
	s.True(results[1].Available)

	_, err = s.svc.Check(s.ctx, s.store, nil)
	s.True(dErrors.Is(err, dErrors.CodeMissingParameter))
}
