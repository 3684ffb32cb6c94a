package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"zonecore/internal/domain"
	"zonecore/internal/store"
	"zonecore/pkg/secrets"
)

type ManagerSuite struct {
	suite.Suite
	ctx     context.Context
	store   *store.Memory
	manager *Manager
	now     time.Time
}

func TestManagerSuite(t *testing.T) {
	suite.Run(t, new(ManagerSuite))
}

func (s *ManagerSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = store.NewMemory()
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	hash, err := secrets.Hash("correct-password")
	s.Require().NoError(err)
	s.Require().NoError(s.store.Registrars().Create(s.ctx, domain.Registrar{
		ID:             "reg-a",
		Name:           "Registrar A",
		CredentialHash: hash,
		Status:         domain.RegistrarActive,
		CreatedAt:      s.now,
	}))
	s.Require().NoError(s.store.Registrars().Create(s.ctx, domain.Registrar{
		ID:             "reg-locked",
		Name:           "Locked Down",
		CredentialHash: hash,
		Status:         domain.RegistrarActive,
		AllowedCIDRs:   []string{"10.0.0.0/8"},
		CreatedAt:      s.now,
	}))
	s.Require().NoError(s.store.Registrars().Create(s.ctx, domain.Registrar{
		ID:             "reg-suspended",
		Name:           "Suspended",
		CredentialHash: hash,
		Status:         domain.RegistrarSuspended,
		CreatedAt:      s.now,
	}))

	s.manager = NewManager(s.store.Registrars(), 10*time.Minute, 2,
		WithClock(func() time.Time { return s.now }))
}

func (s *ManagerSuite) TestLogin() {
	s.Run("valid credentials authenticate the session", func() {
		sess := s.manager.Open("192.0.2.1")
		s.Require().NoError(s.manager.Login(s.ctx, sess.ID, "reg-a", "correct-password"))

		got, ok := s.manager.Get(sess.ID)
		s.Require().True(ok)
		s.True(got.Authenticated)
		s.EqualValues("reg-a", got.RegistrarID)
	})

	s.Run("wrong password is rejected", func() {
		sess := s.manager.Open("192.0.2.1")
		err := s.manager.Login(s.ctx, sess.ID, "reg-a", "wrong")
		s.Require().ErrorIs(err, ErrInvalidCredential)
	})

	s.Run("unknown registrar looks like a bad credential", func() {
		sess := s.manager.Open("192.0.2.1")
		err := s.manager.Login(s.ctx, sess.ID, "reg-nope", "correct-password")
		s.Require().ErrorIs(err, ErrInvalidCredential)
	})

	s.Run("suspended registrar cannot log in", func() {
		sess := s.manager.Open("192.0.2.1")
		err := s.manager.Login(s.ctx, sess.ID, "reg-suspended", "correct-password")
		s.Require().ErrorIs(err, ErrRegistrarSuspended)
	})

	s.Run("re-login on authenticated session is a use error", func() {
		sess := s.manager.Open("192.0.2.1")
		s.Require().NoError(s.manager.Login(s.ctx, sess.ID, "reg-a", "correct-password"))
		err := s.manager.Login(s.ctx, sess.ID, "reg-a", "correct-password")
		s.Require().ErrorIs(err, ErrAlreadyLoggedIn)
	})
}

func (s *ManagerSuite) TestSourceRestriction() {
	s.Run("source inside the allowed CIDR passes", func() {
		sess := s.manager.Open("10.1.2.3")
		s.NoError(s.manager.Login(s.ctx, sess.ID, "reg-locked", "correct-password"))
	})

	s.Run("source outside the allowed CIDR is rejected", func() {
		sess := s.manager.Open("192.0.2.1")
		err := s.manager.Login(s.ctx, sess.ID, "reg-locked", "correct-password")
		s.Require().ErrorIs(err, ErrSourceNotAllowed)
	})
}

func (s *ManagerSuite) TestSessionLimit() {
	one := s.manager.Open("192.0.2.1")
	two := s.manager.Open("192.0.2.2")
	three := s.manager.Open("192.0.2.3")

	s.Require().NoError(s.manager.Login(s.ctx, one.ID, "reg-a", "correct-password"))
	s.Require().NoError(s.manager.Login(s.ctx, two.ID, "reg-a", "correct-password"))

	err := s.manager.Login(s.ctx, three.ID, "reg-a", "correct-password")
	s.Require().ErrorIs(err, ErrSessionLimit)

	s.Run("logout frees a slot", func() {
		s.manager.Logout(one.ID)
		s.NoError(s.manager.Login(s.ctx, three.ID, "reg-a", "correct-password"))
	})
}

func (s *ManagerSuite) TestIdleExpiry() {
	active := s.manager.Open("192.0.2.1")
	idle := s.manager.Open("192.0.2.2")
	s.Require().NoError(s.manager.Login(s.ctx, active.ID, "reg-a", "correct-password"))
	s.Require().NoError(s.manager.Login(s.ctx, idle.ID, "reg-a", "correct-password"))

	s.now = s.now.Add(8 * time.Minute)
	s.manager.Touch(active.ID)
	s.now = s.now.Add(4 * time.Minute)

	expired := s.manager.ExpireIdle(s.now)
	s.Require().Len(expired, 1)
	s.Equal(idle.ID, expired[0].ID)

	_, ok := s.manager.Get(idle.ID)
	s.False(ok)
	_, ok = s.manager.Get(active.ID)
	s.True(ok)
}

func (s *ManagerSuite) TestCountActive() {
	s.Equal(0, s.manager.CountActive("reg-a"))
	sess := s.manager.Open("192.0.2.1")
	s.Equal(0, s.manager.CountActive("reg-a"))
	s.Require().NoError(s.manager.Login(s.ctx, sess.ID, "reg-a", "correct-password"))
	s.Equal(1, s.manager.CountActive("reg-a"))
}
