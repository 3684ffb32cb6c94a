package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"zonecore/internal/domain"
)

type MemoryStoreSuite struct {
	suite.Suite
	store *Memory
	ctx   context.Context
}

func (s *MemoryStoreSuite) SetupTest() {
	s.store = NewMemory()
	s.ctx = context.Background()
}

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(MemoryStoreSuite))
}

func (s *MemoryStoreSuite) newDomain(name string) domain.Domain {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return domain.Domain{
		ID:          uuid.New(),
		Name:        name,
		RegistrarID: "reg-a",
		AuthCode:    "secret",
		Status:      domain.NewStatusSet(domain.StatusOK),
		CreatedAt:   now,
		ExpiresAt:   now.AddDate(1, 0, 0),
		UpdatedAt:   now,
	}
}

func (s *MemoryStoreSuite) TestDomainLifecycle() {
	s.Run("create then get", func() {
		d := s.newDomain("example.test")
		s.Require().NoError(s.store.Domains().Create(s.ctx, d))

		got, err := s.store.Domains().GetByName(s.ctx, "example.test")
		s.Require().NoError(err)
		s.Equal(d.ID, got.ID)
		s.EqualValues(1, got.Version)
	})

	s.Run("duplicate name conflicts", func() {
		err := s.store.Domains().Create(s.ctx, s.newDomain("example.test"))
		s.Require().ErrorIs(err, ErrConflict)
	})

	s.Run("unknown name not found", func() {
		_, err := s.store.Domains().GetByName(s.ctx, "missing.test")
		s.Require().ErrorIs(err, ErrNotFound)
	})
}

func (s *MemoryStoreSuite) TestOptimisticConcurrency() {
	d := s.newDomain("cas.test")
	s.Require().NoError(s.store.Domains().Create(s.ctx, d))

	first, err := s.store.Domains().GetByName(s.ctx, "cas.test")
	s.Require().NoError(err)
	second, err := s.store.Domains().GetByName(s.ctx, "cas.test")
	s.Require().NoError(err)

	s.Run("first writer wins and bumps version", func() {
		first.AuthCode = "rotated"
		s.Require().NoError(s.store.Domains().Update(s.ctx, first))

		got, err := s.store.Domains().GetByName(s.ctx, "cas.test")
		s.Require().NoError(err)
		s.EqualValues(2, got.Version)
	})

	s.Run("stale writer gets version mismatch", func() {
		second.AuthCode = "stale"
		err := s.store.Domains().Update(s.ctx, second)
		s.Require().ErrorIs(err, ErrVersionMismatch)
	})

	s.Run("purge with stale version fails", func() {
		err := s.store.Domains().Purge(s.ctx, "cas.test", 1)
		s.Require().ErrorIs(err, ErrVersionMismatch)
		s.NoError(s.store.Domains().Purge(s.ctx, "cas.test", 2))
	})
}

func (s *MemoryStoreSuite) TestRunInTxRollback() {
	d := s.newDomain("atomic.test")
	s.Require().NoError(s.store.Domains().Create(s.ctx, d))

	boom := errors.New("boom")
	err := s.store.RunInTx(s.ctx, func(ctx context.Context, st Stores) error {
		got, err := st.Domains().GetByName(ctx, "atomic.test")
		s.Require().NoError(err)
		got.AuthCode = "inside-tx"
		s.Require().NoError(st.Domains().Update(ctx, got))
		if err := st.Domains().Create(ctx, s.newDomain("other.test")); err != nil {
			return err
		}
		return boom
	})
	s.Require().ErrorIs(err, boom)

	s.Run("update rolled back", func() {
		got, err := s.store.Domains().GetByName(s.ctx, "atomic.test")
		s.Require().NoError(err)
		s.Equal("secret", got.AuthCode)
		s.EqualValues(1, got.Version)
	})

	s.Run("create rolled back", func() {
		_, err := s.store.Domains().GetByName(s.ctx, "other.test")
		s.Require().ErrorIs(err, ErrNotFound)
	})
}

func (s *MemoryStoreSuite) TestTransferSingleActive() {
	mk := func(status domain.TransferStatus) domain.Transfer {
		return domain.Transfer{
			ID:          uuid.New(),
			DomainName:  "contested.test",
			LosingID:    "reg-a",
			GainingID:   "reg-b",
			Status:      status,
			RequestedAt: time.Now(),
		}
	}

	s.Require().NoError(s.store.Transfers().Create(s.ctx, mk(domain.TransferPending)))

	s.Run("second active transfer conflicts", func() {
		err := s.store.Transfers().Create(s.ctx, mk(domain.TransferPending))
		s.Require().ErrorIs(err, ErrConflict)
	})

	s.Run("resolved transfer frees the slot", func() {
		t, err := s.store.Transfers().ActiveByDomain(s.ctx, "contested.test")
		s.Require().NoError(err)
		t.Status = domain.TransferClientRejected
		s.Require().NoError(s.store.Transfers().Update(s.ctx, t))

		s.NoError(s.store.Transfers().Create(s.ctx, mk(domain.TransferPending)))
	})
}

func (s *MemoryStoreSuite) TestTransactionLog() {
	rec := domain.Transaction{
		ClientTRID:  "cl-001",
		RegistrarID: "reg-a",
		Command:     "create",
		Object:      "domain",
		Response:    []byte("<epp/>"),
		ResultCode:  1000,
		Success:     true,
		Timestamp:   time.Now(),
	}

	s.Run("append assigns sequence and server trid", func() {
		stored, err := s.store.Transactions().Append(s.ctx, rec)
		s.Require().NoError(err)
		s.EqualValues(1, stored.Seq)
		s.Equal("ZC-000000000001", stored.ServerTRID)
	})

	s.Run("duplicate client trid conflicts", func() {
		_, err := s.store.Transactions().Append(s.ctx, rec)
		s.Require().ErrorIs(err, ErrConflict)
	})

	s.Run("same client trid from another registrar is fine", func() {
		other := rec
		other.RegistrarID = "reg-b"
		_, err := s.store.Transactions().Append(s.ctx, other)
		s.NoError(err)
	})

	s.Run("empty client trid never conflicts", func() {
		anon := rec
		anon.ClientTRID = ""
		_, err := s.store.Transactions().Append(s.ctx, anon)
		s.Require().NoError(err)
		_, err = s.store.Transactions().Append(s.ctx, anon)
		s.NoError(err)
	})

	s.Run("find by client trid returns the stored record", func() {
		found, err := s.store.Transactions().FindByClientTRID(s.ctx, "reg-a", "cl-001")
		s.Require().NoError(err)
		s.Equal([]byte("<epp/>"), found.Response)
		s.Equal(1000, found.ResultCode)
	})

	s.Run("next trid keeps the sequence strictly increasing", func() {
		seq, trid, err := s.store.Transactions().NextTRID(s.ctx)
		s.Require().NoError(err)
		s.Greater(seq, int64(4))
		s.Equal(ServerTRID(seq), trid)
	})
}
