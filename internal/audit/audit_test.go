package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"zonecore/internal/domain"
)

// memorySink collects published records and can be told to fail.
type memorySink struct {
	mu   sync.Mutex
	recs []domain.Transaction
	err  error
}

func (m *memorySink) Publish(_ context.Context, rec domain.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.recs = append(m.recs, rec)
	return nil
}

func (m *memorySink) Close() {}

func (m *memorySink) published() []domain.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Transaction(nil), m.recs...)
}

type AuditSuite struct {
	suite.Suite
	ctx context.Context
}

func TestAuditSuite(t *testing.T) {
	suite.Run(t, new(AuditSuite))
}

func (s *AuditSuite) SetupTest() {
	s.ctx = context.Background()
}

func rec(trid string) domain.Transaction {
	return domain.Transaction{
		Seq:         1,
		ServerTRID:  trid,
		RegistrarID: "reg-a",
		Command:     "create",
		ResultCode:  1000,
		Success:     true,
		Timestamp:   time.Now(),
	}
}

func (s *AuditSuite) TestEmitNeverBlocks() {
	pub := NewPublisher(2)
	for i := 0; i < 5; i++ {
		pub.Emit(s.ctx, rec("ZC-1")) // overflow is dropped, not blocked
	}
	s.Len(pub.Inbox(), 2)
}

func (s *AuditSuite) TestWorkerDrains() {
	pub := NewPublisher(8)
	sink := &memorySink{}
	worker := NewWorker(sink, pub)

	ctx, cancel := context.WithCancel(s.ctx)
	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx) }()

	pub.Emit(s.ctx, rec("ZC-1"))
	pub.Emit(s.ctx, rec("ZC-2"))

	s.Eventually(func() bool {
		return len(sink.published()) == 2
	}, time.Second, 5*time.Millisecond)

	cancel()
	s.ErrorIs(<-done, context.Canceled)

	got := sink.published()
	s.Equal("ZC-1", got[0].ServerTRID)
	s.Equal("ZC-2", got[1].ServerTRID)
}

func (s *AuditSuite) TestWorkerKeepsGoingAfterSinkError() {
	pub := NewPublisher(8)
	sink := &memorySink{err: errors.New("broker down")}
	worker := NewWorker(sink, pub)

	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	go worker.Run(ctx)

	pub.Emit(s.ctx, rec("ZC-1"))

	s.Eventually(func() bool {
		return len(pub.Inbox()) == 0
	}, time.Second, 5*time.Millisecond)

	sink.mu.Lock()
	sink.err = nil
	sink.mu.Unlock()

	pub.Emit(s.ctx, rec("ZC-2"))
	s.Eventually(func() bool {
		got := sink.published()
		return len(got) == 1 && got[0].ServerTRID == "ZC-2"
	}, time.Second, 5*time.Millisecond)
}
