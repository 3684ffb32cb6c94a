// Package audit forwards committed transaction records to Kafka for
// downstream compliance consumers. The store is the source of truth; this
// stream is a best-effort projection and must never block or fail a command.
package audit

import (
	"context"
	"io"
	"log/slog"

	"zonecore/internal/domain"
	"zonecore/internal/platform/metrics"
)

// Publisher hands committed records to the background worker. Emit never
// blocks: when the inbox is full the record is dropped and counted, since the
// durable copy already sits in the transaction log.
type Publisher struct {
	inbox   chan domain.Transaction
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type PublisherOption func(*Publisher)

func WithLogger(logger *slog.Logger) PublisherOption {
	return func(p *Publisher) { p.logger = logger }
}

func WithMetrics(m *metrics.Metrics) PublisherOption {
	return func(p *Publisher) { p.metrics = m }
}

func NewPublisher(buffer int, opts ...PublisherOption) *Publisher {
	if buffer <= 0 {
		buffer = 1024
	}
	p := &Publisher{
		inbox:  make(chan domain.Transaction, buffer),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Publisher) Emit(ctx context.Context, rec domain.Transaction) {
	select {
	case p.inbox <- rec:
	default:
		if p.metrics != nil {
			p.metrics.AuditPublished.WithLabelValues("dropped").Inc()
		}
		p.logger.Warn("audit inbox full, record dropped", "server_trid", rec.ServerTRID)
	}
}

// Inbox exposes the channel for the worker.
func (p *Publisher) Inbox() <-chan domain.Transaction { return p.inbox }
