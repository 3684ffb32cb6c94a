package audit

import (
	"context"
	"io"
	"log/slog"

	"zonecore/internal/platform/metrics"
)

// Worker drains the publisher inbox into the sink. Publish failures are
// logged and counted, never retried here: the transaction log already holds
// the durable record, and consumers reconcile from it.
type Worker struct {
	sink    Sink
	pub     *Publisher
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type WorkerOption func(*Worker)

func WorkerLogger(logger *slog.Logger) WorkerOption {
	return func(w *Worker) { w.logger = logger }
}

func WorkerMetrics(m *metrics.Metrics) WorkerOption {
	return func(w *Worker) { w.metrics = m }
}

func NewWorker(sink Sink, pub *Publisher, opts ...WorkerOption) *Worker {
	w := &Worker{sink: sink, pub: pub, logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case rec := <-w.pub.Inbox():
			if err := w.sink.Publish(ctx, rec); err != nil {
				w.observe("error")
				w.logger.Error("audit publish failed", "server_trid", rec.ServerTRID, "error", err)
				continue
			}
			w.observe("ok")
		}
	}
}

func (w *Worker) observe(outcome string) {
	if w.metrics != nil {
		w.metrics.AuditPublished.WithLabelValues(outcome).Inc()
	}
}
