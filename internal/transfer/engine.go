// Package transfer implements the three-way registrar transfer handshake on
// top of the domain lifecycle: request by the gaining registrar, explicit
// resolution by the losing registrar, and registry auto-approval on timeout.
package transfer

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"zonecore/internal/domain"
	"zonecore/internal/platform/metrics"
	"zonecore/internal/store"
	dErrors "zonecore/pkg/domain-errors"
	"zonecore/pkg/secrets"
)

// Registry is the acting party for server-initiated resolution.
const Registry = domain.RegistrarID("")

type Engine struct {
	autoApproveWindow time.Duration

	clock   func() time.Time
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Engine)

func WithClock(clock func() time.Time) Option {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

func New(autoApproveWindow time.Duration, opts ...Option) *Engine {
	e := &Engine{
		autoApproveWindow: autoApproveWindow,
		clock:             time.Now,
		logger:            slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Request opens a transfer: validates the authorization code, marks the
// domain pendingTransfer, and arms the auto-approve deadline.
func (e *Engine) Request(ctx context.Context, s store.Stores, gaining domain.RegistrarID, domainName, authCode string) (domain.Transfer, error) {
	name := domain.NormalizeName(domainName)
	d, err := s.Domains().GetByName(ctx, name)
	if err != nil {
		return domain.Transfer{}, store.Translate(err, "domain")
	}
	if d.RegistrarID == gaining {
		return domain.Transfer{}, dErrors.New(dErrors.CodeCommandUse, "domain is already sponsored by the requesting registrar")
	}
	if authCode == "" {
		return domain.Transfer{}, dErrors.New(dErrors.CodeMissingParameter, "authorization code is required")
	}
	if authCode != d.AuthCode {
		return domain.Transfer{}, dErrors.New(dErrors.CodeInvalidAuthInfo, "invalid authorization code")
	}
	if d.Status.Has(domain.StatusClientTransferProhibited) || d.Status.Has(domain.StatusServerTransferProhibited) {
		return domain.Transfer{}, dErrors.New(dErrors.CodeProhibited, "status prohibits transfer")
	}
	if _, pending := d.Status.Pending(); pending {
		return domain.Transfer{}, dErrors.New(dErrors.CodeProhibited, "pending operation prohibits transfer")
	}
	gainingReg, err := s.Registrars().Get(ctx, gaining)
	if err != nil {
		return domain.Transfer{}, store.Translate(err, "registrar")
	}
	if gainingReg.Status != domain.RegistrarActive {
		return domain.Transfer{}, dErrors.New(dErrors.CodeUnauthorized, "gaining registrar is not active")
	}

	now := e.clock()
	t := domain.Transfer{
		ID:            uuid.New(),
		DomainName:    name,
		LosingID:      d.RegistrarID,
		GainingID:     gaining,
		Status:        domain.TransferPending,
		RequestedAt:   now,
		AutoApproveAt: now.Add(e.autoApproveWindow),
	}
	if err := s.Transfers().Create(ctx, t); err != nil {
		return domain.Transfer{}, store.Translate(err, "transfer")
	}
	d.Status.Add(domain.StatusPendingTransfer)
	d.UpdatedAt = now
	if err := s.Domains().Update(ctx, d); err != nil {
		return domain.Transfer{}, store.Translate(err, "domain")
	}
	e.logger.Info("transfer requested", "domain", name, "gaining", gaining, "losing", t.LosingID, "auto_approve_at", t.AutoApproveAt)
	return t, nil
}

// Approve resolves the pending transfer in the gaining registrar's favor.
// Only the losing registrar (or the registry) may approve. Completion is
// atomic with clearing pendingTransfer and rotating the auth code: all three
// commit in the same transaction or none do.
func (e *Engine) Approve(ctx context.Context, s store.Stores, acting domain.RegistrarID, domainName string) (domain.Transfer, error) {
	t, d, err := e.active(ctx, s, domainName)
	if err != nil {
		return domain.Transfer{}, err
	}
	if acting != Registry && acting != t.LosingID {
		return domain.Transfer{}, dErrors.New(dErrors.CodeUnauthorized, "only the losing registrar may approve")
	}
	status := domain.TransferClientApproved
	if acting == Registry {
		status = domain.TransferServerApproved
	}
	return e.complete(ctx, s, t, d, status)
}

// Reject resolves the transfer in the losing registrar's favor; ownership is
// unchanged.
func (e *Engine) Reject(ctx context.Context, s store.Stores, acting domain.RegistrarID, domainName string) (domain.Transfer, error) {
	t, d, err := e.active(ctx, s, domainName)
	if err != nil {
		return domain.Transfer{}, err
	}
	if acting != Registry && acting != t.LosingID {
		return domain.Transfer{}, dErrors.New(dErrors.CodeUnauthorized, "only the losing registrar may reject")
	}
	return e.resolve(ctx, s, t, d, domain.TransferClientRejected)
}

// Cancel withdraws a pending request; only the gaining registrar may cancel.
func (e *Engine) Cancel(ctx context.Context, s store.Stores, acting domain.RegistrarID, domainName string) (domain.Transfer, error) {
	t, d, err := e.active(ctx, s, domainName)
	if err != nil {
		return domain.Transfer{}, err
	}
	if acting != t.GainingID {
		return domain.Transfer{}, dErrors.New(dErrors.CodeUnauthorized, "only the requesting registrar may cancel")
	}
	return e.resolve(ctx, s, t, d, domain.TransferServerCancelled)
}

// Query returns the most recent transfer record for a domain to either
// party of that transfer.
func (e *Engine) Query(ctx context.Context, s store.Stores, acting domain.RegistrarID, domainName string) (domain.Transfer, error) {
	name := domain.NormalizeName(domainName)
	t, err := s.Transfers().LatestByDomain(ctx, name)
	if err != nil {
		return domain.Transfer{}, store.Translate(err, "transfer")
	}
	if acting != Registry && acting != t.LosingID && acting != t.GainingID {
		return domain.Transfer{}, dErrors.New(dErrors.CodeUnauthorized, "not a party to this transfer")
	}
	return t, nil
}

// complete reassigns ownership, clears pendingTransfer, and rotates the
// authorization code so the old sponsor's code stops working.
func (e *Engine) complete(ctx context.Context, s store.Stores, t domain.Transfer, d domain.Domain, status domain.TransferStatus) (domain.Transfer, error) {
	newCode, err := secrets.Generate()
	if err != nil {
		return domain.Transfer{}, dErrors.Wrap(err, dErrors.CodeInternal, "could not rotate auth code")
	}
	now := e.clock()

	d.RegistrarID = t.GainingID
	d.AuthCode = newCode
	d.Status.Remove(domain.StatusPendingTransfer)
	d.Status.Normalize()
	d.UpdatedAt = now
	if err := s.Domains().Update(ctx, d); err != nil {
		return domain.Transfer{}, store.Translate(err, "domain")
	}

	t.Status = status
	t.CompletedAt = now
	if err := s.Transfers().Update(ctx, t); err != nil {
		return domain.Transfer{}, store.Translate(err, "transfer")
	}
	e.logger.Info("transfer completed", "domain", d.Name, "status", status, "gaining", t.GainingID)
	return t, nil
}

// resolve terminates the record without changing ownership.
func (e *Engine) resolve(ctx context.Context, s store.Stores, t domain.Transfer, d domain.Domain, status domain.TransferStatus) (domain.Transfer, error) {
	now := e.clock()
	d.Status.Remove(domain.StatusPendingTransfer)
	d.Status.Normalize()
	d.UpdatedAt = now
	if err := s.Domains().Update(ctx, d); err != nil {
		return domain.Transfer{}, store.Translate(err, "domain")
	}
	t.Status = status
	t.CompletedAt = now
	if err := s.Transfers().Update(ctx, t); err != nil {
		return domain.Transfer{}, store.Translate(err, "transfer")
	}
	e.logger.Info("transfer resolved", "domain", d.Name, "status", status)
	return t, nil
}

func (e *Engine) active(ctx context.Context, s store.Stores, domainName string) (domain.Transfer, domain.Domain, error) {
	name := domain.NormalizeName(domainName)
	t, err := s.Transfers().ActiveByDomain(ctx, name)
	if err != nil {
		return domain.Transfer{}, domain.Domain{}, dErrors.Wrap(err, dErrors.CodeNotFound, "no pending transfer for domain")
	}
	d, err := s.Domains().GetByName(ctx, name)
	if err != nil {
		return domain.Transfer{}, domain.Domain{}, store.Translate(err, "domain")
	}
	return t, d, nil
}
