// Package lifecycle implements the domain state machine: create, renew,
// update, delete, restore, and the timer-driven pendingDelete →
// redemptionPeriod → purge transitions.
package lifecycle

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

const maxRegistrationYears = 10

// Engine executes domain lifecycle commands. Methods operate on the
// tx-scoped Stores handed in by the dispatcher, so every command commits or
// rolls back as a unit.
type Engine struct {
	pendingDeleteWindow time.Duration
	redemptionWindow    time.Duration

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

func New(pendingDeleteWindow, redemptionWindow time.Duration, opts ...Option) *Engine {
	e := &Engine{
		pendingDeleteWindow: pendingDeleteWindow,
		redemptionWindow:    redemptionWindow,
		clock:               time.Now,
		logger:              slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CreateRequest carries the decoded domain:create parameters.
type CreateRequest struct {
	Name        string
	PeriodYears int
	Registrant  string
	Admin       string
	Tech        string
	Billing     string
	Nameservers []string
	AuthCode    string
}

// Create registers a new name with status {ok}. Creation is synchronous:
// there is no registry-side review step.
func (e *Engine) Create(ctx context.Context, s store.Stores, acting domain.RegistrarID, req CreateRequest) (domain.Domain, error) {
	name := domain.NormalizeName(req.Name)
	if err := domain.ValidateDomainName(name); err != nil {
		return domain.Domain{}, err
	}
	period := req.PeriodYears
	if period == 0 {
		period = 1
	}
	if period < 1 || period > maxRegistrationYears {
		return domain.Domain{}, dErrors.Newf(dErrors.CodePolicy, "registration period %d years out of range", period)
	}

	for _, contactID := range []string{req.Registrant, req.Admin, req.Tech, req.Billing} {
		if contactID == "" {
			continue
		}
		if _, err := s.Contacts().Get(ctx, contactID); err != nil {
			return domain.Domain{}, dErrors.Newf(dErrors.CodePolicy, "contact %s does not exist", contactID)
		}
	}
	nameservers, err := resolveNameservers(ctx, s, req.Nameservers)
	if err != nil {
		return domain.Domain{}, err
	}

	authCode := req.AuthCode
	if authCode == "" {
		if authCode, err = secrets.Generate(); err != nil {
			return domain.Domain{}, dErrors.Wrap(err, dErrors.CodeInternal, "could not generate auth code")
		}
	}

	now := e.clock()
	d := domain.Domain{
		ID:             uuid.New(),
		Name:           name,
		RegistrarID:    acting,
		Registrant:     req.Registrant,
		AdminContact:   req.Admin,
		TechContact:    req.Tech,
		BillingContact: req.Billing,
		Nameservers:    nameservers,
		AuthCode:       authCode,
		Status:         domain.NewStatusSet(domain.StatusOK),
		CreatedAt:      now,
		ExpiresAt:      now.AddDate(period, 0, 0),
		UpdatedAt:      now,
	}
	if err := s.Domains().Create(ctx, d); err != nil {
		return domain.Domain{}, store.Translate(err, "domain")
	}
	e.logger.Info("domain created", "name", name, "registrar", acting, "expires", d.ExpiresAt)
	return d, nil
}

// Renew extends the expiration date. curExpiry must match the stored
// expiration date (to the day) so a double-submitted renew cannot extend
// twice.
func (e *Engine) Renew(ctx context.Context, s store.Stores, acting domain.RegistrarID, name string, curExpiry time.Time, addYears int) (domain.Domain, error) {
	d, err := e.sponsored(ctx, s, acting, name)
	if err != nil {
		return domain.Domain{}, err
	}
	if addYears == 0 {
		addYears = 1
	}
	if addYears < 1 || addYears > maxRegistrationYears {
		return domain.Domain{}, dErrors.Newf(dErrors.CodePolicy, "renewal period %d years out of range", addYears)
	}
	if !sameDay(curExpiry, d.ExpiresAt) {
		return domain.Domain{}, dErrors.New(dErrors.CodePolicy, "current expiration date does not match")
	}
	if d.Status.Has(domain.StatusClientRenewProhibited) || d.Status.Has(domain.StatusServerRenewProhibited) {
		return domain.Domain{}, dErrors.New(dErrors.CodeProhibited, "status prohibits renewal")
	}
	if _, pending := d.Status.Pending(); pending {
		return domain.Domain{}, dErrors.New(dErrors.CodeProhibited, "pending operation prohibits renewal")
	}

	now := e.clock()
	newExpiry := d.ExpiresAt.AddDate(addYears, 0, 0)
	if newExpiry.After(now.AddDate(maxRegistrationYears, 0, 0)) {
		return domain.Domain{}, dErrors.Newf(dErrors.CodePolicy, "expiration may not exceed %d years out", maxRegistrationYears)
	}
	d.ExpiresAt = newExpiry
	d.UpdatedAt = now
	if err := s.Domains().Update(ctx, d); err != nil {
		return domain.Domain{}, store.Translate(err, "domain")
	}
	e.logger.Info("domain renewed", "name", name, "registrar", acting, "expires", newExpiry)
	return d, nil
}

// Delete starts the removal lifecycle: ok → pendingDelete. The name is not
// released until the redemption period also elapses.
func (e *Engine) Delete(ctx context.Context, s store.Stores, acting domain.RegistrarID, name string) (domain.Domain, error) {
	d, err := e.sponsored(ctx, s, acting, name)
	if err != nil {
		return domain.Domain{}, err
	}
	if d.Status.Has(domain.StatusClientDeleteProhibited) || d.Status.Has(domain.StatusServerDeleteProhibited) {
		return domain.Domain{}, dErrors.New(dErrors.CodeProhibited, "status prohibits deletion")
	}
	if _, pending := d.Status.Pending(); pending {
		// Covers pendingTransfer: an active transfer must be resolved or
		// cancelled before the domain can be deleted.
		return domain.Domain{}, dErrors.New(dErrors.CodeProhibited, "pending operation prohibits deletion")
	}
	if err := e.checkExclusiveDependents(ctx, s, name); err != nil {
		return domain.Domain{}, err
	}

	now := e.clock()
	d.Status.Add(domain.StatusPendingDelete)
	d.RedeemAt = now.Add(e.pendingDeleteWindow)
	d.UpdatedAt = now
	if err := s.Domains().Update(ctx, d); err != nil {
		return domain.Domain{}, store.Translate(err, "domain")
	}
	e.logger.Info("domain delete started", "name", name, "registrar", acting, "redeem_at", d.RedeemAt)
	return d, nil
}

// Restore brings a domain back from redemptionPeriod to ok.
func (e *Engine) Restore(ctx context.Context, s store.Stores, acting domain.RegistrarID, name string) (domain.Domain, error) {
	d, err := e.sponsored(ctx, s, acting, name)
	if err != nil {
		return domain.Domain{}, err
	}
	if !d.Status.Has(domain.StatusRedemptionPeriod) {
		return domain.Domain{}, dErrors.New(dErrors.CodeProhibited, "domain is not in redemption period")
	}
	d.Status.Remove(domain.StatusRedemptionPeriod)
	d.Status.Normalize()
	d.RedeemAt = time.Time{}
	d.PurgeAt = time.Time{}
	d.UpdatedAt = e.clock()
	if err := s.Domains().Update(ctx, d); err != nil {
		return domain.Domain{}, store.Translate(err, "domain")
	}
	e.logger.Info("domain restored", "name", name, "registrar", acting)
	return d, nil
}

// UpdateRequest carries decoded domain:update parameters.
type UpdateRequest struct {
	Name              string
	AddNameservers    []string
	RemoveNameservers []string
	AddStatuses       []domain.Status
	RemoveStatuses    []domain.Status
	NewRegistrant     string
	NewAuthCode       string
}

// Update modifies delegation, client-settable statuses, registrant, and the
// authorization code. An update-prohibited domain accepts only the update
// that removes clientUpdateProhibited.
func (e *Engine) Update(ctx context.Context, s store.Stores, acting domain.RegistrarID, req UpdateRequest) (domain.Domain, error) {
	d, err := e.sponsored(ctx, s, acting, req.Name)
	if err != nil {
		return domain.Domain{}, err
	}

	removesUpdateLock := false
	for _, st := range req.RemoveStatuses {
		if st == domain.StatusClientUpdateProhibited {
			removesUpdateLock = true
		}
	}
	if (d.Status.Has(domain.StatusClientUpdateProhibited) || d.Status.Has(domain.StatusServerUpdateProhibited)) && !removesUpdateLock {
		return domain.Domain{}, dErrors.New(dErrors.CodeProhibited, "status prohibits update")
	}

	for _, st := range append(append([]domain.Status{}, req.AddStatuses...), req.RemoveStatuses...) {
		if !st.ClientSettable() {
			return domain.Domain{}, dErrors.Newf(dErrors.CodePolicy, "status %s is not client-settable", st)
		}
	}

	add, err := resolveNameservers(ctx, s, req.AddNameservers)
	if err != nil {
		return domain.Domain{}, err
	}
	for _, ns := range add {
		if !containsString(d.Nameservers, ns) {
			d.Nameservers = append(d.Nameservers, ns)
		}
	}
	for _, raw := range req.RemoveNameservers {
		ns := domain.NormalizeName(raw)
		d.Nameservers = removeString(d.Nameservers, ns)
	}

	for _, st := range req.AddStatuses {
		d.Status.Add(st)
	}
	for _, st := range req.RemoveStatuses {
		d.Status.Remove(st)
	}
	d.Status.Normalize()
	if err := d.Status.Validate(); err != nil {
		return domain.Domain{}, err
	}

	if req.NewRegistrant != "" {
		if _, err := s.Contacts().Get(ctx, req.NewRegistrant); err != nil {
			return domain.Domain{}, dErrors.Newf(dErrors.CodePolicy, "contact %s does not exist", req.NewRegistrant)
		}
		d.Registrant = req.NewRegistrant
	}
	if req.NewAuthCode != "" {
		d.AuthCode = req.NewAuthCode
	}

	d.UpdatedAt = e.clock()
	if err := s.Domains().Update(ctx, d); err != nil {
		return domain.Domain{}, store.Translate(err, "domain")
	}
	e.logger.Info("domain updated", "name", d.Name, "registrar", acting)
	return d, nil
}

// Info returns the stored domain. The caller decides how much to disclose
// based on sponsorship.
func (e *Engine) Info(ctx context.Context, s store.Stores, name string) (domain.Domain, error) {
	d, err := s.Domains().GetByName(ctx, domain.NormalizeName(name))
	if err != nil {
		return domain.Domain{}, store.Translate(err, "domain")
	}
	return d, nil
}

// CheckResult reports availability of one name.
type CheckResult struct {
	Name      string
	Available bool
	Reason    string
}

// Check reports availability for each queried name.
func (e *Engine) Check(ctx context.Context, s store.Stores, names []string) ([]CheckResult, error) {
	if len(names) == 0 {
		return nil, dErrors.New(dErrors.CodeMissingParameter, "at least one name is required")
	}
	out := make([]CheckResult, 0, len(names))
	for _, raw := range names {
		name := domain.NormalizeName(raw)
		if err := domain.ValidateDomainName(name); err != nil {
			out = append(out, CheckResult{Name: name, Available: false, Reason: "invalid name"})
			continue
		}
		_, err := s.Domains().GetByName(ctx, name)
		switch {
		case err == nil:
			out = append(out, CheckResult{Name: name, Available: false, Reason: "in use"})
		case dErrors.Is(store.Translate(err, "domain"), dErrors.CodeNotFound):
			out = append(out, CheckResult{Name: name, Available: true})
		default:
			return nil, store.Translate(err, "domain")
		}
	}
	return out, nil
}

// sponsored loads a domain and verifies the acting registrar sponsors it.
func (e *Engine) sponsored(ctx context.Context, s store.Stores, acting domain.RegistrarID, name string) (domain.Domain, error) {
	d, err := s.Domains().GetByName(ctx, domain.NormalizeName(name))
	if err != nil {
		return domain.Domain{}, store.Translate(err, "domain")
	}
	if d.RegistrarID != acting {
		return domain.Domain{}, dErrors.New(dErrors.CodeUnauthorized, "domain is sponsored by another registrar")
	}
	return d, nil
}

// checkExclusiveDependents blocks deletion while a subordinate host of this
// domain is delegated to by some other domain.
func (e *Engine) checkExclusiveDependents(ctx context.Context, s store.Stores, name string) error {
	hosts, err := s.Hosts().ListSubordinate(ctx, name)
	if err != nil {
		return store.Translate(err, "host")
	}
	for _, h := range hosts {
		n, err := s.Domains().CountByNameserver(ctx, h.Name, name)
		if err != nil {
			return store.Translate(err, "domain")
		}
		if n > 0 {
			return dErrors.Newf(dErrors.CodeAssociation, "subordinate host %s is delegated to by other domains", h.Name)
		}
	}
	return nil
}

func resolveNameservers(ctx context.Context, s store.Stores, raw []string) ([]string, error) {
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		ns := domain.NormalizeName(r)
		if err := domain.ValidateHostName(ns); err != nil {
			return nil, err
		}
		if _, err := s.Hosts().Get(ctx, ns); err != nil {
			return nil, dErrors.Newf(dErrors.CodePolicy, "host %s does not exist", ns)
		}
		out = append(out, ns)
	}
	return out, nil
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func removeString(list []string, v string) []string {
	out := list[:0]
	for _, s := range list {
		if s != v {
			out = append(out, s)
		}
	}
	return out
}
