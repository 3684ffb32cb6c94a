// Package host implements nameserver object provisioning. Glue addresses are
// only meaningful on hosts subordinate to a registry-managed domain; external
// hosts are registered by name alone.
package host

import (
	"context"
	"io"
	"log/slog"
	"time"

	"zonecore/internal/domain"
	"zonecore/internal/store"
	dErrors "zonecore/pkg/domain-errors"
)

type Service struct {
	clock  func() time.Time
	logger *slog.Logger
}

type Option func(*Service)

func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func New(opts ...Option) *Service {
	s := &Service{clock: time.Now, logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateRequest carries decoded host:create parameters.
type CreateRequest struct {
	Name    string
	AddrsV4 []string
	AddrsV6 []string
}

func (svc *Service) Create(ctx context.Context, s store.Stores, acting domain.RegistrarID, req CreateRequest) (domain.Host, error) {
	name := domain.NormalizeName(req.Name)
	if err := domain.ValidateHostName(name); err != nil {
		return domain.Host{}, err
	}
	if err := validateAddrs(req.AddrsV4, req.AddrsV6); err != nil {
		return domain.Host{}, err
	}
	now := svc.clock()
	h := domain.Host{
		Name:        name,
		RegistrarID: acting,
		AddrsV4:     append([]string(nil), req.AddrsV4...),
		AddrsV6:     append([]string(nil), req.AddrsV6...),
		Status:      domain.NewStatusSet(domain.StatusOK),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.Hosts().Create(ctx, h); err != nil {
		return domain.Host{}, store.Translate(err, "host")
	}
	svc.logger.Info("host created", "name", name, "registrar", acting)
	return h, nil
}

// UpdateRequest adds and removes glue addresses on an existing host.
type UpdateRequest struct {
	Name      string
	AddV4     []string
	AddV6     []string
	RemoveV4  []string
	RemoveV6  []string
	AddStatus []domain.Status
	RemStatus []domain.Status
}

func (svc *Service) Update(ctx context.Context, s store.Stores, acting domain.RegistrarID, req UpdateRequest) (domain.Host, error) {
	h, err := svc.owned(ctx, s, acting, req.Name)
	if err != nil {
		return domain.Host{}, err
	}
	if h.Status.Has(domain.StatusClientUpdateProhibited) || h.Status.Has(domain.StatusServerUpdateProhibited) {
		return domain.Host{}, dErrors.New(dErrors.CodeProhibited, "status prohibits update")
	}
	if err := validateAddrs(req.AddV4, req.AddV6); err != nil {
		return domain.Host{}, err
	}
	h.AddrsV4 = applyAddrs(h.AddrsV4, req.AddV4, req.RemoveV4)
	h.AddrsV6 = applyAddrs(h.AddrsV6, req.AddV6, req.RemoveV6)
	for _, st := range req.AddStatus {
		if !st.ClientSettable() {
			return domain.Host{}, dErrors.Newf(dErrors.CodePolicy, "status %s is not client-settable", st)
		}
		h.Status.Add(st)
	}
	for _, st := range req.RemStatus {
		if !st.ClientSettable() {
			return domain.Host{}, dErrors.Newf(dErrors.CodePolicy, "status %s is not client-settable", st)
		}
		h.Status.Remove(st)
	}
	h.Status.Normalize()
	if err := h.Status.Validate(); err != nil {
		return domain.Host{}, err
	}
	h.UpdatedAt = svc.clock()
	if err := s.Hosts().Update(ctx, h); err != nil {
		return domain.Host{}, store.Translate(err, "host")
	}
	return h, nil
}

// Delete removes a host that no domain delegates to.
func (svc *Service) Delete(ctx context.Context, s store.Stores, acting domain.RegistrarID, name string) error {
	h, err := svc.owned(ctx, s, acting, name)
	if err != nil {
		return err
	}
	if h.Status.Has(domain.StatusClientDeleteProhibited) || h.Status.Has(domain.StatusServerDeleteProhibited) {
		return dErrors.New(dErrors.CodeProhibited, "status prohibits deletion")
	}
	n, err := s.Domains().CountByNameserver(ctx, h.Name, "")
	if err != nil {
		return store.Translate(err, "domain")
	}
	if n > 0 {
		return dErrors.Newf(dErrors.CodeAssociation, "host %s is delegated to by %d domains", h.Name, n)
	}
	if err := s.Hosts().Delete(ctx, h.Name, h.Version); err != nil {
		return store.Translate(err, "host")
	}
	svc.logger.Info("host deleted", "name", h.Name, "registrar", acting)
	return nil
}

func (svc *Service) Info(ctx context.Context, s store.Stores, name string) (domain.Host, error) {
	h, err := s.Hosts().Get(ctx, domain.NormalizeName(name))
	if err != nil {
		return domain.Host{}, store.Translate(err, "host")
	}
	return h, nil
}

// CheckResult reports availability of one host name.
type CheckResult struct {
	Name      string
	Available bool
}

func (svc *Service) Check(ctx context.Context, s store.Stores, names []string) ([]CheckResult, error) {
	if len(names) == 0 {
		return nil, dErrors.New(dErrors.CodeMissingParameter, "at least one host name is required")
	}
	out := make([]CheckResult, 0, len(names))
	for _, raw := range names {
		name := domain.NormalizeName(raw)
		_, err := s.Hosts().Get(ctx, name)
		switch {
		case err == nil:
			out = append(out, CheckResult{Name: name, Available: false})
		case dErrors.Is(store.Translate(err, "host"), dErrors.CodeNotFound):
			out = append(out, CheckResult{Name: name, Available: true})
		default:
			return nil, store.Translate(err, "host")
		}
	}
	return out, nil
}

func (svc *Service) owned(ctx context.Context, s store.Stores, acting domain.RegistrarID, name string) (domain.Host, error) {
	h, err := s.Hosts().Get(ctx, domain.NormalizeName(name))
	if err != nil {
		return domain.Host{}, store.Translate(err, "host")
	}
	if h.RegistrarID != acting {
		return domain.Host{}, dErrors.New(dErrors.CodeUnauthorized, "host is owned by another registrar")
	}
	return h, nil
}

func validateAddrs(v4, v6 []string) error {
	for _, a := range v4 {
		if err := domain.ValidateIP(a, false); err != nil {
			return err
		}
	}
	for _, a := range v6 {
		if err := domain.ValidateIP(a, true); err != nil {
			return err
		}
	}
	return nil
}

func applyAddrs(cur, add, remove []string) []string {
	seen := make(map[string]bool, len(cur)+len(add))
	for _, a := range cur {
		seen[a] = true
	}
	for _, a := range add {
		seen[a] = true
	}
	for _, a := range remove {
		delete(seen, a)
	}
	out := make([]string, 0, len(seen))
	for _, a := range append(cur, add...) {
		if seen[a] {
			out = append(out, a)
			seen[a] = false
		}
	}
	return out
}
