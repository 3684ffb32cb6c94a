// Package contact implements contact object provisioning. Contacts are
// structurally simpler than domains: the same conflict/association/status
// semantics with no timers.
package contact

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

// CreateRequest carries decoded contact:create parameters.
type CreateRequest struct {
	ID      string
	Name    string
	Org     string
	Email   string
	Phone   string
	Street  string
	City    string
	Country string
}

func (svc *Service) Create(ctx context.Context, s store.Stores, acting domain.RegistrarID, req CreateRequest) (domain.Contact, error) {
	if err := domain.ValidateContactID(req.ID); err != nil {
		return domain.Contact{}, err
	}
	if req.Name == "" {
		return domain.Contact{}, dErrors.New(dErrors.CodeMissingParameter, "contact name is required")
	}
	now := svc.clock()
	c := domain.Contact{
		ID:          req.ID,
		RegistrarID: acting,
		Name:        req.Name,
		Org:         req.Org,
		Email:       req.Email,
		Phone:       req.Phone,
		Street:      req.Street,
		City:        req.City,
		Country:     req.Country,
		Status:      domain.NewStatusSet(domain.StatusOK),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.Contacts().Create(ctx, c); err != nil {
		return domain.Contact{}, store.Translate(err, "contact")
	}
	svc.logger.Info("contact created", "id", c.ID, "registrar", acting)
	return c, nil
}

// UpdateRequest carries decoded contact:update parameters; empty fields are
// left unchanged.
type UpdateRequest struct {
	ID      string
	Name    string
	Org     string
	Email   string
	Phone   string
	Street  string
	City    string
	Country string
}

func (svc *Service) Update(ctx context.Context, s store.Stores, acting domain.RegistrarID, req UpdateRequest) (domain.Contact, error) {
	c, err := svc.owned(ctx, s, acting, req.ID)
	if err != nil {
		return domain.Contact{}, err
	}
	if c.Status.Has(domain.StatusClientUpdateProhibited) || c.Status.Has(domain.StatusServerUpdateProhibited) {
		return domain.Contact{}, dErrors.New(dErrors.CodeProhibited, "status prohibits update")
	}
	if req.Name != "" {
		c.Name = req.Name
	}
	if req.Org != "" {
		c.Org = req.Org
	}
	if req.Email != "" {
		c.Email = req.Email
	}
	if req.Phone != "" {
		c.Phone = req.Phone
	}
	if req.Street != "" {
		c.Street = req.Street
	}
	if req.City != "" {
		c.City = req.City
	}
	if req.Country != "" {
		c.Country = req.Country
	}
	c.UpdatedAt = svc.clock()
	if err := s.Contacts().Update(ctx, c); err != nil {
		return domain.Contact{}, store.Translate(err, "contact")
	}
	return c, nil
}

// Delete removes a contact that no domain references.
func (svc *Service) Delete(ctx context.Context, s store.Stores, acting domain.RegistrarID, id string) error {
	c, err := svc.owned(ctx, s, acting, id)
	if err != nil {
		return err
	}
	if c.Status.Has(domain.StatusClientDeleteProhibited) || c.Status.Has(domain.StatusServerDeleteProhibited) {
		return dErrors.New(dErrors.CodeProhibited, "status prohibits deletion")
	}
	n, err := s.Domains().CountByContact(ctx, id)
	if err != nil {
		return store.Translate(err, "domain")
	}
	if n > 0 {
		return dErrors.Newf(dErrors.CodeAssociation, "contact %s is referenced by %d domains", id, n)
	}
	if err := s.Contacts().Delete(ctx, id, c.Version); err != nil {
		return store.Translate(err, "contact")
	}
	svc.logger.Info("contact deleted", "id", id, "registrar", acting)
	return nil
}

func (svc *Service) Info(ctx context.Context, s store.Stores, id string) (domain.Contact, error) {
	c, err := s.Contacts().Get(ctx, id)
	if err != nil {
		return domain.Contact{}, store.Translate(err, "contact")
	}
	return c, nil
}

// CheckResult reports availability of one contact id.
type CheckResult struct {
	ID        string
	Available bool
}

func (svc *Service) Check(ctx context.Context, s store.Stores, ids []string) ([]CheckResult, error) {
	if len(ids) == 0 {
		return nil, dErrors.New(dErrors.CodeMissingParameter, "at least one contact id is required")
	}
	out := make([]CheckResult, 0, len(ids))
	for _, id := range ids {
		_, err := s.Contacts().Get(ctx, id)
		switch {
		case err == nil:
			out = append(out, CheckResult{ID: id, Available: false})
		case dErrors.Is(store.Translate(err, "contact"), dErrors.CodeNotFound):
			out = append(out, CheckResult{ID: id, Available: true})
		default:
			return nil, store.Translate(err, "contact")
		}
	}
	return out, nil
}

func (svc *Service) owned(ctx context.Context, s store.Stores, acting domain.RegistrarID, id string) (domain.Contact, error) {
	c, err := s.Contacts().Get(ctx, id)
	if err != nil {
		return domain.Contact{}, store.Translate(err, "contact")
	}
	if c.RegistrarID != acting {
		return domain.Contact{}, dErrors.New(dErrors.CodeUnauthorized, "contact is owned by another registrar")
	}
	return c, nil
}
