// Package readview serves the published projection of registry data for
// WHOIS and RDAP. It exposes only public fields; auth codes and raw contact
// records never cross this boundary.
package readview

import (
	"context"
	"time"

	"zonecore/internal/domain"
	"zonecore/internal/store"
	dErrors "zonecore/pkg/domain-errors"
)

// Record is the published view of one registered name.
type Record struct {
	Name          string    `json:"name"`
	RegistrarID   string    `json:"registrarId"`
	RegistrarName string    `json:"registrarName"`
	AbuseContact  string    `json:"abuseContact,omitempty"`
	Statuses      []string  `json:"statuses"`
	Nameservers   []string  `json:"nameservers,omitempty"`
	Secured       bool      `json:"secureDelegation"`
	Created       time.Time `json:"created"`
	Expires       time.Time `json:"expires"`
	Updated       time.Time `json:"updated"`
}

type Service struct {
	st store.Store
}

func New(st store.Store) *Service {
	return &Service{st: st}
}

// Lookup resolves one name to its published record.
func (s *Service) Lookup(ctx context.Context, name string) (Record, error) {
	normalized := domain.NormalizeName(name)
	if err := domain.ValidateDomainName(normalized); err != nil {
		return Record{}, err
	}
	d, err := s.st.Domains().GetByName(ctx, normalized)
	if err != nil {
		return Record{}, store.Translate(err, "domain")
	}
	rec := Record{
		Name:        d.Name,
		RegistrarID: string(d.RegistrarID),
		Statuses:    d.Status.Strings(),
		Nameservers: d.Nameservers,
		Secured:     len(d.DSRecords) > 0,
		Created:     d.CreatedAt,
		Expires:     d.ExpiresAt,
		Updated:     d.UpdatedAt,
	}
	reg, err := s.st.Registrars().Get(ctx, d.RegistrarID)
	if err == nil {
		rec.RegistrarName = reg.Name
		rec.AbuseContact = reg.AbuseContact
	}
	return rec, nil
}

// Available reports whether a name could be registered right now.
func (s *Service) Available(ctx context.Context, name string) (bool, error) {
	normalized := domain.NormalizeName(name)
	if err := domain.ValidateDomainName(normalized); err != nil {
		return false, err
	}
	_, err := s.st.Domains().GetByName(ctx, normalized)
	switch {
	case err == nil:
		return false, nil
	case dErrors.Is(store.Translate(err, "domain"), dErrors.CodeNotFound):
		return true, nil
	default:
		return false, store.Translate(err, "domain")
	}
}
