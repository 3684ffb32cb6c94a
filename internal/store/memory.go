package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"zonecore/internal/domain"
)

// Memory implements Store with mutex-guarded maps. Transactions snapshot the
// whole state and swap it back in on success, so a failed command leaves no
// partial writes, matching the PostgreSQL implementation's rollback
// semantics. Suitable for tests and single-process deployments.
type Memory struct {
	mu    sync.Mutex
	state *memState
}

type memState struct {
	domains      map[string]domain.Domain
	contacts     map[string]domain.Contact
	hosts        map[string]domain.Host
	registrars   map[domain.RegistrarID]domain.Registrar
	transfers    map[uuid.UUID]domain.Transfer
	transactions []domain.Transaction
	byClientTRID map[string]int
	seq          int64
}

func newMemState() *memState {
	return &memState{
		domains:      make(map[string]domain.Domain),
		contacts:     make(map[string]domain.Contact),
		hosts:        make(map[string]domain.Host),
		registrars:   make(map[domain.RegistrarID]domain.Registrar),
		transfers:    make(map[uuid.UUID]domain.Transfer),
		byClientTRID: make(map[string]int),
	}
}

func (s *memState) clone() *memState {
	out := newMemState()
	for k, v := range s.domains {
		out.domains[k] = v.Clone()
	}
	for k, v := range s.contacts {
		out.contacts[k] = v.Clone()
	}
	for k, v := range s.hosts {
		out.hosts[k] = v.Clone()
	}
	for k, v := range s.registrars {
		out.registrars[k] = v
	}
	for k, v := range s.transfers {
		out.transfers[k] = v
	}
	out.transactions = append([]domain.Transaction(nil), s.transactions...)
	for k, v := range s.byClientTRID {
		out.byClientTRID[k] = v
	}
	out.seq = s.seq
	return out
}

func NewMemory() *Memory {
	return &Memory{state: newMemState()}
}

func (m *Memory) Domains() DomainStore           { return &memDomains{m: m} }
func (m *Memory) Contacts() ContactStore         { return &memContacts{m: m} }
func (m *Memory) Hosts() HostStore               { return &memHosts{m: m} }
func (m *Memory) Registrars() RegistrarStore     { return &memRegistrars{m: m} }
func (m *Memory) Transfers() TransferStore       { return &memTransfers{m: m} }
func (m *Memory) Transactions() TransactionStore { return &memTransactions{m: m} }

// RunInTx holds the store lock for the duration of fn, runs fn against a
// snapshot, and swaps the snapshot in only when fn succeeds.
func (m *Memory) RunInTx(ctx context.Context, fn func(ctx context.Context, s Stores) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.state.clone()
	view := &memView{state: snapshot}
	if err := fn(ctx, view); err != nil {
		return err
	}
	m.state = snapshot
	return nil
}

// memView exposes tx-scoped stores over a snapshot. The outer lock is held,
// so handles access the snapshot directly.
type memView struct {
	state *memState
}

func (v *memView) Domains() DomainStore           { return &memDomains{tx: v.state} }
func (v *memView) Contacts() ContactStore         { return &memContacts{tx: v.state} }
func (v *memView) Hosts() HostStore               { return &memHosts{tx: v.state} }
func (v *memView) Registrars() RegistrarStore     { return &memRegistrars{tx: v.state} }
func (v *memView) Transfers() TransferStore       { return &memTransfers{tx: v.state} }
func (v *memView) Transactions() TransactionStore { return &memTransactions{tx: v.state} }

func grab(m *Memory, tx *memState) (*memState, func()) {
	if tx != nil {
		return tx, func() {}
	}
	m.mu.Lock()
	return m.state, m.mu.Unlock
}

// --- domains ---

type memDomains struct {
	m  *Memory
	tx *memState
}

func (s *memDomains) Create(ctx context.Context, d domain.Domain) error {
	st, unlock := grab(s.m, s.tx)
	defer unlock()
	if _, ok := st.domains[d.Name]; ok {
		return fmt.Errorf("domain %s: %w", d.Name, ErrConflict)
	}
	d.Version = 1
	st.domains[d.Name] = d.Clone()
	return nil
}

func (s *memDomains) GetByName(ctx context.Context, name string) (domain.Domain, error) {
	st, unlock := grab(s.m, s.tx)
	defer unlock()
	d, ok := st.domains[name]
	if !ok {
		return domain.Domain{}, fmt.Errorf("domain %s: %w", name, ErrNotFound)
	}
	return d.Clone(), nil
}

func (s *memDomains) Update(ctx context.Context, d domain.Domain) error {
	st, unlock := grab(s.m, s.tx)
	defer unlock()
	cur, ok := st.domains[d.Name]
	if !ok {
		return fmt.Errorf("domain %s: %w", d.Name, ErrNotFound)
	}
	if cur.Version != d.Version {
		return fmt.Errorf("domain %s: %w", d.Name, ErrVersionMismatch)
	}
	d.Version++
	st.domains[d.Name] = d.Clone()
	return nil
}

func (s *memDomains) Purge(ctx context.Context, name string, version int64) error {
	st, unlock := grab(s.m, s.tx)
	defer unlock()
	cur, ok := st.domains[name]
	if !ok {
		return fmt.Errorf("domain %s: %w", name, ErrNotFound)
	}
	if cur.Version != version {
		return fmt.Errorf("domain %s: %w", name, ErrVersionMismatch)
	}
	delete(st.domains, name)
	return nil
}

func (s *memDomains) ListRedeemDue(ctx context.Context, now time.Time, limit int) ([]domain.Domain, error) {
	st, unlock := grab(s.m, s.tx)
	defer unlock()
	var out []domain.Domain
	for _, d := range st.domains {
		if d.Status.Has(domain.StatusPendingDelete) && !d.RedeemAt.IsZero() && !d.RedeemAt.After(now) {
			out = append(out, d.Clone())
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (s *memDomains) ListPurgeDue(ctx context.Context, now time.Time, limit int) ([]domain.Domain, error) {
	st, unlock := grab(s.m, s.tx)
	defer unlock()
	var out []domain.Domain
	for _, d := range st.domains {
		if d.Status.Has(domain.StatusRedemptionPeriod) && !d.PurgeAt.IsZero() && !d.PurgeAt.After(now) {
			out = append(out, d.Clone())
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (s *memDomains) CountByContact(ctx context.Context, contactID string) (int, error) {
	st, unlock := grab(s.m, s.tx)
	defer unlock()
	var n int
	for _, d := range st.domains {
		if d.Registrant == contactID || d.AdminContact == contactID ||
			d.TechContact == contactID || d.BillingContact == contactID {
			n++
		}
	}
	return n, nil
}

func (s *memDomains) CountByNameserver(ctx context.Context, host, exceptDomain string) (int, error) {
	st, unlock := grab(s.m, s.tx)
	defer unlock()
	var n int
	for _, d := range st.domains {
		if d.Name == exceptDomain {
			continue
		}
		for _, ns := range d.Nameservers {
			if ns == host {
				n++
				break
			}
		}
	}
	return n, nil
}

// --- contacts ---

type memContacts struct {
	m  *Memory
	tx *memState
}

func (s *memContacts) Create(ctx context.Context, c domain.Contact) error {
	st, unlock := grab(s.m, s.tx)
	defer unlock()
	if _, ok := st.contacts[c.ID]; ok {
		return fmt.Errorf("contact %s: %w", c.ID, ErrConflict)
	}
	c.Version = 1
	st.contacts[c.ID] = c.Clone()
	return nil
}

func (s *memContacts) Get(ctx context.Context, id string) (domain.Contact, error) {
	st, unlock := grab(s.m, s.tx)
	defer unlock()
	c, ok := st.contacts[id]
	if !ok {
		return domain.Contact{}, fmt.Errorf("contact %s: %w", id, ErrNotFound)
	}
	return c.Clone(), nil
}

func (s *memContacts) Update(ctx context.Context, c domain.Contact) error {
	st, unlock := grab(s.m, s.tx)
	defer unlock()
	cur, ok := st.contacts[c.ID]
	if !ok {
		return fmt.Errorf("contact %s: %w", c.ID, ErrNotFound)
	}
	if cur.Version != c.Version {
		return fmt.Errorf("contact %s: %w", c.ID, ErrVersionMismatch)
	}
	c.Version++
	st.contacts[c.ID] = c.Clone()
	return nil
}

func (s *memContacts) Delete(ctx context.Context, id string, version int64) error {
	st, unlock := grab(s.m, s.tx)
	defer unlock()
	cur, ok := st.contacts[id]
	if !ok {
		return fmt.Errorf("contact %s: %w", id, ErrNotFound)
	}
	if cur.Version != version {
		return fmt.Errorf("contact %s: %w", id, ErrVersionMismatch)
	}
	delete(st.contacts, id)
	return nil
}

// --- hosts ---

type memHosts struct {
	m  *Memory
	tx *memState
}

func (s *memHosts) Create(ctx context.Context, h domain.Host) error {
	st, unlock := grab(s.m, s.tx)
	defer unlock()
	if _, ok := st.hosts[h.Name]; ok {
		return fmt.Errorf("host %s: %w", h.Name, ErrConflict)
	}
	h.Version = 1
	st.hosts[h.Name] = h.Clone()
	return nil
}

func (s *memHosts) Get(ctx context.Context, name string) (domain.Host, error) {
	st, unlock := grab(s.m, s.tx)
	defer unlock()
	h, ok := st.hosts[name]
	if !ok {
		return domain.Host{}, fmt.Errorf("host %s: %w", name, ErrNotFound)
	}
	return h.Clone(), nil
}

func (s *memHosts) Update(ctx context.Context, h domain.Host) error {
	st, unlock := grab(s.m, s.tx)
	defer unlock()
	cur, ok := st.hosts[h.Name]
	if !ok {
		return fmt.Errorf("host %s: %w", h.Name, ErrNotFound)
	}
	if cur.Version != h.Version {
		return fmt.Errorf("host %s: %w", h.Name, ErrVersionMismatch)
	}
	h.Version++
	st.hosts[h.Name] = h.Clone()
	return nil
}

func (s *memHosts) Delete(ctx context.Context, name string, version int64) error {
	st, unlock := grab(s.m, s.tx)
	defer unlock()
	cur, ok := st.hosts[name]
	if !ok {
		return fmt.Errorf("host %s: %w", name, ErrNotFound)
	}
	if cur.Version != version {
		return fmt.Errorf("host %s: %w", name, ErrVersionMismatch)
	}
	delete(st.hosts, name)
	return nil
}

func (s *memHosts) ListSubordinate(ctx context.Context, domainName string) ([]domain.Host, error) {
	st, unlock := grab(s.m, s.tx)
	defer unlock()
	var out []domain.Host
	for _, h := range st.hosts {
		if domain.Subordinate(h.Name, domainName) {
			out = append(out, h.Clone())
		}
	}
	return out, nil
}

// --- registrars ---

type memRegistrars struct {
	m  *Memory
	tx *memState
}

func (s *memRegistrars) Create(ctx context.Context, r domain.Registrar) error {
	st, unlock := grab(s.m, s.tx)
	defer unlock()
	if _, ok := st.registrars[r.ID]; ok {
		return fmt.Errorf("registrar %s: %w", r.ID, ErrConflict)
	}
	st.registrars[r.ID] = r
	return nil
}

func (s *memRegistrars) Get(ctx context.Context, id domain.RegistrarID) (domain.Registrar, error) {
	st, unlock := grab(s.m, s.tx)
	defer unlock()
	r, ok := st.registrars[id]
	if !ok {
		return domain.Registrar{}, fmt.Errorf("registrar %s: %w", id, ErrNotFound)
	}
	return r, nil
}

func (s *memRegistrars) Update(ctx context.Context, r domain.Registrar) error {
	st, unlock := grab(s.m, s.tx)
	defer unlock()
	if _, ok := st.registrars[r.ID]; !ok {
		return fmt.Errorf("registrar %s: %w", r.ID, ErrNotFound)
	}
	st.registrars[r.ID] = r
	return nil
}

// --- transfers ---

type memTransfers struct {
	m  *Memory
	tx *memState
}

func (s *memTransfers) Create(ctx context.Context, t domain.Transfer) error {
	st, unlock := grab(s.m, s.tx)
	defer unlock()
	for _, cur := range st.transfers {
		if cur.DomainName == t.DomainName && !cur.Status.Terminal() {
			return fmt.Errorf("transfer for %s: %w", t.DomainName, ErrConflict)
		}
	}
	t.Version = 1
	st.transfers[t.ID] = t
	return nil
}

func (s *memTransfers) Get(ctx context.Context, id uuid.UUID) (domain.Transfer, error) {
	st, unlock := grab(s.m, s.tx)
	defer unlock()
	t, ok := st.transfers[id]
	if !ok {
		return domain.Transfer{}, fmt.Errorf("transfer %s: %w", id, ErrNotFound)
	}
	return t, nil
}

func (s *memTransfers) ActiveByDomain(ctx context.Context, domainName string) (domain.Transfer, error) {
	st, unlock := grab(s.m, s.tx)
	defer unlock()
	for _, t := range st.transfers {
		if t.DomainName == domainName && !t.Status.Terminal() {
			return t, nil
		}
	}
	return domain.Transfer{}, fmt.Errorf("active transfer for %s: %w", domainName, ErrNotFound)
}

func (s *memTransfers) LatestByDomain(ctx context.Context, domainName string) (domain.Transfer, error) {
	st, unlock := grab(s.m, s.tx)
	defer unlock()
	var latest domain.Transfer
	var found bool
	for _, t := range st.transfers {
		if t.DomainName != domainName {
			continue
		}
		if !found || t.RequestedAt.After(latest.RequestedAt) {
			latest, found = t, true
		}
	}
	if !found {
		return domain.Transfer{}, fmt.Errorf("transfer for %s: %w", domainName, ErrNotFound)
	}
	return latest, nil
}

func (s *memTransfers) Update(ctx context.Context, t domain.Transfer) error {
	st, unlock := grab(s.m, s.tx)
	defer unlock()
	cur, ok := st.transfers[t.ID]
	if !ok {
		return fmt.Errorf("transfer %s: %w", t.ID, ErrNotFound)
	}
	if cur.Version != t.Version {
		return fmt.Errorf("transfer %s: %w", t.ID, ErrVersionMismatch)
	}
	t.Version++
	st.transfers[t.ID] = t
	return nil
}

func (s *memTransfers) ListAutoApproveDue(ctx context.Context, now time.Time, limit int) ([]domain.Transfer, error) {
	st, unlock := grab(s.m, s.tx)
	defer unlock()
	var out []domain.Transfer
	for _, t := range st.transfers {
		if t.Status == domain.TransferPending && !t.AutoApproveAt.After(now) {
			out = append(out, t)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

// --- transactions ---

type memTransactions struct {
	m  *Memory
	tx *memState
}

func clTRIDKey(rid domain.RegistrarID, clTRID string) string {
	return string(rid) + "\x00" + clTRID
}

func (s *memTransactions) NextTRID(ctx context.Context) (int64, string, error) {
	st, unlock := grab(s.m, s.tx)
	defer unlock()
	st.seq++
	return st.seq, ServerTRID(st.seq), nil
}

func (s *memTransactions) Append(ctx context.Context, rec domain.Transaction) (domain.Transaction, error) {
	st, unlock := grab(s.m, s.tx)
	defer unlock()
	if rec.ClientTRID != "" {
		if _, ok := st.byClientTRID[clTRIDKey(rec.RegistrarID, rec.ClientTRID)]; ok {
			return domain.Transaction{}, fmt.Errorf("transaction %s/%s: %w", rec.RegistrarID, rec.ClientTRID, ErrConflict)
		}
	}
	if rec.Seq == 0 {
		st.seq++
		rec.Seq = st.seq
		rec.ServerTRID = ServerTRID(st.seq)
	}
	st.transactions = append(st.transactions, rec)
	if rec.ClientTRID != "" {
		st.byClientTRID[clTRIDKey(rec.RegistrarID, rec.ClientTRID)] = len(st.transactions) - 1
	}
	return rec, nil
}

func (s *memTransactions) FindByClientTRID(ctx context.Context, registrar domain.RegistrarID, clTRID string) (domain.Transaction, error) {
	st, unlock := grab(s.m, s.tx)
	defer unlock()
	idx, ok := st.byClientTRID[clTRIDKey(registrar, clTRID)]
	if !ok {
		return domain.Transaction{}, fmt.Errorf("transaction %s/%s: %w", registrar, clTRID, ErrNotFound)
	}
	return st.transactions[idx], nil
}

// ServerTRID formats a sequence number as a server transaction id. Ids sort
// in assignment order.
func ServerTRID(seq int64) string {
	return fmt.Sprintf("ZC-%012d", seq)
}
