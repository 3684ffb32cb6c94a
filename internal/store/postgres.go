package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"zonecore/internal/domain"
	platformtx "zonecore/pkg/platform/tx"
)

// Postgres implements Store on PostgreSQL. Commands run inside RunInTx; store
// methods pick the transaction out of the context, so the same method works
// transactionally and standalone.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// Schema is the registry core DDL. EnsureSchema applies it idempotently at
// startup; production deployments run it through their migration tooling.
const Schema = `
CREATE TABLE IF NOT EXISTS registrars (
	id              text PRIMARY KEY,
	name            text NOT NULL,
	credential_hash text NOT NULL,
	status          text NOT NULL,
	allowed_cidrs   text[] NOT NULL DEFAULT '{}',
	abuse_contact   text NOT NULL DEFAULT '',
	created_at      timestamptz NOT NULL
);

CREATE TABLE IF NOT EXISTS domains (
	name            text PRIMARY KEY,
	id              uuid NOT NULL,
	registrar_id    text NOT NULL REFERENCES registrars(id),
	registrant      text NOT NULL DEFAULT '',
	admin_contact   text NOT NULL DEFAULT '',
	tech_contact    text NOT NULL DEFAULT '',
	billing_contact text NOT NULL DEFAULT '',
	nameservers     text[] NOT NULL DEFAULT '{}',
	ds_records      jsonb NOT NULL DEFAULT '[]',
	auth_code       text NOT NULL,
	statuses        text[] NOT NULL,
	created_at      timestamptz NOT NULL,
	expires_at      timestamptz NOT NULL,
	updated_at      timestamptz NOT NULL,
	redeem_at       timestamptz,
	purge_at        timestamptz,
	version         bigint NOT NULL
);
CREATE INDEX IF NOT EXISTS domains_redeem_due ON domains (redeem_at) WHERE redeem_at IS NOT NULL;
CREATE INDEX IF NOT EXISTS domains_purge_due ON domains (purge_at) WHERE purge_at IS NOT NULL;

CREATE TABLE IF NOT EXISTS contacts (
	id           text PRIMARY KEY,
	registrar_id text NOT NULL REFERENCES registrars(id),
	name         text NOT NULL,
	org          text NOT NULL DEFAULT '',
	email        text NOT NULL DEFAULT '',
	phone        text NOT NULL DEFAULT '',
	street       text NOT NULL DEFAULT '',
	city         text NOT NULL DEFAULT '',
	country      text NOT NULL DEFAULT '',
	statuses     text[] NOT NULL,
	created_at   timestamptz NOT NULL,
	updated_at   timestamptz NOT NULL,
	version      bigint NOT NULL
);

CREATE TABLE IF NOT EXISTS hosts (
	name         text PRIMARY KEY,
	registrar_id text NOT NULL REFERENCES registrars(id),
	addrs_v4     text[] NOT NULL DEFAULT '{}',
	addrs_v6     text[] NOT NULL DEFAULT '{}',
	statuses     text[] NOT NULL,
	created_at   timestamptz NOT NULL,
	updated_at   timestamptz NOT NULL,
	version      bigint NOT NULL
);

CREATE TABLE IF NOT EXISTS transfers (
	id              uuid PRIMARY KEY,
	domain_name     text NOT NULL,
	losing_id       text NOT NULL,
	gaining_id      text NOT NULL,
	status          text NOT NULL,
	requested_at    timestamptz NOT NULL,
	auto_approve_at timestamptz NOT NULL,
	completed_at    timestamptz,
	version         bigint NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS transfers_one_active ON transfers (domain_name) WHERE status = 'pending';

CREATE TABLE IF NOT EXISTS transactions (
	seq          bigint PRIMARY KEY,
	server_trid  text NOT NULL UNIQUE,
	client_trid  text NOT NULL DEFAULT '',
	registrar_id text NOT NULL,
	session_id   uuid,
	command      text NOT NULL,
	object       text NOT NULL DEFAULT '',
	target_id    text NOT NULL DEFAULT '',
	request      bytea,
	response     bytea,
	result_code  int NOT NULL,
	success      boolean NOT NULL,
	ts           timestamptz NOT NULL,
	latency_us   bigint NOT NULL
);
CREATE SEQUENCE IF NOT EXISTS transactions_seq;
CREATE UNIQUE INDEX IF NOT EXISTS transactions_cltrid ON transactions (registrar_id, client_trid) WHERE client_trid <> '';
`

func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (p *Postgres) Domains() DomainStore           { return &pgDomains{p} }
func (p *Postgres) Contacts() ContactStore         { return &pgContacts{p} }
func (p *Postgres) Hosts() HostStore               { return &pgHosts{p} }
func (p *Postgres) Registrars() RegistrarStore     { return &pgRegistrars{p} }
func (p *Postgres) Transfers() TransferStore       { return &pgTransfers{p} }
func (p *Postgres) Transactions() TransactionStore { return &pgTransactions{p} }

// RunInTx executes fn inside one database transaction carried via context.
func (p *Postgres) RunInTx(ctx context.Context, fn func(ctx context.Context, s Stores) error) error {
	txn, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(platformtx.WithTx(ctx, txn), p); err != nil {
		txn.Rollback()
		return err
	}
	if err := txn.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (p *Postgres) q(ctx context.Context) querier {
	if txn, ok := platformtx.From(ctx); ok {
		return txn
	}
	return p.db
}

// uniqueViolation matches the PostgreSQL 23505 error class.
func uniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

func fromNullTime(t sql.NullTime) time.Time {
	if !t.Valid {
		return time.Time{}
	}
	return t.Time
}

// --- domains ---

type pgDomains struct {
	p *Postgres
}

const domainCols = `name, id, registrar_id, registrant, admin_contact, tech_contact, billing_contact,
	nameservers, ds_records, auth_code, statuses, created_at, expires_at, updated_at, redeem_at, purge_at, version`

func (s *pgDomains) Create(ctx context.Context, d domain.Domain) error {
	ds, err := json.Marshal(d.DSRecords)
	if err != nil {
		return fmt.Errorf("encode ds records: %w", err)
	}
	_, err = s.p.q(ctx).ExecContext(ctx, `
		INSERT INTO domains (`+domainCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,1)`,
		d.Name, d.ID, string(d.RegistrarID), d.Registrant, d.AdminContact, d.TechContact, d.BillingContact,
		pq.Array(d.Nameservers), ds, d.AuthCode, pq.Array(d.Status.Strings()),
		d.CreatedAt, d.ExpiresAt, d.UpdatedAt, nullTime(d.RedeemAt), nullTime(d.PurgeAt))
	if uniqueViolation(err) {
		return fmt.Errorf("domain %s: %w", d.Name, ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("create domain: %w", err)
	}
	return nil
}

func scanDomain(row interface{ Scan(...any) error }) (domain.Domain, error) {
	var (
		d        domain.Domain
		rid      string
		ns, sts  pq.StringArray
		ds       []byte
		redeemAt sql.NullTime
		purgeAt  sql.NullTime
	)
	err := row.Scan(&d.Name, &d.ID, &rid, &d.Registrant, &d.AdminContact, &d.TechContact, &d.BillingContact,
		&ns, &ds, &d.AuthCode, &sts, &d.CreatedAt, &d.ExpiresAt, &d.UpdatedAt, &redeemAt, &purgeAt, &d.Version)
	if err != nil {
		return domain.Domain{}, err
	}
	d.RegistrarID = domain.RegistrarID(rid)
	d.Nameservers = []string(ns)
	d.Status = domain.ParseStatusSet([]string(sts))
	d.RedeemAt = fromNullTime(redeemAt)
	d.PurgeAt = fromNullTime(purgeAt)
	if len(ds) > 0 {
		if err := json.Unmarshal(ds, &d.DSRecords); err != nil {
			return domain.Domain{}, fmt.Errorf("decode ds records: %w", err)
		}
	}
	return d, nil
}

func (s *pgDomains) GetByName(ctx context.Context, name string) (domain.Domain, error) {
	row := s.p.q(ctx).QueryRowContext(ctx, `SELECT `+domainCols+` FROM domains WHERE name = $1`, name)
	d, err := scanDomain(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Domain{}, fmt.Errorf("domain %s: %w", name, ErrNotFound)
	}
	if err != nil {
		return domain.Domain{}, fmt.Errorf("get domain: %w", err)
	}
	return d, nil
}

func (s *pgDomains) Update(ctx context.Context, d domain.Domain) error {
	ds, err := json.Marshal(d.DSRecords)
	if err != nil {
		return fmt.Errorf("encode ds records: %w", err)
	}
	res, err := s.p.q(ctx).ExecContext(ctx, `
		UPDATE domains SET registrar_id=$2, registrant=$3, admin_contact=$4, tech_contact=$5,
			billing_contact=$6, nameservers=$7, ds_records=$8, auth_code=$9, statuses=$10,
			expires_at=$11, updated_at=$12, redeem_at=$13, purge_at=$14, version=version+1
		WHERE name=$1 AND version=$15`,
		d.Name, string(d.RegistrarID), d.Registrant, d.AdminContact, d.TechContact, d.BillingContact,
		pq.Array(d.Nameservers), ds, d.AuthCode, pq.Array(d.Status.Strings()),
		d.ExpiresAt, d.UpdatedAt, nullTime(d.RedeemAt), nullTime(d.PurgeAt), d.Version)
	if err != nil {
		return fmt.Errorf("update domain: %w", err)
	}
	return versioned(res, "domain "+d.Name, func() error {
		return s.exists(ctx, d.Name)
	})
}

func (s *pgDomains) exists(ctx context.Context, name string) error {
	var one int
	err := s.p.q(ctx).QueryRowContext(ctx, `SELECT 1 FROM domains WHERE name=$1`, name).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("domain %s: %w", name, ErrNotFound)
	}
	return err
}

func (s *pgDomains) Purge(ctx context.Context, name string, version int64) error {
	res, err := s.p.q(ctx).ExecContext(ctx, `DELETE FROM domains WHERE name=$1 AND version=$2`, name, version)
	if err != nil {
		return fmt.Errorf("purge domain: %w", err)
	}
	return versioned(res, "domain "+name, func() error {
		return s.exists(ctx, name)
	})
}

func (s *pgDomains) listDue(ctx context.Context, col string, status domain.Status, now time.Time, limit int) ([]domain.Domain, error) {
	rows, err := s.p.q(ctx).QueryContext(ctx, `
		SELECT `+domainCols+` FROM domains
		WHERE `+col+` IS NOT NULL AND `+col+` <= $1 AND $2 = ANY(statuses)
		ORDER BY `+col+` LIMIT $3`, now, string(status), limit)
	if err != nil {
		return nil, fmt.Errorf("list due domains: %w", err)
	}
	defer rows.Close()
	var out []domain.Domain
	for rows.Next() {
		d, err := scanDomain(rows)
		if err != nil {
			return nil, fmt.Errorf("scan domain: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *pgDomains) ListRedeemDue(ctx context.Context, now time.Time, limit int) ([]domain.Domain, error) {
	return s.listDue(ctx, "redeem_at", domain.StatusPendingDelete, now, limit)
}

func (s *pgDomains) ListPurgeDue(ctx context.Context, now time.Time, limit int) ([]domain.Domain, error) {
	return s.listDue(ctx, "purge_at", domain.StatusRedemptionPeriod, now, limit)
}

func (s *pgDomains) CountByContact(ctx context.Context, contactID string) (int, error) {
	var n int
	err := s.p.q(ctx).QueryRowContext(ctx, `
		SELECT count(*) FROM domains
		WHERE registrant=$1 OR admin_contact=$1 OR tech_contact=$1 OR billing_contact=$1`, contactID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count by contact: %w", err)
	}
	return n, nil
}

func (s *pgDomains) CountByNameserver(ctx context.Context, host, exceptDomain string) (int, error) {
	var n int
	err := s.p.q(ctx).QueryRowContext(ctx, `
		SELECT count(*) FROM domains WHERE $1 = ANY(nameservers) AND name <> $2`, host, exceptDomain).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count by nameserver: %w", err)
	}
	return n, nil
}

// versioned maps an affected-rows count of zero to either not-found or a
// version mismatch.
func versioned(res sql.Result, object string, exists func() error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	if err := exists(); err != nil {
		return err
	}
	return fmt.Errorf("%s: %w", object, ErrVersionMismatch)
}

// --- contacts ---

type pgContacts struct {
	p *Postgres
}

const contactCols = `id, registrar_id, name, org, email, phone, street, city, country, statuses, created_at, updated_at, version`

func (s *pgContacts) Create(ctx context.Context, c domain.Contact) error {
	_, err := s.p.q(ctx).ExecContext(ctx, `
		INSERT INTO contacts (`+contactCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,1)`,
		c.ID, string(c.RegistrarID), c.Name, c.Org, c.Email, c.Phone, c.Street, c.City, c.Country,
		pq.Array(c.Status.Strings()), c.CreatedAt, c.UpdatedAt)
	if uniqueViolation(err) {
		return fmt.Errorf("contact %s: %w", c.ID, ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("create contact: %w", err)
	}
	return nil
}

func (s *pgContacts) Get(ctx context.Context, id string) (domain.Contact, error) {
	var (
		c   domain.Contact
		rid string
		sts pq.StringArray
	)
	err := s.p.q(ctx).QueryRowContext(ctx, `SELECT `+contactCols+` FROM contacts WHERE id=$1`, id).
		Scan(&c.ID, &rid, &c.Name, &c.Org, &c.Email, &c.Phone, &c.Street, &c.City, &c.Country,
			&sts, &c.CreatedAt, &c.UpdatedAt, &c.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Contact{}, fmt.Errorf("contact %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return domain.Contact{}, fmt.Errorf("get contact: %w", err)
	}
	c.RegistrarID = domain.RegistrarID(rid)
	c.Status = domain.ParseStatusSet([]string(sts))
	return c, nil
}

func (s *pgContacts) Update(ctx context.Context, c domain.Contact) error {
	res, err := s.p.q(ctx).ExecContext(ctx, `
		UPDATE contacts SET name=$2, org=$3, email=$4, phone=$5, street=$6, city=$7, country=$8,
			statuses=$9, updated_at=$10, version=version+1
		WHERE id=$1 AND version=$11`,
		c.ID, c.Name, c.Org, c.Email, c.Phone, c.Street, c.City, c.Country,
		pq.Array(c.Status.Strings()), c.UpdatedAt, c.Version)
	if err != nil {
		return fmt.Errorf("update contact: %w", err)
	}
	return versioned(res, "contact "+c.ID, func() error {
		_, err := s.Get(ctx, c.ID)
		return err
	})
}

func (s *pgContacts) Delete(ctx context.Context, id string, version int64) error {
	res, err := s.p.q(ctx).ExecContext(ctx, `DELETE FROM contacts WHERE id=$1 AND version=$2`, id, version)
	if err != nil {
		return fmt.Errorf("delete contact: %w", err)
	}
	return versioned(res, "contact "+id, func() error {
		_, err := s.Get(ctx, id)
		return err
	})
}

// --- hosts ---

type pgHosts struct {
	p *Postgres
}

const hostCols = `name, registrar_id, addrs_v4, addrs_v6, statuses, created_at, updated_at, version`

func (s *pgHosts) Create(ctx context.Context, h domain.Host) error {
	_, err := s.p.q(ctx).ExecContext(ctx, `
		INSERT INTO hosts (`+hostCols+`) VALUES ($1,$2,$3,$4,$5,$6,$7,1)`,
		h.Name, string(h.RegistrarID), pq.Array(h.AddrsV4), pq.Array(h.AddrsV6),
		pq.Array(h.Status.Strings()), h.CreatedAt, h.UpdatedAt)
	if uniqueViolation(err) {
		return fmt.Errorf("host %s: %w", h.Name, ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("create host: %w", err)
	}
	return nil
}

func scanHost(row interface{ Scan(...any) error }) (domain.Host, error) {
	var (
		h      domain.Host
		rid    string
		v4, v6 pq.StringArray
		sts    pq.StringArray
	)
	err := row.Scan(&h.Name, &rid, &v4, &v6, &sts, &h.CreatedAt, &h.UpdatedAt, &h.Version)
	if err != nil {
		return domain.Host{}, err
	}
	h.RegistrarID = domain.RegistrarID(rid)
	h.AddrsV4 = []string(v4)
	h.AddrsV6 = []string(v6)
	h.Status = domain.ParseStatusSet([]string(sts))
	return h, nil
}

func (s *pgHosts) Get(ctx context.Context, name string) (domain.Host, error) {
	row := s.p.q(ctx).QueryRowContext(ctx, `SELECT `+hostCols+` FROM hosts WHERE name=$1`, name)
	h, err := scanHost(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Host{}, fmt.Errorf("host %s: %w", name, ErrNotFound)
	}
	if err != nil {
		return domain.Host{}, fmt.Errorf("get host: %w", err)
	}
	return h, nil
}

func (s *pgHosts) Update(ctx context.Context, h domain.Host) error {
	res, err := s.p.q(ctx).ExecContext(ctx, `
		UPDATE hosts SET addrs_v4=$2, addrs_v6=$3, statuses=$4, updated_at=$5, version=version+1
		WHERE name=$1 AND version=$6`,
		h.Name, pq.Array(h.AddrsV4), pq.Array(h.AddrsV6), pq.Array(h.Status.Strings()), h.UpdatedAt, h.Version)
	if err != nil {
		return fmt.Errorf("update host: %w", err)
	}
	return versioned(res, "host "+h.Name, func() error {
		_, err := s.Get(ctx, h.Name)
		return err
	})
}

func (s *pgHosts) Delete(ctx context.Context, name string, version int64) error {
	res, err := s.p.q(ctx).ExecContext(ctx, `DELETE FROM hosts WHERE name=$1 AND version=$2`, name, version)
	if err != nil {
		return fmt.Errorf("delete host: %w", err)
	}
	return versioned(res, "host "+name, func() error {
		_, err := s.Get(ctx, name)
		return err
	})
}

func (s *pgHosts) ListSubordinate(ctx context.Context, domainName string) ([]domain.Host, error) {
	rows, err := s.p.q(ctx).QueryContext(ctx, `
		SELECT `+hostCols+` FROM hosts WHERE name = $1 OR name LIKE '%.' || $1`, domainName)
	if err != nil {
		return nil, fmt.Errorf("list subordinate hosts: %w", err)
	}
	defer rows.Close()
	var out []domain.Host
	for rows.Next() {
		h, err := scanHost(rows)
		if err != nil {
			return nil, fmt.Errorf("scan host: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// --- registrars ---

type pgRegistrars struct {
	p *Postgres
}

func (s *pgRegistrars) Create(ctx context.Context, r domain.Registrar) error {
	_, err := s.p.q(ctx).ExecContext(ctx, `
		INSERT INTO registrars (id, name, credential_hash, status, allowed_cidrs, abuse_contact, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		string(r.ID), r.Name, r.CredentialHash, string(r.Status), pq.Array(r.AllowedCIDRs), r.AbuseContact, r.CreatedAt)
	if uniqueViolation(err) {
		return fmt.Errorf("registrar %s: %w", r.ID, ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("create registrar: %w", err)
	}
	return nil
}

func (s *pgRegistrars) Get(ctx context.Context, id domain.RegistrarID) (domain.Registrar, error) {
	var (
		r      domain.Registrar
		rid    string
		status string
		cidrs  pq.StringArray
	)
	err := s.p.q(ctx).QueryRowContext(ctx, `
		SELECT id, name, credential_hash, status, allowed_cidrs, abuse_contact, created_at
		FROM registrars WHERE id=$1`, string(id)).
		Scan(&rid, &r.Name, &r.CredentialHash, &status, &cidrs, &r.AbuseContact, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Registrar{}, fmt.Errorf("registrar %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return domain.Registrar{}, fmt.Errorf("get registrar: %w", err)
	}
	r.ID = domain.RegistrarID(rid)
	r.Status = domain.RegistrarStatus(status)
	r.AllowedCIDRs = []string(cidrs)
	return r, nil
}

func (s *pgRegistrars) Update(ctx context.Context, r domain.Registrar) error {
	res, err := s.p.q(ctx).ExecContext(ctx, `
		UPDATE registrars SET name=$2, credential_hash=$3, status=$4, allowed_cidrs=$5, abuse_contact=$6
		WHERE id=$1`,
		string(r.ID), r.Name, r.CredentialHash, string(r.Status), pq.Array(r.AllowedCIDRs), r.AbuseContact)
	if err != nil {
		return fmt.Errorf("update registrar: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("registrar %s: %w", r.ID, ErrNotFound)
	}
	return nil
}

// --- transfers ---

type pgTransfers struct {
	p *Postgres
}

const transferCols = `id, domain_name, losing_id, gaining_id, status, requested_at, auto_approve_at, completed_at, version`

func (s *pgTransfers) Create(ctx context.Context, t domain.Transfer) error {
	_, err := s.p.q(ctx).ExecContext(ctx, `
		INSERT INTO transfers (`+transferCols+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,1)`,
		t.ID, t.DomainName, string(t.LosingID), string(t.GainingID), string(t.Status),
		t.RequestedAt, t.AutoApproveAt, nullTime(t.CompletedAt))
	if uniqueViolation(err) {
		return fmt.Errorf("transfer for %s: %w", t.DomainName, ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("create transfer: %w", err)
	}
	return nil
}

func scanTransfer(row interface{ Scan(...any) error }) (domain.Transfer, error) {
	var (
		t           domain.Transfer
		losing      string
		gaining     string
		status      string
		completedAt sql.NullTime
	)
	err := row.Scan(&t.ID, &t.DomainName, &losing, &gaining, &status, &t.RequestedAt, &t.AutoApproveAt, &completedAt, &t.Version)
	if err != nil {
		return domain.Transfer{}, err
	}
	t.LosingID = domain.RegistrarID(losing)
	t.GainingID = domain.RegistrarID(gaining)
	t.Status = domain.TransferStatus(status)
	t.CompletedAt = fromNullTime(completedAt)
	return t, nil
}

func (s *pgTransfers) Get(ctx context.Context, id uuid.UUID) (domain.Transfer, error) {
	row := s.p.q(ctx).QueryRowContext(ctx, `SELECT `+transferCols+` FROM transfers WHERE id=$1`, id)
	t, err := scanTransfer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Transfer{}, fmt.Errorf("transfer %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return domain.Transfer{}, fmt.Errorf("get transfer: %w", err)
	}
	return t, nil
}

func (s *pgTransfers) ActiveByDomain(ctx context.Context, domainName string) (domain.Transfer, error) {
	row := s.p.q(ctx).QueryRowContext(ctx, `
		SELECT `+transferCols+` FROM transfers WHERE domain_name=$1 AND status='pending'`, domainName)
	t, err := scanTransfer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Transfer{}, fmt.Errorf("active transfer for %s: %w", domainName, ErrNotFound)
	}
	if err != nil {
		return domain.Transfer{}, fmt.Errorf("get active transfer: %w", err)
	}
	return t, nil
}

func (s *pgTransfers) LatestByDomain(ctx context.Context, domainName string) (domain.Transfer, error) {
	row := s.p.q(ctx).QueryRowContext(ctx, `
		SELECT `+transferCols+` FROM transfers WHERE domain_name=$1
		ORDER BY requested_at DESC LIMIT 1`, domainName)
	t, err := scanTransfer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Transfer{}, fmt.Errorf("transfer for %s: %w", domainName, ErrNotFound)
	}
	if err != nil {
		return domain.Transfer{}, fmt.Errorf("get latest transfer: %w", err)
	}
	return t, nil
}

func (s *pgTransfers) Update(ctx context.Context, t domain.Transfer) error {
	res, err := s.p.q(ctx).ExecContext(ctx, `
		UPDATE transfers SET status=$2, completed_at=$3, version=version+1
		WHERE id=$1 AND version=$4`,
		t.ID, string(t.Status), nullTime(t.CompletedAt), t.Version)
	if err != nil {
		return fmt.Errorf("update transfer: %w", err)
	}
	return versioned(res, "transfer "+t.ID.String(), func() error {
		_, err := s.Get(ctx, t.ID)
		return err
	})
}

func (s *pgTransfers) ListAutoApproveDue(ctx context.Context, now time.Time, limit int) ([]domain.Transfer, error) {
	rows, err := s.p.q(ctx).QueryContext(ctx, `
		SELECT `+transferCols+` FROM transfers
		WHERE status='pending' AND auto_approve_at <= $1
		ORDER BY auto_approve_at LIMIT $2`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list due transfers: %w", err)
	}
	defer rows.Close()
	var out []domain.Transfer
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transfer: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// --- transactions ---

type pgTransactions struct {
	p *Postgres
}

func (s *pgTransactions) NextTRID(ctx context.Context) (int64, string, error) {
	var seq int64
	if err := s.p.q(ctx).QueryRowContext(ctx, `SELECT nextval('transactions_seq')`).Scan(&seq); err != nil {
		return 0, "", fmt.Errorf("allocate trid: %w", err)
	}
	return seq, ServerTRID(seq), nil
}

func (s *pgTransactions) Append(ctx context.Context, rec domain.Transaction) (domain.Transaction, error) {
	if rec.Seq == 0 {
		seq, trid, err := s.NextTRID(ctx)
		if err != nil {
			return domain.Transaction{}, err
		}
		rec.Seq, rec.ServerTRID = seq, trid
	}
	var sessionID any
	if rec.SessionID != uuid.Nil {
		sessionID = rec.SessionID
	}
	_, err := s.p.q(ctx).ExecContext(ctx, `
		INSERT INTO transactions (seq, server_trid, client_trid, registrar_id, session_id, command,
			object, target_id, request, response, result_code, success, ts, latency_us)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		rec.Seq, rec.ServerTRID, rec.ClientTRID, string(rec.RegistrarID), sessionID, rec.Command,
		rec.Object, rec.TargetID, rec.Request, rec.Response, rec.ResultCode, rec.Success,
		rec.Timestamp, rec.Latency.Microseconds())
	if uniqueViolation(err) {
		return domain.Transaction{}, fmt.Errorf("transaction %s/%s: %w", rec.RegistrarID, rec.ClientTRID, ErrConflict)
	}
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("append transaction: %w", err)
	}
	return rec, nil
}

func (s *pgTransactions) FindByClientTRID(ctx context.Context, registrar domain.RegistrarID, clTRID string) (domain.Transaction, error) {
	var (
		rec       domain.Transaction
		rid       string
		sessionID uuid.NullUUID
		latencyUS int64
	)
	err := s.p.q(ctx).QueryRowContext(ctx, `
		SELECT seq, server_trid, client_trid, registrar_id, session_id, command, object, target_id,
			request, response, result_code, success, ts, latency_us
		FROM transactions WHERE registrar_id=$1 AND client_trid=$2`, string(registrar), clTRID).
		Scan(&rec.Seq, &rec.ServerTRID, &rec.ClientTRID, &rid, &sessionID, &rec.Command, &rec.Object,
			&rec.TargetID, &rec.Request, &rec.Response, &rec.ResultCode, &rec.Success, &rec.Timestamp, &latencyUS)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Transaction{}, fmt.Errorf("transaction %s/%s: %w", registrar, clTRID, ErrNotFound)
	}
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("find transaction: %w", err)
	}
	rec.RegistrarID = domain.RegistrarID(rid)
	if sessionID.Valid {
		rec.SessionID = sessionID.UUID
	}
	rec.Latency = time.Duration(latencyUS) * time.Microsecond
	return rec, nil
}
