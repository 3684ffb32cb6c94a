package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"zonecore/internal/domain"
)

// Stores are interface-driven to keep the engines testable and to allow
// swapping in-memory and PostgreSQL persistence without rewiring business
// code. All conditional writes compare the record's Version against the
// stored one and fail with sentinel.ErrVersionMismatch when stale; that
// check is the registry's only cross-session serialization point.
type DomainStore interface {
	Create(ctx context.Context, d domain.Domain) error
	GetByName(ctx context.Context, name string) (domain.Domain, error)
	// Update commits d if d.Version matches the stored version, then bumps it.
	Update(ctx context.Context, d domain.Domain) error
	// Purge removes the row entirely, releasing the name.
	Purge(ctx context.Context, name string, version int64) error
	// ListRedeemDue returns pendingDelete domains whose RedeemAt has passed.
	ListRedeemDue(ctx context.Context, now time.Time, limit int) ([]domain.Domain, error)
	// ListPurgeDue returns redemptionPeriod domains whose PurgeAt has passed.
	ListPurgeDue(ctx context.Context, now time.Time, limit int) ([]domain.Domain, error)
	CountByContact(ctx context.Context, contactID string) (int, error)
	// CountByNameserver counts domains delegating to host, excluding the
	// named domain ("" excludes nothing).
	CountByNameserver(ctx context.Context, host, exceptDomain string) (int, error)
}

type ContactStore interface {
	Create(ctx context.Context, c domain.Contact) error
	Get(ctx context.Context, id string) (domain.Contact, error)
	Update(ctx context.Context, c domain.Contact) error
	Delete(ctx context.Context, id string, version int64) error
}

type HostStore interface {
	Create(ctx context.Context, h domain.Host) error
	Get(ctx context.Context, name string) (domain.Host, error)
	Update(ctx context.Context, h domain.Host) error
	Delete(ctx context.Context, name string, version int64) error
	// ListSubordinate returns hosts at or below the given domain name.
	ListSubordinate(ctx context.Context, domainName string) ([]domain.Host, error)
}

type RegistrarStore interface {
	Create(ctx context.Context, r domain.Registrar) error
	Get(ctx context.Context, id domain.RegistrarID) (domain.Registrar, error)
	Update(ctx context.Context, r domain.Registrar) error
}

type TransferStore interface {
	// Create fails with sentinel.ErrConflict while a non-terminal transfer
	// exists for the same domain.
	Create(ctx context.Context, t domain.Transfer) error
	Get(ctx context.Context, id uuid.UUID) (domain.Transfer, error)
	ActiveByDomain(ctx context.Context, domainName string) (domain.Transfer, error)
	LatestByDomain(ctx context.Context, domainName string) (domain.Transfer, error)
	Update(ctx context.Context, t domain.Transfer) error
	ListAutoApproveDue(ctx context.Context, now time.Time, limit int) ([]domain.Transfer, error)
}

type TransactionStore interface {
	// NextTRID allocates the next strictly-increasing sequence number and the
	// matching server transaction id. Call inside a transaction so a rollback
	// discards the allocation.
	NextTRID(ctx context.Context) (int64, string, error)
	// Append persists the record, assigning Seq and ServerTRID when unset.
	// Fails with sentinel.ErrConflict when (RegistrarID, ClientTRID) already
	// exists and ClientTRID is non-empty.
	Append(ctx context.Context, rec domain.Transaction) (domain.Transaction, error)
	FindByClientTRID(ctx context.Context, registrar domain.RegistrarID, clTRID string) (domain.Transaction, error)
}

// Stores bundles the per-object stores visible inside one transaction scope.
type Stores interface {
	Domains() DomainStore
	Contacts() ContactStore
	Hosts() HostStore
	Registrars() RegistrarStore
	Transfers() TransferStore
	Transactions() TransactionStore
}

// Store adds the transactional boundary: fn either commits entirely or
// leaves no partial writes behind.
type Store interface {
	Stores
	RunInTx(ctx context.Context, fn func(ctx context.Context, s Stores) error) error
}
