package domain

import (
	"time"

	"github.com/google/uuid"
)

// RegistrarID is the registrar's EPP client identifier (clID).
type RegistrarID string

func (r RegistrarID) String() string { return string(r) }

// RegistrarStatus gates whether a registrar may open sessions or be a
// transfer party.
type RegistrarStatus string

const (
	RegistrarActive     RegistrarStatus = "active"
	RegistrarSuspended  RegistrarStatus = "suspended"
	RegistrarTerminated RegistrarStatus = "terminated"
)

// Registrar is a provisioning client of the registry.
type Registrar struct {
	ID             RegistrarID
	Name           string
	CredentialHash string
	Status         RegistrarStatus
	// AllowedCIDRs restricts login source addresses when non-empty.
	AllowedCIDRs []string
	AbuseContact string
	CreatedAt    time.Time
}

// DSRecord is a DNSSEC delegation-signer digest published for a domain.
type DSRecord struct {
	KeyTag     int
	Algorithm  int
	DigestType int
	Digest     string
}

// Domain is a registered name sponsored by exactly one registrar.
// Version is the optimistic-concurrency counter: every conditional write
// must present the version it read, and the store bumps it on commit.
type Domain struct {
	ID          uuid.UUID
	Name        string
	RegistrarID RegistrarID

	Registrant     string
	AdminContact   string
	TechContact    string
	BillingContact string

	Nameservers []string
	DSRecords   []DSRecord

	AuthCode string
	Status   StatusSet

	CreatedAt time.Time
	ExpiresAt time.Time
	UpdatedAt time.Time

	// RedeemAt is set while pendingDelete: when it passes, the sweep moves
	// the domain into redemptionPeriod. PurgeAt is set while in
	// redemptionPeriod: when it passes, the name is released.
	RedeemAt time.Time
	PurgeAt  time.Time

	Version int64
}

// Clone returns a deep copy so store snapshots never alias caller slices.
func (d Domain) Clone() Domain {
	out := d
	out.Status = d.Status.Clone()
	out.Nameservers = append([]string(nil), d.Nameservers...)
	out.DSRecords = append([]DSRecord(nil), d.DSRecords...)
	return out
}

// Contact is a registrant/admin/tech/billing party owned by a registrar.
type Contact struct {
	ID          string
	RegistrarID RegistrarID
	Name        string
	Org         string
	Email       string
	Phone       string
	Street      string
	City        string
	Country     string
	Status      StatusSet
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Version     int64
}

func (c Contact) Clone() Contact {
	out := c
	out.Status = c.Status.Clone()
	return out
}

// Host is a nameserver object, optionally carrying glue addresses when
// subordinate to a registry-managed domain.
type Host struct {
	Name        string
	RegistrarID RegistrarID
	AddrsV4     []string
	AddrsV6     []string
	Status      StatusSet
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Version     int64
}

func (h Host) Clone() Host {
	out := h
	out.Status = h.Status.Clone()
	out.AddrsV4 = append([]string(nil), h.AddrsV4...)
	out.AddrsV6 = append([]string(nil), h.AddrsV6...)
	return out
}

// TransferStatus tracks the three-way handshake. pending is the only
// non-terminal state; transitions are one-way.
type TransferStatus string

const (
	TransferPending         TransferStatus = "pending"
	TransferClientApproved  TransferStatus = "clientApproved"
	TransferClientRejected  TransferStatus = "clientRejected"
	TransferServerApproved  TransferStatus = "serverApproved"
	TransferServerCancelled TransferStatus = "serverCancelled"
)

// Terminal reports whether the status admits no further transitions.
func (s TransferStatus) Terminal() bool { return s != TransferPending }

// Transfer records one ownership-transfer handshake for a domain.
type Transfer struct {
	ID          uuid.UUID
	DomainName  string
	LosingID    RegistrarID
	GainingID   RegistrarID
	Status      TransferStatus
	RequestedAt time.Time
	// AutoApproveAt is the registry's deadline for resolving the transfer
	// if the losing registrar stays silent.
	AutoApproveAt time.Time
	CompletedAt   time.Time
	Version       int64
}

// Session is the in-memory state of one registrar connection. Sessions are
// never persisted; only login/logout events reach the audit trail.
type Session struct {
	ID            uuid.UUID
	RegistrarID   RegistrarID
	SourceIP      string
	Authenticated bool
	LoginAt       time.Time
	LastActivity  time.Time
}

// Transaction is one append-only audit record of a command/response pair.
// (RegistrarID, ClientTRID) is unique when ClientTRID is non-empty, which is
// what makes idempotent replay detection possible. ServerTRID is globally
// unique and strictly increasing in assignment order.
type Transaction struct {
	Seq         int64
	ServerTRID  string
	ClientTRID  string
	RegistrarID RegistrarID
	SessionID   uuid.UUID
	Command     string
	Object      string
	TargetID    string
	Request     []byte
	Response    []byte
	ResultCode  int
	Success     bool
	Timestamp   time.Time
	Latency     time.Duration
}
