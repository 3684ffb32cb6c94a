// Package dispatch executes decoded protocol commands against the engines.
// It owns the per-command transaction boundary, the idempotent replay check,
// and the audit append; the wire layer above it only frames and codes.
package dispatch

import (
	"time"

	"zonecore/internal/contact"
	"zonecore/internal/host"
	"zonecore/internal/lifecycle"
)

// Verb is the command type, matching the protocol command element.
type Verb string

const (
	VerbLogin    Verb = "login"
	VerbLogout   Verb = "logout"
	VerbCheck    Verb = "check"
	VerbInfo     Verb = "info"
	VerbCreate   Verb = "create"
	VerbUpdate   Verb = "update"
	VerbDelete   Verb = "delete"
	VerbRenew    Verb = "renew"
	VerbRestore  Verb = "restore"
	VerbTransfer Verb = "transfer"
)

// Object names the mapped object class of a command.
const (
	ObjectDomain  = "domain"
	ObjectContact = "contact"
	ObjectHost    = "host"
)

// TransferOp selects the handshake action within a transfer command.
type TransferOp string

const (
	TransferRequest TransferOp = "request"
	TransferApprove TransferOp = "approve"
	TransferReject  TransferOp = "reject"
	TransferCancel  TransferOp = "cancel"
	TransferQuery   TransferOp = "query"
)

// Login carries the session-establishment credentials.
type Login struct {
	ClientID string
	Password string
}

// Renew carries domain:renew parameters. CurExpiry guards against double
// submission.
type Renew struct {
	Name      string
	CurExpiry time.Time
	Years     int
}

// TransferCmd carries domain:transfer parameters for any op.
type TransferCmd struct {
	Op       TransferOp
	Name     string
	AuthCode string
}

// Command is one decoded client command in wire-format-neutral form. Exactly
// one payload field is set, matching the verb and object.
type Command struct {
	ClTRID string
	Verb   Verb
	Object string

	// Target is the single object id for info/delete/restore commands;
	// Targets carries the names or ids of a check.
	Target  string
	Targets []string

	Login         *Login
	DomainCreate  *lifecycle.CreateRequest
	DomainUpdate  *lifecycle.UpdateRequest
	DomainRenew   *Renew
	Transfer      *TransferCmd
	ContactCreate *contact.CreateRequest
	ContactUpdate *contact.UpdateRequest
	HostCreate    *host.CreateRequest
	HostUpdate    *host.UpdateRequest
}

// TargetID returns the object id the command addresses, for the audit record.
func (c Command) TargetID() string {
	switch {
	case c.Target != "":
		return c.Target
	case len(c.Targets) > 0:
		return c.Targets[0]
	case c.DomainCreate != nil:
		return c.DomainCreate.Name
	case c.DomainUpdate != nil:
		return c.DomainUpdate.Name
	case c.DomainRenew != nil:
		return c.DomainRenew.Name
	case c.Transfer != nil:
		return c.Transfer.Name
	case c.ContactCreate != nil:
		return c.ContactCreate.ID
	case c.ContactUpdate != nil:
		return c.ContactUpdate.ID
	case c.HostCreate != nil:
		return c.HostCreate.Name
	case c.HostUpdate != nil:
		return c.HostUpdate.Name
	}
	return ""
}
