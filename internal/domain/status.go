package domain

import (
	"sort"
	"strings"

	dErrors "zonecore/pkg/domain-errors"
)

// Status is a single EPP status flag on a registry object.
type Status string

const (
	StatusOK               Status = "ok"
	StatusPendingCreate    Status = "pendingCreate"
	StatusPendingRenew     Status = "pendingRenew"
	StatusPendingTransfer  Status = "pendingTransfer"
	StatusPendingDelete    Status = "pendingDelete"
	StatusRedemptionPeriod Status = "redemptionPeriod"

	StatusClientHold Status = "clientHold"
	StatusServerHold Status = "serverHold"

	StatusClientDeleteProhibited   Status = "clientDeleteProhibited"
	StatusServerDeleteProhibited   Status = "serverDeleteProhibited"
	StatusClientRenewProhibited    Status = "clientRenewProhibited"
	StatusServerRenewProhibited    Status = "serverRenewProhibited"
	StatusClientTransferProhibited Status = "clientTransferProhibited"
	StatusServerTransferProhibited Status = "serverTransferProhibited"
	StatusClientUpdateProhibited   Status = "clientUpdateProhibited"
	StatusServerUpdateProhibited   Status = "serverUpdateProhibited"

	// Host and contact objects share the linked flag: set while the object
	// is referenced by a domain.
	StatusLinked Status = "linked"
)

// pendingStatuses are mutually exclusive: at most one outstanding lifecycle
// operation per object. redemptionPeriod counts as part of the delete
// lifecycle and excludes the others the same way.
var pendingStatuses = []Status{
	StatusPendingCreate,
	StatusPendingRenew,
	StatusPendingTransfer,
	StatusPendingDelete,
	StatusRedemptionPeriod,
}

var knownStatuses = map[Status]bool{
	StatusOK: true, StatusPendingCreate: true, StatusPendingRenew: true,
	StatusPendingTransfer: true, StatusPendingDelete: true,
	StatusRedemptionPeriod: true, StatusClientHold: true, StatusServerHold: true,
	StatusClientDeleteProhibited: true, StatusServerDeleteProhibited: true,
	StatusClientRenewProhibited: true, StatusServerRenewProhibited: true,
	StatusClientTransferProhibited: true, StatusServerTransferProhibited: true,
	StatusClientUpdateProhibited: true, StatusServerUpdateProhibited: true,
	StatusLinked: true,
}

// ClientSettable reports whether a registrar may add or remove the flag via
// update. Server-managed and lifecycle flags are registry-only.
func (s Status) ClientSettable() bool {
	switch s {
	case StatusClientHold, StatusClientDeleteProhibited, StatusClientRenewProhibited,
		StatusClientTransferProhibited, StatusClientUpdateProhibited:
		return true
	}
	return false
}

// StatusSet is the set of status flags on an object. The zero value is an
// empty set; Normalize turns an empty set into {ok}.
type StatusSet map[Status]struct{}

// NewStatusSet builds a set from flags without validating it.
func NewStatusSet(flags ...Status) StatusSet {
	set := make(StatusSet, len(flags))
	for _, f := range flags {
		set[f] = struct{}{}
	}
	return set
}

func (ss StatusSet) Has(s Status) bool {
	_, ok := ss[s]
	return ok
}

func (ss StatusSet) Add(s Status) {
	delete(ss, StatusOK)
	ss[s] = struct{}{}
}

func (ss StatusSet) Remove(s Status) {
	delete(ss, s)
}

// Pending returns the outstanding lifecycle flag, if any.
func (ss StatusSet) Pending() (Status, bool) {
	for _, p := range pendingStatuses {
		if ss.Has(p) {
			return p, true
		}
	}
	return "", false
}

// Clone returns an independent copy of the set.
func (ss StatusSet) Clone() StatusSet {
	out := make(StatusSet, len(ss))
	for s := range ss {
		out[s] = struct{}{}
	}
	return out
}

// Normalize removes ok when other flags are present and restores it when the
// set would otherwise be empty, keeping the invariant that status is never
// empty. Returns the receiver for chaining.
func (ss StatusSet) Normalize() StatusSet {
	if len(ss) > 1 {
		delete(ss, StatusOK)
	}
	if len(ss) == 0 {
		ss[StatusOK] = struct{}{}
	}
	return ss
}

// Validate enforces the compatibility matrix in one place:
// flags must be known, ok combines with nothing, and at most one of the
// pending lifecycle flags may be set.
func (ss StatusSet) Validate() error {
	if len(ss) == 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "status set must not be empty")
	}
	for s := range ss {
		if !knownStatuses[s] {
			return dErrors.Newf(dErrors.CodeInvalidInput, "unknown status %q", s)
		}
	}
	if ss.Has(StatusOK) && len(ss) > 1 {
		return dErrors.New(dErrors.CodeInvalidInput, "status ok excludes all other flags")
	}
	var pending int
	for _, p := range pendingStatuses {
		if ss.Has(p) {
			pending++
		}
	}
	if pending > 1 {
		return dErrors.New(dErrors.CodeInvalidInput, "conflicting pending lifecycle flags")
	}
	return nil
}

// Flags returns the set as a sorted slice for stable serialization.
func (ss StatusSet) Flags() []Status {
	out := make([]Status, 0, len(ss))
	for s := range ss {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Strings returns the sorted flags as plain strings.
func (ss StatusSet) Strings() []string {
	flags := ss.Flags()
	out := make([]string, len(flags))
	for i, f := range flags {
		out[i] = string(f)
	}
	return out
}

func (ss StatusSet) String() string {
	return strings.Join(ss.Strings(), ",")
}

// ParseStatusSet rebuilds a set from its serialized flags.
func ParseStatusSet(flags []string) StatusSet {
	set := make(StatusSet, len(flags))
	for _, f := range flags {
		if f == "" {
			continue
		}
		set[Status(f)] = struct{}{}
	}
	return set.Normalize()
}
