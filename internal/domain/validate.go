package domain

import (
	"net"
	"regexp"
	"strings"

	dErrors "zonecore/pkg/domain-errors"
)

var (
	domainPattern  = regexp.MustCompile(`^(?:[a-z0-9](?:[a-z0-9-]{0,61}[a-z0-9])?\.)+[a-z]{2,}$`)
	contactPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]{2,15}$`)
)

// NormalizeName lowercases and trims a domain or host name. Names are
// case-insensitive on the wire and stored lowercase.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// ValidateDomainName checks label syntax on an already-normalized name.
func ValidateDomainName(name string) error {
	if name == "" {
		return dErrors.New(dErrors.CodeMissingParameter, "domain name is required")
	}
	if len(name) > 253 || !domainPattern.MatchString(name) {
		return dErrors.Newf(dErrors.CodeInvalidInput, "invalid domain name %q", name)
	}
	return nil
}

// ValidateHostName checks nameserver hostname syntax; hosts follow the same
// label rules as domains.
func ValidateHostName(name string) error {
	if name == "" {
		return dErrors.New(dErrors.CodeMissingParameter, "host name is required")
	}
	if len(name) > 253 || !domainPattern.MatchString(name) {
		return dErrors.Newf(dErrors.CodeInvalidInput, "invalid host name %q", name)
	}
	return nil
}

// ValidateContactID checks a registrar-chosen contact handle.
func ValidateContactID(id string) error {
	if id == "" {
		return dErrors.New(dErrors.CodeMissingParameter, "contact id is required")
	}
	if !contactPattern.MatchString(id) {
		return dErrors.Newf(dErrors.CodeInvalidInput, "invalid contact id %q", id)
	}
	return nil
}

// ValidateIP checks a glue address and reports the expected family.
func ValidateIP(addr string, v6 bool) error {
	ip := net.ParseIP(addr)
	if ip == nil {
		return dErrors.Newf(dErrors.CodeInvalidInput, "invalid ip address %q", addr)
	}
	if v6 != (ip.To4() == nil) {
		return dErrors.Newf(dErrors.CodeInvalidInput, "ip address %q does not match declared family", addr)
	}
	return nil
}

// Subordinate reports whether host is at or below the given domain name
// (e.g. ns1.example.test is subordinate to example.test).
func Subordinate(host, domainName string) bool {
	return host == domainName || strings.HasSuffix(host, "."+domainName)
}
