package readview

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"zonecore/internal/ratelimit"
	dErrors "zonecore/pkg/domain-errors"
)

// Handler exposes the read view over HTTP: plain-text WHOIS, RDAP JSON, and
// the operational endpoints.
type Handler struct {
	svc     *Service
	limiter *ratelimit.Limiter
	logger  *slog.Logger
}

type HandlerOption func(*Handler)

// WithLimiter applies the per-source query limiter to the lookup endpoints.
func WithLimiter(l *ratelimit.Limiter) HandlerOption {
	return func(h *Handler) { h.limiter = l }
}

func WithLogger(logger *slog.Logger) HandlerOption {
	return func(h *Handler) { h.logger = logger }
}

func NewHandler(svc *Service, opts ...HandlerOption) *Handler {
	h := &Handler{svc: svc, logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(h.rateLimit)
		r.Get("/whois/{name}", h.whois)
		r.Get("/rdap/domain/{name}", h.rdapDomain)
	})
	return r
}

func (h *Handler) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.limiter == nil {
			next.ServeHTTP(w, r)
			return
		}
		d, err := h.limiter.Allow(r.Context(), clientIP(r))
		if err != nil {
			http.Error(w, "service unavailable", http.StatusServiceUnavailable)
			return
		}
		if !d.Allowed {
			retry := int(time.Until(d.BlockedUntil).Seconds())
			if retry < 1 {
				retry = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retry))
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) whois(w http.ResponseWriter, r *http.Request) {
	rec, err := h.svc.Lookup(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintf(w, "Domain Name: %s\n", rec.Name)
	fmt.Fprintf(w, "Registrar: %s (%s)\n", rec.RegistrarName, rec.RegistrarID)
	if rec.AbuseContact != "" {
		fmt.Fprintf(w, "Registrar Abuse Contact: %s\n", rec.AbuseContact)
	}
	for _, s := range rec.Statuses {
		fmt.Fprintf(w, "Domain Status: %s\n", s)
	}
	for _, ns := range rec.Nameservers {
		fmt.Fprintf(w, "Name Server: %s\n", ns)
	}
	fmt.Fprintf(w, "DNSSEC: %s\n", dnssec(rec.Secured))
	fmt.Fprintf(w, "Creation Date: %s\n", rec.Created.UTC().Format(time.RFC3339))
	fmt.Fprintf(w, "Registry Expiry Date: %s\n", rec.Expires.UTC().Format(time.RFC3339))
	fmt.Fprintf(w, "Updated Date: %s\n", rec.Updated.UTC().Format(time.RFC3339))
}

// rdapDomain renders the RDAP (RFC 9083) domain object for one name.
func (h *Handler) rdapDomain(w http.ResponseWriter, r *http.Request) {
	rec, err := h.svc.Lookup(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	type event struct {
		Action string `json:"eventAction"`
		Date   string `json:"eventDate"`
	}
	type nameserver struct {
		ObjectClassName string `json:"objectClassName"`
		LDHName         string `json:"ldhName"`
	}
	out := struct {
		ObjectClassName string       `json:"objectClassName"`
		LDHName         string       `json:"ldhName"`
		Status          []string     `json:"status"`
		Events          []event      `json:"events"`
		Nameservers     []nameserver `json:"nameservers,omitempty"`
		SecureDNS       struct {
			DelegationSigned bool `json:"delegationSigned"`
		} `json:"secureDNS"`
		Port43 string `json:"port43,omitempty"`
	}{
		ObjectClassName: "domain",
		LDHName:         rec.Name,
		Status:          rec.Statuses,
		Events: []event{
			{Action: "registration", Date: rec.Created.UTC().Format(time.RFC3339)},
			{Action: "expiration", Date: rec.Expires.UTC().Format(time.RFC3339)},
			{Action: "last changed", Date: rec.Updated.UTC().Format(time.RFC3339)},
		},
	}
	out.SecureDNS.DelegationSigned = rec.Secured
	for _, ns := range rec.Nameservers {
		out.Nameservers = append(out.Nameservers, nameserver{ObjectClassName: "nameserver", LDHName: ns})
	}
	w.Header().Set("Content-Type", "application/rdap+json")
	json.NewEncoder(w).Encode(out)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch dErrors.CodeOf(err) {
	case dErrors.CodeNotFound:
		http.Error(w, "domain not found", http.StatusNotFound)
	case dErrors.CodeInvalidInput:
		http.Error(w, "invalid domain name", http.StatusBadRequest)
	default:
		h.logger.Error("read view lookup failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func dnssec(secured bool) string {
	if secured {
		return "signedDelegation"
	}
	return "unsigned"
}
