package readview

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"zonecore/internal/domain"
	"zonecore/internal/ratelimit"
	"zonecore/internal/store"
)

type HandlerSuite struct {
	suite.Suite
	ctx    context.Context
	store  *store.Memory
	server *httptest.Server
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = store.NewMemory()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	s.Require().NoError(s.store.Registrars().Create(s.ctx, domain.Registrar{
		ID:           "reg-a",
		Name:         "Registrar A",
		AbuseContact: "abuse@reg-a.test",
		Status:       domain.RegistrarActive,
		CreatedAt:    now,
	}))
	s.Require().NoError(s.store.Domains().Create(s.ctx, domain.Domain{
		ID:          uuid.New(),
		Name:        "example.test",
		RegistrarID: "reg-a",
		AuthCode:    "never-published",
		Nameservers: []string{"ns1.dns.test", "ns2.dns.test"},
		DSRecords:   []domain.DSRecord{{KeyTag: 12345, Algorithm: 13, DigestType: 2, Digest: "ab"}},
		Status:      domain.NewStatusSet(domain.StatusOK),
		CreatedAt:   now,
		ExpiresAt:   now.AddDate(1, 0, 0),
		UpdatedAt:   now,
	}))

	h := NewHandler(New(s.store))
	s.server = httptest.NewServer(h.Routes())
	s.T().Cleanup(s.server.Close)
}

func (s *HandlerSuite) get(path string) (*http.Response, string) {
	res, err := http.Get(s.server.URL + path)
	s.Require().NoError(err)
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	s.Require().NoError(err)
	return res, string(body)
}

func (s *HandlerSuite) TestWhois() {
	res, body := s.get("/whois/example.test")
	s.Equal(http.StatusOK, res.StatusCode)
	s.Contains(res.Header.Get("Content-Type"), "text/plain")

	s.Contains(body, "Domain Name: example.test")
	s.Contains(body, "Registrar: Registrar A (reg-a)")
	s.Contains(body, "Registrar Abuse Contact: abuse@reg-a.test")
	s.Contains(body, "Domain Status: ok")
	s.Contains(body, "Name Server: ns1.dns.test")
	s.Contains(body, "DNSSEC: signedDelegation")
	s.NotContains(body, "never-published")
}

func (s *HandlerSuite) TestWhoisCaseInsensitive() {
	res, _ := s.get("/whois/EXAMPLE.Test")
	s.Equal(http.StatusOK, res.StatusCode)
}

func (s *HandlerSuite) TestRDAP() {
	res, body := s.get("/rdap/domain/example.test")
	s.Equal(http.StatusOK, res.StatusCode)
	s.Equal("application/rdap+json", res.Header.Get("Content-Type"))

	var out struct {
		ObjectClassName string   `json:"objectClassName"`
		LDHName         string   `json:"ldhName"`
		Status          []string `json:"status"`
		Events          []struct {
			EventAction string `json:"eventAction"`
			EventDate   string `json:"eventDate"`
		} `json:"events"`
		Nameservers []struct {
			LDHName string `json:"ldhName"`
		} `json:"nameservers"`
		SecureDNS struct {
			DelegationSigned bool `json:"delegationSigned"`
		} `json:"secureDNS"`
	}
	s.Require().NoError(json.Unmarshal([]byte(body), &out))
	s.Equal("domain", out.ObjectClassName)
	s.Equal("example.test", out.LDHName)
	s.Equal([]string{"ok"}, out.Status)
	s.Len(out.Events, 3)
	s.Len(out.Nameservers, 2)
	s.True(out.SecureDNS.DelegationSigned)
	s.NotContains(body, "never-published")
}

func (s *HandlerSuite) TestNotFound() {
	res, _ := s.get("/whois/missing.test")
	s.Equal(http.StatusNotFound, res.StatusCode)

	res, _ = s.get("/rdap/domain/missing.test")
	s.Equal(http.StatusNotFound, res.StatusCode)
}

func (s *HandlerSuite) TestInvalidName() {
	res, _ := s.get("/whois/!nope!")
	s.Equal(http.StatusBadRequest, res.StatusCode)
}

func (s *HandlerSuite) TestHealthz() {
	res, body := s.get("/healthz")
	s.Equal(http.StatusOK, res.StatusCode)
	s.Equal("ok", body)
}

func (s *HandlerSuite) TestRateLimit() {
	limiter := ratelimit.New(ratelimit.NewMemoryStore(), 2, time.Minute, 5*time.Minute)
	h := NewHandler(New(s.store), WithLimiter(limiter))
	server := httptest.NewServer(h.Routes())
	defer server.Close()

	for i := 0; i < 2; i++ {
		res, err := http.Get(server.URL + "/whois/example.test")
		s.Require().NoError(err)
		res.Body.Close()
		s.Equal(http.StatusOK, res.StatusCode)
	}

	res, err := http.Get(server.URL + "/whois/example.test")
	s.Require().NoError(err)
	res.Body.Close()
	s.Equal(http.StatusTooManyRequests, res.StatusCode)
	s.NotEmpty(res.Header.Get("Retry-After"))

	s.Run("operational endpoints are exempt", func() {
		res, err := http.Get(server.URL + "/healthz")
		s.Require().NoError(err)
		res.Body.Close()
		s.Equal(http.StatusOK, res.StatusCode)
	})
}
