// Package service implements request validation, forwarding and response
// classification for the FCA Register proxy.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"fca-register-proxy/internal/challenge"
	"fca-register-proxy/internal/client"
	"fca-register-proxy/internal/config"
	"fca-register-proxy/internal/metrics"
	"fca-register-proxy/internal/model"
)

var (
	// ErrMethodNotAllowed is returned for any method other than GET.
	ErrMethodNotAllowed = errors.New("only GET requests supported")
	// ErrInvalidPath is returned when ?path= is missing or does not start with "/".
	ErrInvalidPath = errors.New("missing or invalid path parameter")
	// ErrMissingCredentials is returned when either credential header is absent or empty.
	ErrMissingCredentials = errors.New("missing credential headers")
	// ErrUpstreamUnreachable wraps transport failures talking to the FCA Register.
	ErrUpstreamUnreachable = errors.New("upstream unreachable")
	// ErrUpstreamBlocked is returned when the FCA Register served a challenge page.
	ErrUpstreamBlocked = errors.New("upstream blocked the request")
)

// Credential header names, as sent by clients and expected by the FCA Register.
const (
	HeaderAuthEmail = "X-Auth-Email"
	HeaderAuthKey   = "X-Auth-Key"
)

// ServicePrefix is the FCA Register API version root.
const ServicePrefix = "/services/V0.1"

// Fixed browser-like headers. The FCA Register sits behind bot detection that
// keys partly on User-Agent.
const (
	acceptLanguage = "en-GB,en;q=0.9"
	userAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36"
)

// allowedUpstreamHosts restricts which hosts the proxy will forward to.
var allowedUpstreamHosts = map[string]bool{
	"register.fca.org.uk": true,
}

// ParseRequest validates an inbound request and extracts the upstream path and
// credentials. Checks run in order: method, path, credentials. It never
// contacts the upstream.
func ParseRequest(ctx context.Context, method string, query url.Values, header http.Header) (*model.ForwardRequest, error) {
	if method != http.MethodGet {
		return nil, ErrMethodNotAllowed
	}

	path := query.Get("path")
	if !strings.HasPrefix(path, "/") {
		return nil, ErrInvalidPath
	}

	creds := model.Credentials{
		Email: header.Get(HeaderAuthEmail),
		Key:   header.Get(HeaderAuthKey),
	}
	if creds.Email == "" || creds.Key == "" {
		return nil, ErrMissingCredentials
	}

	return &model.ForwardRequest{
		Ctx:         ctx,
		Path:        path,
		Credentials: creds,
	}, nil
}

// ProxyService forwards validated requests to the FCA Register and
// classifies the answers.
type ProxyService struct {
	client  *client.RegisterClient
	logger  *slog.Logger
	metrics *metrics.Metrics
	baseURL string
}

// NewProxyService creates a ProxyService. The metrics parameter is optional.
func NewProxyService(c *client.RegisterClient, cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) (*ProxyService, error) {
	u, err := url.Parse(cfg.Upstream.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse upstream base_url: %w", err)
	}

	if !allowedUpstreamHosts[u.Hostname()] {
		return nil, fmt.Errorf("upstream host %q is not in the allowlist", u.Hostname())
	}

	return newProxyService(c, u, logger, m), nil
}

// NewProxyServiceForTest creates a ProxyService without host allowlist validation.
// This is intended only for tests that use httptest servers on localhost.
func NewProxyServiceForTest(c *client.RegisterClient, cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) (*ProxyService, error) {
	u, err := url.Parse(cfg.Upstream.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse upstream base_url: %w", err)
	}

	return newProxyService(c, u, logger, m), nil
}

func newProxyService(c *client.RegisterClient, u *url.URL, logger *slog.Logger, m *metrics.Metrics) *ProxyService {
	return &ProxyService{
		client:  c,
		logger:  logger.With("component", "proxy_service"),
		metrics: m,
		baseURL: u.Scheme + "://" + u.Host,
	}
}

// Forward sends exactly one GET to the FCA Register and returns its buffered
// response. Transport failures are wrapped in ErrUpstreamUnreachable and
// challenge pages are reported as ErrUpstreamBlocked, whatever their status.
// Nothing is retried.
func (s *ProxyService) Forward(fr *model.ForwardRequest) (*model.UpstreamResponse, error) {
	s.logger.Debug("forwarding request", "path", pathOnly(fr.Path))

	resp, err := s.client.Get(fr.Ctx, s.upstreamURL(fr.Path), upstreamHeader(fr.Credentials))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstreamUnreachable, err)
	}

	if challenge.Detect(resp.Body) {
		if s.metrics != nil {
			s.metrics.UpstreamBlocked.Inc()
		}
		s.logger.Warn("upstream served a challenge page",
			"upstream_status", resp.StatusCode,
			"title", challenge.Title(resp.Body),
			"path", pathOnly(fr.Path),
		)
		return nil, ErrUpstreamBlocked
	}

	return resp, nil
}

// UpstreamBase returns the scheme and host requests are forwarded to.
func (s *ProxyService) UpstreamBase() string {
	return s.baseURL
}

// upstreamURL joins the base URL, service prefix and caller path. The caller
// path may carry its own query string; bytes not allowed in a request target
// are percent-encoded on the way.
func (s *ProxyService) upstreamURL(path string) string {
	return s.baseURL + ServicePrefix + escapeTarget(path)
}

const upperhex = "0123456789ABCDEF"

// escapeTarget percent-encodes every byte of p that may not appear in an
// HTTP request target, such as space, '"', '<', '>', '#' and non-ASCII.
// Delimiters like / ? & = are kept, and so is a '%' that already starts a
// valid escape.
func escapeTarget(p string) string {
	n := 0
	for i := 0; i < len(p); i++ {
		if needsEscape(p, i) {
			n++
		}
	}
	if n == 0 {
		return p
	}

	var b strings.Builder
	b.Grow(len(p) + 2*n)
	for i := 0; i < len(p); i++ {
		c := p[i]
		if needsEscape(p, i) {
			b.WriteByte('%')
			b.WriteByte(upperhex[c>>4])
			b.WriteByte(upperhex[c&15])
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

func needsEscape(p string, i int) bool {
	c := p[i]
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return false
	case c == '%':
		return i+2 >= len(p) || !isHex(p[i+1]) || !isHex(p[i+2])
	}
	// RFC 3986 unreserved, sub-delims and the pchar/query extras.
	return !strings.ContainsRune("-._~!$&'()*+,;=:@/?", rune(c))
}

func isHex(c byte) bool {
	return '0' <= c && c <= '9' || 'a' <= c && c <= 'f' || 'A' <= c && c <= 'F'
}

func upstreamHeader(creds model.Credentials) http.Header {
	h := make(http.Header, 5)
	h.Set(HeaderAuthEmail, creds.Email)
	h.Set(HeaderAuthKey, creds.Key)
	h.Set("Accept", "application/json")
	h.Set("Accept-Language", acceptLanguage)
	h.Set("User-Agent", userAgent)
	return h
}

// pathOnly strips any query string from an upstream path before it is logged.
func pathOnly(p string) string {
	if i := strings.IndexByte(p, '?'); i >= 0 {
		return p[:i]
	}
	return p
}
