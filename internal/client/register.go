// Package client provides the upstream HTTP client for the FCA Register API.
package client

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"fca-register-proxy/internal/config"
	"fca-register-proxy/internal/metrics"
	"fca-register-proxy/internal/model"
)

// RegisterClient sends requests to the upstream FCA Register API.
type RegisterClient struct {
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// NewRegisterClient creates a RegisterClient with connection pooling and timeouts.
// The metrics parameter is optional; pass nil to disable upstream metrics recording.
func NewRegisterClient(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *RegisterClient {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        cfg.Upstream.IdleConnections,
		MaxIdleConnsPerHost: cfg.Upstream.IdleConnections,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}

	return &RegisterClient{
		httpClient: &http.Client{
			Transport: transport,
			// Covers connect, headers and body read.
			Timeout: time.Duration(cfg.Upstream.TimeoutSeconds) * time.Second,
		},
		logger:  logger.With("component", "register_client"),
		metrics: m,
	}
}

// Get issues a single GET against url and buffers the whole response body.
// The upstream connection is released before Get returns. The provided
// context controls the lifetime of the upstream request: when it is
// canceled (e.g. client disconnects), the upstream request is canceled too.
func (c *RegisterClient) Get(ctx context.Context, url string, header http.Header) (*model.UpstreamResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build upstream request: %w", err)
	}
	req.Header = header

	c.logger.Debug("upstream request", "path", req.URL.Path)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observe(start, 0)
		return nil, fmt.Errorf("upstream request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.observe(start, 0)
		return nil, fmt.Errorf("read upstream body: %w", err)
	}
	c.observe(start, resp.StatusCode)

	return &model.UpstreamResponse{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}

// observe records call latency and outcome. A zero status marks a transport failure.
func (c *RegisterClient) observe(start time.Time, status int) {
	if c.metrics == nil {
		return
	}
	c.metrics.UpstreamDuration.Observe(time.Since(start).Seconds())
	if status == 0 {
		c.metrics.UpstreamErrors.Inc()
		return
	}
	c.metrics.UpstreamResponses.WithLabelValues(strconv.Itoa(status)).Inc()
}
