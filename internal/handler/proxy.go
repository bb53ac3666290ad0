package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"

	"fca-register-proxy/internal/service"
)

// Client-facing error messages.
const (
	msgMethodNotAllowed = "Only GET requests supported"
	msgInvalidPath      = "Missing or invalid ?path= parameter. Example: ?path=/Firm/122702/Individuals"
	msgMissingAuth      = "Missing X-Auth-Email or X-Auth-Key headers"
	msgUnreachable      = "Failed to reach FCA API"
	msgBlocked          = "FCA API blocked the request. Please try again in a moment."
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

// ProxyHandler relays GET requests to the FCA Register API.
type ProxyHandler struct {
	service *service.ProxyService
	logger  *slog.Logger
}

// NewProxyHandler creates a ProxyHandler.
func NewProxyHandler(svc *service.ProxyService, logger *slog.Logger) *ProxyHandler {
	return &ProxyHandler{
		service: svc,
		logger:  logger.With("component", "proxy_handler"),
	}
}

// Handle validates the request, forwards it upstream and relays the answer.
// A non-blocked upstream body is passed through byte-for-byte with the
// upstream status code. OPTIONS requests are answered by the CORS middleware
// and never get here.
func (h *ProxyHandler) Handle(c echo.Context) error {
	req := c.Request()

	fr, err := service.ParseRequest(req.Context(), req.Method, req.URL.Query(), req.Header)
	if err != nil {
		return h.mapError(c, err)
	}

	resp, err := h.service.Forward(fr)
	if err != nil {
		return h.mapError(c, err)
	}

	return c.Blob(resp.StatusCode, echo.MIMEApplicationJSON, resp.Body)
}

func (h *ProxyHandler) mapError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, service.ErrMethodNotAllowed):
		h.logger.Debug("rejected request", "reason", err, "method", c.Request().Method)
		return c.JSON(http.StatusMethodNotAllowed, errorBody{Error: msgMethodNotAllowed})

	case errors.Is(err, service.ErrInvalidPath):
		h.logger.Debug("rejected request", "reason", err)
		return c.JSON(http.StatusBadRequest, errorBody{Error: msgInvalidPath})

	case errors.Is(err, service.ErrMissingCredentials):
		h.logger.Debug("rejected request", "reason", err)
		return c.JSON(http.StatusUnauthorized, errorBody{Error: msgMissingAuth})

	case errors.Is(err, service.ErrUpstreamBlocked):
		return c.JSON(http.StatusServiceUnavailable, errorBody{Error: msgBlocked})

	case errors.Is(err, service.ErrUpstreamUnreachable):
		h.logger.Error("upstream request failed", "err", err)
		return c.JSON(http.StatusBadGateway, errorBody{Error: msgUnreachable, Detail: transportDetail(err)})
	}

	h.logger.Error("proxy error", "err", err)
	return c.JSON(http.StatusInternalServerError, errorBody{Error: http.StatusText(http.StatusInternalServerError)})
}

// transportDetail returns the underlying network error message without the
// wrapping added on the way up, e.g. "dial tcp 10.0.0.1:443: connect:
// connection refused".
func transportDetail(err error) string {
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		return urlErr.Err.Error()
	}
	return strings.TrimPrefix(err.Error(), service.ErrUpstreamUnreachable.Error()+": ")
}
