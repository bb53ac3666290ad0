package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func assertCORS(t *testing.T, h http.Header) {
	t.Helper()
	want := map[string]string{
		"Access-Control-Allow-Origin":  "*",
		"Access-Control-Allow-Methods": "GET, OPTIONS",
		"Access-Control-Allow-Headers": "X-Auth-Email, X-Auth-Key, Content-Type",
	}
	for k, v := range want {
		if got := h.Get(k); got != v {
			t.Errorf("%s = %q, want %q", k, got, v)
		}
	}
}

func TestCORS_Preflight(t *testing.T) {
	e := echo.New()
	e.Use(CORS())
	called := false
	e.Any("/*", func(c echo.Context) error {
		called = true
		return c.String(http.StatusOK, "should not run")
	})

	for _, target := range []string{"/", "/?path=/Firm/1", "/anything/else"} {
		t.Run(target, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodOptions, target, http.NoBody)
			req.Header.Set("Access-Control-Request-Method", "GET")
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			if rec.Code != http.StatusNoContent {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusNoContent)
			}
			if rec.Body.Len() != 0 {
				t.Errorf("body = %q, want empty", rec.Body.String())
			}
			assertCORS(t, rec.Header())
		})
	}
	if called {
		t.Error("handler ran for a preflight request")
	}
}

func TestCORS_OnSuccess(t *testing.T) {
	e := echo.New()
	e.Use(CORS())
	e.GET("/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"ok": "yes"})
	})

	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	assertCORS(t, rec.Header())
}

func TestCORS_OnErrors(t *testing.T) {
	e := echo.New()
	e.Use(CORS())
	e.GET("/fail", func(c echo.Context) error {
		return errors.New("boom")
	})
	e.GET("/only-get", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
	}{
		{"handler error", http.MethodGet, "/fail", http.StatusInternalServerError},
		{"router not found", http.MethodGet, "/missing", http.StatusNotFound},
		{"router method not allowed", http.MethodPost, "/only-get", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, http.NoBody)
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			assertCORS(t, rec.Header())
		})
	}
}
