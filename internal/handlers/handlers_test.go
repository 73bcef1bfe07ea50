package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omnirelay/omni/internal/healthcheck"
)

type staticChecker []healthcheck.CheckResult

func (s staticChecker) ListChecks(context.Context) []healthcheck.CheckResult {
	return s
}

func serve(e *echo.Echo, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestPingHandler(t *testing.T) {
	t.Parallel()

	e := echo.New()
	NewPingHandler(nil).Register(e)

	rec := serve(e, http.MethodGet, "/ping")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = serve(e, http.MethodHead, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthHandlerStatusCodes(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		status string
		code   int
	}{
		{name: "ok", status: healthcheck.StatusOK, code: http.StatusOK},
		{name: "warn", status: healthcheck.StatusWarn, code: http.StatusOK},
		{name: "error", status: healthcheck.StatusError, code: http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			e := echo.New()
			NewHealthHandler(nil, staticChecker{{ID: "a", Type: "test", Status: tc.status}}).Register(e)

			rec := serve(e, http.MethodGet, "/health")
			require.Equal(t, tc.code, rec.Code)
			var report healthcheck.Report
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
			assert.Equal(t, tc.status, report.Status)
			require.Len(t, report.Checks, 1)
			assert.Equal(t, "a", report.Checks[0].ID)
		})
	}
}
