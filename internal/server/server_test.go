package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/omnirelay/omni/internal/handlers"
)

type panicHandler struct{}

func (panicHandler) Register(e *echo.Echo) {
	e.GET("/boom", func(echo.Context) error { panic("boom") })
}

func TestServerRegistersHandlers(t *testing.T) {
	t.Parallel()

	srv := NewServer(nil, "", handlers.NewPingHandler(nil), nil, panicHandler{})
	if srv.Addr() != DefaultAddr {
		t.Fatalf("expected default addr, got %s", srv.Addr())
	}

	cases := []struct {
		path string
		want int
	}{
		{path: "/ping", want: http.StatusOK},
		{path: "/boom", want: http.StatusInternalServerError},
		{path: "/missing", want: http.StatusNotFound},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		srv.echo.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tc.path, nil))
		if rec.Code != tc.want {
			t.Fatalf("path=%q want=%d got=%d", tc.path, tc.want, rec.Code)
		}
	}
}
