package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func requestWithRoles(roles ...string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	return req.WithContext(WithIdentity(req.Context(), "1", "", roles))
}

func TestRequireRole_Allowed(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(requestWithRoles("doctor"), rec)

	err := RequireRole("doctor")(okHandler)(c)
	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestRequireRole_CaseInsensitive(t *testing.T) {
	e := echo.New()
	c := e.NewContext(requestWithRoles("PATIENT"), httptest.NewRecorder())
	if err := RequireRole("patient")(okHandler)(c); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}

func TestRequireRole_Denied(t *testing.T) {
	e := echo.New()
	c := e.NewContext(requestWithRoles("patient"), httptest.NewRecorder())

	err := RequireRole("doctor")(okHandler)(c)
	if err == nil {
		t.Fatal("expected error")
	}
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", httpErr.Code)
	}
}

func TestRequireRole_AdminHasNoBypass(t *testing.T) {
	e := echo.New()
	c := e.NewContext(requestWithRoles("admin"), httptest.NewRecorder())
	if err := RequireRole("patient")(okHandler)(c); err == nil {
		t.Fatal("expected admin to be denied patient routes")
	}
}
