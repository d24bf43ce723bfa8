package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/medvault/medvault/internal/platform/auth"
)

type mockRecorder struct {
	entries []AuditEntry
}

func (m *mockRecorder) RecordAccess(entry AuditEntry) error {
	m.entries = append(m.entries, entry)
	return nil
}

func auditContext(method, route, path string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, path, nil)
	req = req.WithContext(auth.WithIdentity(req.Context(), "7", "doc@example.com", []string{"doctor"}))
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(req, rec)
	c.SetPath(route)
	c.Set("request_id", "req-1")
	return c, rec
}

func TestAudit_RecordsRecordView(t *testing.T) {
	var buf bytes.Buffer
	recorder := &mockRecorder{}
	mw := Audit(zerolog.New(&buf), recorder)

	c, _ := auditContext(http.MethodGet, "/api/doctor/medical-records/:id/view", "/api/doctor/medical-records/3/view")
	if err := mw(okHandler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recorder.entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(recorder.entries))
	}
	got := recorder.entries[0]
	if got.UserID != "7" || got.Resource != "medical-record" || got.Action != "read" || got.RequestID != "req-1" {
		t.Errorf("unexpected entry %+v", got)
	}
	if !bytes.Contains(buf.Bytes(), []byte(`"type":"data_access"`)) {
		t.Errorf("expected data_access log line, got %s", buf.String())
	}
}

func TestAudit_SkipsOtherRoutes(t *testing.T) {
	recorder := &mockRecorder{}
	c, _ := auditContext(http.MethodGet, "/api/doctor/slots", "/api/doctor/slots")
	Audit(zerolog.Nop(), recorder)(okHandler)(c)
	if len(recorder.entries) != 0 {
		t.Errorf("expected no entries, got %d", len(recorder.entries))
	}
}

func TestAudit_FailedRequestNotRecorded(t *testing.T) {
	recorder := &mockRecorder{}
	forbidden := func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusForbidden, "no access")
	}
	c, _ := auditContext(http.MethodGet, "/api/doctor/patients/:patientId/histories", "/api/doctor/patients/10/histories")
	err := Audit(zerolog.Nop(), recorder)(forbidden)(c)
	if err == nil {
		t.Fatal("expected the handler error to pass through")
	}
	if len(recorder.entries) != 0 {
		t.Errorf("failed access should only be logged, got %d entries", len(recorder.entries))
	}
}

func TestAuditedResource(t *testing.T) {
	tests := map[string]string{
		"/api/patient/medical-records/upload":         "medical-record",
		"/api/patient/records/access/:id/approve":     "medical-record",
		"/api/patient/history/:id":                    "history",
		"/api/doctor/patients/:patientId/histories":   "history",
		"/api/doctor/emergency/accept/:id":            "emergency",
		"/api/patient/emergencies":                    "emergency",
		"/api/patient/appointments":                   "",
	}
	for route, want := range tests {
		if got := auditedResource(route); got != want {
			t.Errorf("auditedResource(%q) = %q, want %q", route, got, want)
		}
	}
}

func TestHttpMethodToAction(t *testing.T) {
	tests := map[string]string{
		http.MethodGet:    "read",
		http.MethodPost:   "create",
		http.MethodPut:    "update",
		http.MethodDelete: "delete",
	}
	for method, want := range tests {
		if got := httpMethodToAction(method); got != want {
			t.Errorf("httpMethodToAction(%s) = %s, want %s", method, got, want)
		}
	}
}
