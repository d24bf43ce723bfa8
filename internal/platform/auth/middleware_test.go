package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

var testSigningKey = []byte("test-secret-key-for-unit-tests-only")

func createTestToken(t *testing.T, claims Claims, key []byte) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenStr, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("failed to sign test token: %v", err)
	}
	return tokenStr
}

func runMiddleware(t *testing.T, cfg JWTConfig, header string, handler echo.HandlerFunc) error {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	return JWTMiddleware(cfg)(handler)(c)
}

func okHandler(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func expectUnauthorized(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error")
	}
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", httpErr.Code)
	}
}

func TestJWTMiddleware_MissingHeader(t *testing.T) {
	err := runMiddleware(t, JWTConfig{SigningKey: testSigningKey}, "", okHandler)
	expectUnauthorized(t, err)
}

func TestJWTMiddleware_InvalidFormat(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"no bearer prefix", "Token abc123"},
		{"missing token", "Bearer"},
		{"empty value", "Bearer "},
		{"basic auth", "Basic dXNlcjpwYXNz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := runMiddleware(t, JWTConfig{SigningKey: testSigningKey}, tt.header, okHandler)
			expectUnauthorized(t, err)
		})
	}
}

func TestJWTMiddleware_ExpiredToken(t *testing.T) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "7",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-1 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
		},
	}
	tokenStr := createTestToken(t, claims, testSigningKey)
	err := runMiddleware(t, JWTConfig{SigningKey: testSigningKey}, "Bearer "+tokenStr, okHandler)
	expectUnauthorized(t, err)
}

func TestJWTMiddleware_WrongKey(t *testing.T) {
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "7"}}
	tokenStr := createTestToken(t, claims, []byte("another-key"))
	err := runMiddleware(t, JWTConfig{SigningKey: testSigningKey}, "Bearer "+tokenStr, okHandler)
	expectUnauthorized(t, err)
}

func TestJWTMiddleware_WrongIssuer(t *testing.T) {
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "7", Issuer: "elsewhere"}}
	tokenStr := createTestToken(t, claims, testSigningKey)
	err := runMiddleware(t, JWTConfig{Issuer: "medvault-sandbox", SigningKey: testSigningKey}, "Bearer "+tokenStr, okHandler)
	expectUnauthorized(t, err)
}

func TestJWTMiddleware_ClaimsExtraction(t *testing.T) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "456",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(1 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		Email: "alice@medvault.test",
		Roles: []string{"doctor"},
	}
	tokenStr := createTestToken(t, claims, testSigningKey)

	var handlerCalled bool
	handler := func(c echo.Context) error {
		handlerCalled = true
		ctx := c.Request().Context()
		if uid := UserIDFromContext(ctx); uid != "456" {
			t.Errorf("expected user_id=456, got %s", uid)
		}
		if id := NumericUserID(ctx); id != 456 {
			t.Errorf("expected numeric id 456, got %d", id)
		}
		if email := EmailFromContext(ctx); email != "alice@medvault.test" {
			t.Errorf("expected email, got %s", email)
		}
		roles := RolesFromContext(ctx)
		if len(roles) != 1 || roles[0] != "doctor" {
			t.Errorf("expected roles=[doctor], got %v", roles)
		}
		return c.String(http.StatusOK, "ok")
	}

	if err := runMiddleware(t, JWTConfig{SigningKey: testSigningKey}, "Bearer "+tokenStr, handler); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !handlerCalled {
		t.Error("handler was not called")
	}
}

func TestIssuer_RoundTrip(t *testing.T) {
	iss := NewIssuer(testSigningKey, "medvault-sandbox", time.Hour)
	tokenStr, err := iss.Issue(12, "bob@medvault.test", RolePatient)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	handler := func(c echo.Context) error {
		ctx := c.Request().Context()
		if NumericUserID(ctx) != 12 {
			t.Errorf("expected id 12, got %d", NumericUserID(ctx))
		}
		roles := RolesFromContext(ctx)
		if len(roles) != 1 || roles[0] != "patient" {
			t.Errorf("expected patient role, got %v", roles)
		}
		return nil
	}
	if err := runMiddleware(t, iss.Config(), "Bearer "+tokenStr, handler); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNumericUserID_NonNumeric(t *testing.T) {
	ctx := WithIdentity(httptest.NewRequest(http.MethodGet, "/", nil).Context(), "dev-user", "", nil)
	if id := NumericUserID(ctx); id != 0 {
		t.Errorf("expected 0 for non-numeric subject, got %d", id)
	}
}
