package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestPasswordHashRoundTrip(t *testing.T) {
	a := NewAuthService()
	hash, err := a.HashPassword("hunter2")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !a.CheckPassword("hunter2", hash) {
		t.Fatal("expected correct password to verify")
	}
	if a.CheckPassword("wrong", hash) {
		t.Fatal("expected wrong password to fail")
	}
}

func TestTokenRoundTrip(t *testing.T) {
	a := NewAuthService()
	token, err := a.GenerateToken("admin")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	claims, err := a.ValidateToken(token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.Username != "admin" {
		t.Fatalf("expected username admin, got %q", claims.Username)
	}

	if _, err := a.ValidateToken(token + "x"); err == nil {
		t.Fatal("expected tampered token to fail validation")
	}
}

func TestRequireAPIAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	a := NewAuthService()

	r := gin.New()
	r.GET("/api/secret", a.RequireAPIAuth(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user": c.GetString("username")})
	})

	req := httptest.NewRequest(http.MethodGet, "/api/secret", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without header, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/secret", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with bad token, got %d", w.Code)
	}

	token, err := a.GenerateToken("admin")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	req = httptest.NewRequest(http.MethodGet, "/api/secret", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 with valid token, got %d: %s", w.Code, w.Body)
	}
}

func TestValidHostname(t *testing.T) {
	cases := []struct {
		host string
		ok   bool
	}{
		{"8.8.8.8", true},
		{"example.com", true},
		{"my-host.internal", true},
		{"not a host!", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := ValidHostname(tc.host); got != tc.ok {
			t.Errorf("ValidHostname(%q) = %v, want %v", tc.host, got, tc.ok)
		}
	}
}

func TestSanitizeString(t *testing.T) {
	if got := SanitizeString("  web-1\x00\n  "); got != "web-1" {
		t.Fatalf("unexpected sanitized value %q", got)
	}
}
