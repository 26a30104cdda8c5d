package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func protectedRouter(m *Middleware, extra ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	handlers := append([]gin.HandlerFunc{m.AuthRequired()}, extra...)
	handlers = append(handlers, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": currentUserID(c), "role": c.GetString(ctxRole)})
	})
	r.GET("/whoami", handlers...)
	return r
}

func TestAuthRequired(t *testing.T) {
	m := NewMiddleware("secret")
	r := protectedRouter(m)
	valid := signToken(t, "secret", jwt.MapClaims{"user_id": 7, "role": "user", "exp": time.Now().Add(time.Hour).Unix()})

	tests := []struct {
		name   string
		header string
		query  string
		want   int
	}{
		{"missing token", "", "", http.StatusUnauthorized},
		{"wrong secret", "Bearer " + signToken(t, "other", jwt.MapClaims{"user_id": 7}), "", http.StatusUnauthorized},
		{"expired", "Bearer " + signToken(t, "secret", jwt.MapClaims{"user_id": 7, "exp": time.Now().Add(-time.Hour).Unix()}), "", http.StatusUnauthorized},
		{"no user id", "Bearer " + signToken(t, "secret", jwt.MapClaims{"role": "user"}), "", http.StatusUnauthorized},
		{"header", "Bearer " + valid, "", http.StatusOK},
		{"query for websockets", "", "?token=" + valid, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/whoami"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Fatalf("got %d, want %d: %s", w.Code, tt.want, w.Body.String())
			}
			if tt.want == http.StatusOK && w.Body.String() != `{"role":"user","user_id":7}` {
				t.Errorf("unexpected identity %s", w.Body.String())
			}
		})
	}
}

func TestAdminRequired(t *testing.T) {
	m := NewMiddleware("secret")
	r := protectedRouter(m, m.AdminRequired())

	for role, want := range map[string]int{"user": http.StatusForbidden, "admin": http.StatusOK} {
		t.Run(role, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
			req.Header.Set("Authorization", "Bearer "+signToken(t, "secret", jwt.MapClaims{"user_id": 1, "role": role}))
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != want {
				t.Errorf("got %d, want %d", w.Code, want)
			}
		})
	}
}

func TestRateLimitPerUser(t *testing.T) {
	m := NewMiddleware("secret")
	r := protectedRouter(m, m.RateLimitPerUser(0.001, 1))

	call := func(userID int) int {
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set("Authorization", "Bearer "+signToken(t, "secret", jwt.MapClaims{"user_id": userID}))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	if got := call(1); got != http.StatusOK {
		t.Fatalf("first request got %d", got)
	}
	if got := call(1); got != http.StatusTooManyRequests {
		t.Errorf("second request got %d, want 429", got)
	}
	if got := call(2); got != http.StatusOK {
		t.Errorf("other users must have their own bucket, got %d", got)
	}
}

func TestSecurityHeadersAndSizeLimit(t *testing.T) {
	r := gin.New()
	r.Use(SecurityHeaders(), RequestSizeLimiter(8))
	r.POST("/echo", func(c *gin.Context) {
		var body map[string]string
		if err := c.ShouldBindJSON(&body); err != nil {
			c.Status(http.StatusRequestEntityTooLarge)
			return
		}
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(`{"k":"far too long"}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("oversized body accepted: %d", w.Code)
	}
	if w.Header().Get("X-Frame-Options") != "DENY" || w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Errorf("security headers missing: %v", w.Header())
	}
}

func TestValidators(t *testing.T) {
	if !ValidColor("#3b82f6") || ValidColor("blue") || ValidColor("#12345") {
		t.Error("ValidColor")
	}
	if !ValidSessionID("3f1c-a_b") || ValidSessionID("") || ValidSessionID("../etc") {
		t.Error("ValidSessionID")
	}
	if got := SanitizeString("  hola\x00 "); got != "hola" {
		t.Errorf("SanitizeString = %q", got)
	}
	if got := TruncateString("mañana", 3); got != "mañ" {
		t.Errorf("TruncateString = %q", got)
	}
	if !ValidateLength("ñññ", 1, 3) {
		t.Error("ValidateLength must count runes")
	}
}
