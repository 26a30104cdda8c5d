package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"

	"project_citabot/internal/entities"
	"project_citabot/internal/infrastructure"
	"project_citabot/internal/usecases"
)

type memUsers struct {
	mu    sync.Mutex
	users []*entities.User
}

func (m *memUsers) Create(_ context.Context, u *entities.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u.ID = len(m.users) + 1
	cp := *u
	m.users = append(m.users, &cp)
	return nil
}

func (m *memUsers) find(fn func(*entities.User) bool) *entities.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if fn(u) {
			cp := *u
			return &cp
		}
	}
	return nil
}

func (m *memUsers) GetByUsername(_ context.Context, username string) (*entities.User, error) {
	return m.find(func(u *entities.User) bool { return u.Username == username }), nil
}

func (m *memUsers) GetByID(_ context.Context, id int) (*entities.User, error) {
	return m.find(func(u *entities.User) bool { return u.ID == id }), nil
}

func (m *memUsers) GetAllUsers(context.Context) ([]entities.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]entities.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, *u)
	}
	return out, nil
}

func (m *memUsers) GetStats(context.Context) (*entities.PlatformStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := &entities.PlatformStats{TotalUsers: len(m.users)}
	for _, u := range m.users {
		if u.IsActive {
			st.ActiveUsers++
		}
		if u.WAEnabled {
			st.WAEnabledUsers++
		}
		if u.Role == entities.RoleAdmin {
			st.AdminCount++
		}
	}
	return st, nil
}

func (m *memUsers) update(id int, fn func(*entities.User)) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ID == id {
			fn(u)
			return true, nil
		}
	}
	return false, nil
}

func (m *memUsers) UpdateUserStatus(_ context.Context, id int, active bool) (bool, error) {
	return m.update(id, func(u *entities.User) { u.IsActive = active })
}

func (m *memUsers) UpdateWAEnabled(_ context.Context, id int, enabled bool) (bool, error) {
	return m.update(id, func(u *entities.User) { u.WAEnabled = enabled })
}

func (m *memUsers) UpdateUserLimits(_ context.Context, id int, daily, monthly int) (bool, error) {
	return m.update(id, func(u *entities.User) { u.DailyLimit, u.MonthlyLimit = daily, monthly })
}

func (m *memUsers) UpdateEmail(_ context.Context, id int, email string) error {
	_, err := m.update(id, func(u *entities.User) { u.Email = email })
	return err
}

type prefixTranslator struct {
	calls int
}

func (p *prefixTranslator) Translate(_ context.Context, texts []string, _, target string) ([]string, error) {
	p.calls++
	out := make([]string, len(texts))
	for i, t := range texts {
		out[i] = "[" + target + "] " + t
	}
	return out, nil
}

type testServer struct {
	router *gin.Engine
	auth   *usecases.AuthUsecase
	users  *memUsers
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	return newTestServerWith(t, nil)
}

// newTestServerWith lets a test swap services before routes are built.
func newTestServerWith(t *testing.T, configure func(*Services)) *testServer {
	t.Helper()
	users := &memUsers{}
	auth := usecases.NewAuthUsecase(users, "test-secret")
	cache := infrastructure.NewMemoryCache()

	svc := Services{
		Auth:        auth,
		Users:       users,
		Billing:     usecases.NewBillingService(nil, nil, users, false, "https://app.example.com"),
		Calendar:    usecases.NewCalendarService(nil, nil, cache),
		Translation: usecases.NewTranslationService(&prefixTranslator{}, cache),
		Videos:      usecases.NewVideoService(nil, nil, nil, nil),
		Hub:         infrastructure.NewHub(),
		FrontendURL: "https://app.example.com",
	}
	if configure != nil {
		configure(&svc)
	}
	r := gin.New()
	SetupRoutes(r, svc, NewMiddleware("test-secret"))
	return &testServer{router: r, auth: auth, users: users}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = strings.NewReader(string(raw))
	} else {
		reader = strings.NewReader("")
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) tokenFor(t *testing.T, username string) string {
	t.Helper()
	user, _ := s.users.GetByUsername(context.Background(), username)
	if user == nil {
		t.Fatalf("no user %s", username)
	}
	token, err := s.auth.IssueToken(user)
	if err != nil {
		t.Fatal(err)
	}
	return token
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return out
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("wrapped: %w", usecases.ErrInvalidInput), http.StatusBadRequest},
		{usecases.ErrInvalidSignature, http.StatusBadRequest},
		{usecases.ErrUnauthorized, http.StatusUnauthorized},
		{usecases.ErrForbidden, http.StatusForbidden},
		{usecases.ErrNotFound, http.StatusNotFound},
		{usecases.ErrConflict, http.StatusConflict},
		{usecases.ErrSlotUnavailable, http.StatusConflict},
		{usecases.ErrYouTubeUnavailable, http.StatusUnprocessableEntity},
		{usecases.ErrNotConfigured, http.StatusServiceUnavailable},
		{usecases.ErrPersistence, http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			if got := statusFor(tt.err); got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	if w := s.do(t, http.MethodGet, "/health", "", nil); w.Code != http.StatusOK {
		t.Errorf("health returned %d", w.Code)
	}
}

func TestRegisterLoginMe(t *testing.T) {
	s := newTestServer(t)
	creds := map[string]string{"username": "clinica_sol", "password": "secreto123"}

	if w := s.do(t, http.MethodPost, "/api/auth/register", "", creds); w.Code != http.StatusCreated {
		t.Fatalf("register returned %d: %s", w.Code, w.Body.String())
	}
	if w := s.do(t, http.MethodPost, "/api/auth/register", "", creds); w.Code != http.StatusConflict {
		t.Errorf("duplicate register returned %d", w.Code)
	}
	if w := s.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{"username": "x", "password": "secreto123"}); w.Code != http.StatusBadRequest {
		t.Errorf("invalid username returned %d", w.Code)
	}

	w := s.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"username": "clinica_sol", "password": "mala"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("bad password returned %d", w.Code)
	}

	w = s.do(t, http.MethodPost, "/api/auth/login", "", creds)
	if w.Code != http.StatusOK {
		t.Fatalf("login returned %d: %s", w.Code, w.Body.String())
	}
	token, _ := decode(t, w)["token"].(string)
	if token == "" {
		t.Fatal("no token in login response")
	}

	w = s.do(t, http.MethodGet, "/api/me", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("me returned %d", w.Code)
	}
	me := decode(t, w)
	if me["username"] != "clinica_sol" || me["role"] != entities.RoleUser {
		t.Errorf("unexpected me %v", me)
	}
	if _, leaked := me["PasswordHash"]; leaked {
		t.Error("password hash exposed")
	}

	if w := s.do(t, http.MethodGet, "/api/admin/stats", token, nil); w.Code != http.StatusForbidden {
		t.Errorf("non admin reached admin route: %d", w.Code)
	}
}

func TestAdminUserManagement(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	if _, err := s.auth.EnsureAdmin(ctx, "admin", "admin123"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.auth.Register(ctx, "clinica", "secreto123"); err != nil {
		t.Fatal(err)
	}
	token := s.tokenFor(t, "admin")

	w := s.do(t, http.MethodGet, "/api/admin/stats", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("stats returned %d", w.Code)
	}
	if st := decode(t, w); st["total_users"] != float64(2) || st["admin_count"] != float64(1) {
		t.Errorf("unexpected stats %v", st)
	}

	if w := s.do(t, http.MethodPut, "/api/admin/users/1/status", token, map[string]bool{"is_active": false}); w.Code != http.StatusBadRequest {
		t.Errorf("admin disabled itself: %d", w.Code)
	}
	if w := s.do(t, http.MethodPut, "/api/admin/users/2/status", token, map[string]bool{"is_active": false}); w.Code != http.StatusOK {
		t.Errorf("disable user returned %d", w.Code)
	}
	if u, _ := s.users.GetByID(ctx, 2); u.IsActive {
		t.Error("user still active")
	}
	if w := s.do(t, http.MethodPut, "/api/admin/users/99/status", token, map[string]bool{"is_active": true}); w.Code != http.StatusNotFound {
		t.Errorf("unknown user returned %d", w.Code)
	}

	if w := s.do(t, http.MethodPut, "/api/admin/users/2/limits", token, map[string]int{"daily_limit": -1}); w.Code != http.StatusBadRequest {
		t.Errorf("negative limit returned %d", w.Code)
	}
	if w := s.do(t, http.MethodPut, "/api/admin/users/2/limits", token, map[string]int{"daily_limit": 100, "monthly_limit": 2000}); w.Code != http.StatusOK {
		t.Errorf("limits returned %d", w.Code)
	}
	if u, _ := s.users.GetByID(ctx, 2); u.DailyLimit != 100 || u.MonthlyLimit != 2000 {
		t.Errorf("limits not stored: %+v", u)
	}

	if w := s.do(t, http.MethodPost, "/api/admin/users/2/disconnect-wa", token, nil); w.Code != http.StatusServiceUnavailable {
		t.Errorf("disconnect without whatsapp returned %d", w.Code)
	}

	w = s.do(t, http.MethodGet, "/api/admin/system", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("system returned %d", w.Code)
	}
	ytdlp, _ := decode(t, w)["ytdlp"].(map[string]any)
	if ytdlp["available"] != false {
		t.Errorf("unexpected ytdlp status %v", ytdlp)
	}
}

func TestTranslateEndpoints(t *testing.T) {
	s := newTestServer(t)
	if _, err := s.auth.Register(context.Background(), "web", "secreto123"); err != nil {
		t.Fatal(err)
	}
	token := s.tokenFor(t, "web")

	w := s.do(t, http.MethodPost, "/api/translate", token, map[string]any{
		"texts":          []string{"Reserva tu cita", "42 €"},
		"targetLanguage": "en",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("translate returned %d: %s", w.Code, w.Body.String())
	}
	var res struct {
		Translations []usecases.Translation `json:"translations"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if len(res.Translations) != 2 || res.Translations[0].TranslatedText != "[en] Reserva tu cita" || res.Translations[1].WasTranslated {
		t.Errorf("unexpected translations %+v", res.Translations)
	}

	w = s.do(t, http.MethodPost, "/api/translate/json", token, map[string]any{
		"content":        map[string]any{"hero": map[string]any{"title": "Bienvenido a la clínica", "cta": "https://example.com"}},
		"targetLanguage": "fr",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("translate json returned %d: %s", w.Code, w.Body.String())
	}
	out := decode(t, w)
	hero := out["content"].(map[string]any)["hero"].(map[string]any)
	if hero["title"] != "[fr] Bienvenido a la clínica" || hero["cta"] != "https://example.com" || out["translated"] != float64(1) {
		t.Errorf("unexpected document %v", out)
	}

	if w := s.do(t, http.MethodPost, "/api/translate", token, map[string]any{"texts": []string{"hola"}}); w.Code != http.StatusBadRequest {
		t.Errorf("missing target returned %d", w.Code)
	}
}

func TestUnconfiguredIntegrations(t *testing.T) {
	s := newTestServer(t)
	if _, err := s.auth.Register(context.Background(), "clinica", "secreto123"); err != nil {
		t.Fatal(err)
	}
	token := s.tokenFor(t, "clinica")

	if w := s.do(t, http.MethodPost, "/api/billing/webhook", "", map[string]string{"id": "evt_1"}); w.Code != http.StatusServiceUnavailable {
		t.Errorf("webhook without stripe returned %d", w.Code)
	}
	if w := s.do(t, http.MethodPost, "/api/billing/portal", token, nil); w.Code != http.StatusServiceUnavailable {
		t.Errorf("portal without stripe returned %d", w.Code)
	}
	if w := s.do(t, http.MethodGet, "/api/google/auth-url", token, nil); w.Code != http.StatusServiceUnavailable {
		t.Errorf("google without oauth returned %d", w.Code)
	}
	if w := s.do(t, http.MethodPost, "/api/whatsapp/connect", token, nil); w.Code != http.StatusServiceUnavailable {
		t.Errorf("whatsapp without manager returned %d", w.Code)
	}
	w := s.do(t, http.MethodGet, "/api/whatsapp/status", token, nil)
	if w.Code != http.StatusOK || decode(t, w)["connected"] != false {
		t.Errorf("unexpected whatsapp status %d %s", w.Code, w.Body.String())
	}
}

func TestGoogleCallbackRedirects(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodGet, "/api/google/callback?state=x&code=y", "", nil)
	if w.Code != http.StatusFound {
		t.Fatalf("callback returned %d", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "https://app.example.com/settings?google=error" {
		t.Errorf("unexpected redirect %s", loc)
	}
}

func TestWebChatValidation(t *testing.T) {
	s := newTestServer(t)
	tests := []struct {
		name   string
		method string
		path   string
		body   any
	}{
		{"bad user id", http.MethodPost, "/api/public/webchat/abc/messages", map[string]string{"content": "hola"}},
		{"bad session", http.MethodPost, "/api/public/webchat/1/messages", map[string]string{"session_id": "../x", "content": "hola"}},
		{"empty content", http.MethodPost, "/api/public/webchat/1/messages", map[string]string{"content": ""}},
		{"bad history session", http.MethodGet, "/api/public/webchat/1/sessions/a.b/messages", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := s.do(t, tt.method, tt.path, "", tt.body); w.Code != http.StatusBadRequest {
				t.Errorf("got %d, want 400", w.Code)
			}
		})
	}
}
