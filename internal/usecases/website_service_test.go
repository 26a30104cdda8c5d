package usecases

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"project_citabot/internal/entities"
)

type memWebsites struct {
	mu     sync.Mutex
	sites  map[int64]entities.Website
	nextID int64
}

func newMemWebsites() *memWebsites { return &memWebsites{sites: map[int64]entities.Website{}} }

func (m *memWebsites) Create(_ context.Context, w *entities.Website) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	w.ID = m.nextID
	w.CreatedAt = time.Unix(m.nextID, 0)
	w.UpdatedAt = w.CreatedAt
	m.sites[w.ID] = *w
	return nil
}

func (m *memWebsites) Update(_ context.Context, w *entities.Website) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.sites[w.ID]
	if !ok || old.UserID != w.UserID {
		return false, nil
	}
	w.IsPublished = old.IsPublished
	m.sites[w.ID] = *w
	return true, nil
}

func (m *memWebsites) Delete(_ context.Context, userID int, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if w, ok := m.sites[id]; ok && w.UserID == userID {
		delete(m.sites, id)
		return true, nil
	}
	return false, nil
}

func (m *memWebsites) GetByID(_ context.Context, userID int, id int64) (*entities.Website, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if w, ok := m.sites[id]; ok && w.UserID == userID {
		return &w, nil
	}
	return nil, nil
}

func (m *memWebsites) List(_ context.Context, userID int) ([]entities.Website, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []entities.Website{}
	for _, w := range m.sites {
		if w.UserID == userID {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *memWebsites) SlugTaken(_ context.Context, userID int, slug string, exceptID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, w := range m.sites {
		if w.UserID == userID && w.Slug == slug && w.ID != exceptID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memWebsites) SetPublished(_ context.Context, userID int, id int64, published bool) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.sites[id]
	if !ok || w.UserID != userID {
		return false, nil
	}
	w.IsPublished = published
	m.sites[id] = w
	return true, nil
}

func (m *memWebsites) find(match func(entities.Website) bool) *entities.Website {
	m.mu.Lock()
	defer m.mu.Unlock()
	var best *entities.Website
	for _, w := range m.sites {
		if w.IsPublished && match(w) && (best == nil || w.ID < best.ID) {
			cp := w
			best = &cp
		}
	}
	return best
}

func (m *memWebsites) GetPublished(_ context.Context, userID int, slug string) (*entities.Website, error) {
	return m.find(func(w entities.Website) bool { return w.UserID == userID && w.Slug == slug }), nil
}

func (m *memWebsites) GetPublishedBySlug(_ context.Context, slug string) (*entities.Website, error) {
	return m.find(func(w entities.Website) bool { return w.Slug == slug }), nil
}

func (m *memWebsites) GetPublishedByDomain(_ context.Context, domain string) (*entities.Website, error) {
	return m.find(func(w entities.Website) bool { return w.CustomDomain == domain }), nil
}

func strp(s string) *string { return &s }

func newWebsiteFixture(tr *fakeTranslator) (*WebsiteService, *memWebsites) {
	users := newMemUsers(&entities.User{Username: "clinica", IsActive: true}, &entities.User{Username: "sol", IsActive: true})
	store := newMemWebsites()
	var translation *TranslationService
	if tr != nil {
		translation = NewTranslationService(tr, nil)
	}
	svc := NewWebsiteService(store, users, translation, "uniclick.io")
	svc.pause = 0
	return svc, store
}

func TestSlugify(t *testing.T) {
	tests := map[string]string{
		"Clínica Dental Sonrisa": "clinica-dental-sonrisa",
		"  Peluquería & Spa!! ":  "peluqueria-spa",
		"Año 2026":               "ano-2026",
	}
	for in, want := range tests {
		if got := Slugify(in); got != want {
			t.Errorf("Slugify(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestWebsiteCreate(t *testing.T) {
	ctx := context.Background()
	svc, _ := newWebsiteFixture(nil)

	t.Run("requires name and description", func(t *testing.T) {
		_, err := svc.Create(ctx, 1, WebsiteInput{BusinessName: strp("Clínica")})
		if !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("expected invalid input, got %v", err)
		}
	})

	t.Run("rejects bad slug", func(t *testing.T) {
		_, err := svc.Create(ctx, 1, WebsiteInput{BusinessName: strp("A"), BusinessDescription: strp("B"), Slug: strp("Mi Web")})
		if err == nil || err.Error() != "El slug contiene caracteres no válidos" {
			t.Fatalf("unexpected error %v", err)
		}
	})

	t.Run("rejects bad json", func(t *testing.T) {
		_, err := svc.Create(ctx, 1, WebsiteInput{BusinessName: strp("A"), BusinessDescription: strp("B"), Sections: json.RawMessage(`{"a":1}`)})
		if !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("expected invalid sections, got %v", err)
		}
	})

	d, err := svc.Create(ctx, 1, WebsiteInput{BusinessName: strp("Clínica Sonrisa"), BusinessDescription: strp("Dentistas en Madrid")})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if d.Slug != "clinica-sonrisa" || string(d.Sections) != "[]" || string(d.SocialMedia) != "{}" || d.MainVideo != nil {
		t.Errorf("unexpected defaults %+v", d.Website)
	}
	if d.OwnerUsername != "clinica" || d.PublishURL != "https://clinica.uniclick.io/web/clinica-sonrisa" {
		t.Errorf("unexpected owner info %q %q", d.OwnerUsername, d.PublishURL)
	}

	t.Run("duplicate slug", func(t *testing.T) {
		_, err := svc.Create(ctx, 1, WebsiteInput{BusinessName: strp("Otra"), BusinessDescription: strp("x"), Slug: strp("clinica-sonrisa")})
		var taken *SlugTakenError
		if !errors.As(err, &taken) || !errors.Is(err, ErrConflict) {
			t.Fatalf("expected slug conflict, got %v", err)
		}
		if !strings.HasPrefix(taken.Suggestion, "clinica-sonrisa-") {
			t.Errorf("unexpected suggestion %q", taken.Suggestion)
		}
	})

	t.Run("same slug for another user", func(t *testing.T) {
		if _, err := svc.Create(ctx, 2, WebsiteInput{BusinessName: strp("Clínica Sonrisa"), BusinessDescription: strp("x")}); err != nil {
			t.Fatalf("slugs are per user: %v", err)
		}
	})
}

func TestWebsiteUpdateAndSlugCheck(t *testing.T) {
	ctx := context.Background()
	svc, _ := newWebsiteFixture(nil)
	a, _ := svc.Create(ctx, 1, WebsiteInput{BusinessName: strp("Uno"), BusinessDescription: strp("Primera web")})
	b, _ := svc.Create(ctx, 1, WebsiteInput{BusinessName: strp("Dos"), BusinessDescription: strp("Segunda web")})

	if _, err := svc.Update(ctx, 1, b.ID, WebsiteInput{Slug: strp(a.Slug)}); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if _, err := svc.Update(ctx, 2, b.ID, WebsiteInput{}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("other user's website must not be found, got %v", err)
	}

	d, err := svc.Update(ctx, 1, b.ID, WebsiteInput{
		BusinessDescription: strp("Nueva descripción"),
		ThemeColors:         json.RawMessage(`{"primary":"#0af"}`),
		CustomDomain:        strp(" WWW.Sonrisa.es "),
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if d.BusinessName != "Dos" || d.BusinessDescription != "Nueva descripción" || d.CustomDomain != "www.sonrisa.es" {
		t.Errorf("unexpected update %+v", d.Website)
	}
	if string(d.ThemeColors) != `{"primary":"#0af"}` || string(d.Sections) != "[]" {
		t.Errorf("json fields not kept %s %s", d.ThemeColors, d.Sections)
	}

	chk, err := svc.CheckSlug(ctx, 1, "uno")
	if err != nil || chk.Available || len(chk.Suggestions) != 2 {
		t.Errorf("unexpected check %+v, %v", chk, err)
	}
	chk, _ = svc.CheckSlug(ctx, 1, "tres")
	if !chk.Available || len(chk.Suggestions) != 0 {
		t.Errorf("unexpected check %+v", chk)
	}

	if err := svc.Delete(ctx, 1, a.ID); err != nil {
		t.Fatal(err)
	}
	if err := svc.Delete(ctx, 1, a.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete: %v", err)
	}
	list, _ := svc.List(ctx, 1)
	if len(list) != 1 || list[0].ID != b.ID {
		t.Errorf("unexpected list %+v", list)
	}
}

func TestWebsitePublicAccess(t *testing.T) {
	ctx := context.Background()
	svc, _ := newWebsiteFixture(nil)
	d, _ := svc.Create(ctx, 1, WebsiteInput{
		BusinessName:        strp("Clínica Sonrisa"),
		BusinessDescription: strp("Dentistas"),
		CustomDomain:        strp("sonrisa.es"),
	})

	if _, err := svc.Public(ctx, "clinica", d.Slug); !errors.Is(err, ErrNotFound) {
		t.Fatalf("draft must not be public, got %v", err)
	}
	if _, err := svc.Publish(ctx, 2, d.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("publishing another user's site: %v", err)
	}

	pub, err := svc.Publish(ctx, 1, d.ID)
	if err != nil || !pub.IsPublished || pub.PublishURL != "https://clinica.uniclick.io/web/clinica-sonrisa" {
		t.Fatalf("publish: %+v, %v", pub, err)
	}

	w, err := svc.Public(ctx, "clinica", d.Slug)
	if err != nil || w.BusinessName != "Clínica Sonrisa" || w.OwnerUsername != "" {
		t.Errorf("public: %+v, %v", w, err)
	}
	if _, err := svc.Public(ctx, "nadie", d.Slug); err == nil || err.Error() != "Usuario no encontrado" {
		t.Errorf("unknown user: %v", err)
	}

	w, err = svc.PublicBySlug(ctx, d.Slug)
	if err != nil || w.OwnerUsername != "clinica" {
		t.Errorf("by slug: %+v, %v", w, err)
	}
	if name, err := svc.FindUsername(ctx, d.Slug); err != nil || name != "clinica" {
		t.Errorf("find username: %q, %v", name, err)
	}
	if _, err := svc.FindUsername(ctx, " "); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("empty slug: %v", err)
	}

	if w, err := svc.ByDomain(ctx, "Sonrisa.es:443"); err != nil || w.BusinessName != "Clínica Sonrisa" {
		t.Errorf("by domain: %+v, %v", w, err)
	}
	if _, err := svc.ByDomain(ctx, "otra.es"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown domain: %v", err)
	}

	if err := svc.Unpublish(ctx, 1, d.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.PublicBySlug(ctx, d.Slug); !errors.Is(err, ErrNotFound) {
		t.Errorf("unpublished site still served: %v", err)
	}
}

func TestWebsiteTranslate(t *testing.T) {
	ctx := context.Background()
	tr := &fakeTranslator{}
	svc, store := newWebsiteFixture(tr)
	d, _ := svc.Create(ctx, 1, WebsiteInput{
		BusinessName:        strp("Clínica Sonrisa"),
		BusinessDescription: strp("Dentistas en Madrid"),
		Sections:            json.RawMessage(`[{"type":"hero","title":"Reserva tu cita hoy"}]`),
		SocialMedia:         json.RawMessage(`{"instagram":"https://instagram.com/sonrisa"}`),
	})
	_, _ = svc.Publish(ctx, 1, d.ID)

	res, err := svc.Translate(ctx, 1, d.ID, "en", "", true)
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	if res.Action != "created_new" || res.OriginalID != d.ID || res.Slug != "clinica-sonrisa-en" || res.Name != "[en] Clínica Sonrisa" {
		t.Errorf("unexpected result %+v", res)
	}
	copyW, _ := store.GetByID(ctx, 1, res.WebsiteID)
	if copyW.IsPublished || copyW.BusinessDescription != "[en] Dentistas en Madrid" {
		t.Errorf("unexpected copy %+v", copyW)
	}
	var sections []map[string]string
	_ = json.Unmarshal(copyW.Sections, &sections)
	if len(sections) != 1 || sections[0]["title"] != "[en] Reserva tu cita hoy" || sections[0]["type"] != "hero" {
		t.Errorf("sections not translated: %s", copyW.Sections)
	}
	if string(copyW.SocialMedia) != `{"instagram":"https://instagram.com/sonrisa"}` {
		t.Errorf("urls must stay untouched: %s", copyW.SocialMedia)
	}
	orig, _ := store.GetByID(ctx, 1, d.ID)
	if orig.BusinessName != "Clínica Sonrisa" {
		t.Errorf("original changed: %+v", orig)
	}

	res, err = svc.Translate(ctx, 1, d.ID, "fr", "es", false)
	if err != nil || res.Action != "updated_existing" || res.WebsiteID != d.ID {
		t.Fatalf("in place: %+v, %v", res, err)
	}
	orig, _ = store.GetByID(ctx, 1, d.ID)
	if orig.BusinessName != "[fr] Clínica Sonrisa" || !orig.IsPublished {
		t.Errorf("in-place translation lost state %+v", orig)
	}

	tr.err = errors.New("quota exceeded")
	if _, err := svc.Translate(ctx, 1, d.ID, "de", "", true); err == nil {
		t.Error("translator errors must be returned")
	}
}

func TestWebsiteTranslateAll(t *testing.T) {
	ctx := context.Background()
	tr := &fakeTranslator{}
	svc, _ := newWebsiteFixture(tr)
	for _, name := range []string{"Clínica Uno", "Clínica Dos"} {
		if _, err := svc.Create(ctx, 1, WebsiteInput{BusinessName: strp(name), BusinessDescription: strp("Dentistas en Madrid")}); err != nil {
			t.Fatal(err)
		}
	}

	res, err := svc.TranslateAll(ctx, 1, "en", "", true)
	if err != nil {
		t.Fatalf("translate all: %v", err)
	}
	if res.Total != 2 || len(res.Successful) != 2 || len(res.Failed) != 0 || res.SourceLanguage != "es" {
		t.Errorf("unexpected summary %+v", res)
	}
	list, _ := svc.List(ctx, 1)
	if len(list) != 4 {
		t.Errorf("expected 4 websites after copying, got %d", len(list))
	}

	if _, err := svc.TranslateAll(ctx, 2, "en", "", true); !errors.Is(err, ErrNotFound) {
		t.Errorf("user without sites: %v", err)
	}
	if _, err := svc.TranslateAll(ctx, 1, "english!", "", true); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("bad language: %v", err)
	}

	unconfigured, _ := newWebsiteFixture(nil)
	if _, err := unconfigured.TranslateAll(ctx, 1, "en", "", true); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("expected not configured, got %v", err)
	}
}
