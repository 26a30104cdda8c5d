package usecases

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"project_citabot/internal/entities"
)

var (
	slugPattern  = regexp.MustCompile(`^[a-z0-9-]+$`)
	slugSanitize = regexp.MustCompile(`[^a-z0-9]+`)
	slugAccents  = strings.NewReplacer("á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u", "ü", "u", "ñ", "n")
)

// SlugTakenError is returned when the owner already has a website with the
// requested slug.
type SlugTakenError struct {
	Msg        string
	Suggestion string
}

func (e *SlugTakenError) Error() string { return e.Msg }

func (e *SlugTakenError) Unwrap() error { return ErrConflict }

// WebsiteInput is the builder payload. Nil fields are left unchanged on
// update.
type WebsiteInput struct {
	BusinessName        *string         `json:"businessName"`
	BusinessDescription *string         `json:"businessDescription"`
	Slug                *string         `json:"slug"`
	Sections            json.RawMessage `json:"sections"`
	SocialMedia         json.RawMessage `json:"socialMedia"`
	MainVideo           json.RawMessage `json:"mainVideo"`
	ThemeColors         json.RawMessage `json:"themeColors"`
	CustomDomain        *string         `json:"customDomain"`
}

// SlugCheck answers whether a slug is free for the user.
type SlugCheck struct {
	Available   bool     `json:"available"`
	Suggestions []string `json:"suggestions"`
}

// WebsiteService manages the one-page business sites and serves the
// published ones.
type WebsiteService struct {
	store       WebsiteStore
	users       UserStore
	translation *TranslationService
	siteDomain  string

	now   func() time.Time
	pause time.Duration // between sites in TranslateAll
}

func NewWebsiteService(store WebsiteStore, users UserStore, translation *TranslationService, siteDomain string) *WebsiteService {
	return &WebsiteService{
		store:       store,
		users:       users,
		translation: translation,
		siteDomain:  siteDomain,
		now:         time.Now,
		pause:       time.Second,
	}
}

// Slugify turns a business name into a URL slug.
func Slugify(name string) string {
	s := slugAccents.Replace(strings.ToLower(strings.TrimSpace(name)))
	return strings.Trim(slugSanitize.ReplaceAllString(s, "-"), "-")
}

func (s *WebsiteService) SuggestSlugs(slug string) []string {
	return []string{
		fmt.Sprintf("%s-%d", slug, s.now().UnixMilli()),
		slug + "-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:6],
	}
}

func (s *WebsiteService) slugTaken(ctx context.Context, userID int, slug string, exceptID int64, msg string) error {
	taken, err := s.store.SlugTaken(ctx, userID, slug, exceptID)
	if err != nil {
		return err
	}
	if taken {
		return &SlugTakenError{Msg: msg, Suggestion: s.SuggestSlugs(slug)[0]}
	}
	return nil
}

// jsonShape checks raw is a JSON value of the wanted kind ('[' or '{').
// Empty input yields def.
func jsonShape(raw json.RawMessage, kind byte, field string, def string) (json.RawMessage, error) {
	t := strings.TrimSpace(string(raw))
	if t == "" || t == "null" {
		return json.RawMessage(def), nil
	}
	if !json.Valid([]byte(t)) || t[0] != kind {
		return nil, invalid(fmt.Sprintf("%s tiene un formato no válido", field))
	}
	return json.RawMessage(t), nil
}

func normalizeDomain(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return strings.TrimSuffix(host, ".")
}

// apply copies the set fields of in onto w.
func (in WebsiteInput) apply(w *entities.Website) error {
	if in.BusinessName != nil {
		w.BusinessName = strings.TrimSpace(*in.BusinessName)
	}
	if in.BusinessDescription != nil {
		w.BusinessDescription = strings.TrimSpace(*in.BusinessDescription)
	}
	if in.Slug != nil {
		w.Slug = strings.TrimSpace(*in.Slug)
	}
	var err error
	if in.Sections != nil || w.Sections == nil {
		if w.Sections, err = jsonShape(in.Sections, '[', "sections", "[]"); err != nil {
			return err
		}
	}
	if in.SocialMedia != nil || w.SocialMedia == nil {
		if w.SocialMedia, err = jsonShape(in.SocialMedia, '{', "socialMedia", "{}"); err != nil {
			return err
		}
	}
	if in.ThemeColors != nil || w.ThemeColors == nil {
		if w.ThemeColors, err = jsonShape(in.ThemeColors, '{', "themeColors", "{}"); err != nil {
			return err
		}
	}
	if in.MainVideo != nil {
		if w.MainVideo, err = jsonShape(in.MainVideo, '{', "mainVideo", "null"); err != nil {
			return err
		}
		if string(w.MainVideo) == "null" {
			w.MainVideo = nil
		}
	}
	if in.CustomDomain != nil {
		w.CustomDomain = normalizeDomain(*in.CustomDomain)
	}
	return nil
}

func (s *WebsiteService) Create(ctx context.Context, userID int, in WebsiteInput) (*entities.WebsiteDetail, error) {
	w := &entities.Website{UserID: userID}
	if err := in.apply(w); err != nil {
		return nil, err
	}
	if w.BusinessName == "" || w.BusinessDescription == "" {
		return nil, invalid("Nombre y descripción son requeridos")
	}
	if w.Slug == "" {
		w.Slug = Slugify(w.BusinessName)
	}
	if !slugPattern.MatchString(w.Slug) {
		return nil, invalid("El slug contiene caracteres no válidos")
	}
	if err := s.slugTaken(ctx, userID, w.Slug, 0, "Ya tienes una web con ese nombre"); err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, w); err != nil {
		return nil, fmt.Errorf("create website: %w", err)
	}
	log.Info().Int("user_id", userID).Int64("website_id", w.ID).Str("slug", w.Slug).Msg("website created")
	return s.detail(ctx, w), nil
}

func (s *WebsiteService) Update(ctx context.Context, userID int, id int64, in WebsiteInput) (*entities.WebsiteDetail, error) {
	w, err := s.store.GetByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if w == nil {
		return nil, notFound("Web no encontrada")
	}
	oldSlug := w.Slug
	if err := in.apply(w); err != nil {
		return nil, err
	}
	if w.BusinessName == "" || w.BusinessDescription == "" {
		return nil, invalid("Nombre y descripción son requeridos")
	}
	if w.Slug != oldSlug {
		if !slugPattern.MatchString(w.Slug) {
			return nil, invalid("El slug contiene caracteres no válidos")
		}
		if err := s.slugTaken(ctx, userID, w.Slug, id, "Ya tienes otra web con ese nombre"); err != nil {
			return nil, err
		}
	}
	ok, err := s.store.Update(ctx, w)
	if err != nil {
		return nil, fmt.Errorf("update website: %w", err)
	}
	if !ok {
		return nil, notFound("Web no encontrada")
	}
	return s.detail(ctx, w), nil
}

func (s *WebsiteService) Delete(ctx context.Context, userID int, id int64) error {
	ok, err := s.store.Delete(ctx, userID, id)
	if err != nil {
		return err
	}
	if !ok {
		return notFound("Web no encontrada")
	}
	return nil
}

func (s *WebsiteService) Get(ctx context.Context, userID int, id int64) (*entities.WebsiteDetail, error) {
	w, err := s.store.GetByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if w == nil {
		return nil, notFound("Web no encontrada")
	}
	return s.detail(ctx, w), nil
}

func (s *WebsiteService) List(ctx context.Context, userID int) ([]entities.Website, error) {
	return s.store.List(ctx, userID)
}

// detail adds the owner and the public URL. A missing owner leaves both
// empty.
func (s *WebsiteService) detail(ctx context.Context, w *entities.Website) *entities.WebsiteDetail {
	d := &entities.WebsiteDetail{Website: *w}
	u, err := s.users.GetByID(ctx, w.UserID)
	if err != nil {
		log.Warn().Err(err).Int("user_id", w.UserID).Msg("website owner lookup failed")
	}
	if u != nil {
		d.OwnerUsername = u.Username
		d.PublishURL = s.publishURL(u.Username, w.Slug)
	}
	return d
}

func (s *WebsiteService) publishURL(username, slug string) string {
	return fmt.Sprintf("https://%s.%s/web/%s", username, s.siteDomain, slug)
}

func (s *WebsiteService) CheckSlug(ctx context.Context, userID int, slug string) (*SlugCheck, error) {
	taken, err := s.store.SlugTaken(ctx, userID, slug, 0)
	if err != nil {
		return nil, err
	}
	if !taken {
		return &SlugCheck{Available: true, Suggestions: []string{}}, nil
	}
	return &SlugCheck{Suggestions: s.SuggestSlugs(slug)}, nil
}

// Publish marks the website public and returns it with its URL.
func (s *WebsiteService) Publish(ctx context.Context, userID int, id int64) (*entities.WebsiteDetail, error) {
	w, err := s.store.GetByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if w == nil {
		return nil, notFound("Web no encontrada o no pertenece al usuario")
	}
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, notFound("Perfil de usuario no encontrado")
	}
	if _, err := s.store.SetPublished(ctx, userID, id, true); err != nil {
		return nil, fmt.Errorf("publish website: %w", err)
	}
	w.IsPublished = true
	log.Info().Int("user_id", userID).Int64("website_id", id).Msg("website published")
	return &entities.WebsiteDetail{Website: *w, OwnerUsername: u.Username, PublishURL: s.publishURL(u.Username, w.Slug)}, nil
}

func (s *WebsiteService) Unpublish(ctx context.Context, userID int, id int64) error {
	ok, err := s.store.SetPublished(ctx, userID, id, false)
	if err != nil {
		return err
	}
	if !ok {
		return notFound("Web no encontrada")
	}
	return nil
}

func publicView(w *entities.Website, owner string) *entities.PublicWebsite {
	return &entities.PublicWebsite{
		BusinessName:        w.BusinessName,
		BusinessDescription: w.BusinessDescription,
		ThemeColors:         w.ThemeColors,
		SocialMedia:         w.SocialMedia,
		MainVideo:           w.MainVideo,
		Sections:            w.Sections,
		IsPublished:         w.IsPublished,
		OwnerUsername:       owner,
	}
}

// Public returns the published website served at <username>/web/<slug>.
func (s *WebsiteService) Public(ctx context.Context, username, slug string) (*entities.PublicWebsite, error) {
	u, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, notFound("Usuario no encontrado")
	}
	w, err := s.store.GetPublished(ctx, u.ID, slug)
	if err != nil {
		return nil, err
	}
	if w == nil {
		return nil, notFound("Website no encontrado")
	}
	return publicView(w, ""), nil
}

func (s *WebsiteService) PublicBySlug(ctx context.Context, slug string) (*entities.PublicWebsite, error) {
	w, err := s.store.GetPublishedBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if w == nil {
		return nil, notFound("Website no encontrado")
	}
	owner := ""
	if u, err := s.users.GetByID(ctx, w.UserID); err == nil && u != nil {
		owner = u.Username
	}
	return publicView(w, owner), nil
}

// FindUsername returns the owner of the published website using slug.
func (s *WebsiteService) FindUsername(ctx context.Context, slug string) (string, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return "", invalid("Slug es requerido")
	}
	w, err := s.store.GetPublishedBySlug(ctx, slug)
	if err != nil {
		return "", err
	}
	if w == nil {
		return "", notFound("Website no encontrado")
	}
	u, err := s.users.GetByID(ctx, w.UserID)
	if err != nil {
		return "", err
	}
	if u == nil {
		return "", notFound("Perfil de usuario no encontrado")
	}
	return u.Username, nil
}

// ByDomain resolves a request Host to the published website bound to it.
func (s *WebsiteService) ByDomain(ctx context.Context, host string) (*entities.PublicWebsite, error) {
	domain := normalizeDomain(host)
	if domain == "" {
		return nil, invalid("Dominio requerido")
	}
	w, err := s.store.GetPublishedByDomain(ctx, domain)
	if err != nil {
		return nil, err
	}
	if w == nil {
		return nil, notFound("Dominio personalizado no encontrado")
	}
	return publicView(w, ""), nil
}

func translateRaw(ctx context.Context, t *TranslationService, raw json.RawMessage, target, source string) (json.RawMessage, error) {
	if len(raw) == 0 {
		return raw, nil
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	out, _, err := t.TranslateJSON(ctx, doc, target, source)
	if err != nil {
		return nil, err
	}
	return json.Marshal(out)
}

func (s *WebsiteService) translated(ctx context.Context, w *entities.Website, target, source string) (*entities.Website, error) {
	cp := *w
	name, _, err := s.translation.TranslateJSON(ctx, w.BusinessName, target, source)
	if err != nil {
		return nil, err
	}
	desc, _, err := s.translation.TranslateJSON(ctx, w.BusinessDescription, target, source)
	if err != nil {
		return nil, err
	}
	cp.BusinessName, cp.BusinessDescription = name.(string), desc.(string)
	for _, f := range []*json.RawMessage{&cp.Sections, &cp.SocialMedia, &cp.MainVideo} {
		if *f, err = translateRaw(ctx, s.translation, *f, target, source); err != nil {
			return nil, err
		}
	}
	return &cp, nil
}

// Translate translates a website into target. With createNew the result
// is a new unpublished website with slug <slug>-<target>; otherwise the
// website is updated in place.
func (s *WebsiteService) Translate(ctx context.Context, userID int, id int64, target, source string, createNew bool) (*entities.WebsiteTranslation, error) {
	if s.translation == nil {
		return nil, ErrNotConfigured
	}
	w, err := s.store.GetByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if w == nil {
		return nil, notFound("Web no encontrada")
	}
	return s.translateOne(ctx, w, target, source, createNew)
}

func (s *WebsiteService) translateOne(ctx context.Context, w *entities.Website, target, source string, createNew bool) (*entities.WebsiteTranslation, error) {
	if source == "" {
		source = defaultSourceLanguage
	}
	tw, err := s.translated(ctx, w, target, source)
	if err != nil {
		return nil, err
	}

	if !createNew {
		ok, err := s.store.Update(ctx, tw)
		if err != nil {
			return nil, fmt.Errorf("update website: %w", err)
		}
		if !ok {
			return nil, notFound("Web no encontrada")
		}
		return &entities.WebsiteTranslation{Action: "updated_existing", OriginalID: w.ID, WebsiteID: w.ID, Slug: tw.Slug, Name: tw.BusinessName}, nil
	}

	tw.ID = 0
	tw.IsPublished = false
	tw.CustomDomain = ""
	tw.Slug = w.Slug + "-" + strings.ToLower(target)
	taken, err := s.store.SlugTaken(ctx, w.UserID, tw.Slug, 0)
	if err != nil {
		return nil, err
	}
	if taken {
		tw.Slug = s.SuggestSlugs(tw.Slug)[1]
	}
	if err := s.store.Create(ctx, tw); err != nil {
		return nil, fmt.Errorf("create website: %w", err)
	}
	return &entities.WebsiteTranslation{Action: "created_new", OriginalID: w.ID, WebsiteID: tw.ID, Slug: tw.Slug, Name: tw.BusinessName}, nil
}

// TranslateAll translates every website of the user one by one. Failures
// are collected per website.
func (s *WebsiteService) TranslateAll(ctx context.Context, userID int, target, source string, createNew bool) (*entities.BulkWebsiteTranslation, error) {
	if s.translation == nil {
		return nil, ErrNotConfigured
	}
	if source == "" {
		source = defaultSourceLanguage
	}
	if _, err := checkLanguages(source, target); err != nil {
		return nil, err
	}
	sites, err := s.store.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(sites) == 0 {
		return nil, notFound("No tienes webs para traducir")
	}

	res := &entities.BulkWebsiteTranslation{
		Total:          len(sites),
		Successful:     []entities.WebsiteTranslation{},
		Failed:         []entities.WebsiteTranslationFailure{},
		TargetLanguage: target,
		SourceLanguage: source,
	}
	for i := range sites {
		if i > 0 && s.pause > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(s.pause):
			}
		}
		tr, err := s.translateOne(ctx, &sites[i], target, source, createNew)
		if err != nil {
			if errors.Is(err, ErrNotConfigured) {
				return nil, err
			}
			log.Warn().Err(err).Int64("website_id", sites[i].ID).Msg("website translation failed")
			res.Failed = append(res.Failed, entities.WebsiteTranslationFailure{WebsiteID: sites[i].ID, Name: sites[i].BusinessName, Error: err.Error()})
			continue
		}
		res.Successful = append(res.Successful, *tr)
	}
	return res, nil
}
