package usecases

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"project_citabot/internal/interfaces"
)

const (
	defaultSourceLanguage = "es"
	translationCacheTTL   = 30 * 24 * time.Hour
	maxTranslateTexts     = 1000
)

var (
	numericText  = regexp.MustCompile(`^\d+[\d\s\-.,€$£¥₹]*$`)
	urlText      = regexp.MustCompile(`^https?://`)
	emailText    = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	codeText     = regexp.MustCompile(`^[\w\-.#]+$`)
	hasLetter    = regexp.MustCompile(`[a-zA-ZáéíóúüñÁÉÍÓÚÜÑ]`)
	languageCode = regexp.MustCompile(`^[a-zA-Z]{2,3}(?:-[a-zA-Z]{2,4})?$`)
)

// IsTranslatable rejects strings that are not prose: numbers and prices,
// URLs, emails and short code-like tokens such as CSS classes.
func IsTranslatable(s string) bool {
	t := strings.TrimSpace(s)
	switch {
	case t == "":
		return false
	case numericText.MatchString(t), urlText.MatchString(t), emailText.MatchString(t):
		return false
	case codeText.MatchString(t) && utf8.RuneCountInString(s) < 30:
		return false
	}
	return hasLetter.MatchString(s)
}

// Translation is one input text and its result.
type Translation struct {
	OriginalText   string `json:"originalText"`
	TranslatedText string `json:"translatedText"`
	WasTranslated  bool   `json:"wasTranslated"`
}

// TranslationService translates website content with a per-text cache.
type TranslationService struct {
	translator interfaces.Translator
	cache      interfaces.Cache
}

func NewTranslationService(translator interfaces.Translator, cache interfaces.Cache) *TranslationService {
	return &TranslationService{translator: translator, cache: cache}
}

func translationKey(source, target, text string) string {
	sum := sha256.Sum256([]byte(source + "\x00" + target + "\x00" + text))
	return "translate:" + hex.EncodeToString(sum[:])
}

func checkLanguages(source, target string) (string, error) {
	if source == "" {
		source = defaultSourceLanguage
	}
	if !languageCode.MatchString(target) {
		return "", invalid("targetLanguage inválido")
	}
	if !languageCode.MatchString(source) {
		return "", invalid("sourceLanguage inválido")
	}
	return source, nil
}

// TranslateTexts translates texts in one batch. Untranslatable texts and
// texts already in the cache are not sent to the provider.
func (s *TranslationService) TranslateTexts(ctx context.Context, texts []string, target, source string) ([]Translation, error) {
	source, err := checkLanguages(source, target)
	if err != nil {
		return nil, err
	}
	if len(texts) > maxTranslateTexts {
		return nil, invalid(fmt.Sprintf("máximo %d textos por petición", maxTranslateTexts))
	}

	out := make([]Translation, len(texts))
	var pending []int
	for i, t := range texts {
		out[i] = Translation{OriginalText: t, TranslatedText: t}
		if strings.EqualFold(source, target) || !IsTranslatable(t) {
			continue
		}
		if s.cache != nil {
			if cached, err := s.cache.Get(ctx, translationKey(source, target, t)); err == nil {
				out[i].TranslatedText, out[i].WasTranslated = cached, true
				continue
			} else if !errors.Is(err, interfaces.ErrMiss) {
				log.Warn().Err(err).Msg("translation cache read failed")
			}
		}
		pending = append(pending, i)
	}
	if len(pending) == 0 {
		return out, nil
	}
	if s.translator == nil {
		return nil, newError(ErrNotConfigured, "GOOGLE_TRANSLATE_API_KEY no está configurada")
	}

	batch := make([]string, len(pending))
	for j, i := range pending {
		batch[j] = texts[i]
	}
	translated, err := s.translator.Translate(ctx, batch, source, target)
	if err != nil {
		return nil, err
	}
	for j, i := range pending {
		out[i].TranslatedText, out[i].WasTranslated = translated[j], true
		if s.cache != nil {
			if err := s.cache.Set(ctx, translationKey(source, target, texts[i]), translated[j], translationCacheTTL); err != nil {
				log.Warn().Err(err).Msg("translation cache write failed")
			}
		}
	}
	return out, nil
}

// TranslateJSON translates every translatable string inside a decoded JSON
// document and returns a translated copy. Keys are left untouched.
func (s *TranslationService) TranslateJSON(ctx context.Context, doc any, target, source string) (any, int, error) {
	if str, ok := doc.(string); ok {
		results, err := s.TranslateTexts(ctx, []string{str}, target, source)
		if err != nil {
			return nil, 0, err
		}
		if results[0].WasTranslated {
			return results[0].TranslatedText, 1, nil
		}
		return str, 0, nil
	}

	var texts []string
	var setters []func(string)
	copied := collectStrings(doc, &texts, &setters)
	if len(texts) == 0 {
		if _, err := checkLanguages(source, target); err != nil {
			return nil, 0, err
		}
		return copied, 0, nil
	}

	results, err := s.TranslateTexts(ctx, texts, target, source)
	if err != nil {
		return nil, 0, err
	}
	n := 0
	for i, r := range results {
		if r.WasTranslated {
			setters[i](r.TranslatedText)
			n++
		}
	}
	return copied, n, nil
}

// collectStrings deep-copies v and records a setter for each translatable
// string in the copy.
func collectStrings(v any, texts *[]string, setters *[]func(string)) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, child := range t {
			if str, ok := child.(string); ok && IsTranslatable(str) {
				m[k] = str
				*texts = append(*texts, str)
				*setters = append(*setters, func(s string) { m[k] = s })
				continue
			}
			m[k] = collectStrings(child, texts, setters)
		}
		return m
	case []any:
		arr := make([]any, len(t))
		for i, child := range t {
			if str, ok := child.(string); ok && IsTranslatable(str) {
				arr[i] = str
				*texts = append(*texts, str)
				*setters = append(*setters, func(s string) { arr[i] = s })
				continue
			}
			arr[i] = collectStrings(child, texts, setters)
		}
		return arr
	default:
		return v
	}
}
