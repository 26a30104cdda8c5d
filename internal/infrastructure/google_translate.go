package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"html"

	"google.golang.org/api/option"
	translate "google.golang.org/api/translate/v2"

	"project_citabot/internal/interfaces"
)

// maxTranslateBatch is the number of segments sent per request.
const maxTranslateBatch = 100

type GoogleTranslator struct {
	svc *translate.Service
}

func NewGoogleTranslator(ctx context.Context, apiKey string, opts ...option.ClientOption) (*GoogleTranslator, error) {
	if apiKey == "" {
		return nil, errors.New("translate: api key is empty")
	}
	svc, err := translate.NewService(ctx, append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("translate service: %w", err)
	}
	return &GoogleTranslator{svc: svc}, nil
}

var _ interfaces.Translator = (*GoogleTranslator)(nil)

// Translate returns one translation per input text, in order.
func (g *GoogleTranslator) Translate(ctx context.Context, texts []string, source, target string) ([]string, error) {
	out := make([]string, 0, len(texts))
	for start := 0; start < len(texts); start += maxTranslateBatch {
		end := min(start+maxTranslateBatch, len(texts))

		call := g.svc.Translations.List(texts[start:end], target).Format("text").Context(ctx)
		if source != "" {
			call = call.Source(source)
		}
		resp, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("translate batch %d-%d: %w", start, end, err)
		}
		if len(resp.Translations) != end-start {
			return nil, fmt.Errorf("translate: expected %d results, got %d", end-start, len(resp.Translations))
		}
		for _, tr := range resp.Translations {
			out = append(out, html.UnescapeString(tr.TranslatedText))
		}
	}
	return out, nil
}
