package usecases

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"project_citabot/internal/entities"
	"project_citabot/internal/interfaces"
)

const (
	mediaDownloadTimeout = 30 * time.Second
	mediaReadTimeout     = 45 * time.Second
	maxMediaText         = 4000
)

// MediaProcessor turns an inbound attachment into text appended to the
// message, so the matcher and the model can read voice notes, photos and
// PDFs.
type MediaProcessor struct {
	analyzer interfaces.MediaAnalyzer
}

func NewMediaProcessor(analyzer interfaces.MediaAnalyzer) *MediaProcessor {
	return &MediaProcessor{analyzer: analyzer}
}

func clip(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n]) + "…"
}

// Content returns the caption followed by a marker with what was read from
// the attachment. Failures are reported inside the marker; the message is
// still answered.
func (p *MediaProcessor) Content(ctx context.Context, in entities.InboundMessage) string {
	caption := strings.TrimSpace(in.Content)
	m := in.Media
	if m == nil || m.Download == nil || p == nil || p.analyzer == nil {
		return caption
	}
	if m.Kind == entities.MediaDocument && !strings.EqualFold(m.MimeType, "application/pdf") {
		return caption
	}
	logger := log.With().Int("user_id", in.UserID).Str("kind", m.Kind).Str("message_id", in.MessageID).Logger()

	dctx, cancel := context.WithTimeout(ctx, mediaDownloadTimeout)
	data, err := m.Download(dctx)
	cancel()
	if err != nil || len(data) == 0 {
		logger.Warn().Err(err).Msg("media download failed")
		return caption
	}

	rctx, cancel := context.WithTimeout(ctx, mediaReadTimeout)
	defer cancel()

	var marker string
	switch m.Kind {
	case entities.MediaAudio:
		text, err := p.analyzer.Transcribe(rctx, m.FileName, data)
		switch {
		case err != nil:
			logger.Warn().Err(err).Msg("audio transcription failed")
			text = "Audio procesado pero no se pudo transcribir"
		case text == "":
			text = "Audio procesado pero la transcripción está vacía"
		}
		marker = fmt.Sprintf("[Audio transcrito: %s]", clip(text, maxMediaText))
	case entities.MediaImage:
		text, err := p.analyzer.DescribeImage(rctx, data, m.MimeType)
		switch {
		case err != nil:
			logger.Warn().Err(err).Msg("image reading failed")
			text = "Imagen procesada pero no se pudo extraer texto"
		case text == "":
			text = "Imagen procesada pero no se encontró texto"
		}
		marker = fmt.Sprintf("[Contenido de imagen: %s]", clip(text, maxMediaText))
	case entities.MediaDocument:
		text, err := p.analyzer.ExtractPDF(rctx, data)
		switch {
		case err != nil:
			logger.Warn().Err(err).Msg("pdf extraction failed")
			text = "PDF procesado pero no se pudo extraer texto"
		case text == "":
			text = "PDF procesado pero no contiene texto extraíble"
		}
		marker = fmt.Sprintf("[Contenido de PDF: %s]", clip(text, maxMediaText))
	default:
		return caption
	}
	logger.Debug().Int("bytes", len(data)).Msg("media read")

	if caption == "" {
		return marker
	}
	return caption + "\n" + marker
}
