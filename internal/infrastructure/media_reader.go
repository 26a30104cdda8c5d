package infrastructure

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
	openai "github.com/sashabaranov/go-openai"

	"project_citabot/internal/interfaces"
)

const (
	maxAudioBytes = 25 << 20 // Whisper upload limit
	maxPDFText    = 64 << 10

	imagePrompt = "Describe brevemente esta imagen en español y transcribe cualquier texto que aparezca en ella."
)

// MediaReader reads WhatsApp attachments: Whisper for voice notes, a vision
// model for images and local text extraction for PDFs.
type MediaReader struct {
	client             *openai.Client
	transcriptionModel string
	visionModel        string
}

var _ interfaces.MediaAnalyzer = (*MediaReader)(nil)

// NewMediaReader shares the chat client's connection settings. An empty
// model disables that kind of media.
func NewMediaReader(ai *OpenAIClient, transcriptionModel, visionModel string) *MediaReader {
	r := &MediaReader{transcriptionModel: transcriptionModel, visionModel: visionModel}
	if ai != nil {
		r.client = ai.client
	}
	return r
}

func (r *MediaReader) Transcribe(ctx context.Context, filename string, audio []byte) (string, error) {
	if r.client == nil || r.transcriptionModel == "" {
		return "", errors.New("transcription disabled")
	}
	if len(audio) == 0 {
		return "", errors.New("empty audio")
	}
	if len(audio) > maxAudioBytes {
		return "", fmt.Errorf("audio too large: %d bytes", len(audio))
	}
	if filename == "" {
		filename = "audio.ogg"
	}
	resp, err := r.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    r.transcriptionModel,
		FilePath: filename,
		Reader:   bytes.NewReader(audio),
		Language: "es",
	})
	if err != nil {
		return "", fmt.Errorf("transcription: %w", err)
	}
	return strings.TrimSpace(resp.Text), nil
}

func (r *MediaReader) DescribeImage(ctx context.Context, image []byte, mimeType string) (string, error) {
	if r.client == nil || r.visionModel == "" {
		return "", errors.New("image reading disabled")
	}
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	dataURL := "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(image)
	resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     r.visionModel,
		MaxTokens: 400,
		Messages: []openai.ChatCompletionMessage{{
			Role: openai.ChatMessageRoleUser,
			MultiContent: []openai.ChatMessagePart{
				{Type: openai.ChatMessagePartTypeText, Text: imagePrompt},
				{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{URL: dataURL, Detail: openai.ImageURLDetailLow}},
			},
		}},
	})
	if err != nil {
		return "", fmt.Errorf("image description: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("image description: empty response")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// ExtractPDF returns the plain text of a PDF. Scanned PDFs yield "".
func (r *MediaReader) ExtractPDF(_ context.Context, data []byte) (string, error) {
	doc, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	text, err := doc.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("read pdf: %w", err)
	}
	raw, err := io.ReadAll(io.LimitReader(text, maxPDFText))
	if err != nil {
		return "", fmt.Errorf("read pdf: %w", err)
	}
	return strings.Join(strings.Fields(string(raw)), " "), nil
}
