package infrastructure

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestMediaReader(t *testing.T) {
	var visionReq struct {
		Model    string `json:"model"`
		Messages []struct {
			Content []struct {
				Type     string `json:"type"`
				ImageURL struct {
					URL string `json:"url"`
				} `json:"image_url"`
			} `json:"content"`
		} `json:"messages"`
	}
	var audioModel, audioFile string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v1/audio/transcriptions":
			if err := r.ParseMultipartForm(1 << 20); err != nil {
				t.Errorf("parse multipart: %v", err)
			}
			audioModel = r.FormValue("model")
			if _, hdr, err := r.FormFile("file"); err == nil {
				audioFile = hdr.Filename
			}
			w.Write([]byte(`{"text":" Quiero una cita para el martes "}`))
		case "/v1/chat/completions":
			json.NewDecoder(r.Body).Decode(&visionReq)
			w.Write([]byte(`{"id":"c1","object":"chat.completion","model":"gpt-4o-mini",
				"choices":[{"index":0,"message":{"role":"assistant","content":"Una receta médica"},"finish_reason":"stop"}]}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	ai, err := NewOpenAIClient("test-key", srv.URL+"/v1", "gpt-4o-mini", time.Second)
	if err != nil {
		t.Fatal(err)
	}
	reader := NewMediaReader(ai, "whisper-1", "gpt-4o-mini")
	ctx := context.Background()

	t.Run("transcribe", func(t *testing.T) {
		text, err := reader.Transcribe(ctx, "", []byte("OggS fake audio"))
		if err != nil {
			t.Fatalf("transcribe: %v", err)
		}
		if text != "Quiero una cita para el martes" || audioModel != "whisper-1" || audioFile != "audio.ogg" {
			t.Errorf("unexpected transcription %q model=%q file=%q", text, audioModel, audioFile)
		}
		if _, err := reader.Transcribe(ctx, "a.ogg", nil); err == nil {
			t.Error("expected error for empty audio")
		}
	})

	t.Run("describe image", func(t *testing.T) {
		text, err := reader.DescribeImage(ctx, []byte{0xff, 0xd8}, "")
		if err != nil || text != "Una receta médica" {
			t.Fatalf("describe: %q, %v", text, err)
		}
		if len(visionReq.Messages) != 1 || len(visionReq.Messages[0].Content) != 2 {
			t.Fatalf("unexpected request %+v", visionReq)
		}
		if url := visionReq.Messages[0].Content[1].ImageURL.URL; !strings.HasPrefix(url, "data:image/jpeg;base64,") {
			t.Errorf("image not sent inline: %s", url)
		}
	})

	t.Run("disabled models", func(t *testing.T) {
		off := NewMediaReader(ai, "", "")
		if _, err := off.Transcribe(ctx, "a.ogg", []byte("x")); err == nil {
			t.Error("transcription should be disabled")
		}
		if _, err := off.DescribeImage(ctx, []byte("x"), "image/png"); err == nil {
			t.Error("vision should be disabled")
		}
	})

	t.Run("invalid pdf", func(t *testing.T) {
		if _, err := reader.ExtractPDF(ctx, []byte("not a pdf")); err == nil {
			t.Error("expected error for invalid pdf")
		}
	})
}
