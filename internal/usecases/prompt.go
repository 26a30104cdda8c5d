package usecases

import (
	"fmt"
	"strings"

	"project_citabot/internal/entities"
)

const maxMediaPromptChars = 4000

var mediaGuidance = []struct {
	marker   string
	guidance string
}{
	{"[Audio transcrito:", "🎵 AUDIO TRANSCRITO: El usuario envió un audio que fue transcrito. Responde directamente al contenido transcrito como si te lo hubiera escrito, sin mencionar que es un audio."},
	{"[Contenido de imagen:", "🖼️ IMAGEN ANALIZADA: El usuario envió una imagen cuyo contenido extraído está incluido en el mensaje. Responde específicamente sobre lo que muestra."},
	{"[Contenido de PDF:", "📄 PDF ANALIZADO: El usuario envió un documento PDF cuyo contenido extraído está incluido en el mensaje. Puedes resumirlo, analizarlo o responder preguntas sobre él."},
	{"Video de ", "🎬 VIDEO: El mensaje incluye la descripción de un video (título, canal, descripción). Úsala para responder sobre el video."},
}

// PromptInput is everything the system prompt is built from.
type PromptInput struct {
	Personality  *entities.Personality
	Context      entities.ConversationContext
	Availability string
	Media        []entities.PersonalityMedia
	UserMessage  string
	HasGreeted   bool
}

// BuildSystemPrompt assembles the persona, its instructions, the context
// summary, the bookable slots and media guidance into one system message.
func BuildSystemPrompt(in PromptInput) string {
	var b strings.Builder

	name, company, instructions := "un asistente virtual", "", "Eres amable, claro y conciso."
	if p := in.Personality; p != nil {
		if p.Name != "" {
			name = p.Name
		}
		company = p.Company
		if p.Instructions != "" {
			instructions = p.Instructions
		}
	}

	fmt.Fprintf(&b, "Eres %s.", name)
	if company != "" {
		fmt.Fprintf(&b, " Trabajas en %s.", company)
	}
	fmt.Fprintf(&b, "\n\nPERSONALIDAD: %s\n", instructions)

	b.WriteString("\nINSTRUCCIONES:\n")
	b.WriteString("- Lee todo el historial de la conversación y conéctalo con el mensaje actual.\n")
	b.WriteString("- Si el usuario pregunta por algo mencionado antes, respóndelo con esa información.\n")
	b.WriteString("- No digas que no tienes acceso a información que está en el historial.\n")
	if in.HasGreeted {
		b.WriteString("- Ya saludaste, no vuelvas a saludar.\n")
	}

	if in.Context.TotalMessages > 0 {
		fmt.Fprintf(&b, "\nCONTEXTO: %s (contexto %s).\n", in.Context.Summary, in.Context.Strength)
	}

	if in.Availability != "" {
		b.WriteString("\n")
		b.WriteString(in.Availability)
		b.WriteString("\nSi el usuario quiere agendar una cita, ofrécele estas opciones por número y confirma la que elija.\n")
	}

	if media := mediaSection(in.Media); media != "" {
		b.WriteString("\nMATERIAL DE REFERENCIA:\n")
		b.WriteString(media)
	}

	for _, g := range mediaGuidance {
		if strings.Contains(in.UserMessage, g.marker) {
			b.WriteString("\n")
			b.WriteString(g.guidance)
			b.WriteString("\n")
			break
		}
	}

	b.WriteString("\nResponde en el mismo idioma que el usuario y sigue tu personalidad exactamente.")
	return b.String()
}

// mediaSection renders extracted media text, capped so it cannot crowd out
// the conversation.
func mediaSection(media []entities.PersonalityMedia) string {
	var b strings.Builder
	for _, m := range media {
		if m.MediaType == entities.MediaTypeVideoURLError || strings.TrimSpace(m.ExtractedText) == "" {
			continue
		}
		text := strings.TrimSpace(m.ExtractedText)
		if b.Len()+len(text) > maxMediaPromptChars {
			break
		}
		b.WriteString(text)
		b.WriteString("\n\n")
	}
	return b.String()
}

// HasGreeted reports whether the recent turns already contain a greeting.
func HasGreeted(history []entities.HistoryEntry) bool {
	for _, h := range history {
		if h.Role != "assistant" {
			continue
		}
		c := strings.ToLower(h.Content)
		if strings.Contains(c, "hola") || strings.Contains(c, "buenos") || strings.Contains(c, "buenas") {
			return true
		}
	}
	return false
}

// ChatMessages prefixes the history with the system prompt.
func ChatMessages(system string, history []entities.HistoryEntry) []entities.ChatMessage {
	out := make([]entities.ChatMessage, 0, len(history)+1)
	out = append(out, entities.ChatMessage{Role: "system", Content: system})
	for _, h := range history {
		if strings.TrimSpace(h.Content) == "" {
			continue
		}
		out = append(out, entities.ChatMessage{Role: h.Role, Content: h.Content})
	}
	return out
}
