package http

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h *Handler) TranslateTexts(c *gin.Context) {
	var payload struct {
		Texts          []string `json:"texts" binding:"required"`
		TargetLanguage string   `json:"targetLanguage" binding:"required"`
		SourceLanguage string   `json:"sourceLanguage"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		badRequest(c, "texts and targetLanguage are required")
		return
	}
	if len(payload.Texts) > MaxTranslateTexts {
		badRequest(c, "Too many texts")
		return
	}
	results, err := h.svc.Translation.TranslateTexts(c.Request.Context(), payload.Texts, payload.TargetLanguage, payload.SourceLanguage)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"translations": results})
}

// TranslateJSON translates the string values of an arbitrary JSON document.
func (h *Handler) TranslateJSON(c *gin.Context) {
	var payload struct {
		Content        json.RawMessage `json:"content" binding:"required"`
		TargetLanguage string          `json:"targetLanguage" binding:"required"`
		SourceLanguage string          `json:"sourceLanguage"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		badRequest(c, "content and targetLanguage are required")
		return
	}
	var doc any
	if err := json.Unmarshal(payload.Content, &doc); err != nil {
		badRequest(c, "content must be valid JSON")
		return
	}
	translated, n, err := h.svc.Translation.TranslateJSON(c.Request.Context(), doc, payload.TargetLanguage, payload.SourceLanguage)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"content": translated, "translated": n})
}
