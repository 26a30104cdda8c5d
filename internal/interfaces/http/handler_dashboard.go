package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"project_citabot/internal/entities"
)

// GetUserStats returns dashboard stats for the authenticated user
func (h *Handler) GetUserStats(c *gin.Context) {
	userID := currentUserID(c)
	stats, err := h.svc.Dashboard.Stats(c.Request.Context(), userID, queryInt(c, "days", 7))
	if err != nil {
		respondError(c, err)
		return
	}

	waConnected := false
	waPhone, waName := "", ""
	if h.svc.WhatsApp != nil {
		if client := h.svc.WhatsApp.GetClient(userID); client != nil && client.IsConnected() {
			waConnected = true
			waPhone, waName = client.GetUserInfo()
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"stats":        stats,
		"wa_connected": waConnected,
		"wa_phone":     waPhone,
		"wa_name":      waName,
	})
}

func (h *Handler) GetSettings(c *gin.Context) {
	settings, err := h.svc.Dashboard.Settings(c.Request.Context(), currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}

func (h *Handler) UpdateSettings(c *gin.Context) {
	var payload map[string]string
	if err := c.ShouldBindJSON(&payload); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	for k, v := range payload {
		if !ValidateLength(v, 0, MaxMessageLength) {
			badRequest(c, "Setting "+k+" is too long")
			return
		}
		payload[k] = SanitizeString(v)
	}
	if err := h.svc.Dashboard.UpdateSettings(c.Request.Context(), currentUserID(c), payload); err != nil {
		respondError(c, err)
		return
	}
	h.GetSettings(c)
}

// Conversations

func (h *Handler) ListConversations(c *gin.Context) {
	convs, err := h.svc.Conversations.List(c.Request.Context(), currentUserID(c), c.Query("platform"), queryInt(c, "limit", 50), queryInt(c, "offset", 0))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, convs)
}

func (h *Handler) ListMessages(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	msgs, err := h.svc.Conversations.Messages(c.Request.Context(), currentUserID(c), id, queryInt(c, "limit", 100))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, msgs)
}

func (h *Handler) SendManualMessage(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var payload struct {
		Content string `json:"content"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	if !ValidateLength(payload.Content, 1, MaxMessageLength) {
		badRequest(c, "Message must be between 1 and 4096 characters")
		return
	}
	msg, err := h.svc.Conversations.SendManual(c.Request.Context(), currentUserID(c), id, SanitizeString(payload.Content))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

func (h *Handler) SetConversationAI(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var payload struct {
		AIActive *bool `json:"ai_active"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil || payload.AIActive == nil {
		badRequest(c, "ai_active is required")
		return
	}
	if err := h.svc.Conversations.SetAIActive(c.Request.Context(), currentUserID(c), id, *payload.AIActive); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "updated", "ai_active": *payload.AIActive})
}

// SetConversationPersonality assigns a personality; null clears it.
func (h *Handler) SetConversationPersonality(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var payload struct {
		PersonalityID *int64 `json:"personality_id"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	if err := h.svc.Conversations.SetPersonality(c.Request.Context(), currentUserID(c), id, payload.PersonalityID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "updated", "personality_id": payload.PersonalityID})
}

// Personalities

func bindPersonality(c *gin.Context) (*entities.Personality, bool) {
	var p entities.Personality
	if err := c.ShouldBindJSON(&p); err != nil {
		badRequest(c, "Invalid request body")
		return nil, false
	}
	if !ValidateLength(p.Name, 1, MaxTitleLength) || !ValidateLength(p.Company, 0, MaxTitleLength) {
		badRequest(c, "nombre and empresa must be at most 256 characters")
		return nil, false
	}
	if !ValidateLength(p.Instructions, 0, MaxInstructionLength) || !ValidateLength(p.Greeting, 0, MaxMessageLength) {
		badRequest(c, "instrucciones or saludo too long")
		return nil, false
	}
	p.Name = SanitizeString(p.Name)
	p.Company = SanitizeString(p.Company)
	p.Instructions = SanitizeString(p.Instructions)
	p.Greeting = SanitizeString(p.Greeting)
	return &p, true
}

func (h *Handler) ListPersonalities(c *gin.Context) {
	list, err := h.svc.Personalities.List(c.Request.Context(), currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) CreatePersonality(c *gin.Context) {
	p, ok := bindPersonality(c)
	if !ok {
		return
	}
	if err := h.svc.Personalities.Create(c.Request.Context(), currentUserID(c), p); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (h *Handler) GetPersonality(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	p, err := h.svc.Personalities.Get(c.Request.Context(), currentUserID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) UpdatePersonality(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	p, ok := bindPersonality(c)
	if !ok {
		return
	}
	p.ID = id
	if err := h.svc.Personalities.Update(c.Request.Context(), currentUserID(c), p); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) DeletePersonality(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Personalities.Delete(c.Request.Context(), currentUserID(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (h *Handler) ListPersonalityMedia(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	media, err := h.svc.Personalities.Media(c.Request.Context(), currentUserID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, media)
}

func (h *Handler) DeletePersonalityMedia(c *gin.Context) {
	mediaID, ok := pathID(c, "media_id")
	if !ok {
		return
	}
	if err := h.svc.Personalities.DeleteMedia(c.Request.Context(), currentUserID(c), mediaID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// QueueVideos validates the URLs and schedules their ingestion. The
// response lists every URL with its validation result.
func (h *Handler) QueueVideos(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var payload struct {
		URLs []string `json:"urls" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		badRequest(c, "urls is required")
		return
	}
	checked, err := h.svc.Videos.QueueIngest(c.Request.Context(), currentUserID(c), id, payload.URLs)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "queued", "urls": checked})
}
