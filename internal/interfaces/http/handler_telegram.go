package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type telegramTokenRequest struct {
	Token string `json:"token"`
}

// GetTelegramStatus returns whether the user has a bot token and whether
// the bot is polling.
func (h *Handler) GetTelegramStatus(c *gin.Context) {
	st, err := h.svc.Telegram.Status(c.Request.Context(), currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// SaveTelegramToken validates and stores the bot token. An empty token
// clears it.
func (h *Handler) SaveTelegramToken(c *gin.Context) {
	var req telegramTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request")
		return
	}
	st, err := h.svc.Telegram.SaveToken(c.Request.Context(), currentUserID(c), req.Token)
	if err != nil {
		respondError(c, err)
		return
	}
	status := "saved"
	if !st.HasToken {
		status = "cleared"
	}
	c.JSON(http.StatusOK, gin.H{"status": status, "bot_name": st.BotName})
}

func (h *Handler) ValidateTelegramToken(c *gin.Context) {
	var req telegramTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request")
		return
	}
	name, err := h.svc.Telegram.Validate(c.Request.Context(), req.Token)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"valid": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": true, "bot_name": "@" + name})
}

func (h *Handler) ConnectTelegram(c *gin.Context) {
	st, err := h.svc.Telegram.Connect(c.Request.Context(), currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "connected", "bot_name": "@" + st.BotName})
}

func (h *Handler) DisconnectTelegram(c *gin.Context) {
	if err := h.svc.Telegram.Disconnect(c.Request.Context(), currentUserID(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "disconnected"})
}
