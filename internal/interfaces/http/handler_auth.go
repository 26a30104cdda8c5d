package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/skip2/go-qrcode"

	"project_citabot/internal/usecases"
)

type credentials struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) Register(c *gin.Context) {
	var req credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request")
		return
	}
	user, err := h.svc.Auth.Register(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	log.Info().Int("user_id", user.ID).Str("username", user.Username).Msg("user registered")
	c.JSON(http.StatusCreated, gin.H{"status": "registered", "user": user})
}

func (h *Handler) Login(c *gin.Context) {
	var req credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request")
		return
	}
	token, user, err := h.svc.Auth.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, usecases.ErrUnauthorized) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
			return
		}
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "user": user})
}

func (h *Handler) Me(c *gin.Context) {
	user, err := h.svc.Auth.Me(c.Request.Context(), currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// whatsAppAllowed answers for the caller when the line cannot be used.
func (h *Handler) whatsAppAllowed(c *gin.Context) bool {
	if h.svc.WhatsApp == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "WhatsApp not configured"})
		return false
	}
	user, err := h.svc.Auth.Me(c.Request.Context(), currentUserID(c))
	if err != nil {
		respondError(c, err)
		return false
	}
	if !user.WAEnabled {
		c.JSON(http.StatusForbidden, gin.H{"error": "WhatsApp is disabled for this account"})
		return false
	}
	return true
}

func (h *Handler) ConnectUserWhatsApp(c *gin.Context) {
	if !h.whatsAppAllowed(c) {
		return
	}

	client, err := h.svc.WhatsApp.ConnectClient(c.Request.Context(), currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	phone, name := client.GetUserInfo()
	c.JSON(http.StatusOK, gin.H{
		"status":    "connecting",
		"connected": client.IsLoggedIn(),
		"phone":     phone,
		"name":      name,
	})
}

// GetUserQRCode returns QR code PNG for user's WhatsApp
func (h *Handler) GetUserQRCode(c *gin.Context) {
	if !h.whatsAppAllowed(c) {
		return
	}

	client, err := h.svc.WhatsApp.GetOrCreateClient(c.Request.Context(), currentUserID(c))
	if err != nil {
		c.String(http.StatusInternalServerError, "Failed to create client")
		return
	}

	if !client.IsLoggedIn() && !client.Client.IsConnected() {
		if err := client.Connect(); err != nil {
			c.String(http.StatusInternalServerError, "Failed to connect: "+err.Error())
			return
		}
	}

	code := client.GetQR()
	if code == "" {
		if client.IsLoggedIn() {
			c.String(http.StatusOK, "Already logged in")
			return
		}
		c.String(http.StatusAccepted, "QR code not yet available. Please wait...")
		return
	}

	png, err := qrcode.Encode(code, qrcode.Medium, 256)
	if err != nil {
		c.String(http.StatusInternalServerError, "Failed to generate QR code")
		return
	}

	c.Data(http.StatusOK, "image/png", png)
}

// GetUserWhatsAppStatus returns WhatsApp connection status for user
func (h *Handler) GetUserWhatsAppStatus(c *gin.Context) {
	if h.svc.WhatsApp == nil {
		c.JSON(http.StatusOK, gin.H{"connected": false, "error": "WhatsApp not configured"})
		return
	}

	client := h.svc.WhatsApp.GetClient(currentUserID(c))
	if client == nil {
		c.JSON(http.StatusOK, gin.H{"connected": false, "initialized": false})
		return
	}

	phone, name := client.GetUserInfo()
	c.JSON(http.StatusOK, gin.H{
		"connected":   client.IsConnected(),
		"logged_in":   client.IsLoggedIn(),
		"initialized": true,
		"phone":       phone,
		"name":        name,
		"hasQR":       client.GetQR() != "",
	})
}

// LogoutUserWhatsApp logs out user's WhatsApp session
func (h *Handler) LogoutUserWhatsApp(c *gin.Context) {
	if h.svc.WhatsApp == nil {
		c.JSON(http.StatusOK, gin.H{"status": "logged_out", "message": "WhatsApp not configured"})
		return
	}

	if err := h.svc.WhatsApp.LogoutClient(c.Request.Context(), currentUserID(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "logged_out"})
}
