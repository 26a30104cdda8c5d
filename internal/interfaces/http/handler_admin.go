package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"project_citabot/internal/entities"
	"project_citabot/internal/infrastructure"
	"project_citabot/internal/usecases"
)

type AdminHandler struct {
	users     usecases.UserStore
	waManager *infrastructure.WhatsAppManager
	billing   *usecases.BillingService
	videos    *usecases.VideoService
}

func NewAdminHandler(users usecases.UserStore, waManager *infrastructure.WhatsAppManager, billing *usecases.BillingService, videos *usecases.VideoService) *AdminHandler {
	return &AdminHandler{
		users:     users,
		waManager: waManager,
		billing:   billing,
		videos:    videos,
	}
}

func (h *AdminHandler) connectedUsers() []int {
	if h.waManager == nil {
		return nil
	}
	return h.waManager.GetAllConnectedUsers()
}

// GetStats returns platform statistics
func (h *AdminHandler) GetStats(c *gin.Context) {
	stats, err := h.users.GetStats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"total_users":           stats.TotalUsers,
		"active_users":          stats.ActiveUsers,
		"wa_enabled_users":      stats.WAEnabledUsers,
		"active_wa_connections": len(h.connectedUsers()),
		"admin_count":           stats.AdminCount,
	})
}

// GetAllUsers returns list of all users
func (h *AdminHandler) GetAllUsers(c *gin.Context) {
	users, err := h.users.GetAllUsers(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	connected := make(map[int]bool)
	for _, uid := range h.connectedUsers() {
		connected[uid] = true
	}

	result := make([]gin.H, len(users))
	for i, u := range users {
		result[i] = gin.H{
			"id":            u.ID,
			"username":      u.Username,
			"role":          u.Role,
			"email":         u.Email,
			"is_active":     u.IsActive,
			"wa_enabled":    u.WAEnabled,
			"wa_connected":  connected[u.ID],
			"created_at":    u.CreatedAt,
			"daily_limit":   u.DailyLimit,
			"monthly_limit": u.MonthlyLimit,
		}
	}

	c.JSON(http.StatusOK, result)
}

func userParam(c *gin.Context) (int, bool) {
	userID, err := strconv.Atoi(c.Param("id"))
	if err != nil || userID <= 0 {
		badRequest(c, "Invalid user ID")
		return 0, false
	}
	return userID, true
}

// UpdateUserStatus enables/disables a user account
func (h *AdminHandler) UpdateUserStatus(c *gin.Context) {
	userID, ok := userParam(c)
	if !ok {
		return
	}

	var payload struct {
		IsActive bool `json:"is_active"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		badRequest(c, "Invalid request")
		return
	}

	if currentUserID(c) == userID && !payload.IsActive {
		badRequest(c, "Cannot disable your own account")
		return
	}

	found, err := h.users.UpdateUserStatus(c.Request.Context(), userID, payload.IsActive)
	if err != nil {
		respondError(c, err)
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	if !payload.IsActive && h.waManager != nil {
		h.waManager.DisconnectClient(userID)
	}
	log.Info().Int("admin_id", currentUserID(c)).Int("user_id", userID).Bool("is_active", payload.IsActive).Msg("user status changed")

	c.JSON(http.StatusOK, gin.H{"status": "updated", "is_active": payload.IsActive})
}

// UpdateWAEnabled enables/disables WhatsApp for a user
func (h *AdminHandler) UpdateWAEnabled(c *gin.Context) {
	userID, ok := userParam(c)
	if !ok {
		return
	}

	var payload struct {
		WAEnabled bool `json:"wa_enabled"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		badRequest(c, "Invalid request")
		return
	}

	found, err := h.users.UpdateWAEnabled(c.Request.Context(), userID, payload.WAEnabled)
	if err != nil {
		respondError(c, err)
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	if !payload.WAEnabled && h.waManager != nil {
		h.waManager.DisconnectClient(userID)
	}

	c.JSON(http.StatusOK, gin.H{"status": "updated", "wa_enabled": payload.WAEnabled})
}

// DisconnectUserWA forcefully disconnects a user's WhatsApp
func (h *AdminHandler) DisconnectUserWA(c *gin.Context) {
	userID, ok := userParam(c)
	if !ok {
		return
	}

	if h.waManager == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "WhatsApp not configured"})
		return
	}

	h.waManager.DisconnectClient(userID)
	c.JSON(http.StatusOK, gin.H{"status": "disconnected"})
}

// UpdateUserLimits sets message quotas for a user
func (h *AdminHandler) UpdateUserLimits(c *gin.Context) {
	userID, ok := userParam(c)
	if !ok {
		return
	}

	var payload struct {
		DailyLimit   int `json:"daily_limit"`
		MonthlyLimit int `json:"monthly_limit"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		badRequest(c, "Invalid request")
		return
	}

	if payload.DailyLimit < 0 || payload.MonthlyLimit < 0 {
		badRequest(c, "Limits cannot be negative")
		return
	}

	found, err := h.users.UpdateUserLimits(c.Request.Context(), userID, payload.DailyLimit, payload.MonthlyLimit)
	if err != nil {
		respondError(c, err)
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":        "updated",
		"daily_limit":   payload.DailyLimit,
		"monthly_limit": payload.MonthlyLimit,
	})
}

func (h *AdminHandler) ListPlans(c *gin.Context) {
	plans, err := h.billing.Plans(c.Request.Context(), false)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, plans)
}

func (h *AdminHandler) CreatePlan(c *gin.Context) {
	var plan entities.Plan
	if err := c.ShouldBindJSON(&plan); err != nil {
		badRequest(c, "Invalid request")
		return
	}
	if err := h.billing.CreatePlan(c.Request.Context(), &plan); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, plan)
}

func (h *AdminHandler) UpdatePlan(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var plan entities.Plan
	if err := c.ShouldBindJSON(&plan); err != nil {
		badRequest(c, "Invalid request")
		return
	}
	plan.ID = id
	if err := h.billing.UpdatePlan(c.Request.Context(), &plan); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, plan)
}

// SystemStatus reports the optional integrations the operator has to keep
// alive outside the process.
func (h *AdminHandler) SystemStatus(c *gin.Context) {
	status := gin.H{
		"whatsapp_enabled":     h.waManager != nil,
		"whatsapp_connections": len(h.connectedUsers()),
	}
	if version, err := h.videos.CheckDownloader(c.Request.Context()); err != nil {
		status["ytdlp"] = gin.H{"available": false, "error": err.Error()}
	} else {
		status["ytdlp"] = gin.H{"available": true, "version": version}
	}
	c.JSON(http.StatusOK, status)
}
