package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"project_citabot/internal/infrastructure"
	"project_citabot/internal/usecases"
)

// Services groups what the HTTP layer calls into. Every service is expected
// to be non-nil; optional integrations report ErrNotConfigured themselves.
type Services struct {
	Auth          *usecases.AuthUsecase
	Users         usecases.UserStore
	Dashboard     *usecases.DashboardUsecase
	Conversations *usecases.ConversationService
	Messages      *usecases.MessageService
	Personalities *usecases.PersonalityService
	Videos        *usecases.VideoService
	Leads         *usecases.LeadService
	Availability  *usecases.AvailabilityService
	Billing       *usecases.BillingService
	Calendar      *usecases.CalendarService
	Translation   *usecases.TranslationService
	Telegram      *usecases.TelegramService
	Websites      *usecases.WebsiteService

	WhatsApp *infrastructure.WhatsAppManager // nil disables the WhatsApp endpoints
	Hub      *infrastructure.Hub

	FrontendURL string
	CORSOrigins []string
}

type Handler struct {
	svc      Services
	upgrader websocket.Upgrader
}

func NewHandler(svc Services) *Handler {
	return &Handler{
		svc: svc,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Browsers connect from the dashboard and from customer sites
			// embedding the web chat widget.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

func SetupRoutes(r *gin.Engine, svc Services, middleware *Middleware) {
	h := NewHandler(svc)
	admin := NewAdminHandler(svc.Users, svc.WhatsApp, svc.Billing, svc.Videos)

	// Apply Security Middleware
	r.Use(SecurityHeaders())
	r.Use(RequestSizeLimiter(10 << 20)) // 10MB max request size
	r.Use(CORS(svc.CORSOrigins))

	r.GET("/health", h.Health)

	// Public Routes
	authGroup := r.Group("/api/auth")
	authGroup.Use(middleware.RateLimitPerIP(1, 10))
	{
		authGroup.POST("/login", h.Login)
		authGroup.POST("/register", h.Register)
	}

	r.POST("/api/billing/webhook", h.StripeWebhook)
	r.GET("/api/plans", h.ListPlans)
	r.GET("/api/google/callback", h.GoogleCallback)

	public := r.Group("/api/public/webchat")
	public.Use(middleware.RateLimitPerIP(2, 20))
	{
		public.POST("/:user_id/messages", h.WebChatSend)
		public.GET("/:user_id/sessions/:session_id/messages", h.WebChatHistory)
		public.GET("/ws/:session_id", h.WebChatSocket)
	}

	sites := r.Group("/api/public/websites")
	sites.Use(middleware.RateLimitPerIP(5, 30))
	{
		sites.GET("/custom-domain", h.CustomDomainWebsite)
		sites.GET("/find-username", h.FindUsernameBySlug)
		sites.GET("/by-slug/:slug", h.PublicWebsiteBySlug)
		sites.GET("/site/:username/:slug", h.PublicWebsite)
	}

	// Protected Dashboard Routes
	api := r.Group("/api")
	api.Use(middleware.AuthRequired())
	api.Use(middleware.RateLimitPerUser(5, 10))
	{
		api.GET("/me", h.Me)
		api.GET("/realtime", h.RealtimeSocket)

		api.POST("/whatsapp/connect", h.ConnectUserWhatsApp)
		api.GET("/whatsapp/qr", h.GetUserQRCode)
		api.GET("/whatsapp/status", h.GetUserWhatsAppStatus)
		api.POST("/whatsapp/logout", h.LogoutUserWhatsApp)

		api.GET("/telegram/status", h.GetTelegramStatus)
		api.POST("/telegram/token", h.SaveTelegramToken)
		api.POST("/telegram/validate", h.ValidateTelegramToken)
		api.POST("/telegram/connect", h.ConnectTelegram)
		api.POST("/telegram/disconnect", h.DisconnectTelegram)

		api.GET("/dashboard/stats", h.GetUserStats)
		api.GET("/settings", h.GetSettings)
		api.PUT("/settings", h.UpdateSettings)

		api.GET("/conversations", h.ListConversations)
		api.GET("/conversations/:id/messages", h.ListMessages)
		api.POST("/conversations/:id/messages", h.SendManualMessage)
		api.PATCH("/conversations/:id/ai", h.SetConversationAI)
		api.PATCH("/conversations/:id/personality", h.SetConversationPersonality)

		api.GET("/personalities", h.ListPersonalities)
		api.POST("/personalities", h.CreatePersonality)
		api.GET("/personalities/:id", h.GetPersonality)
		api.PUT("/personalities/:id", h.UpdatePersonality)
		api.DELETE("/personalities/:id", h.DeletePersonality)
		api.GET("/personalities/:id/media", h.ListPersonalityMedia)
		api.DELETE("/personalities/:id/media/:media_id", h.DeletePersonalityMedia)
		api.POST("/personalities/:id/videos", h.QueueVideos)

		api.GET("/leads/board", h.LeadBoard)
		api.POST("/leads", h.CreateLead)
		api.PUT("/leads/:id", h.UpdateLead)
		api.PATCH("/leads/:id/move", h.MoveLead)
		api.DELETE("/leads/:id", h.DeleteLead)
		api.POST("/leads/import", h.ImportContacts)
		api.POST("/leads/bulk-send", h.BulkSend)
		api.POST("/leads/sync-whatsapp", h.SyncWhatsAppLeads)
		api.POST("/lead-columns", h.CreateColumn)
		api.POST("/lead-columns/sync", h.SyncColumns)
		api.PUT("/lead-columns/:id", h.UpdateColumn)
		api.DELETE("/lead-columns/:id", h.DeleteColumn)

		api.GET("/availability/slots", h.ListSlots)
		api.POST("/availability/slots", h.CreateSlot)
		api.DELETE("/availability/slots/:id", h.DeleteSlot)
		api.GET("/appointments", h.ListAppointments)
		api.POST("/appointments", h.BookAppointment)
		api.POST("/appointments/:id/cancel", h.CancelAppointment)

		api.GET("/google/auth-url", h.GoogleAuthURL)
		api.GET("/google/status", h.GoogleStatus)
		api.DELETE("/google", h.GoogleDisconnect)

		api.POST("/billing/portal", h.BillingPortal)
		api.GET("/billing/me", h.BillingMe)

		api.GET("/websites", h.ListWebsites)
		api.POST("/websites", h.CreateWebsite)
		api.GET("/websites/check-slug/:slug", h.CheckWebsiteSlug)
		api.POST("/websites/translate-all", h.TranslateAllWebsites)
		api.GET("/websites/:id", h.GetWebsite)
		api.PUT("/websites/:id", h.UpdateWebsite)
		api.DELETE("/websites/:id", h.DeleteWebsite)
		api.POST("/websites/:id/translate", h.TranslateWebsite)
		api.POST("/websites/:id/publish", h.PublishWebsite)
		api.POST("/websites/:id/unpublish", h.UnpublishWebsite)

		api.POST("/translate", h.TranslateTexts)
		api.POST("/translate/json", h.TranslateJSON)
	}

	adminGroup := r.Group("/api/admin")
	adminGroup.Use(middleware.AuthRequired())
	adminGroup.Use(middleware.AdminRequired())
	{
		adminGroup.GET("/stats", admin.GetStats)
		adminGroup.GET("/users", admin.GetAllUsers)
		adminGroup.PUT("/users/:id/status", admin.UpdateUserStatus)
		adminGroup.PUT("/users/:id/whatsapp", admin.UpdateWAEnabled)
		adminGroup.PUT("/users/:id/limits", admin.UpdateUserLimits)
		adminGroup.POST("/users/:id/disconnect-wa", admin.DisconnectUserWA)
		adminGroup.GET("/plans", admin.ListPlans)
		adminGroup.POST("/plans", admin.CreatePlan)
		adminGroup.PUT("/plans/:id", admin.UpdatePlan)
		adminGroup.GET("/system", admin.SystemStatus)
	}
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// statusFor maps usecase error kinds to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, usecases.ErrInvalidInput), errors.Is(err, usecases.ErrInvalidSignature):
		return http.StatusBadRequest
	case errors.Is(err, usecases.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, usecases.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, usecases.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, usecases.ErrConflict), errors.Is(err, usecases.ErrSlotUnavailable):
		return http.StatusConflict
	case errors.Is(err, usecases.ErrYouTubeUnavailable):
		return http.StatusUnprocessableEntity
	case errors.Is(err, usecases.ErrNotConfigured):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err as {"error": ...}. Unexpected errors are logged
// and hidden from the client.
func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("method", c.Request.Method).Str("path", c.FullPath()).Msg("request failed")
		c.JSON(status, gin.H{"error": "Internal server error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

// pathID parses the :name path parameter, answering 400 when it is not a
// positive integer.
func pathID(c *gin.Context, name string) (int64, bool) {
	id, ok := parseID(c.Param(name))
	if !ok {
		badRequest(c, "Invalid "+name)
	}
	return id, ok
}

func queryInt(c *gin.Context, name string, def int) int {
	v, err := strconv.Atoi(c.Query(name))
	if err != nil {
		return def
	}
	return v
}
