package http

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"project_citabot/internal/entities"
)

// queryTime parses an RFC 3339 query parameter. Empty means zero time.
func queryTime(c *gin.Context, name string) (time.Time, bool) {
	v := c.Query(name)
	if v == "" {
		return time.Time{}, true
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		badRequest(c, name+" must be an RFC 3339 timestamp")
		return time.Time{}, false
	}
	return t, true
}

func (h *Handler) ListSlots(c *gin.Context) {
	from, ok := queryTime(c, "from")
	if !ok {
		return
	}
	to, ok := queryTime(c, "to")
	if !ok {
		return
	}
	onlyAvailable := c.Query("available") == "true"
	slots, err := h.svc.Availability.ListSlots(c.Request.Context(), currentUserID(c), from, to, onlyAvailable)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, slots)
}

func (h *Handler) CreateSlot(c *gin.Context) {
	var slot entities.Slot
	if err := c.ShouldBindJSON(&slot); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	if !ValidateLength(slot.Summary, 0, MaxTitleLength) || !ValidateLength(slot.Location, 0, MaxTitleLength) || !ValidateLength(slot.Description, 0, MaxMessageLength) {
		badRequest(c, "Slot fields too long")
		return
	}
	slot.Summary = SanitizeString(slot.Summary)
	slot.Location = SanitizeString(slot.Location)
	slot.Description = SanitizeString(slot.Description)
	if err := h.svc.Availability.CreateSlot(c.Request.Context(), currentUserID(c), &slot); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, slot)
}

func (h *Handler) DeleteSlot(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Availability.DeleteSlot(c.Request.Context(), currentUserID(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (h *Handler) ListAppointments(c *gin.Context) {
	from, ok := queryTime(c, "from")
	if !ok {
		return
	}
	appts, err := h.svc.Availability.ListAppointments(c.Request.Context(), currentUserID(c), from)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, appts)
}

func (h *Handler) BookAppointment(c *gin.Context) {
	var req entities.BookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	if !ValidateLength(req.Description, 0, MaxMessageLength) || !ValidateLength(req.Notes, 0, MaxMessageLength) {
		badRequest(c, "Booking fields too long")
		return
	}
	req.ClientName = SanitizeString(req.ClientName)
	req.Description = SanitizeString(req.Description)
	req.Notes = SanitizeString(req.Notes)
	res, err := h.svc.Availability.Book(c.Request.Context(), currentUserID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) CancelAppointment(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	appt, err := h.svc.Availability.Cancel(c.Request.Context(), currentUserID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, appt)
}

// Google Calendar

func (h *Handler) GoogleAuthURL(c *gin.Context) {
	authURL, err := h.svc.Calendar.AuthURL(c.Request.Context(), currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": authURL})
}

// GoogleCallback is hit by the browser coming back from the consent screen,
// so it answers with a redirect to the dashboard instead of JSON.
func (h *Handler) GoogleCallback(c *gin.Context) {
	target := strings.TrimRight(h.svc.FrontendURL, "/") + "/settings"
	if errParam := c.Query("error"); errParam != "" {
		c.Redirect(http.StatusFound, target+"?google=error&reason="+url.QueryEscape(errParam))
		return
	}
	account, err := h.svc.Calendar.HandleCallback(c.Request.Context(), c.Query("state"), c.Query("code"))
	if err != nil {
		log.Warn().Err(err).Msg("google oauth callback failed")
		c.Redirect(http.StatusFound, target+"?google=error")
		return
	}
	log.Info().Int("user_id", account.UserID).Msg("google calendar linked")
	c.Redirect(http.StatusFound, target+"?google=connected")
}

func (h *Handler) GoogleStatus(c *gin.Context) {
	account, err := h.svc.Calendar.Status(c.Request.Context(), currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	if account == nil {
		c.JSON(http.StatusOK, gin.H{"connected": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"connected": true, "email": account.Email, "updated_at": account.UpdatedAt})
}

func (h *Handler) GoogleDisconnect(c *gin.Context) {
	if err := h.svc.Calendar.Disconnect(c.Request.Context(), currentUserID(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "disconnected"})
}
