package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"project_citabot/internal/entities"
	"project_citabot/internal/infrastructure"
)

// WebChatSend runs a visitor message from the embeddable widget through the
// message pipeline. A session id is created on the first message.
func (h *Handler) WebChatSend(c *gin.Context) {
	userID, err := strconv.Atoi(c.Param("user_id"))
	if err != nil || userID <= 0 {
		badRequest(c, "Invalid user_id")
		return
	}

	var payload struct {
		SessionID string `json:"session_id"`
		Name      string `json:"name"`
		Content   string `json:"content"`
		MessageID string `json:"message_id"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	if payload.SessionID == "" {
		payload.SessionID = uuid.NewString()
	} else if !ValidSessionID(payload.SessionID) {
		badRequest(c, "Invalid session_id")
		return
	}
	if !ValidateLength(payload.Content, 1, MaxMessageLength) {
		badRequest(c, "content must be between 1 and 4096 characters")
		return
	}
	if payload.MessageID == "" {
		payload.MessageID = uuid.NewString()
	}

	reply, err := h.svc.Messages.HandleInbound(c.Request.Context(), entities.InboundMessage{
		UserID:      userID,
		Platform:    entities.PlatformWeb,
		ExternalID:  payload.SessionID,
		ContactName: TruncateString(SanitizeString(payload.Name), MaxTitleLength),
		MessageID:   payload.MessageID,
		Content:     SanitizeString(payload.Content),
		MessageType: entities.MessageTypeText,
		ReceivedAt:  time.Now(),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session_id": payload.SessionID, "reply": reply})
}

func (h *Handler) WebChatHistory(c *gin.Context) {
	userID, err := strconv.Atoi(c.Param("user_id"))
	if err != nil || userID <= 0 {
		badRequest(c, "Invalid user_id")
		return
	}
	sessionID := c.Param("session_id")
	if !ValidSessionID(sessionID) {
		badRequest(c, "Invalid session_id")
		return
	}
	msgs, err := h.svc.Conversations.ExternalMessages(c.Request.Context(), userID, sessionID, queryInt(c, "limit", 100))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, msgs)
}

// WebChatSocket pushes replies to the visitor's widget.
func (h *Handler) WebChatSocket(c *gin.Context) {
	sessionID := c.Param("session_id")
	if !ValidSessionID(sessionID) {
		badRequest(c, "Invalid session_id")
		return
	}
	h.serveSocket(c, infrastructure.WebChatRoom(sessionID), sessionID)
}

// RealtimeSocket streams the user's conversation events to the dashboard.
// Each browser tab passes its own client_id to keep its own socket.
func (h *Handler) RealtimeSocket(c *gin.Context) {
	clientID := c.Query("client_id")
	if clientID == "" {
		clientID = uuid.NewString()
	} else if !ValidSessionID(clientID) {
		badRequest(c, "Invalid client_id")
		return
	}
	h.serveSocket(c, infrastructure.UserRoom(currentUserID(c)), clientID)
}

func (h *Handler) serveSocket(c *gin.Context, room, subscriberID string) {
	if h.svc.Hub == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Realtime not available"})
		return
	}
	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the error response.
		log.Debug().Err(err).Str("room", room).Msg("websocket upgrade failed")
		return
	}
	conn := infrastructure.NewConnection(room, subscriberID, ws)
	log.Debug().Str("room", room).Str("connection_id", conn.ID).Msg("websocket attached")
	h.svc.Hub.Serve(conn)
}
