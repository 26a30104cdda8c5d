package http

import (
	"bytes"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"project_citabot/internal/entities"
	"project_citabot/internal/usecases"
)

func (h *Handler) LeadBoard(c *gin.Context) {
	board, err := h.svc.Leads.Board(c.Request.Context(), currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, board)
}

type columnPayload struct {
	Title    string `json:"title"`
	Color    string `json:"color"`
	Position int    `json:"position"`
}

func bindColumn(c *gin.Context) (*columnPayload, bool) {
	var p columnPayload
	if err := c.ShouldBindJSON(&p); err != nil {
		badRequest(c, "Invalid request body")
		return nil, false
	}
	if !ValidateLength(p.Title, 1, MaxTitleLength) {
		badRequest(c, "title is required")
		return nil, false
	}
	if p.Color == "" {
		p.Color = entities.DefaultColumnColor
	}
	if !ValidColor(p.Color) {
		badRequest(c, "color must be #rrggbb")
		return nil, false
	}
	p.Title = SanitizeString(p.Title)
	return &p, true
}

func (h *Handler) CreateColumn(c *gin.Context) {
	p, ok := bindColumn(c)
	if !ok {
		return
	}
	col, err := h.svc.Leads.CreateColumn(c.Request.Context(), currentUserID(c), p.Title, p.Color)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, col)
}

func (h *Handler) UpdateColumn(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	p, ok := bindColumn(c)
	if !ok {
		return
	}
	col := &entities.LeadColumn{ID: id, Title: p.Title, Color: p.Color, Position: p.Position}
	if err := h.svc.Leads.UpdateColumn(c.Request.Context(), currentUserID(c), col); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, col)
}

func (h *Handler) DeleteColumn(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Leads.DeleteColumn(c.Request.Context(), currentUserID(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (h *Handler) SyncColumns(c *gin.Context) {
	var payload struct {
		Columns []entities.LeadColumn `json:"columns"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	added, err := h.svc.Leads.SyncColumns(c.Request.Context(), currentUserID(c), payload.Columns)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"added": added})
}

func bindLead(c *gin.Context) (*entities.Lead, bool) {
	var l entities.Lead
	if err := c.ShouldBindJSON(&l); err != nil {
		badRequest(c, "Invalid request body")
		return nil, false
	}
	if !ValidateLength(l.Name, 0, MaxTitleLength) || !ValidateLength(l.Message, 0, MaxMessageLength) || !ValidateLength(l.Notes, 0, MaxMessageLength) {
		badRequest(c, "Lead fields too long")
		return nil, false
	}
	l.Name = SanitizeString(l.Name)
	l.Phone = SanitizeString(l.Phone)
	l.Email = SanitizeString(l.Email)
	l.Message = SanitizeString(l.Message)
	l.Notes = SanitizeString(l.Notes)
	return &l, true
}

func (h *Handler) CreateLead(c *gin.Context) {
	l, ok := bindLead(c)
	if !ok {
		return
	}
	if err := h.svc.Leads.CreateLead(c.Request.Context(), currentUserID(c), l); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, l)
}

func (h *Handler) UpdateLead(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	l, ok := bindLead(c)
	if !ok {
		return
	}
	l.ID = id
	if err := h.svc.Leads.UpdateLead(c.Request.Context(), currentUserID(c), l); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, l)
}

func (h *Handler) MoveLead(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var payload struct {
		ColumnID int64 `json:"column_id"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	if err := h.svc.Leads.MoveLead(c.Request.Context(), currentUserID(c), id, payload.ColumnID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "moved", "column_id": payload.ColumnID})
}

func (h *Handler) DeleteLead(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Leads.DeleteLead(c.Request.Context(), currentUserID(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// ImportContacts accepts a multipart "file" (CSV or JSON) or a JSON body
// {"contacts": [...], "column_id": n}.
func (h *Handler) ImportContacts(c *gin.Context) {
	var (
		rows     []entities.ContactRow
		columnID int64
		err      error
	)

	if strings.HasPrefix(c.ContentType(), "multipart/") {
		file, _, ferr := c.Request.FormFile("file")
		if ferr != nil {
			badRequest(c, "file is required")
			return
		}
		defer file.Close()

		raw, rerr := io.ReadAll(io.LimitReader(file, MaxImportBytes+1))
		if rerr != nil {
			badRequest(c, "Could not read file")
			return
		}
		if len(raw) > MaxImportBytes {
			badRequest(c, "File too large")
			return
		}
		if rows, err = usecases.ParseContacts(bytes.NewReader(raw)); err != nil {
			respondError(c, err)
			return
		}
		if v := c.PostForm("column_id"); v != "" {
			columnID, _ = strconv.ParseInt(v, 10, 64)
		}
	} else {
		var payload struct {
			Contacts []entities.ContactRow `json:"contacts"`
			ColumnID int64                 `json:"column_id"`
		}
		if err := c.ShouldBindJSON(&payload); err != nil {
			badRequest(c, "Invalid request body")
			return
		}
		rows, columnID = payload.Contacts, payload.ColumnID
	}

	stats, err := h.svc.Leads.ImportContacts(c.Request.Context(), currentUserID(c), rows, columnID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *Handler) BulkSend(c *gin.Context) {
	var payload struct {
		ColumnID       int64  `json:"column_id" binding:"required"`
		Mode           string `json:"mode"`
		Text           string `json:"text"`
		PromptTemplate string `json:"prompt_template"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		badRequest(c, "column_id is required")
		return
	}
	if payload.Mode == "" {
		payload.Mode = usecases.BulkModeText
	}
	if !ValidateLength(payload.Text, 0, MaxMessageLength) || !ValidateLength(payload.PromptTemplate, 0, MaxMessageLength) {
		badRequest(c, "Message too long")
		return
	}
	queued, err := h.svc.Leads.BulkSend(c.Request.Context(), currentUserID(c), payload.ColumnID, payload.Mode, payload.Text, payload.PromptTemplate)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "queued", "queued": queued})
}

func (h *Handler) SyncWhatsAppLeads(c *gin.Context) {
	created, skipped, err := h.svc.Leads.SyncWhatsAppLeads(c.Request.Context(), currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"created": created, "skipped": skipped})
}
