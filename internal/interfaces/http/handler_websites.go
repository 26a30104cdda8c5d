package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"project_citabot/internal/usecases"
)

type translateWebsiteRequest struct {
	TargetLanguage string `json:"targetLanguage" binding:"required"`
	SourceLanguage string `json:"sourceLanguage"`
	CreateNew      *bool  `json:"createNew"`
}

// websiteError answers slug conflicts with a suggestion the builder can
// offer to the user.
func websiteError(c *gin.Context, err error) {
	var taken *usecases.SlugTakenError
	if errors.As(err, &taken) {
		c.JSON(http.StatusConflict, gin.H{"code": "SLUG_ALREADY_EXISTS", "error": taken.Msg, "suggestion": taken.Suggestion})
		return
	}
	respondError(c, err)
}

func (h *Handler) ListWebsites(c *gin.Context) {
	sites, err := h.svc.Websites.List(c.Request.Context(), currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sites)
}

func (h *Handler) GetWebsite(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	w, err := h.svc.Websites.Get(c.Request.Context(), currentUserID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, w)
}

func (h *Handler) CreateWebsite(c *gin.Context) {
	var in usecases.WebsiteInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "Invalid request")
		return
	}
	w, err := h.svc.Websites.Create(c.Request.Context(), currentUserID(c), in)
	if err != nil {
		websiteError(c, err)
		return
	}
	c.JSON(http.StatusCreated, w)
}

func (h *Handler) UpdateWebsite(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var in usecases.WebsiteInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "Invalid request")
		return
	}
	w, err := h.svc.Websites.Update(c.Request.Context(), currentUserID(c), id, in)
	if err != nil {
		websiteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Web actualizada correctamente", "website": w})
}

func (h *Handler) DeleteWebsite(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Websites.Delete(c.Request.Context(), currentUserID(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Web eliminada correctamente"})
}

func (h *Handler) CheckWebsiteSlug(c *gin.Context) {
	res, err := h.svc.Websites.CheckSlug(c.Request.Context(), currentUserID(c), c.Param("slug"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) PublishWebsite(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	w, err := h.svc.Websites.Publish(c.Request.Context(), currentUserID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":       "Web publicada correctamente",
		"website":       gin.H{"id": w.ID, "businessName": w.BusinessName, "slug": w.Slug, "isPublished": true},
		"ownerUsername": w.OwnerUsername,
		"publishUrl":    w.PublishURL,
	})
}

func (h *Handler) UnpublishWebsite(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Websites.Unpublish(c.Request.Context(), currentUserID(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Web despublicada correctamente"})
}

func (req translateWebsiteRequest) createNew() bool {
	return req.CreateNew == nil || *req.CreateNew
}

func (h *Handler) TranslateWebsite(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req translateWebsiteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "targetLanguage es requerido")
		return
	}
	res, err := h.svc.Websites.Translate(c.Request.Context(), currentUserID(c), id, req.TargetLanguage, req.SourceLanguage, req.createNew())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) TranslateAllWebsites(c *gin.Context) {
	var req translateWebsiteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "targetLanguage es requerido")
		return
	}
	res, err := h.svc.Websites.TranslateAll(c.Request.Context(), currentUserID(c), req.TargetLanguage, req.SourceLanguage, req.createNew())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Public site endpoints. Responses may be cached briefly by the edge.

func (h *Handler) PublicWebsite(c *gin.Context) {
	w, err := h.svc.Websites.Public(c.Request.Context(), c.Param("username"), c.Param("slug"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Cache-Control", "public, max-age=300")
	c.JSON(http.StatusOK, w)
}

func (h *Handler) PublicWebsiteBySlug(c *gin.Context) {
	w, err := h.svc.Websites.PublicBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Cache-Control", "public, max-age=300")
	c.JSON(http.StatusOK, w)
}

func (h *Handler) FindUsernameBySlug(c *gin.Context) {
	slug := c.Query("slug")
	username, err := h.svc.Websites.FindUsername(c.Request.Context(), slug)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"username": username, "slug": slug})
}

// CustomDomainWebsite serves the published website bound to the request
// Host.
func (h *Handler) CustomDomainWebsite(c *gin.Context) {
	w, err := h.svc.Websites.ByDomain(c.Request.Context(), c.Request.Host)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("X-Robots-Tag", "index, follow")
	c.Header("Cache-Control", "public, max-age=300")
	c.JSON(http.StatusOK, w)
}
