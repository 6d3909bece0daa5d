package handlers

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/orrn/printfair/internal/db"
)

type CreateWebhookRequest struct {
	Name   string   `json:"name" binding:"required"`
	URL    string   `json:"url" binding:"required,url"`
	Secret string   `json:"secret"`
	Events []string `json:"events" binding:"required"`
}

type UpdateWebhookRequest struct {
	Name    string   `json:"name"`
	URL     string   `json:"url" binding:"omitempty,url"`
	Secret  string   `json:"secret"`
	Events  []string `json:"events"`
	Enabled *bool    `json:"enabled"`
}

type WebhookResponse struct {
	ID      int64    `json:"id"`
	Name    string   `json:"name"`
	URL     string   `json:"url"`
	Events  []string `json:"events"`
	Enabled bool     `json:"enabled"`
}

type WebhookHandler struct {
	store *db.Store
}

func NewWebhookHandler(store *db.Store) *WebhookHandler {
	return &WebhookHandler{store: store}
}

func (h *WebhookHandler) CreateWebhook(c *gin.Context) {
	var req CreateWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	eventsJSON, err := json.Marshal(req.Events)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid events"})
		return
	}

	hook := &db.Webhook{
		Name:       req.Name,
		URL:        req.URL,
		Secret:     req.Secret,
		EventsJSON: string(eventsJSON),
		Enabled:    true,
	}
	if err := h.store.Webhooks.CreateWebhook(c.Request.Context(), hook); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create webhook"})
		return
	}

	c.JSON(http.StatusCreated, webhookToResponse(hook))
}

func (h *WebhookHandler) ListWebhooks(c *gin.Context) {
	hooks, err := h.store.Webhooks.ListWebhooks(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list webhooks"})
		return
	}

	responses := make([]WebhookResponse, 0, len(hooks))
	for _, hook := range hooks {
		responses = append(responses, webhookToResponse(hook))
	}

	c.JSON(http.StatusOK, gin.H{"webhooks": responses, "count": len(responses)})
}

func (h *WebhookHandler) UpdateWebhook(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid webhook id"})
		return
	}

	hook, err := h.store.Webhooks.GetWebhookByID(c.Request.Context(), id)
	if err != nil {
		if err == sql.ErrNoRows {
			c.JSON(http.StatusNotFound, gin.H{"error": "webhook not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get webhook"})
		return
	}

	var req UpdateWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.Name != "" {
		hook.Name = req.Name
	}
	if req.URL != "" {
		hook.URL = req.URL
	}
	if req.Secret != "" {
		hook.Secret = req.Secret
	}
	if req.Events != nil {
		eventsJSON, err := json.Marshal(req.Events)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid events"})
			return
		}
		hook.EventsJSON = string(eventsJSON)
	}
	if req.Enabled != nil {
		hook.Enabled = *req.Enabled
	}

	if err := h.store.Webhooks.UpdateWebhook(c.Request.Context(), hook); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update webhook"})
		return
	}

	c.JSON(http.StatusOK, webhookToResponse(hook))
}

func (h *WebhookHandler) DeleteWebhook(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid webhook id"})
		return
	}

	if err := h.store.Webhooks.DeleteWebhook(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete webhook"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "webhook deleted"})
}

func webhookToResponse(hook *db.Webhook) WebhookResponse {
	var events []string
	json.Unmarshal([]byte(hook.EventsJSON), &events)
	if events == nil {
		events = []string{}
	}

	return WebhookResponse{
		ID:      hook.ID,
		Name:    hook.Name,
		URL:     hook.URL,
		Events:  events,
		Enabled: hook.Enabled,
	}
}

func (h *WebhookHandler) RegisterRoutes(admin *gin.RouterGroup) {
	admin.GET("/webhooks", h.ListWebhooks)
	admin.POST("/webhooks", h.CreateWebhook)
	admin.PUT("/webhooks/:id", h.UpdateWebhook)
	admin.DELETE("/webhooks/:id", h.DeleteWebhook)
}
