package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"schoolmail/internal/model"
	"schoolmail/internal/service/triage"
	"schoolmail/pkg/logger"
)

type TriageHandler struct {
	svc    *triage.Service
	logger *zap.Logger
}

func NewTriageHandler(svc *triage.Service, logger *zap.Logger) *TriageHandler {
	return &TriageHandler{svc: svc, logger: logger}
}

// Inbox 返回当前用户的待处理条目
func (h *TriageHandler) Inbox(c *gin.Context) {
	userID := c.GetInt("user_id")

	items, err := h.svc.Inbox(c.Request.Context(), userID)
	if err != nil {
		logger.WithTrace(c.Request.Context(), h.logger).Error("Inbox: failed to list items",
			zap.Int("user_id", userID),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch items"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": toItemResponses(items)})
}

func (h *TriageHandler) Reminders(c *gin.Context) {
	userID := c.GetInt("user_id")

	items, err := h.svc.Reminders(c.Request.Context(), userID)
	if err != nil {
		logger.WithTrace(c.Request.Context(), h.logger).Error("Reminders: failed to list items",
			zap.Int("user_id", userID),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch items"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": toItemResponses(items)})
}

type setStatusRequest struct {
	Status   string     `json:"status" binding:"required"`
	RemindAt *time.Time `json:"remind_at"`
}

func (h *TriageHandler) SetStatus(c *gin.Context) {
	userID := c.GetInt("user_id")

	itemID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid item id"})
		return
	}

	var req setStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status required"})
		return
	}

	status := model.Status(req.Status)
	if !status.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status must be inbox, done or remind"})
		return
	}

	if err := h.svc.SetStatus(c.Request.Context(), userID, itemID, status, req.RemindAt); err != nil {
		logger.WithTrace(c.Request.Context(), h.logger).Error("SetStatus: failed to update",
			zap.Int("user_id", userID),
			zap.String("item_id", itemID.String()),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update status"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type itemResponse struct {
	ID              uuid.UUID  `json:"id"`
	Content         string     `json:"content"`
	DateStart       *time.Time `json:"date_start,omitempty"`
	DateEnd         *time.Time `json:"date_end,omitempty"`
	ExternalURLs    []string   `json:"external_urls,omitempty"`
	EmailReceivedAt time.Time  `json:"email_received_at"`
	Status          string     `json:"status"`
	RemindAt        *time.Time `json:"remind_at,omitempty"`
}

func toItemResponses(views []model.ItemView) []itemResponse {
	out := make([]itemResponse, 0, len(views))
	for _, v := range views {
		out = append(out, itemResponse{
			ID:              v.ID,
			Content:         v.Content,
			DateStart:       v.DateStart,
			DateEnd:         v.DateEnd,
			ExternalURLs:    v.ExternalURLs,
			EmailReceivedAt: v.EmailReceivedAt,
			Status:          string(v.Status),
			RemindAt:        v.RemindAt,
		})
	}
	return out
}
