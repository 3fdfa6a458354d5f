package dashboard

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/liliang-cn/chatsupervisor/internal/domain"
	"github.com/liliang-cn/chatsupervisor/internal/events"
	"github.com/liliang-cn/chatsupervisor/internal/metrics"
	"github.com/liliang-cn/chatsupervisor/internal/service"
)

// Handler handles dashboard API requests
type Handler struct {
	supervisor *service.SupervisorService
	broker     *events.Broker
	logger     *zap.Logger
}

// NewHandler creates a new dashboard handler
func NewHandler(supervisor *service.SupervisorService, broker *events.Broker, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		supervisor: supervisor,
		broker:     broker,
		logger:     logger,
	}
}

// RegisterRoutes registers dashboard routes
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/knowledge-base", h.GetKnowledgeBase)
	r.POST("/evaluate", h.Evaluate)
	r.POST("/evaluate/batch", h.EvaluateBatch)

	conversations := r.Group("/conversations")
	{
		conversations.GET("", h.ListConversations)
		conversations.POST("", h.CreateConversation)
		conversations.GET("/:id", h.GetConversation)
		conversations.POST("/:id/turns", h.HandleTurn)
		conversations.POST("/:id/takeover", h.TakeOver)
	}

	r.GET("/selection", h.GetSelection)
	r.PUT("/selection", h.Select)
	r.GET("/stats", h.GetStats)
	r.GET("/interventions/stream", h.StreamInterventions)
}

func (h *Handler) GetKnowledgeBase(c *gin.Context) {
	c.JSON(http.StatusOK, h.supervisor.KnowledgeBase())
}

// Evaluation handlers

func (h *Handler) Evaluate(c *gin.Context) {
	var req domain.EvaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, h.supervisor.Evaluate(c.Request.Context(), &req))
}

func (h *Handler) EvaluateBatch(c *gin.Context) {
	var req domain.BatchEvaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	results, err := h.supervisor.EvaluateBatch(c.Request.Context(), req.Items)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, domain.BatchEvaluateResponse{Results: results})
}

// Conversation handlers

func (h *Handler) ListConversations(c *gin.Context) {
	conversations, err := h.supervisor.ListConversations(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"conversations": conversations})
}

func (h *Handler) CreateConversation(c *gin.Context) {
	var req domain.CreateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	conversation, err := h.supervisor.CreateConversation(c.Request.Context(), &req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, conversation)
}

func (h *Handler) GetConversation(c *gin.Context) {
	conversation, err := h.supervisor.GetConversation(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, conversation)
}

func (h *Handler) HandleTurn(c *gin.Context) {
	var req domain.TurnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.supervisor.HandleTurn(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) TakeOver(c *gin.Context) {
	conversation, err := h.supervisor.TakeOver(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, conversation)
}

// Selection handlers

func (h *Handler) GetSelection(c *gin.Context) {
	conversation, err := h.supervisor.SelectedConversation(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, conversation)
}

func (h *Handler) Select(c *gin.Context) {
	var req domain.SelectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	conversation, err := h.supervisor.SelectConversation(c.Request.Context(), req.ConversationID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, conversation)
}

// Stats handler

func (h *Handler) GetStats(c *gin.Context) {
	stats, err := h.supervisor.GetStats(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// StreamInterventions pushes intervention signals as server-sent events
func (h *Handler) StreamInterventions(c *gin.Context) {
	stream, cancel := h.broker.Subscribe()
	defer cancel()

	metrics.StreamSubscribers.Inc()
	defer metrics.StreamSubscribers.Dec()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	c.SSEvent("ready", gin.H{"subscribers": h.broker.Subscribers()})
	c.Writer.Flush()

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case intervention, ok := <-stream:
			if !ok {
				return false
			}
			c.SSEvent("intervention", intervention)
			return true
		}
	})
}

func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
	case errors.Is(err, domain.ErrInvalidRequest):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.logger.Error("Request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
