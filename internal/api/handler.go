package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/ViviZhou160916/medicine-inventory/internal/models"
	"github.com/ViviZhou160916/medicine-inventory/internal/scheduler"
	"github.com/ViviZhou160916/medicine-inventory/internal/service"
	"github.com/ViviZhou160916/medicine-inventory/internal/store"
	"github.com/ViviZhou160916/medicine-inventory/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler contains HTTP handlers
type Handler struct {
	ledger    *service.LedgerService
	items     *service.ItemService
	dashboard *service.DashboardService
	sched     *scheduler.Scheduler
	store     *store.Store
}

// NewHandler creates a new HTTP handler
func NewHandler(
	ledger *service.LedgerService,
	items *service.ItemService,
	dashboard *service.DashboardService,
	sched *scheduler.Scheduler,
	store *store.Store,
) *Handler {
	return &Handler{
		ledger:    ledger,
		items:     items,
		dashboard: dashboard,
		sched:     sched,
		store:     store,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/inventory/inbound", h.inbound)
		v1.POST("/inventory/outbound", h.outbound)
		v1.GET("/inventory/movements", h.listMovements)

		v1.GET("/items", h.listItems)
		v1.GET("/items/expiring", h.listExpiring)
		v1.GET("/items/low-stock", h.listLowStock)
		v1.GET("/items/:id", h.getItem)
		v1.POST("/items", h.createItem)
		v1.PUT("/items/:id", h.updateItem)
		v1.DELETE("/items/:id", h.deleteItem)

		v1.GET("/alerts", h.listAlerts)
		v1.POST("/jobs/:name/run", h.runJob)

		v1.GET("/dashboard", h.getDashboard)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

type movementRequest struct {
	ItemID      string `json:"item_id" binding:"required"`
	Quantity    int    `json:"quantity" binding:"required,min=1"`
	BatchNumber string `json:"batch_number,omitempty"`
	Supplier    string `json:"supplier,omitempty"`
	Reason      string `json:"reason,omitempty"`
	Notes       string `json:"notes,omitempty"`
	OperatorID  string `json:"operator_id"`
}

// inbound records an inbound movement
func (h *Handler) inbound(c *gin.Context) {
	h.applyMovement(c, models.DirectionInbound)
}

// outbound records an outbound movement
func (h *Handler) outbound(c *gin.Context) {
	h.applyMovement(c, models.DirectionOutbound)
}

func (h *Handler) applyMovement(c *gin.Context, direction string) {
	var req movementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	movement, err := h.ledger.Apply(c.Request.Context(), &service.ApplyRequest{
		ItemID:      req.ItemID,
		Direction:   direction,
		Quantity:    req.Quantity,
		BatchNumber: req.BatchNumber,
		Supplier:    req.Supplier,
		Reason:      req.Reason,
		Notes:       req.Notes,
		OperatorID:  req.OperatorID,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, movement)
}

// listMovements lists movements with optional filters
func (h *Handler) listMovements(c *gin.Context) {
	limit, offset := pagination(c)

	movements, total, err := h.store.ListMovements(c.Request.Context(),
		c.Query("item_id"), c.Query("direction"), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"movements": movements,
		"total":     total,
	})
}

// listItems lists items with search and pagination
func (h *Handler) listItems(c *gin.Context) {
	limit, offset := pagination(c)

	items, total, err := h.items.ListItems(c.Request.Context(),
		c.Query("search"), c.Query("category"), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"items": items,
		"total": total,
	})
}

// getItem retrieves one item
func (h *Handler) getItem(c *gin.Context) {
	item, err := h.items.GetItem(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// createItem creates a new item
func (h *Handler) createItem(c *gin.Context) {
	var req service.ItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	item, err := h.items.CreateItem(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

// updateItem updates item metadata
func (h *Handler) updateItem(c *gin.Context) {
	var req service.ItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	item, err := h.items.UpdateItem(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// deleteItem soft-deletes an item
func (h *Handler) deleteItem(c *gin.Context) {
	if err := h.items.DeleteItem(c.Request.Context(), c.Param("id"), c.Query("operator_id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "item deleted"})
}

// listExpiring lists items expiring within the given number of days
func (h *Handler) listExpiring(c *gin.Context) {
	days, err := strconv.Atoi(c.DefaultQuery("days", "30"))
	if err != nil || days < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid days parameter"})
		return
	}

	items, err := h.store.ListExpiring(c.Request.Context(), time.Now().AddDate(0, 0, days))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// listLowStock lists items below their reorder threshold
func (h *Handler) listLowStock(c *gin.Context) {
	items, err := h.store.ListLowStock(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// listAlerts lists open alerts
func (h *Handler) listAlerts(c *gin.Context) {
	alerts, err := h.store.ListOpenAlerts(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"alerts": alerts})
}

// runJob triggers a scheduled job on demand
func (h *Handler) runJob(c *gin.Context) {
	err := h.sched.TriggerNow(c.Request.Context(), c.Param("name"))
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"status": "completed"})
	case errors.Is(err, scheduler.ErrUnknownJob):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, scheduler.ErrAlreadyRunning):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// getDashboard returns aggregated inventory stats
func (h *Handler) getDashboard(c *gin.Context) {
	stats, err := h.dashboard.GetStats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// respondError maps domain errors to HTTP statuses
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrInvalidQuantity):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrInsufficientStock):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrDependencyUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func pagination(c *gin.Context) (limit, offset int) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	limit, err = strconv.Atoi(c.DefaultQuery("limit", "10"))
	if err != nil || limit < 1 || limit > 100 {
		limit = 10
	}
	return limit, (page - 1) * limit
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
