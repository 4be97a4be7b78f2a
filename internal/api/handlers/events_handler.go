package handlers

import (
	"context"
	"net/http"
	"strconv"

	"example.com/backstage/services/gamebot/internal/models"
	"example.com/backstage/services/gamebot/internal/tracing"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const defaultHistoryLimit = 20

// EventLister returns snapshots of the live events
type EventLister interface {
	List(ctx context.Context, guildID string) ([]models.Event, error)
}

// HistoryReader returns recent lifecycle records
type HistoryReader interface {
	Enabled() bool
	History(ctx context.Context, limit int) ([]models.Lifecycle, error)
}

// LifecycleSearcher looks up the indexed lifecycle records of one event
type LifecycleSearcher interface {
	Enabled() bool
	ByEvent(ctx context.Context, eventID string) ([]models.Lifecycle, error)
}

// EventsHandler exposes live events and their lifecycle history
type EventsHandler struct {
	events    EventLister
	history   HistoryReader
	lifecycle LifecycleSearcher
	tracer    tracing.Tracer
}

// NewEventsHandler creates a new events handler. history and lifecycle may be nil.
func NewEventsHandler(events EventLister, history HistoryReader, lifecycle LifecycleSearcher, tracer tracing.Tracer) *EventsHandler {
	return &EventsHandler{
		events:    events,
		history:   history,
		lifecycle: lifecycle,
		tracer:    tracer,
	}
}

// HandleListEvents returns the live events, optionally filtered by guild_id
func (h *EventsHandler) HandleListEvents(c *gin.Context) {
	txn := h.tracer.StartTransaction("list-events")
	defer h.tracer.EndTransaction(txn)

	events, err := h.events.List(c.Request.Context(), c.Query("guild_id"))
	if err != nil {
		h.tracer.RecordError(txn, err)
		status := http.StatusInternalServerError
		if errors.Is(err, models.ErrEngineStopped) {
			status = http.StatusServiceUnavailable
		}
		log.Error().Err(err).Msg("Failed to list events")
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	if events == nil {
		events = []models.Event{}
	}
	c.JSON(http.StatusOK, gin.H{
		"count":  len(events),
		"events": events,
	})
}

// HandleGetHistory returns the most recent lifecycle records, newest first
func (h *EventsHandler) HandleGetHistory(c *gin.Context) {
	txn := h.tracer.StartTransaction("get-event-history")
	defer h.tracer.EndTransaction(txn)

	if h.history == nil || !h.history.Enabled() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "lifecycle journal is disabled"})
		return
	}

	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	records, err := h.history.History(c.Request.Context(), limit)
	if err != nil {
		h.tracer.RecordError(txn, err)
		log.Error().Err(err).Msg("Failed to read lifecycle history")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read history"})
		return
	}

	if records == nil {
		records = []models.Lifecycle{}
	}
	c.JSON(http.StatusOK, gin.H{
		"count":   len(records),
		"records": records,
	})
}

// HandleGetLifecycle returns every indexed lifecycle record of one event
func (h *EventsHandler) HandleGetLifecycle(c *gin.Context) {
	txn := h.tracer.StartTransaction("get-event-lifecycle")
	defer h.tracer.EndTransaction(txn)

	if h.lifecycle == nil || !h.lifecycle.Enabled() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "lifecycle index is disabled"})
		return
	}

	eventID := c.Param("id")
	records, err := h.lifecycle.ByEvent(c.Request.Context(), eventID)
	if err != nil {
		h.tracer.RecordError(txn, err)
		log.Error().Err(err).Str("event_id", eventID).Msg("Failed to search lifecycle records")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to search lifecycle records"})
		return
	}
	if len(records) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "no lifecycle records for event"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"event_id": eventID,
		"records":  records,
	})
}

// RegisterRoutes registers the handler's routes
func (h *EventsHandler) RegisterRoutes(router *gin.Engine) {
	router.GET("/events", h.HandleListEvents)
	router.GET("/events/history", h.HandleGetHistory)
	router.GET("/lifecycle/:id", h.HandleGetLifecycle)
}
