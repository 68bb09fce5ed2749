package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/fieldmatch/dispatchd/core/analytics"
	"github.com/fieldmatch/dispatchd/core/dispatch"
	"github.com/fieldmatch/dispatchd/core/events"
	"github.com/fieldmatch/dispatchd/core/matching"
	"github.com/fieldmatch/dispatchd/core/model"
)

// RecordLister exposes stored analytics records for the summary
// endpoint.
type RecordLister interface {
	All() []analytics.Record
}

// Handler bundles the dependencies of the HTTP surface.
type Handler struct {
	Engine    *matching.Engine
	Orch      *dispatch.Orchestrator
	Records   RecordLister
	Validator *validator.Validate
	Logger    zerolog.Logger
}

// NewHandler creates a Handler with the domain validators registered.
func NewHandler(engine *matching.Engine, orch *dispatch.Orchestrator, records RecordLister, log zerolog.Logger) *Handler {
	v := validator.New()
	_ = v.RegisterValidation("urgency", func(fl validator.FieldLevel) bool {
		_, ok := model.ParseUrgency(fl.Field().String())
		return ok
	})
	_ = v.RegisterValidation("service_type", func(fl validator.FieldLevel) bool {
		_, ok := model.ParseServiceType(fl.Field().String())
		return ok
	})
	return &Handler{Engine: engine, Orch: orch, Records: records, Validator: v, Logger: log}
}

// SubmitJob ranks the candidate snapshot and starts a dispatch.
func (h *Handler) SubmitJob(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	job := req.Job.toModel(time.Now())
	candidates := make([]model.CandidateProvider, 0, len(req.Candidates))
	for _, dto := range req.Candidates {
		candidates = append(candidates, dto.toModel())
	}

	ranked := h.Engine.Rank(c.Request.Context(), job, candidates)
	id, err := h.Orch.Create(job, ranked)
	if errors.Is(err, dispatch.ErrNoCandidates) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"dispatch_id": id,
			"error":       "no eligible providers",
		})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"dispatch_id": id,
		"candidates":  len(ranked),
	})
}

// ProviderResponse applies an accept or reject from a provider.
func (h *Handler) ProviderResponse(c *gin.Context) {
	dispatchID := c.Param("id")
	var req respondRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	action := events.ResponseAction(req.Action)
	latency := time.Duration(req.ResponseLatencyMs) * time.Millisecond
	err := h.Orch.Respond(dispatchID, req.ProviderID, action, latency)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"result": "ok"})
	case errors.Is(err, dispatch.ErrStaleResponse), errors.Is(err, dispatch.ErrUnknownDispatch):
		c.JSON(http.StatusOK, gin.H{"result": "stale"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// CancelDispatch cancels a pending dispatch.
func (h *Handler) CancelDispatch(c *gin.Context) {
	err := h.Orch.Cancel(c.Param("id"))
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"result": "cancelled"})
	case errors.Is(err, dispatch.ErrUnknownDispatch):
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown dispatch"})
	case errors.Is(err, dispatch.ErrAlreadyResolved):
		c.JSON(http.StatusConflict, gin.H{"error": "already resolved"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// GetDispatch returns the snapshot of a live or resolved dispatch.
func (h *Handler) GetDispatch(c *gin.Context) {
	snap, ok := h.Orch.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown dispatch"})
		return
	}
	c.JSON(http.StatusOK, snap)
}

// AnalyticsSummary aggregates stored response records.
func (h *Handler) AnalyticsSummary(c *gin.Context) {
	if h.Records == nil {
		c.JSON(http.StatusOK, analytics.Summary{})
		return
	}
	c.JSON(http.StatusOK, analytics.Summarize(h.Records.All()))
}

// Health reports basic liveness.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"pending": h.Orch.Pending(),
	})
}
