package httpapi

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Router builds the gin engine with all routes and middleware.
func Router(h *Handler, log zerolog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestID())
	r.Use(Logger(log))

	r.GET("/healthz", h.Health)

	api := r.Group("/api")
	{
		api.POST("/dispatches", h.SubmitJob)
		api.POST("/dispatches/:id/response", h.ProviderResponse)
		api.DELETE("/dispatches/:id", h.CancelDispatch)
		api.GET("/dispatches/:id", h.GetDispatch)
		api.GET("/analytics/summary", h.AnalyticsSummary)
	}
	return r
}
