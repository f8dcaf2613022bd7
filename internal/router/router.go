package router

import (
	"github.com/gin-gonic/gin"
	swaggerfiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"certflow/docs"
	"certflow/internal/auth"
	"certflow/internal/handler"
	"certflow/internal/middleware"
	"certflow/internal/port"
)

// Handlers groups the HTTP handlers mounted by Setup.
type Handlers struct {
	Health     *handler.HealthHandler
	Extraction *handler.ExtractionHandler
	Correction *handler.CorrectionHandler
	Review     *handler.ReviewHandler
	Suggestion *handler.SuggestionHandler
	Risk       *handler.RiskHandler
}

// Limiters holds the per-scope rate limiters for operator-triggered actions.
type Limiters struct {
	Analysis port.RateLimiter
	Training port.RateLimiter
}

// Setup configures the Gin engine with all routes and middleware.
func Setup(verifier auth.TokenVerifier, limiters Limiters, allowedOrigins []string, h Handlers) *gin.Engine {
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.CORS(allowedOrigins))

	// Health checks
	r.GET("/healthz", h.Health.Liveness)
	r.GET("/readyz", h.Health.Readiness)

	docs.SwaggerInfo.BasePath = "/api/v1"
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerfiles.Handler))

	v1 := r.Group("/api/v1")
	v1.Use(middleware.AuthMiddleware(verifier))
	v1.Use(middleware.OrgGuard())

	reviewerOnly := middleware.RequireRole(auth.RoleAdmin, auth.RoleReviewer)
	adminOnly := middleware.RequireRole(auth.RoleAdmin)

	// Certificates
	certs := v1.Group("/certificates")
	certs.POST("/:id/extractions", h.Extraction.Start)
	certs.POST("/:id/supersede", h.Extraction.Supersede)
	certs.GET("/:id/corrections", h.Correction.ListByCertificate)

	// Extraction runs
	runs := v1.Group("/extractions")
	runs.GET("/:id", h.Extraction.GetByID)
	runs.GET("/:id/export", h.Extraction.Export)

	// Corrections target a run or a certificate
	v1.POST("/corrections/:id", reviewerOnly, h.Correction.Record)

	// Human review queue
	reviews := v1.Group("/reviews")
	reviews.Use(reviewerOnly)
	reviews.GET("", h.Review.ListPending)
	reviews.POST("/:id/claim", h.Review.Claim)
	reviews.POST("/:id/decision", h.Review.Decide)

	// Pattern analysis and suggestions
	v1.POST("/patterns/analyze", middleware.RateLimit(limiters.Analysis, "analyze"), h.Suggestion.Analyze)
	suggestions := v1.Group("/suggestions")
	suggestions.GET("", h.Suggestion.List)
	suggestions.POST("/:id/start", h.Suggestion.StartWork)
	suggestions.POST("/:id/resolve", h.Suggestion.Resolve)
	suggestions.POST("/:id/dismiss", h.Suggestion.Dismiss)

	// Risk scoring
	v1.POST("/properties/:id/predict", h.Risk.Predict)
	predictions := v1.Group("/predictions")
	predictions.POST("/bulk", h.Risk.PredictBulk)
	predictions.POST("/feedback", h.Risk.SubmitFeedback)

	// Models
	models := v1.Group("/models")
	models.POST("/train", adminOnly, middleware.RateLimit(limiters.Training, "train"), h.Risk.Train)
	models.GET("/active", h.Risk.ActiveModel)
	models.GET("/training-runs", h.Risk.TrainingRuns)
	models.POST("/:id/benchmark", h.Risk.Benchmark)
	models.POST("/:id/promote", adminOnly, h.Risk.Promote)

	return r
}
