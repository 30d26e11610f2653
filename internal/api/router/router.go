package router

import (
	"github.com/cuongbtq/text-stream/internal/api/handler"
	"github.com/gin-gonic/gin"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	jobHandler := handler.NewJobHandler(deps)

	// Health check endpoint
	r.GET("/health", jobHandler.Health)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		// GET /api/v1/stream - Open the event stream for a connection
		v1.GET("/stream", jobHandler.Stream)

		jobs := v1.Group("/jobs")
		{
			// POST /api/v1/jobs - Create a new job
			jobs.POST("", jobHandler.CreateJob)

			// GET /api/v1/jobs - List the caller's jobs
			jobs.GET("", jobHandler.ListJobs)

			// GET /api/v1/jobs/:job_id - Get job details
			jobs.GET("/:job_id", jobHandler.GetJob)

			// POST /api/v1/jobs/:job_id/cancel - Cancel a job
			jobs.POST("/:job_id/cancel", jobHandler.CancelJob)

			// POST|DELETE /api/v1/jobs/:job_id/subscribe - Join or leave a job topic
			jobs.POST("/:job_id/subscribe", jobHandler.Subscribe)
			jobs.DELETE("/:job_id/subscribe", jobHandler.Unsubscribe)
		}
	}

	return r
}
