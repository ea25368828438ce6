package api_gateway

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pfm-ledger/internal/api_gateway/handler"
	"github.com/pfm-ledger/internal/api_gateway/middleware"
)

// setupRouter configures API routes and middleware for the application
func setupRouter(
	logger *slog.Logger,
	r *gin.Engine,
	importHandler *handler.ImportHandler,
	transactionHandler *handler.TransactionHandler,
	issueHandler *handler.IssueHandler,
) {
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CorrelationID())

	// API v1 endpoints
	v1 := r.Group("/api/v1")
	{
		// Import batch operations
		imports := v1.Group("/imports")
		{
			imports.POST("", importHandler.Submit)
			imports.GET("", importHandler.List)
			imports.GET("/:id", importHandler.GetByID)
			imports.GET("/:id/records", importHandler.GetRecords)
		}

		// Ledger reads
		transactions := v1.Group("/transactions")
		{
			transactions.GET("", transactionHandler.List)
			transactions.GET("/:id", transactionHandler.GetByID)
		}

		// Reconciliation review queue
		issues := v1.Group("/issues")
		{
			issues.GET("", issueHandler.List)
			issues.GET("/:id", issueHandler.GetByID)
			issues.POST("/:id/resolve", issueHandler.Resolve)
		}

		// Reference data
		v1.GET("/categories", issueHandler.ListCategories)
	}

	// Health check endpoint for monitoring
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC()})
	})
}
