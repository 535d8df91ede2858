package api_gateway

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/banking-transfer-saga/internal/api_gateway/handler"
	"github.com/banking-transfer-saga/internal/api_gateway/middleware"
	"github.com/gin-gonic/gin"
)

// setupRouter configures API routes and middleware for the application
func setupRouter(
	logger *slog.Logger,
	r *gin.Engine,
	accountHandler *handler.AccountHandler,
	transferHandler *handler.TransferHandler,
	reconciliationHandler *handler.ReconciliationHandler,
) {
	// correlation first so the logger and recovery see the id
	r.Use(middleware.CorrelationID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recovery(logger))

	v1 := r.Group("/api/v1")
	{
		// Direct account operations bypass the saga
		accounts := v1.Group("/accounts")
		{
			accounts.POST("", accountHandler.Create)
			accounts.GET("/:number", accountHandler.GetByNumber)
			accounts.POST("/:number/debit", accountHandler.Debit)
			accounts.POST("/:number/credit", accountHandler.Credit)
			accounts.GET("/:number/entries", accountHandler.ListEntries)
		}

		transfers := v1.Group("/transfers")
		{
			transfers.POST("", transferHandler.Create)
			transfers.GET("/:id", transferHandler.GetByID)
			transfers.GET("/:id/history", transferHandler.GetHistory)
		}

		v1.GET("/reconciliation/unmatched", reconciliationHandler.ListUnmatched)
	}

	// Health check endpoint for monitoring
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC()})
	})
}
