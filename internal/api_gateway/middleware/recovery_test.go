package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPanickingRouter(logger *slog.Logger) *gin.Engine {
	router := gin.New()
	router.Use(CorrelationID())
	router.Use(Recovery(logger))
	router.POST("/api/v1/transfers", func(c *gin.Context) {
		panic("coordinator unreachable")
	})
	router.GET("/api/v1/accounts/:number", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"account_number": c.Param("number")})
	})
	return router
}

func TestRecoveryMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("PanicBecomes500WithCallerCorrelationID", func(t *testing.T) {
		var logBuffer bytes.Buffer
		router := newPanickingRouter(slog.New(slog.NewJSONHandler(&logBuffer, nil)))

		req, _ := http.NewRequest(http.MethodPost, "/api/v1/transfers", bytes.NewBufferString(`{}`))
		req.Header.Set(CorrelationIDHeader, "checkout-7")
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusInternalServerError, rr.Code)

		var body map[string]any
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		errorField, ok := body["error"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "INTERNAL_SERVER_ERROR", errorField["code"])
		assert.Equal(t, "checkout-7", body["correlation_id"])

		var entry map[string]any
		require.NoError(t, json.Unmarshal(bytes.TrimSpace(logBuffer.Bytes()), &entry))
		assert.Equal(t, "ERROR", entry["level"])
		assert.Equal(t, "Panic recovered", entry["msg"])
		assert.Equal(t, "coordinator unreachable", entry["error"])
		assert.Equal(t, "/api/v1/transfers", entry["route"])
		assert.Equal(t, "checkout-7", entry["correlation_id"])
		assert.NotEmpty(t, entry["stack"])
	})

	t.Run("GeneratedCorrelationIDIsReturned", func(t *testing.T) {
		router := newPanickingRouter(slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil)))

		req, _ := http.NewRequest(http.MethodPost, "/api/v1/transfers", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		var body map[string]any
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		assert.Equal(t, rr.Header().Get(CorrelationIDHeader), body["correlation_id"])
		assert.NotEmpty(t, body["correlation_id"])
	})

	t.Run("HealthyHandlerIsUntouched", func(t *testing.T) {
		var logBuffer bytes.Buffer
		router := newPanickingRouter(slog.New(slog.NewJSONHandler(&logBuffer, nil)))

		req, _ := http.NewRequest(http.MethodGet, "/api/v1/accounts/1001", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `{"account_number":"1001"}`, rr.Body.String())
		assert.Empty(t, logBuffer.String())
	})
}
