package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/umoja-exchange/settlement-service/internal/domain/services/monitor"
	"github.com/umoja-exchange/settlement-service/internal/infrastructure/config"
	"github.com/umoja-exchange/settlement-service/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New("error", "test")
}

// emptyMonitorService builds a monitor service with no chains configured,
// which is enough to exercise the handler's parameter and not-found paths.
func emptyMonitorService(t *testing.T) *monitor.Service {
	t.Helper()
	return monitor.NewService(config.ChainsConfig{}, nil, nil, testLogger())
}

func monitorRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	h := NewMonitorHandlers(emptyMonitorService(t), testLogger())
	router := gin.New()
	monitorGroup := router.Group("/api/v1/monitor")
	{
		monitorGroup.GET("/status", h.Status)
		monitorGroup.POST("/chains/:chain/start", h.StartChain)
		monitorGroup.POST("/chains/:chain/stop", h.StopChain)
	}
	return router
}

func TestMonitorHandlers_Status(t *testing.T) {
	router := monitorRouter(t)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/api/v1/monitor/status", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "chains")
	assert.Contains(t, w.Body.String(), "supported_tokens")
}

func TestMonitorHandlers_StartChain(t *testing.T) {
	tests := []struct {
		name           string
		path           string
		expectedStatus int
		expectedError  string
	}{
		{
			name:           "unknown chain name",
			path:           "/api/v1/monitor/chains/dogecoin/start",
			expectedStatus: http.StatusBadRequest,
			expectedError:  ErrCodeInvalidChain,
		},
		{
			name:           "valid chain not configured",
			path:           "/api/v1/monitor/chains/evm/start",
			expectedStatus: http.StatusNotFound,
			expectedError:  ErrCodeChainNotFound,
		},
	}

	router := monitorRouter(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req, _ := http.NewRequest(http.MethodPost, tt.path, nil)
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.expectedError)
		})
	}
}

func TestMonitorHandlers_StopChain(t *testing.T) {
	router := monitorRouter(t)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/api/v1/monitor/chains/solana/stop", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), ErrCodeChainNotFound)
}
