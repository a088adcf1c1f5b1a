package handlers

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/umoja-exchange/settlement-service/pkg/logger"
)

var processStart = time.Now()

// CoreHandlers serves the probe and metrics endpoints.
type CoreHandlers struct {
	db     *sql.DB
	logger *logger.Logger
}

func NewCoreHandlers(db *sql.DB, logger *logger.Logger) *CoreHandlers {
	return &CoreHandlers{db: db, logger: logger}
}

// DependencyStatus reports one dependency probe.
type DependencyStatus struct {
	Healthy bool   `json:"healthy"`
	Latency string `json:"latency"`
	Error   string `json:"error,omitempty"`
}

// Health reports overall service health. Postgres is the only hard
// dependency; Redis and AMQP degrade gracefully and are not probed here.
func (h *CoreHandlers) Health(c *gin.Context) {
	db := h.probeDatabase(c.Request.Context())

	status := "healthy"
	code := http.StatusOK
	if !db.Healthy {
		status = "unhealthy"
		code = http.StatusServiceUnavailable
	}

	c.JSON(code, gin.H{
		"status":    status,
		"uptime":    time.Since(processStart).String(),
		"timestamp": time.Now().UTC(),
		"database":  db,
	})
}

// Ready gates traffic on database reachability.
func (h *CoreHandlers) Ready(c *gin.Context) {
	db := h.probeDatabase(c.Request.Context())
	if !db.Healthy {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":   "not_ready",
			"database": db,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// Live answers as long as the process is serving requests.
func (h *CoreHandlers) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "alive",
		"uptime": time.Since(processStart).String(),
	})
}

func (h *CoreHandlers) probeDatabase(ctx context.Context) DependencyStatus {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	start := time.Now()
	err := h.db.PingContext(ctx)

	status := DependencyStatus{
		Healthy: err == nil,
		Latency: time.Since(start).String(),
	}
	if err != nil {
		status.Error = err.Error()
		h.logger.Warn("Database probe failed", "error", err)
	}

	return status
}

// Metrics exposes Prometheus metrics.
func (h *CoreHandlers) Metrics(c *gin.Context) {
	promhttp.Handler().ServeHTTP(c.Writer, c.Request)
}
