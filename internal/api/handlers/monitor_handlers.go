package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/umoja-exchange/settlement-service/internal/domain/entities"
	domainerrors "github.com/umoja-exchange/settlement-service/internal/domain/errors"
	"github.com/umoja-exchange/settlement-service/internal/domain/services/monitor"
	"github.com/umoja-exchange/settlement-service/pkg/logger"
)

// MonitorHandlers exposes chain listener state and start/stop control
type MonitorHandlers struct {
	monitorService *monitor.Service
	logger         *logger.Logger
}

// NewMonitorHandlers creates a new monitor handlers instance
func NewMonitorHandlers(monitorService *monitor.Service, logger *logger.Logger) *MonitorHandlers {
	return &MonitorHandlers{
		monitorService: monitorService,
		logger:         logger,
	}
}

// Status reports each configured chain listener and its running state
func (h *MonitorHandlers) Status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"chains":           h.monitorService.Status(),
		"supported_tokens": h.monitorService.SupportedTokens(),
	})
}

// StartChain starts a single chain's listener
func (h *MonitorHandlers) StartChain(c *gin.Context) {
	chain, ok := h.chainParam(c)
	if !ok {
		return
	}

	if err := h.monitorService.StartChain(c.Request.Context(), chain); err != nil {
		if domainerrors.IsNotFound(err) {
			SendNotFound(c, ErrCodeChainNotFound, "Chain is not configured")
			return
		}
		h.logger.Warn("Failed to start chain listener", "chain", chain, "error", err)
		SendConflict(c, ErrCodeConflict, err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{"chain": chain, "running": true})
}

// StopChain stops a single chain's listener
func (h *MonitorHandlers) StopChain(c *gin.Context) {
	chain, ok := h.chainParam(c)
	if !ok {
		return
	}

	if err := h.monitorService.StopChain(chain); err != nil {
		if domainerrors.IsNotFound(err) {
			SendNotFound(c, ErrCodeChainNotFound, "Chain is not configured")
			return
		}
		h.logger.Warn("Failed to stop chain listener", "chain", chain, "error", err)
		SendConflict(c, ErrCodeConflict, err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{"chain": chain, "running": false})
}

func (h *MonitorHandlers) chainParam(c *gin.Context) (entities.Chain, bool) {
	chain := entities.Chain(c.Param("chain"))
	if !chain.IsValid() {
		SendBadRequest(c, ErrCodeInvalidChain, "Unknown chain",
			map[string]interface{}{"chain": c.Param("chain")})
		return "", false
	}
	return chain, true
}
