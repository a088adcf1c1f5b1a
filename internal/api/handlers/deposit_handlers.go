package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/umoja-exchange/settlement-service/internal/domain/entities"
	domainerrors "github.com/umoja-exchange/settlement-service/internal/domain/errors"
	"github.com/umoja-exchange/settlement-service/internal/domain/services/deposit"
	"github.com/umoja-exchange/settlement-service/pkg/logger"
)

const maxListLimit = 200

// DepositHandlers exposes deposit records for support and reconciliation
type DepositHandlers struct {
	depositService *deposit.Service
	logger         *logger.Logger
}

// NewDepositHandlers creates a new deposit handlers instance
func NewDepositHandlers(depositService *deposit.Service, logger *logger.Logger) *DepositHandlers {
	return &DepositHandlers{
		depositService: depositService,
		logger:         logger,
	}
}

// GetDeposit returns the deposit recorded for a transaction hash
func (h *DepositHandlers) GetDeposit(c *gin.Context) {
	txHash := c.Param("txHash")
	if txHash == "" {
		SendBadRequest(c, ErrCodeMissingField, "Transaction hash is required")
		return
	}

	record, err := h.depositService.GetByTxHash(c.Request.Context(), txHash)
	if err != nil {
		if domainerrors.IsNotFound(err) {
			SendNotFound(c, ErrCodeDepositNotFound, "No deposit recorded for this transaction")
			return
		}
		h.logger.Error("Failed to fetch deposit", "tx_hash", txHash, "error", err)
		SendInternalError(c, ErrCodeInternalError, MsgInternalError)
		return
	}

	c.JSON(http.StatusOK, record)
}

// ListDeposits returns recent deposits, optionally filtered by status
func (h *DepositHandlers) ListDeposits(c *gin.Context) {
	var status entities.DepositStatus
	if statusQuery := c.Query("status"); statusQuery != "" {
		status = entities.DepositStatus(statusQuery)
		if !status.IsValid() {
			SendBadRequest(c, ErrCodeInvalidStatus, "Unknown deposit status",
				map[string]interface{}{"status": statusQuery})
			return
		}
	}

	limit := 50
	if limitQuery := c.Query("limit"); limitQuery != "" {
		parsed, err := strconv.Atoi(limitQuery)
		if err != nil || parsed < 1 {
			SendBadRequest(c, ErrCodeInvalidLimit, "Limit must be a positive integer")
			return
		}
		limit = parsed
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	deposits, err := h.depositService.ListRecent(c.Request.Context(), status, limit)
	if err != nil {
		h.logger.Error("Failed to list deposits", "error", err)
		SendInternalError(c, ErrCodeInternalError, MsgInternalError)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"deposits": deposits,
		"count":    len(deposits),
	})
}
