package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/umoja-exchange/settlement-service/internal/domain/entities"
	"github.com/umoja-exchange/settlement-service/internal/domain/services/treasury"
	"github.com/umoja-exchange/settlement-service/pkg/logger"
)

// TreasuryHandlers exposes treasury balances and journal history
type TreasuryHandlers struct {
	treasuryService *treasury.Service
	logger          *logger.Logger
}

// NewTreasuryHandlers creates a new treasury handlers instance
func NewTreasuryHandlers(treasuryService *treasury.Service, logger *logger.Logger) *TreasuryHandlers {
	return &TreasuryHandlers{
		treasuryService: treasuryService,
		logger:          logger,
	}
}

// GetBalances returns every treasury account balance
func (h *TreasuryHandlers) GetBalances(c *gin.Context) {
	balances, err := h.treasuryService.GetAllBalances(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to fetch treasury balances", "error", err)
		SendInternalError(c, ErrCodeInternalError, MsgInternalError)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"balances": balances,
		"count":    len(balances),
	})
}

// GetHistory returns the treasury journal, optionally filtered by account
// type and asset symbol.
func (h *TreasuryHandlers) GetHistory(c *gin.Context) {
	var accountType entities.TreasuryAccountType
	if typeQuery := c.Query("accountType"); typeQuery != "" {
		accountType = entities.TreasuryAccountType(typeQuery)
		if err := accountType.Validate(); err != nil {
			SendBadRequest(c, ErrCodeInvalidRequest, "Unknown account type",
				map[string]interface{}{"accountType": typeQuery})
			return
		}
	}
	assetSymbol := c.Query("assetSymbol")

	limit := 0
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

	transactions, err := h.treasuryService.GetTransactionHistory(c.Request.Context(), accountType, assetSymbol, limit)
	if err != nil {
		h.logger.Error("Failed to fetch treasury history", "error", err)
		SendInternalError(c, ErrCodeInternalError, MsgInternalError)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"transactions": transactions,
		"count":        len(transactions),
	})
}
