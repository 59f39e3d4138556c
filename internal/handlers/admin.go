// internal/handlers/admin.go
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/javajoker/authchain/internal/i18n"
	"github.com/javajoker/authchain/internal/models"
	"github.com/javajoker/authchain/internal/services"
	"github.com/javajoker/authchain/internal/utils"
)

// AdminHandler serves registry-wide views and owner-only actions.
type AdminHandler struct {
	marketplace *services.MarketplaceService
}

func NewAdminHandler(marketplace *services.MarketplaceService) *AdminHandler {
	return &AdminHandler{marketplace: marketplace}
}

// GET /api/registry
func (h *AdminHandler) GetRegistry(c *gin.Context) {
	info, err := h.marketplace.RegistryInfo(c.Request.Context())
	if err != nil {
		respondLedgerError(c, err, http.StatusBadRequest)
		return
	}
	c.JSON(http.StatusOK, info)
}

// GET /api/accounts/:address/balance
func (h *AdminHandler) GetBalance(c *gin.Context) {
	address, ok := parseAddress(c, "address")
	if !ok {
		return
	}

	balance, err := h.marketplace.Balance(c.Request.Context(), address)
	if err != nil {
		respondLedgerError(c, err, http.StatusBadRequest)
		return
	}
	c.JSON(http.StatusOK, balance)
}

// POST /api/admin/withdraw
func (h *AdminHandler) Withdraw(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	receipt, err := h.marketplace.Withdraw(c.Request.Context())
	if err != nil {
		respondLedgerError(c, err, http.StatusForbidden)
		return
	}

	c.JSON(http.StatusOK, models.TxResponse{
		Message:         i18n.T(lang, i18n.KeyLedgerWithdrawn),
		TransactionHash: receipt.TxHash.Hex(),
	})
}
