// internal/handlers/errors.go
package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"

	"github.com/javajoker/authchain/internal/i18n"
	"github.com/javajoker/authchain/internal/registry"
	"github.com/javajoker/authchain/internal/services"
	"github.com/javajoker/authchain/internal/utils"
)

// parseID reads a positive-or-zero integer path parameter. Zero is accepted
// and resolves to the sentinel record.
func parseID(c *gin.Context, name string) (uint64, bool) {
	raw := c.Param(name)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		lang := utils.GetLangFromContext(c)
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyInvalidID, raw), nil)
		return 0, false
	}
	return id, true
}

func parseAddress(c *gin.Context, name string) (common.Address, bool) {
	raw := c.Param(name)
	if err := utils.ValidateVar(raw, "required,eth_addr"); err != nil {
		lang := utils.GetLangFromContext(c)
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyInvalidAddress, raw), nil)
		return common.Address{}, false
	}
	return common.HexToAddress(raw), true
}

// respondLedgerError answers a failed contract call. Registry reverts get
// revertStatus and a "Contract error" message carrying the reason, missing
// records get 404 and everything else is a 500.
func respondLedgerError(c *gin.Context, err error, revertStatus int) {
	lang := utils.GetLangFromContext(c)
	_ = c.Error(err)

	switch {
	case errors.Is(err, services.ErrWorkNotFound):
		utils.NotFoundResponse(c, i18n.KeyWorkNotFound)
		return
	case errors.Is(err, services.ErrLicenseNotFound):
		utils.NotFoundResponse(c, i18n.KeyLicenseNotFound)
		return
	}

	if reason, ok := registry.ReasonOf(err); ok {
		utils.ErrorResponse(c, revertStatus, i18n.T(lang, i18n.KeyContractError, reason), "", nil)
		return
	}
	if errors.Is(err, registry.ErrInsufficientFunds) {
		utils.ErrorResponse(c, http.StatusBadRequest, i18n.T(lang, i18n.KeyContractError, registry.ErrInsufficientFunds.Error()), "", nil)
		return
	}

	utils.InternalErrorResponse(c, err)
}
