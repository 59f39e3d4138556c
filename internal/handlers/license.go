// internal/handlers/license.go
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/javajoker/authchain/internal/i18n"
	"github.com/javajoker/authchain/internal/models"
	"github.com/javajoker/authchain/internal/services"
	"github.com/javajoker/authchain/internal/utils"
)

type LicenseHandler struct {
	marketplace *services.MarketplaceService
}

func NewLicenseHandler(marketplace *services.MarketplaceService) *LicenseHandler {
	return &LicenseHandler{marketplace: marketplace}
}

// POST /api/licenses
func (h *LicenseHandler) CreateLicense(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	var req services.CreateLicenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		key := i18n.KeyLicenseIncomplete
		for _, ve := range validationErrors {
			if ve.Tag == "ether_amount" {
				utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyLicenseInvalidPrice, req.Price.String()), validationErrors)
				return
			}
		}
		utils.ValidationErrorResponse(c, key, validationErrors)
		return
	}

	receipt, err := h.marketplace.CreateLicense(c.Request.Context(), &req)
	if errors.Is(err, services.ErrInvalidRequest) {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyLicenseIncomplete), err.Error())
		return
	}
	if err != nil {
		respondLedgerError(c, err, http.StatusForbidden)
		return
	}

	c.JSON(http.StatusCreated, models.TxResponse{
		Message:         i18n.T(lang, i18n.KeyLicenseCreated),
		TransactionHash: receipt.TxHash.Hex(),
	})
}

// POST /api/licenses/purchase/:licenseId
func (h *LicenseHandler) PurchaseLicense(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	id, ok := parseID(c, "licenseId")
	if !ok {
		return
	}

	receipt, err := h.marketplace.PurchaseLicense(c.Request.Context(), id)
	if err != nil {
		respondLedgerError(c, err, http.StatusBadRequest)
		return
	}

	c.JSON(http.StatusOK, models.TxResponse{
		Message:         i18n.T(lang, i18n.KeyLicensePurchased),
		TransactionHash: receipt.TxHash.Hex(),
	})
}

// GET /api/licenses/:id
func (h *LicenseHandler) GetLicense(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	license, err := h.marketplace.GetLicense(c.Request.Context(), id)
	if err != nil {
		respondLedgerError(c, err, http.StatusBadRequest)
		return
	}
	c.JSON(http.StatusOK, license)
}
