// internal/handlers/work.go
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/javajoker/authchain/internal/i18n"
	"github.com/javajoker/authchain/internal/models"
	"github.com/javajoker/authchain/internal/registry"
	"github.com/javajoker/authchain/internal/services"
	"github.com/javajoker/authchain/internal/utils"
)

type WorkHandler struct {
	marketplace *services.MarketplaceService
	content     *services.ContentService
}

func NewWorkHandler(marketplace *services.MarketplaceService, content *services.ContentService) *WorkHandler {
	return &WorkHandler{
		marketplace: marketplace,
		content:     content,
	}
}

// GET /api/works
func (h *WorkHandler) ListWorks(c *gin.Context) {
	listings, err := h.marketplace.ListWorks(c.Request.Context())
	if err != nil {
		respondLedgerError(c, err, http.StatusBadRequest)
		return
	}
	c.JSON(http.StatusOK, listings)
}

// GET /api/works/:id
func (h *WorkHandler) GetWork(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	work, err := h.marketplace.GetWork(c.Request.Context(), id)
	if err != nil {
		respondLedgerError(c, err, http.StatusBadRequest)
		return
	}
	c.JSON(http.StatusOK, work)
}

// POST /api/works
func (h *WorkHandler) RegisterWork(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	var req services.RegisterWorkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, i18n.KeyWorkIncomplete, validationErrors)
		return
	}

	receipt, err := h.marketplace.RegisterWork(c.Request.Context(), &req)
	if err != nil {
		respondLedgerError(c, err, http.StatusBadRequest)
		return
	}

	c.JSON(http.StatusCreated, models.TxResponse{
		Message:         i18n.T(lang, i18n.KeyWorkRegistered),
		TransactionHash: receipt.TxHash.Hex(),
	})
}

// POST /api/works/publish
func (h *WorkHandler) PublishWork(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	header, err := c.FormFile("file")
	if err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyFileMissing), nil)
		return
	}

	address, receipt, err := h.content.Publish(c.Request.Context(), header, c.PostForm("title"), c.PostForm("metadata"))
	switch {
	case err == nil:
	case errors.Is(err, services.ErrInvalidRequest):
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyWorkIncomplete), nil)
		return
	case address == "":
		respondUploadError(c, err, h.content.Options())
		return
	default:
		// stored but not registered
		if reason, ok := registry.ReasonOf(err); ok {
			utils.ErrorResponse(c, http.StatusBadRequest, i18n.T(lang, i18n.KeyContractError, reason), "", gin.H{"ipfsHash": address})
			return
		}
		_ = c.Error(err)
		utils.ErrorResponse(c, http.StatusInternalServerError, i18n.T(lang, i18n.KeyInternalError), err.Error(), gin.H{"ipfsHash": address})
		return
	}

	c.JSON(http.StatusCreated, models.PublishResponse{
		Message:         i18n.T(lang, i18n.KeyWorkPublished),
		IPFSHash:        address,
		TransactionHash: receipt.TxHash.Hex(),
	})
}

// GET /api/works/:id/licenses
func (h *WorkHandler) GetWorkLicenses(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	licenses, err := h.marketplace.GetWorkLicenses(c.Request.Context(), id)
	if err != nil {
		respondLedgerError(c, err, http.StatusBadRequest)
		return
	}
	c.JSON(http.StatusOK, licenses)
}

// GET /api/creators/:address/works
func (h *WorkHandler) GetCreatorWorks(c *gin.Context) {
	address, ok := parseAddress(c, "address")
	if !ok {
		return
	}

	works, err := h.marketplace.GetCreatorWorks(c.Request.Context(), address)
	if err != nil {
		respondLedgerError(c, err, http.StatusBadRequest)
		return
	}
	c.JSON(http.StatusOK, works)
}
