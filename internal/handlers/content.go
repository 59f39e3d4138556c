// internal/handlers/content.go
package handlers

import (
	"errors"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/javajoker/authchain/internal/i18n"
	"github.com/javajoker/authchain/internal/services"
	"github.com/javajoker/authchain/internal/utils"
)

type ContentHandler struct {
	content *services.ContentService
}

func NewContentHandler(content *services.ContentService) *ContentHandler {
	return &ContentHandler{content: content}
}

// POST /api/content
func (h *ContentHandler) Upload(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	header, err := c.FormFile("file")
	if err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyFileMissing), nil)
		return
	}

	address, err := h.content.Upload(c.Request.Context(), header)
	if err != nil {
		respondUploadError(c, err, h.content.Options())
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":  i18n.T(lang, i18n.KeyFileUploadSuccess),
		"ipfsHash": address,
	})
}

func respondUploadError(c *gin.Context, err error, options services.UploadOptions) {
	lang := utils.GetLangFromContext(c)
	_ = c.Error(err)

	switch {
	case errors.Is(err, services.ErrFileTooLarge):
		utils.ErrorResponse(c, http.StatusRequestEntityTooLarge, i18n.T(lang, i18n.KeyFileTooLarge, options.MaxSize), "", nil)
	case errors.Is(err, services.ErrFileTypeNotAllowed):
		ext := ""
		if header, ferr := c.FormFile("file"); ferr == nil {
			ext = strings.ToLower(filepath.Ext(header.Filename))
		}
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyFileInvalidType, ext), options.AllowedTypes)
	default:
		utils.ErrorResponse(c, http.StatusBadGateway, i18n.T(lang, i18n.KeyFileUploadFailed), err.Error(), nil)
	}
}
