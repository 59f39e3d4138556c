// internal/handlers/auth.go
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/javajoker/authchain/internal/i18n"
	"github.com/javajoker/authchain/internal/services"
	"github.com/javajoker/authchain/internal/utils"
)

type AuthHandler struct {
	identities services.IdentityProvider
}

func NewAuthHandler(identities services.IdentityProvider) *AuthHandler {
	return &AuthHandler{identities: identities}
}

type loginResponse struct {
	Message string `json:"message"`
	*services.Session
}

// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	var req services.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, i18n.KeyValidationInvalid, validationErrors)
		return
	}

	session, err := h.identities.Login(&req)
	if errors.Is(err, services.ErrUnknownRole) {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyAuthUnknownRole, req.Role), nil)
		return
	}
	if err != nil {
		utils.InternalErrorResponse(c, err)
		return
	}

	c.JSON(http.StatusOK, loginResponse{
		Message: i18n.T(lang, i18n.KeyAuthLoginSuccess, session.User.Name),
		Session: session,
	})
}

// GET /api/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	user, err := h.identities.Resolve(c.GetString("token"))
	if err != nil {
		// tokens issued for keys generated by a previous run no longer resolve
		utils.UnauthorizedResponse(c, i18n.T(lang, i18n.KeyAuthTokenExpired))
		return
	}
	c.JSON(http.StatusOK, user)
}

// GET /api/auth/users
func (h *AuthHandler) Users(c *gin.Context) {
	c.JSON(http.StatusOK, h.identities.Users())
}
