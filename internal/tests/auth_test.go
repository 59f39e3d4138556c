package tests

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/javajoker/authchain/internal/models"
)

type AuthTestSuite struct {
	apiSuite
}

func (s *AuthTestSuite) TestLoginAsEachRole() {
	cases := map[string]string{
		"creator":  s.ids.Creator.Address.Hex(),
		"consumer": s.ids.Purchaser.Address.Hex(),
		"admin":    s.ids.Owner.Address.Hex(),
	}
	for role, address := range cases {
		token := s.login(role)

		w := s.do(http.MethodGet, "/api/auth/me", nil, "Authorization", "Bearer "+token)
		s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
		var user models.User
		s.decode(w, &user)
		s.Equal(models.UserRole(role), user.Role)
		s.Equal(address, user.Address)
	}
}

func (s *AuthTestSuite) TestLoginUnknownRole() {
	w := s.do(http.MethodPost, "/api/auth/login", map[string]string{"role": "root"})
	s.Equal(http.StatusBadRequest, w.Code)
	s.Equal("Unknown role: root.", s.message(w))
}

func (s *AuthTestSuite) TestMeRequiresToken() {
	w := s.do(http.MethodGet, "/api/auth/me", nil)
	s.Equal(http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodGet, "/api/auth/me", nil, "Authorization", "Bearer garbage")
	s.Equal(http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodGet, "/api/auth/me", nil, "Authorization", "Token abc")
	s.Equal(http.StatusUnauthorized, w.Code)
}

func (s *AuthTestSuite) TestUsersListsPersonas() {
	w := s.do(http.MethodGet, "/api/auth/users", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var users []models.User
	s.decode(w, &users)
	s.Len(users, 3)
}

func (s *AuthTestSuite) TestWithdrawNeedsAdmin() {
	w := s.do(http.MethodPost, "/api/admin/withdraw", nil)
	s.Equal(http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodPost, "/api/admin/withdraw", nil, "Authorization", "Bearer "+s.login("creator"))
	s.Equal(http.StatusForbidden, w.Code)

	w = s.do(http.MethodPost, "/api/admin/withdraw", nil, "Authorization", "Bearer "+s.login("admin"))
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var tx models.TxResponse
	s.decode(w, &tx)
	s.Equal("Contract balance withdrawn.", tx.Message)
	s.NotEmpty(tx.TransactionHash)
}

func TestAuthSuite(t *testing.T) {
	suite.Run(t, new(AuthTestSuite))
}
