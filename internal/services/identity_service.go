// internal/services/identity_service.go
package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/javajoker/authchain/internal/ledger"
	"github.com/javajoker/authchain/internal/models"
	"github.com/javajoker/authchain/internal/utils"
)

var ErrUnknownRole = errors.New("unknown role")

type Session struct {
	Token     string      `json:"token"`
	TokenType string      `json:"tokenType"`
	ExpiresIn int         `json:"expiresIn"` // in seconds
	User      models.User `json:"user"`
}

type LoginRequest struct {
	Role models.UserRole `json:"role" validate:"required"`
}

// IdentityProvider issues and resolves marketplace sessions. A provider with a
// real credential check can replace the mock without touching the ledger.
type IdentityProvider interface {
	Login(req *LoginRequest) (*Session, error)
	Resolve(token string) (*models.User, error)
	Users() []models.User
}

// MockIdentityProvider logs anyone in as one of three fixed personas, each
// bound to a configured signer address. It performs no credential check.
type MockIdentityProvider struct {
	users    map[models.UserRole]models.User
	ttlHours int
}

var personas = []struct {
	name   string
	role   models.UserRole
	signer ledger.Role
}{
	{"Content Creator", models.UserRoleCreator, ledger.RoleCreator},
	{"Content User", models.UserRoleConsumer, ledger.RolePurchaser},
	{"Platform Admin", models.UserRoleAdmin, ledger.RoleOwner},
}

func NewMockIdentityProvider(ids *ledger.Identities, ttlHours int) *MockIdentityProvider {
	if ttlHours <= 0 {
		ttlHours = 24
	}
	p := &MockIdentityProvider{
		users:    make(map[models.UserRole]models.User, len(personas)),
		ttlHours: ttlHours,
	}
	for _, persona := range personas {
		signer, _ := ids.ByRole(persona.signer)
		p.users[persona.role] = models.User{
			Name:    persona.name,
			Role:    persona.role,
			Address: signer.Address.Hex(),
		}
	}
	return p
}

func (p *MockIdentityProvider) Login(req *LoginRequest) (*Session, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	user, ok := p.users[req.Role]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRole, req.Role)
	}

	token, err := utils.GenerateJWT(user.Name, string(user.Role), user.Address, p.ttlHours)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	return &Session{
		Token:     token,
		TokenType: "Bearer",
		ExpiresIn: int((time.Duration(p.ttlHours) * time.Hour).Seconds()),
		User:      user,
	}, nil
}

func (p *MockIdentityProvider) Resolve(token string) (*models.User, error) {
	claims, err := utils.ValidateJWT(token)
	if err != nil {
		return nil, err
	}

	user, ok := p.users[models.UserRole(claims.Role)]
	if !ok || user.Address != claims.Address {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRole, claims.Role)
	}
	return &user, nil
}

// Users lists the personas in login order.
func (p *MockIdentityProvider) Users() []models.User {
	users := make([]models.User, 0, len(personas))
	for _, persona := range personas {
		users = append(users, p.users[persona.role])
	}
	return users
}
