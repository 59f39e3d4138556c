// internal/models/user.go
package models

// User is a mock marketplace persona bound to a ledger address.
type User struct {
	Name    string   `json:"name"`
	Role    UserRole `json:"role"`
	Address string   `json:"address"`
}
