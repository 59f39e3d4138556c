// internal/models/license.go
package models

type LicenseResponse struct {
	ID        string `json:"id"`
	WorkID    string `json:"workId"`
	Price     string `json:"price"`
	PriceWei  string `json:"priceWei"`
	Duration  string `json:"duration"`
	UsageType string `json:"usageType"`
	Active    bool   `json:"active"`
	Licensee  string `json:"licensee,omitempty"`
}

type BalanceResponse struct {
	Address    string `json:"address"`
	Balance    string `json:"balance"`
	BalanceWei string `json:"balanceWei"`
}

type RegistryInfo struct {
	Owner     string `json:"owner"`
	WorkCount string `json:"workCount"`
	Backend   string `json:"backend"`
}
