// internal/models/work.go
package models

// WorkResponse is a single work as served by the API. Numeric fields are
// strings so large integers survive JSON clients.
type WorkResponse struct {
	ID        string `json:"id"`
	Creator   string `json:"creator"`
	Title     string `json:"title"`
	IPFSHash  string `json:"ipfsHash"`
	Metadata  string `json:"metadata"`
	Timestamp string `json:"timestamp"`
}

// WorkListing is a marketplace entry with the ids of the work's licenses.
type WorkListing struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	IPFSHash   string   `json:"ipfsHash"`
	Metadata   string   `json:"metadata"`
	LicenseIDs []string `json:"licenseIds"`
}

type PublishResponse struct {
	Message         string `json:"message"`
	IPFSHash        string `json:"ipfsHash"`
	TransactionHash string `json:"transactionHash"`
}
