// internal/models/transaction.go
package models

import (
	"time"

	"github.com/lib/pq"
)

// LedgerTransaction is one committed transaction of the local ledger journal.
type LedgerTransaction struct {
	ID          uint           `json:"-" gorm:"primaryKey"`
	Hash        string         `json:"hash" gorm:"size:66;not null;uniqueIndex"`
	BlockNumber uint64         `json:"block_number" gorm:"not null;uniqueIndex"`
	BlockTime   int64          `json:"block_time" gorm:"not null"`
	Sender      string         `json:"sender" gorm:"size:42;not null;index"`
	Method      string         `json:"method" gorm:"size:32;not null;index"`
	Args        JSONStrings    `json:"args" gorm:"type:text"`
	Value       string         `json:"value" gorm:"size:80;not null;default:'0'"`
	Events      pq.StringArray `json:"events" gorm:"type:text"`
	CreatedAt   time.Time      `json:"created_at"`
}

// TxResponse is returned by every mutating endpoint.
type TxResponse struct {
	Message         string `json:"message"`
	TransactionHash string `json:"transactionHash"`
}
