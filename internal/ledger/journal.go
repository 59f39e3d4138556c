// internal/ledger/journal.go
package ledger

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/javajoker/authchain/internal/models"
)

// TxRecord is a committed local transaction, enough to replay it.
type TxRecord struct {
	Hash   common.Hash
	Block  uint64
	Time   uint64
	From   common.Address
	Method string
	Args   []string
	Value  *big.Int
	Events []string
}

// Journal is the durable log of committed local transactions.
type Journal interface {
	Append(ctx context.Context, rec TxRecord) error
	Load(ctx context.Context) ([]TxRecord, error)
}

type MemoryJournal struct {
	mu      sync.Mutex
	records []TxRecord
}

func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{}
}

func (j *MemoryJournal) Append(_ context.Context, rec TxRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.records = append(j.records, rec)
	return nil
}

func (j *MemoryJournal) Load(_ context.Context) ([]TxRecord, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]TxRecord(nil), j.records...), nil
}

// GormJournal stores the journal in the ledger_transactions table.
type GormJournal struct {
	db *gorm.DB
}

func NewGormJournal(db *gorm.DB) *GormJournal {
	return &GormJournal{db: db}
}

func (j *GormJournal) Append(ctx context.Context, rec TxRecord) error {
	value := "0"
	if rec.Value != nil {
		value = rec.Value.String()
	}

	row := &models.LedgerTransaction{
		Hash:        rec.Hash.Hex(),
		BlockNumber: rec.Block,
		BlockTime:   int64(rec.Time),
		Sender:      rec.From.Hex(),
		Method:      rec.Method,
		Args:        models.JSONStrings(rec.Args),
		Value:       value,
		Events:      pq.StringArray(rec.Events),
	}
	if err := j.db.WithContext(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("failed to append transaction %s: %w", rec.Hash.Hex(), err)
	}
	return nil
}

func (j *GormJournal) Load(ctx context.Context) ([]TxRecord, error) {
	var rows []models.LedgerTransaction
	if err := j.db.WithContext(ctx).Order("block_number ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load journal: %w", err)
	}

	records := make([]TxRecord, 0, len(rows))
	for _, row := range rows {
		value, ok := new(big.Int).SetString(row.Value, 10)
		if !ok {
			return nil, fmt.Errorf("transaction %s has invalid value %q", row.Hash, row.Value)
		}
		records = append(records, TxRecord{
			Hash:   common.HexToHash(row.Hash),
			Block:  row.BlockNumber,
			Time:   uint64(row.BlockTime),
			From:   common.HexToAddress(row.Sender),
			Method: row.Method,
			Args:   []string(row.Args),
			Value:  value,
			Events: []string(row.Events),
		})
	}
	return records, nil
}
