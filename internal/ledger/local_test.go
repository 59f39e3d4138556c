package ledger

import (
	"context"
	"errors"
	"math/big"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/javajoker/authchain/internal/config"
	"github.com/javajoker/authchain/internal/database"
	"github.com/javajoker/authchain/internal/registry"
)

type LocalLedgerTestSuite struct {
	suite.Suite
	ctx     context.Context
	ids     *Identities
	journal *MemoryJournal
	ledger  *LocalLedger
	now     time.Time
}

func (s *LocalLedgerTestSuite) SetupTest() {
	s.ctx = context.Background()
	ids, err := NewIdentities("", "", "", false)
	s.Require().NoError(err)
	s.ids = ids
	s.journal = NewMemoryJournal()
	s.now = time.Unix(1700000000, 0)
	s.ledger = s.newLedger(s.journal)
}

func (s *LocalLedgerTestSuite) newLedger(journal Journal) *LocalLedger {
	logger, _ := test.NewNullLogger()
	l, err := NewLocalLedger(s.ctx, LocalOptions{
		Owner:   s.ids.Owner.Address,
		Genesis: s.genesis(),
		Journal: journal,
		Clock:   func() time.Time { return s.now },
		Logger:  logger,
	})
	s.Require().NoError(err)
	return l
}

func (s *LocalLedgerTestSuite) genesis() map[common.Address]*big.Int {
	ten, _ := ParseEther("10")
	return map[common.Address]*big.Int{
		s.ids.Creator.Address:   ten,
		s.ids.Purchaser.Address: ten,
		s.ids.Owner.Address:     ten,
	}
}

func (s *LocalLedgerTestSuite) seedLicense(price string) uint64 {
	_, err := s.ledger.RegisterWork(s.ctx, s.ids.Creator, "Test Work", "QmTestHash123", "type: music, genre: classical")
	s.Require().NoError(err)
	count, err := s.ledger.GetWorkCount(s.ctx)
	s.Require().NoError(err)
	workID := count - 1

	wei, err := ParseEther(price)
	s.Require().NoError(err)
	_, err = s.ledger.CreateLicense(s.ctx, s.ids.Creator, workID, wei, 86400, "commercial")
	s.Require().NoError(err)

	ids, err := s.ledger.GetWorkLicenses(s.ctx, workID)
	s.Require().NoError(err)
	return ids[len(ids)-1]
}

func (s *LocalLedgerTestSuite) TestOwnerIsOwnerIdentity() {
	owner, err := s.ledger.Owner(s.ctx)
	s.NoError(err)
	s.Equal(s.ids.Owner.Address, owner)
	s.Equal(BackendLocal, s.ledger.Backend())
}

func (s *LocalLedgerTestSuite) TestReceiptsAdvanceBlocks() {
	first, err := s.ledger.RegisterWork(s.ctx, s.ids.Creator, "A", "QmA", "m")
	s.Require().NoError(err)
	second, err := s.ledger.RegisterWork(s.ctx, s.ids.Creator, "B", "QmB", "m")
	s.Require().NoError(err)

	s.Equal(uint64(1), first.BlockNumber)
	s.Equal(uint64(2), second.BlockNumber)
	s.NotEqual(first.TxHash, second.TxHash)
	s.Equal([]string{registry.EventWorkRegistered}, first.Events)
	s.Equal(uint64(2), s.ledger.BlockNumber())

	work, err := s.ledger.GetWork(s.ctx, 1)
	s.NoError(err)
	s.Equal(uint64(s.now.Unix()), work.Timestamp)
	s.Equal(s.ids.Creator.Address, work.Creator)
}

func (s *LocalLedgerTestSuite) TestRevertIsNotMined() {
	s.seedLicense("0.1")

	_, err := s.ledger.CreateLicense(s.ctx, s.ids.Purchaser, 1, big.NewInt(1), 10, "commercial")
	s.ErrorIs(err, registry.ErrUnauthorized)
	s.Equal(uint64(2), s.ledger.BlockNumber())

	records, _ := s.journal.Load(s.ctx)
	s.Len(records, 2)
}

func (s *LocalLedgerTestSuite) TestPurchaseMovesRoyalty() {
	licID := s.seedLicense("0.1")
	price, _ := ParseEther("0.1")

	creatorBefore, _ := s.ledger.BalanceAt(s.ctx, s.ids.Creator.Address)
	_, err := s.ledger.PurchaseLicense(s.ctx, s.ids.Purchaser, licID, price)
	s.Require().NoError(err)

	creatorAfter, _ := s.ledger.BalanceAt(s.ctx, s.ids.Creator.Address)
	s.Equal(0, price.Cmp(new(big.Int).Sub(creatorAfter, creatorBefore)))

	lic, err := s.ledger.GetLicense(s.ctx, licID)
	s.NoError(err)
	s.True(lic.Active)
	s.Equal(s.ids.Purchaser.Address, lic.Licensee)
}

func (s *LocalLedgerTestSuite) TestConcurrentPurchasesFirstWins() {
	licID := s.seedLicense("0.1")
	price, _ := ParseEther("0.1")

	const buyers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		already   int
	)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.ledger.PurchaseLicense(s.ctx, s.ids.Purchaser, licID, price)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, registry.ErrAlreadyActive):
				already++
			}
		}()
	}
	wg.Wait()

	s.Equal(1, succeeded)
	s.Equal(buyers-1, already)
}

func (s *LocalLedgerTestSuite) TestReplayRestoresState() {
	licID := s.seedLicense("0.1")
	price, _ := ParseEther("0.1")
	_, err := s.ledger.PurchaseLicense(s.ctx, s.ids.Purchaser, licID, price)
	s.Require().NoError(err)

	restarted := s.newLedger(s.journal)
	s.Equal(s.ledger.BlockNumber(), restarted.BlockNumber())

	lic, err := restarted.GetLicense(s.ctx, licID)
	s.NoError(err)
	s.True(lic.Active)

	want, _ := s.ledger.BalanceAt(s.ctx, s.ids.Creator.Address)
	got, _ := restarted.BalanceAt(s.ctx, s.ids.Creator.Address)
	s.Equal(0, want.Cmp(got))

	count, _ := restarted.GetWorkCount(s.ctx)
	s.Equal(uint64(2), count)
}

func (s *LocalLedgerTestSuite) TestCanceledContext() {
	ctx, cancel := context.WithCancel(s.ctx)
	cancel()

	_, err := s.ledger.RegisterWork(ctx, s.ids.Creator, "A", "QmA", "m")
	s.ErrorIs(err, context.Canceled)
	_, err = s.ledger.GetWork(ctx, 1)
	s.ErrorIs(err, context.Canceled)
}

func (s *LocalLedgerTestSuite) TestJournalFailureRollsBack() {
	failing := &failingJournal{MemoryJournal: NewMemoryJournal()}
	l := s.newLedger(failing)

	_, err := l.RegisterWork(s.ctx, s.ids.Creator, "A", "QmA", "m")
	s.Require().NoError(err)

	failing.fail = true
	_, err = l.RegisterWork(s.ctx, s.ids.Creator, "B", "QmB", "m")
	s.ErrorIs(err, ErrTransport)

	count, _ := l.GetWorkCount(s.ctx)
	s.Equal(uint64(2), count)
	s.Equal(uint64(1), l.BlockNumber())
}

func (s *LocalLedgerTestSuite) TestAppendFailureKeepsCommittedState() {
	for name, loadFails := range map[string]bool{"caller canceled": false, "journal down": true} {
		s.Run(name, func() {
			journal := &flakyJournal{MemoryJournal: NewMemoryJournal()}
			l := s.newLedger(journal)
			for _, title := range []string{"A", "B", "C"} {
				_, err := l.RegisterWork(s.ctx, s.ids.Creator, title, "Qm"+title, "m")
				s.Require().NoError(err)
			}

			ctx, cancel := context.WithCancel(s.ctx)
			defer cancel()
			journal.cancel = cancel
			journal.loadFails = loadFails
			_, err := l.RegisterWork(ctx, s.ids.Creator, "D", "QmD", "m")
			s.ErrorIs(err, ErrTransport)

			count, err := l.GetWorkCount(s.ctx)
			s.NoError(err)
			s.Equal(uint64(4), count)
			s.Equal(uint64(3), l.BlockNumber())
			work, _ := l.GetWork(s.ctx, 1)
			s.Equal("A", work.Title)

			journal.cancel = nil
			journal.loadFails = false
			_, err = l.RegisterWork(s.ctx, s.ids.Creator, "E", "QmE", "m")
			s.Require().NoError(err)
			next, _ := l.GetWork(s.ctx, 4)
			s.Equal("E", next.Title)
			records, _ := journal.MemoryJournal.Load(s.ctx)
			s.Len(records, 4)
		})
	}
}

func TestLocalLedgerSuite(t *testing.T) {
	suite.Run(t, new(LocalLedgerTestSuite))
}

type failingJournal struct {
	*MemoryJournal
	fail bool
}

func (f *failingJournal) Append(ctx context.Context, rec TxRecord) error {
	if f.fail {
		return errors.New("disk full")
	}
	return f.MemoryJournal.Append(ctx, rec)
}

// flakyJournal cancels the caller's context and fails appends while cancel is
// set. Load honours the context like a database driver would.
type flakyJournal struct {
	*MemoryJournal
	cancel    context.CancelFunc
	loadFails bool
}

func (f *flakyJournal) Append(ctx context.Context, rec TxRecord) error {
	if f.cancel != nil {
		f.cancel()
		return errors.New("connection reset")
	}
	return f.MemoryJournal.Append(ctx, rec)
}

func (f *flakyJournal) Load(ctx context.Context) ([]TxRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.loadFails {
		return nil, errors.New("connection refused")
	}
	return f.MemoryJournal.Load(ctx)
}

func TestGormJournalReplay(t *testing.T) {
	ctx := context.Background()
	db, err := database.Initialize(config.DatabaseConfig{
		Driver:     "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "journal_test.db"),
		LogLevel:   "silent",
	})
	require.NoError(t, err)
	defer database.Close(db)
	require.NoError(t, database.RunMigrations(db))

	ids, err := NewIdentities("", "", "", false)
	require.NoError(t, err)
	funds, _ := ParseEther("5")
	opts := LocalOptions{
		Owner:   ids.Owner.Address,
		Genesis: map[common.Address]*big.Int{ids.Purchaser.Address: funds},
		Journal: NewGormJournal(db),
		Logger:  logrus.New(),
	}

	first, err := NewLocalLedger(ctx, opts)
	require.NoError(t, err)
	_, err = first.RegisterWork(ctx, ids.Creator, "Test Work", "QmTestHash123", "type: music")
	require.NoError(t, err)
	price, _ := ParseEther("0.5")
	_, err = first.CreateLicense(ctx, ids.Creator, 1, price, 3600, "non-commercial")
	require.NoError(t, err)
	receipt, err := first.PurchaseLicense(ctx, ids.Purchaser, 1, price)
	require.NoError(t, err)
	assert.Equal(t, []string{registry.EventLicensePurchased}, receipt.Events)

	second, err := NewLocalLedger(ctx, opts)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), second.BlockNumber())

	work, err := second.GetWork(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Test Work", work.Title)

	lic, err := second.GetLicense(ctx, 1)
	require.NoError(t, err)
	assert.True(t, lic.Active)
	assert.Equal(t, 0, price.Cmp(lic.Price))

	balance, err := second.BalanceAt(ctx, ids.Creator.Address)
	require.NoError(t, err)
	assert.Equal(t, 0, price.Cmp(balance))
}

func TestNewIdentities(t *testing.T) {
	const key = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

	ids, err := NewIdentities("0x"+key, key, "", false)
	require.NoError(t, err)
	assert.Equal(t, ids.Creator.Address, ids.Purchaser.Address)
	assert.NotEqual(t, ids.Creator.Address, ids.Owner.Address)
	assert.True(t, ids.Ephemeral)
	assert.NotNil(t, ids.Creator.Key())

	signer, ok := ids.ByRole(RolePurchaser)
	assert.True(t, ok)
	assert.Equal(t, RolePurchaser, signer.Role)

	strict, err := NewIdentities(key, key, "", true)
	require.NoError(t, err)
	assert.Nil(t, strict.Owner.Key())
	assert.False(t, strict.Ephemeral)

	_, err = NewIdentities("", key, key, true)
	assert.ErrorContains(t, err, "creator private key is required")

	_, err = NewIdentities("not-hex", "", "", false)
	assert.Error(t, err)
}
