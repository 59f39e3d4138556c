// internal/ledger/local.go
package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/authchain/internal/registry"
)

const (
	methodRegisterWork    = "registerWork"
	methodCreateLicense   = "createLicense"
	methodPurchaseLicense = "purchaseLicense"
	methodWithdraw        = "withdraw"
)

type LocalOptions struct {
	Owner   common.Address
	Genesis map[common.Address]*big.Int
	Journal Journal
	Clock   func() time.Time
	Logger  logrus.FieldLogger
}

// LocalLedger runs the registry in process. One mutex orders every
// transaction, and each committed transaction is mined into its own block.
type LocalLedger struct {
	mu      sync.Mutex
	reg     *registry.Registry
	block   uint64
	owner   common.Address
	genesis map[common.Address]*big.Int
	journal Journal
	// history holds every committed record in block order.
	history []TxRecord
	clock   func() time.Time
	log     logrus.FieldLogger
}

// NewLocalLedger deploys a registry owned by opts.Owner, funds the genesis
// accounts and replays the journal.
func NewLocalLedger(ctx context.Context, opts LocalOptions) (*LocalLedger, error) {
	if opts.Journal == nil {
		opts.Journal = NewMemoryJournal()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}

	l := &LocalLedger{
		owner:   opts.Owner,
		genesis: opts.Genesis,
		journal: opts.Journal,
		clock:   opts.Clock,
		log:     opts.Logger.WithField("ledger", BackendLocal),
	}
	records, err := l.journal.Load(ctx)
	if err != nil {
		return nil, transportError("load journal", err)
	}
	if err := l.rebuild(records); err != nil {
		return nil, err
	}
	if len(records) > 0 {
		l.log.WithField("block", l.block).Info("Replayed ledger journal")
	}
	return l, nil
}

func (l *LocalLedger) Backend() string {
	return BackendLocal
}

// BlockNumber returns the height of the last committed block.
func (l *LocalLedger) BlockNumber() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.block
}

func (l *LocalLedger) RegisterWork(ctx context.Context, signer Signer, title, ipfsHash, metadata string) (*Receipt, error) {
	return l.submit(ctx, signer, nil, methodRegisterWork, []string{title, ipfsHash, metadata})
}

func (l *LocalLedger) CreateLicense(ctx context.Context, signer Signer, workID uint64, price *big.Int, duration uint64, usageType string) (*Receipt, error) {
	if price == nil {
		price = new(big.Int)
	}
	args := []string{
		strconv.FormatUint(workID, 10),
		price.String(),
		strconv.FormatUint(duration, 10),
		usageType,
	}
	return l.submit(ctx, signer, nil, methodCreateLicense, args)
}

func (l *LocalLedger) PurchaseLicense(ctx context.Context, signer Signer, licenseID uint64, value *big.Int) (*Receipt, error) {
	return l.submit(ctx, signer, value, methodPurchaseLicense, []string{strconv.FormatUint(licenseID, 10)})
}

func (l *LocalLedger) Withdraw(ctx context.Context, signer Signer) (*Receipt, error) {
	return l.submit(ctx, signer, nil, methodWithdraw, nil)
}

func (l *LocalLedger) Owner(ctx context.Context) (common.Address, error) {
	if err := ctx.Err(); err != nil {
		return common.Address{}, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.reg.Owner(), nil
}

func (l *LocalLedger) GetWork(ctx context.Context, id uint64) (registry.Work, error) {
	if err := ctx.Err(); err != nil {
		return registry.Work{}, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.reg.GetWork(id), nil
}

func (l *LocalLedger) GetLicense(ctx context.Context, id uint64) (registry.License, error) {
	if err := ctx.Err(); err != nil {
		return registry.License{}, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.reg.GetLicense(id), nil
}

func (l *LocalLedger) GetCreatorWorks(ctx context.Context, creator common.Address) ([]uint64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.reg.GetCreatorWorks(creator), nil
}

func (l *LocalLedger) GetWorkLicenses(ctx context.Context, workID uint64) ([]uint64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.reg.GetWorkLicenses(workID), nil
}

func (l *LocalLedger) GetWorkCount(ctx context.Context) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.reg.GetWorkCount(), nil
}

func (l *LocalLedger) BalanceAt(ctx context.Context, account common.Address) (*big.Int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.reg.Balance(account), nil
}

func (l *LocalLedger) submit(ctx context.Context, signer Signer, value *big.Int, method string, args []string) (*Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if value == nil {
		value = new(big.Int)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	rec := TxRecord{
		Block:  l.block + 1,
		Time:   uint64(l.clock().Unix()),
		From:   signer.Address,
		Method: method,
		Args:   args,
		Value:  new(big.Int).Set(value),
	}
	rec.Hash = txHash(rec)

	events, err := l.apply(rec)
	if err != nil {
		l.log.WithFields(logrus.Fields{
			"method": method,
			"from":   signer.Address.Hex(),
		}).WithError(err).Warn("Transaction rejected")
		return nil, err
	}
	rec.Events = eventNames(events)

	if err := l.journal.Append(ctx, rec); err != nil {
		l.restore(ctx)
		return nil, transportError("append journal", err)
	}
	l.block = rec.Block
	l.history = append(l.history, rec)

	l.log.WithFields(logrus.Fields{
		"tx":     rec.Hash.Hex(),
		"block":  rec.Block,
		"method": method,
		"from":   signer.Address.Hex(),
	}).Info("Transaction confirmed")

	return &Receipt{TxHash: rec.Hash, BlockNumber: rec.Block, Events: rec.Events}, nil
}

func (l *LocalLedger) apply(rec TxRecord) ([]registry.Event, error) {
	call := registry.Call{From: rec.From, Value: rec.Value, Time: rec.Time}

	switch rec.Method {
	case methodRegisterWork:
		if len(rec.Args) != 3 {
			return nil, fmt.Errorf("%s: expected 3 arguments, got %d", rec.Method, len(rec.Args))
		}
		_, events, err := l.reg.RegisterWork(call, rec.Args[0], rec.Args[1], rec.Args[2])
		return events, err

	case methodCreateLicense:
		if len(rec.Args) != 4 {
			return nil, fmt.Errorf("%s: expected 4 arguments, got %d", rec.Method, len(rec.Args))
		}
		workID, err := strconv.ParseUint(rec.Args[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%s: invalid work id: %w", rec.Method, err)
		}
		price, ok := new(big.Int).SetString(rec.Args[1], 10)
		if !ok {
			return nil, fmt.Errorf("%s: invalid price %q", rec.Method, rec.Args[1])
		}
		duration, err := strconv.ParseUint(rec.Args[2], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%s: invalid duration: %w", rec.Method, err)
		}
		_, events, err := l.reg.CreateLicense(call, workID, price, duration, rec.Args[3])
		return events, err

	case methodPurchaseLicense:
		if len(rec.Args) != 1 {
			return nil, fmt.Errorf("%s: expected 1 argument, got %d", rec.Method, len(rec.Args))
		}
		licenseID, err := strconv.ParseUint(rec.Args[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%s: invalid license id: %w", rec.Method, err)
		}
		return l.reg.PurchaseLicense(call, licenseID)

	case methodWithdraw:
		return l.reg.Withdraw(call)
	}

	return nil, fmt.Errorf("unknown method %q", rec.Method)
}

// restore discards the registry after a failed journal append. It prefers
// the durable journal and falls back to the records committed in memory.
// Callers must hold l.mu.
func (l *LocalLedger) restore(ctx context.Context) {
	reg, block, history := l.reg, l.block, l.history

	records, err := l.journal.Load(context.WithoutCancel(ctx))
	if err == nil {
		if err = l.rebuild(records); err == nil {
			return
		}
	}
	l.log.WithError(err).Warn("Journal unavailable after append error; replaying committed records")

	if rerr := l.rebuild(history); rerr != nil {
		// unreachable unless apply is nondeterministic
		l.log.WithError(rerr).Error("Failed to replay committed records")
		l.reg, l.block, l.history = reg, block, history
	}
}

// rebuild redeploys the registry, funds the genesis accounts and replays
// records. State is swapped in only when every record applies.
// Callers must hold l.mu or be the constructor.
func (l *LocalLedger) rebuild(records []TxRecord) error {
	prev := l.reg
	l.reg = registry.New(l.owner)
	for account, amount := range l.genesis {
		l.reg.Credit(account, amount)
	}

	var block uint64
	for _, rec := range records {
		if _, err := l.apply(rec); err != nil {
			l.reg = prev
			var revert *registry.RevertError
			if errors.As(err, &revert) || errors.Is(err, registry.ErrInsufficientFunds) {
				return fmt.Errorf("journal replay diverged at block %d (%s): %w", rec.Block, rec.Hash.Hex(), err)
			}
			return fmt.Errorf("journal replay failed at block %d: %w", rec.Block, err)
		}
		block = rec.Block
	}

	l.block = block
	l.history = append([]TxRecord(nil), records...)
	return nil
}

func txHash(rec TxRecord) common.Hash {
	parts := []string{
		strconv.FormatUint(rec.Block, 10),
		strconv.FormatUint(rec.Time, 10),
		rec.From.Hex(),
		rec.Method,
		rec.Value.String(),
	}
	parts = append(parts, rec.Args...)
	return crypto.Keccak256Hash([]byte(strings.Join(parts, "\x1f")))
}

func eventNames(events []registry.Event) []string {
	names := make([]string, 0, len(events))
	for _, ev := range events {
		names = append(names, ev.Name)
	}
	return names
}
