// internal/registry/registry.go
package registry

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Work is a registered creative item. A Work with ID 0 does not exist.
type Work struct {
	ID        uint64
	Creator   common.Address
	Title     string
	IPFSHash  string
	Metadata  string
	Timestamp uint64
}

// Exists reports whether w is a real record rather than the zero sentinel.
func (w Work) Exists() bool { return w.ID != 0 }

// License is a purchasable grant tied to one Work. A License with ID 0 does not exist.
type License struct {
	ID        uint64
	WorkID    uint64
	Price     *big.Int
	Duration  uint64
	UsageType string
	Active    bool
	Licensee  common.Address
}

func (l License) Exists() bool { return l.ID != 0 }

// Call carries the transaction context of a state transition.
type Call struct {
	From  common.Address
	Value *big.Int
	Time  uint64
}

func (c Call) value() *big.Int {
	if c.Value == nil {
		return new(big.Int)
	}
	return c.Value
}

// Event names emitted by successful transitions.
const (
	EventWorkRegistered   = "WorkRegistered"
	EventLicenseCreated   = "LicenseCreated"
	EventLicensePurchased = "LicensePurchased"
	EventWithdrawn        = "Withdrawn"
)

type Event struct {
	Name      string
	WorkID    uint64
	LicenseID uint64
	Account   common.Address
	Amount    *big.Int
}

// Registry is the work and license state machine. It is not safe for
// concurrent use; the ledger that owns it serializes every call.
type Registry struct {
	owner         common.Address
	works         map[uint64]Work
	licenses      map[uint64]License
	creatorWorks  map[common.Address][]uint64
	workLicenses  map[uint64][]uint64
	nextWorkID    uint64
	nextLicenseID uint64
	balances      map[common.Address]*big.Int
	held          *big.Int
}

// New deploys an empty registry owned by owner.
func New(owner common.Address) *Registry {
	return &Registry{
		owner:         owner,
		works:         make(map[uint64]Work),
		licenses:      make(map[uint64]License),
		creatorWorks:  make(map[common.Address][]uint64),
		workLicenses:  make(map[uint64][]uint64),
		nextWorkID:    1,
		nextLicenseID: 1,
		balances:      make(map[common.Address]*big.Int),
		held:          new(big.Int),
	}
}

func (r *Registry) Owner() common.Address {
	return r.owner
}

func (r *Registry) RegisterWork(call Call, title, ipfsHash, metadata string) (uint64, []Event, error) {
	if call.value().Sign() != 0 {
		return 0, nil, revert(ErrNotPayable, ReasonNotPayable)
	}

	id := r.nextWorkID
	r.nextWorkID++
	r.works[id] = Work{
		ID:        id,
		Creator:   call.From,
		Title:     title,
		IPFSHash:  ipfsHash,
		Metadata:  metadata,
		Timestamp: call.Time,
	}
	r.creatorWorks[call.From] = append(r.creatorWorks[call.From], id)

	return id, []Event{{Name: EventWorkRegistered, WorkID: id, Account: call.From}}, nil
}

func (r *Registry) CreateLicense(call Call, workID uint64, price *big.Int, duration uint64, usageType string) (uint64, []Event, error) {
	if call.value().Sign() != 0 {
		return 0, nil, revert(ErrNotPayable, ReasonNotPayable)
	}

	work, ok := r.works[workID]
	if !ok {
		return 0, nil, revert(ErrNotFound, ReasonWorkNotFound)
	}
	if work.Creator != call.From {
		return 0, nil, revert(ErrUnauthorized, ReasonOnlyCreator)
	}
	if price == nil {
		price = new(big.Int)
	}

	id := r.nextLicenseID
	r.nextLicenseID++
	r.licenses[id] = License{
		ID:        id,
		WorkID:    workID,
		Price:     new(big.Int).Set(price),
		Duration:  duration,
		UsageType: usageType,
	}
	r.workLicenses[workID] = append(r.workLicenses[workID], id)

	return id, []Event{{Name: EventLicenseCreated, WorkID: workID, LicenseID: id, Account: call.From, Amount: new(big.Int).Set(price)}}, nil
}

// PurchaseLicense activates a license and forwards the whole attached value to
// the work's creator. Overpayment is not refunded.
func (r *Registry) PurchaseLicense(call Call, licenseID uint64) ([]Event, error) {
	value := call.value()
	if r.balanceOf(call.From).Cmp(value) < 0 {
		return nil, ErrInsufficientFunds
	}

	lic, ok := r.licenses[licenseID]
	if !ok {
		return nil, revert(ErrNotFound, ReasonLicenseNotFound)
	}
	if lic.Active {
		return nil, revert(ErrAlreadyActive, ReasonAlreadyActive)
	}
	if value.Cmp(lic.Price) < 0 {
		return nil, revert(ErrInsufficientPayment, ReasonInsufficientPaid)
	}

	creator := r.works[lic.WorkID].Creator
	r.transfer(call.From, creator, value)

	lic.Active = true
	lic.Licensee = call.From
	r.licenses[licenseID] = lic

	return []Event{{
		Name:      EventLicensePurchased,
		WorkID:    lic.WorkID,
		LicenseID: licenseID,
		Account:   call.From,
		Amount:    new(big.Int).Set(value),
	}}, nil
}

// Withdraw moves the registry's residual balance to the owner.
func (r *Registry) Withdraw(call Call) ([]Event, error) {
	if call.value().Sign() != 0 {
		return nil, revert(ErrNotPayable, ReasonNotPayable)
	}
	if call.From != r.owner {
		return nil, revert(ErrUnauthorized, ReasonNotOwner)
	}

	amount := new(big.Int).Set(r.held)
	r.held.SetInt64(0)
	r.credit(r.owner, amount)

	return []Event{{Name: EventWithdrawn, Account: r.owner, Amount: amount}}, nil
}

// GetWork returns the zero Work when id was never assigned.
func (r *Registry) GetWork(id uint64) Work {
	return r.works[id]
}

// GetLicense returns the zero License when id was never assigned.
func (r *Registry) GetLicense(id uint64) License {
	lic, ok := r.licenses[id]
	if !ok {
		return License{Price: new(big.Int)}
	}
	lic.Price = new(big.Int).Set(lic.Price)
	return lic
}

func (r *Registry) GetCreatorWorks(creator common.Address) []uint64 {
	return append([]uint64{}, r.creatorWorks[creator]...)
}

func (r *Registry) GetWorkLicenses(workID uint64) []uint64 {
	return append([]uint64{}, r.workLicenses[workID]...)
}

// GetWorkCount returns the id the next registered work will receive, which is
// one more than the number of works.
func (r *Registry) GetWorkCount() uint64 {
	return r.nextWorkID
}

// Balance returns the ledger balance of account.
func (r *Registry) Balance(account common.Address) *big.Int {
	return new(big.Int).Set(r.balanceOf(account))
}

// ContractBalance returns the value held by the registry itself.
func (r *Registry) ContractBalance() *big.Int {
	return new(big.Int).Set(r.held)
}

// Credit mints amount into account. Ledgers use it for genesis allocations.
func (r *Registry) Credit(account common.Address, amount *big.Int) {
	if amount == nil || amount.Sign() <= 0 {
		return
	}
	r.credit(account, amount)
}

func (r *Registry) balanceOf(account common.Address) *big.Int {
	if b, ok := r.balances[account]; ok {
		return b
	}
	return new(big.Int)
}

func (r *Registry) transfer(from, to common.Address, amount *big.Int) {
	r.debit(from, amount)
	r.credit(to, amount)
}

func (r *Registry) debit(account common.Address, amount *big.Int) {
	r.balances[account] = new(big.Int).Sub(r.balanceOf(account), amount)
}

func (r *Registry) credit(account common.Address, amount *big.Int) {
	r.balances[account] = new(big.Int).Add(r.balanceOf(account), amount)
}
