// internal/ledger/ledger.go
package ledger

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/javajoker/authchain/internal/registry"
)

// ErrTransport marks failures of the ledger connection itself, as opposed to
// reverts raised by the registry.
var ErrTransport = errors.New("ledger transport error")

const (
	BackendLocal    = "local"
	BackendEthereum = "ethereum"
)

// Contract is the read/write surface of the registry as seen from off-chain
// code. Mutating calls block until the transaction is confirmed.
type Contract interface {
	RegisterWork(ctx context.Context, signer Signer, title, ipfsHash, metadata string) (*Receipt, error)
	CreateLicense(ctx context.Context, signer Signer, workID uint64, price *big.Int, duration uint64, usageType string) (*Receipt, error)
	PurchaseLicense(ctx context.Context, signer Signer, licenseID uint64, value *big.Int) (*Receipt, error)
	Withdraw(ctx context.Context, signer Signer) (*Receipt, error)

	Owner(ctx context.Context) (common.Address, error)
	GetWork(ctx context.Context, id uint64) (registry.Work, error)
	GetLicense(ctx context.Context, id uint64) (registry.License, error)
	GetCreatorWorks(ctx context.Context, creator common.Address) ([]uint64, error)
	GetWorkLicenses(ctx context.Context, workID uint64) ([]uint64, error)
	GetWorkCount(ctx context.Context) (uint64, error)
	BalanceAt(ctx context.Context, account common.Address) (*big.Int, error)

	Backend() string
}

// Receipt describes a confirmed transaction.
type Receipt struct {
	TxHash      common.Hash
	BlockNumber uint64
	Events      []string
}

type Role string

const (
	RoleCreator   Role = "creator"
	RolePurchaser Role = "purchaser"
	RoleOwner     Role = "owner"
)

// Signer is an identity able to submit transactions.
type Signer struct {
	Role    Role
	Address common.Address
	key     *ecdsa.PrivateKey
}

func NewSigner(role Role, hexKey string) (Signer, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return Signer{}, fmt.Errorf("invalid %s private key: %w", role, err)
	}
	return Signer{Role: role, Address: crypto.PubkeyToAddress(key.PublicKey), key: key}, nil
}

func GenerateSigner(role Role) (Signer, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return Signer{}, fmt.Errorf("failed to generate %s key: %w", role, err)
	}
	return Signer{Role: role, Address: crypto.PubkeyToAddress(key.PublicKey), key: key}, nil
}

// AddressSigner builds a keyless signer. Only the local ledger accepts it.
func AddressSigner(role Role, address common.Address) Signer {
	return Signer{Role: role, Address: address}
}

func (s Signer) Key() *ecdsa.PrivateKey {
	return s.key
}

// Identities are the named signers the facade acts as.
type Identities struct {
	Creator   Signer
	Purchaser Signer
	Owner     Signer

	// Ephemeral is set when at least one key was generated at start-up.
	Ephemeral bool
}

// NewIdentities parses the configured hex keys. With requireKeys unset, empty
// keys are replaced by freshly generated ones. With it set, the creator and
// purchaser keys are mandatory and a missing owner key leaves the owner keyless.
func NewIdentities(creatorKey, purchaserKey, ownerKey string, requireKeys bool) (*Identities, error) {
	ids := &Identities{}
	for _, slot := range []struct {
		role     Role
		key      string
		dst      *Signer
		optional bool
	}{
		{RoleCreator, creatorKey, &ids.Creator, false},
		{RolePurchaser, purchaserKey, &ids.Purchaser, false},
		{RoleOwner, ownerKey, &ids.Owner, true},
	} {
		var (
			signer Signer
			err    error
		)
		switch {
		case slot.key != "":
			signer, err = NewSigner(slot.role, slot.key)
		case requireKeys && slot.optional:
			signer = AddressSigner(slot.role, common.Address{})
		case requireKeys:
			return nil, fmt.Errorf("%s private key is required", slot.role)
		default:
			signer, err = GenerateSigner(slot.role)
			ids.Ephemeral = true
		}
		if err != nil {
			return nil, err
		}
		*slot.dst = signer
	}
	return ids, nil
}

func (ids *Identities) ByRole(role Role) (Signer, bool) {
	switch role {
	case RoleCreator:
		return ids.Creator, true
	case RolePurchaser:
		return ids.Purchaser, true
	case RoleOwner:
		return ids.Owner, true
	}
	return Signer{}, false
}

func transportError(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrTransport, op, err)
}

var (
	_ Contract = (*LocalLedger)(nil)
	_ Contract = (*EthereumContract)(nil)
)
