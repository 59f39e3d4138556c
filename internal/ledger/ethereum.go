// internal/ledger/ethereum.go
package ledger

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/authchain/internal/registry"
)

//go:embed AuthChainRegistry.abi.json
var registryABIJSON []byte

// RegistryABI parses the embedded AuthChainRegistry ABI.
func RegistryABI() (abi.ABI, error) {
	return abi.JSON(bytes.NewReader(registryABIJSON))
}

// onchainWork and onchainLicense mirror the contract tuples; field order and
// names must match the ABI components.
type onchainWork struct {
	Id        *big.Int
	Creator   common.Address
	Title     string
	IpfsHash  string
	Metadata  string
	Timestamp *big.Int
}

type onchainLicense struct {
	Id        *big.Int
	WorkId    *big.Int
	Price     *big.Int
	Duration  *big.Int
	UsageType string
	Active    bool
	Licensee  common.Address
}

// EthereumContract talks to a deployed AuthChainRegistry over JSON-RPC.
type EthereumContract struct {
	client   *ethclient.Client
	address  common.Address
	abi      abi.ABI
	contract *bind.BoundContract
	chainID  *big.Int
	log      logrus.FieldLogger
}

func DialEthereum(ctx context.Context, rpcURL string, address common.Address, logger logrus.FieldLogger) (*EthereumContract, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	parsed, err := RegistryABI()
	if err != nil {
		return nil, fmt.Errorf("failed to parse registry ABI: %w", err)
	}

	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, transportError("dial "+rpcURL, err)
	}

	chainID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, transportError("chain id", err)
	}

	return &EthereumContract{
		client:   client,
		address:  address,
		abi:      parsed,
		contract: bind.NewBoundContract(address, parsed, client, client, client),
		chainID:  chainID,
		log: logger.WithFields(logrus.Fields{
			"ledger":   BackendEthereum,
			"contract": address.Hex(),
			"chain_id": chainID.String(),
		}),
	}, nil
}

func (e *EthereumContract) Close() {
	e.client.Close()
}

func (e *EthereumContract) Backend() string {
	return BackendEthereum
}

func (e *EthereumContract) RegisterWork(ctx context.Context, signer Signer, title, ipfsHash, metadata string) (*Receipt, error) {
	return e.transact(ctx, signer, nil, methodRegisterWork, title, ipfsHash, metadata)
}

func (e *EthereumContract) CreateLicense(ctx context.Context, signer Signer, workID uint64, price *big.Int, duration uint64, usageType string) (*Receipt, error) {
	return e.transact(ctx, signer, nil, methodCreateLicense,
		new(big.Int).SetUint64(workID), price, new(big.Int).SetUint64(duration), usageType)
}

func (e *EthereumContract) PurchaseLicense(ctx context.Context, signer Signer, licenseID uint64, value *big.Int) (*Receipt, error) {
	return e.transact(ctx, signer, value, methodPurchaseLicense, new(big.Int).SetUint64(licenseID))
}

func (e *EthereumContract) Withdraw(ctx context.Context, signer Signer) (*Receipt, error) {
	return e.transact(ctx, signer, nil, methodWithdraw)
}

func (e *EthereumContract) Owner(ctx context.Context) (common.Address, error) {
	out, err := e.call(ctx, "owner")
	if err != nil {
		return common.Address{}, err
	}
	return *abi.ConvertType(out[0], new(common.Address)).(*common.Address), nil
}

func (e *EthereumContract) GetWork(ctx context.Context, id uint64) (registry.Work, error) {
	out, err := e.call(ctx, "getWork", new(big.Int).SetUint64(id))
	if errors.Is(err, registry.ErrNotFound) {
		return registry.Work{}, nil
	}
	if err != nil {
		return registry.Work{}, err
	}

	w := *abi.ConvertType(out[0], new(onchainWork)).(*onchainWork)
	return registry.Work{
		ID:        w.Id.Uint64(),
		Creator:   w.Creator,
		Title:     w.Title,
		IPFSHash:  w.IpfsHash,
		Metadata:  w.Metadata,
		Timestamp: w.Timestamp.Uint64(),
	}, nil
}

func (e *EthereumContract) GetLicense(ctx context.Context, id uint64) (registry.License, error) {
	out, err := e.call(ctx, "getLicense", new(big.Int).SetUint64(id))
	if errors.Is(err, registry.ErrNotFound) {
		return registry.License{Price: new(big.Int)}, nil
	}
	if err != nil {
		return registry.License{}, err
	}

	l := *abi.ConvertType(out[0], new(onchainLicense)).(*onchainLicense)
	return registry.License{
		ID:        l.Id.Uint64(),
		WorkID:    l.WorkId.Uint64(),
		Price:     l.Price,
		Duration:  l.Duration.Uint64(),
		UsageType: l.UsageType,
		Active:    l.Active,
		Licensee:  l.Licensee,
	}, nil
}

func (e *EthereumContract) GetCreatorWorks(ctx context.Context, creator common.Address) ([]uint64, error) {
	out, err := e.call(ctx, "getCreatorWorks", creator)
	if err != nil {
		return nil, err
	}
	return toUint64s(*abi.ConvertType(out[0], new([]*big.Int)).(*[]*big.Int)), nil
}

func (e *EthereumContract) GetWorkLicenses(ctx context.Context, workID uint64) ([]uint64, error) {
	out, err := e.call(ctx, "getWorkLicenses", new(big.Int).SetUint64(workID))
	if err != nil {
		return nil, err
	}
	return toUint64s(*abi.ConvertType(out[0], new([]*big.Int)).(*[]*big.Int)), nil
}

func (e *EthereumContract) GetWorkCount(ctx context.Context) (uint64, error) {
	out, err := e.call(ctx, "getWorkCount")
	if err != nil {
		return 0, err
	}
	return (*abi.ConvertType(out[0], new(*big.Int)).(**big.Int)).Uint64(), nil
}

func (e *EthereumContract) BalanceAt(ctx context.Context, account common.Address) (*big.Int, error) {
	balance, err := e.client.BalanceAt(ctx, account, nil)
	if err != nil {
		return nil, transportError("balance", err)
	}
	return balance, nil
}

func (e *EthereumContract) call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	var out []interface{}
	if err := e.contract.Call(&bind.CallOpts{Context: ctx}, &out, method, args...); err != nil {
		return nil, classifyRPCError(method, err)
	}
	if len(out) == 0 {
		return nil, transportError(method, errors.New("empty result"))
	}
	return out, nil
}

func (e *EthereumContract) transact(ctx context.Context, signer Signer, value *big.Int, method string, args ...interface{}) (*Receipt, error) {
	if signer.Key() == nil {
		return nil, fmt.Errorf("%s signer has no private key", signer.Role)
	}

	opts, err := bind.NewKeyedTransactorWithChainID(signer.Key(), e.chainID)
	if err != nil {
		return nil, fmt.Errorf("failed to build transactor: %w", err)
	}
	opts.Context = ctx
	opts.Value = value

	tx, err := e.contract.Transact(opts, method, args...)
	if err != nil {
		return nil, classifyRPCError(method, err)
	}

	entry := e.log.WithFields(logrus.Fields{
		"tx":     tx.Hash().Hex(),
		"method": method,
		"from":   signer.Address.Hex(),
	})
	entry.Info("Transaction submitted")

	receipt, err := bind.WaitMined(ctx, e.client, tx)
	if err != nil {
		return nil, transportError("wait mined", err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, registry.RevertFromReason("transaction " + tx.Hash().Hex() + " failed")
	}

	entry.WithField("block", receipt.BlockNumber.Uint64()).Info("Transaction confirmed")

	return &Receipt{
		TxHash:      tx.Hash(),
		BlockNumber: receipt.BlockNumber.Uint64(),
		Events:      e.eventNames(receipt.Logs),
	}, nil
}

func (e *EthereumContract) eventNames(logs []*types.Log) []string {
	var names []string
	for _, lg := range logs {
		if lg.Address != e.address || len(lg.Topics) == 0 {
			continue
		}
		if ev, err := e.abi.EventByID(lg.Topics[0]); err == nil {
			names = append(names, ev.Name)
		}
	}
	return names
}

var (
	revertPrefix     = "execution reverted: "
	hardhatRevertExp = regexp.MustCompile(`reverted with reason string '([^']*)'`)
)

// classifyRPCError turns node errors into registry reverts where a reason is
// available and into ErrTransport otherwise.
func classifyRPCError(method string, err error) error {
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		if hexData, ok := dataErr.ErrorData().(string); ok {
			if data, derr := hexutil.Decode(hexData); derr == nil {
				if reason, uerr := abi.UnpackRevert(data); uerr == nil {
					return registry.RevertFromReason(reason)
				}
			}
		}
	}

	msg := err.Error()
	if m := hardhatRevertExp.FindStringSubmatch(msg); m != nil {
		return registry.RevertFromReason(m[1])
	}
	if i := strings.Index(msg, revertPrefix); i >= 0 {
		return registry.RevertFromReason(msg[i+len(revertPrefix):])
	}
	if strings.Contains(msg, "insufficient funds") {
		return fmt.Errorf("%s: %w", method, registry.ErrInsufficientFunds)
	}
	return transportError(method, err)
}

func toUint64s(values []*big.Int) []uint64 {
	out := make([]uint64, 0, len(values))
	for _, v := range values {
		out = append(out, v.Uint64())
	}
	return out
}
