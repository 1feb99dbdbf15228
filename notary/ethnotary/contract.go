// Package ethnotary talks to a notary contract deployed on an Ethereum
// JSON-RPC node.
//
// Transactions are sent either from an account the node manages
// (eth_sendTransaction, as with Ganache) or signed locally when a private key
// is configured.
package ethnotary

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"

	"xdao.co/docnotary/internal/observability"
	"xdao.co/docnotary/model"
	"xdao.co/docnotary/notary"
)

// DefaultEndpoint is Ganache's default RPC URL.
const DefaultEndpoint = "http://127.0.0.1:7545"

// DefaultPollInterval is how often a pending transaction's receipt is polled.
const DefaultPollInterval = 500 * time.Millisecond

// ErrUnknownDocument is returned by GetDocumentDetails when the contract
// answers with an empty owner instead of reverting.
var ErrUnknownDocument = errors.New("document has no recorded owner")

// Config selects the node and contract.
type Config struct {
	Endpoint string
	// Address is the deployed contract address.
	Address string
	ABI     abi.ABI
	// PrivateKey signs transactions locally when set; otherwise the node
	// must manage the sending account.
	PrivateKey   *ecdsa.PrivateKey
	PollInterval time.Duration
	Logger       *observability.Logger
}

// Contract implements notary.Backend over JSON-RPC.
type Contract struct {
	rpc     *rpc.Client
	eth     *ethclient.Client
	address common.Address
	abi     abi.ABI
	key     *ecdsa.PrivateKey
	poll    time.Duration
	log     *observability.Logger
}

var _ notary.Backend = (*Contract)(nil)

// Dial connects to cfg.Endpoint. It does not contact the contract.
func Dial(ctx context.Context, cfg Config) (*Contract, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if !common.IsHexAddress(cfg.Address) {
		return nil, fmt.Errorf("ethnotary: invalid contract address %q", cfg.Address)
	}
	if len(cfg.ABI.Methods) == 0 {
		cfg.ABI = DefaultABI()
	} else if err := checkABI(cfg.ABI); err != nil {
		return nil, err
	}

	rc, err := rpc.DialContext(ctx, endpoint)
	if err != nil {
		return nil, model.WrapError(model.KindTransport, "dial", fmt.Sprintf("dial %s: %v", endpoint, err), err)
	}
	return newContract(rc, cfg), nil
}

func newContract(rc *rpc.Client, cfg Config) *Contract {
	c := &Contract{
		rpc:     rc,
		eth:     ethclient.NewClient(rc),
		address: common.HexToAddress(cfg.Address),
		abi:     cfg.ABI,
		key:     cfg.PrivateKey,
		poll:    cfg.PollInterval,
		log:     cfg.Logger,
	}
	if c.poll <= 0 {
		c.poll = DefaultPollInterval
	}
	if c.log == nil {
		c.log = observability.Nop()
	}
	return c
}

// Close releases the RPC connection.
func (c *Contract) Close() error {
	if c == nil || c.rpc == nil {
		return nil
	}
	c.rpc.Close()
	return nil
}

// Accounts returns the signing key's address when one is configured,
// otherwise the accounts the node manages.
func (c *Contract) Accounts(ctx context.Context) ([]model.Account, error) {
	if c.key != nil {
		addr := crypto.PubkeyToAddress(c.key.PublicKey)
		return []model.Account{model.Account(addr.Hex())}, nil
	}
	var addrs []common.Address
	if err := c.rpc.CallContext(ctx, &addrs, "eth_accounts"); err != nil {
		return nil, model.WrapError(model.KindTransport, "eth_accounts", "", err)
	}
	out := make([]model.Account, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, model.Account(a.Hex()))
	}
	return out, nil
}

func (c *Contract) VerifyDocument(ctx context.Context, hash string) (model.Record, error) {
	values, err := c.call(ctx, notary.MethodVerify, hash)
	if err != nil {
		return model.Record{}, err
	}
	notarized, ok0 := values[0].(bool)
	owner, ok1 := values[1].(common.Address)
	ts, ok2 := values[2].(*big.Int)
	if !ok0 || !ok1 || !ok2 {
		return model.Record{}, fmt.Errorf("ethnotary: unexpected %s result types %T, %T, %T", notary.MethodVerify, values[0], values[1], values[2])
	}
	return model.Record{
		Notarized: notarized,
		Owner:     model.Account(owner.Hex()),
		Timestamp: ts.Int64(),
	}, nil
}

func (c *Contract) GetDocumentDetails(ctx context.Context, hash string) (model.Record, error) {
	values, err := c.call(ctx, notary.MethodDetails, hash)
	if err != nil {
		return model.Record{}, err
	}
	owner, ok0 := values[0].(common.Address)
	ts, ok1 := values[1].(*big.Int)
	if !ok0 || !ok1 {
		return model.Record{}, fmt.Errorf("ethnotary: unexpected %s result types %T, %T", notary.MethodDetails, values[0], values[1])
	}
	if owner == (common.Address{}) {
		return model.Record{}, ErrUnknownDocument
	}
	return model.Record{Owner: model.Account(owner.Hex()), Timestamp: ts.Int64()}, nil
}

func (c *Contract) NotarizeDocument(ctx context.Context, hash string, opts notary.TxOptions) error {
	data, err := c.abi.Pack(notary.MethodNotarize, hash)
	if err != nil {
		return fmt.Errorf("ethnotary: pack %s: %w", notary.MethodNotarize, err)
	}

	var txHash common.Hash
	if c.key != nil {
		txHash, err = c.sendSigned(ctx, data, opts.GasLimit)
	} else {
		txHash, err = c.sendFromNode(ctx, data, opts)
	}
	if err != nil {
		return classifySendError(err)
	}

	receipt, err := c.waitMined(ctx, txHash)
	if err != nil {
		return model.WrapError(model.KindTransport, "receipt", fmt.Sprintf("waiting for %s: %v", txHash.Hex(), err), err)
	}
	c.log.TransactionMined(txHash.Hex(), receipt.BlockNumber.Uint64(), receipt.GasUsed)
	if receipt.Status == types.ReceiptStatusFailed {
		return &RevertError{Reason: c.failureReason(ctx, data, opts, receipt)}
	}
	return nil
}

func (c *Contract) call(ctx context.Context, method, hash string) ([]interface{}, error) {
	data, err := c.abi.Pack(method, hash)
	if err != nil {
		return nil, fmt.Errorf("ethnotary: pack %s: %w", method, err)
	}
	to := c.address
	out, err := c.eth.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		if reason, ok := revertReason(err); ok {
			return nil, &RevertError{Reason: reason, Cause: err}
		}
		return nil, err
	}
	values, err := c.abi.Unpack(method, out)
	if err != nil {
		// Empty output usually means no contract lives at the address.
		return nil, fmt.Errorf("ethnotary: returned values aren't valid for %s at %s: %w", method, c.address.Hex(), err)
	}
	return values, nil
}

// sendArgs is the eth_sendTransaction parameter object.
type sendArgs struct {
	From common.Address `json:"from"`
	To   common.Address `json:"to"`
	Gas  hexutil.Uint64 `json:"gas"`
	Data hexutil.Bytes  `json:"data"`
}

func (c *Contract) sendFromNode(ctx context.Context, data []byte, opts notary.TxOptions) (common.Hash, error) {
	if !common.IsHexAddress(string(opts.From)) {
		return common.Hash{}, fmt.Errorf("ethnotary: invalid sender %q", opts.From)
	}
	args := sendArgs{
		From: common.HexToAddress(string(opts.From)),
		To:   c.address,
		Gas:  hexutil.Uint64(opts.GasLimit),
		Data: data,
	}
	var txHash common.Hash
	err := c.rpc.CallContext(ctx, &txHash, "eth_sendTransaction", args)
	return txHash, err
}

func (c *Contract) sendSigned(ctx context.Context, data []byte, gas uint64) (common.Hash, error) {
	from := crypto.PubkeyToAddress(c.key.PublicKey)
	nonce, err := c.eth.PendingNonceAt(ctx, from)
	if err != nil {
		return common.Hash{}, err
	}
	gasPrice, err := c.eth.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, err
	}
	chainID, err := c.eth.ChainID(ctx)
	if err != nil {
		return common.Hash{}, err
	}
	to := c.address
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gas,
		To:       &to,
		Value:    new(big.Int),
		Data:     data,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), c.key)
	if err != nil {
		return common.Hash{}, err
	}
	if err := c.eth.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, err
	}
	return signed.Hash(), nil
}

func (c *Contract) waitMined(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(c.poll)
	defer ticker.Stop()
	for {
		receipt, err := c.eth.TransactionReceipt(ctx, txHash)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// failureReason replays a failed transaction as a call at its block to
// recover the revert reason.
func (c *Contract) failureReason(ctx context.Context, data []byte, opts notary.TxOptions, receipt *types.Receipt) string {
	if receipt.GasUsed >= opts.GasLimit {
		return fmt.Sprintf("out of gas (limit %d)", opts.GasLimit)
	}
	to := c.address
	msg := ethereum.CallMsg{To: &to, Data: data, Gas: opts.GasLimit}
	if common.IsHexAddress(string(opts.From)) {
		msg.From = common.HexToAddress(string(opts.From))
	}
	_, err := c.eth.CallContract(ctx, msg, receipt.BlockNumber)
	if err != nil {
		if reason, ok := revertReason(err); ok {
			return reason
		}
		return err.Error()
	}
	return "transaction reverted"
}

// ParsePrivateKey parses a hex secp256k1 key, with or without 0x.
func ParsePrivateKey(s string) (*ecdsa.PrivateKey, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	key, err := crypto.HexToECDSA(s)
	if err != nil {
		return nil, fmt.Errorf("ethnotary: invalid private key: %w", err)
	}
	return key, nil
}
