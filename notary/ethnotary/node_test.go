package ethnotary

import (
	"context"
	"crypto/ecdsa"
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rpc"

	"xdao.co/docnotary/model"
	"xdao.co/docnotary/notary"
	"xdao.co/docnotary/notary/memledger"
)

const testContractAddress = "0x5FbDB2315678afecb367f032d93F642f64180aa3"

// fakeNode serves the eth_* methods the Contract uses and executes notary
// calls against an in-memory ledger.
type fakeNode struct {
	abi     abi.ABI
	ledger  *memledger.Ledger
	chainID *big.Int

	mu sync.Mutex
	// pendingPolls is how many receipt queries answer null before the
	// receipt appears.
	pendingPolls int
	receipts     map[common.Hash]*types.Receipt
	polls        map[common.Hash]int
	block        int64
	sent         uint64
	calls        int
}

type callArgs struct {
	From  *common.Address `json:"from"`
	To    *common.Address `json:"to"`
	Gas   *hexutil.Uint64 `json:"gas"`
	Data  *hexutil.Bytes  `json:"data"`
	Input *hexutil.Bytes  `json:"input"`
}

func (a callArgs) payload() []byte {
	if a.Input != nil {
		return *a.Input
	}
	if a.Data != nil {
		return *a.Data
	}
	return nil
}

// nodeRevert is a JSON-RPC error carrying Error(string) revert data.
type nodeRevert struct{ reason string }

func (e *nodeRevert) Error() string  { return "execution reverted: " + e.reason }
func (e *nodeRevert) ErrorCode() int { return 3 }
func (e *nodeRevert) ErrorData() interface{} {
	return hexutil.Encode(packRevert(e.reason))
}

func packRevert(reason string) []byte {
	stringTy, _ := abi.NewType("string", "", nil)
	packed, err := abi.Arguments{{Type: stringTy}}.Pack(reason)
	if err != nil {
		panic(err)
	}
	selector := crypto.Keccak256([]byte("Error(string)"))[:4]
	return append(append([]byte(nil), selector...), packed...)
}

func (n *fakeNode) Accounts(ctx context.Context) ([]common.Address, error) {
	accts, err := n.ledger.Accounts(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]common.Address, 0, len(accts))
	for _, a := range accts {
		out = append(out, common.HexToAddress(string(a)))
	}
	return out, nil
}

func (n *fakeNode) ChainId() *hexutil.Big { return (*hexutil.Big)(n.chainID) }

func (n *fakeNode) GasPrice() *hexutil.Big { return (*hexutil.Big)(big.NewInt(1)) }

func (n *fakeNode) GetTransactionCount(addr common.Address, block string) hexutil.Uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return hexutil.Uint64(n.sent)
}

func (n *fakeNode) Call(ctx context.Context, args callArgs, block string) (hexutil.Bytes, error) {
	n.mu.Lock()
	n.calls++
	n.mu.Unlock()

	method, hash, err := n.decode(args.payload())
	if err != nil {
		return nil, err
	}
	switch method.Name {
	case notary.MethodVerify:
		rec, err := n.ledger.VerifyDocument(ctx, hash)
		if err != nil {
			return nil, err
		}
		return method.Outputs.Pack(rec.Notarized, common.HexToAddress(string(rec.Owner)), big.NewInt(rec.Timestamp))
	case notary.MethodDetails:
		rec, err := n.ledger.GetDocumentDetails(ctx, hash)
		if err != nil {
			return nil, &nodeRevert{reason: "Document not notarized"}
		}
		return method.Outputs.Pack(common.HexToAddress(string(rec.Owner)), big.NewInt(rec.Timestamp))
	default:
		return hexutil.Bytes{}, nil
	}
}

func (n *fakeNode) SendTransaction(ctx context.Context, args sendArgs) (common.Hash, error) {
	return n.execute(ctx, args.From, uint64(args.Gas), args.Data, common.Hash{})
}

func (n *fakeNode) SendRawTransaction(ctx context.Context, raw hexutil.Bytes) (common.Hash, error) {
	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(raw); err != nil {
		return common.Hash{}, err
	}
	from, err := types.Sender(types.LatestSignerForChainID(n.chainID), tx)
	if err != nil {
		return common.Hash{}, err
	}
	return n.execute(ctx, from, tx.Gas(), tx.Data(), tx.Hash())
}

func (n *fakeNode) GetTransactionReceipt(txHash common.Hash) (*types.Receipt, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	r, ok := n.receipts[txHash]
	if !ok {
		return nil, nil
	}
	if n.polls[txHash] < n.pendingPolls {
		n.polls[txHash]++
		return nil, nil
	}
	return r, nil
}

func (n *fakeNode) decode(data []byte) (*abi.Method, string, error) {
	if len(data) < 4 {
		return nil, "", errors.New("missing selector")
	}
	method, err := n.abi.MethodById(data[:4])
	if err != nil {
		return nil, "", err
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, "", err
	}
	return method, args[0].(string), nil
}

func (n *fakeNode) execute(ctx context.Context, from common.Address, gas uint64, data []byte, txHash common.Hash) (common.Hash, error) {
	method, hash, err := n.decode(data)
	if err != nil {
		return common.Hash{}, err
	}
	if method.Name != notary.MethodNotarize {
		return common.Hash{}, fmt.Errorf("unexpected transaction to %s", method.Name)
	}

	status := types.ReceiptStatusSuccessful
	used := memledger.DefaultGasCost
	err = n.ledger.NotarizeDocument(ctx, hash, notary.TxOptions{From: model.Account(from.Hex()), GasLimit: gas})
	switch {
	case errors.Is(err, memledger.ErrAlreadyNotarized):
		return common.Hash{}, &nodeRevert{reason: "Document already notarized"}
	case errors.Is(err, memledger.ErrOutOfGas):
		status = types.ReceiptStatusFailed
		used = gas
	case err != nil:
		return common.Hash{}, err
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent++
	n.block++
	if txHash == (common.Hash{}) {
		var seq [8]byte
		binary.BigEndian.PutUint64(seq[:], n.sent)
		txHash = crypto.Keccak256Hash(data, seq[:])
	}
	n.receipts[txHash] = &types.Receipt{
		Status:            status,
		CumulativeGasUsed: used,
		Logs:              []*types.Log{},
		TxHash:            txHash,
		GasUsed:           used,
		BlockNumber:       big.NewInt(n.block),
	}
	return txHash, nil
}

// newTestContract wires a Contract to a fakeNode over an in-process RPC
// connection.
func newTestContract(t *testing.T, key *ecdsa.PrivateKey, opts memledger.Options) (*Contract, *fakeNode) {
	t.Helper()
	node := &fakeNode{
		abi:      DefaultABI(),
		ledger:   memledger.New(opts),
		chainID:  big.NewInt(1337),
		receipts: make(map[common.Hash]*types.Receipt),
		polls:    make(map[common.Hash]int),
	}
	srv := rpc.NewServer()
	if err := srv.RegisterName("eth", node); err != nil {
		t.Fatalf("RegisterName: %v", err)
	}
	t.Cleanup(srv.Stop)

	c := newContract(rpc.DialInProc(srv), Config{
		Address:      testContractAddress,
		ABI:          DefaultABI(),
		PrivateKey:   key,
		PollInterval: time.Millisecond,
	})
	t.Cleanup(func() { _ = c.Close() })
	return c, node
}
