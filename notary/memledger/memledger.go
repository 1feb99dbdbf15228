// Package memledger is an in-process stand-in for a deployed notary
// contract. It reproduces the contract's observable behavior (first writer
// wins, details revert for unknown hashes, gas ceiling enforcement) so the
// front-end can be exercised without a node.
//
// State lives only as long as the process.
package memledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"xdao.co/docnotary/model"
	"xdao.co/docnotary/notary"
)

// DefaultGasCost approximates the gas a notarization consumes.
const DefaultGasCost uint64 = 90_000

var (
	ErrAlreadyNotarized = errors.New("revert: Document already notarized")
	ErrNotNotarized     = errors.New("revert: Document not notarized")
	ErrOutOfGas         = errors.New("out of gas")
	ErrUnknownSender    = errors.New("sender account not recognized")
)

// DefaultAccounts are the accounts a Ledger manages when none are given.
var DefaultAccounts = []model.Account{
	"0x90f8bf6a479f320ead074411a4b0e7944ea8c9c1",
	"0xffcf8fdee72ac11b5c542428b35eef5769c409f0",
	"0x22d491bde2303f2f43325b2108d26f1eaba1e32b",
}

// Ledger implements notary.Backend in memory.
type Ledger struct {
	mu       sync.RWMutex
	records  map[string]model.Record
	accounts []model.Account
	now      func() time.Time
	gasCost  uint64
}

var _ notary.Backend = (*Ledger)(nil)

// Options configures a Ledger. Zero values select defaults.
type Options struct {
	Accounts []model.Account
	// Now supplies block timestamps.
	Now     func() time.Time
	GasCost uint64
}

// New returns an empty Ledger.
func New(opts Options) *Ledger {
	l := &Ledger{
		records:  make(map[string]model.Record),
		accounts: append([]model.Account(nil), opts.Accounts...),
		now:      opts.Now,
		gasCost:  opts.GasCost,
	}
	if len(l.accounts) == 0 {
		l.accounts = append([]model.Account(nil), DefaultAccounts...)
	}
	if l.now == nil {
		l.now = time.Now
	}
	if l.gasCost == 0 {
		l.gasCost = DefaultGasCost
	}
	return l
}

func (l *Ledger) Accounts(ctx context.Context) ([]model.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, model.WrapError(model.KindTransport, "accounts", "", err)
	}
	return append([]model.Account(nil), l.accounts...), nil
}

func (l *Ledger) VerifyDocument(ctx context.Context, hash string) (model.Record, error) {
	if err := ctx.Err(); err != nil {
		return model.Record{}, model.WrapError(model.KindTransport, notary.MethodVerify, "", err)
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	rec, ok := l.records[hash]
	if !ok {
		return model.Record{Owner: model.ZeroAccount}, nil
	}
	return rec, nil
}

func (l *Ledger) GetDocumentDetails(ctx context.Context, hash string) (model.Record, error) {
	if err := ctx.Err(); err != nil {
		return model.Record{}, model.WrapError(model.KindTransport, notary.MethodDetails, "", err)
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	rec, ok := l.records[hash]
	if !ok {
		return model.Record{}, ErrNotNotarized
	}
	return model.Record{Owner: rec.Owner, Timestamp: rec.Timestamp}, nil
}

func (l *Ledger) NotarizeDocument(ctx context.Context, hash string, opts notary.TxOptions) error {
	if err := ctx.Err(); err != nil {
		return model.WrapError(model.KindTransport, notary.MethodNotarize, "", err)
	}
	if !l.knows(opts.From) {
		return fmt.Errorf("%w: %q", ErrUnknownSender, opts.From)
	}
	if opts.GasLimit < l.gasCost {
		return fmt.Errorf("%w: limit %d below required %d", ErrOutOfGas, opts.GasLimit, l.gasCost)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.records[hash]; exists {
		return ErrAlreadyNotarized
	}
	l.records[hash] = model.Record{
		Notarized: true,
		Owner:     opts.From,
		Timestamp: l.now().Unix(),
	}
	return nil
}

// Len returns the number of recorded hashes.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}

func (l *Ledger) knows(a model.Account) bool {
	if a.IsZero() {
		return false
	}
	for _, known := range l.accounts {
		if strings.EqualFold(string(known), string(a)) {
			return true
		}
	}
	return false
}
