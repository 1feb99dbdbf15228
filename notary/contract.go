// Package notary wraps the three methods of a deployed document notary
// contract and normalizes their results and errors.
//
// The contract is the source of truth for ownership and timestamps. This
// package never caches records; every call goes to the backend.
package notary

import (
	"context"

	"xdao.co/docnotary/model"
)

// Method names of the remote contract interface.
const (
	MethodNotarize = "notarizeDocument"
	MethodVerify   = "verifyDocument"
	MethodDetails  = "getDocumentDetails"
	MethodAccounts = "eth_accounts"
)

// DefaultGasLimit is the gas ceiling attached to notarization transactions.
const DefaultGasLimit uint64 = 3_000_000

// TxOptions parameterizes a state-changing call.
type TxOptions struct {
	From     model.Account
	GasLimit uint64
}

// Contract is the fixed remote method surface of a notary contract.
//
// Contract:
//   - VerifyDocument MUST return Notarized=false with a nil error for an
//     unknown hash; errors are reserved for transport or decoding failures.
//   - GetDocumentDetails MUST return an error when the hash is unknown.
//   - NotarizeDocument MUST fail, carrying the remote reason, when the
//     transaction is rejected or reverts.
type Contract interface {
	VerifyDocument(ctx context.Context, hash string) (model.Record, error)
	GetDocumentDetails(ctx context.Context, hash string) (model.Record, error)
	NotarizeDocument(ctx context.Context, hash string, opts TxOptions) error
}

// Provider exposes the accounts a network provider manages.
type Provider interface {
	Accounts(ctx context.Context) ([]model.Account, error)
}

// Backend is a connected contract together with its provider.
type Backend interface {
	Contract
	Provider
}
