package notary

import (
	"context"

	"xdao.co/docnotary/model"
)

// Instrument returns a Backend that logs, measures and traces every call to
// b. It takes the Client options; the logger, metrics, tracer provider and
// call timeout apply, the gas limit does not because TxOptions pass through.
// Results and errors pass through unchanged, so callers that map errors
// themselves still see the originals.
func Instrument(b Backend, opts ...Option) Backend {
	return &instrumented{backend: b, client: NewClient(b, opts...)}
}

type instrumented struct {
	backend Backend
	client  *Client
}

func (i *instrumented) Accounts(ctx context.Context) ([]model.Account, error) {
	var accts []model.Account
	err := i.client.call(ctx, MethodAccounts, "", func(ctx context.Context) error {
		var err error
		accts, err = i.backend.Accounts(ctx)
		return err
	})
	return accts, err
}

func (i *instrumented) VerifyDocument(ctx context.Context, hash string) (model.Record, error) {
	var rec model.Record
	err := i.client.call(ctx, MethodVerify, hash, func(ctx context.Context) error {
		var err error
		rec, err = i.backend.VerifyDocument(ctx, hash)
		return err
	})
	return rec, err
}

func (i *instrumented) GetDocumentDetails(ctx context.Context, hash string) (model.Record, error) {
	var rec model.Record
	err := i.client.call(ctx, MethodDetails, hash, func(ctx context.Context) error {
		var err error
		rec, err = i.backend.GetDocumentDetails(ctx, hash)
		return err
	})
	return rec, err
}

func (i *instrumented) NotarizeDocument(ctx context.Context, hash string, opts TxOptions) error {
	return i.client.call(ctx, MethodNotarize, hash, func(ctx context.Context) error {
		return i.backend.NotarizeDocument(ctx, hash, opts)
	})
}
