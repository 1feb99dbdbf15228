package notary

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"xdao.co/docnotary/internal/observability"
	"xdao.co/docnotary/model"
)

// Client performs notary operations against a Contract.
//
// Every operation is a single remote call (Notarize is two). There is no
// retry and no batching. Without a call timeout a call that never returns
// blocks its caller until ctx is cancelled.
type Client struct {
	contract    Contract
	gasLimit    uint64
	callTimeout time.Duration
	log         *observability.Logger
	metrics     *observability.Metrics
	tracer      trace.Tracer
}

// Option configures a Client.
type Option func(*Client)

// WithGasLimit sets the gas ceiling for notarization transactions.
func WithGasLimit(gas uint64) Option {
	return func(c *Client) {
		if gas > 0 {
			c.gasLimit = gas
		}
	}
}

// WithCallTimeout bounds each remote call. Zero means no bound.
func WithCallTimeout(d time.Duration) Option {
	return func(c *Client) { c.callTimeout = d }
}

// WithLogger sets the logger.
func WithLogger(l *observability.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithTracerProvider traces calls through tp instead of the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Client) {
		if tp != nil {
			c.tracer = tp.Tracer(tracerName)
		}
	}
}

const tracerName = "xdao.co/docnotary/notary"

// NewClient returns a Client bound to contract.
func NewClient(contract Contract, opts ...Option) *Client {
	c := &Client{
		contract: contract,
		gasLimit: DefaultGasLimit,
		log:      observability.Nop(),
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GasLimit returns the configured gas ceiling.
func (c *Client) GasLimit() uint64 { return c.gasLimit }

// Verify reads the notarization state of hash.
//
// An unknown hash is a successful read of Notarized=false; any returned
// error has KindTransport.
func (c *Client) Verify(ctx context.Context, hash model.ContentHash) (model.Record, error) {
	if c == nil || c.contract == nil {
		return model.Record{}, model.NewError(model.KindTransport, MethodVerify, "notary client is not connected")
	}
	var rec model.Record
	err := c.call(ctx, MethodVerify, string(hash), func(ctx context.Context) error {
		var err error
		rec, err = c.contract.VerifyDocument(ctx, string(hash))
		return err
	})
	if err != nil {
		return model.Record{}, asKind(model.KindTransport, MethodVerify, err)
	}
	if !rec.Notarized {
		return model.Record{}, nil
	}
	return rec, nil
}

// Check is the first step of Notarize. It is Verify under another name so
// callers driving the protocol by hand read naturally.
func (c *Client) Check(ctx context.Context, hash model.ContentHash) (model.Record, error) {
	return c.Verify(ctx, hash)
}

// Submit is the second step of Notarize: it sends the notarization
// transaction without checking for an existing record. Errors have
// KindNotarization, or KindTransport when the provider could not be reached.
func (c *Client) Submit(ctx context.Context, hash model.ContentHash, caller model.Account) error {
	if c == nil || c.contract == nil {
		return model.NewError(model.KindTransport, MethodNotarize, "notary client is not connected")
	}
	opts := TxOptions{From: caller, GasLimit: c.gasLimit}
	err := c.call(ctx, MethodNotarize, string(hash), func(ctx context.Context) error {
		return c.contract.NotarizeDocument(ctx, string(hash), opts)
	})
	if err != nil {
		return asKind(model.KindNotarization, MethodNotarize, err)
	}
	return nil
}

// Notarize records hash for caller unless it is already recorded.
//
// The protocol is check-then-act and is not atomic: two clients racing on the
// same hash can both pass the check. The contract decides the outcome of the
// second submission. When the check finds a record, no transaction is sent
// and the existing record is returned with Submitted=false.
func (c *Client) Notarize(ctx context.Context, hash model.ContentHash, caller model.Account) (model.NotarizeResult, error) {
	existing, err := c.Check(ctx, hash)
	if err != nil {
		return model.NotarizeResult{}, err
	}
	if existing.Notarized {
		c.log.NotarizeSkipped(string(hash), string(existing.Owner), existing.Timestamp)
		c.metrics.ObserveSkip()
		return model.NotarizeResult{Submitted: false, Existing: existing}, nil
	}
	if err := c.Submit(ctx, hash, caller); err != nil {
		return model.NotarizeResult{}, err
	}
	return model.NotarizeResult{Submitted: true}, nil
}

// GetDetails fetches owner and timestamp for hash. hash is free text and is
// passed through unchanged.
//
// Every failure, including an unknown hash, has KindLookup.
func (c *Client) GetDetails(ctx context.Context, hash string) (model.Record, error) {
	if c == nil || c.contract == nil {
		return model.Record{}, model.NewError(model.KindLookup, MethodDetails, "notary client is not connected")
	}
	var rec model.Record
	err := c.call(ctx, MethodDetails, hash, func(ctx context.Context) error {
		var err error
		rec, err = c.contract.GetDocumentDetails(ctx, hash)
		return err
	})
	if err != nil {
		return model.Record{}, model.WrapError(model.KindLookup, MethodDetails, "", err)
	}
	rec.Notarized = true
	return rec, nil
}

func (c *Client) call(ctx context.Context, method, hash string, fn func(context.Context) error) error {
	if c.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.callTimeout)
		defer cancel()
	}
	ctx, span := c.tracer.Start(ctx, method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("docnotary.hash", hash)))
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	c.log.ContractCall(method, hash, elapsed, err)
	result := "ok"
	if err != nil {
		result = strings.ToLower(string(model.KindOf(err)))
		if result == "" {
			result = "error"
		}
	}
	c.metrics.ObserveCall(method, result, elapsed)
	return err
}

// asKind keeps a structured error from the backend when it already carries
// one of the transport or notarization kinds, and otherwise wraps err as kind.
func asKind(kind model.Kind, op string, err error) error {
	var e *model.Error
	if errors.As(err, &e) && (e.Kind == model.KindTransport || e.Kind == kind) {
		return err
	}
	return model.WrapError(kind, op, "", err)
}
