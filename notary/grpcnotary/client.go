package grpcnotary

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"xdao.co/docnotary/model"
	"xdao.co/docnotary/notary"
)

// Client implements notary.Backend over a Notary gRPC service.
type Client struct {
	cc     *grpc.ClientConn
	client NotaryClient

	// Timeout applies per RPC when non-zero.
	Timeout time.Duration
}

var _ notary.Backend = (*Client)(nil)

type DialOptions struct {
	// Timeout applies to the initial dial when non-zero.
	Timeout time.Duration

	// MaxMsgBytes sets both send/recv max sizes when non-zero.
	MaxMsgBytes int
}

func Dial(ctx context.Context, target string, opts DialOptions) (*Client, error) {
	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}
	if opts.MaxMsgBytes > 0 {
		dialOpts = append(dialOpts,
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(opts.MaxMsgBytes),
				grpc.MaxCallSendMsgSize(opts.MaxMsgBytes),
			),
		)
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	cc, err := grpc.DialContext(ctx, target, dialOpts...)
	if err != nil {
		return nil, model.WrapError(model.KindTransport, "dial", "", err)
	}
	return NewClient(cc), nil
}

// NewClient wraps an established connection.
func NewClient(cc *grpc.ClientConn) *Client {
	return &Client{cc: cc, client: NewNotaryClient(cc)}
}

func (c *Client) Close() error {
	if c == nil || c.cc == nil {
		return nil
	}
	return c.cc.Close()
}

func (c *Client) Accounts(ctx context.Context) ([]model.Account, error) {
	ctx, cancel := c.ctx(ctx)
	defer cancel()

	reply, err := c.client.Accounts(ctx, &emptypb.Empty{})
	if err != nil {
		return nil, mapRPC("accounts", err)
	}
	out := make([]model.Account, 0, len(reply.GetValues()))
	for _, v := range reply.GetValues() {
		out = append(out, model.Account(v.GetStringValue()))
	}
	return out, nil
}

func (c *Client) VerifyDocument(ctx context.Context, hash string) (model.Record, error) {
	ctx, cancel := c.ctx(ctx)
	defer cancel()

	reply, err := c.client.Verify(ctx, wrapperspb.String(hash))
	if err != nil {
		return model.Record{}, mapRPC(notary.MethodVerify, err)
	}
	return structRecord(reply), nil
}

func (c *Client) GetDocumentDetails(ctx context.Context, hash string) (model.Record, error) {
	ctx, cancel := c.ctx(ctx)
	defer cancel()

	reply, err := c.client.Details(ctx, wrapperspb.String(hash))
	if err != nil {
		return model.Record{}, mapRPC(notary.MethodDetails, err)
	}
	return structRecord(reply), nil
}

func (c *Client) NotarizeDocument(ctx context.Context, hash string, opts notary.TxOptions) error {
	ctx, cancel := c.ctx(ctx)
	defer cancel()

	req := &structpb.Struct{Fields: map[string]*structpb.Value{
		"hash":      structpb.NewStringValue(hash),
		"from":      structpb.NewStringValue(string(opts.From)),
		"gas_limit": structpb.NewNumberValue(float64(opts.GasLimit)),
	}}
	if _, err := c.client.Notarize(ctx, req); err != nil {
		return mapRPC(notary.MethodNotarize, err)
	}
	return nil
}

func (c *Client) ctx(parent context.Context) (context.Context, context.CancelFunc) {
	if c.Timeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, c.Timeout)
}
