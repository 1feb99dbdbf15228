package grpcnotary

import (
	"context"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"xdao.co/docnotary/model"
	"xdao.co/docnotary/notary"
)

// Server exposes a notary.Backend over the Notary gRPC service.
type Server struct {
	UnimplementedNotaryServer
	Backend notary.Backend
}

func (s *Server) Accounts(ctx context.Context, _ *emptypb.Empty) (*structpb.ListValue, error) {
	if s == nil || s.Backend == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing backend")
	}
	accts, err := s.Backend.Accounts(ctx)
	if err != nil {
		return nil, mapErr(err, codes.Unavailable)
	}
	out := &structpb.ListValue{Values: make([]*structpb.Value, 0, len(accts))}
	for _, a := range accts {
		out.Values = append(out.Values, structpb.NewStringValue(string(a)))
	}
	return out, nil
}

func (s *Server) Verify(ctx context.Context, in *wrapperspb.StringValue) (*structpb.Struct, error) {
	if s == nil || s.Backend == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing backend")
	}
	rec, err := s.Backend.VerifyDocument(ctx, in.GetValue())
	if err != nil {
		return nil, mapErr(err, codes.Unavailable)
	}
	return recordStruct(rec), nil
}

func (s *Server) Details(ctx context.Context, in *wrapperspb.StringValue) (*structpb.Struct, error) {
	if s == nil || s.Backend == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing backend")
	}
	rec, err := s.Backend.GetDocumentDetails(ctx, in.GetValue())
	if err != nil {
		return nil, mapErr(err, codes.NotFound)
	}
	return recordStruct(rec), nil
}

func (s *Server) Notarize(ctx context.Context, in *structpb.Struct) (*emptypb.Empty, error) {
	if s == nil || s.Backend == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing backend")
	}
	f := in.GetFields()
	from := strings.TrimSpace(f["from"].GetStringValue())
	if from == "" {
		return nil, status.Error(codes.InvalidArgument, "missing sender account")
	}
	gas := uint64(f["gas_limit"].GetNumberValue())
	if gas == 0 {
		gas = notary.DefaultGasLimit
	}
	opts := notary.TxOptions{From: model.Account(from), GasLimit: gas}
	if err := s.Backend.NotarizeDocument(ctx, f["hash"].GetStringValue(), opts); err != nil {
		return nil, mapErr(err, codes.Aborted)
	}
	return &emptypb.Empty{}, nil
}

func recordStruct(rec model.Record) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"notarized": structpb.NewBoolValue(rec.Notarized),
		"owner":     structpb.NewStringValue(string(rec.Owner)),
		"timestamp": structpb.NewNumberValue(float64(rec.Timestamp)),
	}}
}

func structRecord(s *structpb.Struct) model.Record {
	f := s.GetFields()
	return model.Record{
		Notarized: f["notarized"].GetBoolValue(),
		Owner:     model.Account(f["owner"].GetStringValue()),
		Timestamp: int64(f["timestamp"].GetNumberValue()),
	}
}
