package grpcnotary

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const serviceName = "xdao.docnotary.v1.Notary"

// NotaryServer is the server API for the Notary gRPC service.
//
// Messages are protobuf well-known types so no protoc toolchain is needed:
// records travel as a Struct with "notarized", "owner" and "timestamp";
// a notarize request is a Struct with "hash", "from" and "gas_limit".
type NotaryServer interface {
	Accounts(context.Context, *emptypb.Empty) (*structpb.ListValue, error)
	Verify(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	Details(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	Notarize(context.Context, *structpb.Struct) (*emptypb.Empty, error)
}

// UnimplementedNotaryServer can be embedded to have forward compatible implementations.
type UnimplementedNotaryServer struct{}

func (UnimplementedNotaryServer) Accounts(context.Context, *emptypb.Empty) (*structpb.ListValue, error) {
	return nil, status.Error(codes.Unimplemented, "method Accounts not implemented")
}
func (UnimplementedNotaryServer) Verify(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method Verify not implemented")
}
func (UnimplementedNotaryServer) Details(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method Details not implemented")
}
func (UnimplementedNotaryServer) Notarize(context.Context, *structpb.Struct) (*emptypb.Empty, error) {
	return nil, status.Error(codes.Unimplemented, "method Notarize not implemented")
}

// RegisterNotaryServer registers the Notary service on a gRPC server.
func RegisterNotaryServer(s grpc.ServiceRegistrar, srv NotaryServer) {
	s.RegisterService(&Notary_ServiceDesc, srv)
}

// NotaryClient is the client API for the Notary gRPC service.
type NotaryClient interface {
	Accounts(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.ListValue, error)
	Verify(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.Struct, error)
	Details(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.Struct, error)
	Notarize(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*emptypb.Empty, error)
}

type notaryClient struct{ cc grpc.ClientConnInterface }

func NewNotaryClient(cc grpc.ClientConnInterface) NotaryClient { return &notaryClient{cc: cc} }

func (c *notaryClient) Accounts(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.ListValue, error) {
	out := new(structpb.ListValue)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/Accounts", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *notaryClient) Verify(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/Verify", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *notaryClient) Details(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/Details", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *notaryClient) Notarize(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	out := new(emptypb.Empty)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/Notarize", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func _Notary_Accounts_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(NotaryServer).Accounts(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/Accounts"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(NotaryServer).Accounts(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func _Notary_Verify_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(NotaryServer).Verify(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/Verify"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(NotaryServer).Verify(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func _Notary_Details_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(NotaryServer).Details(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/Details"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(NotaryServer).Details(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func _Notary_Notarize_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(NotaryServer).Notarize(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/Notarize"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(NotaryServer).Notarize(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// Notary_ServiceDesc is the grpc.ServiceDesc for Notary service.
var Notary_ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*NotaryServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Accounts", Handler: _Notary_Accounts_Handler},
		{MethodName: "Verify", Handler: _Notary_Verify_Handler},
		{MethodName: "Details", Handler: _Notary_Details_Handler},
		{MethodName: "Notarize", Handler: _Notary_Notarize_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "notary.proto",
}
