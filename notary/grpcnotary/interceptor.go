package grpcnotary

import (
	"context"
	"path"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"xdao.co/docnotary/internal/observability"
)

// UnaryInterceptor logs and measures every request. Either argument may be nil.
func UnaryInterceptor(log *observability.Logger, metrics *observability.Metrics) grpc.UnaryServerInterceptor {
	if log == nil {
		log = observability.Nop()
	}
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		elapsed := time.Since(start)

		method := path.Base(info.FullMethod)
		code := status.Code(err).String()
		log.RPCHandled(method, code, elapsed, err)
		metrics.ObserveRPC(method, code, elapsed)
		return resp, err
	}
}
