package grpcnotary

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"xdao.co/docnotary/model"
)

// mapErr converts a backend error to a status. Structured errors keep their
// kind; anything else gets fallback, which reflects what the failing method
// means to callers.
func mapErr(err error, fallback codes.Code) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	}
	switch model.KindOf(err) {
	case model.KindLookup:
		return status.Error(codes.NotFound, err.Error())
	case model.KindNotarization:
		return status.Error(codes.Aborted, err.Error())
	case model.KindTransport:
		return status.Error(codes.Unavailable, err.Error())
	}
	return status.Error(fallback, err.Error())
}

// mapRPC converts a call failure back into a structured error.
func mapRPC(op string, err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return model.WrapError(model.KindTransport, op, "", err)
	}
	switch st.Code() {
	case codes.NotFound:
		return model.WrapError(model.KindLookup, op, st.Message(), err)
	case codes.Aborted, codes.InvalidArgument, codes.FailedPrecondition:
		return model.WrapError(model.KindNotarization, op, st.Message(), err)
	default:
		// Unavailable, DeadlineExceeded and anything unexpected mean the
		// call did not complete.
		return model.WrapError(model.KindTransport, op, st.Message(), err)
	}
}
