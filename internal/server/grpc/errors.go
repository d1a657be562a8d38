package grpc

import (
	"context"

	"github.com/dmitrijs2005/filevault/internal/server/services"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func codeOf(k services.Kind) codes.Code {
	switch k {
	case services.KindOK:
		return codes.OK
	case services.KindBadRequest:
		return codes.InvalidArgument
	case services.KindNotFound:
		return codes.NotFound
	case services.KindUnauthorized:
		return codes.PermissionDenied
	case services.KindConflict:
		return codes.AlreadyExists
	default:
		return codes.Unavailable
	}
}

// statusError converts a service failure into a gRPC status. Errors that
// already are statuses pass through.
func (s *GRPCServer) statusError(ctx context.Context, op string, err error) error {
	if _, ok := status.FromError(err); ok {
		return err
	}
	o := services.OutcomeOf(err)
	if o.Kind == services.KindConnection {
		s.logger.Error(ctx, op+" failed", "error", err)
	}
	return status.Error(codeOf(o.Kind), o.Message)
}
