package grpc

import (
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dmitrijs2005/authkeeper/internal/common"
)

// codeOf maps an error kind to its gRPC code.
func codeOf(err error) codes.Code {
	switch {
	case errors.Is(err, common.ErrorConflict):
		return codes.AlreadyExists
	case errors.Is(err, common.ErrorUnauthorized):
		return codes.Unauthenticated
	case errors.Is(err, common.ErrorNotFound):
		return codes.NotFound
	case errors.Is(err, common.ErrorValidation):
		return codes.InvalidArgument
	default:
		return codes.Internal
	}
}

func isInternal(err error) bool { return codeOf(err) == codes.Internal }

// toStatus never echoes the text of an internal error.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	return status.Error(codeOf(err), common.Message(err))
}
