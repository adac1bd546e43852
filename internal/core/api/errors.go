package api

import (
	"context"
	"errors"
	"log/slog"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/solatis/rulekeeper/internal/types"
)

// toStatus maps engine and store errors onto gRPC codes:
//
//	not found sentinels        -> NOT_FOUND
//	invalid record             -> INVALID_ARGUMENT
//	duplicate code             -> ALREADY_EXISTS
//	rule fault                 -> INTERNAL
//	context deadline / cancel  -> DEADLINE_EXCEEDED / CANCELED
//	anything else (datastore)  -> UNAVAILABLE
func (s *RuleEngineService) toStatus(op string, err error) error {
	return statusFor(s.logger, op, err)
}

func statusFor(logger *slog.Logger, op string, err error) error {
	code := codeFor(err)
	if code == codes.Unavailable || code == codes.Internal {
		logger.Error(op+" failed", "error", err)
	}
	return status.Errorf(code, "%s: %v", op, err)
}

func codeFor(err error) codes.Code {
	switch {
	case errors.Is(err, types.ErrRuleNotFound),
		errors.Is(err, types.ErrConfigNotFound),
		errors.Is(err, types.ErrConfigItemNotFound):
		return codes.NotFound
	case errors.Is(err, types.ErrInvalidRecord):
		return codes.InvalidArgument
	case errors.Is(err, types.ErrDuplicateCode):
		return codes.AlreadyExists
	case errors.Is(err, types.ErrRuleFault):
		return codes.Internal
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	default:
		return codes.Unavailable
	}
}
