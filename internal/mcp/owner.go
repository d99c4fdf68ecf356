package mcp

import (
	"context"

	mcperrors "taskflow-ai/internal/errors"
)

type boundOwnerKey struct{}

// WithOwner binds the tool calls made under ctx to ownerID. A bound call may
// omit owner_id but cannot name another owner.
func WithOwner(ctx context.Context, ownerID int64) context.Context {
	return context.WithValue(ctx, boundOwnerKey{}, ownerID)
}

func boundOwner(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(boundOwnerKey{}).(int64)
	return id, ok && id > 0
}

// resolveOwner returns the owner a tool call acts for. Over stdio the
// owner_id argument is authoritative; over HTTP it must match the caller.
func resolveOwner(ctx context.Context, argOwner int64) (int64, error) {
	bound, ok := boundOwner(ctx)
	if !ok {
		if argOwner <= 0 {
			return 0, mcperrors.NewValidationError("owner_id", "owner_id is required and must be positive")
		}
		return argOwner, nil
	}
	if argOwner != 0 && argOwner != bound {
		return 0, mcperrors.NewValidationError("owner_id", "owner_id %d does not match the authenticated owner", argOwner)
	}
	return bound, nil
}
