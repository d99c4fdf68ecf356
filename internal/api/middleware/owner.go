package middleware

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"taskflow-ai/internal/api/response"
)

// OwnerHeader names the header the upstream gateway sets to the
// authenticated user's id
const OwnerHeader = "X-Owner-ID"

const ownerIDKey contextKey = "owner_id"

// RequireOwner rejects requests without a positive owner id header and stores
// the id in the request context
func RequireOwner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimSpace(r.Header.Get(OwnerHeader))
		if raw == "" {
			response.WriteError(w, http.StatusUnauthorized, response.ErrorCodeMissingOwner, "missing "+OwnerHeader+" header")
			return
		}
		ownerID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || ownerID <= 0 {
			response.WriteBadRequest(w, "invalid "+OwnerHeader+" header", raw)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithOwnerID(r.Context(), ownerID)))
	})
}

// WithOwnerID stores ownerID in ctx
func WithOwnerID(ctx context.Context, ownerID int64) context.Context {
	return context.WithValue(ctx, ownerIDKey, ownerID)
}

// OwnerID returns the owner id stored by RequireOwner, or 0
func OwnerID(ctx context.Context) int64 {
	if id, ok := ctx.Value(ownerIDKey).(int64); ok {
		return id
	}
	return 0
}
