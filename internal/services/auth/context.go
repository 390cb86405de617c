package auth

import (
	"context"
	"strings"
)

type identityContextKey string

const identityKey identityContextKey = "auth_identity"

// Identity is the verified caller: a stable user id and a role minted
// by the external authentication system. It is passed explicitly into
// every ledger operation instead of being read from ambient state.
type Identity struct {
	UserID int64
	SID    string
	Role   string
}

func (i Identity) IsAdmin() bool {
	return strings.EqualFold(i.Role, RoleAdmin)
}

func WithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(identityKey).(Identity)
	return identity, ok
}
