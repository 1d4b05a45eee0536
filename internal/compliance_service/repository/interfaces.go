package repository

import "context"

// BlocklistRepository answers exact-match blocklist lookups on contact
// phone or associated identifier.
type BlocklistRepository interface {
	IsBlocked(ctx context.Context, identifier string) (blocked bool, reason string, err error)
}
