// Package metadata stores the CLI session as key/value pairs in the local
// SQLite database.
package metadata

import (
	"context"
)

// Session keys.
const (
	KeyEmail       = "email"
	KeyAccessToken = "access_token"
)

type Repository interface {
	// Get returns the value of key and whether it was set.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key string, value string) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}
