// Package tokenstore holds the single persisted auth-token slot. The slot is
// overwritten on login and deleted on logout; every outgoing request reads it.
package tokenstore

import (
	"context"
	"errors"
)

var ErrNotConfigured = errors.New("token store not configured")

// Store is one token slot. Get returns "" and no error when the slot is empty.
type Store interface {
	Get(ctx context.Context) (string, error)
	Set(ctx context.Context, token string) error
	Delete(ctx context.Context) error
}
