// Package store keeps small values, such as the conversation log, under string keys.
package store

import (
	"context"
	"errors"
)

var ErrUnsupportedScheme = errors.New("store: unsupported URL scheme")

// Store is a key-value store. Get reports ok=false when the key does not exist.
type Store interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}
