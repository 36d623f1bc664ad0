// Package cache provides the read-through cache used by the resolvers.
// Entries are keyed by natural identity and hold JSON-encoded entities.
package cache

import (
	"context"
	"strings"
)

// Cache stores encoded entities by key. A miss is (false, nil).
type Cache interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any) error
	Delete(ctx context.Context, key string) error
}

// Key joins identity parts into a cache key, e.g. Key("user", "E1", "7") -> "user:E1:7".
func Key(parts ...string) string {
	return strings.Join(parts, ":")
}

// Nop never hits and never stores.
type Nop struct{}

func (Nop) Get(context.Context, string, any) (bool, error) { return false, nil }
func (Nop) Set(context.Context, string, any) error         { return nil }
func (Nop) Delete(context.Context, string) error           { return nil }
