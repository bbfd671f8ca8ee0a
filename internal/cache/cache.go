// Package cache stores JSON-encoded responses with a TTL.
package cache

import (
	"context"
	"time"
)

// Cache is a JSON value cache keyed by string
type Cache interface {
	// Get unmarshals the cached value into dest and reports whether the key was present
	Get(ctx context.Context, key string, dest any) (bool, error)
	// Set marshals value to JSON and stores it for ttl
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	// Delete removes the given keys
	Delete(ctx context.Context, keys ...string) error
	// DeletePrefix removes every key starting with prefix
	DeletePrefix(ctx context.Context, prefix string) error
}

// Nop is the cache used when Redis is not configured
type Nop struct{}

func (Nop) Get(context.Context, string, any) (bool, error)        { return false, nil }
func (Nop) Set(context.Context, string, any, time.Duration) error { return nil }
func (Nop) Delete(context.Context, ...string) error               { return nil }
func (Nop) DeletePrefix(context.Context, string) error            { return nil }
