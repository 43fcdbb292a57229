package storage

import (
	"context"
	"errors"
	"io"
)

// ErrAbsent indicates a tier (or the whole chain) has no bytes for the key.
// It is the expected steady-state miss, not a failure.
var ErrAbsent = errors.New("asset absent")

// Origin tags where a resolved asset came from.
type Origin string

const (
	OriginRemote Origin = "remote"
	OriginLocal  Origin = "local"
)

// Asset is the ephemeral result of one successful resolution. Remote tiers
// fully materialize the body into Bytes; the local tier hands back an open
// Stream instead. Exactly one of the two is set, and the owner must Close the
// asset once the response completes.
type Asset struct {
	Origin Origin
	Bytes  []byte
	Stream io.ReadCloser
	Size   int64
}

// Close releases the underlying stream, if any.
func (a *Asset) Close() error {
	if a == nil || a.Stream == nil {
		return nil
	}
	return a.Stream.Close()
}

// Tier is one storage backend in the fallback priority order. Resolve returns
// ErrAbsent when the key does not exist in this tier; any other error is a
// tier-local failure the caller is free to absorb.
type Tier interface {
	Name() string
	Resolve(ctx context.Context, key string) (*Asset, error)
}
