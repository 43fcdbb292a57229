package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LocalTier serves the bundled fallback copies from the filesystem. It is the
// last tier in every chain: when even the local file is missing the chain
// reports absence rather than an error.
type LocalTier struct {
	dir string
}

// NewLocalTier roots a filesystem tier at dir.
func NewLocalTier(dir string) *LocalTier {
	return &LocalTier{dir: dir}
}

// Name identifies the tier in resolution logs.
func (t *LocalTier) Name() string {
	return fmt.Sprintf("local:%s", t.dir)
}

// Resolve opens a streaming handle for dir/key. Keys are flattened to their
// base name first so a hostile key can never escape the tier root.
func (t *LocalTier) Resolve(ctx context.Context, key string) (*Asset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	name := filepath.Base(strings.TrimSpace(key))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return nil, ErrAbsent
	}

	full := filepath.Join(t.dir, name)

	info, err := os.Stat(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrAbsent
		}
		return nil, fmt.Errorf("stat %s: %w", full, err)
	}
	if info.IsDir() {
		return nil, ErrAbsent
	}

	f, err := os.Open(full)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", full, err)
	}

	return &Asset{
		Origin: OriginLocal,
		Stream: f,
		Size:   info.Size(),
	}, nil
}
