package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"
)

type stubTier struct {
	name   string
	asset  *Asset
	err    error
	calls  int
	gotKey string
}

func (s *stubTier) Name() string { return s.name }

func (s *stubTier) Resolve(ctx context.Context, key string) (*Asset, error) {
	s.calls++
	s.gotKey = key
	if s.err != nil {
		return nil, s.err
	}
	return s.asset, nil
}

func TestResolverFallsThroughMissingTier(t *testing.T) {
	tierA := &stubTier{name: "a", err: ErrAbsent}
	tierB := &stubTier{name: "b", asset: &Asset{Origin: OriginRemote, Bytes: []byte("zip"), Size: 3}}

	resolver := NewResolver([]Tier{tierA, tierB}, time.Second, nil)

	asset, err := resolver.Resolve(context.Background(), "pack.zip")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if asset.Origin != OriginRemote {
		t.Fatalf("origin = %q, want remote", asset.Origin)
	}
	if string(asset.Bytes) != "zip" {
		t.Fatalf("bytes = %q", asset.Bytes)
	}
	if tierA.calls != 1 || tierB.calls != 1 {
		t.Fatalf("tier calls = %d/%d", tierA.calls, tierB.calls)
	}
}

func TestResolverAbsorbsTierFailures(t *testing.T) {
	tierA := &stubTier{name: "a", err: errors.New("connection refused")}
	tierB := &stubTier{name: "b", asset: &Asset{Origin: OriginRemote, Bytes: []byte("ok"), Size: 2}}

	resolver := NewResolver([]Tier{tierA, tierB}, time.Second, nil)

	asset, err := resolver.Resolve(context.Background(), "pack.zip")
	if err != nil {
		t.Fatalf("resolve after tier failure: %v", err)
	}
	if string(asset.Bytes) != "ok" {
		t.Fatalf("bytes = %q", asset.Bytes)
	}
}

func TestResolverFallsBackToLocal(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "pack.zip"), []byte("local bytes"), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	remote := &stubTier{name: "remote", err: errors.New("timeout")}
	resolver := NewResolver([]Tier{remote, NewLocalTier(dir)}, time.Second, nil)

	asset, err := resolver.Resolve(context.Background(), "pack.zip")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	defer asset.Close()

	if asset.Origin != OriginLocal {
		t.Fatalf("origin = %q, want local", asset.Origin)
	}
	if asset.Size != int64(len("local bytes")) {
		t.Fatalf("size = %d", asset.Size)
	}

	body, err := io.ReadAll(asset.Stream)
	if err != nil {
		t.Fatalf("read stream: %v", err)
	}
	if string(body) != "local bytes" {
		t.Fatalf("body = %q", body)
	}
}

func TestResolverReportsAbsenceAfterExhaustion(t *testing.T) {
	tierA := &stubTier{name: "a", err: ErrAbsent}
	resolver := NewResolver([]Tier{tierA, NewLocalTier(t.TempDir())}, time.Second, nil)

	if _, err := resolver.Resolve(context.Background(), "missing.zip"); !errors.Is(err, ErrAbsent) {
		t.Fatalf("expected ErrAbsent, got %v", err)
	}
}

func TestLocalTierFlattensTraversal(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "passwd"), []byte("safe"), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	tier := NewLocalTier(dir)

	// A traversal key collapses to its base name inside the tier root.
	asset, err := tier.Resolve(context.Background(), "../../etc/passwd")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	defer asset.Close()

	body, _ := io.ReadAll(asset.Stream)
	if string(body) != "safe" {
		t.Fatalf("body = %q", body)
	}
}

func TestLocalTierAbsent(t *testing.T) {
	tier := NewLocalTier(t.TempDir())
	if _, err := tier.Resolve(context.Background(), "nope.mp3"); !errors.Is(err, ErrAbsent) {
		t.Fatalf("expected ErrAbsent, got %v", err)
	}
}
