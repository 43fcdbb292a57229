package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"

	"github.com/soundpack/backend/internal/config"
	"github.com/soundpack/backend/internal/storage"
)

// runUpload pushes the bundled assets into the remote tier so deployments do
// not depend on the local fallback copies. Usage:
//
//	soundpack upload pack
//	soundpack upload samples
func runUpload(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("expected upload target: pack or samples")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if !cfg.ObjectStore.Configured() {
		return errors.New("object store is not configured")
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	client, err := storage.NewS3Client(ctx, cfg.ObjectStore)
	if err != nil {
		return err
	}
	uploader := storage.NewUploader(client, cfg.ObjectStore.Bucket)

	switch args[0] {
	case "pack":
		key, err := uploadFile(ctx, uploader, cfg.Local.PackPath, cfg.ObjectStore.PackKey, "application/zip")
		if err != nil {
			return err
		}
		logger.Info("uploaded pack", "key", key)
		return nil
	case "samples":
		entries, err := os.ReadDir(cfg.Local.SamplesDir)
		if err != nil {
			return fmt.Errorf("read samples directory: %w", err)
		}
		for _, entry := range entries {
			if entry.IsDir() || filepath.Ext(entry.Name()) != ".mp3" {
				continue
			}
			key := path.Join(cfg.ObjectStore.SamplePrefix, entry.Name())
			if _, err := uploadFile(ctx, uploader, filepath.Join(cfg.Local.SamplesDir, entry.Name()), key, "audio/mpeg"); err != nil {
				return err
			}
			logger.Info("uploaded sample", "key", key)
		}
		return nil
	default:
		return fmt.Errorf("unknown upload target %q", args[0])
	}
}

func uploadFile(ctx context.Context, uploader *storage.Uploader, localPath, key, contentType string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", localPath, err)
	}
	defer f.Close()

	return uploader.Upload(ctx, key, contentType, f)
}
