package app

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/soundpack/backend/internal/catalog"
	"github.com/soundpack/backend/internal/config"
	"github.com/soundpack/backend/internal/db"
	"github.com/soundpack/backend/internal/handlers"
	"github.com/soundpack/backend/internal/mailer"
	"github.com/soundpack/backend/internal/middleware"
	"github.com/soundpack/backend/internal/repositories"
	"github.com/soundpack/backend/internal/storage"
	"github.com/soundpack/backend/internal/tasks"
	"github.com/soundpack/backend/internal/tokens"
)

// buildDependencies wires together concrete implementations used by the HTTP
// handlers. The remote tier is optional: without object store credentials
// both chains consist solely of the bundled filesystem fallback.
func buildDependencies(ctx context.Context, pool db.Pool, cfg config.Config, runner *tasks.Runner, logger *slog.Logger) (handlers.Dependencies, error) {
	previewTokens, err := tokens.NewPreviewIssuer(cfg.PreviewSecret, catalog.Filenames())
	if err != nil {
		return handlers.Dependencies{}, err
	}

	var (
		s3Client  *s3.Client
		presigner storage.Presigner
	)
	var sampleTiers, packTiers []storage.Tier

	if cfg.ObjectStore.Configured() {
		s3Client, err = storage.NewS3Client(ctx, cfg.ObjectStore)
		if err != nil {
			return handlers.Dependencies{}, err
		}
		presigner = s3.NewPresignClient(s3Client)

		sampleTiers = append(sampleTiers, storage.NewS3Tier(s3Client, cfg.ObjectStore.Bucket, cfg.ObjectStore.SamplePrefix))
		packTiers = append(packTiers, storage.NewS3Tier(s3Client, cfg.ObjectStore.Bucket, ""))
	} else {
		logger.Info("object store not configured, serving from local tier only")
	}

	sampleTiers = append(sampleTiers, storage.NewLocalTier(cfg.Local.SamplesDir))
	packTiers = append(packTiers, storage.NewLocalTier(filepath.Dir(cfg.Local.PackPath)))

	links := storage.NewLinkResolver(storage.LinkResolverOptions{
		PublicBaseURL: cfg.ObjectStore.PublicBaseURL,
		Bucket:        cfg.ObjectStore.Bucket,
		PackKey:       cfg.ObjectStore.PackKey,
		Presign:       presigner,
		Domain:        cfg.Domain,
		Secret:        cfg.DownloadSecret,
		TTL:           cfg.DownloadTTL,
		Logger:        logger,
	})

	subscriptions := repositories.NewPostgresSubscriptionRepository(pool)
	audit := repositories.NewPostgresAuditLogRepository(pool)

	return handlers.Dependencies{
		PreviewTokens:  previewTokens,
		Samples:        storage.NewResolver(sampleTiers, cfg.TierTimeout, logger),
		Pack:           storage.NewResolver(packTiers, cfg.TierTimeout, logger),
		Links:          links,
		Subscriptions:  subscriptions,
		Audit:          audit,
		Mail:           mailer.NewSMTPSender(cfg.SMTP, cfg.FromEmail),
		Tasks:          runner,
		PreviewLimiter: middleware.NewIPRateLimiter(30, time.Minute, 10, 10*time.Minute),

		Domain:         cfg.Domain,
		PreviewTTL:     cfg.PreviewTTL,
		DownloadSecret: cfg.DownloadSecret,
		PackKey:        cfg.ObjectStore.PackKey,
		CheckoutURL:    cfg.CheckoutURL,
		LocalPackPath:  cfg.Local.PackPath,
		SupportEmail:   cfg.FromEmail,
	}, nil
}
