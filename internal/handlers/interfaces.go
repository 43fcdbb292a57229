package handlers

import (
	"context"
	"time"

	"github.com/soundpack/backend/internal/mailer"
	"github.com/soundpack/backend/internal/models"
	"github.com/soundpack/backend/internal/storage"
	"github.com/soundpack/backend/internal/tasks"
	"github.com/soundpack/backend/internal/tokens"
)

// PreviewTokenService mints and checks the short-lived tokens that gate
// sample streaming.
type PreviewTokenService interface {
	Issue(name string, ttl time.Duration) (string, time.Time, error)
	Verify(token string) (tokens.PreviewClaims, error)
	Allowed(name string) bool
}

// AssetResolver walks the storage tier chain for a logical key.
type AssetResolver interface {
	Resolve(ctx context.Context, key string) (*storage.Asset, error)
}

// LinkProvider produces a download reference for the full pack.
type LinkProvider interface {
	DownloadURL(ctx context.Context, email, filename string) string
}

// SubscriptionStore captures the persistence operations required by the
// checkout and download handlers.
type SubscriptionStore interface {
	Create(ctx context.Context, sub models.Subscription) error
	MarkCompleted(ctx context.Context, id string) error
	MarkEmailSent(ctx context.Context, id string, sent bool) error
	FindBySessionID(ctx context.Context, sessionID string) (models.Subscription, error)
	FindByEmail(ctx context.Context, email string) (models.Subscription, error)
}

// AuditLogStore appends audit records from detached tasks.
type AuditLogStore interface {
	AppendEmailLog(ctx context.Context, log models.EmailLog) error
	AppendDownloadLog(ctx context.Context, log models.DownloadLog) error
}

// MailSender delivers rendered messages.
type MailSender interface {
	Send(ctx context.Context, msg mailer.Message) error
}

// TaskQueue schedules fire-and-forget work decoupled from the response.
type TaskQueue interface {
	Enqueue(task tasks.Task)
}
