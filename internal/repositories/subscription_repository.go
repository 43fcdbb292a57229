package repositories

import (
	"context"

	"github.com/soundpack/backend/internal/models"
)

// SubscriptionStore defines the data access contract for purchases.
type SubscriptionStore interface {
	Create(ctx context.Context, sub models.Subscription) error
	MarkCompleted(ctx context.Context, id string) error
	MarkEmailSent(ctx context.Context, id string, sent bool) error
	FindBySessionID(ctx context.Context, sessionID string) (models.Subscription, error)
	FindByEmail(ctx context.Context, email string) (models.Subscription, error)
}

// AuditLogStore appends delivery and email audit records. Append failures are
// reported to the caller, which is always a detached task that logs and
// swallows them; they never surface on a response path.
type AuditLogStore interface {
	AppendEmailLog(ctx context.Context, log models.EmailLog) error
	AppendDownloadLog(ctx context.Context, log models.DownloadLog) error
}
