package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/soundpack/backend/internal/db"
	"github.com/soundpack/backend/internal/models"
)

// PostgresSubscriptionRepository provides PostgreSQL-backed persistence for purchases.
type PostgresSubscriptionRepository struct {
	pool db.Pool
}

// NewPostgresSubscriptionRepository constructs a subscription repository backed by PostgreSQL.
func NewPostgresSubscriptionRepository(pool db.Pool) *PostgresSubscriptionRepository {
	return &PostgresSubscriptionRepository{pool: pool}
}

// Create persists a new subscription record.
func (r *PostgresSubscriptionRepository) Create(ctx context.Context, sub models.Subscription) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO subscriptions (id, email, checkout_session_id, status, amount_paid, currency, email_sent, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
    `, sub.ID, sub.Email, sub.CheckoutSessionID, sub.Status, sub.AmountPaid, sub.Currency, sub.EmailSent, sub.CreatedAt, sub.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrConflict
		}
		return fmt.Errorf("insert subscription: %w", err)
	}

	return nil
}

// MarkCompleted transitions a subscription into the completed state.
func (r *PostgresSubscriptionRepository) MarkCompleted(ctx context.Context, id string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE subscriptions
        SET status = $2, updated_at = $3
        WHERE id = $1
    `, id, models.SubscriptionCompleted, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update subscription status: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// MarkEmailSent records whether the welcome email reached the purchaser.
func (r *PostgresSubscriptionRepository) MarkEmailSent(ctx context.Context, id string, sent bool) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE subscriptions
        SET email_sent = $2, updated_at = $3
        WHERE id = $1
    `, id, sent, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update subscription email_sent: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// FindBySessionID fetches a subscription by its checkout session identifier.
func (r *PostgresSubscriptionRepository) FindBySessionID(ctx context.Context, sessionID string) (models.Subscription, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Subscription{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        SELECT id, email, checkout_session_id, status, amount_paid, currency, email_sent, created_at, updated_at
        FROM subscriptions
        WHERE checkout_session_id = $1
    `, sessionID)

	return scanSubscription(row)
}

// FindByEmail fetches the most recent completed subscription for an email.
func (r *PostgresSubscriptionRepository) FindByEmail(ctx context.Context, email string) (models.Subscription, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Subscription{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        SELECT id, email, checkout_session_id, status, amount_paid, currency, email_sent, created_at, updated_at
        FROM subscriptions
        WHERE email = $1 AND status = $2
        ORDER BY created_at DESC
        LIMIT 1
    `, email, models.SubscriptionCompleted)

	return scanSubscription(row)
}

func scanSubscription(row pgx.Row) (models.Subscription, error) {
	var sub models.Subscription
	err := row.Scan(
		&sub.ID,
		&sub.Email,
		&sub.CheckoutSessionID,
		&sub.Status,
		&sub.AmountPaid,
		&sub.Currency,
		&sub.EmailSent,
		&sub.CreatedAt,
		&sub.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Subscription{}, ErrNotFound
		}
		return models.Subscription{}, fmt.Errorf("scan subscription: %w", err)
	}
	return sub, nil
}

// PostgresAuditLogRepository appends email and download audit records.
type PostgresAuditLogRepository struct {
	pool db.Pool
}

// NewPostgresAuditLogRepository constructs an audit log repository backed by PostgreSQL.
func NewPostgresAuditLogRepository(pool db.Pool) *PostgresAuditLogRepository {
	return &PostgresAuditLogRepository{pool: pool}
}

// AppendEmailLog inserts one email delivery record.
func (r *PostgresAuditLogRepository) AppendEmailLog(ctx context.Context, log models.EmailLog) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	if log.ID == "" {
		log.ID = uuid.NewString()
	}

	_, err = conn.Exec(ctx, `
        INSERT INTO email_logs (id, subscription_id, email, email_type, status, error_message, created_at)
        VALUES ($1, NULLIF($2, ''), $3, $4, $5, NULLIF($6, ''), $7)
    `, log.ID, log.SubscriptionID, log.Email, log.EmailType, log.Status, log.ErrorMessage, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("insert email log: %w", err)
	}

	return nil
}

// AppendDownloadLog inserts one download redemption record.
func (r *PostgresAuditLogRepository) AppendDownloadLog(ctx context.Context, log models.DownloadLog) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	if log.ID == "" {
		log.ID = uuid.NewString()
	}

	_, err = conn.Exec(ctx, `
        INSERT INTO download_logs (id, subscription_id, email, download_token, ip_address, user_agent, created_at)
        VALUES ($1, NULLIF($2, ''), $3, $4, NULLIF($5, ''), NULLIF($6, ''), $7)
    `, log.ID, log.SubscriptionID, log.Email, log.DownloadToken, log.IPAddress, log.UserAgent, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("insert download log: %w", err)
	}

	return nil
}

var _ SubscriptionStore = (*PostgresSubscriptionRepository)(nil)
var _ AuditLogStore = (*PostgresAuditLogRepository)(nil)
