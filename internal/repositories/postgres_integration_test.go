package repositories

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/cockroachdb/cockroach-go/v2/testserver"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/soundpack/backend/internal/models"
)

var testPool *pgxpool.Pool

func TestMain(m *testing.M) {
	server, err := testserver.NewTestServer()
	if err != nil {
		fmt.Fprintf(os.Stderr, "start cockroach test server: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, server.PGURL().String())
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect to cockroach test server: %v\n", err)
		server.Stop()
		os.Exit(1)
	}

	if err := applyMigrations(ctx, pool); err != nil {
		fmt.Fprintf(os.Stderr, "apply migrations: %v\n", err)
		pool.Close()
		server.Stop()
		os.Exit(1)
	}

	testPool = pool

	code := m.Run()

	pool.Close()
	server.Stop()

	os.Exit(code)
}

func TestPostgresSubscriptionRepository_Lifecycle(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	repo := NewPostgresSubscriptionRepository(testPool)

	sub := models.Subscription{
		ID:                uuid.NewString(),
		Email:             "buyer@example.com",
		CheckoutSessionID: uuid.NewString(),
		Status:            models.SubscriptionPending,
		AmountPaid:        995,
		Currency:          "usd",
		CreatedAt:         time.Now().UTC().Truncate(time.Millisecond),
		UpdatedAt:         time.Now().UTC().Truncate(time.Millisecond),
	}

	if err := repo.Create(ctx, sub); err != nil {
		t.Fatalf("create subscription: %v", err)
	}

	dup := sub
	dup.ID = uuid.NewString()
	if err := repo.Create(ctx, dup); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict on duplicate session id, got %v", err)
	}

	fetched, err := repo.FindBySessionID(ctx, sub.CheckoutSessionID)
	if err != nil {
		t.Fatalf("find by session id: %v", err)
	}
	if fetched.ID != sub.ID || fetched.Email != sub.Email || fetched.Status != models.SubscriptionPending {
		t.Fatalf("unexpected subscription fetched: %+v", fetched)
	}

	// Pending purchases must not resolve by email; only completed ones do.
	if _, err := repo.FindByEmail(ctx, sub.Email); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for pending subscription, got %v", err)
	}

	if err := repo.MarkCompleted(ctx, sub.ID); err != nil {
		t.Fatalf("mark completed: %v", err)
	}

	fetched, err = repo.FindByEmail(ctx, sub.Email)
	if err != nil {
		t.Fatalf("find by email after completion: %v", err)
	}
	if fetched.Status != models.SubscriptionCompleted {
		t.Fatalf("status = %q, want completed", fetched.Status)
	}

	if err := repo.MarkEmailSent(ctx, sub.ID, true); err != nil {
		t.Fatalf("mark email sent: %v", err)
	}

	fetched, err = repo.FindBySessionID(ctx, sub.CheckoutSessionID)
	if err != nil {
		t.Fatalf("refetch subscription: %v", err)
	}
	if !fetched.EmailSent {
		t.Fatal("expected email_sent to persist")
	}

	if err := repo.MarkCompleted(ctx, uuid.NewString()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown id, got %v", err)
	}
}

func TestPostgresSubscriptionRepository_FindByEmailPicksLatest(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	repo := NewPostgresSubscriptionRepository(testPool)

	older := models.Subscription{
		ID:                uuid.NewString(),
		Email:             "repeat@example.com",
		CheckoutSessionID: uuid.NewString(),
		Status:            models.SubscriptionPending,
		AmountPaid:        995,
		Currency:          "usd",
		CreatedAt:         time.Now().UTC().Add(-time.Hour),
		UpdatedAt:         time.Now().UTC().Add(-time.Hour),
	}
	newer := older
	newer.ID = uuid.NewString()
	newer.CheckoutSessionID = uuid.NewString()
	newer.CreatedAt = time.Now().UTC()
	newer.UpdatedAt = time.Now().UTC()

	for _, sub := range []models.Subscription{older, newer} {
		if err := repo.Create(ctx, sub); err != nil {
			t.Fatalf("create subscription %s: %v", sub.ID, err)
		}
		if err := repo.MarkCompleted(ctx, sub.ID); err != nil {
			t.Fatalf("mark completed %s: %v", sub.ID, err)
		}
	}

	fetched, err := repo.FindByEmail(ctx, older.Email)
	if err != nil {
		t.Fatalf("find by email: %v", err)
	}
	if fetched.ID != newer.ID {
		t.Fatalf("expected latest subscription %s, got %s", newer.ID, fetched.ID)
	}
}

func TestPostgresAuditLogRepository_Append(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	subRepo := NewPostgresSubscriptionRepository(testPool)
	sub := models.Subscription{
		ID:                uuid.NewString(),
		Email:             "buyer@example.com",
		CheckoutSessionID: uuid.NewString(),
		Status:            models.SubscriptionCompleted,
		AmountPaid:        995,
		Currency:          "usd",
		CreatedAt:         time.Now().UTC(),
		UpdatedAt:         time.Now().UTC(),
	}
	if err := subRepo.Create(ctx, sub); err != nil {
		t.Fatalf("create subscription: %v", err)
	}

	repo := NewPostgresAuditLogRepository(testPool)

	if err := repo.AppendEmailLog(ctx, models.EmailLog{
		SubscriptionID: sub.ID,
		Email:          sub.Email,
		EmailType:      "welcome",
		Status:         models.EmailStatusSent,
	}); err != nil {
		t.Fatalf("append email log: %v", err)
	}

	// Empty subscription id and error message map to NULL, not to "".
	if err := repo.AppendEmailLog(ctx, models.EmailLog{
		Email:     "orphan@example.com",
		EmailType: "welcome",
		Status:    models.EmailStatusFailed,
	}); err != nil {
		t.Fatalf("append orphan email log: %v", err)
	}

	if err := repo.AppendDownloadLog(ctx, models.DownloadLog{
		SubscriptionID: sub.ID,
		Email:          sub.Email,
		DownloadToken:  "token-1",
		IPAddress:      "203.0.113.7",
		UserAgent:      "test-agent",
	}); err != nil {
		t.Fatalf("append download log: %v", err)
	}

	var emailCount, downloadCount int
	if err := testPool.QueryRow(ctx, "SELECT count(*) FROM email_logs").Scan(&emailCount); err != nil {
		t.Fatalf("count email logs: %v", err)
	}
	if err := testPool.QueryRow(ctx, "SELECT count(*) FROM download_logs").Scan(&downloadCount); err != nil {
		t.Fatalf("count download logs: %v", err)
	}
	if emailCount != 2 || downloadCount != 1 {
		t.Fatalf("counts = %d email / %d download", emailCount, downloadCount)
	}
}

func applyMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	migrationsDir := filepath.Join("..", "..", "migrations")
	entries, err := os.ReadDir(migrationsDir)
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		contents, err := os.ReadFile(filepath.Join(migrationsDir, entry.Name()))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}

		if _, err := pool.Exec(ctx, string(contents)); err != nil {
			return fmt.Errorf("apply migration %s: %w", entry.Name(), err)
		}
	}

	return nil
}

func resetDatabase(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	conn, err := testPool.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire connection: %v", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "TRUNCATE TABLE email_logs, download_logs, subscriptions CASCADE"); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
}
