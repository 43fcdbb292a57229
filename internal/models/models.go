package models

import "time"

// Subscription represents one purchase of the sound pack. It is created in a
// pending state when checkout starts and completed when the payment provider
// redirects the buyer back.
type Subscription struct {
	ID                string
	Email             string
	CheckoutSessionID string
	Status            string
	AmountPaid        int64
	Currency          string
	EmailSent         bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

const (
	SubscriptionPending   = "pending"
	SubscriptionCompleted = "completed"
)

// EmailLog records one attempt to deliver a transactional email.
type EmailLog struct {
	ID             string
	SubscriptionID string
	Email          string
	EmailType      string
	Status         string
	ErrorMessage   string
	CreatedAt      time.Time
}

const (
	EmailStatusSent   = "sent"
	EmailStatusFailed = "failed"
)

// DownloadLog records one redemption of a download token.
type DownloadLog struct {
	ID             string
	SubscriptionID string
	Email          string
	DownloadToken  string
	IPAddress      string
	UserAgent      string
	CreatedAt      time.Time
}
