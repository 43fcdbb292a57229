package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/soundpack/backend/internal/catalog"
	"github.com/soundpack/backend/internal/logging"
	"github.com/soundpack/backend/internal/mailer"
	"github.com/soundpack/backend/internal/models"
	"github.com/soundpack/backend/internal/repositories"
	"github.com/soundpack/backend/internal/tasks"
)

// CheckoutHandler owns the purchase lifecycle around the external payment
// flow: it records intent when checkout starts and reacts to the provider's
// success redirect. The payment itself happens entirely upstream.
type CheckoutHandler struct {
	Subscriptions SubscriptionStore
	Audit         AuditLogStore
	Mail          MailSender
	Links         LinkProvider
	Tasks         TaskQueue

	// CheckoutURL is the externally hosted payment page; empty means the
	// deployment runs without a payment provider (direct fulfilment).
	CheckoutURL   string
	LocalPackPath string
	// SupportEmail receives unsubscribe requests from the welcome mail.
	SupportEmail string
	NowFunc      func() time.Time
}

const packPriceCents = 995

// Subscribe handles POST /subscribe: records a pending purchase and forwards
// the buyer to the external checkout.
func (h CheckoutHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	email := strings.TrimSpace(strings.ToLower(h.formEmail(r)))
	if email == "" {
		respondText(w, http.StatusBadRequest, "Email is required")
		return
	}
	if _, err := mail.ParseAddress(email); err != nil {
		respondText(w, http.StatusBadRequest, "Invalid email address")
		return
	}

	sub := models.Subscription{
		ID:                uuid.NewString(),
		Email:             email,
		CheckoutSessionID: uuid.NewString(),
		Status:            models.SubscriptionPending,
		AmountPaid:        packPriceCents,
		Currency:          "usd",
		CreatedAt:         h.now(),
		UpdatedAt:         h.now(),
	}

	if h.Subscriptions != nil {
		if err := h.Subscriptions.Create(ctx, sub); err != nil && !errors.Is(err, repositories.ErrConflict) {
			logger.Error("create subscription", "error", err)
			respondText(w, http.StatusInternalServerError, "Failed to start checkout")
			return
		}
	}

	if h.CheckoutURL == "" {
		respondJSON(ctx, w, http.StatusOK, map[string]string{
			"status":    models.SubscriptionPending,
			"sessionId": sub.CheckoutSessionID,
		})
		return
	}

	redirect := h.CheckoutURL +
		"?email=" + url.QueryEscape(email) +
		"&session_id=" + url.QueryEscape(sub.CheckoutSessionID)
	http.Redirect(w, r, redirect, http.StatusSeeOther)
}

// Success handles GET /success?email=&session_id=: the payment provider's
// return URL. The subscription is completed and the welcome email dispatched
// as a detached task; the page itself always renders.
func (h CheckoutHandler) Success(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	email := strings.TrimSpace(r.URL.Query().Get("email"))
	sessionID := strings.TrimSpace(r.URL.Query().Get("session_id"))

	if email != "" {
		subID := h.completeSubscription(ctx, logger, sessionID)
		h.dispatchWelcome(email, subID)
	}

	respondText(w, http.StatusOK, "Payment received. Your sound pack is on its way to your inbox.")
}

// Unsubscribe handles GET|POST /unsubscribe.
func (h CheckoutHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.URL.Query().Get("email"))
	logging.FromContext(r.Context()).Info("unsubscribe requested", "email", email)
	respondText(w, http.StatusOK, "You have been unsubscribed from sound pack notifications. If this was a mistake, please contact support.")
}

func (h CheckoutHandler) completeSubscription(ctx context.Context, logger *slog.Logger, sessionID string) string {
	if sessionID == "" || h.Subscriptions == nil {
		return ""
	}

	sub, err := h.Subscriptions.FindBySessionID(ctx, sessionID)
	if err != nil {
		if !errors.Is(err, repositories.ErrNotFound) {
			logger.Error("find subscription by session", "error", err)
		}
		return ""
	}

	if err := h.Subscriptions.MarkCompleted(ctx, sub.ID); err != nil {
		logger.Error("mark subscription completed", "subscriptionId", sub.ID, "error", err)
	}

	return sub.ID
}

// dispatchWelcome schedules the welcome email as a fire-and-forget task: link
// resolution, sending, the email_sent flag and the audit row all live inside
// the task's own error boundary.
func (h CheckoutHandler) dispatchWelcome(email, subscriptionID string) {
	if h.Tasks == nil || h.Mail == nil {
		return
	}

	h.Tasks.Enqueue(tasks.Task{
		Name: "welcome-email",
		Fn: func(ctx context.Context) error {
			var downloadURL string
			if h.Links != nil {
				downloadURL = h.Links.DownloadURL(ctx, email, catalog.PackFilename)
			}

			msg := mailer.WelcomeMail(email, downloadURL, h.LocalPackPath, h.SupportEmail)

			sendErr := h.Mail.Send(ctx, msg)

			if h.Subscriptions != nil && subscriptionID != "" {
				if err := h.Subscriptions.MarkEmailSent(ctx, subscriptionID, sendErr == nil); err != nil {
					logging.FromContext(ctx).Error("mark email sent", "subscriptionId", subscriptionID, "error", err)
				}
			}

			if h.Audit != nil {
				status := models.EmailStatusSent
				errMsg := ""
				if sendErr != nil {
					status = models.EmailStatusFailed
					errMsg = sendErr.Error()
				}
				if err := h.Audit.AppendEmailLog(ctx, models.EmailLog{
					SubscriptionID: subscriptionID,
					Email:          email,
					EmailType:      "welcome",
					Status:         status,
					ErrorMessage:   errMsg,
				}); err != nil {
					logging.FromContext(ctx).Error("append email log", "error", err)
				}
			}

			return sendErr
		},
	})
}

func (h CheckoutHandler) formEmail(r *http.Request) string {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var body struct {
			Email string `json:"email"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
			return body.Email
		}
		return ""
	}

	if err := r.ParseForm(); err != nil {
		return ""
	}
	return r.PostFormValue("email")
}

func (h CheckoutHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}
