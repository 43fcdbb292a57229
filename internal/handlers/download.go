package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/soundpack/backend/internal/catalog"
	"github.com/soundpack/backend/internal/delivery"
	"github.com/soundpack/backend/internal/logging"
	"github.com/soundpack/backend/internal/models"
	"github.com/soundpack/backend/internal/repositories"
	"github.com/soundpack/backend/internal/storage"
	"github.com/soundpack/backend/internal/tasks"
	"github.com/soundpack/backend/internal/tokens"
)

// DownloadHandler redeems signed download tokens for the full pack. Token
// verification happens before any storage tier is consulted; a rejected token
// costs no I/O.
type DownloadHandler struct {
	Secret        string
	Pack          AssetResolver
	PackKey       string
	Subscriptions SubscriptionStore
	Audit         AuditLogStore
	Tasks         TaskQueue
}

// Serve handles GET /download/{token}.
func (h DownloadHandler) Serve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	token := r.PathValue("token")

	payload, err := tokens.VerifyDownload(token, h.Secret)
	if err != nil {
		logger.Warn("download token rejected", "error", err)
		respondText(w, http.StatusForbidden, "Download link expired or invalid")
		return
	}

	filename := catalog.PackFilename
	if v, ok := payload["filename"].(string); ok && v != "" {
		filename = delivery.SanitizeFilename(v)
	}

	if email, ok := payload["email"].(string); ok && email != "" {
		h.auditDownload(email, token, clientIP(r), r.UserAgent())
	}

	asset, err := h.Pack.Resolve(ctx, h.PackKey)
	if err != nil {
		if errors.Is(err, storage.ErrAbsent) {
			respondText(w, http.StatusNotFound, "File not found")
			return
		}
		logger.Error("resolve pack asset", "key", h.PackKey, "error", err)
		respondText(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	delivery.Serve(ctx, w, asset, "application/zip", delivery.Attachment, filename)
}

// auditDownload records the redemption without touching the response path:
// the lookup and the insert run on the task runner and any failure is only
// logged there.
func (h DownloadHandler) auditDownload(email, token, ip, userAgent string) {
	if h.Tasks == nil || h.Audit == nil {
		return
	}

	h.Tasks.Enqueue(tasks.Task{
		Name: "download-audit",
		Fn: func(ctx context.Context) error {
			log := models.DownloadLog{
				Email:         email,
				DownloadToken: token,
				IPAddress:     ip,
				UserAgent:     userAgent,
			}

			if h.Subscriptions != nil {
				sub, err := h.Subscriptions.FindByEmail(ctx, email)
				switch {
				case err == nil:
					log.SubscriptionID = sub.ID
				case errors.Is(err, repositories.ErrNotFound):
					// Still worth recording the redemption.
				default:
					return err
				}
			}

			return h.Audit.AppendDownloadLog(ctx, log)
		},
	})
}
