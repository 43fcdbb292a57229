package handlers

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/soundpack/backend/internal/catalog"
	"github.com/soundpack/backend/internal/delivery"
	"github.com/soundpack/backend/internal/logging"
	"github.com/soundpack/backend/internal/storage"
	"github.com/soundpack/backend/internal/tokens"
)

// PreviewHandler gates sample streaming behind short-lived signed URLs. The
// stream is always proxied through this process so that both the token and
// the referrer can be checked before any bytes move.
type PreviewHandler struct {
	Tokens  PreviewTokenService
	Samples AssetResolver
	Domain  string
	TTL     time.Duration
	Limiter RateLimiter
}

// SignURL handles GET /api/preview-url?name=<sample>.
func (h PreviewHandler) SignURL(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if !allowRequest(h.Limiter, r, "preview-url") {
		respondJSON(ctx, w, http.StatusTooManyRequests, map[string]string{"error": "too many requests"})
		return
	}

	name := strings.TrimSpace(r.URL.Query().Get("name"))
	token, expiresAt, err := h.Tokens.Issue(name, h.TTL)
	if err != nil {
		if errors.Is(err, tokens.ErrUnknownSample) {
			respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid name"})
			return
		}
		logger.Error("issue preview token", "name", name, "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to sign preview url"})
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{
		"url":       "/preview/" + name + "?token=" + url.QueryEscape(token),
		"expiresAt": expiresAt.UnixMilli(),
	})
}

// List handles GET /api/preview-list.
func (h PreviewHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	respondJSON(r.Context(), w, http.StatusOK, map[string]any{
		"samples": catalog.Samples,
	})
}

// Stream handles GET /preview/{name}?token=<token>. Rejections are uniform:
// the client never learns whether the signature, the expiry or the name
// mismatch sank the token.
func (h PreviewHandler) Stream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	name := r.PathValue("name")

	claims, err := h.Tokens.Verify(r.URL.Query().Get("token"))
	if err != nil || claims.Name != name {
		if err != nil {
			logger.Warn("preview token rejected", "error", err)
		} else {
			logger.Warn("preview token resource mismatch", "requested", name)
		}
		respondText(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	// Same-origin check: a missing referrer passes (direct audio element
	// loads often send none), a foreign one does not.
	if referer := r.Header.Get("Referer"); referer != "" && !strings.HasPrefix(referer, h.Domain) {
		logger.Warn("preview referer rejected", "referer", referer)
		respondText(w, http.StatusForbidden, "Forbidden")
		return
	}

	asset, err := h.Samples.Resolve(ctx, claims.Name)
	if err != nil {
		if errors.Is(err, storage.ErrAbsent) {
			respondText(w, http.StatusNotFound, "Not Found")
			return
		}
		logger.Error("resolve preview asset", "name", claims.Name, "error", err)
		respondText(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	w.Header().Set("Referrer-Policy", "no-referrer")
	w.Header().Set("Cross-Origin-Resource-Policy", "same-origin")
	delivery.Serve(ctx, w, asset, "audio/mpeg", delivery.Inline, "preview.mp3")
}
