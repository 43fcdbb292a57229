package handlers

import (
	"net/http"
	"time"
)

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	PreviewTokens  PreviewTokenService
	Samples        AssetResolver
	Pack           AssetResolver
	Links          LinkProvider
	Subscriptions  SubscriptionStore
	Audit          AuditLogStore
	Mail           MailSender
	Tasks          TaskQueue
	PreviewLimiter RateLimiter

	Domain         string
	PreviewTTL     time.Duration
	DownloadSecret string
	PackKey        string
	CheckoutURL    string
	LocalPackPath  string
	SupportEmail   string
}

// RegisterRoutes wires HTTP handlers into the provided ServeMux.
func RegisterRoutes(mux *http.ServeMux, deps Dependencies) {
	health := HealthHandler{}
	preview := PreviewHandler{
		Tokens:  deps.PreviewTokens,
		Samples: deps.Samples,
		Domain:  deps.Domain,
		TTL:     deps.PreviewTTL,
		Limiter: deps.PreviewLimiter,
	}
	download := DownloadHandler{
		Secret:        deps.DownloadSecret,
		Pack:          deps.Pack,
		PackKey:       deps.PackKey,
		Subscriptions: deps.Subscriptions,
		Audit:         deps.Audit,
		Tasks:         deps.Tasks,
	}
	checkout := CheckoutHandler{
		Subscriptions: deps.Subscriptions,
		Audit:         deps.Audit,
		Mail:          deps.Mail,
		Links:         deps.Links,
		Tasks:         deps.Tasks,
		CheckoutURL:   deps.CheckoutURL,
		LocalPackPath: deps.LocalPackPath,
		SupportEmail:  deps.SupportEmail,
	}

	mux.HandleFunc("/healthz", health.Handle)
	mux.HandleFunc("/api/preview-url", preview.SignURL)
	mux.HandleFunc("/api/preview-list", preview.List)
	mux.HandleFunc("/preview/{name}", preview.Stream)
	mux.HandleFunc("/download/{token}", download.Serve)
	mux.HandleFunc("/subscribe", checkout.Subscribe)
	mux.HandleFunc("/success", checkout.Success)
	mux.HandleFunc("/unsubscribe", checkout.Unsubscribe)
}
