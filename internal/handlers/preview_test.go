package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/soundpack/backend/internal/storage"
	"github.com/soundpack/backend/internal/tokens"
)

type resolverStub struct {
	asset *storage.Asset
	err   error
	calls int
}

func (r *resolverStub) Resolve(ctx context.Context, key string) (*storage.Asset, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	return r.asset, nil
}

type limiterStub struct{ allow bool }

func (l limiterStub) Allow(key string) bool { return l.allow }

func newPreviewIssuer(t *testing.T) *tokens.PreviewIssuer {
	t.Helper()
	issuer, err := tokens.NewPreviewIssuer("preview-secret", []string{"labubu1.mp3", "windows.mp3"})
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	return issuer
}

func TestSignURLSuccess(t *testing.T) {
	issuer := newPreviewIssuer(t)
	handler := PreviewHandler{Tokens: issuer, TTL: time.Minute}

	req := httptest.NewRequest(http.MethodGet, "/api/preview-url?name=labubu1.mp3", nil)
	rec := httptest.NewRecorder()

	handler.SignURL(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var body struct {
		URL       string `json:"url"`
		ExpiresAt int64  `json:"expiresAt"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.URL == "" || body.ExpiresAt == 0 {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestSignURLRejectsUnknownName(t *testing.T) {
	handler := PreviewHandler{Tokens: newPreviewIssuer(t), TTL: time.Minute}

	req := httptest.NewRequest(http.MethodGet, "/api/preview-url?name=secrets.mp3", nil)
	rec := httptest.NewRecorder()

	handler.SignURL(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestSignURLRateLimited(t *testing.T) {
	handler := PreviewHandler{Tokens: newPreviewIssuer(t), TTL: time.Minute, Limiter: limiterStub{allow: false}}

	req := httptest.NewRequest(http.MethodGet, "/api/preview-url?name=labubu1.mp3", nil)
	rec := httptest.NewRecorder()

	handler.SignURL(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
}

func streamRequest(t *testing.T, handler PreviewHandler, name, token, referer string) *httptest.ResponseRecorder {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/preview/{name}", handler.Stream)

	req := httptest.NewRequest(http.MethodGet, "/preview/"+name+"?token="+token, nil)
	if referer != "" {
		req.Header.Set("Referer", referer)
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestStreamServesAuthorizedRequest(t *testing.T) {
	issuer := newPreviewIssuer(t)
	samples := &resolverStub{asset: &storage.Asset{Origin: storage.OriginRemote, Bytes: []byte("mp3"), Size: 3}}
	handler := PreviewHandler{Tokens: issuer, Samples: samples, Domain: "https://shop.example.com"}

	token, _, err := issuer.Issue("labubu1.mp3", time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	rec := streamRequest(t, handler, "labubu1.mp3", token, "https://shop.example.com/sounds")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Type"); got != "audio/mpeg" {
		t.Fatalf("Content-Type = %q", got)
	}
	if got := rec.Header().Get("Cache-Control"); got != "no-store, max-age=0" {
		t.Fatalf("Cache-Control = %q", got)
	}
	if rec.Body.String() != "mp3" {
		t.Fatalf("body = %q", rec.Body.String())
	}
}

func TestStreamRejectsInvalidToken(t *testing.T) {
	samples := &resolverStub{}
	handler := PreviewHandler{Tokens: newPreviewIssuer(t), Samples: samples, Domain: "https://shop.example.com"}

	rec := streamRequest(t, handler, "labubu1.mp3", "garbage", "")

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if samples.calls != 0 {
		t.Fatal("storage consulted despite rejected token")
	}
}

func TestStreamRejectsResourceMismatch(t *testing.T) {
	issuer := newPreviewIssuer(t)
	samples := &resolverStub{}
	handler := PreviewHandler{Tokens: issuer, Samples: samples, Domain: "https://shop.example.com"}

	token, _, err := issuer.Issue("windows.mp3", time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	rec := streamRequest(t, handler, "labubu1.mp3", token, "")

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if samples.calls != 0 {
		t.Fatal("storage consulted despite resource mismatch")
	}
}

func TestStreamRejectsForeignReferer(t *testing.T) {
	issuer := newPreviewIssuer(t)
	handler := PreviewHandler{Tokens: issuer, Samples: &resolverStub{}, Domain: "https://shop.example.com"}

	token, _, err := issuer.Issue("labubu1.mp3", time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	rec := streamRequest(t, handler, "labubu1.mp3", token, "https://evil.example.org/")

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestStreamMissingAsset(t *testing.T) {
	issuer := newPreviewIssuer(t)
	samples := &resolverStub{err: storage.ErrAbsent}
	handler := PreviewHandler{Tokens: issuer, Samples: samples, Domain: "https://shop.example.com"}

	token, _, err := issuer.Issue("labubu1.mp3", time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	rec := streamRequest(t, handler, "labubu1.mp3", token, "")

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestPreviewList(t *testing.T) {
	handler := PreviewHandler{}

	req := httptest.NewRequest(http.MethodGet, "/api/preview-list", nil)
	rec := httptest.NewRecorder()

	handler.List(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var body struct {
		Samples []struct {
			Filename string `json:"filename"`
		} `json:"samples"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Samples) == 0 {
		t.Fatal("expected sample catalog entries")
	}
}
