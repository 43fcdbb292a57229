package tokens

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrUnknownSample indicates the requested sample is not in the catalog.
	ErrUnknownSample = errors.New("unknown sample")
	// ErrTokenInvalid covers every preview token rejection. Callers must not
	// distinguish a bad signature from an expired or malformed token in any
	// client-visible way; the specific reason is only ever logged.
	ErrTokenInvalid = errors.New("token invalid")
)

// PreviewClaims are the fields recovered from a valid preview token.
type PreviewClaims struct {
	Name      string
	ExpiresAt time.Time
}

// PreviewIssuer mints and verifies short-lived tokens that gate sample
// streaming. Tokens are stateless bearer capabilities: name, expiry and an
// HMAC-SHA256 signature packed into a single base64url string, so
// verification needs no store lookup.
type PreviewIssuer struct {
	secret  []byte
	allowed map[string]struct{}
	now     func() time.Time
}

// NewPreviewIssuer constructs an issuer for the given signing secret and
// sample allow-list. Names on the allow-list must never contain the "."
// separator; the catalog is the guarantee that issued tokens are unambiguous.
func NewPreviewIssuer(secret string, allowed []string) (*PreviewIssuer, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("preview issuer: secret must not be empty")
	}

	names := make(map[string]struct{}, len(allowed))
	for _, name := range allowed {
		names[name] = struct{}{}
	}

	return &PreviewIssuer{
		secret:  []byte(secret),
		allowed: names,
		now:     time.Now,
	}, nil
}

// Issue signs a preview token for the named sample, valid for ttl.
func (p *PreviewIssuer) Issue(name string, ttl time.Duration) (string, time.Time, error) {
	if _, ok := p.allowed[name]; !ok {
		return "", time.Time{}, fmt.Errorf("%w: %q", ErrUnknownSample, name)
	}

	expiresAt := p.now().Add(ttl)
	payload := fmt.Sprintf("%s.%d", name, expiresAt.UnixMilli())
	sig := p.sign(payload)

	token := base64.RawURLEncoding.EncodeToString([]byte(payload + "." + sig))
	return token, expiresAt, nil
}

// Verify checks a preview token and returns its claims. The signature and
// expiry are popped from the tail of the decoded payload, so a sample name
// containing "." still round-trips; issuance is stricter and never produces
// such names.
func (p *PreviewIssuer) Verify(token string) (PreviewClaims, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return PreviewClaims{}, fmt.Errorf("%w: decode: %v", ErrTokenInvalid, err)
	}

	parts := strings.Split(string(raw), ".")
	if len(parts) < 3 {
		return PreviewClaims{}, fmt.Errorf("%w: malformed", ErrTokenInvalid)
	}

	sig := parts[len(parts)-1]
	expStr := parts[len(parts)-2]
	name := strings.Join(parts[:len(parts)-2], ".")
	if name == "" || expStr == "" || sig == "" {
		return PreviewClaims{}, fmt.Errorf("%w: malformed", ErrTokenInvalid)
	}

	expected := p.sign(name + "." + expStr)
	if !hmac.Equal([]byte(sig), []byte(expected)) {
		return PreviewClaims{}, fmt.Errorf("%w: bad signature", ErrTokenInvalid)
	}

	expMillis, err := strconv.ParseInt(expStr, 10, 64)
	if err != nil {
		return PreviewClaims{}, fmt.Errorf("%w: bad expiry", ErrTokenInvalid)
	}

	expiresAt := time.UnixMilli(expMillis)
	if p.now().After(expiresAt) {
		return PreviewClaims{}, fmt.Errorf("%w: expired", ErrTokenInvalid)
	}

	return PreviewClaims{Name: name, ExpiresAt: expiresAt}, nil
}

// Allowed reports whether the sample name is part of the catalog.
func (p *PreviewIssuer) Allowed(name string) bool {
	_, ok := p.allowed[name]
	return ok
}

func (p *PreviewIssuer) sign(payload string) string {
	mac := hmac.New(sha256.New, p.secret)
	mac.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
