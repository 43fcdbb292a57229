package tokens

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNoSecret indicates the download signing secret is missing. Minting must
// fail loudly rather than produce an unsigned token.
var ErrNoSecret = errors.New("download secret is required")

// DefaultDownloadTTL is used when the caller supplies a non-positive ttl.
const DefaultDownloadTTL = 24 * time.Hour

// IssueDownload mints a redeemable download token. The payload (typically a
// target filename and the purchaser's email) is merged with an expiry, JSON
// encoded, base64url wrapped and signed; the result is
// "<encodedPayload>.<encodedSignature>". Tokens stay valid for any number of
// redemptions until expiry.
func IssueDownload(payload map[string]any, secret string, ttl time.Duration) (string, error) {
	if strings.TrimSpace(secret) == "" {
		return "", ErrNoSecret
	}
	if ttl <= 0 {
		ttl = DefaultDownloadTTL
	}

	claims := make(map[string]any, len(payload)+1)
	for k, v := range payload {
		claims[k] = v
	}
	claims["exp"] = time.Now().Add(ttl).UnixMilli()

	raw, err := json.Marshal(claims)
	if err != nil {
		return "", fmt.Errorf("encode download claims: %w", err)
	}

	encoded := base64.RawURLEncoding.EncodeToString(raw)
	return encoded + "." + signDownload(encoded, secret), nil
}

// VerifyDownload validates a download token against the shared secret and
// returns its payload. Every failure mode collapses into ErrTokenInvalid so
// callers cannot leak which check rejected the token.
func VerifyDownload(token, secret string) (map[string]any, error) {
	if token == "" || secret == "" {
		return nil, fmt.Errorf("%w: missing input", ErrTokenInvalid)
	}

	parts := strings.Split(token, ".")
	if len(parts) != 2 {
		return nil, fmt.Errorf("%w: malformed", ErrTokenInvalid)
	}

	encoded, sig := parts[0], parts[1]
	if !hmac.Equal([]byte(sig), []byte(signDownload(encoded, secret))) {
		return nil, fmt.Errorf("%w: bad signature", ErrTokenInvalid)
	}

	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrTokenInvalid, err)
	}

	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrTokenInvalid, err)
	}

	exp, ok := payload["exp"].(float64)
	if !ok {
		return nil, fmt.Errorf("%w: missing expiry", ErrTokenInvalid)
	}
	if time.Now().After(time.UnixMilli(int64(exp))) {
		return nil, fmt.Errorf("%w: expired", ErrTokenInvalid)
	}

	return payload, nil
}

func signDownload(encoded, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(encoded))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
