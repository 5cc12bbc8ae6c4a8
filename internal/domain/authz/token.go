package authz

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

const (
	bearerPrefix      = "Bearer "
	fingerprintLength = 12
)

var (
	ErrMissingToken = errors.New("no bearer token in request")
	ErrEmptySubject = errors.New("verified token has no subject")
)

// ExtractToken returns the normalized credential carried by req, preferring
// AuthorizationToken over the Authorization header.
func ExtractToken(req *Request) (string, error) {
	if req == nil {
		return "", ErrMissingToken
	}

	raw := req.AuthorizationToken
	if raw == "" {
		raw = req.Header(AuthorizationHeader)
	}

	token := NormalizeToken(raw)
	if strings.TrimSpace(token) == "" {
		return "", ErrMissingToken
	}
	return token, nil
}

// NormalizeToken strips a single, case-sensitive "Bearer " prefix.
func NormalizeToken(raw string) string {
	return strings.TrimPrefix(raw, bearerPrefix)
}

// Fingerprint identifies a token in logs and traces without revealing it.
func Fingerprint(token string) string {
	return hashToken(token)[:fingerprintLength]
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
