// Package basic verifies "Basic" client credentials against a single
// configured client id and secret.
package basic

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"strings"

	"github.com/astro-web3/gateway-jwt-authorizer/internal/domain/authz"
)

const basicPrefix = "Basic "

var (
	ErrMalformedCredentials = errors.New("malformed basic credentials")
	ErrInvalidCredentials   = errors.New("invalid client credentials")
)

type Verifier struct {
	clientID     []byte
	clientSecret []byte
}

var _ authz.Verifier = (*Verifier)(nil)

func NewVerifier(clientID, clientSecret string) *Verifier {
	return &Verifier{
		clientID:     []byte(clientID),
		clientSecret: []byte(clientSecret),
	}
}

// Verify accepts "Basic base64(id:secret)" or the bare base64 value. Errors
// never include the decoded credentials.
func (v *Verifier) Verify(_ context.Context, token string) (*authz.Claims, error) {
	encoded := strings.TrimPrefix(token, basicPrefix)

	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return nil, ErrMalformedCredentials
	}

	id, secret, ok := strings.Cut(string(decoded), ":")
	if !ok {
		return nil, ErrMalformedCredentials
	}

	// Evaluate both comparisons so timing does not reveal which one failed.
	idOK := subtle.ConstantTimeCompare([]byte(id), v.clientID)
	secretOK := subtle.ConstantTimeCompare([]byte(secret), v.clientSecret)
	if idOK&secretOK != 1 || len(v.clientID) == 0 {
		return nil, ErrInvalidCredentials
	}

	return &authz.Claims{Subject: id}, nil
}
