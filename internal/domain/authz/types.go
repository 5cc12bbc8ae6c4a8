package authz

import (
	"strings"
	"time"
)

type Effect string

const (
	EffectAllow Effect = "Allow"
	EffectDeny  Effect = "Deny"
)

const (
	PolicyVersion = "2012-10-17"
	InvokeAction  = "execute-api:Invoke"
	AnyResource   = "*"

	AuthorizationHeader = "Authorization"
)

// Request is the trigger payload handed to the authorizer. Gateways send either
// AuthorizationToken (TOKEN authorizers) or a Headers map (REQUEST authorizers).
type Request struct {
	Type               string            `json:"type,omitempty"`
	MethodArn          string            `json:"methodArn,omitempty"`
	AuthorizationToken string            `json:"authorizationToken,omitempty"`
	Headers            map[string]string `json:"headers,omitempty"`
}

// Header returns the named header, matching the exact key first and then
// case-insensitively, since HTTP/2 gateways forward lowercased names.
func (r *Request) Header(name string) string {
	if r == nil || len(r.Headers) == 0 {
		return ""
	}
	if v, ok := r.Headers[name]; ok {
		return v
	}
	if v, ok := r.Headers[strings.ToLower(name)]; ok {
		return v
	}
	for k, v := range r.Headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

// Claims is the verified payload of a token.
type Claims struct {
	Subject   string         `json:"sub"`
	Issuer    string         `json:"iss,omitempty"`
	Audience  []string       `json:"aud,omitempty"`
	ExpiresAt time.Time      `json:"exp,omitempty"`
	IssuedAt  time.Time      `json:"iat,omitempty"`
	Raw       map[string]any `json:"raw,omitempty"`
}

type Statement struct {
	Action   string `json:"Action"`
	Effect   Effect `json:"Effect"`
	Resource string `json:"Resource"`
}

type PolicyDocument struct {
	Version   string      `json:"Version"`
	Statement []Statement `json:"Statement"`
}

// Decision is the gateway-facing authorizer response. PrincipalID is nil on
// Deny and PolicyDocument is omitted from the encoded form.
type Decision struct {
	PrincipalID    *string         `json:"principalId"`
	PolicyDocument *PolicyDocument `json:"policyDocument,omitempty"`
	Context        map[string]any  `json:"context,omitempty"`
}

// Effect reports the effect granted by the attached policy document.
// A decision without a document denies.
func (d *Decision) Effect() Effect {
	if d == nil || d.PolicyDocument == nil {
		return EffectDeny
	}
	for _, s := range d.PolicyDocument.Statement {
		if s.Effect != EffectAllow {
			return EffectDeny
		}
	}
	if len(d.PolicyDocument.Statement) == 0 {
		return EffectDeny
	}
	return EffectAllow
}

func (d *Decision) Allowed() bool {
	return d.Effect() == EffectAllow
}

// Principal returns the principal id, or "" when none is set.
func (d *Decision) Principal() string {
	if d == nil || d.PrincipalID == nil {
		return ""
	}
	return *d.PrincipalID
}
