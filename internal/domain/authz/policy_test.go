package authz_test

import (
	"encoding/json"
	"testing"

	"github.com/astro-web3/gateway-jwt-authorizer/internal/domain/authz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encode(t *testing.T, d *authz.Decision) map[string]any {
	t.Helper()
	raw, err := json.Marshal(d)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func TestDenyDecision_OmitsPolicyDocument(t *testing.T) {
	out := encode(t, authz.NewDenyDecision())

	assert.Contains(t, out, "principalId")
	assert.Nil(t, out["principalId"])
	assert.NotContains(t, out, "policyDocument")
	assert.NotContains(t, out, "context")
}

func TestAllowDecision_SingleInvokeStatement(t *testing.T) {
	d := authz.NewAllowDecision(&authz.Claims{Subject: "user-123", Issuer: "https://issuer.example"})
	out := encode(t, d)

	assert.Equal(t, "user-123", out["principalId"])

	doc, ok := out["policyDocument"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "2012-10-17", doc["Version"])

	statements, ok := doc["Statement"].([]any)
	require.True(t, ok)
	require.Len(t, statements, 1)
	assert.Equal(t, map[string]any{
		"Action":   "execute-api:Invoke",
		"Effect":   "Allow",
		"Resource": "*",
	}, statements[0])

	assert.Equal(t, map[string]any{"sub": "user-123", "iss": "https://issuer.example"}, out["context"])
}

func TestGeneratePolicy(t *testing.T) {
	principal := "svc"

	tests := []struct {
		name      string
		effect    authz.Effect
		principal *string
		wantDoc   bool
		want      authz.Effect
	}{
		{name: "allow attaches document", effect: authz.EffectAllow, principal: &principal, wantDoc: true, want: authz.EffectAllow},
		{name: "deny omits document", effect: authz.EffectDeny, want: authz.EffectDeny},
		{name: "empty effect omits document", effect: "", principal: &principal, want: authz.EffectDeny},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			d := authz.GeneratePolicy(tc.principal, tc.effect)
			assert.Equal(t, tc.principal, d.PrincipalID)
			assert.Equal(t, tc.wantDoc, d.PolicyDocument != nil)
			assert.Equal(t, tc.want, d.Effect())
		})
	}
}

func TestDecision_NilSafe(t *testing.T) {
	var d *authz.Decision
	assert.Equal(t, authz.EffectDeny, d.Effect())
	assert.False(t, d.Allowed())
	assert.Empty(t, d.Principal())
}
