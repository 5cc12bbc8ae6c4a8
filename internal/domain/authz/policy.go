package authz

// GeneratePolicy builds a decision for principal. The policy document is only
// attached for EffectAllow; any other effect yields a document-less decision,
// which gateways treat as a denial.
func GeneratePolicy(principal *string, effect Effect) *Decision {
	decision := &Decision{PrincipalID: principal}
	if effect != EffectAllow {
		return decision
	}

	decision.PolicyDocument = &PolicyDocument{
		Version: PolicyVersion,
		Statement: []Statement{
			{
				Action:   InvokeAction,
				Effect:   effect,
				Resource: AnyResource,
			},
		},
	}
	return decision
}

// NewAllowDecision grants access to the subject of claims and exposes the
// subject and issuer to the upstream integration through the decision context.
func NewAllowDecision(claims *Claims) *Decision {
	subject := claims.Subject
	decision := GeneratePolicy(&subject, EffectAllow)

	decision.Context = map[string]any{"sub": claims.Subject}
	if claims.Issuer != "" {
		decision.Context["iss"] = claims.Issuer
	}
	return decision
}

func NewDenyDecision() *Decision {
	return GeneratePolicy(nil, EffectDeny)
}
