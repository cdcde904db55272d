package httpx

import (
	"context"

	domainauth "github.com/target/marketgate/internal/domain/auth"
	"github.com/target/marketgate/internal/gate"
)

// decisionKey is an unexported context key type to avoid collisions across packages.
type decisionKey struct{}

// SetDecisionInContext returns a child context carrying the gate decision for the request.
func SetDecisionInContext(ctx context.Context, d gate.Decision) context.Context {
	return context.WithValue(ctx, decisionKey{}, d)
}

// DecisionFromContext returns the gate decision stored by the Gate middleware.
func DecisionFromContext(ctx context.Context) (gate.Decision, bool) {
	d, ok := ctx.Value(decisionKey{}).(gate.Decision)
	return d, ok
}

// PayloadFromContext returns the decoded session payload for requests the gate
// allowed into a protected area. The payload is unverified.
func PayloadFromContext(ctx context.Context) (domainauth.Payload, bool) {
	d, ok := DecisionFromContext(ctx)
	if !ok || d.Outcome != gate.OutcomeAllowed {
		return domainauth.Payload{}, false
	}
	return d.Payload, true
}
