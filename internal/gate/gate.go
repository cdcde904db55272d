// Package gate decides whether a request may reach a role-protected area.
//
// Evaluate is pure: it reads the path and the session token, decodes the token
// without verifying it, and never performs I/O. Upstream services must still
// verify the token before trusting it.
package gate

import (
	"fmt"
	"net/url"
	"strings"
	"sync/atomic"

	domainauth "github.com/target/marketgate/internal/domain/auth"
	"github.com/target/marketgate/internal/token"
)

// Outcome is the result of evaluating a request.
type Outcome string

const (
	OutcomeUnchecked      Outcome = "UNCHECKED"
	OutcomeAllowed        Outcome = "ALLOWED"
	OutcomeRedirectLogin  Outcome = "REDIRECT_LOGIN"
	OutcomeRedirectDenied Outcome = "REDIRECT_DENIED"
	OutcomePassthrough    Outcome = "PASSTHROUGH"
)

// Input is what the gate sees of a request.
type Input struct {
	Path     string
	RawQuery string
	Token    string
	HasToken bool
}

// Decision is the gate's verdict.
type Decision struct {
	Outcome Outcome
	// Location is set for redirect outcomes.
	Location string
	Rule     Rule
	// Payload is the decoded token for ALLOWED decisions.
	Payload domainauth.Payload
	// Err holds the decode or authorization failure behind a redirect.
	Err error
}

// Redirect reports whether the decision sends the client elsewhere.
func (d Decision) Redirect() bool {
	return d.Outcome == OutcomeRedirectLogin || d.Outcome == OutcomeRedirectDenied
}

// Gate evaluates requests against a swappable Policy.
type Gate struct {
	policy atomic.Pointer[Policy]
}

// New returns a Gate using p, or DefaultPolicy when p is nil.
func New(p *Policy) *Gate {
	g := &Gate{}
	g.SetPolicy(p)
	return g
}

// SetPolicy atomically replaces the active policy. In-flight evaluations finish
// against the policy they started with.
func (g *Gate) SetPolicy(p *Policy) {
	if p == nil {
		p = DefaultPolicy()
	}
	g.policy.Store(p)
}

// Policy returns the active policy.
func (g *Gate) Policy() *Policy { return g.policy.Load() }

// Evaluate decides in.
func (g *Gate) Evaluate(in Input) Decision {
	p := g.policy.Load()

	rule, ok := p.Match(in.Path)
	if !ok {
		return Decision{Outcome: OutcomePassthrough}
	}

	if !in.HasToken || strings.TrimSpace(in.Token) == "" {
		return Decision{Outcome: OutcomeRedirectLogin, Location: p.loginLocation(in), Rule: rule}
	}

	payload, err := token.Decode(in.Token)
	if err != nil {
		return Decision{Outcome: OutcomeRedirectLogin, Location: p.loginLocation(in), Rule: rule, Err: err}
	}

	// A role outside the closed set is treated like a missing one, even on auth-only rules.
	if !payload.Role.Valid() {
		return Decision{
			Outcome:  OutcomeRedirectLogin,
			Location: p.loginLocation(in),
			Rule:     rule,
			Err: &domainauth.TokenDecodeError{
				Reason: domainauth.DecodeReasonUnknownRole,
				Err:    fmt.Errorf("role %q", payload.Role),
			},
		}
	}

	if rule.AuthOnly {
		return Decision{Outcome: OutcomeAllowed, Rule: rule, Payload: payload}
	}

	if !domainauth.CanAccess(payload.Role, rule.Area) {
		return Decision{
			Outcome:  OutcomeRedirectDenied,
			Location: p.DeniedPath,
			Rule:     rule,
			Payload:  payload,
			Err:      &domainauth.UnauthorizedAccess{Role: payload.Role, Area: rule.Area},
		}
	}
	return Decision{Outcome: OutcomeAllowed, Rule: rule, Payload: payload}
}

// loginLocation builds "<login>?redirect=<path[?query]>". Slashes stay literal
// so the target remains readable in the address bar.
func (p *Policy) loginLocation(in Input) string {
	target := cleanPath(in.Path)
	if in.RawQuery != "" {
		target += "?" + in.RawQuery
	}
	escaped := strings.ReplaceAll(url.QueryEscape(target), "%2F", "/")
	return p.LoginPath + "?redirect=" + escaped
}
