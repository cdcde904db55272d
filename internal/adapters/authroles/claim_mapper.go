// Package authroles maps identity provider claims to marketplace roles.
package authroles

import (
	"errors"
	"fmt"
	"strings"

	jmespath "github.com/jmespath-community/go-jmespath"
	domainauth "github.com/target/marketgate/internal/domain/auth"
	"github.com/target/marketgate/internal/ports"
)

var _ ports.RoleMapper = (*ClaimMapper)(nil)

// Rule grants Role when When evaluates truthy against the claims.
type Rule struct {
	When string
	Role domainauth.Role
}

// Config configures a ClaimMapper.
type Config struct {
	// RoleExpression, when set, is evaluated first; a string result naming a
	// known role is used directly.
	RoleExpression string
	Rules          []Rule
	// Default applies when nothing matches. Empty means CUSTOMER.
	Default domainauth.Role
}

// ClaimMapper evaluates JMESPath expressions over provider claims.
type ClaimMapper struct {
	roleExpr string
	rules    []Rule
	fallback domainauth.Role
}

// NewClaimMapper validates every expression up front.
func NewClaimMapper(cfg Config) (*ClaimMapper, error) {
	fallback := domainauth.RoleCustomer
	if cfg.Default != "" {
		r, ok := domainauth.ParseRole(string(cfg.Default))
		if !ok {
			return nil, fmt.Errorf("default role %q is not a known role", cfg.Default)
		}
		fallback = r
	}

	var errs []error
	if expr := strings.TrimSpace(cfg.RoleExpression); expr != "" {
		if _, err := jmespath.Compile(expr); err != nil {
			errs = append(errs, fmt.Errorf("role expression %q: %w", expr, err))
		}
	}
	rules := make([]Rule, 0, len(cfg.Rules))
	for i, r := range cfg.Rules {
		when := strings.TrimSpace(r.When)
		if when == "" {
			errs = append(errs, fmt.Errorf("rule %d: expression is required", i))
			continue
		}
		if _, err := jmespath.Compile(when); err != nil {
			errs = append(errs, fmt.Errorf("rule %d %q: %w", i, when, err))
			continue
		}
		role, ok := domainauth.ParseRole(string(r.Role))
		if !ok {
			errs = append(errs, fmt.Errorf("rule %d: unknown role %q", i, r.Role))
			continue
		}
		rules = append(rules, Rule{When: when, Role: role})
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	return &ClaimMapper{
		roleExpr: strings.TrimSpace(cfg.RoleExpression),
		rules:    rules,
		fallback: fallback,
	}, nil
}

// Map returns the first role the claims earn.
func (m *ClaimMapper) Map(claims map[string]any) domainauth.Role {
	data := map[string]any{}
	for k, v := range claims {
		data[k] = v
	}

	if m.roleExpr != "" {
		if v, err := jmespath.Search(m.roleExpr, data); err == nil {
			if s, ok := v.(string); ok {
				if r, ok := domainauth.ParseRole(s); ok {
					return r
				}
			}
		}
	}
	for _, r := range m.rules {
		v, err := jmespath.Search(r.When, data)
		if err == nil && truthy(v) {
			return r.Role
		}
	}
	return m.fallback
}

// truthy follows JMESPath's notion of a false value.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	default:
		return true
	}
}

// ParseRules reads rules in the form "expr=>ROLE;expr=>ROLE".
func ParseRules(s string) ([]Rule, error) {
	var out []Rule
	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		idx := strings.LastIndex(part, "=>")
		if idx <= 0 {
			return nil, fmt.Errorf("role rule %q must look like expr=>ROLE", part)
		}
		out = append(out, Rule{
			When: strings.TrimSpace(part[:idx]),
			Role: domainauth.Role(strings.TrimSpace(part[idx+2:])),
		})
	}
	return out, nil
}
