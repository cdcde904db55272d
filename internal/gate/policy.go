package gate

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	domainauth "github.com/target/marketgate/internal/domain/auth"
)

const (
	DefaultLoginPath  = "/login"
	DefaultDeniedPath = "/"
)

// Rule protects the paths matched by Pattern.
// Pattern is either a path prefix ("/admin") or a doublestar glob ("/seller/**/reports").
// AuthOnly rules require a readable token and skip the role check.
type Rule struct {
	Pattern  string          `yaml:"pattern"`
	Area     domainauth.Area `yaml:"area,omitempty"`
	AuthOnly bool            `yaml:"auth_only,omitempty"`
}

// Policy is the set of protected paths and the gate's redirect targets.
// A Policy is immutable once built by NewPolicy.
type Policy struct {
	LoginPath  string
	DeniedPath string
	rules      []compiledRule
}

type compiledRule struct {
	Rule
	glob bool
}

// DefaultRules returns the marketplace's standard protected prefixes.
func DefaultRules() []Rule {
	return []Rule{
		{Pattern: "/admin", Area: domainauth.AreaAdmin},
		{Pattern: "/seller", Area: domainauth.AreaSeller},
		{Pattern: "/business", Area: domainauth.AreaSeller},
		{Pattern: "/influencer", Area: domainauth.AreaInfluencer},
		{Pattern: "/cart", AuthOnly: true},
		{Pattern: "/checkout", AuthOnly: true},
		{Pattern: "/account", AuthOnly: true},
	}
}

// DefaultPolicy returns a Policy built from DefaultRules.
func DefaultPolicy() *Policy {
	p, err := NewPolicy(DefaultRules(), DefaultLoginPath, DefaultDeniedPath)
	if err != nil {
		panic(fmt.Sprintf("default gate policy is invalid: %v", err))
	}
	return p
}

// NewPolicy validates rules and redirect targets.
// Empty loginPath or deniedPath fall back to the defaults.
func NewPolicy(rules []Rule, loginPath, deniedPath string) (*Policy, error) {
	if loginPath == "" {
		loginPath = DefaultLoginPath
	}
	if deniedPath == "" {
		deniedPath = DefaultDeniedPath
	}
	if !strings.HasPrefix(loginPath, "/") || strings.HasPrefix(loginPath, "//") {
		return nil, fmt.Errorf("login path %q must be a local absolute path", loginPath)
	}
	if !strings.HasPrefix(deniedPath, "/") || strings.HasPrefix(deniedPath, "//") {
		return nil, fmt.Errorf("denied path %q must be a local absolute path", deniedPath)
	}

	p := &Policy{LoginPath: loginPath, DeniedPath: deniedPath}
	var errs []error
	for i, r := range rules {
		cr, err := compileRule(r)
		if err != nil {
			errs = append(errs, fmt.Errorf("rule %d: %w", i, err))
			continue
		}
		p.rules = append(p.rules, cr)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	// The login page itself must stay reachable.
	if r, ok := p.Match(loginPath); ok {
		return nil, fmt.Errorf("login path %q is protected by rule %q", loginPath, r.Pattern)
	}
	return p, nil
}

func compileRule(r Rule) (compiledRule, error) {
	r.Pattern = strings.TrimSpace(r.Pattern)
	if !strings.HasPrefix(r.Pattern, "/") {
		return compiledRule{}, fmt.Errorf("pattern %q must start with /", r.Pattern)
	}
	if r.AuthOnly {
		if r.Area != "" {
			return compiledRule{}, fmt.Errorf("pattern %q: auth_only rules take no area", r.Pattern)
		}
	} else {
		area, ok := domainauth.ParseArea(string(r.Area))
		if !ok {
			return compiledRule{}, fmt.Errorf("pattern %q: unknown area %q", r.Pattern, r.Area)
		}
		r.Area = area
	}

	glob := strings.ContainsAny(r.Pattern, "*?[{")
	if glob {
		if !doublestar.ValidatePattern(r.Pattern) {
			return compiledRule{}, fmt.Errorf("pattern %q is not a valid glob", r.Pattern)
		}
	} else if r.Pattern != "/" {
		r.Pattern = strings.TrimSuffix(path.Clean(r.Pattern), "/")
	}
	return compiledRule{Rule: r, glob: glob}, nil
}

// Rules returns a copy of the policy's rules.
func (p *Policy) Rules() []Rule {
	out := make([]Rule, len(p.rules))
	for i, r := range p.rules {
		out[i] = r.Rule
	}
	return out
}

// Match returns the most specific rule covering urlPath.
// Prefix rules match on segment boundaries, so "/admin" covers "/admin/x" but not "/administrator".
// The longest matching pattern wins; ties go to the earlier rule.
func (p *Policy) Match(urlPath string) (Rule, bool) {
	clean := cleanPath(urlPath)
	var (
		best  Rule
		score = -1
	)
	for _, r := range p.rules {
		if !r.matches(clean) {
			continue
		}
		if s := len(r.Pattern); s > score {
			best, score = r.Rule, s
		}
	}
	return best, score >= 0
}

func (r compiledRule) matches(clean string) bool {
	if r.glob {
		ok, err := doublestar.Match(r.Pattern, clean)
		return err == nil && ok
	}
	if r.Pattern == "/" {
		return true
	}
	return clean == r.Pattern || strings.HasPrefix(clean, r.Pattern+"/")
}

func cleanPath(p string) string {
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}
