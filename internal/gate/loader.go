package gate

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// policyFile is the on-disk policy shape:
//
//	login_path: /login
//	denied_path: /
//	rules:
//	  - pattern: /admin
//	    area: admin
//	  - pattern: /cart
//	    auth_only: true
type policyFile struct {
	LoginPath  string `yaml:"login_path"`
	DeniedPath string `yaml:"denied_path"`
	Rules      []Rule `yaml:"rules"`
}

// ParsePolicy reads a YAML policy. Unknown keys are rejected.
func ParsePolicy(r io.Reader) (*Policy, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f policyFile
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("policy document is empty")
		}
		return nil, fmt.Errorf("decode policy: %w", err)
	}
	if len(f.Rules) == 0 {
		return nil, errors.New("policy has no rules")
	}
	return NewPolicy(f.Rules, f.LoginPath, f.DeniedPath)
}

// LoadPolicyFile reads and validates the policy at path.
func LoadPolicyFile(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy %s: %w", path, err)
	}
	p, err := ParsePolicy(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("policy %s: %w", path, err)
	}
	return p, nil
}

// MarshalPolicy renders p in the file format read by ParsePolicy.
func MarshalPolicy(p *Policy) ([]byte, error) {
	return yaml.Marshal(policyFile{LoginPath: p.LoginPath, DeniedPath: p.DeniedPath, Rules: p.Rules()})
}
