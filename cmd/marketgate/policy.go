package main

import (
	"crypto/rand"
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/cobra"
	"github.com/target/marketgate/config"
	"github.com/target/marketgate/internal/bootstrap"
	domainauth "github.com/target/marketgate/internal/domain/auth"
	"github.com/target/marketgate/internal/gate"
	"github.com/target/marketgate/internal/token"
)

func policyCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Inspect the gate policy",
	}
	cmd.PersistentFlags().StringVar(&file, "file", "", "policy file (default GATE_POLICY_FILE, else the built-in rules)")
	cmd.AddCommand(policyCheckCmd(&file), policyPrintCmd(&file))
	return cmd
}

func loadPolicy(file string) (*gate.Policy, error) {
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		return nil, err
	}
	gc := cfg.Gate
	if file != "" {
		gc = config.GateConfig{PolicyFile: file}
	}
	return bootstrap.LoadPolicy(gc)
}

// checkResult is the printed form of a gate decision.
type checkResult struct {
	Path     string `json:"path"`
	Outcome  string `json:"outcome"`
	Location string `json:"location,omitempty"`
	Rule     string `json:"rule,omitempty"`
	Role     string `json:"role,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

func policyCheckCmd(file *string) *cobra.Command {
	var role, raw string

	cmd := &cobra.Command{
		Use:   "check <path>",
		Short: "Show what the gate decides for a path",
		Example: `  marketgate policy check /admin/users --role CUSTOMER
  marketgate policy check '/checkout?step=2'
  marketgate policy check /seller/orders --token "$TOKEN"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadPolicy(*file)
			if err != nil {
				return err
			}

			u, err := url.Parse(args[0])
			if err != nil {
				return fmt.Errorf("parse path: %w", err)
			}
			in := gate.Input{Path: u.Path, RawQuery: u.RawQuery}
			switch {
			case raw != "":
				in.Token, in.HasToken = raw, true
			case role != "":
				r, ok := domainauth.ParseRole(role)
				if !ok {
					return fmt.Errorf("unknown role %q (want one of %s)", role, roleNames())
				}
				if in.Token, err = throwawayToken(r); err != nil {
					return err
				}
				in.HasToken = true
			}

			d := gate.New(p).Evaluate(in)
			res := checkResult{Path: args[0], Outcome: string(d.Outcome), Location: d.Location}
			if d.Outcome != gate.OutcomePassthrough {
				res.Rule = d.Rule.Pattern
			}
			if d.Outcome == gate.OutcomeAllowed {
				res.Role = string(d.Payload.Role)
			}
			if d.Err != nil {
				res.Reason = d.Err.Error()
			}
			return writeJSON(cmd.OutOrStdout(), res)
		},
	}

	cmd.Flags().StringVar(&role, "role", "", "evaluate as a signed-in user with this role")
	cmd.Flags().StringVar(&raw, "token", "", "evaluate with this session token")
	cmd.MarkFlagsMutuallyExclusive("role", "token")
	return cmd
}

// throwawayToken mints a token under a random key. The gate never checks
// signatures, so the key does not matter.
func throwawayToken(r domainauth.Role) (string, error) {
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return "", err
	}
	s, err := token.NewSigner(token.SignerOptions{Secret: secret, Issuer: "marketgate-cli"})
	if err != nil {
		return "", err
	}
	raw, _, err := s.Mint(token.MintInput{Subject: "cli", Role: r}, time.Minute)
	return raw, err
}

func policyPrintCmd(file *string) *cobra.Command {
	return &cobra.Command{
		Use:   "print",
		Short: "Print the effective policy as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := loadPolicy(*file)
			if err != nil {
				return err
			}
			b, err := gate.MarshalPolicy(p)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(b)
			return err
		},
	}
}
