package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/target/marketgate/config"
	"github.com/target/marketgate/internal/bootstrap"
	"github.com/target/marketgate/internal/data"
	domainauth "github.com/target/marketgate/internal/domain/auth"
	"github.com/target/marketgate/internal/service"
)

func userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage password accounts",
	}
	cmd.AddCommand(userCreateCmd())
	return cmd
}

func userCreateCmd() *cobra.Command {
	var (
		in            service.RegisterInput
		role          string
		passwordStdin bool
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a password account",
		Example: `  marketgate user create --email owner@shop.test --role SELLER_OWNER --business-id biz-1 --password-stdin
  marketgate user create --email admin@shop.test --role ADMIN --password 'correct horse battery'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, ok := domainauth.ParseRole(role)
			if !ok {
				return fmt.Errorf("unknown role %q (want one of %s)", role, roleNames())
			}
			in.Role = r

			if passwordStdin {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read password from stdin: %w", err)
				}
				in.Password = strings.TrimRight(line, "\r\n")
			}
			if in.Password == "" {
				return errors.New("a password is required (--password or --password-stdin)")
			}

			cfg, logger, err := loadRuntime()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			db, err := bootstrap.ConnectDB(ctx, bootstrap.DatabaseConfig{DBConfig: cfg.Postgres, Logger: logger})
			if err != nil {
				return fmt.Errorf("connect db: %w", err)
			}
			defer func() {
				if closeErr := db.Close(); closeErr != nil {
					logger.Warn("db close failed", "error", closeErr)
				}
			}()

			// Registration never needs the provider verifier.
			auth := cfg.Auth
			auth.Mode = config.AuthModeBackend
			svc, err := bootstrap.BuildAuthService(ctx, bootstrap.AuthConfig{
				Auth:    auth,
				Session: cfg.Session,
				Users:   data.NewUserRepo(db),
				Logger:  logger,
			})
			if err != nil {
				return err
			}

			user, err := svc.Register(ctx, in)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(user.AppUser())
		},
	}

	f := cmd.Flags()
	f.StringVar(&in.Email, "email", "", "account email")
	f.StringVar(&in.Password, "password", "", "account password")
	f.BoolVar(&passwordStdin, "password-stdin", false, "read the password from stdin")
	f.StringVar(&role, "role", string(domainauth.RoleCustomer), "account role")
	f.StringVar(&in.BusinessID, "business-id", "", "business the account belongs to (seller roles)")
	f.StringVar(&in.FirstName, "first-name", "", "first name")
	f.StringVar(&in.LastName, "last-name", "", "last name")
	_ = cmd.MarkFlagRequired("email")
	cmd.MarkFlagsMutuallyExclusive("password", "password-stdin")
	return cmd
}

func roleNames() string {
	roles := domainauth.AllRoles()
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = string(r)
	}
	return strings.Join(names, ", ")
}
