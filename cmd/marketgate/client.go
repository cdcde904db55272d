package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/target/marketgate/internal/adapters/oauthclient"
	"github.com/target/marketgate/internal/bootstrap"
)

func clientCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "client",
		Short: "Exercise the client auth context against a running edge",
	}
	cmd.AddCommand(clientWhoamiCmd())
	return cmd
}

func clientWhoamiCmd() *cobra.Command {
	var (
		email, password string
		google, sync    bool
		timeout         time.Duration
	)

	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Sign in through the identity provider and print the resolved user",
		Long: `Sign in through the configured identity provider (AUTH_MODE oauth or mock),
resolve the application user from CLIENT_PROFILE_BASE_URL and print it.
With --sync the provider credential is also exchanged for a session cookie.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !google && email == "" {
				return errors.New("--email or --google is required")
			}
			cfg, logger, err := loadRuntime()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			ac, hc, err := bootstrap.BuildAuthClient(ctx, bootstrap.ClientConfig{
				Auth:        cfg.Auth,
				Client:      cfg.Client,
				IsDev:       cfg.IsDev,
				CodeFetcher: promptCodeFetcher(cmd.InOrStdin(), cmd.ErrOrStderr()),
				Logger:      logger,
			})
			if err != nil {
				return err
			}
			ac.Start(ctx)
			defer ac.Close()

			select {
			case <-ac.Ready():
			case <-ctx.Done():
				return ctx.Err()
			}

			if google {
				err = ac.LoginWithGoogle(ctx)
			} else {
				err = ac.Login(ctx, email, password)
			}
			if err != nil {
				return err
			}
			defer func() {
				if logoutErr := ac.Logout(context.WithoutCancel(ctx)); logoutErr != nil {
					logger.Warn("sign-out failed", "error", logoutErr)
				}
			}()

			user := ac.User()
			if user == nil {
				return errors.New("signed in, but the application user could not be resolved")
			}

			if sync {
				if err := ac.SyncSession(ctx); err != nil {
					return err
				}
				logger.InfoContext(ctx, "session synced", "cookies", len(hc.Jar.Cookies(profileURL(cfg.Client.ProfileBaseURL))))
			}
			return writeJSON(cmd.OutOrStdout(), user)
		},
	}

	f := cmd.Flags()
	f.StringVar(&email, "email", "", "sign in with this email")
	f.StringVar(&password, "password", "", "password for --email")
	f.BoolVar(&google, "google", false, "sign in through the provider's browser flow")
	f.BoolVar(&sync, "sync", false, "exchange the provider credential for a session cookie")
	f.DurationVar(&timeout, "timeout", 2*time.Minute, "overall timeout")
	cmd.MarkFlagsMutuallyExclusive("email", "google")
	return cmd
}

// promptCodeFetcher asks the operator to open authURL and paste back the code.
func promptCodeFetcher(in io.Reader, out io.Writer) oauthclient.CodeFetcher {
	return oauthclient.CodeFetcherFunc(func(ctx context.Context, authURL, _ string) (string, error) {
		fmt.Fprintf(out, "Open this URL to sign in:\n\n  %s\n\nPaste the code: ", authURL)
		lines := make(chan string, 1)
		errs := make(chan error, 1)
		go func() {
			line, err := bufio.NewReader(in).ReadString('\n')
			if err != nil && line == "" {
				errs <- err
				return
			}
			lines <- strings.TrimSpace(line)
		}()
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case err := <-errs:
			return "", fmt.Errorf("read code: %w", err)
		case code := <-lines:
			if code == "" {
				return "", errors.New("no code entered")
			}
			return code, nil
		}
	})
}

func profileURL(base string) *url.URL {
	u, err := url.Parse(base)
	if err != nil {
		return &url.URL{}
	}
	return u
}
