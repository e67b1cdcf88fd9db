package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kybernus/license-api/pkg/client"
)

func (a *app) newLoginCmd() *cobra.Command {
	var withKey bool

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in through your browser, or paste a license key with --key",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			if withKey {
				return a.loginWithKey(ctx, cmd)
			}
			return a.loginWithDevice(ctx, cmd)
		},
	}

	cmd.Flags().BoolVar(&withKey, "key", false, "enter an existing license key instead of using the browser")
	return cmd
}

func (a *app) loginWithDevice(ctx context.Context, cmd *cobra.Command) error {
	out := cmd.OutOrStdout()
	device := a.client.Device()

	code, err := device.RequestCode(ctx)
	if err != nil {
		return fmt.Errorf("failed to start sign in: %w", err)
	}

	fmt.Fprintf(out, "Open %s in your browser and enter the code:\n\n    %s\n\n", code.VerificationURL, code.UserCode)
	fmt.Fprintln(out, "Waiting for authorization...")

	poll, err := device.WaitForAuthorization(ctx, code)
	if err != nil {
		if client.ErrorCode(err) == client.CodeExpiredToken {
			return fmt.Errorf("the code expired before it was used. Run 'kybernus login' again")
		}
		return fmt.Errorf("sign in failed: %w", err)
	}

	a.cfg.Set(keyLicenseKey, poll.LicenseKey)
	a.cfg.Set(keyEmail, poll.Email)
	a.cfg.Set(keyTier, poll.Tier)
	if err := a.writeConfig(); err != nil {
		return fmt.Errorf("failed to save credentials: %w", err)
	}

	fmt.Fprintf(out, "Signed in as %s (%s)\n", poll.Email, poll.Tier)
	return nil
}

func (a *app) loginWithKey(ctx context.Context, cmd *cobra.Command) error {
	key, err := a.readSecret("License key: ")
	if err != nil {
		return fmt.Errorf("failed to read license key: %w", err)
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("no license key entered")
	}

	v, err := a.client.Licenses().Validate(ctx, key)
	if err != nil {
		return fmt.Errorf("license rejected: %w", err)
	}
	if !v.Valid {
		return &exitError{ExitUnauthorized, fmt.Errorf("license rejected: %s", v.Message)}
	}

	a.cfg.Set(keyLicenseKey, key)
	a.cfg.Set(keyEmail, v.Email)
	a.cfg.Set(keyTier, v.Tier)
	if err := a.writeConfig(); err != nil {
		return fmt.Errorf("failed to save credentials: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "License stored. %s\n", v.Message)
	return nil
}

func (a *app) newRegisterCmd() *cobra.Command {
	var email string
	var withPassword bool

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Start a free trial",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if email == "" {
				fmt.Fprint(out, "Email: ")
				line, err := readLine(a.stdin)
				if err != nil {
					return err
				}
				email = line
			}

			req := client.RegisterRequest{Email: email}
			if withPassword {
				password, err := a.readSecret("Password: ")
				if err != nil {
					return err
				}
				confirm, err := a.readSecret("Confirm password: ")
				if err != nil {
					return err
				}
				if password != confirm {
					return fmt.Errorf("passwords do not match")
				}
				req.Password = password
			}

			resp, err := a.client.Auth().Register(cmd.Context(), req)
			if err != nil {
				if client.ErrorCode(err) == client.CodeConflict {
					return fmt.Errorf("%s is already registered. Run 'kybernus login' instead", email)
				}
				return fmt.Errorf("registration failed: %w", err)
			}

			a.cfg.Set(keyLicenseKey, resp.LicenseKey)
			a.cfg.Set(keyEmail, email)
			a.cfg.Set(keyTier, resp.Tier)
			a.cfg.Set(keyToken, resp.Token)
			if err := a.writeConfig(); err != nil {
				return fmt.Errorf("failed to save credentials: %w", err)
			}

			fmt.Fprintf(out, "Trial started for %s: %d projects included.\n", email, resp.Limit)
			fmt.Fprintf(out, "License key: %s\n", resp.LicenseKey)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().BoolVar(&withPassword, "password", false, "set a password for the web dashboard")
	return cmd
}

func (a *app) newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored license key",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, k := range []string{keyLicenseKey, keyEmail, keyTier, keyToken} {
				a.cfg.Set(k, "")
			}
			if err := a.writeConfig(); err != nil {
				return fmt.Errorf("failed to clear credentials: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out successfully")
			return nil
		},
	}
}

func (a *app) newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed in license",
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := a.licenseKey(nil)
			if err != nil {
				return err
			}

			v, err := a.client.Licenses().Validate(cmd.Context(), key)
			if err != nil {
				return fmt.Errorf("failed to check license: %w", err)
			}

			if a.format() != "table" {
				return a.printOutput(cmd.OutOrStdout(), v)
			}

			email := v.Email
			if email == "" {
				email = a.cfg.GetString(keyEmail)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Email:   %s\n", email)
			fmt.Fprintf(out, "License: %s\n", maskKey(key))
			fmt.Fprintf(out, "Plan:    %s\n", v.Tier)
			fmt.Fprintf(out, "Status:  %s\n", formatStatus(v.Status, v.Valid))
			fmt.Fprintf(out, "Usage:   %s\n", formatUsage(v.Usage, v.Limit))
			return nil
		},
	}
}

func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
