package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kybernus/license-api/pkg/client"
)

func (a *app) newLicenseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "license",
		Short: "Inspect and use your license",
	}

	cmd.AddCommand(a.newLicenseValidateCmd())
	cmd.AddCommand(a.newLicenseConsumeCmd())
	return cmd
}

func (a *app) newLicenseValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [license-key]",
		Short: "Check a license key (default: the stored one)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := a.licenseKey(args)
			if err != nil {
				return err
			}

			v, err := a.client.Licenses().Validate(cmd.Context(), key)
			if err != nil {
				return fmt.Errorf("license rejected: %w", err)
			}

			if a.format() != "table" {
				return a.printOutput(cmd.OutOrStdout(), v)
			}

			t := NewTable(cmd.OutOrStdout(), "LICENSE", "PLAN", "STATUS", "USAGE", "MESSAGE")
			t.AddRow(maskKey(key), v.Tier, formatStatus(v.Status, v.Valid), formatUsage(v.Usage, v.Limit), v.Message)
			t.Render()

			if !v.Valid {
				return &exitError{ExitUnauthorized, fmt.Errorf("license is not active")}
			}
			return nil
		},
	}
}

func (a *app) newLicenseConsumeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "consume",
		Short: "Use one project from the stored license's quota",
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := a.licenseKey(nil)
			if err != nil {
				return err
			}

			c, err := a.client.Licenses().Consume(cmd.Context(), key)
			if err != nil {
				if client.ErrorCode(err) == client.CodeQuotaExceeded && c != nil {
					return &exitError{ExitQuotaExceeded, fmt.Errorf("%s Run 'kybernus upgrade'", c.Message)}
				}
				return fmt.Errorf("quota request failed: %w", err)
			}

			if a.format() != "table" {
				return a.printOutput(cmd.OutOrStdout(), c)
			}

			if c.Unlimited {
				fmt.Fprintf(cmd.OutOrStdout(), "Project authorized (%d created, unlimited plan)\n", c.Usage)
				return nil
			}
			remaining := 0
			if c.Remaining != nil {
				remaining = *c.Remaining
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Project authorized (%d/%d used, %d remaining)\n", c.Usage, c.Limit, remaining)
			return nil
		},
	}
}

func (a *app) newUpgradeCmd() *cobra.Command {
	var tier, email string

	cmd := &cobra.Command{
		Use:   "upgrade",
		Short: "Open a checkout page to buy a plan",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := client.CheckoutRequest{Tier: tier, Email: email}
			if key := a.cfg.GetString(keyLicenseKey); key != "" {
				req.LicenseKey = key
			}
			if req.LicenseKey == "" && req.Email == "" {
				return fmt.Errorf("sign in first or pass --email")
			}

			session, err := a.client.Billing().Checkout(cmd.Context(), req)
			if err != nil {
				return fmt.Errorf("failed to start checkout: %w", err)
			}

			if a.format() != "table" {
				return a.printOutput(cmd.OutOrStdout(), session)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Complete your purchase at:\n\n    %s\n\n", session.URL)
			if req.LicenseKey != "" {
				fmt.Fprintln(cmd.OutOrStdout(), "Your license is replaced after payment; run 'kybernus login' again to pick up the new key.")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&tier, "tier", "pro", "plan to buy: free (monthly) or pro (lifetime)")
	cmd.Flags().StringVar(&email, "email", "", "email for the purchase when not signed in")
	return cmd
}
