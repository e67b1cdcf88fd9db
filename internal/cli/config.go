package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

func (a *app) newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage CLI configuration",
	}

	cmd.AddCommand(a.newConfigInitCmd())
	cmd.AddCommand(a.newConfigSetCmd())
	cmd.AddCommand(a.newConfigGetCmd())
	cmd.AddCommand(a.newConfigListCmd())
	return cmd
}

func (a *app) newConfigInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Interactive first-time setup",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			fmt.Fprintf(out, "Server URL [%s]: ", a.server())
			url, err := readLine(a.stdin)
			if err != nil {
				return err
			}
			if url == "" {
				url = a.server()
			}

			fmt.Fprint(out, "Default output format (table/json/yaml) [table]: ")
			format, err := readLine(a.stdin)
			if err != nil {
				return err
			}
			if format == "" {
				format = "table"
			}
			if !validFormat(format) {
				return fmt.Errorf("unknown output format %q", format)
			}

			a.cfg.Set(keyServerURL, url)
			a.cfg.Set(keyOutput, format)
			if err := a.writeConfig(); err != nil {
				return err
			}

			fmt.Fprintf(out, "Configuration saved to %s\n", a.cfgFile)
			return nil
		},
	}
}

func (a *app) newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if args[0] == keyOutput && !validFormat(args[1]) {
				return fmt.Errorf("unknown output format %q", args[1])
			}
			a.cfg.Set(args[0], args[1])
			if err := a.writeConfig(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s\n", args[0], args[1])
			return nil
		},
	}
}

func (a *app) newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			val := a.cfg.Get(args[0])
			if val == nil || val == "" {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: (not set)\n", args[0])
				return nil
			}
			if args[0] == keyLicenseKey || args[0] == keyToken {
				val = maskKey(fmt.Sprint(val))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %v\n", args[0], val)
			return nil
		},
	}
}

func (a *app) newConfigListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show all configuration values",
		RunE: func(cmd *cobra.Command, args []string) error {
			keys := a.cfg.AllKeys()
			sort.Strings(keys)
			for _, key := range keys {
				val := a.cfg.GetString(key)
				if (key == keyLicenseKey || key == keyToken) && val != "" {
					val = maskKey(val)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", key, val)
			}
			return nil
		},
	}
}

func validFormat(f string) bool {
	switch f {
	case "table", "json", "yaml":
		return true
	}
	return false
}
