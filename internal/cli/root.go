// Package cli implements the kybernus command line tool.
package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/kybernus/license-api/pkg/client"
)

// Config keys
const (
	keyServerURL  = "server_url"
	keyOutput     = "output"
	keyLicenseKey = "license.key"
	keyEmail      = "license.email"
	keyTier       = "license.tier"
	keyToken      = "auth.token"
)

// app carries the state shared by every command of one invocation
type app struct {
	cfg          *viper.Viper
	cfgFile      string
	outputFormat string
	serverURL    string
	client       *client.Client
	stdin        *bufio.Reader
	readSecret   func(prompt string) (string, error)
}

// Exit codes wrapper scripts can branch on
const (
	ExitOK            = 0
	ExitError         = 1
	ExitUnauthorized  = 2 // missing, forged or inactive license
	ExitQuotaExceeded = 3
)

// exitError attaches an exit code to an error
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

// ExitCode maps an error returned by Execute to a process exit code
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	switch client.ErrorCode(err) {
	case client.CodeQuotaExceeded:
		return ExitQuotaExceeded
	case client.CodeInvalidSignature, client.CodeNotFound, client.CodeLicenseInactive:
		return ExitUnauthorized
	}
	return ExitError
}

// Execute runs the CLI
func Execute() error {
	return NewRootCmd().Execute()
}

// NewRootCmd builds the command tree with fresh state
func NewRootCmd() *cobra.Command {
	a := newApp(os.Stdin)
	a.readSecret = a.readTerminalSecret
	return a.rootCmd()
}

func newApp(stdin io.Reader) *app {
	return &app{
		cfg:   viper.New(),
		stdin: bufio.NewReader(stdin),
	}
}

func (a *app) rootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "kybernus",
		Short: "Kybernus CLI - licensed project generator",
		Long: `Kybernus CLI signs you in through your browser, keeps your license key
and reports your plan and project quota.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := a.loadConfig(); err != nil {
				return err
			}
			a.client = client.NewClient(client.Config{
				BaseURL:   a.server(),
				UserAgent: "kybernus-cli",
			})
			if token := a.cfg.GetString(keyToken); token != "" {
				a.client.SetToken(token)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default $HOME/.kybernus/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&a.outputFormat, "output", "o", "", "output format: table, json, yaml")
	rootCmd.PersistentFlags().StringVar(&a.serverURL, "server", "", "server URL (overrides config)")

	rootCmd.AddCommand(
		a.newLoginCmd(),
		a.newRegisterCmd(),
		a.newLogoutCmd(),
		a.newWhoamiCmd(),
		a.newLicenseCmd(),
		a.newUpgradeCmd(),
		a.newConfigCmd(),
	)
	return rootCmd
}

func (a *app) loadConfig() error {
	if a.cfgFile == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		a.cfgFile = filepath.Join(home, ".kybernus", "config.yaml")
	}
	a.cfg.SetConfigFile(a.cfgFile)
	a.cfg.SetConfigType("yaml")

	a.cfg.SetEnvPrefix("KYBERNUS")
	a.cfg.AutomaticEnv()

	a.cfg.SetDefault(keyServerURL, client.DefaultBaseURL)
	a.cfg.SetDefault(keyOutput, "table")

	if _, err := os.Stat(a.cfgFile); err == nil {
		if err := a.cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config %s: %w", a.cfgFile, err)
		}
	}
	return nil
}

// writeConfig persists the config with owner-only permissions; it holds the
// license key and session token.
func (a *app) writeConfig() error {
	if err := os.MkdirAll(filepath.Dir(a.cfgFile), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := a.cfg.WriteConfigAs(a.cfgFile); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return os.Chmod(a.cfgFile, 0o600)
}

func (a *app) server() string {
	if a.serverURL != "" {
		return a.serverURL
	}
	return a.cfg.GetString(keyServerURL)
}

func (a *app) format() string {
	if a.outputFormat != "" {
		return a.outputFormat
	}
	return a.cfg.GetString(keyOutput)
}

// licenseKey returns the explicit key or the stored one
func (a *app) licenseKey(args []string) (string, error) {
	if len(args) > 0 && args[0] != "" {
		return args[0], nil
	}
	if key := a.cfg.GetString(keyLicenseKey); key != "" {
		return key, nil
	}
	return "", &exitError{ExitUnauthorized, fmt.Errorf("no license key stored. Run 'kybernus login' first")}
}

func (a *app) readTerminalSecret(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	defer fmt.Fprintln(os.Stderr)

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return readLine(a.stdin)
	}
	b, err := term.ReadPassword(fd)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
