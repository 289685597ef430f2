package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/FranksOps/trustcheck/internal/config"
	"github.com/FranksOps/trustcheck/internal/serp"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// cli carries state shared by every subcommand.
type cli struct {
	v          *viper.Viper
	configPath string
}

func newRootCmd() *cobra.Command {
	c := &cli{v: config.New()}

	root := &cobra.Command{
		Use:   "trustcheck",
		Short: "Look up people and companies on web search engines",
		Long: `trustcheck searches the web for a person or company name and prints
the ranked results as JSON, text or HTML.`,
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&c.configPath, "config", "", "path to a YAML config file")
	pf.String("log-level", "info", "log level: debug, info, warn, error")
	pf.String("log-format", "text", "log format: text or json")
	pf.String("provider", serp.ProviderPlaceholder, "search provider: "+strings.Join(serp.Names(), ", "))
	pf.Int("max-results", serp.DefaultMaxResults, "maximum results kept per query")
	pf.Duration("timeout", 0, "per-request HTTP timeout (0 keeps the configured value)")
	pf.String("fingerprint", "chrome", "TLS fingerprint: chrome, firefox, safari, go, random")
	pf.StringSlice("proxy", nil, "proxy URL, repeatable")

	c.bind("log.level", pf.Lookup("log-level"))
	c.bind("log.format", pf.Lookup("log-format"))
	c.bind("provider", pf.Lookup("provider"))
	c.bind("max_results", pf.Lookup("max-results"))
	c.bind("fetch.fingerprint", pf.Lookup("fingerprint"))
	c.bind("fetch.proxies", pf.Lookup("proxy"))

	// A zero --timeout must not override the configured fetch timeout, so it
	// is applied by hand instead of bound.
	root.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		if f := cmd.Flags().Lookup("timeout"); f != nil && f.Changed {
			c.v.Set("fetch.timeout", f.Value.String())
		}
		return nil
	}

	root.AddCommand(newSearchCmd(c), newServeCmd(c), newProvidersCmd())
	return root
}

// bind ties a flag to a config key. Flags only win over the config file
// and environment when set on the command line.
func (c *cli) bind(key string, flag *pflag.Flag) {
	if err := c.v.BindPFlag(key, flag); err != nil {
		panic(fmt.Sprintf("bind flag for %s: %v", key, err))
	}
}

// load reads the configuration and builds the logger that writes to errOut.
func (c *cli) load(errOut io.Writer) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(c.v, c.configPath)
	if err != nil {
		return nil, nil, err
	}
	logger, err := newLogger(errOut, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// exitCode maps command errors onto process exit codes.
func exitCode(err error) int {
	switch {
	case errors.Is(err, serp.ErrInvalidQuery):
		return 2
	case errors.Is(err, serp.ErrNoResults):
		return 3
	default:
		return 1
	}
}

func newProvidersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List the available search providers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, name := range serp.Names() {
				if _, err := fmt.Fprintln(cmd.OutOrStdout(), name); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
