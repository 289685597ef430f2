package main

import (
	"github.com/FranksOps/trustcheck/internal/report"
	"github.com/FranksOps/trustcheck/internal/serp"
	"github.com/spf13/cobra"
)

func newSearchCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search NAME...",
		Short: "Search for one or more names",
		Example: `  trustcheck search "Mario Rossi"
  trustcheck search "Acme Corp" --lang en --provider duckduckgo --format text`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := c.load(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			a, err := build(cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			queries := make([]serp.Query, len(args))
			for i, name := range args {
				queries[i] = serp.Query{Name: name, Language: cfg.Language}
			}
			responses, err := a.engine.RunBatch(cmd.Context(), queries)
			if err != nil {
				return err
			}
			return report.Write(cmd.OutOrStdout(), cfg.Format, responses)
		},
	}

	f := cmd.Flags()
	f.String("lang", serp.DefaultLanguage, "language code for the search")
	f.String("format", report.FormatJSON, "output format: json, text or html")
	f.Bool("fail-on-empty", false, "exit with an error when a name has no results")
	f.Int("concurrency", 1, "how many names to search at once")

	c.bind("language", f.Lookup("lang"))
	c.bind("format", f.Lookup("format"))
	c.bind("fail_on_empty", f.Lookup("fail-on-empty"))
	c.bind("concurrency", f.Lookup("concurrency"))
	return cmd
}
