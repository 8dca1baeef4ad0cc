package main

import (
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/shpitdev/profile-enricher/internal/app"
	"github.com/shpitdev/profile-enricher/internal/config"
	"github.com/shpitdev/profile-enricher/pkg/pipeline/core"
	"github.com/shpitdev/profile-enricher/pkg/profile"
)

type enrichOptions struct {
	source    string
	portfolio string
	model     string
	provider  string
	storeURL  string
}

func newEnrichCmd(root *rootFlags) *cobra.Command {
	var opts enrichOptions
	cmd := &cobra.Command{
		Use:   "enrich <url-or-pdf>",
		Short: "Enrich one profile page or resume",
		Long: `Extract, normalize and enrich one document, store it for a portfolio and
print the enriched profile as JSON.

Example:
  enricher enrich resume.pdf --source pdf --portfolio 5b0c...
  enricher enrich https://www.linkedin.com/in/someone --source linkedin`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := root.load(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			applyGenerationFlags(&cfg.Generation, opts.provider, opts.model)
			if opts.storeURL != "" {
				cfg.Store.DSN = opts.storeURL
			}
			if err := cfg.ValidateGeneration(); err != nil {
				return err
			}
			source, err := profile.ParseSource(opts.source)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			a, err := app.New(ctx, cfg, logger, app.Deps{})
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.RunDocument(ctx, core.Job{PortfolioID: opts.portfolio, Source: source, Location: args[0]})
			if err != nil {
				return errors.Wrap(err, "enrich")
			}

			out := map[string]any{
				"portfolio_id":  res.PortfolioID,
				"record_id":     res.RecordID,
				"enhanced_data": res.Profile.Map(),
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(out); err != nil {
				return err
			}
			if len(res.Degraded) > 0 {
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "degraded tasks: %v\n", res.Degraded)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.source, "source", "pdf", "Source type: linkedin or pdf")
	cmd.Flags().StringVar(&opts.portfolio, "portfolio", "", "Portfolio id (a new portfolio is created when empty)")
	cmd.Flags().StringVar(&opts.provider, "provider", "", "Generation provider: gemini or openai (env: LLM_PROVIDER)")
	cmd.Flags().StringVar(&opts.model, "model", "", "Generation model (env: LLM_MODEL)")
	cmd.Flags().StringVar(&opts.storeURL, "database-url", "", "Store DSN (env: DATABASE_URL)")
	return cmd
}

func applyGenerationFlags(g *config.Generation, flagProvider, flagModel string) {
	if flagProvider != "" {
		g.UseProvider(flagProvider)
	}
	if flagModel != "" {
		g.Model = flagModel
	}
}
