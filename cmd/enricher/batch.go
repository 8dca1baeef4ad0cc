package main

import (
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/shpitdev/profile-enricher/internal/app"
	"github.com/shpitdev/profile-enricher/pkg/pipeline/io/local"
)

func newBatchCmd(root *rootFlags) *cobra.Command {
	var (
		output     string
		workers    int
		maxRetries int
		failFast   bool
		provider   string
		model      string
	)
	cmd := &cobra.Command{
		Use:   "batch <manifest.csv>",
		Short: "Enrich every document listed in a manifest CSV",
		Long: `Process a manifest with the columns portfolio_id, source and location on a
bounded worker pool and write a CSV report with one row per document.

Example:
  enricher batch manifest.csv --output report.csv --workers 8`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := root.load(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			applyGenerationFlags(&cfg.Generation, provider, model)
			if cmd.Flags().Changed("workers") {
				cfg.Batch.Workers = workers
			}
			if cmd.Flags().Changed("max-retries") {
				cfg.Batch.MaxRetries = maxRetries
			}
			if cmd.Flags().Changed("fail-fast") {
				cfg.Batch.FailFast = failFast
			}
			if err := cfg.ValidateGeneration(); err != nil {
				return err
			}

			var report io.Writer = cmd.OutOrStdout()
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return err
				}
				defer f.Close()
				report = f
			}

			ctx := cmd.Context()
			a, err := app.New(ctx, cfg, logger, app.Deps{})
			if err != nil {
				return err
			}
			defer a.Close()

			stats, err := a.RunBatch(ctx, local.Manifest{Path: args[0]}, report)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "batch complete: ok=%d error=%d retried=%d\n", stats.Succeeded, stats.Failed, stats.Retried)
			if stats.Failed > 0 {
				return errors.Errorf("%d of %d documents failed", stats.Failed, stats.Succeeded+stats.Failed)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Report CSV path (default stdout)")
	cmd.Flags().IntVar(&workers, "workers", 0, "Concurrent documents (env: WORKERS)")
	cmd.Flags().IntVar(&maxRetries, "max-retries", 0, "Retries per document for transient failures (env: MAX_RETRIES)")
	cmd.Flags().BoolVar(&failFast, "fail-fast", false, "Stop on the first failed document (env: FAIL_FAST)")
	cmd.Flags().StringVar(&provider, "provider", "", "Generation provider: gemini or openai (env: LLM_PROVIDER)")
	cmd.Flags().StringVar(&model, "model", "", "Generation model (env: LLM_MODEL)")
	return cmd
}
