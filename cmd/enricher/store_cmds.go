package main

import (
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/shpitdev/profile-enricher/internal/store"
	"github.com/shpitdev/profile-enricher/internal/version"
)

func newMigrateCmd(root *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the store schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := root.load(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if cfg.Store.Driver == store.DriverNone || cfg.Store.Driver == "" {
				return errors.New("no store configured (set STORE_DRIVER and DATABASE_URL)")
			}
			st, err := store.Open(cmd.Context(), cfg.Store.Driver, cfg.Store.DSN, logger)
			if err != nil {
				return err
			}
			defer st.Close()
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "schema up to date (%s)\n", cfg.Store.Driver)
			return nil
		},
	}
}

func newShowCmd(root *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "show <portfolio-id>",
		Short: "Print the latest enriched profile stored for a portfolio",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := root.load(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			st, err := store.Open(cmd.Context(), cfg.Store.Driver, cfg.Store.DSN, logger)
			if err != nil {
				return err
			}
			defer st.Close()

			rec, err := st.LatestProfile(cmd.Context(), args[0])
			if errors.Is(err, store.ErrNotFound) {
				return errors.Errorf("no profile stored for portfolio %s", args[0])
			}
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{
				"id":            rec.ID,
				"portfolio_id":  rec.PortfolioID,
				"source_type":   rec.SourceType,
				"raw_data":      rec.RawData,
				"enhanced_data": rec.EnhancedData,
				"created_at":    rec.CreatedAt,
			})
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}
