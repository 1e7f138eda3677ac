package main

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	apperrors "estate-sync/errors"
	"estate-sync/models"
	"estate-sync/server"
	"estate-sync/services"
	"estate-sync/storage"
)

func newRootCommand(a *app) *cobra.Command {
	var logLevel string

	root := &cobra.Command{
		Use:   "estate-sync",
		Short: "Reconcile scraped property listings into a canonical store",
		Long: `estate-sync triggers the scraping workflow, reconciles the returned batch
against the stored listings and flags what is new or changed since the
previous run.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd.Context(), logLevel)
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error (overrides LOG_LEVEL)")

	root.AddCommand(
		newSyncCommand(a),
		newListCommand(a),
		newSourcesCommand(a),
		newExportCommand(a),
		newServeCommand(a),
		newClearCommand(a),
	)
	return root
}

func newSyncCommand(a *app) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Fetch a batch and reconcile it",
		Example: `  estate-sync sync                      # trigger the webhook
  estate-sync sync --file batch.json    # replay a saved response`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			syncer := a.syncer(file)
			if syncer == nil {
				return apperrors.NewConfigurationError("webhook", "set WEBHOOK_URL or pass --file", nil)
			}
			if err := a.catalog.Refresh(cmd.Context()); err != nil {
				a.logger.Warn("Starting from an empty view: %v", err)
			}

			report, err := syncer.Sync(cmd.Context())
			view := a.catalog.Snapshot()
			fmt.Fprintln(cmd.OutOrStdout(), view.Notice)
			if report == nil {
				return err
			}
			if report.Failed() {
				if err == nil {
					err = report.Unavailable
				}
				return err
			}

			insights := services.NewInsightService(a.logger)
			insights.Print(cmd.OutOrStdout(), insights.Generate(view.Listings))
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "read the batch from a saved webhook response instead")
	return cmd
}

func newListCommand(a *app) *cobra.Command {
	var (
		source    string
		freshOnly bool
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored listings, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.catalog.Refresh(cmd.Context()); err != nil {
				return err
			}
			view := a.catalog.Snapshot()

			listings := services.FilterBySource(view.Listings, source)
			if freshOnly {
				listings = services.FreshOnly(listings)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(listings)
			}
			if view.Notice != "" {
				fmt.Fprintln(out, view.Notice)
			}
			return printListings(out, listings)
		},
	}
	cmd.Flags().StringVar(&source, "source", services.AllSources, "only show listings from this source")
	cmd.Flags().BoolVar(&freshOnly, "fresh", false, "only show listings new or changed in the last run")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

func printListings(w io.Writer, listings []*models.Listing) error {
	table := tablewriter.NewTable(w)
	table.Header("New", "Property", "BHK", "Area", "Price", "Locality", "Source")
	for _, l := range listings {
		badge := ""
		if l.IsNew {
			badge = "*"
		}
		if err := table.Append(badge, l.PropertyName, l.BHK, l.Area, l.Price, l.Locality, l.Source); err != nil {
			return err
		}
	}
	if err := table.Render(); err != nil {
		return err
	}
	fmt.Fprintf(w, "\n%d listings\n", len(listings))
	return nil
}

func newSourcesCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "List the distinct source tags in the store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.catalog.Refresh(cmd.Context()); err != nil {
				return err
			}
			for _, src := range a.catalog.Snapshot().Sources {
				fmt.Fprintln(cmd.OutOrStdout(), src)
			}
			return nil
		},
	}
}

func newExportCommand(a *app) *cobra.Command {
	var scope, out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write listings to a CSV file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.catalog.Refresh(cmd.Context()); err != nil {
				return err
			}
			listings, err := services.SelectScope(a.catalog.Snapshot().Listings, scope)
			if err != nil {
				return err
			}
			if out == "" {
				out = filepath.Join(a.cfg.ExportDir, storage.ExportFileName(scope, time.Now()))
			}

			var exporter storage.ListingExporter
			if out == "-" {
				exporter, err = storage.NewCSVStreamWriter(cmd.OutOrStdout())
			} else {
				exporter, err = storage.NewCSVWriter(out)
			}
			if err != nil {
				return err
			}
			if err := exporter.Export(listings); err != nil {
				_ = exporter.Close()
				return err
			}
			if err := exporter.Close(); err != nil {
				return err
			}
			a.logger.Info("Exported %d listings to %s", len(listings), out)
			return nil
		},
	}
	cmd.Flags().StringVar(&scope, "scope", services.ScopeAll, "which listings to export: all or new")
	cmd.Flags().StringVar(&out, "out", "", "output path, or - for stdout (default <export dir>/<scope>_properties_<date>.csv)")
	return cmd
}

func newServeCommand(a *app) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the listings API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr == "" {
				addr = a.cfg.ListenAddr
			}
			if err := a.catalog.Refresh(cmd.Context()); err != nil {
				a.logger.Warn("Serving without initial data: %v", err)
			}
			if a.cfg.WebhookURL == "" {
				a.logger.Warn("WEBHOOK_URL is not set, POST /api/sync is disabled")
			}
			return server.New(a.catalog, a.syncer(""), a.logger, server.WithSyncCooldown(a.cfg.SyncCooldown)).ListenAndServe(cmd.Context(), addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default LISTEN_ADDR)")
	return cmd
}

func newClearCommand(a *app) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every stored listing",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return apperrors.NewValidationError("yes", false, "refusing to clear the store without --yes")
			}
			if !a.engine.Available() {
				return a.engine.ConfigErr()
			}
			return a.engine.Clear(cmd.Context())
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm deletion")
	return cmd
}
