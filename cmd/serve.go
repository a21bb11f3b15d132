package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"restodash/internal/export"
	"restodash/internal/invoices"
	"restodash/internal/server"
	"restodash/internal/sheets"
	"restodash/internal/suppliers"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the invoice data layer over HTTP",
	Long: `Serve the invoice table, invoice detail, edits, supplier management,
exports and totals checks as a JSON API.

The server listens on RESTODASH_LISTEN_ADDR (default :8080) and stops
gracefully on SIGINT or SIGTERM.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "Listen address (default: RESTODASH_LISTEN_ADDR)")
	serveCmd.Flags().String("export-dir", "exports", "Directory receiving exported files")
	serveCmd.Flags().Bool("sheet", false, "Also push exported rows to the configured Google Sheet")
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, "serve")
	if err != nil {
		return err
	}
	defer a.Close()

	addr, _ := cmd.Flags().GetString("addr")
	if addr == "" {
		addr = a.cfg.ListenAddr
	}
	exportDir, _ := cmd.Flags().GetString("export-dir")
	pushSheet, _ := cmd.Flags().GetBool("sheet")

	if err := os.MkdirAll(exportDir, 0o755); err != nil {
		return fmt.Errorf("failed to create export directory: %w", err)
	}

	exportOpts := []export.Option{
		export.WithThreshold(a.cfg.ExportThreshold),
		export.WithConcurrency(a.cfg.MaxConcurrency),
	}
	if pushSheet {
		sheet, err := sheets.NewService(ctx, a.cfg.GoogleSheetURL, a.cfg.GoogleSheetWorksheet)
		if err != nil {
			return err
		}
		exportOpts = append(exportOpts, export.WithSheet(sheet))
	}

	srv := server.New(server.Deps{
		Lister:          invoices.NewLister(a.client, a.cfg.MaxConcurrency),
		Details:         invoices.NewDetailLoader(a.client, a.cache, a.cfg.MaxConcurrency),
		Editor:          invoices.NewEditor(a.client),
		Verifier:        invoices.NewVerifier(a.client, a.resolver, newExtractor(ctx, a)),
		Exporter:        export.NewExporter(a.client, a.resolver, exportOpts...),
		Suppliers:       suppliers.NewService(a.client, a.cache),
		EstablishmentID: a.cfg.EstablishmentID,
		ExportDir:       exportDir,
		RateLimit:       a.cfg.RateLimit,
	})

	a.log.Info().
		Str("addr", addr).
		Str("export_dir", exportDir).
		Bool("redis", a.cfg.RedisURL != "").
		Msg("Starting server")

	return srv.ListenAndServe(ctx, addr)
}
