package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"restodash/internal/export"
	"restodash/internal/extract"
	"restodash/internal/format"
	"restodash/internal/invoices"
	"restodash/internal/ocr"
	"restodash/internal/sheets"
)

var invoicesCmd = &cobra.Command{
	Use:     "invoices",
	Aliases: []string{"invoice", "factures"},
	Short:   "List, inspect, edit and export invoices",
}

var invoicesListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show the invoice table of an establishment",
	Example: `  # Invoices of March, most expensive first
  restodash invoices list --from 2024-03-01 --to 2024-03-31 --sort ttc --dir desc

  # Only two suppliers, as JSON
  restodash invoices list --supplier sup-1 --supplier sup-2 --json`,
	Args: cobra.NoArgs,
	RunE: runInvoicesList,
}

var invoicesShowCmd = &cobra.Command{
	Use:   "show [invoice-id]",
	Short: "Show an invoice with its lines and price history",
	Args:  cobra.ExactArgs(1),
	RunE:  runInvoicesShow,
}

var invoicesTotalsCmd = &cobra.Command{
	Use:   "totals [invoice-id]",
	Short: "Edit the totals of an invoice",
	Long: `Edit the totals of an invoice. Amounts are typed the French way,
e.g. "1 234,56". The three totals are required.`,
	Example: `  restodash invoices totals inv-42 --ht "100,00" --tva "5,50" --ttc "105,50"`,
	Args:    cobra.ExactArgs(1),
	RunE:    runInvoicesTotals,
}

var invoicesCheckCmd = &cobra.Command{
	Use:   "check [invoice-id]",
	Short: "Check stored totals against their lines and the source document",
	Long: `Check the stored totals of an invoice: HT + TVA = TTC, the sum of the
lines against HT, and the totals printed on the PDF.

The PDF is read with Google Document AI when a processor is configured,
and with Google Vision OCR as a fallback when credentials are available.
Totals missing from the OCR text are asked to an OpenAI model when
RESTODASH_OPENAI_API_KEY is set.

Environment variables for document reading:
  GOOGLE_APPLICATION_CREDENTIALS - Path to service account JSON file, OR
  GOOGLE_CREDENTIALS - Inline JSON credentials string
  RESTODASH_GOOGLE_CLOUD_PROJECT - Google Cloud project ID
  RESTODASH_GOOGLE_CLOUD_LOCATION - Processing location (eu, us)
  RESTODASH_DOCUMENT_AI_PROCESSOR_ID - Document AI invoice processor ID`,
	Args: cobra.ExactArgs(1),
	RunE: runInvoicesCheck,
}

var invoicesExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export invoices as a spreadsheet and a PDF archive",
	Long: `Export the invoices matching the filters, or the given ids, as
<name>.xlsx and <name>.zip. Selections above the export threshold are
built by the backend and written as <name>.zip.`,
	Example: `  # Export March into ./exports
  restodash invoices export --from 2024-03-01 --to 2024-03-31 --name mars --dir exports

  # Export two invoices and push the rows to the configured Google Sheet
  restodash invoices export --id inv-1 --id inv-2 --sheet`,
	Args: cobra.NoArgs,
	RunE: runInvoicesExport,
}

func init() {
	rootCmd.AddCommand(invoicesCmd)
	invoicesCmd.AddCommand(invoicesListCmd, invoicesShowCmd, invoicesTotalsCmd, invoicesCheckCmd, invoicesExportCmd)

	for _, c := range []*cobra.Command{invoicesListCmd, invoicesExportCmd} {
		c.Flags().String("from", "", "Start date, inclusive (YYYY-MM-DD or DD/MM/YYYY)")
		c.Flags().String("to", "", "End date, inclusive (YYYY-MM-DD or DD/MM/YYYY)")
		c.Flags().StringSlice("supplier", nil, "Keep only these supplier ids (repeatable)")
	}
	invoicesListCmd.Flags().String("sort", "date", "Sort key: date, ttc, supplier, reference")
	invoicesListCmd.Flags().String("dir", "desc", "Sort direction: asc or desc")

	invoicesTotalsCmd.Flags().String("number", "", "Invoice number")
	invoicesTotalsCmd.Flags().String("date", "", "Invoice date")
	invoicesTotalsCmd.Flags().String("ht", "", "Total excluding tax")
	invoicesTotalsCmd.Flags().String("tva", "", "Tax amount")
	invoicesTotalsCmd.Flags().String("ttc", "", "Total including tax")

	invoicesExportCmd.Flags().StringSlice("id", nil, "Export only these invoice ids (repeatable)")
	invoicesExportCmd.Flags().String("name", "", "Base name of the produced files")
	invoicesExportCmd.Flags().String("dir", ".", "Directory the files are written to")
	invoicesExportCmd.Flags().Bool("sheet", false, "Also push the rows to the configured Google Sheet")
}

func dateFlag(cmd *cobra.Command, name string) (time.Time, error) {
	raw, _ := cmd.Flags().GetString(name)
	if strings.TrimSpace(raw) == "" {
		return time.Time{}, nil
	}
	t, ok := format.ParseDate(raw)
	if !ok {
		return time.Time{}, fmt.Errorf("invalid --%s date %q", name, raw)
	}
	return t, nil
}

func loadTable(ctx context.Context, a *app, cmd *cobra.Command) (*invoices.ListResult, error) {
	establishmentID, err := a.establishment(cmd)
	if err != nil {
		return nil, err
	}
	return invoices.NewLister(a.client, a.cfg.MaxConcurrency).Load(ctx, invoices.Query{EstablishmentID: establishmentID})
}

type listOutput struct {
	Items     []invoices.ListItem       `json:"items"`
	Suppliers []invoices.SupplierOption `json:"suppliers"`
	Summary   invoices.Summary          `json:"summary"`
}

func runInvoicesList(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd.Context(), "invoices-cmd")
	if err != nil {
		return err
	}
	defer a.Close()

	from, err := dateFlag(cmd, "from")
	if err != nil {
		return err
	}
	to, err := dateFlag(cmd, "to")
	if err != nil {
		return err
	}
	supplierIDs, _ := cmd.Flags().GetStringSlice("supplier")
	sortRaw, _ := cmd.Flags().GetString("sort")
	dirRaw, _ := cmd.Flags().GetString("dir")

	key, err := invoices.ParseSortKey(sortRaw)
	if err != nil {
		return err
	}
	dir, err := invoices.ParseDirection(dirRaw)
	if err != nil {
		return err
	}

	ctx, cancel := newContext(cmd, a.log)
	defer cancel()

	result, err := loadTable(ctx, a, cmd)
	if err != nil {
		return handleError(a, err, invoices.UserMessage)
	}

	items := invoices.Filter(result.Items, from, to, supplierIDs)
	invoices.Sort(items, key, dir)

	out := listOutput{Items: items, Suppliers: result.Suppliers, Summary: invoices.Totals(items)}
	return render(cmd, out, func(w io.Writer) {
		fmt.Fprintln(w, "ID\tRÉFÉRENCE\tFOURNISSEUR\tDATE\tHT\tTVA\tTTC\tARTICLES")
		for _, it := range items {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%d\n",
				it.ID, it.Reference, it.Supplier, it.Date, it.HT, it.TVA, it.TTC, it.ArticleCount)
		}
		fmt.Fprintf(w, "\t%d factures\t\t\t%s\t%s\t%s\t\n",
			out.Summary.Count, out.Summary.HT, out.Summary.TVA, out.Summary.TTC)
	})
}

type showOutput struct {
	*invoices.Detail
	Warnings []string `json:"warnings,omitempty"`
}

func runInvoicesShow(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), "invoices-cmd")
	if err != nil {
		return err
	}
	defer a.Close()

	establishmentID, err := a.establishment(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := newContext(cmd, a.log)
	defer cancel()

	detail, err := invoices.NewDetailLoader(a.client, a.cache, a.cfg.MaxConcurrency).Load(ctx, args[0], establishmentID)
	if err != nil {
		return handleError(a, err, invoices.UserMessage)
	}

	out := showOutput{Detail: detail, Warnings: detail.Discrepancy()}
	return render(cmd, out, func(w io.Writer) {
		fmt.Fprintf(w, "Facture\t%s\n", detail.Reference)
		fmt.Fprintf(w, "Fournisseur\t%s\t%s\n", detail.Supplier.Name, detail.Supplier.Label)
		fmt.Fprintf(w, "Date\t%s\n", detail.Date)
		fmt.Fprintf(w, "HT / TVA / TTC\t%s\t%s\t%s\n\n", detail.HT, detail.TVA, detail.TTC)
		fmt.Fprintln(w, "ARTICLE\tUNITÉ\tQUANTITÉ\tPRIX UNITAIRE\tÉVOLUTION\tTOTAL\tARTICLE DE RÉFÉRENCE")
		for _, it := range detail.Items {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				it.Name, it.Unit, it.Quantity, it.UnitPrice, it.PriceDelta, it.Total, it.MasterArticle)
		}
		for _, warning := range out.Warnings {
			fmt.Fprintf(w, "\nAttention : %s\n", warning)
		}
	})
}

func runInvoicesTotals(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), "invoices-cmd")
	if err != nil {
		return err
	}
	defer a.Close()

	var in invoices.TotalsInput
	in.InvoiceNumber, _ = cmd.Flags().GetString("number")
	in.Date, _ = cmd.Flags().GetString("date")
	in.HT, _ = cmd.Flags().GetString("ht")
	in.TVA, _ = cmd.Flags().GetString("tva")
	in.TTC, _ = cmd.Flags().GetString("ttc")

	ctx, cancel := newContext(cmd, a.log)
	defer cancel()

	invoice, err := invoices.NewEditor(a.client).UpdateTotals(ctx, args[0], in)
	if err != nil {
		return handleError(a, err, invoices.UserMessage)
	}

	item := invoices.NewListItem(*invoice, "")
	return render(cmd, invoice, func(w io.Writer) {
		fmt.Fprintf(w, "Facture %s mise à jour\n", item.Reference)
		fmt.Fprintf(w, "HT\t%s\nTVA\t%s\nTTC\t%s\n", item.HT, item.TVA, item.TTC)
	})
}

// newExtractor chains the configured document readers. It returns nil when
// none is available.
func newExtractor(ctx context.Context, a *app) extract.Extractor {
	var readers []extract.Extractor

	if a.cfg.GoogleCloudProject != "" && a.cfg.DocumentAIProcessorID != "" {
		docAI, err := extract.NewDocumentAI(ctx, extract.DocumentAIConfig{
			ProjectID:   a.cfg.GoogleCloudProject,
			Location:    a.cfg.GoogleCloudLocation,
			ProcessorID: a.cfg.DocumentAIProcessorID,
		})
		if err != nil {
			a.log.Warn().Err(err).Msg("Document AI unavailable")
		} else {
			readers = append(readers, docAI)
			a.closers = append(a.closers, docAI.Close)
		}
	}

	vision, err := ocr.NewVision(ctx)
	switch {
	case errors.Is(err, ocr.ErrMissingCredentials):
		a.log.Debug().Msg("No Google credentials, OCR fallback disabled")
	case err != nil:
		a.log.Warn().Err(err).Msg("Vision OCR unavailable")
	default:
		var opts []ocr.TextOption
		if a.cfg.OpenAIAPIKey != "" {
			completer, err := ocr.NewCompleter(ocr.CompletionConfig{
				APIKey:      a.cfg.OpenAIAPIKey,
				Model:       a.cfg.OpenAIModel,
				Temperature: 0.1,
			})
			if err != nil {
				a.log.Warn().Err(err).Msg("OCR completion unavailable")
			} else {
				opts = append(opts, ocr.WithCompleter(completer))
			}
		}
		readers = append(readers, ocr.NewTextExtractor(vision, opts...))
		a.closers = append(a.closers, vision.Close)
	}

	if len(readers) == 0 {
		return nil
	}
	return extract.Chain(readers...)
}

func runInvoicesCheck(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), "invoices-cmd")
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := newContext(cmd, a.log)
	defer cancel()

	verifier := invoices.NewVerifier(a.client, a.resolver, newExtractor(ctx, a))
	report, err := verifier.Check(ctx, args[0])
	if err != nil {
		return handleError(a, err, invoices.UserMessage)
	}

	return render(cmd, report, func(w io.Writer) {
		fmt.Fprintf(w, "Facture\t%s\n", report.Reference)
		if report.Extracted != nil {
			fmt.Fprintf(w, "Document lu par\t%s\n", report.Extracted.Source)
		}
		if report.DocumentError != "" {
			fmt.Fprintf(w, "Document\t%s\n", report.DocumentError)
		}
		warnings := report.Warnings()
		if len(warnings) == 0 {
			fmt.Fprintln(w, "Résultat\tles totaux concordent")
			return
		}
		for _, warning := range warnings {
			fmt.Fprintf(w, "Attention\t%s\n", warning)
		}
	})
}

func runInvoicesExport(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd.Context(), "export-cmd")
	if err != nil {
		return err
	}
	defer a.Close()

	establishmentID, err := a.establishment(cmd)
	if err != nil {
		return err
	}
	from, err := dateFlag(cmd, "from")
	if err != nil {
		return err
	}
	to, err := dateFlag(cmd, "to")
	if err != nil {
		return err
	}
	supplierIDs, _ := cmd.Flags().GetStringSlice("supplier")
	ids, _ := cmd.Flags().GetStringSlice("id")
	name, _ := cmd.Flags().GetString("name")
	dir, _ := cmd.Flags().GetString("dir")
	pushSheet, _ := cmd.Flags().GetBool("sheet")

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create export directory: %w", err)
	}

	ctx, cancel := newContext(cmd, a.log)
	defer cancel()

	opts := []export.Option{
		export.WithThreshold(a.cfg.ExportThreshold),
		export.WithConcurrency(a.cfg.MaxConcurrency),
	}
	if pushSheet {
		if a.cfg.GoogleSheetURL == "" {
			return fmt.Errorf("--sheet needs RESTODASH_GOOGLE_SHEET_URL")
		}
		sheet, err := sheets.NewService(ctx, a.cfg.GoogleSheetURL, a.cfg.GoogleSheetWorksheet)
		if err != nil {
			return err
		}
		opts = append(opts, export.WithSheet(sheet))
	}

	table, err := loadTable(ctx, a, cmd)
	if err != nil {
		return handleError(a, err, invoices.UserMessage)
	}

	session := export.NewSession(export.NewExporter(a.client, a.resolver, opts...))
	if err := session.Open(export.Filters{From: from, To: to, Suppliers: supplierIDs}); err != nil {
		return err
	}
	if err := session.Select(ids); err != nil {
		return err
	}

	result, err := session.Run(ctx, table.Items, export.Request{
		EstablishmentID: establishmentID,
		Name:            name,
		Dir:             dir,
	})
	if err != nil {
		return handleError(a, err, export.UserMessage)
	}

	return render(cmd, result, func(w io.Writer) {
		fmt.Fprintln(w, result.Message())
		for _, f := range result.Files {
			fmt.Fprintf(w, "Fichier\t%s\n", f)
		}
		for _, m := range result.Missing {
			fmt.Fprintf(w, "Manquant\t%s\t%s\n", m.Reference, m.Reason)
		}
		for _, warning := range result.Warnings {
			fmt.Fprintf(w, "Attention\t%s\n", warning)
		}
	})
}

// handleError logs the technical error and returns the message shown to the
// user.
func handleError(a *app, err error, message func(error) string) error {
	if errors.Is(err, context.DeadlineExceeded) {
		a.log.Error().Err(err).Msg("Operation timed out")
		return fmt.Errorf("délai dépassé, augmentez --timeout")
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("opération annulée")
	}
	a.log.Error().Err(err).Msg("Command failed")
	return errors.New(message(err))
}
