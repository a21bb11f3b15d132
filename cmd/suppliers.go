package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"restodash/internal/api"
	"restodash/internal/suppliers"
	"restodash/pkg/models"
)

var suppliersCmd = &cobra.Command{
	Use:     "suppliers",
	Aliases: []string{"supplier", "fournisseurs"},
	Short:   "Manage the suppliers of an establishment",
}

var suppliersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List suppliers with their category",
	Args:  cobra.NoArgs,
	RunE:  runSuppliersList,
}

var suppliersLabelCmd = &cobra.Command{
	Use:     "label [supplier-id] [category]",
	Short:   "Set the category of a supplier",
	Example: `  restodash suppliers label sup-1 FRUITS_VEGETABLES`,
	Args:    cobra.ExactArgs(2),
	RunE:    runSuppliersLabel,
}

var suppliersLinkCmd = &cobra.Command{
	Use:   "link [supplier-id] [market-supplier-id]",
	Short: "Link a supplier to a market supplier",
	Args:  cobra.ExactArgs(2),
	RunE:  runSuppliersLink,
}

var suppliersMergeCmd = &cobra.Command{
	Use:     "merge [target-id] [source-id...]",
	Short:   "Ask to merge duplicate suppliers into a target",
	Example: `  restodash suppliers merge sup-1 sup-7 sup-9`,
	Args:    cobra.MinimumNArgs(2),
	RunE:    runSuppliersMerge,
}

var suppliersMergesCmd = &cobra.Command{
	Use:   "merges",
	Short: "List merge requests",
	Args:  cobra.NoArgs,
	RunE:  runSuppliersMerges,
}

var suppliersResolveCmd = &cobra.Command{
	Use:   "resolve [merge-request-id]",
	Short: "Accept or refuse a merge request",
	Args:  cobra.ExactArgs(1),
	RunE:  runSuppliersResolve,
}

var marketCmd = &cobra.Command{
	Use:   "market",
	Short: "Show the market supplier catalogue",
	Args:  cobra.NoArgs,
	RunE:  runMarket,
}

var aliasesCmd = &cobra.Command{
	Use:   "aliases",
	Short: "Show the mailboxes invoices can be sent to",
	Args:  cobra.NoArgs,
	RunE:  runAliases,
}

func init() {
	rootCmd.AddCommand(suppliersCmd, marketCmd, aliasesCmd)
	suppliersCmd.AddCommand(suppliersListCmd, suppliersLabelCmd, suppliersLinkCmd, suppliersMergeCmd, suppliersMergesCmd, suppliersResolveCmd)

	suppliersMergesCmd.Flags().String("status", "", "Only requests with this status (pending, accepted, refused)")
	suppliersResolveCmd.Flags().Bool("refuse", false, "Refuse the request instead of accepting it")
}

func runSuppliersList(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd.Context(), "suppliers-cmd")
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

	rows, err := suppliers.NewService(a.client, a.cache).List(ctx, establishmentID)
	if err != nil {
		return handleError(a, err, suppliers.UserMessage)
	}

	return render(cmd, rows, func(w io.Writer) {
		fmt.Fprintln(w, "ID\tNOM\tCATÉGORIE\tANALYSE\tMERCURIALE")
		for _, r := range rows {
			analysis := "non"
			if r.ActiveAnalysis {
				analysis = "oui"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", r.ID, r.Name, r.LabelName, analysis, r.MarketSupplier)
		}
	})
}

func printSupplier(w io.Writer, s *models.Supplier) {
	fmt.Fprintf(w, "Fournisseur %s mis à jour\n", s.Name)
	fmt.Fprintf(w, "Catégorie\t%s\n", suppliers.DisplayLabel(s.Label))
}

func runSuppliersLabel(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), "suppliers-cmd")
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := newContext(cmd, a.log)
	defer cancel()

	supplier, err := suppliers.NewService(a.client, a.cache).UpdateLabel(ctx, args[0], args[1])
	if err != nil {
		return handleError(a, err, suppliers.UserMessage)
	}
	return render(cmd, supplier, func(w io.Writer) { printSupplier(w, supplier) })
}

func runSuppliersLink(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), "suppliers-cmd")
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := newContext(cmd, a.log)
	defer cancel()

	supplier, err := suppliers.NewService(a.client, a.cache).LinkMarketSupplier(ctx, args[0], args[1])
	if err != nil {
		return handleError(a, err, suppliers.UserMessage)
	}
	return render(cmd, supplier, func(w io.Writer) { printSupplier(w, supplier) })
}

func printMergeRequests(w io.Writer, requests []models.MergeRequest) {
	fmt.Fprintln(w, "ID\tCIBLE\tSOURCES\tSTATUT\tCRÉÉE LE")
	for _, r := range requests {
		fmt.Fprintf(w, "%s\t%s\t%v\t%s\t%s\n",
			r.ID, r.TargetSupplierID, r.SourceSupplierIDs, r.Status, r.CreatedAt.Format("02/01/2006"))
	}
}

func runSuppliersMerge(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), "suppliers-cmd")
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

	request, err := suppliers.NewService(a.client, a.cache).RequestMerge(ctx, suppliers.MergeInput{
		EstablishmentID: establishmentID,
		Target:          args[0],
		Sources:         args[1:],
	})
	if err != nil {
		return handleError(a, err, suppliers.UserMessage)
	}
	return render(cmd, request, func(w io.Writer) { printMergeRequests(w, []models.MergeRequest{*request}) })
}

func runSuppliersMerges(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd.Context(), "suppliers-cmd")
	if err != nil {
		return err
	}
	defer a.Close()

	establishmentID, err := a.establishment(cmd)
	if err != nil {
		return err
	}
	status, _ := cmd.Flags().GetString("status")

	ctx, cancel := newContext(cmd, a.log)
	defer cancel()

	requests, err := suppliers.NewService(a.client, a.cache).MergeRequests(ctx, establishmentID, status)
	if err != nil {
		return handleError(a, err, suppliers.UserMessage)
	}
	return render(cmd, requests, func(w io.Writer) { printMergeRequests(w, requests) })
}

func runSuppliersResolve(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), "suppliers-cmd")
	if err != nil {
		return err
	}
	defer a.Close()

	refuse, _ := cmd.Flags().GetBool("refuse")

	ctx, cancel := newContext(cmd, a.log)
	defer cancel()

	request, err := suppliers.NewService(a.client, a.cache).ResolveMerge(ctx, args[0], !refuse)
	if err != nil {
		return handleError(a, err, suppliers.UserMessage)
	}
	return render(cmd, request, func(w io.Writer) { printMergeRequests(w, []models.MergeRequest{*request}) })
}

func runMarket(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd.Context(), "suppliers-cmd")
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := newContext(cmd, a.log)
	defer cancel()

	market, err := suppliers.NewService(a.client, a.cache).MarketSuppliers(ctx)
	if err != nil {
		return handleError(a, err, suppliers.UserMessage)
	}
	return render(cmd, market, func(w io.Writer) {
		fmt.Fprintln(w, "ID\tNOM\tCATÉGORIE")
		for _, m := range market {
			fmt.Fprintf(w, "%s\t%s\t%s\n", m.ID, m.Name, suppliers.DisplayLabel(m.Label))
		}
	})
}

func runAliases(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd.Context(), "aliases-cmd")
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

	aliases, err := a.client.ListEmailAliases(ctx, api.ListOptions{EstablishmentID: establishmentID})
	if err != nil {
		a.log.Error().Err(err).Msg("Failed to list email aliases")
		return fmt.Errorf("impossible de charger les adresses de réception")
	}
	return render(cmd, aliases, func(w io.Writer) {
		for _, alias := range aliases {
			fmt.Fprintln(w, alias.Alias)
		}
	})
}
