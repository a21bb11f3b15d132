package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"restodash/internal/format"
	"restodash/internal/invoices"
)

var articlesCmd = &cobra.Command{
	Use:     "articles",
	Aliases: []string{"article"},
	Short:   "Edit invoice lines",
}

var articlesUpdateCmd = &cobra.Command{
	Use:   "update [article-id]",
	Short: "Edit an invoice line",
	Long: `Edit an invoice line. Only the given flags are changed. Numbers are typed
the French way, e.g. "12,50".`,
	Example: `  restodash articles update art-3 --quantity "2,5" --unit-price "4,20"`,
	Args:    cobra.ExactArgs(1),
	RunE:    runArticlesUpdate,
}

func init() {
	rootCmd.AddCommand(articlesCmd)
	articlesCmd.AddCommand(articlesUpdateCmd)

	articlesUpdateCmd.Flags().String("name", "", "Article name")
	articlesUpdateCmd.Flags().String("unit", "", "Unit (kg, L, pièce...)")
	articlesUpdateCmd.Flags().String("quantity", "", "Quantity")
	articlesUpdateCmd.Flags().String("unit-price", "", "Unit price")
	articlesUpdateCmd.Flags().String("total", "", "Line total")
	articlesUpdateCmd.Flags().String("duties", "", "Duties and taxes")
	articlesUpdateCmd.Flags().String("discount", "", "Discount")
}

func runArticlesUpdate(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), "articles-cmd")
	if err != nil {
		return err
	}
	defer a.Close()

	var in invoices.ArticleInput
	in.Name, _ = cmd.Flags().GetString("name")
	in.Unit, _ = cmd.Flags().GetString("unit")
	in.Quantity, _ = cmd.Flags().GetString("quantity")
	in.UnitPrice, _ = cmd.Flags().GetString("unit-price")
	in.Total, _ = cmd.Flags().GetString("total")
	in.Duties, _ = cmd.Flags().GetString("duties")
	in.Discount, _ = cmd.Flags().GetString("discount")

	ctx, cancel := newContext(cmd, a.log)
	defer cancel()

	article, err := invoices.NewEditor(a.client).UpdateArticle(ctx, args[0], in)
	if err != nil {
		return handleError(a, err, invoices.UserMessage)
	}

	return render(cmd, article, func(w io.Writer) {
		fmt.Fprintf(w, "Article %s mis à jour\n", article.Name)
		fmt.Fprintf(w, "Quantité\t%s %s\n", format.Quantity(article.Quantity), article.Unit)
		fmt.Fprintf(w, "Prix unitaire\t%s\n", format.CurrencyValue(article.UnitPrice))
		fmt.Fprintf(w, "Total\t%s\n", format.CurrencyValue(article.Total))
	})
}
