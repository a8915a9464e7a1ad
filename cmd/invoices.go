package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"ledger-backend/utils"
)

func newInvoicesCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "invoices",
		Short: "Invoice maintenance",
	}
	cmd.AddCommand(newMarkOverdueCommand(opts))
	return cmd
}

func newMarkOverdueCommand(opts *rootOptions) *cobra.Command {
	var tenant, asOf string

	cmd := &cobra.Command{
		Use:   "mark-overdue",
		Short: "Move unpaid invoices past their due date to Overdue",
		Long: `Moves Issued and PartiallyPaid invoices whose due date is before the given day
to Overdue. Without --tenant every tenant is swept.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := bootstrap("overdue")
			if err != nil {
				return err
			}
			defer rt.Close()

			day := utils.DateOf(time.Now().In(rt.cfg.Location()))
			if asOf != "" {
				if day, err = utils.ParseDate(asOf); err != nil {
					return err
				}
			}
			n, err := rt.ledger.Invoices.MarkOverdue(cmd.Context(), tenant, day)
			if err != nil {
				return err
			}
			return newPrinter(opts, cmd.OutOrStdout()).print(map[string]any{
				"marked": n,
				"as_of":  utils.FormatDate(day),
				"tenant": tenant,
			})
		},
	}

	cmd.Flags().StringVar(&tenant, "tenant", "", "tenant id (default: all tenants)")
	cmd.Flags().StringVar(&asOf, "as-of", "", "business date to compare due dates against (YYYY-MM-DD, default: today)")
	return cmd
}
