package cmd

import (
	"errors"

	"github.com/spf13/cobra"
)

func newXReportCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "xreport",
		Short: "Generate and close daily cash reconciliation reports",
	}
	cmd.AddCommand(newXReportGenerateCommand(opts))
	cmd.AddCommand(newXReportCloseCommand(opts))
	return cmd
}

func newXReportGenerateCommand(opts *rootOptions) *cobra.Command {
	var tenant, date, cashier, user string

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Summarize a day's completed payments into an X-Report",
		Example: `  # Today's report in the business timezone
  ledger xreport generate --tenant acme

  # A past day, one cashier, as YAML
  ledger xreport generate --tenant acme --date 2026-03-15 --cashier Mona -o yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := bootstrap("xreport")
			if err != nil {
				return err
			}
			defer rt.Close()

			reportDate, err := rt.ledger.Reports.ReportDate(date)
			if err != nil {
				return err
			}
			var cashierName *string
			if cashier != "" {
				cashierName = &cashier
			}
			report, err := rt.ledger.Reports.Generate(cmd.Context(), operator(tenant, user), reportDate, cashierName)
			if err != nil {
				return err
			}
			return newPrinter(opts, cmd.OutOrStdout()).print(report)
		},
	}

	cmd.Flags().StringVar(&tenant, "tenant", "", "tenant id")
	cmd.Flags().StringVar(&date, "date", "", "report date (YYYY-MM-DD, default: today)")
	cmd.Flags().StringVar(&cashier, "cashier", "", "only include payments taken by this cashier")
	cmd.Flags().StringVar(&user, "user", "cli", "operator recorded on the report")
	_ = cmd.MarkFlagRequired("tenant")
	return cmd
}

func newXReportCloseCommand(opts *rootOptions) *cobra.Command {
	var (
		tenant, user string
		id           uint
	)

	cmd := &cobra.Command{
		Use:   "close",
		Short: "Close an X-Report, making it immutable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if id == 0 {
				return errors.New("--id is required")
			}
			rt, err := bootstrap("xreport")
			if err != nil {
				return err
			}
			defer rt.Close()

			report, err := rt.ledger.Reports.Close(cmd.Context(), operator(tenant, user), id)
			if err != nil {
				return err
			}
			return newPrinter(opts, cmd.OutOrStdout()).print(report)
		},
	}

	cmd.Flags().StringVar(&tenant, "tenant", "", "tenant id")
	cmd.Flags().UintVar(&id, "id", 0, "report id")
	cmd.Flags().StringVar(&user, "user", "cli", "operator recorded as closing the report")
	_ = cmd.MarkFlagRequired("tenant")
	return cmd
}
