package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var reconcileFix bool

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Recompute supplier balances and order paid flags",
	Long: `Recompute every supplier balance from its invoices and payments, and every
order's paid flag from its commission payment. Drift is reported; with --fix
the stored values are rewritten.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, _, err := openLedger()
		if err != nil {
			return err
		}
		balances, err := svc.ReconcileSupplierBalances(cmd.Context(), reconcileFix, actor())
		if err != nil {
			return err
		}
		flags, err := svc.ReconcilePaidFlags(cmd.Context(), reconcileFix, actor())
		if err != nil {
			return err
		}

		if jsonOutput {
			return printJSON(map[string]any{"supplier_balances": balances, "paid_flags": flags})
		}
		if len(balances) == 0 && len(flags) == 0 {
			fmt.Println("no drift")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		if len(balances) > 0 {
			fmt.Fprintln(w, "SUPPLIER\tNAME\tSTORED\tCOMPUTED\tFIXED")
			for _, d := range balances {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%t\n", d.SupplierID, d.Name, d.Stored.StringFixed(2), d.Computed.StringFixed(2), d.Fixed)
			}
		}
		if len(flags) > 0 {
			if len(balances) > 0 {
				fmt.Fprintln(w)
			}
			fmt.Fprintln(w, "ORDER\tSTORED\tCOMPUTED\tFIXED")
			for _, d := range flags {
				fmt.Fprintf(w, "%d\t%t\t%t\t%t\n", d.OrderID, d.Stored, d.Computed, d.Fixed)
			}
		}
		return w.Flush()
	},
}

func init() {
	reconcileCmd.Flags().BoolVar(&reconcileFix, "fix", false, "Rewrite drifted values")
	rootCmd.AddCommand(reconcileCmd)
}
