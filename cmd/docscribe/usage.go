package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/docscribe/docscribe/internal/usagedb"
)

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Inspect recorded API usage and cost",
}

var usageSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show total pages processed and cost across all runs",
	RunE:  runUsageSummary,
}

var usageListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent conversions",
	RunE:  runUsageList,
}

var usageLimit int

func init() {
	usageCmd.AddCommand(usageSummaryCmd, usageListCmd)
	usageListCmd.Flags().IntVar(&usageLimit, "limit", 20, "Maximum number of records to show")
}

func openUsageStore() (*usagedb.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return usagedb.Open(cfg.DBPath)
}

func runUsageSummary(cmd *cobra.Command, args []string) error {
	store, err := openUsageStore()
	if err != nil {
		return err
	}
	defer store.Close()

	sum, err := store.Summarize()
	if err != nil {
		return err
	}

	fmt.Printf("Conversions: %d\n", sum.Records)
	fmt.Printf("Pages:       %d\n", sum.TotalUnits)
	fmt.Printf("Total cost:  $%.4f\n", sum.TotalCost)
	return nil
}

func runUsageList(cmd *cobra.Command, args []string) error {
	store, err := openUsageStore()
	if err != nil {
		return err
	}
	defer store.Close()

	records, err := store.List(usageLimit)
	if err != nil {
		return err
	}

	if len(records) == 0 {
		fmt.Println("No usage recorded")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tFILE\tPAGES\tCOST\tOUTPUT")
	for _, rec := range records {
		fmt.Fprintf(w, "%s\t%s\t%d\t$%.4f\t%s\n",
			rec.ProcessedAt.Format(time.DateTime), rec.Filename, rec.UnitCount, rec.Cost, rec.OutputPath)
	}
	w.Flush()
	return nil
}
