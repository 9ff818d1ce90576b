package commands

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/embassy-watch/embassy-eye/config"
	"github.com/embassy-watch/embassy-eye/store"
)

var (
	statsDays    *int
	statsLimit   *int
	statsEmbassy *string
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print run statistics from the local database.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()

		st, err := store.Open(cfg.Store.Path)
		if err != nil {
			return err
		}
		defer st.Close()

		counts, err := st.OutcomeSummary(*statsDays, *statsEmbassy)
		if err != nil {
			return err
		}

		fmt.Printf("Outcome summary, last %d day(s):\n", *statsDays)
		if len(counts) == 0 {
			fmt.Println("  no runs recorded")
		} else {
			w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
			fmt.Fprintln(w, "  LOCATION\tOUTCOME\tCOUNT")
			for _, c := range counts {
				fmt.Fprintf(w, "  %s\t%s\t%d\n", c.Location, c.Outcome, c.Count)
			}
			w.Flush()
		}

		runs, err := st.RecentRuns(store.RunFilter{
			Embassy: *statsEmbassy,
			Days:    *statsDays,
			Limit:   *statsLimit,
		})
		if err != nil {
			return err
		}

		fmt.Printf("\nRecent runs (%d):\n", len(runs))
		w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
		fmt.Fprintln(w, "  RUN AT\tLOCATION\tOUTCOME\tNOTES")
		for _, r := range runs {
			fmt.Fprintf(w, "  %s\t%s\t%s\t%s\n",
				r.RunAt.Local().Format(time.DateTime), r.Location, r.Outcome, r.Notes)
		}
		w.Flush()

		blocked, err := st.RecentBlockedIPs(time.Duration(*statsDays)*24*time.Hour, *statsLimit)
		if err != nil {
			return err
		}
		if len(blocked) > 0 {
			fmt.Printf("\nBlocked IPs (%d):\n", len(blocked))
			w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
			fmt.Fprintln(w, "  BLOCKED AT\tIP\tCOUNTRY")
			for _, b := range blocked {
				fmt.Fprintf(w, "  %s\t%s\t%s\n",
					b.BlockedAt.Local().Format(time.DateTime), b.IPAddress, b.Country)
			}
			w.Flush()
		}
		return nil
	},
}

func init() {
	statsDays = statsCmd.Flags().Int("days", 7, "Lookback window in days.")
	statsLimit = statsCmd.Flags().Int("limit", 100, "Maximum rows per section.")
	statsEmbassy = statsCmd.Flags().String("embassy", "", "Filter by embassy identifier.")
	rootCmd.AddCommand(statsCmd)
}
