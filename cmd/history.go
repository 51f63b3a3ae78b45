package cmd

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"dailysync/internal/model"
	"dailysync/internal/repository"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var (
	historyN      int
	historyJob    uint
	historyFailed bool
	historyStats  bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View sync run history",
	RunE: func(cmd *cobra.Command, args []string) error {
		if historyStats {
			var stats repository.Stats
			if err := call(http.MethodGet, "/history/stats", nil, &stats); err != nil {
				return err
			}
			fmt.Printf("runs: %d  success: %d  failed: %d  skipped: %d\n",
				stats.Total, stats.Success, stats.Failed, stats.Skipped)
			return nil
		}

		q := url.Values{}
		q.Set("n", strconv.Itoa(historyN))
		if historyJob != 0 {
			q.Set("job", strconv.FormatUint(uint64(historyJob), 10))
		}
		if historyFailed {
			q.Set("failed", "true")
		}

		var runs []model.Run
		if err := call(http.MethodGet, "/history?"+q.Encode(), nil, &runs); err != nil {
			return err
		}

		if len(runs) == 0 {
			fmt.Println("no history yet")
			return nil
		}

		for _, r := range runs {
			status := "✓"
			switch r.Status {
			case model.RunFailed:
				status = "✗"
			case model.RunSkipped:
				status = "-"
			}

			fmt.Printf("%s [%s] job %-3d %-9s %4d files %8s  %s -> %s\n",
				status,
				r.StartedAt.Format("2006-01-02 15:04:05"),
				r.JobID,
				r.Origin,
				r.Files,
				humanize.Bytes(uint64(r.Bytes)),
				r.SrcPath,
				r.DstPath,
			)
			if r.ErrMsg != "" {
				fmt.Printf("    %s (%s)\n", r.ErrMsg, humanize.Time(r.FinishedAt))
			}
		}

		return nil
	},
}

func init() {
	historyCmd.Flags().IntVar(&historyN, "n", 20, "number of history entries to show")
	historyCmd.Flags().UintVar(&historyJob, "job", 0, "only show runs of this job")
	historyCmd.Flags().BoolVar(&historyFailed, "failed", false, "only show failed runs")
	historyCmd.Flags().BoolVar(&historyStats, "stats", false, "show run totals")
	rootCmd.AddCommand(historyCmd)
}
