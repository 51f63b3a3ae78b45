package cmd

import (
	"fmt"
	"net/http"
	"os"
	"text/tabwriter"

	"dailysync/internal/model"

	"github.com/spf13/cobra"
)

var (
	jobSrc   string
	jobDst   string
	jobTime  string
	jobQuiet bool
)

var jobCmd = &cobra.Command{
	Use:   "job",
	Short: "Manage jobs",
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

var jobListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		var result struct {
			Jobs []model.JobView `json:"jobs"`
		}
		if err := call(http.MethodGet, "/jobs", nil, &result); err != nil {
			return err
		}

		if len(result.Jobs) == 0 {
			fmt.Println("no jobs configured")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "ID\tTIME\tNOTIFY\tSTATUS\tSRC\tDST")
		for _, j := range result.Jobs {
			trigger := j.TriggerTime
			if trigger == "" {
				trigger = "-"
			}

			status := "idle"
			if j.Running {
				status = fmt.Sprintf("%d%%", j.Progress)
			}

			_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
				j.ID, trigger, onOff(j.NotificationsEnabled), status, j.SourcePath, j.DestPath)
		}
		return w.Flush()
	},
}

var jobAddCmd = &cobra.Command{
	Use:   "add [src] [dst]",
	Short: "Add a new job",
	Args:  cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		src, dst := jobSrc, jobDst
		if len(args) > 0 {
			src = args[0]
		}
		if len(args) > 1 {
			dst = args[1]
		}

		body := map[string]any{
			"src":           src,
			"dst":           dst,
			"time":          jobTime,
			"notifications": !jobQuiet,
		}

		var job model.Job
		if err := call(http.MethodPost, "/jobs", body, &job); err != nil {
			return err
		}

		fmt.Printf("job added: id=%d src=%s dst=%s\n", job.ID, job.SourcePath, job.DestPath)
		return nil
	},
}

var jobEditCmd = &cobra.Command{
	Use:   "edit [id] [field] [value]",
	Short: "Change the src, dst, time or notifications of a job",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		body := map[string]string{
			"field": args[1],
			"value": args[2],
		}

		var job model.Job
		if err := call(http.MethodPatch, "/jobs/"+args[0], body, &job); err != nil {
			return err
		}

		fmt.Printf("job %d updated\n", job.ID)
		return nil
	},
}

var jobRemoveCmd = &cobra.Command{
	Use:   "remove [id]",
	Short: "Remove a job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := call(http.MethodDelete, "/jobs/"+args[0], nil, nil); err != nil {
			return err
		}

		fmt.Printf("job %s removed\n", args[0])
		return nil
	},
}

var jobSyncCmd = &cobra.Command{
	Use:   "sync [id]",
	Short: "Sync a job now",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := call(http.MethodPost, "/jobs/"+args[0]+"/sync", nil, nil); err != nil {
			return err
		}

		fmt.Printf("job %s sync started\n", args[0])
		return nil
	},
}

var jobUnscheduleCmd = &cobra.Command{
	Use:   "unschedule [id]",
	Short: "Stop the daily sync of a job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := call(http.MethodDelete, "/jobs/"+args[0]+"/schedule", nil, nil); err != nil {
			return err
		}

		fmt.Printf("job %s auto sync stopped\n", args[0])
		return nil
	},
}

var jobNotifyCmd = &cobra.Command{
	Use:   "notify [id]",
	Short: "Toggle notifications of a job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var job model.Job
		if err := call(http.MethodPost, "/jobs/"+args[0]+"/notifications", nil, &job); err != nil {
			return err
		}

		fmt.Printf("job %d notifications %s\n", job.ID, onOff(job.NotificationsEnabled))
		return nil
	},
}

func init() {
	jobAddCmd.Flags().StringVar(&jobSrc, "src", "", "source folder")
	jobAddCmd.Flags().StringVar(&jobDst, "dst", "", "destination folder")
	jobAddCmd.Flags().StringVar(&jobTime, "time", "", "daily trigger time, HH:MM")
	jobAddCmd.Flags().BoolVar(&jobQuiet, "quiet", false, "disable notifications for this job")

	jobCmd.AddCommand(jobListCmd, jobAddCmd, jobEditCmd, jobRemoveCmd, jobSyncCmd, jobUnscheduleCmd, jobNotifyCmd)
	rootCmd.AddCommand(jobCmd)
}
