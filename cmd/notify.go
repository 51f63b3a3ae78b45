package cmd

import (
	"fmt"
	"net/http"

	"dailysync/internal/notify"

	"github.com/spf13/cobra"
)

var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Manage notifications",
}

var notifyToggleCmd = &cobra.Command{
	Use:   "toggle",
	Short: "Toggle notifications for all jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		var result struct {
			Enabled bool `json:"notifications_enabled"`
		}
		if err := call(http.MethodPost, "/notifications/toggle", nil, &result); err != nil {
			return err
		}

		fmt.Printf("notifications %s\n", onOff(result.Enabled))
		return nil
	},
}

var notifyListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show recently delivered notifications",
	RunE: func(cmd *cobra.Command, args []string) error {
		var notes []notify.Notification
		if err := call(http.MethodGet, "/notifications", nil, &notes); err != nil {
			return err
		}

		if len(notes) == 0 {
			fmt.Println("no notifications")
			return nil
		}
		printNotifications(notes)
		return nil
	},
}

func printNotifications(notes []notify.Notification) {
	for _, n := range notes {
		fmt.Printf("[%s] %-5s %s\n",
			n.CreatedAt.Format("2006-01-02 15:04:05"), n.Level, n.Message)
	}
}

func init() {
	notifyCmd.AddCommand(notifyToggleCmd, notifyListCmd)
	rootCmd.AddCommand(notifyCmd)
}
