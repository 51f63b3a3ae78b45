package cmd

import (
	"net/http"

	"dailysync/internal/notify"

	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show notifications as they happen and print the ones held back",
	RunE: func(cmd *cobra.Command, args []string) error {
		var result struct {
			Delivered []notify.Notification `json:"delivered"`
		}
		if err := call(http.MethodPost, "/show", nil, &result); err != nil {
			return err
		}

		printNotifications(result.Delivered)
		return nil
	},
}

var hideCmd = &cobra.Command{
	Use:   "hide",
	Short: "Hold scheduled notifications until the next show",
	RunE: func(cmd *cobra.Command, args []string) error {
		return call(http.MethodPost, "/hide", nil, nil)
	},
}

func init() {
	rootCmd.AddCommand(showCmd, hideCmd)
}
