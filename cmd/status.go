package cmd

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"dailysync/internal/daemon"
	"dailysync/internal/model"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

var statusFollow bool

var statusCmd = &cobra.Command{
	Use:   "status [id]",
	Short: "View daemon status or the progress of a job",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 {
			var st model.ExecutionState
			if err := call(http.MethodGet, "/jobs/"+args[0]+"/progress", nil, &st); err != nil {
				return err
			}
			printState(st)
		} else if err := printDaemonStatus(); err != nil {
			return err
		}

		if statusFollow {
			return follow()
		}
		return nil
	},
}

func printState(st model.ExecutionState) {
	if st.Running {
		fmt.Printf("job %d: syncing %d%%\n", st.JobID, st.Progress)
		return
	}
	fmt.Printf("job %d: idle (last progress %d%%)\n", st.JobID, st.Progress)
}

func printDaemonStatus() error {
	var result struct {
		Jobs          int  `json:"jobs"`
		Notifications bool `json:"notifications_enabled"`
		Visible       bool `json:"visible"`
		NextRun       *struct {
			At   time.Time `json:"at"`
			Jobs []uint    `json:"jobs"`
		} `json:"next_run"`
	}
	if err := call(http.MethodGet, "/status", nil, &result); err != nil {
		return err
	}

	fmt.Printf("jobs: %d\n", result.Jobs)
	fmt.Printf("notifications: %s\n", onOff(result.Notifications))
	fmt.Printf("visible: %t\n", result.Visible)
	if result.NextRun != nil {
		fmt.Printf("next run: %s (jobs %v)\n", result.NextRun.At.Format("2006-01-02 15:04"), result.NextRun.Jobs)
	}
	return nil
}

// follow prints run events from the daemon until interrupted.
func follow() error {
	url := "ws" + strings.TrimPrefix(daemonURL("/events"), "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return fmt.Errorf("daemon not running: %w", err)
	}

	defer func(conn *websocket.Conn) {
		_ = conn.Close()
	}(conn)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	go func() {
		<-sigCh
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_ = conn.Close()
	}()

	for {
		var msg daemon.Message
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return fmt.Errorf("event stream closed: %w", err)
			}
			return nil
		}

		switch msg.Kind {
		case daemon.MessageEvent:
			printEvent(msg.Event)
		case daemon.MessageNotification:
			fmt.Printf("  >> %s\n", msg.Notification.Message)
		}
	}
}

func printEvent(ev *model.Event) {
	if ev == nil {
		return
	}

	ts := ev.Timestamp.Format("15:04:05")
	switch ev.Type {
	case model.EventProgress:
		fmt.Printf("[%s] job %d %3d%%\n", ts, ev.JobID, ev.Percent)
	case model.EventSyncFailed:
		fmt.Printf("[%s] job %d failed: %s\n", ts, ev.JobID, ev.Err)
	default:
		fmt.Printf("[%s] job %d %s\n", ts, ev.JobID, strings.ToLower(string(ev.Type)))
	}
}

func init() {
	statusCmd.Flags().BoolVarP(&statusFollow, "follow", "f", false, "stream run events")
	rootCmd.AddCommand(statusCmd)
}
