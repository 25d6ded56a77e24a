package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/user/crewdesk/internal/types"
)

func init() {
	rootCmd.AddCommand(notifyCmd)
	notifyCmd.AddCommand(notifyListCmd, notifyReadCmd)
	notifyListCmd.Flags().Bool("unread", false, "only unread notifications")
}

var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Read the daemon's notifications",
}

var notifyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List notifications, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newDaemonClient(loadConfig())
		if err != nil {
			return err
		}
		var resp struct {
			Unread        int                  `json:"unread"`
			Notifications []types.Notification `json:"notifications"`
		}
		if err := client.get(cmd.Context(), "/api/notifications", &resp); err != nil {
			return err
		}
		unreadOnly, _ := cmd.Flags().GetBool("unread")
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%d unread\n", resp.Unread)
		for _, n := range resp.Notifications {
			if unreadOnly && n.Read {
				continue
			}
			fmt.Fprintln(out, renderNotification(n))
		}
		return nil
	},
}

var notifyReadCmd = &cobra.Command{
	Use:   "read",
	Short: "Mark every notification as read",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newDaemonClient(loadConfig())
		if err != nil {
			return err
		}
		var resp struct {
			Marked int `json:"marked"`
		}
		if err := client.post(cmd.Context(), "/api/notifications/read", &resp); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Marked %d notifications as read.\n", resp.Marked)
		return nil
	},
}
