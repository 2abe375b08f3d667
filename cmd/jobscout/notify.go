package main

import (
	"github.com/spf13/cobra"

	"github.com/amishk599/jobscout/internal/config"
	"github.com/amishk599/jobscout/internal/notifier"
)

var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Notification subcommands",
}

var notifyTestCmd = &cobra.Command{
	Use:   "test",
	Short: "Send a test notification",
	Long:  "Sends a sample posting through the configured notifier (and Redis publisher, if set).",
	Args:  cobra.NoArgs,
	RunE:  runNotifyTest,
}

func init() {
	rootCmd.AddCommand(notifyCmd)
	notifyCmd.AddCommand(notifyTestCmd)
}

func runNotifyTest(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true
	logger := setupLogger(debug)

	cfg, err := config.LoadResolved(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return err
	}

	n, closeNotifier, err := setupNotifier(cfg, newHTTPClient(), logger)
	if err != nil {
		return err
	}
	defer closeNotifier()

	if err := notifier.SendTestMessage(n); err != nil {
		logger.Error("test notification failed", "error", err)
		return err
	}
	logger.Info("test notification sent successfully")
	return nil
}
