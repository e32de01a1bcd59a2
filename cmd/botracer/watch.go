package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/chaz8081/botracer/internal/alert"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stay connected and report when the racer disconnects",
	Long: `Connects to the racer, arms its disconnection watcher from the stored
alert settings and runs until interrupted. Each disconnection rings the
terminal bell when phone alerts are on; with watch.maintain_connection the
racer is reconnected with backoff.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().Bool("quiet", false, "report disconnections in the log instead of on stdout")
}

func runWatch(cmd *cobra.Command, _ []string) error {
	var notifier alert.Notifier = alert.NewWriterNotifier(cmd.OutOrStdout())
	if quiet, _ := cmd.Flags().GetBool("quiet"); quiet {
		notifier = nil
	}

	s, err := openSession(cmd, notifier)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := s.connect(ctx)
	if err != nil {
		return err
	}
	printSettings(cmd.OutOrStdout(), c)
	if c.Registration() == nil {
		fmt.Fprintln(cmd.OutOrStdout(), "No alerts enabled; enable them with 'botracer alerts set'.")
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Watching. Ctrl+C to quit.")

	<-ctx.Done()
	s.logger.Info("[WATCH] shutting down")
	return nil
}
