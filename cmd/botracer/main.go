// Command botracer drives a CannyBot racer over Bluetooth LE and manages
// its link-loss alert settings.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/chaz8081/botracer/internal/ble"
	"github.com/chaz8081/botracer/internal/ble/protocol"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "botracer",
	Short: "Drive a CannyBot racer and manage its disconnection alerts",
	Long: `botracer talks to a CannyBot racer over Bluetooth Low Energy:

- steer and set speed
- configure whether the phone, the racer, or both alert when the link drops
- watch a racer and report disconnections while the command runs

Settings are stored per racer and survive restarts.`,
	Version:      version,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		// Ctrl+C is a normal exit
		if errors.Is(err, context.Canceled) {
			return
		}
		color.New(color.FgRed).Fprint(os.Stderr, "ERROR: ")
		fmt.Fprintln(os.Stderr, formatUserError(err))
		os.Exit(1)
	}
}

func init() {
	rootCmd.SilenceErrors = true

	rootCmd.AddCommand(steerCmd)
	rootCmd.AddCommand(speedCmd)
	rootCmd.AddCommand(alertsCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(tasksCmd)
	rootCmd.AddCommand(initCmd)

	rootCmd.PersistentFlags().String("config", "", "path to config file (default: ~/.config/botracer/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error); overrides the config file")
	rootCmd.PersistentFlags().StringP("address", "a", "", "racer address; defaults to device.address from the config file")
}

// formatUserError turns the errors users commonly hit into a hint.
func formatUserError(err error) string {
	var nf *ble.NotFoundError
	switch {
	case errors.As(err, &nf):
		return fmt.Sprintf("%s (is this a CannyBot racer?)", err)
	case errors.Is(err, ble.ErrNotConnected):
		return fmt.Sprintf("%s (is the racer switched on and in range?)", err)
	case errors.Is(err, protocol.ErrMalformedRecord):
		return fmt.Sprintf("%s (delete the entry from the settings file to reset it)", err)
	}
	return err.Error()
}
