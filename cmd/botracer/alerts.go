package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/chaz8081/botracer/internal/ble/protocol"
	"github.com/chaz8081/botracer/internal/dispatch"
	"github.com/chaz8081/botracer/internal/racer"
)

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Show or change a racer's disconnection alerts",
}

var alertsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the alert settings of the racer",
	Args:  cobra.NoArgs,
	RunE:  runAlertsShow,
}

var alertsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Change the alert settings of the racer",
	Long: `Changes the alert settings, stores them, pushes the alert level to the
racer when device alerts are on, and arms or disarms the disconnection
watcher.

Only the flags given are changed.

Examples:
  botracer alerts set --phone
  botracer alerts set --device --level high
  botracer alerts set --phone=false --device=false`,
	Args: cobra.NoArgs,
	RunE: runAlertsSet,
}

func init() {
	alertsCmd.AddCommand(alertsShowCmd)
	alertsCmd.AddCommand(alertsSetCmd)

	alertsSetCmd.Flags().Bool("phone", false, "alert on this machine when the racer disconnects")
	alertsSetCmd.Flags().Bool("device", false, "have the racer alert when the link is lost")
	alertsSetCmd.Flags().String("level", "", "racer alert level: none, mild or high")
}

func runAlertsShow(cmd *cobra.Command, _ []string) error {
	s, err := openSession(cmd, nil)
	if err != nil {
		return err
	}
	defer s.Close()

	c, err := s.connect(cmd.Context())
	if err != nil {
		return err
	}
	printSettings(cmd.OutOrStdout(), c)
	return nil
}

func runAlertsSet(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	if !flags.Changed("phone") && !flags.Changed("device") && !flags.Changed("level") {
		return errors.New("nothing to change: pass --phone, --device or --level")
	}

	var level protocol.AlertLevel
	if flags.Changed("level") {
		raw, _ := flags.GetString("level")
		l, err := protocol.ParseAlertLevel(raw)
		if err != nil {
			return err
		}
		level = l
	}

	s, err := openSession(cmd, nil)
	if err != nil {
		return err
	}
	defer s.Close()

	c, err := s.connect(cmd.Context())
	if err != nil {
		return err
	}

	// Level first so enabling device alerts pushes the new level.
	var results []*dispatch.Result
	if flags.Changed("level") {
		results = append(results, c.SetAlertLevel(level))
	}
	if flags.Changed("phone") {
		v, _ := flags.GetBool("phone")
		results = append(results, c.SetAlertOnPhone(v))
	}
	if flags.Changed("device") {
		v, _ := flags.GetBool("device")
		results = append(results, c.SetAlertOnDevice(v))
	}

	var errs []error
	for _, r := range results {
		if err := r.Wait(cmd.Context()); err != nil {
			errs = append(errs, err)
		}
	}

	printSettings(cmd.OutOrStdout(), c)
	return errors.Join(errs...)
}

func printSettings(w io.Writer, c *racer.Controller) {
	s := c.Settings()
	fmt.Fprintf(w, "%s (%s)\n", c, c.AddressID())
	fmt.Fprintf(w, "  Phone alert:   %t\n", s.AlertOnPhone)
	fmt.Fprintf(w, "  Device alert:  %t\n", s.AlertOnDevice)
	fmt.Fprintf(w, "  Alert level:   %s\n", s.Level)
	fmt.Fprintf(w, "  Link loss:     %t\n", c.HasLinkLossService())
	fmt.Fprintf(w, "  Watcher armed: %t\n", c.Registration() != nil)
}
