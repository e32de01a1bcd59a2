package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/chaz8081/botracer/internal/dispatch"
	"github.com/chaz8081/botracer/internal/racer"
)

var steerCmd = &cobra.Command{
	Use:   "steer <value>",
	Short: "Send a steering value (0-255, 127 is straight ahead)",
	Long: `Sends one motion frame with the steering bytes set from <value>.

Values are rounded to the nearest integer and wrap modulo 256.

Examples:
  botracer steer 127 -a AA:BB:CC:DD:EE:FF
  botracer steer 200`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMotion(cmd, args[0], (*racer.Controller).Steer)
	},
}

var speedCmd = &cobra.Command{
	Use:   "speed <value>",
	Short: "Send a speed value (0 stops, 255 is full speed)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMotion(cmd, args[0], (*racer.Controller).SetSpeed)
	},
}

func runMotion(cmd *cobra.Command, arg string, send func(*racer.Controller, float64) *dispatch.Result) error {
	v, err := strconv.ParseFloat(arg, 64)
	if err != nil {
		return fmt.Errorf("invalid value %q: %w", arg, err)
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
	if err := send(c, v).Wait(cmd.Context()); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s: sent %s\n", c, c.Motion())
	return nil
}
