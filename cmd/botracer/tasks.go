package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/chaz8081/botracer/internal/ble"
	"github.com/chaz8081/botracer/internal/ble/protocol"
	"github.com/chaz8081/botracer/internal/store"
)

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "List stored racer settings and whether each arms a watcher",
	Args:  cobra.NoArgs,
	RunE:  runTasks,
}

var forgetCmd = &cobra.Command{
	Use:   "forget <address>",
	Short: "Delete the stored settings of an unpaired racer",
	Args:  cobra.ExactArgs(1),
	RunE:  runForget,
}

func init() {
	tasksCmd.AddCommand(forgetCmd)
}

func openStore(cmd *cobra.Command) (*store.FileStore, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return store.OpenFileStore(cfg.Store.Path)
}

func runTasks(cmd *cobra.Command, _ []string) error {
	st, err := openStore(cmd)
	if err != nil {
		return err
	}
	keys, err := st.Keys()
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No racers configured.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TASK\tPHONE\tDEVICE\tLEVEL\tWATCHER")
	for _, key := range keys {
		record, _, err := st.Get(key)
		if err != nil {
			return err
		}
		settings, err := protocol.UnmarshalRecord(record)
		if err != nil {
			fmt.Fprintf(w, "%s\t-\t-\t-\tinvalid record %q\n", key, record)
			continue
		}
		fmt.Fprintf(w, "%s\t%t\t%t\t%s\t%t\n", key, settings.AlertOnPhone, settings.AlertOnDevice, settings.Level, settings.WantsWatcher())
	}
	return w.Flush()
}

func runForget(cmd *cobra.Command, args []string) error {
	st, err := openStore(cmd)
	if err != nil {
		return err
	}
	id, err := ble.AddressID(args[0])
	if err != nil {
		return err
	}
	if err := st.Delete(id); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Forgot %s\n", id)
	return nil
}
