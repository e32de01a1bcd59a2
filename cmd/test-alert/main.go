// Command test-alert is a manual test for the disconnection watcher.
// Run it, then switch the racer off or walk out of range to see alerts.
// Press Ctrl+C to exit.
//
// Usage:
//
//	go run ./cmd/test-alert --address AA:BB:CC:DD:EE:FF [--level high]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/chaz8081/botracer/internal/alert"
	"github.com/chaz8081/botracer/internal/ble"
	"github.com/chaz8081/botracer/internal/ble/protocol"
	"github.com/chaz8081/botracer/internal/dispatch"
	"github.com/chaz8081/botracer/internal/racer"
	"github.com/chaz8081/botracer/internal/store"
	"github.com/chaz8081/botracer/internal/watch"
)

func main() {
	address := flag.String("address", "", "racer address")
	levelName := flag.String("level", "mild", "racer alert level: none, mild or high")
	flag.Parse()

	if *address == "" {
		fmt.Println("Error: --address is required")
		return
	}
	level, err := protocol.ParseAlertLevel(*levelName)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)

	adapter := ble.NewTinyGoAdapter()
	if err := adapter.Enable(); err != nil {
		fmt.Printf("Error: enable bluetooth: %v\n", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	p, err := adapter.Connect(ctx, *address)
	cancel()
	if err != nil {
		fmt.Printf("Error: connect: %v\n", err)
		return
	}

	pool := dispatch.NewPool(dispatch.DefaultOptions(), logger)
	st := store.NewMemoryStore()
	manager := watch.NewManager(pool, watch.DefaultOptions(), logger)
	manager.Handle(alert.EntryPoint, alert.NewTask(st, alert.NewWriterNotifier(os.Stdout), logger))

	c, err := racer.New(p, racer.Deps{
		Store:              st,
		Registrar:          manager,
		Pool:               pool,
		Logger:             logger,
		MaintainConnection: true,
	})
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	waitCtx := context.Background()
	if err := c.SetAlertLevel(level).Wait(waitCtx); err != nil {
		fmt.Printf("Error: %v\n", err)
	}
	if err := c.SetAlertOnPhone(true).Wait(waitCtx); err != nil {
		fmt.Printf("Error: %v\n", err)
	}
	if err := c.SetAlertOnDevice(c.HasLinkLossService()).Wait(waitCtx); err != nil {
		fmt.Printf("Error: %v\n", err)
	}

	fmt.Printf("Watching %s (link loss service: %t, level %s)\n", c, c.HasLinkLossService(), c.AlertLevel())
	fmt.Println("Press Ctrl+C to exit.")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	fmt.Println("\nShutting down...")

	manager.Close()
	pool.Close()
	_ = p.Disconnect()
}
