// Command test-drive is a manual test for the motion characteristic.
// It connects to a racer, waits 3 seconds, then sweeps the steering from
// full left to full right and ramps the speed up and back down.
// Put the racer on a stand before the countdown finishes.
//
// Usage:
//
//	go run ./cmd/test-drive --address AA:BB:CC:DD:EE:FF [--max-speed 120]
package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/chaz8081/botracer/internal/ble"
	"github.com/chaz8081/botracer/internal/dispatch"
	"github.com/chaz8081/botracer/internal/racer"
	"github.com/chaz8081/botracer/internal/store"
	"github.com/chaz8081/botracer/internal/watch"
)

func main() {
	address := flag.String("address", "", "racer address")
	maxSpeed := flag.Float64("max-speed", 120, "top speed of the ramp (0-255)")
	step := flag.Duration("step", 50*time.Millisecond, "delay between frames")
	flag.Parse()

	if *address == "" {
		fmt.Println("Error: --address is required")
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
	defer p.Disconnect()

	// Settings stay in memory; this tool never touches the user's store.
	pool := dispatch.NewPool(dispatch.Options{Workers: 1, QueueSize: 8}, logger)
	defer pool.Close()
	c, err := racer.New(p, racer.Deps{
		Store:     store.NewMemoryStore(),
		Registrar: watch.NewManager(pool, watch.DefaultOptions(), logger),
		Pool:      pool,
		Logger:    logger,
	})
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	fmt.Printf("Connected to %s. Driving in 3 seconds...\n", c)
	for i := 3; i > 0; i-- {
		fmt.Printf("%d...\n", i)
		time.Sleep(time.Second)
	}

	send := func(r *dispatch.Result) bool {
		if err := r.Wait(context.Background()); err != nil {
			fmt.Printf("Error: %v\n", err)
			return false
		}
		time.Sleep(*step)
		return true
	}

	fmt.Println("Steering sweep")
	for v := 0.0; v <= 255; v += 5 {
		if !send(c.Steer(v)) {
			return
		}
	}
	if !send(c.Steer(127)) {
		return
	}

	fmt.Println("Speed ramp")
	for v := 0.0; v <= *maxSpeed; v += 5 {
		if !send(c.SetSpeed(v)) {
			return
		}
	}
	for v := *maxSpeed; v >= 0; v -= 5 {
		if !send(c.SetSpeed(v)) {
			return
		}
	}
	send(c.SetSpeed(0))

	fmt.Printf("\nDone! Last frame %s\n", c.Motion())
}
