package racer

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/chaz8081/botracer/internal/ble"
	"github.com/chaz8081/botracer/internal/ble/protocol"
	"github.com/chaz8081/botracer/internal/dispatch"
)

// Steer sets x = 255 - round(v), y = round(v) and sends the motion frame.
// Values wrap modulo 256. Frames from concurrent calls may reach the racer
// in any order.
func (c *Controller) Steer(v float64) *dispatch.Result {
	return c.move("steer", v, protocol.MotionFrame.WithSteer)
}

// SetSpeed sets z = 255 - round(v) and sends the motion frame.
func (c *Controller) SetSpeed(v float64) *dispatch.Result {
	return c.move("speed", v, protocol.MotionFrame.WithSpeed)
}

func (c *Controller) move(op string, v float64, apply func(protocol.MotionFrame, float64) (protocol.MotionFrame, error)) *dispatch.Result {
	c.mu.Lock()
	next, err := apply(c.motion, v)
	if err != nil {
		c.mu.Unlock()
		c.logger.WithField("value", v).Warn("[RACER] rejected " + op + " value")
		return dispatch.Resolved(err)
	}
	c.motion = next
	c.mu.Unlock()

	log := c.logger.WithFields(logrus.Fields{"op": op, "value": v, "frame": next.String()})
	log.Debug("[RACER] sending motion frame")

	data := next.Marshal()
	return c.pool.Submit("motion:"+c.addressID, func(ctx context.Context) error {
		char, err := c.racerCharacteristic()
		if err != nil {
			log.WithError(err).Warn("[RACER] motion characteristic unavailable")
			return err
		}
		if err := char.WriteWithoutResponse(data); err != nil {
			log.WithError(err).Warn("[RACER] motion write failed")
			return err
		}
		return nil
	})
}

// racerCharacteristic resolves the vendor write characteristic once and
// caches it. Failed lookups are retried on the next command.
func (c *Controller) racerCharacteristic() (ble.Characteristic, error) {
	c.mu.Lock()
	char := c.motionChar
	c.mu.Unlock()
	if char != nil {
		return char, nil
	}

	char, err := c.peripheral.DiscoverCharacteristic(ble.RacerServiceUUID, ble.RacerWriteCharUUID)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.motionChar = char
	c.mu.Unlock()
	return char, nil
}
