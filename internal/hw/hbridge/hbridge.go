package hbridge

import (
	"time"

	"github.com/cjeanneret/FocusGo/internal/debug"
	"github.com/cjeanneret/FocusGo/internal/hw/gpio"
)

// Pins holds the BCM pin assignment for a TB6612FNG channel.
type Pins struct {
	In1     int // AIN1, direction line A
	In2     int // AIN2, direction line B
	Pulse   int // PWMA, one step per high pulse
	Standby int // STBY, active HIGH (LOW cuts drive current)
}

// TB6612 drives one channel of a TB6612FNG dual H-bridge, the board used
// by the Moonlite focuser stepper. Directions map to the chip truth table:
// IN1 high/IN2 low drives inward, IN1 low/IN2 high drives outward,
// both low is stop. Both high (short brake) is never produced.
type TB6612 struct {
	gpio     gpio.Driver
	pins     Pins
	minPulse time.Duration // smallest high time the motor registers
}

// New configures the four lines as outputs and leaves the bridge in
// standby with all outputs low.
func New(g gpio.Driver, pins Pins, minPulse time.Duration) (*TB6612, error) {
	if minPulse <= 0 {
		minPulse = 1 * time.Millisecond
	}

	for _, pin := range []int{pins.In1, pins.In2, pins.Pulse, pins.Standby} {
		if err := g.SetupPin(pin, gpio.Output); err != nil {
			return nil, err
		}
		if err := g.WritePin(pin, gpio.Low); err != nil {
			return nil, err
		}
	}

	return &TB6612{
		gpio:     g,
		pins:     pins,
		minPulse: minPulse,
	}, nil
}

// SetDirection asserts one of the two mutually exclusive drive states and
// brings the bridge out of standby. The line being cleared is written
// first so the pair never passes through the both-high brake state.
func (t *TB6612) SetDirection(outward bool) error {
	debug.Trace("TB6612: direction %s", directionName(outward))

	set, clear := t.pins.In1, t.pins.In2
	if outward {
		set, clear = t.pins.In2, t.pins.In1
	}
	if err := t.gpio.WritePin(clear, gpio.Low); err != nil {
		return err
	}
	if err := t.gpio.WritePin(set, gpio.High); err != nil {
		return err
	}
	// STBY does not auto-clear; every move must re-assert it.
	return t.gpio.WritePin(t.pins.Standby, gpio.High)
}

// Pulse raises the pulse line, holds it for at least the minimum pulse
// width, and lowers it. A highTime below the minimum is clamped up, never
// down, so the motor always registers the step.
func (t *TB6612) Pulse(highTime time.Duration) error {
	if highTime < t.minPulse {
		highTime = t.minPulse
	}
	if err := t.gpio.WritePin(t.pins.Pulse, gpio.High); err != nil {
		return err
	}
	time.Sleep(highTime)
	return t.gpio.WritePin(t.pins.Pulse, gpio.Low)
}

// SetStandby cuts drive current when enabled. The motor holds no torque
// in standby.
func (t *TB6612) SetStandby(enabled bool) error {
	debug.Trace("TB6612: standby %v", enabled)

	level := gpio.High
	if enabled {
		level = gpio.Low
	}
	return t.gpio.WritePin(t.pins.Standby, level)
}

// Stop deterministically returns both direction lines and the pulse line
// to their zero state regardless of current state. Best effort, never
// blocks and has no error path.
func (t *TB6612) Stop() {
	debug.Trace("TB6612: stop")

	_ = t.gpio.WritePin(t.pins.Pulse, gpio.Low)
	_ = t.gpio.WritePin(t.pins.In1, gpio.Low)
	_ = t.gpio.WritePin(t.pins.In2, gpio.Low)
}

// EmergencyStop zeroes all outputs and enters standby. Used on shutdown.
func (t *TB6612) EmergencyStop() {
	t.Stop()
	_ = t.gpio.WritePin(t.pins.Standby, gpio.Low)
}

func directionName(outward bool) string {
	if outward {
		return "outward"
	}
	return "inward"
}
