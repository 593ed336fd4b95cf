package hbridge

import (
	"testing"
	"time"

	"github.com/cjeanneret/FocusGo/internal/hw/gpio"
)

var testPins = Pins{In1: 17, In2: 27, Pulse: 22, Standby: 23}

func newTestBridge(t *testing.T) (*TB6612, *gpio.MockDriver) {
	t.Helper()
	drv := gpio.NewMock()
	b, err := New(drv, testPins, 1*time.Microsecond)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	drv.ResetWrites()
	return b, drv
}

func TestNew_StartsInStandbyAllLow(t *testing.T) {
	drv := gpio.NewMock()
	if _, err := New(drv, testPins, time.Microsecond); err != nil {
		t.Fatalf("New: %v", err)
	}
	for _, pin := range []int{testPins.In1, testPins.In2, testPins.Pulse, testPins.Standby} {
		if drv.LevelOf(pin) != gpio.Low {
			t.Errorf("pin %d should be LOW after init", pin)
		}
	}
}

func TestSetDirection_Inward(t *testing.T) {
	b, drv := newTestBridge(t)
	if err := b.SetDirection(false); err != nil {
		t.Fatalf("SetDirection: %v", err)
	}
	if drv.LevelOf(testPins.In1) != gpio.High {
		t.Error("inward should drive IN1 HIGH")
	}
	if drv.LevelOf(testPins.In2) != gpio.Low {
		t.Error("inward should keep IN2 LOW")
	}
	if drv.LevelOf(testPins.Standby) != gpio.High {
		t.Error("SetDirection should leave standby (STBY HIGH)")
	}
}

func TestSetDirection_Outward(t *testing.T) {
	b, drv := newTestBridge(t)
	if err := b.SetDirection(true); err != nil {
		t.Fatalf("SetDirection: %v", err)
	}
	if drv.LevelOf(testPins.In2) != gpio.High {
		t.Error("outward should drive IN2 HIGH")
	}
	if drv.LevelOf(testPins.In1) != gpio.Low {
		t.Error("outward should keep IN1 LOW")
	}
}

func TestSetDirection_NeverBrakes(t *testing.T) {
	b, drv := newTestBridge(t)
	// Reverse direction repeatedly; IN1 and IN2 must never be HIGH at once.
	for i := 0; i < 4; i++ {
		if err := b.SetDirection(i%2 == 0); err != nil {
			t.Fatalf("SetDirection: %v", err)
		}
	}
	in1, in2 := gpio.Low, gpio.Low
	for _, w := range drv.Writes() {
		switch w.Pin {
		case testPins.In1:
			in1 = w.Level
		case testPins.In2:
			in2 = w.Level
		}
		if in1 == gpio.High && in2 == gpio.High {
			t.Fatal("direction lines passed through the brake state (both HIGH)")
		}
	}
}

func TestPulse_HighThenLow(t *testing.T) {
	b, drv := newTestBridge(t)
	if err := b.Pulse(time.Microsecond); err != nil {
		t.Fatalf("Pulse: %v", err)
	}
	writes := drv.WritesFor(testPins.Pulse)
	if len(writes) != 2 {
		t.Fatalf("pulse should produce 2 writes, got %d", len(writes))
	}
	if writes[0].Level != gpio.High || writes[1].Level != gpio.Low {
		t.Errorf("pulse should be HIGH then LOW, got %v", writes)
	}
}

func TestPulse_ClampsUpToMinimumWidth(t *testing.T) {
	drv := gpio.NewMock()
	b, err := New(drv, testPins, 5*time.Millisecond)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	start := time.Now()
	if err := b.Pulse(0); err != nil {
		t.Fatalf("Pulse: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 5*time.Millisecond {
		t.Errorf("pulse held for %v, want at least the 5ms minimum width", elapsed)
	}
}

func TestStop_ZeroesDriveLines(t *testing.T) {
	b, drv := newTestBridge(t)
	if err := b.SetDirection(false); err != nil {
		t.Fatalf("SetDirection: %v", err)
	}
	b.Stop()

	for _, pin := range []int{testPins.In1, testPins.In2, testPins.Pulse} {
		if drv.LevelOf(pin) != gpio.Low {
			t.Errorf("pin %d should be LOW after Stop", pin)
		}
	}
	// Stop alone does not touch standby.
	if drv.LevelOf(testPins.Standby) != gpio.High {
		t.Error("Stop should not re-enter standby")
	}
}

func TestSetStandby(t *testing.T) {
	b, drv := newTestBridge(t)
	if err := b.SetStandby(false); err != nil {
		t.Fatalf("SetStandby: %v", err)
	}
	if drv.LevelOf(testPins.Standby) != gpio.High {
		t.Error("SetStandby(false) should raise STBY")
	}
	if err := b.SetStandby(true); err != nil {
		t.Fatalf("SetStandby: %v", err)
	}
	if drv.LevelOf(testPins.Standby) != gpio.Low {
		t.Error("SetStandby(true) should drop STBY")
	}
}

func TestEmergencyStop(t *testing.T) {
	b, drv := newTestBridge(t)
	if err := b.SetDirection(true); err != nil {
		t.Fatalf("SetDirection: %v", err)
	}
	b.EmergencyStop()

	for _, pin := range []int{testPins.In1, testPins.In2, testPins.Pulse, testPins.Standby} {
		if drv.LevelOf(pin) != gpio.Low {
			t.Errorf("pin %d should be LOW after EmergencyStop", pin)
		}
	}
}
