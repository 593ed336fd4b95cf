package motion

import (
	"fmt"
	"sync"
	"time"

	"github.com/cjeanneret/FocusGo/internal/debug"
)

// Direction of focuser travel. Inward increases the tick count,
// outward decreases it (the Moonlite focuser convention).
type Direction int

const (
	Inward Direction = iota
	Outward
)

func (d Direction) String() string {
	if d == Outward {
		return "outward"
	}
	return "inward"
}

// State is the outcome of a controller request.
type State int

const (
	StateOK    State = iota // request completed
	StateBusy               // move accepted, running on the scheduler
	StateAlert              // request rejected, nothing changed
)

func (s State) String() string {
	switch s {
	case StateBusy:
		return "busy"
	case StateAlert:
		return "alert"
	default:
		return "ok"
	}
}

// Result is returned by every public controller operation.
type Result struct {
	State   State
	Message string
}

func okResult(format string, args ...interface{}) Result {
	return Result{State: StateOK, Message: fmt.Sprintf(format, args...)}
}

func busyResult(format string, args ...interface{}) Result {
	return Result{State: StateBusy, Message: fmt.Sprintf(format, args...)}
}

func alertResult(format string, args ...interface{}) Result {
	return Result{State: StateAlert, Message: fmt.Sprintf(format, args...)}
}

// Notifier receives controller outputs: position changes and status
// messages. The framework adapter renders them back to clients.
type Notifier interface {
	Position(position, delta int)
	Status(state State, msg string)
}

// Driver is the hardware the controller pulses. Implemented by
// hbridge.TB6612 and by fakes in tests.
type Driver interface {
	SetDirection(outward bool) error
	Pulse(highTime time.Duration) error
	SetStandby(enabled bool) error
	Stop()
}

// Config holds the controller limits and timing constants.
type Config struct {
	PositionMin int           // travel lower bound, ticks
	PositionMax int           // travel upper bound, ticks
	SpeedMax    int           // highest accepted speed, ticks per second
	Granularity time.Duration // smallest interval the scheduler honors
	PulseWidth  time.Duration // minimum step pulse high time
	Speed       int           // initial speed, ticks per second
}

const (
	DefaultPositionMax = 60000
	DefaultSpeedMax    = 255
	DefaultGranularity = 10 * time.Millisecond
	DefaultPulseWidth  = 1 * time.Millisecond
	DefaultSpeed       = 50

	heartbeatInterval = 1 * time.Second
)

// session tracks one scheduled (asynchronous) move. At most one exists
// at a time; a new move request finalizes the active one first.
type session struct {
	outward  bool
	required int           // total steps for this session
	elapsed  int           // steps issued so far
	interval time.Duration // time between scheduled steps
}

// Controller turns high-level motion requests into step pulses while
// tracking the focuser's logical position in ticks.
//
// Public operations and the timer callback are serialized by a mutex:
// that is how this host honors the strictly sequential invocation model.
// Fast moves (inter-step delay below the scheduler granularity) block the
// caller for the whole move; slow moves run one pulse per timer callback
// and never block.
type Controller struct {
	mu     sync.Mutex
	drv    Driver
	sched  Scheduler
	notify Notifier
	cfg    Config

	position  int // current absolute position, ticks
	lastDelta int // signed ticks of the last completed or aborted move
	speed     int // ticks per second, settable only while idle
	connected bool
	sess      *session
}

// NewController creates a controller at the midpoint of its travel range.
// Zero config fields take the documented defaults. notify may be nil.
func NewController(drv Driver, sched Scheduler, notify Notifier, cfg Config) *Controller {
	if cfg.PositionMax <= cfg.PositionMin {
		cfg.PositionMin = 0
		cfg.PositionMax = DefaultPositionMax
	}
	if cfg.SpeedMax <= 0 {
		cfg.SpeedMax = DefaultSpeedMax
	}
	if cfg.Granularity <= 0 {
		cfg.Granularity = DefaultGranularity
	}
	if cfg.PulseWidth <= 0 {
		cfg.PulseWidth = DefaultPulseWidth
	}
	if cfg.Speed < 1 || cfg.Speed > cfg.SpeedMax {
		cfg.Speed = DefaultSpeed
	}

	return &Controller{
		drv:      drv,
		sched:    sched,
		notify:   notify,
		cfg:      cfg,
		position: (cfg.PositionMin + cfg.PositionMax) / 2,
		speed:    cfg.Speed,
	}
}

// Position returns the current absolute position in ticks.
func (c *Controller) Position() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.position
}

// LastDelta returns the signed ticks of the last completed or aborted move.
func (c *Controller) LastDelta() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastDelta
}

// Speed returns the configured speed in ticks per second.
func (c *Controller) Speed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.speed
}

// Moving reports whether a scheduled move session is in progress.
func (c *Controller) Moving() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess != nil
}

// Connected reports the connection state.
func (c *Controller) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Connect starts the housekeeping timer. Idempotent.
func (c *Controller) Connect() Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		return okResult("Already connected.")
	}
	c.connected = true
	c.sched.Arm(heartbeatInterval, c.TimerHit)
	debug.Info("Connected, position %d", c.position)
	c.statusLocked(StateOK, "Connected.")
	return okResult("Connected.")
}

// Disconnect finalizes any in-flight move, cuts drive current and stops
// the timer. Idempotent.
func (c *Controller) Disconnect() Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return okResult("Already disconnected.")
	}
	c.connected = false
	c.finalizeLocked()
	c.sched.Disarm()
	debug.Info("Disconnected, position %d", c.position)
	c.statusLocked(StateOK, "Disconnected.")
	return okResult("Disconnected.")
}

// SetSpeed changes the configured speed. Rejected while a move is in
// progress and for values outside [1, SpeedMax]; the current speed is
// retained on rejection.
func (c *Controller) SetSpeed(ticksPerSec int) Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sess != nil {
		return alertResult("Cannot change speed while a move is in progress.")
	}
	if ticksPerSec == 0 {
		return alertResult("Speed of zero is not allowed.")
	}
	if ticksPerSec < 1 || ticksPerSec > c.cfg.SpeedMax {
		return alertResult("Speed %d is out of range [1, %d].", ticksPerSec, c.cfg.SpeedMax)
	}
	c.speed = ticksPerSec
	debug.Verbose("Speed set to %d ticks/sec", ticksPerSec)
	return okResult("Speed set to %d ticks/sec.", ticksPerSec)
}

// MoveTimed plans a move from direction, speed and duration:
// ticks = floor(speed * durationMs / 1000), signed by direction.
// A zero speed means "use the configured speed".
func (c *Controller) MoveTimed(dir Direction, speedTicksPerSec int, duration time.Duration) Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	speed := speedTicksPerSec
	if speed == 0 {
		speed = c.speed
	}
	if speed < 1 || speed > c.cfg.SpeedMax {
		return alertResult("Speed %d is out of range [1, %d].", speed, c.cfg.SpeedMax)
	}

	rel := int(int64(speed) * duration.Milliseconds() / 1000)
	if dir == Outward {
		rel = -rel
	}

	planned := c.pendingPositionLocked() + rel
	if planned < c.cfg.PositionMin || planned > c.cfg.PositionMax {
		return alertResult("Requested position %d is out of range [%d, %d].",
			planned, c.cfg.PositionMin, c.cfg.PositionMax)
	}

	debug.Verbose("Timed move: %s, %d ticks/sec for %v -> %+d ticks", dir, speed, duration, rel)
	return c.executeLocked(rel, speed)
}

// MoveAbs moves to an absolute tick position at the configured speed.
func (c *Controller) MoveAbs(targetTicks int) Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.moveAbsLocked(targetTicks)
}

// MoveRel moves by a tick count signed by direction, converted to an
// absolute target.
func (c *Controller) MoveRel(dir Direction, ticks int) Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ticks < 0 {
		return alertResult("Tick count must not be negative.")
	}
	rel := ticks
	if dir == Outward {
		rel = -rel
	}
	return c.moveAbsLocked(c.pendingPositionLocked() + rel)
}

func (c *Controller) moveAbsLocked(targetTicks int) Result {
	if targetTicks < c.cfg.PositionMin || targetTicks > c.cfg.PositionMax {
		return alertResult("Requested position %d is out of range [%d, %d].",
			targetTicks, c.cfg.PositionMin, c.cfg.PositionMax)
	}

	// A new move replaces an in-flight one: finalize first so the new
	// move starts from the position the abort leaves behind.
	c.finalizeLocked()

	if targetTicks == c.position {
		return okResult("Already at position %d.", targetTicks)
	}
	return c.executeLocked(targetTicks-c.position, c.speed)
}

// pendingPositionLocked is the position the focuser would rest at if the
// in-flight session were finalized right now. Move planning validates
// against this so an accepted replacement move is consistent with the
// state the implicit abort leaves.
func (c *Controller) pendingPositionLocked() int {
	pos := c.position
	if c.sess != nil {
		if c.sess.outward {
			pos -= c.sess.elapsed
		} else {
			pos += c.sess.elapsed
		}
	}
	return pos
}

// executeLocked issues a planned move. rel carries the direction in its
// sign and the step count in its magnitude; bounds were checked by the
// caller.
func (c *Controller) executeLocked(rel, speed int) Result {
	c.finalizeLocked()

	if rel == 0 {
		return okResult("Already at requested position.")
	}

	delay := time.Second / time.Duration(speed)
	outward := rel < 0
	n := rel
	if outward {
		n = -n
	}

	if err := c.drv.SetDirection(outward); err != nil {
		c.drv.Stop()
		_ = c.drv.SetStandby(true)
		return alertResult("Drive fault: %v.", err)
	}
	debug.Move(n, directionString(outward))

	// Below the scheduler granularity the host cannot pace individual
	// steps reliably, so the whole move runs as one blocking pulse loop.
	if delay < c.cfg.Granularity {
		return c.runSyncLocked(n, outward)
	}

	// Scheduled move: first pulse immediately, the rest on the timer.
	if err := c.drv.Pulse(c.cfg.PulseWidth); err != nil {
		c.drv.Stop()
		_ = c.drv.SetStandby(true)
		return alertResult("Drive fault: %v.", err)
	}
	c.sess = &session{
		outward:  outward,
		required: n,
		elapsed:  1,
		interval: delay,
	}
	c.sched.Arm(delay, c.TimerHit)
	debug.Verbose("Session started: %d ticks, interval %v", n, delay)
	c.statusLocked(StateBusy, fmt.Sprintf("Moving %s...", directionString(outward)))
	return busyResult("Moving %s...", directionString(outward))
}

// runSyncLocked issues n pulses back to back, pacing each at the
// scheduler granularity, then commits the full delta. Blocks the caller
// for the whole move.
func (c *Controller) runSyncLocked(n int, outward bool) Result {
	issued := 0
	for i := 0; i < n; i++ {
		if err := c.drv.Pulse(c.cfg.PulseWidth); err != nil {
			debug.Error(err)
			break
		}
		issued++
		time.Sleep(c.cfg.Granularity - c.cfg.PulseWidth)
	}

	c.drv.Stop()
	_ = c.drv.SetStandby(true)

	delta := issued
	if outward {
		delta = -delta
	}
	c.position += delta
	c.lastDelta = delta
	c.positionLocked(delta)

	if issued != n {
		return alertResult("Drive fault after %d of %d steps.", issued, n)
	}
	return okResult("Moved %+d ticks to position %d.", delta, c.position)
}

// TimerHit is the scheduler callback. With a session in progress it
// issues one pulse per invocation; otherwise it keeps the housekeeping
// heartbeat alive while connected.
func (c *Controller) TimerHit() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sess == nil {
		if c.connected {
			debug.Trace("Heartbeat, position %d", c.position)
			c.sched.Arm(heartbeatInterval, c.TimerHit)
		}
		return
	}

	if c.sess.elapsed < c.sess.required {
		c.sched.Arm(c.sess.interval, c.TimerHit)
		if err := c.drv.Pulse(c.cfg.PulseWidth); err != nil {
			debug.Error(err)
			c.finalizeLocked()
			c.statusLocked(StateAlert, fmt.Sprintf("Drive fault: %v.", err))
			return
		}
		c.sess.elapsed++
		debug.Trace("Session tick %d/%d", c.sess.elapsed, c.sess.required)
		return
	}

	// Session complete; finalization is the same path as an abort.
	c.finalizeLocked()
	c.statusLocked(StateOK, "Move complete.")
}

// Abort stops pulse output, disables the drive lines and re-enters
// standby, committing whatever progress an in-flight session made.
// Idempotent.
func (c *Controller) Abort() Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	hadSession := c.sess != nil
	c.finalizeLocked()
	if hadSession {
		c.statusLocked(StateOK, "Move aborted.")
		return okResult("Move aborted at position %d.", c.position)
	}
	return okResult("Focuser idle.")
}

// finalizeLocked stops the driver and, if a session is active, commits
// the signed ticks actually issued to the position state and clears the
// session. Safe to call with no session and the driver already idle.
func (c *Controller) finalizeLocked() {
	c.drv.Stop()
	_ = c.drv.SetStandby(true)

	if c.sess == nil {
		return
	}

	c.sched.Disarm()
	delta := c.sess.elapsed
	if c.sess.outward {
		delta = -delta
	}
	c.position += delta
	c.lastDelta = delta
	c.sess = nil
	debug.Verbose("Session finalized: %+d ticks, position %d", delta, c.position)
	c.positionLocked(delta)

	if c.connected {
		c.sched.Arm(heartbeatInterval, c.TimerHit)
	}
}

func (c *Controller) positionLocked(delta int) {
	debug.Position(c.position, delta)
	if c.notify != nil {
		c.notify.Position(c.position, delta)
	}
}

func (c *Controller) statusLocked(state State, msg string) {
	if c.notify != nil {
		c.notify.Status(state, msg)
	}
}

func directionString(outward bool) string {
	if outward {
		return "outward"
	}
	return "inward"
}
