package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/cjeanneret/FocusGo/internal/config"
	"github.com/cjeanneret/FocusGo/internal/debug"
	"github.com/cjeanneret/FocusGo/internal/hw/gpio"
	"github.com/cjeanneret/FocusGo/internal/hw/hbridge"
	"github.com/cjeanneret/FocusGo/internal/logic/motion"
	"github.com/cjeanneret/FocusGo/internal/web"
)

func main() {
	// CLI flags
	webPort := &webPortFlag{defaultPort: 8080}
	flag.Var(webPort, "web", "start web server on port; -web= for default 8080, -web 8980 for custom port")
	cfgPath := flag.String("config", filepath.Join("configs", "default.yaml"), "path to config file")
	target := flag.Int("to", -1, "one-shot mode: move to this absolute position (ticks) and exit")
	jog := flag.Int("jog", 0, "one-shot mode: move by this many ticks, negative = outward, and exit")
	speed := flag.Int("speed", 0, "override configured speed (ticks/sec)")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Load configuration
	if err := config.ValidateConfigPath(*cfgPath); err != nil {
		log.Fatalf("invalid config path: %v", err)
	}
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}
	if err := validateSpeedOverride(*speed, cfg.Limits.SpeedMax); err != nil {
		log.Fatalf("invalid CLI override: %v", err)
	}
	if *speed > 0 {
		cfg.Defaults.Speed = *speed
	}

	// Initialize debug system
	debug.Init(cfg.Defaults.DebugLevel)
	debug.Section("Initialization")
	debug.Value("Config path", *cfgPath)
	debug.Value("Debug level", cfg.Defaults.DebugLevel)

	// Initialize GPIO driver
	debug.Value("Mock GPIO", cfg.Defaults.MockGPIO)
	debug.Step(1, "Initializing GPIO driver")
	gpioDriver, err := gpio.NewDriver(cfg.Defaults.MockGPIO)
	if err != nil {
		log.Fatalf("init GPIO failed: %v", err)
	}
	defer func() {
		if err := gpioDriver.Close(); err != nil {
			log.Printf("closing GPIO driver failed: %v", err)
		}
	}()

	// Initialize the H-bridge
	debug.Step(2, "Initializing TB6612FNG bridge")
	bridge, err := hbridge.New(gpioDriver, hbridge.Pins{
		In1:     cfg.Driver.In1Pin,
		In2:     cfg.Driver.In2Pin,
		Pulse:   cfg.Driver.PulsePin,
		Standby: cfg.Driver.StandbyPin,
	}, cfg.PulseWidth())
	if err != nil {
		log.Fatalf("init bridge failed: %v", err)
	}
	defer bridge.EmergencyStop()

	// Motion controller and framework plumbing
	debug.Step(3, "Creating motion controller")
	broadcaster := web.NewStatusBroadcaster()
	ctrl := motion.NewController(bridge, motion.NewTimerScheduler(), web.NewNotifier(broadcaster), motion.Config{
		PositionMin: 0,
		PositionMax: cfg.Limits.PositionMax,
		SpeedMax:    cfg.Limits.SpeedMax,
		Granularity: cfg.Granularity(),
		PulseWidth:  cfg.PulseWidth(),
		Speed:       cfg.Defaults.Speed,
	})
	defer ctrl.Disconnect()

	if port := webPort.port(); port > 0 {
		debug.SetOutput(io.MultiWriter(os.Stdout, web.BroadcastWriter(broadcaster)))

		srv := web.NewServer(fmt.Sprintf(":%d", port), broadcaster, ctrl)
		if err := srv.Run(ctx); err != nil {
			log.Fatalf("web server: %v", err)
		}
		return
	}

	// One-shot mode: connect, run the requested move, wait, exit.
	if *target < 0 && *jog == 0 {
		log.Fatal("nothing to do: pass -web for the web UI, or -to / -jog for a one-shot move")
	}
	if res := ctrl.Connect(); res.State != motion.StateOK {
		log.Fatalf("connect: %s", res.Message)
	}

	var res motion.Result
	if *target >= 0 {
		res = ctrl.MoveAbs(*target)
	} else {
		dir := motion.Inward
		ticks := *jog
		if ticks < 0 {
			dir = motion.Outward
			ticks = -ticks
		}
		res = ctrl.MoveRel(dir, ticks)
	}

	switch res.State {
	case motion.StateAlert:
		log.Fatalf("move rejected: %s", res.Message)
	case motion.StateBusy:
		if err := waitIdle(ctx, ctrl); err != nil {
			debug.Info("Interrupted: %v", err)
			ctrl.Abort()
		}
	}
	fmt.Printf("position: %d\n", ctrl.Position())
}

// waitIdle polls until the scheduled move finishes or ctx is cancelled.
func waitIdle(ctx context.Context, ctrl *motion.Controller) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for ctrl.Moving() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

// validateSpeedOverride checks a non-zero -speed flag against the
// configured range. Zero means "use config default".
func validateSpeedOverride(speed, speedMax int) error {
	if speed == 0 {
		return nil
	}
	if speed < 1 || speed > speedMax {
		return fmt.Errorf("speed must be between 1 and %d, got %d", speedMax, speed)
	}
	return nil
}

// webPortFlag implements flag.Value for -web: zero means disabled,
// "-web=" selects the default port, "-web 8980" selects a custom one.
type webPortFlag struct {
	val         int
	defaultPort int
}

func (w *webPortFlag) String() string {
	if w.val == 0 {
		return "0"
	}
	return strconv.Itoa(w.val)
}

func (w *webPortFlag) Set(s string) error {
	if s == "" {
		w.val = w.defaultPort
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	if v <= 0 || v > 65535 {
		return fmt.Errorf("port must be 1-65535, got %d", v)
	}
	w.val = v
	return nil
}

func (w *webPortFlag) port() int { return w.val }
