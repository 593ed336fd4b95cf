package motion

import (
	"sync"
	"time"
)

// Scheduler is the single periodic callback slot the controller arms and
// disarms. The host guarantees at-most-once delivery per Arm and no
// delivery after Disarm. Re-arming supersedes the previous arm.
type Scheduler interface {
	Arm(d time.Duration, fn func())
	Disarm()
}

// TimerScheduler implements Scheduler on time.AfterFunc. A generation
// counter guards against a timer that already fired but whose callback
// has not yet run when the slot is re-armed or disarmed.
type TimerScheduler struct {
	mu    sync.Mutex
	timer *time.Timer
	gen   uint64
}

// NewTimerScheduler creates an empty timer slot.
func NewTimerScheduler() *TimerScheduler {
	return &TimerScheduler{}
}

func (s *TimerScheduler) Arm(d time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.gen++
	gen := s.gen
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(d, func() {
		s.mu.Lock()
		live := s.gen == gen
		s.mu.Unlock()
		if live {
			fn()
		}
	})
}

func (s *TimerScheduler) Disarm() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
