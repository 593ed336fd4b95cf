package web

import (
	"github.com/cjeanneret/FocusGo/internal/logic/motion"
)

// Notifier renders controller outputs as SSE events. It is the outbound
// half of the framework adapter: the controller stays a plain composed
// object and only sees the motion.Notifier capability set.
type Notifier struct {
	b *StatusBroadcaster
}

// NewNotifier wraps a broadcaster as a motion.Notifier.
func NewNotifier(b *StatusBroadcaster) *Notifier {
	return &Notifier{b: b}
}

func (n *Notifier) Position(position, delta int) {
	n.b.BroadcastPosition(position, delta)
}

func (n *Notifier) Status(state motion.State, msg string) {
	level := "info"
	if state == motion.StateAlert {
		level = "error"
	}
	n.b.Broadcast(level, msg)
}
