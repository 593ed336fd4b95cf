package web

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"net/http"
	"time"

	"github.com/cjeanneret/FocusGo/internal/logic/motion"
)

// MoveRequest is the body of POST /api/move (timed move).
// Speed 0 means "use the configured speed".
type MoveRequest struct {
	Direction  string `json:"direction"`
	Speed      int    `json:"speed"`
	DurationMs int    `json:"duration_ms"`
}

// MoveAbsRequest is the body of POST /api/move/absolute.
type MoveAbsRequest struct {
	Target int `json:"target"`
}

// MoveRelRequest is the body of POST /api/move/relative.
type MoveRelRequest struct {
	Direction string `json:"direction"`
	Ticks     int    `json:"ticks"`
}

// SpeedRequest is the body of POST /api/speed.
type SpeedRequest struct {
	Speed int `json:"speed"`
}

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	Broadcaster *StatusBroadcaster
	Controller  *motion.Controller
	staticFS    fs.FS
}

// NewHandlers creates handlers with the given dependencies.
func NewHandlers(broadcaster *StatusBroadcaster, controller *motion.Controller, staticFS fs.FS) *Handlers {
	return &Handlers{
		Broadcaster: broadcaster,
		Controller:  controller,
		staticFS:    staticFS,
	}
}

// parseDirection maps the wire direction names onto motion.Direction.
func parseDirection(s string) (motion.Direction, error) {
	switch s {
	case "inward", "in":
		return motion.Inward, nil
	case "outward", "out":
		return motion.Outward, nil
	default:
		return motion.Inward, fmt.Errorf("direction must be \"inward\" or \"outward\", got %q", s)
	}
}

// writeResult renders a controller Result: OK -> 200, BUSY -> 202,
// ALERT -> 422, always with the current position.
func (h *Handlers) writeResult(w http.ResponseWriter, res motion.Result) {
	code := http.StatusOK
	switch res.State {
	case motion.StateBusy:
		code = http.StatusAccepted
	case motion.StateAlert:
		code = http.StatusUnprocessableEntity
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":   res.State.String(),
		"message":  res.Message,
		"position": h.Controller.Position(),
	})
}

// ServeIndex serves the main HTML page (root path only).
func (h *Handlers) ServeIndex(w http.ResponseWriter, r *http.Request) {
	data, err := fs.ReadFile(h.staticFS, "index.html")
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(data)
}

// HandlePosition handles GET /api/position.
func (h *Handlers) HandlePosition(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"position":   h.Controller.Position(),
		"last_delta": h.Controller.LastDelta(),
		"speed":      h.Controller.Speed(),
		"moving":     h.Controller.Moving(),
		"connected":  h.Controller.Connected(),
	})
}

// HandleConnect handles POST /api/connect.
func (h *Handlers) HandleConnect(w http.ResponseWriter, r *http.Request) {
	h.writeResult(w, h.Controller.Connect())
}

// HandleDisconnect handles POST /api/disconnect.
func (h *Handlers) HandleDisconnect(w http.ResponseWriter, r *http.Request) {
	h.writeResult(w, h.Controller.Disconnect())
}

// HandleAbort handles POST /api/abort.
func (h *Handlers) HandleAbort(w http.ResponseWriter, r *http.Request) {
	h.writeResult(w, h.Controller.Abort())
}

// HandleMove handles POST /api/move: a speed+duration move.
func (h *Handlers) HandleMove(w http.ResponseWriter, r *http.Request) {
	var req MoveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	dir, err := parseDirection(req.Direction)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.DurationMs <= 0 {
		http.Error(w, "duration_ms must be > 0", http.StatusBadRequest)
		return
	}

	res := h.Controller.MoveTimed(dir, req.Speed, time.Duration(req.DurationMs)*time.Millisecond)
	h.writeResult(w, res)
}

// HandleMoveAbsolute handles POST /api/move/absolute.
func (h *Handlers) HandleMoveAbsolute(w http.ResponseWriter, r *http.Request) {
	var req MoveAbsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	h.writeResult(w, h.Controller.MoveAbs(req.Target))
}

// HandleMoveRelative handles POST /api/move/relative.
func (h *Handlers) HandleMoveRelative(w http.ResponseWriter, r *http.Request) {
	var req MoveRelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	dir, err := parseDirection(req.Direction)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Ticks < 0 {
		http.Error(w, "ticks must be >= 0", http.StatusBadRequest)
		return
	}
	h.writeResult(w, h.Controller.MoveRel(dir, req.Ticks))
}

// HandleSpeed handles POST /api/speed.
func (h *Handlers) HandleSpeed(w http.ResponseWriter, r *http.Request) {
	var req SpeedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	h.writeResult(w, h.Controller.SetSpeed(req.Speed))
}

// HandleStatusStream handles GET /status/stream for SSE.
func (h *Handlers) HandleStatusStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // nginx

	ch, unsub := h.Broadcaster.Subscribe()
	defer unsub()

	// Send initial comment to establish connection
	w.Write([]byte(": connected\n\n"))
	flusher.Flush()

	// Heartbeat while idle
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			w.Write([]byte("data: " + msg + "\n\n"))
			flusher.Flush()

		case <-ticker.C:
			w.Write([]byte(": heartbeat\n\n"))
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}
