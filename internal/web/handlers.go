package web

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/cjeanneret/SnapGo/internal/logic/snapshot"
)

// Response bodies of GET /. Both are sent with 200 OK.
const (
	CaptureSuccessBody = "Success"
	CaptureFailureBody = "Error occurred during capture or copy"
)

// Runner performs one capture-and-publish run.
type Runner interface {
	Run(ctx context.Context) snapshot.Outcome
}

// Settings is the effective capture configuration reported by GET /config.
type Settings struct {
	Device               string `json:"device"`
	Resolution           string `json:"resolution"`
	InputFormat          string `json:"input_format"`
	Destination          string `json:"destination"`
	CaptureTimeoutMs     int    `json:"capture_timeout_ms"`
	PublishTimeoutMs     int    `json:"publish_timeout_ms"`
	SkipOnCaptureFailure bool   `json:"skip_on_capture_failure"`
	Schedule             string `json:"schedule,omitempty"`
}

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	Broadcaster *StatusBroadcaster
	Runner      Runner
	Settings    Settings
}

// NewHandlers creates handlers with the given dependencies.
// If runner is nil, GET / returns 503 Service Unavailable.
func NewHandlers(broadcaster *StatusBroadcaster, runner Runner, settings Settings) *Handlers {
	return &Handlers{
		Broadcaster: broadcaster,
		Runner:      runner,
		Settings:    settings,
	}
}

// HandleCapture handles GET /: capture a still, publish it, report the result
// as plain text. Failures are not distinguished in the response.
func (h *Handlers) HandleCapture(w http.ResponseWriter, r *http.Request) {
	if h.Runner == nil {
		http.Error(w, "capture not configured", http.StatusServiceUnavailable)
		return
	}

	// A client hanging up must not abort a device call half way; the
	// configured invocation timeouts bound the run instead.
	out := h.Runner.Run(context.WithoutCancel(r.Context()))

	body := CaptureFailureBody
	if out.OK() {
		body = CaptureSuccessBody
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(body))
}

// HandleConfig returns the effective capture settings as JSON.
func (h *Handlers) HandleConfig(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.Settings)
}

// HandleHealth reports that the process is serving requests.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
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

	w.Write([]byte(": connected\n\n"))
	flusher.Flush()

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
