package routes

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// StateNotifier fans state-change signals out to SSE subscribers.
type StateNotifier struct {
	subscribers map[chan struct{}]struct{}
	mu          sync.RWMutex
}

// NewStateNotifier creates an empty notifier.
func NewStateNotifier() *StateNotifier {
	return &StateNotifier{
		subscribers: make(map[chan struct{}]struct{}),
	}
}

// Subscribe adds a subscriber that will be signalled on state changes.
func (sn *StateNotifier) Subscribe() chan struct{} {
	sn.mu.Lock()
	defer sn.mu.Unlock()
	ch := make(chan struct{}, 1)
	sn.subscribers[ch] = struct{}{}
	return ch
}

// Unsubscribe removes a subscriber.
func (sn *StateNotifier) Unsubscribe(ch chan struct{}) {
	sn.mu.Lock()
	defer sn.mu.Unlock()
	delete(sn.subscribers, ch)
	close(ch)
}

// Notify signals all subscribers about a change.
func (sn *StateNotifier) Notify() {
	sn.mu.RLock()
	defer sn.mu.RUnlock()
	for ch := range sn.subscribers {
		select {
		case ch <- struct{}{}:
		default:
			// Channel already has a pending notification, skip
		}
	}
}

// statusSSE streams the call table and gateway node health as JSON
// events whenever the gateway state changes.
func (sr *StatusRouter) statusSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	notifyCh := sr.Notifier.Subscribe()
	defer sr.Notifier.Unsubscribe(notifyCh)

	ctx := r.Context()

	// Heartbeat to keep the connection alive through proxies.
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	sendUpdate := func() error {
		payload, err := json.Marshal(map[string]any{
			"calls":    sr.core.Calls(),
			"gateways": sr.sel.Snapshot(),
		})
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "event: status-update\ndata: %s\n\n", payload); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	if err := sendUpdate(); err != nil {
		slog.Error("error sending initial SSE data", "error", err)
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-notifyCh:
			if err := sendUpdate(); err != nil {
				slog.Error("error sending SSE update", "error", err)
				return
			}
		case <-ticker.C:
			if _, err := fmt.Fprintf(w, ": heartbeat\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
