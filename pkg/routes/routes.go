// Package routes exposes the read-only status API: live calls, gateway
// node health and recent call records, plus an SSE stream that pushes
// state changes to dashboards.
package routes

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"os"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/samsameer/meshriderwave-sub002/pkg/gateway"
	"github.com/samsameer/meshriderwave-sub002/pkg/identity"
	"github.com/samsameer/meshriderwave-sub002/pkg/selector"
	"github.com/samsameer/meshriderwave-sub002/pkg/store"
)

// StatusRouter serves the gateway status API.
type StatusRouter struct {
	core     *gateway.Core
	sel      *selector.Selector
	mapper   *identity.Mapper
	storage  *store.Stores
	Notifier *StateNotifier
}

// NewStatusRouter wires the status API against the live components.
func NewStatusRouter(core *gateway.Core, sel *selector.Selector, mapper *identity.Mapper, storage *store.Stores) *StatusRouter {
	return &StatusRouter{
		core:     core,
		sel:      sel,
		mapper:   mapper,
		storage:  storage,
		Notifier: NewStateNotifier(),
	}
}

// HandleRequests starts the HTTP listener. Blocks.
func (sr *StatusRouter) HandleRequests(listenAddr string) error {
	router := mux.NewRouter().StrictSlash(true)

	router.HandleFunc("/api/calls", sr.getCalls).Methods("GET")
	router.HandleFunc("/api/gateways", sr.getGateways).Methods("GET")
	router.HandleFunc("/api/records", sr.getRecords).Methods("GET")
	router.HandleFunc("/api/identities", sr.getIdentityStatus).Methods("GET")
	router.HandleFunc("/api/status-sse", sr.statusSSE).Methods("GET")

	router.Use(handlers.ProxyHeaders)

	h := handlers.RecoveryHandler()
	logged := handlers.CombinedLoggingHandler(os.Stdout, h(router))
	return http.ListenAndServe(listenAddr, logged)
}

func (sr *StatusRouter) getCalls(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, sr.core.Calls())
}

func (sr *StatusRouter) getGateways(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, sr.sel.Snapshot())
}

func (sr *StatusRouter) getRecords(w http.ResponseWriter, r *http.Request) {
	if sr.storage == nil {
		http.Error(w, "no database configured", http.StatusServiceUnavailable)
		return
	}
	records, err := sr.storage.CallRecords.GetRecentCallRecords(50)
	if err != nil {
		slog.Error("failed to fetch call records", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, records)
}

func (sr *StatusRouter) getIdentityStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"count":     sr.mapper.Count(),
		"loaded_at": sr.mapper.LoadedAt(),
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
