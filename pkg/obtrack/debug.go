package obtrack

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/vnykmshr/obtrack-go/internal/kv"
)

// DebugStats represents statistics in the debug response
type DebugStats struct {
	Calls       int64        `json:"calls"`
	CallErrors  int64        `json:"callErrors"`
	Hits        int64        `json:"hits"`
	Misses      int64        `json:"misses"`
	Fetches     int64        `json:"fetches"`
	FetchErrors int64        `json:"fetchErrors"`
	InFlight    int64        `json:"inFlight"`
	HitRate     float64      `json:"hitRate"`
	Total       int64        `json:"total"`
	Config      *DebugConfig `json:"config"`
}

// DebugConfig represents configuration in the debug response
type DebugConfig struct {
	StoreType        StoreType     `json:"storeType"`
	ResourceTTL      time.Duration `json:"resourceTTL"`
	StoreOperationID string        `json:"storeOperationId"`
}

// DebugCalls is the response of GET /calls/{id}
type DebugCalls struct {
	ID    string `json:"id"`
	Count int64  `json:"count"`
}

// DebugAccesses is the response of GET /accesses
type DebugAccesses struct {
	Resource string `json:"resource"`
	Accesses int64  `json:"accesses"`
}

// DebugHandler returns an HTTP handler exposing the service's state.
// The handler supports the following endpoints:
//   - GET /replay/{id} - The call history of an operation as plain text
//   - GET /calls/{id} - The call counter of an operation
//   - GET /accesses?resource=URL - The access counter of a resource
//   - GET /stats - Process-local statistics
func (s *Service) DebugHandler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /replay/{id}", func(w http.ResponseWriter, r *http.Request) {
		h, err := s.reporter.History(r.Context(), r.PathValue("id"))
		if err != nil {
			writeStoreError(w, err)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = h.WriteTo(w)
	})

	mux.HandleFunc("GET /calls/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		count, err := s.tracker.CallCount(r.Context(), id)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, DebugCalls{ID: id, Count: count})
	})

	mux.HandleFunc("GET /accesses", func(w http.ResponseWriter, r *http.Request) {
		resource := r.URL.Query().Get("resource")
		if resource == "" {
			http.Error(w, "resource query parameter is required", http.StatusBadRequest)
			return
		}
		accesses, err := readCounter(r.Context(), s.client, kv.AccessKey(resource))
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, DebugAccesses{Resource: resource, Accesses: accesses})
	})

	mux.HandleFunc("GET /stats", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, &DebugStats{
			Calls:       s.stats.Calls(),
			CallErrors:  s.stats.CallErrors(),
			Hits:        s.stats.Hits(),
			Misses:      s.stats.Misses(),
			Fetches:     s.stats.Fetches(),
			FetchErrors: s.stats.FetchErrors(),
			InFlight:    s.stats.InFlight(),
			HitRate:     s.stats.HitRate(),
			Total:       s.stats.Total(),
			Config: &DebugConfig{
				StoreType:        s.config.StoreType,
				ResourceTTL:      s.config.ResourceTTL,
				StoreOperationID: s.config.StoreOperationID,
			},
		})
	})

	return mux
}

// NewDebugServer creates a new HTTP server serving DebugHandler
func (s *Service) NewDebugServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.DebugHandler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "Failed to encode JSON response", http.StatusInternalServerError)
	}
}

func writeStoreError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, ErrStoreUnavailable) {
		status = http.StatusServiceUnavailable
	}
	http.Error(w, err.Error(), status)
}
