// Package api serves the local status API: search, registry health, queue
// and cache introspection, and resolution as a service.
package api

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"

	"templstack/internal/advisory"
	"templstack/internal/offline"
	"templstack/internal/registry"
	"templstack/internal/resolver"
	"templstack/internal/transport"
)

// Server holds dependencies for API handlers.
type Server struct {
	Registries *registry.Manager
	Offline    *offline.Manager
	Resolver   *resolver.Resolver
	Transport  *transport.Transport
	Policy     advisory.Policy
}

// RegisterRoutes sets up all API routes.
func RegisterRoutes(r *mux.Router, s *Server) {
	r.Use(panicRecoveryMiddleware)
	r.Use(loggingMiddleware)

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/health", s.healthHandler).Methods("GET")
	v1.HandleFunc("/search", s.searchHandler).Methods("GET")
	v1.HandleFunc("/registries", s.listRegistriesHandler).Methods("GET")
	v1.HandleFunc("/queue", s.queueHandler).Methods("GET")
	v1.HandleFunc("/cache/stats", s.cacheStatsHandler).Methods("GET")
	v1.HandleFunc("/network/stats", s.networkStatsHandler).Methods("GET")
	v1.HandleFunc("/resolve", s.resolveHandler).Methods("POST")
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// statusRecorder captures the response status for the request log.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// loggingMiddleware logs every request with its status and duration.
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Printf("%s %s %d %s", r.Method, r.URL.Path, rec.status, time.Since(start))
	})
}

// panicRecoveryMiddleware recovers from handler panics and returns a 500.
func panicRecoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				fmt.Fprintf(os.Stderr, "PANIC in %s %s: %v\n", r.Method, r.URL.Path, err)
				writeError(w, http.StatusInternalServerError, "Internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}
