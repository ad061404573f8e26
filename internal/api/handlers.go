package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"templstack/internal/registry"
	"templstack/internal/resolver"
)

// healthHandler returns API health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"service": "templstack",
		"offline": s.Offline.DetectStatus(r.Context()),
	})
}

// searchHandler searches the combined local index. Query parameters: q
// (substring or glob pattern), category, author, limit.
func (s *Server) searchHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	category := r.URL.Query().Get("category")
	author := r.URL.Query().Get("author")

	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	results := s.Registries.SearchIndex(query)

	filtered := make([]registry.TemplateMetadata, 0, len(results))
	for _, entry := range results {
		if category != "" && entry.Category != category {
			continue
		}
		if author != "" && entry.Author != author {
			continue
		}
		filtered = append(filtered, entry)
		if len(filtered) == limit {
			break
		}
	}

	writeJSON(w, http.StatusOK, filtered)
}

// registryView is a registry config plus its last health classification.
type registryView struct {
	registry.Config
	Health registry.HealthStatus `json:"health"`
}

// listRegistriesHandler lists configured registries with health status.
func (s *Server) listRegistriesHandler(w http.ResponseWriter, r *http.Request) {
	configs := s.Registries.ListRegistries()

	views := make([]registryView, 0, len(configs))
	for _, cfg := range configs {
		views = append(views, registryView{Config: cfg, Health: s.Registries.Health(cfg.ID)})
	}

	writeJSON(w, http.StatusOK, views)
}

// queueHandler exposes the offline queue, including conflicted entries.
func (s *Server) queueHandler(w http.ResponseWriter, r *http.Request) {
	status, err := s.Offline.Status(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read queue")
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// cacheStatsHandler exposes read-cache hit statistics.
func (s *Server) cacheStatsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Offline.Cache().Stats())
}

// networkStatsHandler exposes bandwidth usage and circuit breaker state.
func (s *Server) networkStatsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"bandwidth": s.Transport.Bandwidth().Stats(),
		"breakers":  s.Transport.Breakers(),
	})
}

// resolveRequest is the POST /v1/resolve body.
type resolveRequest struct {
	Dependencies []resolver.Dependency `json:"dependencies"`
	Installed    map[string]string     `json:"installed,omitempty"`
}

// resolveHandler runs a resolution against the current index snapshot.
func (s *Server) resolveHandler(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.Dependencies) == 0 {
		writeError(w, http.StatusBadRequest, "dependencies are required")
		return
	}

	result, err := s.Resolver.Resolve(r.Context(), req.Dependencies, req.Installed, s.Registries.Snapshot(), s.Policy)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, result)
}
