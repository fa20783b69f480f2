package adminapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

type handler struct {
	deps Deps
}

type healthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Services  map[string]string `json:"services"`
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	response := healthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Services:  make(map[string]string),
	}

	if h.deps.AuditDB == nil {
		response.Services["audit_database"] = "disabled"
	} else if sqlDB, err := h.deps.AuditDB.DB(); err != nil || sqlDB.Ping() != nil {
		response.Services["audit_database"] = "unhealthy"
		response.Status = "degraded"
	} else {
		response.Services["audit_database"] = "healthy"
	}

	if h.deps.Status == nil {
		response.Services["status_cache"] = "disabled"
	} else {
		response.Services["status_cache"] = "healthy"
	}

	w.Header().Set("Content-Type", "application/json")
	if response.Status != "healthy" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(response)
}

func (h *handler) ready(w http.ResponseWriter, r *http.Request) {
	if h.deps.AuditDB != nil {
		sqlDB, err := h.deps.AuditDB.DB()
		if err != nil || sqlDB.Ping() != nil {
			http.Error(w, "audit database not ready", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (h *handler) getSeries(w http.ResponseWriter, r *http.Request) {
	pacsName := chi.URLParam(r, "pacsName")
	seriesUID := chi.URLParam(r, "seriesUID")

	if h.deps.Status == nil {
		http.Error(w, "status introspection is disabled", http.StatusServiceUnavailable)
		return
	}

	snap, ok := h.deps.Status.GetSeries(r.Context(), pacsName, seriesUID)
	if !ok {
		http.Error(w, "series not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(snap)
}
