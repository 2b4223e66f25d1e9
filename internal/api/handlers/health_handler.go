package handlers

import (
	"net/http"

	db "github.com/markdave123-py/contexta/internal/core/database"
)

// PoolStats is satisfied by the database client.
type PoolStats interface {
	Stat() db.PoolStat
}

// IngestLoad is satisfied by the ingestion runner.
type IngestLoad interface {
	Running() int
}

type HealthHandler struct {
	pool   PoolStats
	ingest IngestLoad
}

func NewHealthHandler(pool PoolStats, ingest IngestLoad) *HealthHandler {
	return &HealthHandler{pool: pool, ingest: ingest}
}

type HealthResponse struct {
	Status            string       `json:"status"`
	Pool              *db.PoolStat `json:"pool,omitempty"`
	IngestionsRunning int          `json:"ingestions_running"`
}

func (h *HealthHandler) Healthz(w http.ResponseWriter, _ *http.Request) {
	resp := HealthResponse{Status: "ok"}
	if h.pool != nil {
		stat := h.pool.Stat()
		resp.Pool = &stat
	}
	if h.ingest != nil {
		resp.IngestionsRunning = h.ingest.Running()
	}
	writeJSON(w, http.StatusOK, resp)
}
