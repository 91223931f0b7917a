package api

import (
	"database/sql"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

type JSON map[string]any

// RegisterRoutes wires every endpoint onto r.
func RegisterRoutes(r *mux.Router, db *sql.DB, log *zap.Logger) {
	h := &Handler{db: db, log: log}

	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)

	r.HandleFunc("/maps", h.ListMaps).Methods(http.MethodGet)
	r.HandleFunc("/maps/build", h.PostBuildMap).Methods(http.MethodPost)

	r.HandleFunc("/score", h.PostScore).Methods(http.MethodPost)
	r.HandleFunc("/predict", h.PostPredict).Methods(http.MethodPost)
}

// Handler serves the HTTP API on top of the sqlite map store.
type Handler struct {
	db  *sql.DB
	log *zap.Logger
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("encode response", zap.Error(err))
	}
}
