package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"gapscan/pkg/bucket"
	"gapscan/pkg/engine"
	"gapscan/pkg/freqmap"
	"gapscan/pkg/predict"
	"gapscan/pkg/primes"
	"gapscan/pkg/storage"
)

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, JSON{"status": "ok"})
}

// ListMaps returns the stored maps' build metadata.
func (h *Handler) ListMaps(w http.ResponseWriter, r *http.Request) {
	infos, err := storage.ListMaps(r.Context(), h.db)
	if err != nil {
		h.log.Error("list maps", zap.Error(err))
		h.writeJSON(w, http.StatusInternalServerError, JSON{"error": err.Error()})
		return
	}
	h.writeJSON(w, http.StatusOK, JSON{"maps": infos})
}

// BuildRequest describes one map build.
type BuildRequest struct {
	Name          string  `json:"name"`
	Input         string  `json:"input"`
	Modulus       uint64  `json:"modulus"`
	GapCategories bool    `json:"gap_categories"`
	GapSmall      float64 `json:"gap_small,omitempty"`
	GapLarge      float64 `json:"gap_large,omitempty"`
	Start         int     `json:"start"`
	Count         int     `json:"count"`
	SearchBound   uint64  `json:"search_bound,omitempty"`
}

// PostBuildMap loads the prime file named in the request, builds the map
// and stores it. Precondition violations map to 400s, everything else
// to 500s.
func (h *Handler) PostBuildMap(w http.ResponseWriter, r *http.Request) {
	var req BuildRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, JSON{"error": "invalid JSON: " + err.Error()})
		return
	}
	if req.Name == "" || req.Input == "" || req.Modulus == 0 || req.Count <= 0 {
		h.writeJSON(w, http.StatusBadRequest, JSON{"error": "name, input, modulus and count are required"})
		return
	}
	if req.Start < 0 {
		h.writeJSON(w, http.StatusBadRequest, JSON{"error": "start must be non-negative"})
		return
	}

	seq, err := primes.LoadFile(req.Input)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, primes.ErrMissingInput) {
			status = http.StatusBadRequest
		}
		h.writeJSON(w, status, JSON{"error": err.Error()})
		return
	}

	scheme := bucket.Scheme{Modulus: req.Modulus}
	if req.GapCategories {
		t := bucket.DefaultThresholds()
		if req.GapSmall != 0 {
			t.Small = req.GapSmall
		}
		if req.GapLarge != 0 {
			t.Large = req.GapLarge
		}
		scheme.Gaps = &t
	}

	m, err := freqmap.Build(seq, freqmap.Config{
		Scheme:      scheme,
		Start:       req.Start,
		Count:       req.Count,
		SearchBound: req.SearchBound,
		Logger:      h.log,
	})
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, primes.ErrInsufficientData) {
			status = http.StatusBadRequest
		}
		h.writeJSON(w, status, JSON{"error": err.Error()})
		return
	}

	if err := storage.SaveMap(r.Context(), h.db, req.Name, m, req.Start, req.Count); err != nil {
		h.log.Error("save map", zap.String("name", req.Name), zap.Error(err))
		h.writeJSON(w, http.StatusInternalServerError, JSON{"error": err.Error()})
		return
	}

	h.log.Info("map built",
		zap.String("name", req.Name),
		zap.String("scheme", scheme.Name()),
		zap.Int("pairs", req.Count),
		zap.Uint64("skipped", m.Skipped))
	h.writeJSON(w, http.StatusOK, JSON{
		"name":    req.Name,
		"scheme":  scheme.Name(),
		"buckets": len(m.Buckets),
		"skipped": m.Skipped,
	})
}

// ScoreRequest asks for the failure rate of one anchor against a stored
// map.
type ScoreRequest struct {
	Map    string `json:"map"`
	Anchor uint64 `json:"anchor"`
	Gap    uint64 `json:"gap,omitempty"`
}

// PostScore looks an anchor up in a stored map.
func (h *Handler) PostScore(w http.ResponseWriter, r *http.Request) {
	var req ScoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, JSON{"error": "invalid JSON: " + err.Error()})
		return
	}
	t, ok := h.loadTable(w, r, req.Map)
	if !ok {
		return
	}
	rate, err := t.Score(req.Anchor, req.Gap)
	if err != nil {
		h.writeJSON(w, http.StatusInternalServerError, JSON{"error": err.Error()})
		return
	}
	// The weighted score inherits the infinity sentinel from the rate;
	// plain JSON cannot carry +Inf, so it rides the same codec.
	h.writeJSON(w, http.StatusOK, JSON{
		"anchor":   req.Anchor,
		"bucket":   t.Scheme().Classify(req.Anchor, req.Gap).String(),
		"rate":     rate,
		"weighted": freqmap.Rate(engine.Weighted(rate, req.Gap)),
	})
}

// PredictRequest asks a predictor to pick a successor from a caller
// supplied candidate pool.
type PredictRequest struct {
	Map        string   `json:"map"`
	FineMap    string   `json:"fine_map,omitempty"`
	Strategy   string   `json:"strategy,omitempty"`
	P          uint64   `json:"p"`
	Candidates []uint64 `json:"candidates"`
	NextGap    uint64   `json:"next_gap,omitempty"`
}

// PostPredict runs one prediction.
func (h *Handler) PostPredict(w http.ResponseWriter, r *http.Request) {
	var req PredictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, JSON{"error": "invalid JSON: " + err.Error()})
		return
	}
	if len(req.Candidates) == 0 {
		h.writeJSON(w, http.StatusBadRequest, JSON{"error": "candidates are required"})
		return
	}
	coarse, ok := h.loadTable(w, r, req.Map)
	if !ok {
		return
	}
	var fine *engine.Table
	if req.FineMap != "" {
		if fine, ok = h.loadTable(w, r, req.FineMap); !ok {
			return
		}
	}
	p, err := predict.ByName(req.Strategy, coarse, fine)
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, JSON{"error": err.Error()})
		return
	}
	prediction := p.Predict(predict.Observation{
		P:          req.P,
		Candidates: req.Candidates,
		NextGap:    req.NextGap,
	})
	h.writeJSON(w, http.StatusOK, JSON{
		"strategy":   p.Name(),
		"p":          req.P,
		"prediction": prediction,
	})
}

// loadTable fetches a stored map and wraps it as a score table, writing
// the error response itself on failure.
func (h *Handler) loadTable(w http.ResponseWriter, r *http.Request, name string) (*engine.Table, bool) {
	if name == "" {
		h.writeJSON(w, http.StatusBadRequest, JSON{"error": "map name is required"})
		return nil, false
	}
	m, err := storage.LoadMap(r.Context(), h.db, name)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, storage.ErrMapNotFound) {
			status = http.StatusNotFound
		}
		h.writeJSON(w, status, JSON{"error": err.Error()})
		return nil, false
	}
	t, err := engine.FromMap(m)
	if err != nil {
		h.writeJSON(w, http.StatusInternalServerError, JSON{"error": err.Error()})
		return nil, false
	}
	return t, true
}
