package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/cbodonnell/cardroom/pkg/log"
	"github.com/cbodonnell/cardroom/pkg/reconcile"
	"github.com/cbodonnell/cardroom/pkg/reliability"
	"github.com/cbodonnell/cardroom/pkg/scheduler"
	"github.com/gorilla/mux"
)

// Scheduler is the part of the reconciliation scheduler exposed over HTTP.
type Scheduler interface {
	IsRunning() bool
	GetStatus() scheduler.Status
	GetDetailedStats() scheduler.DetailedStats
	ResetStats()
	ForceReconciliation(ctx context.Context, gameID string) (*reconcile.Result, error)
	UpdateConfig(update scheduler.ConfigUpdate) (scheduler.Config, error)
}

// Reliability is the part of the delivery layer exposed over HTTP.
type Reliability interface {
	Stats() reliability.Stats
	Pending(gameID string) []reliability.Event
	ForceEventDelivery(gameID string, eventType string, payload interface{}) bool
}

type ReconcileResponse struct {
	GameID          string                    `json:"gameId"`
	Skipped         bool                      `json:"skipped"`
	Changed         bool                      `json:"changed"`
	Version         int64                     `json:"version,omitempty"`
	Inconsistencies []reconcile.Inconsistency `json:"inconsistencies"`
}

type RedeliverRequest struct {
	EventType string          `json:"eventType"`
	Payload   json.RawMessage `json:"payload"`
}

type RedeliverResponse struct {
	Delivered bool                `json:"delivered"`
	Pending   []reliability.Event `json:"pending"`
}

func HandleHealthz(s Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.IsRunning() {
			http.Error(w, "Scheduler is not running", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}
}

func HandleGetStatus(s Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, s.GetStatus())
	}
}

func HandleGetStats(s Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, s.GetDetailedStats())
	}
}

func HandleResetStats(s Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.ResetStats()
		log.Info("Reconciliation statistics reset")
		w.WriteHeader(http.StatusNoContent)
	}
}

func HandleUpdateConfig(s Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var update scheduler.ConfigUpdate
		if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
			http.Error(w, "Failed to decode config update", http.StatusBadRequest)
			return
		}
		cfg, err := s.UpdateConfig(update)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		writeJSON(w, http.StatusOK, cfg)
	}
}

func HandleReconcileRoom(s Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		gameID := mux.Vars(r)["gameID"]
		result, err := s.ForceReconciliation(r.Context(), gameID)
		if err != nil {
			log.WithFields(log.Fields{"game_id": gameID}).Error("failed to force reconciliation: %v", err)
			http.Error(w, "Failed to reconcile room", http.StatusInternalServerError)
			return
		}

		resp := ReconcileResponse{GameID: gameID, Skipped: result == nil, Inconsistencies: []reconcile.Inconsistency{}}
		if result != nil {
			resp.Changed = result.Changed
			resp.Inconsistencies = result.Inconsistencies
			if result.State != nil {
				resp.Version = result.State.Version
			}
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func HandleGetReliability(rel Reliability) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, rel.Stats())
	}
}

func HandleRedeliver(rel Reliability) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		gameID := mux.Vars(r)["gameID"]
		var req RedeliverRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Failed to decode request", http.StatusBadRequest)
			return
		}
		if req.EventType == "" {
			http.Error(w, "eventType is required", http.StatusBadRequest)
			return
		}
		// Without a payload only the pending events are redelivered.
		var payload interface{}
		if len(req.Payload) > 0 && string(req.Payload) != "null" {
			payload = req.Payload
		}

		delivered := rel.ForceEventDelivery(gameID, req.EventType, payload)
		writeJSON(w, http.StatusOK, RedeliverResponse{Delivered: delivered, Pending: rel.Pending(gameID)})
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error("failed to encode response: %v", err)
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(b)
}
