package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/genricoloni/nowplayingd/internal/domain"
	"go.uber.org/zap"
)

type nowPlayingResponse struct {
	Playing bool                  `json:"playing"`
	Track   *domain.TrackSnapshot `json:"track"`
}

type isPlayingResponse struct {
	Playing bool `json:"playing"`
}

type lastUpdateResponse struct {
	LastUpdate     *int64  `json:"last_update"`
	SecondsSince   float64 `json:"seconds_since"`
	PresenceSynced bool    `json:"presence_synced"`
}

type healthResponse struct {
	Status      string `json:"status"`
	Connections int64  `json:"connections"`
	Published   uint64 `json:"published"`
}

func (s *Server) handleNowPlaying(w http.ResponseWriter, r *http.Request) {
	view := s.state.View()
	s.writeJSON(w, http.StatusOK, nowPlayingResponse{Playing: view.Playing, Track: view.Track})
}

func (s *Server) handleIsPlaying(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, isPlayingResponse{Playing: s.state.IsPlaying()})
}

func (s *Server) handleLastUpdate(w http.ResponseWriter, r *http.Request) {
	view := s.state.View()
	resp := lastUpdateResponse{
		SecondsSince:   view.SinceChange.Seconds(),
		PresenceSynced: view.PresenceSynced,
	}
	if !view.LastChange.IsZero() {
		ms := view.LastChange.UnixMilli()
		resp.LastUpdate = &ms
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCover(w http.ResponseWriter, r *http.Request) {
	if s.covers == nil {
		http.Error(w, "cover rendering disabled", http.StatusNotFound)
		return
	}
	card, ok := s.covers.Latest()
	if !ok {
		http.Error(w, "no cover available", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Length", strconv.Itoa(len(card)))
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(card)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, healthResponse{
		Status:      "ok",
		Connections: s.ActiveConnections(),
		Published:   s.hub.Published(),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Debug("Failed to write response", zap.Error(err))
	}
}
