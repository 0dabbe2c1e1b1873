package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/npezzotti/go-carehome/internal/aggregate"
	"github.com/npezzotti/go-carehome/internal/digest"
	"github.com/npezzotti/go-carehome/internal/types"
	"go.uber.org/zap"
)

type ResidentSummary struct {
	types.Resident
	Progress aggregate.Progress `json:"progress"`
}

func (s *Server) writeJson(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("json_encode_failed", zap.Error(err))
	}
}

func (s *Server) healthCheck(w http.ResponseWriter, _ *http.Request) {
	if pending := s.app.Persist.Pending(); len(pending) > 0 {
		w.Header().Set("X-Pending-Writes", strconv.Itoa(len(pending)))
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *Server) getSummary(w http.ResponseWriter, _ *http.Request) {
	s.writeJson(w, http.StatusOK, s.app.Summary.Facility())
}

func (s *Server) getDigest(w http.ResponseWriter, _ *http.Request) {
	s.writeJson(w, http.StatusOK, digest.Build(s.app.Summary.Facility()))
}

func (s *Server) getResidents(w http.ResponseWriter, _ *http.Request) {
	residents := s.app.Feed.Residents()
	out := make([]ResidentSummary, 0, len(residents))
	for _, r := range residents {
		p, _ := s.app.Summary.ResidentProgress(r.Id)
		out = append(out, ResidentSummary{Resident: r, Progress: p})
	}
	s.writeJson(w, http.StatusOK, out)
}

func (s *Server) getResidentFeed(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, ok := s.app.Feed.Resident(id); !ok {
		errResp := NewNotFoundError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}
	s.writeJson(w, http.StatusOK, s.app.Feed.FeedItemsByResident(id))
}
