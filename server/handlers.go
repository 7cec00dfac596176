package server

import (
	"encoding/json"
	"net/http"

	"github.com/ElectrobladeIsADev/fitnessguide/exercise"

	log "github.com/sirupsen/logrus"
)

type exerciseInfo struct {
	Name       exercise.Exercise `json:"name"`
	MET        float64           `json:"met"`
	AngleModel bool              `json:"angle_model"`
	Joints     string            `json:"joints,omitempty"`
	MinAngle   int               `json:"min_angle,omitempty"`
	MaxAngle   int               `json:"max_angle,omitempty"`
}

type switchRequest struct {
	Exercise string `json:"exercise"`
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.analyzer.GetState())
}

func (s *Server) handleExercises(w http.ResponseWriter, _ *http.Request) {
	out := make([]exerciseInfo, 0, len(s.table))
	for _, e := range s.table.Exercises() {
		p := s.table[e]
		info := exerciseInfo{Name: e, MET: p.MET, AngleModel: p.AngleModel}
		if p.AngleModel {
			info.Joints = p.Joints.String()
			info.MinAngle = p.DefaultMinAngle
			info.MaxAngle = p.DefaultMaxAngle
		}
		out = append(out, info)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetSettings(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.analyzer.Settings())
}

// handlePutSettings accepts a full or partial settings document; omitted
// fields keep their current values.
func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	next := s.analyzer.Settings()
	if err := json.NewDecoder(r.Body).Decode(&next); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}

	if err := s.analyzer.ApplySettings(next); err != nil {
		s.instr.ObserveRejection()
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":    err.Error(),
			"settings": s.analyzer.Settings(),
		})
		return
	}
	writeJSON(w, http.StatusOK, s.analyzer.Settings())
}

func (s *Server) handleSwitchExercise(w http.ResponseWriter, r *http.Request) {
	var req switchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}

	if err := s.analyzer.SwitchExercise(req.Exercise); err != nil {
		s.instr.ObserveRejection()
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, s.analyzer.GetState())
}

func (s *Server) handleReset(w http.ResponseWriter, _ *http.Request) {
	s.analyzer.ResetSession()
	s.instr.ObserveReset()
	log.Info("session reset")
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleSensor(w http.ResponseWriter, _ *http.Request) {
	if s.sensor == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no BLE sensor configured"})
		return
	}
	writeJSON(w, http.StatusOK, s.sensor())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debugf("write response: %v", err)
	}
}
