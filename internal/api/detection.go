package api

import (
	"net/http"
)

func (s *ControlServer) handleDetectAll(w http.ResponseWriter, r *http.Request) {
	if s.deps.Registry == nil {
		unavailable(w, "detection")
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Registry.DetectAll(r.Context()))
}

func (s *ControlServer) handleDetect(w http.ResponseWriter, r *http.Request) {
	if s.deps.Registry == nil {
		unavailable(w, "detection")
		return
	}
	det, err := s.deps.Registry.Detect(r.Context(), r.PathValue("name"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, det)
}

// handleRefresh clears the cached entry and detects again.
func (s *ControlServer) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if s.deps.Registry == nil {
		unavailable(w, "detection")
		return
	}
	name := r.PathValue("name")
	if err := s.deps.Registry.Clear(name); err != nil {
		writeError(w, err)
		return
	}
	det, err := s.deps.Registry.Detect(r.Context(), name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, det)
}

func (s *ControlServer) handleClearAll(w http.ResponseWriter, r *http.Request) {
	if s.deps.Registry == nil {
		unavailable(w, "detection")
		return
	}
	s.deps.Registry.ClearAll()
	w.WriteHeader(http.StatusNoContent)
}

// InstructionsResponse carries a tool's install text.
type InstructionsResponse struct {
	Name         string `json:"name"`
	Instructions string `json:"instructions"`
}

func (s *ControlServer) handleInstructions(w http.ResponseWriter, r *http.Request) {
	if s.deps.Registry == nil {
		unavailable(w, "detection")
		return
	}
	name := r.PathValue("name")
	text, err := s.deps.Registry.InstallationInstructions(name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, InstructionsResponse{Name: name, Instructions: text})
}
