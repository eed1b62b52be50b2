package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/transtools/doctrans/internal/config"
	"github.com/transtools/doctrans/internal/jobs"
)

type enqueueJobRequest struct {
	Source       string `json:"source"`
	DedupeKey    string `json:"dedupe_key"`
	InputPath    string `json:"input_path"`
	OutputPath   string `json:"output_path"`
	SourceLang   string `json:"source_lang"`
	TargetLang   string `json:"target_lang"`
	Backend      string `json:"backend"`
	GlossaryPath string `json:"glossary_path"`
	Bilingual    bool   `json:"bilingual"`
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.queue.List())
	case http.MethodPost:
		var req enqueueJobRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json body")
			return
		}
		if req.InputPath == "" {
			writeError(w, http.StatusBadRequest, "input_path is required")
			return
		}
		if _, err := s.registry.ForPath(req.InputPath); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if req.Source == "" {
			req.Source = "api"
		}
		if req.DedupeKey == "" {
			req.DedupeKey = req.InputPath + "|" + req.TargetLang
		}

		job, created := s.queue.Enqueue(jobs.EnqueueRequest{
			Source:    req.Source,
			DedupeKey: req.DedupeKey,
			Payload: jobs.JobPayload{
				InputPath:    req.InputPath,
				OutputPath:   req.OutputPath,
				SourceLang:   req.SourceLang,
				TargetLang:   req.TargetLang,
				Backend:      req.Backend,
				GlossaryPath: req.GlossaryPath,
				Bilingual:    req.Bilingual,
			},
		})
		code := http.StatusCreated
		if !created {
			code = http.StatusOK
		}
		writeJSON(w, code, map[string]any{
			"created": created,
			"job":     job,
		})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleJobByID serves /api/jobs/{id} and /api/jobs/{id}/{action} where
// action is pause, resume or cancel.
func (s *Server) handleJobByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
	parts := strings.SplitN(strings.TrimSuffix(rest, "/"), "/", 2)
	id := parts[0]
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing job id")
		return
	}

	if len(parts) == 1 {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		job, ok := s.queue.Get(id)
		if !ok {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		writeJSON(w, http.StatusOK, job)
		return
	}

	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var err error
	switch parts[1] {
	case "pause":
		err = s.queue.Pause(id)
	case "resume":
		err = s.queue.Resume(id)
	case "cancel":
		err = s.queue.Cancel(id)
	default:
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	job, _ := s.queue.Get(id)
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleFormats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"extensions": s.registry.Supported(),
	})
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	if s.settings == nil {
		writeError(w, http.StatusNotImplemented, "settings store is not configured")
		return
	}

	switch r.Method {
	case http.MethodGet:
		settings, _, err := s.settings.GetRuntimeSettings(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, settings)
	case http.MethodPut:
		var req config.RuntimeSettings
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json body")
			return
		}
		if err := req.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := s.settings.UpdateRuntimeSettings(r.Context(), req); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, req)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]string{"error": message})
}
