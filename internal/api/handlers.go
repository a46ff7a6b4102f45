package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Alpha162/armoured-candles/internal/render"
	"github.com/Alpha162/armoured-candles/pkg/models"
)

// errorBody is the stable error envelope every failing endpoint returns.
type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Field   string `json:"field,omitempty"`
		Message string `json:"message"`
	} `json:"error"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	var body errorBody
	body.Error.Code = code
	body.Error.Message = msg
	writeJSON(w, status, body)
}

func writeValidationError(w http.ResponseWriter, verr *models.ValidationError) {
	var body errorBody
	body.Error.Code = verr.Code
	body.Error.Field = verr.Field
	body.Error.Message = verr.Msg
	writeJSON(w, http.StatusBadRequest, body)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(indexPage))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.orch.Status())
}

// handleConfig replaces the persisted settings wholesale. Validation happens
// before anything is written, so a rejected document leaves the previous
// settings in effect end to end.
func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	// start from the current settings so a partial document only overrides
	// the fields it names
	settings := s.orch.Settings()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&settings); err != nil {
		writeError(w, http.StatusBadRequest, "malformed_json", err.Error())
		return
	}

	if err := s.settings.Save(r.Context(), settings); err != nil {
		var verr *models.ValidationError
		if errors.As(err, &verr) {
			writeValidationError(w, verr)
			return
		}
		s.logger.WithError(err).Error("Persisting settings failed")
		writeError(w, http.StatusInternalServerError, "store_unavailable", "settings could not be persisted")
		return
	}

	s.orch.ApplySettings(settings)
	writeJSON(w, http.StatusOK, map[string]string{"status": "applied"})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.orch.ForceRefresh()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "scheduled"})
}

func (s *Server) handleRestart(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "restarting"})
	go func() {
		if err := s.restart(); err != nil {
			s.logger.WithError(err).Error("Restart failed")
		}
	}()
}

// handleDisplay exports the last pushed frame as a 1-bit BMP.
func (s *Server) handleDisplay(w http.ResponseWriter, r *http.Request) {
	fb := s.display.Snapshot()
	if fb == nil {
		writeError(w, http.StatusNotFound, "no_frame", "nothing has been pushed to the panel yet")
		return
	}
	w.Header().Set("Content-Type", "image/bmp")
	w.Write(render.EncodeBMP(fb))
}
