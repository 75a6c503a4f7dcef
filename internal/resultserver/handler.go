package resultserver

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/trialsink"
)

const maxFormMemory = 32 << 20

type apiError struct {
	Error string `json:"error"`
}

type openSessionResponse struct {
	Token string `json:"token"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode JSON response", slog.Any("error", err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, apiError{Error: msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleOpenSession(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid form body")
		return
	}

	sess := &Session{
		Token:       uuid.NewString(),
		ProjectID:   r.PathValue("project"),
		Participant: r.FormValue("participant"),
		CreatedAt:   time.Now(),
	}

	s.mu.Lock()
	s.sessions[sess.Token] = sess
	s.mu.Unlock()

	s.logger.Info("session opened",
		slog.String("project_id", sess.ProjectID),
		slog.String("participant", sess.Participant),
		slog.String("token", sess.Token),
	)
	s.writeJSON(w, http.StatusOK, openSessionResponse{Token: sess.Token})
}

func (s *Server) handleUploadResult(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid form body")
		return
	}

	key := r.FormValue("key")
	if key == "" {
		s.writeError(w, http.StatusBadRequest, "key is required")
		return
	}
	value := r.FormValue("value")

	sess, status, msg := s.openSession(r)
	if sess == nil {
		s.writeError(w, status, msg)
		return
	}

	if s.deliverer != nil {
		if err := s.deliverer.Deliver(r.Context(), key, trialsink.ContentTypeCSV, []byte(value)); err != nil {
			s.logger.Error("failed to store result", slog.String("key", key), slog.Any("error", err))
			s.writeError(w, http.StatusInternalServerError, "failed to store result")
			return
		}
	}

	s.mu.Lock()
	sess.Results = append(sess.Results, key)
	s.mu.Unlock()

	s.logger.Info("result stored",
		slog.String("token", sess.Token),
		slog.String("key", key),
		slog.Int("size", len(value)),
	)
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid form body")
		return
	}

	sess, status, msg := s.openSession(r)
	if sess == nil {
		s.writeError(w, status, msg)
		return
	}

	completed := r.FormValue("isCompleted") == "true"

	s.mu.Lock()
	sess.Closed = true
	sess.Completed = completed
	s.mu.Unlock()

	s.logger.Info("session closed",
		slog.String("token", sess.Token),
		slog.Bool("completed", completed),
	)
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// openSession looks up the session addressed by the request path and checks that it is still
// open. On failure it returns nil with the HTTP status and message to respond with.
func (s *Server) openSession(r *http.Request) (*Session, int, string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[r.PathValue("token")]
	if !ok || sess.ProjectID != r.PathValue("project") {
		return nil, http.StatusNotFound, "session not found"
	}
	if sess.Closed {
		return nil, http.StatusConflict, "session is closed"
	}
	return sess, 0, ""
}
