package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/DoctorPlant/DrPlantTelegramApp/core/logger"
	"github.com/DoctorPlant/DrPlantTelegramApp/internal/quiz"
	"github.com/DoctorPlant/DrPlantTelegramApp/internal/service"
)

func newSessionID() string { return uuid.NewString() }

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "quizzes": s.opts.Service.Catalog().Len()})
}

func (s *Server) listQuizzes(w http.ResponseWriter, _ *http.Request) {
	trees := s.opts.Service.Catalog().List()
	out := make([]quizSummary, 0, len(trees))
	for _, t := range trees {
		out = append(out, quizSummary{ID: t.ID, Title: t.Title})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getQuiz(w http.ResponseWriter, r *http.Request) {
	t, ok := s.opts.Service.Catalog().Get(chi.URLParam(r, "quizID"))
	if !ok {
		writeError(w, http.StatusNotFound, "quiz not found")
		return
	}
	writeJSON(w, http.StatusOK, encodeTree(t, s.opts.Resolver))
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	quizID := chi.URLParam(r, "quizID")
	if _, ok := s.opts.Service.Catalog().Get(quizID); !ok {
		writeError(w, http.StatusNotFound, "quiz not found")
		return
	}
	id := s.opts.NewID()
	v, err := s.opts.Service.Start(r.Context(), sessionKeyPrefix+id, quizID, userFrom(r.Context()).ID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, encodeView(id, v, s.opts.Resolver))
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	id, ok := s.owned(w, r)
	if !ok {
		return
	}
	v, err := s.opts.Service.Current(r.Context(), sessionKeyPrefix+id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, encodeView(id, v, s.opts.Resolver))
}

func (s *Server) answer(w http.ResponseWriter, r *http.Request) {
	id, ok := s.owned(w, r)
	if !ok {
		return
	}
	var req answerRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil || req.Option == nil {
		writeError(w, http.StatusBadRequest, `body must be {"option": <index>}`)
		return
	}

	key := sessionKeyPrefix + id
	var (
		v   service.View
		err error
	)
	if req.NodeID != "" {
		v, err = s.opts.Service.AnswerAt(r.Context(), key, req.NodeID, *req.Option)
	} else {
		v, err = s.opts.Service.Answer(r.Context(), key, *req.Option)
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, encodeView(id, v, s.opts.Resolver))
}

func (s *Server) back(w http.ResponseWriter, r *http.Request) {
	id, ok := s.owned(w, r)
	if !ok {
		return
	}
	v, moved, err := s.opts.Service.Back(r.Context(), sessionKeyPrefix+id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := encodeView(id, v, s.opts.Resolver)
	out.Moved = &moved
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) restart(w http.ResponseWriter, r *http.Request) {
	id, ok := s.owned(w, r)
	if !ok {
		return
	}
	v, err := s.opts.Service.Restart(r.Context(), sessionKeyPrefix+id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, encodeView(id, v, s.opts.Resolver))
}

// owned resolves the session id from the path and checks that the caller
// may use it. Sessions of another user answer 404 so ids cannot be guessed.
func (s *Server) owned(w http.ResponseWriter, r *http.Request) (string, bool) {
	raw := chi.URLParam(r, "sessionID")
	parsed, err := uuid.Parse(raw)
	if err != nil {
		writeError(w, http.StatusNotFound, "session not found")
		return "", false
	}
	id := parsed.String()
	v, err := s.opts.Service.Current(r.Context(), sessionKeyPrefix+id)
	if err != nil {
		s.fail(w, r, err)
		return "", false
	}
	if owner := v.Record.UserID; owner != 0 && owner != userFrom(r.Context()).ID {
		writeError(w, http.StatusNotFound, "session not found")
		return "", false
	}
	return id, true
}

// fail maps service and engine errors to HTTP statuses.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error(r.Context(), logger.ComponentHTTP, "http.error",
			slog.String("path", r.URL.Path),
			logger.Err(err),
		)
	}
	writeError(w, status, msg)
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, quiz.ErrInvalidOption):
		return http.StatusBadRequest, "invalid option"
	case errors.Is(err, quiz.ErrNotAQuestion):
		return http.StatusConflict, "current node is a result"
	case errors.Is(err, service.ErrStaleOption):
		return http.StatusConflict, "session has moved to another node"
	case errors.Is(err, service.ErrQuizNotFound):
		return http.StatusNotFound, "quiz not found"
	case errors.Is(err, service.ErrSessionNotFound):
		return http.StatusNotFound, "session not found"
	case errors.Is(err, context.Canceled):
		return 499, "request cancelled"
	}
	return http.StatusInternalServerError, "internal error"
}
