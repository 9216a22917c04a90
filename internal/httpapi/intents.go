package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Adityashandilya555/personifi-aria-sub001/internal/intent"
)

type recordSignalRequest struct {
	UserID string `json:"user_id"`
	Signal string `json:"signal"`
	Note   string `json:"note"`
}

type closeTopicRequest struct {
	UserID string `json:"user_id"`
}

func (s *Server) handleProcessMessage(w http.ResponseWriter, r *http.Request) {
	if s.service == nil {
		respondError(w, http.StatusNotImplemented, "intent_runtime_unavailable", "Intent runtime is not configured.")
		return
	}

	var req intent.ProcessRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "user_id is required")
		return
	}

	res, err := s.service.ProcessMessage(r.Context(), req)
	if err != nil {
		respondError(w, http.StatusBadRequest, "message_processing_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleListTopics(w http.ResponseWriter, r *http.Request) {
	if s.service == nil {
		respondError(w, http.StatusNotImplemented, "intent_runtime_unavailable", "Intent runtime is not configured.")
		return
	}

	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if userID == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "user_id query param is required")
		return
	}

	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "invalid_request", "limit must be a positive integer")
			return
		}
		limit = n
	}

	topics, err := s.service.GetActiveTopics(r.Context(), userID, limit)
	if err != nil {
		respondError(w, http.StatusBadRequest, "topics_list_failed", err.Error())
		return
	}
	if topics == nil {
		topics = []intent.TopicIntent{}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"user_id": userID,
		"topics":  topics,
	})
}

func (s *Server) handleGetStrategy(w http.ResponseWriter, r *http.Request) {
	if s.service == nil {
		respondError(w, http.StatusNotImplemented, "intent_runtime_unavailable", "Intent runtime is not configured.")
		return
	}

	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if userID == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "user_id query param is required")
		return
	}

	strategy, err := s.service.GetStrategy(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusBadRequest, "strategy_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"user_id":  userID,
		"strategy": strategy,
	})
}

func (s *Server) handleRecordSignal(w http.ResponseWriter, r *http.Request) {
	if s.service == nil {
		respondError(w, http.StatusNotImplemented, "intent_runtime_unavailable", "Intent runtime is not configured.")
		return
	}
	topicID := strings.TrimSpace(chi.URLParam(r, "id"))
	if topicID == "" {
		respondError(w, http.StatusBadRequest, "invalid_topic_id", "missing topic id")
		return
	}

	var req recordSignalRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "user_id is required")
		return
	}
	if strings.TrimSpace(req.Signal) == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "signal is required")
		return
	}

	topic, err := s.service.RecordSignal(r.Context(), req.UserID, topicID, intent.SignalKind(req.Signal), req.Note)
	if err != nil {
		respondTopicError(w, "signal_failed", err)
		return
	}
	respondJSON(w, http.StatusOK, topic)
}

func (s *Server) handleAbandonTopic(w http.ResponseWriter, r *http.Request) {
	s.handleCloseTopic(w, r, "abandon_failed", func(r *http.Request, userID, topicID string) (intent.TopicIntent, error) {
		return s.service.AbandonTopic(r.Context(), userID, topicID)
	})
}

func (s *Server) handleCompleteTopic(w http.ResponseWriter, r *http.Request) {
	s.handleCloseTopic(w, r, "complete_failed", func(r *http.Request, userID, topicID string) (intent.TopicIntent, error) {
		return s.service.CompleteTopic(r.Context(), userID, topicID)
	})
}

func (s *Server) handleCloseTopic(w http.ResponseWriter, r *http.Request, failCode string, closeFn func(*http.Request, string, string) (intent.TopicIntent, error)) {
	if s.service == nil {
		respondError(w, http.StatusNotImplemented, "intent_runtime_unavailable", "Intent runtime is not configured.")
		return
	}
	topicID := strings.TrimSpace(chi.URLParam(r, "id"))
	if topicID == "" {
		respondError(w, http.StatusBadRequest, "invalid_topic_id", "missing topic id")
		return
	}

	var req closeTopicRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "user_id is required")
		return
	}

	topic, err := closeFn(r, req.UserID, topicID)
	if err != nil {
		respondTopicError(w, failCode, err)
		return
	}
	respondJSON(w, http.StatusOK, topic)
}

func respondTopicError(w http.ResponseWriter, failCode string, err error) {
	switch {
	case errors.Is(err, intent.ErrTopicNotFound):
		respondError(w, http.StatusNotFound, "topic_not_found", err.Error())
	case errors.Is(err, intent.ErrTopicTerminal):
		respondError(w, http.StatusConflict, "topic_terminal", err.Error())
	default:
		respondError(w, http.StatusBadRequest, failCode, err.Error())
	}
}
