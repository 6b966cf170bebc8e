package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"librarydesk/internal/agent"
	"librarydesk/internal/ratelimit"
	"librarydesk/internal/util"
	"librarydesk/pkg/domain"
	"librarydesk/pkg/store"
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	Store         store.Store
	Agent         *agent.Agent
	Limiter       *ratelimit.FixedWindowLimiter
	AllowedOrigin string
}

// Server exposes the chat gateway endpoints.
type Server struct {
	store         store.Store
	agent         *agent.Agent
	limiter       *ratelimit.FixedWindowLimiter
	allowedOrigin string
	mux           *http.ServeMux
}

// New constructs the server with routes configured.
func New(cfg Config) *Server {
	s := &Server{
		store:         cfg.Store,
		agent:         cfg.Agent,
		limiter:       cfg.Limiter,
		allowedOrigin: cfg.AllowedOrigin,
		mux:           http.NewServeMux(),
	}
	s.routes()
	return s
}

// Router returns the configured handler with the middleware chain applied.
func (s *Server) Router() http.Handler {
	return util.WithSecurityHeaders(
		util.WithCORS(s.allowedOrigin,
			util.WithRequestID(
				util.WithRequestLog("librarydesk", s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/", s.handleRoot)
	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.Handle("/chat", s.withRateLimit(http.HandlerFunc(s.handleChat)))
	s.mux.HandleFunc("/history/", s.handleHistory)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message":      "Library Desk Agent API is running.",
		"agent_status": "running",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// withRateLimit applies the per-client fixed-window quota to chat requests.
// A nil limiter disables limiting.
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	if s.limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow(util.ClientIP(r, nil)) {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type chatRequest struct {
	Prompt    string `json:"prompt"`
	SessionID string `json:"session_id"`
}

type toolInfo struct {
	ToolsUsed []string `json:"tools_used"`
}

type chatResponse struct {
	Response  string   `json:"response"`
	SessionID string   `json:"session_id"`
	ToolInfo  toolInfo `json:"tool_info"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req chatRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeError(w, http.StatusBadRequest, "prompt is required")
		return
	}
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	logger := util.LoggerFromContext(r.Context())

	history, err := s.store.LoadHistory(sessionID)
	if err != nil {
		// A broken history lookup degrades to a fresh conversation rather
		// than failing the request.
		logger.Warn("load history failed", "session_id", sessionID, "error", err)
		history = nil
	}
	if err := s.store.SaveMessage(sessionID, domain.RoleUser, req.Prompt); err != nil {
		logger.Warn("save user message failed", "session_id", sessionID, "error", err)
	}

	result, err := s.agent.Run(r.Context(), history, req.Prompt)
	answer := result.Answer
	if err != nil {
		logger.Error("agent run failed", "session_id", sessionID, "error", err)
		answer = "An internal error occurred during agent execution: " + err.Error()
	}

	if err := s.store.SaveMessage(sessionID, domain.RoleAssistant, answer); err != nil {
		logger.Warn("save assistant message failed", "session_id", sessionID, "error", err)
	}

	toolsUsed := result.ToolsUsed
	if toolsUsed == nil {
		toolsUsed = []string{}
	}
	writeJSON(w, http.StatusOK, chatResponse{
		Response:  answer,
		SessionID: sessionID,
		ToolInfo:  toolInfo{ToolsUsed: toolsUsed},
	})
}

type historyEntry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type historyResponse struct {
	Status  string         `json:"status"`
	History []historyEntry `json:"history"`
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	sessionID := strings.TrimPrefix(r.URL.Path, "/history/")
	if sessionID == "" || strings.Contains(sessionID, "/") {
		writeError(w, http.StatusBadRequest, "session id is required")
		return
	}
	turns, err := s.store.LoadHistory(sessionID)
	if err != nil {
		util.LoggerFromContext(r.Context()).Error("load history failed", "session_id", sessionID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	history := make([]historyEntry, 0, len(turns))
	for _, turn := range turns {
		history = append(history, historyEntry{Role: turn.Role, Content: turn.Content})
	}
	writeJSON(w, http.StatusOK, historyResponse{Status: "Success", History: history})
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
