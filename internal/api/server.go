// Package api implements the HTTP surface: /chat, /sales_trainer,
// /reset and /healthz.
package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"specbuddy/internal/engine"
	"specbuddy/internal/extract"
	"specbuddy/internal/prompt"
)

// defaultSessionID backs /reset when the caller omits session_id.
const defaultSessionID = "default"

type Server struct {
	engine *engine.Engine
	logger *slog.Logger
}

// NewServer wires the routes and middleware into a handler.
func NewServer(eng *engine.Engine, allowedOrigin string, logger *slog.Logger) http.Handler {
	s := &Server{engine: eng, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("/chat", s.handleChat)
	mux.HandleFunc("/sales_trainer", s.handleSalesTrainer)
	mux.HandleFunc("/reset", s.handleReset)
	mux.HandleFunc("/healthz", s.handleHealthz)

	return chainMiddlewares(mux,
		withRequestLogging(logger),
		withCORS(allowedOrigin),
	)
}

// ─────────────────────────────────────────────
// DTOs (request/response)
// ─────────────────────────────────────────────

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

type collectResponse struct {
	Reply string `json:"reply"`
}

type finalResponse struct {
	Reply             string           `json:"reply"`
	Summary           *summaryResponse `json:"summary,omitempty"`
	ImageQuery        string           `json:"image_query,omitempty"`
	ImageURL          *string          `json:"image_url"`
	ConversationEnded bool             `json:"conversation_ended"`
	Error             string           `json:"error,omitempty"`
}

type summaryResponse struct {
	Product         string            `json:"product"`
	Budget          string            `json:"budget"`
	PreferredBrands []string          `json:"preferred_brands"`
	Color           string            `json:"color"`
	Size            string            `json:"size"`
	DeliveryMode    string            `json:"delivery_mode"`
	Extras          map[string]string `json:"extras,omitempty"`
}

type resetRequest struct {
	SessionID string `json:"session_id"`
}

type resetResponse struct {
	Status string `json:"status"`
}

// ─────────────────────────────────────────────
// Handlers
// ─────────────────────────────────────────────

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	s.handleConversation(w, r, prompt.PersonaSpecBuddy)
}

func (s *Server) handleSalesTrainer(w http.ResponseWriter, r *http.Request) {
	s.handleConversation(w, r, prompt.PersonaSalesTrainer)
}

func (s *Server) handleConversation(w http.ResponseWriter, r *http.Request, persona prompt.Persona) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		badRequest(w, "message is required")
		return
	}
	if req.SessionID == "" {
		badRequest(w, "session_id is required")
		return
	}

	reply, err := s.engine.HandleMessage(r.Context(), persona, req.SessionID, req.Message)
	if err != nil {
		// The user's message stays in history; the caller may retry.
		writeJSON(w, http.StatusBadGateway, map[string]string{
			"error": "assistant unavailable",
		}, s.logger)
		return
	}

	if !reply.Ended {
		writeJSON(w, http.StatusOK, collectResponse{Reply: reply.Text}, s.logger)
		return
	}
	writeJSON(w, http.StatusOK, toFinalResponse(reply), s.logger)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	var req resetRequest
	if r.Body != nil {
		// A missing or empty body resets the default session.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	if req.SessionID == "" {
		req.SessionID = defaultSessionID
	}

	s.engine.Reset(req.SessionID)

	writeJSON(w, http.StatusOK, resetResponse{
		Status: fmt.Sprintf("Conversation reset for %s", req.SessionID),
	}, s.logger)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// ─────────────────────────────────────────────
// Mapping helpers
// ─────────────────────────────────────────────

// toFinalResponse maps a finalization reply. image_url serializes as
// null when no image was resolved, never as an empty string.
func toFinalResponse(reply *engine.Reply) finalResponse {
	resp := finalResponse{
		Reply:             reply.Text,
		ImageQuery:        reply.ImageQuery,
		ConversationEnded: true,
	}
	if reply.ExtractFailed {
		resp.Error = "summary extraction failed"
	}
	if reply.Summary != nil {
		resp.Summary = toSummaryResponse(reply.Summary)
	}
	if reply.ImageURL != "" {
		u := reply.ImageURL
		resp.ImageURL = &u
	}
	return resp
}

func toSummaryResponse(s *extract.Summary) *summaryResponse {
	brands := s.PreferredBrands
	if brands == nil {
		brands = []string{}
	}
	return &summaryResponse{
		Product:         s.Product,
		Budget:          s.Budget,
		PreferredBrands: brands,
		Color:           s.Color,
		Size:            s.Size,
		DeliveryMode:    s.DeliveryMode,
		Extras:          s.Extras,
	}
}

// ─────────────────────────────────────────────
// HTTP helpers
// ─────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("failed to write JSON response", "error", err)
	}
}

func badRequest(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusBadRequest)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func methodNotAllowed(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusMethodNotAllowed)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": "method not allowed"})
}
