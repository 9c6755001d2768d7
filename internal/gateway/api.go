// ABOUTME: HTTP API handlers for conversations, messages, health and agent status
// ABOUTME: Routes are served by chi; errors are returned as JSON objects with a status code

package gateway

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/2389/silverfox/internal/relay"
	"github.com/2389/silverfox/internal/store"
)

// Error messages returned to API clients.
const (
	msgInvalidID       = "Invalid conversation id"
	msgInvalidLimit    = "Invalid limit"
	msgInvalidBody     = "Invalid request body"
	msgNotFound        = "Conversation not found"
	msgInternal        = "Internal server error"
	maxRequestBodySize = 64 << 10
)

// HealthResponse is the JSON response for GET /api/health.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// CreateConversationRequest is the JSON request body for POST /api/conversations.
type CreateConversationRequest struct {
	SessionKey string `json:"sessionKey,omitempty"`
	Title      string `json:"title,omitempty"`
}

// ErrorResponse is the JSON body of every failed API request.
type ErrorResponse struct {
	Error  string `json:"error"`
	Status int    `json:"status"`
}

// routes builds the chi router for the whole HTTP surface.
func (g *Gateway) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(g.logger.With("component", "http")))
	r.Use(middleware.Recoverer)

	// Health endpoints
	r.Get("/health", g.handleHealth)
	r.Get("/health/ready", g.handleReady)

	// Viewer channel
	r.Get("/ws", g.hub.ServeHTTP)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", g.handleAPIHealth)
		r.Get("/status", g.handleStatus)

		r.Route("/conversations", func(r chi.Router) {
			r.Get("/", g.handleListConversations)
			r.Post("/", g.handleCreateConversation)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", g.handleGetConversation)
				r.Delete("/", g.handleDeleteConversation)
				r.Get("/messages", g.handleListMessages)
			})
		})
	})

	if g.config.Metrics.Enabled {
		r.Handle(g.config.Metrics.Path, promhttp.Handler())
		g.logger.Info("metrics endpoint enabled", "path", g.config.Metrics.Path)
	}

	return r
}

// requestLogger logs every request through slog once the handler returns.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			defer func() {
				logger.Debug("http request",
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"bytes", ww.BytesWritten(),
					"duration", time.Since(start),
					"request_id", middleware.GetReqID(r.Context()),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

// handleAPIHealth handles GET /api/health.
func (g *Gateway) handleAPIHealth(w http.ResponseWriter, r *http.Request) {
	g.writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	})
}

// handleStatus handles GET /api/status by asking the agent runtime.
// An unreachable runtime still yields a 200 with connected=false.
func (g *Gateway) handleStatus(w http.ResponseWriter, r *http.Request) {
	g.writeJSON(w, http.StatusOK, g.agent.FetchStatus(r.Context()))
}

// handleListConversations handles GET /api/conversations[?sessionKey=X].
func (g *Gateway) handleListConversations(w http.ResponseWriter, r *http.Request) {
	convs, err := g.store.ListConversations(r.Context(), r.URL.Query().Get("sessionKey"))
	if err != nil {
		g.sendStoreError(w, "listing conversations", err)
		return
	}
	if convs == nil {
		convs = []*store.Conversation{}
	}
	g.writeJSON(w, http.StatusOK, convs)
}

// handleCreateConversation handles POST /api/conversations.
// An empty body creates a conversation for the configured session.
func (g *Gateway) handleCreateConversation(w http.ResponseWriter, r *http.Request) {
	var req CreateConversationRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBodySize))
	if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		g.sendJSONError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	sessionKey := req.SessionKey
	if sessionKey == "" {
		sessionKey = g.config.OpenClaw.SessionKey
	}

	conv, err := g.store.CreateConversation(r.Context(), sessionKey, req.Title)
	if err != nil {
		g.sendStoreError(w, "creating conversation", err)
		return
	}

	g.hub.Publish(relay.ConversationsChanged())
	g.writeJSON(w, http.StatusCreated, conv)
}

// handleGetConversation handles GET /api/conversations/{id}.
func (g *Gateway) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	id, ok := g.conversationID(w, r)
	if !ok {
		return
	}

	conv, err := g.store.GetConversation(r.Context(), id)
	if err != nil {
		g.sendStoreError(w, "getting conversation", err)
		return
	}
	g.writeJSON(w, http.StatusOK, conv)
}

// handleListMessages handles GET /api/conversations/{id}/messages[?limit=N].
// With a limit only the newest N messages are returned, still oldest first.
func (g *Gateway) handleListMessages(w http.ResponseWriter, r *http.Request) {
	id, ok := g.conversationID(w, r)
	if !ok {
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			g.sendJSONError(w, http.StatusBadRequest, msgInvalidLimit)
			return
		}
		limit = n
	}

	if _, err := g.store.GetConversation(r.Context(), id); err != nil {
		g.sendStoreError(w, "getting conversation", err)
		return
	}

	var (
		msgs []*store.Message
		err  error
	)
	if limit > 0 {
		msgs, err = g.store.ListRecentMessages(r.Context(), id, limit)
	} else {
		msgs, err = g.store.ListMessages(r.Context(), id)
	}
	if err != nil {
		g.sendStoreError(w, "listing messages", err)
		return
	}
	if msgs == nil {
		msgs = []*store.Message{}
	}
	g.writeJSON(w, http.StatusOK, msgs)
}

// handleDeleteConversation handles DELETE /api/conversations/{id}.
func (g *Gateway) handleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	id, ok := g.conversationID(w, r)
	if !ok {
		return
	}

	if err := g.store.DeleteConversation(r.Context(), id); err != nil {
		g.sendStoreError(w, "deleting conversation", err)
		return
	}

	g.hub.Publish(relay.ConversationsChanged())
	w.WriteHeader(http.StatusNoContent)
}

// conversationID parses the {id} URL parameter. It writes a 400 and returns
// false for anything but a positive integer.
func (g *Gateway) conversationID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		g.sendJSONError(w, http.StatusBadRequest, msgInvalidID)
		return 0, false
	}
	return id, true
}

// sendStoreError maps a store error to 404 or 500. Internal details are logged, never returned.
func (g *Gateway) sendStoreError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, store.ErrNotFound) {
		g.sendJSONError(w, http.StatusNotFound, msgNotFound)
		return
	}
	g.logger.Error("store operation failed", "op", op, "error", err)
	g.sendJSONError(w, http.StatusInternalServerError, msgInternal)
}

// sendJSONError writes a JSON error response.
func (g *Gateway) sendJSONError(w http.ResponseWriter, status int, message string) {
	g.writeJSON(w, status, ErrorResponse{Error: message, Status: status})
}

func (g *Gateway) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		g.logger.Debug("failed to write response", "error", err)
	}
}
