// ABOUTME: Hub registers WebSocket viewers, routes their commands and fans relay events out to all of them
// ABOUTME: Implements relay.Publisher and broadcasts a periodic status snapshot

package hub

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/2389/silverfox/internal/agent"
	"github.com/2389/silverfox/internal/metrics"
	"github.com/2389/silverfox/internal/relay"
	"github.com/2389/silverfox/internal/store"
)

// DefaultStatusInterval is how often every viewer receives a status snapshot.
const DefaultStatusInterval = 5 * time.Second

// Submitter hands a validated message to the correlator.
type Submitter interface {
	Submit(ctx context.Context, req relay.SubmitRequest) (*store.Message, error)
}

// StatusSource reports the runtime status.
type StatusSource interface {
	FetchStatus(ctx context.Context) agent.Status
}

// ConversationStore defines what the hub needs from storage
type ConversationStore interface {
	CreateConversation(ctx context.Context, sessionKey, title string) (*store.Conversation, error)
	GetConversation(ctx context.Context, id int64) (*store.Conversation, error)
	ListConversations(ctx context.Context, sessionKey string) ([]*store.Conversation, error)
}

// Config holds hub settings.
type Config struct {
	SessionKey       string
	MaxContentLength int
	StatusInterval   time.Duration
	// AllowedOrigins limits browser origins; empty or "*" allows any.
	AllowedOrigins []string
}

// Hub owns the viewer registry.
type Hub struct {
	cfg       Config
	store     ConversationStore
	status    StatusSource
	submitter Submitter
	upgrader  websocket.Upgrader
	logger    *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.RWMutex
	viewers map[string]*Viewer

	// resolveMu serializes the find-or-create of the default conversation.
	resolveMu sync.Mutex
}

// New creates a hub. Call SetSubmitter before serving viewers.
func New(cfg Config, st ConversationStore, status StatusSource, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SessionKey == "" {
		cfg.SessionKey = agent.DefaultSessionKey
	}
	if cfg.MaxContentLength <= 0 {
		cfg.MaxContentLength = relay.DefaultMaxContentLength
	}
	if cfg.StatusInterval <= 0 {
		cfg.StatusInterval = DefaultStatusInterval
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		cfg:     cfg,
		store:   st,
		status:  status,
		logger:  logger.With("component", "hub"),
		ctx:     ctx,
		cancel:  cancel,
		viewers: make(map[string]*Viewer),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// SetSubmitter wires the correlator. The correlator publishes through the
// hub, so the two are constructed separately and joined here.
func (h *Hub) SetSubmitter(s Submitter) {
	h.submitter = s
}

// ServeHTTP upgrades the request and starts the viewer's pumps.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an HTTP error
		h.logger.Warn("websocket upgrade failed", "error", err, "remote", r.RemoteAddr)
		return
	}

	v := newViewer(uuid.New().String(), h, conn)
	h.register(v)

	go v.writePump()
	go v.readPump()

	go h.sendStatus(v)
}

// Publish implements relay.Publisher by fanning the event out to every viewer.
func (h *Hub) Publish(ev relay.Event) {
	frame, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("failed to encode event", "type", ev.Type, "error", err)
		return
	}
	metrics.EventsBroadcast.WithLabelValues(string(ev.Type)).Inc()

	// Sends happen under the read lock: unregister closes channels under the
	// write lock, so no send can race a close.
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, v := range h.viewers {
		h.enqueueLocked(v, frame)
	}
}

// Run broadcasts a status snapshot every StatusInterval until ctx is done,
// then disconnects every viewer.
func (h *Hub) Run(ctx context.Context) error {
	ticker := time.NewTicker(h.cfg.StatusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.Close()
			return nil
		case <-ticker.C:
			h.Publish(relay.StatusSnapshot(h.status.FetchStatus(ctx)))
		}
	}
}

// Close disconnects every viewer and cancels in-flight command handling.
// It is safe to call multiple times.
func (h *Hub) Close() {
	h.cancel()

	h.mu.Lock()
	defer h.mu.Unlock()
	for id, v := range h.viewers {
		delete(h.viewers, id)
		close(v.send)
		metrics.ViewersConnected.Dec()
	}
}

// ViewerCount returns the number of registered viewers.
func (h *Hub) ViewerCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.viewers)
}

func (h *Hub) register(v *Viewer) {
	h.mu.Lock()
	h.viewers[v.id] = v
	h.mu.Unlock()

	metrics.ViewersConnected.Inc()
	h.logger.Info("viewer connected", "viewer_id", v.id)
}

func (h *Hub) unregister(v *Viewer) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if cur, ok := h.viewers[v.id]; !ok || cur != v {
		return
	}
	delete(h.viewers, v.id)
	close(v.send)
	metrics.ViewersConnected.Dec()
	h.logger.Info("viewer disconnected", "viewer_id", v.id)
}

// sendTo delivers an event to a single viewer.
func (h *Hub) sendTo(v *Viewer, ev relay.Event) {
	frame, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("failed to encode event", "type", ev.Type, "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if cur, ok := h.viewers[v.id]; ok && cur == v {
		h.enqueueLocked(v, frame)
	}
}

// enqueueLocked performs a non-blocking send. Must be called with mu held.
func (h *Hub) enqueueLocked(v *Viewer, frame []byte) {
	select {
	case v.send <- frame:
	default:
		metrics.FramesDropped.Inc()
		h.logger.Warn("viewer send buffer full, dropping frame", "viewer_id", v.id)
	}
}

func (h *Hub) sendStatus(v *Viewer) {
	h.sendTo(v, relay.StatusSnapshot(h.status.FetchStatus(h.ctx)))
}

func (h *Hub) notify(v *Viewer, connected bool, message string) {
	h.sendTo(v, relay.ConnectionNotice(connected, message))
}

// handleCommand routes one inbound frame from v.
func (h *Hub) handleCommand(v *Viewer, data []byte) {
	cmd, err := decodeCommand(data)
	if err != nil {
		h.logger.Warn("malformed command", "viewer_id", v.id, "error", err)
		h.notify(v, true, noticeMalformed)
		return
	}

	switch cmd.Type {
	case CommandSend:
		h.handleSend(v, cmd)
	case CommandStatusRefresh:
		h.sendStatus(v)
	default:
		h.logger.Debug("ignoring unknown command", "viewer_id", v.id, "type", cmd.Type)
	}
}

func (h *Hub) handleSend(v *Viewer, cmd command) {
	content, err := cmd.text()
	if err != nil {
		h.notify(v, true, noticeContentNotString)
		return
	}
	if err := relay.ValidateContent(content, h.cfg.MaxContentLength); err != nil {
		h.notify(v, true, err.Error())
		return
	}

	conversationID, err := h.resolveConversation(h.ctx, cmd.ConversationID)
	if errors.Is(err, store.ErrNotFound) {
		h.notify(v, true, noticeNotFound)
		return
	}
	if err != nil {
		h.logger.Error("failed to resolve conversation", "viewer_id", v.id, "error", err)
		h.notify(v, false, noticeInternal)
		return
	}

	if h.submitter == nil {
		h.logger.Error("no submitter configured")
		h.notify(v, false, noticeInternal)
		return
	}

	_, err = h.submitter.Submit(h.ctx, relay.SubmitRequest{
		ConversationID: conversationID,
		Content:        content,
	})
	switch {
	case err == nil:
	case errors.Is(err, relay.ErrUpstreamUnavailable):
		// Already broadcast by the correlator
	case errors.Is(err, relay.ErrValidation):
		h.notify(v, true, err.Error())
	case errors.Is(err, store.ErrNotFound):
		h.notify(v, true, noticeNotFound)
	default:
		h.logger.Error("failed to submit message",
			"viewer_id", v.id,
			"conversation_id", conversationID,
			"error", err,
		)
		h.notify(v, false, noticeInternal)
	}
}

// resolveConversation picks the conversation a send targets. An explicit id
// must exist. Without one, the most recently updated conversation for the
// configured session is used, and one is created if none exists.
func (h *Hub) resolveConversation(ctx context.Context, id *int64) (int64, error) {
	if id != nil {
		conv, err := h.store.GetConversation(ctx, *id)
		if err != nil {
			return 0, err
		}
		return conv.ID, nil
	}

	h.resolveMu.Lock()
	defer h.resolveMu.Unlock()

	convs, err := h.store.ListConversations(ctx, h.cfg.SessionKey)
	if err != nil {
		return 0, err
	}
	if len(convs) > 0 {
		return convs[0].ID, nil
	}

	conv, err := h.store.CreateConversation(ctx, h.cfg.SessionKey, "")
	if err != nil {
		return 0, err
	}
	h.logger.Info("created default conversation", "conversation_id", conv.ID)
	h.Publish(relay.ConversationsChanged())
	return conv.ID, nil
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	if len(h.cfg.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.cfg.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// Ensure Hub implements relay.Publisher
var _ relay.Publisher = (*Hub)(nil)
