// ABOUTME: Correlator pairs submitted user messages with the agent replies that appear later in history
// ABOUTME: Record first, then act: the user message is persisted and broadcast before the runtime sees it

package relay

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/2389/silverfox/internal/agent"
	"github.com/2389/silverfox/internal/dedupe"
	"github.com/2389/silverfox/internal/metrics"
	"github.com/2389/silverfox/internal/store"
)

// Default timings.
const (
	DefaultReplyTimeout = 30 * time.Second
	DefaultPollInterval = time.Second
	DefaultHistoryLimit = 5
)

// Notice texts sent to viewers.
const (
	NoticeSubmitFailed = "Failed to send message to OpenClaw"
	NoticeStillWorking = "OpenClaw is still processing your message"
)

// Agent defines what the correlator needs from the runtime client
type Agent interface {
	Submit(ctx context.Context, content string) bool
	FetchHistory(ctx context.Context, limit int) ([]agent.HistoryEntry, bool)
	FetchStatus(ctx context.Context) agent.Status
}

// Options configures a Correlator. Zero durations and limits take defaults.
type Options struct {
	Store        store.Store
	Agent        Agent
	Publisher    Publisher
	Fingerprints *dedupe.Cache

	ReplyTimeout     time.Duration
	PollInterval     time.Duration
	HistoryLimit     int
	MaxContentLength int

	Logger *slog.Logger
	Now    func() time.Time
}

// SubmitRequest is a user message bound for a conversation.
type SubmitRequest struct {
	ConversationID int64
	Content        string
}

// Correlator owns the outstanding tickets and their polling goroutines.
// Polling runs under the correlator's own context, so a viewer that
// disconnects never aborts the wait for a reply.
type Correlator struct {
	store        store.Store
	agent        Agent
	pub          Publisher
	fingerprints *dedupe.Cache

	replyTimeout     time.Duration
	pollInterval     time.Duration
	historyLimit     int
	maxContentLength int

	logger *slog.Logger
	now    func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	tickets map[string]*Ticket
	closed  bool
}

// New creates a Correlator. Store, Agent and Publisher are required.
func New(opts Options) *Correlator {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Fingerprints == nil {
		opts.Fingerprints = dedupe.New(dedupe.DefaultCapacity)
	}
	if opts.ReplyTimeout <= 0 {
		opts.ReplyTimeout = DefaultReplyTimeout
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = DefaultHistoryLimit
	}
	if opts.MaxContentLength <= 0 {
		opts.MaxContentLength = DefaultMaxContentLength
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Correlator{
		store:            opts.Store,
		agent:            opts.Agent,
		pub:              opts.Publisher,
		fingerprints:     opts.Fingerprints,
		replyTimeout:     opts.ReplyTimeout,
		pollInterval:     opts.PollInterval,
		historyLimit:     opts.HistoryLimit,
		maxContentLength: opts.MaxContentLength,
		logger:           opts.Logger.With("component", "relay"),
		now:              opts.Now,
		ctx:              ctx,
		cancel:           cancel,
		tickets:          make(map[string]*Ticket),
	}
}

// Submit persists and broadcasts the user message, forwards it to the
// runtime, and starts waiting for the reply. It returns once the runtime has
// accepted the message; the reply is delivered later through the Publisher.
//
// Returns ErrValidation for bad content, store.ErrNotFound for an unknown
// conversation, and ErrUpstreamUnavailable when the runtime rejects the message.
// Once the user message is persisted it is returned even alongside an error.
func (c *Correlator) Submit(ctx context.Context, req SubmitRequest) (*store.Message, error) {
	if err := ValidateContent(req.Content, c.maxContentLength); err != nil {
		return nil, err
	}

	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}

	// 1. Record the user message FIRST, then tell every viewer about it
	userMsg, err := c.store.AppendMessage(ctx, req.ConversationID, store.RoleUser, req.Content, nil)
	if err != nil {
		return nil, fmt.Errorf("recording user message: %w", err)
	}
	c.pub.Publish(MessageAdded(userMsg))

	c.logger.Debug("user message recorded",
		"conversation_id", req.ConversationID,
		"message_id", userMsg.ID,
	)

	// 2. Show the typing indicator while the runtime works
	c.pub.Publish(TypingState(true))

	// 3. Forward to the runtime
	submittedAt := c.now()
	if !c.agent.Submit(ctx, req.Content) {
		c.pub.Publish(TypingState(false))
		c.pub.Publish(ConnectionNotice(false, NoticeSubmitFailed))
		metrics.RecordSubmitFailed()
		c.logger.Warn("runtime rejected message", "conversation_id", req.ConversationID)
		return userMsg, fmt.Errorf("submitting message %d: %w", userMsg.ID, ErrUpstreamUnavailable)
	}

	// 4. Wait for the reply in the background
	t := &Ticket{
		ID:             uuid.New().String(),
		ConversationID: req.ConversationID,
		Content:        req.Content,
		SubmittedAt:    submittedAt,
		Deadline:       submittedAt.Add(c.replyTimeout),
	}
	if !c.register(t) {
		c.pub.Publish(TypingState(false))
		return userMsg, ErrClosed
	}

	go c.poll(t)

	return userMsg, nil
}

// ActiveTickets returns the number of tickets still waiting for a reply.
func (c *Correlator) ActiveTickets() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tickets)
}

// Close cancels every polling goroutine and waits for them to exit.
// It is safe to call multiple times.
func (c *Correlator) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
}

func (c *Correlator) register(t *Ticket) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	c.tickets[t.ID] = t
	c.wg.Add(1)
	metrics.RecordTicketStarted()
	return true
}

func (c *Correlator) finish(t *Ticket, outcome string) {
	c.mu.Lock()
	delete(c.tickets, t.ID)
	c.mu.Unlock()

	metrics.RecordTicketFinished(outcome)
	c.logger.Debug("ticket finished",
		"ticket_id", t.ID,
		"conversation_id", t.ConversationID,
		"outcome", outcome,
	)
}

// poll runs one ticket to completion: a reply, a duplicate, the deadline,
// or correlator shutdown.
func (c *Correlator) poll(t *Ticket) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			c.finish(t, metrics.OutcomeCancelled)
			return
		case <-ticker.C:
		}

		if t.expired(c.now()) {
			c.expire(t)
			return
		}

		entries, ok := c.agent.FetchHistory(c.ctx, c.historyLimit)
		if !ok {
			continue
		}
		reply, found := latestAssistant(entries)
		if !found {
			continue
		}

		// A ticket never resolves after its deadline, even if the reply
		// arrived while the history request was in flight.
		if t.expired(c.now()) {
			c.expire(t)
			return
		}

		if c.resolve(t, reply) {
			return
		}
	}
}

// resolve handles a candidate reply. It returns false when the ticket
// should keep polling.
func (c *Correlator) resolve(t *Ticket, reply agent.HistoryEntry) bool {
	key := fingerprint(t.ConversationID, reply.Content)

	if c.fingerprints.CheckAndMark(key) {
		c.pub.Publish(TypingState(false))
		c.finish(t, metrics.OutcomeDuplicate)
		return true
	}

	assistantMsg, err := c.store.AppendMessage(c.ctx, t.ConversationID, store.RoleAssistant, reply.Content, reply.Tokens)
	if err != nil {
		// Unmark so a later poll can retry the write.
		c.fingerprints.Forget(key)
		c.logger.Error("failed to record reply",
			"conversation_id", t.ConversationID,
			"error", err,
		)
		return false
	}
	c.pub.Publish(MessageAdded(assistantMsg))

	c.applyTitle(t)

	c.pub.Publish(TypingState(false))
	c.pub.Publish(StatusSnapshot(c.agent.FetchStatus(c.ctx)))

	metrics.ReplyLatency.Observe(c.now().Sub(t.SubmittedAt).Seconds())
	c.finish(t, metrics.OutcomeResolved)
	return true
}

// applyTitle names the conversation after its first exchange.
func (c *Correlator) applyTitle(t *Ticket) {
	count, err := c.store.CountMessages(c.ctx, t.ConversationID)
	if err != nil {
		c.logger.Warn("failed to count messages", "conversation_id", t.ConversationID, "error", err)
		return
	}
	if count != 2 {
		return
	}

	if err := c.store.UpdateTitle(c.ctx, t.ConversationID, DeriveTitle(t.Content)); err != nil {
		c.logger.Warn("failed to update title", "conversation_id", t.ConversationID, "error", err)
		return
	}
	c.pub.Publish(ConversationsChanged())
}

func (c *Correlator) expire(t *Ticket) {
	c.pub.Publish(TypingState(false))
	c.pub.Publish(ConnectionNotice(true, NoticeStillWorking))
	c.finish(t, metrics.OutcomeTimeout)
}

// latestAssistant returns the newest assistant entry in history.
func latestAssistant(entries []agent.HistoryEntry) (agent.HistoryEntry, bool) {
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].Role == string(store.RoleAssistant) {
			return entries[i], true
		}
	}
	return agent.HistoryEntry{}, false
}
