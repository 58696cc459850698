package core

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/snapnest-relay/internal/store"
)

const (
	defaultPersistTimeout = 5 * time.Second
	defaultRingTimeout    = 45 * time.Second
	callLogQueueSize      = 256
)

// Options configures a Hub.
type Options struct {
	// Messages persists chat messages and reactions. Required for chat.
	Messages store.MessageStore
	// Calls records call history. Optional.
	Calls          store.CallStore
	Logger         *zerolog.Logger
	PersistTimeout time.Duration
	RingTimeout    time.Duration
	EventBuffer    int
	Now            func() time.Time
}

// Hub coordinates clients, chat pairs and call sessions.
// Registry, CallTable and TypingTracker share one lock so that register,
// unregister and session create/destroy are linearizable.
type Hub struct {
	mu       sync.RWMutex
	registry *Registry
	calls    *CallTable
	typing   *TypingTracker
	closed   bool

	messages store.MessageStore
	callLog  store.CallStore
	logs     chan callLogOp

	logger         *zerolog.Logger
	persistTimeout time.Duration
	ringTimeout    time.Duration
	eventBuffer    int
	now            func() time.Time
}

// NewHub constructs a Hub.
func NewHub(opts Options) *Hub {
	logger := opts.Logger
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	h := &Hub{
		registry:       NewRegistry(),
		calls:          NewCallTable(),
		typing:         NewTypingTracker(),
		messages:       opts.Messages,
		callLog:        opts.Calls,
		logger:         logger,
		persistTimeout: opts.PersistTimeout,
		ringTimeout:    opts.RingTimeout,
		eventBuffer:    opts.EventBuffer,
		now:            opts.Now,
	}
	if h.persistTimeout <= 0 {
		h.persistTimeout = defaultPersistTimeout
	}
	if h.ringTimeout <= 0 {
		h.ringTimeout = defaultRingTimeout
	}
	if h.now == nil {
		h.now = time.Now
	}
	if h.callLog != nil {
		h.logs = make(chan callLogOp, callLogQueueSize)
	}
	return h
}

// NewClient creates a client sized with the hub's event buffer.
func (h *Hub) NewClient(userID int64, username string, channel ChannelType, peerID int64) *Client {
	c := NewClient(userID, username, channel, peerID, h.eventBuffer)
	c.ConnectedAt = h.now()
	return c
}

// Run drives the periodic ring-timeout sweep and drains the call log
// queue until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	interval := h.ringTimeout / 4
	if interval < 100*time.Millisecond {
		interval = 100 * time.Millisecond
	}
	if interval > 5*time.Second {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.drainCallLog(context.Background())
			return
		case <-ticker.C:
			h.sweepRinging(h.now())
		case op := <-h.logs:
			h.writeCallLog(ctx, op)
		}
	}
}

// Register adds c, superseding any prior client for the same user and
// channel. The superseded client is torn down and closed before c is visible.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		c.close(CloseShutdown)
		return
	}
	wasPresent := h.registry.Present(c.UserID)
	prev := h.registry.Register(c)
	if prev != nil {
		h.teardownLocked(prev)
		prev.close(CloseSuperseded)
		h.logger.Info().
			Int64("user_id", c.UserID).
			Str("channel", string(c.Channel)).
			Str("client_id", prev.ID).
			Msg("connection superseded")
	}

	if !wasPresent {
		h.broadcastStatusLocked(c.UserID, true)
	}
	if c.Channel == ChannelChat {
		c.send(&Event{Kind: EventUserStatus, From: c.PeerID, Online: h.registry.Present(c.PeerID)})
	}
	h.logger.Debug().
		Int64("user_id", c.UserID).
		Str("channel", string(c.Channel)).
		Str("client_id", c.ID).
		Msg("client registered")
}

// Unregister removes c and synchronously runs the disconnect cascade:
// bound call sessions end, typing is cleared and presence is updated.
// A client that was already superseded only releases the call sessions
// still bound to it.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.registry.Unregister(c) {
		h.endBoundLocked(c)
		return
	}
	h.teardownLocked(c)
	if !h.registry.Present(c.UserID) {
		h.broadcastStatusLocked(c.UserID, false)
	}
	c.close(CloseUnregistered)
	h.logger.Debug().
		Int64("user_id", c.UserID).
		Str("channel", string(c.Channel)).
		Str("client_id", c.ID).
		Msg("client unregistered")
}

// Close ends every call session, unregisters every client and closes them
// with CloseShutdown. Clients registered afterwards are closed immediately.
// Call-log records queued here are written once Run's context is cancelled.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true

	clients := h.registry.All()
	for _, c := range clients {
		h.teardownLocked(c)
	}
	for _, c := range clients {
		h.registry.Unregister(c)
		c.close(CloseShutdown)
	}
	h.logger.Info().Int("clients", len(clients)).Msg("hub closed")
}

// Lookup returns the live client for (userID, channel) or nil.
func (h *Hub) Lookup(userID int64, channel ChannelType) *Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.registry.Lookup(userID, channel)
}

// Present reports whether userID has any live connection.
func (h *Hub) Present(userID int64) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.registry.Present(userID)
}

// Session returns a copy of the call session for the pair, if any.
func (h *Hub) Session(a, b int64) (CallSession, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	s := h.calls.Get(a, b)
	if s == nil {
		return CallSession{}, false
	}
	return s.snapshot(), true
}

// SessionCount returns the number of live call sessions.
func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.calls.Len()
}

// Handle processes one inbound command from c. Commands from the same
// client must be handed in sequentially to keep per-socket ordering.
func (h *Hub) Handle(ctx context.Context, c *Client, cmd *Command) {
	if cmd == nil {
		return
	}
	h.mu.RLock()
	live := h.liveLocked(c)
	h.mu.RUnlock()
	if !live {
		h.logger.Debug().
			Int64("user_id", c.UserID).
			Str("client_id", c.ID).
			Str("command", cmd.Kind.String()).
			Msg("command from stale client dropped")
		return
	}
	if c.Channel == ChannelNotify && cmd.Kind != CommandDeclineCall && cmd.Kind != CommandEndCall {
		c.send(ErrorEvent(ErrCodeBadRequest, cmd.Kind.String()+" is not allowed on the notification channel"))
		return
	}

	switch cmd.Kind {
	case CommandChatMessage:
		h.handleChatMessage(ctx, c, cmd)
	case CommandReaction:
		h.handleReaction(ctx, c, cmd)
	case CommandTyping:
		h.handleTyping(c, cmd)
	case CommandCallUser:
		h.handleCallUser(c, cmd)
	case CommandAnswerCall:
		h.handleAnswerCall(c, cmd)
	case CommandSignal:
		h.handleSignal(c, cmd)
	case CommandDeclineCall:
		h.handleDeclineCall(c, cmd)
	case CommandEndCall:
		h.handleEndCall(c, cmd)
	case CommandToggleMedia:
		h.handleToggleMedia(c, cmd)
	default:
		c.send(ErrorEvent(ErrCodeBadRequest, "unknown command"))
	}
}

// liveLocked reports whether c is still the registered client for its slot.
func (h *Hub) liveLocked(c *Client) bool {
	return h.registry.Lookup(c.UserID, c.Channel) == c
}

// teardownLocked ends the sessions bound to c and clears its typing state.
// Caller must hold the write lock.
func (h *Hub) teardownLocked(c *Client) {
	h.endBoundLocked(c)

	if c.Channel == ChannelChat && h.typing.Clear(c.conversation(), c.UserID) {
		if peer := h.registry.ChatPeer(c.PeerID, c.UserID); peer != nil {
			peer.send(&Event{Kind: EventTyping, From: c.UserID, Typing: false})
		}
	}
}

// endBoundLocked ends every session bound to c and tells the survivor.
func (h *Hub) endBoundLocked(c *Client) {
	for _, s := range h.calls.BoundTo(c) {
		h.calls.Remove(s.InitiatorID, s.CalleeID)
		survivor := s.Other(c.UserID)
		h.deliverCallLocked(s, survivor, &Event{
			Kind:   EventEndCall,
			From:   c.UserID,
			To:     survivor,
			CallID: s.ID,
			Reason: ReasonDisconnected,
		})
		h.enqueueCallEnd(s, ReasonDisconnected)
		h.logger.Info().
			Str("call_id", s.ID).
			Int64("user_id", c.UserID).
			Msg("call ended by disconnect")
	}
}

// broadcastStatusLocked announces userID's presence to chat clients paired with it.
func (h *Hub) broadcastStatusLocked(userID int64, online bool) {
	for _, w := range h.registry.Watchers(userID) {
		w.send(&Event{Kind: EventUserStatus, From: userID, Online: online})
	}
}

func (h *Hub) persistContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, h.persistTimeout)
}

func failureReason(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return ReasonTimeout
	}
	return ReasonPersistFailed
}
