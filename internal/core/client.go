package core

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// ChannelType distinguishes the two kinds of sockets a user may hold.
type ChannelType string

const (
	// ChannelChat is a conversation socket paired with exactly one peer.
	ChannelChat ChannelType = "chat"
	// ChannelNotify is the app-wide socket used for call alerts.
	ChannelNotify ChannelType = "notify"
)

const defaultEventBuffer = 64

// Client is one live connection as seen by the core layer.
type Client struct {
	ID          string
	UserID      int64
	Username    string
	Channel     ChannelType
	PeerID      int64 // chat channel only
	ConnectedAt time.Time
	Events      chan *Event

	done        chan struct{}
	closeOnce   sync.Once
	closeReason string
}

// NewClient constructs a client with an initialized outbound queue.
// A non-positive buffer falls back to the default size.
func NewClient(userID int64, username string, channel ChannelType, peerID int64, buffer int) *Client {
	if buffer <= 0 {
		buffer = defaultEventBuffer
	}
	return &Client{
		ID:          uuid.NewString(),
		UserID:      userID,
		Username:    username,
		Channel:     channel,
		PeerID:      peerID,
		ConnectedAt: time.Now(),
		Events:      make(chan *Event, buffer),
		done:        make(chan struct{}),
	}
}

// Done is closed once the hub no longer routes to this client,
// either because it was superseded or unregistered.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Reasons reported by CloseReason.
const (
	CloseSuperseded   = "superseded"
	CloseUnregistered = "unregistered"
	CloseShutdown     = "shutdown"
)

// CloseReason reports why the client was closed. Only valid after Done is closed.
func (c *Client) CloseReason() string {
	return c.closeReason
}

func (c *Client) close(reason string) {
	c.closeOnce.Do(func() {
		c.closeReason = reason
		close(c.done)
	})
}

// send queues an event without blocking. Events for a closed client or a
// full queue are dropped.
func (c *Client) send(ev *Event) bool {
	if c == nil || ev == nil {
		return false
	}
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.Events <- ev:
		return true
	default:
		return false
	}
}

// conversation returns the key of the chat pair this client belongs to.
func (c *Client) conversation() ConversationKey {
	return NewConversationKey(c.UserID, c.PeerID)
}
