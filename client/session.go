package client

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
)

// Session is the process-wide relay state of one authenticated user: the
// notify channel plus the currently open chat, if any.
type Session struct {
	base *url.URL
	opts Options

	mu       sync.Mutex
	notify   *Conn
	chat     *Conn
	chatPeer int64
	closed   bool
}

// NewSession prepares a session against baseURL (http, https, ws or wss)
// authenticated by token. Nothing is dialed until Start or OpenChat.
func NewSession(baseURL, token string, opts Options) (*Session, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("client: parse base url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("client: unsupported scheme %q", u.Scheme)
	}
	if token == "" {
		return nil, errors.New("client: empty token")
	}
	u.Path = strings.TrimSuffix(u.Path, "/")

	header := http.Header{}
	for k, v := range opts.Header {
		header[k] = v
	}
	header.Set("Authorization", "Bearer "+token)
	opts.Header = header

	return &Session{base: u, opts: opts}, nil
}

func (s *Session) endpoint(path string) string {
	u := *s.base
	u.Path += path
	return u.String()
}

// Start opens the notify channel. Calling it again returns the same Conn.
func (s *Session) Start() (*Conn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	if s.notify == nil {
		s.notify = Open(s.endpoint("/ws/notify"), s.opts)
	}
	return s.notify, nil
}

// Notify returns the notify channel, or nil before Start.
func (s *Session) Notify() *Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.notify
}

// OpenChat opens the chat channel with peerID. Any chat with a different peer
// is closed first; reopening the current peer returns the existing Conn.
func (s *Session) OpenChat(peerID int64) (*Conn, error) {
	if peerID <= 0 {
		return nil, fmt.Errorf("client: invalid peer id %d", peerID)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	if s.chat != nil && s.chatPeer == peerID {
		select {
		case <-s.chat.Done():
		default:
			c := s.chat
			s.mu.Unlock()
			return c, nil
		}
	}
	// The previous chat is fully closed before dialing so the relay never
	// sees the new socket supersede it.
	if s.chat != nil {
		s.chat.Close()
	}
	s.chat = Open(s.endpoint(fmt.Sprintf("/ws/chat/%d", peerID)), s.opts)
	s.chatPeer = peerID
	c := s.chat
	s.mu.Unlock()

	return c, nil
}

// Chat returns the open chat channel and its peer, or nil and 0.
func (s *Session) Chat() (*Conn, int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chat, s.chatPeer
}

// CloseChat closes the chat channel if one is open.
func (s *Session) CloseChat() {
	s.mu.Lock()
	c := s.chat
	s.chat, s.chatPeer = nil, 0
	s.mu.Unlock()

	if c != nil {
		c.Close()
	}
}

// Close tears down every channel. The session cannot be reused.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	notify, chat := s.notify, s.chat
	s.notify, s.chat, s.chatPeer = nil, nil, 0
	s.mu.Unlock()

	if chat != nil {
		chat.Close()
	}
	if notify != nil {
		notify.Close()
	}
	return nil
}
