// Package client is a Go client for the relay's WebSocket channels.
//
// A Conn owns one channel (chat or notify), reconnects on its own until it is
// closed, and dispatches inbound frames to subscribers by their "type". A
// Session owns the notify channel and at most one chat channel for a user.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Wildcard subscribes a handler to every inbound frame.
const Wildcard = "*"

var (
	// ErrClosed is returned by operations on a closed Conn.
	ErrClosed = errors.New("client: connection closed")
	// ErrQueueFull is returned by Send when the outbound queue is full.
	ErrQueueFull = errors.New("client: send queue full")
	// ErrRejected reports that the relay refused the handshake, typically
	// because the token is invalid. A rejected Conn does not reconnect.
	ErrRejected = errors.New("client: handshake rejected")
	// ErrSuperseded reports that another connection of the same user took
	// over this channel. A superseded Conn does not reconnect.
	ErrSuperseded = errors.New("client: superseded by another connection")
)

const (
	defaultMinBackoff = 500 * time.Millisecond
	defaultMaxBackoff = 30 * time.Second
	defaultSendBuffer = 64
	writeTimeout      = 10 * time.Second
)

// Event is one inbound frame.
type Event struct {
	Type string
	Raw  json.RawMessage
}

// Decode unmarshals the frame into v.
func (e Event) Decode(v any) error {
	return json.Unmarshal(e.Raw, v)
}

// Handler receives inbound frames. Handlers run on the connection's read
// goroutine and must not block.
type Handler func(Event)

// Options tune a Conn. Zero values select defaults.
type Options struct {
	Header     http.Header
	Dialer     *websocket.Dialer
	MinBackoff time.Duration
	MaxBackoff time.Duration
	SendBuffer int
	Logger     *zerolog.Logger

	// OnConnect and OnDisconnect fire on every (re)connection edge.
	OnConnect    func()
	OnDisconnect func(error)
}

type subscription struct {
	id uint64
	fn Handler
}

// Conn is a self-healing WebSocket connection to one relay channel.
type Conn struct {
	url    string
	opts   Options
	dialer *websocket.Dialer
	log    zerolog.Logger

	send chan []byte

	mu      sync.RWMutex
	subs    map[string][]subscription
	nextSub uint64
	ready   chan struct{}
	up      bool
	err     error

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// Open starts connecting to url in the background and returns immediately.
func Open(url string, opts Options) *Conn {
	if opts.MinBackoff <= 0 {
		opts.MinBackoff = defaultMinBackoff
	}
	if opts.MaxBackoff < opts.MinBackoff {
		opts.MaxBackoff = max(defaultMaxBackoff, opts.MinBackoff)
	}
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = defaultSendBuffer
	}
	dialer := opts.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Conn{
		url:    url,
		opts:   opts,
		dialer: dialer,
		log:    logger.With().Str("url", url).Logger(),
		send:   make(chan []byte, opts.SendBuffer),
		subs:   make(map[string][]subscription),
		ready:  make(chan struct{}),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go c.run()
	return c
}

// Subscribe registers fn for frames of the given type, or every frame for
// Wildcard. The returned func removes the subscription and is safe to call
// more than once.
func (c *Conn) Subscribe(typ string, fn Handler) func() {
	c.mu.Lock()
	c.nextSub++
	id := c.nextSub
	c.subs[typ] = append(c.subs[typ], subscription{id: id, fn: fn})
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			list := c.subs[typ]
			for i, s := range list {
				if s.id == id {
					c.subs[typ] = append(list[:i:i], list[i+1:]...)
					break
				}
			}
			if len(c.subs[typ]) == 0 {
				delete(c.subs, typ)
			}
		})
	}
}

// Send queues v for delivery. Frames queued while disconnected are sent
// after the next successful reconnect.
func (c *Conn) Send(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("client: marshal frame: %w", err)
	}
	select {
	case <-c.done:
		return c.closedErr()
	default:
	}
	select {
	case c.send <- data:
		return nil
	default:
		return ErrQueueFull
	}
}

// Connected reports whether the socket is currently open.
func (c *Conn) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.up
}

// WaitConnected blocks until the socket is open, the Conn stops, or ctx ends.
func (c *Conn) WaitConnected(ctx context.Context) error {
	c.mu.RLock()
	ready := c.ready
	c.mu.RUnlock()

	select {
	case <-ready:
		return nil
	case <-c.done:
		return c.closedErr()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed once the Conn has stopped for good.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Err returns why the Conn stopped, or nil while it is running.
func (c *Conn) Err() error {
	select {
	case <-c.done:
		return c.closedErr()
	default:
		return nil
	}
}

// Close stops reconnecting, closes the socket and waits for the background
// goroutine to exit.
func (c *Conn) Close() error {
	c.cancel()
	<-c.done
	return nil
}

func (c *Conn) closedErr() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.err != nil {
		return c.err
	}
	return ErrClosed
}

func (c *Conn) run() {
	defer close(c.done)

	var pending []byte
	for attempt := 0; ; attempt++ {
		ws, resp, err := c.dialer.DialContext(c.ctx, c.url, c.opts.Header)
		if err == nil {
			attempt = 0
			c.setUp(true)
			if c.opts.OnConnect != nil {
				c.opts.OnConnect()
			}
			pending, err = c.serve(ws, pending)
			c.setUp(false)
			if c.opts.OnDisconnect != nil {
				c.opts.OnDisconnect(err)
			}
			if websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
				c.mu.Lock()
				c.err = ErrSuperseded
				c.mu.Unlock()
				c.log.Info().Msg("connection superseded")
				return
			}
		} else if resp != nil && resp.StatusCode >= 400 && resp.StatusCode < 500 {
			c.mu.Lock()
			c.err = fmt.Errorf("%w: %s", ErrRejected, resp.Status)
			c.mu.Unlock()
			c.log.Warn().Int("status", resp.StatusCode).Msg("relay rejected handshake")
			return
		}

		if c.ctx.Err() != nil {
			return
		}
		delay := backoff(c.opts.MinBackoff, c.opts.MaxBackoff, attempt)
		c.log.Debug().Err(err).Dur("retry_in", delay).Msg("relay connection lost")
		select {
		case <-c.ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

// serve pumps frames until the socket fails or the Conn is closed. A frame
// that could not be written is returned so it is retried after reconnecting.
func (c *Conn) serve(ws *websocket.Conn, pending []byte) ([]byte, error) {
	readErr := make(chan error, 1)
	go func() {
		readErr <- c.readLoop(ws)
	}()

	write := func(data []byte) error {
		_ = ws.SetWriteDeadline(time.Now().Add(writeTimeout))
		return ws.WriteMessage(websocket.TextMessage, data)
	}

	fail := func(err error) ([]byte, error) {
		ws.Close()
		<-readErr
		return pending, err
	}

	if pending != nil {
		if err := write(pending); err != nil {
			return fail(err)
		}
		pending = nil
	}

	for {
		select {
		case data := <-c.send:
			if err := write(data); err != nil {
				pending = data
				return fail(err)
			}
		case err := <-readErr:
			ws.Close()
			return pending, err
		case <-c.ctx.Done():
			_ = ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"),
				time.Now().Add(time.Second))
			return fail(c.ctx.Err())
		}
	}
}

func (c *Conn) readLoop(ws *websocket.Conn) error {
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return err
		}
		var head struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(data, &head); err != nil || head.Type == "" {
			c.log.Debug().Err(err).Msg("drop unparseable frame")
			continue
		}
		c.dispatch(Event{Type: head.Type, Raw: data})
	}
}

func (c *Conn) dispatch(ev Event) {
	c.mu.RLock()
	handlers := make([]Handler, 0, len(c.subs[ev.Type])+len(c.subs[Wildcard]))
	for _, s := range c.subs[ev.Type] {
		handlers = append(handlers, s.fn)
	}
	for _, s := range c.subs[Wildcard] {
		handlers = append(handlers, s.fn)
	}
	c.mu.RUnlock()

	for _, fn := range handlers {
		fn(ev)
	}
}

func (c *Conn) setUp(up bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.up == up {
		return
	}
	c.up = up
	if up {
		close(c.ready)
	} else {
		c.ready = make(chan struct{})
	}
}

// backoff returns the delay before reconnect attempt n: exponential growth
// from min capped at max, with the upper half jittered.
func backoff(minDelay, maxDelay time.Duration, n int) time.Duration {
	d := minDelay
	for i := 0; i < n && d < maxDelay; i++ {
		d *= 2
	}
	d = min(d, maxDelay)
	half := d / 2
	return half + time.Duration(rand.Int63n(int64(half)+1))
}
