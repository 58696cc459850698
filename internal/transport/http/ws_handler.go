package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	stdhttp "net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/snapnest-relay/internal/auth"
	"github.com/vovakirdan/snapnest-relay/internal/config"
	"github.com/vovakirdan/snapnest-relay/internal/core"
	"github.com/vovakirdan/snapnest-relay/internal/proto"
	"github.com/vovakirdan/snapnest-relay/internal/store"
)

var (
	errSuperseded = errors.New("connection superseded")
	errShutdown   = errors.New("relay shutting down")
)

// WSHandler upgrades HTTP connections and bridges them to core.Client.
type WSHandler struct {
	hub               *core.Hub
	authService       *auth.Service
	users             store.UserStore
	log               *zerolog.Logger
	maxMessageBytes   int64
	messagesPerMinute int
	originPatterns    []string
	skipOriginCheck   bool
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(hub *core.Hub, authService *auth.Service, users store.UserStore, cfg *config.Config, logger *zerolog.Logger) *WSHandler {
	patterns, skip := originPatterns(cfg.AllowedOrigins)
	return &WSHandler{
		hub:               hub,
		authService:       authService,
		users:             users,
		log:               logger,
		maxMessageBytes:   cfg.MaxMessageBytes,
		messagesPerMinute: cfg.MessagesPerMinute,
		originPatterns:    patterns,
		skipOriginCheck:   skip,
	}
}

// originPatterns converts CORS origins into host patterns for the upgrade
// origin check. A "*" origin disables the check.
func originPatterns(origins []string) ([]string, bool) {
	patterns := make([]string, 0, len(origins))
	for _, origin := range origins {
		if origin == "*" {
			return nil, true
		}
		if u, err := url.Parse(origin); err == nil && u.Host != "" {
			patterns = append(patterns, u.Host)
			continue
		}
		patterns = append(patterns, strings.TrimPrefix(strings.TrimPrefix(origin, "https://"), "http://"))
	}
	return patterns, false
}

// authenticate rejects the upgrade with 401 before anything is registered.
func (h *WSHandler) authenticate(c *gin.Context) (auth.Identity, bool) {
	identity, err := h.authService.Authenticate(requestToken(c))
	if err != nil {
		h.log.Debug().Err(err).Str("path", c.Request.URL.Path).Msg("ws auth rejected")
		c.JSON(stdhttp.StatusUnauthorized, ErrorResponse{Error: "invalid token"})
		return auth.Identity{}, false
	}
	return identity, true
}

// Chat opens the chat channel paired with the user in the path.
// GET /ws/chat/:user_id
func (h *WSHandler) Chat(c *gin.Context) {
	identity, ok := h.authenticate(c)
	if !ok {
		return
	}

	peerID, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
	if err != nil || peerID <= 0 {
		c.JSON(stdhttp.StatusBadRequest, ErrorResponse{Error: "invalid user id"})
		return
	}
	if peerID == identity.UserID {
		c.JSON(stdhttp.StatusBadRequest, ErrorResponse{Error: "cannot chat with yourself"})
		return
	}
	if _, err := h.users.GetUserByID(c.Request.Context(), peerID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(stdhttp.StatusNotFound, ErrorResponse{Error: "user not found"})
			return
		}
		h.log.Error().Err(err).Int64("peer_id", peerID).Msg("failed to load chat peer")
		c.JSON(stdhttp.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	h.serve(c, identity, core.ChannelChat, peerID)
}

// Notify opens the app-wide notification channel.
// GET /ws/notify
func (h *WSHandler) Notify(c *gin.Context) {
	identity, ok := h.authenticate(c)
	if !ok {
		return
	}
	h.serve(c, identity, core.ChannelNotify, 0)
}

func (h *WSHandler) serve(c *gin.Context, identity auth.Identity, channel core.ChannelType, peerID int64) {
	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		OriginPatterns:     h.originPatterns,
		InsecureSkipVerify: h.skipOriginCheck,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")
	if h.maxMessageBytes > 0 {
		conn.SetReadLimit(h.maxMessageBytes)
	}

	client := h.hub.NewClient(identity.UserID, identity.Username, channel, peerID)
	h.hub.Register(client)
	h.log.Info().
		Int64("user_id", client.UserID).
		Str("client_id", client.ID).
		Str("channel", string(channel)).
		Int64("peer_id", peerID).
		Msg("ws connected")

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, client)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, client)
	}()

	err = <-errCh
	// Close before cancelling so the client sees why it was dropped.
	switch {
	case errors.Is(err, errSuperseded):
		conn.Close(websocket.StatusPolicyViolation, core.CloseSuperseded)
	case errors.Is(err, errShutdown):
		conn.Close(websocket.StatusGoingAway, "server shutting down")
	}
	cancel() // stop the other goroutine
	<-errCh

	// Teardown completes before the socket is closed.
	h.hub.Unregister(client)

	status := websocket.StatusNormalClosure
	reason := "closing"
	if errors.Is(err, errSuperseded) || errors.Is(err, errShutdown) {
		err = nil
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != -1 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = err.Error()
			h.log.Warn().Err(err).Str("client_id", client.ID).Msg("ws connection closed with error")
		}
	}

	h.log.Info().Int64("user_id", client.UserID).Str("client_id", client.ID).Msg("ws disconnected")
	conn.Close(status, reason)
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	limiter := newRateLimiter(h.messagesPerMinute)
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}

		var inbound proto.Inbound
		if err := json.Unmarshal(data, &inbound); err != nil {
			h.log.Debug().Err(err).Str("client_id", client.ID).Msg("drop unparseable frame")
			continue
		}

		cmd, protoErr, err := inboundToCommand(inbound)
		if err != nil {
			h.log.Debug().Err(err).Str("client_id", client.ID).Str("type", inbound.Type).Msg("drop inbound frame")
			continue
		}
		if protoErr != nil {
			if writeErr := wsjson.Write(ctx, conn, protoErr); writeErr != nil {
				return writeErr
			}
			continue
		}
		if cmd.Kind == core.CommandChatMessage && !limiter.allow() {
			if writeErr := wsjson.Write(ctx, conn, proto.Error{
				Type:    proto.TypeError,
				Code:    core.ErrCodeRateLimited,
				Message: "too many messages, slow down",
			}); writeErr != nil {
				return writeErr
			}
			continue
		}
		h.hub.Handle(ctx, client, cmd)
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	for {
		select {
		case event := <-client.Events:
			if err := wsjson.Write(ctx, conn, outboundFromEvent(event)); err != nil {
				h.log.Error().Err(err).Str("client_id", client.ID).Msg("write ws event")
				return err
			}
		case <-client.Done():
			switch client.CloseReason() {
			case core.CloseSuperseded:
				return errSuperseded
			case core.CloseShutdown:
				h.flush(ctx, conn, client)
				return errShutdown
			}
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// flush writes the events still queued for a closed client, such as the
// end_call frames produced by a hub shutdown.
func (h *WSHandler) flush(ctx context.Context, conn *websocket.Conn, client *core.Client) {
	for {
		select {
		case event := <-client.Events:
			if err := wsjson.Write(ctx, conn, outboundFromEvent(event)); err != nil {
				return
			}
		default:
			return
		}
	}
}
