// Command ws_smoke registers two throwaway users against a running relay,
// exchanges one chat message and one declined call, and exits non-zero if any
// step does not complete in time.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/snapnest-relay/client"
	"github.com/vovakirdan/snapnest-relay/internal/log"
)

func main() {
	addr := flag.String("addr", "http://localhost:8080", "relay base URL")
	timeout := flag.Duration("timeout", 10*time.Second, "total timeout for the run")
	flag.Parse()

	logger := log.New("info")
	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := run(ctx, logger, strings.TrimSuffix(*addr, "/")); err != nil {
		logger.Error().Err(err).Msg("smoke test failed")
		os.Exit(1)
	}
	logger.Info().Msg("smoke test passed")
}

type party struct {
	name  string
	token string
}

func register(ctx context.Context, addr string) (party, error) {
	name := "smoke" + strings.ReplaceAll(uuid.NewString(), "-", "")[:10]
	token, err := client.Register(ctx, addr, name, "smoke-password")
	if err != nil {
		return party{}, fmt.Errorf("register %s: %w", name, err)
	}
	return party{name: name, token: token}, nil
}

// lookupID resolves another user's id through the search endpoint.
func lookupID(ctx context.Context, addr string, as party, name string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		addr+"/api/users/search?q="+url.QueryEscape(name), nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Authorization", "Bearer "+as.token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("search %s: %s", name, resp.Status)
	}

	var users []struct {
		ID       int64  `json:"id"`
		Username string `json:"username"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&users); err != nil {
		return 0, fmt.Errorf("decode search: %w", err)
	}
	for _, u := range users {
		if u.Username == name {
			return u.ID, nil
		}
	}
	return 0, fmt.Errorf("user %s not found", name)
}

// await blocks until the first frame of typ arrives on c.
func await(ctx context.Context, c *client.Conn, typ string) <-chan client.Event {
	ch := make(chan client.Event, 1)
	unsubscribe := c.Subscribe(typ, func(ev client.Event) {
		select {
		case ch <- ev:
		default:
		}
	})
	go func() {
		<-ctx.Done()
		unsubscribe()
	}()
	return ch
}

func wait(ctx context.Context, ch <-chan client.Event, what string) (client.Event, error) {
	select {
	case ev := <-ch:
		return ev, nil
	case <-ctx.Done():
		return client.Event{}, fmt.Errorf("waiting for %s: %w", what, ctx.Err())
	}
}

func run(ctx context.Context, logger *zerolog.Logger, addr string) error {
	alice, err := register(ctx, addr)
	if err != nil {
		return err
	}
	bob, err := register(ctx, addr)
	if err != nil {
		return err
	}
	bobID, err := lookupID(ctx, addr, alice, bob.name)
	if err != nil {
		return err
	}
	aliceID, err := lookupID(ctx, addr, bob, alice.name)
	if err != nil {
		return err
	}

	opts := client.Options{Logger: logger}
	aliceSession, err := client.NewSession(addr, alice.token, opts)
	if err != nil {
		return err
	}
	defer aliceSession.Close()
	bobSession, err := client.NewSession(addr, bob.token, opts)
	if err != nil {
		return err
	}
	defer bobSession.Close()

	bobNotify, err := bobSession.Start()
	if err != nil {
		return err
	}
	bobChat, err := bobSession.OpenChat(aliceID)
	if err != nil {
		return err
	}
	aliceChat, err := aliceSession.OpenChat(bobID)
	if err != nil {
		return err
	}
	for _, c := range []*client.Conn{bobNotify, bobChat, aliceChat} {
		if err := c.WaitConnected(ctx); err != nil {
			return fmt.Errorf("connect: %w", err)
		}
	}

	delivered := await(ctx, bobChat, client.TypeChatMessage)
	acked := await(ctx, aliceChat, client.TypeChatMessage)
	if err := aliceChat.SendMessage("hello from ws_smoke", "smoke-1"); err != nil {
		return err
	}
	if _, err := wait(ctx, delivered, "relayed message"); err != nil {
		return err
	}
	ack, err := wait(ctx, acked, "message ack")
	if err != nil {
		return err
	}
	var msg client.ChatMessage
	if err := ack.Decode(&msg); err != nil || msg.ClientRef != "smoke-1" {
		return errors.New("ack does not carry the client ref")
	}
	logger.Info().Int64("message_id", msg.ID).Msg("chat round trip ok")

	ringing := await(ctx, bobChat, client.TypeCallUser)
	declined := await(ctx, aliceChat, client.TypeCallDeclined)
	if err := aliceChat.CallUser(bobID, map[string]string{"type": "offer", "sdp": "smoke"}); err != nil {
		return err
	}
	if _, err := wait(ctx, ringing, "call_user"); err != nil {
		return err
	}
	if err := bobNotify.DeclineCall(aliceID); err != nil {
		return err
	}
	if _, err := wait(ctx, declined, "call_declined"); err != nil {
		return err
	}
	logger.Info().Msg("call decline ok")
	return nil
}
