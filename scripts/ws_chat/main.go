// Command ws_chat is an interactive terminal client for the relay: it opens the
// notify channel plus a chat with one peer and exposes the call commands.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/snapnest-relay/client"
	"github.com/vovakirdan/snapnest-relay/internal/log"
)

const help = `commands:
  <text>               send a chat message
  /react <id> <emoji>  react to a message (empty emoji clears)
  /typing on|off       set the typing indicator
  /call                ring the peer
  /answer              accept the peer's call
  /decline             decline the peer's call
  /end                 hang up
  /mute audio|video    announce a muted track
  /unmute audio|video  announce an unmuted track
  /quit                exit`

func main() {
	logger := log.New("info")
	if err := run(logger); err != nil {
		logger.Error().Err(err).Msg("ws_chat failed")
		os.Exit(1)
	}
}

func run(logger *zerolog.Logger) error {
	addr := flag.String("addr", "http://localhost:8080", "relay base URL")
	user := flag.String("user", "", "username")
	password := flag.String("password", "", "password")
	register := flag.Bool("register", false, "create the account before connecting")
	peer := flag.Int64("peer", 0, "user id to chat with")
	flag.Parse()

	if *user == "" || *password == "" || *peer <= 0 {
		flag.Usage()
		return errors.New("user, password and peer are required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	authenticate := client.Login
	if *register {
		authenticate = client.Register
	}
	token, err := authenticate(ctx, *addr, *user, *password)
	if err != nil {
		return fmt.Errorf("authenticate: %w", err)
	}

	session, err := client.NewSession(*addr, token, client.Options{Logger: logger})
	if err != nil {
		return err
	}
	defer session.Close()

	notify, err := session.Start()
	if err != nil {
		return err
	}
	notify.Subscribe(client.TypeIncomingCall, func(ev client.Event) {
		var invite client.CallInvite
		if ev.Decode(&invite) == nil {
			fmt.Printf("** incoming call from %s (%d)\n", invite.FromUsername, invite.From)
		}
	})

	chat, err := session.OpenChat(*peer)
	if err != nil {
		return err
	}
	chat.Subscribe(client.Wildcard, printEvent)

	fmt.Printf("connected to %s as %s, chatting with user %d\n", *addr, *user, *peer)
	fmt.Println(help)

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-chat.Done():
			return chat.Err()
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			quit, err := execute(notify, chat, *peer, strings.TrimSpace(line))
			if err != nil {
				fmt.Printf("!! %v\n", err)
			}
			if quit {
				return nil
			}
		}
	}
}

// execute runs one input line. Call control goes over the chat channel
// except decline, which the notify channel also accepts.
func execute(notify, chat *client.Conn, peer int64, line string) (bool, error) {
	if line == "" {
		return false, nil
	}
	if !strings.HasPrefix(line, "/") {
		return false, chat.SendMessage(line, "")
	}

	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit":
		return true, nil
	case "/react":
		if len(fields) < 2 {
			return false, errors.New("usage: /react <id> <emoji>")
		}
		id, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return false, fmt.Errorf("message id: %w", err)
		}
		emoji := ""
		if len(fields) > 2 {
			emoji = fields[2]
		}
		return false, chat.React(id, emoji)
	case "/typing":
		return false, chat.SetTyping(len(fields) > 1 && fields[1] == "on")
	case "/call":
		return false, chat.CallUser(peer, map[string]string{"type": "offer", "sdp": "ws_chat"})
	case "/answer":
		return false, chat.AnswerCall(peer, map[string]string{"type": "answer", "sdp": "ws_chat"})
	case "/decline":
		return false, notify.DeclineCall(peer)
	case "/end":
		return false, chat.EndCall(peer)
	case "/mute", "/unmute":
		if len(fields) < 2 {
			return false, errors.New("usage: /mute audio|video")
		}
		return false, chat.ToggleMedia(peer, fields[1], fields[0] == "/unmute")
	default:
		return false, fmt.Errorf("unknown command %s", fields[0])
	}
}

func printEvent(ev client.Event) {
	switch ev.Type {
	case client.TypeChatMessage:
		var msg client.ChatMessage
		if ev.Decode(&msg) == nil {
			fmt.Printf("[%d] %s: %s\n", msg.ID, msg.SenderUsername, msg.Message)
		}
	case client.TypeChatReaction:
		var r client.ChatReaction
		if ev.Decode(&r) == nil {
			fmt.Printf("   user %d reacted %q to #%d\n", r.SenderID, r.Emoji, r.MessageID)
		}
	case client.TypeTyping:
		var typing client.Typing
		if ev.Decode(&typing) == nil && typing.IsTyping {
			fmt.Printf("   user %d is typing...\n", typing.UserID)
		}
	case client.TypeUserStatus:
		var status client.UserStatus
		if ev.Decode(&status) == nil {
			fmt.Printf("** user %d is %s\n", status.UserID, status.Status)
		}
	default:
		fmt.Printf("<< %s\n", ev.Raw)
	}
}
