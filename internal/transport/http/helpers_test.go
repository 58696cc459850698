package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/snapnest-relay/internal/auth"
	"github.com/vovakirdan/snapnest-relay/internal/config"
	"github.com/vovakirdan/snapnest-relay/internal/core"
	"github.com/vovakirdan/snapnest-relay/internal/store/sqlite"
)

const testSecret = "testsecret"

type testEnv struct {
	ts    *httptest.Server
	store *sqlite.SQLiteStore
	auth  *auth.Service
	hub   *core.Hub
	jwt   *auth.JWTConfig
}

type testUser struct {
	ID    int64
	Name  string
	Token string
}

// newTestEnv starts the full handler over an in-memory store.
func newTestEnv(t *testing.T, tweak func(*config.Config)) *testEnv {
	t.Helper()

	cfg := config.Default()
	cfg.AllowedOrigins = []string{"*"}
	if tweak != nil {
		tweak(&cfg)
	}

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	jwtConfig := &auth.JWTConfig{
		Secret:   []byte(testSecret),
		Issuer:   "test",
		Audience: "test",
		TTL:      time.Hour,
	}
	authService := auth.NewService(st, jwtConfig)

	logger := zerolog.Nop()
	hub := core.NewHub(core.Options{
		Messages:       st,
		Calls:          st,
		Logger:         &logger,
		PersistTimeout: cfg.PersistTimeout,
		RingTimeout:    cfg.RingTimeout,
	})
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)

	ts := httptest.NewServer(NewHandler(hub, authService, st, &cfg, &logger))
	t.Cleanup(ts.Close)

	return &testEnv{ts: ts, store: st, auth: authService, hub: hub, jwt: jwtConfig}
}

func (e *testEnv) register(t *testing.T, name string) testUser {
	t.Helper()
	ctx := context.Background()
	token, err := e.auth.Register(ctx, name, "password123")
	if err != nil {
		t.Fatalf("register %s: %v", name, err)
	}
	user, err := e.store.GetUserByUsername(ctx, name)
	if err != nil {
		t.Fatalf("load %s: %v", name, err)
	}
	return testUser{ID: user.ID, Name: name, Token: token}
}

func (e *testEnv) wsURL(path, token string) string {
	u := strings.Replace(e.ts.URL, "http", "ws", 1) + path
	if token != "" {
		u += "?token=" + token
	}
	return u
}

func (e *testEnv) dialChat(t *testing.T, ctx context.Context, self testUser, peerID int64) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.Dial(ctx, e.wsURL(fmt.Sprintf("/ws/chat/%d", peerID), self.Token), nil)
	if err != nil {
		t.Fatalf("dial chat: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "done") })
	// The initial peer status arrives once the connection is registered.
	readType(t, ctx, conn, "user_status")
	return conn
}

func (e *testEnv) dialNotify(t *testing.T, ctx context.Context, self testUser) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.Dial(ctx, e.wsURL("/ws/notify", self.Token), nil)
	if err != nil {
		t.Fatalf("dial notify: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "done") })
	waitFor(t, func() bool { return e.hub.Lookup(self.ID, core.ChannelNotify) != nil })
	return conn
}

// readType reads frames until one with the given type arrives.
func readType(t *testing.T, ctx context.Context, conn *websocket.Conn, typ string) map[string]any {
	t.Helper()
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			t.Fatalf("waiting for %s: %v", typ, err)
		}
		var frame map[string]any
		if err := json.Unmarshal(data, &frame); err != nil {
			t.Fatalf("decode frame: %v", err)
		}
		if frame["type"] == typ {
			return frame
		}
	}
}

func writeJSON(t *testing.T, ctx context.Context, conn *websocket.Conn, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met in time")
}

// number reads a JSON number field as int64.
func number(frame map[string]any, key string) int64 {
	f, _ := frame[key].(float64)
	return int64(f)
}
