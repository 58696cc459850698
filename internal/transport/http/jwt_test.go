package http

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/golang-jwt/jwt/v5"

	"github.com/vovakirdan/snapnest-relay/internal/auth"
)

func makeJWT(secret, aud, iss string, userID int64, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"user_id":  userID,
		"username": "someone",
		"exp":      time.Now().Add(ttl).Unix(),
	}
	if aud != "" {
		claims["aud"] = aud
	}
	if iss != "" {
		claims["iss"] = iss
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func TestWebSocketJWTSuccess(t *testing.T) {
	env := newTestEnv(t, nil)
	alice := env.register(t, "alice")

	token, err := makeJWT(testSecret, "test", "test", alice.ID, time.Minute)
	if err != nil {
		t.Fatalf("make jwt: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, env.wsURL("/ws/notify", token), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	waitFor(t, func() bool { return env.hub.Present(alice.ID) })
}

func TestWebSocketJWTRejected(t *testing.T) {
	env := newTestEnv(t, nil)
	alice := env.register(t, "alice")

	expired, _ := makeJWT(testSecret, "test", "test", alice.ID, -time.Minute)
	wrongSecret, _ := makeJWT("other", "test", "test", alice.ID, time.Minute)
	wrongAudience, _ := makeJWT(testSecret, "elsewhere", "test", alice.ID, time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for name, token := range map[string]string{
		"expired":        expired,
		"wrong secret":   wrongSecret,
		"wrong audience": wrongAudience,
	} {
		t.Run(name, func(t *testing.T) {
			conn, resp, err := websocket.Dial(ctx, env.wsURL("/ws/notify", token), nil)
			if err == nil {
				conn.Close(websocket.StatusNormalClosure, "")
				t.Fatalf("expected handshake to be refused")
			}
			if resp == nil || resp.StatusCode != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %+v", resp)
			}
		})
	}
}

func TestWebSocketAcceptsBearerHeader(t *testing.T) {
	env := newTestEnv(t, nil)
	alice := env.register(t, "alice")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+alice.Token)
	conn, _, err := websocket.Dial(ctx, env.wsURL("/ws/notify", ""), &websocket.DialOptions{HTTPHeader: header})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	waitFor(t, func() bool { return env.hub.Present(alice.ID) })
}

func TestIssuedTokensIdentifyUser(t *testing.T) {
	env := newTestEnv(t, nil)
	alice := env.register(t, "alice")

	claims, err := auth.ValidateToken(env.jwt, alice.Token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.UserID != alice.ID || claims.Username != "alice" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}
