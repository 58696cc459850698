package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vovakirdan/snapnest-relay/internal/store"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedUsers(t *testing.T, s *SQLiteStore, names ...string) []*store.User {
	t.Helper()

	users := make([]*store.User, 0, len(names))
	for _, name := range names {
		u, err := s.CreateUser(context.Background(), name, "hash")
		if err != nil {
			t.Fatalf("failed to create user %s: %v", name, err)
		}
		users = append(users, u)
	}
	return users
}

func TestSearchUsers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedUsers(t, s, "alice", "alex", "alan", "bob", "charlie")

	tests := []struct {
		name     string
		query    string
		expected []string
	}{
		{name: "search 'al'", query: "al", expected: []string{"alan", "alex", "alice"}},
		{name: "search 'li'", query: "li", expected: []string{"alice", "charlie"}},
		{name: "search non-existent", query: "z", expected: []string{}},
		{name: "search is case insensitive for ASCII", query: "Bob", expected: []string{"bob"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, err := s.SearchUsers(ctx, tt.query)
			if err != nil {
				t.Fatalf("SearchUsers failed: %v", err)
			}
			if len(results) != len(tt.expected) {
				t.Fatalf("expected %d results, got %d", len(tt.expected), len(results))
			}
			for i, u := range results {
				if u.Username != tt.expected[i] {
					t.Errorf("expected %s at index %d, got %s", tt.expected[i], i, u.Username)
				}
			}
		})
	}
}

func TestGetUserNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetUserByID(context.Background(), 42)
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestConversationHistoryIsScopedAndOrdered(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	users := seedUsers(t, s, "alice", "bob", "carol")
	alice, bob, carol := users[0].ID, users[1].ID, users[2].ID

	bodies := []struct {
		from, to int64
		body     string
	}{
		{alice, bob, "hi"},
		{bob, alice, "hey"},
		{alice, carol, "unrelated"},
		{alice, bob, "how are you"},
	}
	for _, b := range bodies {
		msg := &store.Message{SenderID: b.from, RecipientID: b.to, Body: b.body}
		if err := s.CreateMessage(ctx, msg); err != nil {
			t.Fatalf("create message: %v", err)
		}
		if msg.ID == 0 {
			t.Fatalf("expected message id to be assigned")
		}
	}

	msgs, err := s.ListConversation(ctx, bob, alice, 50, nil)
	if err != nil {
		t.Fatalf("list conversation: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	if msgs[0].Body != "hi" || msgs[2].Body != "how are you" {
		t.Fatalf("unexpected order: %q .. %q", msgs[0].Body, msgs[2].Body)
	}

	older, err := s.ListConversation(ctx, alice, bob, 50, &msgs[2].ID)
	if err != nil {
		t.Fatalf("list older: %v", err)
	}
	if len(older) != 2 {
		t.Fatalf("expected 2 older messages, got %d", len(older))
	}

	if err := s.MarkRead(ctx, bob, alice); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	first, err := s.GetMessage(ctx, msgs[0].ID)
	if err != nil {
		t.Fatalf("get message: %v", err)
	}
	if !first.IsRead {
		t.Fatalf("expected message to be read")
	}
	reply, err := s.GetMessage(ctx, msgs[1].ID)
	if err != nil {
		t.Fatalf("get message: %v", err)
	}
	if reply.IsRead {
		t.Fatalf("message sent by bob should stay unread")
	}
}

func TestSetReactionUpsertsAndClears(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	users := seedUsers(t, s, "alice", "bob")

	msg := &store.Message{SenderID: users[0].ID, RecipientID: users[1].ID, Body: "photo"}
	if err := s.CreateMessage(ctx, msg); err != nil {
		t.Fatalf("create message: %v", err)
	}

	if err := s.SetReaction(ctx, msg.ID, users[1].ID, "❤️"); err != nil {
		t.Fatalf("set reaction: %v", err)
	}
	if err := s.SetReaction(ctx, msg.ID, users[1].ID, "🔥"); err != nil {
		t.Fatalf("replace reaction: %v", err)
	}

	reactions, err := s.ListReactions(ctx, []int64{msg.ID})
	if err != nil {
		t.Fatalf("list reactions: %v", err)
	}
	if len(reactions) != 1 || reactions[0].Emoji != "🔥" || reactions[0].UserID != users[1].ID {
		t.Fatalf("expected single 🔥 reaction, got %+v", reactions)
	}

	if err := s.SetReaction(ctx, msg.ID, users[1].ID, ""); err != nil {
		t.Fatalf("clear reaction: %v", err)
	}
	reactions, err = s.ListReactions(ctx, []int64{msg.ID})
	if err != nil {
		t.Fatalf("list reactions: %v", err)
	}
	if len(reactions) != 0 {
		t.Fatalf("expected reaction to be cleared, got %+v", reactions)
	}
}

func TestCallHistory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	users := seedUsers(t, s, "alice", "bob")

	call := &store.Call{
		ID:          "c1",
		InitiatorID: users[0].ID,
		CalleeID:    users[1].ID,
		Status:      store.CallStatusRinging,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.CreateCall(ctx, call); err != nil {
		t.Fatalf("create call: %v", err)
	}

	ended := time.Now().UTC()
	call.Status = store.CallStatusEnded
	call.EndReason = "hangup"
	call.EndedAt = &ended
	if err := s.UpdateCall(ctx, call); err != nil {
		t.Fatalf("update call: %v", err)
	}

	got, err := s.GetCall(ctx, "c1")
	if err != nil {
		t.Fatalf("get call: %v", err)
	}
	if got.Status != store.CallStatusEnded || got.EndReason != "hangup" || got.EndedAt == nil {
		t.Fatalf("unexpected call: %+v", got)
	}

	list, err := s.ListCalls(ctx, users[1].ID, 10)
	if err != nil {
		t.Fatalf("list calls: %v", err)
	}
	if len(list) != 1 || list[0].ID != "c1" {
		t.Fatalf("unexpected call list: %+v", list)
	}

	if err := s.UpdateCall(ctx, &store.Call{ID: "missing", Status: store.CallStatusEnded}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing call, got %v", err)
	}
}
