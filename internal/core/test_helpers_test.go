package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/vovakirdan/snapnest-relay/internal/store"
)

func mustEvent(t *testing.T, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev == nil {
				continue
			}
			if ev.Kind == kind {
				return ev
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected event kind %v not received", kind)
	return nil
}

// drain returns every event currently queued on ch.
func drain(ch <-chan *Event) []*Event {
	var out []*Event
	for {
		select {
		case ev := <-ch:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func countKind(events []*Event, kind EventKind) int {
	n := 0
	for _, ev := range events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

func newTestHub(t *testing.T, opts Options) *Hub {
	t.Helper()
	if opts.Messages == nil {
		opts.Messages = newFakeMessageStore()
	}
	return NewHub(opts)
}

// connect creates and registers a client.
func connect(h *Hub, userID int64, name string, channel ChannelType, peerID int64) *Client {
	c := h.NewClient(userID, name, channel, peerID)
	h.Register(c)
	return c
}

type reactionKey struct {
	messageID int64
	userID    int64
}

type fakeMessageStore struct {
	mu        sync.Mutex
	nextID    int64
	messages  map[int64]*store.Message
	created   []store.Message
	reactions map[reactionKey]string
	createErr error
	delay     time.Duration
}

func newFakeMessageStore() *fakeMessageStore {
	return &fakeMessageStore{
		messages:  make(map[int64]*store.Message),
		reactions: make(map[reactionKey]string),
	}
}

func (f *fakeMessageStore) CreateMessage(ctx context.Context, msg *store.Message) error {
	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(f.delay):
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.nextID++
	msg.ID = f.nextID
	cp := *msg
	f.messages[msg.ID] = &cp
	f.created = append(f.created, cp)
	return nil
}

func (f *fakeMessageStore) GetMessage(_ context.Context, id int64) (*store.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg, ok := f.messages[id]
	if !ok {
		return nil, fmt.Errorf("message %d: %w", id, store.ErrNotFound)
	}
	cp := *msg
	return &cp, nil
}

func (f *fakeMessageStore) ListConversation(context.Context, int64, int64, int, *int64) ([]*store.Message, error) {
	return nil, nil
}

func (f *fakeMessageStore) MarkRead(context.Context, int64, int64) error {
	return nil
}

func (f *fakeMessageStore) SetReaction(_ context.Context, messageID, userID int64, emoji string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := reactionKey{messageID, userID}
	if emoji == "" {
		delete(f.reactions, key)
		return nil
	}
	f.reactions[key] = emoji
	return nil
}

func (f *fakeMessageStore) ListReactions(context.Context, []int64) ([]*store.Reaction, error) {
	return nil, nil
}

type fakeCallStore struct {
	mu      sync.Mutex
	created []store.Call
	updated []store.Call
}

func (f *fakeCallStore) CreateCall(_ context.Context, call *store.Call) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, *call)
	return nil
}

func (f *fakeCallStore) UpdateCall(_ context.Context, call *store.Call) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updated = append(f.updated, *call)
	return nil
}

func (f *fakeCallStore) GetCall(context.Context, string) (*store.Call, error) {
	return nil, store.ErrNotFound
}

func (f *fakeCallStore) ListCalls(context.Context, int64, int) ([]*store.Call, error) {
	return nil, nil
}

var errBoom = errors.New("boom")
