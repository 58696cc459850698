package core

type typingKey struct {
	conv   ConversationKey
	userID int64
}

// TypingTracker remembers who is currently typing in which conversation.
// Only true values are stored.
type TypingTracker struct {
	typing map[typingKey]struct{}
}

// NewTypingTracker constructs an empty tracker.
func NewTypingTracker() *TypingTracker {
	return &TypingTracker{typing: make(map[typingKey]struct{})}
}

// Set records the indicator and reports whether it changed.
func (t *TypingTracker) Set(conv ConversationKey, userID int64, isTyping bool) bool {
	key := typingKey{conv, userID}
	_, was := t.typing[key]
	if isTyping {
		t.typing[key] = struct{}{}
	} else {
		delete(t.typing, key)
	}
	return was != isTyping
}

// IsTyping reports the current indicator.
func (t *TypingTracker) IsTyping(conv ConversationKey, userID int64) bool {
	_, ok := t.typing[typingKey{conv, userID}]
	return ok
}

// Clear drops the indicator and reports whether the user was typing.
func (t *TypingTracker) Clear(conv ConversationKey, userID int64) bool {
	return t.Set(conv, userID, false)
}
