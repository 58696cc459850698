package core

import "fmt"

// ConversationKey identifies an unordered pair of users.
type ConversationKey struct {
	Low  int64
	High int64
}

// NewConversationKey normalizes a and b so both participants resolve to the same key.
func NewConversationKey(a, b int64) ConversationKey {
	if a > b {
		a, b = b, a
	}
	return ConversationKey{Low: a, High: b}
}

func (k ConversationKey) String() string {
	return fmt.Sprintf("chat_%d_%d", k.Low, k.High)
}
