package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned (wrapped) when a record does not exist.
var ErrNotFound = errors.New("not found")

// User represents a user in the system.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// Message represents a persisted direct message between two users.
type Message struct {
	ID          int64
	SenderID    int64
	RecipientID int64
	Body        string
	IsRead      bool
	CreatedAt   time.Time
}

// Between reports whether the message belongs to the conversation of a and b.
func (m *Message) Between(a, b int64) bool {
	return (m.SenderID == a && m.RecipientID == b) || (m.SenderID == b && m.RecipientID == a)
}

// Reaction is a single user's emoji on a message.
// At most one reaction exists per (message, user).
type Reaction struct {
	MessageID int64
	UserID    int64
	Emoji     string
	CreatedAt time.Time
}

// CallStatus defines call status.
type CallStatus string

const (
	CallStatusRinging  CallStatus = "ringing"
	CallStatusActive   CallStatus = "active"
	CallStatusEnded    CallStatus = "ended"
	CallStatusDeclined CallStatus = "declined"
	CallStatusFailed   CallStatus = "failed"
)

// Call is the history record of a pairwise call attempt.
type Call struct {
	ID          string // UUID
	InitiatorID int64
	CalleeID    int64
	Status      CallStatus
	EndReason   string
	CreatedAt   time.Time
	AnsweredAt  *time.Time
	EndedAt     *time.Time
}

// UserStore handles user persistence.
type UserStore interface {
	// CreateUser creates a new user with hashed password.
	CreateUser(ctx context.Context, username, passwordHash string) (*User, error)

	// GetUserByID retrieves a user by ID.
	GetUserByID(ctx context.Context, id int64) (*User, error)

	// GetUserByUsername retrieves a user by username.
	GetUserByUsername(ctx context.Context, username string) (*User, error)

	// SearchUsers searches for users by username.
	SearchUsers(ctx context.Context, query string) ([]*User, error)
}

// MessageStore handles message and reaction persistence.
type MessageStore interface {
	// CreateMessage persists a message and fills in its ID.
	CreateMessage(ctx context.Context, msg *Message) error

	// GetMessage retrieves a message by ID.
	GetMessage(ctx context.Context, id int64) (*Message, error)

	// ListConversation returns messages exchanged between two users, oldest first.
	// If beforeID is provided, only messages older than that ID are returned.
	ListConversation(ctx context.Context, userA, userB int64, limit int, beforeID *int64) ([]*Message, error)

	// MarkRead flags every message from sender to recipient as read.
	MarkRead(ctx context.Context, recipientID, senderID int64) error

	// SetReaction upserts a user's reaction on a message; an empty emoji removes it.
	SetReaction(ctx context.Context, messageID, userID int64, emoji string) error

	// ListReactions lists the reactions on the given messages.
	ListReactions(ctx context.Context, messageIDs []int64) ([]*Reaction, error)
}

// CallStore handles call history persistence.
type CallStore interface {
	// CreateCall creates a new call.
	CreateCall(ctx context.Context, call *Call) error

	// UpdateCall updates an existing call.
	UpdateCall(ctx context.Context, call *Call) error

	// GetCall retrieves a call by ID.
	GetCall(ctx context.Context, id string) (*Call, error)

	// ListCalls lists the most recent calls a user took part in.
	ListCalls(ctx context.Context, userID int64, limit int) ([]*Call, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	MessageStore
	CallStore

	// Close closes the underlying database connection.
	Close() error
}
