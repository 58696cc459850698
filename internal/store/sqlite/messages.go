package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vovakirdan/snapnest-relay/internal/store"
)

// ==== MessageStore implementation ====

// CreateMessage persists a message and fills in its ID.
func (s *SQLiteStore) CreateMessage(ctx context.Context, msg *store.Message) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO messages (sender_id, recipient_id, body, created_at)
		VALUES (?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, msg.SenderID, msg.RecipientID, msg.Body, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}

	msg.ID = id
	return nil
}

// GetMessage retrieves a message by ID.
func (s *SQLiteStore) GetMessage(ctx context.Context, id int64) (*store.Message, error) {
	query := `
		SELECT id, sender_id, recipient_id, body, is_read, created_at
		FROM messages
		WHERE id = ?
	`
	var msg store.Message
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&msg.ID,
		&msg.SenderID,
		&msg.RecipientID,
		&msg.Body,
		&msg.IsRead,
		&msg.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("message %d: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query message: %w", err)
	}
	return &msg, nil
}

// ListConversation returns messages exchanged between two users, oldest first.
func (s *SQLiteStore) ListConversation(ctx context.Context, userA, userB int64, limit int, beforeID *int64) ([]*store.Message, error) {
	query := `
		SELECT id, sender_id, recipient_id, body, is_read, created_at
		FROM messages
		WHERE ((sender_id = ? AND recipient_id = ?) OR (sender_id = ? AND recipient_id = ?))
	`
	args := []interface{}{userA, userB, userB, userA}
	if beforeID != nil {
		query += ` AND id < ?`
		args = append(args, *beforeID)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	messages := make([]*store.Message, 0)
	for rows.Next() {
		var msg store.Message
		if err := rows.Scan(&msg.ID, &msg.SenderID, &msg.RecipientID, &msg.Body, &msg.IsRead, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, &msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse to get chronological order
	for i := 0; i < len(messages)/2; i++ {
		messages[i], messages[len(messages)-1-i] = messages[len(messages)-1-i], messages[i]
	}

	return messages, nil
}

// MarkRead flags every message from sender to recipient as read.
func (s *SQLiteStore) MarkRead(ctx context.Context, recipientID, senderID int64) error {
	query := `
		UPDATE messages SET is_read = 1
		WHERE recipient_id = ? AND sender_id = ? AND is_read = 0
	`
	if _, err := s.db.ExecContext(ctx, query, recipientID, senderID); err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	return nil
}

// SetReaction upserts a user's reaction on a message; an empty emoji removes it.
func (s *SQLiteStore) SetReaction(ctx context.Context, messageID, userID int64, emoji string) error {
	if emoji == "" {
		query := `DELETE FROM reactions WHERE message_id = ? AND user_id = ?`
		if _, err := s.db.ExecContext(ctx, query, messageID, userID); err != nil {
			return fmt.Errorf("delete reaction: %w", err)
		}
		return nil
	}

	query := `
		INSERT INTO reactions (message_id, user_id, emoji, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (message_id, user_id)
		DO UPDATE SET emoji = excluded.emoji, created_at = excluded.created_at
	`
	if _, err := s.db.ExecContext(ctx, query, messageID, userID, emoji, time.Now().UTC()); err != nil {
		return fmt.Errorf("upsert reaction: %w", err)
	}
	return nil
}

// ListReactions lists the reactions on the given messages.
func (s *SQLiteStore) ListReactions(ctx context.Context, messageIDs []int64) ([]*store.Reaction, error) {
	reactions := make([]*store.Reaction, 0)
	if len(messageIDs) == 0 {
		return reactions, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(messageIDs)), ",")
	args := make([]interface{}, 0, len(messageIDs))
	for _, id := range messageIDs {
		args = append(args, id)
	}

	query := `
		SELECT message_id, user_id, emoji, created_at
		FROM reactions
		WHERE message_id IN (` + placeholders + `)
		ORDER BY message_id ASC, created_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query reactions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var r store.Reaction
		if err := rows.Scan(&r.MessageID, &r.UserID, &r.Emoji, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan reaction: %w", err)
		}
		reactions = append(reactions, &r)
	}

	return reactions, rows.Err()
}
