package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/docpilot-ai/docpilot/internal/domain"
)

// ConversationRepository persists conversations and their messages.
// Messages are append-only; position records conversational order.
type ConversationRepository struct {
	db *DB
}

// NewConversationRepository creates a new conversation repository
func NewConversationRepository(db *DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

// Create creates a new conversation and returns its ID
func (r *ConversationRepository) Create(ctx context.Context) (string, error) {
	id := uuid.New().String()
	now := time.Now()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO conversations (id, created_at, updated_at)
		VALUES (?, ?, ?)
	`, id, now, now)
	if err != nil {
		return "", fmt.Errorf("failed to create conversation: %w", err)
	}
	return id, nil
}

// Get retrieves a conversation without its messages. Returns
// domain.ErrConversationNotFound if absent.
func (r *ConversationRepository) Get(ctx context.Context, id string) (*domain.Conversation, error) {
	conv := &domain.Conversation{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, created_at, updated_at
		FROM conversations WHERE id = ?
	`, id).Scan(&conv.ID, &conv.CreatedAt, &conv.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", domain.ErrConversationNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return conv, nil
}

// Append atomically adds a message to a conversation and refreshes its
// updated_at. Fails with domain.ErrConversationNotFound if the
// conversation does not exist.
func (r *ConversationRepository) Append(ctx context.Context, conversationID string, msg *domain.Message) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM conversations WHERE id = ?`, conversationID).Scan(&exists)
	if err != nil {
		return err
	}
	if exists == 0 {
		return fmt.Errorf("%w: %s", domain.ErrConversationNotFound, conversationID)
	}

	var position int
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(position), -1) + 1 FROM messages WHERE conversation_id = ?`,
		conversationID).Scan(&position)
	if err != nil {
		return err
	}

	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	msg.ConversationID = conversationID

	var sourcesJSON sql.NullString
	if len(msg.Sources) > 0 {
		data, err := json.Marshal(msg.Sources)
		if err != nil {
			return fmt.Errorf("failed to marshal sources: %w", err)
		}
		sourcesJSON = sql.NullString{String: string(data), Valid: true}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO messages (id, conversation_id, position, role, content, sources, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, msg.ID, conversationID, position, msg.Role, msg.Content, sourcesJSON, msg.CreatedAt)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE conversations SET updated_at = ? WHERE id = ?`, time.Now(), conversationID)
	if err != nil {
		return err
	}

	return tx.Commit()
}

// History retrieves a conversation's messages in conversational order.
// limit > 0 restricts the result to the most recent messages, still
// returned chronologically.
func (r *ConversationRepository) History(ctx context.Context, conversationID string, limit int) ([]*domain.Message, error) {
	if _, err := r.Get(ctx, conversationID); err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, conversation_id, role, content, sources, created_at
		FROM messages WHERE conversation_id = ?
		ORDER BY position ASC
	`, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []*domain.Message
	for rows.Next() {
		msg := &domain.Message{}
		var sourcesJSON sql.NullString

		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.Role,
			&msg.Content, &sourcesJSON, &msg.CreatedAt); err != nil {
			return nil, err
		}
		if sourcesJSON.Valid && sourcesJSON.String != "" {
			if err := json.Unmarshal([]byte(sourcesJSON.String), &msg.Sources); err != nil {
				return nil, fmt.Errorf("failed to unmarshal sources for message %s: %w", msg.ID, err)
			}
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if limit > 0 && len(messages) > limit {
		messages = messages[len(messages)-limit:]
	}
	return messages, nil
}

// List returns summaries of all conversations, most recently updated first.
func (r *ConversationRepository) List(ctx context.Context) ([]*domain.ConversationSummary, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT c.id, COUNT(m.id), c.updated_at
		FROM conversations c
		LEFT JOIN messages m ON m.conversation_id = c.id
		GROUP BY c.id
		ORDER BY c.updated_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []*domain.ConversationSummary
	for rows.Next() {
		s := &domain.ConversationSummary{}
		if err := rows.Scan(&s.ID, &s.MessageCount, &s.UpdatedAt); err != nil {
			return nil, err
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

// Delete removes a conversation and its messages. Fails with
// domain.ErrConversationNotFound if absent.
func (r *ConversationRepository) Delete(ctx context.Context, conversationID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, conversationID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", domain.ErrConversationNotFound, conversationID)
	}

	// messages cascade via foreign key
	return nil
}

// Reset removes all conversations and messages.
func (r *ConversationRepository) Reset(ctx context.Context) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var count int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM conversations`).Scan(&count); err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM messages`); err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM conversations`); err != nil {
		return 0, err
	}
	return count, tx.Commit()
}
