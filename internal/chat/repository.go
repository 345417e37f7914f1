package chat

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/youssefm/groupchat/internal/user"
)

// Repository handles message persistence
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new message repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

var _ Store = (*Repository)(nil)

// Insert persists a message with a pre-assigned ID
func (r *Repository) Insert(ctx context.Context, m *Message) error {
	query := `
		INSERT INTO messages (id, group_id, sender_id, content, timestamp)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := r.db.ExecContext(ctx, query, m.ID, m.GroupID, m.SenderID, m.Content, m.Timestamp); err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}
	return nil
}

// ListForGroup retrieves all messages for a group in insertion order,
// with senders resolved. IDs are time-ordered so the ID is the sort key.
func (r *Repository) ListForGroup(ctx context.Context, groupID int64) ([]*Message, error) {
	query := `
		SELECT m.id, m.group_id, m.sender_id, m.content, m.timestamp,
		       u.id, u.username, u.email, u.created_at
		FROM messages m
		JOIN users u ON m.sender_id = u.id
		WHERE m.group_id = $1
		ORDER BY m.id
	`

	rows, err := r.db.QueryContext(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	var messages []*Message
	for rows.Next() {
		m := &Message{Sender: &user.User{}}
		if err := rows.Scan(
			&m.ID,
			&m.GroupID,
			&m.SenderID,
			&m.Content,
			&m.Timestamp,
			&m.Sender.ID,
			&m.Sender.Username,
			&m.Sender.Email,
			&m.Sender.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}
