package notification

import (
	"context"
	"database/sql"
	"fmt"
)

// Repository handles notification persistence
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new notification repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new notification
func (r *Repository) Create(ctx context.Context, userID int64, typ Type, groupID int64, message string) (*Notification, error) {
	query := `
		INSERT INTO notifications (user_id, type, group_id, message)
		VALUES ($1, $2, $3, $4)
		RETURNING id, user_id, type, group_id, message, read, created_at
	`

	n := &Notification{}
	err := r.db.QueryRowContext(ctx, query, userID, typ, groupID, message).Scan(
		&n.ID,
		&n.UserID,
		&n.Type,
		&n.GroupID,
		&n.Message,
		&n.Read,
		&n.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create notification: %w", err)
	}
	return n, nil
}

// ListForUser retrieves a user's notifications, newest first
func (r *Repository) ListForUser(ctx context.Context, userID int64) ([]*Notification, error) {
	query := `
		SELECT id, user_id, type, group_id, message, read, created_at
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	var notifications []*Notification
	for rows.Next() {
		n := &Notification{}
		if err := rows.Scan(
			&n.ID,
			&n.UserID,
			&n.Type,
			&n.GroupID,
			&n.Message,
			&n.Read,
			&n.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

// MarkRead marks one of the user's notifications as read
func (r *Repository) MarkRead(ctx context.Context, id, userID int64) error {
	query := `UPDATE notifications SET read = true WHERE id = $1 AND user_id = $2`

	result, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotificationNotFound
	}
	return nil
}
