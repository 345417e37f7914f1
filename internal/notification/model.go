package notification

import "time"

// Type classifies a membership notification
type Type string

const (
	TypeJoinRequested Type = "JOIN_REQUESTED"
	TypeJoinApproved  Type = "JOIN_APPROVED"
	TypeJoinDeclined  Type = "JOIN_DECLINED"
	TypeKicked        Type = "KICKED"
	TypeBanned        Type = "BANNED"
)

// Notification tells a user about a membership event in one of their groups
type Notification struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Type      Type      `json:"type"`
	GroupID   int64     `json:"group_id"`
	Message   string    `json:"message"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}
