package chat

import (
	"time"

	"github.com/youssefm/groupchat/internal/user"
)

// Message is a stored chat message. Content is ciphertext everywhere
// except in wire responses; plaintext is never persisted.
type Message struct {
	ID        int64     `json:"id"`
	GroupID   int64     `json:"group_id"`
	SenderID  int64     `json:"sender_id"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`

	Sender *user.User `json:"sender,omitempty"`
}

// MessageResponse is a message with decrypted content for API responses
type MessageResponse struct {
	ID        int64      `json:"id"`
	GroupID   int64      `json:"group_id"`
	Sender    *user.User `json:"sender"`
	Content   string     `json:"content"`
	Timestamp time.Time  `json:"timestamp"`
}
