package chat

import (
	"context"
	"errors"
	"time"

	"github.com/sony/sonyflake"

	"github.com/youssefm/groupchat/internal/user"
)

// Common errors
var (
	ErrSenderNotFound = errors.New("message sender not found")
)

// Store is the persistence contract for messages
type Store interface {
	Insert(ctx context.Context, m *Message) error
	ListForGroup(ctx context.Context, groupID int64) ([]*Message, error)
}

// Encryptor encrypts message bodies at rest and decrypts them for delivery
type Encryptor interface {
	Encrypt(text string) (string, error)
	Decrypt(text string) (string, error)
}

// UserDirectory resolves sender references; absent users are (nil, nil)
type UserDirectory interface {
	GetByID(ctx context.Context, id int64) (*user.User, error)
}

// Service is the message store adapter: it encrypts on the way in and
// hands back ciphertext records with senders resolved. Callers decrypt;
// the store stays agnostic of the key.
type Service struct {
	store Store
	users UserDirectory
	enc   Encryptor
	cache Cache // nil disables caching

	flake *sonyflake.Sonyflake
	now   func() time.Time
}

// NewService creates a new chat service. cache may be nil.
func NewService(store Store, users UserDirectory, enc Encryptor, cache Cache) *Service {
	return &Service{
		store: store,
		users: users,
		enc:   enc,
		cache: cache,
		flake: sonyflake.NewSonyflake(sonyflake.Settings{}),
		now:   time.Now,
	}
}

// Append encrypts plaintext, persists it and returns the stored record
// with the sender resolved. The returned content is ciphertext.
func (s *Service) Append(ctx context.Context, groupID, senderID int64, plaintext string) (*Message, error) {
	sender, err := s.users.GetByID(ctx, senderID)
	if err != nil {
		return nil, err
	}
	if sender == nil {
		return nil, ErrSenderNotFound
	}

	ciphertext, err := s.enc.Encrypt(plaintext)
	if err != nil {
		return nil, err
	}

	id, err := s.flake.NextID()
	if err != nil {
		return nil, err
	}

	m := &Message{
		ID:        int64(id),
		GroupID:   groupID,
		SenderID:  senderID,
		Content:   ciphertext,
		Timestamp: s.now(),
		Sender:    sender,
	}
	if err := s.store.Insert(ctx, m); err != nil {
		return nil, err
	}

	if s.cache != nil {
		s.cache.Invalidate(ctx, groupID)
	}
	return m, nil
}

// ListForGroup returns all messages for a group in insertion order.
// Content is ciphertext; the caller decrypts.
func (s *Service) ListForGroup(ctx context.Context, groupID int64) ([]*Message, error) {
	if s.cache != nil {
		if messages, ok := s.cache.GetMessages(ctx, groupID); ok {
			return messages, nil
		}
	}

	messages, err := s.store.ListForGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		s.cache.SetMessages(ctx, groupID, messages)
	}
	return messages, nil
}
