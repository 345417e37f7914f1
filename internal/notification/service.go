package notification

import (
	"context"
	"errors"
	"fmt"

	"github.com/youssefm/groupchat/internal/group"
)

// Common errors
var (
	ErrNotificationNotFound = errors.New("notification not found")
)

// Service records membership events for later delivery. It satisfies the
// group service's Notifier contract.
type Service struct {
	repo *Repository
}

// NewService creates a new notification service
func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

var _ group.Notifier = (*Service)(nil)

// JoinRequested notifies the owner that a user wants to join
func (s *Service) JoinRequested(ctx context.Context, ownerID int64, g *group.Group, requesterID int64) error {
	message := fmt.Sprintf("User %d has requested to join '%s'", requesterID, g.Name)
	_, err := s.repo.Create(ctx, ownerID, TypeJoinRequested, g.ID, message)
	return err
}

// JoinResolved notifies the requester of the owner's decision
func (s *Service) JoinResolved(ctx context.Context, requesterID int64, g *group.Group, approved bool) error {
	typ, verdict := TypeJoinApproved, "approved"
	if !approved {
		typ, verdict = TypeJoinDeclined, "declined"
	}
	message := fmt.Sprintf("Your request to join '%s' was %s", g.Name, verdict)
	_, err := s.repo.Create(ctx, requesterID, typ, g.ID, message)
	return err
}

// MemberRemoved notifies a user they were kicked or banned
func (s *Service) MemberRemoved(ctx context.Context, memberID int64, g *group.Group, banned bool) error {
	typ := TypeKicked
	message := fmt.Sprintf("You have been removed from '%s'", g.Name)
	if banned {
		typ = TypeBanned
		message = fmt.Sprintf("You have been banned from '%s'", g.Name)
	}
	_, err := s.repo.Create(ctx, memberID, typ, g.ID, message)
	return err
}

// ListForUser retrieves a user's notifications, newest first
func (s *Service) ListForUser(ctx context.Context, userID int64) ([]*Notification, error) {
	return s.repo.ListForUser(ctx, userID)
}

// MarkRead marks one of the user's notifications as read
func (s *Service) MarkRead(ctx context.Context, id, userID int64) error {
	return s.repo.MarkRead(ctx, id, userID)
}
