package group

import (
	"time"

	"github.com/youssefm/groupchat/internal/user"
)

// GroupType distinguishes open groups from invite/request-only ones
type GroupType string

const (
	TypePublic  GroupType = "public"
	TypePrivate GroupType = "private"
)

// Valid reports whether t is a known group type
func (t GroupType) Valid() bool {
	return t == TypePublic || t == TypePrivate
}

// Group represents a chat group with its membership fully resolved
type Group struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Type       GroupType `json:"type"`
	OwnerID    int64     `json:"owner_id"`
	MaxMembers *int      `json:"max_members,omitempty"`
	CreatedAt  time.Time `json:"created_at"`

	Owner       *user.User    `json:"owner,omitempty"`
	Members     []*user.User  `json:"members,omitempty"`
	BannedUsers []*BannedUser `json:"banned_users,omitempty"`
}

// BannedUser records a ban with its timestamp
type BannedUser struct {
	User     *user.User `json:"user"`
	BannedAt time.Time  `json:"banned_at"`
}

// IsOwner reports whether userID owns the group
func (g *Group) IsOwner(userID int64) bool {
	return g.OwnerID == userID
}

// HasMember reports whether userID is currently a member
func (g *Group) HasMember(userID int64) bool {
	for _, m := range g.Members {
		if m.ID == userID {
			return true
		}
	}
	return false
}

// IsBanned reports whether userID is on the ban list
func (g *Group) IsBanned(userID int64) bool {
	for _, b := range g.BannedUsers {
		if b.User.ID == userID {
			return true
		}
	}
	return false
}

// AtCapacity reports whether the group has reached its member limit
func (g *Group) AtCapacity() bool {
	return g.MaxMembers != nil && len(g.Members) >= *g.MaxMembers
}

// JoinRequestStatus is the lifecycle state of a join request.
// Approved and declined are terminal.
type JoinRequestStatus string

const (
	StatusPending  JoinRequestStatus = "pending"
	StatusApproved JoinRequestStatus = "approved"
	StatusDeclined JoinRequestStatus = "declined"
)

// JoinRequest is a pending proposal for a user to join a private group
type JoinRequest struct {
	ID        int64             `json:"id"`
	GroupID   int64             `json:"group_id"`
	UserID    int64             `json:"user_id"`
	Status    JoinRequestStatus `json:"status"`
	CreatedAt time.Time         `json:"created_at"`

	User *user.User `json:"user,omitempty"`
}

// LeftGroupCooldown is an append-only record of a user leaving a private
// group; the most recent record gates re-entry for a fixed window.
type LeftGroupCooldown struct {
	ID        int64     `json:"id"`
	GroupID   int64     `json:"group_id"`
	UserID    int64     `json:"user_id"`
	LeaveTime time.Time `json:"leave_time"`
}
