package group

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/youssefm/groupchat/internal/user"
)

// Common errors
var (
	ErrGroupNotFound     = errors.New("group not found")
	ErrUserNotFound      = errors.New("user not found")
	ErrAlreadyMember     = errors.New("user is already a member of this group")
	ErrNotMember         = errors.New("you are not a member of this group")
	ErrMemberNotFound    = errors.New("the user is not a member of this group")
	ErrBanned            = errors.New("user is banned from this group")
	ErrAlreadyBanned     = errors.New("user is already banned from this group")
	ErrNotOwner          = errors.New("only the group owner can perform this action")
	ErrNotAuthorized     = errors.New("you must be a member of this group to perform this action")
	ErrOwnerMustTransfer = errors.New("the owner must transfer ownership before leaving the group")
	ErrSelfTarget        = errors.New("the group owner cannot target themselves")
	ErrAlreadyOwner      = errors.New("user is already the owner of this group")
	ErrNewOwnerNotMember = errors.New("the new owner must be a member of the group")
	ErrPendingRequest    = errors.New("a join request for this group is already pending")
	ErrRequestNotFound   = errors.New("join request not found")
	ErrRequestResolved   = errors.New("this join request has already been resolved")
	ErrGroupFull         = errors.New("the group has reached its maximum number of members")
	ErrGroupNotEmpty     = errors.New("the group cannot be deleted while it still has other members")
)

// RejoinCooldown is how long a user must wait after leaving a private
// group before requesting to join it again.
const RejoinCooldown = 48 * time.Hour

// CooldownError is returned when a user tries to rejoin a private group
// while still inside the cooldown window.
type CooldownError struct {
	HoursLeft int
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("you must wait approximately %d more hours before you can request to join this group again", e.HoursLeft)
}

// JoinResult is the outcome of a join attempt
type JoinResult string

const (
	// Joined means the user became a member immediately (public group)
	Joined JoinResult = "joined"
	// Requested means a join request was created and awaits the owner (private group)
	Requested JoinResult = "requested"
)

// ResolveAction is the owner's decision on a join request
type ResolveAction string

const (
	Approve ResolveAction = "approve"
	Decline ResolveAction = "decline"
)

// Store is the persistence contract for groups, join requests and cooldowns
type Store interface {
	CreateGroup(ctx context.Context, ownerID int64, req *CreateGroupRequest) (*Group, error)
	GetGroupByID(ctx context.Context, id int64) (*Group, error)
	ListGroupsForUser(ctx context.Context, userID int64) ([]*Group, error)
	DeleteGroup(ctx context.Context, id int64) error

	AddMember(ctx context.Context, groupID, userID int64) error
	RemoveMember(ctx context.Context, groupID, userID int64) error
	SetOwner(ctx context.Context, groupID, userID int64) error
	// BanMember records the ban and removes membership in one atomic step
	BanMember(ctx context.Context, groupID, userID int64, bannedAt time.Time) error

	CreateJoinRequest(ctx context.Context, groupID, userID int64) (*JoinRequest, error)
	GetJoinRequestByID(ctx context.Context, id int64) (*JoinRequest, error)
	FindPendingJoinRequest(ctx context.Context, groupID, userID int64) (*JoinRequest, error)
	ListPendingJoinRequests(ctx context.Context, groupID int64) ([]*JoinRequest, error)
	// DeclineJoinRequest flips a pending request to declined; it returns
	// ErrRequestResolved if the request is no longer pending.
	DeclineJoinRequest(ctx context.Context, id int64) error
	// ApproveJoinRequest flips a pending request to approved and inserts the
	// membership row in a single transaction; it returns ErrRequestResolved
	// if the request is no longer pending.
	ApproveJoinRequest(ctx context.Context, id, groupID, userID int64) error

	CreateCooldown(ctx context.Context, groupID, userID int64, leaveTime time.Time) error
	LatestCooldown(ctx context.Context, groupID, userID int64) (*LeftGroupCooldown, error)
}

// UserDirectory resolves user references; absent users are (nil, nil)
type UserDirectory interface {
	GetByID(ctx context.Context, id int64) (*user.User, error)
}

// Notifier receives membership events. Implementations are best-effort;
// their failures never fail the operation that produced the event.
type Notifier interface {
	JoinRequested(ctx context.Context, ownerID int64, g *Group, requesterID int64) error
	JoinResolved(ctx context.Context, requesterID int64, g *Group, approved bool) error
	MemberRemoved(ctx context.Context, memberID int64, g *Group, banned bool) error
}

// Service owns every state transition over groups, join requests and
// cooldowns. All mutating operations serialize per group.
type Service struct {
	store    Store
	users    UserDirectory
	notifier Notifier

	now func() time.Time

	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

// NewService creates a new group service. notifier may be nil.
func NewService(store Store, users UserDirectory, notifier Notifier) *Service {
	return &Service{
		store:    store,
		users:    users,
		notifier: notifier,
		now:      time.Now,
		locks:    make(map[int64]*sync.Mutex),
	}
}

// lockGroup serializes mutations to a single group. Locks are never
// removed from the map; the population of groups a process touches is
// bounded and the per-entry cost is a mutex.
func (s *Service) lockGroup(id int64) func() {
	s.mu.Lock()
	m, ok := s.locks[id]
	if !ok {
		m = &sync.Mutex{}
		s.locks[id] = m
	}
	s.mu.Unlock()

	m.Lock()
	return m.Unlock
}

// Create creates a group with the caller as owner. Initial members are
// appended as given; they are not validated against bans or existence.
func (s *Service) Create(ctx context.Context, ownerID int64, req *CreateGroupRequest) (*Group, error) {
	g, err := s.store.CreateGroup(ctx, ownerID, req)
	if err != nil {
		return nil, err
	}
	log.Printf("group %d (%s) created by user %d", g.ID, g.Name, ownerID)
	return g, nil
}

// Join adds the user to a public group directly, or files a join request
// for a private group subject to the rejoin cooldown.
func (s *Service) Join(ctx context.Context, groupID, userID int64) (JoinResult, error) {
	unlock := s.lockGroup(groupID)
	defer unlock()

	g, err := s.store.GetGroupByID(ctx, groupID)
	if err != nil {
		return "", err
	}
	if g == nil {
		return "", ErrGroupNotFound
	}

	if g.IsBanned(userID) {
		log.Printf("banned user %d attempted to join group %d", userID, groupID)
		return "", ErrBanned
	}
	if g.HasMember(userID) {
		return "", ErrAlreadyMember
	}

	if g.Type == TypePublic {
		u, err := s.users.GetByID(ctx, userID)
		if err != nil {
			return "", err
		}
		if u == nil {
			return "", ErrUserNotFound
		}
		if g.AtCapacity() {
			return "", ErrGroupFull
		}
		if err := s.store.AddMember(ctx, groupID, userID); err != nil {
			return "", err
		}
		log.Printf("user %d joined public group %d", userID, groupID)
		return Joined, nil
	}

	// Private group: most recent cooldown record gates re-entry.
	cd, err := s.store.LatestCooldown(ctx, groupID, userID)
	if err != nil {
		return "", err
	}
	if cd != nil {
		elapsed := s.now().Sub(cd.LeaveTime)
		if elapsed < RejoinCooldown {
			left := RejoinCooldown - elapsed
			hours := int((left + time.Hour - 1) / time.Hour)
			log.Printf("user %d attempted to rejoin private group %d too soon", userID, groupID)
			return "", &CooldownError{HoursLeft: hours}
		}
	}

	pending, err := s.store.FindPendingJoinRequest(ctx, groupID, userID)
	if err != nil {
		return "", err
	}
	if pending != nil {
		return "", ErrPendingRequest
	}

	if _, err := s.store.CreateJoinRequest(ctx, groupID, userID); err != nil {
		return "", err
	}
	log.Printf("user %d requested to join private group %d", userID, groupID)

	s.notify(func() error {
		return s.notifier.JoinRequested(ctx, g.OwnerID, g, userID)
	})
	return Requested, nil
}

// ResolveJoinRequest approves or declines a pending request. Both outcomes
// are terminal. Approval re-checks ban, membership and capacity against the
// group's current state, and applies the status flip and the membership
// insert atomically.
func (s *Service) ResolveJoinRequest(ctx context.Context, requestID int64, action ResolveAction) error {
	req, err := s.store.GetJoinRequestByID(ctx, requestID)
	if err != nil {
		return err
	}
	if req == nil {
		return ErrRequestNotFound
	}
	if req.Status != StatusPending {
		return ErrRequestResolved
	}

	unlock := s.lockGroup(req.GroupID)
	defer unlock()

	g, err := s.store.GetGroupByID(ctx, req.GroupID)
	if err != nil {
		return err
	}
	if g == nil {
		return ErrGroupNotFound
	}

	if action == Decline {
		if err := s.store.DeclineJoinRequest(ctx, req.ID); err != nil {
			return err
		}
		log.Printf("join request %d for user %d to group %d declined", req.ID, req.UserID, req.GroupID)
		s.notify(func() error {
			return s.notifier.JoinResolved(ctx, req.UserID, g, false)
		})
		return nil
	}

	if g.IsBanned(req.UserID) {
		return ErrBanned
	}
	if g.HasMember(req.UserID) {
		return ErrAlreadyMember
	}
	if g.AtCapacity() {
		return ErrGroupFull
	}

	if err := s.store.ApproveJoinRequest(ctx, req.ID, req.GroupID, req.UserID); err != nil {
		return err
	}
	log.Printf("join request %d for user %d to group %d approved", req.ID, req.UserID, req.GroupID)

	s.notify(func() error {
		return s.notifier.JoinResolved(ctx, req.UserID, g, true)
	})
	return nil
}

// Leave removes the caller from the group. The owner may only leave as the
// sole member, which leaves the group ownerless pending deletion. Leaving a
// private group records a cooldown before membership is removed.
func (s *Service) Leave(ctx context.Context, groupID, userID int64) error {
	unlock := s.lockGroup(groupID)
	defer unlock()

	g, err := s.store.GetGroupByID(ctx, groupID)
	if err != nil {
		return err
	}
	if g == nil {
		return ErrGroupNotFound
	}
	if !g.HasMember(userID) {
		return ErrNotMember
	}
	if g.IsOwner(userID) && len(g.Members) > 1 {
		log.Printf("owner %d attempted to leave group %d with other members present", userID, groupID)
		return ErrOwnerMustTransfer
	}

	if g.Type == TypePrivate {
		if err := s.store.CreateCooldown(ctx, groupID, userID, s.now()); err != nil {
			return err
		}
	}

	if err := s.store.RemoveMember(ctx, groupID, userID); err != nil {
		return err
	}
	log.Printf("user %d left group %d", userID, groupID)
	return nil
}

// Kick removes a member on the owner's behalf. The target must currently
// be a member.
func (s *Service) Kick(ctx context.Context, groupID, ownerID, memberID int64) error {
	unlock := s.lockGroup(groupID)
	defer unlock()

	g, err := s.store.GetGroupByID(ctx, groupID)
	if err != nil {
		return err
	}
	if g == nil {
		return ErrGroupNotFound
	}
	if !g.IsOwner(ownerID) {
		log.Printf("user %d attempted to kick from group %d but is not the owner", ownerID, groupID)
		return ErrNotOwner
	}
	if ownerID == memberID {
		return ErrSelfTarget
	}
	if !g.HasMember(memberID) {
		return ErrMemberNotFound
	}

	if err := s.store.RemoveMember(ctx, groupID, memberID); err != nil {
		return err
	}
	log.Printf("owner %d kicked member %d from group %d", ownerID, memberID, groupID)

	s.notify(func() error {
		return s.notifier.MemberRemoved(ctx, memberID, g, false)
	})
	return nil
}

// Ban adds the target to the ban list and removes any current membership.
// The target does not have to be a member, but must exist.
func (s *Service) Ban(ctx context.Context, groupID, ownerID, memberID int64) error {
	unlock := s.lockGroup(groupID)
	defer unlock()

	g, err := s.store.GetGroupByID(ctx, groupID)
	if err != nil {
		return err
	}
	if g == nil {
		return ErrGroupNotFound
	}
	if !g.IsOwner(ownerID) {
		log.Printf("user %d attempted to ban from group %d but is not the owner", ownerID, groupID)
		return ErrNotOwner
	}
	if ownerID == memberID {
		return ErrSelfTarget
	}
	if g.IsBanned(memberID) {
		return ErrAlreadyBanned
	}

	u, err := s.users.GetByID(ctx, memberID)
	if err != nil {
		return err
	}
	if u == nil {
		return ErrUserNotFound
	}

	if err := s.store.BanMember(ctx, groupID, memberID, s.now()); err != nil {
		return err
	}
	log.Printf("owner %d banned user %d from group %d", ownerID, memberID, groupID)

	s.notify(func() error {
		return s.notifier.MemberRemoved(ctx, memberID, g, true)
	})
	return nil
}

// AddMember adds a user directly. Private groups allow only the owner to
// add; public groups allow any current member.
func (s *Service) AddMember(ctx context.Context, groupID, adderID, newMemberID int64) error {
	unlock := s.lockGroup(groupID)
	defer unlock()

	g, err := s.store.GetGroupByID(ctx, groupID)
	if err != nil {
		return err
	}
	if g == nil {
		return ErrGroupNotFound
	}

	u, err := s.users.GetByID(ctx, newMemberID)
	if err != nil {
		return err
	}
	if u == nil {
		return ErrUserNotFound
	}

	if g.Type == TypePrivate {
		if !g.IsOwner(adderID) {
			return ErrNotOwner
		}
	} else if !g.HasMember(adderID) {
		return ErrNotAuthorized
	}

	if g.HasMember(newMemberID) {
		return ErrAlreadyMember
	}
	if g.IsBanned(newMemberID) {
		return ErrBanned
	}
	if g.AtCapacity() {
		return ErrGroupFull
	}

	if err := s.store.AddMember(ctx, groupID, newMemberID); err != nil {
		return err
	}
	log.Printf("user %d added user %d to group %d", adderID, newMemberID, groupID)
	return nil
}

// TransferOwnership reassigns the group to another current member
func (s *Service) TransferOwnership(ctx context.Context, groupID, currentOwnerID, newOwnerID int64) error {
	unlock := s.lockGroup(groupID)
	defer unlock()

	g, err := s.store.GetGroupByID(ctx, groupID)
	if err != nil {
		return err
	}
	if g == nil {
		return ErrGroupNotFound
	}
	if !g.IsOwner(currentOwnerID) {
		return ErrNotOwner
	}
	if currentOwnerID == newOwnerID {
		return ErrAlreadyOwner
	}
	if !g.HasMember(newOwnerID) {
		return ErrNewOwnerNotMember
	}

	if err := s.store.SetOwner(ctx, groupID, newOwnerID); err != nil {
		return err
	}
	log.Printf("ownership of group %d transferred from %d to %d", groupID, currentOwnerID, newOwnerID)
	return nil
}

// Delete removes the group. Only the owner may delete, and only while they
// are the sole member. Join requests and cooldown records are left behind
// as historical residue.
func (s *Service) Delete(ctx context.Context, groupID, ownerID int64) error {
	unlock := s.lockGroup(groupID)
	defer unlock()

	g, err := s.store.GetGroupByID(ctx, groupID)
	if err != nil {
		return err
	}
	if g == nil {
		return ErrGroupNotFound
	}
	if !g.IsOwner(ownerID) {
		return ErrNotOwner
	}
	if len(g.Members) > 1 {
		return ErrGroupNotEmpty
	}

	if err := s.store.DeleteGroup(ctx, groupID); err != nil {
		return err
	}
	log.Printf("group %d deleted by owner %d", groupID, ownerID)
	return nil
}

// GetByID retrieves a group with members, owner and ban list resolved
func (s *Service) GetByID(ctx context.Context, id int64) (*Group, error) {
	g, err := s.store.GetGroupByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, ErrGroupNotFound
	}
	return g, nil
}

// ListForUser retrieves all groups the user is a member of
func (s *Service) ListForUser(ctx context.Context, userID int64) ([]*Group, error) {
	return s.store.ListGroupsForUser(ctx, userID)
}

// PendingJoinRequests lists the unresolved requests for a group
func (s *Service) PendingJoinRequests(ctx context.Context, groupID int64) ([]*JoinRequest, error) {
	return s.store.ListPendingJoinRequests(ctx, groupID)
}

// GetJoinRequest retrieves a single join request by ID
func (s *Service) GetJoinRequest(ctx context.Context, id int64) (*JoinRequest, error) {
	req, err := s.store.GetJoinRequestByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, ErrRequestNotFound
	}
	return req, nil
}

// notify runs a notifier call, logging instead of propagating failures
func (s *Service) notify(fn func() error) {
	if s.notifier == nil {
		return
	}
	if err := fn(); err != nil {
		log.Printf("notification failed: %v", err)
	}
}
