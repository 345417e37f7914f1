package group

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/youssefm/groupchat/internal/user"
)

// Repository is the Postgres-backed Store implementation
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new group repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

var _ Store = (*Repository)(nil)

// CreateGroup inserts the group, the owner's membership and any initial
// members in one transaction
func (r *Repository) CreateGroup(ctx context.Context, ownerID int64, req *CreateGroupRequest) (*Group, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var groupID int64
	query := `
		INSERT INTO groups (name, type, owner_id, max_members)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	if err := tx.QueryRowContext(ctx, query, req.Name, req.Type, ownerID, req.MaxMembers).Scan(&groupID); err != nil {
		return nil, fmt.Errorf("failed to create group: %w", err)
	}

	memberQuery := `
		INSERT INTO group_members (group_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (group_id, user_id) DO NOTHING
	`
	if _, err := tx.ExecContext(ctx, memberQuery, groupID, ownerID); err != nil {
		return nil, fmt.Errorf("failed to add owner as member: %w", err)
	}
	for _, memberID := range req.InitialMembers {
		if _, err := tx.ExecContext(ctx, memberQuery, groupID, memberID); err != nil {
			return nil, fmt.Errorf("failed to add initial member %d: %w", memberID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit group creation: %w", err)
	}

	return r.GetGroupByID(ctx, groupID)
}

// GetGroupByID retrieves a group with owner, members and ban list resolved
func (r *Repository) GetGroupByID(ctx context.Context, id int64) (*Group, error) {
	query := `
		SELECT id, name, type, owner_id, max_members, created_at
		FROM groups
		WHERE id = $1
	`

	g := &Group{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&g.ID,
		&g.Name,
		&g.Type,
		&g.OwnerID,
		&g.MaxMembers,
		&g.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get group: %w", err)
	}

	if g.Members, err = r.getMembers(ctx, id); err != nil {
		return nil, err
	}
	if g.BannedUsers, err = r.getBannedUsers(ctx, id); err != nil {
		return nil, err
	}

	// The owner is usually in the member list; an ownerless-in-members
	// state only exists between a solitary owner leaving and deletion.
	for _, m := range g.Members {
		if m.ID == g.OwnerID {
			g.Owner = m
			break
		}
	}
	if g.Owner == nil {
		if g.Owner, err = r.getUser(ctx, g.OwnerID); err != nil {
			return nil, err
		}
	}

	return g, nil
}

func (r *Repository) getMembers(ctx context.Context, groupID int64) ([]*user.User, error) {
	query := `
		SELECT u.id, u.username, u.email, u.created_at
		FROM group_members gm
		JOIN users u ON gm.user_id = u.id
		WHERE gm.group_id = $1
		ORDER BY gm.joined_at, gm.id
	`

	rows, err := r.db.QueryContext(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to get members: %w", err)
	}
	defer rows.Close()

	var members []*user.User
	for rows.Next() {
		u := &user.User{}
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, u)
	}
	return members, rows.Err()
}

func (r *Repository) getBannedUsers(ctx context.Context, groupID int64) ([]*BannedUser, error) {
	query := `
		SELECT u.id, u.username, u.email, u.created_at, b.banned_at
		FROM banned_users b
		JOIN users u ON b.user_id = u.id
		WHERE b.group_id = $1
		ORDER BY b.banned_at
	`

	rows, err := r.db.QueryContext(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to get banned users: %w", err)
	}
	defer rows.Close()

	var banned []*BannedUser
	for rows.Next() {
		b := &BannedUser{User: &user.User{}}
		if err := rows.Scan(&b.User.ID, &b.User.Username, &b.User.Email, &b.User.CreatedAt, &b.BannedAt); err != nil {
			return nil, fmt.Errorf("failed to scan banned user: %w", err)
		}
		banned = append(banned, b)
	}
	return banned, rows.Err()
}

func (r *Repository) getUser(ctx context.Context, id int64) (*user.User, error) {
	query := `SELECT id, username, email, created_at FROM users WHERE id = $1`

	u := &user.User{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(&u.ID, &u.Username, &u.Email, &u.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// ListGroupsForUser retrieves all groups the user is a member of
func (r *Repository) ListGroupsForUser(ctx context.Context, userID int64) ([]*Group, error) {
	query := `
		SELECT g.id
		FROM groups g
		JOIN group_members gm ON g.id = gm.group_id
		WHERE gm.user_id = $1
		ORDER BY g.created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan group id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	groups := make([]*Group, 0, len(ids))
	for _, id := range ids {
		g, err := r.GetGroupByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if g != nil {
			groups = append(groups, g)
		}
	}
	return groups, nil
}

// DeleteGroup removes the group row; memberships and bans cascade,
// join requests and cooldowns remain
func (r *Repository) DeleteGroup(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM groups WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete group: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return ErrGroupNotFound
	}
	return nil
}

// AddMember inserts a membership row
func (r *Repository) AddMember(ctx context.Context, groupID, userID int64) error {
	query := `INSERT INTO group_members (group_id, user_id) VALUES ($1, $2)`
	if _, err := r.db.ExecContext(ctx, query, groupID, userID); err != nil {
		return fmt.Errorf("failed to add member: %w", err)
	}
	return nil
}

// RemoveMember deletes a membership row
func (r *Repository) RemoveMember(ctx context.Context, groupID, userID int64) error {
	query := `DELETE FROM group_members WHERE group_id = $1 AND user_id = $2`
	if _, err := r.db.ExecContext(ctx, query, groupID, userID); err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}
	return nil
}

// SetOwner reassigns group ownership
func (r *Repository) SetOwner(ctx context.Context, groupID, userID int64) error {
	query := `UPDATE groups SET owner_id = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, groupID, userID); err != nil {
		return fmt.Errorf("failed to set owner: %w", err)
	}
	return nil
}

// BanMember records the ban and removes any membership in one transaction
func (r *Repository) BanMember(ctx context.Context, groupID, userID int64, bannedAt time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	banQuery := `INSERT INTO banned_users (group_id, user_id, banned_at) VALUES ($1, $2, $3)`
	if _, err := tx.ExecContext(ctx, banQuery, groupID, userID, bannedAt); err != nil {
		return fmt.Errorf("failed to ban member: %w", err)
	}

	removeQuery := `DELETE FROM group_members WHERE group_id = $1 AND user_id = $2`
	if _, err := tx.ExecContext(ctx, removeQuery, groupID, userID); err != nil {
		return fmt.Errorf("failed to remove banned member: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit ban: %w", err)
	}
	return nil
}

// CreateJoinRequest inserts a pending join request
func (r *Repository) CreateJoinRequest(ctx context.Context, groupID, userID int64) (*JoinRequest, error) {
	query := `
		INSERT INTO join_requests (group_id, user_id)
		VALUES ($1, $2)
		RETURNING id, group_id, user_id, status, created_at
	`

	req := &JoinRequest{}
	err := r.db.QueryRowContext(ctx, query, groupID, userID).Scan(
		&req.ID,
		&req.GroupID,
		&req.UserID,
		&req.Status,
		&req.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create join request: %w", err)
	}
	return req, nil
}

// GetJoinRequestByID retrieves a join request with the requester resolved
func (r *Repository) GetJoinRequestByID(ctx context.Context, id int64) (*JoinRequest, error) {
	query := `
		SELECT jr.id, jr.group_id, jr.user_id, jr.status, jr.created_at,
		       u.id, u.username, u.email, u.created_at
		FROM join_requests jr
		JOIN users u ON jr.user_id = u.id
		WHERE jr.id = $1
	`

	req := &JoinRequest{User: &user.User{}}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&req.ID,
		&req.GroupID,
		&req.UserID,
		&req.Status,
		&req.CreatedAt,
		&req.User.ID,
		&req.User.Username,
		&req.User.Email,
		&req.User.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get join request: %w", err)
	}
	return req, nil
}

// FindPendingJoinRequest finds the pending request for (group, user), if any
func (r *Repository) FindPendingJoinRequest(ctx context.Context, groupID, userID int64) (*JoinRequest, error) {
	query := `
		SELECT id, group_id, user_id, status, created_at
		FROM join_requests
		WHERE group_id = $1 AND user_id = $2 AND status = 'pending'
		LIMIT 1
	`

	req := &JoinRequest{}
	err := r.db.QueryRowContext(ctx, query, groupID, userID).Scan(
		&req.ID,
		&req.GroupID,
		&req.UserID,
		&req.Status,
		&req.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find pending join request: %w", err)
	}
	return req, nil
}

// ListPendingJoinRequests lists unresolved requests with requesters resolved
func (r *Repository) ListPendingJoinRequests(ctx context.Context, groupID int64) ([]*JoinRequest, error) {
	query := `
		SELECT jr.id, jr.group_id, jr.user_id, jr.status, jr.created_at,
		       u.id, u.username, u.email, u.created_at
		FROM join_requests jr
		JOIN users u ON jr.user_id = u.id
		WHERE jr.group_id = $1 AND jr.status = 'pending'
		ORDER BY jr.created_at
	`

	rows, err := r.db.QueryContext(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list join requests: %w", err)
	}
	defer rows.Close()

	var requests []*JoinRequest
	for rows.Next() {
		req := &JoinRequest{User: &user.User{}}
		if err := rows.Scan(
			&req.ID,
			&req.GroupID,
			&req.UserID,
			&req.Status,
			&req.CreatedAt,
			&req.User.ID,
			&req.User.Username,
			&req.User.Email,
			&req.User.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan join request: %w", err)
		}
		requests = append(requests, req)
	}
	return requests, rows.Err()
}

// DeclineJoinRequest flips a pending request to declined
func (r *Repository) DeclineJoinRequest(ctx context.Context, id int64) error {
	query := `UPDATE join_requests SET status = 'declined' WHERE id = $1 AND status = 'pending'`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to decline join request: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return ErrRequestResolved
	}
	return nil
}

// ApproveJoinRequest flips a pending request to approved and inserts the
// membership row in a single transaction, so a crash cannot leave the
// request and the member list disagreeing.
func (r *Repository) ApproveJoinRequest(ctx context.Context, id, groupID, userID int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	statusQuery := `UPDATE join_requests SET status = 'approved' WHERE id = $1 AND status = 'pending'`
	result, err := tx.ExecContext(ctx, statusQuery, id)
	if err != nil {
		return fmt.Errorf("failed to approve join request: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return ErrRequestResolved
	}

	memberQuery := `INSERT INTO group_members (group_id, user_id) VALUES ($1, $2)`
	if _, err := tx.ExecContext(ctx, memberQuery, groupID, userID); err != nil {
		return fmt.Errorf("failed to add approved member: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit approval: %w", err)
	}
	return nil
}

// CreateCooldown appends a cooldown record
func (r *Repository) CreateCooldown(ctx context.Context, groupID, userID int64, leaveTime time.Time) error {
	query := `INSERT INTO left_group_cooldowns (group_id, user_id, leave_time) VALUES ($1, $2, $3)`
	if _, err := r.db.ExecContext(ctx, query, groupID, userID, leaveTime); err != nil {
		return fmt.Errorf("failed to create cooldown: %w", err)
	}
	return nil
}

// LatestCooldown returns the most recent cooldown record for (user, group)
func (r *Repository) LatestCooldown(ctx context.Context, groupID, userID int64) (*LeftGroupCooldown, error) {
	query := `
		SELECT id, group_id, user_id, leave_time
		FROM left_group_cooldowns
		WHERE group_id = $1 AND user_id = $2
		ORDER BY leave_time DESC
		LIMIT 1
	`

	cd := &LeftGroupCooldown{}
	err := r.db.QueryRowContext(ctx, query, groupID, userID).Scan(
		&cd.ID,
		&cd.GroupID,
		&cd.UserID,
		&cd.LeaveTime,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest cooldown: %w", err)
	}
	return cd, nil
}
