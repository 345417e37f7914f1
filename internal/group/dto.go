package group

// CreateGroupRequest represents the request to create a new group
type CreateGroupRequest struct {
	Name           string    `json:"name" validate:"required,min=1,max=100"`
	Type           GroupType `json:"type" validate:"required,oneof=public private"`
	MaxMembers     *int      `json:"max_members,omitempty" validate:"omitempty,min=2"`
	InitialMembers []int64   `json:"initial_members,omitempty"`
}

// AddMemberRequest represents the request to add a member to a group
type AddMemberRequest struct {
	UserID int64 `json:"user_id" validate:"required"`
}

// TransferOwnershipRequest represents the request to reassign group ownership
type TransferOwnershipRequest struct {
	NewOwnerID int64 `json:"new_owner_id" validate:"required"`
}

// ManageJoinRequestRequest carries the owner's decision on a join request
type ManageJoinRequestRequest struct {
	Action ResolveAction `json:"action" validate:"required,oneof=approve decline"`
}

// JoinResponse tells the caller whether they joined directly or must wait
type JoinResponse struct {
	Result  JoinResult `json:"result"`
	Message string     `json:"message"`
}
