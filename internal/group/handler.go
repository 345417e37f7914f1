package group

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/youssefm/groupchat/pkg/middleware"
	"github.com/youssefm/groupchat/pkg/response"
)

// Handler handles HTTP requests for group lifecycle operations
type Handler struct {
	service *Service
}

// NewHandler creates a new group handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes returns the router for group endpoints
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.Create)
	r.Get("/", h.ListMine)
	r.Patch("/join-requests/{requestId}", h.ManageJoinRequest)

	r.Get("/{groupId}", h.GetByID)
	r.Get("/{groupId}/members", h.GetMembers)
	r.Get("/{groupId}/join-requests", h.GetJoinRequests)
	r.Post("/{groupId}/join", h.Join)
	r.Post("/{groupId}/add-member", h.AddMember)
	r.Post("/{groupId}/leave", h.Leave)
	r.Post("/{groupId}/kick/{memberId}", h.Kick)
	r.Post("/{groupId}/ban/{memberId}", h.Ban)
	r.Patch("/{groupId}/transfer-ownership", h.TransferOwnership)
	r.Delete("/{groupId}", h.Delete)

	return r
}

// writeError maps service errors onto the HTTP error taxonomy
func writeError(w http.ResponseWriter, err error) {
	var cooldown *CooldownError
	switch {
	case errors.Is(err, ErrGroupNotFound),
		errors.Is(err, ErrUserNotFound),
		errors.Is(err, ErrMemberNotFound),
		errors.Is(err, ErrRequestNotFound),
		errors.Is(err, ErrNewOwnerNotMember):
		response.NotFound(w, err.Error())
	case errors.Is(err, ErrAlreadyMember),
		errors.Is(err, ErrNotMember),
		errors.Is(err, ErrAlreadyBanned),
		errors.Is(err, ErrAlreadyOwner),
		errors.Is(err, ErrPendingRequest),
		errors.Is(err, ErrRequestResolved),
		errors.Is(err, ErrGroupFull):
		response.Conflict(w, err.Error())
	case errors.Is(err, ErrBanned),
		errors.Is(err, ErrNotOwner),
		errors.Is(err, ErrNotAuthorized),
		errors.Is(err, ErrOwnerMustTransfer),
		errors.Is(err, ErrSelfTarget),
		errors.Is(err, ErrGroupNotEmpty),
		errors.As(err, &cooldown):
		response.Forbidden(w, err.Error())
	default:
		response.InternalError(w, "Operation failed")
	}
}

func groupIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "groupId"), 10, 64)
}

// Create handles POST /groups
// @Summary      Create a new group
// @Tags         groups
// @Accept       json
// @Produce      json
// @Param        request body CreateGroupRequest true "Group creation request"
// @Success      201 {object} response.APIResponse{data=Group}
// @Failure      400 {object} response.APIResponse
// @Router       /groups [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	var req CreateGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}
	if req.Name == "" {
		response.BadRequest(w, "name is required")
		return
	}
	if !req.Type.Valid() {
		response.BadRequest(w, "type must be 'public' or 'private'")
		return
	}
	if req.MaxMembers != nil && *req.MaxMembers < 2 {
		response.BadRequest(w, "max_members must be at least 2")
		return
	}

	g, err := h.service.Create(r.Context(), ownerID, &req)
	if err != nil {
		writeError(w, err)
		return
	}

	response.JSON(w, http.StatusCreated, g)
}

// ListMine handles GET /groups
// @Summary      List groups for the current user
// @Tags         groups
// @Produce      json
// @Success      200 {object} response.APIResponse{data=[]Group}
// @Router       /groups [get]
func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	groups, err := h.service.ListForUser(r.Context(), userID)
	if err != nil {
		response.InternalError(w, "Failed to list groups")
		return
	}

	response.JSON(w, http.StatusOK, groups)
}

// GetByID handles GET /groups/{groupId}
// @Summary      Get details for a specific group
// @Tags         groups
// @Produce      json
// @Param        groupId path int true "Group ID"
// @Success      200 {object} response.APIResponse{data=Group}
// @Failure      403 {object} response.APIResponse
// @Failure      404 {object} response.APIResponse
// @Router       /groups/{groupId} [get]
func (h *Handler) GetByID(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())
	groupID, err := groupIDParam(r)
	if err != nil {
		response.BadRequest(w, "Invalid group ID")
		return
	}

	g, err := h.service.GetByID(r.Context(), groupID)
	if err != nil {
		writeError(w, err)
		return
	}
	if !g.HasMember(userID) {
		response.Forbidden(w, ErrNotMember.Error())
		return
	}

	response.JSON(w, http.StatusOK, g)
}

// GetMembers handles GET /groups/{groupId}/members
// @Summary      Get the member list of a group
// @Tags         groups
// @Produce      json
// @Param        groupId path int true "Group ID"
// @Success      200 {object} response.APIResponse{data=[]user.User}
// @Failure      403 {object} response.APIResponse
// @Failure      404 {object} response.APIResponse
// @Router       /groups/{groupId}/members [get]
func (h *Handler) GetMembers(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())
	groupID, err := groupIDParam(r)
	if err != nil {
		response.BadRequest(w, "Invalid group ID")
		return
	}

	g, err := h.service.GetByID(r.Context(), groupID)
	if err != nil {
		writeError(w, err)
		return
	}
	if !g.HasMember(userID) {
		response.Forbidden(w, ErrNotMember.Error())
		return
	}

	response.JSON(w, http.StatusOK, g.Members)
}

// GetJoinRequests handles GET /groups/{groupId}/join-requests
// @Summary      Get pending join requests for a group (owner only)
// @Tags         groups
// @Produce      json
// @Param        groupId path int true "Group ID"
// @Success      200 {object} response.APIResponse{data=[]JoinRequest}
// @Failure      403 {object} response.APIResponse
// @Router       /groups/{groupId}/join-requests [get]
func (h *Handler) GetJoinRequests(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())
	groupID, err := groupIDParam(r)
	if err != nil {
		response.BadRequest(w, "Invalid group ID")
		return
	}

	g, err := h.service.GetByID(r.Context(), groupID)
	if err != nil {
		writeError(w, err)
		return
	}
	if !g.IsOwner(userID) {
		response.Forbidden(w, ErrNotOwner.Error())
		return
	}

	requests, err := h.service.PendingJoinRequests(r.Context(), groupID)
	if err != nil {
		response.InternalError(w, "Failed to list join requests")
		return
	}

	response.JSON(w, http.StatusOK, requests)
}

// Join handles POST /groups/{groupId}/join
// @Summary      Join a group or request to join
// @Tags         groups
// @Produce      json
// @Param        groupId path int true "Group ID"
// @Success      201 {object} response.APIResponse{data=JoinResponse}
// @Failure      403 {object} response.APIResponse
// @Failure      404 {object} response.APIResponse
// @Failure      409 {object} response.APIResponse
// @Router       /groups/{groupId}/join [post]
func (h *Handler) Join(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())
	groupID, err := groupIDParam(r)
	if err != nil {
		response.BadRequest(w, "Invalid group ID")
		return
	}

	result, err := h.service.Join(r.Context(), groupID, userID)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := &JoinResponse{Result: result}
	if result == Joined {
		resp.Message = "Successfully joined group."
	} else {
		resp.Message = "Your request to join the group has been sent."
	}
	response.JSON(w, http.StatusCreated, resp)
}

// ManageJoinRequest handles PATCH /groups/join-requests/{requestId}
// @Summary      Approve or decline a join request (owner only)
// @Tags         groups
// @Accept       json
// @Produce      json
// @Param        requestId path int true "Join request ID"
// @Param        request body ManageJoinRequestRequest true "Decision"
// @Success      200 {object} response.APIResponse
// @Failure      403 {object} response.APIResponse
// @Failure      404 {object} response.APIResponse
// @Failure      409 {object} response.APIResponse
// @Router       /groups/join-requests/{requestId} [patch]
func (h *Handler) ManageJoinRequest(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())
	requestID, err := strconv.ParseInt(chi.URLParam(r, "requestId"), 10, 64)
	if err != nil {
		response.BadRequest(w, "Invalid request ID")
		return
	}

	var req ManageJoinRequestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}
	if req.Action != Approve && req.Action != Decline {
		response.BadRequest(w, "action must be 'approve' or 'decline'")
		return
	}

	// Only the owner of the request's group may resolve it
	jr, err := h.service.GetJoinRequest(r.Context(), requestID)
	if err != nil {
		writeError(w, err)
		return
	}
	g, err := h.service.GetByID(r.Context(), jr.GroupID)
	if err != nil {
		writeError(w, err)
		return
	}
	if !g.IsOwner(userID) {
		response.Forbidden(w, ErrNotOwner.Error())
		return
	}

	if err := h.service.ResolveJoinRequest(r.Context(), requestID, req.Action); err != nil {
		writeError(w, err)
		return
	}

	message := "Join request approved."
	if req.Action == Decline {
		message = "Join request declined."
	}
	response.JSON(w, http.StatusOK, map[string]string{"message": message})
}

// AddMember handles POST /groups/{groupId}/add-member
// @Summary      Add a user to a group
// @Tags         groups
// @Accept       json
// @Produce      json
// @Param        groupId path int true "Group ID"
// @Param        request body AddMemberRequest true "User to add"
// @Success      201 {object} response.APIResponse
// @Failure      403 {object} response.APIResponse
// @Failure      404 {object} response.APIResponse
// @Failure      409 {object} response.APIResponse
// @Router       /groups/{groupId}/add-member [post]
func (h *Handler) AddMember(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())
	groupID, err := groupIDParam(r)
	if err != nil {
		response.BadRequest(w, "Invalid group ID")
		return
	}

	var req AddMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	if err := h.service.AddMember(r.Context(), groupID, userID, req.UserID); err != nil {
		writeError(w, err)
		return
	}

	response.JSON(w, http.StatusCreated, map[string]string{"message": "Member added successfully."})
}

// Leave handles POST /groups/{groupId}/leave
// @Summary      Leave a group
// @Tags         groups
// @Produce      json
// @Param        groupId path int true "Group ID"
// @Success      200 {object} response.APIResponse
// @Failure      403 {object} response.APIResponse
// @Failure      404 {object} response.APIResponse
// @Failure      409 {object} response.APIResponse
// @Router       /groups/{groupId}/leave [post]
func (h *Handler) Leave(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())
	groupID, err := groupIDParam(r)
	if err != nil {
		response.BadRequest(w, "Invalid group ID")
		return
	}

	if err := h.service.Leave(r.Context(), groupID, userID); err != nil {
		writeError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, map[string]string{"message": "You have successfully left the group."})
}

// Kick handles POST /groups/{groupId}/kick/{memberId}
// @Summary      Kick a member from a group (owner only)
// @Tags         groups
// @Produce      json
// @Param        groupId path int true "Group ID"
// @Param        memberId path int true "Member ID"
// @Success      200 {object} response.APIResponse
// @Failure      403 {object} response.APIResponse
// @Failure      404 {object} response.APIResponse
// @Router       /groups/{groupId}/kick/{memberId} [post]
func (h *Handler) Kick(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())
	groupID, err := groupIDParam(r)
	if err != nil {
		response.BadRequest(w, "Invalid group ID")
		return
	}
	memberID, err := strconv.ParseInt(chi.URLParam(r, "memberId"), 10, 64)
	if err != nil {
		response.BadRequest(w, "Invalid member ID")
		return
	}

	if err := h.service.Kick(r.Context(), groupID, userID, memberID); err != nil {
		writeError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, map[string]string{"message": "Member has been kicked from the group."})
}

// Ban handles POST /groups/{groupId}/ban/{memberId}
// @Summary      Ban a user from a group (owner only)
// @Tags         groups
// @Produce      json
// @Param        groupId path int true "Group ID"
// @Param        memberId path int true "User ID to ban"
// @Success      200 {object} response.APIResponse
// @Failure      403 {object} response.APIResponse
// @Failure      404 {object} response.APIResponse
// @Failure      409 {object} response.APIResponse
// @Router       /groups/{groupId}/ban/{memberId} [post]
func (h *Handler) Ban(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())
	groupID, err := groupIDParam(r)
	if err != nil {
		response.BadRequest(w, "Invalid group ID")
		return
	}
	memberID, err := strconv.ParseInt(chi.URLParam(r, "memberId"), 10, 64)
	if err != nil {
		response.BadRequest(w, "Invalid member ID")
		return
	}

	if err := h.service.Ban(r.Context(), groupID, userID, memberID); err != nil {
		writeError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, map[string]string{"message": "Member has been banned from the group."})
}

// TransferOwnership handles PATCH /groups/{groupId}/transfer-ownership
// @Summary      Transfer group ownership (owner only)
// @Tags         groups
// @Accept       json
// @Produce      json
// @Param        groupId path int true "Group ID"
// @Param        request body TransferOwnershipRequest true "New owner"
// @Success      200 {object} response.APIResponse
// @Failure      403 {object} response.APIResponse
// @Failure      404 {object} response.APIResponse
// @Failure      409 {object} response.APIResponse
// @Router       /groups/{groupId}/transfer-ownership [patch]
func (h *Handler) TransferOwnership(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())
	groupID, err := groupIDParam(r)
	if err != nil {
		response.BadRequest(w, "Invalid group ID")
		return
	}

	var req TransferOwnershipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	if err := h.service.TransferOwnership(r.Context(), groupID, userID, req.NewOwnerID); err != nil {
		writeError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, map[string]string{"message": "Group ownership has been transferred."})
}

// Delete handles DELETE /groups/{groupId}
// @Summary      Delete a group (owner only, sole member only)
// @Tags         groups
// @Produce      json
// @Param        groupId path int true "Group ID"
// @Success      200 {object} response.APIResponse
// @Failure      403 {object} response.APIResponse
// @Failure      404 {object} response.APIResponse
// @Router       /groups/{groupId} [delete]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())
	groupID, err := groupIDParam(r)
	if err != nil {
		response.BadRequest(w, "Invalid group ID")
		return
	}

	if err := h.service.Delete(r.Context(), groupID, userID); err != nil {
		writeError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, map[string]string{"message": "Group has been deleted."})
}
