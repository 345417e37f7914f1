package chat

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/youssefm/groupchat/internal/group"
	"github.com/youssefm/groupchat/pkg/middleware"
	"github.com/youssefm/groupchat/pkg/response"
)

// Handler serves message history over HTTP
type Handler struct {
	service *Service
	groups  *group.Service
}

// NewHandler creates a new chat handler
func NewHandler(service *Service, groups *group.Service) *Handler {
	return &Handler{service: service, groups: groups}
}

// Routes returns the router for message endpoints, mounted under a
// route that carries a groupId parameter
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ListForGroup)

	return r
}

// ListForGroup handles GET /groups/{groupId}/messages
// @Summary      Get message history for a group
// @Description  Returns all messages for the group with content decrypted. Members only.
// @Tags         messages
// @Produce      json
// @Param        groupId path int true "Group ID"
// @Success      200 {object} response.APIResponse{data=[]MessageResponse}
// @Failure      403 {object} response.APIResponse
// @Failure      404 {object} response.APIResponse
// @Router       /groups/{groupId}/messages [get]
func (h *Handler) ListForGroup(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())
	groupID, err := strconv.ParseInt(chi.URLParam(r, "groupId"), 10, 64)
	if err != nil {
		response.BadRequest(w, "Invalid group ID")
		return
	}

	g, err := h.groups.GetByID(r.Context(), groupID)
	if err != nil {
		if errors.Is(err, group.ErrGroupNotFound) {
			response.NotFound(w, err.Error())
			return
		}
		response.InternalError(w, "Failed to get group")
		return
	}
	if !g.HasMember(userID) {
		response.Forbidden(w, "you are not a member of this group")
		return
	}

	messages, err := h.service.ListForGroup(r.Context(), groupID)
	if err != nil {
		response.InternalError(w, "Failed to get messages")
		return
	}

	resp := make([]*MessageResponse, 0, len(messages))
	for _, m := range messages {
		plaintext, err := h.service.enc.Decrypt(m.Content)
		if err != nil {
			log.Printf("failed to decrypt message %d in group %d: %v", m.ID, groupID, err)
			response.InternalError(w, "Failed to decrypt messages")
			return
		}
		resp = append(resp, &MessageResponse{
			ID:        m.ID,
			GroupID:   m.GroupID,
			Sender:    m.Sender,
			Content:   plaintext,
			Timestamp: m.Timestamp,
		})
	}

	response.JSON(w, http.StatusOK, resp)
}
