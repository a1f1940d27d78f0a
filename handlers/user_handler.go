package handlers

import (
	"fmt"
	"net/http"

	"beijjati-server/middleware"
	"beijjati-server/models"
	"beijjati-server/services"
	"beijjati-server/utils/errors"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type UserHandler struct {
	users   UserDirectory
	metrics *middleware.Metrics
}

func NewUserHandler(users UserDirectory, metrics *middleware.Metrics) *UserHandler {
	return &UserHandler{
		users:   users,
		metrics: metrics,
	}
}

func (h *UserHandler) SearchUsers(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		middleware.WriteJSON(w, http.StatusOK, map[string]any{"users": []models.User{}})
		return
	}

	users, err := h.users.Search(r.Context(), query)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]any{"users": publicUsers(users)})
}

func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.FindByUsername(r.Context(), mux.Vars(r)["username"])
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]any{"user": user.Public()})
}

func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	var update models.ProfileUpdate
	if err := decodeJSON(r, &update); err != nil {
		middleware.WriteError(w, err)
		return
	}
	if update.Empty() {
		middleware.WriteError(w, errors.ErrNoProfileFields)
		return
	}

	outcome, err := h.users.UpdateProfile(r.Context(), id.UserID, update)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	if !outcome.Applied() {
		middleware.WriteError(w, errors.BadRequest("Profile not updated"))
		return
	}
	middleware.WriteJSON(w, http.StatusOK, message("Profile updated successfully"))
}

func (h *UserHandler) SendFriendRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	var input struct {
		Username string `json:"username"`
	}
	if err := decodeJSON(r, &input); err != nil {
		middleware.WriteError(w, err)
		return
	}
	if input.Username == "" {
		middleware.WriteError(w, errors.BadRequest("Username is required"))
		return
	}

	receiver, err := h.users.FindByUsername(r.Context(), input.Username)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	switch {
	case receiver.ID == id.UserID:
		middleware.WriteError(w, errors.BadRequest("Cannot send friend request to yourself"))
		return
	case receiver.IsFriend(id.UserID):
		middleware.WriteError(w, errors.BadRequest("Already friends"))
		return
	case receiver.HasRequestFrom(id.UserID):
		middleware.WriteError(w, errors.BadRequest("Friend request already sent"))
		return
	}

	outcome, err := h.users.SendFriendRequest(r.Context(), id.UserID, receiver.ID)
	h.metrics.FriendTransition("send", transitionLabel(outcome, err))
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	if !outcome.Applied() {
		middleware.WriteError(w, errors.BadRequest("Failed to send friend request"))
		return
	}
	middleware.WriteJSON(w, http.StatusOK, message("Friend request sent successfully"))
}

// HandleFriendRequest serves /friend-request/{action} for action accept or reject.
func (h *UserHandler) HandleFriendRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	var input struct {
		FriendID string `json:"friend_id"`
	}
	if err := decodeJSON(r, &input); err != nil {
		middleware.WriteError(w, err)
		return
	}
	if input.FriendID == "" {
		middleware.WriteError(w, errors.BadRequest("Friend ID is required"))
		return
	}

	action := mux.Vars(r)["action"]
	var respond func(userID, friendID primitive.ObjectID) (services.Outcome, error)
	var done string
	switch action {
	case "accept":
		done = "Friend request accepted"
		respond = func(userID, friendID primitive.ObjectID) (services.Outcome, error) {
			return h.users.AcceptFriendRequest(r.Context(), userID, friendID)
		}
	case "reject":
		done = "Friend request rejected"
		respond = func(userID, friendID primitive.ObjectID) (services.Outcome, error) {
			return h.users.RejectFriendRequest(r.Context(), userID, friendID)
		}
	default:
		middleware.WriteError(w, errors.BadRequest("Invalid action"))
		return
	}

	// A malformed id cannot name a pending request, so it fails like any other miss.
	outcome := services.OutcomeNotFound
	var err error
	if friendID, parseErr := primitive.ObjectIDFromHex(input.FriendID); parseErr == nil {
		outcome, err = respond(id.UserID, friendID)
	}
	h.metrics.FriendTransition(action, transitionLabel(outcome, err))
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	if !outcome.Applied() {
		middleware.WriteError(w, errors.BadRequest(fmt.Sprintf("Failed to %s friend request", action)))
		return
	}
	middleware.WriteJSON(w, http.StatusOK, message(done))
}

func (h *UserHandler) GetFriends(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	friends, err := h.users.GetFriends(r.Context(), id.UserID)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]any{"friends": publicUsers(friends)})
}

func (h *UserHandler) GetFriendRequests(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	requests, err := h.users.GetFriendRequests(r.Context(), id.UserID)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]any{"friend_requests": publicUsers(requests)})
}

func transitionLabel(outcome services.Outcome, err error) string {
	if err != nil {
		return "error"
	}
	return outcome.String()
}
