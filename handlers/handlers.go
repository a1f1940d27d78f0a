package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"beijjati-server/auth"
	"beijjati-server/middleware"
	"beijjati-server/models"
	"beijjati-server/services"
	"beijjati-server/utils/errors"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// UserDirectory is the subset of the user service the HTTP layer calls.
type UserDirectory interface {
	Create(ctx context.Context, username, email, password string) (primitive.ObjectID, error)
	Authenticate(ctx context.Context, username, password string) (*models.User, error)
	GetUser(ctx context.Context, userID primitive.ObjectID) (*models.User, error)
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	Search(ctx context.Context, query string) ([]models.User, error)
	UpdateProfile(ctx context.Context, userID primitive.ObjectID, update models.ProfileUpdate) (services.Outcome, error)
	SendFriendRequest(ctx context.Context, senderID, receiverID primitive.ObjectID) (services.Outcome, error)
	AcceptFriendRequest(ctx context.Context, userID, friendID primitive.ObjectID) (services.Outcome, error)
	RejectFriendRequest(ctx context.Context, userID, friendID primitive.ObjectID) (services.Outcome, error)
	GetFriends(ctx context.Context, userID primitive.ObjectID) ([]models.User, error)
	GetFriendRequests(ctx context.Context, userID primitive.ObjectID) ([]models.User, error)
}

// PostStore is the subset of the post service the HTTP layer calls.
type PostStore interface {
	Create(ctx context.Context, in models.NewPost) (primitive.ObjectID, error)
	ListForUser(ctx context.Context, userID primitive.ObjectID) ([]models.PostView, error)
	ListByUser(ctx context.Context, userID primitive.ObjectID) ([]models.PostView, error)
	ListMentions(ctx context.Context, userID primitive.ObjectID) ([]models.PostView, error)
	Like(ctx context.Context, postID string, userID primitive.ObjectID) (services.Outcome, error)
	Unlike(ctx context.Context, postID string, userID primitive.ObjectID) (services.Outcome, error)
}

type EvidenceChecker interface {
	LooksLikeEvidence(ctx context.Context, image []byte) bool
}

type EvidenceArchiver interface {
	Store(ctx context.Context, authorID primitive.ObjectID, image []byte) (string, error)
}

func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errors.ErrInvalidInput
	}
	return nil
}

// identity returns the caller set by JWTMiddleware, writing a 401 when it is missing.
func identity(w http.ResponseWriter, r *http.Request) (auth.Identity, bool) {
	id, ok := auth.IdentityFrom(r.Context())
	if !ok {
		middleware.WriteError(w, errors.ErrUnauthorized)
	}
	return id, ok
}

func publicUsers(users []models.User) []models.User {
	out := make([]models.User, 0, len(users))
	for _, u := range users {
		out = append(out, u.Public())
	}
	return out
}

func message(text string) map[string]string {
	return map[string]string{"message": text}
}
