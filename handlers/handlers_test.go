package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"beijjati-server/auth"
	"beijjati-server/models"
	"beijjati-server/services"
	"beijjati-server/utils/errors"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// stubUsers is a UserDirectory whose behaviour each test plugs in. Unset hooks act like an
// empty directory.
type stubUsers struct {
	create          func(username, email, password string) (primitive.ObjectID, error)
	authenticate    func(username, password string) (*models.User, error)
	byID            map[primitive.ObjectID]*models.User
	byName          map[string]*models.User
	search          func(query string) ([]models.User, error)
	updateProfile   func(id primitive.ObjectID, update models.ProfileUpdate) (services.Outcome, error)
	sendRequest     func(from, to primitive.ObjectID) (services.Outcome, error)
	acceptRequest   func(user, friend primitive.ObjectID) (services.Outcome, error)
	rejectRequest   func(user, friend primitive.ObjectID) (services.Outcome, error)
	friends         []models.User
	friendRequests  []models.User
	findByNameCalls []string
}

func newStubUsers(users ...*models.User) *stubUsers {
	s := &stubUsers{
		byID:   map[primitive.ObjectID]*models.User{},
		byName: map[string]*models.User{},
	}
	for _, u := range users {
		s.byID[u.ID] = u
		s.byName[u.Username] = u
	}
	return s
}

func (s *stubUsers) Create(_ context.Context, username, email, password string) (primitive.ObjectID, error) {
	if s.create == nil {
		return primitive.NewObjectID(), nil
	}
	return s.create(username, email, password)
}

func (s *stubUsers) Authenticate(_ context.Context, username, password string) (*models.User, error) {
	if s.authenticate == nil {
		return nil, errors.ErrInvalidCredentials
	}
	return s.authenticate(username, password)
}

func (s *stubUsers) GetUser(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	if u, ok := s.byID[id]; ok {
		return u, nil
	}
	return nil, errors.ErrUserNotFound
}

func (s *stubUsers) FindByUsername(_ context.Context, username string) (*models.User, error) {
	s.findByNameCalls = append(s.findByNameCalls, username)
	if u, ok := s.byName[username]; ok {
		return u, nil
	}
	return nil, errors.ErrUserNotFound
}

func (s *stubUsers) Search(_ context.Context, query string) ([]models.User, error) {
	if s.search == nil {
		return []models.User{}, nil
	}
	return s.search(query)
}

func (s *stubUsers) UpdateProfile(_ context.Context, id primitive.ObjectID, update models.ProfileUpdate) (services.Outcome, error) {
	if s.updateProfile == nil {
		return services.OutcomeApplied, nil
	}
	return s.updateProfile(id, update)
}

func (s *stubUsers) SendFriendRequest(_ context.Context, from, to primitive.ObjectID) (services.Outcome, error) {
	if s.sendRequest == nil {
		return services.OutcomeApplied, nil
	}
	return s.sendRequest(from, to)
}

func (s *stubUsers) AcceptFriendRequest(_ context.Context, user, friend primitive.ObjectID) (services.Outcome, error) {
	if s.acceptRequest == nil {
		return services.OutcomeNotFound, nil
	}
	return s.acceptRequest(user, friend)
}

func (s *stubUsers) RejectFriendRequest(_ context.Context, user, friend primitive.ObjectID) (services.Outcome, error) {
	if s.rejectRequest == nil {
		return services.OutcomeNotFound, nil
	}
	return s.rejectRequest(user, friend)
}

func (s *stubUsers) GetFriends(context.Context, primitive.ObjectID) ([]models.User, error) {
	return s.friends, nil
}

func (s *stubUsers) GetFriendRequests(context.Context, primitive.ObjectID) ([]models.User, error) {
	return s.friendRequests, nil
}

type stubPosts struct {
	created   []models.NewPost
	createErr error
	feed      []models.PostView
	byUser    map[primitive.ObjectID][]models.PostView
	mentions  map[primitive.ObjectID][]models.PostView
	likes     map[string]map[primitive.ObjectID]bool
}

func newStubPosts() *stubPosts {
	return &stubPosts{
		byUser:   map[primitive.ObjectID][]models.PostView{},
		mentions: map[primitive.ObjectID][]models.PostView{},
		likes:    map[string]map[primitive.ObjectID]bool{},
	}
}

func (s *stubPosts) Create(_ context.Context, in models.NewPost) (primitive.ObjectID, error) {
	if s.createErr != nil {
		return primitive.NilObjectID, s.createErr
	}
	s.created = append(s.created, in)
	return primitive.NewObjectID(), nil
}

func (s *stubPosts) ListForUser(context.Context, primitive.ObjectID) ([]models.PostView, error) {
	return s.feed, nil
}

func (s *stubPosts) ListByUser(_ context.Context, id primitive.ObjectID) ([]models.PostView, error) {
	return s.byUser[id], nil
}

func (s *stubPosts) ListMentions(_ context.Context, id primitive.ObjectID) ([]models.PostView, error) {
	return s.mentions[id], nil
}

// Like and Unlike behave like the store: unknown posts miss, repeats conflict.
func (s *stubPosts) Like(_ context.Context, postID string, userID primitive.ObjectID) (services.Outcome, error) {
	likers, ok := s.likes[postID]
	if !ok {
		return services.OutcomeNotFound, nil
	}
	if likers[userID] {
		return services.OutcomeConflict, nil
	}
	likers[userID] = true
	return services.OutcomeApplied, nil
}

func (s *stubPosts) Unlike(_ context.Context, postID string, userID primitive.ObjectID) (services.Outcome, error) {
	likers, ok := s.likes[postID]
	if !ok {
		return services.OutcomeNotFound, nil
	}
	if !likers[userID] {
		return services.OutcomeConflict, nil
	}
	delete(likers, userID)
	return services.OutcomeApplied, nil
}

func testUser(username string) *models.User {
	return &models.User{
		ID:           primitive.NewObjectID(),
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "$2a$10$hash",
	}
}

func testLogger() logrus.FieldLogger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func jsonRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func asUser(req *http.Request, id primitive.ObjectID) *http.Request {
	return req.WithContext(auth.WithIdentity(req.Context(), auth.Identity{UserID: id}))
}

func withVars(req *http.Request, vars map[string]string) *http.Request {
	return mux.SetURLVars(req, vars)
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}
