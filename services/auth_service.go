package services

import (
	"context"
	"net/http"
	"time"

	"beijjati-server/models"
	"beijjati-server/utils/errors"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/crypto/bcrypt"
)

// Create registers a new account with empty friend sets and a zero counter.
func (s *UserService) Create(ctx context.Context, username, email, password string) (primitive.ObjectID, error) {
	err := s.collection.FindOne(ctx, bson.M{"$or": []bson.M{
		{"username": username},
		{"email": email},
	}}).Err()
	switch {
	case err == nil:
		return primitive.NilObjectID, errors.ErrDuplicateIdentity
	case err != mongo.ErrNoDocuments:
		return primitive.NilObjectID, err
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return primitive.NilObjectID, errors.BadRequest("Password is too long")
		}
		return primitive.NilObjectID, errors.Wrap(err, "HASH_ERROR", "failed to hash password", http.StatusInternalServerError)
	}

	user := models.User{
		ID:                     primitive.NewObjectID(),
		Username:               username,
		Email:                  email,
		PasswordHash:           string(passwordHash),
		Friends:                []primitive.ObjectID{},
		FriendRequestsSent:     []primitive.ObjectID{},
		FriendRequestsReceived: []primitive.ObjectID{},
		CreatedAt:              time.Now().UTC(),
	}
	if _, err := s.collection.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return primitive.NilObjectID, errors.ErrDuplicateIdentity
		}
		return primitive.NilObjectID, err
	}

	s.logger.WithFields(logrus.Fields{"user_id": user.ID.Hex(), "username": username}).Info("User registered")
	return user.ID, nil
}

// Authenticate returns the full user record when the password matches.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	var user models.User
	err := s.collection.FindOne(ctx, bson.M{"username": username}).Decode(&user)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, errors.ErrInvalidCredentials
		}
		return nil, err
	}

	if user.PasswordHash == "" {
		return nil, errors.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, errors.ErrInvalidCredentials
	}
	user.Normalize()
	return &user, nil
}
