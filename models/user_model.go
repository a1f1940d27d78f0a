package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User is a document in the users collection. PasswordHash is never serialized to JSON.
type User struct {
	ID                     primitive.ObjectID   `json:"_id" bson:"_id,omitempty"`
	Username               string               `json:"username" bson:"username"`
	Email                  string               `json:"email" bson:"email"`
	PasswordHash           string               `json:"-" bson:"password_hash,omitempty"`
	Bio                    string               `json:"bio" bson:"bio"`
	ProfilePicture         string               `json:"profile_picture" bson:"profile_picture"`
	BeijjatiCount          int64                `json:"beijjati_count" bson:"beijjati_count"`
	Friends                []primitive.ObjectID `json:"friends" bson:"friends"`
	FriendRequestsSent     []primitive.ObjectID `json:"friend_requests_sent" bson:"friend_requests_sent"`
	FriendRequestsReceived []primitive.ObjectID `json:"friend_requests_received" bson:"friend_requests_received"`
	CreatedAt              time.Time            `json:"created_at" bson:"created_at"`
}

// Normalize replaces nil id sets with empty ones so they serialize as [].
func (u *User) Normalize() {
	if u.Friends == nil {
		u.Friends = []primitive.ObjectID{}
	}
	if u.FriendRequestsSent == nil {
		u.FriendRequestsSent = []primitive.ObjectID{}
	}
	if u.FriendRequestsReceived == nil {
		u.FriendRequestsReceived = []primitive.ObjectID{}
	}
}

// Public returns a copy safe to hand to clients or caches.
func (u User) Public() User {
	u.PasswordHash = ""
	u.Normalize()
	return u
}

func (u *User) IsFriend(id primitive.ObjectID) bool {
	return containsID(u.Friends, id)
}

func (u *User) HasRequestFrom(id primitive.ObjectID) bool {
	return containsID(u.FriendRequestsReceived, id)
}

// ProfileUpdate enumerates the profile fields a user may change. Nil means "not provided".
type ProfileUpdate struct {
	Bio            *string `json:"bio"`
	ProfilePicture *string `json:"profile_picture"`
}

func (p ProfileUpdate) Empty() bool {
	return p.Bio == nil && p.ProfilePicture == nil
}

func containsID(ids []primitive.ObjectID, id primitive.ObjectID) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}
