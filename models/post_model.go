package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Post struct {
	ID             primitive.ObjectID   `json:"_id" bson:"_id,omitempty"`
	AuthorID       primitive.ObjectID   `json:"author_id" bson:"author_id"`
	Content        string               `json:"content" bson:"content"`
	IsBeizzati     bool                 `json:"is_beizzati" bson:"is_beizzati"`
	MentionedUsers []primitive.ObjectID `json:"mentioned_users" bson:"mentioned_users"`
	VisibleTo      []primitive.ObjectID `json:"visible_to" bson:"visible_to"`
	Likes          []primitive.ObjectID `json:"likes" bson:"likes"`
	Comments       []bson.M             `json:"comments" bson:"comments"`
	EvidenceKey    string               `json:"evidence_key,omitempty" bson:"evidence_key,omitempty"`
	CreatedAt      time.Time            `json:"created_at" bson:"created_at"`
}

func (p *Post) Normalize() {
	if p.MentionedUsers == nil {
		p.MentionedUsers = []primitive.ObjectID{}
	}
	if p.VisibleTo == nil {
		p.VisibleTo = []primitive.ObjectID{}
	}
	if p.Likes == nil {
		p.Likes = []primitive.ObjectID{}
	}
	if p.Comments == nil {
		p.Comments = []bson.M{}
	}
}

// MentionRef is the display info attached for each mentioned user.
type MentionRef struct {
	ID       primitive.ObjectID `json:"_id"`
	Username string             `json:"username"`
}

// PostView is a post enriched with its author and mention details.
type PostView struct {
	Post
	Author                *User        `json:"author"`
	MentionedUsersDetails []MentionRef `json:"mentioned_users_details"`
}

// NewPost carries everything needed to create a post.
type NewPost struct {
	AuthorID     primitive.ObjectID
	Content      string
	IsAccusation bool
	MentionedIDs []primitive.ObjectID
	EvidenceKey  string
}
