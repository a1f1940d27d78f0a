package services

import (
	"context"
	"fmt"
	"time"

	"beijjati-server/middleware"
	"beijjati-server/models"
	"beijjati-server/utils/errors"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type PostService struct {
	collection *mongo.Collection
	users      *UserService
	metrics    *middleware.Metrics
	logger     logrus.FieldLogger
}

func NewPostService(db *mongo.Database, users *UserService, metrics *middleware.Metrics, logger logrus.FieldLogger) *PostService {
	return &PostService{
		collection: db.Collection(postsCollection),
		users:      users,
		metrics:    metrics,
		logger:     logger,
	}
}

// Create stores a post whose visibility is the author's friend set as of now.
// Unknown mentions are dropped. For beijjati posts every surviving mention has its counter
// bumped before the insert; those increments are independent writes.
func (s *PostService) Create(ctx context.Context, in models.NewPost) (primitive.ObjectID, error) {
	if in.AuthorID.IsZero() {
		return primitive.NilObjectID, errors.ErrUserNotFound
	}
	visibleTo, err := s.users.friendSnapshot(ctx, in.AuthorID)
	if err != nil {
		return primitive.NilObjectID, err
	}

	mentioned, err := s.users.existingIDs(ctx, in.MentionedIDs)
	if err != nil {
		return primitive.NilObjectID, err
	}

	if in.IsAccusation {
		for _, id := range mentioned {
			if _, err := s.users.IncrementAccusationCount(ctx, id); err != nil {
				return primitive.NilObjectID, fmt.Errorf("failed to increment beijjati count for %s: %w", id.Hex(), err)
			}
		}
	}

	post := models.Post{
		ID:             primitive.NewObjectID(),
		AuthorID:       in.AuthorID,
		Content:        in.Content,
		IsBeizzati:     in.IsAccusation,
		MentionedUsers: mentioned,
		VisibleTo:      visibleTo,
		EvidenceKey:    in.EvidenceKey,
		CreatedAt:      time.Now().UTC(),
	}
	post.Normalize()

	if _, err := s.collection.InsertOne(ctx, post); err != nil {
		return primitive.NilObjectID, err
	}

	s.metrics.PostCreated(in.IsAccusation)
	s.logger.WithFields(logrus.Fields{
		"post_id":    post.ID.Hex(),
		"author_id":  in.AuthorID.Hex(),
		"beijjati":   in.IsAccusation,
		"mentions":   len(mentioned),
		"visible_to": len(visibleTo),
	}).Info("Post created")
	return post.ID, nil
}

// ListForUser is the feed: the user's own posts plus every post whose snapshot names them.
func (s *PostService) ListForUser(ctx context.Context, userID primitive.ObjectID) ([]models.PostView, error) {
	return s.list(ctx, bson.M{"$or": []bson.M{
		{"author_id": userID},
		{"visible_to": userID},
	}})
}

func (s *PostService) ListByUser(ctx context.Context, userID primitive.ObjectID) ([]models.PostView, error) {
	return s.list(ctx, bson.M{"author_id": userID})
}

func (s *PostService) ListMentions(ctx context.Context, userID primitive.ObjectID) ([]models.PostView, error) {
	return s.list(ctx, bson.M{"mentioned_users": userID})
}

func (s *PostService) Like(ctx context.Context, postID string, userID primitive.ObjectID) (Outcome, error) {
	return s.updateLikes(ctx, postID, bson.M{"$addToSet": bson.M{"likes": userID}})
}

func (s *PostService) Unlike(ctx context.Context, postID string, userID primitive.ObjectID) (Outcome, error) {
	return s.updateLikes(ctx, postID, bson.M{"$pull": bson.M{"likes": userID}})
}

func (s *PostService) updateLikes(ctx context.Context, postID string, update bson.M) (Outcome, error) {
	id, err := primitive.ObjectIDFromHex(postID)
	if err != nil {
		return OutcomeNotFound, nil
	}
	res, err := s.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return OutcomeNotFound, err
	}
	return outcomeOf(res), nil
}

func (s *PostService) list(ctx context.Context, filter bson.M) ([]models.PostView, error) {
	cursor, err := s.collection.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var posts []models.Post
	if err := cursor.All(ctx, &posts); err != nil {
		return nil, err
	}
	return s.enrich(ctx, posts)
}

// enrich attaches authors and mention details, resolving every referenced user in one batch.
func (s *PostService) enrich(ctx context.Context, posts []models.Post) ([]models.PostView, error) {
	views := make([]models.PostView, 0, len(posts))
	if len(posts) == 0 {
		return views, nil
	}

	var ids []primitive.ObjectID
	for _, p := range posts {
		ids = append(ids, p.AuthorID)
		ids = append(ids, p.MentionedUsers...)
	}
	users, err := s.users.GetUsers(ctx, ids)
	if err != nil {
		return nil, err
	}

	for _, p := range posts {
		p.Normalize()
		view := models.PostView{Post: p, MentionedUsersDetails: []models.MentionRef{}}
		if author, ok := users[p.AuthorID]; ok {
			public := author.Public()
			view.Author = &public
		}
		for _, id := range p.MentionedUsers {
			if u, ok := users[id]; ok {
				view.MentionedUsersDetails = append(view.MentionedUsersDetails, models.MentionRef{ID: u.ID, Username: u.Username})
			}
		}
		views = append(views, view)
	}
	return views, nil
}
