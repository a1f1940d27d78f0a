package services

import (
	"context"
	"fmt"
	"regexp"

	"beijjati-server/models"
	"beijjati-server/utils/errors"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const searchLimit = 20

// publicProjection strips the credential from every outward read.
var publicProjection = bson.M{"password_hash": 0}

// UserService is the user directory: accounts, profiles, the friendship graph and
// the beijjati counter.
//
// Friend request transitions touch two documents. Unless transactions are enabled they
// are two independent writes with no rollback; a failure between them leaves the
// relation one-sided.
type UserService struct {
	client       *mongo.Client
	collection   *mongo.Collection
	cache        *UserCache
	logger       logrus.FieldLogger
	transactions bool
}

func NewUserService(db *mongo.Database, cache *UserCache, logger logrus.FieldLogger, transactions bool) *UserService {
	return &UserService{
		client:       db.Client(),
		collection:   db.Collection(usersCollection),
		cache:        cache,
		logger:       logger,
		transactions: transactions,
	}
}

// GetUser retrieves a user from Redis or MongoDB
func (s *UserService) GetUser(ctx context.Context, userID primitive.ObjectID) (*models.User, error) {
	if user, ok := s.cache.Get(ctx, userID); ok {
		return user, nil
	}

	var user models.User
	err := s.collection.FindOne(ctx, bson.M{"_id": userID}, options.FindOne().SetProjection(publicProjection)).Decode(&user)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, errors.ErrUserNotFound
		}
		return nil, err
	}
	user.Normalize()
	s.cache.Set(ctx, user)
	return &user, nil
}

// GetUsers resolves a batch of ids to public records. Unknown ids are absent from the map.
func (s *UserService) GetUsers(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.User, error) {
	found, missing := s.cache.GetMany(ctx, uniqueIDs(ids))
	if len(missing) == 0 {
		return found, nil
	}

	fetched, err := s.findByIDs(ctx, missing)
	if err != nil {
		return nil, err
	}
	for _, u := range fetched {
		found[u.ID] = u
	}
	s.cache.Set(ctx, fetched...)
	return found, nil
}

func (s *UserService) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	err := s.collection.FindOne(ctx, bson.M{"username": username}, options.FindOne().SetProjection(publicProjection)).Decode(&user)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, errors.ErrUserNotFound
		}
		return nil, err
	}
	user.Normalize()
	return &user, nil
}

// Search does a case-insensitive substring match on username.
func (s *UserService) Search(ctx context.Context, query string) ([]models.User, error) {
	filter := bson.M{"username": primitive.Regex{Pattern: regexp.QuoteMeta(query), Options: "i"}}
	opts := options.Find().SetLimit(searchLimit).SetProjection(publicProjection)
	return s.findUsers(ctx, filter, opts)
}

// UpdateProfile replaces only the fields present in update.
func (s *UserService) UpdateProfile(ctx context.Context, userID primitive.ObjectID, update models.ProfileUpdate) (Outcome, error) {
	if update.Empty() {
		return OutcomeNotFound, errors.ErrNoProfileFields
	}
	set := bson.M{}
	if update.Bio != nil {
		set["bio"] = *update.Bio
	}
	if update.ProfilePicture != nil {
		set["profile_picture"] = *update.ProfilePicture
	}

	res, err := s.collection.UpdateOne(ctx, bson.M{"_id": userID}, bson.M{"$set": set})
	if err != nil {
		return OutcomeNotFound, err
	}
	s.cache.Invalidate(ctx, userID)
	return outcomeOf(res), nil
}

// SendFriendRequest records a pending request on both sides. Policy checks (self, already
// friends, already requested) are the caller's job.
func (s *UserService) SendFriendRequest(ctx context.Context, senderID, receiverID primitive.ObjectID) (Outcome, error) {
	outcome, err := s.coupled(ctx, func(ctx context.Context) (Outcome, error) {
		sent, err := s.collection.UpdateOne(ctx,
			bson.M{"_id": senderID},
			bson.M{"$addToSet": bson.M{"friend_requests_sent": receiverID}},
		)
		if err != nil {
			return OutcomeNotFound, fmt.Errorf("failed to update sender's sent requests: %w", err)
		}
		received, err := s.collection.UpdateOne(ctx,
			bson.M{"_id": receiverID},
			bson.M{"$addToSet": bson.M{"friend_requests_received": senderID}},
		)
		if err != nil {
			return OutcomeNotFound, fmt.Errorf("failed to update receiver's received requests: %w", err)
		}
		return combine(outcomeOf(sent), outcomeOf(received)), nil
	})
	s.cache.Invalidate(ctx, senderID, receiverID)
	s.logTransition("send", senderID, receiverID, outcome, err)
	return outcome, err
}

// AcceptFriendRequest makes userID and friendID mutual friends. It only proceeds when
// userID actually holds a pending request from friendID.
func (s *UserService) AcceptFriendRequest(ctx context.Context, userID, friendID primitive.ObjectID) (Outcome, error) {
	outcome, err := s.coupled(ctx, func(ctx context.Context) (Outcome, error) {
		first, err := s.collection.UpdateOne(ctx,
			bson.M{"_id": userID, "friend_requests_received": friendID},
			bson.M{
				"$addToSet": bson.M{"friends": friendID},
				"$pull":     bson.M{"friend_requests_received": friendID},
			},
		)
		if err != nil {
			return OutcomeNotFound, fmt.Errorf("failed to accept friend request: %w", err)
		}
		if outcomeOf(first) == OutcomeNotFound {
			return OutcomeNotFound, nil
		}
		second, err := s.collection.UpdateOne(ctx,
			bson.M{"_id": friendID},
			bson.M{
				"$addToSet": bson.M{"friends": userID},
				"$pull":     bson.M{"friend_requests_sent": userID},
			},
		)
		if err != nil {
			return OutcomeNotFound, fmt.Errorf("failed to update sender's friends list: %w", err)
		}
		return combine(outcomeOf(first), outcomeOf(second)), nil
	})
	s.cache.Invalidate(ctx, userID, friendID)
	s.logTransition("accept", friendID, userID, outcome, err)
	return outcome, err
}

// RejectFriendRequest drops the pending request from both sides without befriending.
func (s *UserService) RejectFriendRequest(ctx context.Context, userID, friendID primitive.ObjectID) (Outcome, error) {
	outcome, err := s.coupled(ctx, func(ctx context.Context) (Outcome, error) {
		first, err := s.collection.UpdateOne(ctx,
			bson.M{"_id": userID, "friend_requests_received": friendID},
			bson.M{"$pull": bson.M{"friend_requests_received": friendID}},
		)
		if err != nil {
			return OutcomeNotFound, fmt.Errorf("failed to reject friend request: %w", err)
		}
		if outcomeOf(first) == OutcomeNotFound {
			return OutcomeNotFound, nil
		}
		second, err := s.collection.UpdateOne(ctx,
			bson.M{"_id": friendID},
			bson.M{"$pull": bson.M{"friend_requests_sent": userID}},
		)
		if err != nil {
			return OutcomeNotFound, fmt.Errorf("failed to update sender's sent requests: %w", err)
		}
		return combine(outcomeOf(first), outcomeOf(second)), nil
	})
	s.cache.Invalidate(ctx, userID, friendID)
	s.logTransition("reject", friendID, userID, outcome, err)
	return outcome, err
}

func (s *UserService) IncrementAccusationCount(ctx context.Context, userID primitive.ObjectID) (Outcome, error) {
	res, err := s.collection.UpdateOne(ctx, bson.M{"_id": userID}, bson.M{"$inc": bson.M{"beijjati_count": 1}})
	if err != nil {
		return OutcomeNotFound, err
	}
	s.cache.Invalidate(ctx, userID)
	return outcomeOf(res), nil
}

func (s *UserService) GetFriends(ctx context.Context, userID primitive.ObjectID) ([]models.User, error) {
	return s.resolveIDSet(ctx, userID, "friends")
}

func (s *UserService) GetFriendRequests(ctx context.Context, userID primitive.ObjectID) ([]models.User, error) {
	return s.resolveIDSet(ctx, userID, "friend_requests_received")
}

// resolveIDSet loads one id array of userID's document and resolves it to public records.
// Unknown users have no friends, not an error.
func (s *UserService) resolveIDSet(ctx context.Context, userID primitive.ObjectID, field string) ([]models.User, error) {
	var doc struct {
		Friends                []primitive.ObjectID `bson:"friends"`
		FriendRequestsReceived []primitive.ObjectID `bson:"friend_requests_received"`
	}
	opts := options.FindOne().SetProjection(bson.M{field: 1})
	if err := s.collection.FindOne(ctx, bson.M{"_id": userID}, opts).Decode(&doc); err != nil {
		if err == mongo.ErrNoDocuments {
			return []models.User{}, nil
		}
		return nil, err
	}

	ids := doc.Friends
	if field == "friend_requests_received" {
		ids = doc.FriendRequestsReceived
	}
	return s.findByIDs(ctx, ids)
}

// friendSnapshot reads the author's current friend set straight from the store, never
// from cache, since it becomes a post's permanent visibility list.
func (s *UserService) friendSnapshot(ctx context.Context, userID primitive.ObjectID) ([]primitive.ObjectID, error) {
	var doc struct {
		Friends []primitive.ObjectID `bson:"friends"`
	}
	opts := options.FindOne().SetProjection(bson.M{"friends": 1})
	if err := s.collection.FindOne(ctx, bson.M{"_id": userID}, opts).Decode(&doc); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, errors.ErrUserNotFound
		}
		return nil, err
	}
	snapshot := make([]primitive.ObjectID, len(doc.Friends))
	copy(snapshot, doc.Friends)
	return snapshot, nil
}

// existingIDs filters ids down to users that exist, deduplicated, keeping the input order.
func (s *UserService) existingIDs(ctx context.Context, ids []primitive.ObjectID) ([]primitive.ObjectID, error) {
	wanted := uniqueIDs(ids)
	if len(wanted) == 0 {
		return []primitive.ObjectID{}, nil
	}

	cursor, err := s.collection.Find(ctx,
		bson.M{"_id": bson.M{"$in": wanted}},
		options.Find().SetProjection(bson.M{"_id": 1}),
	)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []struct {
		ID primitive.ObjectID `bson:"_id"`
	}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	found := make(map[primitive.ObjectID]struct{}, len(docs))
	for _, d := range docs {
		found[d.ID] = struct{}{}
	}

	existing := make([]primitive.ObjectID, 0, len(found))
	for _, id := range wanted {
		if _, ok := found[id]; ok {
			existing = append(existing, id)
		}
	}
	return existing, nil
}

func (s *UserService) findByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error) {
	if len(ids) == 0 {
		return []models.User{}, nil
	}
	return s.findUsers(ctx, bson.M{"_id": bson.M{"$in": ids}}, options.Find().SetProjection(publicProjection))
}

func (s *UserService) findUsers(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.User, error) {
	cursor, err := s.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	users := []models.User{}
	if err := cursor.All(ctx, &users); err != nil {
		return nil, err
	}
	for i := range users {
		users[i].Normalize()
	}
	return users, nil
}

// coupled runs the writes of a friend request transition, inside a transaction when the
// deployment supports one and it is enabled.
func (s *UserService) coupled(ctx context.Context, fn func(ctx context.Context) (Outcome, error)) (Outcome, error) {
	if !s.transactions {
		return fn(ctx)
	}

	session, err := s.client.StartSession()
	if err != nil {
		return OutcomeNotFound, fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	res, err := session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return fn(sc)
	})
	if err != nil {
		return OutcomeNotFound, err
	}
	return res.(Outcome), nil
}

func (s *UserService) logTransition(action string, from, to primitive.ObjectID, outcome Outcome, err error) {
	entry := s.logger.WithFields(logrus.Fields{
		"action":  action,
		"from":    from.Hex(),
		"to":      to.Hex(),
		"outcome": outcome.String(),
	})
	if err != nil {
		entry.WithError(err).Error("Friend request transition failed")
		return
	}
	entry.Info("Friend request transition")
}

// combine folds the outcomes of two coupled writes: any miss is a miss, any change counts
// as applied.
func combine(first, second Outcome) Outcome {
	switch {
	case first == OutcomeNotFound || second == OutcomeNotFound:
		return OutcomeNotFound
	case first == OutcomeApplied || second == OutcomeApplied:
		return OutcomeApplied
	default:
		return OutcomeConflict
	}
}

func uniqueIDs(ids []primitive.ObjectID) []primitive.ObjectID {
	seen := make(map[primitive.ObjectID]struct{}, len(ids))
	out := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok || id.IsZero() {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
