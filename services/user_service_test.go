package services

import (
	"context"
	"testing"

	"beijjati-server/models"
	"beijjati-server/utils/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/event"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
	"golang.org/x/crypto/bcrypt"
)

// updated is one statement of an update command as the driver sent it.
type updated struct {
	Q bson.Raw `bson:"q"`
	U bson.Raw `bson:"u"`
}

func updateStatement(t testing.TB, evt *event.CommandStartedEvent) updated {
	t.Helper()
	require.NotNil(t, evt)
	require.Equal(t, "update", evt.CommandName)
	var cmd struct {
		Updates []updated `bson:"updates"`
	}
	require.NoError(t, bson.Unmarshal(evt.Command, &cmd))
	require.Len(t, cmd.Updates, 1)
	return cmd.Updates[0]
}

func modified(n, nModified int) bson.D {
	return mtest.CreateSuccessResponse(bson.E{Key: "n", Value: n}, bson.E{Key: "nModified", Value: nModified})
}

func usersCursor(docs ...bson.D) bson.D {
	return mtest.CreateCursorResponse(0, "beizzati_tracker.users", mtest.FirstBatch, docs...)
}

func newMockUserService(mt *mtest.T) *UserService {
	return NewUserService(mt.DB, nil, testLogger(), false)
}

func TestSendFriendRequest_WritesBothSides(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	sender, receiver := primitive.NewObjectID(), primitive.NewObjectID()

	mt.Run("applied", func(mt *mtest.T) {
		mt.AddMockResponses(modified(1, 1), modified(1, 1))

		outcome, err := newMockUserService(mt).SendFriendRequest(context.Background(), sender, receiver)
		require.NoError(mt, err)
		assert.Equal(mt, OutcomeApplied, outcome)

		first := updateStatement(mt, mt.GetStartedEvent())
		assert.Equal(mt, sender, first.Q.Lookup("_id").ObjectID())
		assert.Equal(mt, receiver, first.U.Lookup("$addToSet", "friend_requests_sent").ObjectID())

		second := updateStatement(mt, mt.GetStartedEvent())
		assert.Equal(mt, receiver, second.Q.Lookup("_id").ObjectID())
		assert.Equal(mt, sender, second.U.Lookup("$addToSet", "friend_requests_received").ObjectID())
	})

	mt.Run("already pending", func(mt *mtest.T) {
		mt.AddMockResponses(modified(1, 0), modified(1, 0))

		outcome, err := newMockUserService(mt).SendFriendRequest(context.Background(), sender, receiver)
		require.NoError(mt, err)
		assert.Equal(mt, OutcomeConflict, outcome)
	})

	mt.Run("receiver vanished", func(mt *mtest.T) {
		mt.AddMockResponses(modified(1, 1), modified(0, 0))

		outcome, err := newMockUserService(mt).SendFriendRequest(context.Background(), sender, receiver)
		require.NoError(mt, err)
		assert.Equal(mt, OutcomeNotFound, outcome)
	})
}

func TestAcceptFriendRequest(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	user, friend := primitive.NewObjectID(), primitive.NewObjectID()

	mt.Run("requires a pending request", func(mt *mtest.T) {
		mt.AddMockResponses(modified(0, 0))

		outcome, err := newMockUserService(mt).AcceptFriendRequest(context.Background(), user, friend)
		require.NoError(mt, err)
		assert.Equal(mt, OutcomeNotFound, outcome)

		first := updateStatement(mt, mt.GetStartedEvent())
		assert.Equal(mt, friend, first.Q.Lookup("friend_requests_received").ObjectID())
		assert.Nil(mt, mt.GetStartedEvent(), "sender must not be touched without a pending request")
	})

	mt.Run("befriends both sides", func(mt *mtest.T) {
		mt.AddMockResponses(modified(1, 1), modified(1, 1))

		outcome, err := newMockUserService(mt).AcceptFriendRequest(context.Background(), user, friend)
		require.NoError(mt, err)
		assert.Equal(mt, OutcomeApplied, outcome)

		first := updateStatement(mt, mt.GetStartedEvent())
		assert.Equal(mt, user, first.Q.Lookup("_id").ObjectID())
		assert.Equal(mt, friend, first.U.Lookup("$addToSet", "friends").ObjectID())
		assert.Equal(mt, friend, first.U.Lookup("$pull", "friend_requests_received").ObjectID())

		second := updateStatement(mt, mt.GetStartedEvent())
		assert.Equal(mt, friend, second.Q.Lookup("_id").ObjectID())
		assert.Equal(mt, user, second.U.Lookup("$addToSet", "friends").ObjectID())
		assert.Equal(mt, user, second.U.Lookup("$pull", "friend_requests_sent").ObjectID())
	})
}

func TestRejectFriendRequest(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	user, friend := primitive.NewObjectID(), primitive.NewObjectID()

	mt.Run("drops request without befriending", func(mt *mtest.T) {
		mt.AddMockResponses(modified(1, 1), modified(1, 1))

		outcome, err := newMockUserService(mt).RejectFriendRequest(context.Background(), user, friend)
		require.NoError(mt, err)
		assert.Equal(mt, OutcomeApplied, outcome)

		for _, stmt := range []updated{
			updateStatement(mt, mt.GetStartedEvent()),
			updateStatement(mt, mt.GetStartedEvent()),
		} {
			_, err := stmt.U.LookupErr("$addToSet")
			assert.Error(mt, err)
		}
	})

	mt.Run("nothing pending", func(mt *mtest.T) {
		mt.AddMockResponses(modified(0, 0))

		outcome, err := newMockUserService(mt).RejectFriendRequest(context.Background(), user, friend)
		require.NoError(mt, err)
		assert.Equal(mt, OutcomeNotFound, outcome)
	})
}

func TestUpdateProfile(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	userID := primitive.NewObjectID()

	mt.Run("sets only provided fields", func(mt *mtest.T) {
		mt.AddMockResponses(modified(1, 1))
		bio := "roasted daily"

		outcome, err := newMockUserService(mt).UpdateProfile(context.Background(), userID, models.ProfileUpdate{Bio: &bio})
		require.NoError(mt, err)
		assert.Equal(mt, OutcomeApplied, outcome)

		stmt := updateStatement(mt, mt.GetStartedEvent())
		assert.Equal(mt, "roasted daily", stmt.U.Lookup("$set", "bio").StringValue())
		_, err = stmt.U.LookupErr("$set", "profile_picture")
		assert.Error(mt, err)
	})

	mt.Run("no fields", func(mt *mtest.T) {
		_, err := newMockUserService(mt).UpdateProfile(context.Background(), userID, models.ProfileUpdate{})
		assert.ErrorIs(mt, err, errors.ErrNoProfileFields)
		assert.Nil(mt, mt.GetStartedEvent())
	})
}

func TestSearch_EscapesQuery(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("regex metacharacters are literal", func(mt *mtest.T) {
		id := primitive.NewObjectID()
		mt.AddMockResponses(usersCursor(bson.D{{Key: "_id", Value: id}, {Key: "username", Value: "a.b"}}))

		users, err := newMockUserService(mt).Search(context.Background(), "a.b")
		require.NoError(mt, err)
		require.Len(mt, users, 1)
		assert.Equal(mt, []primitive.ObjectID{}, users[0].Friends)

		evt := mt.GetStartedEvent()
		require.NotNil(mt, evt)
		pattern, opts := evt.Command.Lookup("filter", "username").Regex()
		assert.Equal(mt, `a\.b`, pattern)
		assert.Equal(mt, "i", opts)
		assert.EqualValues(mt, searchLimit, evt.Command.Lookup("limit").AsInt64())
		assert.EqualValues(mt, 0, evt.Command.Lookup("projection", "password_hash").AsInt64())
	})
}

func TestGetUser_NotFound(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("missing", func(mt *mtest.T) {
		mt.AddMockResponses(usersCursor())

		_, err := newMockUserService(mt).GetUser(context.Background(), primitive.NewObjectID())
		assert.ErrorIs(mt, err, errors.ErrUserNotFound)
	})
}

func TestGetFriends_UnknownUserIsEmpty(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("unknown", func(mt *mtest.T) {
		mt.AddMockResponses(usersCursor())

		friends, err := newMockUserService(mt).GetFriends(context.Background(), primitive.NewObjectID())
		require.NoError(mt, err)
		assert.Equal(mt, []models.User{}, friends)
	})
}

func TestCreate(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("duplicate identity", func(mt *mtest.T) {
		mt.AddMockResponses(usersCursor(bson.D{{Key: "_id", Value: primitive.NewObjectID()}, {Key: "username", Value: "amit"}}))

		_, err := newMockUserService(mt).Create(context.Background(), "amit", "other@example.com", "pw")
		assert.ErrorIs(mt, err, errors.ErrDuplicateIdentity)
	})

	mt.Run("stores a hashed password and empty sets", func(mt *mtest.T) {
		mt.AddMockResponses(usersCursor(), mtest.CreateSuccessResponse())

		id, err := newMockUserService(mt).Create(context.Background(), "amit", "amit@example.com", "pw")
		require.NoError(mt, err)
		assert.False(mt, id.IsZero())

		mt.GetStartedEvent() // duplicate check
		evt := mt.GetStartedEvent()
		require.NotNil(mt, evt)
		require.Equal(mt, "insert", evt.CommandName)

		var cmd struct {
			Documents []models.User `bson:"documents"`
		}
		require.NoError(mt, bson.Unmarshal(evt.Command, &cmd))
		require.Len(mt, cmd.Documents, 1)
		doc := cmd.Documents[0]
		assert.Equal(mt, id, doc.ID)
		assert.NotEqual(mt, "pw", doc.PasswordHash)
		assert.NoError(mt, bcrypt.CompareHashAndPassword([]byte(doc.PasswordHash), []byte("pw")))
		assert.Empty(mt, doc.Friends)
		assert.Zero(mt, doc.BeijjatiCount)
	})

	mt.Run("unique index race", func(mt *mtest.T) {
		mt.AddMockResponses(usersCursor(), mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "E11000 duplicate key error",
		}))

		_, err := newMockUserService(mt).Create(context.Background(), "amit", "amit@example.com", "pw")
		assert.ErrorIs(mt, err, errors.ErrDuplicateIdentity)
	})
}

func TestAuthenticate(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	require.NoError(mt, err)
	id := primitive.NewObjectID()
	doc := bson.D{{Key: "_id", Value: id}, {Key: "username", Value: "amit"}, {Key: "password_hash", Value: string(hash)}}

	mt.Run("match", func(mt *mtest.T) {
		mt.AddMockResponses(usersCursor(doc))

		user, err := newMockUserService(mt).Authenticate(context.Background(), "amit", "secret")
		require.NoError(mt, err)
		assert.Equal(mt, id, user.ID)
	})

	mt.Run("wrong password", func(mt *mtest.T) {
		mt.AddMockResponses(usersCursor(doc))

		_, err := newMockUserService(mt).Authenticate(context.Background(), "amit", "nope")
		assert.ErrorIs(mt, err, errors.ErrInvalidCredentials)
	})

	mt.Run("unknown user", func(mt *mtest.T) {
		mt.AddMockResponses(usersCursor())

		_, err := newMockUserService(mt).Authenticate(context.Background(), "ghost", "secret")
		assert.ErrorIs(mt, err, errors.ErrInvalidCredentials)
	})
}
