package services

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

func testLogger() logrus.FieldLogger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestOutcomeOf(t *testing.T) {
	tests := []struct {
		name     string
		res      *mongo.UpdateResult
		expected Outcome
	}{
		{"nil result", nil, OutcomeNotFound},
		{"no match", &mongo.UpdateResult{MatchedCount: 0}, OutcomeNotFound},
		{"matched unchanged", &mongo.UpdateResult{MatchedCount: 1, ModifiedCount: 0}, OutcomeConflict},
		{"modified", &mongo.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, OutcomeApplied},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, outcomeOf(tt.res))
		})
	}
}

func TestCombine(t *testing.T) {
	tests := []struct {
		first, second Outcome
		expected      Outcome
	}{
		{OutcomeApplied, OutcomeApplied, OutcomeApplied},
		{OutcomeApplied, OutcomeConflict, OutcomeApplied},
		{OutcomeConflict, OutcomeApplied, OutcomeApplied},
		{OutcomeConflict, OutcomeConflict, OutcomeConflict},
		{OutcomeApplied, OutcomeNotFound, OutcomeNotFound},
		{OutcomeNotFound, OutcomeApplied, OutcomeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.first.String()+"+"+tt.second.String(), func(t *testing.T) {
			assert.Equal(t, tt.expected, combine(tt.first, tt.second))
		})
	}
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "applied", OutcomeApplied.String())
	assert.Equal(t, "not_found", OutcomeNotFound.String())
	assert.Equal(t, "conflict", OutcomeConflict.String())
	assert.True(t, OutcomeApplied.Applied())
	assert.False(t, OutcomeConflict.Applied())
}

func TestUniqueIDs(t *testing.T) {
	a, b := primitive.NewObjectID(), primitive.NewObjectID()
	got := uniqueIDs([]primitive.ObjectID{a, b, a, primitive.NilObjectID, b})
	assert.Equal(t, []primitive.ObjectID{a, b}, got)
	assert.Empty(t, uniqueIDs(nil))
}
