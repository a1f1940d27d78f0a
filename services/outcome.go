package services

import "go.mongodb.org/mongo-driver/mongo"

// Outcome reports what a single mutation did to the store.
type Outcome int

const (
	// OutcomeApplied means at least one document changed.
	OutcomeApplied Outcome = iota
	// OutcomeNotFound means nothing matched, including malformed ids.
	OutcomeNotFound
	// OutcomeConflict means the target matched but already had the requested state.
	OutcomeConflict
)

func (o Outcome) String() string {
	switch o {
	case OutcomeApplied:
		return "applied"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeConflict:
		return "conflict"
	default:
		return "unknown"
	}
}

func (o Outcome) Applied() bool { return o == OutcomeApplied }

func outcomeOf(res *mongo.UpdateResult) Outcome {
	switch {
	case res == nil || res.MatchedCount == 0:
		return OutcomeNotFound
	case res.ModifiedCount == 0:
		return OutcomeConflict
	default:
		return OutcomeApplied
	}
}
