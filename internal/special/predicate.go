// Package special defines pluggable predicates for achievements whose
// qualifying condition cannot be expressed as a single counter threshold.
// New special achievements are registered, not hand-coded into the
// evaluator.
package special

import "context"

// EvalContext carries the per-user state a predicate may inspect. It is
// assembled inside the same transaction as the rest of the event, so
// predicate reads are consistent with the counters.
type EvalContext struct {
	UserID             string
	LocationsVisited   int64
	PhrasesLearned     int64
	PhotosTaken        int64
	QuestsCompleted    int64
	AchievementsEarned int64

	// HasVisited reports whether the user has a recorded visit for the
	// given location, read under the event's transaction.
	HasVisited func(ctx context.Context, locationID string) (bool, error)
}

// Predicate decides whether a user qualifies for one special achievement.
type Predicate interface {
	// Describe returns a short human-readable condition summary.
	Describe() string

	// Qualifies evaluates the condition against the user's current state.
	Qualifies(ctx context.Context, ec *EvalContext) (bool, error)
}

// PredicateFunc adapts a function to the Predicate interface.
type PredicateFunc struct {
	Desc string
	Fn   func(ctx context.Context, ec *EvalContext) (bool, error)
}

// Describe returns the condition summary.
func (p PredicateFunc) Describe() string {
	return p.Desc
}

// Qualifies evaluates the wrapped function.
func (p PredicateFunc) Qualifies(ctx context.Context, ec *EvalContext) (bool, error) {
	return p.Fn(ctx, ec)
}

// VisitedLocation qualifies once the user has visited one specific location.
func VisitedLocation(desc, locationID string) Predicate {
	return PredicateFunc{
		Desc: desc,
		Fn: func(ctx context.Context, ec *EvalContext) (bool, error) {
			if ec.HasVisited == nil {
				return false, nil
			}
			return ec.HasVisited(ctx, locationID)
		},
	}
}

// VisitedAll qualifies once the user has visited every listed location.
func VisitedAll(desc string, locationIDs ...string) Predicate {
	return PredicateFunc{
		Desc: desc,
		Fn: func(ctx context.Context, ec *EvalContext) (bool, error) {
			if ec.HasVisited == nil {
				return false, nil
			}
			for _, id := range locationIDs {
				visited, err := ec.HasVisited(ctx, id)
				if err != nil {
					return false, err
				}
				if !visited {
					return false, nil
				}
			}
			return len(locationIDs) > 0, nil
		},
	}
}
