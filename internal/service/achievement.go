package service

import (
	"context"
	"fmt"

	"city-quest/internal/model"
	"city-quest/internal/repository"
	"city-quest/internal/special"
)

// Evaluator determines newly-qualifying achievements for a user and awards
// them inside the event's transaction.
type Evaluator struct {
	registry *special.Registry
}

// NewEvaluator creates a new Evaluator. The registry supplies predicates for
// achievements of the special requirement type; a nil registry means no
// special achievement can fire.
func NewEvaluator(registry *special.Registry) *Evaluator {
	if registry == nil {
		registry = special.NewRegistry()
	}
	return &Evaluator{registry: registry}
}

// Evaluate walks the achievement catalog in order, awards every achievement
// the user newly qualifies for, and returns the awarded achievements plus
// the total XP they grant. The XP is added to the progress snapshot before
// the caller recomputes the level, so an unlock can itself trigger a
// level-up in the same event.
//
// Awarding is exactly-once: the uniqueness-constrained insert decides. A
// losing race is treated as "already earned, skip", never as an error.
func (e *Evaluator) Evaluate(ctx context.Context, tx repository.ProgressTx, catalog []*model.Achievement) ([]*model.Achievement, int64, error) {
	progress := tx.Progress()

	earned, err := tx.EarnedAchievementIDs(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to load earned achievements: %w", err)
	}

	ec := &special.EvalContext{
		UserID:             progress.UserID,
		LocationsVisited:   progress.LocationsVisited,
		PhrasesLearned:     progress.PhrasesLearned,
		PhotosTaken:        progress.PhotosTaken,
		QuestsCompleted:    progress.QuestsCompleted,
		AchievementsEarned: progress.AchievementsEarned,
		HasVisited:         tx.HasVisited,
	}

	var awarded []*model.Achievement
	var xpGained int64

	for _, a := range catalog {
		if earned[a.ID] {
			continue
		}

		qualifies, err := e.qualifies(ctx, a, ec)
		if err != nil {
			return nil, 0, err
		}
		if !qualifies {
			continue
		}

		inserted, err := tx.InsertEarnedAchievement(ctx, a.ID)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to award achievement %q: %w", a.Name, err)
		}
		if !inserted {
			// Lost a duplicate-insert race: already earned, skip.
			continue
		}

		progress.AchievementsEarned++
		progress.TotalXP += a.XPReward
		xpGained += a.XPReward
		awarded = append(awarded, a)

		// Keep the eval context in step so later special predicates see
		// the updated counters.
		ec.AchievementsEarned = progress.AchievementsEarned
	}

	return awarded, xpGained, nil
}

// qualifies checks one achievement's requirement against the current state.
func (e *Evaluator) qualifies(ctx context.Context, a *model.Achievement, ec *special.EvalContext) (bool, error) {
	switch a.RequirementType {
	case model.RequirementVisits:
		return ec.LocationsVisited >= a.RequirementValue, nil
	case model.RequirementPhrases:
		return ec.PhrasesLearned >= a.RequirementValue, nil
	case model.RequirementPhotos:
		return ec.PhotosTaken >= a.RequirementValue, nil
	case model.RequirementQuests:
		return ec.QuestsCompleted >= a.RequirementValue, nil
	case model.RequirementSpecial:
		p, ok := e.registry.Get(a.ID)
		if !ok {
			// No predicate registered: the achievement can never fire.
			return false, nil
		}
		qualifies, err := p.Qualifies(ctx, ec)
		if err != nil {
			return false, fmt.Errorf("special predicate for %q failed: %w", a.Name, err)
		}
		return qualifies, nil
	default:
		return false, nil
	}
}
