package service

import (
	"context"
	"errors"
	"strings"

	"city-quest/internal/config"
	"city-quest/internal/level"
	"city-quest/internal/model"
	"city-quest/internal/pkg/lock"
	"city-quest/internal/repository"
)

// EventResult is the aggregated outcome of one progression event: the XP it
// earned (including achievement bonuses), the level transition, and any
// newly unlocked achievements, in catalog order.
type EventResult struct {
	XPEarned        int64                `json:"xp_earned"`
	TotalXP         int64                `json:"total_xp"`
	Level           int                  `json:"level"`
	Rank            string               `json:"rank"`
	XPForNext       int64                `json:"xp_for_next"`
	LevelUp         bool                 `json:"level_up"`
	Duplicate       bool                 `json:"duplicate"`
	NewAchievements []*model.Achievement `json:"new_achievements,omitempty"`
}

// ProgressSnapshot is a read-only view of a user's progress with the level
// recomputed from total XP.
type ProgressSnapshot struct {
	Progress        *model.UserProgress `json:"progress"`
	Level           int                 `json:"level"`
	Rank            string              `json:"rank"`
	XPForNext       int64               `json:"xp_for_next"`
	ProgressPercent float64             `json:"progress_percent"`
}

// AchievementStatus pairs a catalog achievement with the user's earned state.
type AchievementStatus struct {
	Achievement *model.Achievement `json:"achievement"`
	Earned      bool               `json:"earned"`
}

// ProgressService records progression events: location visits, learned
// phrases, and photo uploads. Each event is one atomic read-modify-write
// against the progress store, serialized per user.
type ProgressService struct {
	catalog   repository.CatalogStore
	progress  repository.ProgressStore
	evaluator *Evaluator
	userLock  *lock.UserLock
	rewards   config.RewardsConfig
}

// NewProgressService creates a new ProgressService instance.
func NewProgressService(
	catalog repository.CatalogStore,
	progress repository.ProgressStore,
	evaluator *Evaluator,
	userLock *lock.UserLock,
	rewards config.RewardsConfig,
) *ProgressService {
	return &ProgressService{
		catalog:   catalog,
		progress:  progress,
		evaluator: evaluator,
		userLock:  userLock,
		rewards:   rewards,
	}
}

// RecordVisit records a location visit, awards XP, and evaluates
// achievements. A repeat visit to the same location succeeds with zero XP
// and no counter change, but achievement evaluation still runs.
func (s *ProgressService) RecordVisit(ctx context.Context, userID, locationID string) (*EventResult, error) {
	loc, err := s.catalog.GetLocation(ctx, locationID)
	if err != nil {
		if errors.Is(err, repository.ErrLocationNotFound) {
			return nil, ErrLocationNotFound
		}
		return nil, storeErr(err)
	}

	xpReward := loc.XPReward
	if xpReward <= 0 {
		xpReward = s.rewards.VisitXP
	}

	return s.runEvent(ctx, userID, func(ctx context.Context, tx repository.ProgressTx) (int64, bool, error) {
		inserted, err := tx.InsertVisit(ctx, loc.ID)
		if err != nil {
			return 0, false, err
		}
		if !inserted {
			return 0, true, nil
		}
		tx.Progress().LocationsVisited++
		return xpReward, false, nil
	})
}

// LearnPhrase records a learned phrase. Dedup is by exact, case-sensitive
// string match; relearning a phrase earns nothing but is not an error.
func (s *ProgressService) LearnPhrase(ctx context.Context, userID, phrase string) (*EventResult, error) {
	if strings.TrimSpace(phrase) == "" {
		return nil, ErrPhraseEmpty
	}

	return s.runEvent(ctx, userID, func(ctx context.Context, tx repository.ProgressTx) (int64, bool, error) {
		inserted, err := tx.InsertPhrase(ctx, phrase)
		if err != nil {
			return 0, false, err
		}
		if !inserted {
			return 0, true, nil
		}
		tx.Progress().PhrasesLearned++
		return s.rewards.PhraseXP, false, nil
	})
}

// RecordPhoto records a completed photo upload. There is no dedup key:
// every upload increments the counter and awards the fixed XP.
func (s *ProgressService) RecordPhoto(ctx context.Context, userID string) (*EventResult, error) {
	return s.runEvent(ctx, userID, func(ctx context.Context, tx repository.ProgressTx) (int64, bool, error) {
		tx.Progress().PhotosTaken++
		return s.rewards.PhotoXP, false, nil
	})
}

// runEvent executes the shared award-and-evaluate path under the per-user
// lock: apply the event-specific mutation, fold its XP in, evaluate
// achievements (merging their XP before the final level computation), and
// assemble the result bundle.
func (s *ProgressService) runEvent(ctx context.Context, userID string, apply func(ctx context.Context, tx repository.ProgressTx) (int64, bool, error)) (*EventResult, error) {
	achievements, err := s.catalog.ListAchievements(ctx)
	if err != nil {
		return nil, storeErr(err)
	}

	s.userLock.Lock(userID)
	defer s.userLock.Unlock(userID)

	var result *EventResult
	err = s.progress.Update(ctx, userID, func(ctx context.Context, tx repository.ProgressTx) error {
		progress := tx.Progress()
		before := level.Compute(progress.TotalXP)

		xp, duplicate, err := apply(ctx, tx)
		if err != nil {
			return err
		}
		progress.TotalXP += xp

		newAchievements, achievementXP, err := s.evaluator.Evaluate(ctx, tx, achievements)
		if err != nil {
			return err
		}

		after := level.Compute(progress.TotalXP)
		result = &EventResult{
			XPEarned:        xp + achievementXP,
			TotalXP:         progress.TotalXP,
			Level:           after.Level,
			Rank:            after.Rank,
			XPForNext:       after.XPForNext,
			LevelUp:         after.Level > before.Level,
			Duplicate:       duplicate,
			NewAchievements: newAchievements,
		}
		return nil
	})
	if err != nil {
		if isEngineErr(err) {
			return nil, err
		}
		return nil, storeErr(err)
	}

	return result, nil
}

// Snapshot returns a user's progress with level and rank recomputed from
// total XP. Level is never served from stored state.
func (s *ProgressService) Snapshot(ctx context.Context, userID string) (*ProgressSnapshot, error) {
	progress, err := s.progress.GetProgress(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrProgressNotFound) {
			return nil, ErrProgressNotFound
		}
		return nil, storeErr(err)
	}

	info := level.Compute(progress.TotalXP)
	return &ProgressSnapshot{
		Progress:        progress,
		Level:           info.Level,
		Rank:            info.Rank,
		XPForNext:       info.XPForNext,
		ProgressPercent: level.ProgressPercent(progress.TotalXP),
	}, nil
}

// Achievements returns the full catalog with the user's earned flags.
func (s *ProgressService) Achievements(ctx context.Context, userID string) ([]*AchievementStatus, error) {
	catalog, err := s.catalog.ListAchievements(ctx)
	if err != nil {
		return nil, storeErr(err)
	}

	earned, err := s.progress.ListEarnedAchievements(ctx, userID)
	if err != nil {
		return nil, storeErr(err)
	}
	earnedIDs := make(map[string]bool, len(earned))
	for _, e := range earned {
		earnedIDs[e.AchievementID] = true
	}

	statuses := make([]*AchievementStatus, 0, len(catalog))
	for _, a := range catalog {
		statuses = append(statuses, &AchievementStatus{
			Achievement: a,
			Earned:      earnedIDs[a.ID],
		})
	}
	return statuses, nil
}

// Visits returns all of a user's recorded location visits.
func (s *ProgressService) Visits(ctx context.Context, userID string) ([]*model.LocationVisit, error) {
	visits, err := s.progress.ListVisits(ctx, userID)
	if err != nil {
		return nil, storeErr(err)
	}
	return visits, nil
}

// Phrases returns all phrases a user has learned.
func (s *ProgressService) Phrases(ctx context.Context, userID string) ([]string, error) {
	phrases, err := s.progress.ListPhrases(ctx, userID)
	if err != nil {
		return nil, storeErr(err)
	}
	return phrases, nil
}

// isEngineErr reports whether err already carries one of the engine's
// deterministic sentinels and must not be re-wrapped as retryable.
func isEngineErr(err error) bool {
	for _, sentinel := range []error{
		ErrLocationNotFound,
		ErrQuestNotFound,
		ErrUserQuestNotFound,
		ErrProgressNotFound,
		ErrPhraseEmpty,
		ErrQuestAlreadyStarted,
		ErrQuestNotActive,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}
