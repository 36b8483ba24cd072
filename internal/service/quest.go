package service

import (
	"context"
	"errors"
	"time"

	"city-quest/internal/config"
	"city-quest/internal/level"
	"city-quest/internal/model"
	"city-quest/internal/pkg/lock"
	"city-quest/internal/repository"
)

// QuestResult is the outcome of a quest transition. Event is populated only
// on completion; NextStep only when the quest is still active after an
// advance.
type QuestResult struct {
	UserQuest *model.UserQuest `json:"user_quest"`
	Quest     *model.Quest     `json:"quest"`
	Completed bool             `json:"completed"`
	NextStep  *model.QuestStep `json:"next_step,omitempty"`
	Event     *EventResult     `json:"event,omitempty"`
}

// QuestService drives the quest lifecycle: active -> completed and
// active -> abandoned, both terminal. Absence of a user quest row means the
// quest was never started.
//
// Advancing a step is not gated on a recorded visit to the step's location;
// whether it should be is a product decision left to the caller.
type QuestService struct {
	catalog   repository.CatalogStore
	progress  repository.ProgressStore
	evaluator *Evaluator
	userLock  *lock.UserLock
	rewards   config.RewardsConfig
}

// NewQuestService creates a new QuestService instance.
func NewQuestService(
	catalog repository.CatalogStore,
	progress repository.ProgressStore,
	evaluator *Evaluator,
	userLock *lock.UserLock,
	rewards config.RewardsConfig,
) *QuestService {
	return &QuestService{
		catalog:   catalog,
		progress:  progress,
		evaluator: evaluator,
		userLock:  userLock,
		rewards:   rewards,
	}
}

// Start begins a quest for a user. Fails with ErrQuestAlreadyStarted if any
// instance of the quest exists for the user - completed and abandoned quests
// cannot be restarted.
func (s *QuestService) Start(ctx context.Context, userID, questID string) (*QuestResult, error) {
	quest, err := s.getQuest(ctx, questID)
	if err != nil {
		return nil, err
	}

	s.userLock.Lock(userID)
	defer s.userLock.Unlock(userID)

	uq := &model.UserQuest{
		UserID:      userID,
		QuestID:     quest.ID,
		Status:      model.QuestStatusActive,
		CurrentStep: 0,
		StartedAt:   time.Now().UTC(),
	}

	err = s.progress.Update(ctx, userID, func(ctx context.Context, tx repository.ProgressTx) error {
		inserted, err := tx.InsertUserQuest(ctx, uq)
		if err != nil {
			return err
		}
		if !inserted {
			return ErrQuestAlreadyStarted
		}
		return nil
	})
	if err != nil {
		if isEngineErr(err) {
			return nil, err
		}
		return nil, storeErr(err)
	}

	return &QuestResult{UserQuest: uq, Quest: quest, NextStep: firstStep(quest)}, nil
}

// Advance moves an active quest to its next step. When the step index
// reaches the quest's step count the quest completes: the completion XP is
// awarded and achievements are evaluated through the same path as the
// recorders, all inside one transaction. Intermediate steps award nothing.
func (s *QuestService) Advance(ctx context.Context, userID, questID string) (*QuestResult, error) {
	quest, err := s.getQuest(ctx, questID)
	if err != nil {
		return nil, err
	}

	achievements, err := s.catalog.ListAchievements(ctx)
	if err != nil {
		return nil, storeErr(err)
	}

	xpReward := quest.XPReward
	if xpReward <= 0 {
		xpReward = s.rewards.QuestXP
	}

	s.userLock.Lock(userID)
	defer s.userLock.Unlock(userID)

	var result *QuestResult
	err = s.progress.Update(ctx, userID, func(ctx context.Context, tx repository.ProgressTx) error {
		uq, err := tx.GetUserQuest(ctx, questID)
		if err != nil {
			if errors.Is(err, repository.ErrUserQuestNotFound) {
				return ErrUserQuestNotFound
			}
			return err
		}
		if uq.Status != model.QuestStatusActive {
			return ErrQuestNotActive
		}

		uq.CurrentStep++
		result = &QuestResult{UserQuest: uq, Quest: quest}

		if uq.CurrentStep >= len(quest.Steps) {
			now := time.Now().UTC()
			uq.Status = model.QuestStatusCompleted
			uq.CompletedAt = &now
			result.Completed = true

			progress := tx.Progress()
			before := level.Compute(progress.TotalXP)
			progress.QuestsCompleted++
			progress.TotalXP += xpReward

			newAchievements, achievementXP, err := s.evaluator.Evaluate(ctx, tx, achievements)
			if err != nil {
				return err
			}

			after := level.Compute(progress.TotalXP)
			result.Event = &EventResult{
				XPEarned:        xpReward + achievementXP,
				TotalXP:         progress.TotalXP,
				Level:           after.Level,
				Rank:            after.Rank,
				XPForNext:       after.XPForNext,
				LevelUp:         after.Level > before.Level,
				NewAchievements: newAchievements,
			}
		} else {
			step := quest.Steps[uq.CurrentStep]
			result.NextStep = &step
		}

		return tx.UpdateUserQuest(ctx, uq)
	})
	if err != nil {
		if isEngineErr(err) {
			return nil, err
		}
		return nil, storeErr(err)
	}

	return result, nil
}

// Abandon marks an active quest abandoned. No XP penalty. Abandoning a
// quest that is already terminal fails with ErrQuestNotActive rather than
// silently succeeding.
func (s *QuestService) Abandon(ctx context.Context, userID, questID string) (*QuestResult, error) {
	quest, err := s.getQuest(ctx, questID)
	if err != nil {
		return nil, err
	}

	s.userLock.Lock(userID)
	defer s.userLock.Unlock(userID)

	var result *QuestResult
	err = s.progress.Update(ctx, userID, func(ctx context.Context, tx repository.ProgressTx) error {
		uq, err := tx.GetUserQuest(ctx, questID)
		if err != nil {
			if errors.Is(err, repository.ErrUserQuestNotFound) {
				return ErrUserQuestNotFound
			}
			return err
		}
		if uq.Status != model.QuestStatusActive {
			return ErrQuestNotActive
		}

		uq.Status = model.QuestStatusAbandoned
		result = &QuestResult{UserQuest: uq, Quest: quest}
		return tx.UpdateUserQuest(ctx, uq)
	})
	if err != nil {
		if isEngineErr(err) {
			return nil, err
		}
		return nil, storeErr(err)
	}

	return result, nil
}

// UserQuests returns all quest instances of a user.
func (s *QuestService) UserQuests(ctx context.Context, userID string) ([]*model.UserQuest, error) {
	quests, err := s.progress.ListUserQuests(ctx, userID)
	if err != nil {
		return nil, storeErr(err)
	}
	return quests, nil
}

// Quest returns a quest definition by id.
func (s *QuestService) Quest(ctx context.Context, questID string) (*model.Quest, error) {
	return s.getQuest(ctx, questID)
}

func (s *QuestService) getQuest(ctx context.Context, questID string) (*model.Quest, error) {
	quest, err := s.catalog.GetQuest(ctx, questID)
	if err != nil {
		if errors.Is(err, repository.ErrQuestNotFound) {
			return nil, ErrQuestNotFound
		}
		return nil, storeErr(err)
	}
	return quest, nil
}

func firstStep(quest *model.Quest) *model.QuestStep {
	if len(quest.Steps) == 0 {
		return nil
	}
	step := quest.Steps[0]
	return &step
}
