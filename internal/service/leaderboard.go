package service

import (
	"context"

	"city-quest/internal/config"
	"city-quest/internal/level"
	"city-quest/internal/model"
	"city-quest/internal/repository"
)

// LeaderboardService assembles the global XP ranking. Read-only: it never
// mutates progress and never blocks the recorders beyond normal read
// consistency of the store.
type LeaderboardService struct {
	progress repository.ProgressStore
	cfg      config.LeaderboardConfig
}

// NewLeaderboardService creates a new LeaderboardService instance.
func NewLeaderboardService(progress repository.ProgressStore, cfg config.LeaderboardConfig) *LeaderboardService {
	return &LeaderboardService{progress: progress, cfg: cfg}
}

// TopN returns the top n users by total XP, descending, with deterministic
// tie-breaking by earliest progress creation. Level and rank are recomputed
// from total XP for every entry. n is clamped to the configured limits.
func (s *LeaderboardService) TopN(ctx context.Context, n int) ([]*model.LeaderboardEntry, error) {
	if n <= 0 {
		n = s.cfg.DefaultLimit
	}
	if s.cfg.MaxLimit > 0 && n > s.cfg.MaxLimit {
		n = s.cfg.MaxLimit
	}

	entries, err := s.progress.TopByXP(ctx, n)
	if err != nil {
		return nil, storeErr(err)
	}

	for i, e := range entries {
		info := level.Compute(e.TotalXP)
		e.Position = i + 1
		e.Level = info.Level
		e.Rank = info.Rank
	}
	return entries, nil
}
