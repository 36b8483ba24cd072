package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"city-quest/internal/config"
	"city-quest/internal/model"
	"city-quest/internal/pkg/lock"
	"city-quest/internal/repository"
	"city-quest/internal/special"
)

// In-memory fakes for CatalogStore and ProgressStore. They mirror the
// database semantics the services rely on: uniqueness-constrained inserts
// report whether a row was created, and Update is atomic per user.

type fakeCatalog struct {
	locations    map[string]*model.Location
	achievements []*model.Achievement
	quests       map[string]*model.Quest
	err          error
}

func (f *fakeCatalog) GetLocation(_ context.Context, id string) (*model.Location, error) {
	if f.err != nil {
		return nil, f.err
	}
	loc, ok := f.locations[id]
	if !ok {
		return nil, repository.ErrLocationNotFound
	}
	return loc, nil
}

func (f *fakeCatalog) FindLocationByName(_ context.Context, name string) (*model.Location, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, loc := range f.locations {
		if strings.EqualFold(loc.Name, name) {
			return loc, nil
		}
	}
	return nil, repository.ErrLocationNotFound
}

func (f *fakeCatalog) ListLocations(_ context.Context, category string) ([]*model.Location, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []*model.Location
	for _, loc := range f.locations {
		if category == "" || loc.Category == category {
			out = append(out, loc)
		}
	}
	return out, nil
}

func (f *fakeCatalog) NearbyLocations(_ context.Context, _, _, _ float64) ([]*model.Location, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []*model.Location
	for _, loc := range f.locations {
		out = append(out, loc)
	}
	return out, nil
}

func (f *fakeCatalog) GetAchievement(_ context.Context, id string) (*model.Achievement, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, a := range f.achievements {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, repository.ErrAchievementNotFound
}

func (f *fakeCatalog) ListAchievements(context.Context) ([]*model.Achievement, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.achievements, nil
}

func (f *fakeCatalog) GetQuest(_ context.Context, id string) (*model.Quest, error) {
	if f.err != nil {
		return nil, f.err
	}
	quest, ok := f.quests[id]
	if !ok {
		return nil, repository.ErrQuestNotFound
	}
	return quest, nil
}

func (f *fakeCatalog) ListQuests(context.Context) ([]*model.Quest, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []*model.Quest
	for _, q := range f.quests {
		out = append(out, q)
	}
	return out, nil
}

type userState struct {
	progress model.UserProgress
	visits   map[string]time.Time
	phrases  map[string]time.Time
	earned   map[string]time.Time
	quests   map[string]model.UserQuest
}

func (s *userState) clone() *userState {
	c := &userState{
		progress: s.progress,
		visits:   make(map[string]time.Time, len(s.visits)),
		phrases:  make(map[string]time.Time, len(s.phrases)),
		earned:   make(map[string]time.Time, len(s.earned)),
		quests:   make(map[string]model.UserQuest, len(s.quests)),
	}
	for k, v := range s.visits {
		c.visits[k] = v
	}
	for k, v := range s.phrases {
		c.phrases[k] = v
	}
	for k, v := range s.earned {
		c.earned[k] = v
	}
	for k, v := range s.quests {
		c.quests[k] = v
	}
	return c
}

type fakeProgress struct {
	mu        sync.Mutex
	users     map[string]*userState
	updateErr error
	earnErr   error
	lastLimit int
}

func newFakeProgress() *fakeProgress {
	return &fakeProgress{users: map[string]*userState{}}
}

func (f *fakeProgress) state(userID string) *userState {
	s, ok := f.users[userID]
	if !ok {
		s = &userState{
			progress: model.UserProgress{
				UserID:    userID,
				CreatedAt: time.Now().UTC(),
			},
			visits:  map[string]time.Time{},
			phrases: map[string]time.Time{},
			earned:  map[string]time.Time{},
			quests:  map[string]model.UserQuest{},
		}
		f.users[userID] = s
	}
	return s
}

func (f *fakeProgress) Update(ctx context.Context, userID string, fn func(ctx context.Context, tx repository.ProgressTx) error) error {
	if f.updateErr != nil {
		return f.updateErr
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	_, existed := f.users[userID]
	state := f.state(userID)
	backup := state.clone()

	tx := &fakeTx{store: f, state: state}
	if err := fn(ctx, tx); err != nil {
		if existed {
			f.users[userID] = backup
		} else {
			delete(f.users, userID)
		}
		return err
	}
	state.progress.UpdatedAt = time.Now().UTC()
	return nil
}

func (f *fakeProgress) GetProgress(_ context.Context, userID string) (*model.UserProgress, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.users[userID]
	if !ok {
		return nil, repository.ErrProgressNotFound
	}
	p := s.progress
	return &p, nil
}

func (f *fakeProgress) ListVisits(_ context.Context, userID string) ([]*model.LocationVisit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.users[userID]
	if !ok {
		return nil, nil
	}
	var out []*model.LocationVisit
	for locationID, at := range s.visits {
		out = append(out, &model.LocationVisit{UserID: userID, LocationID: locationID, VisitedAt: at})
	}
	return out, nil
}

func (f *fakeProgress) VisitedLocationNames(_ context.Context, userID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.users[userID]
	if !ok {
		return nil, nil
	}
	var out []string
	for locationID := range s.visits {
		out = append(out, locationID)
	}
	return out, nil
}

func (f *fakeProgress) ListPhrases(_ context.Context, userID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.users[userID]
	if !ok {
		return nil, nil
	}
	var out []string
	for phrase := range s.phrases {
		out = append(out, phrase)
	}
	return out, nil
}

func (f *fakeProgress) ListEarnedAchievements(_ context.Context, userID string) ([]*model.EarnedAchievement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.users[userID]
	if !ok {
		return nil, nil
	}
	var out []*model.EarnedAchievement
	for achievementID, at := range s.earned {
		out = append(out, &model.EarnedAchievement{UserID: userID, AchievementID: achievementID, EarnedAt: at})
	}
	return out, nil
}

func (f *fakeProgress) ListUserQuests(_ context.Context, userID string) ([]*model.UserQuest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.users[userID]
	if !ok {
		return nil, nil
	}
	var out []*model.UserQuest
	for _, uq := range s.quests {
		copied := uq
		out = append(out, &copied)
	}
	return out, nil
}

func (f *fakeProgress) TopByXP(_ context.Context, limit int) ([]*model.LeaderboardEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastLimit = limit

	var entries []*model.LeaderboardEntry
	for userID, s := range f.users {
		entries = append(entries, &model.LeaderboardEntry{
			UserID:           userID,
			TotalXP:          s.progress.TotalXP,
			LocationsVisited: s.progress.LocationsVisited,
		})
	}
	for i := 0; i < len(entries); i++ {
		for j := i + 1; j < len(entries); j++ {
			a, b := entries[i], entries[j]
			if b.TotalXP > a.TotalXP || (b.TotalXP == a.TotalXP && b.UserID < a.UserID) {
				entries[i], entries[j] = entries[j], entries[i]
			}
		}
	}
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

type fakeTx struct {
	store *fakeProgress
	state *userState
}

func (t *fakeTx) Progress() *model.UserProgress {
	return &t.state.progress
}

func (t *fakeTx) InsertVisit(_ context.Context, locationID string) (bool, error) {
	if _, ok := t.state.visits[locationID]; ok {
		return false, nil
	}
	t.state.visits[locationID] = time.Now().UTC()
	return true, nil
}

func (t *fakeTx) HasVisited(_ context.Context, locationID string) (bool, error) {
	_, ok := t.state.visits[locationID]
	return ok, nil
}

func (t *fakeTx) InsertPhrase(_ context.Context, phrase string) (bool, error) {
	if _, ok := t.state.phrases[phrase]; ok {
		return false, nil
	}
	t.state.phrases[phrase] = time.Now().UTC()
	return true, nil
}

func (t *fakeTx) EarnedAchievementIDs(context.Context) (map[string]bool, error) {
	out := make(map[string]bool, len(t.state.earned))
	for id := range t.state.earned {
		out[id] = true
	}
	return out, nil
}

func (t *fakeTx) InsertEarnedAchievement(_ context.Context, achievementID string) (bool, error) {
	if t.store.earnErr != nil {
		return false, t.store.earnErr
	}
	if _, ok := t.state.earned[achievementID]; ok {
		return false, nil
	}
	t.state.earned[achievementID] = time.Now().UTC()
	return true, nil
}

func (t *fakeTx) GetUserQuest(_ context.Context, questID string) (*model.UserQuest, error) {
	uq, ok := t.state.quests[questID]
	if !ok {
		return nil, repository.ErrUserQuestNotFound
	}
	copied := uq
	return &copied, nil
}

func (t *fakeTx) InsertUserQuest(_ context.Context, uq *model.UserQuest) (bool, error) {
	if _, ok := t.state.quests[uq.QuestID]; ok {
		return false, nil
	}
	t.state.quests[uq.QuestID] = *uq
	return true, nil
}

func (t *fakeTx) UpdateUserQuest(_ context.Context, uq *model.UserQuest) error {
	t.state.quests[uq.QuestID] = *uq
	return nil
}

// Shared fixture. XP numbers follow the default reward table so the level
// arithmetic in the tests is easy to follow.

var testRewards = config.RewardsConfig{VisitXP: 50, PhraseXP: 15, PhotoXP: 10, QuestXP: 200}

func testLocations() map[string]*model.Location {
	locations := map[string]*model.Location{}
	for _, id := range []string{"loc-1", "loc-2", "loc-3", "loc-4", "loc-5"} {
		locations[id] = &model.Location{
			ID:       id,
			Name:     "Location " + id,
			Category: model.CategoryLandmark,
		}
	}
	locations["loc-fortress"] = &model.Location{
		ID:       "loc-fortress",
		Name:     "Narikala Fortress",
		Category: model.CategoryHistorical,
		XPReward: 80,
	}
	return locations
}

func testAchievements() []*model.Achievement {
	return []*model.Achievement{
		{ID: "ach-first-steps", Name: "First Steps", RequirementType: model.RequirementVisits, RequirementValue: 1, XPReward: 60},
		{ID: "ach-explorer", Name: "Explorer", RequirementType: model.RequirementVisits, RequirementValue: 5, XPReward: 100},
		{ID: "ach-first-words", Name: "First Words", RequirementType: model.RequirementPhrases, RequirementValue: 1, XPReward: 60},
		{ID: "ach-shutterbug", Name: "Shutterbug", RequirementType: model.RequirementPhotos, RequirementValue: 1, XPReward: 60},
		{ID: "ach-quest-novice", Name: "Quest Novice", RequirementType: model.RequirementQuests, RequirementValue: 1, XPReward: 60},
		{ID: "ach-fortress", Name: "King of the Hill", RequirementType: model.RequirementSpecial, IsSecret: true, XPReward: 120},
	}
}

func testQuests() map[string]*model.Quest {
	return map[string]*model.Quest{
		"quest-old-town": {
			ID:       "quest-old-town",
			Name:     "Old Town Walk",
			XPReward: 200,
			Steps: []model.QuestStep{
				{Title: "The gate", LocationID: "loc-1"},
				{Title: "The square", LocationID: "loc-2"},
				{Title: "The fortress", LocationID: "loc-fortress"},
			},
		},
	}
}

type fixture struct {
	catalog  *fakeCatalog
	store    *fakeProgress
	registry *special.Registry
	progress *ProgressService
	quests   *QuestService
}

func newFixture() *fixture {
	catalog := &fakeCatalog{
		locations:    testLocations(),
		achievements: testAchievements(),
		quests:       testQuests(),
	}
	store := newFakeProgress()
	registry := special.NewRegistry()
	evaluator := NewEvaluator(registry)
	userLock := lock.NewUserLock()

	return &fixture{
		catalog:  catalog,
		store:    store,
		registry: registry,
		progress: NewProgressService(catalog, store, evaluator, userLock, testRewards),
		quests:   NewQuestService(catalog, store, evaluator, userLock, testRewards),
	}
}

// totalXP reads the stored XP directly, bypassing the service layer.
func (f *fixture) totalXP(userID string) int64 {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	s, ok := f.store.users[userID]
	if !ok {
		return 0
	}
	return s.progress.TotalXP
}
