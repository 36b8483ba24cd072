// Package model defines the data models for the city exploration game.
package model

import "time"

// Location is a point of interest users can visit. Catalog reference data,
// immutable from the engine's point of view.
type Location struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	LocalName   string    `db:"local_name" json:"local_name"`
	Description string    `db:"description" json:"description"`
	Category    string    `db:"category" json:"category"`
	Latitude    float64   `db:"latitude" json:"latitude"`
	Longitude   float64   `db:"longitude" json:"longitude"`
	XPReward    int64     `db:"xp_reward" json:"xp_reward"`
	ImageURL    string    `db:"image_url" json:"image_url"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Location categories.
const (
	CategoryAttraction = "attraction"
	CategoryRestaurant = "restaurant"
	CategoryLandmark   = "landmark"
	CategoryNature     = "nature"
	CategoryHistorical = "historical"
)

// Achievement is a one-time-unlockable accomplishment. Catalog reference data.
type Achievement struct {
	ID               string    `db:"id" json:"id"`
	Name             string    `db:"name" json:"name"`
	Description      string    `db:"description" json:"description"`
	Icon             string    `db:"icon" json:"icon"`
	XPReward         int64     `db:"xp_reward" json:"xp_reward"`
	RequirementType  string    `db:"requirement_type" json:"requirement_type"`
	RequirementValue int64     `db:"requirement_value" json:"requirement_value"`
	IsSecret         bool      `db:"is_secret" json:"is_secret"`
	Category         string    `db:"category" json:"category"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
}

// Achievement requirement types.
const (
	RequirementVisits  = "visits"
	RequirementPhrases = "phrases"
	RequirementPhotos  = "photos"
	RequirementQuests  = "quests"
	RequirementSpecial = "special"
)

// QuestStep is a single step in a quest's ordered step list.
type QuestStep struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	LocationID  string `json:"location_id,omitempty"`
}

// Quest is an ordered sequence of steps with a completion reward.
// Catalog reference data.
type Quest struct {
	ID            string      `db:"id" json:"id"`
	Name          string      `db:"name" json:"name"`
	Description   string      `db:"description" json:"description"`
	StoryIntro    string      `db:"story_intro" json:"story_intro"`
	XPReward      int64       `db:"xp_reward" json:"xp_reward"`
	Steps         []QuestStep `db:"steps" json:"steps"`
	Difficulty    string      `db:"difficulty" json:"difficulty"`
	EstimatedTime int         `db:"estimated_time" json:"estimated_time"`
	CreatedAt     time.Time   `db:"created_at" json:"created_at"`
}

// UserProgress holds a user's mutable game state. Created lazily on the
// first event for a user. The counters are denormalized cardinalities of
// their backing relations and are incremented in the same transaction that
// writes the relation. Level and rank are always derivable from TotalXP
// alone and are never stored as independent truth.
type UserProgress struct {
	UserID             string    `db:"user_id" json:"user_id"`
	TotalXP            int64     `db:"total_xp" json:"total_xp"`
	LocationsVisited   int64     `db:"locations_visited" json:"locations_visited"`
	PhrasesLearned     int64     `db:"phrases_learned" json:"phrases_learned"`
	PhotosTaken        int64     `db:"photos_taken" json:"photos_taken"`
	QuestsCompleted    int64     `db:"quests_completed" json:"quests_completed"`
	AchievementsEarned int64     `db:"achievements_earned" json:"achievements_earned"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time `db:"updated_at" json:"updated_at"`
}

// LocationVisit records that a user visited a location. At most one row per
// (user, location) pair, enforced by the primary key.
type LocationVisit struct {
	UserID     string    `db:"user_id" json:"user_id"`
	LocationID string    `db:"location_id" json:"location_id"`
	VisitedAt  time.Time `db:"visited_at" json:"visited_at"`
}

// EarnedAchievement records a one-time achievement unlock. At most one row
// per (user, achievement) pair, enforced by the primary key.
type EarnedAchievement struct {
	UserID        string    `db:"user_id" json:"user_id"`
	AchievementID string    `db:"achievement_id" json:"achievement_id"`
	EarnedAt      time.Time `db:"earned_at" json:"earned_at"`
}

// Quest instance statuses. Absence of a UserQuest row means "not started".
// completed and abandoned are terminal.
const (
	QuestStatusActive    = "active"
	QuestStatusCompleted = "completed"
	QuestStatusAbandoned = "abandoned"
)

// UserQuest tracks one user's run through a quest. At most one row per
// (user, quest) pair; a finished quest cannot be restarted.
type UserQuest struct {
	UserID      string     `db:"user_id" json:"user_id"`
	QuestID     string     `db:"quest_id" json:"quest_id"`
	Status      string     `db:"status" json:"status"`
	CurrentStep int        `db:"current_step" json:"current_step"`
	StartedAt   time.Time  `db:"started_at" json:"started_at"`
	CompletedAt *time.Time `db:"completed_at" json:"completed_at"`
}

// LeaderboardEntry is one row of the global XP ranking.
type LeaderboardEntry struct {
	Position         int    `json:"position"`
	UserID           string `json:"user_id"`
	TotalXP          int64  `json:"total_xp"`
	Level            int    `json:"level"`
	Rank             string `json:"rank"`
	LocationsVisited int64  `json:"locations_visited"`
}
