// Package repository provides data access layer implementations.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"city-quest/internal/model"
)

// Common errors for catalog lookups.
var (
	ErrLocationNotFound    = errors.New("location not found")
	ErrAchievementNotFound = errors.New("achievement not found")
	ErrQuestNotFound       = errors.New("quest not found")
)

// CatalogStore is the read-only reference data contract the engine consumes.
// Catalog entities are immutable for the duration of an engine call.
type CatalogStore interface {
	GetLocation(ctx context.Context, id string) (*model.Location, error)
	FindLocationByName(ctx context.Context, name string) (*model.Location, error)
	ListLocations(ctx context.Context, category string) ([]*model.Location, error)
	NearbyLocations(ctx context.Context, lat, lng, radiusKM float64) ([]*model.Location, error)
	GetAchievement(ctx context.Context, id string) (*model.Achievement, error)
	ListAchievements(ctx context.Context) ([]*model.Achievement, error)
	GetQuest(ctx context.Context, id string) (*model.Quest, error)
	ListQuests(ctx context.Context) ([]*model.Quest, error)
}

// CatalogRepository is the PostgreSQL-backed CatalogStore.
type CatalogRepository struct {
	pool *pgxpool.Pool
}

// NewCatalogRepository creates a new CatalogRepository instance.
func NewCatalogRepository(pool *pgxpool.Pool) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

const locationColumns = `id, name, local_name, description, category, latitude, longitude, xp_reward, image_url, created_at`

func scanLocation(row pgx.Row) (*model.Location, error) {
	var loc model.Location
	err := row.Scan(
		&loc.ID,
		&loc.Name,
		&loc.LocalName,
		&loc.Description,
		&loc.Category,
		&loc.Latitude,
		&loc.Longitude,
		&loc.XPReward,
		&loc.ImageURL,
		&loc.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &loc, nil
}

// GetLocation retrieves a location by ID.
// Returns ErrLocationNotFound if the location does not exist.
func (r *CatalogRepository) GetLocation(ctx context.Context, id string) (*model.Location, error) {
	const query = `
		SELECT ` + locationColumns + `
		FROM locations
		WHERE id = $1
	`

	loc, err := scanLocation(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLocationNotFound
		}
		return nil, fmt.Errorf("failed to get location: %w", err)
	}
	return loc, nil
}

// FindLocationByName retrieves the first location whose name contains the
// given substring, case-insensitively.
func (r *CatalogRepository) FindLocationByName(ctx context.Context, name string) (*model.Location, error) {
	const query = `
		SELECT ` + locationColumns + `
		FROM locations
		WHERE name ILIKE '%' || $1 || '%'
		ORDER BY name
		LIMIT 1
	`

	loc, err := scanLocation(r.pool.QueryRow(ctx, query, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLocationNotFound
		}
		return nil, fmt.Errorf("failed to find location by name: %w", err)
	}
	return loc, nil
}

// ListLocations retrieves all locations, optionally filtered by category.
func (r *CatalogRepository) ListLocations(ctx context.Context, category string) ([]*model.Location, error) {
	query := `
		SELECT ` + locationColumns + `
		FROM locations
		ORDER BY name
	`
	args := []any{}
	if category != "" {
		query = `
			SELECT ` + locationColumns + `
			FROM locations
			WHERE category = $1
			ORDER BY name
		`
		args = append(args, category)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list locations: %w", err)
	}
	defer rows.Close()

	var locations []*model.Location
	for rows.Next() {
		loc, err := scanLocation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan location: %w", err)
		}
		locations = append(locations, loc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating locations: %w", err)
	}

	return locations, nil
}

// NearbyLocations retrieves locations within radiusKM of (lat, lng), nearest
// first. Distance is great-circle (haversine) in kilometers.
func (r *CatalogRepository) NearbyLocations(ctx context.Context, lat, lng, radiusKM float64) ([]*model.Location, error) {
	const query = `
		SELECT ` + locationColumns + `
		FROM (
			SELECT *, 6371 * acos(least(1.0,
				cos(radians($1)) * cos(radians(latitude)) * cos(radians(longitude) - radians($2))
				+ sin(radians($1)) * sin(radians(latitude))
			)) AS distance_km
			FROM locations
		) l
		WHERE distance_km <= $3
		ORDER BY distance_km
	`

	rows, err := r.pool.Query(ctx, query, lat, lng, radiusKM)
	if err != nil {
		return nil, fmt.Errorf("failed to query nearby locations: %w", err)
	}
	defer rows.Close()

	var locations []*model.Location
	for rows.Next() {
		loc, err := scanLocation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan location: %w", err)
		}
		locations = append(locations, loc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating nearby locations: %w", err)
	}

	return locations, nil
}

const achievementColumns = `id, name, description, icon, xp_reward, requirement_type, requirement_value, is_secret, category, created_at`

func scanAchievement(row pgx.Row) (*model.Achievement, error) {
	var a model.Achievement
	err := row.Scan(
		&a.ID,
		&a.Name,
		&a.Description,
		&a.Icon,
		&a.XPReward,
		&a.RequirementType,
		&a.RequirementValue,
		&a.IsSecret,
		&a.Category,
		&a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// GetAchievement retrieves an achievement by ID.
// Returns ErrAchievementNotFound if the achievement does not exist.
func (r *CatalogRepository) GetAchievement(ctx context.Context, id string) (*model.Achievement, error) {
	const query = `
		SELECT ` + achievementColumns + `
		FROM achievements
		WHERE id = $1
	`

	a, err := scanAchievement(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAchievementNotFound
		}
		return nil, fmt.Errorf("failed to get achievement: %w", err)
	}
	return a, nil
}

// ListAchievements retrieves all achievements in catalog order. The order is
// stable across reads: the evaluator and the notification list both depend
// on it.
func (r *CatalogRepository) ListAchievements(ctx context.Context) ([]*model.Achievement, error) {
	const query = `
		SELECT ` + achievementColumns + `
		FROM achievements
		ORDER BY requirement_type, requirement_value, id
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list achievements: %w", err)
	}
	defer rows.Close()

	var achievements []*model.Achievement
	for rows.Next() {
		a, err := scanAchievement(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan achievement: %w", err)
		}
		achievements = append(achievements, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating achievements: %w", err)
	}

	return achievements, nil
}

const questColumns = `id, name, description, story_intro, xp_reward, steps, difficulty, estimated_time, created_at`

func scanQuest(row pgx.Row) (*model.Quest, error) {
	var q model.Quest
	var stepsJSON []byte
	err := row.Scan(
		&q.ID,
		&q.Name,
		&q.Description,
		&q.StoryIntro,
		&q.XPReward,
		&stepsJSON,
		&q.Difficulty,
		&q.EstimatedTime,
		&q.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(stepsJSON) > 0 {
		if err := json.Unmarshal(stepsJSON, &q.Steps); err != nil {
			return nil, fmt.Errorf("failed to decode quest steps: %w", err)
		}
	}
	return &q, nil
}

// GetQuest retrieves a quest by ID, including its ordered step list.
// Returns ErrQuestNotFound if the quest does not exist.
func (r *CatalogRepository) GetQuest(ctx context.Context, id string) (*model.Quest, error) {
	const query = `
		SELECT ` + questColumns + `
		FROM quests
		WHERE id = $1
	`

	q, err := scanQuest(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrQuestNotFound
		}
		return nil, fmt.Errorf("failed to get quest: %w", err)
	}
	return q, nil
}

// ListQuests retrieves all quests.
func (r *CatalogRepository) ListQuests(ctx context.Context) ([]*model.Quest, error) {
	const query = `
		SELECT ` + questColumns + `
		FROM quests
		ORDER BY name
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list quests: %w", err)
	}
	defer rows.Close()

	var quests []*model.Quest
	for rows.Next() {
		q, err := scanQuest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan quest: %w", err)
		}
		quests = append(quests, q)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating quests: %w", err)
	}

	return quests, nil
}

// defaultAchievement describes one seeded catalog entry.
type defaultAchievement struct {
	name        string
	description string
	icon        string
	reqType     string
	reqValue    int64
}

// defaultAchievements is the built-in achievement ladder. XP scales with
// difficulty: 50 + 10 * requirement_value.
var defaultAchievements = []defaultAchievement{
	{"First Steps", "Visited your first location", "👣", model.RequirementVisits, 1},
	{"Explorer", "Visited 5 locations", "🧭", model.RequirementVisits, 5},
	{"Adventurer", "Visited 10 locations", "🗺️", model.RequirementVisits, 10},
	{"Pathfinder", "Visited 25 locations", "⛰️", model.RequirementVisits, 25},
	{"Cartographer", "Visited 50 locations", "🌍", model.RequirementVisits, 50},
	{"First Words", "Learned your first phrase", "💬", model.RequirementPhrases, 1},
	{"Linguist", "Learned 5 phrases", "🗣️", model.RequirementPhrases, 5},
	{"Polyglot", "Learned 15 phrases", "📚", model.RequirementPhrases, 15},
	{"Shutterbug", "Took your first photo", "📷", model.RequirementPhotos, 1},
	{"Photographer", "Took 10 photos", "🎞️", model.RequirementPhotos, 10},
	{"Visual Storyteller", "Took 50 photos", "🎬", model.RequirementPhotos, 50},
	{"Quest Novice", "Completed your first quest", "⚔️", model.RequirementQuests, 1},
	{"Quest Veteran", "Completed 5 quests", "🏅", model.RequirementQuests, 5},
}

// SeedAchievements inserts the default achievement catalog. Idempotent:
// entries that already exist by name are left untouched.
func (r *CatalogRepository) SeedAchievements(ctx context.Context) (int, error) {
	const query = `
		INSERT INTO achievements (id, name, description, icon, xp_reward, requirement_type, requirement_value, is_secret, category, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, FALSE, 'general', NOW())
		ON CONFLICT (name) DO NOTHING
	`

	seeded := 0
	for _, a := range defaultAchievements {
		xp := 50 + 10*a.reqValue
		tag, err := r.pool.Exec(ctx, query, uuid.NewString(), a.name, a.description, a.icon, xp, a.reqType, a.reqValue)
		if err != nil {
			return seeded, fmt.Errorf("failed to seed achievement %q: %w", a.name, err)
		}
		seeded += int(tag.RowsAffected())
	}
	return seeded, nil
}
