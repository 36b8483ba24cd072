package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"city-quest/internal/model"
)

// Common errors for progress operations.
var (
	ErrProgressNotFound  = errors.New("progress not found")
	ErrUserQuestNotFound = errors.New("user quest not found")
)

// ProgressTx is the transactional view over one user's mutable state for the
// duration of a single event. All reads and uniqueness-constrained writes go
// through the same database transaction, so the achievement evaluator never
// sees counters that are stale relative to its own inserts.
type ProgressTx interface {
	// Progress returns the row-locked progress snapshot. Mutations to the
	// returned struct are persisted when the enclosing Update commits.
	Progress() *model.UserProgress

	// InsertVisit records a visit. Returns false if the (user, location)
	// pair already exists; the insert is then a no-op.
	InsertVisit(ctx context.Context, locationID string) (bool, error)

	// HasVisited reports whether a visit row exists for the location.
	HasVisited(ctx context.Context, locationID string) (bool, error)

	// InsertPhrase records a learned phrase. Returns false if the exact
	// phrase was already learned.
	InsertPhrase(ctx context.Context, phrase string) (bool, error)

	// EarnedAchievementIDs returns the set of achievement IDs the user has
	// already earned, read under this transaction.
	EarnedAchievementIDs(ctx context.Context) (map[string]bool, error)

	// InsertEarnedAchievement awards an achievement. Returns false if the
	// (user, achievement) pair already exists - the caller treats that as
	// "already earned, skip", never as a user-visible error.
	InsertEarnedAchievement(ctx context.Context, achievementID string) (bool, error)

	// GetUserQuest returns the user's instance of a quest.
	// Returns ErrUserQuestNotFound if no row exists.
	GetUserQuest(ctx context.Context, questID string) (*model.UserQuest, error)

	// InsertUserQuest creates a quest instance. Returns false if a row for
	// the (user, quest) pair already exists, regardless of its status.
	InsertUserQuest(ctx context.Context, uq *model.UserQuest) (bool, error)

	// UpdateUserQuest persists a quest instance's status and step.
	UpdateUserQuest(ctx context.Context, uq *model.UserQuest) error
}

// ProgressStore is the durable per-user state contract. Update is the
// atomic read-modify-write boundary every event runs inside.
type ProgressStore interface {
	Update(ctx context.Context, userID string, fn func(ctx context.Context, tx ProgressTx) error) error
	GetProgress(ctx context.Context, userID string) (*model.UserProgress, error)
	ListVisits(ctx context.Context, userID string) ([]*model.LocationVisit, error)
	VisitedLocationNames(ctx context.Context, userID string) ([]string, error)
	ListPhrases(ctx context.Context, userID string) ([]string, error)
	ListEarnedAchievements(ctx context.Context, userID string) ([]*model.EarnedAchievement, error)
	ListUserQuests(ctx context.Context, userID string) ([]*model.UserQuest, error)
	TopByXP(ctx context.Context, limit int) ([]*model.LeaderboardEntry, error)
}

// ProgressRepository is the PostgreSQL-backed ProgressStore.
type ProgressRepository struct {
	pool *pgxpool.Pool
}

// NewProgressRepository creates a new ProgressRepository instance.
func NewProgressRepository(pool *pgxpool.Pool) *ProgressRepository {
	return &ProgressRepository{pool: pool}
}

const progressColumns = `user_id, total_xp, locations_visited, phrases_learned, photos_taken, quests_completed, achievements_earned, created_at, updated_at`

func scanProgress(row pgx.Row) (*model.UserProgress, error) {
	var p model.UserProgress
	err := row.Scan(
		&p.UserID,
		&p.TotalXP,
		&p.LocationsVisited,
		&p.PhrasesLearned,
		&p.PhotosTaken,
		&p.QuestsCompleted,
		&p.AchievementsEarned,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Update runs fn inside a transaction holding a row lock on the user's
// progress. The row is created lazily if this is the user's first event.
// On success the final progress snapshot is persisted and the transaction
// commits; on error everything rolls back and no partial counters are
// visible.
func (r *ProgressRepository) Update(ctx context.Context, userID string, fn func(ctx context.Context, tx ProgressTx) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// Lazily create the progress row, then lock it for the whole event.
	_, err = tx.Exec(ctx, `
		INSERT INTO user_progress (user_id, created_at, updated_at)
		VALUES ($1, NOW(), NOW())
		ON CONFLICT (user_id) DO NOTHING
	`, userID)
	if err != nil {
		return fmt.Errorf("failed to ensure progress row: %w", err)
	}

	progress, err := scanProgress(tx.QueryRow(ctx, `
		SELECT `+progressColumns+`
		FROM user_progress
		WHERE user_id = $1
		FOR UPDATE
	`, userID))
	if err != nil {
		return fmt.Errorf("failed to lock progress row: %w", err)
	}

	ptx := &progressTx{tx: tx, progress: progress}
	if err := fn(ctx, ptx); err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		UPDATE user_progress
		SET total_xp = $2,
		    locations_visited = $3,
		    phrases_learned = $4,
		    photos_taken = $5,
		    quests_completed = $6,
		    achievements_earned = $7,
		    updated_at = NOW()
		WHERE user_id = $1
	`,
		userID,
		progress.TotalXP,
		progress.LocationsVisited,
		progress.PhrasesLearned,
		progress.PhotosTaken,
		progress.QuestsCompleted,
		progress.AchievementsEarned,
	)
	if err != nil {
		return fmt.Errorf("failed to persist progress: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit progress update: %w", err)
	}
	return nil
}

// progressTx implements ProgressTx over a pgx transaction.
type progressTx struct {
	tx       pgx.Tx
	progress *model.UserProgress
}

func (t *progressTx) Progress() *model.UserProgress {
	return t.progress
}

func (t *progressTx) InsertVisit(ctx context.Context, locationID string) (bool, error) {
	const query = `
		INSERT INTO user_location_visits (user_id, location_id, visited_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_id, location_id) DO NOTHING
	`
	tag, err := t.tx.Exec(ctx, query, t.progress.UserID, locationID)
	if err != nil {
		return false, fmt.Errorf("failed to insert visit: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (t *progressTx) HasVisited(ctx context.Context, locationID string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM user_location_visits WHERE user_id = $1 AND location_id = $2)`

	var exists bool
	if err := t.tx.QueryRow(ctx, query, t.progress.UserID, locationID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check visit: %w", err)
	}
	return exists, nil
}

func (t *progressTx) InsertPhrase(ctx context.Context, phrase string) (bool, error) {
	const query = `
		INSERT INTO user_phrases (user_id, phrase, learned_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_id, phrase) DO NOTHING
	`
	tag, err := t.tx.Exec(ctx, query, t.progress.UserID, phrase)
	if err != nil {
		return false, fmt.Errorf("failed to insert phrase: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (t *progressTx) EarnedAchievementIDs(ctx context.Context) (map[string]bool, error) {
	const query = `SELECT achievement_id FROM user_achievements WHERE user_id = $1`

	rows, err := t.tx.Query(ctx, query, t.progress.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to get earned achievements: %w", err)
	}
	defer rows.Close()

	earned := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan achievement id: %w", err)
		}
		earned[id] = true
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating earned achievements: %w", err)
	}

	return earned, nil
}

func (t *progressTx) InsertEarnedAchievement(ctx context.Context, achievementID string) (bool, error) {
	const query = `
		INSERT INTO user_achievements (user_id, achievement_id, earned_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_id, achievement_id) DO NOTHING
	`
	tag, err := t.tx.Exec(ctx, query, t.progress.UserID, achievementID)
	if err != nil {
		return false, fmt.Errorf("failed to insert earned achievement: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

const userQuestColumns = `user_id, quest_id, status, current_step, started_at, completed_at`

func scanUserQuest(row pgx.Row) (*model.UserQuest, error) {
	var uq model.UserQuest
	err := row.Scan(
		&uq.UserID,
		&uq.QuestID,
		&uq.Status,
		&uq.CurrentStep,
		&uq.StartedAt,
		&uq.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &uq, nil
}

func (t *progressTx) GetUserQuest(ctx context.Context, questID string) (*model.UserQuest, error) {
	const query = `
		SELECT ` + userQuestColumns + `
		FROM user_quests
		WHERE user_id = $1 AND quest_id = $2
		FOR UPDATE
	`

	uq, err := scanUserQuest(t.tx.QueryRow(ctx, query, t.progress.UserID, questID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserQuestNotFound
		}
		return nil, fmt.Errorf("failed to get user quest: %w", err)
	}
	return uq, nil
}

func (t *progressTx) InsertUserQuest(ctx context.Context, uq *model.UserQuest) (bool, error) {
	const query = `
		INSERT INTO user_quests (user_id, quest_id, status, current_step, started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, quest_id) DO NOTHING
	`
	tag, err := t.tx.Exec(ctx, query, uq.UserID, uq.QuestID, uq.Status, uq.CurrentStep, uq.StartedAt, uq.CompletedAt)
	if err != nil {
		return false, fmt.Errorf("failed to insert user quest: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (t *progressTx) UpdateUserQuest(ctx context.Context, uq *model.UserQuest) error {
	const query = `
		UPDATE user_quests
		SET status = $3, current_step = $4, completed_at = $5
		WHERE user_id = $1 AND quest_id = $2
	`
	tag, err := t.tx.Exec(ctx, query, uq.UserID, uq.QuestID, uq.Status, uq.CurrentStep, uq.CompletedAt)
	if err != nil {
		return fmt.Errorf("failed to update user quest: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserQuestNotFound
	}
	return nil
}

// GetProgress retrieves a user's progress snapshot.
// Returns ErrProgressNotFound if the user has never produced an event.
func (r *ProgressRepository) GetProgress(ctx context.Context, userID string) (*model.UserProgress, error) {
	const query = `
		SELECT ` + progressColumns + `
		FROM user_progress
		WHERE user_id = $1
	`

	p, err := scanProgress(r.pool.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProgressNotFound
		}
		return nil, fmt.Errorf("failed to get progress: %w", err)
	}
	return p, nil
}

// ListVisits retrieves all of a user's location visits, oldest first.
func (r *ProgressRepository) ListVisits(ctx context.Context, userID string) ([]*model.LocationVisit, error) {
	const query = `
		SELECT user_id, location_id, visited_at
		FROM user_location_visits
		WHERE user_id = $1
		ORDER BY visited_at
	`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list visits: %w", err)
	}
	defer rows.Close()

	var visits []*model.LocationVisit
	for rows.Next() {
		var v model.LocationVisit
		if err := rows.Scan(&v.UserID, &v.LocationID, &v.VisitedAt); err != nil {
			return nil, fmt.Errorf("failed to scan visit: %w", err)
		}
		visits = append(visits, &v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating visits: %w", err)
	}

	return visits, nil
}

// VisitedLocationNames retrieves the names of all locations a user has
// visited, oldest visit first. Used by the knowledge subsystem as a
// read-only consumer.
func (r *ProgressRepository) VisitedLocationNames(ctx context.Context, userID string) ([]string, error) {
	const query = `
		SELECT l.name
		FROM user_location_visits v
		JOIN locations l ON v.location_id = l.id
		WHERE v.user_id = $1
		ORDER BY v.visited_at
	`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list visited location names: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan location name: %w", err)
		}
		names = append(names, name)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating visited location names: %w", err)
	}

	return names, nil
}

// ListPhrases retrieves all phrases a user has learned, oldest first.
func (r *ProgressRepository) ListPhrases(ctx context.Context, userID string) ([]string, error) {
	const query = `
		SELECT phrase
		FROM user_phrases
		WHERE user_id = $1
		ORDER BY learned_at
	`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list phrases: %w", err)
	}
	defer rows.Close()

	var phrases []string
	for rows.Next() {
		var phrase string
		if err := rows.Scan(&phrase); err != nil {
			return nil, fmt.Errorf("failed to scan phrase: %w", err)
		}
		phrases = append(phrases, phrase)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating phrases: %w", err)
	}

	return phrases, nil
}

// ListEarnedAchievements retrieves all of a user's earned achievements,
// oldest first.
func (r *ProgressRepository) ListEarnedAchievements(ctx context.Context, userID string) ([]*model.EarnedAchievement, error) {
	const query = `
		SELECT user_id, achievement_id, earned_at
		FROM user_achievements
		WHERE user_id = $1
		ORDER BY earned_at
	`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list earned achievements: %w", err)
	}
	defer rows.Close()

	var earned []*model.EarnedAchievement
	for rows.Next() {
		var e model.EarnedAchievement
		if err := rows.Scan(&e.UserID, &e.AchievementID, &e.EarnedAt); err != nil {
			return nil, fmt.Errorf("failed to scan earned achievement: %w", err)
		}
		earned = append(earned, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating earned achievements: %w", err)
	}

	return earned, nil
}

// ListUserQuests retrieves all of a user's quest instances, newest first.
func (r *ProgressRepository) ListUserQuests(ctx context.Context, userID string) ([]*model.UserQuest, error) {
	const query = `
		SELECT ` + userQuestColumns + `
		FROM user_quests
		WHERE user_id = $1
		ORDER BY started_at DESC
	`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list user quests: %w", err)
	}
	defer rows.Close()

	var quests []*model.UserQuest
	for rows.Next() {
		uq, err := scanUserQuest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user quest: %w", err)
		}
		quests = append(quests, uq)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating user quests: %w", err)
	}

	return quests, nil
}

// TopByXP retrieves the top N users by total XP. Ties are broken by earliest
// progress creation, then user ID, so the ordering is deterministic across
// re-reads.
func (r *ProgressRepository) TopByXP(ctx context.Context, limit int) ([]*model.LeaderboardEntry, error) {
	const query = `
		SELECT user_id, total_xp, locations_visited
		FROM user_progress
		ORDER BY total_xp DESC, created_at ASC, user_id ASC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get top users: %w", err)
	}
	defer rows.Close()

	var entries []*model.LeaderboardEntry
	for rows.Next() {
		var e model.LeaderboardEntry
		if err := rows.Scan(&e.UserID, &e.TotalXP, &e.LocationsVisited); err != nil {
			return nil, fmt.Errorf("failed to scan leaderboard entry: %w", err)
		}
		entries = append(entries, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating leaderboard entries: %w", err)
	}

	return entries, nil
}
