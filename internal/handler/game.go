package handler

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"city-quest/internal/repository"
	"city-quest/internal/service"
)

type visitRequest struct {
	UserID       string `json:"user_id"`
	LocationID   string `json:"location_id"`
	LocationName string `json:"location_name"`
}

// RecordVisit awards a visit to a location, resolved by id or by name.
func (h *Handler) RecordVisit(c *fiber.Ctx) error {
	var req visitRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.UserID == "" {
		return badRequest(c, "user_id is required")
	}

	locationID := req.LocationID
	if locationID == "" {
		name := strings.TrimSpace(req.LocationName)
		if name == "" {
			return badRequest(c, "location_id or location_name is required")
		}
		loc, err := h.catalog.FindLocationByName(c.Context(), name)
		if err != nil {
			if errors.Is(err, repository.ErrLocationNotFound) {
				return respondError(c, service.ErrLocationNotFound)
			}
			return respondError(c, err)
		}
		locationID = loc.ID
	}

	result, err := h.progress.RecordVisit(c.Context(), req.UserID, locationID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(result)
}

type phraseRequest struct {
	UserID string `json:"user_id"`
	Phrase string `json:"phrase"`
}

func (h *Handler) LearnPhrase(c *fiber.Ctx) error {
	var req phraseRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.UserID == "" {
		return badRequest(c, "user_id is required")
	}

	result, err := h.progress.LearnPhrase(c.Context(), req.UserID, req.Phrase)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(result)
}

type photoRequest struct {
	UserID string `json:"user_id"`
}

func (h *Handler) RecordPhoto(c *fiber.Ctx) error {
	var req photoRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.UserID == "" {
		return badRequest(c, "user_id is required")
	}

	result, err := h.progress.RecordPhoto(c.Context(), req.UserID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(result)
}

func (h *Handler) GetProgress(c *fiber.Ctx) error {
	snapshot, err := h.progress.Snapshot(c.Context(), c.Params("userID"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(snapshot)
}

// GetStats returns a flat counter summary with the level recomputed from XP.
func (h *Handler) GetStats(c *fiber.Ctx) error {
	snapshot, err := h.progress.Snapshot(c.Context(), c.Params("userID"))
	if err != nil {
		return respondError(c, err)
	}
	p := snapshot.Progress
	return c.JSON(fiber.Map{
		"user_id":             p.UserID,
		"total_xp":            p.TotalXP,
		"level":               snapshot.Level,
		"rank":                snapshot.Rank,
		"xp_for_next":         snapshot.XPForNext,
		"progress_percent":    snapshot.ProgressPercent,
		"locations_visited":   p.LocationsVisited,
		"phrases_learned":     p.PhrasesLearned,
		"photos_taken":        p.PhotosTaken,
		"quests_completed":    p.QuestsCompleted,
		"achievements_earned": p.AchievementsEarned,
	})
}

func (h *Handler) GetAchievements(c *fiber.Ctx) error {
	statuses, err := h.progress.Achievements(c.Context(), c.Params("userID"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"achievements": statuses})
}

func (h *Handler) GetVisits(c *fiber.Ctx) error {
	visits, err := h.progress.Visits(c.Context(), c.Params("userID"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"visits": visits})
}

func (h *Handler) GetPhrases(c *fiber.Ctx) error {
	phrases, err := h.progress.Phrases(c.Context(), c.Params("userID"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"phrases": phrases})
}
