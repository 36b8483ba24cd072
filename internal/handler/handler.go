package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"city-quest/internal/knowledge"
	"city-quest/internal/repository"
	"city-quest/internal/service"
)

// Handler exposes the engine over HTTP.
type Handler struct {
	progress    *service.ProgressService
	quests      *service.QuestService
	leaderboard *service.LeaderboardService
	catalog     repository.CatalogStore
	knowledge   *knowledge.Service
}

func New(
	progress *service.ProgressService,
	quests *service.QuestService,
	leaderboard *service.LeaderboardService,
	catalog repository.CatalogStore,
	know *knowledge.Service,
) *Handler {
	return &Handler{
		progress:    progress,
		quests:      quests,
		leaderboard: leaderboard,
		catalog:     catalog,
		knowledge:   know,
	}
}

func (h *Handler) RegisterRoutes(app *fiber.App) {
	app.Get("/health", h.Health)

	api := app.Group("/api")

	game := api.Group("/game")
	game.Post("/visit", h.RecordVisit)
	game.Post("/phrase", h.LearnPhrase)
	game.Post("/photo", h.RecordPhoto)
	game.Get("/progress/:userID", h.GetProgress)
	game.Get("/stats/:userID", h.GetStats)
	game.Get("/achievements/:userID", h.GetAchievements)
	game.Get("/visits/:userID", h.GetVisits)
	game.Get("/phrases/:userID", h.GetPhrases)

	locations := api.Group("/locations")
	locations.Get("/", h.ListLocations)
	locations.Get("/nearby", h.NearbyLocations)
	locations.Get("/:id", h.GetLocation)

	quests := api.Group("/quests")
	quests.Get("/", h.ListQuests)
	quests.Get("/user/:userID", h.GetUserQuests)
	quests.Get("/:id", h.GetQuest)
	quests.Post("/:id/start", h.StartQuest)
	quests.Post("/:id/advance", h.AdvanceQuest)
	quests.Post("/:id/abandon", h.AbandonQuest)

	api.Get("/leaderboard", h.GetLeaderboard)
	api.Post("/knowledge/ask", h.Ask)
}

func (h *Handler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// respondError maps engine errors onto HTTP status codes.
func respondError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrLocationNotFound),
		errors.Is(err, service.ErrQuestNotFound),
		errors.Is(err, service.ErrUserQuestNotFound),
		errors.Is(err, service.ErrProgressNotFound),
		errors.Is(err, repository.ErrAchievementNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, service.ErrQuestAlreadyStarted),
		errors.Is(err, service.ErrQuestNotActive):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, service.ErrPhraseEmpty):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, service.ErrStoreUnavailable):
		log.Error().Err(err).Msg("store unavailable")
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error":     "store unavailable, retry later",
			"retryable": true,
		})
	default:
		log.Error().Err(err).Msg("request failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
	}
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
}
