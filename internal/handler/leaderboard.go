package handler

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
)

func (h *Handler) GetLeaderboard(c *fiber.Ctx) error {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return badRequest(c, "limit must be an integer")
		}
		limit = n
	}

	entries, err := h.leaderboard.TopN(c.Context(), limit)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"leaderboard": entries})
}
