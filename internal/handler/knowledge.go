package handler

import (
	"github.com/gofiber/fiber/v2"
)

type askRequest struct {
	UserID   string `json:"user_id"`
	Question string `json:"question"`
}

// Ask answers a free-form question from the knowledge base.
func (h *Handler) Ask(c *fiber.Ctx) error {
	var req askRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.Question == "" {
		return badRequest(c, "question is required")
	}

	answer, err := h.knowledge.Ask(c.Context(), req.UserID, req.Question)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(answer)
}
