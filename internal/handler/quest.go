package handler

import (
	"github.com/gofiber/fiber/v2"
)

type questActionRequest struct {
	UserID string `json:"user_id"`
}

func (h *Handler) ListQuests(c *fiber.Ctx) error {
	quests, err := h.catalog.ListQuests(c.Context())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"quests": quests})
}

func (h *Handler) GetQuest(c *fiber.Ctx) error {
	quest, err := h.quests.Quest(c.Context(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(quest)
}

func (h *Handler) GetUserQuests(c *fiber.Ctx) error {
	quests, err := h.quests.UserQuests(c.Context(), c.Params("userID"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"quests": quests})
}

func (h *Handler) StartQuest(c *fiber.Ctx) error {
	var req questActionRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.UserID == "" {
		return badRequest(c, "user_id is required")
	}

	result, err := h.quests.Start(c.Context(), req.UserID, c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(result)
}

func (h *Handler) AdvanceQuest(c *fiber.Ctx) error {
	var req questActionRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.UserID == "" {
		return badRequest(c, "user_id is required")
	}

	result, err := h.quests.Advance(c.Context(), req.UserID, c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(result)
}

func (h *Handler) AbandonQuest(c *fiber.Ctx) error {
	var req questActionRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.UserID == "" {
		return badRequest(c, "user_id is required")
	}

	result, err := h.quests.Abandon(c.Context(), req.UserID, c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(result)
}
