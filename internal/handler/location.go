package handler

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"city-quest/internal/repository"
	"city-quest/internal/service"
)

func (h *Handler) ListLocations(c *fiber.Ctx) error {
	locations, err := h.catalog.ListLocations(c.Context(), c.Query("category"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"locations": locations})
}

func (h *Handler) GetLocation(c *fiber.Ctx) error {
	loc, err := h.catalog.GetLocation(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, repository.ErrLocationNotFound) {
			return respondError(c, service.ErrLocationNotFound)
		}
		return respondError(c, err)
	}
	return c.JSON(loc)
}

// NearbyLocations lists locations within radius_km of the given point.
func (h *Handler) NearbyLocations(c *fiber.Ctx) error {
	lat, err := strconv.ParseFloat(c.Query("lat"), 64)
	if err != nil {
		return badRequest(c, "lat must be a number")
	}
	lng, err := strconv.ParseFloat(c.Query("lng"), 64)
	if err != nil {
		return badRequest(c, "lng must be a number")
	}
	radiusKM, err := strconv.ParseFloat(c.Query("radius_km", "2"), 64)
	if err != nil || radiusKM <= 0 {
		return badRequest(c, "radius_km must be a positive number")
	}

	locations, err := h.catalog.NearbyLocations(c.Context(), lat, lng, radiusKM)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"locations": locations})
}
