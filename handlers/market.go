package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"osint-market/models"
	"osint-market/services"
)

type MarketHandler struct {
	stats      *services.StatsService
	reputation *services.ReputationService
}

func NewMarketHandler(stats *services.StatsService, reputation *services.ReputationService) *MarketHandler {
	return &MarketHandler{stats: stats, reputation: reputation}
}

func SetupMarketRoutes(api fiber.Router, h *MarketHandler) {
	api.Get("/stats", h.Stats)
	api.Get("/reputation/leaderboard", h.Leaderboard)
	api.Get("/reputation/badges", h.BadgeCatalogue)
	api.Get("/reputation/:wallet", h.HunterProfile)
}

func (h *MarketHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.stats.Market(c.Context())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(stats)
}

func (h *MarketHandler) Leaderboard(c *fiber.Ctx) error {
	limit, _ := strconv.Atoi(c.Query("limit", "25"))
	board, err := h.reputation.Leaderboard(c.Context(), limit)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"leaderboard": board})
}

func (h *MarketHandler) HunterProfile(c *fiber.Ctx) error {
	profile, err := h.reputation.Profile(c.Context(), c.Params("wallet"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(profile)
}

func (h *MarketHandler) BadgeCatalogue(c *fiber.Ctx) error {
	return c.JSON(models.BadgeCatalogue)
}
