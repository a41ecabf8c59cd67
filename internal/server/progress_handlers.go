package server

import (
	"time"

	"duet/internal/featureflags"
	"duet/internal/models"

	"github.com/gofiber/fiber/v2"
)

// GetDailyProgress handles GET /api/pairings/:id/progress/daily
func (s *Server) GetDailyProgress(c *fiber.Ctx) error {
	userID := currentUserID(c)
	pairingID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	day := c.Query("day")
	if day == "" {
		day = models.DayKeyOf(time.Now().UTC())
	}

	progress, err := s.progressService.Daily(c.Context(), userID, pairingID, day)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.JSON(progress)
}

// GetLifetimeProgress handles GET /api/pairings/:id/progress/lifetime
// @Summary Get lifetime progress
// @Description Returns the pairing's all-time counters from the caller's perspective. Gated by the lifetime_progress feature flag.
// @Tags progress
// @Produce json
// @Param id path int true "Pairing ID"
// @Success 200 {object} models.LifetimeProgress
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /pairings/{id}/progress/lifetime [get]
func (s *Server) GetLifetimeProgress(c *fiber.Ctx) error {
	userID := currentUserID(c)
	pairingID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if !s.featureFlags.Enabled(featureflags.FlagLifetimeProgress, userID) {
		return models.RespondWithError(c, fiber.StatusNotFound,
			models.NewNotFoundError("Resource", c.Path()))
	}

	progress, err := s.progressService.Lifetime(c.Context(), userID, pairingID)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.JSON(progress)
}
