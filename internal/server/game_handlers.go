// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"time"

	"duet/internal/models"

	"github.com/gofiber/fiber/v2"
)

// GetTodaysGames handles GET /api/pairings/:id/games/today
// @Summary Get or create today's games
// @Description Returns today's question slots for the pairing, materializing them on first access. Both members always see the same set.
// @Tags games
// @Produce json
// @Param id path int true "Pairing ID"
// @Param day query string false "Day key (YYYY-MM-DD), defaults to today UTC"
// @Success 200 {array} models.GameSlot
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /pairings/{id}/games/today [get]
func (s *Server) GetTodaysGames(c *fiber.Ctx) error {
	userID := currentUserID(c)
	pairingID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	day := c.Query("day")
	if day == "" {
		day = models.DayKeyOf(time.Now().UTC())
	}

	slots, err := s.gameService.GetOrCreateTodaysGames(c.Context(), userID, pairingID, day)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.JSON(slots)
}

// SubmitAnswer handles POST /api/slots/:id/answer
// @Summary Submit an answer for a slot
// @Description Records the caller's option for the slot. When both members have answered the slot completes and the match result is computed.
// @Tags games
// @Accept json
// @Produce json
// @Param id path int true "Slot ID"
// @Param request body object{option=int} true "Answer"
// @Success 200 {object} object{outcome=string,slot=models.GameSlot}
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Failure 410 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /slots/{id}/answer [post]
func (s *Server) SubmitAnswer(c *fiber.Ctx) error {
	userID := currentUserID(c)
	slotID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		Option *int `json:"option"`
	}
	if err := c.BodyParser(&req); err != nil || req.Option == nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Request body must include an option index"))
	}

	result, err := s.gameService.SubmitAnswer(c.Context(), userID, slotID, *req.Option)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.JSON(fiber.Map{
		"outcome": result.Outcome,
		"slot":    result.Slot,
	})
}

// GetSlot handles GET /api/slots/:id
func (s *Server) GetSlot(c *fiber.Ctx) error {
	userID := currentUserID(c)
	slotID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	slot, err := s.gameService.GetSlot(c.Context(), userID, slotID)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.JSON(slot)
}

// GetQuestionCategories handles GET /api/questions/categories
func (s *Server) GetQuestionCategories(c *fiber.Ctx) error {
	categories, err := s.questionRepo.Categories(c.Context())
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewInternalError(err))
	}

	return c.JSON(fiber.Map{"categories": categories})
}
