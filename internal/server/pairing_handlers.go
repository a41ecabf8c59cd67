// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"duet/internal/models"

	"github.com/gofiber/fiber/v2"
)

// CreatePairing handles POST /api/pairings
// @Summary Create a pairing invite
// @Description Creates a pending pairing and returns a single-use invite code. The code is shown exactly once; only its hash is stored.
// @Tags pairings
// @Accept json
// @Produce json
// @Param request body object{kind=string,daily_quota=int,categories=[]string} true "Invite request"
// @Success 201 {object} object{pairing=models.Pairing,invite_code=string}
// @Failure 400 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /pairings [post]
func (s *Server) CreatePairing(c *fiber.Ctx) error {
	userID := currentUserID(c)

	var req struct {
		Kind       models.PairingKind `json:"kind"`
		DailyQuota int                `json:"daily_quota"`
		Categories []string           `json:"categories"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	pairing, code, err := s.pairingService.CreateInvite(
		c.Context(), userID, req.Kind, req.DailyQuota, req.Categories)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"pairing":     pairing,
		"invite_code": code,
	})
}

// AcceptPairing handles POST /api/pairings/accept
// @Summary Accept a pairing invite
// @Description Joins a pending pairing using its invite code. Accepting is first-come-first-served and single-shot.
// @Tags pairings
// @Accept json
// @Produce json
// @Param request body object{invite_code=string} true "Accept request"
// @Success 200 {object} models.Pairing
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Failure 410 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /pairings/accept [post]
func (s *Server) AcceptPairing(c *fiber.Ctx) error {
	userID := currentUserID(c)

	var req struct {
		InviteCode string `json:"invite_code"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	pairing, err := s.pairingService.AcceptInvite(c.Context(), userID, req.InviteCode)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.JSON(pairing)
}

// DeclinePairing handles POST /api/pairings/:id/decline
func (s *Server) DeclinePairing(c *fiber.Ctx) error {
	userID := currentUserID(c)
	pairingID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		InviteCode string `json:"invite_code"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	pairing, err := s.pairingService.DeclineInvite(c.Context(), userID, pairingID, req.InviteCode)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.JSON(pairing)
}

// GetPairings handles GET /api/pairings
func (s *Server) GetPairings(c *fiber.Ctx) error {
	userID := currentUserID(c)

	pairings, err := s.pairingService.ListForUser(c.Context(), userID)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.JSON(pairings)
}

// GetPairing handles GET /api/pairings/:id
func (s *Server) GetPairing(c *fiber.Ctx) error {
	userID := currentUserID(c)
	pairingID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	pairing, err := s.pairingService.GetForUser(c.Context(), userID, pairingID)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.JSON(pairing)
}

// UpdatePairingSettings handles PATCH /api/pairings/:id/settings
// @Summary Update pairing settings
// @Description Changes the daily quota and category mix for an active pairing. Already-generated days keep their shape.
// @Tags pairings
// @Accept json
// @Produce json
// @Param id path int true "Pairing ID"
// @Param request body object{daily_quota=int,categories=[]string} true "Settings"
// @Success 200 {object} models.Pairing
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /pairings/{id}/settings [patch]
func (s *Server) UpdatePairingSettings(c *fiber.Ctx) error {
	userID := currentUserID(c)
	pairingID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		DailyQuota int      `json:"daily_quota"`
		Categories []string `json:"categories"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	pairing, err := s.pairingService.UpdateSettings(
		c.Context(), userID, pairingID, req.DailyQuota, req.Categories)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.JSON(pairing)
}
