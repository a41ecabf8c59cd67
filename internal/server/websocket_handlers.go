// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"context"
	"encoding/json"
	"log"
	"strconv"

	"duet/internal/cache"
	"duet/internal/featureflags"
	"duet/internal/models"
	"duet/internal/notifications"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

// IssueWSTicket handles POST /api/ws/ticket
// @Summary Issue a WebSocket ticket
// @Description Returns a short-lived single-use ticket for authenticating a WebSocket connection. The ticket is consumed on first use.
// @Tags websocket
// @Produce json
// @Success 200 {object} object{ticket=string,expires_in=int}
// @Failure 503 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /ws/ticket [post]
func (s *Server) IssueWSTicket(c *fiber.Ctx) error {
	userID := currentUserID(c)

	if s.redis == nil {
		return models.RespondWithError(c, fiber.StatusServiceUnavailable,
			models.NewBackendUnavailableError(nil))
	}

	ticket := uuid.NewString()
	key := cache.WSTicketKey(ticket)
	if err := s.redis.Set(c.Context(), key, userID.String(), cache.WSTicketTTL).Err(); err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewInternalError(err))
	}

	return c.JSON(fiber.Map{
		"ticket":     ticket,
		"expires_in": int(cache.WSTicketTTL.Seconds()),
	})
}

// presenceFrame is the inbound message shape on a pairing socket.
type presenceFrame struct {
	Type   string               `json:"type"`
	State  models.PresenceState `json:"state,omitempty"`
	Screen string               `json:"screen,omitempty"`
}

// PairingSocketHandler serves GET /api/ws/pairings/:id. The socket delivers
// the pairing's slot, pairing and presence events, and accepts presence and
// heartbeat frames from the member.
func (s *Server) PairingSocketHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		ctx := context.Background()

		userID, ok := conn.Locals("userID").(uuid.UUID)
		if !ok {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"unauthorized"}`))
			_ = conn.Close()
			return
		}

		pairingID64, err := strconv.ParseUint(conn.Params("id"), 10, 32)
		if err != nil || pairingID64 == 0 {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"invalid pairing id"}`))
			_ = conn.Close()
			return
		}
		pairingID := uint(pairingID64)

		// Membership gate; non-members see the same close as a missing pairing.
		pairing, err := s.pairingService.GetForUser(ctx, userID, pairingID)
		if err != nil || !pairing.IsAccepted() {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"pairing not available"}`))
			_ = conn.Close()
			return
		}

		client, err := s.hub.Register(userID, conn)
		if err != nil {
			log.Printf("WebSocket Pairing: Failed to register user %s: %v", userID, err)
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"`+err.Error()+`"}`))
			_ = conn.Close()
			return
		}

		events, cancel := s.propagator.Subscribe(
			notifications.PairingScope(pairingID),
			notifications.SubscribeOptions{SelfID: userID},
		)
		defer cancel()

		presenceEnabled := s.featureFlags.Enabled(featureflags.FlagPresence, userID)
		if presenceEnabled {
			if err := s.tracker.Track(ctx, pairingID, userID, models.PresenceOnline, ""); err != nil {
				log.Printf("presence track error for user %s: %v", userID, err)
			}
			defer s.tracker.Untrack(ctx, pairingID, userID)

			// Current occupants so the client renders presence without
			// waiting for the next transition.
			if snapshot, err := json.Marshal(fiber.Map{
				"type":    "presence_snapshot",
				"payload": s.tracker.Snapshot(ctx, pairingID),
			}); err == nil {
				client.TrySend(snapshot)
			}
		}

		// Forward subscription frames to the socket. The goroutine ends when
		// cancel() closes the events channel.
		go func() {
			for frame := range events {
				client.TrySend(frame)
			}
		}()

		client.IncomingHandler = func(_ *notifications.Client, message []byte) {
			var frame presenceFrame
			if err := json.Unmarshal(message, &frame); err != nil {
				return
			}
			if !presenceEnabled {
				return
			}

			switch frame.Type {
			case "presence":
				if err := s.tracker.Update(ctx, pairingID, userID, frame.State, frame.Screen); err != nil {
					log.Printf("presence update error for user %s: %v", userID, err)
				}
			case "heartbeat":
				s.tracker.Touch(ctx, pairingID, userID)
			}
		}

		go client.WritePump()
		client.ReadPump()
	})
}

// FeedSocketHandler serves GET /api/ws/feed: a read-only stream of slot and
// pairing events across every pairing the user is a member of. New pairings
// start flowing as soon as their accept event lands.
func (s *Server) FeedSocketHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		ctx := context.Background()

		userID, ok := conn.Locals("userID").(uuid.UUID)
		if !ok {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"unauthorized"}`))
			_ = conn.Close()
			return
		}

		pairingIDs, err := s.pairingRepo.PairingIDsForUser(ctx, userID)
		if err != nil {
			log.Printf("WebSocket Feed: Failed to load pairings for user %s: %v", userID, err)
			_ = conn.Close()
			return
		}

		client, err := s.hub.Register(userID, conn)
		if err != nil {
			log.Printf("WebSocket Feed: Failed to register user %s: %v", userID, err)
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"`+err.Error()+`"}`))
			_ = conn.Close()
			return
		}

		events, cancel := s.propagator.Subscribe(
			notifications.UserScope(userID),
			notifications.SubscribeOptions{SelfID: userID, PairingIDs: pairingIDs},
		)
		defer cancel()

		go func() {
			for frame := range events {
				client.TrySend(frame)
			}
		}()

		go client.WritePump()
		client.ReadPump()
	})
}

// GetPresenceSnapshot handles GET /api/pairings/:id/presence
func (s *Server) GetPresenceSnapshot(c *fiber.Ctx) error {
	userID := currentUserID(c)
	pairingID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if _, err := s.pairingService.GetForUser(c.Context(), userID, pairingID); err != nil {
		return models.RespondWithAppError(c, err)
	}

	if !s.featureFlags.Enabled(featureflags.FlagPresence, userID) {
		return c.JSON(fiber.Map{"members": []models.PresenceDoc{}})
	}

	members := s.tracker.Snapshot(c.Context(), pairingID)
	return c.JSON(fiber.Map{"members": members})
}
