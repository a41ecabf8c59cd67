package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"duet/internal/models"
	"duet/internal/observability"
	"duet/internal/questionbank"
	"duet/internal/repository"
	"duet/internal/validation"

	"github.com/google/uuid"
)

const (
	inviteCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ234567"
	inviteCodeLength   = 10
	inviteCodeRetries  = 3
)

// generateInviteCode draws a random code from the base32 alphabet. Codes are
// shared out of band; only their SHA-256 hash is stored.
func generateInviteCode() (string, error) {
	buf := make([]byte, inviteCodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate invite code: %w", err)
	}
	for i, b := range buf {
		buf[i] = inviteCodeAlphabet[int(b)%len(inviteCodeAlphabet)]
	}
	return string(buf), nil
}

func hashInviteCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

// PairingService provides pairing and invitation business logic.
type PairingService struct {
	pairingRepo  repository.PairingRepository
	bank         *questionbank.Bank
	publisher    EventPublisher
	defaultQuota int
	inviteTTL    time.Duration
}

// NewPairingService returns a new PairingService.
func NewPairingService(
	pairingRepo repository.PairingRepository,
	bank *questionbank.Bank,
	publisher EventPublisher,
	defaultQuota int,
	inviteTTL time.Duration,
) *PairingService {
	return &PairingService{
		pairingRepo:  pairingRepo,
		bank:         bank,
		publisher:    orNoop(publisher),
		defaultQuota: defaultQuota,
		inviteTTL:    inviteTTL,
	}
}

// CreateInvite opens a pending pairing and returns it with the one-time
// invite code. The code is returned exactly once; the row keeps only a hash.
func (s *PairingService) CreateInvite(
	ctx context.Context, initiatorID uuid.UUID, kind models.PairingKind, quota int, categories []string,
) (*models.Pairing, string, error) {
	if err := validation.ValidateKind(kind); err != nil {
		return nil, "", models.NewValidationError(err.Error())
	}
	if len(categories) == 0 {
		categories = s.bank.DefaultCategories(kind)
	}
	if err := validation.ValidateCategories(kind, categories, s.bank); err != nil {
		return nil, "", models.NewValidationError(err.Error())
	}

	pairing := &models.Pairing{
		InitiatorID:     initiatorID,
		Kind:            kind,
		Status:          models.PairingPending,
		DailyQuota:      validation.ClampQuota(quota, s.defaultQuota),
		InviteExpiresAt: time.Now().Add(s.inviteTTL),
	}
	pairing.SetCategoryList(categories)

	// Retry on hash collisions, which are astronomically rare but cheap to
	// handle.
	var code string
	for attempt := 0; ; attempt++ {
		var err error
		if code, err = generateInviteCode(); err != nil {
			return nil, "", models.NewInternalError(err)
		}
		pairing.InviteCodeHash = hashInviteCode(code)
		err = s.pairingRepo.Create(ctx, pairing)
		if err == nil {
			break
		}
		if !errors.Is(err, models.ErrConflict) || attempt >= inviteCodeRetries {
			return nil, "", err
		}
	}

	return pairing, code, nil
}

// AcceptInvite redeems an invite code for the calling user, activating the
// pairing. Exactly one caller can win a concurrent redemption.
func (s *PairingService) AcceptInvite(ctx context.Context, userID uuid.UUID, code string) (*models.Pairing, error) {
	if err := validation.ValidateInviteCode(code); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	pairing, err := s.pairingRepo.GetByInviteHash(ctx, hashInviteCode(code))
	if err != nil {
		return nil, err
	}

	now := time.Now()
	rows, err := s.pairingRepo.AcceptPending(ctx, pairing.ID, userID, now)
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, s.classifyAcceptFailure(ctx, pairing.ID, userID, now)
	}

	accepted, err := s.pairingRepo.GetByID(ctx, pairing.ID)
	if err != nil {
		return nil, err
	}
	s.publisher.PublishPairingEvent(ctx, models.NewPairingEvent(accepted))
	return accepted, nil
}

// classifyAcceptFailure re-reads the pairing to explain why the conditional
// accept matched no rows.
func (s *PairingService) classifyAcceptFailure(ctx context.Context, pairingID uint, userID uuid.UUID, now time.Time) error {
	pairing, err := s.pairingRepo.GetByID(ctx, pairingID)
	if err != nil {
		return err
	}
	switch {
	case pairing.InitiatorID == userID:
		return models.NewValidationError("You cannot accept your own invitation")
	case pairing.IsAccepted():
		return models.NewConflictError("Invitation has already been accepted")
	case pairing.InviteExpired(now) || pairing.Status == models.PairingExpired:
		// Lazily retire the lapsed invitation.
		if updateErr := s.pairingRepo.UpdateStatus(ctx, pairingID, models.PairingExpired); updateErr != nil {
			observability.GlobalLogger.WarnContext(ctx, "failed to retire lapsed invitation",
				slog.Uint64("pairing_id", uint64(pairingID)),
				slog.String("error", updateErr.Error()),
			)
		}
		return models.NewExpiredError("Invitation")
	default:
		return models.NewConflictError("Invitation can no longer be accepted")
	}
}

// DeclineInvite declines a pending invitation by its code.
func (s *PairingService) DeclineInvite(ctx context.Context, userID uuid.UUID, pairingID uint, code string) (*models.Pairing, error) {
	if err := validation.ValidateInviteCode(code); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	pairing, err := s.pairingRepo.GetByInviteHash(ctx, hashInviteCode(code))
	if err != nil {
		return nil, err
	}
	if pairing.ID != pairingID {
		return nil, models.NewNotFoundError("Pairing", pairingID)
	}
	if pairing.InitiatorID == userID {
		return nil, models.NewValidationError("You cannot decline your own invitation")
	}
	if pairing.Status != models.PairingPending {
		return nil, models.NewConflictError("Invitation is no longer pending")
	}

	if err := s.pairingRepo.UpdateStatus(ctx, pairing.ID, models.PairingDeclined); err != nil {
		return nil, err
	}
	declined, err := s.pairingRepo.GetByID(ctx, pairing.ID)
	if err != nil {
		return nil, err
	}
	s.publisher.PublishPairingEvent(ctx, models.NewPairingEvent(declined))
	return declined, nil
}

// GetForUser returns the pairing when the caller is a member. Non-members see
// NotFound so pairing ids do not leak.
func (s *PairingService) GetForUser(ctx context.Context, userID uuid.UUID, pairingID uint) (*models.Pairing, error) {
	pairing, err := s.pairingRepo.GetByID(ctx, pairingID)
	if err != nil {
		return nil, err
	}
	if !pairing.Involves(userID) {
		return nil, models.NewNotFoundError("Pairing", pairingID)
	}
	return pairing, nil
}

// ListForUser returns every pairing the user is a member of.
func (s *PairingService) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Pairing, error) {
	return s.pairingRepo.ListForUser(ctx, userID)
}

// UpdateSettings changes the daily quota and category selection of an
// accepted pairing. The change applies the next time a day materializes;
// already created days keep their slot set.
func (s *PairingService) UpdateSettings(
	ctx context.Context, userID uuid.UUID, pairingID uint, quota int, categories []string,
) (*models.Pairing, error) {
	pairing, err := s.GetForUser(ctx, userID, pairingID)
	if err != nil {
		return nil, err
	}
	if !pairing.IsAccepted() {
		return nil, models.NewConflictError("Pairing is not active")
	}

	if len(categories) == 0 {
		categories = pairing.CategoryList()
	}
	if err := validation.ValidateCategories(pairing.Kind, categories, s.bank); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	updated := *pairing
	updated.DailyQuota = validation.ClampQuota(quota, pairing.DailyQuota)
	updated.SetCategoryList(categories)
	if err := s.pairingRepo.UpdateSettings(ctx, pairingID, updated.DailyQuota, updated.Categories); err != nil {
		return nil, err
	}

	return s.pairingRepo.GetByID(ctx, pairingID)
}
