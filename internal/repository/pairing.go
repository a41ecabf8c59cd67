package repository

import (
	"context"
	"errors"
	"time"

	"duet/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PairingRepository defines the interface for pairing data operations
type PairingRepository interface {
	Create(ctx context.Context, pairing *models.Pairing) error
	GetByID(ctx context.Context, id uint) (*models.Pairing, error)
	GetByInviteHash(ctx context.Context, hash string) (*models.Pairing, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Pairing, error)
	PairingIDsForUser(ctx context.Context, userID uuid.UUID) ([]uint, error)
	AcceptPending(ctx context.Context, pairingID uint, counterpartID uuid.UUID, acceptedAt time.Time) (int64, error)
	UpdateStatus(ctx context.Context, pairingID uint, status models.PairingStatus) error
	UpdateSettings(ctx context.Context, pairingID uint, quota int, categories string) error
}

// pairingRepository implements PairingRepository
type pairingRepository struct {
	db *gorm.DB
}

// NewPairingRepository creates a new pairing repository
func NewPairingRepository(db *gorm.DB) PairingRepository {
	return &pairingRepository{db: db}
}

func (r *pairingRepository) Create(ctx context.Context, pairing *models.Pairing) error {
	if err := r.db.WithContext(ctx).Create(pairing).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// Invite hash collided; the caller regenerates the code and retries.
			return models.NewConflictError("invite code already in use")
		}
		return models.NewInternalError(err)
	}
	return nil
}

func (r *pairingRepository) GetByID(ctx context.Context, id uint) (*models.Pairing, error) {
	var pairing models.Pairing
	if err := r.db.WithContext(ctx).First(&pairing, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Pairing", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &pairing, nil
}

func (r *pairingRepository) GetByInviteHash(ctx context.Context, hash string) (*models.Pairing, error) {
	var pairing models.Pairing
	if err := r.db.WithContext(ctx).
		Where("invite_code_hash = ?", hash).
		First(&pairing).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Invitation", hash)
		}
		return nil, models.NewInternalError(err)
	}
	return &pairing, nil
}

func (r *pairingRepository) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Pairing, error) {
	var pairings []models.Pairing
	if err := r.db.WithContext(ctx).
		Where("initiator_id = ? OR counterpart_id = ?", userID, userID).
		Order("created_at DESC").
		Find(&pairings).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return pairings, nil
}

func (r *pairingRepository) PairingIDsForUser(ctx context.Context, userID uuid.UUID) ([]uint, error) {
	var ids []uint
	if err := r.db.WithContext(ctx).
		Model(&models.Pairing{}).
		Where("(initiator_id = ? OR counterpart_id = ?) AND status = ?",
			userID, userID, models.PairingAccepted).
		Pluck("id", &ids).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return ids, nil
}

// AcceptPending claims a pending invitation for the counterpart in one
// conditional update. Exactly one of two racing accepts sees RowsAffected ==
// 1; the caller classifies a zero by re-reading the row.
func (r *pairingRepository) AcceptPending(ctx context.Context, pairingID uint, counterpartID uuid.UUID, acceptedAt time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Pairing{}).
		Where("id = ? AND status = ? AND counterpart_id IS NULL AND initiator_id <> ? AND invite_expires_at > ?",
			pairingID, models.PairingPending, counterpartID, acceptedAt).
		Updates(map[string]interface{}{
			"status":         models.PairingAccepted,
			"counterpart_id": counterpartID,
			"accepted_at":    acceptedAt,
		})
	if result.Error != nil {
		return 0, models.NewInternalError(result.Error)
	}
	return result.RowsAffected, nil
}

func (r *pairingRepository) UpdateStatus(ctx context.Context, pairingID uint, status models.PairingStatus) error {
	if err := r.db.WithContext(ctx).
		Model(&models.Pairing{}).
		Where("id = ?", pairingID).
		Update("status", status).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// UpdateSettings changes quota and categories on an accepted pairing. Slots
// already created for today keep the parameters captured at creation time.
func (r *pairingRepository) UpdateSettings(ctx context.Context, pairingID uint, quota int, categories string) error {
	result := r.db.WithContext(ctx).
		Model(&models.Pairing{}).
		Where("id = ? AND status = ?", pairingID, models.PairingAccepted).
		Updates(map[string]interface{}{
			"daily_quota": quota,
			"categories":  categories,
		})
	if result.Error != nil {
		return models.NewInternalError(result.Error)
	}
	if result.RowsAffected == 0 {
		return models.NewNotFoundError("Pairing", pairingID)
	}
	return nil
}
