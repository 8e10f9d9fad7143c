package emergency

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

var ErrNotFound = errors.New("emergency override not found")

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&Override{})
}

func (r *Repository) Create(ctx context.Context, override *Override) error {
	return r.db.WithContext(ctx).Create(override).Error
}

func (r *Repository) Get(ctx context.Context, id string) (*Override, error) {
	var o Override
	result := r.db.WithContext(ctx).First(&o, "id = ?", id)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return &o, result.Error
}

// ListCurrent returns the patient's non-terminated overrides, newest first,
// regardless of expiry; the caller derives state from timestamps.
func (r *Repository) ListCurrent(ctx context.Context, patientID string) ([]Override, error) {
	var rows []Override
	err := r.db.WithContext(ctx).
		Where("patient_id = ? AND terminated = ?", patientID, false).
		Order("granted_at DESC").
		Find(&rows).Error
	return rows, err
}

func (r *Repository) ListActive(ctx context.Context, now time.Time) ([]Override, error) {
	var rows []Override
	err := r.db.WithContext(ctx).
		Where("terminated = ? AND expires_at > ?", false, now).
		Order("granted_at DESC").
		Find(&rows).Error
	return rows, err
}

// MarkTerminated records early termination. The terminated guard makes the
// transition happen at most once.
func (r *Repository) MarkTerminated(ctx context.Context, id, terminatedBy, reason string) (bool, error) {
	now := time.Now().UTC()
	result := r.db.WithContext(ctx).Model(&Override{}).
		Where("id = ? AND terminated = ?", id, false).
		Updates(map[string]interface{}{
			"terminated":         true,
			"terminated_at":      now,
			"terminated_by":      terminatedBy,
			"termination_reason": reason,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// MarkExpiryAudited flags that the lazy-expiry audit entry has been written.
// The guard makes the flag flip exactly once even under concurrent queries.
func (r *Repository) MarkExpiryAudited(ctx context.Context, id string) (bool, error) {
	result := r.db.WithContext(ctx).Model(&Override{}).
		Where("id = ? AND expiry_audited = ?", id, false).
		Update("expiry_audited", true)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// RecordAccess bumps the access counter with a single SQL increment, so
// concurrent reads through the same override never lose counts.
func (r *Repository) RecordAccess(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&Override{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"access_count":     gorm.Expr("access_count + 1"),
			"last_accessed_at": time.Now().UTC(),
		}).Error
}
