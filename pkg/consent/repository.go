package consent

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&Grant{})
}

func (r *Repository) Create(ctx context.Context, grant *Grant) error {
	return r.db.WithContext(ctx).Create(grant).Error
}

// FindCandidates loads the non-revoked grants for a patient and purpose.
// Expiry and grantee matching are applied in memory so the active-grant
// definition lives in one place (Grant.ActiveAt / Grant.Covers).
func (r *Repository) FindCandidates(ctx context.Context, patientID, purpose string) ([]Grant, error) {
	var grants []Grant
	err := r.db.WithContext(ctx).
		Where("patient_id = ? AND purpose = ? AND granted = ? AND revoked_at IS NULL", patientID, purpose, true).
		Order("granted_at DESC").
		Find(&grants).Error
	return grants, err
}

// Revoke marks a grant revoked. The guard on revoked_at keeps revocation
// idempotent under concurrent calls.
func (r *Repository) Revoke(ctx context.Context, id, revokedBy string) (bool, error) {
	now := time.Now().UTC()
	result := r.db.WithContext(ctx).Model(&Grant{}).
		Where("id = ? AND revoked_at IS NULL", id).
		Updates(map[string]interface{}{
			"granted":    false,
			"revoked_at": now,
			"revoked_by": revokedBy,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *Repository) ListByPatient(ctx context.Context, patientID string) ([]Grant, error) {
	var grants []Grant
	err := r.db.WithContext(ctx).
		Where("patient_id = ?", patientID).
		Order("created_at DESC").
		Find(&grants).Error
	return grants, err
}
