package alerts

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

var ErrNotFound = errors.New("alert not found")

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&Alert{})
}

func (r *Repository) Create(ctx context.Context, alert *Alert) error {
	return r.db.WithContext(ctx).Create(alert).Error
}

func (r *Repository) Get(ctx context.Context, id string) (*Alert, error) {
	var alert Alert
	result := r.db.WithContext(ctx).First(&alert, "id = ?", id)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return &alert, result.Error
}

func (r *Repository) ListByPatient(ctx context.Context, patientID string, includeResolved bool, limit int) ([]Alert, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	query := r.db.WithContext(ctx).Where("patient_id = ?", patientID)
	if !includeResolved {
		query = query.Where("resolved = ?", false)
	}

	var rows []Alert
	err := query.Order("created_at DESC").Limit(limit).Find(&rows).Error
	return rows, err
}

// MarkResolved flips the resolved flag. Returns false when the alert was
// already resolved, so resolution stays idempotent and the first resolver
// wins.
func (r *Repository) MarkResolved(ctx context.Context, id, resolvedBy, note string) (bool, error) {
	now := time.Now().UTC()
	result := r.db.WithContext(ctx).Model(&Alert{}).
		Where("id = ? AND resolved = ?", id, false).
		Updates(map[string]interface{}{
			"resolved":        true,
			"resolved_at":     now,
			"resolved_by":     resolvedBy,
			"resolution_note": note,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
