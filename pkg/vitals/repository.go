package vitals

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrNotFound = errors.New("measurement not found")

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&Measurement{})
}

// CreateIfAbsent inserts the measurement unless a row with the same identity
// tuple already exists. The ON CONFLICT DO NOTHING insert is atomic, so two
// concurrent submissions of the same tuple cannot both be accepted as new.
// Returns false when the row was a duplicate.
func (r *Repository) CreateIfAbsent(ctx context.Context, m *Measurement) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(m)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *Repository) Get(ctx context.Context, id string) (*Measurement, error) {
	var m Measurement
	result := r.db.WithContext(ctx).First(&m, "id = ?", id)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return &m, result.Error
}

func (r *Repository) ListByPatient(ctx context.Context, patientID, vitalType string, limit int) ([]Measurement, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	query := r.db.WithContext(ctx).Where("patient_id = ?", patientID)
	if vitalType != "" {
		query = query.Where("vital_type = ?", vitalType)
	}

	var rows []Measurement
	err := query.Order("recorded_at DESC").Limit(limit).Find(&rows).Error
	return rows, err
}

// LatestPerType returns the most recent measurement for each vital type a
// patient has on record, for the unified profile view.
func (r *Repository) LatestPerType(ctx context.Context, patientID string) ([]Measurement, error) {
	var rows []Measurement
	err := r.db.WithContext(ctx).Raw(`
		SELECT DISTINCT ON (vital_type) *
		FROM vitals
		WHERE patient_id = ?
		ORDER BY vital_type, recorded_at DESC
	`, patientID).Scan(&rows).Error
	return rows, err
}
