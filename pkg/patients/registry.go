package patients

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// Patient is the minimal slice of the registry this core needs: existence.
// Demographic CRUD is owned by the patient registry service; this table is
// shared reference data.
type Patient struct {
	ID        string    `json:"id" gorm:"primaryKey;column:id"`
	FirstName string    `json:"first_name,omitempty" gorm:"column:first_name"`
	LastName  string    `json:"last_name,omitempty" gorm:"column:last_name"`
	CreatedAt time.Time `json:"created_at" gorm:"column:created_at"`
}

func (Patient) TableName() string {
	return "patients"
}

type Registry struct {
	db *gorm.DB
}

func NewRegistry(db *gorm.DB) *Registry {
	return &Registry{db: db}
}

func (r *Registry) AutoMigrate() error {
	return r.db.AutoMigrate(&Patient{})
}

func (r *Registry) Exists(ctx context.Context, patientID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&Patient{}).
		Where("id = ?", patientID).
		Count(&count).Error
	return count > 0, err
}
