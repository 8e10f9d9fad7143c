package vitals

import "time"

// Measurement sources.
const (
	SourceManual   = "manual"
	SourceDoctor   = "doctor"
	SourceDevice   = "device"
	SourceWearable = "wearable"
	SourceExternal = "external"
)

// Vital types.
const (
	TypeHeartRate       = "heart_rate"
	TypeBPSystolic      = "bp_systolic"
	TypeBPDiastolic     = "bp_diastolic"
	TypeSpO2            = "spo2"
	TypeTemperature     = "temperature"
	TypeGlucose         = "glucose"
	TypeWeight          = "weight"
	TypeHeight          = "height"
	TypeBMI             = "bmi"
	TypeRespiratoryRate = "respiratory_rate"
	TypeSteps           = "steps"
	TypeSleepHours      = "sleep_hours"
	TypeCalories        = "calories"
	TypeECG             = "ecg"
)

// Measurement is a single time-series vital record. Rows are immutable after
// creation and are never deleted by this service. The composite unique index
// makes re-submission of an identical tuple a no-op at the database level,
// which is the serialization point for concurrent batch retries.
type Measurement struct {
	ID         string    `json:"id" gorm:"primaryKey;column:id"`
	PatientID  string    `json:"patient_id" gorm:"column:patient_id;index;uniqueIndex:idx_vitals_identity"`
	VitalType  string    `json:"vital_type" gorm:"column:vital_type;uniqueIndex:idx_vitals_identity"`
	Value      float64   `json:"value" gorm:"column:value"`
	Unit       string    `json:"unit" gorm:"column:unit"`
	Source     string    `json:"source" gorm:"column:source;uniqueIndex:idx_vitals_identity"`
	SourceID   string    `json:"source_id,omitempty" gorm:"column:source_id"`
	RecordedAt time.Time `json:"recorded_at" gorm:"column:recorded_at;index;uniqueIndex:idx_vitals_identity"`
	Checksum   string    `json:"checksum,omitempty" gorm:"column:checksum;uniqueIndex:idx_vitals_identity"`
	BatchID    string    `json:"batch_id,omitempty" gorm:"column:batch_id;index"`
	Notes      string    `json:"notes,omitempty" gorm:"column:notes"`
	UploadedBy string    `json:"uploaded_by,omitempty" gorm:"column:uploaded_by"`
	UploadedAt time.Time `json:"uploaded_at" gorm:"column:uploaded_at"`
}

func (Measurement) TableName() string {
	return "vitals"
}
