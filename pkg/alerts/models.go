package alerts

import "time"

// Severities, ordered. severityRank decides which band wins when a value
// matches more than one rule.
const (
	SeverityLow      = "LOW"
	SeverityMedium   = "MEDIUM"
	SeverityHigh     = "HIGH"
	SeverityCritical = "CRITICAL"
)

var severityRank = map[string]int{
	SeverityLow:      1,
	SeverityMedium:   2,
	SeverityHigh:     3,
	SeverityCritical: 4,
}

func SeverityRank(severity string) int {
	return severityRank[severity]
}

// Alert types.
const (
	TypeDiabetesHigh        = "diabetes_high"
	TypeDiabetesLow         = "diabetes_low"
	TypeAbnormalHeartRate   = "abnormal_heart_rate"
	TypeLowOxygen           = "low_oxygen"
	TypeHighBloodPressure   = "high_blood_pressure"
	TypeLowBloodPressure    = "low_blood_pressure"
	TypeAbnormalTemperature = "abnormal_temperature"
)

// Alert is raised by the rule engine as a side effect of accepting a
// measurement. Only the resolution fields are ever mutated.
type Alert struct {
	ID             string     `json:"id" gorm:"primaryKey;column:id"`
	PatientID      string     `json:"patient_id" gorm:"column:patient_id;index"`
	VitalID        string     `json:"vital_id" gorm:"column:vital_id;index"`
	AlertType      string     `json:"alert_type" gorm:"column:alert_type"`
	Severity       string     `json:"severity" gorm:"column:severity"`
	Title          string     `json:"title" gorm:"column:title"`
	Message        string     `json:"message" gorm:"column:message"`
	TriggerValue   float64    `json:"trigger_value" gorm:"column:trigger_value"`
	ThresholdValue float64    `json:"threshold_value" gorm:"column:threshold_value"`
	Resolved       bool       `json:"resolved" gorm:"column:resolved"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty" gorm:"column:resolved_at"`
	ResolvedBy     string     `json:"resolved_by,omitempty" gorm:"column:resolved_by"`
	ResolutionNote string     `json:"resolution_note,omitempty" gorm:"column:resolution_note"`
	CreatedAt      time.Time  `json:"created_at" gorm:"column:created_at;index"`
}

func (Alert) TableName() string {
	return "alerts"
}
