package emergency

import "time"

// Override lifecycle states, derived from stored timestamps at query time.
// Nothing sweeps overrides in the background: Active simply stops being true
// once the clock passes ExpiresAt.
type State string

const (
	StateActive     State = "active"
	StateExpired    State = "expired"
	StateTerminated State = "terminated"
)

// Override is a time-bounded consent bypass for urgent-care scenarios.
// Termination is permanent; an expired or terminated override is never
// re-activated.
type Override struct {
	ID                string     `json:"id" gorm:"primaryKey;column:id"`
	PatientID         string     `json:"patient_id" gorm:"column:patient_id;index"`
	TriggeredBy       string     `json:"triggered_by" gorm:"column:triggered_by"`
	Reason            string     `json:"reason" gorm:"column:reason"`
	Keyword           string     `json:"keyword,omitempty" gorm:"column:keyword"`
	Location          string     `json:"location,omitempty" gorm:"column:location"`
	GrantedAt         time.Time  `json:"granted_at" gorm:"column:granted_at"`
	ExpiresAt         time.Time  `json:"expires_at" gorm:"column:expires_at;index"`
	Terminated        bool       `json:"terminated" gorm:"column:terminated"`
	TerminatedAt      *time.Time `json:"terminated_at,omitempty" gorm:"column:terminated_at"`
	TerminatedBy      string     `json:"terminated_by,omitempty" gorm:"column:terminated_by"`
	TerminationReason string     `json:"termination_reason,omitempty" gorm:"column:termination_reason"`
	AccessCount       int64      `json:"access_count" gorm:"column:access_count"`
	LastAccessedAt    *time.Time `json:"last_accessed_at,omitempty" gorm:"column:last_accessed_at"`
	ExpiryAudited     bool       `json:"-" gorm:"column:expiry_audited"`
	CreatedAt         time.Time  `json:"created_at" gorm:"column:created_at"`
}

func (Override) TableName() string {
	return "emergency_overrides"
}

// StateAt derives the override's state at the given instant. Termination
// takes precedence over expiry so a terminated override never flips back to
// merely Expired semantics.
func (o *Override) StateAt(now time.Time) State {
	if o.Terminated {
		return StateTerminated
	}
	if !now.Before(o.ExpiresAt) {
		return StateExpired
	}
	return StateActive
}
