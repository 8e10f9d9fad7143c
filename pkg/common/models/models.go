package models

import "time"

// Ingestion wire models

// VitalSubmission is a single measurement as submitted by a client. Value is
// left untyped so that a non-numeric value in one batch item can be rejected
// per item instead of failing the whole batch decode.
type VitalSubmission struct {
	PatientID  string      `json:"patient_id"`
	VitalType  string      `json:"vital_type"`
	Value      interface{} `json:"value"`
	Unit       string      `json:"unit,omitempty"`
	Source     string      `json:"source,omitempty"`
	SourceID   string      `json:"source_id,omitempty"`
	RecordedAt time.Time   `json:"recorded_at"`
	Checksum   string      `json:"checksum,omitempty"`
	Notes      string      `json:"notes,omitempty"`
}

type BatchSubmission struct {
	BatchID string            `json:"batch_id,omitempty"`
	Vitals  []VitalSubmission `json:"vitals"`
}

// Per-item outcome reason codes.
const (
	ReasonAccepted         = "accepted"
	ReasonInvalidPayload   = "invalid_payload"
	ReasonChecksumMismatch = "checksum_mismatch"
	ReasonSkippedDuplicate = "skipped_duplicate"
)

type ItemOutcome struct {
	Index     int    `json:"index"`
	VitalID   string `json:"vital_id,omitempty"`
	VitalType string `json:"vital_type,omitempty"`
	AlertID   string `json:"alert_id,omitempty"`
	Reason    string `json:"reason"`
	Detail    string `json:"detail,omitempty"`
}

type BatchResult struct {
	BatchID          string        `json:"batch_id"`
	Accepted         []ItemOutcome `json:"accepted"`
	Rejected         []ItemOutcome `json:"rejected"`
	SkippedDuplicate []ItemOutcome `json:"skipped_duplicate"`
}

// Authorization models

const (
	DecisionConsent           = "consent"
	DecisionEmergencyOverride = "emergency_override"
	DecisionNoConsent         = "no_consent"
)

type Decision struct {
	Allowed    bool   `json:"allowed"`
	Reason     string `json:"reason"`
	OverrideID string `json:"override_id,omitempty"`
}

// Event Bus models
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"` // audit, alert
	Source    string                 `json:"source"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]string      `json:"metadata,omitempty"`
}
