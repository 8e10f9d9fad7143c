package audit

import (
	"time"

	"gorm.io/datatypes"
)

// Auditable actions.
const (
	ActionIngestionAccepted  = "ingestion_accepted"
	ActionIngestionRejected  = "ingestion_rejected"
	ActionBatchIngested      = "batch_ingested"
	ActionAccessGranted      = "access_granted"
	ActionAccessDenied       = "access_denied"
	ActionConsentGranted     = "consent_granted"
	ActionConsentRevoked     = "consent_revoked"
	ActionOverrideTriggered  = "override_triggered"
	ActionOverrideTerminated = "override_terminated"
	ActionOverrideExpired    = "override_expired"
	ActionAlertCreated       = "alert_created"
	ActionAlertResolved      = "alert_resolved"
)

// Entry is a single immutable audit record. Rows are only ever appended;
// nothing in this codebase updates or deletes them. ActorID is empty for
// system-triggered events such as lazy override expiry.
type Entry struct {
	ID           string            `json:"id" gorm:"primaryKey;column:id"`
	Action       string            `json:"action" gorm:"column:action;index"`
	ActorID      string            `json:"actor_id,omitempty" gorm:"column:actor_id"`
	ActorRole    string            `json:"actor_role,omitempty" gorm:"column:actor_role"`
	ResourceType string            `json:"resource_type,omitempty" gorm:"column:resource_type"`
	ResourceID   string            `json:"resource_id,omitempty" gorm:"column:resource_id;index"`
	Description  string            `json:"description,omitempty" gorm:"column:description"`
	Context      datatypes.JSONMap `json:"context,omitempty" gorm:"column:context"`
	Success      bool              `json:"success" gorm:"column:success"`
	ErrorMessage string            `json:"error_message,omitempty" gorm:"column:error_message"`
	IPAddress    string            `json:"ip_address,omitempty" gorm:"column:ip_address"`
	CreatedAt    time.Time         `json:"created_at" gorm:"column:created_at;index"`
}

func (Entry) TableName() string {
	return "audit_log"
}
