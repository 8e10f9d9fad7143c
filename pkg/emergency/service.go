package emergency

import (
	"context"
	"fmt"
	"time"

	"github.com/carelink/platform/pkg/audit"
	"github.com/carelink/platform/pkg/identity"
	"github.com/carelink/platform/pkg/observability/metrics"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Store interface {
	Create(ctx context.Context, override *Override) error
	Get(ctx context.Context, id string) (*Override, error)
	ListCurrent(ctx context.Context, patientID string) ([]Override, error)
	ListActive(ctx context.Context, now time.Time) ([]Override, error)
	MarkTerminated(ctx context.Context, id, terminatedBy, reason string) (bool, error)
	MarkExpiryAudited(ctx context.Context, id string) (bool, error)
	RecordAccess(ctx context.Context, id string) error
}

type Recorder interface {
	Record(ctx context.Context, entry *audit.Entry) error
}

// Service manages emergency overrides. Expiry is evaluated lazily from
// stored timestamps whenever an override is queried; there is no background
// sweep to miss or to race with.
type Service struct {
	repo     Store
	recorder Recorder
	duration time.Duration
	now      func() time.Time
}

func NewService(repo Store, recorder Recorder, duration time.Duration) *Service {
	return &Service{repo: repo, recorder: recorder, duration: duration, now: time.Now}
}

// Trigger opens a time-bounded override for the patient. Nothing prevents
// multiple overlapping overrides; Active resolves to the most recent one.
func (s *Service) Trigger(ctx context.Context, actor identity.Actor, patientID, reason, keyword, location string) (*Override, error) {
	now := s.now().UTC()
	override := &Override{
		ID:          uuid.New().String(),
		PatientID:   patientID,
		TriggeredBy: actor.ID,
		Reason:      reason,
		Keyword:     keyword,
		Location:    location,
		GrantedAt:   now,
		ExpiresAt:   now.Add(s.duration),
		CreatedAt:   now,
	}

	if err := s.repo.Create(ctx, override); err != nil {
		return nil, fmt.Errorf("persisting emergency override: %w", err)
	}

	entry := &audit.Entry{
		Action:       audit.ActionOverrideTriggered,
		ActorID:      actor.ID,
		ActorRole:    actor.Role,
		ResourceType: "emergency_override",
		ResourceID:   override.ID,
		Description:  fmt.Sprintf("emergency override triggered for patient %s: %s", patientID, reason),
		Context: datatypes.JSONMap{
			"patient_id": patientID,
			"keyword":    keyword,
			"expires_at": override.ExpiresAt,
		},
		Success: true,
	}
	if err := s.recorder.Record(ctx, entry); err != nil {
		return nil, err
	}

	metrics.IncOverridesTriggered()

	return override, nil
}

// Active returns the patient's currently active override, or nil. Overrides
// found newly expired get their one-time override_expired audit entry here,
// as a side effect of the query that observed the expiry.
func (s *Service) Active(ctx context.Context, patientID string) (*Override, error) {
	overrides, err := s.repo.ListCurrent(ctx, patientID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	var active *Override
	for i := range overrides {
		o := &overrides[i]
		switch o.StateAt(now) {
		case StateActive:
			if active == nil {
				active = o
			}
		case StateExpired:
			if !o.ExpiryAudited {
				if err := s.noteExpired(ctx, o); err != nil {
					return nil, err
				}
			}
		}
	}

	return active, nil
}

func (s *Service) noteExpired(ctx context.Context, o *Override) error {
	changed, err := s.repo.MarkExpiryAudited(ctx, o.ID)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}

	entry := &audit.Entry{
		Action:       audit.ActionOverrideExpired,
		ActorID:      identity.System.ID,
		ActorRole:    identity.System.Role,
		ResourceType: "emergency_override",
		ResourceID:   o.ID,
		Description:  fmt.Sprintf("emergency override expired for patient %s", o.PatientID),
		Context: datatypes.JSONMap{
			"patient_id":   o.PatientID,
			"expired_at":   o.ExpiresAt,
			"access_count": o.AccessCount,
		},
		Success: true,
	}
	return s.recorder.Record(ctx, entry)
}

// RecordAccess counts one read granted through the override.
func (s *Service) RecordAccess(ctx context.Context, id string) error {
	return s.repo.RecordAccess(ctx, id)
}

// Terminate ends an override early. Terminating an already terminated or
// expired override is an idempotent no-op.
func (s *Service) Terminate(ctx context.Context, actor identity.Actor, id, reason string) (*Override, error) {
	override, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if override.StateAt(s.now().UTC()) != StateActive {
		return override, nil
	}

	changed, err := s.repo.MarkTerminated(ctx, id, actor.ID, reason)
	if err != nil {
		return nil, err
	}

	if changed {
		entry := &audit.Entry{
			Action:       audit.ActionOverrideTerminated,
			ActorID:      actor.ID,
			ActorRole:    actor.Role,
			ResourceType: "emergency_override",
			ResourceID:   id,
			Description:  fmt.Sprintf("emergency override terminated early: %s", reason),
			Context: datatypes.JSONMap{
				"patient_id": override.PatientID,
				"reason":     reason,
			},
			Success: true,
		}
		if err := s.recorder.Record(ctx, entry); err != nil {
			return nil, err
		}
	}

	return s.repo.Get(ctx, id)
}

// ListActive returns all currently active overrides across patients, for
// responder dashboards.
func (s *Service) ListActive(ctx context.Context) ([]Override, error) {
	return s.repo.ListActive(ctx, s.now().UTC())
}
