package vitals

import (
	"context"
	"fmt"
	"time"

	"github.com/carelink/platform/pkg/audit"
	"github.com/carelink/platform/pkg/common/logger"
	"github.com/carelink/platform/pkg/common/models"
	"github.com/carelink/platform/pkg/identity"
	"github.com/carelink/platform/pkg/observability/metrics"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type MeasurementStore interface {
	CreateIfAbsent(ctx context.Context, m *Measurement) (bool, error)
	ListByPatient(ctx context.Context, patientID, vitalType string, limit int) ([]Measurement, error)
}

type Reserver interface {
	Reserve(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string)
}

// AlertSink derives and persists a clinical alert for an accepted
// measurement. It returns the alert id, or "" when no threshold matched.
type AlertSink interface {
	Raise(ctx context.Context, patientID, vitalID, vitalType string, value float64) (string, error)
}

type Recorder interface {
	Record(ctx context.Context, entry *audit.Entry) error
}

type PatientRegistry interface {
	Exists(ctx context.Context, patientID string) (bool, error)
}

// Service is the ingestion pipeline: per item it validates structure,
// verifies the integrity digest, claims the duplicate index, persists the
// measurement, derives an alert and writes an audit entry. Items are
// independent; a failing item never affects its siblings and nothing is
// rolled back. An audit write failure fails the whole call, an unaudited
// ingestion must not complete.
type Service struct {
	validator *Validator
	repo      MeasurementStore
	dedup     Reserver
	alerts    AlertSink
	recorder  Recorder
	patients  PatientRegistry
	maxItems  int
}

func NewService(validator *Validator, repo MeasurementStore, dedup Reserver, alerts AlertSink, recorder Recorder, patients PatientRegistry, maxItems int) *Service {
	return &Service{
		validator: validator,
		repo:      repo,
		dedup:     dedup,
		alerts:    alerts,
		recorder:  recorder,
		patients:  patients,
		maxItems:  maxItems,
	}
}

func (s *Service) Ingest(ctx context.Context, actor identity.Actor, sub models.VitalSubmission) (models.ItemOutcome, error) {
	return s.ingestItem(ctx, actor, "", 0, sub)
}

func (s *Service) IngestBatch(ctx context.Context, actor identity.Actor, batch models.BatchSubmission) (*models.BatchResult, error) {
	if s.maxItems > 0 && len(batch.Vitals) > s.maxItems {
		return nil, ValidationError{reason: fmt.Errorf("batch exceeds %d items", s.maxItems)}
	}

	batchID := batch.BatchID
	if batchID == "" {
		batchID = uuid.New().String()
	}

	result := &models.BatchResult{
		BatchID:          batchID,
		Accepted:         []models.ItemOutcome{},
		Rejected:         []models.ItemOutcome{},
		SkippedDuplicate: []models.ItemOutcome{},
	}

	for i, sub := range batch.Vitals {
		outcome, err := s.ingestItem(ctx, actor, batchID, i, sub)
		if err != nil {
			return nil, err
		}

		switch outcome.Reason {
		case models.ReasonAccepted:
			result.Accepted = append(result.Accepted, outcome)
		case models.ReasonSkippedDuplicate:
			result.SkippedDuplicate = append(result.SkippedDuplicate, outcome)
		default:
			result.Rejected = append(result.Rejected, outcome)
		}
	}

	entry := &audit.Entry{
		Action:       audit.ActionBatchIngested,
		ActorID:      actor.ID,
		ActorRole:    actor.Role,
		ResourceType: "batch",
		ResourceID:   batchID,
		Description:  fmt.Sprintf("batch ingested: %d accepted, %d rejected, %d duplicates", len(result.Accepted), len(result.Rejected), len(result.SkippedDuplicate)),
		Context: datatypes.JSONMap{
			"accepted_count":  len(result.Accepted),
			"rejected_count":  len(result.Rejected),
			"duplicate_count": len(result.SkippedDuplicate),
		},
		Success: true,
	}
	if err := s.recorder.Record(ctx, entry); err != nil {
		return nil, err
	}

	return result, nil
}

func (s *Service) ingestItem(ctx context.Context, actor identity.Actor, batchID string, index int, sub models.VitalSubmission) (models.ItemOutcome, error) {
	value, err := s.validator.Validate(sub)
	if err != nil {
		return s.reject(ctx, actor, batchID, index, sub, models.ReasonInvalidPayload, err.Error())
	}

	exists, err := s.patients.Exists(ctx, sub.PatientID)
	if err != nil {
		return models.ItemOutcome{}, fmt.Errorf("patient lookup: %w", err)
	}
	if !exists {
		return s.reject(ctx, actor, batchID, index, sub, models.ReasonInvalidPayload, "unknown patient")
	}

	unit := sub.Unit
	if unit == "" {
		unit = DefaultUnit(sub.VitalType)
	}

	source := sub.Source
	if source == "" {
		source = SourceManual
	}

	if sub.Checksum != "" && !VerifyDigest(sub.PatientID, sub.VitalType, value, unit, sub.RecordedAt, sub.Checksum) {
		return s.reject(ctx, actor, batchID, index, sub, models.ReasonChecksumMismatch, "integrity digest does not match canonical fields")
	}

	// The reservation is advisory: a crash between reserving and inserting
	// can strand a key with no row behind it, so only the vitals unique
	// index decides duplicate vs new.
	key := DedupKey(sub.PatientID, sub.VitalType, sub.RecordedAt, source, sub.Checksum)
	if _, err := s.dedup.Reserve(ctx, key); err != nil {
		return models.ItemOutcome{}, fmt.Errorf("dedup reservation: %w", err)
	}

	m := &Measurement{
		ID:         uuid.New().String(),
		PatientID:  sub.PatientID,
		VitalType:  sub.VitalType,
		Value:      value,
		Unit:       unit,
		Source:     source,
		SourceID:   sub.SourceID,
		RecordedAt: sub.RecordedAt.UTC(),
		Checksum:   sub.Checksum,
		BatchID:    batchID,
		Notes:      sub.Notes,
		UploadedBy: actor.ID,
		UploadedAt: time.Now().UTC(),
	}

	inserted, err := s.repo.CreateIfAbsent(ctx, m)
	if err != nil {
		s.dedup.Release(ctx, key)
		return models.ItemOutcome{}, fmt.Errorf("persisting measurement: %w", err)
	}
	if !inserted {
		return s.skipDuplicate(ctx, actor, batchID, index, sub)
	}

	alertID, err := s.alerts.Raise(ctx, m.PatientID, m.ID, m.VitalType, m.Value)
	if err != nil {
		return models.ItemOutcome{}, fmt.Errorf("deriving alert: %w", err)
	}

	entry := &audit.Entry{
		Action:       audit.ActionIngestionAccepted,
		ActorID:      actor.ID,
		ActorRole:    actor.Role,
		ResourceType: "vital",
		ResourceID:   m.ID,
		Description:  fmt.Sprintf("vital accepted: %s=%v%s for patient %s", m.VitalType, m.Value, m.Unit, m.PatientID),
		Context: datatypes.JSONMap{
			"patient_id": m.PatientID,
			"vital_type": m.VitalType,
			"value":      m.Value,
			"batch_id":   batchID,
			"alert_id":   alertID,
		},
		Success: true,
	}
	if err := s.recorder.Record(ctx, entry); err != nil {
		return models.ItemOutcome{}, err
	}

	metrics.IncIngestionAccepted()
	if alertID != "" {
		logger.Log.WithFields(map[string]interface{}{
			"patient_id": m.PatientID,
			"vital_type": m.VitalType,
			"alert_id":   alertID,
		}).Info("clinical alert raised")
	}

	return models.ItemOutcome{
		Index:     index,
		VitalID:   m.ID,
		VitalType: m.VitalType,
		AlertID:   alertID,
		Reason:    models.ReasonAccepted,
	}, nil
}

func (s *Service) reject(ctx context.Context, actor identity.Actor, batchID string, index int, sub models.VitalSubmission, reason, detail string) (models.ItemOutcome, error) {
	entry := &audit.Entry{
		Action:       audit.ActionIngestionRejected,
		ActorID:      actor.ID,
		ActorRole:    actor.Role,
		ResourceType: "vital",
		ResourceID:   sub.PatientID,
		Description:  fmt.Sprintf("vital rejected (%s): %s", reason, detail),
		Context: datatypes.JSONMap{
			"vital_type": sub.VitalType,
			"reason":     reason,
			"batch_id":   batchID,
			"index":      index,
		},
		Success:      false,
		ErrorMessage: detail,
	}
	if err := s.recorder.Record(ctx, entry); err != nil {
		return models.ItemOutcome{}, err
	}

	metrics.IncIngestionRejected()

	return models.ItemOutcome{
		Index:     index,
		VitalType: sub.VitalType,
		Reason:    reason,
		Detail:    detail,
	}, nil
}

func (s *Service) skipDuplicate(ctx context.Context, actor identity.Actor, batchID string, index int, sub models.VitalSubmission) (models.ItemOutcome, error) {
	entry := &audit.Entry{
		Action:       audit.ActionIngestionAccepted,
		ActorID:      actor.ID,
		ActorRole:    actor.Role,
		ResourceType: "vital",
		ResourceID:   sub.PatientID,
		Description:  fmt.Sprintf("duplicate vital skipped: %s for patient %s", sub.VitalType, sub.PatientID),
		Context: datatypes.JSONMap{
			"vital_type": sub.VitalType,
			"batch_id":   batchID,
			"duplicate":  true,
		},
		Success: true,
	}
	if err := s.recorder.Record(ctx, entry); err != nil {
		return models.ItemOutcome{}, err
	}

	metrics.IncIngestionDuplicate()

	return models.ItemOutcome{
		Index:     index,
		VitalType: sub.VitalType,
		Reason:    models.ReasonSkippedDuplicate,
	}, nil
}

func (s *Service) History(ctx context.Context, patientID, vitalType string, limit int) ([]Measurement, error) {
	return s.repo.ListByPatient(ctx, patientID, vitalType, limit)
}
