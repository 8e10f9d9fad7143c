package alerts

import (
	"context"
	"fmt"
	"time"

	"github.com/carelink/platform/pkg/audit"
	"github.com/carelink/platform/pkg/common/logger"
	"github.com/carelink/platform/pkg/identity"
	"github.com/carelink/platform/pkg/observability/metrics"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Store interface {
	Create(ctx context.Context, alert *Alert) error
	Get(ctx context.Context, id string) (*Alert, error)
	ListByPatient(ctx context.Context, patientID string, includeResolved bool, limit int) ([]Alert, error)
	MarkResolved(ctx context.Context, id, resolvedBy, note string) (bool, error)
}

type Recorder interface {
	Record(ctx context.Context, entry *audit.Entry) error
}

// Publisher feeds the notification topic. Delivery to clinicians is handled
// by a downstream consumer, not by this service.
type Publisher interface {
	PublishEvent(ctx context.Context, eventType string, source string, data map[string]interface{}) error
}

type Service struct {
	engine   *Engine
	repo     Store
	recorder Recorder
	events   Publisher
}

func NewService(engine *Engine, repo Store, recorder Recorder, events Publisher) *Service {
	return &Service{engine: engine, repo: repo, recorder: recorder, events: events}
}

// Raise evaluates an accepted measurement and persists the derived alert, if
// any. It is only ever called for measurements that survived ingestion
// validation and deduplication, so resent batches cannot duplicate alerts.
func (s *Service) Raise(ctx context.Context, patientID, vitalID, vitalType string, value float64) (string, error) {
	finding := s.engine.Evaluate(vitalType, value)
	if finding == nil {
		return "", nil
	}

	alert := &Alert{
		ID:             uuid.New().String(),
		PatientID:      patientID,
		VitalID:        vitalID,
		AlertType:      finding.AlertType,
		Severity:       finding.Severity,
		Title:          finding.Title,
		Message:        finding.Message,
		TriggerValue:   value,
		ThresholdValue: finding.Threshold,
		CreatedAt:      time.Now().UTC(),
	}

	if err := s.repo.Create(ctx, alert); err != nil {
		return "", fmt.Errorf("persisting alert: %w", err)
	}

	entry := &audit.Entry{
		Action:       audit.ActionAlertCreated,
		ResourceType: "alert",
		ResourceID:   alert.ID,
		Description:  fmt.Sprintf("%s alert for patient %s: %s", alert.Severity, patientID, alert.Title),
		Context: datatypes.JSONMap{
			"patient_id":    patientID,
			"vital_id":      vitalID,
			"alert_type":    alert.AlertType,
			"severity":      alert.Severity,
			"trigger_value": value,
		},
		Success: true,
	}
	if err := s.recorder.Record(ctx, entry); err != nil {
		return "", err
	}

	metrics.IncAlertsRaised()

	if s.events != nil {
		data := map[string]interface{}{
			"alert_id":   alert.ID,
			"patient_id": patientID,
			"alert_type": alert.AlertType,
			"severity":   alert.Severity,
			"title":      alert.Title,
			"message":    alert.Message,
		}
		if err := s.events.PublishEvent(ctx, "alert", "rule-engine", data); err != nil {
			logger.Log.WithError(err).WithField("alert_id", alert.ID).Warn("alert event publish failed")
		}
	}

	return alert.ID, nil
}

func (s *Service) List(ctx context.Context, patientID string, includeResolved bool, limit int) ([]Alert, error) {
	return s.repo.ListByPatient(ctx, patientID, includeResolved, limit)
}

// Resolve acknowledges an alert. Resolving an already-resolved alert is a
// no-op and is not re-audited.
func (s *Service) Resolve(ctx context.Context, actor identity.Actor, alertID, note string) (*Alert, error) {
	changed, err := s.repo.MarkResolved(ctx, alertID, actor.ID, note)
	if err != nil {
		return nil, err
	}

	if changed {
		entry := &audit.Entry{
			Action:       audit.ActionAlertResolved,
			ActorID:      actor.ID,
			ActorRole:    actor.Role,
			ResourceType: "alert",
			ResourceID:   alertID,
			Description:  "alert resolved",
			Context:      datatypes.JSONMap{"note": note},
			Success:      true,
		}
		if err := s.recorder.Record(ctx, entry); err != nil {
			return nil, err
		}
	}

	return s.repo.Get(ctx, alertID)
}
