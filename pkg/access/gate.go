package access

import (
	"context"
	"fmt"

	"github.com/carelink/platform/pkg/audit"
	"github.com/carelink/platform/pkg/common/models"
	"github.com/carelink/platform/pkg/emergency"
	"github.com/carelink/platform/pkg/identity"
	"github.com/carelink/platform/pkg/observability/metrics"
	"gorm.io/datatypes"
)

// ConsentChecker is the consent ledger's read side.
type ConsentChecker interface {
	IsGranted(ctx context.Context, patientID, purpose, grantee string) (bool, error)
}

// OverrideSource is the emergency override manager's read side.
type OverrideSource interface {
	Active(ctx context.Context, patientID string) (*emergency.Override, error)
	RecordAccess(ctx context.Context, id string) error
}

type Recorder interface {
	Record(ctx context.Context, entry *audit.Entry) error
}

// Gate is the single authorization decision point for patient data reads.
// Consent wins over the override fallback, every decision is audited, and an
// audit write failure fails the decision itself: an unaudited allow or deny
// must never reach the caller.
type Gate struct {
	consent   ConsentChecker
	overrides OverrideSource
	recorder  Recorder
}

func NewGate(consent ConsentChecker, overrides OverrideSource, recorder Recorder) *Gate {
	return &Gate{consent: consent, overrides: overrides, recorder: recorder}
}

func (g *Gate) Authorize(ctx context.Context, actor identity.Actor, patientID, purpose string) (models.Decision, error) {
	granted, err := g.consent.IsGranted(ctx, patientID, purpose, actor.ID)
	if err != nil {
		return models.Decision{}, fmt.Errorf("consent check: %w", err)
	}

	if granted {
		decision := models.Decision{Allowed: true, Reason: models.DecisionConsent}
		if err := g.record(ctx, actor, patientID, purpose, decision); err != nil {
			return models.Decision{}, err
		}
		metrics.IncAccessGranted()
		return decision, nil
	}

	override, err := g.overrides.Active(ctx, patientID)
	if err != nil {
		return models.Decision{}, fmt.Errorf("override check: %w", err)
	}

	if override != nil {
		if err := g.overrides.RecordAccess(ctx, override.ID); err != nil {
			return models.Decision{}, fmt.Errorf("recording override access: %w", err)
		}
		decision := models.Decision{Allowed: true, Reason: models.DecisionEmergencyOverride, OverrideID: override.ID}
		if err := g.record(ctx, actor, patientID, purpose, decision); err != nil {
			return models.Decision{}, err
		}
		metrics.IncAccessGranted()
		return decision, nil
	}

	decision := models.Decision{Allowed: false, Reason: models.DecisionNoConsent}
	if err := g.record(ctx, actor, patientID, purpose, decision); err != nil {
		return models.Decision{}, err
	}
	metrics.IncAccessDenied()
	return decision, nil
}

func (g *Gate) record(ctx context.Context, actor identity.Actor, patientID, purpose string, decision models.Decision) error {
	action := audit.ActionAccessGranted
	if !decision.Allowed {
		action = audit.ActionAccessDenied
	}

	entry := &audit.Entry{
		Action:       action,
		ActorID:      actor.ID,
		ActorRole:    actor.Role,
		ResourceType: "patient",
		ResourceID:   patientID,
		Description:  fmt.Sprintf("access %s for purpose %s (%s)", outcomeWord(decision.Allowed), purpose, decision.Reason),
		Context: datatypes.JSONMap{
			"purpose":     purpose,
			"reason":      decision.Reason,
			"override_id": decision.OverrideID,
		},
		Success: decision.Allowed,
	}
	return g.recorder.Record(ctx, entry)
}

func outcomeWord(allowed bool) string {
	if allowed {
		return "granted"
	}
	return "denied"
}
