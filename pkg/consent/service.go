package consent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/carelink/platform/pkg/audit"
	"github.com/carelink/platform/pkg/identity"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

var ErrUnknownPurpose = errors.New("unknown consent purpose")

type Store interface {
	Create(ctx context.Context, grant *Grant) error
	FindCandidates(ctx context.Context, patientID, purpose string) ([]Grant, error)
	Revoke(ctx context.Context, id, revokedBy string) (bool, error)
	ListByPatient(ctx context.Context, patientID string) ([]Grant, error)
}

type Recorder interface {
	Record(ctx context.Context, entry *audit.Entry) error
}

// Service is the consent ledger. It is append-only: grants are created and
// revoked, never edited, and at most one grant per (patient, purpose,
// grantee) is active at a time.
type Service struct {
	repo     Store
	recorder Recorder
	now      func() time.Time
}

func NewService(repo Store, recorder Recorder) *Service {
	return &Service{repo: repo, recorder: recorder, now: time.Now}
}

// IsGranted reports whether an active grant authorizes the purpose for the
// patient, optionally scoped to a grantee. This is the consent-only check;
// emergency overrides are a separate concern layered on top by the
// authorization gate.
func (s *Service) IsGranted(ctx context.Context, patientID, purpose, grantee string) (bool, error) {
	if !KnownPurpose(purpose) {
		return false, fmt.Errorf("%q: %w", purpose, ErrUnknownPurpose)
	}

	grants, err := s.repo.FindCandidates(ctx, patientID, purpose)
	if err != nil {
		return false, err
	}

	now := s.now().UTC()
	for i := range grants {
		if grants[i].ActiveAt(now) && grants[i].Covers(grantee) {
			return true, nil
		}
	}
	return false, nil
}

// Grant records consent. If an equivalent active grant already exists it is
// returned unchanged, so repeated grant calls are idempotent.
func (s *Service) Grant(ctx context.Context, actor identity.Actor, patientID, purpose, grantee, consentText string, expiry *time.Time) (*Grant, error) {
	if !KnownPurpose(purpose) {
		return nil, fmt.Errorf("%q: %w", purpose, ErrUnknownPurpose)
	}

	existing, err := s.repo.FindCandidates(ctx, patientID, purpose)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	for i := range existing {
		if existing[i].ActiveAt(now) && existing[i].GrantedTo == grantee {
			return &existing[i], nil
		}
	}

	grant := &Grant{
		ID:          uuid.New().String(),
		PatientID:   patientID,
		Purpose:     purpose,
		Granted:     true,
		GrantedAt:   now,
		GrantedBy:   actor.ID,
		GrantedTo:   grantee,
		ConsentText: consentText,
		ExpiryDate:  expiry,
		CreatedAt:   now,
	}

	if err := s.repo.Create(ctx, grant); err != nil {
		return nil, fmt.Errorf("persisting consent grant: %w", err)
	}

	entry := &audit.Entry{
		Action:       audit.ActionConsentGranted,
		ActorID:      actor.ID,
		ActorRole:    actor.Role,
		ResourceType: "consent",
		ResourceID:   grant.ID,
		Description:  fmt.Sprintf("consent granted for purpose %s on patient %s", purpose, patientID),
		Context: datatypes.JSONMap{
			"patient_id": patientID,
			"purpose":    purpose,
			"granted_to": grantee,
		},
		Success: true,
	}
	if err := s.recorder.Record(ctx, entry); err != nil {
		return nil, err
	}

	return grant, nil
}

// Revoke permanently revokes the active grant matching (patient, purpose,
// grantee). Revoking when no grant is active is a no-op, reported via the
// returned flag.
func (s *Service) Revoke(ctx context.Context, actor identity.Actor, patientID, purpose, grantee string) (bool, error) {
	if !KnownPurpose(purpose) {
		return false, fmt.Errorf("%q: %w", purpose, ErrUnknownPurpose)
	}

	grants, err := s.repo.FindCandidates(ctx, patientID, purpose)
	if err != nil {
		return false, err
	}

	now := s.now().UTC()
	revoked := false
	for i := range grants {
		g := &grants[i]
		if !g.ActiveAt(now) {
			continue
		}
		if grantee != "" && g.GrantedTo != grantee {
			continue
		}

		changed, err := s.repo.Revoke(ctx, g.ID, actor.ID)
		if err != nil {
			return revoked, err
		}
		if !changed {
			continue
		}
		revoked = true

		entry := &audit.Entry{
			Action:       audit.ActionConsentRevoked,
			ActorID:      actor.ID,
			ActorRole:    actor.Role,
			ResourceType: "consent",
			ResourceID:   g.ID,
			Description:  fmt.Sprintf("consent revoked for purpose %s on patient %s", purpose, patientID),
			Context: datatypes.JSONMap{
				"patient_id": patientID,
				"purpose":    purpose,
				"granted_to": g.GrantedTo,
			},
			Success: true,
		}
		if err := s.recorder.Record(ctx, entry); err != nil {
			return revoked, err
		}
	}

	return revoked, nil
}

func (s *Service) History(ctx context.Context, patientID string) ([]Grant, error) {
	return s.repo.ListByPatient(ctx, patientID)
}
