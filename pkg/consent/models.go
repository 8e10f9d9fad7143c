package consent

import "time"

// Purposes of access.
const (
	PurposeTreatment         = "treatment"
	PurposeEmergency         = "emergency"
	PurposeResearch          = "research"
	PurposeDataCollection    = "data_collection"
	PurposeThirdPartySharing = "third_party_sharing"
)

var validPurposes = map[string]struct{}{
	PurposeTreatment:         {},
	PurposeEmergency:         {},
	PurposeResearch:          {},
	PurposeDataCollection:    {},
	PurposeThirdPartySharing: {},
}

func KnownPurpose(purpose string) bool {
	_, ok := validPurposes[purpose]
	return ok
}

// Grant is one consent event. Revocation is permanent: a revoked grant is
// never re-activated, granting again creates a new row. GrantedTo empty
// means the grant is not bound to a specific grantee.
type Grant struct {
	ID          string     `json:"id" gorm:"primaryKey;column:id"`
	PatientID   string     `json:"patient_id" gorm:"column:patient_id;index"`
	Purpose     string     `json:"purpose" gorm:"column:purpose;index"`
	Granted     bool       `json:"granted" gorm:"column:granted"`
	GrantedAt   time.Time  `json:"granted_at" gorm:"column:granted_at"`
	GrantedBy   string     `json:"granted_by" gorm:"column:granted_by"`
	GrantedTo   string     `json:"granted_to,omitempty" gorm:"column:granted_to"`
	ConsentText string     `json:"consent_text,omitempty" gorm:"column:consent_text"`
	ExpiryDate  *time.Time `json:"expiry_date,omitempty" gorm:"column:expiry_date"`
	RevokedAt   *time.Time `json:"revoked_at,omitempty" gorm:"column:revoked_at"`
	RevokedBy   string     `json:"revoked_by,omitempty" gorm:"column:revoked_by"`
	CreatedAt   time.Time  `json:"created_at" gorm:"column:created_at"`
}

func (Grant) TableName() string {
	return "consents"
}

// ActiveAt reports whether the grant authorizes access at the given instant.
func (g *Grant) ActiveAt(now time.Time) bool {
	if !g.Granted || g.RevokedAt != nil {
		return false
	}
	if g.ExpiryDate != nil && g.ExpiryDate.Before(now) {
		return false
	}
	return true
}

// Covers reports whether the grant applies to the given grantee. A grant
// without a specific grantee covers anyone; a bound grant covers only that
// grantee, so an unscoped check does not satisfy it.
func (g *Grant) Covers(grantee string) bool {
	return g.GrantedTo == "" || g.GrantedTo == grantee
}
