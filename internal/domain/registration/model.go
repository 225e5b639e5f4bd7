package registration

import (
	"time"

	"github.com/google/uuid"
)

// Gender values accepted by the personal info step.
type Gender string

const (
	GenderMale           Gender = "male"
	GenderFemale         Gender = "female"
	GenderOther          Gender = "other"
	GenderPreferNotToSay Gender = "preferNotToSay"
)

var validGenders = map[Gender]bool{
	GenderMale: true, GenderFemale: true, GenderOther: true, GenderPreferNotToSay: true,
}

// Label returns the display label shown on the review step.
func (g Gender) Label() string {
	switch g {
	case GenderMale:
		return "Male"
	case GenderFemale:
		return "Female"
	case GenderOther:
		return "Other"
	case GenderPreferNotToSay:
		return "Prefer not to say"
	}
	return string(g)
}

// PersonalInfo is the slice owned by the personal info step.
type PersonalInfo struct {
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	DateOfBirth  string `json:"dateOfBirth"`
	Gender       Gender `json:"gender"`
	Email        string `json:"email"`
	BadgePicture string `json:"badgePicture"`
}

// MedicalInfo is the slice owned by the medical info step. InsuranceProvider
// and PolicyNumber are only meaningful while HasInsurance is true.
type MedicalInfo struct {
	Allergies           string `json:"allergies"`
	Medications         string `json:"medications"`
	DietaryRestrictions string `json:"dietaryRestrictions"`
	HasInsurance        bool   `json:"hasInsurance"`
	InsuranceProvider   string `json:"insuranceProvider,omitempty"`
	PolicyNumber        string `json:"policyNumber,omitempty"`
}

// EmergencyContact is the slice owned by the emergency contact step.
type EmergencyContact struct {
	Name           string `json:"name"`
	Relationship   string `json:"relationship"`
	Phone          string `json:"phone"`
	AlternatePhone string `json:"alternatePhone,omitempty"`
	Email          string `json:"email"`
}

// Catalog is the fixed list of activities offered at camp.
var Catalog = []string{
	"Hiking",
	"Swimming",
	"Canoeing",
	"Archery",
	"Rock Climbing",
	"Arts and Crafts",
	"Nature Studies",
	"Campfire Cooking",
	"Team Building Games",
	"Stargazing",
}

// InCatalog reports whether name is one of the offered activities.
func InCatalog(name string) bool {
	for _, a := range Catalog {
		if a == name {
			return true
		}
	}
	return false
}

// Activities is an insertion-ordered selection set over the catalog.
type Activities []string

// Contains reports whether the activity is selected.
func (a Activities) Contains(name string) bool {
	for _, s := range a {
		if s == name {
			return true
		}
	}
	return false
}

// Toggle returns a new selection with name added when absent or removed when
// present. The receiver is never modified.
func (a Activities) Toggle(name string) Activities {
	out := make(Activities, 0, len(a)+1)
	found := false
	for _, s := range a {
		if s == name {
			found = true
			continue
		}
		out = append(out, s)
	}
	if !found {
		out = append(out, name)
	}
	return out
}

// Clone returns a copy that never aliases the receiver.
func (a Activities) Clone() Activities {
	out := make(Activities, len(a))
	copy(out, a)
	return out
}

// FormAggregate is the registration record accumulated across the steps.
// Each field is replaced wholesale by the step that owns it.
type FormAggregate struct {
	PersonalInfo     PersonalInfo     `json:"personalInfo"`
	MedicalInfo      MedicalInfo      `json:"medicalInfo"`
	Activities       Activities       `json:"activities"`
	EmergencyContact EmergencyContact `json:"emergencyContact"`
}

// NewFormAggregate returns an aggregate with every field at its default.
func NewFormAggregate() FormAggregate {
	return FormAggregate{Activities: Activities{}}
}

// Clone returns a deep copy of the aggregate.
func (f FormAggregate) Clone() FormAggregate {
	f.Activities = f.Activities.Clone()
	return f
}

// Registration is a completed, confirmed sign-up as recorded after the
// confirmation email has been accepted by the provider.
type Registration struct {
	ID               uuid.UUID        `db:"id" json:"id"`
	SessionID        uuid.UUID        `db:"session_id" json:"session_id"`
	PersonalInfo     PersonalInfo     `db:"personal_info" json:"personal_info"`
	MedicalInfo      MedicalInfo      `db:"medical_info" json:"medical_info"`
	Activities       Activities       `db:"activities" json:"activities"`
	EmergencyContact EmergencyContact `db:"emergency_contact" json:"emergency_contact"`
	BadgeBlobID      *string          `db:"badge_blob_id" json:"badge_blob_id,omitempty"`
	ConfirmationID   string           `db:"confirmation_id" json:"confirmation_id"`
	CreatedAt        time.Time        `db:"created_at" json:"created_at"`
}

// NewRegistration snapshots a submitted aggregate. The badge picture itself
// is not kept on the record; it is archived separately.
func NewRegistration(sessionID uuid.UUID, agg FormAggregate, confirmationID string) *Registration {
	agg = agg.Clone()
	agg.PersonalInfo.BadgePicture = ""
	return &Registration{
		SessionID:        sessionID,
		PersonalInfo:     agg.PersonalInfo,
		MedicalInfo:      agg.MedicalInfo,
		Activities:       agg.Activities,
		EmergencyContact: agg.EmergencyContact,
		ConfirmationID:   confirmationID,
	}
}
