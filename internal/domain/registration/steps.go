package registration

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// StepID identifies one step of the sign-up wizard.
type StepID string

const (
	StepPersonal   StepID = "personal"
	StepMedical    StepID = "medical"
	StepActivities StepID = "activities"
	StepEmergency  StepID = "emergency"
	StepReview     StepID = "review"
)

// Slice keys, one per aggregate field.
const (
	KeyPersonalInfo     = "personalInfo"
	KeyMedicalInfo      = "medicalInfo"
	KeyActivities       = "activities"
	KeyEmergencyContact = "emergencyContact"
)

// Step describes one entry of the ordered step schema.
type Step struct {
	Index    int    `json:"index"`
	ID       StepID `json:"id"`
	Title    string `json:"title"`
	SliceKey string `json:"slice_key,omitempty"`
}

// Steps is the static, ordered step schema.
var Steps = []Step{
	{Index: 0, ID: StepPersonal, Title: "Personal Info", SliceKey: KeyPersonalInfo},
	{Index: 1, ID: StepMedical, Title: "Medical Info", SliceKey: KeyMedicalInfo},
	{Index: 2, ID: StepActivities, Title: "Activities", SliceKey: KeyActivities},
	{Index: 3, ID: StepEmergency, Title: "Emergency Contact", SliceKey: KeyEmergencyContact},
	{Index: 4, ID: StepReview, Title: "Review"},
}

// LastStep is the index of the review step.
var LastStep = len(Steps) - 1

// StepAt returns the step at index i.
func StepAt(i int) (Step, bool) {
	if i < 0 || i >= len(Steps) {
		return Step{}, false
	}
	return Steps[i], true
}

// StepByID looks up a step by its identifier.
func StepByID(id StepID) (Step, bool) {
	for _, s := range Steps {
		if s.ID == id {
			return s, true
		}
	}
	return Step{}, false
}

// NamedSlice is the data handed back by a step on "next". The set of
// implementations is closed: PersonalSlice, MedicalSlice, ActivitiesSlice and
// EmergencySlice.
type NamedSlice interface {
	// Key names the aggregate field the slice replaces.
	Key() string
	// Step is the step that owns the slice.
	Step() StepID
	sealed()
}

// PersonalSlice carries the personal info step's data.
type PersonalSlice struct{ PersonalInfo }

// MedicalSlice carries the medical info step's data.
type MedicalSlice struct{ MedicalInfo }

// ActivitiesSlice carries the activities step's selection.
type ActivitiesSlice struct {
	Activities Activities `json:"activities"`
}

// EmergencySlice carries the emergency contact step's data.
type EmergencySlice struct{ EmergencyContact }

func (PersonalSlice) Key() string   { return KeyPersonalInfo }
func (MedicalSlice) Key() string    { return KeyMedicalInfo }
func (ActivitiesSlice) Key() string { return KeyActivities }
func (EmergencySlice) Key() string  { return KeyEmergencyContact }

func (PersonalSlice) Step() StepID   { return StepPersonal }
func (MedicalSlice) Step() StepID    { return StepMedical }
func (ActivitiesSlice) Step() StepID { return StepActivities }
func (EmergencySlice) Step() StepID  { return StepEmergency }

func (PersonalSlice) sealed()   {}
func (MedicalSlice) sealed()    {}
func (ActivitiesSlice) sealed() {}
func (EmergencySlice) sealed()  {}

// SliceFor returns the aggregate's current slice for a step. The review step
// owns no slice and reports false.
func SliceFor(agg FormAggregate, id StepID) (NamedSlice, bool) {
	switch id {
	case StepPersonal:
		return PersonalSlice{agg.PersonalInfo}, true
	case StepMedical:
		return MedicalSlice{agg.MedicalInfo}, true
	case StepActivities:
		return ActivitiesSlice{agg.Activities.Clone()}, true
	case StepEmergency:
		return EmergencySlice{agg.EmergencyContact}, true
	}
	return nil, false
}

// DecodeSlice decodes a JSON payload into the slice variant owned by step.
// Activities accept either a bare array or {"activities": [...]}. A missing
// or null list decodes as nil, which commits the session's toggled draft;
// an explicit [] clears the selection.
func DecodeSlice(id StepID, raw []byte) (NamedSlice, error) {
	switch id {
	case StepPersonal:
		var p PersonalInfo
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode personal info: %w", err)
		}
		return PersonalSlice{p}, nil
	case StepMedical:
		var m MedicalInfo
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("decode medical info: %w", err)
		}
		return MedicalSlice{m}, nil
	case StepActivities:
		if len(bytes.TrimSpace(raw)) == 0 {
			return ActivitiesSlice{}, nil
		}
		var list Activities
		if err := json.Unmarshal(raw, &list); err != nil {
			var wrapped struct {
				Activities Activities `json:"activities"`
			}
			if werr := json.Unmarshal(raw, &wrapped); werr != nil {
				return nil, fmt.Errorf("decode activities: %w", err)
			}
			list = wrapped.Activities
		}
		return ActivitiesSlice{list}, nil
	case StepEmergency:
		var e EmergencyContact
		if err := json.Unmarshal(raw, &e); err != nil {
			return nil, fmt.Errorf("decode emergency contact: %w", err)
		}
		return EmergencySlice{e}, nil
	}
	return nil, fmt.Errorf("step %q has no data slice", id)
}
