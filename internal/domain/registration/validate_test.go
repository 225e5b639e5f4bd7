package registration

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func fixedNow() time.Time { return time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC) }

func fieldsOf(t *testing.T, err error) map[string]string {
	t.Helper()
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	out := make(map[string]string, len(verr.Fields))
	for _, f := range verr.Fields {
		out[f.Field] = f.Message
	}
	return out
}

func TestValidator_PersonalValid(t *testing.T) {
	v := Validator{Now: fixedNow}
	s, err := v.Check(PersonalSlice{PersonalInfo{
		FirstName:   "  Ada ",
		LastName:    "Lovelace",
		Email:       " ada@example.com ",
		DateOfBirth: "2012-12-10",
		Gender:      GenderFemale,
	}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p := s.(PersonalSlice)
	if p.FirstName != "Ada" || p.Email != "ada@example.com" {
		t.Errorf("not trimmed: %+v", p)
	}
}

func TestValidator_PersonalInvalid(t *testing.T) {
	v := Validator{Now: fixedNow}
	_, err := v.Check(PersonalSlice{PersonalInfo{
		Email:       "not-an-email",
		DateOfBirth: "2030-01-01",
		Gender:      "robot",
	}})
	fields := fieldsOf(t, err)
	for _, f := range []string{"firstName", "lastName", "email", "dateOfBirth", "gender"} {
		if _, ok := fields[f]; !ok {
			t.Errorf("expected error on %s, got %v", f, fields)
		}
	}
	if !strings.Contains(fields["dateOfBirth"], "future") {
		t.Errorf("dob message = %q", fields["dateOfBirth"])
	}

	_, err = v.Check(PersonalSlice{PersonalInfo{FirstName: "A", LastName: "B", Email: "a@b.co", DateOfBirth: "10/12/2012"}})
	if f := fieldsOf(t, err); len(f) != 1 || f["dateOfBirth"] == "" {
		t.Errorf("fields = %v", f)
	}
}

func TestValidator_PersonalEmailDisplayNameRejected(t *testing.T) {
	_, err := Validator{}.Check(PersonalSlice{PersonalInfo{FirstName: "A", LastName: "B", Email: "Ada <ada@example.com>"}})
	if f := fieldsOf(t, err); f["email"] == "" {
		t.Errorf("fields = %v", f)
	}
}

func TestValidator_MedicalInsurancePolicy(t *testing.T) {
	stale := MedicalSlice{MedicalInfo{HasInsurance: false, InsuranceProvider: "Acme", PolicyNumber: "P-1"}}

	s, err := Validator{Insurance: RetainStale}.Check(stale)
	if err != nil {
		t.Fatalf("medical never fails: %v", err)
	}
	if m := s.(MedicalSlice); m.InsuranceProvider != "Acme" || m.PolicyNumber != "P-1" {
		t.Errorf("retain-stale dropped values: %+v", m)
	}

	s, _ = Validator{Insurance: ClearOnUncheck}.Check(stale)
	if m := s.(MedicalSlice); m.InsuranceProvider != "" || m.PolicyNumber != "" {
		t.Errorf("clear-on-uncheck kept values: %+v", m)
	}

	insured := MedicalSlice{MedicalInfo{HasInsurance: true, InsuranceProvider: "Acme"}}
	s, _ = Validator{Insurance: ClearOnUncheck}.Check(insured)
	if s.(MedicalSlice).InsuranceProvider != "Acme" {
		t.Error("insured values cleared")
	}
}

func TestInsurancePolicy_String(t *testing.T) {
	if RetainStale.String() != "retain-stale" || ClearOnUncheck.String() != "clear-on-uncheck" {
		t.Error("unexpected policy names")
	}
}

func TestValidator_Activities(t *testing.T) {
	s, err := Validator{}.Check(ActivitiesSlice{Activities{"Hiking", "Hiking", "Archery"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a := s.(ActivitiesSlice).Activities; len(a) != 2 {
		t.Errorf("duplicates kept: %v", a)
	}

	s, err = Validator{}.Check(ActivitiesSlice{Activities{}})
	if err != nil || len(s.(ActivitiesSlice).Activities) != 0 {
		t.Errorf("empty selection must be accepted: %v", err)
	}

	_, err = Validator{}.Check(ActivitiesSlice{Activities{"Skydiving"}})
	if f := fieldsOf(t, err); !strings.Contains(f["activities"], "Skydiving") {
		t.Errorf("fields = %v", f)
	}
}

func TestValidator_Emergency(t *testing.T) {
	valid := EmergencyContact{Name: "Grace", Relationship: "Aunt", Phone: "+1 (555) 010-0100", Email: "grace@example.com"}
	if _, err := (Validator{}).Check(EmergencySlice{valid}); err != nil {
		t.Fatalf("valid contact rejected: %v", err)
	}

	tests := []struct {
		name  string
		edit  func(*EmergencyContact)
		field string
	}{
		{"missing name", func(e *EmergencyContact) { e.Name = " " }, "name"},
		{"missing relationship", func(e *EmergencyContact) { e.Relationship = "" }, "relationship"},
		{"missing phone", func(e *EmergencyContact) { e.Phone = "" }, "phone"},
		{"letters in phone", func(e *EmergencyContact) { e.Phone = "call me" }, "phone"},
		{"short phone", func(e *EmergencyContact) { e.Phone = "12345" }, "phone"},
		{"bad alternate", func(e *EmergencyContact) { e.AlternatePhone = "x" }, "alternatePhone"},
		{"bad email", func(e *EmergencyContact) { e.Email = "grace" }, "email"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid
			tt.edit(&c)
			_, err := Validator{}.Check(EmergencySlice{c})
			if f := fieldsOf(t, err); f[tt.field] == "" {
				t.Errorf("fields = %v", f)
			}
		})
	}
}

func TestValidationError_Message(t *testing.T) {
	err := &ValidationError{Step: StepPersonal, Fields: []FieldError{{"email", "is required"}, {"lastName", "is required"}}}
	want := "personal step is invalid: email: is required; lastName: is required"
	if err.Error() != want {
		t.Errorf("Error() = %q", err.Error())
	}
}
