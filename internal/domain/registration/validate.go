package registration

import (
	"fmt"
	"net/mail"
	"strings"
	"time"
)

// FieldError describes one invalid field of a step.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError is returned when a step refuses its own slice. The wizard
// state is never changed when it is returned.
type ValidationError struct {
	Step   StepID       `json:"step"`
	Fields []FieldError `json:"fields"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + ": " + f.Message
	}
	return fmt.Sprintf("%s step is invalid: %s", e.Step, strings.Join(parts, "; "))
}

type fieldErrors struct {
	step   StepID
	fields []FieldError
}

func (fe *fieldErrors) add(field, format string, args ...interface{}) {
	fe.fields = append(fe.fields, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

func (fe *fieldErrors) required(field, value string) bool {
	if strings.TrimSpace(value) == "" {
		fe.add(field, "is required")
		return false
	}
	return true
}

func (fe *fieldErrors) err() error {
	if len(fe.fields) == 0 {
		return nil
	}
	return &ValidationError{Step: fe.step, Fields: fe.fields}
}

// InsurancePolicy decides what happens to the insurance provider and policy
// number when the medical step is submitted with HasInsurance unchecked.
type InsurancePolicy int

const (
	// RetainStale keeps whatever was typed before the box was unchecked, so
	// re-checking it restores the values.
	RetainStale InsurancePolicy = iota
	// ClearOnUncheck drops the insurance fields when HasInsurance is false.
	ClearOnUncheck
)

func (p InsurancePolicy) String() string {
	if p == ClearOnUncheck {
		return "clear-on-uncheck"
	}
	return "retain-stale"
}

// Validator runs the field checks each step performs on its own slice before
// handing it to the controller.
type Validator struct {
	Insurance InsurancePolicy
	// Now is used for the date of birth check; nil means time.Now.
	Now func() time.Time
}

func (v Validator) now() time.Time {
	if v.Now != nil {
		return v.Now()
	}
	return time.Now()
}

// Check validates a slice and returns the normalized slice to advance with.
func (v Validator) Check(s NamedSlice) (NamedSlice, error) {
	switch sl := s.(type) {
	case PersonalSlice:
		p, err := v.checkPersonal(sl.PersonalInfo)
		return PersonalSlice{p}, err
	case MedicalSlice:
		return MedicalSlice{v.normalizeMedical(sl.MedicalInfo)}, nil
	case ActivitiesSlice:
		a, err := checkActivities(sl.Activities)
		return ActivitiesSlice{a}, err
	case EmergencySlice:
		e, err := checkEmergency(sl.EmergencyContact)
		return EmergencySlice{e}, err
	}
	return nil, fmt.Errorf("unsupported slice %T", s)
}

func (v Validator) checkPersonal(p PersonalInfo) (PersonalInfo, error) {
	fe := &fieldErrors{step: StepPersonal}
	p.FirstName = strings.TrimSpace(p.FirstName)
	p.LastName = strings.TrimSpace(p.LastName)
	p.Email = strings.TrimSpace(p.Email)

	fe.required("firstName", p.FirstName)
	fe.required("lastName", p.LastName)
	if fe.required("email", p.Email) && !validEmail(p.Email) {
		fe.add("email", "must be a valid email address")
	}
	if p.DateOfBirth != "" {
		dob, err := time.Parse("2006-01-02", p.DateOfBirth)
		if err != nil {
			fe.add("dateOfBirth", "must be formatted as YYYY-MM-DD")
		} else if dob.After(v.now()) {
			fe.add("dateOfBirth", "cannot be in the future")
		}
	}
	if p.Gender != "" && !validGenders[p.Gender] {
		fe.add("gender", "must be one of male, female, other, preferNotToSay")
	}
	return p, fe.err()
}

func (v Validator) normalizeMedical(m MedicalInfo) MedicalInfo {
	if !m.HasInsurance && v.Insurance == ClearOnUncheck {
		m.InsuranceProvider = ""
		m.PolicyNumber = ""
	}
	return m
}

func checkActivities(a Activities) (Activities, error) {
	fe := &fieldErrors{step: StepActivities}
	out := make(Activities, 0, len(a))
	for _, name := range a {
		if !InCatalog(name) {
			fe.add("activities", "%q is not offered", name)
			continue
		}
		if !out.Contains(name) {
			out = append(out, name)
		}
	}
	return out, fe.err()
}

func checkEmergency(e EmergencyContact) (EmergencyContact, error) {
	fe := &fieldErrors{step: StepEmergency}
	e.Name = strings.TrimSpace(e.Name)
	e.Relationship = strings.TrimSpace(e.Relationship)
	e.Phone = strings.TrimSpace(e.Phone)
	e.AlternatePhone = strings.TrimSpace(e.AlternatePhone)
	e.Email = strings.TrimSpace(e.Email)

	fe.required("name", e.Name)
	fe.required("relationship", e.Relationship)
	if fe.required("phone", e.Phone) && !validPhone(e.Phone) {
		fe.add("phone", "must be a telephone number")
	}
	if e.AlternatePhone != "" && !validPhone(e.AlternatePhone) {
		fe.add("alternatePhone", "must be a telephone number")
	}
	if fe.required("email", e.Email) && !validEmail(e.Email) {
		fe.add("email", "must be a valid email address")
	}
	return e, fe.err()
}

func validEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}

// validPhone accepts 7 to 15 digits with the usual separators.
func validPhone(s string) bool {
	digits := 0
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case strings.ContainsRune("+-(). ", r):
		default:
			return false
		}
	}
	return digits >= 7 && digits <= 15
}
