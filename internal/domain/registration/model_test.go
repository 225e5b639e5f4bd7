package registration

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
)

func TestActivities_Toggle(t *testing.T) {
	var a Activities
	a = a.Toggle("Hiking")
	a = a.Toggle("Archery")
	if len(a) != 2 || a[0] != "Hiking" || a[1] != "Archery" {
		t.Fatalf("toggle on = %v", a)
	}

	b := a.Toggle("Hiking")
	if len(b) != 1 || b[0] != "Archery" {
		t.Errorf("toggle off = %v", b)
	}
	if len(a) != 2 {
		t.Errorf("receiver modified: %v", a)
	}

	if again := b.Toggle("Hiking"); again[len(again)-1] != "Hiking" {
		t.Errorf("re-added activity should go last: %v", again)
	}
}

func TestActivities_ToggleTwiceIsIdentity(t *testing.T) {
	start := Activities{"Swimming", "Stargazing"}
	for _, name := range Catalog {
		got := start.Toggle(name).Toggle(name)
		if name == "Swimming" || name == "Stargazing" {
			// removing then re-adding moves the entry to the end
			if len(got) != 2 || !got.Contains(name) {
				t.Errorf("%s: %v", name, got)
			}
			continue
		}
		if len(got) != len(start) || got[0] != start[0] || got[1] != start[1] {
			t.Errorf("%s: %v", name, got)
		}
	}
}

func TestActivities_CloneDoesNotAlias(t *testing.T) {
	a := Activities{"Hiking"}
	b := a.Clone()
	b[0] = "Canoeing"
	if a[0] != "Hiking" {
		t.Error("clone aliases original")
	}
	if c := Activities(nil).Clone(); c == nil || len(c) != 0 {
		t.Errorf("clone of nil = %#v", c)
	}
}

func TestCatalog(t *testing.T) {
	if len(Catalog) != 10 {
		t.Fatalf("catalog size = %d", len(Catalog))
	}
	if !InCatalog("Rock Climbing") || InCatalog("rock climbing") || InCatalog("Skydiving") {
		t.Error("InCatalog is not an exact match")
	}
}

func TestGender_Label(t *testing.T) {
	tests := map[Gender]string{
		GenderMale:           "Male",
		GenderFemale:         "Female",
		GenderOther:          "Other",
		GenderPreferNotToSay: "Prefer not to say",
		"":                   "",
	}
	for g, want := range tests {
		if got := g.Label(); got != want {
			t.Errorf("%q.Label() = %q, want %q", g, got, want)
		}
	}
}

func TestFormAggregate_DefaultsAndJSON(t *testing.T) {
	agg := NewFormAggregate()
	data, err := json.Marshal(agg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]json.RawMessage
	_ = json.Unmarshal(data, &m)
	for _, key := range []string{KeyPersonalInfo, KeyMedicalInfo, KeyActivities, KeyEmergencyContact} {
		if _, ok := m[key]; !ok {
			t.Errorf("missing key %q in %s", key, data)
		}
	}
	if string(m[KeyActivities]) != "[]" {
		t.Errorf("activities = %s, want []", m[KeyActivities])
	}
}

func TestNewRegistration_DropsBadgePicture(t *testing.T) {
	agg := NewFormAggregate()
	agg.PersonalInfo.FirstName = "Ada"
	agg.PersonalInfo.BadgePicture = "data:image/jpeg;base64,AAAA"
	agg.Activities = Activities{"Hiking"}

	sid := uuid.New()
	reg := NewRegistration(sid, agg, "email-1")
	if reg.PersonalInfo.BadgePicture != "" {
		t.Error("badge picture should not be kept on the record")
	}
	if agg.PersonalInfo.BadgePicture == "" {
		t.Error("aggregate was modified")
	}
	if reg.SessionID != sid || reg.ConfirmationID != "email-1" || reg.PersonalInfo.FirstName != "Ada" {
		t.Errorf("reg = %+v", reg)
	}
	reg.Activities[0] = "Archery"
	if agg.Activities[0] != "Hiking" {
		t.Error("registration aliases aggregate activities")
	}
}
