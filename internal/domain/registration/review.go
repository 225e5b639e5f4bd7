package registration

import "time"

// CompletionTitle and CompletionMessage make up the terminal display.
const (
	CompletionTitle   = "Registration Complete!"
	CompletionMessage = "Thank you for registering for our camp. We've sent a confirmation email with additional details."
)

// SummaryLine is one label/value row of a review card.
type SummaryLine struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// SummarySection is one card of the review step.
type SummarySection struct {
	Title string        `json:"title"`
	Lines []SummaryLine `json:"lines,omitempty"`
	Items []string      `json:"items,omitempty"`
}

// Summary is the read-only review of the whole aggregate.
type Summary struct {
	Sections        []SummarySection `json:"sections"`
	HasBadgePicture bool             `json:"has_badge_picture"`
}

// BuildSummary renders the review cards. Insurance details are only listed
// while HasInsurance is set, even if stale values are retained underneath.
func BuildSummary(agg FormAggregate) Summary {
	p, m, e := agg.PersonalInfo, agg.MedicalInfo, agg.EmergencyContact

	personal := SummarySection{
		Title: "Personal Information",
		Lines: []SummaryLine{
			{"Name", p.FirstName + " " + p.LastName},
			{"Date of Birth", displayDate(p.DateOfBirth)},
			{"Gender", p.Gender.Label()},
			{"Email", p.Email},
		},
	}

	insurance := "No"
	if m.HasInsurance {
		insurance = "Yes"
	}
	medical := SummarySection{
		Title: "Medical Information",
		Lines: []SummaryLine{
			{"Allergies", orDefault(m.Allergies, "None")},
			{"Medications", orDefault(m.Medications, "None")},
			{"Dietary Restrictions", orDefault(m.DietaryRestrictions, "None")},
			{"Insurance", insurance},
		},
	}
	if m.HasInsurance {
		medical.Lines = append(medical.Lines,
			SummaryLine{"Insurance Provider", m.InsuranceProvider},
			SummaryLine{"Policy Number", m.PolicyNumber},
		)
	}

	activities := SummarySection{Title: "Activities", Items: agg.Activities.Clone()}

	emergency := SummarySection{
		Title: "Emergency Contact",
		Lines: []SummaryLine{
			{"Name", e.Name},
			{"Relationship", e.Relationship},
			{"Phone", e.Phone},
			{"Alternate Phone", orDefault(e.AlternatePhone, "N/A")},
			{"Email", e.Email},
		},
	}

	badge := SummarySection{Title: "Badge Picture"}
	if p.BadgePicture == "" {
		badge.Lines = []SummaryLine{{"Picture", "No badge picture uploaded"}}
	} else {
		badge.Lines = []SummaryLine{{"Picture", "Attached"}}
	}

	return Summary{
		Sections:        []SummarySection{personal, medical, activities, emergency, badge},
		HasBadgePicture: p.BadgePicture != "",
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func displayDate(iso string) string {
	if iso == "" {
		return ""
	}
	t, err := time.Parse("2006-01-02", iso)
	if err != nil {
		return iso
	}
	return t.Format("January 2, 2006")
}
