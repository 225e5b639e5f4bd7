package tui

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/campadventure/signup/internal/domain/registration"
)

// Action is what the user picked from the navigation menu.
type Action int

const (
	ActionNext Action = iota
	ActionBack
	ActionJump
	ActionSubmit
	ActionQuit
)

// Choice is one navigation menu entry. Index is the target step for
// ActionJump.
type Choice struct {
	Label  string
	Action Action
	Index  int
}

// Prompter collects input for each step. The huh implementation draws forms;
// tests script the answers.
type Prompter interface {
	Personal(ctx context.Context, cur registration.PersonalInfo) (info registration.PersonalInfo, badgePath string, err error)
	Medical(ctx context.Context, cur registration.MedicalInfo) (registration.MedicalInfo, error)
	Activities(ctx context.Context, catalog []string, selected registration.Activities) (registration.Activities, error)
	Emergency(ctx context.Context, cur registration.EmergencyContact) (registration.EmergencyContact, error)
	Navigate(ctx context.Context, title string, choices []Choice) (Choice, error)
}

// HuhPrompter renders each step as a huh form.
type HuhPrompter struct {
	in         io.Reader
	out        io.Writer
	accessible bool
}

// NewHuhPrompter returns a prompter on in/out. Accessible mode replaces the
// interactive widgets with plain line prompts.
func NewHuhPrompter(in io.Reader, out io.Writer, accessible bool) *HuhPrompter {
	return &HuhPrompter{in: in, out: out, accessible: accessible}
}

func (p *HuhPrompter) run(ctx context.Context, groups ...*huh.Group) error {
	return huh.NewForm(groups...).
		WithInput(p.in).
		WithOutput(p.out).
		WithAccessible(p.accessible).
		WithShowHelp(false).
		WithShowErrors(true).
		RunWithContext(ctx)
}

func required(name string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", name)
		}
		return nil
	}
}

func optionalFile(path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	if fi, err := os.Stat(path); err != nil || fi.IsDir() {
		return fmt.Errorf("no readable file at %s", path)
	}
	return nil
}

func (p *HuhPrompter) Personal(ctx context.Context, cur registration.PersonalInfo) (registration.PersonalInfo, string, error) {
	info := cur
	gender := string(cur.Gender)
	var badgePath string

	err := p.run(ctx, huh.NewGroup(
		huh.NewInput().Title("First Name").Value(&info.FirstName).Validate(required("first name")),
		huh.NewInput().Title("Last Name").Value(&info.LastName).Validate(required("last name")),
		huh.NewInput().Title("Date of Birth").Description("YYYY-MM-DD").Value(&info.DateOfBirth),
		huh.NewSelect[string]().Title("Gender").Options(
			huh.NewOption(registration.GenderMale.Label(), string(registration.GenderMale)),
			huh.NewOption(registration.GenderFemale.Label(), string(registration.GenderFemale)),
			huh.NewOption(registration.GenderOther.Label(), string(registration.GenderOther)),
			huh.NewOption(registration.GenderPreferNotToSay.Label(), string(registration.GenderPreferNotToSay)),
		).Value(&gender),
		huh.NewInput().Title("Email").Value(&info.Email).Validate(required("email")),
		huh.NewInput().Title("Badge Picture").
			Description("Path to a JPEG, PNG, GIF or WebP image. Leave empty to keep the current picture.").
			Value(&badgePath).Validate(optionalFile),
	).Title("Personal Info"))

	info.Gender = registration.Gender(gender)
	// The uploaded draft replaces the picture; never echo the old data URL back.
	info.BadgePicture = ""
	return info, strings.TrimSpace(badgePath), err
}

func (p *HuhPrompter) Medical(ctx context.Context, cur registration.MedicalInfo) (registration.MedicalInfo, error) {
	m := cur
	err := p.run(ctx,
		huh.NewGroup(
			huh.NewText().Title("Allergies").Value(&m.Allergies),
			huh.NewText().Title("Medications").Value(&m.Medications),
			huh.NewText().Title("Dietary Restrictions").Value(&m.DietaryRestrictions),
			huh.NewConfirm().Title("Do you have medical insurance?").Value(&m.HasInsurance),
		).Title("Medical Info"),
		huh.NewGroup(
			huh.NewInput().Title("Insurance Provider").Value(&m.InsuranceProvider),
			huh.NewInput().Title("Policy Number").Value(&m.PolicyNumber),
		).WithHideFunc(func() bool { return !m.HasInsurance }),
	)
	return m, err
}

func (p *HuhPrompter) Activities(ctx context.Context, catalog []string, selected registration.Activities) (registration.Activities, error) {
	picked := []string(selected.Clone())
	err := p.run(ctx, huh.NewGroup(
		huh.NewMultiSelect[string]().
			Title("Select the activities you are interested in").
			Options(huh.NewOptions(catalog...)...).
			Value(&picked),
	).Title("Activities"))
	return registration.Activities(picked), err
}

func (p *HuhPrompter) Emergency(ctx context.Context, cur registration.EmergencyContact) (registration.EmergencyContact, error) {
	e := cur
	err := p.run(ctx, huh.NewGroup(
		huh.NewInput().Title("Contact Name").Value(&e.Name).Validate(required("name")),
		huh.NewInput().Title("Relationship").Value(&e.Relationship).Validate(required("relationship")),
		huh.NewInput().Title("Phone").Value(&e.Phone).Validate(required("phone")),
		huh.NewInput().Title("Alternate Phone").Value(&e.AlternatePhone),
		huh.NewInput().Title("Email").Value(&e.Email).Validate(required("email")),
	).Title("Emergency Contact"))
	return e, err
}

func (p *HuhPrompter) Navigate(ctx context.Context, title string, choices []Choice) (Choice, error) {
	opts := make([]huh.Option[int], len(choices))
	for i, c := range choices {
		opts[i] = huh.NewOption(c.Label, i)
	}
	var picked int
	if err := p.run(ctx, huh.NewGroup(
		huh.NewSelect[int]().Title(title).Options(opts...).Value(&picked),
	)); err != nil {
		return Choice{}, err
	}
	return choices[picked], nil
}
