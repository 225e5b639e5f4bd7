package tui

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/campadventure/signup/internal/domain/registration"
	"github.com/campadventure/signup/internal/platform/badge"
	"github.com/campadventure/signup/internal/platform/notification"
)

// ---------------------------------------------------------------------------
// Scripted prompter
// ---------------------------------------------------------------------------

type personalAnswer struct {
	info      registration.PersonalInfo
	badgePath string
}

type navAnswer struct {
	action Action
	index  int
	before func()
}

type scriptedPrompter struct {
	personal   []personalAnswer
	medical    []registration.MedicalInfo
	activities []registration.Activities
	emergency  []registration.EmergencyContact
	nav        []navAnswer

	seenPersonal []registration.PersonalInfo
	seenMedical  []registration.MedicalInfo
	seenChoices  [][]Choice
}

var errScriptExhausted = errors.New("script exhausted")

func (p *scriptedPrompter) Personal(_ context.Context, cur registration.PersonalInfo) (registration.PersonalInfo, string, error) {
	p.seenPersonal = append(p.seenPersonal, cur)
	if len(p.personal) == 0 {
		return cur, "", errScriptExhausted
	}
	a := p.personal[0]
	p.personal = p.personal[1:]
	return a.info, a.badgePath, nil
}

func (p *scriptedPrompter) Medical(_ context.Context, cur registration.MedicalInfo) (registration.MedicalInfo, error) {
	p.seenMedical = append(p.seenMedical, cur)
	if len(p.medical) == 0 {
		return cur, errScriptExhausted
	}
	m := p.medical[0]
	p.medical = p.medical[1:]
	return m, nil
}

func (p *scriptedPrompter) Activities(_ context.Context, _ []string, selected registration.Activities) (registration.Activities, error) {
	if len(p.activities) == 0 {
		return selected, errScriptExhausted
	}
	a := p.activities[0]
	p.activities = p.activities[1:]
	return a, nil
}

func (p *scriptedPrompter) Emergency(_ context.Context, cur registration.EmergencyContact) (registration.EmergencyContact, error) {
	if len(p.emergency) == 0 {
		return cur, errScriptExhausted
	}
	e := p.emergency[0]
	p.emergency = p.emergency[1:]
	return e, nil
}

func (p *scriptedPrompter) Navigate(_ context.Context, _ string, choices []Choice) (Choice, error) {
	p.seenChoices = append(p.seenChoices, choices)
	if len(p.nav) == 0 {
		return Choice{}, errScriptExhausted
	}
	n := p.nav[0]
	p.nav = p.nav[1:]
	if n.before != nil {
		n.before()
	}
	for _, c := range choices {
		if c.Action == n.action && (c.Action != ActionJump || c.Index == n.index) {
			return c, nil
		}
	}
	return Choice{}, fmt.Errorf("no %v choice among %v", n.action, choices)
}

// ---------------------------------------------------------------------------
// Fixtures
// ---------------------------------------------------------------------------

func ada() registration.PersonalInfo {
	return registration.PersonalInfo{FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com", Gender: registration.GenderFemale}
}

func grace() registration.EmergencyContact {
	return registration.EmergencyContact{Name: "Grace Hopper", Relationship: "Aunt", Phone: "555-010-0100", Email: "grace@example.com"}
}

func next() navAnswer { return navAnswer{action: ActionNext} }

func newWizard(p Prompter) (*Wizard, *registration.Service, *notification.MockEmailSender, *bytes.Buffer) {
	sender := &notification.MockEmailSender{FailError: "provider down"}
	svc := registration.NewService(
		registration.NewSessionManager(time.Minute),
		registration.Validator{},
		notification.NewDispatcher(sender),
	)
	var out bytes.Buffer
	return New(svc, p, &out), svc, sender, &out
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for x := 0; x < 8; x++ {
		img.Set(x, x, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// ---------------------------------------------------------------------------
// Run
// ---------------------------------------------------------------------------

func TestWizard_HappyPath(t *testing.T) {
	p := &scriptedPrompter{
		personal:   []personalAnswer{{info: ada()}},
		medical:    []registration.MedicalInfo{{Allergies: "Peanuts"}},
		activities: []registration.Activities{{"Hiking", "Stargazing"}},
		emergency:  []registration.EmergencyContact{grace()},
		nav:        []navAnswer{next(), next(), next(), next(), {action: ActionSubmit}},
	}
	w, _, sender, out := newWizard(p)

	v, err := w.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !v.Completed {
		t.Fatalf("not completed: %+v", v.Submission)
	}
	calls := sender.Calls()
	if len(calls) != 1 || calls[0].To[0] != "ada@example.com" {
		t.Fatalf("calls = %+v", calls)
	}
	for _, want := range []string{"Review Your Registration", "Peanuts", "Stargazing", registration.CompletionTitle} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q", want)
		}
	}
}

func TestWizard_ValidationKeepsInput(t *testing.T) {
	bad := ada()
	bad.Email = "not-an-email"
	p := &scriptedPrompter{
		personal: []personalAnswer{{info: bad}},
		nav:      []navAnswer{next()},
	}
	w, _, _, out := newWizard(p)

	_, err := w.Run(context.Background())
	if !errors.Is(err, errScriptExhausted) {
		t.Fatalf("err = %v", err)
	}
	if len(p.seenPersonal) != 2 {
		t.Fatalf("personal form shown %d times", len(p.seenPersonal))
	}
	if p.seenPersonal[1].Email != "not-an-email" || p.seenPersonal[1].FirstName != "Ada" {
		t.Errorf("second form not prefilled with rejected input: %+v", p.seenPersonal[1])
	}
	if !strings.Contains(out.String(), "email: must be a valid email address") {
		t.Errorf("field error not shown:\n%s", out.String())
	}
}

func TestWizard_SendFailureThenRetry(t *testing.T) {
	var sender *notification.MockEmailSender
	p := &scriptedPrompter{
		personal:   []personalAnswer{{info: ada()}},
		medical:    []registration.MedicalInfo{{}},
		activities: []registration.Activities{{}},
		emergency:  []registration.EmergencyContact{grace()},
		nav: []navAnswer{
			next(), next(), next(), next(),
			{action: ActionSubmit, before: func() { sender.SetFail(true) }},
			{action: ActionSubmit, before: func() { sender.SetFail(false) }},
		},
	}
	w, _, s, out := newWizard(p)
	sender = s

	v, err := w.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !v.Completed || len(sender.Calls()) != 2 {
		t.Fatalf("completed = %v calls = %d", v.Completed, len(sender.Calls()))
	}
	if !strings.Contains(out.String(), "Registration Error") {
		t.Errorf("failure notice not shown:\n%s", out.String())
	}
	if strings.Contains(out.String(), "provider down") {
		t.Error("provider detail leaked to the user")
	}
}

func TestWizard_BackRestoresStoredValues(t *testing.T) {
	p := &scriptedPrompter{
		personal: []personalAnswer{{info: ada()}},
		medical:  []registration.MedicalInfo{{Medications: "Inhaler"}},
		nav:      []navAnswer{next(), {action: ActionBack}},
	}
	w, _, _, _ := newWizard(p)

	_, _ = w.Run(context.Background())

	if len(p.seenPersonal) != 2 {
		t.Fatalf("personal form shown %d times", len(p.seenPersonal))
	}
	if got := p.seenPersonal[1]; got.FirstName != "Ada" || got.Email != "ada@example.com" {
		t.Errorf("back did not restore personal info: %+v", got)
	}
}

func TestWizard_JumpFromReview(t *testing.T) {
	p := &scriptedPrompter{
		personal:   []personalAnswer{{info: ada()}},
		medical:    []registration.MedicalInfo{{Allergies: "Bees"}, {Allergies: "Wasps"}},
		activities: []registration.Activities{{"Archery"}, {"Archery"}},
		emergency:  []registration.EmergencyContact{grace(), grace()},
		nav: []navAnswer{
			next(), next(), next(), next(),
			{action: ActionJump, index: 1},
			next(), next(), next(),
			{action: ActionSubmit},
		},
	}
	w, _, _, out := newWizard(p)

	v, err := w.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !v.Completed {
		t.Fatal("not completed")
	}
	if len(p.seenMedical) != 2 || p.seenMedical[1].Allergies != "Bees" {
		t.Errorf("medical prefill = %+v", p.seenMedical)
	}
	// Next from an edited step walks forward in order to review.
	if !strings.Contains(out.String(), "Wasps") {
		t.Errorf("edited value not on review:\n%s", out.String())
	}
}

func TestWizard_QuitDiscardsSession(t *testing.T) {
	p := &scriptedPrompter{
		personal: []personalAnswer{{info: ada()}},
		nav:      []navAnswer{{action: ActionQuit}},
	}
	w, svc, _, _ := newWizard(p)

	v, err := w.Run(context.Background())
	if !errors.Is(err, ErrQuit) {
		t.Fatalf("err = %v", err)
	}
	if _, err := svc.View(context.Background(), v.ID); !errors.Is(err, registration.ErrSessionNotFound) {
		t.Errorf("session survived quit: %v", err)
	}
}

func TestWizard_BadgeUpload(t *testing.T) {
	p := &scriptedPrompter{
		personal:   []personalAnswer{{info: ada(), badgePath: "/tmp/me.png"}},
		medical:    []registration.MedicalInfo{{}},
		activities: []registration.Activities{{}},
		emergency:  []registration.EmergencyContact{grace()},
		nav:        []navAnswer{next(), next(), next(), next(), {action: ActionSubmit}},
	}
	w, _, sender, _ := newWizard(p)
	raw := pngBytes(t)
	var opened string
	w.open = func(path string) (io.ReadCloser, error) {
		opened = path
		return io.NopCloser(bytes.NewReader(raw)), nil
	}

	if _, err := w.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if opened != "/tmp/me.png" {
		t.Errorf("opened %q", opened)
	}
	calls := sender.Calls()
	if len(calls) != 1 || len(calls[0].Attachments) != 1 || calls[0].Attachments[0].Filename != badge.FileName {
		t.Fatalf("attachments = %+v", calls)
	}
}

func TestWizard_BadgeOpenFailureStaysOnStep(t *testing.T) {
	p := &scriptedPrompter{
		personal: []personalAnswer{{info: ada(), badgePath: "/missing.png"}},
		nav:      []navAnswer{next()},
	}
	w, _, _, out := newWizard(p)
	w.open = func(string) (io.ReadCloser, error) { return nil, errors.New("no such file") }

	_, err := w.Run(context.Background())
	if !errors.Is(err, errScriptExhausted) {
		t.Fatalf("err = %v", err)
	}
	if len(p.seenPersonal) != 2 || !strings.Contains(out.String(), "opening badge picture") {
		t.Errorf("seen = %d out = %s", len(p.seenPersonal), out.String())
	}
}

// ---------------------------------------------------------------------------
// Menu and rendering
// ---------------------------------------------------------------------------

func TestNavChoices(t *testing.T) {
	c := registration.NewController()
	v := registration.View{State: c.State(), Progress: c.Progress()}

	got := navChoices(v, Choice{Label: "Next", Action: ActionNext})
	if len(got) != 2 || got[0].Action != ActionNext || got[1].Action != ActionQuit {
		t.Fatalf("first step menu = %+v", got)
	}

	c.Advance(registration.PersonalSlice{PersonalInfo: ada()})
	c.Advance(registration.MedicalSlice{})
	v = registration.View{State: c.State(), Progress: c.Progress()}

	got = navChoices(v, Choice{})
	var jumps []int
	hasBack := false
	for _, ch := range got {
		switch ch.Action {
		case ActionJump:
			jumps = append(jumps, ch.Index)
		case ActionBack:
			hasBack = true
		case ActionNext, ActionSubmit:
			t.Errorf("unexpected primary %+v", ch)
		}
	}
	if !hasBack || len(jumps) != 2 || jumps[0] != 0 || jumps[1] != 1 {
		t.Errorf("menu = %+v", got)
	}
}

func TestRenderSummary(t *testing.T) {
	agg := registration.NewFormAggregate()
	agg.PersonalInfo = ada()
	agg.Activities = registration.Activities{"Canoeing"}
	agg.EmergencyContact = grace()

	out := RenderSummary(registration.BuildSummary(agg))
	for _, want := range []string{"Personal Information", "Ada Lovelace", "Canoeing", "Grace Hopper", "No badge picture uploaded"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}

func TestRenderSummary_NoActivities(t *testing.T) {
	out := RenderSummary(registration.BuildSummary(registration.NewFormAggregate()))
	if !strings.Contains(out, "No activities selected") {
		t.Errorf("empty activities not rendered:\n%s", out)
	}
}

func TestRenderProgress(t *testing.T) {
	c := registration.NewController()
	c.Advance(registration.PersonalSlice{PersonalInfo: ada()})
	out := RenderProgress(c.Progress())
	if !strings.Contains(out, "✓ 1 Personal Info") || !strings.Contains(out, "● 2 Medical Info") {
		t.Errorf("progress = %s", out)
	}
}
