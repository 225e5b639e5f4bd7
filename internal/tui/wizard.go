// Package tui drives a registration session from the terminal. It runs the
// same Service the HTTP API uses, one huh form per step.
package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/huh"

	"github.com/campadventure/signup/internal/domain/registration"
	"github.com/campadventure/signup/internal/platform/notification"
)

// ErrQuit is returned when the user leaves the wizard before completing it.
var ErrQuit = errors.New("wizard abandoned")

// Wizard walks one session from the first step to completion.
type Wizard struct {
	svc    *registration.Service
	prompt Prompter
	out    io.Writer
	open   func(string) (io.ReadCloser, error)

	// pending keeps what the user typed when a step refused it, so the next
	// form starts from their input rather than the stored slice.
	pending registration.NamedSlice
}

// New returns a wizard over svc.
func New(svc *registration.Service, prompt Prompter, out io.Writer) *Wizard {
	return &Wizard{
		svc:    svc,
		prompt: prompt,
		out:    out,
		open:   func(p string) (io.ReadCloser, error) { return os.Open(p) },
	}
}

// Run starts a session and loops until the registration is submitted. A user
// abort discards the session and returns ErrQuit.
func (w *Wizard) Run(ctx context.Context) (registration.View, error) {
	v := w.svc.Start(ctx)
	for !v.Completed {
		fmt.Fprintln(w.out, RenderProgress(v.Progress))

		var err error
		if v.Step.ID == registration.StepReview {
			v, err = w.review(ctx, v)
		} else {
			v, err = w.edit(ctx, v)
		}
		if errors.Is(err, huh.ErrUserAborted) || errors.Is(err, ErrQuit) {
			_ = w.svc.Reset(ctx, v.ID)
			return v, ErrQuit
		}
		if err != nil {
			return v, err
		}
	}
	fmt.Fprintln(w.out, RenderCompletion(v))
	return v, nil
}

// edit fills the current data step and applies the navigation choice.
func (w *Wizard) edit(ctx context.Context, v registration.View) (registration.View, error) {
	slice, badgePath, err := w.fill(ctx, v)
	if err != nil {
		return v, err
	}

	choice, err := w.prompt.Navigate(ctx, v.Step.Title, navChoices(v, Choice{Label: "Next", Action: ActionNext}))
	if err != nil {
		return v, err
	}

	switch choice.Action {
	case ActionNext:
		if badgePath != "" {
			nv, err := w.uploadBadge(ctx, v, badgePath)
			if err != nil {
				w.pending = slice
				return w.reportable(v, err)
			}
			v = nv
		}
		nv, err := w.svc.SubmitStep(ctx, v.ID, slice)
		if err != nil {
			w.pending = slice
			return w.reportable(v, err)
		}
		w.pending = nil
		return nv, nil
	case ActionQuit:
		return v, ErrQuit
	default:
		w.pending = nil
		return w.navigate(ctx, v, choice)
	}
}

func (w *Wizard) fill(ctx context.Context, v registration.View) (registration.NamedSlice, string, error) {
	cur := v.Slice
	if w.pending != nil && w.pending.Step() == v.Step.ID {
		cur = w.pending
	}

	switch v.Step.ID {
	case registration.StepPersonal:
		ps, _ := cur.(registration.PersonalSlice)
		info, path, err := w.prompt.Personal(ctx, ps.PersonalInfo)
		return registration.PersonalSlice{PersonalInfo: info}, path, err
	case registration.StepMedical:
		ms, _ := cur.(registration.MedicalSlice)
		m, err := w.prompt.Medical(ctx, ms.MedicalInfo)
		return registration.MedicalSlice{MedicalInfo: m}, "", err
	case registration.StepActivities:
		selected := v.Draft
		if as, ok := w.pending.(registration.ActivitiesSlice); ok {
			selected = as.Activities
		}
		a, err := w.prompt.Activities(ctx, v.Catalog, selected)
		if a == nil {
			// nil would commit the session draft instead of an empty pick.
			a = registration.Activities{}
		}
		return registration.ActivitiesSlice{Activities: a}, "", err
	case registration.StepEmergency:
		es, _ := cur.(registration.EmergencySlice)
		e, err := w.prompt.Emergency(ctx, es.EmergencyContact)
		return registration.EmergencySlice{EmergencyContact: e}, "", err
	}
	return nil, "", fmt.Errorf("no form for step %q", v.Step.ID)
}

func (w *Wizard) uploadBadge(ctx context.Context, v registration.View, path string) (registration.View, error) {
	f, err := w.open(path)
	if err != nil {
		return v, fmt.Errorf("opening badge picture: %w", err)
	}
	defer f.Close()
	return w.svc.UploadBadge(ctx, v.ID, f, "")
}

// review shows the summary and submits or navigates away.
func (w *Wizard) review(ctx context.Context, v registration.View) (registration.View, error) {
	if v.Summary != nil {
		fmt.Fprintln(w.out, RenderSummary(*v.Summary))
	}

	var primary Choice
	if v.Submission.CanSubmit {
		primary = Choice{Label: "Submit Registration", Action: ActionSubmit}
	}
	choice, err := w.prompt.Navigate(ctx, "Review", navChoices(v, primary))
	if err != nil {
		return v, err
	}

	switch choice.Action {
	case ActionSubmit:
		fmt.Fprintln(w.out, labelStyle.Render("Submitting..."))
		nv, err := w.svc.Submit(ctx, v.ID)
		if n := nv.Submission.Notice; n != nil {
			fmt.Fprintln(w.out, RenderNotice(*n))
		}
		var sendErr *notification.SendError
		if errors.As(err, &sendErr) {
			return nv, nil
		}
		if err != nil {
			return w.reportable(v, err)
		}
		return nv, nil
	case ActionQuit:
		return v, ErrQuit
	default:
		return w.navigate(ctx, v, choice)
	}
}

func (w *Wizard) navigate(ctx context.Context, v registration.View, c Choice) (registration.View, error) {
	var (
		nv  registration.View
		err error
	)
	if c.Action == ActionBack {
		nv, err = w.svc.Back(ctx, v.ID)
	} else {
		nv, err = w.svc.Jump(ctx, v.ID, c.Index)
	}
	if err != nil {
		return w.reportable(v, err)
	}
	return nv, nil
}

// reportable prints user-facing errors and keeps the wizard where it was.
// Anything else ends the run.
func (w *Wizard) reportable(v registration.View, err error) (registration.View, error) {
	var ve *registration.ValidationError
	switch {
	case errors.As(err, &ve):
		fmt.Fprintln(w.out, RenderFieldErrors(ve))
	case errors.Is(err, registration.ErrSessionNotFound):
		return v, err
	default:
		fmt.Fprintln(w.out, errorStyle.Render("✗ "+err.Error()))
	}
	return v, nil
}

// navChoices builds the menu: the primary action when set, Back when not on
// the first step, a jump to each other navigable step, then Quit.
func navChoices(v registration.View, primary Choice) []Choice {
	var out []Choice
	if primary.Label != "" {
		out = append(out, primary)
	}
	if v.State.CurrentStep > 0 {
		out = append(out, Choice{Label: "Back", Action: ActionBack})
	}
	for _, p := range v.Progress {
		if p.Navigable && !p.Current {
			out = append(out, Choice{
				Label:  fmt.Sprintf("Go to %d. %s", p.Number, p.Title),
				Action: ActionJump,
				Index:  p.Number - 1,
			})
		}
	}
	return append(out, Choice{Label: "Quit", Action: ActionQuit})
}
