package registration

import "sort"

// WizardState is the navigation half of the wizard: where the user is and
// which steps they have completed.
type WizardState struct {
	CurrentStep    int   `json:"current_step"`
	CompletedSteps []int `json:"completed_steps"`
}

// ProgressStep is one dot of the progress indicator.
type ProgressStep struct {
	Number    int    `json:"number"`
	ID        StepID `json:"id"`
	Title     string `json:"title"`
	Reached   bool   `json:"reached"`
	Current   bool   `json:"current"`
	Completed bool   `json:"completed"`
	Navigable bool   `json:"navigable"`
}

// Controller owns the form aggregate and the wizard state and applies the
// navigation transitions. It performs no validation; steps validate their own
// slices before calling Advance.
type Controller struct {
	current   int
	completed map[int]struct{}
	agg       FormAggregate
}

// NewController returns a controller mounted on the first step with an empty
// aggregate.
func NewController() *Controller {
	return &Controller{
		completed: make(map[int]struct{}),
		agg:       NewFormAggregate(),
	}
}

// Advance replaces the aggregate field named by the slice, marks the current
// step completed and moves forward. On the last step the pointer stays put.
func (c *Controller) Advance(s NamedSlice) {
	c.merge(s)
	c.completed[c.current] = struct{}{}
	if c.current < LastStep {
		c.current++
	}
}

func (c *Controller) merge(s NamedSlice) {
	switch v := s.(type) {
	case PersonalSlice:
		c.agg.PersonalInfo = v.PersonalInfo
	case MedicalSlice:
		c.agg.MedicalInfo = v.MedicalInfo
	case ActivitiesSlice:
		c.agg.Activities = v.Activities.Clone()
	case EmergencySlice:
		c.agg.EmergencyContact = v.EmergencyContact
	}
}

// Retreat moves back one step, stopping at the first.
func (c *Controller) Retreat() {
	if c.current > 0 {
		c.current--
	}
}

// CanJumpTo reports whether step i is reachable from the progress indicator:
// it must be completed or not beyond the furthest completed step.
func (c *Controller) CanJumpTo(i int) bool {
	if i < 0 || i > LastStep {
		return false
	}
	if _, ok := c.completed[i]; ok {
		return true
	}
	return i <= c.maxCompleted()
}

// JumpTo moves to step i when CanJumpTo allows it.
func (c *Controller) JumpTo(i int) bool {
	if !c.CanJumpTo(i) {
		return false
	}
	c.current = i
	return true
}

func (c *Controller) maxCompleted() int {
	furthest := 0
	for i := range c.completed {
		if i > furthest {
			furthest = i
		}
	}
	return furthest
}

// Current returns the step the wizard is on.
func (c *Controller) Current() Step {
	return Steps[c.current]
}

// IsCompleted reports whether step i has been completed at least once.
func (c *Controller) IsCompleted(i int) bool {
	_, ok := c.completed[i]
	return ok
}

// State returns a snapshot of the navigation state with completed steps
// sorted ascending.
func (c *Controller) State() WizardState {
	done := make([]int, 0, len(c.completed))
	for i := range c.completed {
		done = append(done, i)
	}
	sort.Ints(done)
	return WizardState{CurrentStep: c.current, CompletedSteps: done}
}

// Aggregate returns a copy of the accumulated form data.
func (c *Controller) Aggregate() FormAggregate {
	return c.agg.Clone()
}

// Progress derives the progress indicator from the current state.
func (c *Controller) Progress() []ProgressStep {
	out := make([]ProgressStep, len(Steps))
	for i, s := range Steps {
		out[i] = ProgressStep{
			Number:    i + 1,
			ID:        s.ID,
			Title:     s.Title,
			Reached:   i <= c.current,
			Current:   i == c.current,
			Completed: c.IsCompleted(i),
			Navigable: c.CanJumpTo(i),
		}
	}
	return out
}
