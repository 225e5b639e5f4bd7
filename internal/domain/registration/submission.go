package registration

import (
	"errors"
	"time"
)

var (
	ErrSubmissionInFlight = errors.New("a submission is already in progress")
	ErrAlreadySubmitted   = errors.New("registration has already been submitted")
)

// SubmissionStatus is the review step's submit state.
type SubmissionStatus string

const (
	SubmissionIdle       SubmissionStatus = "idle"
	SubmissionSubmitting SubmissionStatus = "submitting"
	SubmissionFailed     SubmissionStatus = "failed"
	SubmissionSubmitted  SubmissionStatus = "submitted"
)

// Notice is a transient message shown to the user after a submit attempt.
type Notice struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Destructive bool   `json:"destructive,omitempty"`
}

var (
	successNotice = Notice{
		Title:       "Registration Successful",
		Description: "Check your email for confirmation details.",
	}
	failureNotice = Notice{
		Title:       "Registration Error",
		Description: "There was a problem submitting your registration. Please try again.",
		Destructive: true,
	}
)

// Submission tracks one review step's submit control.
type Submission struct {
	status         SubmissionStatus
	attempts       int
	notice         *Notice
	confirmationID string
	submittedAt    time.Time
}

// NewSubmission returns an idle submission.
func NewSubmission() *Submission {
	return &Submission{status: SubmissionIdle}
}

// Begin moves to submitting. It fails while a send is outstanding or once the
// registration has been submitted.
func (s *Submission) Begin() error {
	switch s.status {
	case SubmissionSubmitting:
		return ErrSubmissionInFlight
	case SubmissionSubmitted:
		return ErrAlreadySubmitted
	}
	s.status = SubmissionSubmitting
	s.attempts++
	s.notice = nil
	return nil
}

// Resolve records the outcome of the send started by Begin.
func (s *Submission) Resolve(confirmationID string, err error, at time.Time) {
	if s.status != SubmissionSubmitting {
		return
	}
	if err != nil {
		s.status = SubmissionFailed
		n := failureNotice
		s.notice = &n
		return
	}
	s.status = SubmissionSubmitted
	s.confirmationID = confirmationID
	s.submittedAt = at
	n := successNotice
	s.notice = &n
}

// Status returns the current state.
func (s *Submission) Status() SubmissionStatus { return s.status }

// CanSubmit reports whether the submit control is enabled.
func (s *Submission) CanSubmit() bool {
	return s.status == SubmissionIdle || s.status == SubmissionFailed
}

// Done reports whether the wizard has reached its terminal state.
func (s *Submission) Done() bool { return s.status == SubmissionSubmitted }

// Attempts counts calls to Begin.
func (s *Submission) Attempts() int { return s.attempts }

// Notice returns the notification from the last resolved attempt.
func (s *Submission) Notice() *Notice {
	if s.notice == nil {
		return nil
	}
	n := *s.notice
	return &n
}

// ConfirmationID is the provider id of the sent confirmation.
func (s *Submission) ConfirmationID() string { return s.confirmationID }

// SubmittedAt is when the confirmation was accepted.
func (s *Submission) SubmittedAt() time.Time { return s.submittedAt }
