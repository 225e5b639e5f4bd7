package registration

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/campadventure/signup/internal/platform/badge"
	"github.com/campadventure/signup/internal/platform/blobstore"
	"github.com/campadventure/signup/internal/platform/metrics"
	"github.com/campadventure/signup/internal/platform/notification"
	"github.com/campadventure/signup/internal/platform/websocket"
)

var (
	ErrStepMismatch    = errors.New("data does not belong to the current step")
	ErrWizardSubmitted = errors.New("registration is complete; the wizard no longer accepts changes")
	ErrNotOnReview     = errors.New("registration can only be submitted from the review step")
	ErrNotNavigable    = errors.New("step cannot be reached from the progress indicator")
)

// Progress event types.
const (
	EventSessionStarted      = "session.started"
	EventStepCompleted       = "step.completed"
	EventStepChanged         = "step.changed"
	EventActivityToggled     = "activity.toggled"
	EventBadgeUpdated        = "badge.updated"
	EventSubmissionStarted   = "submission.started"
	EventSubmissionSucceeded = "submission.succeeded"
	EventSubmissionFailed    = "submission.failed"
	EventSessionReset        = "session.reset"
	EventSessionExpired      = "session.expired"
)

// Confirmer sends the confirmation email for a submitted registration.
type Confirmer interface {
	Send(ctx context.Context, to notification.Recipient, badgeImage string) (notification.Receipt, error)
}

// SubmissionView is the review step's submit control.
type SubmissionView struct {
	Status         SubmissionStatus `json:"status"`
	CanSubmit      bool             `json:"can_submit"`
	Attempts       int              `json:"attempts"`
	Notice         *Notice          `json:"notice,omitempty"`
	ConfirmationID string           `json:"confirmation_id,omitempty"`
}

// View is everything a front-end needs to render the current step.
type View struct {
	ID         uuid.UUID      `json:"id"`
	State      WizardState    `json:"state"`
	Step       Step           `json:"step"`
	Progress   []ProgressStep `json:"progress"`
	Slice      NamedSlice     `json:"slice,omitempty"`
	Catalog    []string       `json:"catalog,omitempty"`
	Draft      Activities     `json:"draft_activities,omitempty"`
	DraftBadge string         `json:"draft_badge,omitempty"`
	Summary    *Summary       `json:"summary,omitempty"`
	Submission SubmissionView `json:"submission"`
	Completed  bool           `json:"completed"`
	Title      string         `json:"completion_title,omitempty"`
	Message    string         `json:"completion_message,omitempty"`
}

// Service runs wizard sessions for any front-end.
type Service struct {
	sessions      *SessionManager
	validator     Validator
	confirmer     Confirmer
	repo          RegistrationRepository
	blobs         blobstore.BlobStore
	events        websocket.EventPublisher
	metrics       *metrics.Metrics
	logger        zerolog.Logger
	maxBadgeBytes int64
	now           func() time.Time
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithRepository records completed registrations.
func WithRepository(r RegistrationRepository) ServiceOption {
	return func(s *Service) { s.repo = r }
}

// WithBlobStore archives badge pictures of completed registrations.
func WithBlobStore(b blobstore.BlobStore) ServiceOption {
	return func(s *Service) { s.blobs = b }
}

// WithEvents publishes progress events.
func WithEvents(p websocket.EventPublisher) ServiceOption {
	return func(s *Service) { s.events = p }
}

// WithMetrics records wizard metrics.
func WithMetrics(m *metrics.Metrics) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

// WithLogger sets the service logger.
func WithLogger(l zerolog.Logger) ServiceOption {
	return func(s *Service) { s.logger = l }
}

// WithMaxBadgeBytes bounds badge uploads.
func WithMaxBadgeBytes(n int64) ServiceOption {
	return func(s *Service) { s.maxBadgeBytes = n }
}

// WithClock sets the service time source.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// NewService creates a Service.
func NewService(sessions *SessionManager, v Validator, c Confirmer, opts ...ServiceOption) *Service {
	s := &Service{
		sessions:      sessions,
		validator:     v,
		confirmer:     c,
		logger:        zerolog.Nop(),
		maxBadgeBytes: badge.DefaultMaxBytes,
		now:           time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Start mounts a new wizard on the personal step.
func (s *Service) Start(ctx context.Context) View {
	sess := s.sessions.Create()
	s.metrics.SetSessions(s.sessions.Len())
	sess.Lock()
	defer sess.Unlock()
	s.publish(ctx, sess, EventSessionStarted)
	return s.view(sess)
}

// View returns the current state of a session.
func (s *Service) View(_ context.Context, id uuid.UUID) (View, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return View{}, err
	}
	sess.Lock()
	defer sess.Unlock()
	return s.view(sess), nil
}

// SubmitStep validates the current step's slice and advances. A slice for
// any other step is refused with ErrStepMismatch. An ActivitiesSlice with a
// nil selection commits the session's toggled draft, and a personal slice
// without a badge picture takes the one uploaded or captured on this step.
func (s *Service) SubmitStep(ctx context.Context, id uuid.UUID, slice NamedSlice) (View, error) {
	return s.mutate(ctx, id, func(sess *Session) (string, error) {
		if slice == nil || slice.Step() != sess.Controller.Current().ID {
			return "", ErrStepMismatch
		}
		switch sl := slice.(type) {
		case ActivitiesSlice:
			if sl.Activities == nil {
				slice = ActivitiesSlice{sess.Draft.Clone()}
			}
		case PersonalSlice:
			if sl.BadgePicture == "" {
				sl.BadgePicture = sess.DraftBadge
				slice = sl
			}
		}

		checked, err := s.validator.Check(slice)
		if err != nil {
			return "", err
		}
		step := sess.Controller.Current().ID
		sess.Controller.Advance(checked)
		s.metrics.StepCompleted(string(step))
		return EventStepCompleted, nil
	})
}

// Back moves to the previous step.
func (s *Service) Back(ctx context.Context, id uuid.UUID) (View, error) {
	return s.mutate(ctx, id, func(sess *Session) (string, error) {
		sess.Controller.Retreat()
		return EventStepChanged, nil
	})
}

// Jump moves to step i from the progress indicator.
func (s *Service) Jump(ctx context.Context, id uuid.UUID, i int) (View, error) {
	return s.mutate(ctx, id, func(sess *Session) (string, error) {
		if !sess.Controller.JumpTo(i) {
			return "", ErrNotNavigable
		}
		return EventStepChanged, nil
	})
}

// ToggleActivity flips one catalog entry in the activities step's draft.
func (s *Service) ToggleActivity(ctx context.Context, id uuid.UUID, name string) (View, error) {
	return s.mutate(ctx, id, func(sess *Session) (string, error) {
		if sess.Controller.Current().ID != StepActivities {
			return "", ErrStepMismatch
		}
		if !InCatalog(name) {
			return "", &ValidationError{Step: StepActivities, Fields: []FieldError{
				{Field: "activities", Message: fmt.Sprintf("%q is not offered", name)},
			}}
		}
		sess.Draft = sess.Draft.Toggle(name)
		return EventActivityToggled, nil
	})
}

// UploadBadge sets the personal step's badge picture from an uploaded file.
func (s *Service) UploadBadge(ctx context.Context, id uuid.UUID, r io.Reader, contentType string) (View, error) {
	return s.mutate(ctx, id, func(sess *Session) (string, error) {
		if sess.Controller.Current().ID != StepPersonal {
			return "", ErrStepMismatch
		}
		encoded, err := badge.FromUpload(r, contentType, s.maxBadgeBytes)
		if err != nil {
			s.metrics.BadgeCaptured("upload", "failed")
			s.logger.Warn().Err(err).Str("session_id", sess.ID.String()).Msg("badge upload rejected")
			return "", err
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}
		s.metrics.BadgeCaptured("upload", "ok")
		sess.DraftBadge = encoded
		return EventBadgeUpdated, nil
	})
}

// CaptureBadge takes one frame from cam as the badge picture. The camera
// stream is released before CaptureBadge returns, whatever the outcome.
func (s *Service) CaptureBadge(ctx context.Context, id uuid.UUID, cam badge.Camera) (View, error) {
	return s.mutate(ctx, id, func(sess *Session) (string, error) {
		if sess.Controller.Current().ID != StepPersonal {
			return "", ErrStepMismatch
		}
		encoded, err := badge.Capture(ctx, cam, badge.DefaultMaxSide)
		if err != nil {
			s.metrics.BadgeCaptured("camera", "failed")
			s.logger.Error().Err(err).Str("session_id", sess.ID.String()).Msg("badge capture failed")
			return "", err
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}
		s.metrics.BadgeCaptured("camera", "ok")
		sess.DraftBadge = encoded
		return EventBadgeUpdated, nil
	})
}

// Submit sends the confirmation for the aggregate. The session is unlocked
// while the email is in flight; a concurrent Submit is refused with
// ErrSubmissionInFlight. On a send failure the view carries the error notice
// and the returned error is the *notification.SendError.
func (s *Service) Submit(ctx context.Context, id uuid.UUID) (View, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return View{}, err
	}

	sess.Lock()
	if sess.Controller.Current().ID != StepReview && !sess.Submission.Done() {
		sess.Unlock()
		return View{}, ErrNotOnReview
	}
	if err := sess.Submission.Begin(); err != nil {
		sess.Unlock()
		return View{}, err
	}
	agg := sess.Controller.Aggregate()
	s.publish(ctx, sess, EventSubmissionStarted)
	sess.Unlock()

	to := notification.Recipient{FirstName: agg.PersonalInfo.FirstName, Email: agg.PersonalInfo.Email}
	receipt, sendErr := s.confirmer.Send(ctx, to, agg.PersonalInfo.BadgePicture)

	sess.Lock()
	defer sess.Unlock()
	sess.Submission.Resolve(receipt.ID, sendErr, receipt.SentAt)
	if sendErr != nil {
		s.logger.Error().Err(sendErr).Str("session_id", sess.ID.String()).Msg("registration submission failed")
		s.publish(ctx, sess, EventSubmissionFailed)
		return s.view(sess), sendErr
	}

	s.record(context.WithoutCancel(ctx), sess.ID, agg, receipt.ID)
	s.publish(ctx, sess, EventSubmissionSucceeded)
	return s.view(sess), nil
}

// record stores the completed registration and archives its badge. The
// email has already been sent, so failures are only logged.
func (s *Service) record(ctx context.Context, sessionID uuid.UUID, agg FormAggregate, confirmationID string) {
	log := s.logger.With().Str("session_id", sessionID.String()).Logger()
	reg := NewRegistration(sessionID, agg, confirmationID)

	if s.blobs != nil && agg.PersonalInfo.BadgePicture != "" {
		if blobID, err := s.archiveBadge(ctx, sessionID, agg.PersonalInfo.BadgePicture); err != nil {
			log.Error().Err(err).Msg("badge archive failed")
		} else {
			reg.BadgeBlobID = &blobID
		}
	}
	if s.repo != nil {
		if err := s.repo.Create(ctx, reg); err != nil {
			log.Error().Err(err).Msg("registration record failed")
			return
		}
		log.Info().Str("registration_id", reg.ID.String()).Msg("registration recorded")
	}
}

func (s *Service) archiveBadge(ctx context.Context, sessionID uuid.UUID, encoded string) (string, error) {
	raw, err := badge.Decode(encoded)
	if err != nil {
		return "", err
	}
	mime := badge.MIMEType(encoded)
	if mime == "" {
		mime = "image/jpeg"
	}
	meta, err := s.blobs.Upload(ctx, blobstore.BlobMetadata{
		FileName:    badge.FileName,
		ContentType: mime,
		SessionID:   sessionID.String(),
		Tags:        map[string]string{"kind": "badge"},
	}, bytes.NewReader(raw))
	if err != nil {
		return "", err
	}
	return meta.ID, nil
}

// Reset discards a session.
func (s *Service) Reset(ctx context.Context, id uuid.UUID) error {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return err
	}
	sess.Lock()
	defer sess.Unlock()
	s.sessions.Delete(id)
	s.metrics.SetSessions(s.sessions.Len())
	s.publish(ctx, sess, EventSessionReset)
	s.closeTopic(id)
	return nil
}

// Sweep expires idle sessions.
func (s *Service) Sweep(now time.Time) int {
	expired := s.sessions.Sweep(now)
	s.metrics.SetSessions(s.sessions.Len())
	for _, id := range expired {
		if s.events != nil {
			ev := websocket.Event{
				Type:      EventSessionExpired,
				Topic:     websocket.Topic(id.String()),
				SessionID: id.String(),
				Timestamp: now.UTC(),
			}
			if err := s.events.Publish(context.Background(), ev); err != nil {
				s.logger.Warn().Err(err).Str("session_id", id.String()).Msg("publish expiry event")
			}
		}
		s.closeTopic(id)
	}
	if len(expired) > 0 {
		s.logger.Debug().Int("count", len(expired)).Msg("expired idle registration sessions")
	}
	return len(expired)
}

// ListRegistrations pages through completed registrations.
func (s *Service) ListRegistrations(ctx context.Context, limit, offset int) ([]*Registration, int, error) {
	if s.repo == nil {
		return []*Registration{}, 0, nil
	}
	return s.repo.List(ctx, limit, offset)
}

// GetRegistration returns one completed registration.
func (s *Service) GetRegistration(ctx context.Context, id uuid.UUID) (*Registration, error) {
	if s.repo == nil {
		return nil, ErrRegistrationNotFound
	}
	return s.repo.GetByID(ctx, id)
}

// mutate runs fn under the session lock. Edits are refused once the wizard
// is submitted, while a submission is in flight, and once ctx is done so a
// request that already timed out leaves the session untouched. Drafts follow
// the current step after every successful change.
func (s *Service) mutate(ctx context.Context, id uuid.UUID, fn func(*Session) (string, error)) (View, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return View{}, err
	}
	sess.Lock()
	defer sess.Unlock()

	if err := ctx.Err(); err != nil {
		return View{}, err
	}

	switch sess.Submission.Status() {
	case SubmissionSubmitted:
		return View{}, ErrWizardSubmitted
	case SubmissionSubmitting:
		return View{}, ErrSubmissionInFlight
	}

	before := sess.Controller.Current().ID
	event, err := fn(sess)
	if err != nil {
		return View{}, err
	}
	if after := sess.Controller.Current().ID; after != before {
		s.enterStep(sess, after)
	}
	s.publish(ctx, sess, event)
	return s.view(sess), nil
}

// enterStep reloads the step-local drafts from the aggregate, the way a
// freshly mounted step starts from its slice.
func (s *Service) enterStep(sess *Session, id StepID) {
	agg := sess.Controller.Aggregate()
	switch id {
	case StepActivities:
		sess.Draft = agg.Activities.Clone()
	case StepPersonal:
		sess.DraftBadge = agg.PersonalInfo.BadgePicture
	}
}

type progressEvent struct {
	State      WizardState      `json:"state"`
	Progress   []ProgressStep   `json:"progress"`
	Submission SubmissionStatus `json:"submission"`
}

// topicCloser is implemented by publishers that hold per-session
// subscriptions, such as the websocket hub.
type topicCloser interface {
	CloseTopic(topic string)
}

func (s *Service) closeTopic(id uuid.UUID) {
	if c, ok := s.events.(topicCloser); ok {
		c.CloseTopic(websocket.Topic(id.String()))
	}
}

func (s *Service) publish(ctx context.Context, sess *Session, eventType string) {
	if s.events == nil {
		return
	}
	data, err := json.Marshal(progressEvent{
		State:      sess.Controller.State(),
		Progress:   sess.Controller.Progress(),
		Submission: sess.Submission.Status(),
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("marshal progress event")
		return
	}
	ev := websocket.Event{
		Type:      eventType,
		Topic:     websocket.Topic(sess.ID.String()),
		SessionID: sess.ID.String(),
		Timestamp: s.now().UTC(),
		Data:      data,
	}
	if err := s.events.Publish(ctx, ev); err != nil {
		s.logger.Warn().Err(err).Str("session_id", sess.ID.String()).Msg("publish progress event")
	}
}

func (s *Service) view(sess *Session) View {
	c := sess.Controller
	step := c.Current()
	v := View{
		ID:       sess.ID,
		State:    c.State(),
		Step:     step,
		Progress: c.Progress(),
		Submission: SubmissionView{
			Status:         sess.Submission.Status(),
			CanSubmit:      sess.Submission.CanSubmit() && step.ID == StepReview,
			Attempts:       sess.Submission.Attempts(),
			Notice:         sess.Submission.Notice(),
			ConfirmationID: sess.Submission.ConfirmationID(),
		},
		Completed: sess.Submission.Done(),
	}
	agg := c.Aggregate()
	if slice, ok := SliceFor(agg, step.ID); ok {
		v.Slice = slice
	}
	switch step.ID {
	case StepPersonal:
		v.DraftBadge = sess.DraftBadge
	case StepActivities:
		v.Catalog = append([]string(nil), Catalog...)
		v.Draft = sess.Draft.Clone()
	case StepReview:
		summary := BuildSummary(agg)
		v.Summary = &summary
	}
	if v.Completed {
		v.Title = CompletionTitle
		v.Message = CompletionMessage
	}
	return v
}
