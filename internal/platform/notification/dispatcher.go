package notification

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/campadventure/signup/internal/platform/badge"
	"github.com/campadventure/signup/internal/platform/metrics"
)

// DefaultFrom is the sender address of confirmation emails.
const DefaultFrom = "Camp Adventure <onboarding@resend.dev>"

// SendError is the single error surfaced for any failed confirmation,
// whether the transport failed or the provider rejected the message.
type SendError struct {
	Err error
}

func (e *SendError) Error() string { return "failed to send" }

func (e *SendError) Unwrap() error { return e.Err }

// Recipient is the part of the personal info the confirmation needs.
type Recipient struct {
	FirstName string
	Email     string
}

// Receipt describes an accepted confirmation.
type Receipt struct {
	ID     string    `json:"id"`
	SentAt time.Time `json:"sent_at"`
}

// Dispatcher composes and sends the registration confirmation email.
type Dispatcher struct {
	sender    EmailSender
	templates *TemplateEngine
	from      string
	logger    zerolog.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer
	now       func() time.Time
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithFrom overrides the sender address.
func WithFrom(from string) DispatcherOption {
	return func(d *Dispatcher) {
		if from != "" {
			d.from = from
		}
	}
}

// WithLogger sets the dispatcher logger.
func WithLogger(l zerolog.Logger) DispatcherOption {
	return func(d *Dispatcher) { d.logger = l }
}

// WithMetrics records dispatch outcomes.
func WithMetrics(m *metrics.Metrics) DispatcherOption {
	return func(d *Dispatcher) { d.metrics = m }
}

// WithTemplates replaces the template engine.
func WithTemplates(t *TemplateEngine) DispatcherOption {
	return func(d *Dispatcher) { d.templates = t }
}

// WithClock sets the time source used for receipts.
func WithClock(now func() time.Time) DispatcherOption {
	return func(d *Dispatcher) { d.now = now }
}

// NewDispatcher creates a Dispatcher delivering through sender.
func NewDispatcher(sender EmailSender, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		sender:    sender,
		templates: NewTemplateEngine(),
		from:      DefaultFrom,
		logger:    zerolog.Nop(),
		tracer:    otel.Tracer("github.com/campadventure/signup/notification"),
		now:       time.Now,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Compose builds the confirmation email. A non-empty badge image is attached
// as badge.jpg with the data URL payload as content.
func (d *Dispatcher) Compose(to Recipient, badgeImage string) (Email, error) {
	subject, body, err := d.templates.Render(TemplateConfirmation, map[string]string{
		"first_name": to.FirstName,
	})
	if err != nil {
		return Email{}, err
	}
	email := Email{
		From:    d.from,
		To:      []string{to.Email},
		Subject: subject,
		HTML:    body,
	}
	if badgeImage != "" {
		email.Attachments = []Attachment{{
			Filename: badge.FileName,
			Content:  badge.Payload(badgeImage),
		}}
	}
	return email, nil
}

// Send delivers one confirmation. Once started the call is not cancelled by
// ctx and carries no deadline of its own. Every failure is a *SendError.
func (d *Dispatcher) Send(ctx context.Context, to Recipient, badgeImage string) (Receipt, error) {
	ctx = context.WithoutCancel(ctx)
	ctx, span := d.tracer.Start(ctx, "notification.SendConfirmation",
		trace.WithAttributes(attribute.Bool("badge.attached", badgeImage != "")))
	defer span.End()

	email, err := d.Compose(to, badgeImage)
	if err != nil {
		return d.fail(span, err, 0)
	}

	start := time.Now()
	id, err := d.sender.SendEmail(ctx, email)
	took := time.Since(start)
	if err != nil {
		return d.fail(span, err, took)
	}

	d.metrics.ConfirmationSent("sent", took)
	span.SetAttributes(attribute.String("email.id", id))
	span.SetStatus(codes.Ok, "")
	d.logger.Info().Str("email_id", id).Dur("took", took).Msg("confirmation email sent")
	return Receipt{ID: id, SentAt: d.now().UTC()}, nil
}

func (d *Dispatcher) fail(span trace.Span, err error, took time.Duration) (Receipt, error) {
	d.metrics.ConfirmationSent("failed", took)
	span.RecordError(err)
	span.SetStatus(codes.Error, "failed to send")
	d.logger.Error().Err(err).Msg("confirmation email failed")
	return Receipt{}, &SendError{Err: err}
}
