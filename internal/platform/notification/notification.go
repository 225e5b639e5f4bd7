// Package notification sends the registration confirmation email: message
// types, the EmailSender capability with its provider, log and mock
// implementations, template rendering and the confirmation Dispatcher.
package notification

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Attachment is a file carried by an email. Content is base64 encoded.
type Attachment struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
}

// Email is an outbound message.
type Email struct {
	From        string       `json:"from"`
	To          []string     `json:"to"`
	Subject     string       `json:"subject"`
	HTML        string       `json:"html"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// EmailSender delivers an email and returns the provider's message id.
type EmailSender interface {
	SendEmail(ctx context.Context, email Email) (string, error)
}

// ---------------------------------------------------------------------------
// Template Engine
// ---------------------------------------------------------------------------

// TemplateConfirmation is the id of the registration confirmation template.
const TemplateConfirmation = "registration-confirmation"

// Template is a reusable email template with {{key}} placeholders.
type Template struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// TemplateEngine manages templates and renders them with data.
type TemplateEngine struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

// NewTemplateEngine creates a TemplateEngine with the confirmation template
// pre-registered.
func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{
		templates: make(map[string]*Template),
	}
	e.templates[TemplateConfirmation] = &Template{
		ID:      TemplateConfirmation,
		Name:    "Registration Confirmation",
		Subject: "Camp Adventure Registration Confirmation",
		Body: "<h1>Welcome to Camp Adventure, {{first_name}}!</h1>\n" +
			"<p>Your registration has been received. We're excited to see you at the camp!</p>\n" +
			"<p>Your badge image is attached to this email.</p>",
	}
	return e
}

// RegisterTemplate adds or replaces a template in the engine.
func (e *TemplateEngine) RegisterTemplate(t Template) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[t.ID] = &t
}

// Render looks up a template by ID and replaces {{key}} placeholders with
// the HTML-escaped values from data. Placeholders absent from data are left
// as-is.
func (e *TemplateEngine) Render(templateID string, data map[string]string) (subject, body string, err error) {
	e.mu.RLock()
	t, ok := e.templates[templateID]
	e.mu.RUnlock()
	if !ok {
		return "", "", fmt.Errorf("template %q not found", templateID)
	}

	subject = t.Subject
	body = t.Body
	for k, v := range data {
		placeholder := "{{" + k + "}}"
		subject = strings.ReplaceAll(subject, placeholder, v)
		body = strings.ReplaceAll(body, placeholder, html.EscapeString(v))
	}
	return subject, body, nil
}

// ---------------------------------------------------------------------------
// Log Sender
// ---------------------------------------------------------------------------

// LogSender is a development EmailSender that writes each email to the log
// instead of delivering it.
type LogSender struct {
	Logger zerolog.Logger
}

// SendEmail logs the email and returns a generated id.
func (s LogSender) SendEmail(_ context.Context, email Email) (string, error) {
	id := uuid.New().String()
	names := make([]string, len(email.Attachments))
	for i, a := range email.Attachments {
		names[i] = a.Filename
	}
	s.Logger.Info().
		Str("id", id).
		Str("from", email.From).
		Strs("to", email.To).
		Str("subject", email.Subject).
		Strs("attachments", names).
		Msg("email not delivered: log sender")
	return id, nil
}

// ---------------------------------------------------------------------------
// Mock Sender (test double)
// ---------------------------------------------------------------------------

// MockEmailSender is a test double for EmailSender.
type MockEmailSender struct {
	mu         sync.Mutex
	calls      []Email
	ShouldFail bool
	FailError  string
	// Block, when set, is waited on before SendEmail returns.
	Block chan struct{}
}

// SendEmail records the call and optionally returns an error.
func (m *MockEmailSender) SendEmail(_ context.Context, email Email) (string, error) {
	if m.Block != nil {
		<-m.Block
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, email)
	if m.ShouldFail {
		return "", errors.New(m.FailError)
	}
	return fmt.Sprintf("mock-%d", len(m.calls)), nil
}

// SetFail switches failure mode under the lock.
func (m *MockEmailSender) SetFail(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ShouldFail = fail
}

// Calls returns a copy of recorded emails.
func (m *MockEmailSender) Calls() []Email {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Email, len(m.calls))
	copy(out, m.calls)
	return out
}
