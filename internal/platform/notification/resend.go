package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// DefaultResendBaseURL is the Resend API root.
const DefaultResendBaseURL = "https://api.resend.com"

// ErrMissingAPIKey is returned when a ResendSender has no token.
var ErrMissingAPIKey = errors.New("resend api key is not configured")

// ProviderError is an error reported by the email provider in a non-2xx
// response body.
type ProviderError struct {
	StatusCode int    `json:"statusCode"`
	Name       string `json:"name"`
	Message    string `json:"message"`
}

func (e *ProviderError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("provider returned %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("provider returned %d (%s): %s", e.StatusCode, e.Name, e.Message)
}

// ResendOption configures a ResendSender.
type ResendOption func(*ResendSender)

// WithHTTPClient overrides the client used for API calls.
func WithHTTPClient(c *http.Client) ResendOption {
	return func(s *ResendSender) { s.httpClient = c }
}

// WithBaseURL points the sender at another API root.
func WithBaseURL(u string) ResendOption {
	return func(s *ResendSender) { s.baseURL = strings.TrimRight(u, "/") }
}

// ResendSender delivers email through the Resend HTTP API.
type ResendSender struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewResendSender creates a sender authenticating with apiKey. The default
// client has no timeout; the confirmation call waits on the provider.
func NewResendSender(apiKey string, opts ...ResendOption) *ResendSender {
	s := &ResendSender{
		apiKey:     apiKey,
		baseURL:    DefaultResendBaseURL,
		httpClient: &http.Client{},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

type resendResponse struct {
	ID string `json:"id"`
}

// SendEmail posts the email to /emails and returns the provider id.
func (s *ResendSender) SendEmail(ctx context.Context, email Email) (string, error) {
	if s.apiKey == "" {
		return "", ErrMissingAPIKey
	}
	payload, err := json.Marshal(email)
	if err != nil {
		return "", fmt.Errorf("marshal email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/emails", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("post email: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		pe := &ProviderError{}
		if err := json.Unmarshal(body, pe); err != nil || pe.Message == "" {
			pe.Message = strings.TrimSpace(string(body))
		}
		pe.StatusCode = resp.StatusCode
		return "", pe
	}

	var out resendResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("decode provider response: %w", err)
	}
	return out.ID, nil
}
