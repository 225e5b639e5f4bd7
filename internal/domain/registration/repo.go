package registration

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrRegistrationNotFound is returned when no completed registration matches.
var ErrRegistrationNotFound = errors.New("registration not found")

// RegistrationRepository stores completed registrations.
type RegistrationRepository interface {
	Create(ctx context.Context, r *Registration) error
	GetByID(ctx context.Context, id uuid.UUID) (*Registration, error)
	List(ctx context.Context, limit, offset int) ([]*Registration, int, error)
}
