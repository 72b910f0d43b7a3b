// Package ids supplies entity identifier generation behind an interface so
// tests can inject deterministic values.
package ids

import "github.com/google/uuid"

// Provider issues unique identifiers for new entities.
type Provider interface {
	NewID() (string, error)
}

type uuidProvider struct{}

// NewUUIDProvider constructs a Provider that issues UUIDv7 identifiers.
// UUIDv7 sorts by creation time, which keeps identifier tie-breaking
// consistent with creation order.
func NewUUIDProvider() Provider {
	return &uuidProvider{}
}

func (p *uuidProvider) NewID() (string, error) {
	value, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return value.String(), nil
}
