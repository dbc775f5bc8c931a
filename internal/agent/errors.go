package agent

import (
	"errors"
	"fmt"
)

// ErrUnknownProvider marks a broken referential invariant: state points at a
// provider the catalog does not contain. It is never a user-facing outcome.
var ErrUnknownProvider = errors.New("agent: provider not in catalog")

// IntegrityError reports which record referenced the missing provider.
type IntegrityError struct {
	Ref        string
	ProviderID string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("agent: %s references unknown provider %q", e.Ref, e.ProviderID)
}

func (e *IntegrityError) Unwrap() error {
	return ErrUnknownProvider
}
