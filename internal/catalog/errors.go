package catalog

import "errors"

var (
	// ErrInvalidProvider is returned when a provider record fails validation.
	ErrInvalidProvider = errors.New("catalog: invalid provider")

	// ErrDuplicateProvider is returned when two records share an id.
	ErrDuplicateProvider = errors.New("catalog: duplicate provider id")

	// ErrInvalidSlot is returned when a slot in a catalog document cannot be resolved.
	ErrInvalidSlot = errors.New("catalog: invalid slot")
)
