package concierge

import "errors"

var (
	// ErrNoDraft is returned by Confirm when the session holds no draft.
	ErrNoDraft = errors.New("concierge: no held appointment to confirm")
	// ErrEmptyRequest is returned when a message carries neither text nor overrides.
	ErrEmptyRequest = errors.New("concierge: message or overrides required")
	// ErrProviderNotFound is returned for profile lookups of unknown ids.
	ErrProviderNotFound = errors.New("concierge: provider not found")
)
