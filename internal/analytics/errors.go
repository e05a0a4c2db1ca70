package analytics

import "errors"

var (
	// ErrUnknownEventType rejects events whose type is not a known kind.
	// They are logged and never stored.
	ErrUnknownEventType = errors.New("unknown event type")

	// ErrMissingAccount rejects events that carry no account id.
	ErrMissingAccount = errors.New("missing account id")

	// ErrStore marks a failure at the event store boundary. The event is
	// not retried internally; callers may re-submit.
	ErrStore = errors.New("event store failure")
)
