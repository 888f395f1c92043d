package backend

import "errors"

var (
	// ErrNotConfigured means no endpoint or credentials are set. No request
	// is attempted and no cost is tracked.
	ErrNotConfigured = errors.New("assistant backend not configured")
	// ErrNetwork covers transport failures and non-success responses.
	ErrNetwork = errors.New("assistant backend unreachable")
)

// Canned replies used when the backend cannot answer.
const (
	NotConfiguredReply = "The coaching assistant isn't configured yet, so I can't give personalised advice right now. Keep following your current plan and check back soon."
	NetworkReply       = "I can't reach the coaching service at the moment. Please try again in a little while."
)
