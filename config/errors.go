package config

import "errors"

var (
	// ErrNoBaseURL is returned when the ARC service URL is empty.
	ErrNoBaseURL = errors.New("ARC base URL is required")

	// ErrNoAccountCode is returned when no account code was configured.
	ErrNoAccountCode = errors.New("ARC account code is required (set ARC_ACCOUNT_CODE or --account-code)")

	// ErrNoSubscriptionKey is returned when no subscription key was configured.
	ErrNoSubscriptionKey = errors.New("ARC subscription key is required (set ARC_SUBSCRIPTION_KEY or --subscription-key)")

	// ErrInvalidPollInterval is returned when the session poll interval is not positive.
	ErrInvalidPollInterval = errors.New("session poll interval must be positive")

	// ErrInvalidMaxPollAttempts is returned when the session poll attempt limit is not positive.
	ErrInvalidMaxPollAttempts = errors.New("maximum session poll attempts must be positive")

	// ErrInvalidRateLimit is returned when the request rate limit is negative.
	ErrInvalidRateLimit = errors.New("requests per second must not be negative")

	// ErrConfigNotFound is returned when the configuration file does not exist.
	ErrConfigNotFound = errors.New("configuration file not found")
)
