package config

import (
	"os"
	"strings"
	"time"
)

const (
	// DefaultBaseURL is the public ARC API endpoint.
	DefaultBaseURL = "https://api.tpgarc.com/"

	// DefaultPollInterval is the delay between automation session status checks.
	DefaultPollInterval = time.Second

	// DefaultMaxPollAttempts bounds the wait for a session to become ready: about two minutes
	// at the default interval.
	DefaultMaxPollAttempts = 120

	// DefaultCloseTimeout bounds the call that releases the browser at the end of a run.
	DefaultCloseTimeout = 30 * time.Second

	// DefaultConfigFile is the file name looked up in the working directory.
	DefaultConfigFile = "arc-conformance.yaml"
)

// Environment variables that override file settings.
const (
	EnvBaseURL         = "ARC_BASE_URL"
	EnvAccountCode     = "ARC_ACCOUNT_CODE"
	EnvSubscriptionKey = "ARC_SUBSCRIPTION_KEY"
	EnvDomains         = "ARC_DOMAINS"
)

// Config holds all settings for one conformance run.
type Config struct {
	BaseURL         string `yaml:"baseURL"`
	AccountCode     string `yaml:"accountCode"`
	SubscriptionKey string `yaml:"subscriptionKey"`

	// Domains is the allow-list of domain URLs to check. Each entry must equal a domain's URL
	// exactly. An empty list checks every domain in the account.
	Domains []string `yaml:"domains"`

	PollInterval    time.Duration `yaml:"pollInterval"`
	MaxPollAttempts int           `yaml:"maxPollAttempts"`
	CloseTimeout    time.Duration `yaml:"closeTimeout"`

	// RequestsPerSecond paces calls to the ARC service. Zero disables pacing.
	RequestsPerSecond float64 `yaml:"requestsPerSecond"`

	// ResultsDBDir, if set, is where run results are recorded.
	ResultsDBDir string `yaml:"resultsDBDir"`
}

// NewConfig returns a Config with default values and no credentials.
func NewConfig() *Config {
	return &Config{
		BaseURL:         DefaultBaseURL,
		PollInterval:    DefaultPollInterval,
		MaxPollAttempts: DefaultMaxPollAttempts,
		CloseTimeout:    DefaultCloseTimeout,
	}
}

// ApplyEnv overrides settings with any ARC_* environment variables that are set.
func (c *Config) ApplyEnv() {
	c.applyEnv(os.LookupEnv)
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvBaseURL); ok && v != "" {
		c.BaseURL = v
	}
	if v, ok := lookup(EnvAccountCode); ok && v != "" {
		c.AccountCode = v
	}
	if v, ok := lookup(EnvSubscriptionKey); ok && v != "" {
		c.SubscriptionKey = v
	}
	if v, ok := lookup(EnvDomains); ok && v != "" {
		c.Domains = splitList(v)
	}
}

func splitList(s string) []string {
	var ret []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			ret = append(ret, item)
		}
	}
	return ret
}

// Validate returns the first problem found with the configuration.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return ErrNoBaseURL
	}
	if c.AccountCode == "" {
		return ErrNoAccountCode
	}
	if c.SubscriptionKey == "" {
		return ErrNoSubscriptionKey
	}
	if c.PollInterval <= 0 {
		return ErrInvalidPollInterval
	}
	if c.MaxPollAttempts <= 0 {
		return ErrInvalidMaxPollAttempts
	}
	if c.RequestsPerSecond < 0 {
		return ErrInvalidRateLimit
	}
	return nil
}
