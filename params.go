package main

import (
	"regexp"
	"strings"
	"time"

	"github.com/tpgarc/arc-conformance-tests/config"
	"github.com/tpgarc/arc-conformance-tests/framework"

	"github.com/alessio/shellescape"
	"github.com/spf13/pflag"
)

type commandParams struct {
	configPath        string
	baseURL           string
	accountCode       string
	subscriptionKey   string
	domains           []string
	filters           framework.RegexFilters
	pollInterval      time.Duration
	maxPollAttempts   int
	requestsPerSecond float64
	resultsDBDir      string
	debug             bool
	debugAll          bool
}

func (c *commandParams) addFlags(fs *pflag.FlagSet) {
	fs.StringVar(&c.configPath, "config", "", "YAML configuration file (default "+config.DefaultConfigFile+" if present)")
	fs.StringVar(&c.baseURL, "url", "", "ARC API base URL")
	fs.StringVar(&c.accountCode, "account-code", "", "ARC account code (or "+config.EnvAccountCode+")")
	fs.StringVar(&c.subscriptionKey, "subscription-key", "", "ARC subscription key (or "+config.EnvSubscriptionKey+")")
	fs.StringArrayVar(&c.domains, "domain", nil, "domain URL to check; may be repeated (default: all domains)")
	fs.Var(&c.filters.MustMatch, "run", "regex pattern(s) to select tests to run")
	fs.Var(&c.filters.MustNotMatch, "skip", "regex pattern(s) to select tests not to run")
	fs.DurationVar(&c.pollInterval, "poll-interval", config.DefaultPollInterval, "delay between automation session status checks")
	fs.IntVar(&c.maxPollAttempts, "max-poll-attempts", config.DefaultMaxPollAttempts, "status checks before giving up on a session")
	fs.Float64Var(&c.requestsPerSecond, "rps", 0, "maximum requests per second to the ARC API (0 = unlimited)")
	fs.StringVar(&c.resultsDBDir, "results-db", "", "directory of the SQLite results history (disabled if empty)")
	fs.BoolVar(&c.debug, "debug", false, "enable debug logging for failed tests")
	fs.BoolVar(&c.debugAll, "debug-all", false, "enable debug logging for all tests")
}

// loadConfig layers the flags that were actually given on top of the file and environment.
func (c *commandParams) loadConfig(fs *pflag.FlagSet) (*config.Config, error) {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, err
	}
	if fs.Changed("url") {
		cfg.BaseURL = c.baseURL
	}
	if fs.Changed("account-code") {
		cfg.AccountCode = c.accountCode
	}
	if fs.Changed("subscription-key") {
		cfg.SubscriptionKey = c.subscriptionKey
	}
	if fs.Changed("domain") {
		cfg.Domains = c.domains
	}
	if fs.Changed("poll-interval") {
		cfg.PollInterval = c.pollInterval
	}
	if fs.Changed("max-poll-attempts") {
		cfg.MaxPollAttempts = c.maxPollAttempts
	}
	if fs.Changed("rps") {
		cfg.RequestsPerSecond = c.requestsPerSecond
	}
	if fs.Changed("results-db") {
		cfg.ResultsDBDir = c.resultsDBDir
	}
	return cfg, nil
}

type commandBuilder []string

func (b *commandBuilder) add(args ...string) {
	for _, a := range args {
		*b = append(*b, shellescape.Quote(a))
	}
}

func (b commandBuilder) String() string {
	return strings.Join(b, " ")
}

// rerunCommand returns a shell command that repeats this run for only the given test paths.
// Credentials are left out; they are expected to come from the environment or config file.
func rerunCommand(c *commandParams, fs *pflag.FlagSet, failed []framework.TestID) string {
	var b commandBuilder
	b.add(commandName, "run")
	if c.configPath != "" {
		b.add("--config", c.configPath)
	}
	if fs.Changed("url") {
		b.add("--url", c.baseURL)
	}
	for _, d := range c.domains {
		b.add("--domain", d)
	}
	if c.debug || c.debugAll {
		b.add("--debug")
	}

	// Filters are checked at every level of the test tree, so each ancestor of a failed test
	// needs a pattern too.
	seen := make(map[string]bool)
	for _, id := range failed {
		for i := range id.Path {
			prefix := framework.TestID{Path: id.Path[:i+1]}.String()
			if seen[prefix] {
				continue
			}
			seen[prefix] = true
			b.add("--run", "^"+regexp.QuoteMeta(prefix)+"$")
		}
	}
	return b.String()
}
