package conformance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tpgarc/arc-conformance-tests/config"
	"github.com/tpgarc/arc-conformance-tests/framework"
	"github.com/tpgarc/arc-conformance-tests/servicedef"
)

// Options controls a conformance run.
type Options struct {
	// Domains is the allow-list of domain URLs. Empty means every domain.
	Domains []string
	Session SessionOptions
	Logger  framework.Logger
}

// OptionsFromConfig builds Options from a loaded configuration.
func OptionsFromConfig(c *config.Config, logger framework.Logger) Options {
	return Options{
		Domains: append([]string(nil), c.Domains...),
		Session: SessionOptions{
			PollInterval: c.PollInterval,
			MaxAttempts:  c.MaxPollAttempts,
			CloseTimeout: c.CloseTimeout,
		},
		Logger: logger,
	}
}

// RunReport is everything a conformance run produced.
type RunReport struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Domains    []servicedef.Domain
	Policies   int
	Results    []PolicyResult

	// Skipped is true if the selected domains had no policies, so nothing was scanned.
	Skipped bool

	// Errors are failures of the run itself rather than of a policy, such as a session that never
	// became ready or an asset that could not be scanned.
	Errors []string
}

func (r *RunReport) addError(err error) {
	if err != nil {
		r.Errors = append(r.Errors, err.Error())
	}
}

func newRunReport() *RunReport {
	return &RunReport{RunID: uuid.NewString(), StartedAt: time.Now()}
}

// Failures returns the non-conforming results.
func (r *RunReport) Failures() []PolicyResult {
	var ret []PolicyResult
	for _, res := range r.Results {
		if !res.Conforming {
			ret = append(ret, res)
		}
	}
	return ret
}

// OK is true if the run completed without errors and every evaluated policy was conforming.
func (r *RunReport) OK() bool {
	return len(r.Errors) == 0 && len(r.Failures()) == 0
}

// Err returns all run errors and policy failures joined into one error, or nil.
func (r *RunReport) Err() error {
	var errs []error
	for _, e := range r.Errors {
		errs = append(errs, errors.New(e))
	}
	for _, f := range r.Failures() {
		errs = append(errs, errors.New(f.Message()))
	}
	return errors.Join(errs...)
}

// Runner performs a conformance run against the ARC service.
type Runner struct {
	api    API
	opts   Options
	logger framework.Logger
}

// NewRunner creates a Runner.
func NewRunner(api API, opts Options) *Runner {
	logger := opts.Logger
	if logger == nil {
		logger = framework.NullLogger()
	}
	return &Runner{api: api, opts: opts, logger: logger}
}

// Run checks every asset of the selected domains against its policies. Policy failures are
// collected in the report rather than returned as an error; the error is for failures to talk to
// the service, in which case the report holds the results gathered so far.
func (r *Runner) Run(ctx context.Context) (report *RunReport, err error) {
	report = newRunReport()
	defer func() {
		report.addError(err)
		report.FinishedAt = time.Now()
	}()

	domains, err := r.api.Domains(ctx)
	if err != nil {
		return report, fmt.Errorf("could not list domains: %w", err)
	}
	report.Domains = SelectDomains(domains, r.opts.Domains)
	r.logger.Printf("Selected %d of %d domains", len(report.Domains), len(domains))

	policies, err := CollectPolicies(ctx, r.api, report.Domains)
	if err != nil {
		return report, err
	}
	report.Policies = len(policies)
	if len(policies) == 0 {
		r.logger.Printf("No initiative policies for the selected domains; nothing to check")
		report.Skipped = true
		return report, nil
	}

	err = WithBrowserSession(ctx, r.api, r.opts.Session, r.logger, func(session *BrowserSession) error {
		scanner := NewScanner(r.api, session.ID(), r.logger)
		for _, domain := range GroupByDomain(policies) {
			rows, err := r.api.AssetConformanceReport(ctx, domain.DomainID)
			if err != nil {
				return fmt.Errorf("could not get asset conformance report for domain %d: %w", domain.DomainID, err)
			}
			for _, asset := range GroupByAsset(rows) {
				scan, err := scanner.ScanAsset(ctx, asset.AssetID)
				if err != nil {
					return err
				}
				report.Results = append(report.Results, Evaluate(scan.Asset, asset.Policies, scan.Report)...)
			}
		}
		return nil
	})
	return report, err
}
