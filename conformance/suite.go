package conformance

import (
	"context"
	"fmt"
	"time"

	"github.com/tpgarc/arc-conformance-tests/framework"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RootTestName is the name of the top-level test in the suite.
const RootTestName = "accessibility conformance"

// RunTestSuite performs a conformance run as a tree of framework tests:
//
//	accessibility conformance
//	  domain <url>
//	    asset <id>
//
// Every failed policy of an asset is reported as a separate assertion failure of that asset's test.
// An error talking to the service fails only the test in which it happened, except at the root,
// where it stops the run. Such errors are also recorded in the report's Errors.
//
// The automation session is opened by the first asset test that runs, so a run whose filters
// exclude every asset never acquires a browser. Once opened, the browser is closed when the root
// test exits, however it exits.
func RunTestSuite(
	ctx context.Context,
	api API,
	opts Options,
	filter framework.Filter,
	testLogger framework.TestLogger,
) (framework.Results, *RunReport) {
	report := newRunReport()
	results := framework.Run(filter, testLogger, func(c *framework.Context) {
		c.Run(RootTestName, func(t *framework.Context) {
			runSuite(ctx, t, api, opts, report)
		})
	})
	if !results.OK() && report.OK() {
		// A failure that was neither a policy nor a recorded service error, such as a panic.
		for _, f := range results.Failures {
			report.Errors = append(report.Errors, fmt.Sprintf("test %s failed", f.TestID))
		}
	}
	report.FinishedAt = time.Now()
	return results, report
}

// lazySession opens the run's browser session on first use and registers its close on the root
// test. An error opening it is returned to every caller but recorded only once.
type lazySession struct {
	ctx     context.Context
	api     API
	opts    SessionOptions
	logger  framework.Logger
	root    *framework.Context
	report  *RunReport
	session *BrowserSession
	err     error
}

func (l *lazySession) get() (*BrowserSession, error) {
	if l.session != nil || l.err != nil {
		return l.session, l.err
	}
	l.session, l.err = OpenBrowserSession(l.ctx, l.api, l.opts, l.logger)
	if l.err != nil {
		l.report.addError(l.err)
		return nil, l.err
	}
	session, root, report := l.session, l.root, l.report
	root.Defer(func() {
		err := session.Close()
		report.addError(err)
		assert.NoError(root, err)
	})
	return l.session, nil
}

// requireNoRunError records err in the report and stops the test if err is not nil.
func requireNoRunError(t *framework.Context, report *RunReport, err error) {
	report.addError(err)
	require.NoError(t, err)
}

func runSuite(ctx context.Context, t *framework.Context, api API, opts Options, report *RunReport) {
	logger := framework.MultiLogger(opts.Logger, t.DebugLogger())

	domains, err := api.Domains(ctx)
	if err != nil {
		err = fmt.Errorf("could not list domains: %w", err)
	}
	requireNoRunError(t, report, err)
	report.Domains = SelectDomains(domains, opts.Domains)
	t.Debug("Selected %d of %d domains", len(report.Domains), len(domains))

	policies, err := CollectPolicies(ctx, api, report.Domains)
	requireNoRunError(t, report, err)
	report.Policies = len(policies)
	if len(policies) == 0 {
		report.Skipped = true
		t.SkipWithReason("no initiative policies for the selected domains")
	}

	session := &lazySession{ctx: ctx, api: api, opts: opts.Session, logger: logger, root: t, report: report}

	domainURLs := make(map[int]string, len(report.Domains))
	for _, d := range report.Domains {
		domainURLs[d.ID] = d.URL
	}

	for _, domain := range GroupByDomain(policies) {
		name := domainURLs[domain.DomainID]
		if name == "" {
			name = fmt.Sprintf("%d", domain.DomainID)
		}
		t.Run("domain "+name, func(t *framework.Context) {
			rows, err := api.AssetConformanceReport(ctx, domain.DomainID)
			if err != nil {
				err = fmt.Errorf("could not get asset conformance report for %s: %w", name, err)
			}
			requireNoRunError(t, report, err)
			assets := GroupByAsset(rows)
			t.Debug("Domain %s has %d assets with policies", name, len(assets))

			for _, asset := range assets {
				t.Run(fmt.Sprintf("asset %d", asset.AssetID), func(t *framework.Context) {
					checkAsset(ctx, t, api, session, asset, report)
				})
			}
		})
	}
}

func checkAsset(ctx context.Context, t *framework.Context, api API, session *lazySession, asset AssetPolicies, report *RunReport) {
	s, err := session.get()
	require.NoError(t, err)

	scanner := NewScanner(api, s.ID(), t.DebugLogger())
	scan, err := scanner.ScanAsset(ctx, asset.AssetID)
	requireNoRunError(t, report, err)

	results := Evaluate(scan.Asset, asset.Policies, scan.Report)
	report.Results = append(report.Results, results...)
	for _, r := range results {
		t.Debug("%s: policy %q assertion %q count=%d target=%d conforming=%t",
			r.AssetURL, r.Policy.Name(), r.Policy.Assertion, r.Count, r.Target, r.Conforming)
		assert.True(t, r.Conforming, "%s (found %d matching assertions, target %d)", r.Message(), r.Count, r.Target)
	}
}
