package servicedef

import "gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"

// CommandOpen is the script command that tells the session's browser to navigate to a URL.
const CommandOpen = "open"

// PooledMachineStatus is the state of the machine backing an automation session.
type PooledMachineStatus int

// PooledMachineStatusReady is the only status in which a session may be used.
const PooledMachineStatusReady PooledMachineStatus = 400

// Response is the envelope wrapped around every ARC response payload.
type Response[T any] struct {
	Result T `json:"result"`
}

// Domain is a site registered in the ARC account.
type Domain struct {
	ID  int    `json:"id"`
	URL string `json:"url"`
}

// TestInitiativePolicy is one accessibility rule of an initiative, as applied to a domain.
//
// CountNonConforming is never sent by the service for evaluation purposes; it is stamped locally
// when a page report is checked against the policy.
type TestInitiativePolicy struct {
	DomainID            ldvalue.OptionalInt `json:"domainID"`
	DigitalAssetID      ldvalue.OptionalInt `json:"digitalAssetID"`
	Assertion           string              `json:"assertion"`
	Title               string              `json:"title,omitempty"`
	DisplayTitle        string              `json:"displayTitle,omitempty"`
	TargetNonConforming ldvalue.OptionalInt `json:"targetNonConforming"`
	CountNonConforming  ldvalue.OptionalInt `json:"countNonConforming"`
}

// Name returns the title to show for the policy in failure messages.
func (p TestInitiativePolicy) Name() string {
	if p.DisplayTitle != "" {
		return p.DisplayTitle
	}
	return p.Title
}

// PolicyAssetConformance is one row of a domain's asset conformance report: a policy as it
// applies to a single digital asset.
type PolicyAssetConformance = TestInitiativePolicy

// AutomationSession is a remote browser session.
type AutomationSession struct {
	SessionID string              `json:"sessionId"`
	Status    PooledMachineStatus `json:"status"`
}

// Ready reports whether the session can accept browser commands.
func (s AutomationSession) Ready() bool {
	return s.Status == PooledMachineStatusReady
}

// Asset is a digital asset (a scannable page) belonging to a domain.
type Asset struct {
	ID       int                 `json:"id"`
	DomainID ldvalue.OptionalInt `json:"domainID"`
	URL      string              `json:"url"`
	Name     string              `json:"name,omitempty"`
}

// AnalysisScriptStep is a single scripted instruction for the session's browser.
type AnalysisScriptStep struct {
	Command string `json:"command"`
	Target  string `json:"target,omitempty"`
	Value   string `json:"value,omitempty"`
}

// AssetAnalytics is the result of analyzing the page currently open in a session.
type AssetAnalytics struct {
	Report AnalysisReport `json:"report"`
}

// AnalysisReport lists the assertions produced by scanning one page.
type AnalysisReport struct {
	URL        string            `json:"url,omitempty"`
	Assertions []AssertionResult `json:"assertions"`
}

// AssertionResult is one finding from a page scan. Assertion is the key that policies match on.
type AssertionResult struct {
	Assertion string `json:"assertion"`
	Selector  string `json:"selector,omitempty"`
	Message   string `json:"message,omitempty"`
}

// CountAssertions returns how many assertions in the report have the given key.
func (r AnalysisReport) CountAssertions(assertion string) int {
	n := 0
	for _, a := range r.Assertions {
		if a.Assertion == assertion {
			n++
		}
	}
	return n
}
