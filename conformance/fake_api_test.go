package conformance

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/tpgarc/arc-conformance-tests/servicedef"

	"github.com/launchdarkly/go-test-helpers/v2/httphelpers"

	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

const testSessionID = "session-1"

// fakeAPI is an in-memory ARC service. Each asset's page analysis returns the assertion keys
// configured for its URL, provided the session's browser was last told to open that URL.
type fakeAPI struct {
	domains     []servicedef.Domain
	initiatives map[int][]servicedef.TestInitiativePolicy
	conformance map[int][]servicedef.PolicyAssetConformance
	assets      map[int]servicedef.Asset
	pages       map[string][]string

	// statuses are returned by NewSession and then by successive SessionStatus calls; the last
	// one repeats.
	statuses []servicedef.PooledMachineStatus

	// errs makes the named operation fail. Keys are operation names, optionally followed by a
	// space and the id argument, as recorded in calls.
	errs map[string]error

	calls         []string
	statusIndex   int
	currentURL    string
	browserOpen   bool
	closeCtxError error
	lock          sync.Mutex
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		initiatives: make(map[int][]servicedef.TestInitiativePolicy),
		conformance: make(map[int][]servicedef.PolicyAssetConformance),
		assets:      make(map[int]servicedef.Asset),
		pages:       make(map[string][]string),
		statuses:    []servicedef.PooledMachineStatus{servicedef.PooledMachineStatusReady},
		errs:        make(map[string]error),
	}
}

func policy(domainID, assetID int, assertion string, target int) servicedef.PolicyAssetConformance {
	return servicedef.PolicyAssetConformance{
		DomainID:            ldvalue.NewOptionalInt(domainID),
		DigitalAssetID:      ldvalue.NewOptionalInt(assetID),
		Assertion:           assertion,
		DisplayTitle:        "policy " + assertion,
		TargetNonConforming: ldvalue.NewOptionalInt(target),
	}
}

// addAsset registers a domain (if new), an asset, its policies, and the assertions its page yields.
func (f *fakeAPI) addAsset(domain servicedef.Domain, asset servicedef.Asset, assertions []string, policies ...servicedef.PolicyAssetConformance) {
	found := false
	for _, d := range f.domains {
		if d.ID == domain.ID {
			found = true
		}
	}
	if !found {
		f.domains = append(f.domains, domain)
	}
	f.assets[asset.ID] = asset
	f.pages[asset.URL] = assertions
	f.initiatives[domain.ID] = append(f.initiatives[domain.ID], policies...)
	f.conformance[domain.ID] = append(f.conformance[domain.ID], policies...)
}

func (f *fakeAPI) record(call string) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.calls = append(f.calls, call)
	if err := f.errs[call]; err != nil {
		return err
	}
	if name, _, found := strings.Cut(call, " "); found {
		return f.errs[name]
	}
	return nil
}

func (f *fakeAPI) closeContextError() error {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.closeCtxError
}

func (f *fakeAPI) Calls() []string {
	f.lock.Lock()
	defer f.lock.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeAPI) countCalls(name string) int {
	n := 0
	for _, c := range f.Calls() {
		if c == name || strings.HasPrefix(c, name+" ") {
			n++
		}
	}
	return n
}

func (f *fakeAPI) Domains(ctx context.Context) ([]servicedef.Domain, error) {
	if err := f.record("Domains"); err != nil {
		return nil, err
	}
	return f.domains, nil
}

func (f *fakeAPI) Initiatives(ctx context.Context, domainID int) ([]servicedef.TestInitiativePolicy, error) {
	if err := f.record(fmt.Sprintf("Initiatives %d", domainID)); err != nil {
		return nil, err
	}
	return f.initiatives[domainID], nil
}

func (f *fakeAPI) AssetConformanceReport(ctx context.Context, domainID int) ([]servicedef.PolicyAssetConformance, error) {
	if err := f.record(fmt.Sprintf("AssetConformanceReport %d", domainID)); err != nil {
		return nil, err
	}
	return append([]servicedef.PolicyAssetConformance(nil), f.conformance[domainID]...), nil
}

func (f *fakeAPI) Asset(ctx context.Context, assetID int) (servicedef.Asset, error) {
	if err := f.record(fmt.Sprintf("Asset %d", assetID)); err != nil {
		return servicedef.Asset{}, err
	}
	a, ok := f.assets[assetID]
	if !ok {
		return a, fmt.Errorf("no asset %d", assetID)
	}
	return a, nil
}

func (f *fakeAPI) currentStatus() servicedef.AutomationSession {
	f.lock.Lock()
	defer f.lock.Unlock()
	i := f.statusIndex
	if i >= len(f.statuses) {
		i = len(f.statuses) - 1
	}
	f.statusIndex++
	return servicedef.AutomationSession{SessionID: testSessionID, Status: f.statuses[i]}
}

func (f *fakeAPI) NewSession(ctx context.Context) (servicedef.AutomationSession, error) {
	if err := f.record("NewSession"); err != nil {
		return servicedef.AutomationSession{}, err
	}
	return f.currentStatus(), nil
}

func (f *fakeAPI) SessionStatus(ctx context.Context, sessionID string) (servicedef.AutomationSession, error) {
	if err := f.record("SessionStatus " + sessionID); err != nil {
		return servicedef.AutomationSession{}, err
	}
	return f.currentStatus(), nil
}

func (f *fakeAPI) OpenBrowser(ctx context.Context, sessionID string) error {
	if err := f.record("OpenBrowser " + sessionID); err != nil {
		return err
	}
	f.lock.Lock()
	f.browserOpen = true
	f.lock.Unlock()
	return nil
}

func (f *fakeAPI) CloseBrowser(ctx context.Context, sessionID string) error {
	f.lock.Lock()
	f.closeCtxError = ctx.Err()
	f.lock.Unlock()
	if err := f.record("CloseBrowser " + sessionID); err != nil {
		return err
	}
	f.lock.Lock()
	f.browserOpen = false
	f.lock.Unlock()
	return nil
}

func (f *fakeAPI) RunScriptStep(ctx context.Context, sessionID string, step servicedef.AnalysisScriptStep) error {
	if err := f.record(fmt.Sprintf("RunScriptStep %s %s", step.Command, step.Target)); err != nil {
		return err
	}
	f.lock.Lock()
	defer f.lock.Unlock()
	if !f.browserOpen {
		return fmt.Errorf("browser is not open")
	}
	if step.Command == servicedef.CommandOpen {
		f.currentURL = step.Target
	}
	return nil
}

func (f *fakeAPI) AnalyzePage(ctx context.Context, sessionID string) (servicedef.AssetAnalytics, error) {
	f.lock.Lock()
	currentURL := f.currentURL
	f.lock.Unlock()
	if err := f.record("AnalyzePage " + currentURL); err != nil {
		return servicedef.AssetAnalytics{}, err
	}
	var report servicedef.AnalysisReport
	report.URL = currentURL
	for _, key := range f.pages[currentURL] {
		report.Assertions = append(report.Assertions, servicedef.AssertionResult{Assertion: key})
	}
	return servicedef.AssetAnalytics{Report: report}, nil
}

// httpHandler serves the fake over the ARC REST paths, so that tests can go through the real
// client.
func (f *fakeAPI) httpHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/Account/Domains", func(w http.ResponseWriter, r *http.Request) {
		respond(w, r)(f.Domains(r.Context()))
	})
	mux.HandleFunc("GET /v1/AccessibilityPolicy/Domain/{id}/Initiatives", func(w http.ResponseWriter, r *http.Request) {
		respond(w, r)(f.Initiatives(r.Context(), pathInt(r, "id")))
	})
	mux.HandleFunc("GET /v1/AccessibilityPolicy/Domain/{id}/Initiatives/AssetConformanceReport", func(w http.ResponseWriter, r *http.Request) {
		respond(w, r)(f.AssetConformanceReport(r.Context(), pathInt(r, "id")))
	})
	mux.HandleFunc("GET /v1/Assets/{id}", func(w http.ResponseWriter, r *http.Request) {
		respond(w, r)(f.Asset(r.Context(), pathInt(r, "id")))
	})
	mux.HandleFunc("GET /v1/Automation/Session/New", func(w http.ResponseWriter, r *http.Request) {
		respond(w, r)(f.NewSession(r.Context()))
	})
	mux.HandleFunc("GET /v1/Automation/Session/Status", func(w http.ResponseWriter, r *http.Request) {
		respond(w, r)(f.SessionStatus(r.Context(), r.URL.Query().Get("sessionId")))
	})
	mux.HandleFunc("POST /v1/Automation/Session/{id}/Browser/Open", func(w http.ResponseWriter, r *http.Request) {
		respond(w, r)(nil, f.OpenBrowser(r.Context(), r.PathValue("id")))
	})
	mux.HandleFunc("POST /v1/Automation/Session/{id}/Browser/Close", func(w http.ResponseWriter, r *http.Request) {
		respond(w, r)(nil, f.CloseBrowser(r.Context(), r.PathValue("id")))
	})
	mux.HandleFunc("POST /v1/Automation/Session/{id}/Script/Step/Run", func(w http.ResponseWriter, r *http.Request) {
		var step servicedef.AnalysisScriptStep
		if err := decodeJSON(r, &step); err != nil {
			httphelpers.HandlerWithStatus(http.StatusBadRequest).ServeHTTP(w, r)
			return
		}
		respond(w, r)(nil, f.RunScriptStep(r.Context(), r.PathValue("id"), step))
	})
	mux.HandleFunc("GET /v1/Automation/Session/{id}/Analyze/Page", func(w http.ResponseWriter, r *http.Request) {
		respond(w, r)(f.AnalyzePage(r.Context(), r.PathValue("id")))
	})
	return mux
}

func respond(w http.ResponseWriter, r *http.Request) func(interface{}, error) {
	return func(result interface{}, err error) {
		if err != nil {
			httphelpers.HandlerWithResponse(http.StatusInternalServerError, nil, []byte(err.Error())).ServeHTTP(w, r)
			return
		}
		httphelpers.HandlerWithJSONResponse(map[string]interface{}{"result": result}, nil).ServeHTTP(w, r)
	}
}

func decodeJSON(r *http.Request, target interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(target)
}

func pathInt(r *http.Request, name string) int {
	n, _ := strconv.Atoi(r.PathValue(name))
	return n
}
