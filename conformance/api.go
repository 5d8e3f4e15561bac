package conformance

import (
	"context"

	"github.com/tpgarc/arc-conformance-tests/servicedef"
)

// API is the subset of the ARC service used by a conformance run. *client.Client implements it.
type API interface {
	Domains(ctx context.Context) ([]servicedef.Domain, error)
	Initiatives(ctx context.Context, domainID int) ([]servicedef.TestInitiativePolicy, error)
	AssetConformanceReport(ctx context.Context, domainID int) ([]servicedef.PolicyAssetConformance, error)
	Asset(ctx context.Context, assetID int) (servicedef.Asset, error)
	NewSession(ctx context.Context) (servicedef.AutomationSession, error)
	SessionStatus(ctx context.Context, sessionID string) (servicedef.AutomationSession, error)
	OpenBrowser(ctx context.Context, sessionID string) error
	CloseBrowser(ctx context.Context, sessionID string) error
	RunScriptStep(ctx context.Context, sessionID string, step servicedef.AnalysisScriptStep) error
	AnalyzePage(ctx context.Context, sessionID string) (servicedef.AssetAnalytics, error)
}
