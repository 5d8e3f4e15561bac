package conformance

import (
	"context"
	"fmt"

	"github.com/tpgarc/arc-conformance-tests/framework"
	"github.com/tpgarc/arc-conformance-tests/servicedef"
)

// DomainPolicies is the set of collected policies that belong to one domain.
type DomainPolicies struct {
	DomainID int
	Policies []servicedef.TestInitiativePolicy
}

// AssetPolicies is the set of conformance rows that refer to one digital asset.
type AssetPolicies struct {
	AssetID  int
	Policies []servicedef.PolicyAssetConformance
}

// GroupByDomain groups policies by domain, in order of first appearance. Policies without a
// domain are dropped.
func GroupByDomain(policies []servicedef.TestInitiativePolicy) []DomainPolicies {
	var groups []DomainPolicies
	index := make(map[int]int)
	for _, p := range policies {
		id, ok := p.DomainID.Get()
		if !ok {
			continue
		}
		i, found := index[id]
		if !found {
			i = len(groups)
			index[id] = i
			groups = append(groups, DomainPolicies{DomainID: id})
		}
		groups[i].Policies = append(groups[i].Policies, p)
	}
	return groups
}

// GroupByAsset groups conformance rows by digital asset, in order of first appearance, so that
// each asset is only scanned once. Rows without an asset are dropped.
func GroupByAsset(rows []servicedef.PolicyAssetConformance) []AssetPolicies {
	var groups []AssetPolicies
	index := make(map[int]int)
	for _, r := range rows {
		id, ok := r.DigitalAssetID.Get()
		if !ok {
			continue
		}
		i, found := index[id]
		if !found {
			i = len(groups)
			index[id] = i
			groups = append(groups, AssetPolicies{AssetID: id})
		}
		groups[i].Policies = append(groups[i].Policies, r)
	}
	return groups
}

// AssetScan is the analysis of one asset's page.
type AssetScan struct {
	Asset  servicedef.Asset
	Report servicedef.AnalysisReport
}

// Scanner navigates a browser session to assets and analyzes them, one at a time.
type Scanner struct {
	api       API
	sessionID string
	logger    framework.Logger
}

// NewScanner creates a Scanner that drives the given session.
func NewScanner(api API, sessionID string, logger framework.Logger) *Scanner {
	if logger == nil {
		logger = framework.NullLogger()
	}
	return &Scanner{api: api, sessionID: sessionID, logger: logger}
}

// ScanAsset fetches the asset's details, opens its URL in the session, and analyzes the page.
func (s *Scanner) ScanAsset(ctx context.Context, assetID int) (AssetScan, error) {
	asset, err := s.api.Asset(ctx, assetID)
	if err != nil {
		return AssetScan{}, fmt.Errorf("could not get details of asset %d: %w", assetID, err)
	}
	if asset.URL == "" {
		return AssetScan{Asset: asset}, fmt.Errorf("asset %d has no URL", assetID)
	}

	s.logger.Printf("Opening %s", asset.URL)
	step := servicedef.AnalysisScriptStep{Command: servicedef.CommandOpen, Target: asset.URL}
	if err := s.api.RunScriptStep(ctx, s.sessionID, step); err != nil {
		return AssetScan{Asset: asset}, fmt.Errorf("could not open %s: %w", asset.URL, err)
	}

	analytics, err := s.api.AnalyzePage(ctx, s.sessionID)
	if err != nil {
		return AssetScan{Asset: asset}, fmt.Errorf("could not analyze %s: %w", asset.URL, err)
	}
	s.logger.Printf("Analysis of %s returned %d assertions", asset.URL, len(analytics.Report.Assertions))
	return AssetScan{Asset: asset, Report: analytics.Report}, nil
}
