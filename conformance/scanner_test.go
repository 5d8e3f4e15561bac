package conformance

import (
	"context"
	"errors"
	"testing"

	"github.com/tpgarc/arc-conformance-tests/servicedef"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

func TestGroupByDomainKeepsFirstSeenOrder(t *testing.T) {
	noDomain := policy(0, 1, "Z", 1)
	noDomain.DomainID = ldvalue.OptionalInt{}
	policies := []servicedef.TestInitiativePolicy{
		policy(2, 1, "A", 1),
		policy(1, 2, "B", 1),
		noDomain,
		policy(2, 3, "C", 1),
	}

	groups := GroupByDomain(policies)
	require.Len(t, groups, 2)
	assert.Equal(t, 2, groups[0].DomainID)
	assert.Len(t, groups[0].Policies, 2)
	assert.Equal(t, "C", groups[0].Policies[1].Assertion)
	assert.Equal(t, 1, groups[1].DomainID)
	assert.Len(t, groups[1].Policies, 1)
}

func TestGroupByAssetScansEachAssetOnce(t *testing.T) {
	noAsset := policy(1, 0, "Z", 1)
	noAsset.DigitalAssetID = ldvalue.OptionalInt{}
	rows := []servicedef.PolicyAssetConformance{
		policy(1, 10, "A", 1),
		policy(1, 11, "A", 1),
		policy(1, 10, "B", 1),
		noAsset,
	}

	groups := GroupByAsset(rows)
	require.Len(t, groups, 2)
	assert.Equal(t, 10, groups[0].AssetID)
	assert.Equal(t, []string{"A", "B"}, []string{groups[0].Policies[0].Assertion, groups[0].Policies[1].Assertion})
	assert.Equal(t, 11, groups[1].AssetID)
}

func TestGroupingEmptyInput(t *testing.T) {
	assert.Len(t, GroupByDomain(nil), 0)
	assert.Len(t, GroupByAsset(nil), 0)
}

func openFakeBrowser(t *testing.T, api *fakeAPI) {
	require.NoError(t, api.OpenBrowser(context.Background(), testSessionID))
}

func TestScanAssetOpensAssetURLAndAnalyzesPage(t *testing.T) {
	api := newFakeAPI()
	domain := servicedef.Domain{ID: 1, URL: "https://example.com"}
	asset := servicedef.Asset{ID: 10, URL: "https://example.com/a"}
	api.addAsset(domain, asset, []string{"X", "Y"})
	openFakeBrowser(t, api)

	scan, err := NewScanner(api, testSessionID, nil).ScanAsset(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, asset, scan.Asset)
	assert.Equal(t, asset.URL, scan.Report.URL)
	assert.Equal(t, 1, scan.Report.CountAssertions("X"))
	assert.Equal(t, []string{
		"OpenBrowser " + testSessionID,
		"Asset 10",
		"RunScriptStep open https://example.com/a",
		"AnalyzePage https://example.com/a",
	}, api.Calls())
}

func TestScanAssetFailsForAssetWithoutURL(t *testing.T) {
	api := newFakeAPI()
	api.assets[10] = servicedef.Asset{ID: 10}
	openFakeBrowser(t, api)

	_, err := NewScanner(api, testSessionID, nil).ScanAsset(context.Background(), 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "asset 10 has no URL")
	assert.Equal(t, 0, api.countCalls("RunScriptStep"))
}

func TestScanAssetWrapsErrors(t *testing.T) {
	for _, op := range []string{"Asset", "RunScriptStep", "AnalyzePage"} {
		t.Run(op, func(t *testing.T) {
			api := newFakeAPI()
			api.addAsset(servicedef.Domain{ID: 1}, servicedef.Asset{ID: 10, URL: "https://example.com/a"}, nil)
			openFakeBrowser(t, api)
			fakeErr := errors.New("sorry")
			api.errs[op] = fakeErr

			_, err := NewScanner(api, testSessionID, nil).ScanAsset(context.Background(), 10)
			assert.ErrorIs(t, err, fakeErr)
		})
	}
}
