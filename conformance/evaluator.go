package conformance

import (
	"fmt"

	"github.com/tpgarc/arc-conformance-tests/servicedef"

	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

// PolicyResult is the outcome of checking one asset against one policy.
type PolicyResult struct {
	AssetID    int
	AssetURL   string
	Policy     servicedef.PolicyAssetConformance
	Count      int
	Target     int
	Conforming bool
}

// Message describes a failed policy the way it is reported to the user.
func (r PolicyResult) Message() string {
	return fmt.Sprintf("%s failed policy: %s", r.AssetURL, r.Policy.Name())
}

// IsConforming applies the policy threshold to a count of matching assertions.
//
// A count of zero is non-conforming: a policy only passes when the page produced at least one
// assertion with its key, and no more than target of them.
func IsConforming(count, target int) bool {
	return count > 0 && count <= target
}

// Evaluate checks a scanned asset against each of its policies. It stamps the matching assertion
// count onto policies[i].CountNonConforming and returns one result per policy, in order.
//
// A policy with no target is treated as having a target of zero.
func Evaluate(asset servicedef.Asset, policies []servicedef.PolicyAssetConformance, report servicedef.AnalysisReport) []PolicyResult {
	results := make([]PolicyResult, 0, len(policies))
	for i := range policies {
		count := report.CountAssertions(policies[i].Assertion)
		policies[i].CountNonConforming = ldvalue.NewOptionalInt(count)
		target := policies[i].TargetNonConforming.OrElse(0)
		results = append(results, PolicyResult{
			AssetID:    asset.ID,
			AssetURL:   asset.URL,
			Policy:     policies[i],
			Count:      count,
			Target:     target,
			Conforming: IsConforming(count, target),
		})
	}
	return results
}
