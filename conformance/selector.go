package conformance

import (
	"context"
	"fmt"

	"github.com/tpgarc/arc-conformance-tests/servicedef"
)

// SelectDomains returns the domains whose URL exactly equals one of allowList, keeping their
// order. An empty allowList selects every domain.
func SelectDomains(domains []servicedef.Domain, allowList []string) []servicedef.Domain {
	if len(allowList) == 0 {
		return append([]servicedef.Domain(nil), domains...)
	}
	allowed := make(map[string]struct{}, len(allowList))
	for _, u := range allowList {
		allowed[u] = struct{}{}
	}
	var ret []servicedef.Domain
	for _, d := range domains {
		if _, ok := allowed[d.URL]; ok {
			ret = append(ret, d)
		}
	}
	return ret
}

// CollectPolicies fetches the initiative policies of each domain and returns them as one list.
func CollectPolicies(ctx context.Context, api API, domains []servicedef.Domain) ([]servicedef.TestInitiativePolicy, error) {
	var policies []servicedef.TestInitiativePolicy
	for _, d := range domains {
		forDomain, err := api.Initiatives(ctx, d.ID)
		if err != nil {
			return nil, fmt.Errorf("could not get initiative policies for %s: %w", d.URL, err)
		}
		policies = append(policies, forDomain...)
	}
	return policies, nil
}
