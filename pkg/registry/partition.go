package registry

import (
	"errors"
	"fmt"
	"sort"

	"github.com/soundprediction/lexigraph/pkg/types"
)

// ErrPartition is returned by VerifyPartition when domains overlap or do not cover
// the searchable node set.
var ErrPartition = errors.New("domain partition violated")

// VerifyPartition checks that member sets are pairwise disjoint and, when
// searchable is non-nil, that their union equals it.
func VerifyPartition(domains []*types.Domain, searchable []string) error {
	owner := make(map[string]string)
	var errs []error

	for _, d := range domains {
		for _, id := range d.MemberIDs {
			if prev, ok := owner[id]; ok && prev != d.ID {
				errs = append(errs, fmt.Errorf("%w: node %s belongs to %s and %s", ErrPartition, id, prev, d.ID))
				continue
			}
			owner[id] = d.ID
		}
	}

	if searchable != nil {
		want := make(map[string]struct{}, len(searchable))
		var unassigned []string
		for _, id := range searchable {
			want[id] = struct{}{}
			if _, ok := owner[id]; !ok {
				unassigned = append(unassigned, id)
			}
		}
		var unknown []string
		for id := range owner {
			if _, ok := want[id]; !ok {
				unknown = append(unknown, id)
			}
		}
		sort.Strings(unknown)
		if len(unassigned) > 0 {
			errs = append(errs, fmt.Errorf("%w: %d searchable nodes have no domain: %v", ErrPartition, len(unassigned), unassigned))
		}
		if len(unknown) > 0 {
			errs = append(errs, fmt.Errorf("%w: members are not searchable nodes: %v", ErrPartition, unknown))
		}
	}

	return errors.Join(errs...)
}
