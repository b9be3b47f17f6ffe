// Package cascade computes the ordered sequence of destination branches a
// pull request must traverse, per spec section 4.1.
package cascade

import (
	"fmt"
	"sort"

	"github.com/simplesurance/bert-e/internal/branchmodel"
)

// Cascade is the ordered, non-empty sequence of destination branches a PR
// must be forward-propagated through. Cascade[0] is always the PR's
// original target.
type Cascade []branchmodel.DestinationBranch

// Build implements the rule table of spec §4.1:
//   - feature/* starts at target and proceeds forward through development
//     lines only (maintenance-only stabilization branches are ignored).
//   - bugfix/* and improvement/* include all stabilization branches at the
//     target's major.minor, then all strictly newer development lines.
//   - project/* is treated like bugfix/improvement (it carries fixes that
//     must reach every still-supported line).
//
// Ignored returns every known destination the PR will not touch, so the
// messenger can report it to the user verbatim.
func Build(
	destinations []branchmodel.DestinationBranch,
	target branchmodel.DestinationBranch,
	prefix branchmodel.SourcePrefix,
) (result Cascade, ignored []branchmodel.DestinationBranch, err error) {
	if target.Kind != branchmodel.KindDevelopment && target.Kind != branchmodel.KindStabilization {
		return nil, nil, fmt.Errorf("cascade: target %q is not a development or stabilization branch", target.Name)
	}

	sorted := make([]branchmodel.DestinationBranch, len(destinations))
	copy(sorted, destinations)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Version().Compare(sorted[j].Version()) < 0
	})

	includeStabilizations := prefix != branchmodel.PrefixFeature

	result = Cascade{target}

	for _, d := range sorted {
		if d.Name == target.Name {
			continue
		}

		if d.Kind == branchmodel.KindHotfix {
			ignored = append(ignored, d)
			continue
		}

		if d.Kind == branchmodel.KindStabilization {
			sameTrain := d.Major == target.Major && d.Minor == target.Minor
			if includeStabilizations && sameTrain && d.Version().Compare(target.Version()) > 0 {
				result = append(result, d)
			} else {
				ignored = append(ignored, d)
			}
			continue
		}

		// d.Kind == KindDevelopment
		if d.Version().Compare(target.Version()) > 0 {
			result = append(result, d)
		} else {
			ignored = append(ignored, d)
		}
	}

	sort.SliceStable(result[1:], func(i, j int) bool {
		a, b := result[1:][i], result[1:][j]
		return lessForCascade(a, b)
	})

	return result, ignored, nil
}

// lessForCascade breaks ties by (major asc, minor asc, patch asc), placing
// stabilization branches of a train ahead of the train's own development
// line at the same major.minor, matching "all stabilization branches at
// the target major.minor, then all newer development lines".
func lessForCascade(a, b branchmodel.DestinationBranch) bool {
	va, vb := a.Version(), b.Version()
	if cmp := va.Compare(vb); cmp != 0 {
		return cmp < 0
	}

	return a.Kind == branchmodel.KindStabilization && b.Kind == branchmodel.KindDevelopment
}
