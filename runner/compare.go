package runner

import (
	"sort"
	"time"

	"github.com/bruce-robotics/bruce-acceptor/types"
)

// Compare builds pairwise deltas between every two platforms' summaries for
// the same test. Pairs are ordered lexicographically so output is stable.
func Compare(summaries map[string]types.TestSummary, testName string) []types.Comparison {
	if len(summaries) < 2 {
		return nil
	}
	platforms := make([]string, 0, len(summaries))
	for p := range summaries {
		platforms = append(platforms, p)
	}
	sort.Strings(platforms)

	var out []types.Comparison
	for i := 0; i < len(platforms); i++ {
		for j := i + 1; j < len(platforms); j++ {
			a, b := summaries[platforms[i]], summaries[platforms[j]]
			out = append(out, types.Comparison{
				PlatformA:     platforms[i],
				PlatformB:     platforms[j],
				TestName:      testName,
				SuccessA:      a.Success,
				SuccessB:      b.Success,
				SuccessParity: a.Success == b.Success,
				StepsA:        a.TotalSteps,
				StepsB:        b.TotalSteps,
				StepDelta:     a.TotalSteps - b.TotalSteps,
				Timestamp:     time.Now(),
			})
		}
	}
	return out
}
