package multiai

import (
	"fmt"
	"strings"
	"time"

	"ensemble-ai/internal/domain"
)

// Consolidation strategies. All of them select or combine across the
// successful results only.
const (
	ConsolidateBest      = "best"      // fastest successful result
	ConsolidateConsensus = "consensus" // exact-string plurality vote
	ConsolidateWeighted  = "weighted"  // single winner weighted by 1/seconds
	ConsolidateAll       = "all"       // every result, attributed, concatenated
)

// Consolidate reduces a fan-out's results to one output string. It fails
// when no result succeeded or the strategy is unknown.
func Consolidate(results []Result, strategy string) (string, error) {
	var successes []Result
	for _, r := range results {
		if r.Success {
			successes = append(successes, r)
		}
	}
	if len(successes) == 0 {
		return "", domain.NewDomainError("multiai.Consolidate", domain.ErrNoResults, strategy)
	}

	switch strategy {
	case ConsolidateBest:
		return consolidateBest(successes), nil
	case ConsolidateConsensus:
		return consolidateConsensus(successes), nil
	case ConsolidateWeighted:
		return consolidateWeighted(successes), nil
	case ConsolidateAll:
		return consolidateAll(successes), nil
	default:
		return "", domain.NewDomainError("multiai.Consolidate", domain.ErrInvalidInput,
			fmt.Sprintf("unknown strategy %q", strategy))
	}
}

// consolidateBest picks the fastest successful result.
func consolidateBest(successes []Result) string {
	best := successes[0]
	for _, r := range successes[1:] {
		if r.Duration < best.Duration {
			best = r
		}
	}
	return best.Output
}

// consolidateConsensus runs an exact-string plurality vote. Ties break by
// first-seen order.
func consolidateConsensus(successes []Result) string {
	counts := make(map[string]int, len(successes))
	var order []string
	for _, r := range successes {
		if counts[r.Output] == 0 {
			order = append(order, r.Output)
		}
		counts[r.Output]++
	}

	winner := order[0]
	for _, output := range order {
		if counts[output] > counts[winner] {
			winner = output
		}
	}
	return winner
}

// consolidateWeighted selects a single winner with weight 1/duration_seconds.
// This rewards speed, not quality; it is a heuristic kept for compatibility,
// not a statistically justified aggregation.
func consolidateWeighted(successes []Result) string {
	best := successes[0]
	bestWeight := resultWeight(best)
	for _, r := range successes[1:] {
		if w := resultWeight(r); w > bestWeight {
			best = r
			bestWeight = w
		}
	}
	return best.Output
}

func resultWeight(r Result) float64 {
	seconds := r.Duration.Seconds()
	if seconds <= 0 {
		seconds = 0.001
	}
	return 1 / seconds
}

// consolidateAll concatenates every successful result under a
// provider/model attribution header, separated by horizontal rules.
func consolidateAll(successes []Result) string {
	parts := make([]string, 0, len(successes))
	for _, r := range successes {
		header := fmt.Sprintf("%s/%s (%s)", r.Provider, r.Model, r.Duration.Round(time.Millisecond))
		parts = append(parts, header+"\n"+r.Output)
	}
	return strings.Join(parts, "\n\n---\n\n")
}
