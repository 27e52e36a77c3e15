package trace

import (
	"context"
	"fmt"
)

// highConfidenceThreshold marks the statistics() cutoff for "high confidence"
// traces (§4.5): those whose own success_rating is at least this value.
const highConfidenceThreshold = 0.9

// Statistics is the aggregate summary returned by Query.Statistics (§4.5).
type Statistics struct {
	Total              int     `json:"total"`
	HighConfidenceCount int     `json:"high_confidence_count"`
	AvgSuccess          float64 `json:"avg_success"`
	FactsCount          int     `json:"facts_count"`
	InsightsCount       int     `json:"insights_count"`
}

// Query is the read-only MemoryQuery component (C5): a pure function of
// TraceStore contents, never mutating it.
type Query struct {
	store   *Store
	matcher *Matcher
}

// NewQuery builds a Query over store, using matcher for similarity lookups.
func NewQuery(store *Store, matcher *Matcher) *Query {
	return &Query{store: store, matcher: matcher}
}

// Statistics computes the aggregate view over every trace in the store.
// facts_count counts traces with no tools used (pure knowledge, no action);
// insights_count counts the rest (executed at least one tool).
func (q *Query) Statistics(ctx context.Context) (Statistics, error) {
	all, err := q.store.All(ctx)
	if err != nil {
		return Statistics{}, err
	}

	stats := Statistics{Total: len(all)}
	if len(all) == 0 {
		return stats, nil
	}

	var successSum float64
	for _, t := range all {
		successSum += t.SuccessRating
		if t.SuccessRating >= highConfidenceThreshold {
			stats.HighConfidenceCount++
		}
		if len(t.ToolsUsed) == 0 {
			stats.FactsCount++
		} else {
			stats.InsightsCount++
		}
	}
	stats.AvgSuccess = successSum / float64(len(all))
	return stats, nil
}

// Recommendations returns human-readable hints derived from matches against
// goal (§4.5), e.g. "similar task executed N times with M% success".
func (q *Query) Recommendations(ctx context.Context, goal string) ([]string, error) {
	matches, err := q.rankedMatches(ctx, goal, MixedConfidence)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, nil
	}

	recs := make([]string, 0, len(matches))
	for _, m := range matches {
		recs = append(recs, fmt.Sprintf(
			"similar task %q executed %d time(s) with %.0f%% success (confidence %.2f)",
			m.Trace.GoalText, m.Trace.UsageCount, m.Trace.SuccessRating*100, m.Confidence,
		))
	}
	return recs, nil
}

// FindSimilar returns up to limit traces at or above minConfidence, ranked by
// the matcher's tie-break policy (§4.9).
func (q *Query) FindSimilar(ctx context.Context, goal string, limit int, minConfidence float64) ([]ExecutionTrace, error) {
	matches, err := q.rankedMatches(ctx, goal, minConfidence)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	out := make([]ExecutionTrace, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.Trace)
	}
	return out, nil
}

// rankedMatches scores every trace in the store against goal and returns the
// ones at or above minConfidence, best match first.
func (q *Query) rankedMatches(ctx context.Context, goal string, minConfidence float64) ([]Match, error) {
	candidates, err := q.store.All(ctx)
	if err != nil {
		return nil, err
	}

	matches := make([]Match, 0, len(candidates))
	for _, cand := range candidates {
		score, err := q.matcher.classifier.Classify(ctx, goal, cand)
		if err != nil {
			return nil, err
		}
		if score < minConfidence {
			continue
		}
		matches = append(matches, Match{Trace: cand, Confidence: score})
	}
	sortMatchesDesc(matches)
	return matches, nil
}
