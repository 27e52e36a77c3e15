package trace

import (
	"context"
	"sort"
	"strings"
)

// Confidence bands for find_smart's mode hint (§4.4).
const (
	FollowerConfidence = 0.92
	MixedConfidence    = 0.75
)

// ModeHint is the mode a Matcher result suggests the Dispatcher adopt.
type ModeHint string

const (
	HintFollower ModeHint = "FOLLOWER"
	HintMixed    ModeHint = "MIXED"
	HintLearner  ModeHint = "LEARNER"
)

// Match is one scored candidate returned by the matcher's internals.
type Match struct {
	Trace      ExecutionTrace
	Confidence float64
}

// Classifier scores the similarity between a goal and a candidate trace on a
// 0-1 scale. The reference implementation (Jaccard) is always available;
// memory.enable_llm_matching may swap in a CognitiveAdapter-backed
// classifier, bounded to one paid call per dispatch by a similarity cache.
type Classifier interface {
	Classify(ctx context.Context, goal string, candidate ExecutionTrace) (float64, error)
}

// Matcher implements TraceMatcher (C4): hash-exact and similarity-scored
// lookup over a Store.
type Matcher struct {
	store      *Store
	classifier Classifier
}

// NewMatcher builds a Matcher using the reference Jaccard classifier.
func NewMatcher(store *Store) *Matcher {
	return &Matcher{store: store, classifier: JaccardClassifier{}}
}

// WithClassifier swaps in an alternate similarity classifier, e.g. an
// LLM-backed one gated by memory.enable_llm_matching.
func (m *Matcher) WithClassifier(c Classifier) *Matcher {
	m.classifier = c
	return m
}

// FindExact returns the trace whose goal_signature matches goal's, if any.
func (m *Matcher) FindExact(ctx context.Context, goal string) (ExecutionTrace, bool, error) {
	t, err := m.store.Load(ctx, NewSignature(goal))
	if err != nil {
		return ExecutionTrace{}, false, nil //nolint:nilerr // missing trace is not an error for this query
	}
	return t, true, nil
}

// FindSmart implements find_smart(goal) → (trace?, confidence, mode_hint)
// (§4.4): an exact match always wins at confidence 1.0; otherwise the
// highest-scoring semantic match at or above minConfidence is returned.
func (m *Matcher) FindSmart(ctx context.Context, goal string, minConfidence float64) (*ExecutionTrace, float64, ModeHint, error) {
	if exact, ok, err := m.FindExact(ctx, goal); err != nil {
		return nil, 0, "", err
	} else if ok {
		return &exact, 1.0, HintFollower, nil
	}

	candidates, err := m.store.All(ctx)
	if err != nil {
		return nil, 0, "", err
	}

	best, err := m.classifyBest(ctx, goal, candidates, minConfidence)
	if err != nil {
		return nil, 0, "", err
	}

	if best == nil {
		return nil, 0, HintLearner, nil
	}
	return &best.Trace, best.Confidence, hintForConfidence(best.Confidence), nil
}

// classifyBest narrows candidates to the single closest one by a free local
// Jaccard prefilter, then issues exactly one m.classifier.Classify call
// against that winner (§4.4: "bounded to one paid call per dispatch" — an
// LLM-backed classifier must never be fanned out over every candidate in the
// store). The prefilter uses the same scoring formula as JaccardClassifier,
// so when no alternate classifier has been attached the prefilter winner and
// the classified winner are always the same trace.
func (m *Matcher) classifyBest(ctx context.Context, goal string, candidates []ExecutionTrace, minConfidence float64) (*Match, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	var prefilterWinner *Match
	for _, cand := range candidates {
		score, _ := JaccardClassifier{}.Classify(ctx, goal, cand)
		candidate := Match{Trace: cand, Confidence: score}
		if prefilterWinner == nil || isBetterMatch(candidate, *prefilterWinner) {
			prefilterWinner = &candidate
		}
	}

	score, err := m.classifier.Classify(ctx, goal, prefilterWinner.Trace)
	if err != nil {
		return nil, err
	}
	if score < minConfidence {
		return nil, nil
	}
	return &Match{Trace: prefilterWinner.Trace, Confidence: score}, nil
}

// hintForConfidence maps a confidence score to a mode hint per §4.4.
func hintForConfidence(confidence float64) ModeHint {
	switch {
	case confidence >= FollowerConfidence:
		return HintFollower
	case confidence >= MixedConfidence:
		return HintMixed
	default:
		return HintLearner
	}
}

// isBetterMatch applies the tie-break policy from §4.9: higher confidence
// wins; ties prefer higher usage_count, then higher success_rating, then
// the most recently used trace.
func isBetterMatch(a, b Match) bool {
	if a.Confidence != b.Confidence {
		return a.Confidence > b.Confidence
	}
	if a.Trace.UsageCount != b.Trace.UsageCount {
		return a.Trace.UsageCount > b.Trace.UsageCount
	}
	if a.Trace.SuccessRating != b.Trace.SuccessRating {
		return a.Trace.SuccessRating > b.Trace.SuccessRating
	}
	return lastUsedAfter(a.Trace, b.Trace)
}

func lastUsedAfter(a, b ExecutionTrace) bool {
	at, bt := a.LastUsedAt, b.LastUsedAt
	switch {
	case at == nil && bt == nil:
		return false
	case at == nil:
		return false
	case bt == nil:
		return true
	default:
		return at.After(*bt)
	}
}

// JaccardClassifier is the reference similarity function (§4.4): normalized
// token-set Jaccard overlap over the goal texts, plus a bonus proportional
// to log(usage_count+1) * success_rating, clamped to [0, 1].
type JaccardClassifier struct{}

func (JaccardClassifier) Classify(_ context.Context, goal string, candidate ExecutionTrace) (float64, error) {
	score := jaccard(tokenize(goal), tokenize(candidate.GoalText))
	score += similarityBonus(candidate.UsageCount, candidate.SuccessRating) * 0.05
	if score > 1 {
		score = 1
	}
	return score, nil
}

func tokenize(s string) map[string]struct{} {
	fields := strings.Fields(strings.ToLower(s))
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	intersection := 0
	for k := range a {
		if _, ok := b[k]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	return float64(intersection) / float64(union)
}

// sortMatchesDesc is a small helper kept for callers that want a ranked list
// rather than just the winner, e.g. MemoryQuery.find_similar.
func sortMatchesDesc(matches []Match) {
	sort.Slice(matches, func(i, j int) bool {
		return isBetterMatch(matches[i], matches[j])
	})
}
