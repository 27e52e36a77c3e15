// Package trace implements the content-addressed execution trace memory:
// persistence (TraceStore), hash-exact and semantic lookup (TraceMatcher),
// and read-only aggregation (Query).
package trace

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
	"time"
)

// Mode is the execution mode that produced (or would replay) a trace.
type Mode string

const (
	ModeLearner      Mode = "LEARNER"
	ModeMixed        Mode = "MIXED"
	ModeFollower     Mode = "FOLLOWER"
	ModeOrchestrator Mode = "ORCHESTRATOR"
	ModeCrystallized Mode = "CRYSTALLIZED"
)

// Signature is a stable short identifier derived from a goal's normalized
// text: the first 16 hex characters of its SHA-256 content hash.
type Signature string

var whitespaceRE = regexp.MustCompile(`\s+`)

// NewSignature computes the GoalSignature for goalText. Two goals with
// identical normalized text (case-folded, whitespace-collapsed, trimmed)
// share a signature; near-duplicates do not.
func NewSignature(goalText string) Signature {
	normalized := strings.ToLower(strings.TrimSpace(goalText))
	normalized = whitespaceRE.ReplaceAllString(normalized, " ")
	sum := sha256.Sum256([]byte(normalized))
	return Signature(hex.EncodeToString(sum[:])[:16])
}

// ExecutionTrace is one persisted record of a successful or failed execution
// worth remembering. See SPEC_FULL.md §3 for field semantics and §6 for the
// on-disk JSON schema (field names below are chosen to marshal identically).
type ExecutionTrace struct {
	GoalSignature         Signature  `json:"goal_signature"`
	GoalText              string     `json:"goal_text"`
	SuccessRating         float64    `json:"success_rating"`
	UsageCount            int        `json:"usage_count"`
	CreatedAt             time.Time  `json:"created_at"`
	LastUsedAt            *time.Time `json:"last_used_at"`
	EstimatedCostUSD      float64    `json:"estimated_cost_usd"`
	EstimatedTimeSecs     float64    `json:"estimated_time_secs"`
	Mode                  Mode       `json:"mode"`
	ToolsUsed             []string   `json:"tools_used"`
	OutputSummary         string     `json:"output_summary"`
	ErrorNotes            *string    `json:"error_notes"`
	CrystallizedIntoTool  *string    `json:"crystallized_into_tool"`
}

// IsCrystallizable reports whether t has earned promotion to a crystallized,
// zero-cost callable under the given thresholds (§4.4).
func (t ExecutionTrace) IsCrystallizable(minUsage int, minSuccess float64) bool {
	return t.UsageCount >= minUsage && t.SuccessRating >= minSuccess
}

// DedupeTools returns ToolsUsed with duplicates removed, order preserved.
func DedupeTools(tools []string) []string {
	seen := make(map[string]bool, len(tools))
	out := make([]string, 0, len(tools))
	for _, name := range tools {
		if seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}
