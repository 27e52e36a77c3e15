// Package agentregistry implements AgentRegistry + AgentFactory (C7): an
// in-memory, name-keyed table of frozen AgentSpec values.
package agentregistry

import (
	"fmt"
	"regexp"
	"sort"
	"sync"
)

var nameRE = regexp.MustCompile(`^[a-z][a-z0-9-]*$`)

// AgentType distinguishes a specialized worker agent from an agent that
// itself plans and delegates (§3).
type AgentType string

const (
	TypeSpecialized   AgentType = "specialized"
	TypeOrchestration AgentType = "orchestration"
)

// AgentSpec describes one addressable agent. Owned by the Registry;
// immutable after registration (§4.7) — callers receive copies, never the
// stored value.
type AgentSpec struct {
	Name         string
	Category     string
	Type         AgentType
	Description  string
	SystemPrompt string
	Tools        []string
	Capabilities []string
	Constraints  []string
	Metadata     map[string]string
}

// IsCritical reports whether this spec's metadata flags step failures as
// fatal to the whole orchestration (§9 open-question decision).
func (s AgentSpec) IsCritical() bool {
	return s.Metadata["critical"] == "true"
}

func (s AgentSpec) clone() AgentSpec {
	clone := s
	clone.Tools = append([]string(nil), s.Tools...)
	clone.Capabilities = append([]string(nil), s.Capabilities...)
	clone.Constraints = append([]string(nil), s.Constraints...)
	if s.Metadata != nil {
		clone.Metadata = make(map[string]string, len(s.Metadata))
		for k, v := range s.Metadata {
			clone.Metadata[k] = v
		}
	}
	return clone
}

// SystemAgentName is the built-in fallback template, always present, used
// when the orchestrator cannot resolve a named agent (§4.7, §4.10).
const SystemAgentName = "system-agent"

// Registry is a name-keyed table of AgentSpec. Safe for concurrent use.
type Registry struct {
	mu           sync.RWMutex
	agents       map[string]AgentSpec
	allowedTools map[string]bool
}

// NewRegistry builds a Registry seeded with the built-in system-agent
// template. allowedTools is the universe Create validates
// AgentSpec.Tools against; a nil/empty set allows any tool name.
func NewRegistry(allowedTools []string) *Registry {
	r := &Registry{agents: make(map[string]AgentSpec)}
	if len(allowedTools) > 0 {
		r.allowedTools = make(map[string]bool, len(allowedTools))
		for _, t := range allowedTools {
			r.allowedTools[t] = true
		}
	}
	r.agents[SystemAgentName] = AgentSpec{
		Name:         SystemAgentName,
		Category:     "general",
		Type:         TypeSpecialized,
		Description:  "General-purpose fallback agent used when no more specific agent is registered or resolvable.",
		SystemPrompt: "You are a careful, general-purpose assistant. Complete the delegated step using only the tools you are given.",
		Tools:        nil,
	}
	return r
}

// Create validates spec (name format, non-empty prompt, tool names from the
// allowed universe) and registers it, returning a frozen copy. Registration
// is idempotent by name: re-registering replaces the prior spec (§4.7).
func (r *Registry) Create(spec AgentSpec) (AgentSpec, error) {
	if err := r.validate(spec); err != nil {
		return AgentSpec{}, err
	}

	frozen := spec.clone()
	r.mu.Lock()
	r.agents[frozen.Name] = frozen
	r.mu.Unlock()
	return frozen.clone(), nil
}

func (r *Registry) validate(spec AgentSpec) error {
	if !nameRE.MatchString(spec.Name) {
		return fmt.Errorf("invalid agent name %q: must match %s", spec.Name, nameRE.String())
	}
	if spec.SystemPrompt == "" {
		return fmt.Errorf("agent %q: system prompt must not be empty", spec.Name)
	}
	if r.allowedTools != nil {
		for _, tool := range spec.Tools {
			if !r.allowedTools[tool] {
				return fmt.Errorf("agent %q: tool %q is not in the allowed universe", spec.Name, tool)
			}
		}
	}
	return nil
}

// Get resolves name, falling back to SystemAgentName when missing, as the
// orchestrator does when a planned step names an unregistered agent (§4.10).
func (r *Registry) Get(name string) AgentSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if spec, ok := r.agents[name]; ok {
		return spec.clone()
	}
	return r.agents[SystemAgentName].clone()
}

// Lookup resolves name without falling back, reporting whether it exists.
func (r *Registry) Lookup(name string) (AgentSpec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	spec, ok := r.agents[name]
	if !ok {
		return AgentSpec{}, false
	}
	return spec.clone(), true
}

// List returns every registered spec, ordered by name.
func (r *Registry) List() []AgentSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]AgentSpec, 0, len(r.agents))
	for _, spec := range r.agents {
		out = append(out, spec.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Filter returns every registered spec for which keep returns true.
func (r *Registry) Filter(keep func(AgentSpec) bool) []AgentSpec {
	out := make([]AgentSpec, 0)
	for _, spec := range r.List() {
		if keep(spec) {
			out = append(out, spec)
		}
	}
	return out
}
