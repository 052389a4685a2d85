package kernel

import (
	"github.com/polykernel/polykernel/internal/immune"
	"github.com/polykernel/polykernel/internal/operator"
)

// Registry adapts a Pipeline to operator.StateRegistry, letting the operator
// socket server read and override agent immune states without the operator
// package needing to know anything about the pipeline's internals.
type Registry struct {
	p *Pipeline
}

// NewRegistry wraps p as an operator.StateRegistry.
func NewRegistry(p *Pipeline) *Registry {
	return &Registry{p: p}
}

func (r *Registry) GetState(agentID string) (immune.State, bool) {
	r.p.agentsMu.Lock()
	e, ok := r.p.agents[agentID]
	r.p.agentsMu.Unlock()
	if !ok {
		return immune.Healthy, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.ImmuneState, true
}

func (r *Registry) ResetState(agentID string) immune.State {
	r.p.agentsMu.Lock()
	e, ok := r.p.agents[agentID]
	r.p.agentsMu.Unlock()

	r.p.pins.Unpin(agentID)

	if !ok {
		return immune.Healthy
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	prev := e.state.ImmuneState
	e.state.ImmuneRecord.Reset()
	e.state.ImmuneState = immune.Healthy
	return prev
}

func (r *Registry) PinState(agentID string, state immune.State) {
	r.p.pins.Pin(agentID, state)
}

func (r *Registry) UnpinState(agentID string) {
	r.p.pins.Unpin(agentID)
}

func (r *Registry) IsPinned(agentID string) bool {
	return r.p.pins.IsPinned(agentID)
}

func (r *Registry) Suspicion(agentID string) float64 {
	r.p.agentsMu.Lock()
	e, ok := r.p.agents[agentID]
	r.p.agentsMu.Unlock()
	if !ok {
		return 0
	}
	return e.state.ImmuneRecord.Suspicion()
}

func (r *Registry) Flux(agentID string) float64 {
	r.p.agentsMu.Lock()
	e, ok := r.p.agents[agentID]
	r.p.agentsMu.Unlock()
	if !ok {
		return 0
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Flux
}

func (r *Registry) ListAll() []operator.AgentStatus {
	r.p.agentsMu.Lock()
	ids := make([]string, 0, len(r.p.agents))
	entries := make([]*agentEntry, 0, len(r.p.agents))
	for id, e := range r.p.agents {
		ids = append(ids, id)
		entries = append(entries, e)
	}
	r.p.agentsMu.Unlock()

	out := make([]operator.AgentStatus, 0, len(ids))
	for i, id := range ids {
		e := entries[i]
		e.mu.Lock()
		out = append(out, operator.AgentStatus{
			AgentID:   id,
			State:     e.state.ImmuneState,
			Pinned:    r.p.pins.IsPinned(id),
			Suspicion: e.state.ImmuneRecord.Suspicion(),
			Flux:      e.state.Flux,
		})
		e.mu.Unlock()
	}
	return out
}
