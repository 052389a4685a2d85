package operator

import (
	"testing"

	"github.com/polykernel/polykernel/internal/immune"
	"go.uber.org/zap"
)

type fakeRegistry struct {
	states map[string]immune.State
	pins   map[string]immune.State
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{
		states: map[string]immune.State{"agent-1": immune.Monitoring},
		pins:   map[string]immune.State{},
	}
}

func (f *fakeRegistry) GetState(agentID string) (immune.State, bool) {
	s, ok := f.states[agentID]
	return s, ok
}

func (f *fakeRegistry) ResetState(agentID string) immune.State {
	prev := f.states[agentID]
	f.states[agentID] = immune.Healthy
	delete(f.pins, agentID)
	return prev
}

func (f *fakeRegistry) PinState(agentID string, state immune.State) {
	f.pins[agentID] = state
}

func (f *fakeRegistry) UnpinState(agentID string) {
	delete(f.pins, agentID)
}

func (f *fakeRegistry) IsPinned(agentID string) bool {
	_, ok := f.pins[agentID]
	return ok
}

func (f *fakeRegistry) Suspicion(agentID string) float64 { return 1.5 }
func (f *fakeRegistry) Flux(agentID string) float64      { return 0.3 }

func (f *fakeRegistry) ListAll() []AgentStatus {
	out := make([]AgentStatus, 0, len(f.states))
	for id, s := range f.states {
		out = append(out, AgentStatus{AgentID: id, State: s, Pinned: f.IsPinned(id)})
	}
	return out
}

func TestDispatch_Reset(t *testing.T) {
	reg := newFakeRegistry()
	var audited []string
	s := NewServer("/tmp/unused.sock", reg, func(cmd, agentID, detail string) {
		audited = append(audited, cmd+":"+agentID)
	}, zap.NewNop())

	resp := s.dispatch(Request{Cmd: "reset", AgentID: "agent-1"})
	if !resp.OK || resp.PrevState != "monitoring" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if len(audited) != 1 || audited[0] != "reset:agent-1" {
		t.Fatalf("expected reset to be audited, got %v", audited)
	}
}

func TestDispatch_PinAndStatus(t *testing.T) {
	reg := newFakeRegistry()
	s := NewServer("/tmp/unused.sock", reg, nil, zap.NewNop())

	pinResp := s.dispatch(Request{Cmd: "pin", AgentID: "agent-1", State: "QUARANTINED"})
	if !pinResp.OK || pinResp.PinnedState != "quarantined" {
		t.Fatalf("unexpected pin response: %+v", pinResp)
	}

	statusResp := s.dispatch(Request{Cmd: "status", AgentID: "agent-1"})
	if !statusResp.OK || !statusResp.Pinned {
		t.Fatalf("expected agent-1 to show as pinned: %+v", statusResp)
	}

	unpinResp := s.dispatch(Request{Cmd: "unpin", AgentID: "agent-1"})
	if !unpinResp.OK {
		t.Fatalf("unexpected unpin response: %+v", unpinResp)
	}
	if reg.IsPinned("agent-1") {
		t.Fatal("expected pin to be cleared")
	}
}

func TestDispatch_PinRejectsUnknownState(t *testing.T) {
	reg := newFakeRegistry()
	s := NewServer("/tmp/unused.sock", reg, nil, zap.NewNop())

	resp := s.dispatch(Request{Cmd: "pin", AgentID: "agent-1", State: "BOGUS"})
	if resp.OK {
		t.Fatal("expected pin with unknown state to fail")
	}
}

func TestDispatch_List(t *testing.T) {
	reg := newFakeRegistry()
	s := NewServer("/tmp/unused.sock", reg, nil, zap.NewNop())

	resp := s.dispatch(Request{Cmd: "list"})
	if !resp.OK || len(resp.Agents) != 1 {
		t.Fatalf("unexpected list response: %+v", resp)
	}
}

func TestDispatch_UnknownCommand(t *testing.T) {
	reg := newFakeRegistry()
	s := NewServer("/tmp/unused.sock", reg, nil, zap.NewNop())

	resp := s.dispatch(Request{Cmd: "bogus"})
	if resp.OK {
		t.Fatal("expected unknown command to fail")
	}
}

func TestPinOverlay_PinGetUnpin(t *testing.T) {
	p := NewPinOverlay()
	if p.IsPinned("agent-1") {
		t.Fatal("expected no pin initially")
	}
	p.Pin("agent-1", immune.Quarantined)
	state, ok := p.Get("agent-1")
	if !ok || state != immune.Quarantined {
		t.Fatalf("expected pinned state Quarantined, got %v ok=%v", state, ok)
	}
	p.Unpin("agent-1")
	if p.IsPinned("agent-1") {
		t.Fatal("expected pin to be removed")
	}
}
