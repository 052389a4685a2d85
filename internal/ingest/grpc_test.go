package ingest

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/polykernel/polykernel/internal/immune"
	"github.com/polykernel/polykernel/internal/kernel"
)

func TestGRPCServer_ProcessAction_RejectsMissingAgentID(t *testing.T) {
	srv := NewGRPCServer(&fakeProcessor{}, zap.NewNop())
	resp, err := srv.ProcessAction(context.Background(), &ProcessActionRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.OK {
		t.Fatal("expected missing agent_id to fail")
	}
}

func TestGRPCServer_ProcessAction_Success(t *testing.T) {
	proc := &fakeProcessor{
		result: kernel.Result{
			Decision: kernel.Block,
			State:    kernel.AgentState{ImmuneState: immune.Quarantined},
		},
	}
	srv := NewGRPCServer(proc, zap.NewNop())

	resp, err := srv.ProcessAction(context.Background(), &ProcessActionRequest{AgentID: "agent-3"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !resp.OK || resp.Decision != "block" || resp.ImmuneState != "quarantined" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if proc.lastAgentID != "agent-3" {
		t.Fatalf("expected processor called with agent-3, got %q", proc.lastAgentID)
	}
}

func TestGobCodec_RoundTrip(t *testing.T) {
	c := gobCodec{}
	req := ProcessActionRequest{AgentID: "agent-1", ActionType: "tool_call"}

	data, err := c.Marshal(&req)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var out ProcessActionRequest
	if err := c.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if out.AgentID != req.AgentID || out.ActionType != req.ActionType {
		t.Fatalf("round trip mismatch: %+v", out)
	}
}
