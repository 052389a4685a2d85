package ingest

import (
	"context"
	"encoding/json"
	"net"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/polykernel/polykernel/internal/immune"
	"github.com/polykernel/polykernel/internal/kernel"
)

type fakeProcessor struct {
	lastAgentID string
	result      kernel.Result
	err         error
}

func (f *fakeProcessor) ProcessAction(agentID string, act kernel.Action, masterKey []byte, ev *kernel.MemoryEvent) (kernel.Result, error) {
	f.lastAgentID = agentID
	return f.result, f.err
}

func TestDecodeMasterKey_EmptyProducesZeroKey(t *testing.T) {
	key, err := decodeMasterKey("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(key) != 32 {
		t.Fatalf("expected 32-byte zero key, got len %d", len(key))
	}
}

func TestDecodeMasterKey_RejectsInvalidHex(t *testing.T) {
	if _, err := decodeMasterKey("not-hex"); err == nil {
		t.Fatal("expected error for invalid hex")
	}
}

func TestSocketServer_Submit_RejectsMissingAgentID(t *testing.T) {
	s := NewSocketServer("/tmp/unused.sock", &fakeProcessor{}, nil, zap.NewNop())
	resp := s.submit(ActionRequest{})
	if resp.OK {
		t.Fatal("expected missing agent_id to fail")
	}
}

func TestSocketServer_Submit_Success(t *testing.T) {
	proc := &fakeProcessor{
		result: kernel.Result{
			Decision:  kernel.Allow,
			AuditHash: "deadbeef",
			State:     kernel.AgentState{ImmuneState: immune.Healthy},
		},
	}
	s := NewSocketServer("/tmp/unused.sock", proc, nil, zap.NewNop())

	resp := s.submit(ActionRequest{AgentID: "agent-1", ActionType: "tool_call"})
	if !resp.OK {
		t.Fatalf("expected success, got error %q", resp.Error)
	}
	if resp.Decision != "allow" || resp.AuditHash != "deadbeef" || resp.ImmuneState != "healthy" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if proc.lastAgentID != "agent-1" {
		t.Fatalf("expected processor to be called with agent-1, got %q", proc.lastAgentID)
	}
}

func TestSocketServer_EndToEnd(t *testing.T) {
	proc := &fakeProcessor{
		result: kernel.Result{
			Decision: kernel.Transform,
			State:    kernel.AgentState{ImmuneState: immune.Monitoring},
		},
	}
	sockPath := filepath.Join(t.TempDir(), "ingest.sock")
	srv := NewSocketServer(sockPath, proc, nil, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe(ctx) }()

	var conn net.Conn
	var err error
	for i := 0; i < 50; i++ {
		conn, err = net.Dial("unix", sockPath)
		if err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("failed to dial ingest socket: %v", err)
	}
	defer conn.Close()

	req := ActionRequest{AgentID: "agent-7", ActionType: "read_file"}
	data, _ := json.Marshal(req)
	if _, err := conn.Write(data); err != nil {
		t.Fatalf("write request: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 4096)
	n, err := conn.Read(buf)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}

	var resp ActionResponse
	if err := json.Unmarshal(buf[:n], &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if !resp.OK || resp.Decision != "transform" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}
