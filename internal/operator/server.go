// Package operator — server.go
//
// Unix domain socket server for polykernel operator overrides.
//
// Protocol: newline-delimited JSON over a Unix domain socket.
// Socket path: /run/polykernel/operator.sock (configurable).
// Permissions: 0600, owned by root. Only root can connect.
//
// Commands (JSON request → JSON response):
//
//   {"cmd":"reset","agent_id":"agent-7"}
//     → Resets agent-7's immune record to healthy, zeroes its suspicion
//       accumulator and accuser set, and clears any pin.
//     → Response: {"ok":true,"agent_id":"agent-7","prev_state":"quarantined"}
//
//   {"cmd":"pin","agent_id":"agent-7","state":"QUARANTINED"}
//     → Pins agent-7's immune state to the given value. The pipeline will
//       not let the immune model escalate or decay this agent until unpinned.
//     → Response: {"ok":true,"agent_id":"agent-7","pinned_state":"quarantined"}
//
//   {"cmd":"unpin","agent_id":"agent-7"}
//     → Removes the pin on agent-7, resuming normal immune-state evolution.
//     → Response: {"ok":true,"agent_id":"agent-7"}
//
//   {"cmd":"status","agent_id":"agent-7"}
//     → Returns the current immune state, suspicion, flux, and pin status.
//     → Response: {"ok":true,"agent_id":"agent-7","state":"monitoring","suspicion":1.2,"flux":0.74,"pinned":false}
//
//   {"cmd":"list"}
//     → Returns all tracked agents with their current states. In list
//       entries the state is the numeric immune.State value (1 = monitoring).
//     → Response: {"ok":true,"agents":[{"agent_id":"agent-7","state":1,"suspicion":1.2,"flux":0.74,"pinned":false},...]}
//
// Security:
//   - Socket is created with 0600 permissions; only root can connect.
//   - Each connection is handled in a separate goroutine.
//   - Max concurrent connections: 4 (operator use only, not high-throughput).
//   - Max request size: 4096 bytes (prevents memory exhaustion).
//   - Connection timeout: a single 10s deadline covers both read and write.
//   - reset, pin and unpin are passed to the audit callback when one is
//     supplied; status and list are not audited.
package operator

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/polykernel/polykernel/internal/immune"
)

const (
	maxConcurrentConns = 4
	maxRequestBytes    = 4096
	connTimeout        = 10 * time.Second
)

// StateRegistry is the interface the operator server uses to read and
// mutate agent immune states. Implemented by the kernel pipeline's agent map.
type StateRegistry interface {
	// GetState returns the current immune state for an agent, or
	// (immune.Healthy, false) if the agent is not tracked.
	GetState(agentID string) (immune.State, bool)

	// ResetState resets an agent to healthy and clears its suspicion,
	// accusers, and any pin. Returns the previous state.
	ResetState(agentID string) immune.State

	// PinState pins an agent's immune state, preventing further evolution.
	PinState(agentID string, state immune.State)

	// UnpinState removes the pin on an agent.
	UnpinState(agentID string)

	// IsPinned returns true if the agent has an active pin.
	IsPinned(agentID string) bool

	// Suspicion returns the agent's current suspicion accumulator value.
	Suspicion(agentID string) float64

	// Flux returns the agent's current flux value.
	Flux(agentID string) float64

	// ListAll returns all tracked agents with their current states.
	ListAll() []AgentStatus
}

// AgentStatus is a snapshot of a single agent's state.
type AgentStatus struct {
	AgentID   string       `json:"agent_id"`
	State     immune.State `json:"state"`
	Pinned    bool         `json:"pinned"`
	Suspicion float64      `json:"suspicion"`
	Flux      float64      `json:"flux"`
}

// Request is the JSON structure for operator commands.
type Request struct {
	Cmd     string `json:"cmd"`               // reset | pin | unpin | status | list
	AgentID string `json:"agent_id,omitempty"` // target agent
	State   string `json:"state,omitempty"`    // target state for pin command
}

// Response is the JSON structure for operator command responses.
type Response struct {
	OK          bool          `json:"ok"`
	Error       string        `json:"error,omitempty"`
	AgentID     string        `json:"agent_id,omitempty"`
	State       string        `json:"state,omitempty"`
	PrevState   string        `json:"prev_state,omitempty"`
	PinnedState string        `json:"pinned_state,omitempty"`
	Pinned      bool          `json:"pinned,omitempty"`
	Suspicion   float64       `json:"suspicion,omitempty"`
	Flux        float64       `json:"flux,omitempty"`
	Agents      []AgentStatus `json:"agents,omitempty"`
}

// AuditFunc records an operator command to the kernel's hash-chained audit
// log. The operator package takes no dependency on internal/audit itself;
// the caller supplies whatever sink it likes.
type AuditFunc func(cmd, agentID, detail string)

// Server is the operator Unix domain socket server.
type Server struct {
	socketPath string
	registry   StateRegistry
	log        *zap.Logger
	audit      AuditFunc
	sem        chan struct{} // Semaphore: max concurrent connections.
}

// NewServer creates an operator Server. audit may be nil, in which case
// commands are only zap-logged, not appended to the audit chain.
func NewServer(socketPath string, registry StateRegistry, audit AuditFunc, log *zap.Logger) *Server {
	return &Server{
		socketPath: socketPath,
		registry:   registry,
		log:        log,
		audit:      audit,
		sem:        make(chan struct{}, maxConcurrentConns),
	}
}

func (s *Server) recordAudit(cmd, agentID, detail string) {
	if s.audit != nil {
		s.audit(cmd, agentID, detail)
	}
}

// ListenAndServe starts the operator socket server.
// Removes any stale socket file before binding.
// Blocks until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	// Remove stale socket.
	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("operator: remove stale socket %q: %w", s.socketPath, err)
	}

	// Ensure parent directory exists.
	if err := os.MkdirAll("/run/polykernel", 0o700); err != nil {
		return fmt.Errorf("operator: mkdir /run/polykernel: %w", err)
	}

	lis, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("operator: listen %q: %w", s.socketPath, err)
	}
	defer lis.Close()

	// Set socket permissions to 0600 (root only).
	if err := os.Chmod(s.socketPath, 0o600); err != nil {
		return fmt.Errorf("operator: chmod %q: %w", s.socketPath, err)
	}

	s.log.Info("operator socket listening", zap.String("path", s.socketPath))

	// Close listener on context cancellation.
	go func() {
		<-ctx.Done()
		lis.Close()
	}()

	for {
		conn, err := lis.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil // Clean shutdown.
			default:
				s.log.Error("operator: accept error", zap.Error(err))
				continue
			}
		}

		// Acquire semaphore (non-blocking; reject if at capacity).
		select {
		case s.sem <- struct{}{}:
		default:
			s.log.Warn("operator: max connections reached, rejecting")
			_ = conn.Close()
			continue
		}

		go func(c net.Conn) {
			defer func() { <-s.sem }()
			defer c.Close()
			s.handleConn(c)
		}(conn)
	}
}

// handleConn handles a single operator connection.
// Reads one JSON request, executes the command, writes one JSON response.
func (s *Server) handleConn(conn net.Conn) {
	_ = conn.SetDeadline(time.Now().Add(connTimeout))

	// Read request (max maxRequestBytes).
	buf := make([]byte, maxRequestBytes)
	n, err := conn.Read(buf)
	if err != nil && err != io.EOF {
		s.log.Warn("operator: read error", zap.Error(err))
		return
	}

	var req Request
	if err := json.Unmarshal(buf[:n], &req); err != nil {
		s.writeResponse(conn, Response{OK: false, Error: "invalid JSON: " + err.Error()})
		return
	}

	resp := s.dispatch(req)
	s.writeResponse(conn, resp)
}

// dispatch routes a request to the appropriate handler.
func (s *Server) dispatch(req Request) Response {
	switch req.Cmd {
	case "reset":
		return s.cmdReset(req)
	case "pin":
		return s.cmdPin(req)
	case "unpin":
		return s.cmdUnpin(req)
	case "status":
		return s.cmdStatus(req)
	case "list":
		return s.cmdList()
	default:
		return Response{OK: false, Error: fmt.Sprintf("unknown command %q", req.Cmd)}
	}
}

func (s *Server) cmdReset(req Request) Response {
	if req.AgentID == "" {
		return Response{OK: false, Error: "agent_id required for reset"}
	}
	prev := s.registry.ResetState(req.AgentID)
	s.log.Info("operator: agent reset to healthy",
		zap.String("agent_id", req.AgentID),
		zap.String("prev_state", prev.String()))
	s.recordAudit("reset", req.AgentID, fmt.Sprintf("prev_state=%s", prev.String()))
	return Response{OK: true, AgentID: req.AgentID, PrevState: prev.String()}
}

func (s *Server) cmdPin(req Request) Response {
	if req.AgentID == "" {
		return Response{OK: false, Error: "agent_id required for pin"}
	}
	target, err := parseState(req.State)
	if err != nil {
		return Response{OK: false, Error: err.Error()}
	}
	s.registry.PinState(req.AgentID, target)
	s.log.Info("operator: agent pinned",
		zap.String("agent_id", req.AgentID),
		zap.String("state", target.String()))
	s.recordAudit("pin", req.AgentID, fmt.Sprintf("state=%s", target.String()))
	return Response{OK: true, AgentID: req.AgentID, PinnedState: target.String()}
}

func (s *Server) cmdUnpin(req Request) Response {
	if req.AgentID == "" {
		return Response{OK: false, Error: "agent_id required for unpin"}
	}
	s.registry.UnpinState(req.AgentID)
	s.log.Info("operator: agent unpinned", zap.String("agent_id", req.AgentID))
	s.recordAudit("unpin", req.AgentID, "")
	return Response{OK: true, AgentID: req.AgentID}
}

func (s *Server) cmdStatus(req Request) Response {
	if req.AgentID == "" {
		return Response{OK: false, Error: "agent_id required for status"}
	}
	state, tracked := s.registry.GetState(req.AgentID)
	if !tracked {
		return Response{OK: false, Error: fmt.Sprintf("agent %q not tracked", req.AgentID)}
	}
	return Response{
		OK:        true,
		AgentID:   req.AgentID,
		State:     state.String(),
		Pinned:    s.registry.IsPinned(req.AgentID),
		Suspicion: s.registry.Suspicion(req.AgentID),
		Flux:      s.registry.Flux(req.AgentID),
	}
}

func (s *Server) cmdList() Response {
	return Response{OK: true, Agents: s.registry.ListAll()}
}

func (s *Server) writeResponse(conn net.Conn, resp Response) {
	data, _ := json.Marshal(resp)
	data = append(data, '\n')
	_, _ = conn.Write(data)
}

// parseState converts a state name string to an immune.State.
func parseState(name string) (immune.State, error) {
	switch name {
	case "HEALTHY":
		return immune.Healthy, nil
	case "MONITORING":
		return immune.Monitoring, nil
	case "INFLAMED":
		return immune.Inflamed, nil
	case "QUARANTINED":
		return immune.Quarantined, nil
	case "EXPELLED":
		return immune.Expelled, nil
	default:
		return immune.Healthy, fmt.Errorf("unknown state %q (valid: HEALTHY MONITORING INFLAMED QUARANTINED EXPELLED)", name)
	}
}

// ─── Mutex-protected pin overlay (used by the agent) ──────────────────────────

// PinOverlay is a thread-safe record of operator pins, consulted by the
// kernel pipeline before it lets the immune model evolve an agent's state.
// It does not itself hold suspicion/flux — those live in the pipeline's own
// agent entries — it only tracks which agents are pinned and to what state.
type PinOverlay struct {
	mu   sync.RWMutex
	pins map[string]immune.State
}

// NewPinOverlay creates an empty PinOverlay.
func NewPinOverlay() *PinOverlay {
	return &PinOverlay{pins: make(map[string]immune.State)}
}

// Pin pins agentID to state.
func (p *PinOverlay) Pin(agentID string, state immune.State) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pins[agentID] = state
}

// Unpin removes any pin on agentID.
func (p *PinOverlay) Unpin(agentID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.pins, agentID)
}

// Get returns the pinned state for agentID, if any.
func (p *PinOverlay) Get(agentID string) (immune.State, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s, ok := p.pins[agentID]
	return s, ok
}

// IsPinned reports whether agentID currently has a pin.
func (p *PinOverlay) IsPinned(agentID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.pins[agentID]
	return ok
}
