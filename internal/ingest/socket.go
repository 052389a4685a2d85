// Package ingest exposes process_action to external callers over two
// optional transports (each starts only when its address is configured; the
// shipped config defaults configure both): a newline-delimited-JSON
// Unix domain socket, directly grounded on internal/operator/server.go's
// protocol shape (request/response struct pairs, bounded concurrent
// connections via a semaphore channel, bounded request size, read/write
// deadlines), and a gRPC service for in-cluster callers (grpc.go).
package ingest

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/polykernel/polykernel/internal/kernel"
)

const (
	maxConcurrentConns = 64
	maxRequestBytes    = 8192
	connTimeout        = 10 * time.Second
)

// Processor is the interface the ingest surface submits actions to.
// Implemented by *kernel.Pipeline.
type Processor interface {
	ProcessAction(agentID string, act kernel.Action, masterKey []byte, ev *kernel.MemoryEvent) (kernel.Result, error)
}

// ActionRequest is the JSON structure for a process_action submission over
// the Unix domain socket.
type ActionRequest struct {
	AgentID     string                       `json:"agent_id"`
	ActionType  string                       `json:"action_type"`
	StateVector [kernel.BrainDimensions]float64 `json:"state_vector"`
	MasterKeyHex string                      `json:"master_key_hex"`
}

// ActionResponse is the JSON structure for a process_action result.
type ActionResponse struct {
	OK             bool    `json:"ok"`
	Error          string  `json:"error,omitempty"`
	Decision       string  `json:"decision,omitempty"`
	CombinedRisk   float64 `json:"combined_risk,omitempty"`
	EffectiveRisk  float64 `json:"effective_risk,omitempty"`
	PenaltyApplied bool    `json:"penalty_applied,omitempty"`
	Snap           bool    `json:"snap,omitempty"`
	AuditHash      string  `json:"audit_hash,omitempty"`
	ImmuneState    string  `json:"immune_state,omitempty"`
}

// PeerAuthorizer decides whether a connecting peer (identified by uid/gid
// read off SO_PEERCRED) may submit actions. Returning false closes the
// connection with no response written.
type PeerAuthorizer func(uid, gid uint32) bool

// AllowAll authorizes every peer; the default when no authorizer is configured.
func AllowAll(uid, gid uint32) bool { return true }

// SocketServer is the process_action Unix domain socket server.
type SocketServer struct {
	socketPath string
	processor  Processor
	authorize  PeerAuthorizer
	log        *zap.Logger
	sem        chan struct{}
}

// NewSocketServer creates an ingest SocketServer. authorize may be nil, in
// which case AllowAll is used.
func NewSocketServer(socketPath string, processor Processor, authorize PeerAuthorizer, log *zap.Logger) *SocketServer {
	if authorize == nil {
		authorize = AllowAll
	}
	return &SocketServer{
		socketPath: socketPath,
		processor:  processor,
		authorize:  authorize,
		log:        log,
		sem:        make(chan struct{}, maxConcurrentConns),
	}
}

// ListenAndServe starts the ingest socket server. Removes any stale socket
// file before binding. Blocks until ctx is cancelled.
func (s *SocketServer) ListenAndServe(ctx context.Context) error {
	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("ingest: remove stale socket %q: %w", s.socketPath, err)
	}

	lis, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("ingest: listen %q: %w", s.socketPath, err)
	}
	defer lis.Close()

	if err := os.Chmod(s.socketPath, 0o666); err != nil {
		return fmt.Errorf("ingest: chmod %q: %w", s.socketPath, err)
	}

	s.log.Info("ingest socket listening", zap.String("path", s.socketPath))

	go func() {
		<-ctx.Done()
		lis.Close()
	}()

	for {
		conn, err := lis.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				s.log.Error("ingest: accept error", zap.Error(err))
				continue
			}
		}

		select {
		case s.sem <- struct{}{}:
		default:
			s.log.Warn("ingest: max connections reached, rejecting")
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

// handleConn authorizes the peer via SO_PEERCRED, then reads one JSON
// request, submits it to the processor, and writes one JSON response.
func (s *SocketServer) handleConn(conn net.Conn) {
	uid, gid, err := peerCredentials(conn)
	if err != nil {
		s.log.Warn("ingest: failed to read peer credentials", zap.Error(err))
		return
	}
	if !s.authorize(uid, gid) {
		s.log.Warn("ingest: connection rejected by peer authorizer", zap.Uint32("uid", uid), zap.Uint32("gid", gid))
		return
	}

	_ = conn.SetDeadline(time.Now().Add(connTimeout))

	buf := make([]byte, maxRequestBytes)
	n, err := conn.Read(buf)
	if err != nil && err != io.EOF {
		s.log.Warn("ingest: read error", zap.Error(err))
		return
	}

	var req ActionRequest
	if err := json.Unmarshal(buf[:n], &req); err != nil {
		s.writeResponse(conn, ActionResponse{OK: false, Error: "invalid JSON: " + err.Error()})
		return
	}

	resp := s.submit(req)
	s.writeResponse(conn, resp)
}

func (s *SocketServer) submit(req ActionRequest) ActionResponse {
	if req.AgentID == "" {
		return ActionResponse{OK: false, Error: "agent_id required"}
	}

	masterKey, err := decodeMasterKey(req.MasterKeyHex)
	if err != nil {
		return ActionResponse{OK: false, Error: err.Error()}
	}

	act := kernel.Action{Type: req.ActionType, StateVector: req.StateVector}
	result, err := s.processor.ProcessAction(req.AgentID, act, masterKey, nil)
	if err != nil {
		return ActionResponse{OK: false, Error: err.Error()}
	}

	return ActionResponse{
		OK:             true,
		Decision:       result.Decision.String(),
		CombinedRisk:   result.Metrics.CombinedRisk,
		EffectiveRisk:  result.Metrics.EffectiveRisk,
		PenaltyApplied: result.PenaltyApplied,
		Snap:           result.Snap,
		AuditHash:      result.AuditHash,
		ImmuneState:    result.State.ImmuneState.String(),
	}
}

func (s *SocketServer) writeResponse(conn net.Conn, resp ActionResponse) {
	data, _ := json.Marshal(resp)
	data = append(data, '\n')
	_, _ = conn.Write(data)
}

// peerCredentials reads SO_PEERCRED off a Unix domain socket connection to
// identify the calling process's uid/gid, used to decide who may submit
// actions without requiring a separate authentication handshake.
func peerCredentials(conn net.Conn) (uid, gid uint32, err error) {
	unixConn, ok := conn.(*net.UnixConn)
	if !ok {
		return 0, 0, fmt.Errorf("ingest: connection is not a Unix domain socket")
	}

	raw, err := unixConn.SyscallConn()
	if err != nil {
		return 0, 0, fmt.Errorf("ingest: SyscallConn: %w", err)
	}

	var cred *unix.Ucred
	var credErr error
	ctrlErr := raw.Control(func(fd uintptr) {
		cred, credErr = unix.GetsockoptUcred(int(fd), unix.SOL_SOCKET, unix.SO_PEERCRED)
	})
	if ctrlErr != nil {
		return 0, 0, fmt.Errorf("ingest: raw.Control: %w", ctrlErr)
	}
	if credErr != nil {
		return 0, 0, fmt.Errorf("ingest: SO_PEERCRED: %w", credErr)
	}
	return cred.Uid, cred.Gid, nil
}

func decodeMasterKey(hexStr string) ([]byte, error) {
	if hexStr == "" {
		return make([]byte, 32), nil
	}
	key, err := hex.DecodeString(hexStr)
	if err != nil {
		return nil, fmt.Errorf("ingest: invalid master_key_hex: %w", err)
	}
	return key, nil
}
