// server.go — gRPC mTLS server for the polykernel transport layer.
//
// Transport security:
//   - TLS 1.3 only (tls.VersionTLS13).
//   - Mutual TLS: peer must present a certificate signed by the configured CA.
//   - Certificate type: Ed25519.
//
// Envelope verification:
//  1. Reject if timestamp older than EnvelopeTTL (default 30s).
//  2. Reject if peer node_id not in the trusted peer list.
//  3. Reject if Ed25519 signature invalid.
//
// Accepted envelopes are passed to the optional onAccept callback given to
// the server; the kernel binary passes nil, so nothing consumes them there.
package transport

import (
	"context"
	"crypto/ed25519"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"os"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
)

// Server implements BroadcastServer.
type Server struct {
	nodeID       string
	trustedPeers map[string]ed25519.PublicKey // node_id -> public key
	envelopeTTL  time.Duration
	onAccept     func(agentID, nodeID string, env Envelope)
	log          *zap.Logger
	startTime    time.Time
}

// NewServer creates a transport server. onAccept is invoked for every
// envelope that passes verification; pass nil to skip accumulation.
func NewServer(
	nodeID string,
	trustedPeers map[string]ed25519.PublicKey,
	envelopeTTL time.Duration,
	onAccept func(agentID, nodeID string, env Envelope),
	log *zap.Logger,
) *Server {
	return &Server{
		nodeID:       nodeID,
		trustedPeers: trustedPeers,
		envelopeTTL:  envelopeTTL,
		onAccept:     onAccept,
		log:          log,
		startTime:    time.Now(),
	}
}

// Broadcast implements BroadcastServer.Broadcast.
func (s *Server) Broadcast(ctx context.Context, env *Envelope) (*AckResponse, error) {
	envTime := time.Unix(0, env.TimestampUnixNs)
	age := time.Since(envTime)
	if age > s.envelopeTTL || age < -5*time.Second {
		s.log.Warn("transport envelope rejected: stale timestamp",
			zap.String("node_id", env.NodeID), zap.Duration("age", age))
		return &AckResponse{Accepted: false, RejectionReason: "timestamp_stale"}, nil
	}

	pubKey, trusted := s.trustedPeers[env.NodeID]
	if !trusted {
		s.log.Warn("transport envelope rejected: unknown peer", zap.String("node_id", env.NodeID))
		return &AckResponse{Accepted: false, RejectionReason: "peer_unknown"}, nil
	}

	if !ed25519.Verify(pubKey, signatureMessage(*env), env.Signature) {
		s.log.Warn("transport envelope rejected: invalid signature", zap.String("node_id", env.NodeID))
		return &AckResponse{Accepted: false, RejectionReason: "signature_invalid"}, nil
	}

	if s.onAccept != nil {
		s.onAccept(env.AgentID, env.NodeID, *env)
	}

	s.log.Debug("transport envelope accepted",
		zap.String("node_id", env.NodeID), zap.String("agent_id", env.AgentID))
	return &AckResponse{Accepted: true}, nil
}

// HealthCheck implements BroadcastServer.HealthCheck.
func (s *Server) HealthCheck(ctx context.Context, req *HealthRequest) (*HealthResponse, error) {
	return &HealthResponse{
		NodeID:        s.nodeID,
		Status:        "ok",
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
	}, nil
}

// ListenAndServe starts the gRPC mTLS server on addr. Blocks until ctx is cancelled.
func ListenAndServe(ctx context.Context, addr, certFile, keyFile, caFile string, srv *Server, log *zap.Logger) error {
	tlsCfg, err := buildServerTLS(certFile, keyFile, caFile)
	if err != nil {
		return fmt.Errorf("transport TLS config: %w", err)
	}

	creds := credentials.NewTLS(tlsCfg)
	grpcSrv := grpc.NewServer(
		grpc.Creds(creds),
		grpc.MaxRecvMsgSize(64*1024),
		grpc.MaxSendMsgSize(64*1024),
	)
	RegisterTransportServer(grpcSrv, srv)

	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("transport listen %s: %w", addr, err)
	}

	log.Info("transport server listening", zap.String("addr", addr))

	go func() {
		<-ctx.Done()
		grpcSrv.GracefulStop()
	}()

	if err := grpcSrv.Serve(lis); err != nil {
		return fmt.Errorf("transport grpc serve: %w", err)
	}
	return nil
}

func buildServerTLS(certFile, keyFile, caFile string) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("load server cert/key: %w", err)
	}

	caData, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("read CA file %q: %w", caFile, err)
	}
	caPool := x509.NewCertPool()
	if !caPool.AppendCertsFromPEM(caData) {
		return nil, fmt.Errorf("failed to parse CA certificate from %q", caFile)
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		ClientAuth:   tls.RequireAndVerifyClientCert,
		ClientCAs:    caPool,
		MinVersion:   tls.VersionTLS13,
	}, nil
}
