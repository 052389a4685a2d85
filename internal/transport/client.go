package transport

import (
	"context"
	"crypto/ed25519"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
)

// Client dials a single peer and broadcasts signed envelopes to it.
type Client struct {
	nodeID     string
	signingKey ed25519.PrivateKey
	conn       *grpc.ClientConn
	log        *zap.Logger
}

// Dial opens an mTLS connection to a peer at addr.
func Dial(ctx context.Context, addr, certFile, keyFile, caFile, nodeID string, signingKey ed25519.PrivateKey, log *zap.Logger) (*Client, error) {
	tlsCfg, err := buildClientTLS(certFile, keyFile, caFile)
	if err != nil {
		return nil, fmt.Errorf("transport client TLS config: %w", err)
	}

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	conn, err := grpc.DialContext(dialCtx, addr,
		grpc.WithTransportCredentials(credentials.NewTLS(tlsCfg)),
		grpc.WithBlock(),
	)
	if err != nil {
		return nil, fmt.Errorf("transport dial %s: %w", addr, err)
	}

	return &Client{nodeID: nodeID, signingKey: signingKey, conn: conn, log: log}, nil
}

// Close tears down the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Broadcast signs and sends one agent fingerprint envelope to the peer.
func (c *Client) Broadcast(ctx context.Context, agentID string, fp Envelope) (*AckResponse, error) {
	fp.NodeID = c.nodeID
	fp.AgentID = agentID
	fp.TimestampUnixNs = time.Now().UnixNano()
	fp.Signature = ed25519.Sign(c.signingKey, signatureMessage(fp))

	out := new(AckResponse)
	err := c.conn.Invoke(ctx, "/polykernel.transport.v1.Transport/Broadcast", &fp, out)
	if err != nil {
		return nil, fmt.Errorf("transport broadcast rpc: %w", err)
	}
	return out, nil
}

// Health probes the peer's liveness.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	out := new(HealthResponse)
	err := c.conn.Invoke(ctx, "/polykernel.transport.v1.Transport/HealthCheck", &HealthRequest{}, out)
	if err != nil {
		return nil, fmt.Errorf("transport health rpc: %w", err)
	}
	return out, nil
}

func buildClientTLS(certFile, keyFile, caFile string) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("load client cert/key: %w", err)
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
		RootCAs:      caPool,
		MinVersion:   tls.VersionTLS13,
	}, nil
}

// Broadcaster fans a fingerprint out to every configured peer concurrently,
// logging per-peer failures without failing the caller: a single unreachable
// peer must never block the kernel's own processing loop.
type Broadcaster struct {
	clients []*Client
	log     *zap.Logger
}

// NewBroadcaster wraps a set of already-dialed peer clients.
func NewBroadcaster(clients []*Client, log *zap.Logger) *Broadcaster {
	return &Broadcaster{clients: clients, log: log}
}

// BroadcastAll sends the envelope to every peer, returning once all attempts complete.
func (b *Broadcaster) BroadcastAll(ctx context.Context, agentID string, fp Envelope) {
	var wg sync.WaitGroup
	for _, c := range b.clients {
		wg.Add(1)
		go func(c *Client) {
			defer wg.Done()
			ack, err := c.Broadcast(ctx, agentID, fp)
			if err != nil {
				b.log.Warn("transport broadcast failed", zap.String("agent_id", agentID), zap.Error(err))
				return
			}
			if !ack.Accepted {
				b.log.Warn("transport broadcast rejected",
					zap.String("agent_id", agentID), zap.String("reason", ack.RejectionReason))
			}
		}(c)
	}
	wg.Wait()
}

// CloseAll closes every peer connection.
func (b *Broadcaster) CloseAll() {
	for _, c := range b.clients {
		_ = c.Close()
	}
}
