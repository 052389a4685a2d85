package ingest

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"net"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"

	"github.com/polykernel/polykernel/internal/kernel"
)

// gobCodec carries plain Go structs over gRPC without protoc-generated
// bindings, the same substitution internal/transport uses for its
// cross-instance broadcast RPC -- this module has no .proto file to
// generate a real codec from.
type gobCodec struct{}

func (gobCodec) Marshal(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, fmt.Errorf("ingest: gob encode: %w", err)
	}
	return buf.Bytes(), nil
}

func (gobCodec) Unmarshal(data []byte, v interface{}) error {
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(v); err != nil {
		return fmt.Errorf("ingest: gob decode: %w", err)
	}
	return nil
}

func (gobCodec) Name() string { return "proto" }

func init() {
	encoding.RegisterCodec(gobCodec{})
}

// ProcessActionRequest is the gRPC wire message for process_action.
type ProcessActionRequest struct {
	AgentID      string
	ActionType   string
	StateVector  [kernel.BrainDimensions]float64
	MasterKeyHex string
}

// ProcessActionResponse is the gRPC wire message for a process_action result.
type ProcessActionResponse struct {
	OK             bool
	Error          string
	Decision       string
	CombinedRisk   float64
	EffectiveRisk  float64
	PenaltyApplied bool
	Snap           bool
	AuditHash      string
	ImmuneState    string
}

// KernelService is implemented by GRPCServer; split out so the hand-written
// ServiceDesc below stays decoupled from the concrete type.
type KernelService interface {
	ProcessAction(context.Context, *ProcessActionRequest) (*ProcessActionResponse, error)
}

// GRPCServer adapts a Processor to the gRPC KernelService surface.
type GRPCServer struct {
	processor Processor
	log       *zap.Logger
}

// NewGRPCServer creates a gRPC ingest server around processor.
func NewGRPCServer(processor Processor, log *zap.Logger) *GRPCServer {
	return &GRPCServer{processor: processor, log: log}
}

// ProcessAction implements KernelService.ProcessAction.
func (g *GRPCServer) ProcessAction(ctx context.Context, req *ProcessActionRequest) (*ProcessActionResponse, error) {
	if req.AgentID == "" {
		return &ProcessActionResponse{OK: false, Error: "agent_id required"}, nil
	}

	masterKey, err := decodeMasterKey(req.MasterKeyHex)
	if err != nil {
		return &ProcessActionResponse{OK: false, Error: err.Error()}, nil
	}

	act := kernel.Action{Type: req.ActionType, StateVector: req.StateVector}
	result, err := g.processor.ProcessAction(req.AgentID, act, masterKey, nil)
	if err != nil {
		return &ProcessActionResponse{OK: false, Error: err.Error()}, nil
	}

	return &ProcessActionResponse{
		OK:             true,
		Decision:       result.Decision.String(),
		CombinedRisk:   result.Metrics.CombinedRisk,
		EffectiveRisk:  result.Metrics.EffectiveRisk,
		PenaltyApplied: result.PenaltyApplied,
		Snap:           result.Snap,
		AuditHash:      result.AuditHash,
		ImmuneState:    result.State.ImmuneState.String(),
	}, nil
}

func processActionHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(ProcessActionRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(KernelService).ProcessAction(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/polykernel.ingest.v1.Kernel/ProcessAction"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(KernelService).ProcessAction(ctx, req.(*ProcessActionRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// serviceDesc is the hand-written equivalent of what protoc-gen-go-grpc
// would emit for a one-method "Kernel" service.
var serviceDesc = grpc.ServiceDesc{
	ServiceName: "polykernel.ingest.v1.Kernel",
	HandlerType: (*KernelService)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ProcessAction", Handler: processActionHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "internal/ingest/grpc.go",
}

// RegisterKernelServiceServer registers srv on grpcServer.
func RegisterKernelServiceServer(grpcServer *grpc.Server, srv KernelService) {
	grpcServer.RegisterService(&serviceDesc, srv)
}

// ListenAndServeGRPC starts an unauthenticated (plaintext) gRPC ingest
// server on addr, for in-cluster callers behind a service mesh that already
// terminates mTLS; use ListenAndServe (the Unix socket surface) for
// host-local callers instead. Blocks until ctx is cancelled.
func ListenAndServeGRPC(ctx context.Context, addr string, srv *GRPCServer) error {
	grpcSrv := grpc.NewServer(
		grpc.MaxRecvMsgSize(64*1024),
		grpc.MaxSendMsgSize(64*1024),
	)
	RegisterKernelServiceServer(grpcSrv, srv)

	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("ingest: grpc listen %s: %w", addr, err)
	}

	srv.log.Info("ingest grpc server listening", zap.String("addr", addr))

	go func() {
		<-ctx.Done()
		grpcSrv.GracefulStop()
	}()

	if err := grpcSrv.Serve(lis); err != nil {
		return fmt.Errorf("ingest: grpc serve: %w", err)
	}
	return nil
}
