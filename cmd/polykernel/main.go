// Package main — cmd/polykernel/main.go
//
// POLYKERNEL agent entrypoint.
//
// Startup sequence:
//  1. Load and validate config from /etc/polykernel/config.yaml.
//  2. Initialise structured logger (zap, JSON format).
//  3. Open BoltDB storage.
//  4. Prune stale ledger entries and audit events.
//  5. Start Prometheus metrics server.
//  6. Construct the decision pipeline (kernel.Pipeline).
//  7. Start the operator override socket (if enabled).
//  8. Start the ingest surfaces: gRPC and/or Unix domain socket.
//  9. Start the cross-instance transport server and peer broadcaster
//     (if enabled).
// 10. Register SIGHUP handler for config hot-reload.
// 11. Block on SIGINT/SIGTERM for graceful shutdown.
//
// Shutdown sequence (on SIGINT/SIGTERM):
//  1. Cancel root context (propagates to all goroutines).
//  2. Wait briefly for in-flight requests to drain.
//  3. Close transport clients.
//  4. Close BoltDB.
//  5. Flush logger.
//  6. Exit 0.
//
// On config validation failure: exit 1 immediately.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/polykernel/polykernel/internal/budget"
	"github.com/polykernel/polykernel/internal/config"
	"github.com/polykernel/polykernel/internal/detection"
	"github.com/polykernel/polykernel/internal/flux"
	"github.com/polykernel/polykernel/internal/immune"
	"github.com/polykernel/polykernel/internal/ingest"
	"github.com/polykernel/polykernel/internal/kernel"
	"github.com/polykernel/polykernel/internal/keychain"
	"github.com/polykernel/polykernel/internal/observability"
	"github.com/polykernel/polykernel/internal/operator"
	"github.com/polykernel/polykernel/internal/storage"
	"github.com/polykernel/polykernel/internal/transport"
)

func main() {
	// ── Flags ─────────────────────────────────────────────────────────────────
	configPath := flag.String("config", "/etc/polykernel/config.yaml", "Path to config.yaml")
	version := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *version {
		fmt.Printf("polykernel %s (commit=%s built=%s)\n",
			config.Version, config.GitCommit, config.BuildTime)
		os.Exit(0)
	}

	// ── Step 1: Load config ───────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: config load failed: %v\n", err)
		os.Exit(1)
	}

	// ── Step 2: Initialise logger ─────────────────────────────────────────────
	log, err := buildLogger(cfg.Observability.LogLevel, cfg.Observability.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync() //nolint:errcheck

	log.Info("POLYKERNEL starting",
		zap.String("version", config.Version),
		zap.String("commit", config.GitCommit),
		zap.String("built", config.BuildTime),
		zap.String("node_id", cfg.NodeID),
		zap.String("config", *configPath),
	)

	// ── Root context with cancellation ────────────────────────────────────────
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── Step 3: Open BoltDB ───────────────────────────────────────────────────
	db, err := storage.Open(cfg.Storage.DBPath, cfg.Storage.RetentionDays)
	if err != nil {
		log.Fatal("BoltDB open failed", zap.Error(err),
			zap.String("path", cfg.Storage.DBPath))
	}
	defer db.Close() //nolint:errcheck
	log.Info("BoltDB opened", zap.String("path", cfg.Storage.DBPath))

	// ── Step 4: Prune stale ledger entries and audit events ──────────────────
	if pruned, err := db.PruneOldLedgerEntries(); err != nil {
		log.Warn("ledger pruning failed", zap.Error(err))
	} else {
		log.Info("ledger pruned", zap.Int("deleted", pruned))
	}
	if pruned, err := db.PruneOldAuditEvents(); err != nil {
		log.Warn("audit pruning failed", zap.Error(err))
	} else {
		log.Info("audit log pruned", zap.Int("deleted", pruned))
	}

	// ── Step 5: Prometheus metrics ────────────────────────────────────────────
	metrics := observability.NewMetrics()
	go func() {
		if err := metrics.ServeMetrics(ctx, cfg.Observability.MetricsAddr); err != nil {
			log.Error("metrics server error", zap.Error(err))
		}
	}()
	log.Info("metrics server started", zap.String("addr", cfg.Observability.MetricsAddr))

	// ── Step 6: Construct the decision pipeline ──────────────────────────────
	pipeline := kernel.NewPipeline(buildKernelConfig(cfg))
	log.Info("decision pipeline constructed")

	// A shared containment budget is charged for every Transform/Block
	// decision the ingest surfaces emit. Exhausting it is only logged;
	// decisions are neither dropped nor delayed.
	containmentBudget := budget.New(cfg.Immune.MaxQuarantineCount*100, time.Minute)
	defer containmentBudget.Close()
	limiter := &budgetedProcessor{inner: pipeline, budget: containmentBudget, log: log}

	// ── Step 7: Operator override socket ─────────────────────────────────────
	if cfg.Operator.Enabled {
		registry := kernel.NewRegistry(pipeline)
		opSrv := operator.NewServer(cfg.Operator.SocketPath, registry, pipeline.RecordOperatorEvent, log)
		go func() {
			if err := opSrv.ListenAndServe(ctx); err != nil {
				log.Error("operator server error", zap.Error(err))
			}
		}()
		log.Info("operator server started", zap.String("socket", cfg.Operator.SocketPath))
	} else {
		log.Info("operator socket disabled")
	}

	// ── Step 8: Ingest surfaces ───────────────────────────────────────────────
	if cfg.Ingest.SocketPath != "" {
		ingestSockSrv := ingest.NewSocketServer(cfg.Ingest.SocketPath, limiter, ingest.AllowAll, log)
		go func() {
			if err := ingestSockSrv.ListenAndServe(ctx); err != nil {
				log.Error("ingest socket server error", zap.Error(err))
			}
		}()
		log.Info("ingest socket server started", zap.String("socket", cfg.Ingest.SocketPath))
	}

	if cfg.Ingest.ListenAddr != "" {
		grpcSrv := ingest.NewGRPCServer(limiter, log)
		go func() {
			if err := ingest.ListenAndServeGRPC(ctx, cfg.Ingest.ListenAddr, grpcSrv); err != nil {
				log.Error("ingest grpc server error", zap.Error(err))
			}
		}()
		log.Info("ingest grpc server started", zap.String("addr", cfg.Ingest.ListenAddr))
	}

	// ── Step 9: Cross-instance transport ─────────────────────────────────────
	var broadcaster *transport.Broadcaster
	if cfg.Transport.Enabled {
		broadcaster = startTransport(ctx, cfg, log)
	} else {
		log.Info("transport disabled (standalone mode)")
	}
	if broadcaster != nil {
		defer broadcaster.CloseAll()
	}

	// ── Step 10: SIGHUP hot-reload ────────────────────────────────────────────
	sighup := make(chan os.Signal, 1)
	signal.Notify(sighup, syscall.SIGHUP)
	go func() {
		for range sighup {
			log.Info("SIGHUP received — reloading config...")
			newCfg, err := config.Load(*configPath)
			if err != nil {
				log.Error("config hot-reload failed — retaining old config", zap.Error(err))
				continue
			}
			log.Info("config hot-reload successful",
				zap.Float64("new_block_threshold", newCfg.Detection.ThresholdDeny))
			// Destructive changes (DB path, listen addresses, transport
			// certs) require a restart; only thresholds/weights/log level
			// are safe to apply live, and this build does not yet thread
			// a live-swap path into the running pipeline.
			_ = newCfg
		}
	}()

	// ── Step 11: Wait for shutdown signal ─────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info("shutdown signal received", zap.String("signal", sig.String()))

	cancel()

	shutdownTimer := time.NewTimer(5 * time.Second)
	defer shutdownTimer.Stop()
	<-shutdownTimer.C

	log.Info("POLYKERNEL shutdown complete")
}

// budgetedProcessor adapts a *kernel.Pipeline to ingest.Processor, charging
// a shared containment budget for every Transform/Block decision it emits.
// The underlying decision is never altered and no back-off is signalled to
// callers -- an exhausted budget is logged as a warning.
type budgetedProcessor struct {
	inner  *kernel.Pipeline
	budget *budget.Bucket
	log    *zap.Logger
}

func (b *budgetedProcessor) ProcessAction(agentID string, act kernel.Action, masterKey []byte, ev *kernel.MemoryEvent) (kernel.Result, error) {
	result, err := b.inner.ProcessAction(agentID, act, masterKey, ev)
	if err != nil {
		return result, err
	}
	if !b.budget.ConsumeForDecision(result.Decision) {
		b.log.Warn("containment budget exhausted",
			zap.String("agent_id", agentID),
			zap.String("decision", result.Decision.String()),
			zap.Int("remaining", b.budget.Remaining()))
	}
	return result, nil
}

// buildKernelConfig maps the on-disk config into the pipeline's internal
// parameter set, falling back to kernel.DefaultConfig's thresholds where
// config.Config carries no corresponding knob.
func buildKernelConfig(cfg *config.Config) kernel.Config {
	defaults := kernel.DefaultConfig()
	return kernel.Config{
		Thresholds: defaults.Thresholds,
		MonitorParams: keychain.MonitorParams{
			EpsSnap:       cfg.KeyChain.EpsSnap,
			EpsCurv:       cfg.KeyChain.EpsCurv,
			MaxIntrusions: cfg.KeyChain.MaxIntrusions,
			RateThreshold: cfg.KeyChain.RateThreshold,
		},
		CostParams: keychain.CostParams{
			BetaBase: cfg.KeyChain.CostBetaBase,
			Low:      cfg.KeyChain.CostLow,
			High:     cfg.KeyChain.CostHigh,
		},
		DetectionWeights: detection.Weights{
			Phase:        cfg.Detection.WeightPhase,
			Curvature:    cfg.Detection.WeightCurvature,
			Lissajous:    cfg.Detection.WeightLissajous,
			DecimalDrift: cfg.Detection.WeightDecimalDrift,
			SixTonic:     cfg.Detection.WeightSixTonic,
		},
		DetectorThresholds: detection.PerDetectorThresholds{
			Phase:        cfg.Detection.PerDetectorThreshold,
			Curvature:    cfg.Detection.PerDetectorThreshold,
			Lissajous:    cfg.Detection.PerDetectorThreshold,
			DecimalDrift: cfg.Detection.PerDetectorThreshold,
			SixTonic:     cfg.Detection.PerDetectorThreshold,
		},
		CombinedThresholds: detection.Thresholds{
			Quarantine: cfg.Detection.ThresholdQuarantine,
			Escalate:   cfg.Detection.ThresholdEscalate,
			Deny:       cfg.Detection.ThresholdDeny,
		},
		ImmuneConfig: immune.Config{
			Thresholds: immune.Thresholds{
				Monitoring: cfg.Immune.MonitoringThreshold,
				Inflamed:   cfg.Immune.InflamedThreshold,
				Quarantine: cfg.Immune.QuarantineThreshold,
				Expulsion:  cfg.Immune.ExpulsionThreshold,
			},
			PerFlagCost:             cfg.Immune.PerFlagCost,
			Decay:                   cfg.Immune.Decay,
			ConsensusMin:            cfg.Immune.ConsensusMin,
			QuarantineAmplification: cfg.Immune.QuarantineAmplification,
			MaxQuarantineCount:      cfg.Immune.MaxQuarantineCount,
			HistorySize:             cfg.Immune.HistorySize,
		},
		FluxParams: flux.Params{
			Kappa:      cfg.Flux.Kappa,
			Sigma:      cfg.Flux.Sigma,
			Omega:      cfg.Flux.Omega,
			TrustBoost: cfg.Flux.TrustBoost,
			Dt:         cfg.Flux.Dt,
		},
		AcceptanceRadius:   cfg.Lattice.AcceptanceRadius,
		MaxPhasonAmplitude: cfg.Lattice.MaxPhasonAmplitude,
		CoherenceThreshold: cfg.Lattice.CoherenceThreshold,
		PhasonCoupling:     cfg.Lattice.PhasonCoupling,
		AuditCapacity:      cfg.Audit.Capacity,
		HistoryCap:         cfg.Immune.HistorySize,
	}
}

// startTransport loads this node's signing key and trusted-peer set, starts
// the inbound broadcast server, and dials every configured static peer,
// returning a Broadcaster that fans an outbound envelope to all of them.
// Any failure here is logged and transport is left disabled for this run
// rather than aborting the whole agent.
func startTransport(ctx context.Context, cfg *config.Config, log *zap.Logger) *transport.Broadcaster {
	signingKey, err := transport.LoadSigningKey(cfg.Transport.SigningKeyFile)
	if err != nil {
		log.Error("transport signing key load failed, transport disabled", zap.Error(err))
		return nil
	}

	trustedPeers, err := transport.ParseTrustedPeers(cfg.Transport.TrustedPeerKeys)
	if err != nil {
		log.Error("transport trusted peer keys invalid, transport disabled", zap.Error(err))
		return nil
	}

	srv := transport.NewServer(cfg.NodeID, trustedPeers, cfg.Transport.EnvelopeTTL, nil, log)
	go func() {
		if err := transport.ListenAndServe(
			ctx,
			cfg.Transport.ListenAddr,
			cfg.Transport.TLSCertFile,
			cfg.Transport.TLSKeyFile,
			cfg.Transport.TLSCAFile,
			srv,
			log,
		); err != nil {
			log.Error("transport server error", zap.Error(err))
		}
	}()
	log.Info("transport server started", zap.String("addr", cfg.Transport.ListenAddr))

	var clients []*transport.Client
	for _, peerAddr := range cfg.Transport.Peers {
		client, err := transport.Dial(
			ctx,
			peerAddr,
			cfg.Transport.TLSCertFile,
			cfg.Transport.TLSKeyFile,
			cfg.Transport.TLSCAFile,
			cfg.NodeID,
			signingKey,
			log,
		)
		if err != nil {
			log.Warn("transport peer dial failed", zap.String("peer", peerAddr), zap.Error(err))
			continue
		}
		clients = append(clients, client)
	}
	log.Info("transport peers dialed", zap.Int("requested", len(cfg.Transport.Peers)), zap.Int("connected", len(clients)))

	return transport.NewBroadcaster(clients, log)
}

// buildLogger constructs a zap.Logger with the given level and format.
func buildLogger(level, format string) (*zap.Logger, error) {
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	var cfg zap.Config
	if format == "console" {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)

	return cfg.Build()
}
