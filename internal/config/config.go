// Package config provides configuration loading, validation, and hot-reload
// for the polykernel agent.
//
// Configuration file: /etc/polykernel/config.yaml (default)
// Schema version: 1
//
// Hot-reload:
//   - Agent listens for SIGHUP.
//   - On SIGHUP: re-read and re-validate config.yaml and log the outcome.
//   - The running pipeline, listeners and store keep the configuration they
//     were started with; any change takes effect only after a restart.
//   - If the new config is invalid, an error is logged. The agent does NOT
//     crash on invalid hot-reload config.
//
// Validation (Validate):
//   - schema_version and node_id must be set.
//   - immune consensus_min and the immune threshold ordering are checked.
//   - flux dt, lattice radius/coherence, torus snap threshold and quorum f
//     are range-checked.
//   - storage db_path must be set and retention_days must be positive.
//   - When transport is enabled, its cert/key/CA files and peers must be set.
//   - Detector weights and whether file paths are absolute are not checked.
//   - Invalid config on startup: agent refuses to start (fatal error).
//   - Invalid config on hot-reload: logged.
//
// Several thresholds here are also determinism-relevant: every kernel
// instance that derives a per-agent fingerprint must be running the same
// values, so a threshold edit (applied on restart) has to reach every
// instance before their fingerprints agree again.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Version, GitCommit, BuildTime are injected by the Makefile via -ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// Config is the root configuration structure for polykernel.
// All fields have defaults; see Defaults() for values.
type Config struct {
	// SchemaVersion must be "1". Future versions will trigger migration.
	SchemaVersion string `yaml:"schema_version"`

	// NodeID is a unique identifier for this kernel instance. Used in
	// transport envelopes and audit entries. Default: hostname.
	NodeID string `yaml:"node_id"`

	// Manifold configures the fixed hyperbolic-embedding constants.
	Manifold ManifoldConfig `yaml:"manifold"`

	// Detection configures the detection bank's weights and thresholds.
	Detection DetectionConfig `yaml:"detection"`

	// Immune configures the immune model's suspicion thresholds and costs.
	Immune ImmuneConfig `yaml:"immune"`

	// Flux configures the flux controller's Euler-step coefficients.
	Flux FluxConfig `yaml:"flux"`

	// KeyChain configures the geodesic monitor and Langues cost function.
	KeyChain KeyChainConfig `yaml:"key_chain"`

	// Lattice configures the dual-lattice projector's acceptance and
	// coherence parameters.
	Lattice LatticeConfig `yaml:"lattice"`

	// Torus configures the torus memory gate's snap threshold.
	Torus TorusConfig `yaml:"torus"`

	// Audit configures the hash-chained audit log's retention.
	Audit AuditConfig `yaml:"audit"`

	// Quorum configures the BFT quorum helper's fault tolerance.
	Quorum QuorumConfig `yaml:"quorum"`

	// Ingest configures the action-submission surface.
	Ingest IngestConfig `yaml:"ingest"`

	// Storage configures the BoltDB persistent store.
	Storage StorageConfig `yaml:"storage"`

	// Transport configures the optional multi-instance broadcast layer.
	Transport TransportConfig `yaml:"transport"`

	// Observability configures metrics and logging.
	Observability ObservabilityConfig `yaml:"observability"`

	// Operator configures the operator override Unix socket.
	Operator OperatorConfig `yaml:"operator"`
}

// ManifoldConfig holds the fixed geometric constants underlying the
// Poincare-ball embedding. Rarely overridden; present so a deployment can
// document a deviation explicitly rather than drift silently.
type ManifoldConfig struct {
	// BrainEpsilon floors a state vector's norm before inversion.
	// Default: 1e-10.
	BrainEpsilon float64 `yaml:"brain_epsilon"`

	// PoincareMaxNorm is the ball-boundary clamp radius.
	// Default: 1 - 1e-8.
	PoincareMaxNorm float64 `yaml:"poincare_max_norm"`
}

// DetectionConfig holds the detection bank's per-detector weights and the
// combined-score decision thresholds.
type DetectionConfig struct {
	WeightPhase        float64 `yaml:"weight_phase"`
	WeightCurvature    float64 `yaml:"weight_curvature"`
	WeightLissajous    float64 `yaml:"weight_lissajous"`
	WeightDecimalDrift float64 `yaml:"weight_decimal_drift"`
	WeightSixTonic     float64 `yaml:"weight_six_tonic"`

	// ThresholdQuarantine, ThresholdEscalate, ThresholdDeny gate the
	// combined-score decision (allow / quarantine / escalate / deny).
	ThresholdQuarantine float64 `yaml:"threshold_quarantine"`
	ThresholdEscalate   float64 `yaml:"threshold_escalate"`
	ThresholdDeny       float64 `yaml:"threshold_deny"`

	// PerDetectorThreshold is the flagged/not-flagged cut applied
	// independently within each of the five detectors.
	PerDetectorThreshold float64 `yaml:"per_detector_threshold"`
}

// ImmuneConfig holds the immune model's suspicion-state thresholds,
// accumulation costs, and spatial-consensus requirement.
type ImmuneConfig struct {
	MonitoringThreshold float64 `yaml:"monitoring_threshold"`
	InflamedThreshold   float64 `yaml:"inflamed_threshold"`
	QuarantineThreshold float64 `yaml:"quarantine_threshold"`
	ExpulsionThreshold  float64 `yaml:"expulsion_threshold"`

	PerFlagCost             float64 `yaml:"per_flag_cost"`
	Decay                   float64 `yaml:"decay"`
	ConsensusMin            int     `yaml:"consensus_min"`
	QuarantineAmplification float64 `yaml:"quarantine_amplification"`
	MaxQuarantineCount      int     `yaml:"max_quarantine_count"`
	HistorySize             int     `yaml:"history_size"`
}

// FluxConfig holds the flux controller's explicit-Euler coefficients.
type FluxConfig struct {
	Kappa      float64 `yaml:"kappa"`
	Sigma      float64 `yaml:"sigma"`
	Omega      float64 `yaml:"omega"`
	TrustBoost float64 `yaml:"trust_boost"`
	Dt         float64 `yaml:"dt"`
}

// KeyChainConfig holds the geodesic monitor's deviation/curvature
// thresholds and the Langues cost function's shape parameters.
type KeyChainConfig struct {
	EpsSnap       float64 `yaml:"eps_snap"`
	EpsCurv       float64 `yaml:"eps_curv"`
	MaxIntrusions int     `yaml:"max_intrusions"`
	RateThreshold float64 `yaml:"rate_threshold"`

	CostBetaBase float64 `yaml:"cost_beta_base"`
	CostLow      float64 `yaml:"cost_low"`
	CostHigh     float64 `yaml:"cost_high"`
}

// LatticeConfig holds the dual-lattice projector's acceptance radius and
// coherence weighting.
type LatticeConfig struct {
	AcceptanceRadius   float64 `yaml:"acceptance_radius"`
	MaxPhasonAmplitude float64 `yaml:"max_phason_amplitude"`
	CoherenceThreshold float64 `yaml:"coherence_threshold"`
	PhasonCoupling     float64 `yaml:"phason_coupling"`
}

// TorusConfig holds the torus memory gate's snap threshold.
type TorusConfig struct {
	SnapThreshold float64 `yaml:"snap_threshold"`
}

// AuditConfig holds the hash-chained audit log's retained-event capacity.
type AuditConfig struct {
	Capacity int `yaml:"capacity"`
}

// QuorumConfig holds the BFT quorum helper's fault-tolerance parameter f,
// from which the required voter count (3f+1) and quorum size (2f+1)
// are derived.
type QuorumConfig struct {
	F int `yaml:"f"`
}

// IngestConfig holds the action-submission surface's listen parameters.
type IngestConfig struct {
	// ListenAddr is the gRPC listen address for remote action submission.
	ListenAddr string `yaml:"listen_addr"`

	// SocketPath is an additional Unix domain socket for local submission.
	SocketPath string `yaml:"socket_path"`
}

// TransportConfig holds the optional multi-instance broadcast parameters,
// realizing cross-instance BFT consensus as a thin layer around the
// quorum helper rather than a built-in kernel concern.
type TransportConfig struct {
	// Enabled gates the transport layer. Default: false (standalone mode).
	Enabled bool `yaml:"enabled"`

	// ListenAddr is the gRPC listen address. Default: 0.0.0.0:9443.
	ListenAddr string `yaml:"listen_addr"`

	// Peers is the static list of peer addresses (host:port).
	Peers []string `yaml:"peers"`

	// TrustedPeerKeys maps each peer's node_id to its hex-encoded Ed25519
	// public key, used to verify inbound broadcast envelope signatures.
	TrustedPeerKeys map[string]string `yaml:"trusted_peer_keys"`

	// EnvelopeTTL is the maximum age of a broadcast envelope before rejection.
	// Default: 30s.
	EnvelopeTTL time.Duration `yaml:"envelope_ttl"`

	// TLSCertFile is the path to the node's TLS certificate (PEM).
	TLSCertFile string `yaml:"tls_cert_file"`

	// TLSKeyFile is the path to the node's TLS private key (PEM).
	TLSKeyFile string `yaml:"tls_key_file"`

	// TLSCAFile is the path to the CA certificate for peer verification (PEM).
	TLSCAFile string `yaml:"tls_ca_file"`

	// SigningKeyFile is the path to this node's Ed25519 private key, used
	// to sign outbound envelopes so peers can verify provenance.
	SigningKeyFile string `yaml:"signing_key_file"`
}

// StorageConfig holds the BoltDB persistent store's location and retention.
type StorageConfig struct {
	// DBPath is the BoltDB file location. Default: DefaultDBPath.
	DBPath string `yaml:"db_path"`

	// RetentionDays is how long ledger and audit entries are kept; older
	// entries are pruned at startup.
	RetentionDays int `yaml:"retention_days"`
}

// OperatorConfig holds the operator override Unix socket's parameters.
type OperatorConfig struct {
	// Enabled gates the operator control surface. Default: true.
	Enabled bool `yaml:"enabled"`

	// SocketPath is the operator Unix domain socket location.
	// Default: /run/polykernel/operator.sock.
	SocketPath string `yaml:"socket_path"`
}

// ObservabilityConfig holds metrics and logging parameters.
type ObservabilityConfig struct {
	// MetricsAddr is the Prometheus metrics HTTP bind address.
	// Default: 127.0.0.1:9091.
	MetricsAddr string `yaml:"metrics_addr"`

	// LogLevel controls the minimum log level (debug, info, warn, error).
	// Default: info.
	LogLevel string `yaml:"log_level"`

	// LogFormat controls the log output format (json, console).
	// Default: json.
	LogFormat string `yaml:"log_format"`
}

// Defaults returns a Config populated with all default values.
func Defaults() Config {
	hostname, _ := os.Hostname()
	return Config{
		SchemaVersion: "1",
		NodeID:        hostname,
		Manifold: ManifoldConfig{
			BrainEpsilon:    1e-10,
			PoincareMaxNorm: 1 - 1e-8,
		},
		Detection: DetectionConfig{
			WeightPhase:          0.2,
			WeightCurvature:      0.2,
			WeightLissajous:      0.2,
			WeightDecimalDrift:   0.2,
			WeightSixTonic:       0.2,
			ThresholdQuarantine:  0.3,
			ThresholdEscalate:    0.6,
			ThresholdDeny:        0.85,
			PerDetectorThreshold: 0.5,
		},
		Immune: ImmuneConfig{
			MonitoringThreshold:     0.3,
			InflamedThreshold:       1.0,
			QuarantineThreshold:     3.0,
			ExpulsionThreshold:      8.0,
			PerFlagCost:             0.5,
			Decay:                   0.1,
			ConsensusMin:            3,
			QuarantineAmplification: 2.0,
			MaxQuarantineCount:      3,
			HistorySize:             64,
		},
		Flux: FluxConfig{
			Kappa:      0.2,
			Sigma:      0.05,
			Omega:      0.3,
			TrustBoost: 0.05,
			Dt:         1.0,
		},
		KeyChain: KeyChainConfig{
			EpsSnap:       0.25,
			EpsCurv:       0.6,
			MaxIntrusions: 5,
			RateThreshold: 0.3,
			CostBetaBase:  0.5,
			CostLow:       4.0,
			CostHigh:      12.0,
		},
		Lattice: LatticeConfig{
			AcceptanceRadius:   1 / 1.618033988749895,
			MaxPhasonAmplitude: 0.5,
			CoherenceThreshold: 0.5,
			PhasonCoupling:     1.0,
		},
		Torus: TorusConfig{
			SnapThreshold: 0.7,
		},
		Audit: AuditConfig{
			Capacity: 10000,
		},
		Quorum: QuorumConfig{
			F: 1,
		},
		Ingest: IngestConfig{
			ListenAddr: "127.0.0.1:9444",
			SocketPath: "/run/polykernel/ingest.sock",
		},
		Storage: StorageConfig{
			DBPath:        DefaultDBPath,
			RetentionDays: 30,
		},
		Transport: TransportConfig{
			Enabled:     false,
			ListenAddr:  "0.0.0.0:9443",
			EnvelopeTTL: 30 * time.Second,
		},
		Observability: ObservabilityConfig{
			MetricsAddr: "127.0.0.1:9091",
			LogLevel:    "info",
			LogFormat:   "json",
		},
		Operator: OperatorConfig{
			Enabled:    true,
			SocketPath: "/run/polykernel/operator.sock",
		},
	}
}

// DefaultDBPath mirrors the storage package constant for use in config defaults.
const DefaultDBPath = "/var/lib/polykernel/polykernel.db"

// Load reads and validates a config file from the given path.
// Returns the merged config (defaults overridden by file values).
// Returns an error if the file cannot be read, parsed, or validated.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse %q: %w", path, err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("config.Load: validation failed: %w", err)
	}

	return &cfg, nil
}

// Validate checks all config fields for correctness.
// Returns a descriptive error listing all violations found.
func Validate(cfg *Config) error {
	var errs []string

	if cfg.SchemaVersion != "1" {
		errs = append(errs, fmt.Sprintf("schema_version must be \"1\", got %q", cfg.SchemaVersion))
	}
	if cfg.NodeID == "" {
		errs = append(errs, "node_id must not be empty")
	}

	if cfg.Immune.ConsensusMin < 1 {
		errs = append(errs, fmt.Sprintf("immune.consensus_min must be >= 1, got %d", cfg.Immune.ConsensusMin))
	}
	if !(cfg.Immune.MonitoringThreshold <= cfg.Immune.InflamedThreshold &&
		cfg.Immune.InflamedThreshold <= cfg.Immune.QuarantineThreshold &&
		cfg.Immune.QuarantineThreshold <= cfg.Immune.ExpulsionThreshold) {
		errs = append(errs, "immune thresholds must satisfy monitoring <= inflamed <= quarantine <= expulsion")
	}

	if cfg.Flux.Dt <= 0 {
		errs = append(errs, fmt.Sprintf("flux.dt must be > 0, got %f", cfg.Flux.Dt))
	}

	if cfg.Lattice.AcceptanceRadius <= 0 {
		errs = append(errs, fmt.Sprintf("lattice.acceptance_radius must be > 0, got %f", cfg.Lattice.AcceptanceRadius))
	}
	if cfg.Lattice.CoherenceThreshold < 0.0 || cfg.Lattice.CoherenceThreshold > 1.0 {
		errs = append(errs, fmt.Sprintf("lattice.coherence_threshold must be in [0.0, 1.0], got %f", cfg.Lattice.CoherenceThreshold))
	}

	if cfg.Torus.SnapThreshold <= 0.0 || cfg.Torus.SnapThreshold > 1.0 {
		errs = append(errs, fmt.Sprintf("torus.snap_threshold must be in (0.0, 1.0], got %f", cfg.Torus.SnapThreshold))
	}

	if cfg.Quorum.F < 0 {
		errs = append(errs, fmt.Sprintf("quorum.f must be >= 0, got %d", cfg.Quorum.F))
	}

	if cfg.Storage.DBPath == "" {
		errs = append(errs, "storage.db_path must not be empty")
	}
	if cfg.Storage.RetentionDays < 1 {
		errs = append(errs, fmt.Sprintf("storage.retention_days must be >= 1, got %d", cfg.Storage.RetentionDays))
	}

	if cfg.Transport.Enabled {
		if cfg.Transport.TLSCertFile == "" || cfg.Transport.TLSKeyFile == "" || cfg.Transport.TLSCAFile == "" {
			errs = append(errs, "transport.tls_cert_file, tls_key_file, and tls_ca_file are required when transport is enabled")
		}
		if cfg.Transport.SigningKeyFile == "" {
			errs = append(errs, "transport.signing_key_file is required when transport is enabled")
		}
		if len(cfg.Transport.Peers) == 0 {
			errs = append(errs, "transport.peers must be non-empty when transport.enabled=true")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s",
			joinStrings(errs, "\n  - "))
	}
	return nil
}

// joinStrings joins a slice of strings with a separator.
func joinStrings(ss []string, sep string) string {
	if len(ss) == 0 {
		return ""
	}
	result := ss[0]
	for _, s := range ss[1:] {
		result += sep + s
	}
	return result
}
