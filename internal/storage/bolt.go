// Package storage — bolt.go
//
// BoltDB-backed persistent storage for polykernel.
//
// Schema (BoltDB bucket layout):
//
//	/baselines
//	    key:   agent_id
//	    value: JSON-encoded BaselineRecord (per-agent manifold reference point;
//	           stored and loaded here, not read back by the kernel pipeline)
//
//	/ledger
//	    key:   RFC3339Nano timestamp + "_" + agent_id  [monotonic, sortable]
//	    value: JSON-encoded LedgerEntry (immune state transitions)
//
//	/audit
//	    key:   RFC3339Nano timestamp + "_" + zero-padded sequence
//	    value: JSON-encoded audit.Event, persisted verbatim so the hash
//	           chain can be re-verified directly off disk after a restart
//
//	/meta
//	    key:   "schema_version"
//	    value: "1"
//
// Consistency model:
//   - Single-process, single-writer (BoltDB does not support concurrent writers).
//   - All writes use ACID transactions (bbolt Tx.Commit()).
//   - Reads use read-only transactions (bbolt.View()).
//   - CRC32 integrity check on database open (bbolt built-in).
//
// Retention:
//   - Ledger and audit entries older than RetentionDays are pruned on
//     startup; there is no periodic pruning while the kernel runs.
//   - Baselines are never automatically pruned (operator action required).
//
// Failure modes:
//   - BoltDB file corruption: bbolt detects via CRC and returns an error
//     on Open(). The kernel logs a fatal event and refuses to start.
//     Recovery: restore from backup at /var/lib/polykernel/polykernel.db.bak.
//   - Disk full: bbolt.Update() returns an error. The kernel logs the error
//     and continues without persisting (in-memory state preserved).

package storage

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/polykernel/polykernel/internal/audit"
)

const (
	// DefaultDBPath is the default BoltDB file location.
	DefaultDBPath = "/var/lib/polykernel/polykernel.db"

	// SchemaVersion is the current database schema version.
	SchemaVersion = "1"

	// DefaultRetentionDays is the default ledger/audit retention period.
	DefaultRetentionDays = 30

	// bucketBaselines is the BoltDB bucket name for per-agent baseline records.
	bucketBaselines = "baselines"

	// bucketLedger is the BoltDB bucket name for immune state transition entries.
	bucketLedger = "ledger"

	// bucketAudit is the BoltDB bucket name for persisted audit chain events.
	bucketAudit = "audit"

	// bucketMeta is the BoltDB bucket name for schema metadata.
	bucketMeta = "meta"
)

// BaselineRecord is the persisted per-agent manifold reference point.
// Stored as JSON in the baselines bucket.
type BaselineRecord struct {
	// AgentID identifies the monitored agent.
	AgentID string `json:"agent_id"`

	// MeanVector is the per-feature mean of the agent's embedded action history.
	MeanVector []float64 `json:"mean_vector"`

	// CovarianceMatrix is the n×n sample covariance matrix of the manifold
	// embedding. No detector in the bank reads it.
	CovarianceMatrix [][]float64 `json:"covariance_matrix"`

	// BaselineEntropy is the Shannon entropy of the baseline action distribution.
	BaselineEntropy float64 `json:"baseline_entropy"`

	// SampleCount is the number of samples used to compute this baseline.
	SampleCount int `json:"sample_count"`

	// UpdatedAt is the timestamp of the last baseline update.
	UpdatedAt time.Time `json:"updated_at"`
}

// LedgerEntry is a single immune state transition record.
// Stored as JSON in the ledger bucket.
type LedgerEntry struct {
	// Timestamp is the event time (nanosecond precision).
	Timestamp time.Time `json:"timestamp"`

	// AgentID is the agent the transition applies to.
	AgentID string `json:"agent_id"`

	// StateFrom is the previous immune state.
	StateFrom uint8 `json:"state_from"`

	// StateTo is the new immune state.
	StateTo uint8 `json:"state_to"`

	// Suspicion is the combined risk score that triggered the transition.
	Suspicion float64 `json:"suspicion"`

	// Flux is the flux controller's value at the time of the transition.
	Flux float64 `json:"flux"`

	// NodeID is the polykernel node that recorded this entry.
	NodeID string `json:"node_id"`
}

// DB wraps a BoltDB instance with typed accessors for polykernel data.
type DB struct {
	db            *bolt.DB
	retentionDays int
}

// Open opens (or creates) the BoltDB database at the given path.
// Initialises all required buckets and verifies the schema version.
// Returns an error if the database is corrupt or schema is incompatible.
func Open(path string, retentionDays int) (*DB, error) {
	if retentionDays <= 0 {
		retentionDays = DefaultRetentionDays
	}

	bdb, err := bolt.Open(path, 0o600, &bolt.Options{
		Timeout:      5 * time.Second,
		NoGrowSync:   false,
		FreelistType: bolt.FreelistArrayType,
	})
	if err != nil {
		return nil, fmt.Errorf("bolt.Open(%q): %w", path, err)
	}

	d := &DB{db: bdb, retentionDays: retentionDays}

	if err := d.db.Update(func(tx *bolt.Tx) error {
		for _, name := range []string{bucketBaselines, bucketLedger, bucketAudit, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("CreateBucketIfNotExists(%q): %w", name, err)
			}
		}

		meta := tx.Bucket([]byte(bucketMeta))
		if meta.Get([]byte("schema_version")) == nil {
			if err := meta.Put([]byte("schema_version"), []byte(SchemaVersion)); err != nil {
				return fmt.Errorf("write schema_version: %w", err)
			}
		}
		return nil
	}); err != nil {
		_ = bdb.Close()
		return nil, fmt.Errorf("database initialisation failed: %w", err)
	}

	if err := d.checkSchemaVersion(); err != nil {
		_ = bdb.Close()
		return nil, err
	}

	return d, nil
}

// checkSchemaVersion reads and validates the stored schema version.
func (d *DB) checkSchemaVersion() error {
	return d.db.View(func(tx *bolt.Tx) error {
		meta := tx.Bucket([]byte(bucketMeta))
		v := meta.Get([]byte("schema_version"))
		if string(v) != SchemaVersion {
			return fmt.Errorf(
				"schema version mismatch: database has %q, kernel requires %q. "+
					"Run migration or restore from backup.",
				string(v), SchemaVersion,
			)
		}
		return nil
	})
}

// Close closes the underlying BoltDB file.
func (d *DB) Close() error {
	return d.db.Close()
}

// ─── Baseline operations ──────────────────────────────────────────────────────

// PutBaseline writes or updates a baseline record for an agent.
// Uses a single ACID write transaction.
func (d *DB) PutBaseline(rec BaselineRecord) error {
	rec.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("PutBaseline marshal: %w", err)
	}

	return d.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketBaselines))
		if err := b.Put([]byte(rec.AgentID), data); err != nil {
			return fmt.Errorf("PutBaseline bolt.Put: %w", err)
		}
		return nil
	})
}

// GetBaseline retrieves the baseline record for an agent.
// Returns (nil, nil) if no baseline exists for this agent.
func (d *DB) GetBaseline(agentID string) (*BaselineRecord, error) {
	var rec BaselineRecord
	found := false

	err := d.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketBaselines))
		data := b.Get([]byte(agentID))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &rec)
	})
	if err != nil {
		return nil, fmt.Errorf("GetBaseline(%q): %w", agentID, err)
	}
	if !found {
		return nil, nil
	}
	return &rec, nil
}

// ─── Ledger operations ────────────────────────────────────────────────────────

// ledgerKey constructs a sortable BoltDB key for a ledger entry.
// Format: RFC3339Nano + "_" + agent_id. Lexicographic sort = chronological sort.
func ledgerKey(t time.Time, agentID string) []byte {
	return []byte(fmt.Sprintf("%s_%s", t.UTC().Format(time.RFC3339Nano), agentID))
}

// AppendLedger writes a new immune state transition entry.
// Uses a single ACID write transaction.
func (d *DB) AppendLedger(entry LedgerEntry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("AppendLedger marshal: %w", err)
	}

	key := ledgerKey(entry.Timestamp, entry.AgentID)

	return d.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketLedger))
		if err := b.Put(key, data); err != nil {
			return fmt.Errorf("AppendLedger bolt.Put: %w", err)
		}
		return nil
	})
}

// PruneOldLedgerEntries deletes ledger entries older than retentionDays.
// Called on startup.
// Returns the number of entries deleted.
func (d *DB) PruneOldLedgerEntries() (int, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -d.retentionDays)
	cutoffKey := ledgerKey(cutoff, "")

	var deleted int
	err := d.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketLedger))
		c := b.Cursor()

		var toDelete [][]byte
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			if string(k) >= string(cutoffKey) {
				break
			}
			keyCopy := make([]byte, len(k))
			copy(keyCopy, k)
			toDelete = append(toDelete, keyCopy)
		}

		for _, k := range toDelete {
			if err := b.Delete(k); err != nil {
				return fmt.Errorf("PruneOldLedgerEntries delete: %w", err)
			}
			deleted++
		}
		return nil
	})
	return deleted, err
}

// ReadLedger returns all ledger entries in chronological order.
// For operational use (CLI inspection). Not called on the hot path.
func (d *DB) ReadLedger() ([]LedgerEntry, error) {
	var entries []LedgerEntry
	err := d.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketLedger))
		return b.ForEach(func(_, v []byte) error {
			var entry LedgerEntry
			if err := json.Unmarshal(v, &entry); err != nil {
				return err
			}
			entries = append(entries, entry)
			return nil
		})
	})
	return entries, err
}

// ─── Audit chain persistence ──────────────────────────────────────────────────

// auditKey constructs a sortable BoltDB key for an audit event.
func auditKey(t time.Time, seq uint64) []byte {
	return []byte(fmt.Sprintf("%s_%020d", t.UTC().Format(time.RFC3339Nano), seq))
}

// AppendAuditEvent persists one audit.Event verbatim, so the hash chain can
// be re-verified directly off disk without replaying kernel decisions.
func (d *DB) AppendAuditEvent(seq uint64, ev audit.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("AppendAuditEvent marshal: %w", err)
	}

	key := auditKey(ev.Timestamp, seq)
	return d.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketAudit))
		if err := b.Put(key, data); err != nil {
			return fmt.Errorf("AppendAuditEvent bolt.Put: %w", err)
		}
		return nil
	})
}

// ReadAuditEvents returns all persisted audit events in chronological order.
func (d *DB) ReadAuditEvents() ([]audit.Event, error) {
	var events []audit.Event
	err := d.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketAudit))
		return b.ForEach(func(_, v []byte) error {
			var ev audit.Event
			if err := json.Unmarshal(v, &ev); err != nil {
				return err
			}
			events = append(events, ev)
			return nil
		})
	})
	return events, err
}

// PruneOldAuditEvents deletes audit events older than retentionDays.
// The hash chain itself remains valid for the surviving suffix: VerifyChain
// operates on whatever prefix is loaded, and callers that prune should treat
// the oldest surviving event's prev_hash as a new starting point rather than
// re-verifying against GenesisHash.
func (d *DB) PruneOldAuditEvents() (int, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -d.retentionDays)
	cutoffKey := auditKey(cutoff, 0)

	var deleted int
	err := d.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketAudit))
		c := b.Cursor()

		var toDelete [][]byte
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			if string(k) >= string(cutoffKey) {
				break
			}
			keyCopy := make([]byte, len(k))
			copy(keyCopy, k)
			toDelete = append(toDelete, keyCopy)
		}

		for _, k := range toDelete {
			if err := b.Delete(k); err != nil {
				return fmt.Errorf("PruneOldAuditEvents delete: %w", err)
			}
			deleted++
		}
		return nil
	})
	return deleted, err
}
