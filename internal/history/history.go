// Package history implements the cross-run history index: a bbolt
// database recording one summary record per finalized run, backing
// `litani history` and `litani history prune`.
package history

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/caevv/litani/internal/litani"
	"github.com/caevv/litani/internal/rundir"
)

const runsBucket = "runs"

// Record is one entry in the history index.
type Record struct {
	RunID     string           `json:"run_id"`
	Project   string           `json:"project"`
	StartTime time.Time        `json:"start_time"`
	EndTime   time.Time        `json:"end_time,omitempty"`
	Status    litani.RunStatus `json:"status"`
	ReportDir string           `json:"report_dir"`
}

// Index wraps a bbolt database at <output-prefix>/litani/history.db.
type Index struct {
	db *bolt.DB
}

// Open creates or opens the history index at path.
func Open(path string) (*Index, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open history index %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(runsBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init history index buckets: %w", err)
	}
	return &Index{db: db}, nil
}

// Close releases the underlying database handle.
func (idx *Index) Close() error {
	return idx.db.Close()
}

// Record writes one entry, keyed by run_id, once per run at finalization.
func (idx *Index) Record(rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal history record: %w", err)
	}
	return idx.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(runsBucket))
		return bucket.Put([]byte(rec.RunID), data)
	})
}

// List returns recorded runs, optionally filtered by project, newest
// first, capped at limit (0 means unbounded).
func (idx *Index) List(project string, limit int) ([]Record, error) {
	var records []Record
	err := idx.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(runsBucket))
		return bucket.ForEach(func(_, v []byte) error {
			var rec Record
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("unmarshal history record: %w", err)
			}
			if project != "" && rec.Project != project {
				return nil
			}
			records = append(records, rec)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].StartTime.After(records[j].StartTime)
	})
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// Prune finds runs older than cutoff, marks their report directories
// expired, and deletes the report directory for any that is both
// expired and unlocked. Build artifacts under the run directory are
// never touched, only the report directory.
func (idx *Index) Prune(cutoff time.Time, maxWait time.Duration) ([]string, error) {
	records, err := idx.List("", 0)
	if err != nil {
		return nil, err
	}

	var pruned []string
	for _, rec := range records {
		if rec.EndTime.IsZero() || rec.EndTime.After(cutoff) || rec.ReportDir == "" {
			continue
		}

		if err := rundir.MarkExpired(rec.ReportDir); err != nil {
			continue
		}

		lock := rundir.NewLockableDirectory(rec.ReportDir)
		if lock.IsLocked() {
			continue
		}
		if err := lock.Acquire(maxWait); err != nil {
			continue
		}
		removeErr := removeReportDir(rec.ReportDir)
		lock.Release()
		if removeErr == nil {
			pruned = append(pruned, rec.RunID)
		}
	}
	return pruned, nil
}

func removeReportDir(path string) error {
	return os.RemoveAll(path)
}
