// internal/archive/archive.go
package archive

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"time"

	"fixity/internal/diff"
	"fixity/internal/snapshot"
	"fixity/internal/storage"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

const (
	bodyPrefix   = "snapbody:"
	latestPrefix = "latest:"
)

var (
	ErrNotFound = storage.ErrNotFound
	// ErrConflict means another run moved the latest snapshot first
	ErrConflict = errors.New("baseline changed concurrently")
)

// SnapshotRecord describes an archived snapshot
type SnapshotRecord struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Root      string    `json:"root"`
	Excludes  []string  `json:"excludes"`
	Entries   int       `json:"entries"`
	Size      int       `json:"size"` // stored body size in bytes
	CreatedAt time.Time `json:"created_at"`
}

func (r *SnapshotRecord) GetID() string { return r.ID }

// ReportRecord is an archived comparison between two snapshots
type ReportRecord struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	BaselineID string      `json:"baseline_id,omitempty"` // empty on a first run
	SnapshotID string      `json:"snapshot_id"`
	Report     diff.Report `json:"report"`
	Stats      diff.Stats  `json:"stats"`
	CreatedAt  time.Time   `json:"created_at"`
}

func (r *ReportRecord) GetID() string { return r.ID }

// Options configures an Archive
type Options struct {
	CacheSize   int // decoded snapshots kept in memory
	Compression CompressionOptions
	Logger      *zap.Logger
}

// Archive keeps the history of snapshots and reports of named trees
type Archive struct {
	db        *badger.DB
	snapshots *storage.BadgerStore
	reports   *storage.BadgerStore
	cache     *lru.Cache[string, *snapshot.Snapshot]
	codec     *compressionManager
	logger    *zap.Logger
}

// New creates an archive on top of db. The caller owns db.
func New(db *badger.DB, opts Options) (*Archive, error) {
	if db == nil {
		return nil, fmt.Errorf("database cannot be nil")
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = 16
	}
	if opts.Compression == (CompressionOptions{}) {
		opts.Compression = DefaultCompressionOptions()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	cache, err := lru.New[string, *snapshot.Snapshot](opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating cache: %w", err)
	}

	codec, err := newCompressionManager(opts.Compression)
	if err != nil {
		return nil, fmt.Errorf("creating compression manager: %w", err)
	}

	return &Archive{
		db:        db,
		snapshots: storage.NewBadgerStore(db, "snapshot"),
		reports:   storage.NewBadgerStore(db, "report"),
		cache:     cache,
		codec:     codec,
		logger:    opts.Logger,
	}, nil
}

// Record stores s as the latest snapshot of name together with the report
// comparing it with baselineID, in a single transaction. baselineID must
// still be the latest snapshot of name ("" when there is none), otherwise
// nothing is written and ErrConflict is returned.
func (a *Archive) Record(name, root string, excludes []string, baselineID string, s *snapshot.Snapshot, r diff.Report) (*ReportRecord, error) {
	if name == "" {
		return nil, fmt.Errorf("name is required")
	}

	var buf bytes.Buffer
	if err := s.Save(&buf); err != nil {
		return nil, fmt.Errorf("encoding snapshot: %w", err)
	}
	body := a.codec.compress(buf.Bytes())

	now := time.Now().UTC()
	snap := &SnapshotRecord{
		ID:        uuid.New().String(),
		Name:      name,
		Root:      root,
		Excludes:  excludes,
		Entries:   s.Len(),
		Size:      len(body),
		CreatedAt: now,
	}
	rec := &ReportRecord{
		ID:         uuid.New().String(),
		Name:       name,
		BaselineID: baselineID,
		SnapshotID: snap.ID,
		Report:     r,
		Stats:      r.Stats(),
		CreatedAt:  now,
	}

	err := a.db.Update(func(txn *badger.Txn) error {
		if err := a.snapshots.CreateTxn(txn, snap); err != nil {
			return err
		}
		if err := txn.Set([]byte(bodyPrefix+snap.ID), body); err != nil {
			return fmt.Errorf("storing body: %w", err)
		}

		current, err := latestID(txn, name)
		if err != nil {
			return err
		}
		if current != baselineID {
			return fmt.Errorf("%w: latest snapshot of %s is %q, not %q", ErrConflict, name, current, baselineID)
		}
		if err := txn.Set([]byte(latestPrefix+name), []byte(snap.ID)); err != nil {
			return fmt.Errorf("moving latest: %w", err)
		}

		return a.reports.CreateTxn(txn, rec)
	})
	if errors.Is(err, badger.ErrConflict) {
		err = fmt.Errorf("%w: %v", ErrConflict, err)
	}
	if err != nil {
		return nil, fmt.Errorf("archiving run: %w", err)
	}

	a.cache.Add(snap.ID, s)
	a.logger.Debug("archived run",
		zap.String("name", name),
		zap.String("snapshot", snap.ID),
		zap.String("report", rec.ID),
		zap.Int("entries", snap.Entries),
		zap.Int("raw_size", buf.Len()),
		zap.Int("stored_size", snap.Size),
		zap.Int("changes", rec.Stats.Total))

	return rec, nil
}

// latestID reads the latest pointer of name, "" when there is none
func latestID(txn *badger.Txn, name string) (string, error) {
	item, err := txn.Get([]byte(latestPrefix + name))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading latest snapshot: %w", err)
	}
	val, err := item.ValueCopy(nil)
	return string(val), err
}

// GetSnapshot returns the record and decoded snapshot for id
func (a *Archive) GetSnapshot(id string) (*SnapshotRecord, *snapshot.Snapshot, error) {
	var rec SnapshotRecord
	if err := a.snapshots.Get(id, &rec); err != nil {
		return nil, nil, fmt.Errorf("getting snapshot: %w", err)
	}

	if s, ok := a.cache.Get(id); ok {
		return &rec, s, nil
	}

	var body []byte
	err := a.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(bodyPrefix + id))
		if err != nil {
			return err
		}
		body, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, nil, fmt.Errorf("reading snapshot body %s: %w", id, err)
	}

	raw, err := a.codec.decompress(body)
	if err != nil {
		return nil, nil, fmt.Errorf("decoding snapshot body %s: %w", id, err)
	}

	s, err := snapshot.Load(bytes.NewReader(raw), "archive:"+id)
	if err != nil {
		return nil, nil, err
	}

	a.cache.Add(id, s)
	return &rec, s, nil
}

// Latest returns the most recent snapshot stored under name
func (a *Archive) Latest(name string) (*SnapshotRecord, *snapshot.Snapshot, error) {
	var id string
	err := a.db.View(func(txn *badger.Txn) error {
		var err error
		id, err = latestID(txn, name)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	if id == "" {
		return nil, nil, fmt.Errorf("%w: no snapshot named %s", ErrNotFound, name)
	}

	return a.GetSnapshot(id)
}

// ListSnapshots returns the records stored under name, oldest first.
// An empty name lists every record.
func (a *Archive) ListSnapshots(name string) ([]*SnapshotRecord, error) {
	var all []*SnapshotRecord
	if err := a.snapshots.List(&all); err != nil {
		return nil, err
	}

	out := all[:0]
	for _, r := range all {
		if name == "" || r.Name == name {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// GetReport returns the report stored under id
func (a *Archive) GetReport(id string) (*ReportRecord, error) {
	var rec ReportRecord
	if err := a.reports.Get(id, &rec); err != nil {
		return nil, fmt.Errorf("getting report: %w", err)
	}
	return &rec, nil
}

// ListReports returns the reports stored under name, oldest first.
// An empty name lists every report.
func (a *Archive) ListReports(name string) ([]*ReportRecord, error) {
	var all []*ReportRecord
	if err := a.reports.List(&all); err != nil {
		return nil, err
	}

	out := all[:0]
	for _, r := range all {
		if name == "" || r.Name == name {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
