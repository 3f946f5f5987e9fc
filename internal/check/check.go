// internal/check/check.go
package check

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"fixity/internal/archive"
	"fixity/internal/diff"
	"fixity/internal/exclude"
	"fixity/internal/snapshot"

	"go.uber.org/zap"
)

// DefaultControlFile is the baseline file name used when none is given
const DefaultControlFile = "Controlfile"

// Options configures a check run
type Options struct {
	ControlFile string
	Root        string
	Excludes    []string
	Workers     int
	BufferSize  int
	DryRun      bool             // report only, keep the baseline untouched
	Name        string           // archive name, defaults to the absolute root
	Archive     *archive.Archive // optional history of runs
	Logger      *zap.Logger
}

// Result is the outcome of a completed run
type Result struct {
	Baseline *snapshot.Snapshot
	Current  *snapshot.Snapshot
	Report   diff.Report
	Saved    bool
	ReportID string // set when the run was archived
}

// ReportFunc consumes a report before the baseline is replaced. Returning
// an error aborts the run and leaves the baseline untouched.
type ReportFunc func(diff.Report) error

// LoadOrEmpty loads the baseline at path, or an empty snapshot on a first run
func LoadOrEmpty(path string) (*snapshot.Snapshot, error) {
	return snapshot.LoadFileOrEmpty(path)
}

// Build snapshots root, skipping names matched by patterns
func Build(ctx context.Context, root string, patterns []string, opts ...snapshot.Option) (*snapshot.Snapshot, error) {
	return snapshot.BuildFromDirectoryContext(ctx, root, exclude.New(patterns), opts...)
}

// Run compares the tree under opts.Root with the baseline in
// opts.ControlFile, hands the report to report, and only then persists the
// new baseline.
func Run(ctx context.Context, opts Options, report ReportFunc) (*Result, error) {
	if opts.Root == "" {
		return nil, fmt.Errorf("root directory is required")
	}
	if opts.ControlFile == "" {
		opts.ControlFile = DefaultControlFile
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	start := time.Now()
	baseline, err := LoadOrEmpty(opts.ControlFile)
	if err != nil {
		return nil, fmt.Errorf("loading control file: %w", err)
	}
	logger.Debug("loaded baseline",
		zap.String("control_file", opts.ControlFile),
		zap.Int("entries", baseline.Len()))

	current, err := Build(ctx, opts.Root, opts.Excludes,
		snapshot.WithWorkers(opts.Workers),
		snapshot.WithBufferSize(opts.BufferSize),
		snapshot.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	res := &Result{
		Baseline: baseline,
		Current:  current,
		Report:   diff.Compare(baseline, current),
	}

	if report != nil {
		if err := report(res.Report); err != nil {
			return nil, fmt.Errorf("reporting: %w", err)
		}
	}

	if !opts.DryRun {
		if err := current.SaveFile(opts.ControlFile); err != nil {
			return nil, fmt.Errorf("saving control file: %w", err)
		}
		res.Saved = true
	}

	// a dry run leaves the archived baseline where it was too
	if opts.Archive != nil && !opts.DryRun {
		name, err := archiveName(opts)
		if err != nil {
			return nil, err
		}
		baselineID, _, err := latest(opts.Archive, name)
		if err != nil {
			return nil, err
		}
		rec, err := opts.Archive.Record(name, opts.Root, opts.Excludes, baselineID, current, res.Report)
		if err != nil {
			return nil, err
		}
		res.ReportID = rec.ID
	}

	stats := res.Report.Stats()
	logger.Info("check completed",
		zap.String("root", opts.Root),
		zap.Int("files", current.Len()),
		zap.Int("added", stats.Added),
		zap.Int("removed", stats.Removed),
		zap.Int("modified", stats.Modified),
		zap.Bool("saved", res.Saved),
		zap.Duration("elapsed", time.Since(start)))

	return res, nil
}

// Request asks for a tree to be compared against its latest archived snapshot
type Request struct {
	Name     string   `json:"name"`
	Root     string   `json:"root"`
	Excludes []string `json:"excludes"`
}

// Archived compares the tree in req with the latest snapshot archived
// under req.Name (an empty baseline on the first run) and archives the new
// snapshot and the report.
func Archived(ctx context.Context, a *archive.Archive, req Request, opts ...snapshot.Option) (*archive.ReportRecord, error) {
	baselineID, baseline, err := latest(a, req.Name)
	if err != nil {
		return nil, err
	}

	current, err := Build(ctx, req.Root, req.Excludes, opts...)
	if err != nil {
		return nil, err
	}

	return a.Record(req.Name, req.Root, req.Excludes, baselineID, current, diff.Compare(baseline, current))
}

func archiveName(opts Options) (string, error) {
	if opts.Name != "" {
		return opts.Name, nil
	}
	abs, err := filepath.Abs(opts.Root)
	if err != nil {
		return "", fmt.Errorf("resolving root: %w", err)
	}
	return filepath.ToSlash(abs), nil
}

// latest returns the newest archived snapshot of name, or an empty one
func latest(a *archive.Archive, name string) (string, *snapshot.Snapshot, error) {
	rec, s, err := a.Latest(name)
	if errors.Is(err, archive.ErrNotFound) {
		return "", snapshot.Empty(), nil
	}
	if err != nil {
		return "", nil, err
	}
	return rec.ID, s, nil
}
