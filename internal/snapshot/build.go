// internal/snapshot/build.go
package snapshot

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"fixity/internal/digest"
	"fixity/internal/exclude"
	"fixity/internal/tree"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type buildOptions struct {
	workers int
	bufSize int
	logger  *zap.Logger
}

// Option configures BuildFromDirectory
type Option func(*buildOptions)

// WithWorkers hashes files on n goroutines. n <= 1 hashes sequentially.
func WithWorkers(n int) Option {
	return func(o *buildOptions) { o.workers = n }
}

// WithBufferSize sets the read chunk used for hashing
func WithBufferSize(n int) Option {
	return func(o *buildOptions) { o.bufSize = n }
}

// WithLogger reports progress to logger
func WithLogger(logger *zap.Logger) Option {
	return func(o *buildOptions) { o.logger = logger }
}

// BuildFromDirectory hashes every file under root not excluded by f
func BuildFromDirectory(root string, f *exclude.Filter, opts ...Option) (*Snapshot, error) {
	return BuildFromDirectoryContext(context.Background(), root, f, opts...)
}

// BuildFromDirectoryContext is BuildFromDirectory with cancellation between files
func BuildFromDirectoryContext(ctx context.Context, root string, f *exclude.Filter, opts ...Option) (*Snapshot, error) {
	o := buildOptions{workers: 1, bufSize: digest.DefaultBufferSize, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	start := time.Now()
	paths, err := tree.Enumerate(root, f)
	if err != nil {
		return nil, fmt.Errorf("cannot access directory %s: %w", root, err)
	}
	o.logger.Debug("enumerated tree",
		zap.String("root", root),
		zap.Int("files", len(paths)),
		zap.Strings("excludes", f.Patterns()))

	entries := make([]digest.Entry, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(o.workers, 1))

	for i, p := range paths {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			e, err := digest.Compute(root, p, o.bufSize)
			if err != nil {
				return fmt.Errorf("cannot read file %s: %w", filepath.Join(root, filepath.FromSlash(p)), err)
			}
			entries[i] = e
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })

	o.logger.Debug("built snapshot",
		zap.String("root", root),
		zap.Int("entries", len(entries)),
		zap.Int("workers", o.workers),
		zap.Duration("elapsed", time.Since(start)))

	return &Snapshot{entries: entries}, nil
}
