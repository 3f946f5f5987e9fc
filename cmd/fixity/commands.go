package main

import (
	"fmt"
	"time"

	"fixity/internal/archive"
	"fixity/internal/check"
	"fixity/internal/diff"
	"fixity/internal/snapshot"

	"github.com/dgraph-io/badger/v4"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// scanFlags are shared by the commands that walk a tree.
type scanFlags struct {
	excludes   []string
	workers    int
	bufferSize int
}

func (f *scanFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringArrayVarP(&f.excludes, "exclude", "e", nil, "glob pattern to exclude (repeatable)")
	cmd.Flags().IntVar(&f.workers, "workers", 0, "files hashed in parallel (default from config)")
	cmd.Flags().IntVar(&f.bufferSize, "buffer-size", 0, "hash read buffer in bytes (default from config)")
}

// resolve merges the flags over the scan section of the config.
func (f *scanFlags) resolve(a *app) (excludes []string, workers, bufferSize int) {
	excludes = append(append([]string(nil), a.cfg.Scan.Excludes...), f.excludes...)
	workers, bufferSize = a.cfg.Scan.Workers, a.cfg.Scan.BufferSize
	if f.workers > 0 {
		workers = f.workers
	}
	if f.bufferSize > 0 {
		bufferSize = f.bufferSize
	}
	return excludes, workers, bufferSize
}

func newCheckCmd(a *app) *cobra.Command {
	var (
		scan         scanFlags
		controlFile  string
		dryRun       bool
		archivePath  string
		name         string
		failOnChange bool
		porcelain    bool
	)

	cmd := &cobra.Command{
		Use:   "check <dir>",
		Short: "Compare a directory with its control file and update the baseline",
		Long: `Hashes every file under <dir>, prints the files added, removed and
modified since the baseline stored in the control file, then replaces the
baseline. With --archive the run is also recorded in a history database.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			excludes, workers, bufferSize := scan.resolve(a)
			if controlFile == "" {
				controlFile = a.cfg.Scan.ControlFile
			}

			opts := check.Options{
				ControlFile: controlFile,
				Root:        args[0],
				Excludes:    excludes,
				Workers:     workers,
				BufferSize:  bufferSize,
				DryRun:      dryRun,
				Name:        name,
				Logger:      a.logger.Logger,
			}

			if archivePath != "" {
				db, arch, err := openArchive(a, archivePath)
				if err != nil {
					return err
				}
				defer db.Close()
				opts.Archive = arch
			}

			res, err := check.Run(cmd.Context(), opts, func(r diff.Report) error {
				return writeReport(cmd.OutOrStdout(), r, porcelain)
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if porcelain {
				out = cmd.ErrOrStderr()
			}
			if res.Saved {
				fmt.Fprintf(out, "\nBaseline saved to %s (%d files)\n", controlFile, res.Current.Len())
			} else {
				fmt.Fprintln(out, "\nDry run: baseline not updated")
			}
			if res.ReportID != "" {
				fmt.Fprintf(out, "Archived report %s\n", res.ReportID)
			}

			if failOnChange && !res.Report.Empty() {
				return errChanged
			}
			return nil
		},
	}

	scan.register(cmd)
	cmd.Flags().StringVarP(&controlFile, "file", "f", "", "control file (default from config, else Controlfile)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report without updating the baseline")
	cmd.Flags().StringVar(&archivePath, "archive", "", "record the run in the history database at this path")
	cmd.Flags().StringVar(&name, "name", "", "history name for the tree (default: absolute path)")
	cmd.Flags().BoolVar(&failOnChange, "fail-on-change", false, "exit with status 2 when changes are found")
	cmd.Flags().BoolVar(&porcelain, "porcelain", false, "print one \"<kind>\\t<path>\" line per change")
	return cmd
}

func newSnapshotCmd(a *app) *cobra.Command {
	var (
		scan   scanFlags
		output string
	)

	cmd := &cobra.Command{
		Use:   "snapshot <dir>",
		Short: "Write a fresh control file for a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			excludes, workers, bufferSize := scan.resolve(a)
			if output == "" {
				output = a.cfg.Scan.ControlFile
			}

			s, err := check.Build(cmd.Context(), args[0], excludes,
				snapshot.WithWorkers(workers),
				snapshot.WithBufferSize(bufferSize),
				snapshot.WithLogger(a.logger.Logger))
			if err != nil {
				return err
			}

			if err := s.SaveFile(output); err != nil {
				return fmt.Errorf("saving control file: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d entries to %s\n", s.Len(), output)
			return nil
		},
	}

	scan.register(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "", "control file to write")
	return cmd
}

func newDiffCmd(a *app) *cobra.Command {
	var failOnChange, porcelain bool

	cmd := &cobra.Command{
		Use:   "diff <old-file> <new-file>",
		Short: "Compare two control files",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			old, err := snapshot.LoadFile(args[0])
			if err != nil {
				return err
			}
			current, err := snapshot.LoadFile(args[1])
			if err != nil {
				return err
			}

			r := diff.Compare(old, current)
			a.logger.Debug("compared control files",
				zap.String("old", args[0]),
				zap.String("new", args[1]),
				zap.Int("changes", r.Stats().Total))

			if err := writeReport(cmd.OutOrStdout(), r, porcelain); err != nil {
				return err
			}
			if failOnChange && !r.Empty() {
				return errChanged
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&failOnChange, "fail-on-change", false, "exit with status 2 when the files differ")
	cmd.Flags().BoolVar(&porcelain, "porcelain", false, "print one \"<kind>\\t<path>\" line per change")
	return cmd
}

func newHistoryCmd(a *app) *cobra.Command {
	var (
		archivePath string
		name        string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List archived check runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if archivePath == "" {
				archivePath = a.cfg.Archive.Path
			}

			db, arch, err := openArchive(a, archivePath)
			if err != nil {
				return err
			}
			defer db.Close()

			reports, err := arch.ListReports(name)
			if err != nil {
				return fmt.Errorf("listing reports: %w", err)
			}
			return printHistory(cmd.OutOrStdout(), reports)
		},
	}

	cmd.Flags().StringVar(&archivePath, "archive", "", "history database (default from config)")
	cmd.Flags().StringVar(&name, "name", "", "only list runs of this tree")
	return cmd
}

func openArchive(a *app, path string) (*badger.DB, *archive.Archive, error) {
	db, err := archive.OpenDB(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening archive: %w", err)
	}

	arch, err := archive.New(db, archive.Options{
		CacheSize: a.cfg.Archive.CacheSize,
		Logger:    a.logger.Logger,
	})
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("opening archive: %w", err)
	}
	return db, arch, nil
}

func formatTime(t time.Time) string {
	return t.Local().Format("2006-01-02 15:04:05")
}
