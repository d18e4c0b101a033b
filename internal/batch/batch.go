// Package batch applies the embedding rewrite to every Markdown file
// matching a glob pattern, in place, with a backup of each file it
// changes.
package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/mie-tools/mie/internal/checksum"
	"github.com/mie-tools/mie/internal/rewrite"
)

var errUnchanged = errors.New("document unchanged")

// Summary reports the per-file outcomes of one batch run.
type Summary struct {
	OK        int
	Unchanged int
	Failed    int
}

// Runner processes files one at a time. Each file gets its own
// rewriter so relative image paths resolve against that file's
// directory unless Options.BasePath pins one explicitly.
type Runner struct {
	Options rewrite.Options
	Backup  bool // write <file>.bak before overwriting
	Log     *slog.Logger
}

// New builds a Runner. log may be nil to discard diagnostics.
func New(opts rewrite.Options, backup bool, log *slog.Logger) *Runner {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Runner{Options: opts, Backup: backup, Log: log}
}

// Run rewrites every file matching pattern and returns the summary.
// Individual file failures are counted, not fatal; the error is
// non-nil only when the pattern itself is bad or matches nothing.
func (r *Runner) Run(ctx context.Context, pattern string) (*Summary, error) {
	files, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("bad glob pattern %q: %w", pattern, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no files match %q", pattern)
	}

	sum := &Summary{}
	for _, file := range files {
		switch err := r.processFile(ctx, file); {
		case err == nil:
			sum.OK++
		case errors.Is(err, errUnchanged):
			sum.Unchanged++
			r.Log.Info("file unchanged", slog.String("file", file))
		default:
			sum.Failed++
			r.Log.Error("file failed",
				slog.String("file", file), slog.String("error", err.Error()))
		}
	}

	r.Log.Info("batch finished",
		slog.Int("ok", sum.OK),
		slog.Int("unchanged", sum.Unchanged),
		slog.Int("failed", sum.Failed))
	return sum, nil
}

func (r *Runner) processFile(ctx context.Context, file string) error {
	data, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("read: %w", err)
	}

	opts := r.Options
	if opts.BasePath == "" {
		opts.BasePath = filepath.Dir(file)
	}
	rw := rewrite.New(opts, r.Log.With(slog.String("file", file)))

	out, _, err := rw.Rewrite(ctx, string(data))
	if err != nil {
		return fmt.Errorf("rewrite: %w", err)
	}
	if checksum.Sum([]byte(out)) == checksum.Sum(data) {
		return errUnchanged
	}

	if r.Backup {
		if err := os.WriteFile(file+".bak", data, 0o644); err != nil {
			return fmt.Errorf("backup: %w", err)
		}
	}
	if err := os.WriteFile(file, []byte(out), 0o644); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}
