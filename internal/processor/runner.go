package processor

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/nistring/VitalRecoder-ANI/pkg/config"
	"github.com/nistring/VitalRecoder-ANI/pkg/logger"
)

const recordingExt = ".vpr"

// Runner fans whole-file processing out across worker goroutines, one
// recording per task. Workers share no mutable state and completion order
// is unspecified; a failed file never stops the batch.
type Runner struct {
	proc   *Processor
	cfg    config.PipelineConfig
	logger *slog.Logger
}

func NewRunner(proc *Processor, cfg config.PipelineConfig) *Runner {
	return &Runner{
		proc:   proc,
		cfg:    cfg,
		logger: logger.WithComponent("runner"),
	}
}

// Run processes every recording in the data directory and returns the
// number of files that failed. Run only errors when the directory itself
// cannot be listed or the context is cancelled.
func (r *Runner) Run(ctx context.Context) (failed int, err error) {
	entries, err := os.ReadDir(r.cfg.DataDir)
	if err != nil {
		return 0, fmt.Errorf("listing data directory %s: %w", r.cfg.DataDir, err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), recordingExt) {
			continue
		}
		files = append(files, filepath.Join(r.cfg.DataDir, e.Name()))
	}
	if len(files) == 0 {
		r.logger.Warn("no recordings found", "dir", r.cfg.DataDir, "ext", recordingExt)
		return 0, nil
	}

	workers := r.cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	r.logger.Info("processing recordings", "count", len(files), "workers", workers)

	var failures atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, file := range files {
		file := file
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := r.proc.ProcessFile(gctx, file); err != nil {
				failures.Add(1)
				r.logger.Error("recording failed", "file", file, "error", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return int(failures.Load()), fmt.Errorf("batch interrupted: %w", err)
	}
	return int(failures.Load()), nil
}
