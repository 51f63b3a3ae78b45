package executor

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"dailysync/internal/logger"
	"dailysync/internal/model"
	"dailysync/internal/pipeline"
	"dailysync/internal/util"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Observer receives run events. Calls for one run are never concurrent and
// progress events are delivered in non-decreasing order.
type Observer func(model.Event)

type Options struct {
	// Workers bounds concurrent file copies; zero picks a default.
	Workers int
	// CopyTimeout aborts a single file copy that takes longer; zero disables it.
	CopyTimeout time.Duration
	// Ignore skips source entries whose name matches one of the patterns.
	Ignore *pipeline.Filter
	// CopyFile replaces the file copy routine; nil uses util.CopyFile.
	CopyFile func(ctx context.Context, src, dst string) (int64, error)
}

type Executor struct {
	workers     int
	copyTimeout time.Duration
	ignore      *pipeline.Filter
	copyFile    func(ctx context.Context, src, dst string) (int64, error)
}

func New(opts Options) *Executor {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU() * 4
	}

	copyFile := opts.CopyFile
	if copyFile == nil {
		copyFile = util.CopyFile
	}

	return &Executor{
		workers:     workers,
		copyTimeout: opts.CopyTimeout,
		ignore:      opts.Ignore,
		copyFile:    copyFile,
	}
}

type Result struct {
	JobID      uint
	Files      int
	TotalBytes int64
	Copied     int64
	Progress   int
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}

type fileTask struct {
	src  string
	dst  string
	size int64
}

// Execute mirrors job.SourcePath into job.DestPath. Every file is copied and
// existing destination files are overwritten. The first failed copy stops
// dispatching further files; copies already running are allowed to finish.
func (e *Executor) Execute(ctx context.Context, job model.Job, observe Observer) Result {
	if observe == nil {
		observe = func(model.Event) {}
	}

	res := Result{JobID: job.ID, StartedAt: time.Now()}
	finish := func(err error) Result {
		res.Err = err
		res.FinishedAt = time.Now()
		return res
	}

	info, err := os.Stat(job.SourcePath)
	if job.SourcePath == "" || err != nil || !info.IsDir() {
		return finish(fmt.Errorf("%w: %s", model.ErrSourceNotFound, job.SourcePath))
	}

	if err := os.MkdirAll(job.DestPath, 0755); err != nil {
		return finish(&model.CopyFailedError{Path: job.DestPath, Err: err})
	}

	tasks, total, err := plan(job.SourcePath, job.DestPath, e.ignore)
	if err != nil {
		return finish(err)
	}
	res.Files = len(tasks)
	res.TotalBytes = total

	observe(e.event(model.EventSyncStarted, job, 0))
	logger.Log.Info("sync started",
		zap.Uint("id", job.ID),
		zap.String("src", job.SourcePath),
		zap.String("dst", job.DestPath),
		zap.Int("files", len(tasks)),
		zap.String("size", humanize.Bytes(uint64(total))))

	prog := &progress{total: total, observe: func(pct int) {
		observe(e.event(model.EventProgress, job, pct))
	}}

	var failed atomic.Bool
	g := new(errgroup.Group)
	g.SetLimit(e.workers)

	for _, task := range tasks {
		if failed.Load() || ctx.Err() != nil {
			break
		}

		g.Go(func() error {
			if err := e.copy(ctx, task); err != nil {
				failed.Store(true)
				logger.Log.Error("file copy failed",
					zap.Uint("id", job.ID),
					zap.String("path", task.src),
					zap.Error(err))
				return &model.CopyFailedError{Path: task.src, Err: err}
			}
			prog.add(task.size)
			return nil
		})
	}

	err = g.Wait()
	if err == nil && ctx.Err() != nil {
		err = &model.CopyFailedError{Path: job.SourcePath, Err: ctx.Err()}
	}

	res.Copied, res.Progress = prog.snapshot()
	if err != nil {
		ev := e.event(model.EventSyncFailed, job, res.Progress)
		ev.Err = err.Error()
		observe(ev)
		return finish(err)
	}

	if total > 0 {
		res.Progress = prog.complete()
	}

	observe(e.event(model.EventSyncCompleted, job, res.Progress))
	logger.Log.Info("sync completed",
		zap.Uint("id", job.ID),
		zap.String("src", job.SourcePath),
		zap.String("dst", job.DestPath),
		zap.Duration("took", time.Since(res.StartedAt)))

	return finish(nil)
}

func (e *Executor) copy(ctx context.Context, task fileTask) error {
	if e.copyTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.copyTimeout)
		defer cancel()
	}

	_, err := e.copyFile(ctx, task.src, task.dst)
	return err
}

func (e *Executor) event(t model.EventType, job model.Job, pct int) model.Event {
	return model.Event{
		Type:      t,
		JobID:     job.ID,
		SrcPath:   job.SourcePath,
		DstPath:   job.DestPath,
		Percent:   pct,
		Timestamp: time.Now(),
	}
}

// plan walks src once, returning a copy task per regular file and the sum of
// their sizes.
func plan(src, dst string, ignore *pipeline.Filter) ([]fileTask, int64, error) {
	var tasks []fileTask
	var total int64

	err := filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return &model.CopyFailedError{Path: path, Err: err}
		}
		if path != src && ignore.Ignore(d.Name()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return &model.CopyFailedError{Path: path, Err: err}
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return &model.CopyFailedError{Path: path, Err: err}
		}

		tasks = append(tasks, fileTask{
			src:  path,
			dst:  filepath.Join(dst, rel),
			size: info.Size(),
		})
		total += info.Size()
		return nil
	})
	if err != nil {
		if _, ok := errors.AsType[*model.CopyFailedError](err); ok {
			return nil, 0, err
		}
		return nil, 0, &model.CopyFailedError{Path: src, Err: err}
	}

	return tasks, total, nil
}

// progress accumulates copied bytes shared by all copy tasks of a run and
// publishes the percentage only when it grows.
type progress struct {
	mu        sync.Mutex
	total     int64
	copied    int64
	published int
	observe   func(int)
}

func (p *progress) add(n int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.copied += n
	if p.total <= 0 {
		return
	}

	pct := int(p.copied * 100 / p.total)
	if pct > 100 {
		pct = 100
	}
	if pct > p.published {
		p.published = pct
		p.observe(pct)
	}
}

func (p *progress) complete() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.published != 100 {
		p.published = 100
		p.observe(100)
	}
	return 100
}

func (p *progress) snapshot() (int64, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.copied, p.published
}
