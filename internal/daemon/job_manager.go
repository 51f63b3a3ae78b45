package daemon

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"dailysync/internal/executor"
	"dailysync/internal/guard"
	"dailysync/internal/logger"
	"dailysync/internal/model"
	"dailysync/internal/notify"
	"dailysync/internal/registry"
	"dailysync/internal/scheduler"

	"go.uber.org/zap"
)

const alreadyRunningMessage = "Sync is already in progress for this job."

type SettingsSaver interface {
	Save(jobs []model.Job) error
}

type HistoryRecorder interface {
	Save(run *model.Run) error
}

type EventPublisher interface {
	PublishEvent(ev model.Event)
	PublishNotification(n notify.Notification)
}

type Options struct {
	Executor             executor.Options
	Scheduler            scheduler.Config
	NotificationsEnabled bool
	Visible              bool
	Settings             SettingsSaver
	History              HistoryRecorder
	Events               EventPublisher
}

// JobManager owns the job registry and wires it to the scheduler, the
// execution guard, the executor and the notification sink. Every command
// takes a job id and looks the job up at call time.
type JobManager struct {
	registry  *registry.Registry
	guard     *guard.Guard
	executor  *executor.Executor
	scheduler *scheduler.Scheduler
	sink      *notify.Sink
	feed      *Feed

	settings SettingsSaver
	history  HistoryRecorder
	events   EventPublisher

	ctx    context.Context
	cancel context.CancelFunc
	runs   sync.WaitGroup
}

func NewJobManager(opts Options) *JobManager {
	if opts.Events == nil {
		opts.Events = nopPublisher{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &JobManager{
		registry: registry.New(),
		guard:    guard.New(),
		executor: executor.New(opts.Executor),
		settings: opts.Settings,
		history:  opts.History,
		events:   opts.Events,
		ctx:      ctx,
		cancel:   cancel,
	}

	m.feed = NewFeed(50, opts.Events.PublishNotification)
	m.sink = notify.NewSink(m.feed, opts.NotificationsEnabled, opts.Visible)
	m.scheduler = scheduler.New(opts.Scheduler, m.triggerScheduled)

	m.registry.OnChange(m.onRegistryChange)
	return m
}

// Load replaces all jobs, typically with the content of the settings file.
// Jobs with an unchanged folder pair keep their id and any active run.
func (m *JobManager) Load(jobs []model.Job) {
	stored, invalid, removed := m.registry.Replace(jobs)
	for _, i := range invalid {
		logger.Log.Warn("invalid trigger time dropped",
			zap.Uint("id", stored[i].ID),
			zap.String("time", jobs[i].TriggerTime))
	}
	for _, id := range removed {
		m.guard.Forget(id)
	}

	logger.Log.Info("jobs loaded",
		zap.Int("jobs", len(stored)),
		zap.Int("removed", len(removed)))
}

func (m *JobManager) Start() {
	m.scheduler.Start(m.ctx)
}

// Stop halts the scheduler and waits for active runs. Runs still going when
// ctx expires are cancelled.
func (m *JobManager) Stop(ctx context.Context) error {
	m.scheduler.Stop()

	done := make(chan struct{})
	go func() {
		m.runs.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.cancel()
		return nil
	case <-ctx.Done():
		m.cancel()
		<-done
		return fmt.Errorf("runs still active at shutdown: %w", ctx.Err())
	}
}

func (m *JobManager) onRegistryChange(jobs []model.Job) {
	m.scheduler.Rebuild(jobs)

	if m.settings == nil {
		return
	}
	if err := m.settings.Save(jobs); err != nil {
		logger.Log.Error("failed to save settings",
			zap.Error(err))
	}
}

func (m *JobManager) AddJob(job model.Job) (model.Job, error) {
	job, err := m.registry.Add(job)
	if err != nil {
		return model.Job{}, err
	}

	logger.Log.Info("job added",
		zap.Uint("id", job.ID),
		zap.String("src", job.SourcePath),
		zap.String("dst", job.DestPath),
		zap.String("time", job.TriggerTime))
	return job, nil
}

func (m *JobManager) EditJob(id uint, field, value string) (model.Job, error) {
	p, err := registry.PatchFromField(field, value)
	if err != nil {
		return model.Job{}, err
	}
	return m.UpdateJob(id, p)
}

func (m *JobManager) UpdateJob(id uint, p registry.Patch) (model.Job, error) {
	job, err := m.registry.Update(id, p)
	if err != nil {
		return model.Job{}, err
	}

	logger.Log.Info("job updated",
		zap.Uint("id", job.ID))
	return job, nil
}

// UnscheduleJob clears the trigger time. A run in progress is not affected.
func (m *JobManager) UnscheduleJob(id uint) (model.Job, error) {
	empty := ""
	return m.UpdateJob(id, registry.Patch{TriggerTime: &empty})
}

func (m *JobManager) DeleteJob(id uint) error {
	if err := m.registry.Remove(id); err != nil {
		return err
	}
	m.guard.Forget(id)

	logger.Log.Info("job removed",
		zap.Uint("id", id))
	return nil
}

func (m *JobManager) ToggleJobNotifications(id uint) (model.Job, error) {
	job, err := m.registry.Get(id)
	if err != nil {
		return model.Job{}, err
	}

	enabled := !job.NotificationsEnabled
	return m.UpdateJob(id, registry.Patch{NotificationsEnabled: &enabled})
}

// ToggleGlobalNotifications flips the global switch and applies the new
// value to every job.
func (m *JobManager) ToggleGlobalNotifications() bool {
	enabled := m.sink.ToggleGlobal()
	m.registry.SetAllNotifications(enabled)

	logger.Log.Info("global notifications toggled",
		zap.Bool("enabled", enabled))
	return enabled
}

func (m *JobManager) GlobalNotifications() bool {
	return m.sink.Global()
}

// Show marks the host visible and returns the notifications that were
// waiting for it.
func (m *JobManager) Show() []notify.Notification {
	flushed := m.sink.SetVisible(true)
	if flushed == nil {
		flushed = []notify.Notification{}
	}
	return flushed
}

func (m *JobManager) Hide() {
	m.sink.SetVisible(false)
}

func (m *JobManager) Visible() bool {
	return m.sink.Visible()
}

func (m *JobManager) Notifications() []notify.Notification {
	return m.feed.Recent()
}

func (m *JobManager) QueryProgress(id uint) (model.ExecutionState, error) {
	if !m.registry.Exists(id) {
		return model.ExecutionState{}, fmt.Errorf("%w: %d", model.ErrJobNotFound, id)
	}
	return m.guard.State(id), nil
}

func (m *JobManager) QueryJobList() []model.JobView {
	jobs := m.registry.List()
	views := make([]model.JobView, 0, len(jobs))
	for _, job := range jobs {
		st := m.guard.State(job.ID)
		views = append(views, model.JobView{
			Job:      job,
			Running:  st.Running,
			Progress: st.Progress,
		})
	}
	return views
}

func (m *JobManager) GetJob(id uint) (model.Job, error) {
	return m.registry.Get(id)
}

// NextScheduled reports the next trigger time and the jobs due then.
func (m *JobManager) NextScheduled() (time.Time, []uint, bool) {
	return m.scheduler.Next(time.Now())
}

// TriggerManualSync starts a run now. Its notifications skip the pending
// queue since the user is waiting for them.
func (m *JobManager) TriggerManualSync(id uint) error {
	return m.start(id, model.OriginManual)
}

func (m *JobManager) triggerScheduled(id uint) {
	if err := m.start(id, model.OriginScheduled); err != nil {
		logger.Log.Info("scheduled run not started",
			zap.Uint("id", id),
			zap.Error(err))
	}
}

func (m *JobManager) start(id uint, origin model.TriggerOrigin) error {
	job, err := m.registry.Get(id)
	if err != nil {
		return err
	}

	if err := m.admit(job, origin); err != nil {
		return err
	}

	m.runs.Add(1)
	go m.run(job, origin)
	return nil
}

// admit claims the run slot of job. A rejected trigger is reported and
// recorded as skipped.
func (m *JobManager) admit(job model.Job, origin model.TriggerOrigin) error {
	if !m.guard.TryStart(job.ID) {
		m.deliver(job, origin, notify.LevelInfo, alreadyRunningMessage)

		skipped := model.NewRun(job, origin)
		skipped.Status = model.RunSkipped
		skipped.ErrMsg = model.ErrAlreadyRunning.Error()
		skipped.FinishedAt = skipped.StartedAt
		m.record(skipped)

		return fmt.Errorf("%w: job %d", model.ErrAlreadyRunning, job.ID)
	}

	// A delete between the lookup and TryStart leaves a fresh slot for an id
	// that is gone.
	if !m.registry.Exists(job.ID) {
		m.guard.Forget(job.ID)
		return fmt.Errorf("%w: %d", model.ErrJobNotFound, job.ID)
	}

	return nil
}

func (m *JobManager) run(job model.Job, origin model.TriggerOrigin) {
	defer m.runs.Done()
	defer m.guard.Release(job.ID)

	run := model.NewRun(job, origin)
	logger.Log.Info("run started",
		zap.Uint("id", job.ID),
		zap.String("run", run.RunID),
		zap.String("origin", string(origin)))

	res := m.executor.Execute(m.ctx, job, func(ev model.Event) {
		ev.RunID = run.RunID

		switch ev.Type {
		case model.EventSyncStarted:
			m.deliver(job, origin, notify.LevelInfo,
				fmt.Sprintf("Sync started: %s to %s", job.SourcePath, job.DestPath))
		case model.EventProgress:
			m.guard.SetProgress(job.ID, ev.Percent)
		}

		m.events.PublishEvent(ev)
	})

	run.Files = res.Files
	run.Bytes = res.Copied
	run.FinishedAt = res.FinishedAt
	run.Status = model.RunSuccess
	if res.Err != nil {
		run.Status = model.RunFailed
		run.ErrMsg = res.Err.Error()
	}

	current, err := m.registry.Get(job.ID)
	if err != nil {
		logger.Log.Info("job removed during run, dropping completion notice",
			zap.Uint("id", job.ID),
			zap.String("run", run.RunID))
	} else {
		level, msg := completionMessage(job, res)
		m.deliver(current, origin, level, msg)
	}

	m.record(run)
}

func completionMessage(ran model.Job, res executor.Result) (notify.Level, string) {
	switch {
	case res.Err == nil:
		return notify.LevelInfo, fmt.Sprintf("Sync completed: %s to %s at %s",
			ran.SourcePath, ran.DestPath, res.FinishedAt.Format(model.TriggerLayout))
	case errors.Is(res.Err, model.ErrSourceNotFound):
		return notify.LevelError, fmt.Sprintf("Source folder does not exist: %s", ran.SourcePath)
	default:
		return notify.LevelError, fmt.Sprintf("Sync failed: %s to %s: %v",
			ran.SourcePath, ran.DestPath, res.Err)
	}
}

func (m *JobManager) deliver(job model.Job, origin model.TriggerOrigin, level notify.Level, msg string) {
	n := notify.Notification{
		JobID:   job.ID,
		Level:   level,
		Message: msg,
	}

	var outcome notify.Outcome
	if origin == model.OriginManual {
		outcome = m.sink.NotifyNow(n, job.NotificationsEnabled)
	} else {
		outcome = m.sink.Notify(n, job.NotificationsEnabled)
	}

	logger.Log.Debug("notification",
		zap.Uint("id", job.ID),
		zap.String("outcome", outcome.String()),
		zap.String("message", msg))
}

func (m *JobManager) record(run *model.Run) {
	if m.history == nil {
		return
	}
	if err := m.history.Save(run); err != nil {
		logger.Log.Warn("failed to save history",
			zap.Error(err))
	}
}

type nopPublisher struct{}

func (nopPublisher) PublishEvent(model.Event)                {}
func (nopPublisher) PublishNotification(notify.Notification) {}
