package daemon

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"dailysync/internal/executor"
	"dailysync/internal/model"
	"dailysync/internal/notify"
	"dailysync/internal/scheduler"
	"dailysync/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memSettings struct {
	mu    sync.Mutex
	saves [][]model.Job
}

func (s *memSettings) Save(jobs []model.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves = append(s.saves, jobs)
	return nil
}

func (s *memSettings) last() []model.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.saves) == 0 {
		return nil
	}
	return s.saves[len(s.saves)-1]
}

type memHistory struct {
	mu   sync.Mutex
	runs []model.Run
}

func (h *memHistory) Save(run *model.Run) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.runs = append(h.runs, *run)
	return nil
}

func (h *memHistory) all() []model.Run {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]model.Run(nil), h.runs...)
}

type memEvents struct {
	mu     sync.Mutex
	events []model.Event
	notes  []notify.Notification
}

func (e *memEvents) PublishEvent(ev model.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, ev)
}

func (e *memEvents) PublishNotification(n notify.Notification) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.notes = append(e.notes, n)
}

func (e *memEvents) messages() []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]string, 0, len(e.notes))
	for _, n := range e.notes {
		out = append(out, n.Message)
	}
	return out
}

type fixture struct {
	m        *JobManager
	settings *memSettings
	history  *memHistory
	events   *memEvents
}

func newFixture(t *testing.T, visible bool) *fixture {
	t.Helper()
	return newFixtureWith(t, visible, executor.Options{})
}

func newFixtureWith(t *testing.T, visible bool, exec executor.Options) *fixture {
	t.Helper()

	f := &fixture{
		settings: &memSettings{},
		history:  &memHistory{},
		events:   &memEvents{},
	}
	f.m = NewJobManager(Options{
		Executor:             exec,
		Scheduler:            scheduler.DefaultConfig(),
		NotificationsEnabled: true,
		Visible:              visible,
		Settings:             f.settings,
		History:              f.history,
		Events:               f.events,
	})
	t.Cleanup(func() {
		_ = f.m.Stop(context.Background())
	})
	return f
}

// gate holds every file copy until opened.
type gate struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
	calls   atomic.Int32
}

func newGate() *gate {
	return &gate{
		started: make(chan struct{}, 64),
		release: make(chan struct{}),
	}
}

func (g *gate) open() {
	g.once.Do(func() { close(g.release) })
}

func (g *gate) copy(ctx context.Context, src, dst string) (int64, error) {
	g.calls.Add(1)
	g.started <- struct{}{}

	select {
	case <-g.release:
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	return util.CopyFile(ctx, src, dst)
}

func (g *gate) waitStarted(t *testing.T) {
	t.Helper()
	select {
	case <-g.started:
	case <-time.After(5 * time.Second):
		t.Fatal("copy never started")
	}
}

func sourceTree(t *testing.T) (string, string) {
	t.Helper()

	root := t.TempDir()
	src := filepath.Join(root, "src")
	dst := filepath.Join(root, "dst")
	require.NoError(t, os.MkdirAll(filepath.Join(src, "sub"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "a.txt"), []byte("0123456789"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "sub", "b.txt"), []byte("abcdefghijklmnopqrst"), 0644))
	return src, dst
}

func TestAddJobPersistsSettings(t *testing.T) {
	f := newFixture(t, true)

	job, err := f.m.AddJob(model.Job{SourcePath: "/a", DestPath: "/b", TriggerTime: "07:30", NotificationsEnabled: true})
	require.NoError(t, err)
	assert.Equal(t, uint(1), job.ID)

	saved := f.settings.last()
	require.Len(t, saved, 1)
	assert.Equal(t, "07:30", saved[0].TriggerTime)

	views := f.m.QueryJobList()
	require.Len(t, views, 1)
	assert.False(t, views[0].Running)

	at, ids, ok := f.m.NextScheduled()
	require.True(t, ok)
	assert.Equal(t, []uint{1}, ids)
	assert.Equal(t, "07:30", at.Format(model.TriggerLayout))
}

func TestAddJobRejectsBadTime(t *testing.T) {
	f := newFixture(t, true)

	_, err := f.m.AddJob(model.Job{SourcePath: "/a", DestPath: "/b", TriggerTime: "7:30"})
	assert.ErrorIs(t, err, model.ErrInvalidTimeFormat)
	assert.Empty(t, f.m.QueryJobList())
}

func TestEditJobBadTimeKeepsJob(t *testing.T) {
	f := newFixture(t, true)
	job, err := f.m.AddJob(model.Job{SourcePath: "/a", DestPath: "/b", TriggerTime: "07:30"})
	require.NoError(t, err)

	_, err = f.m.EditJob(job.ID, "time", "25:00")
	assert.ErrorIs(t, err, model.ErrInvalidTimeFormat)

	got, err := f.m.GetJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, "07:30", got.TriggerTime)

	got, err = f.m.EditJob(job.ID, "dst", "/c")
	require.NoError(t, err)
	assert.Equal(t, "/c", got.DestPath)
}

func TestUnscheduleJob(t *testing.T) {
	f := newFixture(t, true)
	job, err := f.m.AddJob(model.Job{SourcePath: "/a", DestPath: "/b", TriggerTime: "07:30"})
	require.NoError(t, err)

	got, err := f.m.UnscheduleJob(job.ID)
	require.NoError(t, err)
	assert.False(t, got.Scheduled())

	_, _, ok := f.m.NextScheduled()
	assert.False(t, ok)
}

func TestManualSyncNotifiesWhileHidden(t *testing.T) {
	f := newFixture(t, false)
	src, dst := sourceTree(t)

	job, err := f.m.AddJob(model.Job{SourcePath: src, DestPath: dst, NotificationsEnabled: true})
	require.NoError(t, err)

	require.NoError(t, f.m.TriggerManualSync(job.ID))
	f.m.runs.Wait()

	data, err := os.ReadFile(filepath.Join(dst, "sub", "b.txt"))
	require.NoError(t, err)
	assert.Equal(t, "abcdefghijklmnopqrst", string(data))

	msgs := f.events.messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "Sync started: "+src+" to "+dst, msgs[0])
	assert.Contains(t, msgs[1], "Sync completed: "+src+" to "+dst+" at ")

	state, err := f.m.QueryProgress(job.ID)
	require.NoError(t, err)
	assert.False(t, state.Running)
	assert.Equal(t, 100, state.Progress)

	runs := f.history.all()
	require.Len(t, runs, 1)
	assert.Equal(t, model.RunSuccess, runs[0].Status)
	assert.Equal(t, model.OriginManual, runs[0].Origin)
	assert.Equal(t, 2, runs[0].Files)
	assert.Equal(t, int64(30), runs[0].Bytes)
}

func TestScheduledSyncQueuesWhileHidden(t *testing.T) {
	f := newFixture(t, false)
	src, dst := sourceTree(t)

	job, err := f.m.AddJob(model.Job{SourcePath: src, DestPath: dst, TriggerTime: "07:30", NotificationsEnabled: true})
	require.NoError(t, err)

	f.m.triggerScheduled(job.ID)
	f.m.runs.Wait()

	assert.Empty(t, f.events.messages())
	assert.Len(t, f.m.sink.Pending(), 2)

	flushed := f.m.Show()
	require.Len(t, flushed, 2)
	assert.Contains(t, flushed[0].Message, "Sync started")
	assert.Contains(t, flushed[1].Message, "Sync completed")
	assert.Len(t, f.m.Notifications(), 2)

	assert.Empty(t, f.m.Show())
}

func TestMissingSourceReportsError(t *testing.T) {
	f := newFixture(t, true)
	missing := filepath.Join(t.TempDir(), "gone")
	dst := filepath.Join(t.TempDir(), "dst")

	job, err := f.m.AddJob(model.Job{SourcePath: missing, DestPath: dst, NotificationsEnabled: true})
	require.NoError(t, err)

	require.NoError(t, f.m.TriggerManualSync(job.ID))
	f.m.runs.Wait()

	notes := f.m.Notifications()
	require.NotEmpty(t, notes)
	last := notes[len(notes)-1]
	assert.Equal(t, notify.LevelError, last.Level)
	assert.Equal(t, "Source folder does not exist: "+missing, last.Message)

	_, err = os.Stat(dst)
	assert.True(t, os.IsNotExist(err))

	runs := f.history.all()
	require.Len(t, runs, 1)
	assert.Equal(t, model.RunFailed, runs[0].Status)
}

func TestSyncRejectedWhileRunning(t *testing.T) {
	f := newFixture(t, true)
	job, err := f.m.AddJob(model.Job{SourcePath: "/a", DestPath: "/b", NotificationsEnabled: true})
	require.NoError(t, err)

	require.True(t, f.m.guard.TryStart(job.ID))

	err = f.m.TriggerManualSync(job.ID)
	assert.ErrorIs(t, err, model.ErrAlreadyRunning)
	assert.Equal(t, []string{alreadyRunningMessage}, f.events.messages())

	runs := f.history.all()
	require.Len(t, runs, 1)
	assert.Equal(t, model.RunSkipped, runs[0].Status)

	f.m.guard.Release(job.ID)
}

func TestSyncUnknownJob(t *testing.T) {
	f := newFixture(t, true)
	assert.ErrorIs(t, f.m.TriggerManualSync(42), model.ErrJobNotFound)
}

func TestJobNotificationsToggle(t *testing.T) {
	f := newFixture(t, true)
	src, dst := sourceTree(t)

	job, err := f.m.AddJob(model.Job{SourcePath: src, DestPath: dst, NotificationsEnabled: true})
	require.NoError(t, err)

	got, err := f.m.ToggleJobNotifications(job.ID)
	require.NoError(t, err)
	assert.False(t, got.NotificationsEnabled)

	require.NoError(t, f.m.TriggerManualSync(job.ID))
	f.m.runs.Wait()
	assert.Empty(t, f.events.messages())
}

func TestGlobalToggleCascades(t *testing.T) {
	f := newFixture(t, true)
	for range 3 {
		_, err := f.m.AddJob(model.Job{SourcePath: "/a", DestPath: "/b", NotificationsEnabled: true})
		require.NoError(t, err)
	}

	assert.False(t, f.m.ToggleGlobalNotifications())
	for _, v := range f.m.QueryJobList() {
		assert.False(t, v.NotificationsEnabled)
	}
	assert.False(t, f.m.GlobalNotifications())

	assert.True(t, f.m.ToggleGlobalNotifications())
	for _, v := range f.m.QueryJobList() {
		assert.True(t, v.NotificationsEnabled)
	}
}

func TestDeleteJob(t *testing.T) {
	f := newFixture(t, true)
	job, err := f.m.AddJob(model.Job{SourcePath: "/a", DestPath: "/b", TriggerTime: "07:30"})
	require.NoError(t, err)

	require.NoError(t, f.m.DeleteJob(job.ID))
	assert.ErrorIs(t, f.m.DeleteJob(job.ID), model.ErrJobNotFound)

	_, err = f.m.QueryProgress(job.ID)
	assert.ErrorIs(t, err, model.ErrJobNotFound)
	assert.Empty(t, f.settings.last())

	_, _, ok := f.m.NextScheduled()
	assert.False(t, ok)
}

func TestLoadReplacesJobs(t *testing.T) {
	f := newFixture(t, true)
	_, err := f.m.AddJob(model.Job{SourcePath: "/old", DestPath: "/b"})
	require.NoError(t, err)

	f.m.Load([]model.Job{
		{SourcePath: "/x", DestPath: "/y", TriggerTime: "08:00", NotificationsEnabled: true},
		{SourcePath: "/p", DestPath: "/q", TriggerTime: "bogus", NotificationsEnabled: true},
	})

	views := f.m.QueryJobList()
	require.Len(t, views, 2)
	assert.Equal(t, "/x", views[0].SourcePath)
	assert.Equal(t, "", views[1].TriggerTime)
}

func TestOverlappingTriggersCopyOnce(t *testing.T) {
	g := newGate()
	f := newFixtureWith(t, true, executor.Options{Workers: 1, CopyFile: g.copy})
	t.Cleanup(g.open)
	src, dst := sourceTree(t)

	job, err := f.m.AddJob(model.Job{SourcePath: src, DestPath: dst, TriggerTime: "07:30", NotificationsEnabled: true})
	require.NoError(t, err)

	require.NoError(t, f.m.TriggerManualSync(job.ID))
	g.waitStarted(t)

	assert.ErrorIs(t, f.m.TriggerManualSync(job.ID), model.ErrAlreadyRunning)
	f.m.triggerScheduled(job.ID)

	g.open()
	f.m.runs.Wait()

	assert.Equal(t, int32(2), g.calls.Load())

	var success, skipped int
	for _, r := range f.history.all() {
		switch r.Status {
		case model.RunSuccess:
			success++
		case model.RunSkipped:
			skipped++
		}
	}
	assert.Equal(t, 1, success)
	assert.Equal(t, 2, skipped)

	data, err := os.ReadFile(filepath.Join(dst, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "0123456789", string(data))
}

func TestReloadKeepsRunningJobGuarded(t *testing.T) {
	g := newGate()
	f := newFixtureWith(t, true, executor.Options{Workers: 1, CopyFile: g.copy})
	t.Cleanup(g.open)
	src, dst := sourceTree(t)

	job, err := f.m.AddJob(model.Job{SourcePath: src, DestPath: dst, TriggerTime: "07:30", NotificationsEnabled: true})
	require.NoError(t, err)
	other, err := f.m.AddJob(model.Job{SourcePath: "/other", DestPath: "/elsewhere"})
	require.NoError(t, err)

	require.NoError(t, f.m.TriggerManualSync(job.ID))
	g.waitStarted(t)

	f.m.Load([]model.Job{
		{SourcePath: src, DestPath: dst, TriggerTime: "07:45", NotificationsEnabled: true},
	})

	views := f.m.QueryJobList()
	require.Len(t, views, 1)
	assert.Equal(t, job.ID, views[0].ID)
	assert.Equal(t, "07:45", views[0].TriggerTime)
	assert.True(t, views[0].Running)

	assert.ErrorIs(t, f.m.TriggerManualSync(job.ID), model.ErrAlreadyRunning)
	assert.False(t, f.m.guard.Running(other.ID))

	g.open()
	f.m.runs.Wait()

	assert.Equal(t, int32(2), g.calls.Load())
	msgs := f.events.messages()
	require.NotEmpty(t, msgs)
	assert.Contains(t, msgs[len(msgs)-1], "Sync completed: "+src+" to "+dst)
}

func TestAdmitAfterConcurrentDelete(t *testing.T) {
	f := newFixture(t, true)
	job, err := f.m.AddJob(model.Job{SourcePath: "/a", DestPath: "/b"})
	require.NoError(t, err)

	require.NoError(t, f.m.DeleteJob(job.ID))

	err = f.m.admit(job, model.OriginManual)
	assert.ErrorIs(t, err, model.ErrJobNotFound)
	assert.False(t, f.m.guard.Running(job.ID))
	assert.Equal(t, model.ExecutionState{JobID: job.ID}, f.m.guard.State(job.ID))
	assert.Empty(t, f.history.all())
}
