package registry

import (
	"fmt"
	"slices"
	"strconv"
	"sync"

	"dailysync/internal/model"
)

// Patch describes an in-place edit of a job. Nil fields are left untouched.
type Patch struct {
	SourcePath           *string
	DestPath             *string
	TriggerTime          *string
	NotificationsEnabled *bool
}

// PatchFromField builds a Patch from a single named field, as sent by the
// edit command.
func PatchFromField(field, value string) (Patch, error) {
	switch field {
	case "src", "source", "source_path":
		return Patch{SourcePath: &value}, nil
	case "dst", "dest", "dest_path":
		return Patch{DestPath: &value}, nil
	case "time", "trigger_time":
		return Patch{TriggerTime: &value}, nil
	case "notifications", "notifications_enabled":
		enabled, err := strconv.ParseBool(value)
		if err != nil {
			return Patch{}, fmt.Errorf("invalid notifications value %q: %w", value, err)
		}
		return Patch{NotificationsEnabled: &enabled}, nil
	default:
		return Patch{}, fmt.Errorf("unknown job field %q", field)
	}
}

// Registry holds the job definitions in insertion order. Ids are assigned on
// add and never reused for the lifetime of the registry.
type Registry struct {
	mu        sync.RWMutex
	notifyMu  sync.Mutex
	nextID    uint
	order     []uint
	jobs      map[uint]model.Job
	listeners []func([]model.Job)
}

func New() *Registry {
	return &Registry{
		nextID: 1,
		jobs:   make(map[uint]model.Job),
	}
}

// OnChange registers fn to receive the full job list after every mutation.
// Listeners run outside the registry lock, in registration order.
func (r *Registry) OnChange(fn func([]model.Job)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, fn)
}

func (r *Registry) Add(job model.Job) (model.Job, error) {
	trigger, err := model.ParseTriggerTime(job.TriggerTime)
	if err != nil {
		return model.Job{}, err
	}
	job.TriggerTime = trigger

	r.mu.Lock()
	job.ID = r.insertLocked(job)
	r.mu.Unlock()

	r.notify()
	return job, nil
}

func (r *Registry) Get(id uint) (model.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.jobs[id]
	if !ok {
		return model.Job{}, fmt.Errorf("%w: %d", model.ErrJobNotFound, id)
	}
	return job, nil
}

func (r *Registry) Exists(id uint) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.jobs[id]
	return ok
}

// Update applies p to the job. An invalid trigger time rejects the whole
// patch and leaves the job unchanged.
func (r *Registry) Update(id uint, p Patch) (model.Job, error) {
	var trigger string
	if p.TriggerTime != nil {
		t, err := model.ParseTriggerTime(*p.TriggerTime)
		if err != nil {
			return model.Job{}, err
		}
		trigger = t
	}

	r.mu.Lock()
	job, ok := r.jobs[id]
	if !ok {
		r.mu.Unlock()
		return model.Job{}, fmt.Errorf("%w: %d", model.ErrJobNotFound, id)
	}

	if p.SourcePath != nil {
		job.SourcePath = *p.SourcePath
	}
	if p.DestPath != nil {
		job.DestPath = *p.DestPath
	}
	if p.TriggerTime != nil {
		job.TriggerTime = trigger
	}
	if p.NotificationsEnabled != nil {
		job.NotificationsEnabled = *p.NotificationsEnabled
	}
	r.jobs[id] = job
	r.mu.Unlock()

	r.notify()
	return job, nil
}

// Remove forgets the job. Runs already in flight are not interrupted.
func (r *Registry) Remove(id uint) error {
	r.mu.Lock()
	if _, ok := r.jobs[id]; !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %d", model.ErrJobNotFound, id)
	}

	delete(r.jobs, id)
	r.order = slices.DeleteFunc(r.order, func(v uint) bool { return v == id })
	r.mu.Unlock()

	r.notify()
	return nil
}

func (r *Registry) List() []model.Job {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.listLocked()
}

// SetAllNotifications sets the per-job notification flag on every job.
func (r *Registry) SetAllNotifications(enabled bool) {
	r.mu.Lock()
	for id, job := range r.jobs {
		job.NotificationsEnabled = enabled
		r.jobs[id] = job
	}
	r.mu.Unlock()

	r.notify()
}

type pathPair struct {
	src, dst string
}

// Replace makes jobs the new content of the registry, in order. A record
// whose source and destination match an existing job keeps that job's id, so
// runs and schedule state follow it; other records get fresh ids. Jobs whose
// trigger time is invalid are loaded without a trigger and their indexes are
// returned. Ids of jobs that are no longer present are returned as removed.
func (r *Registry) Replace(jobs []model.Job) ([]model.Job, []int, []uint) {
	var invalid []int

	r.mu.Lock()
	reusable := make(map[pathPair][]uint, len(r.order))
	for _, id := range r.order {
		j := r.jobs[id]
		k := pathPair{j.SourcePath, j.DestPath}
		reusable[k] = append(reusable[k], id)
	}

	prev := r.jobs
	r.jobs = make(map[uint]model.Job, len(jobs))
	r.order = make([]uint, 0, len(jobs))

	for i, job := range jobs {
		trigger, err := model.ParseTriggerTime(job.TriggerTime)
		if err != nil {
			invalid = append(invalid, i)
		}
		job.TriggerTime = trigger

		k := pathPair{job.SourcePath, job.DestPath}
		if ids := reusable[k]; len(ids) > 0 {
			job.ID = ids[0]
			reusable[k] = ids[1:]
			r.jobs[job.ID] = job
			r.order = append(r.order, job.ID)
			continue
		}
		r.insertLocked(job)
	}

	var removed []uint
	for id := range prev {
		if _, ok := r.jobs[id]; !ok {
			removed = append(removed, id)
		}
	}
	slices.Sort(removed)

	stored := r.listLocked()
	r.mu.Unlock()

	r.notify()
	return stored, invalid, removed
}

func (r *Registry) insertLocked(job model.Job) uint {
	job.ID = r.nextID
	r.nextID++

	r.jobs[job.ID] = job
	r.order = append(r.order, job.ID)
	return job.ID
}

func (r *Registry) listLocked() []model.Job {
	jobs := make([]model.Job, 0, len(r.order))
	for _, id := range r.order {
		jobs = append(jobs, r.jobs[id])
	}
	return jobs
}

func (r *Registry) notify() {
	r.notifyMu.Lock()
	defer r.notifyMu.Unlock()

	r.mu.RLock()
	jobs := r.listLocked()
	listeners := slices.Clone(r.listeners)
	r.mu.RUnlock()

	for _, fn := range listeners {
		fn(jobs)
	}
}
