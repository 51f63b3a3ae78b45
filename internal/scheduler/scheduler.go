package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"dailysync/internal/logger"
	"dailysync/internal/model"

	"go.uber.org/zap"
)

// TriggerFunc starts a run for a due job. It must not block for the duration
// of the run.
type TriggerFunc func(jobID uint)

type Config struct {
	Interval time.Duration
	Now      func() time.Time
}

func DefaultConfig() Config {
	return Config{
		Interval: time.Second,
		Now:      time.Now,
	}
}

// Scheduler fires jobs whose daily trigger time matches the current minute.
type Scheduler struct {
	interval time.Duration
	now      func() time.Time
	trigger  TriggerFunc

	mu        sync.Mutex
	table     map[string][]uint
	lastFired map[uint]string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(cfg Config, trigger TriggerFunc) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Scheduler{
		interval:  cfg.Interval,
		now:       cfg.Now,
		trigger:   trigger,
		table:     make(map[string][]uint),
		lastFired: make(map[uint]string),
	}
}

// Rebuild derives the trigger table from jobs, replacing the previous one.
// Jobs without a trigger time, or with one that fails to parse, are left out.
func (s *Scheduler) Rebuild(jobs []model.Job) {
	table := make(map[string][]uint)
	present := make(map[uint]bool, len(jobs))

	for _, job := range jobs {
		present[job.ID] = true

		trigger, err := model.ParseTriggerTime(job.TriggerTime)
		if err != nil || trigger == "" {
			continue
		}
		table[trigger] = append(table[trigger], job.ID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.table = table
	for id := range s.lastFired {
		if !present[id] {
			delete(s.lastFired, id)
		}
	}

	logger.Log.Debug("schedule rebuilt",
		zap.Int("jobs", len(jobs)),
		zap.Int("slots", len(table)))
}

// Table returns a copy of the trigger table.
func (s *Scheduler) Table() map[string][]uint {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string][]uint, len(s.table))
	for k, v := range s.table {
		out[k] = append([]uint(nil), v...)
	}
	return out
}

// Next returns the earliest upcoming trigger after now, if any job is scheduled.
func (s *Scheduler) Next(now time.Time) (time.Time, []uint, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.table) == 0 {
		return time.Time{}, nil, false
	}

	keys := make([]string, 0, len(s.table))
	for k := range s.table {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var best time.Time
	var ids []uint
	for _, k := range keys {
		at := nextOccurrence(now, k)
		if best.IsZero() || at.Before(best) {
			best = at
			ids = append([]uint(nil), s.table[k]...)
		}
	}
	return best, ids, true
}

func (s *Scheduler) Start(ctx context.Context) {
	s.ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go s.run()

	logger.Log.Info("scheduler started",
		zap.Duration("interval", s.interval))
}

func (s *Scheduler) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	s.wg.Wait()

	logger.Log.Info("scheduler stopped")
}

func (s *Scheduler) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.tick(s.now())
		}
	}
}

// tick fires every job scheduled for the minute of now that has not already
// fired in that same minute.
func (s *Scheduler) tick(now time.Time) []uint {
	hhmm := now.Format(model.TriggerLayout)
	minute := now.Format("2006-01-02 15:04")

	s.mu.Lock()
	var due []uint
	for _, id := range s.table[hhmm] {
		if s.lastFired[id] == minute {
			continue
		}
		s.lastFired[id] = minute
		due = append(due, id)
	}
	s.mu.Unlock()

	for _, id := range due {
		s.fire(id)
	}
	return due
}

func (s *Scheduler) fire(id uint) {
	defer func() {
		if r := recover(); r != nil {
			logger.Log.Error("scheduled trigger panicked",
				zap.Uint("id", id),
				zap.String("panic", fmt.Sprint(r)))
		}
	}()

	logger.Log.Info("job due",
		zap.Uint("id", id))
	s.trigger(id)
}

func nextOccurrence(now time.Time, hhmm string) time.Time {
	t, err := time.Parse(model.TriggerLayout, hhmm)
	if err != nil {
		return time.Time{}
	}

	at := time.Date(now.Year(), now.Month(), now.Day(), t.Hour(), t.Minute(), 0, 0, now.Location())
	if !at.After(now) {
		at = at.AddDate(0, 0, 1)
	}
	return at
}
