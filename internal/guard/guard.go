package guard

import (
	"sync"
	"sync/atomic"

	"dailysync/internal/model"
)

type slot struct {
	running  atomic.Bool
	progress atomic.Int32
}

// Guard admits at most one run per job id. Slots are created lazily on the
// first attempt and hold the last progress value after a run ends. The map
// lock only guards slot lookup; admission itself is a per-slot CAS so
// unrelated jobs never contend.
type Guard struct {
	mu    sync.RWMutex
	slots map[uint]*slot
}

func New() *Guard {
	return &Guard{slots: make(map[uint]*slot)}
}

// TryStart claims the run slot for id. It returns false when a run for id is
// already in progress.
func (g *Guard) TryStart(id uint) bool {
	s := g.slotFor(id)
	if !s.running.CompareAndSwap(false, true) {
		return false
	}
	s.progress.Store(0)
	return true
}

// Release frees the slot of id. Releasing a forgotten id is a no-op.
func (g *Guard) Release(id uint) {
	if s := g.lookup(id); s != nil {
		s.running.Store(false)
	}
}

// SetProgress records pct for id unless the job has been forgotten. Lower
// values than the current one are ignored while a run is active.
func (g *Guard) SetProgress(id uint, pct int) {
	s := g.lookup(id)
	if s == nil {
		return
	}

	for {
		cur := s.progress.Load()
		if int32(pct) <= cur {
			return
		}
		if s.progress.CompareAndSwap(cur, int32(pct)) {
			return
		}
	}
}

// Forget drops all state for id. A run still in flight keeps going but its
// later updates are discarded.
func (g *Guard) Forget(id uint) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.slots, id)
}

func (g *Guard) State(id uint) model.ExecutionState {
	st := model.ExecutionState{JobID: id}
	if s := g.lookup(id); s != nil {
		st.Running = s.running.Load()
		st.Progress = int(s.progress.Load())
	}
	return st
}

func (g *Guard) Running(id uint) bool {
	s := g.lookup(id)
	return s != nil && s.running.Load()
}

func (g *Guard) lookup(id uint) *slot {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.slots[id]
}

func (g *Guard) slotFor(id uint) *slot {
	if s := g.lookup(id); s != nil {
		return s
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	s, ok := g.slots[id]
	if !ok {
		s = &slot{}
		g.slots[id] = s
	}
	return s
}
