package reactive

import (
	"slices"

	mapset "github.com/deckarep/golang-set/v2"
)

type OpType int

const (
	OpGet OpType = iota
	OpHas
	OpIterate
	OpSet
	OpAdd
	OpDelete
)

func (o OpType) String() string {
	switch o {
	case OpGet:
		return "get"
	case OpHas:
		return "has"
	case OpIterate:
		return "iterate"
	case OpSet:
		return "set"
	case OpAdd:
		return "add"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// DebuggerEvent describes a single track or trigger for OnTrack/OnTrigger hooks.
type DebuggerEvent struct {
	Effect   *Effect
	Target   any
	Op       OpType
	Key      any
	NewValue any
	OldValue any
}

type dep = mapset.Set[*Effect]

func newDep() dep {
	return mapset.NewThreadUnsafeSet[*Effect]()
}

// System tracks which effects read which reactive values. It is not safe for
// concurrent use; keep every reactive read and write on one goroutine.
type System struct {
	stack       []*Effect
	shouldTrack bool
	trackStack  []bool
	nextID      uint64

	batchDepth int
	queued     []*Effect
}

func NewSystem() *System {
	return &System{shouldTrack: true}
}

func (s *System) activeEffect() *Effect {
	if len(s.stack) == 0 {
		return nil
	}
	return s.stack[len(s.stack)-1]
}

func (s *System) PauseTracking() {
	s.trackStack = append(s.trackStack, s.shouldTrack)
	s.shouldTrack = false
}

func (s *System) enableTracking() {
	s.trackStack = append(s.trackStack, s.shouldTrack)
	s.shouldTrack = true
}

func (s *System) ResumeTracking() {
	last := len(s.trackStack) - 1
	if last < 0 {
		s.shouldTrack = true
		return
	}
	s.shouldTrack = s.trackStack[last]
	s.trackStack = s.trackStack[:last]
}

// Untrack runs fn without recording any dependency.
func (s *System) Untrack(fn func()) {
	s.PauseTracking()
	defer s.ResumeTracking()
	fn()
}

func (s *System) StartBatch() {
	s.batchDepth++
}

// EndBatch dispatches the effects triggered since the outermost StartBatch.
func (s *System) EndBatch() {
	s.batchDepth--
	if s.batchDepth > 0 {
		return
	}
	for len(s.queued) > 0 {
		e := s.queued[0]
		s.queued[0] = nil
		s.queued = s.queued[1:]
		s.dispatch(e)
	}
}

func (s *System) Batch(fn func()) {
	s.StartBatch()
	defer s.EndBatch()
	fn()
}

func (s *System) track(target any, op OpType, key any, d dep) {
	e := s.activeEffect()
	if !s.shouldTrack || e == nil {
		return
	}
	if d.Add(e) {
		e.deps = append(e.deps, d)
		if e.onTrack != nil {
			e.onTrack(DebuggerEvent{Effect: e, Target: target, Op: op, Key: key})
		}
	}
}

func (s *System) trigger(target any, op OpType, key, newValue, oldValue any, deps ...dep) {
	active := s.activeEffect()
	collected := mapset.NewThreadUnsafeSet[*Effect]()
	for _, d := range deps {
		if d == nil {
			continue
		}
		d.Each(func(e *Effect) bool {
			if e != active || e.allowRecurse {
				collected.Add(e)
			}
			return false
		})
	}
	if collected.Cardinality() == 0 {
		return
	}

	// Creation order keeps dispatch deterministic.
	effects := collected.ToSlice()
	slices.SortFunc(effects, func(a, b *Effect) int {
		switch {
		case a.id < b.id:
			return -1
		case a.id > b.id:
			return 1
		}
		return 0
	})

	for _, e := range effects {
		if e.onTrigger != nil {
			e.onTrigger(DebuggerEvent{
				Effect:   e,
				Target:   target,
				Op:       op,
				Key:      key,
				NewValue: newValue,
				OldValue: oldValue,
			})
		}
		if s.batchDepth > 0 {
			if !slices.Contains(s.queued, e) {
				s.queued = append(s.queued, e)
			}
			continue
		}
		s.dispatch(e)
	}
}

func (s *System) dispatch(e *Effect) {
	if e.scheduler != nil {
		e.scheduler()
		return
	}
	e.Run()
}
