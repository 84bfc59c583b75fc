package watch

import (
	"slices"
	"sync/atomic"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/delaneyj/tickwatch/diag"
	"github.com/delaneyj/tickwatch/reactive"
)

// Owner is the consumer a watcher belongs to.
type Owner interface {
	diag.Owner
	UID() int
	IsMounted() bool
	IsUnmounted() bool
	RecordEffect(e *reactive.Effect)
	RemoveEffect(e *reactive.Effect)
	// Boundary may be nil.
	Boundary() *Boundary
}

var nextUID atomic.Int64

// Instance is a minimal Owner with a mount lifecycle.
type Instance struct {
	uid       int
	name      string
	mounted   bool
	unmounted bool
	effects   mapset.Set[*reactive.Effect]
	boundary  *Boundary
}

var _ Owner = (*Instance)(nil)

func NewInstance(name string) *Instance {
	return &Instance{
		uid:     int(nextUID.Add(1)),
		name:    name,
		effects: mapset.NewThreadUnsafeSet[*reactive.Effect](),
	}
}

func (i *Instance) Name() string      { return i.name }
func (i *Instance) UID() int          { return i.uid }
func (i *Instance) IsMounted() bool   { return i.mounted }
func (i *Instance) IsUnmounted() bool { return i.unmounted }

func (i *Instance) Mount() {
	i.mounted = true
}

// Unmount stops every effect recorded on the instance, oldest first.
func (i *Instance) Unmount() {
	effects := i.effects.ToSlice()
	slices.SortFunc(effects, func(a, b *reactive.Effect) int {
		switch {
		case a.ID() < b.ID():
			return -1
		case a.ID() > b.ID():
			return 1
		}
		return 0
	})
	for _, e := range effects {
		e.Stop()
	}
	i.effects.Clear()
	i.unmounted = true
}

func (i *Instance) RecordEffect(e *reactive.Effect) {
	i.effects.Add(e)
}

func (i *Instance) RemoveEffect(e *reactive.Effect) {
	i.effects.Remove(e)
}

func (i *Instance) EffectCount() int {
	return i.effects.Cardinality()
}

func (i *Instance) SetBoundary(b *Boundary) {
	i.boundary = b
}

func (i *Instance) Boundary() *Boundary {
	return i.boundary
}
