// label.go provides a way of generating unique assembly labels for jumps. Every function is generated with its
// own LabelAllocator, scoped by the function name, so functions can be generated in parallel without sharing a
// counter.

package util

import (
	"fmt"
	"sort"
	"sync"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Label is an opaque branch target name.
type Label string

// LabelAllocator hands out labels that are unique within one generation run. Labels carry the scope prefix of
// the allocator, thus allocators with distinct scopes never produce equal labels.
type LabelAllocator struct {
	mx     sync.Mutex
	prefix string
	next   int
	live   map[Label]struct{}
}

// ---------------------
// ----- functions -----
// ---------------------

// NewLabelAllocator returns a LabelAllocator whose labels are prefixed by scope.
func NewLabelAllocator(scope string) *LabelAllocator {
	return &LabelAllocator{
		prefix: fmt.Sprintf(".L%s_", scope),
		live:   make(map[Label]struct{}),
	}
}

// Generate returns a fresh label. The label is live until it is passed to Release.
func (a *LabelAllocator) Generate() Label {
	a.mx.Lock()
	defer a.mx.Unlock()
	l := Label(fmt.Sprintf("%s%03d", a.prefix, a.next))
	a.next++
	a.live[l] = struct{}{}
	return l
}

// Release marks l as no longer referenced. Released labels are never handed out again.
func (a *LabelAllocator) Release(l Label) {
	a.mx.Lock()
	defer a.mx.Unlock()
	delete(a.live, l)
}

// Live returns the labels generated but not yet released, sorted.
func (a *LabelAllocator) Live() []Label {
	a.mx.Lock()
	defer a.mx.Unlock()
	ls := make([]Label, 0, len(a.live))
	for l := range a.live {
		ls = append(ls, l)
	}
	sort.Slice(ls, func(i, j int) bool { return ls[i] < ls[j] })
	return ls
}

// Count returns the number of labels generated since the allocator was created or last reset.
func (a *LabelAllocator) Count() int {
	a.mx.Lock()
	defer a.mx.Unlock()
	return a.next
}

// Reset restarts numbering and forgets live labels. Only independent runs, such as separate test cases, may
// reset an allocator.
func (a *LabelAllocator) Reset() {
	a.mx.Lock()
	defer a.mx.Unlock()
	a.next = 0
	a.live = make(map[Label]struct{})
}
