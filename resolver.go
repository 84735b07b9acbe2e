// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package sched

import "sync/atomic"

// resolver is the one-shot completion handle for a suspended binding.
// It enforces affine semantics: a binding's start must call resolve
// exactly once, and a second call panics. The used counter is atomic
// because host completions (timer callbacks, I/O goroutines) may fire
// from arbitrary goroutines.
type resolver struct {
	used atomic.Uintptr
	s    *Scheduler
	p    *process
}

// resolve completes the binding with the next task node, re-enqueues
// the owning process, and drains the scheduler if it is idle. If the
// process was killed before resolution, the completion is dropped
// silently; the kill already ran the cancellation thunk.
//
// Panics if called twice — a binding start that double-resolves is a
// programming defect, mirroring the at-most-once resumption contract.
func (r *resolver) resolve(next node) {
	if r.used.Add(1) != 1 {
		panic("sched: binding resolved twice")
	}
	s := r.s
	s.mu.Lock()
	p := r.p
	if p.state == stateDead {
		s.mu.Unlock()
		return
	}
	p.root = next
	p.cancel = nil
	s.enqueueLocked(p)
	s.scheduleLocked()
	s.mu.Unlock()
}
