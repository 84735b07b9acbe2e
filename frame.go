// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package sched

import "sync"

// Continuation frames replace host call-stack recursion with an
// explicit singly linked stack on the heap. Descending through
// AndThen/OnError pushes frames; a terminal Succeed/Fail pops frames,
// skipping those whose trigger does not match the terminal tag. This
// is what makes arbitrarily long combinator chains safe: unrolling a
// chain never consumes host stack.

// trigger selects which terminal tag fires a frame.
type trigger uint8

const (
	triggerSucceed trigger = iota
	triggerFail
)

// frame is one link of the continuation stack: a pending AndThen or
// OnError handler plus the rest of the stack.
type frame struct {
	trigger trigger
	cont    func(Erased) node
	next    *frame
}

// Frames are single-use: pushed and popped by exactly one interpreter,
// so they can be pooled. Release zeroes all fields; holding a released
// frame dereferences nil.
var framePool = sync.Pool{New: func() any { return new(frame) }}

func acquireFrame(tr trigger, cont func(Erased) node, next *frame) *frame {
	f := framePool.Get().(*frame)
	f.trigger = tr
	f.cont = cont
	f.next = next
	return f
}

func releaseFrame(f *frame) {
	f.cont = nil
	f.next = nil
	framePool.Put(f)
}

// releaseStack returns an entire frame stack to the pool.
// Used when a process terminates or is killed with frames outstanding.
func releaseStack(f *frame) {
	for f != nil {
		next := f.next
		releaseFrame(f)
		f = next
	}
}
