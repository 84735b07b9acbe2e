// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package sched

import (
	"sync"

	"go.uber.org/zap"
)

// Scheduler owns a process table and a ready queue and drives processes
// to a fixed point: each drain sweeps the queue until it is empty,
// including processes enqueued mid-drain. Scheduling is cooperative and
// logically single-threaded — exactly one process is stepped at a time,
// guarded by a working token, even when host completions arrive from
// other goroutines.
//
// The scheduler is an explicit object rather than ambient package
// state; independent schedulers do not share any state.
type Scheduler struct {
	mu      sync.Mutex
	working bool
	queue   []*process
	procs   map[ProcessID]*process
	nextID  ProcessID
	logger  *zap.Logger
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithLogger sets the logger used for debug-level scheduling traces.
// The default is a no-op logger.
func WithLogger(l *zap.Logger) SchedulerOption {
	return func(s *Scheduler) { s.logger = l }
}

// NewScheduler creates an empty scheduler with no processes.
func NewScheduler(opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		procs:  make(map[ProcessID]*process),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Spawn allocates a new process executing t and returns its id.
// If a drain is active, the process is enqueued and runs within the
// current drain's sweep to fixed point; otherwise a drain starts
// immediately on the calling goroutine.
func Spawn[E, V any](s *Scheduler, t Task[E, V]) ProcessID {
	return s.spawn(t.n)
}

func (s *Scheduler) spawn(root node) ProcessID {
	s.mu.Lock()
	s.nextID++
	p := &process{id: s.nextID, root: root}
	s.procs[p.id] = p
	s.logger.Debug("spawn", zap.Uint64("pid", uint64(p.id)))
	s.enqueueLocked(p)
	s.scheduleLocked()
	s.mu.Unlock()
	return p.id
}

// Send appends msg to the target process's mailbox. If the process is
// suspended on a Receive, it is re-enqueued; otherwise the message
// waits in FIFO order. Sending to a finished or killed process is a
// no-op.
func (s *Scheduler) Send(id ProcessID, msg Erased) {
	s.mu.Lock()
	p, ok := s.procs[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	p.mailbox = append(p.mailbox, msg)
	if p.state == stateBlockedReceive {
		s.enqueueLocked(p)
		s.scheduleLocked()
	}
	s.mu.Unlock()
}

// Kill terminates the process with the given id. If the process is
// suspended on a Binding, its cancellation thunk is invoked exactly
// once. Kill is idempotent: killing a finished, killed, or unknown
// process is a no-op.
//
// Kill is non-transitive: processes spawned by the killed process keep
// running, except where a combinator such as [Concurrent] explicitly
// wires sibling cancellation. A kill takes effect before any
// already-enqueued resume for the process: the terminal state is
// observed by the drain loop, which then skips the process.
func (s *Scheduler) Kill(id ProcessID) {
	s.mu.Lock()
	p, ok := s.procs[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	cancel := p.cancel
	p.cancel = nil
	p.root = nil
	releaseStack(p.stack)
	p.stack = nil
	p.mailbox = nil
	p.state = stateDead
	delete(s.procs, id)
	s.logger.Debug("kill", zap.Uint64("pid", uint64(id)))
	s.mu.Unlock()
	// Run the thunk outside the lock: cancellation may call back into
	// the scheduler (Concurrent's thunk kills its children).
	if cancel != nil {
		cancel()
	}
}

// Alive reports whether the process with the given id has neither
// finished nor been killed.
func (s *Scheduler) Alive(id ProcessID) bool {
	s.mu.Lock()
	_, ok := s.procs[id]
	s.mu.Unlock()
	return ok
}

// batch runs fn while holding the working token, so that every Spawn
// and Send inside fn only enqueues, then drains to a fixed point. This
// gives callers breadth-first delivery: all enqueues land before any
// process is stepped. If a drain is already active, fn's enqueues join
// the current sweep.
func (s *Scheduler) batch(fn func()) {
	s.mu.Lock()
	if s.working {
		s.mu.Unlock()
		fn()
		return
	}
	s.working = true
	s.mu.Unlock()
	fn()
	s.mu.Lock()
	s.drainLocked()
	s.mu.Unlock()
}

// enqueueLocked adds p to the ready queue. A process is in the queue at
// most once: duplicate requests are deduplicated by the enqueued flag,
// and dead processes are never enqueued.
func (s *Scheduler) enqueueLocked(p *process) {
	if p.enqueued || p.state == stateDead {
		return
	}
	p.enqueued = true
	p.state = stateReady
	s.queue = append(s.queue, p)
}

// scheduleLocked starts a drain unless one is already active. An
// enqueue during an active drain only adds to the queue for the same
// drain's next sweep — fairness by repeated full sweeps, not by
// recursion.
func (s *Scheduler) scheduleLocked() {
	if s.working {
		return
	}
	s.working = true
	s.drainLocked()
}

// drainLocked steps ready processes until the queue is empty.
// Called with the lock held and the working token claimed; returns with
// the lock held and the token released.
func (s *Scheduler) drainLocked() {
	for len(s.queue) > 0 {
		p := s.queue[0]
		s.queue = s.queue[1:]
		p.enqueued = false
		if p.state == stateDead {
			continue
		}
		p.state = stateRunning
		s.stepProcess(p)
	}
	s.working = false
}

// stepProcess advances p's root task by non-suspending transitions
// until it suspends (Binding, empty-mailbox Receive) or finishes. The
// lock is held on entry and exit and released around user code
// (continuations and binding starts); p.stack is written back before
// every release so a reentrant Kill can free the frames.
func (s *Scheduler) stepProcess(p *process) {
	root := p.root
	stack := p.stack
	for {
		switch n := root.(type) {
		case succeedNode, failNode:
			tr, val := triggerSucceed, Erased(nil)
			if fn, ok := n.(failNode); ok {
				tr, val = triggerFail, fn.err
			} else {
				val = n.(succeedNode).value
			}
			// Pop frames whose trigger does not match the terminal
			// tag: Fail skips AndThen frames, Succeed skips OnError
			// frames, unconsumed.
			for stack != nil && stack.trigger != tr {
				f := stack
				stack = f.next
				releaseFrame(f)
			}
			if stack == nil {
				// Stack exhausted with no matching frame: terminal.
				p.root = nil
				p.stack = nil
				p.mailbox = nil
				p.state = stateDead
				delete(s.procs, p.id)
				s.logger.Debug("finish", zap.Uint64("pid", uint64(p.id)))
				return
			}
			f := stack
			stack = f.next
			cont := f.cont
			releaseFrame(f)
			p.stack = stack
			s.mu.Unlock()
			root = cont(val)
			s.mu.Lock()
			if p.state == stateDead {
				return
			}

		case andThenNode:
			stack = acquireFrame(triggerSucceed, n.cont, stack)
			root = n.inner

		case onErrorNode:
			stack = acquireFrame(triggerFail, n.cont, stack)
			root = n.inner

		case receiveNode:
			if len(p.mailbox) == 0 {
				p.root = root
				p.stack = stack
				p.state = stateBlockedReceive
				return
			}
			msg := p.mailbox[0]
			p.mailbox = p.mailbox[1:]
			p.stack = stack
			s.mu.Unlock()
			root = n.cont(msg)
			s.mu.Lock()
			if p.state == stateDead {
				return
			}

		case bindingNode:
			// The one true suspension point. State is written before
			// start runs so a synchronous resolve observes a blocked
			// process and re-enqueues it normally.
			p.root = root
			p.stack = stack
			p.state = stateBlockedBinding
			r := &resolver{s: s, p: p}
			s.mu.Unlock()
			cancel := n.start(s, r.resolve)
			s.mu.Lock()
			// Store the thunk only while still pending: a binding that
			// resolved during start must never have its thunk invoked
			// by a later kill. A kill that landed while start was still
			// executing could not see the thunk, so run it here instead
			// of leaking the host operation.
			switch {
			case p.state == stateBlockedBinding:
				p.cancel = cancel
			case p.state == stateDead && r.used.Load() == 0 && cancel != nil:
				s.mu.Unlock()
				cancel()
				s.mu.Lock()
			}
			return

		default:
			// nil root: killed or already finished; nothing to do.
			return
		}
	}
}
