// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package sched

// Erased represents a type-erased value flowing through the runtime.
// Mailbox messages, effect values, and manager state are heterogeneous,
// so the interpreter works over erased nodes; concrete types are
// recovered via type assertions inside the generic constructors.
type Erased = any

// node is the interface for the internal task representation.
// A Task[E, V] wraps exactly one node; nodes are immutable and may be
// shared between tasks. All execution state lives in the process.
type node interface {
	taskNode() // unexported marker method
}

// succeedNode resolves immediately with a value.
type succeedNode struct{ value Erased }

func (succeedNode) taskNode() {}

// failNode fails immediately with an error value.
type failNode struct{ err Erased }

func (failNode) taskNode() {}

// bindingNode suspends the owning process until the resolver is called.
// start receives the owning scheduler and a one-shot resolver, and must
// return a cancellation thunk. The runtime invokes the thunk at most
// once, and only if the process is killed before the binding resolves.
type bindingNode struct {
	start func(s *Scheduler, resolve func(node)) (cancel func())
}

func (bindingNode) taskNode() {}

// andThenNode sequences cont after inner succeeds.
type andThenNode struct {
	cont  func(Erased) node
	inner node
}

func (andThenNode) taskNode() {}

// onErrorNode runs cont when inner fails; success passes through.
type onErrorNode struct {
	cont  func(Erased) node
	inner node
}

func (onErrorNode) taskNode() {}

// receiveNode suspends until the owning process's mailbox is non-empty.
type receiveNode struct {
	cont func(Erased) node
}

func (receiveNode) taskNode() {}

// Task describes an asynchronous, possibly-failing computation that
// fails with E or succeeds with V. A Task is an inert, immutable value:
// constructing one performs no work, and evaluating it never mutates it,
// so tasks may be reused and shared freely. Execution happens only when
// a task is handed to a [Scheduler] via [Spawn] (or indirectly through
// [Concurrent], [Await], or a [Worker] program).
type Task[E, V any] struct{ n node }

// Succeed lifts a pure value into a task that resolves immediately.
func Succeed[E, V any](v V) Task[E, V] {
	return Task[E, V]{n: succeedNode{value: v}}
}

// Fail creates a task that fails immediately with the given error value.
func Fail[E, V any](e E) Task[E, V] {
	return Task[E, V]{n: failNode{err: e}}
}

// AndThen sequences two tasks: when m succeeds, f is applied to the
// result to obtain the next task. When m fails, f is skipped and the
// failure propagates.
//
// Chains of AndThen of any length run without host-stack growth; the
// interpreter maintains an explicit heap-allocated frame stack.
func AndThen[E, A, B any](m Task[E, A], f func(A) Task[E, B]) Task[E, B] {
	return Task[E, B]{n: andThenNode{
		inner: m.n,
		cont:  func(v Erased) node { return f(v.(A)).n },
	}}
}

// OnError handles failure: when m fails, f is applied to the error to
// obtain the next task. When m succeeds, f is skipped and the value
// propagates unchanged. OnError is the exact dual of [AndThen].
func OnError[E, F, V any](m Task[E, V], f func(E) Task[F, V]) Task[F, V] {
	return Task[F, V]{n: onErrorNode{
		inner: m.n,
		cont:  func(e Erased) node { return f(e.(E)).n },
	}}
}

// Map applies a pure function to the result of a task.
//
// Allocation note: Map is equivalent to AndThen(m, compose(Succeed, f))
// but builds the succeed node directly, avoiding the intermediate Task
// wrapper when the transformation is pure.
func Map[E, A, B any](m Task[E, A], f func(A) B) Task[E, B] {
	return Task[E, B]{n: andThenNode{
		inner: m.n,
		cont:  func(v Erased) node { return succeedNode{value: f(v.(A))} },
	}}
}

// MapError applies a pure function to the error of a task.
func MapError[E, F, V any](m Task[E, V], f func(E) F) Task[F, V] {
	return Task[F, V]{n: onErrorNode{
		inner: m.n,
		cont:  func(e Erased) node { return failNode{err: f(e.(E))} },
	}}
}

// Binding bridges a genuinely asynchronous host operation (timer, I/O,
// network call) into the task universe. It is the sole extension point
// for non-task host operations and one of the two suspension points of
// the runtime (the other is [Receive]).
//
// start is given a one-shot resolver and must arrange for it to be
// called exactly once — never zero times, never more than once. A start
// that never resolves leaks the owning process: it sits forever outside
// the ready queue with no mailbox arrival that could wake it. This is a
// caller obligation; the runtime does not detect it.
//
// start must return a cancellation thunk that is safe to call even
// after resolution (a no-op in that case). The runtime invokes the
// thunk at most once, and only if the process is killed before the
// binding resolves. Calling the resolver twice panics.
func Binding[E, V any](start func(resolve func(Task[E, V])) (cancel func())) Task[E, V] {
	return Task[E, V]{n: bindingNode{
		start: func(_ *Scheduler, resolve func(node)) func() {
			return start(func(t Task[E, V]) { resolve(t.n) })
		},
	}}
}

// schedBinding is the internal binding constructor whose start also
// receives the owning scheduler. Combinators that need spawn/kill
// access ([Concurrent], [SpawnTask], [KillTask]) are built on it.
func schedBinding(start func(s *Scheduler, resolve func(node)) (cancel func())) node {
	return bindingNode{start: start}
}

// Receive suspends the owning process until its mailbox is non-empty,
// then applies cont to the dequeued message. Messages are observed in
// FIFO order. Receive only makes sense inside a spawned process that
// somebody sends to; see [Scheduler.Send].
func Receive[E, V any](cont func(Erased) Task[E, V]) Task[E, V] {
	return Task[E, V]{n: receiveNode{
		cont: func(msg Erased) node { return cont(msg).n },
	}}
}

// SpawnTask is the task-level spawn primitive: a task that spawns t as
// a new concurrent process and succeeds with its id. The spawned
// process is not linked to the spawning one; killing the parent does
// not kill it.
func SpawnTask[E, F, V any](t Task[F, V]) Task[E, ProcessID] {
	inner := t.n
	return Task[E, ProcessID]{n: schedBinding(func(s *Scheduler, resolve func(node)) func() {
		resolve(succeedNode{value: s.spawn(inner)})
		return noCancel
	})}
}

// KillTask is the task-level kill primitive: a task that kills the
// process with the given id and succeeds. Like [Scheduler.Kill], it is
// idempotent.
func KillTask[E any](id ProcessID) Task[E, struct{}] {
	return Task[E, struct{}]{n: schedBinding(func(s *Scheduler, resolve func(node)) func() {
		s.Kill(id)
		resolve(succeedNode{value: struct{}{}})
		return noCancel
	})}
}

// noCancel is the cancellation thunk for bindings that resolve
// synchronously and have nothing to cancel.
func noCancel() {}
