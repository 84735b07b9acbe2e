// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package sched

// Result is the materialized outcome of a task: Ok with a value or Err
// with an error.
type Result[E, V any] struct {
	ok    bool
	value V
	err   E
}

// Ok creates a successful result.
func Ok[E, V any](v V) Result[E, V] {
	return Result[E, V]{ok: true, value: v}
}

// Err creates a failed result.
func Err[E, V any](e E) Result[E, V] {
	return Result[E, V]{err: e}
}

// IsOk reports whether the result is a success.
func (r Result[E, V]) IsOk() bool { return r.ok }

// Value returns the success value and true, or zero and false.
func (r Result[E, V]) Value() (V, bool) {
	if r.ok {
		return r.value, true
	}
	var zero V
	return zero, false
}

// Err returns the error value and true, or zero and false.
func (r Result[E, V]) Err() (E, bool) {
	if !r.ok {
		return r.err, true
	}
	var zero E
	return zero, false
}

// MatchResult pattern matches on the result, calling onErr or onOk.
func MatchResult[E, V, T any](r Result[E, V], onErr func(E) T, onOk func(V) T) T {
	if r.ok {
		return onOk(r.value)
	}
	return onErr(r.err)
}

// Await spawns t on s and blocks the calling goroutine until the task
// terminates, returning its outcome. It is the bridge from the task
// world back to ordinary Go, intended for program entry points and
// tests.
//
// Await must not be called from inside task code (a continuation,
// binding start, or manager handler): the drain that would complete t
// is the one the caller is blocking.
func Await[E, V any](s *Scheduler, t Task[E, V]) Result[E, V] {
	ch := make(chan Result[E, V], 1)
	completed := OnError(
		AndThen(t, func(v V) Task[E, struct{}] {
			ch <- Ok[E, V](v)
			return Succeed[E](struct{}{})
		}),
		func(e E) Task[E, struct{}] {
			ch <- Err[E, V](e)
			return Succeed[E](struct{}{})
		},
	)
	Spawn(s, completed)
	return <-ch
}
