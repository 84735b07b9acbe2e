// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package sched

import "time"

// Sleep is the canonical host binding: a task that succeeds with the
// unit value after d has elapsed. Killing the owning process before
// the timer fires stops the timer.
//
// There is no built-in timeout primitive; a timeout is expressed as a
// race between the guarded binding and a Sleep composed via
// [Concurrent] with failure on the timer branch.
func Sleep[E any](d time.Duration) Task[E, struct{}] {
	return Binding[E, struct{}](func(resolve func(Task[E, struct{}])) func() {
		t := time.AfterFunc(d, func() {
			resolve(Succeed[E](struct{}{}))
		})
		return func() { t.Stop() }
	})
}

// Now succeeds with the current wall-clock time.
func Now[E any]() Task[E, time.Time] {
	return Binding[E, time.Time](func(resolve func(Task[E, time.Time])) func() {
		resolve(Succeed[E](time.Now()))
		return noCancel
	})
}
