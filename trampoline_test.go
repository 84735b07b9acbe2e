// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package sched_test

import (
	"testing"

	"code.hybscloud.com/sched"
)

const chainDepth = 100_000

// A chain of 100k AndThen over Succeed must run to completion in one
// scheduler turn without host-stack growth.
func TestTrampolineDeepAndThenChain(t *testing.T) {
	s := sched.NewScheduler()
	task := sched.Succeed[string](0)
	for i := 0; i < chainDepth; i++ {
		task = sched.AndThen(task, func(x int) sched.Task[string, int] {
			return sched.Succeed[string](x + 1)
		})
	}
	if got := awaitValue(t, s, task); got != chainDepth {
		t.Fatalf("got %d, want %d", got, chainDepth)
	}
}

// A failure must unwind 100k pending AndThen frames iteratively and
// reach the outermost OnError.
func TestTrampolineDeepFailureUnwind(t *testing.T) {
	s := sched.NewScheduler()
	task := sched.Fail[string, int]("deep")
	for i := 0; i < chainDepth; i++ {
		task = sched.AndThen(task, func(x int) sched.Task[string, int] {
			return sched.Succeed[string](x + 1)
		})
	}
	recovered := sched.OnError(task, func(e string) sched.Task[string, int] {
		return sched.Succeed[string](-1)
	})
	if got := awaitValue(t, s, recovered); got != -1 {
		t.Fatalf("got %d, want -1", got)
	}
}

// Deeply nested OnError frames on the success path are skipped, not
// executed, and must not grow the host stack either.
func TestTrampolineDeepOnErrorChain(t *testing.T) {
	s := sched.NewScheduler()
	task := sched.Succeed[string](5)
	for i := 0; i < chainDepth; i++ {
		task = sched.OnError(task, func(e string) sched.Task[string, int] {
			return sched.Fail[string, int](e)
		})
	}
	if got := awaitValue(t, s, task); got != 5 {
		t.Fatalf("got %d, want 5", got)
	}
}
