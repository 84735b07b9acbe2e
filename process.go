// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package sched

// ProcessID identifies a spawned process. Ids are unique for the
// lifetime of a Scheduler and are never reused.
type ProcessID uint64

// procState tracks where a process is in its lifecycle. Transitions
// happen only under the scheduler lock.
type procState uint8

const (
	// stateReady: enqueued on the ready queue, waiting to be stepped.
	stateReady procState = iota
	// stateRunning: currently being stepped by the drain loop.
	stateRunning
	// stateBlockedReceive: suspended on Receive with an empty mailbox;
	// woken by the next Send.
	stateBlockedReceive
	// stateBlockedBinding: suspended on a Binding awaiting its resolver.
	stateBlockedBinding
	// stateDead: completed or killed. Terminal; dead processes are
	// removed from the process table.
	stateDead
)

// process is a unit of concurrent execution: an evolving task, an
// explicit continuation stack, and a FIFO mailbox. A process is owned
// exclusively by its scheduler; no other component mutates it except
// through the spawn/send/kill primitives.
type process struct {
	id      ProcessID
	root    node
	stack   *frame
	mailbox []Erased

	// cancel is the binding cancellation thunk, set only while the
	// process is blocked on a Binding and cleared on resolve or kill.
	cancel func()

	state procState

	// enqueued guarantees a process is on the ready queue at most once.
	enqueued bool
}
