// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package sched is a cooperative task-scheduling and effect-manager
// runtime: a trampolined interpreter for declarative task descriptions,
// a lightweight process model with mailboxes and cancellation, and a
// reentrancy-safe effect dispatcher connecting stateful effect managers
// to an application update loop.
//
// # Tasks
//
// [Task] is an inert, immutable description of an asynchronous,
// possibly-failing computation. Constructing a task performs no work;
// tasks may be shared and reused freely.
//
//   - [Succeed], [Fail]: immediate outcomes
//   - [AndThen], [Map]: sequence on success
//   - [OnError], [MapError]: sequence on failure (the exact dual)
//   - [Binding]: bridge a host-asynchronous operation (timer, I/O)
//   - [Receive]: await the owning process's mailbox
//
// Failure propagates past AndThen frames to the nearest OnError, and
// success propagates past OnError frames to the nearest AndThen. The
// interpreter trampolines over an explicit heap-allocated frame stack,
// so combinator chains of any length run in constant host-stack space.
//
// # Processes and the scheduler
//
// [Scheduler] owns a process table and a ready queue and steps one
// process at a time until it suspends or finishes. The only suspension
// points are a [Binding] awaiting its resolver and a [Receive] on an
// empty mailbox; everything else runs to a fixed point within one turn.
//
//   - [Spawn]: run a task as a new concurrent process
//   - [Scheduler.Send]: append to a process's FIFO mailbox
//   - [Scheduler.Kill]: terminate a process, cancelling a pending
//     binding exactly once; idempotent and non-transitive
//   - [Concurrent]: all-or-nothing combination of N tasks; the first
//     failure (in scheduling order) wins and kills the siblings
//   - [Await]: block ordinary Go code on a task's outcome, as a
//     [Result]
//
// Parallelism is simulated by interleaving: execution is logically
// single-threaded even when host completions arrive from other
// goroutines, which keeps per-process state lock-free by construction.
//
// # Effect managers
//
// An [EffectManager] is an actor owning one category of side effects,
// run as its own process with private state and a two-function
// contract: OnEffects handles the batch of commands and subscriptions
// gathered from one application update, OnSelfMsg handles messages the
// manager sent itself through its [Router]. Effect bags ([Command],
// [Subscription], [Batch], [MapBag]) compose in O(1) and are flattened
// once per dispatch round; rounds are delivered atomically and
// breadth-first, so a self-message produced while handling a batch is
// processed strictly after every manager has received that batch.
//
// # Programs
//
// [Worker] assembles a headless application — init, update,
// subscriptions — with its managers and runs it. Manager registration
// is validated at startup; a duplicate or malformed manager prevents
// the program from starting.
//
// # Resilience
//
// [Retry] reruns a failing task with exponential backoff; [Protect]
// gates a task behind a circuit breaker. [Sleep] is the canonical host
// binding and the building block for timeouts.
package sched
