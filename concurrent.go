// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package sched

// Concurrent combines N tasks into one task that runs them as N
// concurrent child processes and succeeds with all N results in input
// order once every child succeeds. If any child fails, the combined
// task fails with that error and every other child is killed, so their
// cancellation thunks run and no stray work survives the failure.
//
// "First error" means the first child to fail in scheduling order, not
// input order: when two children fail in the same round, which error
// wins depends on interleaving. This nondeterminism is part of the
// model and deliberately not papered over.
//
// An empty input resolves immediately with an empty slice without
// spawning anything.
//
// Killing the combined task's process kills all children.
func Concurrent[E, V any](tasks []Task[E, V]) Task[E, []V] {
	nodes := make([]node, len(tasks))
	for i, t := range tasks {
		nodes[i] = t.n
	}
	return Task[E, []V]{n: schedBinding(func(s *Scheduler, resolve func(node)) func() {
		if len(nodes) == 0 {
			resolve(succeedNode{value: []V{}})
			return noCancel
		}

		// Shared completion state. Children run interleaved but never
		// in parallel (single logical scheduler thread), so plain
		// fields suffice.
		results := make([]V, len(nodes))
		remaining := len(nodes)
		done := false
		ids := make([]ProcessID, len(nodes))

		for i, child := range nodes {
			i := i
			wrapped := onErrorNode{
				inner: andThenNode{
					inner: child,
					cont: func(v Erased) node {
						if !done {
							results[i] = v.(V)
							remaining--
							if remaining == 0 {
								done = true
								resolve(succeedNode{value: results})
							}
						}
						return succeedNode{value: struct{}{}}
					},
				},
				cont: func(e Erased) node {
					if !done {
						done = true
						resolve(failNode{err: e})
						for j, id := range ids {
							if j != i {
								s.Kill(id)
							}
						}
					}
					return succeedNode{value: struct{}{}}
				},
			}
			// The combinator's binding always starts inside a drain,
			// so these spawns only enqueue: ids is fully populated
			// before any child steps.
			ids[i] = s.spawn(wrapped)
		}

		return func() {
			for _, id := range ids {
				s.Kill(id)
			}
		}
	})}
}
