// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package sched

import "fmt"

// EffectManager owns one category of side effects: an actor with
// private state, run as its own process, speaking a two-function
// contract. The manager set is open — managers are registered by name
// with [Worker] — rather than a closed enum.
//
// The manager's process runs a tail-recursive receive loop: each
// incoming message is either a flattened effect batch (handled by
// OnEffects) or a message the manager sent itself (handled by
// OnSelfMsg); the handler's resulting task produces the next state.
// Only this loop ever touches the state, so it needs no locking.
type EffectManager struct {
	// Name keys the manager in the registry and in effect leaves.
	// Required; duplicates across one Worker are a startup error.
	Name string

	// Init produces the manager's initial state. Required.
	Init Task[Erased, Erased]

	// OnEffects handles one dispatch round: the commands and
	// subscriptions gathered for this manager, in order. It runs once
	// per round even when both lists are empty, so a manager can
	// observe subscriptions disappearing. Required.
	OnEffects func(r *Router, cmds []Erased, subs []Erased, state Erased) Task[Erased, Erased]

	// OnSelfMsg handles a message the manager sent itself via
	// [Router.SendToSelf]. Required.
	OnSelfMsg func(r *Router, msg Erased, state Erased) Task[Erased, Erased]

	// CmdMap applies a message tagger inside a command value; it must
	// satisfy CmdMap(f, CmdMap(g, c)) == CmdMap(f∘g, c). Nil means the
	// manager's commands carry no application messages and mapping is
	// the identity.
	CmdMap func(tag func(Erased) Erased, cmd Erased) Erased

	// SubMap is the subscription counterpart of CmdMap.
	SubMap func(tag func(Erased) Erased, sub Erased) Erased
}

// Router is the capability object through which one effect manager
// talks back to the application and to itself. It is handed only to
// the manager that owns it and to tasks that manager spawns; it is not
// shared mutable state.
type Router struct {
	sched *Scheduler
	app   ProcessID
	self  ProcessID
}

// SendToApp delivers msg into the application's own update cycle.
func (r *Router) SendToApp(msg Erased) {
	r.sched.Send(r.app, msg)
}

// SendToSelf delivers msg to the manager's own mailbox, tagged as a
// self-message. Because the mailbox is FIFO and a dispatch round
// enqueues effect batches before any handler runs, a self-message is
// processed strictly after all effects of the batch that produced it.
func (r *Router) SendToSelf(msg Erased) {
	r.sched.Send(r.self, selfMsg{value: msg})
}

// Self returns the id of the manager's own process.
func (r *Router) Self() ProcessID { return r.self }

// selfMsg wraps a value sent by a manager to itself.
type selfMsg struct{ value Erased }

// effectsMsg is one manager's flattened batch for one dispatch round.
type effectsMsg struct {
	cmds []Erased
	subs []Erased
}

// managerRegistry is the runtime collection of registered managers,
// keyed by name, with registration order preserved for deterministic
// dispatch.
type managerRegistry struct {
	order  []string
	byName map[string]*EffectManager
	pids   map[string]ProcessID
}

// newManagerRegistry validates and indexes the managers. A duplicate
// name or malformed registration is a structural misconfiguration and
// fails startup.
func newManagerRegistry(managers []*EffectManager) (*managerRegistry, error) {
	reg := &managerRegistry{
		byName: make(map[string]*EffectManager, len(managers)),
		pids:   make(map[string]ProcessID, len(managers)),
	}
	for _, m := range managers {
		switch {
		case m == nil:
			return nil, fmt.Errorf("sched: nil effect manager")
		case m.Name == "":
			return nil, fmt.Errorf("sched: effect manager with empty name")
		case m.Init.n == nil:
			return nil, fmt.Errorf("sched: effect manager %q has no Init task", m.Name)
		case m.OnEffects == nil:
			return nil, fmt.Errorf("sched: effect manager %q has no OnEffects handler", m.Name)
		case m.OnSelfMsg == nil:
			return nil, fmt.Errorf("sched: effect manager %q has no OnSelfMsg handler", m.Name)
		}
		if _, dup := reg.byName[m.Name]; dup {
			return nil, fmt.Errorf("sched: duplicate effect manager %q", m.Name)
		}
		reg.byName[m.Name] = m
		reg.order = append(reg.order, m.Name)
	}
	return reg, nil
}

// managerLoop is the manager's receive loop, expressed purely with
// Receive and AndThen. Recursion is lazy — the next Receive is built
// only after a message is handled — so the loop runs forever without
// host-stack growth.
func managerLoop(m *EffectManager, r *Router, state Erased) Task[Erased, Erased] {
	return Receive[Erased, Erased](func(msg Erased) Task[Erased, Erased] {
		var step Task[Erased, Erased]
		switch mm := msg.(type) {
		case selfMsg:
			step = m.OnSelfMsg(r, mm.value, state)
		case effectsMsg:
			step = m.OnEffects(r, mm.cmds, mm.subs, state)
		default:
			// Stray message: keep state. Should not happen through the
			// public API, which only routes the two kinds above.
			step = Succeed[Erased, Erased](state)
		}
		return AndThen(step, func(next Erased) Task[Erased, Erased] {
			return managerLoop(m, r, next)
		})
	})
}
