// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package sched

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// WorkerConfig describes a headless application driven by the runtime:
// an initial model and command, an update function producing a new
// model and command per message, a subscription function derived from
// the model, and the effect managers the program's effects route to.
type WorkerConfig[Model, Msg any] struct {
	// Init produces the initial model and startup command bag.
	// Required.
	Init func() (Model, Bag)

	// Update folds one message into the model and emits this round's
	// command bag. Required.
	Update func(Msg, Model) (Model, Bag)

	// Subscriptions derives the active subscription bag from the
	// model, re-gathered after every update. Nil means no
	// subscriptions.
	Subscriptions func(Model) Bag

	// Managers are the effect managers available to this program.
	// Names must be unique.
	Managers []*EffectManager

	// Logger receives debug-level runtime traces. Nil means no-op.
	Logger *zap.Logger
}

// Program is a running worker: its scheduler, its registered managers,
// and its application process. Create one with [Worker].
type Program[Model, Msg any] struct {
	rt *programRuntime
}

// programRuntime is the type-erased core shared by the app loop, the
// routers, and the dispatcher.
type programRuntime struct {
	sched  *Scheduler
	reg    *managerRegistry
	app    ProcessID
	logger *zap.Logger

	// Dispatcher state: one atomic round at a time. If handling a
	// batch synchronously produces another batch, the second round is
	// queued and delivered only after the first has been fully
	// distributed, preserving cross-round ordering without unbounded
	// call-stack growth.
	dmu         sync.Mutex
	dispatching bool
	pending     []effectRound
}

type effectRound struct {
	cmds Bag
	subs Bag
}

// Worker assembles and starts a program. Manager registration is
// validated first: a duplicate name or malformed manager is reported
// immediately and the program does not start. On success the managers
// and the application loop are spawned and the initial command bag is
// dispatched as the first round.
func Worker[Model, Msg any](cfg WorkerConfig[Model, Msg]) (*Program[Model, Msg], error) {
	if cfg.Init == nil {
		return nil, fmt.Errorf("sched: worker has no Init")
	}
	if cfg.Update == nil {
		return nil, fmt.Errorf("sched: worker has no Update")
	}
	reg, err := newManagerRegistry(cfg.Managers)
	if err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("program", uuid.NewString()))

	rt := &programRuntime{
		sched:  NewScheduler(WithLogger(logger)),
		reg:    reg,
		logger: logger,
	}

	update := func(msg Erased, model Erased) (Erased, Bag) {
		mm, ok := msg.(Msg)
		if !ok {
			panic(fmt.Sprintf("sched: application message %T does not match program message type", msg))
		}
		next, cmds := cfg.Update(mm, model.(Model))
		return next, cmds
	}
	subscriptions := func(model Erased) Bag {
		if cfg.Subscriptions == nil {
			return None
		}
		return cfg.Subscriptions(model.(Model))
	}

	// The app loop is itself a process: receive a message, update the
	// model, dispatch the round's effects, recurse lazily.
	var loop func(model Erased) Task[Erased, Erased]
	loop = func(model Erased) Task[Erased, Erased] {
		return Receive[Erased, Erased](func(msg Erased) Task[Erased, Erased] {
			next, cmds := update(msg, model)
			rt.dispatchEffects(cmds, subscriptions(next))
			return loop(next)
		})
	}

	// Everything below happens under one scheduler batch: all spawns
	// and the first dispatch land on the queue before any process
	// steps, so routers are fully wired before any handler can run.
	rt.sched.batch(func() {
		routers := make([]*Router, 0, len(reg.order))
		for _, name := range reg.order {
			m := reg.byName[name]
			r := &Router{sched: rt.sched}
			init := AndThen(m.Init, func(state Erased) Task[Erased, Erased] {
				return managerLoop(m, r, state)
			})
			pid := rt.sched.spawn(init.n)
			r.self = pid
			reg.pids[name] = pid
			routers = append(routers, r)
			logger.Debug("manager registered",
				zap.String("manager", name), zap.Uint64("pid", uint64(pid)))
		}

		model, cmds := cfg.Init()
		rt.app = rt.sched.spawn(loop(model).n)
		for _, r := range routers {
			r.app = rt.app
		}
		rt.dispatchEffects(cmds, subscriptions(model))
	})

	return &Program[Model, Msg]{rt: rt}, nil
}

// Send injects a message into the program's update cycle, as if an
// effect manager had produced it. Safe to call from any goroutine.
func (p *Program[Model, Msg]) Send(msg Msg) {
	p.rt.sched.Send(p.rt.app, msg)
}

// Scheduler returns the program's scheduler, for running standalone
// tasks against the same runtime.
func (p *Program[Model, Msg]) Scheduler() *Scheduler {
	return p.rt.sched
}

// Shutdown kills the application process and every manager process.
// Idempotent.
func (p *Program[Model, Msg]) Shutdown() {
	rt := p.rt
	rt.sched.Kill(rt.app)
	for _, name := range rt.reg.order {
		rt.sched.Kill(rt.reg.pids[name])
	}
	rt.logger.Debug("program shut down")
}

// dispatchEffects queues one round (a command bag and a subscription
// bag) and, unless a dispatch is already in progress, delivers queued
// rounds in order until none remain. Reentrant calls — an update
// triggered synchronously while a round is being delivered — only
// queue.
func (rt *programRuntime) dispatchEffects(cmds, subs Bag) {
	if cmds == nil {
		cmds = None
	}
	if subs == nil {
		subs = None
	}
	rt.dmu.Lock()
	rt.pending = append(rt.pending, effectRound{cmds: cmds, subs: subs})
	if rt.dispatching {
		rt.dmu.Unlock()
		return
	}
	rt.dispatching = true
	for len(rt.pending) > 0 {
		round := rt.pending[0]
		rt.pending = rt.pending[1:]
		rt.dmu.Unlock()
		rt.deliver(round)
		rt.dmu.Lock()
	}
	rt.dispatching = false
	rt.dmu.Unlock()
}

// deliver flattens one round and sends every manager its batch.
// Delivery is breadth-first: the sends run under a scheduler batch, so
// all managers have the round in their mailboxes before any manager's
// handler runs. Every registered manager receives the round, even with
// an empty batch, so vanished subscriptions are observable.
func (rt *programRuntime) deliver(round effectRound) {
	out := make(map[string]*gatheredEffects, len(rt.reg.order))
	for _, name := range rt.reg.order {
		out[name] = &gatheredEffects{}
	}
	gatherBag(round.cmds, nil, rt.reg, out)
	gatherBag(round.subs, nil, rt.reg, out)

	rt.sched.batch(func() {
		for _, name := range rt.reg.order {
			g := out[name]
			rt.logger.Debug("dispatch round",
				zap.String("manager", name),
				zap.Int("cmds", len(g.cmds)),
				zap.Int("subs", len(g.subs)))
			rt.sched.Send(rt.reg.pids[name], effectsMsg{cmds: g.cmds, subs: g.subs})
		}
	})
}
