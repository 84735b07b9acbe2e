// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Command schedworker runs a demo worker program on the sched runtime:
// a tick effect manager delivers timestamps to the application on a
// subscription interval until the requested number of ticks has been
// observed.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"code.hybscloud.com/sched"
)

const tickManagerName = "tick"

// tickSub is the subscription value understood by the tick manager:
// an interval and a tagger building the application message for each
// tick.
type tickSub struct {
	interval time.Duration
	tag      func(time.Time) sched.Erased
}

// tickState is the manager's private state: the ticker process (0 when
// idle) and the active subscriptions.
type tickState struct {
	ticker sched.ProcessID
	subs   []tickSub
}

// Tick subscribes to timestamps every interval, tagged into an
// application message by tag.
func Tick(interval time.Duration, tag func(time.Time) sched.Erased) sched.Bag {
	return sched.Subscription(tickManagerName, tickSub{interval: interval, tag: tag})
}

// tickManager builds the tick effect manager. One ticker process runs
// while subscriptions are active; every tick is routed through
// SendToSelf so delivery respects dispatch-round ordering.
func tickManager() *sched.EffectManager {
	return &sched.EffectManager{
		Name: tickManagerName,
		Init: sched.Succeed[sched.Erased, sched.Erased](tickState{}),
		OnEffects: func(r *sched.Router, _ []sched.Erased, subs []sched.Erased, state sched.Erased) sched.Task[sched.Erased, sched.Erased] {
			st := state.(tickState)
			active := make([]tickSub, 0, len(subs))
			for _, s := range subs {
				active = append(active, s.(tickSub))
			}

			next := func() sched.Task[sched.Erased, sched.Erased] {
				if len(active) == 0 {
					return sched.Succeed[sched.Erased, sched.Erased](tickState{})
				}
				loop := tickLoop(r, active[0].interval)
				return sched.AndThen(
					sched.SpawnTask[sched.Erased](loop),
					func(pid sched.ProcessID) sched.Task[sched.Erased, sched.Erased] {
						return sched.Succeed[sched.Erased, sched.Erased](tickState{ticker: pid, subs: active})
					},
				)
			}

			if st.ticker != 0 {
				return sched.AndThen(
					sched.KillTask[sched.Erased](st.ticker),
					func(struct{}) sched.Task[sched.Erased, sched.Erased] { return next() },
				)
			}
			return next()
		},
		OnSelfMsg: func(r *sched.Router, msg sched.Erased, state sched.Erased) sched.Task[sched.Erased, sched.Erased] {
			st := state.(tickState)
			now := msg.(time.Time)
			for _, s := range st.subs {
				r.SendToApp(s.tag(now))
			}
			return sched.Succeed[sched.Erased, sched.Erased](st)
		},
		SubMap: func(tag func(sched.Erased) sched.Erased, sub sched.Erased) sched.Erased {
			s := sub.(tickSub)
			inner := s.tag
			return tickSub{
				interval: s.interval,
				tag:      func(t time.Time) sched.Erased { return tag(inner(t)) },
			}
		},
	}
}

// tickLoop is the ticker process body: sleep, notify the manager,
// repeat. The recursion is lazy, so the loop runs indefinitely until
// killed.
func tickLoop(r *sched.Router, interval time.Duration) sched.Task[sched.Erased, struct{}] {
	return sched.AndThen(
		sched.Sleep[sched.Erased](interval),
		func(struct{}) sched.Task[sched.Erased, struct{}] {
			r.SendToSelf(time.Now())
			return tickLoop(r, interval)
		},
	)
}

type model struct {
	seen    int
	limit   int
	stopped bool
}

// appMsg is the application's message union.
type appMsg interface{ appMsg() }

// tickMsg carries one tick timestamp.
type tickMsg struct{ at time.Time }

func (tickMsg) appMsg() {}

// stopMsg drops every subscription, so the tick manager tears its
// ticker process down. Kill is non-transitive: shutting the manager
// down directly would leave the ticker running.
type stopMsg struct{}

func (stopMsg) appMsg() {}

func run() error {
	interval := flag.Duration("interval", 500*time.Millisecond, "tick interval")
	count := flag.Int("count", 5, "number of ticks before exit")
	logLevel := flag.String("log-level", "info", "log level (debug, info, warn, error)")
	logFormat := flag.String("log-format", "console", "log format (console, json)")
	flag.Parse()

	logger, err := sched.NewLogger(sched.LogConfig{
		Level:   *logLevel,
		Format:  *logFormat,
		Outputs: []string{"stderr"},
	})
	if err != nil {
		return err
	}
	defer logger.Sync()

	done := make(chan struct{})

	prog, err := sched.Worker(sched.WorkerConfig[model, appMsg]{
		Init: func() (model, sched.Bag) {
			return model{limit: *count}, sched.None
		},
		Update: func(msg appMsg, m model) (model, sched.Bag) {
			switch mm := msg.(type) {
			case tickMsg:
				m.seen++
				logger.Info("tick",
					zap.Int("seen", m.seen),
					zap.Time("at", mm.at))
				if m.seen == m.limit {
					close(done)
				}
			case stopMsg:
				m.stopped = true
			}
			return m, sched.None
		},
		Subscriptions: func(m model) sched.Bag {
			if m.stopped || m.seen >= m.limit {
				return sched.None
			}
			return Tick(*interval, func(t time.Time) sched.Erased {
				return tickMsg{at: t}
			})
		},
		Managers: []*sched.EffectManager{tickManager()},
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	defer func() {
		// The stop round runs before Shutdown, so the tick manager
		// kills its ticker process instead of leaving it behind.
		prog.Send(stopMsg{})
		prog.Shutdown()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	return g.Wait()
}

func main() {
	if err := run(); err != nil && err != context.Canceled {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
