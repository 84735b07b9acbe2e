// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package sched_test

import (
	"strings"
	"testing"

	"code.hybscloud.com/sched"
)

// passState is the identity OnSelfMsg/OnEffects body for managers that
// only record.
func passState(state sched.Erased) sched.Task[sched.Erased, sched.Erased] {
	return sched.Succeed[sched.Erased, sched.Erased](state)
}

// recordingManager records non-empty effect rounds and the
// self-messages it sends itself while handling them.
func recordingManager(name string, log *[]string) *sched.EffectManager {
	return &sched.EffectManager{
		Name: name,
		Init: sched.Succeed[sched.Erased, sched.Erased](nil),
		OnEffects: func(r *sched.Router, cmds, subs []sched.Erased, state sched.Erased) sched.Task[sched.Erased, sched.Erased] {
			if len(cmds) > 0 || len(subs) > 0 {
				*log = append(*log, "effects:"+name)
				r.SendToSelf("round done")
			}
			return passState(state)
		},
		OnSelfMsg: func(r *sched.Router, msg, state sched.Erased) sched.Task[sched.Erased, sched.Erased] {
			*log = append(*log, "self:"+name)
			return passState(state)
		},
	}
}

// A self-message produced synchronously while handling a batch must be
// processed strictly after every manager has received that batch —
// never interleaved mid-batch.
func TestDispatchOrderingSelfMessagesAfterBatch(t *testing.T) {
	var log []string
	prog, err := sched.Worker(sched.WorkerConfig[int, string]{
		Init: func() (int, sched.Bag) { return 0, sched.None },
		Update: func(msg string, m int) (int, sched.Bag) {
			return m + 1, sched.Batch(
				sched.Command("alpha", "go"),
				sched.Command("beta", "go"),
			)
		},
		Managers: []*sched.EffectManager{
			recordingManager("alpha", &log),
			recordingManager("beta", &log),
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	defer prog.Shutdown()

	prog.Send("kick")

	want := []string{"effects:alpha", "effects:beta", "self:alpha", "self:beta"}
	if len(log) != len(want) {
		t.Fatalf("log %v, want %v", log, want)
	}
	for i := range want {
		if log[i] != want[i] {
			t.Fatalf("log %v, want %v", log, want)
		}
	}
}

// collectingManager records delivered command values.
func collectingManager(name string, got *[]int) *sched.EffectManager {
	return &sched.EffectManager{
		Name: name,
		Init: sched.Succeed[sched.Erased, sched.Erased](nil),
		OnEffects: func(r *sched.Router, cmds, subs []sched.Erased, state sched.Erased) sched.Task[sched.Erased, sched.Erased] {
			for _, c := range cmds {
				*got = append(*got, c.(int))
			}
			return passState(state)
		},
		OnSelfMsg: func(r *sched.Router, msg, state sched.Erased) sched.Task[sched.Erased, sched.Erased] {
			return passState(state)
		},
		CmdMap: func(tag func(sched.Erased) sched.Erased, cmd sched.Erased) sched.Erased {
			return tag(cmd)
		},
	}
}

// Flattening preserves depth-first left-to-right order per manager.
func TestDispatchFlattenOrder(t *testing.T) {
	var got []int
	prog, err := sched.Worker(sched.WorkerConfig[int, string]{
		Init: func() (int, sched.Bag) { return 0, sched.None },
		Update: func(msg string, m int) (int, sched.Bag) {
			return m, sched.Batch(
				sched.Command("rec", 1),
				sched.Batch(sched.Command("rec", 2), sched.Command("rec", 3)),
				sched.Command("rec", 4),
			)
		},
		Managers: []*sched.EffectManager{collectingManager("rec", &got)},
	})
	if err != nil {
		t.Fatal(err)
	}
	defer prog.Shutdown()

	prog.Send("kick")

	want := []int{1, 2, 3, 4}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

// MapBag must satisfy the functor law: mapping with g then f delivers
// the same effects as mapping once with the composition.
func TestMapBagFunctorLaw(t *testing.T) {
	g := func(v sched.Erased) sched.Erased { return v.(int) + 1 }
	f := func(v sched.Erased) sched.Erased { return v.(int) * 2 }

	run := func(bagOf func(sched.Bag) sched.Bag) []int {
		var got []int
		prog, err := sched.Worker(sched.WorkerConfig[int, string]{
			Init: func() (int, sched.Bag) { return 0, sched.None },
			Update: func(msg string, m int) (int, sched.Bag) {
				return m, bagOf(sched.Command("rec", 10))
			},
			Managers: []*sched.EffectManager{collectingManager("rec", &got)},
		})
		if err != nil {
			t.Fatal(err)
		}
		defer prog.Shutdown()
		prog.Send("kick")
		return got
	}

	nested := run(func(b sched.Bag) sched.Bag {
		return sched.MapBag(sched.MapBag(b, g), f)
	})
	composed := run(func(b sched.Bag) sched.Bag {
		return sched.MapBag(b, func(v sched.Erased) sched.Erased { return f(g(v)) })
	})

	if len(nested) != 1 || len(composed) != 1 || nested[0] != composed[0] {
		t.Fatalf("nested %v, composed %v, want equal single values", nested, composed)
	}
	if nested[0] != 22 {
		t.Fatalf("got %d, want 22 (= (10+1)*2)", nested[0])
	}
}

// An echo manager routes commands straight back to the application.
func TestWorkerEchoRoundTrip(t *testing.T) {
	echo := &sched.EffectManager{
		Name: "echo",
		Init: sched.Succeed[sched.Erased, sched.Erased](nil),
		OnEffects: func(r *sched.Router, cmds, subs []sched.Erased, state sched.Erased) sched.Task[sched.Erased, sched.Erased] {
			for _, c := range cmds {
				r.SendToApp(c.(string))
			}
			return passState(state)
		},
		OnSelfMsg: func(r *sched.Router, msg, state sched.Erased) sched.Task[sched.Erased, sched.Erased] {
			return passState(state)
		},
	}

	var seen []string
	prog, err := sched.Worker(sched.WorkerConfig[int, string]{
		Init: func() (int, sched.Bag) {
			return 0, sched.Command("echo", "hello")
		},
		Update: func(msg string, m int) (int, sched.Bag) {
			seen = append(seen, msg)
			return m + 1, sched.None
		},
		Managers: []*sched.EffectManager{echo},
	})
	if err != nil {
		t.Fatal(err)
	}
	defer prog.Shutdown()

	if len(seen) != 1 || seen[0] != "hello" {
		t.Fatalf("seen %v, want [hello] from the init command", seen)
	}
	prog.Send("direct")
	if len(seen) != 2 || seen[1] != "direct" {
		t.Fatalf("seen %v, want [hello direct]", seen)
	}
}

// Managers receive every round, including empty ones, so a vanished
// subscription is observable.
func TestSubscriptionRemovalObserved(t *testing.T) {
	var counts []int
	watcher := &sched.EffectManager{
		Name: "watch",
		Init: sched.Succeed[sched.Erased, sched.Erased](nil),
		OnEffects: func(r *sched.Router, cmds, subs []sched.Erased, state sched.Erased) sched.Task[sched.Erased, sched.Erased] {
			counts = append(counts, len(subs))
			return passState(state)
		},
		OnSelfMsg: func(r *sched.Router, msg, state sched.Erased) sched.Task[sched.Erased, sched.Erased] {
			return passState(state)
		},
	}

	prog, err := sched.Worker(sched.WorkerConfig[bool, string]{
		Init: func() (bool, sched.Bag) { return true, sched.None },
		Update: func(msg string, subscribed bool) (bool, sched.Bag) {
			return false, sched.None
		},
		Subscriptions: func(subscribed bool) sched.Bag {
			if subscribed {
				return sched.Subscription("watch", "on")
			}
			return sched.None
		},
		Managers: []*sched.EffectManager{watcher},
	})
	if err != nil {
		t.Fatal(err)
	}
	defer prog.Shutdown()

	prog.Send("off")

	want := []int{1, 0}
	if len(counts) != len(want) || counts[0] != want[0] || counts[1] != want[1] {
		t.Fatalf("sub counts %v, want %v", counts, want)
	}
}

func TestWorkerRejectsDuplicateManagerNames(t *testing.T) {
	var log []string
	_, err := sched.Worker(sched.WorkerConfig[int, string]{
		Init:   func() (int, sched.Bag) { return 0, sched.None },
		Update: func(msg string, m int) (int, sched.Bag) { return m, sched.None },
		Managers: []*sched.EffectManager{
			recordingManager("dup", &log),
			recordingManager("dup", &log),
		},
	})
	if err == nil {
		t.Fatal("expected duplicate-name registration error")
	}
	if !strings.Contains(err.Error(), "duplicate") {
		t.Fatalf("error %q does not mention the duplicate", err)
	}
}

func TestWorkerRejectsMalformedManager(t *testing.T) {
	cases := []struct {
		name string
		m    *sched.EffectManager
	}{
		{"nil manager", nil},
		{"empty name", &sched.EffectManager{
			Init:      sched.Succeed[sched.Erased, sched.Erased](nil),
			OnEffects: func(*sched.Router, []sched.Erased, []sched.Erased, sched.Erased) sched.Task[sched.Erased, sched.Erased] { return passState(nil) },
			OnSelfMsg: func(*sched.Router, sched.Erased, sched.Erased) sched.Task[sched.Erased, sched.Erased] { return passState(nil) },
		}},
		{"missing init", &sched.EffectManager{
			Name:      "m",
			OnEffects: func(*sched.Router, []sched.Erased, []sched.Erased, sched.Erased) sched.Task[sched.Erased, sched.Erased] { return passState(nil) },
			OnSelfMsg: func(*sched.Router, sched.Erased, sched.Erased) sched.Task[sched.Erased, sched.Erased] { return passState(nil) },
		}},
		{"missing handlers", &sched.EffectManager{
			Name: "m",
			Init: sched.Succeed[sched.Erased, sched.Erased](nil),
		}},
	}
	for _, tc := range cases {
		_, err := sched.Worker(sched.WorkerConfig[int, string]{
			Init:     func() (int, sched.Bag) { return 0, sched.None },
			Update:   func(msg string, m int) (int, sched.Bag) { return m, sched.None },
			Managers: []*sched.EffectManager{tc.m},
		})
		if err == nil {
			t.Fatalf("%s: expected registration error", tc.name)
		}
	}
}

func TestWorkerRequiresInitAndUpdate(t *testing.T) {
	if _, err := sched.Worker(sched.WorkerConfig[int, string]{
		Update: func(msg string, m int) (int, sched.Bag) { return m, sched.None },
	}); err == nil {
		t.Fatal("expected error for missing Init")
	}
	if _, err := sched.Worker(sched.WorkerConfig[int, string]{
		Init: func() (int, sched.Bag) { return 0, sched.None },
	}); err == nil {
		t.Fatal("expected error for missing Update")
	}
}

func TestShutdownIsIdempotent(t *testing.T) {
	var log []string
	prog, err := sched.Worker(sched.WorkerConfig[int, string]{
		Init:     func() (int, sched.Bag) { return 0, sched.None },
		Update:   func(msg string, m int) (int, sched.Bag) { return m + 1, sched.None },
		Managers: []*sched.EffectManager{recordingManager("only", &log)},
	})
	if err != nil {
		t.Fatal(err)
	}
	prog.Shutdown()
	prog.Shutdown()
	prog.Send("ignored") // app process is dead; must not panic
}
