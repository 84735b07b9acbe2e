// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package sched

// Effect bags are the lazily composed trees of effects an application
// hands to the dispatcher each update round. Batch and MapBag are O(1):
// they build tree nodes without walking their arguments. The tree is
// flattened into one ordered list per manager immediately before
// dispatch, applying accumulated taggers along the path from root to
// leaf, and does not survive the round.

// Bag is a composable tree of tagged effect leaves.
type Bag interface {
	bag() // unexported marker method
}

// effectKind separates command leaves from subscription leaves so one
// flatten pass can feed both arguments of a manager's OnEffects.
type effectKind uint8

const (
	kindCommand effectKind = iota
	kindSubscription
)

type leafBag struct {
	manager string
	kind    effectKind
	value   Erased
}

func (leafBag) bag() {}

type batchBag struct{ bags []Bag }

func (batchBag) bag() {}

type mapBag struct {
	tag   func(Erased) Erased
	inner Bag
}

func (mapBag) bag() {}

type noneBag struct{}

func (noneBag) bag() {}

// None is the empty bag: no effects this round.
var None Bag = noneBag{}

// Command creates a single command leaf owned by the named manager.
// The value is whatever the manager's OnEffects understands.
func Command(manager string, value Erased) Bag {
	return leafBag{manager: manager, kind: kindCommand, value: value}
}

// Subscription creates a single subscription leaf owned by the named
// manager.
func Subscription(manager string, value Erased) Bag {
	return leafBag{manager: manager, kind: kindSubscription, value: value}
}

// Batch combines bags into one. None is the identity element: empty
// input yields None and a single bag is returned unwrapped, avoiding an
// unnecessary tree node.
func Batch(bags ...Bag) Bag {
	switch len(bags) {
	case 0:
		return None
	case 1:
		return bags[0]
	}
	return batchBag{bags: bags}
}

// MapBag defers applying f to every message the bag's effects will
// eventually produce. The tagger is accumulated on the path to each
// leaf and applied once during flattening, through the owning
// manager's CmdMap/SubMap. Taggers compose: mapping with f then g
// delivers the same effects as mapping once with their composition.
func MapBag(b Bag, f func(Erased) Erased) Bag {
	if _, ok := b.(noneBag); ok {
		return None
	}
	return mapBag{tag: f, inner: b}
}

// gatheredEffects is one manager's flattened batch for a round.
type gatheredEffects struct {
	cmds []Erased
	subs []Erased
}

// gatherBag flattens a bag depth-first left-to-right, preserving
// per-manager effect order. tag is the composition of the MapBag
// taggers seen so far (nil when none). Leaves owned by unregistered
// managers are a structural misconfiguration and panic.
func gatherBag(b Bag, tag func(Erased) Erased, reg *managerRegistry, out map[string]*gatheredEffects) {
	switch bb := b.(type) {
	case noneBag:
	case leafBag:
		m, ok := reg.byName[bb.manager]
		if !ok {
			panic("sched: effect leaf for unregistered manager " + bb.manager)
		}
		value := bb.value
		g := out[bb.manager]
		if bb.kind == kindCommand {
			if tag != nil && m.CmdMap != nil {
				value = m.CmdMap(tag, value)
			}
			g.cmds = append(g.cmds, value)
		} else {
			if tag != nil && m.SubMap != nil {
				value = m.SubMap(tag, value)
			}
			g.subs = append(g.subs, value)
		}
	case batchBag:
		for _, inner := range bb.bags {
			gatherBag(inner, tag, reg, out)
		}
	case mapBag:
		inner := bb.tag
		next := inner
		if tag != nil {
			outer := tag
			// Outer maps wrap inner ones: a message produced under the
			// inner tagger still passes through the outer tagger.
			next = func(v Erased) Erased { return outer(inner(v)) }
		}
		gatherBag(bb.inner, next, reg, out)
	default:
		panic("sched: unknown bag type")
	}
}
