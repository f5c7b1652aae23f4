// Package matchall runs every matching case, not just the first one.
//
// A Dispatcher holds an ordered list of groups, each a set of alternative
// patterns and an action. Dispatching a value runs the action of every
// group with at least one matching pattern, in declaration order. The
// IfNoMatch action runs only when no group matched.
//
//	d := matchall.MustNew(
//		matchall.When(matchall.Eq(3), matchall.Eq(4)).Then(hello),
//		matchall.When(matchall.Eq(4), matchall.Eq(5)).Then(howdy),
//		matchall.IfNoMatch(nothing),
//	)
//	d.Dispatch(4) // hello(4), then howdy(4)
//
// The code generator in cmd/matchall produces the same behaviour from
// annotated switch statements without any runtime cost.
package matchall

import "errors"

var (
	// ErrNoGroups is returned when a dispatcher would only have a fallback.
	ErrNoGroups = errors.New("matchall: at least one group is required")
	// ErrMultipleFallbacks is returned when IfNoMatch is given more than once.
	ErrMultipleFallbacks = errors.New("matchall: at most one IfNoMatch is allowed")
	// ErrNilAction is returned for a group or fallback without an action.
	ErrNilAction = errors.New("matchall: nil action")
	// ErrNilPattern is returned for a group with a nil pattern.
	ErrNilPattern = errors.New("matchall: nil pattern")
)

// Arm is either a pattern group or the fallback.
type Arm[T any] struct {
	patterns []Pattern[T]
	action   func(T)
	fallback bool
}

// ArmBuilder is the pattern part of a group, waiting for its action.
type ArmBuilder[T any] struct {
	patterns []Pattern[T]
}

// When starts a group. The group matches when any of its patterns does.
func When[T any](p Pattern[T], ps ...Pattern[T]) ArmBuilder[T] {
	patterns := make([]Pattern[T], 0, 1+len(ps))
	patterns = append(patterns, p)
	patterns = append(patterns, ps...)
	return ArmBuilder[T]{patterns: patterns}
}

// Then completes the group with the action to run on a match.
func (b ArmBuilder[T]) Then(fn func(T)) Arm[T] {
	return Arm[T]{patterns: b.patterns, action: fn}
}

// IfNoMatch is run when no group matched the value.
func IfNoMatch[T any](fn func(T)) Arm[T] {
	return Arm[T]{action: fn, fallback: true}
}

// Dispatcher runs every group that matches a value. It is safe for
// concurrent use as long as the actions are.
type Dispatcher[T any] struct {
	groups   []Arm[T]
	fallback func(T)
}

// New validates arms and builds a dispatcher. The fallback may appear
// anywhere in arms; groups keep their relative order.
func New[T any](arms ...Arm[T]) (*Dispatcher[T], error) {
	d := &Dispatcher[T]{}
	for _, arm := range arms {
		if arm.action == nil {
			return nil, ErrNilAction
		}
		if arm.fallback {
			if d.fallback != nil {
				return nil, ErrMultipleFallbacks
			}
			d.fallback = arm.action
			continue
		}
		for _, p := range arm.patterns {
			if p == nil {
				return nil, ErrNilPattern
			}
		}
		d.groups = append(d.groups, arm)
	}
	if len(d.groups) == 0 {
		return nil, ErrNoGroups
	}
	return d, nil
}

// MustNew is like New but panics on invalid arms.
func MustNew[T any](arms ...Arm[T]) *Dispatcher[T] {
	d, err := New(arms...)
	if err != nil {
		panic(err)
	}
	return d
}

// Dispatch runs the actions of all matching groups and returns how many
// groups matched. Each group's patterns are tried in order and stop at
// the first match, so an action runs at most once per call.
func (d *Dispatcher[T]) Dispatch(v T) int {
	matched := 0
	for _, g := range d.groups {
		if !g.matches(v) {
			continue
		}
		matched++
		g.action(v)
	}
	if matched == 0 && d.fallback != nil {
		d.fallback(v)
	}
	return matched
}

// first runs only the first matching group, like a plain switch.
func (d *Dispatcher[T]) first(v T) bool {
	for _, g := range d.groups {
		if g.matches(v) {
			g.action(v)
			return true
		}
	}
	if d.fallback != nil {
		d.fallback(v)
	}
	return false
}

func (a Arm[T]) matches(v T) bool {
	for _, p := range a.patterns {
		if p(v) {
			return true
		}
	}
	return false
}

// Match builds a dispatcher for a single value. It panics on invalid arms.
func Match[T any](v T, arms ...Arm[T]) int {
	return MustNew(arms...).Dispatch(v)
}

// ForEach dispatches every element of values in order and returns the
// total number of matched groups.
func ForEach[T any](values []T, arms ...Arm[T]) int {
	d := MustNew(arms...)
	total := 0
	for _, v := range values {
		total += d.Dispatch(v)
	}
	return total
}

// ForEachFirst runs, for every element of values, only the first group
// that matches it, or the fallback when none does. It returns the number
// of elements that matched a group.
func ForEachFirst[T any](values []T, arms ...Arm[T]) int {
	d := MustNew(arms...)
	total := 0
	for _, v := range values {
		if d.first(v) {
			total++
		}
	}
	return total
}
