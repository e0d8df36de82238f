package running

import (
	"iter"

	"github.com/xraph/distask/task"
)

// Filter selects running tasks.
type Filter func(Ref) bool

// ByName selects tasks whose type name is name.
func ByName(name string) Filter {
	return func(r Ref) bool { return r.Name == name }
}

// ByKind selects tasks of kind k.
func ByKind(k task.Kind) Filter {
	return func(r Ref) bool { return r.Kind == k }
}

// OnMember selects tasks owned by the member at address.
func OnMember(address string) Filter {
	return func(r Ref) bool { return r.Member == address }
}

// Match reports whether ref satisfies every filter.
func Match(ref Ref, filters ...Filter) bool {
	for _, f := range filters {
		if !f(ref) {
			return false
		}
	}
	return true
}

// Select returns the refs that satisfy every filter.
func Select(refs []Ref, filters ...Filter) []Ref {
	if len(filters) == 0 {
		return refs
	}
	out := make([]Ref, 0, len(refs))
	for _, ref := range refs {
		if Match(ref, filters...) {
			out = append(out, ref)
		}
	}
	return out
}

// Where lazily filters seq.
func Where(seq iter.Seq[Ref], filters ...Filter) iter.Seq[Ref] {
	return func(yield func(Ref) bool) {
		for ref := range seq {
			if Match(ref, filters...) && !yield(ref) {
				return
			}
		}
	}
}
