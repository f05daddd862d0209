// File: filterchain/entries.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Immutable entry-list helpers shared by Chain and Builder. Every helper
// returns a fresh slice; published slices are never modified in place.

package filterchain

import (
	"github.com/samber/oops"

	"github.com/momentics/hioload-mina/api"
)

type entry struct {
	name   string
	filter api.Filter
}

// position resolves the insertion index inside es.
type position func(es []*entry) (int, error)

func first(es []*entry) (int, error) { return 0, nil }

func last(es []*entry) (int, error) { return len(es), nil }

func before(base string) position {
	return func(es []*entry) (int, error) {
		i := indexOf(es, base)
		if i < 0 {
			return 0, notFound(base)
		}
		return i, nil
	}
}

func after(base string) position {
	return func(es []*entry) (int, error) {
		i := indexOf(es, base)
		if i < 0 {
			return 0, notFound(base)
		}
		return i + 1, nil
	}
}

func indexOf(es []*entry, name string) int {
	for i, e := range es {
		if e.name == name {
			return i
		}
	}
	return -1
}

func insertAt(es []*entry, i int, e *entry) []*entry {
	out := make([]*entry, 0, len(es)+1)
	out = append(out, es[:i]...)
	out = append(out, e)
	return append(out, es[i:]...)
}

func removeAt(es []*entry, i int) []*entry {
	out := make([]*entry, 0, len(es)-1)
	out = append(out, es[:i]...)
	return append(out, es[i+1:]...)
}

func replaceAt(es []*entry, i int, e *entry) []*entry {
	out := make([]*entry, len(es))
	copy(out, es)
	out[i] = e
	return out
}

func names(es []*entry) []string {
	out := make([]string, len(es))
	for i, e := range es {
		out[i] = e.name
	}
	return out
}

func validate(name string, f api.Filter) error {
	if name == "" {
		return oops.In("filterchain").Wrapf(api.ErrInvalidArgument, "empty filter name")
	}
	if f == nil {
		return oops.In("filterchain").With("filter", name).Wrapf(api.ErrInvalidArgument, "nil filter")
	}
	return nil
}

func duplicate(name string) error {
	return oops.In("filterchain").With("filter", name).Wrapf(api.ErrDuplicateFilter, "filter %q", name)
}

func notFound(name string) error {
	return oops.In("filterchain").With("filter", name).Wrapf(api.ErrFilterNotFound, "filter %q", name)
}
