// Package btree implements spec §4.3 (Page variants) and §4.4 (BTree):
// the copy-on-write, MVCC B+Tree core. Keys and values are parametrically
// typed (spec §9: "replace with parametric polymorphism over (K, V)");
// pages take an explicit, non-owning Context instead of holding a back
// reference to their tree.
package btree

import (
	"reflect"

	"github.com/govetachun/mvccbtree/codec"
)

// Context is the small immutable handle every page operation needs:
// comparator and fanout. It never points back to the owning BTree (spec §9).
type Context[K any, V any] struct {
	Cmp      codec.Comparator[K]
	PageSize int // max keys per page; power of two >= 4 (spec §4.4)
}

// minKeys is ceil(PageSize/2), the minimum occupancy of a non-root page.
func (c *Context[K, V]) minKeys() int {
	return (c.PageSize + 1) / 2
}

func insertAt[T any](s []T, i int, v T) []T {
	out := make([]T, 0, len(s)+1)
	out = append(out, s[:i]...)
	out = append(out, v)
	out = append(out, s[i:]...)
	return out
}

func removeAt[T any](s []T, i int) []T {
	out := make([]T, 0, len(s)-1)
	out = append(out, s[:i]...)
	out = append(out, s[i+1:]...)
	return out
}

// isNullOrEmpty reports whether v is "null" (a nil pointer, interface,
// slice, map, chan, or func) or "empty" (a zero-length string) — the family
// of values spec §4.4's insert/delete contract forbids as a key or value.
// Zero-valued numerics/bools/structs are legitimate keys and values in
// their own right and are not flagged.
func isNullOrEmpty[T any](v T) bool {
	rv := reflect.ValueOf(&v).Elem()
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Slice, reflect.Map, reflect.Chan, reflect.Func:
		return rv.IsNil()
	case reflect.String:
		return rv.Len() == 0
	default:
		return false
	}
}
