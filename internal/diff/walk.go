package diff

import (
	"strconv"

	"github.com/roach88/runproof/internal/canon"
)

// collector accumulates changes up to a limit. Once a change is dropped it
// marks itself truncated and the walk unwinds.
type collector struct {
	limit     int
	changes   []Change
	truncated bool
}

func (c *collector) add(ch Change) bool {
	if len(c.changes) >= c.limit {
		c.truncated = true
		return false
	}
	c.changes = append(c.changes, ch)
	return true
}

func (c *collector) full() bool {
	return c.truncated
}

// Values walks left and right and returns the changes beneath path, bounded
// by limit. Missing nodes are passed as nil. The bool reports truncation.
func Values(path string, left, right canon.Value, limit int) ([]Change, bool) {
	if limit < 1 {
		limit = 1
	}
	c := &collector{limit: limit}
	walk(c, path, left, left != nil, right, right != nil)
	return c.changes, c.truncated
}

func walk(c *collector, path string, left canon.Value, hasLeft bool, right canon.Value, hasRight bool) {
	if c.full() {
		return
	}
	switch {
	case !hasLeft && !hasRight:
		return
	case !hasLeft:
		c.add(Change{Path: path, Kind: KindAdded, Right: canon.Clone(right)})
		return
	case !hasRight:
		c.add(Change{Path: path, Kind: KindRemoved, Left: canon.Clone(left)})
		return
	}

	if canon.KindOf(left) != canon.KindOf(right) {
		c.add(Change{Path: path, Kind: KindTypeMismatch, Left: canon.Clone(left), Right: canon.Clone(right)})
		return
	}

	switch lv := left.(type) {
	case canon.Object:
		walkObject(c, path, lv, right.(canon.Object))
	case canon.Array:
		walkArray(c, path, lv, right.(canon.Array))
	default:
		if !canon.Equal(left, right) {
			c.add(Change{Path: path, Kind: KindChanged, Left: canon.Clone(left), Right: canon.Clone(right)})
		}
	}
}

func walkObject(c *collector, path string, left, right canon.Object) {
	keys := make(canon.Object, len(left)+len(right))
	for k := range left {
		keys[k] = nil
	}
	for k := range right {
		keys[k] = nil
	}
	for _, k := range keys.SortedKeys() {
		if c.full() {
			return
		}
		lv, lok := left[k]
		rv, rok := right[k]
		walk(c, path+"/"+canon.EscapePointer(k), orNull(lv), lok, orNull(rv), rok)
	}
}

func walkArray(c *collector, path string, left, right canon.Array) {
	n := max(len(left), len(right))
	for i := 0; i < n; i++ {
		if c.full() {
			return
		}
		var lv, rv canon.Value
		lok, rok := i < len(left), i < len(right)
		if lok {
			lv = orNull(left[i])
		}
		if rok {
			rv = orNull(right[i])
		}
		walk(c, path+"/"+strconv.Itoa(i), lv, lok, rv, rok)
	}
}

func orNull(v canon.Value) canon.Value {
	if v == nil {
		return canon.Null{}
	}
	return v
}
