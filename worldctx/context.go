// Package worldctx provides Context, the ordered key-value store scoped to
// one in-flight exploration path. It is snapshotted as part of every world
// checkpoint and restored on rollback.
package worldctx

import "venomqa.dev/venomqa/value"

// entry pairs a stored value with the name of the action that last wrote it,
// for debugging (spec.md §3: "records, per write, which action wrote the key").
type entry struct {
	val        value.Value
	writtenBy  string
	insertSeq  int
}

// Context is an ordered key→value.Value mapping. Keys are opaque strings
// chosen by actions. Not safe for concurrent use — the scheduler is single
// threaded per spec.md §5.
type Context struct {
	entries map[string]entry
	order   []string // insertion order, for deterministic iteration
	seq     int
}

// New creates an empty Context.
func New() *Context {
	return &Context{entries: make(map[string]entry)}
}

// Set stores value under key, attributing the write to actionName.
func (c *Context) Set(key string, v value.Value, actionName string) {
	if _, exists := c.entries[key]; !exists {
		c.order = append(c.order, key)
	}
	c.seq++
	c.entries[key] = entry{val: v, writtenBy: actionName, insertSeq: c.seq}
}

// Get returns the value stored under key, or value.Null with ok=false.
func (c *Context) Get(key string) (value.Value, bool) {
	e, ok := c.entries[key]
	if !ok {
		return value.Null, false
	}
	return e.val, true
}

// WrittenBy returns the name of the action that last wrote key, "" if unset.
func (c *Context) WrittenBy(key string) string {
	return c.entries[key].writtenBy
}

// Keys returns all keys in insertion order.
func (c *Context) Keys() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Delete removes a key, used when an action invalidates prior state (e.g.
// delete_item clearing a stored id, per spec.md §8.2 Scenario B).
func (c *Context) Delete(key string) {
	if _, ok := c.entries[key]; ok {
		delete(c.entries, key)
		for i, k := range c.order {
			if k == key {
				c.order = append(c.order[:i], c.order[i+1:]...)
				break
			}
		}
	}
}

// Snapshot returns a deep copy of the Context suitable for storing in a
// checkpoint token.
func (c *Context) Snapshot() *Context {
	cp := &Context{
		entries: make(map[string]entry, len(c.entries)),
		order:   make([]string, len(c.order)),
		seq:     c.seq,
	}
	copy(cp.order, c.order)
	for k, v := range c.entries {
		cp.entries[k] = v
	}
	return cp
}

// Restore replaces this Context's contents with those of a snapshot, without
// changing the Context's identity (so World can hold onto the same pointer).
func (c *Context) Restore(snap *Context) {
	c.entries = make(map[string]entry, len(snap.entries))
	for k, v := range snap.entries {
		c.entries[k] = v
	}
	c.order = make([]string, len(snap.order))
	copy(c.order, snap.order)
	c.seq = snap.seq
}

// Projection returns the subset of keys named in declared (sorted input
// expected by caller), each rendered as canonical JSON, for use as
// StateFingerprint input (spec.md §3: "subset of context keys declared in
// stateFromContext, sorted").
func (c *Context) Projection(declared []string) map[string]string {
	out := make(map[string]string, len(declared))
	for _, k := range declared {
		if v, ok := c.entries[k]; ok {
			out[k] = v.val.Canonical()
		} else {
			out[k] = "null"
		}
	}
	return out
}
