package stree

import (
	"github.com/drpcorg/stree/classes"
	"github.com/drpcorg/stree/wire"
)

// ChangeTree tracks what changed in one node since the last flush.
//
// Pending changes are kept in two sets: changes go to every observer,
// filteredChanges only to views that may see them. A field lands in the
// filtered set when it carries a view tag or the whole node is
// filtered (mounted below a tagged field). The cumulative state that a
// full encode needs is read from the node itself.
//
// Collections track one of three modes per flush window: indexed
// (merged per index, the default), sequential (positional operations
// replayed in order) and rewrite (CLEAR, then every present item).
type ChangeTree struct {
	ref     Ref
	refID   int
	root    *Root
	idRoot  *Root
	parents []*ChangeTree

	changes         changeSet
	filteredChanges changeSet

	isFiltered          bool
	isPartiallyFiltered bool

	seq     bool
	rewrite bool
}

func newChangeTree(ref Ref) *ChangeTree {
	return &ChangeTree{ref: ref, refID: -1}
}

func (t *ChangeTree) Ref() Ref {
	return t.ref
}

// RefID is -1 until the node is attached to a root or decoded.
func (t *ChangeTree) RefID() int {
	return t.refID
}

func (t *ChangeTree) Attached() bool {
	return t.root != nil
}

func (t *ChangeTree) IsFiltered() bool {
	return t.isFiltered
}

func (t *ChangeTree) IsPartiallyFiltered() bool {
	return t.isPartiallyFiltered
}

// Parent is the first node holding this one, nil for a root.
func (t *ChangeTree) Parent() *ChangeTree {
	if len(t.parents) == 0 {
		return nil
	}
	return t.parents[0]
}

func (t *ChangeTree) HasChanges() bool {
	return t.changes.len() > 0 || t.filteredChanges.len() > 0 || t.rewrite
}

func (t *ChangeTree) isCollection() bool {
	return t.ref.Type().Kind.IsCollection()
}

func (t *ChangeTree) pendingFor(index int) (*changeSet, bool) {
	if t.isFiltered || (index >= 0 && t.ref.tagAt(index) != classes.Untagged) {
		return &t.filteredChanges, true
	}
	return &t.changes, false
}

func (t *ChangeTree) markDirty(filtered bool) {
	if t.root == nil {
		return
	}
	if filtered {
		t.root.filteredChanges.add(t)
	} else {
		t.root.changes.add(t)
	}
}

// change records op at index: a pending DELETE becomes DELETE_AND_ADD,
// any other pending operation stays as it is.
func (t *ChangeTree) change(index int, op wire.Operation, prev any) {
	if t.root == nil {
		return
	}
	cs, filtered := t.pendingFor(index)
	if !t.rewrite {
		if c := cs.get(index); c == nil {
			cs.put(index, op, prev)
		} else if c.op == wire.Delete {
			c.op = wire.DeleteAndAdd
		}
	}
	t.markDirty(filtered)
}

func (t *ChangeTree) delete(index int, prev any) {
	if t.root == nil {
		return
	}
	cs, filtered := t.pendingFor(index)
	if !t.rewrite {
		if c := cs.get(index); c == nil {
			cs.put(index, wire.Delete, prev)
		} else {
			c.op = wire.Delete
		}
	}
	t.markDirty(filtered)
}

// sequence appends a positional operation of a collection.
func (t *ChangeTree) sequence(c change) {
	if t.root == nil {
		return
	}
	cs, filtered := t.pendingFor(-1)
	c.seq = true
	cs.push(c)
	t.markDirty(filtered)
}

func (t *ChangeTree) enterRewrite() {
	if t.root == nil {
		return
	}
	t.changes.clear()
	t.filteredChanges.clear()
	t.seq = false
	t.rewrite = true
	t.markDirty(t.isFiltered)
}

// shifting decides how a collection records a positional operation:
// true means append a sequential entry, false means nothing needs to
// be recorded because the window rewrites the collection (or the
// node is detached).
func (t *ChangeTree) shifting(refItems bool) bool {
	if t.root == nil || t.rewrite {
		return false
	}
	cs, _ := t.pendingFor(-1)
	if t.seq {
		if cs.len() >= t.root.maxSequence {
			t.enterRewrite()
			return false
		}
		return true
	}
	if cs.len() > 0 || (t.isFiltered && refItems) {
		t.enterRewrite()
		return false
	}
	t.seq = true
	return true
}

func (t *ChangeTree) discard(filtered bool) {
	if filtered {
		t.filteredChanges.clear()
	} else {
		t.changes.clear()
	}
	if t.changes.len() == 0 && t.filteredChanges.len() == 0 {
		t.seq = false
		t.rewrite = false
	}
}

func (t *ChangeTree) addParent(p *ChangeTree) {
	t.parents = append(t.parents, p)
}

func (t *ChangeTree) removeParent(p *ChangeTree) {
	for i, q := range t.parents {
		if q == p {
			t.parents = append(t.parents[:i], t.parents[i+1:]...)
			return
		}
	}
}

// attach links child below t and registers it with t's root.
func (t *ChangeTree) attach(child Ref) {
	ct := child.Tree()
	ct.addParent(t)
	if t.root != nil {
		t.root.add(ct)
	}
}

func (t *ChangeTree) detach(child Ref) {
	ct := child.Tree()
	ct.removeParent(t)
	if t.root != nil {
		t.root.remove(ct)
	}
}

// checkIsFiltered marks a node filtered when every link to it is view
// scoped: the holder is filtered itself or holds it in tagged fields only.
func (t *ChangeTree) checkIsFiltered() {
	t.isFiltered = len(t.parents) > 0
	for _, p := range t.parents {
		if !scopedLink(p, t) {
			t.isFiltered = false
			break
		}
	}
	s, ok := t.ref.(*Struct)
	t.isPartiallyFiltered = ok && s.class.HasViewTags()
}

func scopedLink(p, t *ChangeTree) bool {
	if p.isFiltered {
		return true
	}
	s, ok := p.ref.(*Struct)
	if !ok {
		return false
	}
	linked := false
	for i, v := range s.values {
		if r, ok := v.(Ref); ok && r.Tree() == t {
			if s.tagAt(i) == classes.Untagged {
				return false
			}
			linked = true
		}
	}
	return linked
}

// refilter reclassifies an attached node whose links changed. Pending
// changes follow the node into its new partition; a node that became
// shared is re-expressed for the observers that never received it.
// Children are reclassified after it.
func (t *ChangeTree) refilter(seen map[*ChangeTree]struct{}) {
	if _, ok := seen[t]; ok || t.root == nil {
		return
	}
	seen[t] = struct{}{}
	was := t.isFiltered
	t.checkIsFiltered()
	if t.isFiltered == was {
		return
	}
	if t.isFiltered {
		t.hideChanges()
	} else {
		t.shareChanges()
	}
	t.ref.forEachChild(func(_ int, child Ref) {
		child.Tree().refilter(seen)
	})
}

// hideChanges moves the shared pending changes of a node that became
// filtered into its filtered set.
func (t *ChangeTree) hideChanges() {
	for _, c := range t.changes.list {
		if c.seq {
			t.filteredChanges.push(c)
		} else if t.filteredChanges.get(c.index) == nil {
			t.filteredChanges.put(c.index, c.op, c.prev)
		}
	}
	t.changes.clear()
	t.root.changes.remove(t)
	if t.filteredChanges.len() > 0 || t.rewrite {
		t.markDirty(true)
	}
}

// shareChanges writes the shared state of a node that became shared.
// Its untagged pending changes are dropped: views read the shared
// stream too.
func (t *ChangeTree) shareChanges() {
	if t.isCollection() {
		t.enterRewrite()
		t.root.filteredChanges.remove(t)
		return
	}
	var kept []change
	for _, c := range t.filteredChanges.list {
		if t.ref.tagAt(c.index) != classes.Untagged {
			kept = append(kept, c)
		}
	}
	t.filteredChanges.clear()
	for _, c := range kept {
		t.filteredChanges.put(c.index, c.op, c.prev)
	}
	if t.filteredChanges.len() == 0 {
		t.root.filteredChanges.remove(t)
	}
	s := t.ref.(*Struct)
	for i, v := range s.values {
		if s.tagAt(i) != classes.Untagged || t.changes.get(i) != nil {
			continue
		}
		switch {
		case v != nil:
			t.changes.put(i, wire.Add, nil)
		case s.class.Fields[i].Default != nil:
			t.changes.put(i, wire.Delete, nil)
		default:
			continue
		}
		t.markDirty(false)
	}
}

// resetForAttach re-expresses the node's present state as pending
// changes. A re-attached collection is rewritten since the receiver
// may still hold its old items.
func (t *ChangeTree) resetForAttach(first bool) {
	t.changes.clear()
	t.filteredChanges.clear()
	t.seq = false
	t.rewrite = false
	if !first && t.isCollection() {
		t.enterRewrite()
		return
	}
	t.ref.forEachIndex(func(index int) {
		cs, filtered := t.pendingFor(index)
		cs.put(index, wire.Add, nil)
		t.markDirty(filtered)
	})
	s, ok := t.ref.(*Struct)
	if !ok {
		return
	}
	for i, v := range s.values {
		if v == nil && (!first || s.class.Fields[i].Default != nil) {
			cs, filtered := t.pendingFor(i)
			cs.put(i, wire.Delete, nil)
			t.markDirty(filtered)
		}
	}
}
