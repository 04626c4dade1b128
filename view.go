package stree

import (
	"maps"

	"github.com/drpcorg/stree/classes"
	"github.com/drpcorg/stree/wire"
)

type visibility byte

const (
	visibleParent visibility = iota + 1
	visibleExplicit
)

// StateView is what one observer may see of the view-scoped part of a
// tree. Nodes below tagged fields are filtered: they reach a view only
// after Add (explicit), as ancestors of an added node (parent), or as
// items of an explicitly visible collection.
type StateView struct {
	visible   map[int]visibility
	tags      map[int]map[classes.ViewTag]struct{}
	invisible map[int]struct{}

	changes map[int]*changeSet
	order   []int
}

func NewStateView() *StateView {
	return &StateView{
		visible:   make(map[int]visibility),
		tags:      make(map[int]map[classes.ViewTag]struct{}),
		invisible: make(map[int]struct{}),
		changes:   make(map[int]*changeSet),
	}
}

func tagOf(tags []classes.ViewTag) classes.ViewTag {
	if len(tags) == 0 {
		return classes.DefaultTag
	}
	return tags[0]
}

// Add makes node visible: with the default tag the node and its
// DefaultTag fields, with a positive tag the fields carrying it.
// Children are included recursively unless mounted under another tag.
func (v *StateView) Add(node Ref, tags ...classes.ViewTag) error {
	t := node.Tree()
	if t.root == nil {
		return ErrDetached
	}
	v.add(t, tagOf(tags), maps.Clone(v.visible), make(map[*ChangeTree]struct{}))
	return nil
}

// add grants tag on t and its subtree; prior is the visibility before
// the grant, so items of a collection that became visible on the way
// down still get their fields queued.
func (v *StateView) add(t *ChangeTree, tag classes.ViewTag, prior map[int]visibility, seen map[*ChangeTree]struct{}) {
	if _, ok := seen[t]; ok {
		return
	}
	seen[t] = struct{}{}
	id := t.refID
	wasVisible := visibleTree(prior, t, make(map[*ChangeTree]struct{}))
	wasExplicit := v.visible[id] == visibleExplicit
	_, wasInvisible := v.invisible[id]
	delete(v.invisible, id)

	if tag == classes.DefaultTag || t.isCollection() {
		v.visible[id] = visibleExplicit
	} else {
		if _, ok := v.visible[id]; !ok {
			v.visible[id] = visibleParent
		}
		v.tagSet(id)[tag] = struct{}{}
	}
	v.addParentOf(t, tag)

	if _, ok := t.ref.(*Struct); ok {
		t.ref.forEachIndex(func(index int) {
			switch ftag := t.ref.tagAt(index); ftag {
			case classes.Untagged:
				if t.isFiltered && (!wasVisible || wasInvisible) {
					v.queueAdd(t, index)
				}
			case tag:
				v.queueAdd(t, index)
			}
		})
	} else if t.isFiltered && !wasExplicit {
		t.ref.forEachIndex(func(index int) {
			v.queueAdd(t, index)
		})
	}

	t.ref.forEachChild(func(index int, child Ref) {
		ftag := t.ref.tagAt(index)
		if ftag != classes.Untagged && ftag != tag {
			return
		}
		v.add(child.Tree(), tag, prior, seen)
	})
}

// addParentOf makes the filtered ancestors of t visible and queues the
// links leading down to it.
func (v *StateView) addParentOf(t *ChangeTree, tag classes.ViewTag) {
	p := t.Parent()
	if p == nil {
		return
	}
	index := p.ref.indexOf(t)
	if index < 0 {
		return
	}
	ptag := p.ref.tagAt(index)
	if !p.isFiltered && ptag == classes.Untagged {
		return
	}
	if p.isFiltered {
		if _, ok := v.visible[p.refID]; !ok {
			v.visible[p.refID] = visibleParent
			v.addParentOf(p, tag)
		}
	}
	if ptag == tag && tag != classes.DefaultTag {
		v.tagSet(p.refID)[tag] = struct{}{}
	}
	v.queueAdd(p, index)
}

func (v *StateView) queueAdd(t *ChangeTree, index int) {
	if c := t.filteredChanges.get(index); c != nil && c.op == wire.Delete {
		return
	}
	cs := v.changesFor(t.refID)
	if cs.get(index) == nil {
		cs.put(index, wire.Add, nil)
	} else {
		c := cs.get(index)
		c.op, c.prev = wire.Add, nil
	}
}

func (v *StateView) queueDelete(t *ChangeTree, index int, prev any) {
	cs := v.changesFor(t.refID)
	if c := cs.get(index); c != nil {
		c.op, c.prev = wire.Delete, prev
		return
	}
	cs.put(index, wire.Delete, prev)
}

// Remove takes back what Add granted with the same tag and queues the
// deletions for the observer.
func (v *StateView) Remove(node Ref, tags ...classes.ViewTag) error {
	t := node.Tree()
	if t.root == nil {
		return ErrDetached
	}
	tag := tagOf(tags)
	s, isStruct := t.ref.(*Struct)
	if tag != classes.DefaultTag {
		if isStruct {
			for _, index := range s.class.IndexesByTag(tag) {
				v.queueDelete(t, index, s.values[index])
			}
		}
		if set := v.tags[t.refID]; set != nil {
			delete(set, tag)
		}
		return nil
	}
	p := t.Parent()
	index := -1
	if p != nil {
		index = p.ref.indexOf(t)
	}
	switch {
	case p != nil && index >= 0 && p.isFiltered && p.isCollection():
		v.queueDelete(p, index, t.ref)
	case p != nil && index >= 0 && p.ref.tagAt(index) != classes.Untagged:
		v.queueDelete(p, index, t.ref)
	case isStruct:
		for _, index := range s.class.TaggedIndexes() {
			v.queueDelete(t, index, s.values[index])
		}
	}
	v.forget(t, make(map[*ChangeTree]struct{}))
	return nil
}

func (v *StateView) forget(t *ChangeTree, seen map[*ChangeTree]struct{}) {
	if _, ok := seen[t]; ok {
		return
	}
	seen[t] = struct{}{}
	delete(v.visible, t.refID)
	delete(v.tags, t.refID)
	t.ref.forEachChild(func(index int, child Ref) {
		if child.Tree().isFiltered {
			v.forget(child.Tree(), seen)
		}
	})
}

func (v *StateView) Has(node Ref) bool {
	_, ok := v.visible[node.Tree().refID]
	return ok
}

func (v *StateView) HasTag(node Ref, tag classes.ViewTag) bool {
	_, ok := v.tags[node.Tree().refID][tag]
	return ok
}

// Clear forgets every grant without queueing deletions; the observer
// needs a fresh EncodeAllView afterwards.
func (v *StateView) Clear() {
	clear(v.visible)
	clear(v.tags)
	clear(v.invisible)
	v.clearChanges()
}

func (v *StateView) tagSet(id int) map[classes.ViewTag]struct{} {
	set := v.tags[id]
	if set == nil {
		set = make(map[classes.ViewTag]struct{})
		v.tags[id] = set
	}
	return set
}

func (v *StateView) changesFor(id int) *changeSet {
	cs := v.changes[id]
	if cs == nil {
		cs = &changeSet{}
		v.changes[id] = cs
		v.order = append(v.order, id)
	}
	return cs
}

func (v *StateView) clearChanges() {
	clear(v.changes)
	v.order = v.order[:0]
}

func (v *StateView) isVisible(t *ChangeTree) bool {
	return visibleTree(v.visible, t, make(map[*ChangeTree]struct{}))
}

// visibleTree holds for unfiltered and granted trees, for untagged fields
// of a visible record and for items of an explicitly visible collection.
func visibleTree(visible map[int]visibility, t *ChangeTree, seen map[*ChangeTree]struct{}) bool {
	if !t.isFiltered {
		return true
	}
	if _, ok := visible[t.refID]; ok {
		return true
	}
	if _, ok := seen[t]; ok {
		return false
	}
	seen[t] = struct{}{}
	for _, p := range t.parents {
		if _, ok := p.ref.(*Struct); ok {
			if p.ref.tagAt(p.ref.indexOf(t)) == classes.Untagged && visibleTree(visible, p, seen) {
				return true
			}
		} else if visible[p.refID] == visibleExplicit {
			return true
		}
	}
	return false
}

func (v *StateView) refVisible(x any) bool {
	r, ok := x.(Ref)
	return ok && v.isVisible(r.Tree())
}

// itemVisible tells whether the view sees x as an item of collection t.
// A removed item is no longer linked to t, so the grant on t counts.
func (v *StateView) itemVisible(t *ChangeTree, x any) bool {
	return v.visible[t.refID] == visibleExplicit || v.refVisible(x)
}

// fieldVisible is the record filter of view-scoped fields.
func (v *StateView) fieldVisible(t *ChangeTree, index int, value, prev any) bool {
	switch tag := t.ref.tagAt(index); tag {
	case classes.Untagged:
		return true
	case classes.DefaultTag:
		if v.visible[t.refID] == visibleExplicit {
			return true
		}
		if value != nil {
			return v.refVisible(value)
		}
		return prev != nil && v.refVisible(prev)
	default:
		_, ok := v.tags[t.refID][tag]
		return ok
	}
}
