package stree

import "github.com/drpcorg/stree/wire"

// change is one pending operation. Indexed changes are merged per wire
// index and read the live value at encode time; positional changes
// (seq) are replayed in order with the value captured when recorded.
type change struct {
	index int
	op    wire.Operation
	prev  any
	value any
	to    int
	seq   bool
}

type changeSet struct {
	list    []change
	indexes map[int]int
}

func (cs *changeSet) get(index int) *change {
	if pos, ok := cs.indexes[index]; ok {
		return &cs.list[pos]
	}
	return nil
}

func (cs *changeSet) put(index int, op wire.Operation, prev any) {
	if cs.indexes == nil {
		cs.indexes = make(map[int]int)
	}
	cs.indexes[index] = len(cs.list)
	cs.list = append(cs.list, change{index: index, op: op, prev: prev})
}

func (cs *changeSet) push(c change) {
	cs.list = append(cs.list, c)
}

func (cs *changeSet) len() int {
	return len(cs.list)
}

func (cs *changeSet) clear() {
	cs.list = cs.list[:0]
	clear(cs.indexes)
}

// treeList is an insertion-ordered set of trees. Removal leaves a hole
// that is compacted once holes dominate.
type treeList struct {
	order []*ChangeTree
	pos   map[*ChangeTree]int
	holes int
}

func (l *treeList) has(t *ChangeTree) bool {
	_, ok := l.pos[t]
	return ok
}

func (l *treeList) add(t *ChangeTree) {
	if l.pos == nil {
		l.pos = make(map[*ChangeTree]int)
	}
	if _, ok := l.pos[t]; ok {
		return
	}
	l.pos[t] = len(l.order)
	l.order = append(l.order, t)
}

func (l *treeList) remove(t *ChangeTree) {
	i, ok := l.pos[t]
	if !ok {
		return
	}
	delete(l.pos, t)
	l.order[i] = nil
	l.holes++
	if l.holes > 32 && l.holes*2 > len(l.order) {
		l.compact()
	}
}

// moveToEnd reorders a present tree after every other one.
func (l *treeList) moveToEnd(t *ChangeTree) {
	i, ok := l.pos[t]
	if !ok || i == len(l.order)-1 {
		return
	}
	l.order[i] = nil
	l.holes++
	l.pos[t] = len(l.order)
	l.order = append(l.order, t)
}

func (l *treeList) compact() {
	j := 0
	for _, t := range l.order {
		if t != nil {
			l.order[j] = t
			l.pos[t] = j
			j++
		}
	}
	clear(l.order[j:])
	l.order = l.order[:j]
	l.holes = 0
}

// items returns the present trees in order.
func (l *treeList) items() []*ChangeTree {
	if l.holes > 0 {
		l.compact()
	}
	return l.order
}

func (l *treeList) len() int {
	return len(l.pos)
}

func (l *treeList) clear() {
	clear(l.order)
	l.order = l.order[:0]
	clear(l.pos)
	l.holes = 0
}
