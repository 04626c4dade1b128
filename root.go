package stree

// Root is the registry of one encoded tree: it hands out refIds, counts
// the links to every node and keeps the nodes with pending changes in
// the order they have to be written (a node after the one that links
// it).
type Root struct {
	trees    map[int]*ChangeTree
	refCount map[int]int
	nextID   int

	changes         treeList
	filteredChanges treeList
	attached        treeList

	maxSequence int
}

func newRoot(maxSequence int) *Root {
	return &Root{
		trees:       make(map[int]*ChangeTree),
		refCount:    make(map[int]int),
		maxSequence: maxSequence,
	}
}

// Tree returns the attached tree with the given refId.
func (r *Root) Tree(refID int) *ChangeTree {
	return r.trees[refID]
}

func (r *Root) RefCount(refID int) int {
	return r.refCount[refID]
}

// Len is the number of attached nodes.
func (r *Root) Len() int {
	return len(r.trees)
}

// add registers one more link to t; it returns true when t got
// attached by this call.
func (r *Root) add(t *ChangeTree) bool {
	first := t.idRoot != r
	if first {
		t.refID = r.nextID
		t.idRoot = r
		r.nextID++
	}
	count := r.refCount[t.refID]
	r.refCount[t.refID] = count + 1
	if count > 0 {
		r.moveToEnd(t, make(map[*ChangeTree]struct{}))
		t.refilter(make(map[*ChangeTree]struct{}))
		return false
	}
	t.root = r
	r.trees[t.refID] = t
	r.attached.add(t)
	t.checkIsFiltered()
	t.resetForAttach(first)
	t.ref.forEachChild(func(_ int, child Ref) {
		r.add(child.Tree())
	})
	return true
}

// remove drops one link to t and detaches it recursively when the
// last one is gone. It returns the remaining link count.
func (r *Root) remove(t *ChangeTree) int {
	if t.root != r {
		return 0
	}
	count := r.refCount[t.refID] - 1
	if count > 0 {
		r.refCount[t.refID] = count
		t.refilter(make(map[*ChangeTree]struct{}))
		return count
	}
	delete(r.refCount, t.refID)
	delete(r.trees, t.refID)
	r.changes.remove(t)
	r.filteredChanges.remove(t)
	r.attached.remove(t)
	t.root = nil
	t.changes.clear()
	t.filteredChanges.clear()
	t.seq = false
	t.rewrite = false
	t.ref.forEachChild(func(_ int, child Ref) {
		r.remove(child.Tree())
	})
	return 0
}

// moveToEnd keeps a node that gained a link (and its subtree) behind
// the nodes that introduce it.
func (r *Root) moveToEnd(t *ChangeTree, seen map[*ChangeTree]struct{}) {
	if _, ok := seen[t]; ok {
		return
	}
	seen[t] = struct{}{}
	r.attached.moveToEnd(t)
	r.changes.moveToEnd(t)
	r.filteredChanges.moveToEnd(t)
	t.ref.forEachChild(func(_ int, child Ref) {
		r.moveToEnd(child.Tree(), seen)
	})
}
