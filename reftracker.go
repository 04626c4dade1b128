package stree

import "github.com/drpcorg/stree/utils"

// ReferenceTracker is the receiver's refId registry. A node whose link
// count drops to zero is only flagged; it is reclaimed after the whole
// patch is applied, so a node moved within one patch survives.
type ReferenceTracker struct {
	refs     map[int]Ref
	refCount map[int]int
	deleted  []int
	flagged  map[int]struct{}
	log      utils.Logger

	onCollect func(ref Ref)
}

func newReferenceTracker(log utils.Logger) *ReferenceTracker {
	return &ReferenceTracker{
		refs:     make(map[int]Ref),
		refCount: make(map[int]int),
		flagged:  make(map[int]struct{}),
		log:      log,
	}
}

func (rt *ReferenceTracker) Get(refID int) (Ref, bool) {
	ref, ok := rt.refs[refID]
	return ref, ok
}

func (rt *ReferenceTracker) Count(refID int) int {
	return rt.refCount[refID]
}

// Len is the number of live refs.
func (rt *ReferenceTracker) Len() int {
	return len(rt.refs)
}

func (rt *ReferenceTracker) add(refID int, ref Ref, increment bool) {
	rt.refs[refID] = ref
	ref.Tree().refID = refID
	if increment {
		rt.refCount[refID]++
	}
	delete(rt.flagged, refID)
}

func (rt *ReferenceTracker) removeRef(refID int) bool {
	count, ok := rt.refCount[refID]
	if !ok {
		rt.log.Warn("refId not found on removal", "refId", refID)
		return false
	}
	if count <= 0 {
		rt.log.Warn("refId count is already zero", "refId", refID)
		return false
	}
	count--
	rt.refCount[refID] = count
	if count == 0 {
		rt.flag(refID)
	}
	return true
}

func (rt *ReferenceTracker) flag(refID int) {
	if _, ok := rt.flagged[refID]; ok {
		return
	}
	rt.flagged[refID] = struct{}{}
	rt.deleted = append(rt.deleted, refID)
}

// collect reclaims the flagged refs that are still unreferenced and
// cascades into their children. It returns the number reclaimed.
func (rt *ReferenceTracker) collect() int {
	collected := 0
	for i := 0; i < len(rt.deleted); i++ {
		refID := rt.deleted[i]
		delete(rt.flagged, refID)
		if rt.refCount[refID] > 0 {
			continue
		}
		ref, ok := rt.refs[refID]
		if !ok {
			continue
		}
		ref.forEachChild(func(_ int, child Ref) {
			childID := child.Tree().refID
			count, ok := rt.refCount[childID]
			if !ok {
				return
			}
			count--
			rt.refCount[childID] = count
			if count <= 0 {
				rt.deleted = append(rt.deleted, childID)
			}
		})
		delete(rt.refs, refID)
		delete(rt.refCount, refID)
		collected++
		if rt.onCollect != nil {
			rt.onCollect(ref)
		}
	}
	rt.deleted = rt.deleted[:0]
	return collected
}
