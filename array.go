package stree

import (
	"slices"

	"github.com/drpcorg/stree/classes"
	"github.com/drpcorg/stree/wire"
	"github.com/pkg/errors"
)

// Array is an ordered list of values of one element type.
type Array struct {
	tree  *ChangeTree
	typ   *classes.Type
	items []any
}

func NewArray(child *classes.Type) *Array {
	a := &Array{typ: classes.ArrayOf(child)}
	a.tree = newChangeTree(a)
	return a
}

func (a *Array) Tree() *ChangeTree { return a.tree }

func (a *Array) Type() *classes.Type { return a.typ }

func (a *Array) typeAt(int) *classes.Type { return a.typ.Child }

func (a *Array) tagAt(int) classes.ViewTag { return classes.Untagged }

func (a *Array) valueAt(index int) any {
	if index < 0 || index >= len(a.items) {
		return nil
	}
	return a.items[index]
}

func (a *Array) indexOf(child *ChangeTree) int {
	for i, v := range a.items {
		if r, ok := v.(Ref); ok && r.Tree() == child {
			return i
		}
	}
	return -1
}

func (a *Array) forEachChild(fn func(index int, child Ref)) {
	for i, v := range a.items {
		if r, ok := v.(Ref); ok {
			fn(i, r)
		}
	}
}

func (a *Array) forEachIndex(fn func(index int)) {
	for i, v := range a.items {
		if v != nil {
			fn(i)
		}
	}
}

func (a *Array) Len() int {
	return len(a.items)
}

func (a *Array) At(index int) any {
	return a.valueAt(index)
}

// Values returns a copy of the items.
func (a *Array) Values() []any {
	return slices.Clone(a.items)
}

func (a *Array) IndexOf(v any) int {
	return slices.Index(a.items, v)
}

type recordMode int

const (
	recordNone recordMode = iota
	recordIndexed
	recordSequence
)

func (a *Array) modeFor(shift bool) recordMode {
	t := a.tree
	if t.root == nil || t.rewrite {
		return recordNone
	}
	if !shift && !t.seq {
		return recordIndexed
	}
	if t.shifting(a.typ.Child.IsRef()) {
		return recordSequence
	}
	return recordNone
}

func (a *Array) link(v any) {
	if r, ok := v.(Ref); ok {
		a.tree.attach(r)
	}
}

func (a *Array) unlink(v any) {
	if r, ok := v.(Ref); ok {
		a.tree.detach(r)
	}
}

func (a *Array) checkAll(values []any) ([]any, error) {
	checked := make([]any, len(values))
	for i, v := range values {
		c, err := checkValue(a.typ.Child, v)
		if err != nil {
			return nil, err
		}
		checked[i] = c
	}
	return checked, nil
}

func (a *Array) Push(values ...any) error {
	checked, err := a.checkAll(values)
	if err != nil {
		return err
	}
	for _, v := range checked {
		i := len(a.items)
		a.items = append(a.items, v)
		switch a.modeFor(false) {
		case recordIndexed:
			a.tree.change(i, wire.Add, nil)
		case recordSequence:
			a.tree.sequence(change{index: i, op: wire.Push, value: v})
		}
		a.link(v)
	}
	return nil
}

// Pop removes the last item; nil for an empty array.
func (a *Array) Pop() any {
	n := len(a.items)
	if n == 0 {
		return nil
	}
	v := a.items[n-1]
	a.items[n-1] = nil
	a.items = a.items[:n-1]
	switch a.modeFor(false) {
	case recordIndexed:
		a.tree.delete(n-1, v)
	case recordSequence:
		a.tree.sequence(change{index: n - 1, op: wire.DeleteAndMove, prev: v})
	}
	a.unlink(v)
	return v
}

func (a *Array) SetAt(index int, v any) error {
	if index == len(a.items) {
		return a.Push(v)
	}
	if index < 0 || index > len(a.items) {
		return errors.Wrapf(ErrIndexRange, "set %d of %d", index, len(a.items))
	}
	v, err := checkValue(a.typ.Child, v)
	if err != nil {
		return err
	}
	prev := a.items[index]
	if prev == v {
		return nil
	}
	a.items[index] = v
	a.unlink(prev)
	switch a.modeFor(false) {
	case recordIndexed:
		op := wire.Replace
		if a.typ.Child.IsRef() {
			op = wire.DeleteAndAdd
		}
		a.tree.change(index, op, prev)
	case recordSequence:
		a.tree.sequence(change{index: index, op: wire.Replace, value: v, prev: prev})
	}
	a.link(v)
	return nil
}

// Shift removes the first item; nil for an empty array.
func (a *Array) Shift() any {
	return a.RemoveAt(0)
}

func (a *Array) RemoveAt(index int) any {
	n := len(a.items)
	if index < 0 || index >= n {
		return nil
	}
	if index == n-1 {
		return a.Pop()
	}
	v := a.items[index]
	a.items = slices.Delete(a.items, index, index+1)
	if a.modeFor(true) == recordSequence {
		a.tree.sequence(change{index: index, op: wire.DeleteAndMove, prev: v})
	}
	a.unlink(v)
	return v
}

// Unshift prepends values keeping their order.
func (a *Array) Unshift(values ...any) error {
	checked, err := a.checkAll(values)
	if err != nil {
		return err
	}
	for k := len(checked) - 1; k >= 0; k-- {
		a.insert(0, checked[k], wire.Unshift)
	}
	return nil
}

func (a *Array) InsertAt(index int, v any) error {
	if index == len(a.items) {
		return a.Push(v)
	}
	if index < 0 || index > len(a.items) {
		return errors.Wrapf(ErrIndexRange, "insert at %d of %d", index, len(a.items))
	}
	v, err := checkValue(a.typ.Child, v)
	if err != nil {
		return err
	}
	op := wire.MoveAndAdd
	if index == 0 {
		op = wire.Unshift
	}
	a.insert(index, v, op)
	return nil
}

func (a *Array) insert(index int, v any, op wire.Operation) {
	a.items = slices.Insert(a.items, index, v)
	if a.modeFor(true) == recordSequence {
		a.tree.sequence(change{index: index, op: op, value: v})
	}
	a.link(v)
}

// Splice removes deleteCount items at start and inserts values there.
func (a *Array) Splice(start, deleteCount int, values ...any) ([]any, error) {
	if start < 0 || start > len(a.items) {
		return nil, errors.Wrapf(ErrIndexRange, "splice at %d of %d", start, len(a.items))
	}
	checked, err := a.checkAll(values)
	if err != nil {
		return nil, err
	}
	deleteCount = min(max(deleteCount, 0), len(a.items)-start)
	removed := make([]any, 0, deleteCount)
	for i := 0; i < deleteCount; i++ {
		removed = append(removed, a.RemoveAt(start))
	}
	for k, v := range checked {
		if start+k == len(a.items) {
			_ = a.Push(v)
			continue
		}
		op := wire.MoveAndAdd
		if start+k == 0 {
			op = wire.Unshift
		}
		a.insert(start+k, v, op)
	}
	return removed, nil
}

// Move relocates the item at from so that it ends up at index to.
func (a *Array) Move(from, to int) error {
	n := len(a.items)
	if from < 0 || from >= n || to < 0 || to >= n {
		return errors.Wrapf(ErrIndexRange, "move %d to %d of %d", from, to, n)
	}
	if from == to {
		return nil
	}
	moveItem(a.items, from, to)
	if a.modeFor(true) == recordSequence {
		a.tree.sequence(change{index: from, to: to, op: wire.Move})
	}
	return nil
}

func moveItem(items []any, from, to int) {
	v := items[from]
	if from < to {
		copy(items[from:to], items[from+1:to+1])
	} else {
		copy(items[to+1:from+1], items[to:from])
	}
	items[to] = v
}

func (a *Array) Reverse() {
	if len(a.items) < 2 {
		return
	}
	slices.Reverse(a.items)
	if a.modeFor(true) == recordSequence {
		a.tree.sequence(change{index: -1, op: wire.Reverse})
	}
}

// Sort orders the items by cmp; the window is rewritten.
func (a *Array) Sort(cmp func(x, y any) int) {
	slices.SortStableFunc(a.items, cmp)
	a.tree.enterRewrite()
}

func (a *Array) Clear() {
	old := a.items
	a.items = nil
	a.tree.enterRewrite()
	for _, v := range old {
		a.unlink(v)
	}
}
