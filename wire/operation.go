package wire

import "fmt"

// Operation is the op code of a single field/slot change.
// Record fields pack it with the field index into one byte, so record
// operations only use the two upper bits.
type Operation byte

const (
	Replace       Operation = 0
	Delete        Operation = 64
	Add           Operation = 128
	DeleteAndMove Operation = 96
	MoveAndAdd    Operation = 160
	DeleteAndAdd  Operation = 192

	// collection-only operations, written as a full byte
	Clear         Operation = 10
	Push          Operation = 11
	Unshift       Operation = 12
	Reverse       Operation = 15
	Move          Operation = 32
	DeleteByRefID Operation = 33
	AddByRefID    Operation = 129
)

const (
	// SwitchToStructure followed by a refId changes the node the
	// subsequent bytes apply to.
	SwitchToStructure byte = 255
	// TypeID followed by a class id names the concrete class of a
	// polymorphic field value.
	TypeID byte = 213
)

const (
	FieldIndexMask = 0x3F
	FieldOpMask    = 0xC0
	MaxFieldIndex  = 63
)

// IsAdd is true for operations that carry a value and introduce it.
func (op Operation) IsAdd() bool {
	return op&Add == Add
}

// IsDelete is true for operations that free the slot's previous value.
func (op Operation) IsDelete() bool {
	return op&Delete == Delete
}

// HasValue tells whether a collection operation is followed by a value.
func (op Operation) HasValue() bool {
	switch op {
	case Delete, DeleteAndMove, DeleteByRefID, Clear, Reverse, Move:
		return false
	}
	return true
}

// PackField builds a record field op byte.
func PackField(index int, op Operation) byte {
	return byte(index&FieldIndexMask) | byte(op&FieldOpMask)
}

// UnpackField splits a record field op byte.
func UnpackField(b byte) (index int, op Operation) {
	return int(b & FieldIndexMask), Operation(b & FieldOpMask)
}

var opNames = map[Operation]string{
	Replace:       "REPLACE",
	Delete:        "DELETE",
	Add:           "ADD",
	DeleteAndMove: "DELETE_AND_MOVE",
	MoveAndAdd:    "MOVE_AND_ADD",
	DeleteAndAdd:  "DELETE_AND_ADD",
	Clear:         "CLEAR",
	Push:          "PUSH",
	Unshift:       "UNSHIFT",
	Reverse:       "REVERSE",
	Move:          "MOVE",
	DeleteByRefID: "DELETE_BY_REFID",
	AddByRefID:    "ADD_BY_REFID",
}

func (op Operation) String() string {
	if name, ok := opNames[op]; ok {
		return name
	}
	return fmt.Sprintf("OP(%d)", byte(op))
}

// Known reports whether op is a valid collection operation byte.
func (op Operation) Known() bool {
	_, ok := opNames[op]
	return ok
}
