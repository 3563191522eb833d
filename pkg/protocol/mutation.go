package protocol

import (
	"errors"
	"strconv"
)

// NodeID identifies a node. IDs are assigned by the diffing engine, are
// unique among live nodes, and may be reused after the node is removed.
type NodeID uint64

// String returns the decimal form of the ID.
func (id NodeID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// Op is the type of a mutation instruction.
type Op uint8

// Mutation opcodes.
const (
	OpCreateElement       Op = 0x01 // Create element, register, push
	OpCreateElementNs     Op = 0x02 // Create namespaced element, register, push
	OpCreateTextNode      Op = 0x03 // Create text node, register, push
	OpCreatePlaceholder   Op = 0x04 // Create comment anchor, register, push
	OpAppendChildren      Op = 0x05 // Pop n, append to new top of stack
	OpInsertBefore        Op = 0x06 // Pop n, insert before ID
	OpInsertAfter         Op = 0x07 // Pop n, insert after ID
	OpRemove              Op = 0x08 // Detach ID and release it
	OpReplaceWith         Op = 0x09 // Pop n, replace ID with them, release ID
	OpSetAttribute        Op = 0x0A // Set attribute on ID
	OpRemoveAttribute     Op = 0x0B // Remove attribute from ID
	OpSetText             Op = 0x0C // Replace text content of ID
	OpNewEventListener    Op = 0x0D // Register listener for (category, ID)
	OpRemoveEventListener Op = 0x0E // Clear listener for (category, ID)
	OpPushRoot            Op = 0x0F // Push ID without mutation
	OpPopRoot             Op = 0x10 // Discard top of stack
)

// ErrUnknownOp is returned when a batch contains an opcode this renderer
// does not understand. Operands have op-specific length, so the rest of the
// batch cannot be skipped safely.
var ErrUnknownOp = errors.New("protocol: unknown mutation op")

// ErrInvalidValueKind is returned for an attribute value of unknown kind.
var ErrInvalidValueKind = errors.New("protocol: invalid attribute value kind")

// String returns the name of the op.
func (op Op) String() string {
	switch op {
	case OpCreateElement:
		return "CreateElement"
	case OpCreateElementNs:
		return "CreateElementNs"
	case OpCreateTextNode:
		return "CreateTextNode"
	case OpCreatePlaceholder:
		return "CreatePlaceholder"
	case OpAppendChildren:
		return "AppendChildren"
	case OpInsertBefore:
		return "InsertBefore"
	case OpInsertAfter:
		return "InsertAfter"
	case OpRemove:
		return "Remove"
	case OpReplaceWith:
		return "ReplaceWith"
	case OpSetAttribute:
		return "SetAttribute"
	case OpRemoveAttribute:
		return "RemoveAttribute"
	case OpSetText:
		return "SetText"
	case OpNewEventListener:
		return "NewEventListener"
	case OpRemoveEventListener:
		return "RemoveEventListener"
	case OpPushRoot:
		return "PushRoot"
	case OpPopRoot:
		return "PopRoot"
	default:
		return "Unknown"
	}
}

// Creates reports whether the op registers a new node.
func (op Op) Creates() bool {
	return op >= OpCreateElement && op <= OpCreatePlaceholder
}

// ValueKind selects how an attribute value is applied.
type ValueKind uint8

const (
	ValueText   ValueKind = 0x00 // Plain string
	ValueBool   ValueKind = 0x01 // Presence toggle
	ValueNumber ValueKind = 0x02 // Numeric, stringified on apply
	ValueNone   ValueKind = 0x03 // No value; equivalent to removal
)

// AttrValue is a typed attribute value.
type AttrValue struct {
	Kind   ValueKind
	Text   string
	Bool   bool
	Number float64
}

// Text returns a text attribute value.
func Text(s string) AttrValue { return AttrValue{Kind: ValueText, Text: s} }

// Bool returns a boolean attribute value.
func Bool(b bool) AttrValue { return AttrValue{Kind: ValueBool, Bool: b} }

// Number returns a numeric attribute value.
func Number(f float64) AttrValue { return AttrValue{Kind: ValueNumber, Number: f} }

// None returns an empty attribute value.
func None() AttrValue { return AttrValue{Kind: ValueNone} }

// String returns the DOM string form of the value.
func (v AttrValue) String() string {
	switch v.Kind {
	case ValueBool:
		return strconv.FormatBool(v.Bool)
	case ValueNumber:
		return strconv.FormatFloat(v.Number, 'f', -1, 64)
	case ValueNone:
		return ""
	default:
		return v.Text
	}
}

// Mutation is one decoded instruction. Which fields are meaningful depends
// on Op:
//
//	CreateElement        Tag, ID
//	CreateElementNs      Tag, ID, Namespace
//	CreateTextNode       Text, ID
//	CreatePlaceholder    ID
//	AppendChildren       N
//	InsertBefore/After   ID, N
//	Remove               ID
//	ReplaceWith          ID, N
//	SetAttribute         Name, Value, ID, Namespace
//	RemoveAttribute      Name, ID, Namespace
//	SetText              Text, ID
//	New/RemoveListener   Name (event category), ID
//	PushRoot             ID
//	PopRoot              -
type Mutation struct {
	Op        Op
	ID        NodeID
	N         int
	Tag       string
	Name      string
	Namespace string
	Text      string
	Value     AttrValue
}

// NewCreateElement creates a CreateElement mutation.
func NewCreateElement(tag string, id NodeID) Mutation {
	return Mutation{Op: OpCreateElement, Tag: tag, ID: id}
}

// NewCreateElementNs creates a CreateElementNs mutation.
func NewCreateElementNs(tag string, id NodeID, ns string) Mutation {
	return Mutation{Op: OpCreateElementNs, Tag: tag, ID: id, Namespace: ns}
}

// NewCreateTextNode creates a CreateTextNode mutation.
func NewCreateTextNode(text string, id NodeID) Mutation {
	return Mutation{Op: OpCreateTextNode, Text: text, ID: id}
}

// NewCreatePlaceholder creates a CreatePlaceholder mutation.
func NewCreatePlaceholder(id NodeID) Mutation {
	return Mutation{Op: OpCreatePlaceholder, ID: id}
}

// NewAppendChildren creates an AppendChildren mutation.
func NewAppendChildren(n int) Mutation {
	return Mutation{Op: OpAppendChildren, N: n}
}

// NewInsertBefore creates an InsertBefore mutation.
func NewInsertBefore(id NodeID, n int) Mutation {
	return Mutation{Op: OpInsertBefore, ID: id, N: n}
}

// NewInsertAfter creates an InsertAfter mutation.
func NewInsertAfter(id NodeID, n int) Mutation {
	return Mutation{Op: OpInsertAfter, ID: id, N: n}
}

// NewRemove creates a Remove mutation.
func NewRemove(id NodeID) Mutation {
	return Mutation{Op: OpRemove, ID: id}
}

// NewReplaceWith creates a ReplaceWith mutation.
func NewReplaceWith(id NodeID, n int) Mutation {
	return Mutation{Op: OpReplaceWith, ID: id, N: n}
}

// NewSetAttribute creates a SetAttribute mutation. ns may be empty.
func NewSetAttribute(name string, value AttrValue, id NodeID, ns string) Mutation {
	return Mutation{Op: OpSetAttribute, Name: name, Value: value, ID: id, Namespace: ns}
}

// NewRemoveAttribute creates a RemoveAttribute mutation. ns may be empty.
func NewRemoveAttribute(name string, id NodeID, ns string) Mutation {
	return Mutation{Op: OpRemoveAttribute, Name: name, ID: id, Namespace: ns}
}

// NewSetText creates a SetText mutation.
func NewSetText(text string, id NodeID) Mutation {
	return Mutation{Op: OpSetText, Text: text, ID: id}
}

// NewEventListener creates a NewEventListener mutation.
func NewEventListener(category string, id NodeID) Mutation {
	return Mutation{Op: OpNewEventListener, Name: category, ID: id}
}

// NewRemoveEventListener creates a RemoveEventListener mutation.
func NewRemoveEventListener(category string, id NodeID) Mutation {
	return Mutation{Op: OpRemoveEventListener, Name: category, ID: id}
}

// NewPushRoot creates a PushRoot mutation.
func NewPushRoot(id NodeID) Mutation {
	return Mutation{Op: OpPushRoot, ID: id}
}

// NewPopRoot creates a PopRoot mutation.
func NewPopRoot() Mutation {
	return Mutation{Op: OpPopRoot}
}
