// Package domain defines the core model entities, value types, naming and
// signature primitives, and rule evaluation contracts used by blockcore.
package domain

import "encoding/json"

// EntityType identifies the kind of record tracked by the model layer.
type EntityType string

// Supported entity type identifiers used in Change records and codec buckets.
const (
	// EntityVariable identifies a scalar (or slide) variable record.
	EntityVariable EntityType = "variable"
	// EntityList identifies an ordered list record.
	EntityList EntityType = "list"
	// EntityMessage identifies a broadcast message record.
	EntityMessage EntityType = "message"
	// EntityFunction identifies a user-defined function record.
	EntityFunction EntityType = "function"
)

// VariableKind distinguishes the concrete behavior of a Variable record.
// Lists share the Variable shape; timer and answer are system singletons.
type VariableKind string

// Canonical variable kinds. The serialized field name is variableType for
// interchange with existing saved programs.
const (
	KindVariable VariableKind = "variable"
	KindList     VariableKind = "list"
	KindSlide    VariableKind = "slide"
	KindTimer    VariableKind = "timer"
	KindAnswer   VariableKind = "answer"
)

// MaxNameLength bounds every user-facing entity name.
const MaxNameLength = 10

// ListEntry is one slot of a list variable.
type ListEntry struct {
	Data any `json:"data"`
}

// Variable is a named value owned either by the whole program (ObjectID
// empty) or by a single program object (ObjectID set). Lists reuse the
// shape with Kind == KindList and Entries populated.
type Variable struct {
	ID       string       `json:"id"`
	Name     string       `json:"name"`
	Kind     VariableKind `json:"variableType"`
	ObjectID string       `json:"object,omitempty"`
	Cloud    bool         `json:"isCloud,omitempty"`
	Value    any          `json:"value"`
	Visible  bool         `json:"visible"`
	X        float64      `json:"x"`
	Y        float64      `json:"y"`
	MinValue float64      `json:"minValue,omitempty"`
	MaxValue float64      `json:"maxValue,omitempty"`
	Entries  []ListEntry  `json:"array,omitempty"`
}

// IsGlobal reports whether the variable is visible to every program object.
func (v Variable) IsGlobal() bool { return v.ObjectID == "" }

// IsList reports whether the record is a list.
func (v Variable) IsList() bool { return v.Kind == KindList }

// Clone returns a deep copy.
func (v Variable) Clone() Variable {
	cp := v
	if v.Entries != nil {
		cp.Entries = make([]ListEntry, len(v.Entries))
		copy(cp.Entries, v.Entries)
	}
	return cp
}

// Message is a broadcast signal. Messages have no scope: names are unique
// across the whole program.
type Message struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ParamKind tags one node of a function declaration tree.
type ParamKind string

// Declaration tree node kinds. Literal text and typed placeholders are the
// leaves; block nodes nest further declaration fragments.
const (
	ParamLiteral ParamKind = "literal"
	ParamString  ParamKind = "string"
	ParamBoolean ParamKind = "boolean"
	ParamBlock   ParamKind = "block"
)

// ParamNode is one node of a function's declaration label: a literal text
// token, a typed input placeholder, or a nested block whose children are
// spliced into the flattened signature in positional order.
type ParamNode struct {
	Kind     ParamKind   `json:"kind"`
	Text     string      `json:"text,omitempty"`
	Children []ParamNode `json:"children,omitempty"`
}

// CloneParams deep-copies a declaration tree.
func CloneParams(nodes []ParamNode) []ParamNode {
	if nodes == nil {
		return nil
	}
	out := make([]ParamNode, len(nodes))
	for i, n := range nodes {
		out[i] = n
		out[i].Children = CloneParams(n.Children)
	}
	return out
}

// Block is the model-layer view of one block in a script: enough to resolve
// which entities it references. The block graph component owns the real
// blocks; these records mirror the fields the model needs.
type Block struct {
	ID     string   `json:"id,omitempty"`
	Type   string   `json:"type"`
	Params []string `json:"params,omitempty"`
}

// CloneBlocks deep-copies a block list.
func CloneBlocks(blocks []Block) []Block {
	if blocks == nil {
		return nil
	}
	out := make([]Block, len(blocks))
	for i, b := range blocks {
		out[i] = b
		if b.Params != nil {
			out[i].Params = append([]string(nil), b.Params...)
		}
	}
	return out
}

// Function is a user-defined function: a declaration label (the parameter
// tree) plus the body blocks. Identity is ID; the signature is derived, not
// stored.
type Function struct {
	ID     string      `json:"id"`
	Params []ParamNode `json:"params"`
	Body   []Block     `json:"blocks"`
}

// Clone returns a deep copy.
func (f Function) Clone() Function {
	return Function{ID: f.ID, Params: CloneParams(f.Params), Body: CloneBlocks(f.Body)}
}

// CallBlockType returns the block type used by call blocks of the function.
func (f Function) CallBlockType() string { return CallBlockType(f.ID) }

// CallBlockType builds the call-block type string for a function id.
func CallBlockType(id string) string { return "func_" + id }

// FunctionIDFromBlockType extracts the function id from a call-block type,
// returning false when the type is not a function call.
func FunctionIDFromBlockType(blockType string) (string, bool) {
	const prefix = "func_"
	if len(blockType) <= len(prefix) || blockType[:len(prefix)] != prefix {
		return "", false
	}
	return blockType[len(prefix):], true
}

// Action enumerates mutation kinds recorded in Change entries.
type Action string

// Mutation kinds.
const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Change captures one mutation applied to the model, for rule evaluation
// and audit.
type Change struct {
	Entity EntityType `json:"entity"`
	Action Action     `json:"action"`
	Before any        `json:"before,omitempty"`
	After  any        `json:"after,omitempty"`
}

// RawJSON clones a raw JSON payload so callers cannot mutate shared state.
func RawJSON(raw json.RawMessage) json.RawMessage {
	if raw == nil {
		return nil
	}
	cloned := make(json.RawMessage, len(raw))
	copy(cloned, raw)
	return cloned
}
