package core

import "blockcore/pkg/domain"

// Reference is one usage edge between a block and an entity or function.
// EnclosingFunction is set for records contributed by a function body walk.
type Reference struct {
	ObjectID          string
	Block             Block
	EnclosingFunction string
}

// ReferenceIndex tracks which blocks use which variables, messages, and
// functions. It is a cache over the live block graph: never persisted,
// always rebuildable, and the block graph wins when they disagree. The
// block-graph component reports attach/detach through the two notification
// methods; both are no-ops outside board mode.
type ReferenceIndex struct {
	entities  *EntityStore
	functions *FunctionStore

	variableRefs []Reference
	messageRefs  []Reference
	functionRefs []Reference

	activated   map[string]bool
	deactivated map[string]bool
}

// NewReferenceIndex constructs an index over the given stores.
func NewReferenceIndex(entities *EntityStore, functions *FunctionStore) *ReferenceIndex {
	return &ReferenceIndex{
		entities:    entities,
		functions:   functions,
		activated:   make(map[string]bool),
		deactivated: make(map[string]bool),
	}
}

// BlockAttached records the entities a newly attached block references.
// Attaching the first call block of a function walks that function's body
// once, binding the body's own variable and message references to the
// calling object; the walk runs at most once per function per workspace.
func (r *ReferenceIndex) BlockAttached(ctx EditContext, block Block) {
	if !ctx.Board() {
		return
	}
	if funcID, ok := domain.FunctionIDFromBlockType(block.Type); ok {
		r.functionRefs = append(r.functionRefs, Reference{ObjectID: ctx.ObjectID, Block: block})
		r.activate(ctx, funcID)
		return
	}
	r.addEntityRefs(ctx.ObjectID, block, "")
}

func (r *ReferenceIndex) addEntityRefs(objectID string, block Block, enclosing string) {
	for _, param := range block.Params {
		if _, ok := r.entities.Variable(param); ok {
			r.variableRefs = append(r.variableRefs, Reference{ObjectID: objectID, Block: block, EnclosingFunction: enclosing})
			continue
		}
		if _, ok := r.entities.List(param); ok {
			r.variableRefs = append(r.variableRefs, Reference{ObjectID: objectID, Block: block, EnclosingFunction: enclosing})
			continue
		}
		if _, ok := r.entities.MessageByID(param); ok {
			r.messageRefs = append(r.messageRefs, Reference{ObjectID: objectID, Block: block, EnclosingFunction: enclosing})
		}
	}
}

func (r *ReferenceIndex) activate(ctx EditContext, funcID string) {
	if r.activated[funcID] {
		return
	}
	r.activated[funcID] = true
	fn, ok := r.functions.Get(funcID)
	if !ok {
		return
	}
	for _, bodyBlock := range fn.Body {
		if nestedID, isCall := domain.FunctionIDFromBlockType(bodyBlock.Type); isCall {
			r.functionRefs = append(r.functionRefs, Reference{ObjectID: ctx.ObjectID, Block: bodyBlock, EnclosingFunction: funcID})
			r.activate(ctx, nestedID)
			continue
		}
		r.addEntityRefs(ctx.ObjectID, bodyBlock, funcID)
	}
}

// BlockDetached removes every record the block contributed; a block with
// several entity params carries one record per param, and all of them go.
// Detaching a function call block mirrors the activation walk: the records
// its body contributed are dropped, once per function.
func (r *ReferenceIndex) BlockDetached(ctx EditContext, block Block) {
	if !ctx.Board() {
		return
	}
	if funcID, ok := domain.FunctionIDFromBlockType(block.Type); ok {
		r.functionRefs = removeBlockRefs(r.functionRefs, block.ID)
		r.deactivate(funcID)
		return
	}
	r.variableRefs = removeBlockRefs(r.variableRefs, block.ID)
	r.messageRefs = removeBlockRefs(r.messageRefs, block.ID)
}

func (r *ReferenceIndex) deactivate(funcID string) {
	if !r.activated[funcID] || r.deactivated[funcID] {
		return
	}
	r.deactivated[funcID] = true
	r.variableRefs = removeEnclosedRefs(r.variableRefs, funcID)
	r.messageRefs = removeEnclosedRefs(r.messageRefs, funcID)
	for _, ref := range r.functionRefs {
		if ref.EnclosingFunction == funcID {
			if nestedID, ok := domain.FunctionIDFromBlockType(ref.Block.Type); ok {
				r.deactivate(nestedID)
			}
		}
	}
	r.functionRefs = removeEnclosedRefs(r.functionRefs, funcID)
}

func removeBlockRefs(refs []Reference, blockID string) []Reference {
	filtered := refs[:0]
	for _, ref := range refs {
		if ref.Block.ID != blockID {
			filtered = append(filtered, ref)
		}
	}
	return filtered
}

func removeEnclosedRefs(refs []Reference, funcID string) []Reference {
	filtered := refs[:0]
	for _, ref := range refs {
		if ref.EnclosingFunction != funcID {
			filtered = append(filtered, ref)
		}
	}
	return filtered
}

// CallersOfVariable returns the usage edges naming the variable or list id
// in their block parameters. Records whose entity no longer exists are
// pruned first; the block graph is authoritative.
func (r *ReferenceIndex) CallersOfVariable(id string) []Reference {
	r.pruneVariableRefs()
	var out []Reference
	for _, ref := range r.variableRefs {
		if paramsContain(ref.Block.Params, id) {
			out = append(out, ref)
		}
	}
	return out
}

// CallersOfMessage returns the usage edges naming the message id.
func (r *ReferenceIndex) CallersOfMessage(id string) []Reference {
	r.pruneMessageRefs()
	var out []Reference
	for _, ref := range r.messageRefs {
		if paramsContain(ref.Block.Params, id) {
			out = append(out, ref)
		}
	}
	return out
}

// CallersOfFunction returns the call blocks of the function.
func (r *ReferenceIndex) CallersOfFunction(id string) []Reference {
	callType := domain.CallBlockType(id)
	var out []Reference
	for _, ref := range r.functionRefs {
		if ref.Block.Type == callType {
			out = append(out, ref)
		}
	}
	return out
}

func paramsContain(params []string, id string) bool {
	for _, p := range params {
		if p == id {
			return true
		}
	}
	return false
}

func (r *ReferenceIndex) pruneVariableRefs() {
	filtered := r.variableRefs[:0]
	for _, ref := range r.variableRefs {
		if r.anyEntityExists(ref.Block.Params) {
			filtered = append(filtered, ref)
		}
	}
	r.variableRefs = filtered
}

func (r *ReferenceIndex) anyEntityExists(params []string) bool {
	for _, p := range params {
		if _, ok := r.entities.Variable(p); ok {
			return true
		}
		if _, ok := r.entities.List(p); ok {
			return true
		}
	}
	return false
}

func (r *ReferenceIndex) pruneMessageRefs() {
	filtered := r.messageRefs[:0]
	for _, ref := range r.messageRefs {
		keep := false
		for _, p := range ref.Block.Params {
			if _, ok := r.entities.MessageByID(p); ok {
				keep = true
				break
			}
		}
		if keep {
			filtered = append(filtered, ref)
		}
	}
	r.messageRefs = filtered
}

// DropFunction removes every record tied to a destroyed function: its call
// edges and the body-walk records it contributed. The activation guard is
// reset so a re-created function with the same id walks again.
func (r *ReferenceIndex) DropFunction(id string) {
	callType := domain.CallBlockType(id)
	filtered := r.functionRefs[:0]
	for _, ref := range r.functionRefs {
		if ref.Block.Type != callType && ref.EnclosingFunction != id {
			filtered = append(filtered, ref)
		}
	}
	r.functionRefs = filtered
	r.variableRefs = removeEnclosedRefs(r.variableRefs, id)
	r.messageRefs = removeEnclosedRefs(r.messageRefs, id)
	delete(r.activated, id)
	delete(r.deactivated, id)
}

// Rebuild derives the index from scratch out of the live block graph:
// object id to script blocks. Used after load and whenever the cache is
// suspected stale.
func (r *ReferenceIndex) Rebuild(objects map[string][]Block) {
	r.variableRefs = nil
	r.messageRefs = nil
	r.functionRefs = nil
	r.activated = make(map[string]bool)
	r.deactivated = make(map[string]bool)
	for objectID, blocks := range objects {
		ctx := EditContext{ObjectID: objectID, Mode: ModeBoard}
		for _, block := range blocks {
			r.BlockAttached(ctx, block)
		}
	}
}

// Counts reports the number of live records per kind.
func (r *ReferenceIndex) Counts() (variables, messages, functions int) {
	return len(r.variableRefs), len(r.messageRefs), len(r.functionRefs)
}
