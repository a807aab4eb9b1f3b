package core

import (
	"strconv"

	"blockcore/pkg/domain"

	"github.com/cespare/xxhash/v2"
)

// ScriptPurger removes every block of a given type from the program
// objects' scripts. The block-graph component implements it; the store only
// asks for the purge when a function is destroyed.
type ScriptPurger interface {
	PurgeBlockType(blockType string)
}

// FunctionStore is the id-keyed registry of user-defined functions. Before
// a function is inserted its derived signature is checked against every
// stored one and, on collision, made unique by rewriting the rightmost
// literal token of its declaration tree. The store is not safe for
// concurrent use; the Service serializes access.
type FunctionStore struct {
	functions map[string]Function
	order     []string
	sigs      map[string]string
	sigIndex  map[uint64][]string

	newIDFn func() string
	changes []Change
}

// NewFunctionStore constructs an empty registry.
func NewFunctionStore() *FunctionStore {
	return &FunctionStore{
		functions: make(map[string]Function),
		sigs:      make(map[string]string),
		sigIndex:  make(map[uint64][]string),
		newIDFn:   newID,
	}
}

func (s *FunctionStore) recordChange(change Change) {
	s.changes = append(s.changes, change)
}

// DrainChanges returns and clears the mutations recorded since the last
// drain.
func (s *FunctionStore) DrainChanges() []Change {
	out := s.changes
	s.changes = nil
	return out
}

func (s *FunctionStore) signatureTaken(sig string) bool {
	for _, id := range s.sigIndex[xxhash.Sum64String(sig)] {
		if s.sigs[id] == sig {
			return true
		}
	}
	return false
}

func (s *FunctionStore) indexSignature(id, sig string) {
	s.sigs[id] = sig
	h := xxhash.Sum64String(sig)
	s.sigIndex[h] = append(s.sigIndex[h], id)
}

func (s *FunctionStore) dropSignature(id string) {
	sig, ok := s.sigs[id]
	if !ok {
		return
	}
	delete(s.sigs, id)
	h := xxhash.Sum64String(sig)
	ids := s.sigIndex[h]
	for i, candidate := range ids {
		if candidate == id {
			s.sigIndex[h] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(s.sigIndex[h]) == 0 {
		delete(s.sigIndex, h)
	}
}

// Add registers a function. An empty id gets a fresh one; a known id is
// skipped and the stored definition returned. When the new function's
// signature collides with a stored one, the lowest free suffix number is
// appended to the rightmost literal token of its declaration tree so the
// human-visible label stays unique while typed placeholders are untouched.
// A colliding declaration with no literal token cannot be disambiguated and
// is rejected.
func (s *FunctionStore) Add(fn Function) (Function, error) {
	if fn.ID == "" {
		fn.ID = s.newIDFn()
	} else if existing, ok := s.functions[fn.ID]; ok {
		return existing.Clone(), nil
	}
	fn = fn.Clone()

	sig := domain.SignatureName(fn.Params)
	if s.signatureTaken(sig) {
		info := domain.FlattenParams(fn.Params)
		lit, ok := domain.LastLiteral(info)
		if !ok {
			return Function{}, domain.ValidationError{
				Op:     "add function",
				Reason: "signature collides and declaration has no literal token to disambiguate",
			}
		}
		base := lit.Text
		for k := 1; ; k++ {
			lit.Text = base + strconv.Itoa(k)
			sig = domain.SignatureName(fn.Params)
			if !s.signatureTaken(sig) {
				break
			}
		}
	}

	s.functions[fn.ID] = fn
	s.order = append(s.order, fn.ID)
	s.indexSignature(fn.ID, sig)
	s.recordChange(Change{Entity: EntityFunction, Action: ActionCreate, After: fn.Clone()})
	return fn.Clone(), nil
}

// Remove destroys a function: its call blocks are purged from every program
// object and stripped from every other function's body, and the definition
// is dropped. A missing id is a silent no-op.
func (s *FunctionStore) Remove(id string, purger ScriptPurger) bool {
	fn, ok := s.functions[id]
	if !ok {
		return false
	}
	callType := domain.CallBlockType(id)
	if purger != nil {
		purger.PurgeBlockType(callType)
	}
	for otherID, other := range s.functions {
		if otherID == id {
			continue
		}
		filtered := other.Body[:0:0]
		for _, b := range other.Body {
			if b.Type != callType {
				filtered = append(filtered, b)
			}
		}
		if len(filtered) != len(other.Body) {
			other.Body = filtered
			s.functions[otherID] = other
		}
	}
	delete(s.functions, id)
	s.dropSignature(id)
	for i, ordered := range s.order {
		if ordered == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.recordChange(Change{Entity: EntityFunction, Action: ActionDelete, Before: fn.Clone()})
	return true
}

// Get returns the definition for id.
func (s *FunctionStore) Get(id string) (Function, bool) {
	fn, ok := s.functions[id]
	if !ok {
		return Function{}, false
	}
	return fn.Clone(), true
}

// Signature returns the stored derived signature for id.
func (s *FunctionStore) Signature(id string) (string, bool) {
	sig, ok := s.sigs[id]
	return sig, ok
}

// Functions returns all definitions in insertion order.
func (s *FunctionStore) Functions() []Function {
	out := make([]Function, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.functions[id].Clone())
	}
	return out
}

// functionState is a deep copy of the registry used for rollback when a
// blocking rule rejects a mutation set.
type functionState struct {
	functions map[string]Function
	order     []string
	sigs      map[string]string
	sigIndex  map[uint64][]string
}

func (s *FunctionStore) snapshot() functionState {
	st := functionState{
		functions: make(map[string]Function, len(s.functions)),
		order:     append([]string(nil), s.order...),
		sigs:      make(map[string]string, len(s.sigs)),
		sigIndex:  make(map[uint64][]string, len(s.sigIndex)),
	}
	for id, fn := range s.functions {
		st.functions[id] = fn.Clone()
	}
	for id, sig := range s.sigs {
		st.sigs[id] = sig
	}
	for h, ids := range s.sigIndex {
		st.sigIndex[h] = append([]string(nil), ids...)
	}
	return st
}

func (s *FunctionStore) restore(st functionState) {
	s.functions = st.functions
	s.order = st.order
	s.sigs = st.sigs
	s.sigIndex = st.sigIndex
	s.changes = nil
}

// Clear resets the registry.
func (s *FunctionStore) Clear() {
	s.functions = make(map[string]Function)
	s.order = nil
	s.sigs = make(map[string]string)
	s.sigIndex = make(map[uint64][]string)
	s.changes = nil
}
