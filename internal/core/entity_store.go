package core

import (
	"crypto/rand"
	"encoding/hex"

	"blockcore/pkg/domain"

	"github.com/agnivade/levenshtein"
)

// ScopeFilter selects which scope partitions a by-name lookup searches.
type ScopeFilter int

// Scope filters. ScopeAny matches both partitions, first in storage order
// wins.
const (
	ScopeAny ScopeFilter = iota
	ScopeGlobal
	ScopeLocal
)

// EntityStore holds the three ordered entity collections: variables, lists,
// and messages. Manual adds insert at the front so the newest entity shows
// first; bulk sets preserve load order. The timer and answer singletons are
// kept outside the variable sequence. The store is not safe for concurrent
// use; the Service serializes access.
type EntityStore struct {
	variables []Variable
	lists     []Variable
	messages  []Message
	timer     *Variable
	answer    *Variable

	selectedVariableID string
	selectedListID     string
	pending            map[string]func()

	newIDFn func() string
	changes []Change
}

// NewEntityStore constructs an empty store.
func NewEntityStore() *EntityStore {
	return &EntityStore{
		pending: make(map[string]func()),
		newIDFn: newID,
	}
}

func newID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b[:])
}

func (s *EntityStore) recordChange(change Change) {
	s.changes = append(s.changes, change)
}

// DrainChanges returns and clears the mutations recorded since the last
// drain, for rule evaluation.
func (s *EntityStore) DrainChanges() []Change {
	out := s.changes
	s.changes = nil
	return out
}

// inPartition reports whether the entity owned by objectID belongs to the
// partition of candidateOwner: the global set, or one object's local set.
func inPartition(owner, candidateOwner string) bool {
	return owner == candidateOwner
}

func matchesScope(owner string, scope ScopeFilter, objectID string) bool {
	switch scope {
	case ScopeLocal:
		return owner != "" && owner == objectID
	case ScopeGlobal:
		return owner == ""
	default:
		return owner == "" || owner == objectID
	}
}

func partitionNames(items []Variable, owner, excludeID string) []string {
	var names []string
	for _, v := range items {
		if v.ID == excludeID {
			continue
		}
		if inPartition(v.ObjectID, owner) {
			names = append(names, v.Name)
		}
	}
	return names
}

func nameTaken(items []Variable, name, owner, excludeID string) bool {
	for _, v := range items {
		if v.ID == excludeID {
			continue
		}
		if v.Name == name && inPartition(v.ObjectID, owner) {
			return true
		}
	}
	return false
}

// Variables ------------------------------------------------------------------

// SetAllVariables replaces the variable collection, preserving load order.
// Items without an id get a fresh one. Entries of kind timer or answer are
// routed to the singletons; whichever singleton is still missing afterwards
// is auto-created.
func (s *EntityStore) SetAllVariables(items []Variable) {
	s.variables = nil
	s.timer = nil
	s.answer = nil
	for _, v := range items {
		v = v.Clone()
		if v.ID == "" {
			v.ID = s.newIDFn()
		}
		switch v.Kind {
		case KindTimer:
			s.timer = &v
		case KindAnswer:
			s.answer = &v
		default:
			if v.Kind == "" {
				v.Kind = KindVariable
			}
			s.variables = append(s.variables, v)
			s.recordChange(Change{Entity: EntityVariable, Action: ActionCreate, After: v.Clone()})
		}
	}
	s.ensureSingletons()
}

func (s *EntityStore) ensureSingletons() {
	if s.timer == nil {
		s.timer = &Variable{ID: s.newIDFn(), Name: "timer", Kind: KindTimer, Value: 0}
	}
	if s.answer == nil {
		s.answer = &Variable{ID: s.newIDFn(), Name: "answer", Kind: KindAnswer, Value: ""}
	}
}

// AppendVariables merges additional variables. Items whose id is already
// present are skipped, as are timer/answer entries when the singleton
// exists. In-partition name collisions are resolved with a numeric suffix
// before insertion.
func (s *EntityStore) AppendVariables(items []Variable) []Variable {
	var added []Variable
	for _, v := range items {
		v = v.Clone()
		switch v.Kind {
		case KindTimer:
			if s.timer == nil {
				if v.ID == "" {
					v.ID = s.newIDFn()
				}
				s.timer = &v
			}
			continue
		case KindAnswer:
			if s.answer == nil {
				if v.ID == "" {
					v.ID = s.newIDFn()
				}
				s.answer = &v
			}
			continue
		}
		if v.ID == "" {
			v.ID = s.newIDFn()
		} else if _, ok := s.Variable(v.ID); ok {
			continue
		}
		if v.Kind == "" {
			v.Kind = KindVariable
		}
		v.Name = domain.OrderedName(v.Name, partitionNames(s.variables, v.ObjectID, ""))
		s.variables = append(s.variables, v)
		s.recordChange(Change{Entity: EntityVariable, Action: ActionCreate, After: v.Clone()})
		added = append(added, v.Clone())
	}
	return added
}

// AddVariable inserts at the front. The name must fit the length bound and
// be free within the variable's scope partition; callers are expected to
// pre-resolve, the store re-checks.
func (s *EntityStore) AddVariable(v Variable) (Variable, error) {
	if err := domain.ValidateNameLength(v.Name); err != nil {
		return Variable{}, err
	}
	if nameTaken(s.variables, v.Name, v.ObjectID, "") {
		return Variable{}, domain.DuplicateNameError{Entity: EntityVariable, Name: v.Name, ObjectID: v.ObjectID}
	}
	v = v.Clone()
	if v.ID == "" {
		v.ID = s.newIDFn()
	}
	if v.Kind == "" {
		v.Kind = KindVariable
	}
	s.variables = append([]Variable{v}, s.variables...)
	s.recordChange(Change{Entity: EntityVariable, Action: ActionCreate, After: v.Clone()})
	return v.Clone(), nil
}

// RemoveVariable detaches a variable, clears any selection pointing at it,
// and drops any deferred confirmation keyed to it. A missing id is a silent
// no-op.
func (s *EntityStore) RemoveVariable(id string) bool {
	for i, v := range s.variables {
		if v.ID == id {
			s.variables = append(s.variables[:i], s.variables[i+1:]...)
			if s.selectedVariableID == id {
				s.selectedVariableID = ""
			}
			delete(s.pending, id)
			s.recordChange(Change{Entity: EntityVariable, Action: ActionDelete, Before: v.Clone()})
			return true
		}
	}
	return false
}

// RenameVariable mutates the variable's name in place. A missing id is a
// silent no-op so stale confirmations from removed entities cannot fail.
func (s *EntityStore) RenameVariable(id, newName string) error {
	return s.rename(s.variables, EntityVariable, id, newName)
}

func (s *EntityStore) rename(items []Variable, entity EntityType, id, newName string) error {
	for i := range items {
		if items[i].ID != id {
			continue
		}
		if err := domain.ValidateNameLength(newName); err != nil {
			return err
		}
		if nameTaken(items, newName, items[i].ObjectID, id) {
			return domain.DuplicateNameError{Entity: entity, Name: newName, ObjectID: items[i].ObjectID}
		}
		before := items[i].Clone()
		items[i].Name = newName
		s.recordChange(Change{Entity: entity, Action: ActionUpdate, Before: before, After: items[i].Clone()})
		return nil
	}
	return nil
}

// Variable retrieves a variable by id.
func (s *EntityStore) Variable(id string) (Variable, bool) {
	for _, v := range s.variables {
		if v.ID == id {
			return v.Clone(), true
		}
	}
	return Variable{}, false
}

// UpdateVariable applies mutator to the stored record. A missing id is a
// silent no-op.
func (s *EntityStore) UpdateVariable(id string, mutator func(*Variable)) {
	s.update(s.variables, EntityVariable, id, mutator)
}

func (s *EntityStore) update(items []Variable, entity EntityType, id string, mutator func(*Variable)) {
	for i := range items {
		if items[i].ID != id {
			continue
		}
		before := items[i].Clone()
		mutator(&items[i])
		items[i].ID = id
		s.recordChange(Change{Entity: entity, Action: ActionUpdate, Before: before, After: items[i].Clone()})
		return
	}
}

// VariableByName resolves a variable name against the scope filter: local
// only, global only, or either with first match in storage order winning.
func (s *EntityStore) VariableByName(name string, scope ScopeFilter, objectID string) (Variable, bool) {
	return byName(s.variables, name, scope, objectID)
}

func byName(items []Variable, name string, scope ScopeFilter, objectID string) (Variable, bool) {
	for _, v := range items {
		if v.Name == name && matchesScope(v.ObjectID, scope, objectID) {
			return v.Clone(), true
		}
	}
	return Variable{}, false
}

// Variables returns the variable sequence in storage order, excluding the
// timer and answer singletons.
func (s *EntityStore) Variables() []Variable {
	return cloneVariables(s.variables)
}

func cloneVariables(items []Variable) []Variable {
	out := make([]Variable, len(items))
	for i, v := range items {
		out[i] = v.Clone()
	}
	return out
}

// Timer returns the timer singleton.
func (s *EntityStore) Timer() (Variable, bool) {
	if s.timer == nil {
		return Variable{}, false
	}
	return s.timer.Clone(), true
}

// Answer returns the answer singleton.
func (s *EntityStore) Answer() (Variable, bool) {
	if s.answer == nil {
		return Variable{}, false
	}
	return s.answer.Clone(), true
}

// Lists ----------------------------------------------------------------------

// SetAllLists replaces the list collection, preserving load order.
func (s *EntityStore) SetAllLists(items []Variable) {
	s.lists = nil
	for _, l := range items {
		l = l.Clone()
		if l.ID == "" {
			l.ID = s.newIDFn()
		}
		l.Kind = KindList
		s.lists = append(s.lists, l)
		s.recordChange(Change{Entity: EntityList, Action: ActionCreate, After: l.Clone()})
	}
}

// AppendLists merges additional lists, skipping known ids and resolving
// in-partition name collisions.
func (s *EntityStore) AppendLists(items []Variable) []Variable {
	var added []Variable
	for _, l := range items {
		l = l.Clone()
		if l.ID == "" {
			l.ID = s.newIDFn()
		} else if _, ok := s.List(l.ID); ok {
			continue
		}
		l.Kind = KindList
		l.Name = domain.OrderedName(l.Name, partitionNames(s.lists, l.ObjectID, ""))
		s.lists = append(s.lists, l)
		s.recordChange(Change{Entity: EntityList, Action: ActionCreate, After: l.Clone()})
		added = append(added, l.Clone())
	}
	return added
}

// AddList inserts at the front, rejecting over-length and in-partition
// duplicate names.
func (s *EntityStore) AddList(l Variable) (Variable, error) {
	if err := domain.ValidateNameLength(l.Name); err != nil {
		return Variable{}, err
	}
	if nameTaken(s.lists, l.Name, l.ObjectID, "") {
		return Variable{}, domain.DuplicateNameError{Entity: EntityList, Name: l.Name, ObjectID: l.ObjectID}
	}
	l = l.Clone()
	if l.ID == "" {
		l.ID = s.newIDFn()
	}
	l.Kind = KindList
	s.lists = append([]Variable{l}, s.lists...)
	s.recordChange(Change{Entity: EntityList, Action: ActionCreate, After: l.Clone()})
	return l.Clone(), nil
}

// RemoveList detaches a list. A missing id is a silent no-op.
func (s *EntityStore) RemoveList(id string) bool {
	for i, l := range s.lists {
		if l.ID == id {
			s.lists = append(s.lists[:i], s.lists[i+1:]...)
			if s.selectedListID == id {
				s.selectedListID = ""
			}
			delete(s.pending, id)
			s.recordChange(Change{Entity: EntityList, Action: ActionDelete, Before: l.Clone()})
			return true
		}
	}
	return false
}

// RenameList mutates the list's name in place.
func (s *EntityStore) RenameList(id, newName string) error {
	return s.rename(s.lists, EntityList, id, newName)
}

// List retrieves a list by id.
func (s *EntityStore) List(id string) (Variable, bool) {
	for _, l := range s.lists {
		if l.ID == id {
			return l.Clone(), true
		}
	}
	return Variable{}, false
}

// UpdateList applies mutator to the stored record.
func (s *EntityStore) UpdateList(id string, mutator func(*Variable)) {
	s.update(s.lists, EntityList, id, mutator)
}

// ListByName resolves a list name against the scope filter.
func (s *EntityStore) ListByName(name string, scope ScopeFilter, objectID string) (Variable, bool) {
	return byName(s.lists, name, scope, objectID)
}

// Lists returns the list sequence in storage order.
func (s *EntityStore) Lists() []Variable {
	return cloneVariables(s.lists)
}

// LengthOp selects how ChangeListLength computes the target length.
type LengthOp int

// Length operations: adjust by one in either direction, or set an absolute
// target.
const (
	LengthPlus LengthOp = iota
	LengthMinus
	LengthSet
)

// ChangeListLength grows or shrinks a list's entries. Growth pads with
// zero-valued entries; shrink drops trailing entries. An unchanged length
// is a silent no-op, as is a missing id.
func (s *EntityStore) ChangeListLength(id string, op LengthOp, target int) error {
	for i := range s.lists {
		if s.lists[i].ID != id {
			continue
		}
		current := len(s.lists[i].Entries)
		switch op {
		case LengthPlus:
			target = current + 1
		case LengthMinus:
			target = current - 1
			if target < 0 {
				target = 0
			}
		case LengthSet:
		}
		if target < 0 {
			return domain.ValidationError{Op: "change list length", Reason: "negative length"}
		}
		if target == current {
			return nil
		}
		before := s.lists[i].Clone()
		if target < current {
			s.lists[i].Entries = s.lists[i].Entries[:target]
		} else {
			for len(s.lists[i].Entries) < target {
				s.lists[i].Entries = append(s.lists[i].Entries, ListEntry{Data: 0})
			}
		}
		s.recordChange(Change{Entity: EntityList, Action: ActionUpdate, Before: before, After: s.lists[i].Clone()})
		return nil
	}
	return nil
}

// SetListEntry mutates one entry in place. An out-of-bounds index is a
// ValidationError; a missing list id is a silent no-op.
func (s *EntityStore) SetListEntry(id string, index int, value any) error {
	for i := range s.lists {
		if s.lists[i].ID != id {
			continue
		}
		if index < 0 || index >= len(s.lists[i].Entries) {
			return domain.ValidationError{Op: "set list entry", Reason: "index out of bounds"}
		}
		before := s.lists[i].Clone()
		s.lists[i].Entries[index] = ListEntry{Data: value}
		s.recordChange(Change{Entity: EntityList, Action: ActionUpdate, Before: before, After: s.lists[i].Clone()})
		return nil
	}
	return nil
}

// Messages -------------------------------------------------------------------

// SetAllMessages replaces the message collection, preserving load order.
func (s *EntityStore) SetAllMessages(items []Message) {
	s.messages = nil
	for _, m := range items {
		if m.ID == "" {
			m.ID = s.newIDFn()
		}
		s.messages = append(s.messages, m)
		s.recordChange(Change{Entity: EntityMessage, Action: ActionCreate, After: m})
	}
}

// AppendMessages merges additional messages, skipping known ids and
// resolving name collisions. Messages have no scoping: names are unique
// across all messages.
func (s *EntityStore) AppendMessages(items []Message) []Message {
	var added []Message
	for _, m := range items {
		if m.ID == "" {
			m.ID = s.newIDFn()
		} else if _, ok := s.MessageByID(m.ID); ok {
			continue
		}
		m.Name = domain.OrderedName(m.Name, s.messageNames(""))
		s.messages = append(s.messages, m)
		s.recordChange(Change{Entity: EntityMessage, Action: ActionCreate, After: m})
		added = append(added, m)
	}
	return added
}

func (s *EntityStore) messageNames(excludeID string) []string {
	var names []string
	for _, m := range s.messages {
		if m.ID != excludeID {
			names = append(names, m.Name)
		}
	}
	return names
}

// AddMessage inserts at the front, rejecting duplicate names.
func (s *EntityStore) AddMessage(m Message) (Message, error) {
	if err := domain.ValidateNameLength(m.Name); err != nil {
		return Message{}, err
	}
	for _, existing := range s.messages {
		if existing.Name == m.Name {
			return Message{}, domain.DuplicateNameError{Entity: EntityMessage, Name: m.Name}
		}
	}
	if m.ID == "" {
		m.ID = s.newIDFn()
	}
	s.messages = append([]Message{m}, s.messages...)
	s.recordChange(Change{Entity: EntityMessage, Action: ActionCreate, After: m})
	return m, nil
}

// RemoveMessage detaches a message. A missing id is a silent no-op.
func (s *EntityStore) RemoveMessage(id string) bool {
	for i, m := range s.messages {
		if m.ID == id {
			s.messages = append(s.messages[:i], s.messages[i+1:]...)
			delete(s.pending, id)
			s.recordChange(Change{Entity: EntityMessage, Action: ActionDelete, Before: m})
			return true
		}
	}
	return false
}

// RenameMessage mutates the message's name in place. A missing id is a
// silent no-op.
func (s *EntityStore) RenameMessage(id, newName string) error {
	for i := range s.messages {
		if s.messages[i].ID != id {
			continue
		}
		if err := domain.ValidateNameLength(newName); err != nil {
			return err
		}
		for _, existing := range s.messages {
			if existing.ID != id && existing.Name == newName {
				return domain.DuplicateNameError{Entity: EntityMessage, Name: newName}
			}
		}
		before := s.messages[i]
		s.messages[i].Name = newName
		s.recordChange(Change{Entity: EntityMessage, Action: ActionUpdate, Before: before, After: s.messages[i]})
		return nil
	}
	return nil
}

// MessageByID retrieves a message by id.
func (s *EntityStore) MessageByID(id string) (Message, bool) {
	for _, m := range s.messages {
		if m.ID == id {
			return m, true
		}
	}
	return Message{}, false
}

// MessageByName retrieves a message by name.
func (s *EntityStore) MessageByName(name string) (Message, bool) {
	for _, m := range s.messages {
		if m.Name == name {
			return m, true
		}
	}
	return Message{}, false
}

// Messages returns the message sequence in storage order.
func (s *EntityStore) Messages() []Message {
	return append([]Message(nil), s.messages...)
}

// Cross-collection -----------------------------------------------------------

// RemoveAllOwnedBy cascades an object deletion: every local variable and
// list owned by objectID is removed.
func (s *EntityStore) RemoveAllOwnedBy(objectID string) {
	if objectID == "" {
		return
	}
	for _, v := range s.localOwnedBy(s.variables, objectID) {
		s.RemoveVariable(v.ID)
	}
	for _, l := range s.localOwnedBy(s.lists, objectID) {
		s.RemoveList(l.ID)
	}
}

func (s *EntityStore) localOwnedBy(items []Variable, objectID string) []Variable {
	var out []Variable
	for _, v := range items {
		if v.ObjectID == objectID {
			out = append(out, v)
		}
	}
	return out
}

// Clear resets every collection and the singletons. The next SetAll
// regenerates timer and answer.
func (s *EntityStore) Clear() {
	s.variables = nil
	s.lists = nil
	s.messages = nil
	s.timer = nil
	s.answer = nil
	s.selectedVariableID = ""
	s.selectedListID = ""
	s.pending = make(map[string]func())
	s.changes = nil
}

// Selection ------------------------------------------------------------------

// SelectVariable marks a variable as the active selection.
func (s *EntityStore) SelectVariable(id string) { s.selectedVariableID = id }

// SelectList marks a list as the active selection.
func (s *EntityStore) SelectList(id string) { s.selectedListID = id }

// SelectedVariableID returns the selected variable id, empty when none.
func (s *EntityStore) SelectedVariableID() string { return s.selectedVariableID }

// SelectedListID returns the selected list id, empty when none.
func (s *EntityStore) SelectedListID() string { return s.selectedListID }

// Deferred confirmations -----------------------------------------------------

// DeferConfirm registers a callback to run once an in-flight edit on the
// entity commits (an open rename input, for example).
func (s *EntityStore) DeferConfirm(id string, fn func()) {
	if fn == nil {
		return
	}
	s.pending[id] = fn
}

// ResolveConfirm runs and clears the deferred callback for id. A
// confirmation arriving after the entity was removed is dropped silently.
func (s *EntityStore) ResolveConfirm(id string) {
	fn, ok := s.pending[id]
	if !ok {
		return
	}
	delete(s.pending, id)
	fn()
}

// entityState is a deep copy of the store used for rollback when a blocking
// rule rejects a mutation set. Deferred callbacks are not part of it.
type entityState struct {
	variables          []Variable
	lists              []Variable
	messages           []Message
	timer              *Variable
	answer             *Variable
	selectedVariableID string
	selectedListID     string
}

func (s *EntityStore) snapshot() entityState {
	st := entityState{
		variables:          cloneVariables(s.variables),
		lists:              cloneVariables(s.lists),
		messages:           append([]Message(nil), s.messages...),
		selectedVariableID: s.selectedVariableID,
		selectedListID:     s.selectedListID,
	}
	if s.timer != nil {
		t := s.timer.Clone()
		st.timer = &t
	}
	if s.answer != nil {
		a := s.answer.Clone()
		st.answer = &a
	}
	return st
}

func (s *EntityStore) restore(st entityState) {
	s.variables = st.variables
	s.lists = st.lists
	s.messages = st.messages
	s.timer = st.timer
	s.answer = st.answer
	s.selectedVariableID = st.selectedVariableID
	s.selectedListID = st.selectedListID
	s.changes = nil
}

// Suggestions ----------------------------------------------------------------

// ClosestName returns the stored name nearest to the query by edit
// distance, for lookup diagnostics. False when the collection is empty.
func (s *EntityStore) ClosestName(entity EntityType, name string) (string, bool) {
	var candidates []string
	switch entity {
	case EntityVariable:
		for _, v := range s.variables {
			candidates = append(candidates, v.Name)
		}
	case EntityList:
		for _, l := range s.lists {
			candidates = append(candidates, l.Name)
		}
	case EntityMessage:
		candidates = s.messageNames("")
	}
	best, bestDist := "", -1
	for _, candidate := range candidates {
		d := levenshtein.ComputeDistance(name, candidate)
		if bestDist < 0 || d < bestDist {
			best, bestDist = candidate, d
		}
	}
	return best, bestDist >= 0
}
