package core

import (
	"context"
	"sync"
	"time"

	"blockcore/pkg/domain"
)

// CloudSyncer pushes the cloud-flagged entities to remote storage. Push is
// best-effort and must return without blocking on network I/O.
type CloudSyncer interface {
	Push(ctx context.Context, variables, lists []Variable)
}

// Service is the action surface consumed by the command dispatcher. Every
// operation takes an explicit EditContext instead of reading ambient editor
// globals. One coarse mutex serializes all access, since no operation is
// internally atomic across field mutations; mutations run against a
// snapshot discipline so a blocking rule violation leaves prior state
// intact.
type Service struct {
	mu        sync.Mutex
	entities  *EntityStore
	functions *FunctionStore
	refs      *ReferenceIndex
	cloner    *CloneCoordinator
	engine    *RulesEngine

	store  ProjectStore
	purger ScriptPurger
	syncer CloudSyncer

	logger  Logger
	metrics MetricsRecorder
	tracer  Tracer
}

// ServiceOption customizes service construction.
type ServiceOption func(*Service)

// WithLogger installs a structured logger.
func WithLogger(l Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics installs a metrics recorder.
func WithMetrics(m MetricsRecorder) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

// WithTracer installs a tracer.
func WithTracer(t Tracer) ServiceOption {
	return func(s *Service) { s.tracer = t }
}

// WithProjectStore installs a durable backend for Save and Load.
func WithProjectStore(store ProjectStore) ServiceOption {
	return func(s *Service) { s.store = store }
}

// WithCloudSyncer installs the cloud variable push collaborator.
func WithCloudSyncer(syncer CloudSyncer) ServiceOption {
	return func(s *Service) { s.syncer = syncer }
}

// WithScriptPurger installs the block-graph collaborator that strips call
// blocks when a function is destroyed.
func WithScriptPurger(p ScriptPurger) ServiceOption {
	return func(s *Service) { s.purger = p }
}

// NewService constructs a workspace service. A nil engine gets the default
// policy set.
func NewService(engine *RulesEngine, opts ...ServiceOption) *Service {
	if engine == nil {
		engine = NewDefaultRulesEngine()
	}
	entities := NewEntityStore()
	functions := NewFunctionStore()
	s := &Service{
		entities:  entities,
		functions: functions,
		refs:      NewReferenceIndex(entities, functions),
		cloner:    NewCloneCoordinator(entities),
		engine:    engine,
		logger:    noopLogger{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// workspaceView adapts a committed snapshot to the rule evaluation surface.
type workspaceView struct {
	variables []Variable
	lists     []Variable
	messages  []Message
	functions []Function
	timer     *Variable
	answer    *Variable
}

func (v workspaceView) ListVariables() []Variable { return v.variables }
func (v workspaceView) ListLists() []Variable     { return v.lists }
func (v workspaceView) ListMessages() []Message   { return v.messages }
func (v workspaceView) ListFunctions() []Function { return v.functions }

func (v workspaceView) Timer() (Variable, bool) {
	if v.timer == nil {
		return Variable{}, false
	}
	return *v.timer, true
}

func (v workspaceView) Answer() (Variable, bool) {
	if v.answer == nil {
		return Variable{}, false
	}
	return *v.answer, true
}

func (s *Service) viewLocked() workspaceView {
	view := workspaceView{
		variables: s.entities.Variables(),
		lists:     s.entities.Lists(),
		messages:  s.entities.Messages(),
		functions: s.functions.Functions(),
	}
	if timer, ok := s.entities.Timer(); ok {
		view.timer = &timer
	}
	if answer, ok := s.entities.Answer(); ok {
		view.answer = &answer
	}
	return view
}

// run wraps one mutation: lock, snapshot, apply, evaluate rules, and either
// commit or restore. Tracing and metrics observe the whole operation.
func (s *Service) run(ctx context.Context, op string, fn func(ctx context.Context) error) (err error) {
	var span TraceSpan
	if s.tracer != nil {
		ctx, span = s.tracer.Start(ctx, op)
	}
	start := time.Now()

	s.mu.Lock()
	entitySnap := s.entities.snapshot()
	functionSnap := s.functions.snapshot()
	err = fn(ctx)
	if err != nil {
		s.entities.restore(entitySnap)
		s.functions.restore(functionSnap)
	} else {
		changes := append(s.entities.DrainChanges(), s.functions.DrainChanges()...)
		var res Result
		res, err = s.engine.Evaluate(ctx, s.viewLocked(), changes)
		switch {
		case err != nil:
			s.entities.restore(entitySnap)
			s.functions.restore(functionSnap)
		case res.HasBlocking():
			s.entities.restore(entitySnap)
			s.functions.restore(functionSnap)
			err = RuleViolationError{Result: res}
		default:
			for _, v := range res.Violations {
				if v.Severity == SeverityWarn {
					s.logger.Warn("rule warning", "rule", v.Rule, "message", v.Message)
				}
			}
		}
	}
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.Observe(ctx, op, err == nil, time.Since(start))
	}
	if span != nil {
		span.End(err)
	}
	if err != nil {
		s.logger.Debug("operation rejected", "operation", op, "error", err.Error())
	}
	return err
}

// Variables ------------------------------------------------------------------

// AddVariable creates a variable in the context's scope. An over-length
// name is truncated with a logged advisory; colliding names get a numeric
// suffix before the store re-checks, so interactive adds never fail on a
// duplicate.
func (s *Service) AddVariable(ctx context.Context, _ EditContext, v Variable) (Variable, error) {
	var created Variable
	err := s.run(ctx, "add_variable", func(context.Context) error {
		v.Name = s.boundedName(v.Name)
		v.Name = domain.OrderedName(v.Name, partitionNames(s.entities.variables, v.ObjectID, ""))
		var err error
		created, err = s.entities.AddVariable(v)
		if err != nil {
			return err
		}
		s.entities.SelectVariable(created.ID)
		return nil
	})
	if err != nil {
		return Variable{}, err
	}
	s.pushCloud(ctx)
	return created, nil
}

func (s *Service) boundedName(name string) string {
	bounded, truncated := domain.TruncateName(name, domain.MaxNameLength)
	if truncated {
		s.logger.Warn("name truncated", "name", name, "max", domain.MaxNameLength)
	}
	return bounded
}

// RemoveVariable detaches a variable. A missing id is a silent no-op.
func (s *Service) RemoveVariable(ctx context.Context, _ EditContext, id string) error {
	err := s.run(ctx, "remove_variable", func(context.Context) error {
		s.entities.RemoveVariable(id)
		return nil
	})
	if err != nil {
		return err
	}
	s.pushCloud(ctx)
	return nil
}

// RenameVariable renames in place. Unlike AddVariable, an over-length or
// colliding name is rejected, not adjusted: the caller owns the text the
// user typed.
func (s *Service) RenameVariable(ctx context.Context, _ EditContext, id, newName string) error {
	err := s.run(ctx, "rename_variable", func(context.Context) error {
		return s.entities.RenameVariable(id, newName)
	})
	if err != nil {
		return err
	}
	s.pushCloud(ctx)
	return nil
}

// SetVariableVisibility toggles the on-canvas visibility flag.
func (s *Service) SetVariableVisibility(ctx context.Context, _ EditContext, id string, visible bool) error {
	return s.run(ctx, "set_variable_visibility", func(context.Context) error {
		s.entities.UpdateVariable(id, func(v *Variable) { v.Visible = visible })
		return nil
	})
}

// SetVariableValue sets the default value.
func (s *Service) SetVariableValue(ctx context.Context, _ EditContext, id string, value any) error {
	err := s.run(ctx, "set_variable_value", func(context.Context) error {
		s.entities.UpdateVariable(id, func(v *Variable) { v.Value = value })
		return nil
	})
	if err != nil {
		return err
	}
	s.pushCloud(ctx)
	return nil
}

// SetSlideRange sets the bounds of a slide variable.
func (s *Service) SetSlideRange(ctx context.Context, _ EditContext, id string, minValue, maxValue float64) error {
	return s.run(ctx, "set_slide_range", func(context.Context) error {
		if minValue > maxValue {
			return domain.ValidationError{Op: "set slide range", Reason: "min above max"}
		}
		s.entities.UpdateVariable(id, func(v *Variable) {
			v.MinValue = minValue
			v.MaxValue = maxValue
		})
		return nil
	})
}

// SetVariableSlidable converts a variable between plain and slide kinds,
// preserving its id. Converting to slide installs the default [0,100] range
// and clamps a numeric value into it.
func (s *Service) SetVariableSlidable(ctx context.Context, _ EditContext, id string, slidable bool) error {
	return s.run(ctx, "set_variable_slidable", func(context.Context) error {
		s.entities.UpdateVariable(id, func(v *Variable) {
			if slidable {
				v.Kind = KindSlide
				v.MinValue = 0
				v.MaxValue = 100
				if value, ok := numericValue(v.Value); ok {
					if value < 0 {
						v.Value = float64(0)
					} else if value > 100 {
						v.Value = float64(100)
					}
				}
			} else {
				v.Kind = KindVariable
				v.MinValue = 0
				v.MaxValue = 0
			}
		})
		return nil
	})
}

// Lists ----------------------------------------------------------------------

// AddList creates a list in the context's scope, name-adjusted like
// AddVariable.
func (s *Service) AddList(ctx context.Context, _ EditContext, l Variable) (Variable, error) {
	var created Variable
	err := s.run(ctx, "add_list", func(context.Context) error {
		l.Name = s.boundedName(l.Name)
		l.Name = domain.OrderedName(l.Name, partitionNames(s.entities.lists, l.ObjectID, ""))
		var err error
		created, err = s.entities.AddList(l)
		if err != nil {
			return err
		}
		s.entities.SelectList(created.ID)
		return nil
	})
	if err != nil {
		return Variable{}, err
	}
	s.pushCloud(ctx)
	return created, nil
}

// RemoveList detaches a list. A missing id is a silent no-op.
func (s *Service) RemoveList(ctx context.Context, _ EditContext, id string) error {
	err := s.run(ctx, "remove_list", func(context.Context) error {
		s.entities.RemoveList(id)
		return nil
	})
	if err != nil {
		return err
	}
	s.pushCloud(ctx)
	return nil
}

// RenameList renames in place with the same rejection semantics as
// RenameVariable.
func (s *Service) RenameList(ctx context.Context, _ EditContext, id, newName string) error {
	err := s.run(ctx, "rename_list", func(context.Context) error {
		return s.entities.RenameList(id, newName)
	})
	if err != nil {
		return err
	}
	s.pushCloud(ctx)
	return nil
}

// SetListVisibility toggles the on-canvas visibility flag.
func (s *Service) SetListVisibility(ctx context.Context, _ EditContext, id string, visible bool) error {
	return s.run(ctx, "set_list_visibility", func(context.Context) error {
		s.entities.UpdateList(id, func(l *Variable) { l.Visible = visible })
		return nil
	})
}

// SetListLength grows or shrinks a list.
func (s *Service) SetListLength(ctx context.Context, _ EditContext, id string, op LengthOp, target int) error {
	err := s.run(ctx, "set_list_length", func(context.Context) error {
		return s.entities.ChangeListLength(id, op, target)
	})
	if err != nil {
		return err
	}
	s.pushCloud(ctx)
	return nil
}

// SetListEntry mutates one list slot.
func (s *Service) SetListEntry(ctx context.Context, _ EditContext, id string, index int, value any) error {
	err := s.run(ctx, "set_list_entry", func(context.Context) error {
		return s.entities.SetListEntry(id, index, value)
	})
	if err != nil {
		return err
	}
	s.pushCloud(ctx)
	return nil
}

// Messages -------------------------------------------------------------------

// AddMessage creates a broadcast message; collisions get a numeric suffix.
func (s *Service) AddMessage(ctx context.Context, _ EditContext, name string) (Message, error) {
	var created Message
	err := s.run(ctx, "add_message", func(context.Context) error {
		bounded := s.boundedName(name)
		resolved := domain.OrderedName(bounded, s.entities.messageNames(""))
		var err error
		created, err = s.entities.AddMessage(Message{Name: resolved})
		return err
	})
	if err != nil {
		return Message{}, err
	}
	return created, nil
}

// RemoveMessage detaches a message. A missing id is a silent no-op.
func (s *Service) RemoveMessage(ctx context.Context, _ EditContext, id string) error {
	return s.run(ctx, "remove_message", func(context.Context) error {
		s.entities.RemoveMessage(id)
		return nil
	})
}

// RenameMessage renames in place; over-length and colliding names are
// rejected.
func (s *Service) RenameMessage(ctx context.Context, _ EditContext, id, newName string) error {
	return s.run(ctx, "rename_message", func(context.Context) error {
		return s.entities.RenameMessage(id, newName)
	})
}

// Functions ------------------------------------------------------------------

// CreateFunction registers a function, running signature deduplication.
func (s *Service) CreateFunction(ctx context.Context, _ EditContext, fn Function) (Function, error) {
	var created Function
	err := s.run(ctx, "create_function", func(context.Context) error {
		var err error
		created, err = s.functions.Add(fn)
		return err
	})
	if err != nil {
		return Function{}, err
	}
	return created, nil
}

// RemoveFunction destroys a function, purges its call blocks everywhere,
// and drops its reference records.
func (s *Service) RemoveFunction(ctx context.Context, _ EditContext, id string) error {
	return s.run(ctx, "remove_function", func(context.Context) error {
		if s.functions.Remove(id, s.purger) {
			s.refs.DropFunction(id)
		}
		return nil
	})
}

// Objects --------------------------------------------------------------------

// RemoveObject cascades an object deletion through the entity store.
func (s *Service) RemoveObject(ctx context.Context, _ EditContext, objectID string) error {
	err := s.run(ctx, "remove_object", func(context.Context) error {
		s.entities.RemoveAllOwnedBy(objectID)
		return nil
	})
	if err != nil {
		return err
	}
	s.pushCloud(ctx)
	return nil
}

// CloneObject duplicates sourceObjectID's local entities for newObjectID
// and rewrites the given script text.
func (s *Service) CloneObject(ctx context.Context, _ EditContext, sourceObjectID, newObjectID, script string) (CloneResult, error) {
	var result CloneResult
	err := s.run(ctx, "clone_object", func(context.Context) error {
		var err error
		result, err = s.cloner.CloneLocalEntities(sourceObjectID, newObjectID, script)
		return err
	})
	if err != nil {
		return CloneResult{}, err
	}
	return result, nil
}

// Reference tracking ---------------------------------------------------------

// BlockAttached notifies the reference index of a newly attached block.
func (s *Service) BlockAttached(ectx EditContext, block Block) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refs.BlockAttached(ectx, block)
}

// BlockDetached notifies the reference index of a removed block.
func (s *Service) BlockDetached(ectx EditContext, block Block) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refs.BlockDetached(ectx, block)
}

// CallersOfVariable lists the blocks using a variable or list.
func (s *Service) CallersOfVariable(id string) []Reference {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refs.CallersOfVariable(id)
}

// CallersOfMessage lists the blocks using a message.
func (s *Service) CallersOfMessage(id string) []Reference {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refs.CallersOfMessage(id)
}

// CallersOfFunction lists the call blocks of a function.
func (s *Service) CallersOfFunction(id string) []Reference {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refs.CallersOfFunction(id)
}

// RebuildReferences rebuilds the index from the live block graph.
func (s *Service) RebuildReferences(objects map[string][]Block) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refs.Rebuild(objects)
}

// ReferenceCounts reports the number of live reference records per kind.
func (s *Service) ReferenceCounts() (variables, messages, functions int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refs.Counts()
}

// Reads ----------------------------------------------------------------------

// VariableByName resolves a name against the scope filter. A miss logs the
// closest stored name for diagnostics.
func (s *Service) VariableByName(name string, scope ScopeFilter, objectID string) (Variable, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.entities.VariableByName(name, scope, objectID)
	if !ok {
		if suggestion, found := s.entities.ClosestName(EntityVariable, name); found {
			s.logger.Debug("variable not found", "name", name, "closest", suggestion)
		}
	}
	return v, ok
}

// ListByName resolves a list name against the scope filter.
func (s *Service) ListByName(name string, scope ScopeFilter, objectID string) (Variable, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.entities.ListByName(name, scope, objectID)
	if !ok {
		if suggestion, found := s.entities.ClosestName(EntityList, name); found {
			s.logger.Debug("list not found", "name", name, "closest", suggestion)
		}
	}
	return l, ok
}

// MessageByName resolves a message name.
func (s *Service) MessageByName(name string) (Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entities.MessageByName(name)
}

// Variables returns the variable sequence.
func (s *Service) Variables() []Variable {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entities.Variables()
}

// Lists returns the list sequence.
func (s *Service) Lists() []Variable {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entities.Lists()
}

// Messages returns the message sequence.
func (s *Service) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entities.Messages()
}

// Functions returns all function definitions.
func (s *Service) Functions() []Function {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.functions.Functions()
}

// GetFunction returns one definition.
func (s *Service) GetFunction(id string) (Function, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.functions.Get(id)
}

// FunctionSignature returns the display signature of a function.
func (s *Service) FunctionSignature(id string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.functions.Signature(id)
}

// Timer returns the timer singleton.
func (s *Service) Timer() (Variable, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entities.Timer()
}

// Answer returns the answer singleton.
func (s *Service) Answer() (Variable, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entities.Answer()
}

// ObjectEntities collects the variables, messages, and transitively reached
// functions an object's blocks reference, for single-object export.
func (s *Service) ObjectEntities(objectID string, blocks []Block) ([]Variable, []Message, []Function) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var variables []Variable
	var messages []Message
	var functions []Function
	seenEntity := make(map[string]bool)
	seenFunc := make(map[string]bool)

	var walk func(blocks []Block)
	walk = func(blocks []Block) {
		for _, block := range blocks {
			if funcID, ok := domain.FunctionIDFromBlockType(block.Type); ok && !seenFunc[funcID] {
				seenFunc[funcID] = true
				if fn, found := s.functions.Get(funcID); found {
					functions = append(functions, fn)
					walk(fn.Body)
				}
				continue
			}
			for _, param := range block.Params {
				if seenEntity[param] {
					continue
				}
				if v, ok := s.entities.Variable(param); ok {
					seenEntity[param] = true
					variables = append(variables, v)
					continue
				}
				if l, ok := s.entities.List(param); ok {
					seenEntity[param] = true
					variables = append(variables, l)
					continue
				}
				if m, ok := s.entities.MessageByID(param); ok {
					seenEntity[param] = true
					messages = append(messages, m)
				}
			}
		}
	}
	walk(blocks)
	return variables, messages, functions
}

// Deferred confirmations -----------------------------------------------------

// DeferConfirm registers a callback for an in-flight edit on the entity.
func (s *Service) DeferConfirm(id string, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entities.DeferConfirm(id, fn)
}

// ResolveConfirm runs the deferred callback for id; stale confirmations for
// removed entities are dropped.
func (s *Service) ResolveConfirm(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entities.ResolveConfirm(id)
}

// Persistence ----------------------------------------------------------------

// Document exports the current model state.
func (s *Service) Document() (ProjectDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ToDocument(s.entities, s.functions)
}

// LoadDocument replaces the model state with the given document.
func (s *Service) LoadDocument(ctx context.Context, doc ProjectDocument) error {
	return s.run(ctx, "load_document", func(context.Context) error {
		return FromDocument(doc, s.entities, s.functions)
	})
}

// Save snapshots the model into the configured project store.
func (s *Service) Save(ctx context.Context) error {
	if s.store == nil {
		return domain.ValidationError{Op: "save", Reason: "no project store configured"}
	}
	doc, err := s.Document()
	if err != nil {
		return err
	}
	return s.store.Save(ctx, doc)
}

// Load restores the model from the configured project store. Loading an
// empty store is a no-op.
func (s *Service) Load(ctx context.Context) error {
	if s.store == nil {
		return domain.ValidationError{Op: "load", Reason: "no project store configured"}
	}
	doc, found, err := s.store.Load(ctx)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}
	return s.LoadDocument(ctx, doc)
}

// Cloud sync -----------------------------------------------------------------

// pushCloud hands the cloud-flagged entities to the syncer. Fire and
// forget: the syncer detaches from the caller, failures are logged only.
func (s *Service) pushCloud(ctx context.Context) {
	if s.syncer == nil {
		return
	}
	s.mu.Lock()
	var variables, lists []Variable
	for _, v := range s.entities.Variables() {
		if v.Cloud {
			variables = append(variables, v)
		}
	}
	for _, l := range s.entities.Lists() {
		if l.Cloud {
			lists = append(lists, l)
		}
	}
	s.mu.Unlock()
	if len(variables) == 0 && len(lists) == 0 {
		return
	}
	s.syncer.Push(ctx, variables, lists)
}
