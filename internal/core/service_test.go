package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"blockcore/internal/infra/persistence/memory"
	"blockcore/pkg/domain"
)

var bg = context.Background()

func noCtx() EditContext { return EditContext{} }

type blockAllRule struct{}

func (blockAllRule) Name() string { return "block_all" }

func (blockAllRule) Evaluate(context.Context, domain.RuleView, []domain.Change) (domain.Result, error) {
	return domain.Result{Violations: []domain.Violation{{
		Rule: "block_all", Severity: domain.SeverityBlock, Message: "rejected",
	}}}, nil
}

type recordingSyncer struct {
	mu     sync.Mutex
	pushes int
	vars   []Variable
	lists  []Variable
}

func (r *recordingSyncer) Push(_ context.Context, variables, lists []Variable) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pushes++
	r.vars = variables
	r.lists = lists
}

type recordingMetrics struct {
	ops     []string
	success []bool
}

func (r *recordingMetrics) Observe(_ context.Context, op string, success bool, _ time.Duration) {
	r.ops = append(r.ops, op)
	r.success = append(r.success, success)
}

func TestServiceAddVariableResolvesCollision(t *testing.T) {
	svc := NewService(nil)
	if _, err := svc.AddVariable(bg, noCtx(), Variable{Name: "scores"}); err != nil {
		t.Fatalf("first add: %v", err)
	}
	second, err := svc.AddVariable(bg, noCtx(), Variable{Name: "scores"})
	if err != nil {
		t.Fatalf("second add: %v", err)
	}
	if second.Name != "scores1" {
		t.Fatalf("expected scores1, got %q", second.Name)
	}
}

func TestServiceAddVariableTruncatesName(t *testing.T) {
	svc := NewService(nil)
	created, err := svc.AddVariable(bg, noCtx(), Variable{Name: "averylongname"})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if created.Name != "averylongn" {
		t.Fatalf("expected 10-rune truncation, got %q", created.Name)
	}
}

func TestServiceRenameRejectsWhatAddAdjusts(t *testing.T) {
	svc := NewService(nil)
	v, _ := svc.AddVariable(bg, noCtx(), Variable{Name: "scores"})
	if _, err := svc.AddVariable(bg, noCtx(), Variable{Name: "lives"}); err != nil {
		t.Fatalf("add: %v", err)
	}

	var dup domain.DuplicateNameError
	if err := svc.RenameVariable(bg, noCtx(), v.ID, "lives"); !errors.As(err, &dup) {
		t.Fatalf("expected DuplicateNameError, got %v", err)
	}
	var tooLong domain.NameTooLongError
	if err := svc.RenameVariable(bg, noCtx(), v.ID, "averylongname"); !errors.As(err, &tooLong) {
		t.Fatalf("expected NameTooLongError, got %v", err)
	}
	got, _ := svc.VariableByName("scores", ScopeAny, "")
	if got.ID != v.ID {
		t.Fatal("rejected rename must leave the old name intact")
	}
}

func TestServiceBlockingRuleRollsBack(t *testing.T) {
	engine := domain.NewRulesEngine()
	engine.Register(blockAllRule{})
	svc := NewService(engine)

	_, err := svc.AddVariable(bg, noCtx(), Variable{Name: "score"})
	var rve RuleViolationError
	if !errors.As(err, &rve) {
		t.Fatalf("expected RuleViolationError, got %v", err)
	}
	if len(svc.Variables()) != 0 {
		t.Fatalf("blocked mutation leaked into state: %+v", svc.Variables())
	}
}

func TestServiceSlidableConversion(t *testing.T) {
	svc := NewService(nil)
	v, _ := svc.AddVariable(bg, noCtx(), Variable{Name: "speed", Value: 250.0})

	if err := svc.SetVariableSlidable(bg, noCtx(), v.ID, true); err != nil {
		t.Fatalf("set slidable: %v", err)
	}
	got, _ := svc.VariableByName("speed", ScopeAny, "")
	if got.Kind != KindSlide || got.MinValue != 0 || got.MaxValue != 100 {
		t.Fatalf("slide conversion: %+v", got)
	}
	if got.Value != float64(100) {
		t.Fatalf("value not clamped into range: %v", got.Value)
	}

	if err := svc.SetVariableSlidable(bg, noCtx(), v.ID, false); err != nil {
		t.Fatalf("unset slidable: %v", err)
	}
	got, _ = svc.VariableByName("speed", ScopeAny, "")
	if got.Kind != KindVariable || got.MaxValue != 0 {
		t.Fatalf("conversion back: %+v", got)
	}
}

func TestServiceSetSlideRangeRejectsInvertedBounds(t *testing.T) {
	svc := NewService(nil)
	v, _ := svc.AddVariable(bg, noCtx(), Variable{Name: "speed"})
	var verr domain.ValidationError
	if err := svc.SetSlideRange(bg, noCtx(), v.ID, 50, 10); !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestServiceRemoveFunctionDropsReferences(t *testing.T) {
	purger := &purgeRecorder{}
	svc := NewService(nil, WithScriptPurger(purger))
	fn, err := svc.CreateFunction(bg, noCtx(), Function{Params: literalParams("jump")})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	callType := domain.CallBlockType(fn.ID)
	svc.BlockAttached(boardCtx("obj"), Block{ID: "c1", Type: callType})
	if got := svc.CallersOfFunction(fn.ID); len(got) != 1 {
		t.Fatalf("expected one call edge, got %+v", got)
	}

	if err := svc.RemoveFunction(bg, noCtx(), fn.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if len(purger.types) != 1 || purger.types[0] != callType {
		t.Fatalf("script purge not requested: %v", purger.types)
	}
	if got := svc.CallersOfFunction(fn.ID); len(got) != 0 {
		t.Fatalf("call edges survived removal: %+v", got)
	}
	if _, ok := svc.GetFunction(fn.ID); ok {
		t.Fatal("definition survived removal")
	}
}

func TestServiceRemoveObjectCascades(t *testing.T) {
	svc := NewService(nil)
	if _, err := svc.AddVariable(bg, noCtx(), Variable{Name: "hp", ObjectID: "obj-1"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := svc.AddList(bg, noCtx(), Variable{Name: "inv", ObjectID: "obj-1"}); err != nil {
		t.Fatalf("add list: %v", err)
	}
	if _, err := svc.AddVariable(bg, noCtx(), Variable{Name: "global"}); err != nil {
		t.Fatalf("add global: %v", err)
	}

	if err := svc.RemoveObject(bg, noCtx(), "obj-1"); err != nil {
		t.Fatalf("remove object: %v", err)
	}
	if vars := svc.Variables(); len(vars) != 1 || vars[0].Name != "global" {
		t.Fatalf("cascade left: %+v", vars)
	}
	if len(svc.Lists()) != 0 {
		t.Fatalf("list survived cascade: %+v", svc.Lists())
	}
}

func TestServiceCloneObject(t *testing.T) {
	svc := NewService(nil)
	src, _ := svc.AddVariable(bg, noCtx(), Variable{Name: "hp", ObjectID: "v1"})

	result, err := svc.CloneObject(bg, noCtx(), "v1", "v2", "change ["+src.ID+"]")
	if err != nil {
		t.Fatalf("clone: %v", err)
	}
	if len(result.Variables) != 1 || result.Variables[0].ObjectID != "v2" {
		t.Fatalf("clone result: %+v", result)
	}
	if result.Script == "change ["+src.ID+"]" {
		t.Fatal("script ids not rewritten")
	}
}

func TestServiceCloudPushAfterMutation(t *testing.T) {
	syncer := &recordingSyncer{}
	svc := NewService(nil, WithCloudSyncer(syncer))

	if _, err := svc.AddVariable(bg, noCtx(), Variable{Name: "local"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	syncer.mu.Lock()
	pushes := syncer.pushes
	syncer.mu.Unlock()
	if pushes != 0 {
		t.Fatal("push fired with no cloud entities")
	}

	if _, err := svc.AddVariable(bg, noCtx(), Variable{Name: "highscore", Cloud: true}); err != nil {
		t.Fatalf("add cloud: %v", err)
	}
	syncer.mu.Lock()
	defer syncer.mu.Unlock()
	if syncer.pushes != 1 || len(syncer.vars) != 1 || syncer.vars[0].Name != "highscore" {
		t.Fatalf("cloud push: pushes=%d vars=%+v", syncer.pushes, syncer.vars)
	}
}

func TestServiceMetricsObserveEveryOperation(t *testing.T) {
	metrics := &recordingMetrics{}
	svc := NewService(nil, WithMetrics(metrics))

	if _, err := svc.AddVariable(bg, noCtx(), Variable{Name: "score"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	v, _ := svc.VariableByName("score", ScopeAny, "")
	if err := svc.RenameVariable(bg, noCtx(), v.ID, "averylongname"); err == nil {
		t.Fatal("expected rename rejection")
	}

	if len(metrics.ops) != 2 || metrics.ops[0] != "add_variable" || metrics.ops[1] != "rename_variable" {
		t.Fatalf("observed ops: %v", metrics.ops)
	}
	if !metrics.success[0] || metrics.success[1] {
		t.Fatalf("observed outcomes: %v", metrics.success)
	}
}

func TestServiceSaveLoadRoundTrip(t *testing.T) {
	store := memory.NewStore()
	svc := NewService(nil, WithProjectStore(store))
	if _, err := svc.AddVariable(bg, noCtx(), Variable{Name: "score"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := svc.CreateFunction(bg, noCtx(), Function{Params: literalParams("jump")}); err != nil {
		t.Fatalf("create function: %v", err)
	}
	if err := svc.Save(bg); err != nil {
		t.Fatalf("save: %v", err)
	}

	restored := NewService(nil, WithProjectStore(store))
	if err := restored.Load(bg); err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, ok := restored.VariableByName("score", ScopeAny, ""); !ok {
		t.Fatal("variable not restored")
	}
	if len(restored.Functions()) != 1 {
		t.Fatalf("functions not restored: %+v", restored.Functions())
	}
	if _, ok := restored.Timer(); !ok {
		t.Fatal("timer singleton missing after load")
	}
}

func TestServiceLoadWithoutStore(t *testing.T) {
	svc := NewService(nil)
	var verr domain.ValidationError
	if err := svc.Load(bg); !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if err := svc.Save(bg); !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestServiceLoadEmptyStoreIsNoOp(t *testing.T) {
	svc := NewService(nil, WithProjectStore(memory.NewStore()))
	if _, err := svc.AddVariable(bg, noCtx(), Variable{Name: "score"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := svc.Load(bg); err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(svc.Variables()) != 1 {
		t.Fatal("load from an empty store must not clear state")
	}
}

func TestServiceObjectEntities(t *testing.T) {
	svc := NewService(nil)
	v, _ := svc.AddVariable(bg, noCtx(), Variable{Name: "score"})
	m, _ := svc.AddMessage(bg, noCtx(), "ping")
	inner, _ := svc.CreateFunction(bg, noCtx(), Function{
		Params: literalParams("inner"),
		Body:   []domain.Block{{ID: "ib", Type: "set", Params: []string{v.ID}}},
	})
	outer, _ := svc.CreateFunction(bg, noCtx(), Function{
		Params: literalParams("outer"),
		Body:   []domain.Block{{ID: "ob", Type: domain.CallBlockType(inner.ID)}},
	})

	blocks := []Block{
		{ID: "b1", Type: domain.CallBlockType(outer.ID)},
		{ID: "b2", Type: "broadcast", Params: []string{m.ID}},
	}
	variables, messages, functions := svc.ObjectEntities("obj", blocks)
	if len(variables) != 1 || variables[0].ID != v.ID {
		t.Fatalf("variables: %+v", variables)
	}
	if len(messages) != 1 || messages[0].ID != m.ID {
		t.Fatalf("messages: %+v", messages)
	}
	if len(functions) != 2 {
		t.Fatalf("expected both functions via the transitive walk, got %+v", functions)
	}
}

func TestServiceFunctionRemovalScenario(t *testing.T) {
	// Create two functions where one calls the other, attach a call block,
	// then destroy the callee: the caller's body and the board must both be
	// clean afterwards.
	purger := &purgeRecorder{}
	svc := NewService(nil, WithScriptPurger(purger))
	callee, _ := svc.CreateFunction(bg, noCtx(), Function{Params: literalParams("helper")})
	caller, _ := svc.CreateFunction(bg, noCtx(), Function{
		Params: literalParams("main"),
		Body:   []domain.Block{{ID: "cb", Type: domain.CallBlockType(callee.ID)}},
	})

	svc.BlockAttached(boardCtx("obj"), Block{ID: "board-call", Type: domain.CallBlockType(callee.ID)})
	if err := svc.RemoveFunction(bg, noCtx(), callee.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}

	got, _ := svc.GetFunction(caller.ID)
	if len(got.Body) != 0 {
		t.Fatalf("caller body still holds the call block: %+v", got.Body)
	}
	if len(purger.types) != 1 {
		t.Fatalf("expected one purge request, got %v", purger.types)
	}
	if refs := svc.CallersOfFunction(callee.ID); len(refs) != 0 {
		t.Fatalf("reference records survived: %+v", refs)
	}
}
