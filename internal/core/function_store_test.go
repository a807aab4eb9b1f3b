package core

import (
	"errors"
	"testing"

	"blockcore/pkg/domain"
)

func newTestFunctionStore() *FunctionStore {
	s := NewFunctionStore()
	s.newIDFn = sequentialIDs("fn")
	return s
}

func literalParams(words ...string) []domain.ParamNode {
	nodes := make([]domain.ParamNode, len(words))
	for i, w := range words {
		nodes[i] = domain.ParamNode{Kind: domain.ParamLiteral, Text: w}
	}
	return nodes
}

type purgeRecorder struct {
	types []string
}

func (p *purgeRecorder) PurgeBlockType(blockType string) {
	p.types = append(p.types, blockType)
}

func TestFunctionAddAssignsIDAndSignature(t *testing.T) {
	s := newTestFunctionStore()
	fn, err := s.Add(Function{Params: literalParams("jump")})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if fn.ID == "" {
		t.Fatal("expected an assigned id")
	}
	if sig, ok := s.Signature(fn.ID); !ok || sig != "jump" {
		t.Fatalf("signature: got %q ok=%v", sig, ok)
	}
}

func TestFunctionAddKnownIDReturnsStored(t *testing.T) {
	s := newTestFunctionStore()
	first, _ := s.Add(Function{ID: "f1", Params: literalParams("jump")})
	again, err := s.Add(Function{ID: "f1", Params: literalParams("run")})
	if err != nil {
		t.Fatalf("re-add: %v", err)
	}
	if again.Params[0].Text != first.Params[0].Text {
		t.Fatalf("expected the stored definition back, got %+v", again)
	}
	if len(s.Functions()) != 1 {
		t.Fatalf("expected 1 function, got %d", len(s.Functions()))
	}
}

func TestFunctionSignatureDedup(t *testing.T) {
	s := newTestFunctionStore()
	if _, err := s.Add(Function{Params: literalParams("jump")}); err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := s.Add(Function{Params: literalParams("jump")})
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if sig, _ := s.Signature(second.ID); sig != "jump1" {
		t.Fatalf("expected jump1, got %q", sig)
	}
	if second.Params[0].Text != "jump1" {
		t.Fatalf("declaration literal not rewritten: %+v", second.Params)
	}
	third, err := s.Add(Function{Params: literalParams("jump")})
	if err != nil {
		t.Fatalf("third: %v", err)
	}
	if sig, _ := s.Signature(third.ID); sig != "jump2" {
		t.Fatalf("expected jump2, got %q", sig)
	}
}

func TestFunctionDedupRewritesRightmostLiteral(t *testing.T) {
	s := newTestFunctionStore()
	params := func() []domain.ParamNode {
		return []domain.ParamNode{
			{Kind: domain.ParamLiteral, Text: "say"},
			{Kind: domain.ParamString, Text: "what"},
			{Kind: domain.ParamLiteral, Text: "loudly"},
		}
	}
	if _, err := s.Add(Function{Params: params()}); err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := s.Add(Function{Params: params()})
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if second.Params[0].Text != "say" || second.Params[2].Text != "loudly1" {
		t.Fatalf("expected rightmost literal rewrite, got %+v", second.Params)
	}
	if sig, _ := s.Signature(second.ID); sig != "saystringloudly1" {
		t.Fatalf("unexpected signature %q", sig)
	}
}

func TestFunctionDedupStartsAtLowestFreeSuffix(t *testing.T) {
	s := newTestFunctionStore()
	jumpString := func() []domain.ParamNode {
		return []domain.ParamNode{
			{Kind: domain.ParamLiteral, Text: "jump"},
			{Kind: domain.ParamString, Text: "how"},
		}
	}
	if _, err := s.Add(Function{Params: jumpString()}); err != nil {
		t.Fatalf("first: %v", err)
	}
	// Occupies the "jumpstring1" signature, which must not push the next
	// collision past the free "jump1string".
	if _, err := s.Add(Function{Params: literalParams("jumpstring1")}); err != nil {
		t.Fatalf("decoy: %v", err)
	}

	third, err := s.Add(Function{Params: jumpString()})
	if err != nil {
		t.Fatalf("third: %v", err)
	}
	if third.Params[0].Text != "jump1" {
		t.Fatalf("expected literal jump1, got %+v", third.Params)
	}
	if sig, _ := s.Signature(third.ID); sig != "jump1string" {
		t.Fatalf("unexpected signature %q", sig)
	}
}

func TestFunctionDedupWithoutLiteralRejected(t *testing.T) {
	s := newTestFunctionStore()
	placeholderOnly := func() []domain.ParamNode {
		return []domain.ParamNode{{Kind: domain.ParamString, Text: "value"}}
	}
	if _, err := s.Add(Function{Params: placeholderOnly()}); err != nil {
		t.Fatalf("first: %v", err)
	}
	_, err := s.Add(Function{Params: placeholderOnly()})
	var verr domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestFunctionDedupThroughNestedBlocks(t *testing.T) {
	s := newTestFunctionStore()
	nested := func() []domain.ParamNode {
		return []domain.ParamNode{
			{Kind: domain.ParamBlock, Children: []domain.ParamNode{
				{Kind: domain.ParamLiteral, Text: "go"},
				{Kind: domain.ParamBoolean, Text: "fast"},
			}},
		}
	}
	if _, err := s.Add(Function{Params: nested()}); err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := s.Add(Function{Params: nested()})
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if second.Params[0].Children[0].Text != "go1" {
		t.Fatalf("nested literal not rewritten: %+v", second.Params)
	}
}

func TestFunctionRemovePurgesCallBlocks(t *testing.T) {
	s := newTestFunctionStore()
	target, _ := s.Add(Function{ID: "target", Params: literalParams("jump")})
	callType := domain.CallBlockType(target.ID)
	if _, err := s.Add(Function{
		ID:     "caller",
		Params: literalParams("run"),
		Body: []domain.Block{
			{ID: "b1", Type: "move"},
			{ID: "b2", Type: callType},
			{ID: "b3", Type: "turn"},
		},
	}); err != nil {
		t.Fatalf("add caller: %v", err)
	}

	purger := &purgeRecorder{}
	if !s.Remove(target.ID, purger) {
		t.Fatal("expected removal to report true")
	}
	if len(purger.types) != 1 || purger.types[0] != callType {
		t.Fatalf("expected script purge of %q, got %v", callType, purger.types)
	}
	caller, _ := s.Get("caller")
	if len(caller.Body) != 2 || caller.Body[0].ID != "b1" || caller.Body[1].ID != "b3" {
		t.Fatalf("call block not stripped from other bodies: %+v", caller.Body)
	}
	if _, ok := s.Get(target.ID); ok {
		t.Fatal("definition still present")
	}
	if _, ok := s.Signature(target.ID); ok {
		t.Fatal("signature still indexed")
	}
	if s.Remove(target.ID, purger) {
		t.Fatal("second removal must report false")
	}
}

func TestFunctionRemoveFreesSignature(t *testing.T) {
	s := newTestFunctionStore()
	first, _ := s.Add(Function{Params: literalParams("jump")})
	s.Remove(first.ID, nil)
	again, err := s.Add(Function{Params: literalParams("jump")})
	if err != nil {
		t.Fatalf("re-add: %v", err)
	}
	if sig, _ := s.Signature(again.ID); sig != "jump" {
		t.Fatalf("expected the freed signature to be reusable, got %q", sig)
	}
}

func TestFunctionSnapshotRestore(t *testing.T) {
	s := newTestFunctionStore()
	first, _ := s.Add(Function{Params: literalParams("jump")})
	s.DrainChanges()
	st := s.snapshot()

	if _, err := s.Add(Function{Params: literalParams("run")}); err != nil {
		t.Fatalf("add: %v", err)
	}
	s.Remove(first.ID, nil)

	s.restore(st)
	fns := s.Functions()
	if len(fns) != 1 || fns[0].ID != first.ID {
		t.Fatalf("restore did not roll back, got %+v", fns)
	}
	if sig, ok := s.Signature(first.ID); !ok || sig != "jump" {
		t.Fatalf("signature index not restored: %q ok=%v", sig, ok)
	}
}
