package core

import (
	"errors"
	"strings"
	"testing"

	"blockcore/pkg/domain"
)

func TestCloneLocalEntities(t *testing.T) {
	entities := newTestEntityStore()
	mustAddVariable(t, entities, Variable{ID: "var-hp", Name: "hp", ObjectID: "v1", X: 40, Y: 60})
	mustAddVariable(t, entities, Variable{ID: "var-glob", Name: "global"})
	if _, err := entities.AddList(Variable{ID: "list-inv", Name: "inv", ObjectID: "v1"}); err != nil {
		t.Fatalf("add list: %v", err)
	}

	coordinator := NewCloneCoordinator(entities)
	script := `when clicked: change [var-hp] by 1; add "x" to [list-inv]`
	result, err := coordinator.CloneLocalEntities("v1", "v2", script)
	if err != nil {
		t.Fatalf("clone: %v", err)
	}

	if len(result.Variables) != 1 || len(result.Lists) != 1 {
		t.Fatalf("expected one variable and one list clone, got %+v", result)
	}
	clone := result.Variables[0]
	if clone.ID == "var-hp" {
		t.Fatal("clone must get a fresh id")
	}
	if clone.ObjectID != "v2" {
		t.Fatalf("clone owner: %q", clone.ObjectID)
	}
	if clone.Name != "hp" {
		t.Fatalf("free name must be kept, got %q", clone.Name)
	}
	if clone.X != 0 || clone.Y != 0 {
		t.Fatalf("canvas position not cleared: %f,%f", clone.X, clone.Y)
	}

	newHP := result.IDMap["var-hp"]
	newInv := result.IDMap["list-inv"]
	if newHP == "" || newInv == "" {
		t.Fatalf("id map incomplete: %+v", result.IDMap)
	}
	if strings.Contains(result.Script, "var-hp") || strings.Contains(result.Script, "list-inv") {
		t.Fatalf("old ids still in script: %s", result.Script)
	}
	if !strings.Contains(result.Script, newHP) || !strings.Contains(result.Script, newInv) {
		t.Fatalf("new ids missing from script: %s", result.Script)
	}

	// The global variable is shared, not cloned.
	if _, ok := result.IDMap["var-glob"]; ok {
		t.Fatal("global variable was cloned")
	}
	if len(entities.Variables()) != 3 {
		t.Fatalf("expected 3 variables in store, got %d", len(entities.Variables()))
	}
}

func TestCloneRenamesIntoOccupiedPartition(t *testing.T) {
	entities := newTestEntityStore()
	mustAddVariable(t, entities, Variable{ID: "src", Name: "hp", ObjectID: "v1"})
	mustAddVariable(t, entities, Variable{ID: "taken", Name: "hp", ObjectID: "v2"})

	coordinator := NewCloneCoordinator(entities)
	result, err := coordinator.CloneLocalEntities("v1", "v2", "")
	if err != nil {
		t.Fatalf("clone: %v", err)
	}
	if len(result.Variables) != 1 || result.Variables[0].Name != "hp1" {
		t.Fatalf("expected hp1 in the occupied partition, got %+v", result.Variables)
	}
}

func TestCloneTrimsMaxLengthNameForSuffix(t *testing.T) {
	entities := newTestEntityStore()
	mustAddVariable(t, entities, Variable{ID: "src", Name: "combobreak", ObjectID: "v1"})
	mustAddVariable(t, entities, Variable{ID: "taken", Name: "combobreak", ObjectID: "v2"})

	// A full-length name that needs a suffix in the target partition must
	// shed a rune instead of failing the length check.
	coordinator := NewCloneCoordinator(entities)
	result, err := coordinator.CloneLocalEntities("v1", "v2", "")
	if err != nil {
		t.Fatalf("clone: %v", err)
	}
	if len(result.Variables) != 1 {
		t.Fatalf("expected one clone, got %+v", result.Variables)
	}
	clone := result.Variables[0]
	if len([]rune(clone.Name)) > domain.MaxNameLength {
		t.Fatalf("clone name exceeds bound: %q", clone.Name)
	}
	if clone.Name != "combobrea" {
		t.Fatalf("expected trimmed base combobrea, got %q", clone.Name)
	}
}

func TestCloneRequiresObjectIDs(t *testing.T) {
	coordinator := NewCloneCoordinator(newTestEntityStore())
	var verr domain.ValidationError
	if _, err := coordinator.CloneLocalEntities("", "v2", ""); !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if _, err := coordinator.CloneLocalEntities("v1", "", ""); !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestCloneEmptySourceIsNoOp(t *testing.T) {
	entities := newTestEntityStore()
	coordinator := NewCloneCoordinator(entities)
	result, err := coordinator.CloneLocalEntities("v1", "v2", "script")
	if err != nil {
		t.Fatalf("clone: %v", err)
	}
	if result.Script != "script" || len(result.IDMap) != 0 {
		t.Fatalf("expected untouched result, got %+v", result)
	}
}
