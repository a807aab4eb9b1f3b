package core

import (
	"strings"

	"blockcore/pkg/domain"
)

// CloneResult carries everything produced by an object duplication: the
// script text with old entity ids rewritten, the created entities, and the
// old-to-new id mapping.
type CloneResult struct {
	Script    string
	Variables []Variable
	Lists     []Variable
	IDMap     map[string]string
}

// CloneCoordinator duplicates an object's local entities when the object
// itself is duplicated.
type CloneCoordinator struct {
	entities *EntityStore
}

// NewCloneCoordinator constructs a coordinator over the entity store.
func NewCloneCoordinator(entities *EntityStore) *CloneCoordinator {
	return &CloneCoordinator{entities: entities}
}

// CloneLocalEntities copies every variable and list owned by sourceObjectID
// to newObjectID: fresh id, canvas position cleared, name re-deduplicated
// within the new object's partition. One substitution pass then rewrites
// every occurrence of each old id in the script text. Ids are random hex so
// the tokens never overlap and substitution order does not matter. Clones
// are inserted through the normal add path so selection and change
// recording behave as for any add.
func (c *CloneCoordinator) CloneLocalEntities(sourceObjectID, newObjectID, script string) (CloneResult, error) {
	result := CloneResult{Script: script, IDMap: make(map[string]string)}
	if sourceObjectID == "" || newObjectID == "" {
		return result, domain.ValidationError{Op: "clone local entities", Reason: "source and target object ids required"}
	}

	variableClones := c.prepareClones(c.entities.localOwnedBy(c.entities.variables, sourceObjectID), c.entities.variables, newObjectID, result.IDMap)
	listClones := c.prepareClones(c.entities.localOwnedBy(c.entities.lists, sourceObjectID), c.entities.lists, newObjectID, result.IDMap)

	for oldID, newID := range result.IDMap {
		result.Script = strings.ReplaceAll(result.Script, oldID, newID)
	}

	for _, clone := range variableClones {
		added, err := c.entities.AddVariable(clone)
		if err != nil {
			return result, err
		}
		result.Variables = append(result.Variables, added)
	}
	for _, clone := range listClones {
		added, err := c.entities.AddList(clone)
		if err != nil {
			return result, err
		}
		result.Lists = append(result.Lists, added)
	}
	return result, nil
}

func (c *CloneCoordinator) prepareClones(sources, collection []Variable, newObjectID string, idMap map[string]string) []Variable {
	names := partitionNames(collection, newObjectID, "")
	var clones []Variable
	for _, src := range sources {
		clone := src.Clone()
		oldID := clone.ID
		clone.ID = newID()
		clone.ObjectID = newObjectID
		clone.X = 0
		clone.Y = 0
		clone.Name = boundedCloneName(clone.Name, names)
		names = append(names, clone.Name)
		idMap[oldID] = clone.ID
		clones = append(clones, clone)
	}
	return clones
}

// boundedCloneName resolves the name within the target partition. When the
// numeric suffix would push past the length bound the base is trimmed until
// the suffixed candidate fits, so a legitimate source name never fails the
// add-path length check.
func boundedCloneName(name string, names []string) string {
	candidate := domain.OrderedName(name, names)
	for len([]rune(candidate)) > domain.MaxNameLength && name != "" {
		runes := []rune(name)
		name = string(runes[:len(runes)-1])
		candidate = domain.OrderedName(name, names)
	}
	return candidate
}
