package core

import (
	"context"
	"fmt"

	"blockcore/pkg/domain"
)

// NewNamePartitionRule enforces pairwise-distinct names within every scope
// partition: the global set of a kind, or one object's local set.
func NewNamePartitionRule() domain.Rule {
	return namePartitionRule{}
}

type namePartitionRule struct{}

func (namePartitionRule) Name() string { return "name_partition" }

func (namePartitionRule) Evaluate(_ context.Context, view domain.RuleView, _ []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	res.Merge(checkPartition(EntityVariable, view.ListVariables()))
	res.Merge(checkPartition(EntityList, view.ListLists()))

	seen := make(map[string]string)
	for _, m := range view.ListMessages() {
		if otherID, dup := seen[m.Name]; dup {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "name_partition",
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("message name %q used by %s and %s", m.Name, otherID, m.ID),
				Entity:   EntityMessage,
				EntityID: m.ID,
			})
			continue
		}
		seen[m.Name] = m.ID
	}
	return res, nil
}

func checkPartition(entity EntityType, items []Variable) domain.Result {
	type key struct {
		owner string
		name  string
	}
	res := domain.Result{}
	seen := make(map[key]string)
	for _, v := range items {
		k := key{owner: v.ObjectID, name: v.Name}
		if otherID, dup := seen[k]; dup {
			scope := "global scope"
			if v.ObjectID != "" {
				scope = fmt.Sprintf("object %s", v.ObjectID)
			}
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "name_partition",
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("%s name %q used by %s and %s in %s", entity, v.Name, otherID, v.ID, scope),
				Entity:   entity,
				EntityID: v.ID,
			})
			continue
		}
		seen[k] = v.ID
	}
	return res
}
