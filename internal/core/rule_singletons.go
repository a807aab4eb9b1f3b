package core

import (
	"context"
	"fmt"

	"blockcore/pkg/domain"
)

// NewSingletonRule keeps the timer and answer singletons out of the regular
// variable sequence: at most one of each exists, held separately.
func NewSingletonRule() domain.Rule {
	return singletonRule{}
}

type singletonRule struct{}

func (singletonRule) Name() string { return "system_singletons" }

func (singletonRule) Evaluate(_ context.Context, view domain.RuleView, _ []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, v := range view.ListVariables() {
		if v.Kind == KindTimer || v.Kind == KindAnswer {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "system_singletons",
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("system variable of kind %s stored in the variable sequence (%s)", v.Kind, v.ID),
				Entity:   EntityVariable,
				EntityID: v.ID,
			})
		}
	}
	if _, ok := view.Timer(); !ok {
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     "system_singletons",
			Severity: domain.SeverityWarn,
			Message:  "timer singleton missing",
		})
	}
	if _, ok := view.Answer(); !ok {
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     "system_singletons",
			Severity: domain.SeverityWarn,
			Message:  "answer singleton missing",
		})
	}
	return res, nil
}
