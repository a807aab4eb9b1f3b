package core

import (
	"context"
	"encoding/json"
	"fmt"

	"blockcore/pkg/domain"
)

// NewSlideRangeRule checks slide variables for ordered bounds and an
// in-range value. Findings are warnings: a slide outside its range renders
// clamped, it does not corrupt state.
func NewSlideRangeRule() domain.Rule {
	return slideRangeRule{}
}

type slideRangeRule struct{}

func (slideRangeRule) Name() string { return "slide_range" }

func (slideRangeRule) Evaluate(_ context.Context, view domain.RuleView, _ []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, v := range view.ListVariables() {
		if v.Kind != KindSlide {
			continue
		}
		if v.MinValue > v.MaxValue {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "slide_range",
				Severity: domain.SeverityWarn,
				Message:  fmt.Sprintf("slide %s has min %v above max %v", v.ID, v.MinValue, v.MaxValue),
				Entity:   EntityVariable,
				EntityID: v.ID,
			})
			continue
		}
		if value, ok := numericValue(v.Value); ok && (value < v.MinValue || value > v.MaxValue) {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "slide_range",
				Severity: domain.SeverityWarn,
				Message:  fmt.Sprintf("slide %s value %v outside [%v, %v]", v.ID, value, v.MinValue, v.MaxValue),
				Entity:   EntityVariable,
				EntityID: v.ID,
			})
		}
	}
	return res, nil
}

func numericValue(value any) (float64, bool) {
	switch n := value.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
