package domain

import "context"

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// SeverityBlock rejects the mutation.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning but allows the mutation.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Violation is one finding produced by a rule.
type Violation struct {
	Rule     string     `json:"rule"`
	Severity Severity   `json:"severity"`
	Message  string     `json:"message"`
	Entity   EntityType `json:"entity,omitempty"`
	EntityID string     `json:"entity_id,omitempty"`
}

// Result aggregates violations across rules.
type Result struct {
	Violations []Violation `json:"violations,omitempty"`
}

// Merge appends the violations of other.
func (r *Result) Merge(other Result) {
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking reports whether any violation carries SeverityBlock.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// BlockingViolations returns only the blocking findings.
func (r Result) BlockingViolations() []Violation {
	var out []Violation
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			out = append(out, v)
		}
	}
	return out
}

// RuleView provides read-only access to workspace entities for rule
// evaluation.
type RuleView interface {
	ListVariables() []Variable
	ListLists() []Variable
	ListMessages() []Message
	ListFunctions() []Function
	Timer() (Variable, bool)
	Answer() (Variable, bool)
}

// Rule defines an invariant check executed after a mutation set.
type Rule interface {
	Name() string
	Evaluate(ctx context.Context, view RuleView, changes []Change) (Result, error)
}

// RulesEngine orchestrates rule evaluation.
type RulesEngine struct {
	rules []Rule
}

// NewRulesEngine constructs an engine instance.
func NewRulesEngine() *RulesEngine {
	return &RulesEngine{}
}

// Register appends a rule to the engine.
func (e *RulesEngine) Register(rule Rule) {
	e.rules = append(e.rules, rule)
}

// Evaluate executes all registered rules and aggregates their results.
func (e *RulesEngine) Evaluate(ctx context.Context, view RuleView, changes []Change) (Result, error) {
	var combined Result
	for _, rule := range e.rules {
		res, err := rule.Evaluate(ctx, view, changes)
		if err != nil {
			return Result{}, err
		}
		combined.Merge(res)
	}
	return combined, nil
}
