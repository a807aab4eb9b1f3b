package domain

import "fmt"

// DuplicateNameError reports a name collision within one scope partition
// (all global entities of a kind, or one object's local entities of a kind).
type DuplicateNameError struct {
	Entity   EntityType
	Name     string
	ObjectID string
}

func (e DuplicateNameError) Error() string {
	if e.ObjectID == "" {
		return fmt.Sprintf("%s name %q already used globally", e.Entity, e.Name)
	}
	return fmt.Sprintf("%s name %q already used in object %s", e.Entity, e.Name, e.ObjectID)
}

// NameTooLongError reports a name exceeding MaxNameLength. Recoverable:
// callers may truncate via TruncateName and retry.
type NameTooLongError struct {
	Name string
	Max  int
}

func (e NameTooLongError) Error() string {
	return fmt.Sprintf("name %q exceeds %d characters", e.Name, e.Max)
}

// ValidationError reports a malformed index, length, value, or shape.
type ValidationError struct {
	Op     string
	Reason string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

// RuleViolationError is returned when a blocking rule result prevents a
// mutation from committing.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	violations := e.Result.BlockingViolations()
	if len(violations) == 0 {
		return "rule violation"
	}
	return fmt.Sprintf("rule violation: %s: %s", violations[0].Rule, violations[0].Message)
}
