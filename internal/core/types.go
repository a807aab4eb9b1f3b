package core

import "blockcore/pkg/domain"

type (
	EntityType         = domain.EntityType
	VariableKind       = domain.VariableKind
	Severity           = domain.Severity
	Variable           = domain.Variable
	ListEntry          = domain.ListEntry
	Message            = domain.Message
	Function           = domain.Function
	FunctionRecord     = domain.FunctionRecord
	ParamNode          = domain.ParamNode
	ParamInfo          = domain.ParamInfo
	Block              = domain.Block
	Change             = domain.Change
	Action             = domain.Action
	Violation          = domain.Violation
	Result             = domain.Result
	Rule               = domain.Rule
	RuleView           = domain.RuleView
	RulesEngine        = domain.RulesEngine
	ProjectDocument    = domain.ProjectDocument
	ProjectStore       = domain.ProjectStore
	RuleViolationError = domain.RuleViolationError
)

const (
	EntityVariable = domain.EntityVariable
	EntityList     = domain.EntityList
	EntityMessage  = domain.EntityMessage
	EntityFunction = domain.EntityFunction
)

const (
	KindVariable = domain.KindVariable
	KindList     = domain.KindList
	KindSlide    = domain.KindSlide
	KindTimer    = domain.KindTimer
	KindAnswer   = domain.KindAnswer
)

const (
	SeverityBlock = domain.SeverityBlock
	SeverityWarn  = domain.SeverityWarn
	SeverityLog   = domain.SeverityLog
)

const (
	ActionCreate = domain.ActionCreate
	ActionUpdate = domain.ActionUpdate
	ActionDelete = domain.ActionDelete
)

// Mode is the editor view mode. Reference tracking is active only on the
// board; text mode edits the program as source.
type Mode string

// Editor view modes.
const (
	ModeBoard Mode = "board"
	ModeText  Mode = "text"
)

// EditContext carries the editing situation into every operation: which
// program object is active and which view mode the editor is in. Passed
// explicitly rather than read from ambient globals.
type EditContext struct {
	ObjectID string
	Mode     Mode
}

// Board reports whether reference tracking applies in this context.
func (c EditContext) Board() bool { return c.Mode == ModeBoard }
