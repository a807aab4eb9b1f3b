package core

import "blockcore/pkg/domain"

// NewDefaultRulesEngine builds a rules engine with the built-in policy set.
func NewDefaultRulesEngine() *RulesEngine {
	engine := domain.NewRulesEngine()
	engine.Register(NewNamePartitionRule())
	engine.Register(NewSingletonRule())
	engine.Register(NewSlideRangeRule())
	return engine
}
