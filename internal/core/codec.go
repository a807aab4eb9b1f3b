package core

import (
	"fmt"

	"blockcore/pkg/domain"
)

// ToDocument reads the stores into the persistence-ready document shape:
// variables and lists share one record layout distinguished by kind, timer
// and answer ride separately, functions carry opaque serialized content.
// Selection and other transient state is not part of the document.
func ToDocument(entities *EntityStore, functions *FunctionStore) (ProjectDocument, error) {
	doc := ProjectDocument{
		Variables: entities.Variables(),
		Lists:     entities.Lists(),
		Messages:  entities.Messages(),
	}
	if timer, ok := entities.Timer(); ok {
		doc.Timer = &timer
	}
	if answer, ok := entities.Answer(); ok {
		doc.Answer = &answer
	}
	for _, fn := range functions.Functions() {
		content, err := domain.EncodeFunctionContent(fn)
		if err != nil {
			return ProjectDocument{}, fmt.Errorf("encode function %s: %w", fn.ID, err)
		}
		doc.Functions = append(doc.Functions, FunctionRecord{ID: fn.ID, Content: content})
	}
	return doc, nil
}

// FromDocument populates the stores from a document. It feeds the bulk-set
// and add paths so the singleton and signature-dedup side effects run the
// same way as for interactive edits.
func FromDocument(doc ProjectDocument, entities *EntityStore, functions *FunctionStore) error {
	variables := append([]Variable(nil), doc.Variables...)
	if doc.Timer != nil {
		variables = append(variables, *doc.Timer)
	}
	if doc.Answer != nil {
		variables = append(variables, *doc.Answer)
	}
	entities.SetAllVariables(variables)
	entities.SetAllLists(doc.Lists)
	entities.SetAllMessages(doc.Messages)

	functions.Clear()
	for _, record := range doc.Functions {
		fn, err := domain.DecodeFunctionContent(record.ID, record.Content)
		if err != nil {
			return fmt.Errorf("decode function %s: %w", record.ID, err)
		}
		if _, err := functions.Add(fn); err != nil {
			return fmt.Errorf("restore function %s: %w", record.ID, err)
		}
	}
	return nil
}
