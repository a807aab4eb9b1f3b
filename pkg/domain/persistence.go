package domain

import (
	"context"
	"encoding/json"
)

// FunctionRecord is the interchange form of a function: id plus an opaque
// serialized content string. EncodeFunctionContent/DecodeFunctionContent
// define the content encoding used by this implementation.
type FunctionRecord struct {
	ID      string `json:"id"`
	Content string `json:"content"`
}

type functionContent struct {
	Params []ParamNode `json:"params"`
	Blocks []Block     `json:"blocks"`
}

// EncodeFunctionContent serializes a function's declaration tree and body
// into the opaque content string.
func EncodeFunctionContent(f Function) (string, error) {
	raw, err := json.Marshal(functionContent{Params: f.Params, Blocks: f.Body})
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// DecodeFunctionContent parses an opaque content string produced by
// EncodeFunctionContent.
func DecodeFunctionContent(id, content string) (Function, error) {
	var fc functionContent
	if err := json.Unmarshal([]byte(content), &fc); err != nil {
		return Function{}, ValidationError{Op: "decode function", Reason: err.Error()}
	}
	return Function{ID: id, Params: fc.Params, Body: fc.Blocks}, nil
}

// ProjectDocument is the persistence-ready shape of the whole model:
// variables and lists share the Variable shape distinguished by kind, timer
// and answer are the two system singletons, functions carry opaque content.
type ProjectDocument struct {
	Variables []Variable       `json:"variables"`
	Lists     []Variable       `json:"lists"`
	Timer     *Variable        `json:"timer,omitempty"`
	Answer    *Variable        `json:"answer,omitempty"`
	Messages  []Message        `json:"messages"`
	Functions []FunctionRecord `json:"functions"`
}

// Clone deep-copies the document.
func (d ProjectDocument) Clone() ProjectDocument {
	out := ProjectDocument{
		Variables: make([]Variable, len(d.Variables)),
		Lists:     make([]Variable, len(d.Lists)),
		Messages:  append([]Message(nil), d.Messages...),
		Functions: append([]FunctionRecord(nil), d.Functions...),
	}
	for i, v := range d.Variables {
		out.Variables[i] = v.Clone()
	}
	for i, l := range d.Lists {
		out.Lists[i] = l.Clone()
	}
	if d.Timer != nil {
		t := d.Timer.Clone()
		out.Timer = &t
	}
	if d.Answer != nil {
		a := d.Answer.Clone()
		out.Answer = &a
	}
	return out
}

// ProjectStore is a minimal abstraction over durable backends for project
// documents. Implementations snapshot the full document on every save.
type ProjectStore interface {
	Save(ctx context.Context, doc ProjectDocument) error
	Load(ctx context.Context) (ProjectDocument, bool, error)
	Close() error
}
