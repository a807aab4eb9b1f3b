// Command blockcore-inspect loads a project document from a file or from the
// configured store and prints a summary of its contents.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"blockcore/internal/config"
	"blockcore/internal/core"
	"blockcore/pkg/domain"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("blockcore-inspect", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to a YAML config file (optional)")
	docPath := fs.String("file", "", "read the project document from a JSON file instead of the configured store")
	blocksPath := fs.String("blocks", "", "JSON file mapping object ids to block lists; enables reference counts")
	asJSON := fs.Bool("json", false, "emit the summary as JSON")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	ctx := context.Background()
	doc, ok, err := loadDocument(ctx, *configPath, *docPath)
	if err != nil {
		fmt.Fprintf(stderr, "blockcore-inspect: %v\n", err)
		return 1
	}
	if !ok {
		fmt.Fprintln(stderr, "blockcore-inspect: no project document found")
		return 1
	}

	svc := core.NewService(core.NewDefaultRulesEngine())
	if err := svc.LoadDocument(ctx, doc); err != nil {
		fmt.Fprintf(stderr, "blockcore-inspect: load document: %v\n", err)
		return 1
	}

	sum := summarize(svc)
	if *blocksPath != "" {
		objects, err := loadBlocks(*blocksPath)
		if err != nil {
			fmt.Fprintf(stderr, "blockcore-inspect: %v\n", err)
			return 1
		}
		svc.RebuildReferences(objects)
		vr, mr, fr := svc.ReferenceCounts()
		sum.References = &referenceSummary{Variables: vr, Messages: mr, Functions: fr}
	}

	if *asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(sum); err != nil {
			fmt.Fprintf(stderr, "blockcore-inspect: %v\n", err)
			return 1
		}
		return 0
	}
	sum.print(stdout)
	return 0
}

type summary struct {
	Variables      int               `json:"variables"`
	GlobalVars     int               `json:"globalVariables"`
	CloudVars      int               `json:"cloudVariables"`
	Lists          int               `json:"lists"`
	Messages       int               `json:"messages"`
	Functions      int               `json:"functions"`
	HasTimer       bool              `json:"hasTimer"`
	HasAnswer      bool              `json:"hasAnswer"`
	FunctionNames  []string          `json:"functionNames,omitempty"`
	References     *referenceSummary `json:"references,omitempty"`
}

type referenceSummary struct {
	Variables int `json:"variables"`
	Messages  int `json:"messages"`
	Functions int `json:"functions"`
}

func summarize(svc *core.Service) summary {
	vars := svc.Variables()
	sum := summary{
		Variables: len(vars),
		Lists:     len(svc.Lists()),
		Messages:  len(svc.Messages()),
	}
	for _, v := range vars {
		if v.IsGlobal() {
			sum.GlobalVars++
		}
		if v.Cloud {
			sum.CloudVars++
		}
	}
	_, sum.HasTimer = svc.Timer()
	_, sum.HasAnswer = svc.Answer()
	for _, fn := range svc.Functions() {
		sum.Functions++
		if sig, ok := svc.FunctionSignature(fn.ID); ok {
			sum.FunctionNames = append(sum.FunctionNames, sig)
		}
	}
	return sum
}

func (s summary) print(w io.Writer) {
	fmt.Fprintf(w, "variables: %d (%d global, %d cloud)\n", s.Variables, s.GlobalVars, s.CloudVars)
	fmt.Fprintf(w, "lists:     %d\n", s.Lists)
	fmt.Fprintf(w, "messages:  %d\n", s.Messages)
	fmt.Fprintf(w, "functions: %d\n", s.Functions)
	for _, name := range s.FunctionNames {
		fmt.Fprintf(w, "  - %s\n", name)
	}
	fmt.Fprintf(w, "timer:     %v\n", s.HasTimer)
	fmt.Fprintf(w, "answer:    %v\n", s.HasAnswer)
	if s.References != nil {
		fmt.Fprintf(w, "references: %d variable, %d message, %d function\n",
			s.References.Variables, s.References.Messages, s.References.Functions)
	}
}

func loadDocument(ctx context.Context, configPath, docPath string) (domain.ProjectDocument, bool, error) {
	if docPath != "" {
		data, err := os.ReadFile(docPath)
		if err != nil {
			return domain.ProjectDocument{}, false, err
		}
		var doc domain.ProjectDocument
		if err := json.Unmarshal(data, &doc); err != nil {
			return domain.ProjectDocument{}, false, fmt.Errorf("parse %s: %w", docPath, err)
		}
		return doc, true, nil
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return domain.ProjectDocument{}, false, err
	}
	store, err := cfg.OpenProjectStore(ctx)
	if err != nil {
		return domain.ProjectDocument{}, false, err
	}
	defer store.Close()
	return store.Load(ctx)
}

func loadBlocks(path string) (map[string][]domain.Block, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	objects := make(map[string][]domain.Block)
	if err := json.Unmarshal(data, &objects); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return objects, nil
}
