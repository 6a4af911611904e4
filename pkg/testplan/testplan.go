// Package testplan parses MTS XML test-plan definitions and validates
// requested test-case selections against them.
package testplan

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/beevik/etree"
)

// ErrInvalidSelection is returned when a requested test-case subset
// contains names not declared in the plan.
var ErrInvalidSelection = errors.New("selection contains undeclared test cases")

// Definition is a parsed test-plan document.
type Definition struct {
	path string
	doc  *etree.Document
}

// Parse reads and parses the XML test-plan at path. Entity references
// declared in the document's internal DTD subset are resolved before
// parsing, including SYSTEM entities loading files relative to the
// plan's directory. A well-formed plan with no test cases parses
// successfully; a malformed document is an error.
func Parse(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading test plan %s: %w", path, err)
	}

	expanded, err := expandEntities(data, filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("resolving entities in %s: %w", path, err)
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(expanded); err != nil {
		return nil, fmt.Errorf("parsing test plan %s: %w", path, err)
	}

	return &Definition{path: path, doc: doc}, nil
}

// Path returns the filesystem path the definition was parsed from.
func (d *Definition) Path() string {
	return d.path
}

// CaseNames returns the name attribute of every testcase element found
// below a test element, at any nesting depth, in document order. An
// empty slice means the plan declares nothing to run.
func (d *Definition) CaseNames() []string {
	names := make([]string, 0)

	root := d.doc.Root()
	if root == nil {
		return names
	}

	collectCases(root, false, &names)

	return names
}

// collectCases walks the element tree appending testcase names once
// the walk has passed through a test element.
func collectCases(el *etree.Element, inTest bool, names *[]string) {
	if inTest && el.Tag == "testcase" {
		if attr := el.SelectAttr("name"); attr != nil {
			*names = append(*names, attr.Value)
		}
	}

	for _, child := range el.ChildElements() {
		collectCases(child, inTest || el.Tag == "test", names)
	}
}

// MissingCases returns the requested names that are absent from the
// declared universe, preserving request order.
func MissingCases(universe, requested []string) []string {
	declared := make(map[string]struct{}, len(universe))
	for _, name := range universe {
		declared[name] = struct{}{}
	}

	var missing []string

	for _, name := range requested {
		if _, ok := declared[name]; !ok {
			missing = append(missing, name)
		}
	}

	return missing
}

// ValidateSubset checks that every requested test case is declared in
// the universe. An empty request is always valid and means "run
// everything". The returned error wraps ErrInvalidSelection and names
// every offending case.
func ValidateSubset(universe, requested []string) error {
	missing := MissingCases(universe, requested)
	if len(missing) == 0 {
		return nil
	}

	return fmt.Errorf("%w: %v", ErrInvalidSelection, missing)
}
