package testplan

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// entityDeclPattern matches general entity declarations in a DOCTYPE
// internal subset: <!ENTITY name "value"> or <!ENTITY name SYSTEM "uri">.
// Parameter entities (<!ENTITY % ...>) are not matched and not supported.
var entityDeclPattern = regexp.MustCompile(
	`<!ENTITY\s+([A-Za-z_][\w.-]*)\s+(SYSTEM\s+)?(?:"([^"]*)"|'([^']*)')\s*>`,
)

// expandEntities resolves the entity declarations of the document's
// DOCTYPE internal subset and substitutes every reference in the body.
// SYSTEM entities are loaded relative to baseDir. The returned bytes
// have the DOCTYPE removed and all declared references replaced.
func expandEntities(data []byte, baseDir string) ([]byte, error) {
	subset, body := splitDoctype(data)
	if subset == nil {
		return body, nil
	}

	entities, err := declaredEntities(subset, baseDir)
	if err != nil {
		return nil, err
	}

	if len(entities) == 0 {
		return body, nil
	}

	if err := resolveNested(entities); err != nil {
		return nil, err
	}

	out := string(body)
	for name, value := range entities {
		out = strings.ReplaceAll(out, "&"+name+";", value)
	}

	return []byte(out), nil
}

// splitDoctype returns the DOCTYPE internal subset (nil when absent)
// and the document bytes with the whole DOCTYPE directive removed.
func splitDoctype(data []byte) (subset, body []byte) {
	start := bytes.Index(data, []byte("<!DOCTYPE"))
	if start < 0 {
		return nil, data
	}

	var (
		quote       byte
		depth       int
		subsetStart = -1
		subsetEnd   = -1
	)

	for i := start; i < len(data); i++ {
		c := data[i]

		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '[':
			if depth == 0 {
				subsetStart = i + 1
			}

			depth++
		case c == ']':
			depth--
			if depth == 0 {
				subsetEnd = i
			}
		case c == '>' && depth == 0:
			if subsetStart >= 0 && subsetEnd >= subsetStart {
				subset = data[subsetStart:subsetEnd]
			}

			body = append(append([]byte{}, data[:start]...), data[i+1:]...)

			return subset, body
		}
	}

	// Unterminated DOCTYPE; hand the original bytes to the XML parser
	// so it reports the syntax error.
	return nil, data
}

// declaredEntities parses entity declarations from an internal subset.
// SYSTEM entity files are read relative to baseDir.
func declaredEntities(subset []byte, baseDir string) (map[string]string, error) {
	entities := make(map[string]string)

	for _, m := range entityDeclPattern.FindAllSubmatch(subset, -1) {
		name := string(m[1])
		system := len(m[2]) > 0

		value := string(m[3])
		if len(m[3]) == 0 {
			value = string(m[4])
		}

		if system {
			path := value
			if !filepath.IsAbs(path) {
				path = filepath.Join(baseDir, path)
			}

			content, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("loading entity %q from %s: %w", name, path, err)
			}

			value = string(content)
		}

		entities[name] = value
	}

	return entities, nil
}

// resolveNested expands entity references that appear inside other
// entity values until no references remain. Cyclic declarations fail.
func resolveNested(entities map[string]string) error {
	for name := range entities {
		value, err := resolveValue(entities, name, map[string]bool{})
		if err != nil {
			return err
		}

		entities[name] = value
	}

	return nil
}

// resolveValue expands every declared reference inside the named
// entity's value, tracking the resolution path to detect cycles.
func resolveValue(entities map[string]string, name string, path map[string]bool) (string, error) {
	if path[name] {
		return "", fmt.Errorf("entity %q is cyclic", name)
	}

	path[name] = true
	defer delete(path, name)

	value := entities[name]

	for ref := range entities {
		marker := "&" + ref + ";"
		if !strings.Contains(value, marker) {
			continue
		}

		repl, err := resolveValue(entities, ref, path)
		if err != nil {
			return "", err
		}

		value = strings.ReplaceAll(value, marker, repl)
	}

	return value, nil
}
