package testplan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitDoctype(t *testing.T) {
	doc := []byte(`<?xml version="1.0"?>
<!DOCTYPE scenario SYSTEM "conf/scenario.dtd" [
<!ENTITY a "one">
]>
<scenario/>`)

	subset, body := splitDoctype(doc)

	assert.Contains(t, string(subset), `<!ENTITY a "one">`)
	assert.NotContains(t, string(body), "DOCTYPE")
	assert.Contains(t, string(body), "<scenario/>")
}

func TestSplitDoctype_NoDoctype(t *testing.T) {
	doc := []byte(`<scenario/>`)

	subset, body := splitDoctype(doc)

	assert.Nil(t, subset)
	assert.Equal(t, doc, body)
}

func TestSplitDoctype_BracketInQuotes(t *testing.T) {
	doc := []byte(`<!DOCTYPE scenario [
<!ENTITY weird "a ] b">
]>
<scenario/>`)

	subset, body := splitDoctype(doc)

	assert.Contains(t, string(subset), `a ] b`)
	assert.Equal(t, "\n<scenario/>", string(body))
}

func TestDeclaredEntities_ParameterEntitiesSkipped(t *testing.T) {
	subset := []byte(`<!ENTITY % param "ignored">
<!ENTITY kept "value">`)

	entities, err := declaredEntities(subset, t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"kept": "value"}, entities)
}

func TestResolveNested_CycleFails(t *testing.T) {
	entities := map[string]string{
		"a": "&b;",
		"b": "&a;",
	}

	err := resolveNested(entities)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cyclic")
}
