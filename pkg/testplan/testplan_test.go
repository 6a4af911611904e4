package testplan

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePlan(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	return path
}

func TestParse_CaseNamesInDocumentOrder(t *testing.T) {
	plan := `<?xml version="1.0" encoding="UTF-8"?>
<scenario>
  <test name="registration">
    <testcase name="REG_01"/>
    <group>
      <testcase name="REG_02"/>
      <subgroup>
        <testcase name="REG_03"/>
      </subgroup>
    </group>
    <testcase name="REG_04"/>
  </test>
  <test name="calls">
    <testcase name="CALL_01"/>
  </test>
</scenario>`

	def, err := Parse(writePlan(t, t.TempDir(), "plan.xml", plan))
	require.NoError(t, err)

	assert.Equal(t,
		[]string{"REG_01", "REG_02", "REG_03", "REG_04", "CALL_01"},
		def.CaseNames())
}

func TestParse_CasesOutsideTestIgnored(t *testing.T) {
	plan := `<scenario>
  <testcase name="ORPHAN"/>
  <test name="t">
    <testcase name="INSIDE"/>
  </test>
</scenario>`

	def, err := Parse(writePlan(t, t.TempDir(), "plan.xml", plan))
	require.NoError(t, err)

	assert.Equal(t, []string{"INSIDE"}, def.CaseNames())
}

func TestParse_NoCasesIsNotAnError(t *testing.T) {
	def, err := Parse(writePlan(t, t.TempDir(), "plan.xml", `<scenario><test name="empty"/></scenario>`))
	require.NoError(t, err)
	assert.Empty(t, def.CaseNames())
}

func TestParse_MalformedDocument(t *testing.T) {
	_, err := Parse(writePlan(t, t.TempDir(), "plan.xml", `<scenario><test name="broken">`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing test plan")
}

func TestParse_MissingFile(t *testing.T) {
	_, err := Parse(filepath.Join(t.TempDir(), "absent.xml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading test plan")
}

func TestParse_InlineEntities(t *testing.T) {
	plan := `<?xml version="1.0"?>
<!DOCTYPE scenario [
<!ENTITY case_prefix "SIP">
]>
<scenario>
  <test name="t">
    <testcase name="&case_prefix;_INVITE"/>
  </test>
</scenario>`

	def, err := Parse(writePlan(t, t.TempDir(), "plan.xml", plan))
	require.NoError(t, err)

	assert.Equal(t, []string{"SIP_INVITE"}, def.CaseNames())
}

func TestParse_SystemEntityComposesSubFile(t *testing.T) {
	dir := t.TempDir()

	writePlan(t, dir, "registration.xml", `<testcase name="REG_01"/>
<testcase name="REG_02"/>`)

	plan := `<?xml version="1.0"?>
<!DOCTYPE scenario [
<!ENTITY registration SYSTEM "registration.xml">
]>
<scenario>
  <test name="registration">
    &registration;
  </test>
</scenario>`

	def, err := Parse(writePlan(t, dir, "plan.xml", plan))
	require.NoError(t, err)

	assert.Equal(t, []string{"REG_01", "REG_02"}, def.CaseNames())
}

func TestParse_NestedEntities(t *testing.T) {
	plan := `<?xml version="1.0"?>
<!DOCTYPE scenario [
<!ENTITY base "CALL">
<!ENTITY full "&base;_SETUP">
]>
<scenario>
  <test name="t">
    <testcase name="&full;"/>
  </test>
</scenario>`

	def, err := Parse(writePlan(t, t.TempDir(), "plan.xml", plan))
	require.NoError(t, err)

	assert.Equal(t, []string{"CALL_SETUP"}, def.CaseNames())
}

func TestParse_MissingSystemEntityFile(t *testing.T) {
	plan := `<!DOCTYPE scenario [
<!ENTITY missing SYSTEM "nope.xml">
]>
<scenario><test name="t">&missing;</test></scenario>`

	_, err := Parse(writePlan(t, t.TempDir(), "plan.xml", plan))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "resolving entities")
}

func TestValidateSubset(t *testing.T) {
	universe := []string{"REG_01", "REG_02", "CALL_01"}

	tests := []struct {
		name      string
		requested []string
		wantErr   bool
	}{
		{name: "empty request is valid", requested: nil},
		{name: "full universe", requested: []string{"REG_01", "REG_02", "CALL_01"}},
		{name: "strict subset", requested: []string{"CALL_01"}},
		{name: "unknown name", requested: []string{"REG_01", "BOGUS"}, wantErr: true},
		{name: "all unknown", requested: []string{"X", "Y"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSubset(universe, tt.requested)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidSelection)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestMissingCases_PreservesRequestOrder(t *testing.T) {
	missing := MissingCases(
		[]string{"A", "B"},
		[]string{"Z", "A", "Y", "B", "X"},
	)

	assert.Equal(t, []string{"Z", "Y", "X"}, missing)
}
