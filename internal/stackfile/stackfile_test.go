package stackfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stackform-io/stackform/internal/ir"
)

func writeStack(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stack.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const validStack = `
stack: items-service
region: us-east-1
resources:
  - kind: TABLE
    name: items-table
    config:
      tableName: items
  - kind: ROLE
    name: exec-role
    config:
      inlinePolicies:
        table-access:
          Resource: ref://items-table/arn
  - kind: FUNCTION
    name: handler
    dependsOn: [exec-role]
    config:
      role: ref://exec-role/arn
`

func TestLoad_ValidStack(t *testing.T) {
	spec, err := Load(writeStack(t, validStack))
	require.NoError(t, err)

	assert.Equal(t, "items-service", spec.Stack)
	assert.Equal(t, "us-east-1", spec.Region)
	require.Len(t, spec.Resources, 3)

	table := spec.Resource("items-table")
	require.NotNil(t, table)
	assert.Equal(t, ir.KindTable, table.Kind)
	assert.Equal(t, "items", table.Config["tableName"])

	fn := spec.Resource("handler")
	require.NotNil(t, fn)
	assert.Equal(t, []string{"exec-role"}, fn.DependsOn)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_MalformedYAML(t *testing.T) {
	_, err := Load(writeStack(t, "stack: [unclosed"))
	assert.Error(t, err)
}

func TestValidate_UnsupportedKind(t *testing.T) {
	_, err := Load(writeStack(t, `
stack: s
resources:
  - kind: QUEUE
    name: q
`))
	var kindErr *UnsupportedKindError
	require.ErrorAs(t, err, &kindErr)
	assert.Equal(t, "q", kindErr.Name)
	assert.Equal(t, "QUEUE", kindErr.Kind)
}

func TestValidate_DuplicateNames(t *testing.T) {
	_, err := Load(writeStack(t, `
stack: s
resources:
  - kind: TABLE
    name: same
  - kind: ROLE
    name: same
`))
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Contains(t, err.Error(), "declared more than once")
}

func TestValidate_MissingRequiredFields(t *testing.T) {
	_, err := Load(writeStack(t, `
stack: s
resources:
  - kind: TABLE
`))
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
}

func TestValidate_UndeclaredDependsOn(t *testing.T) {
	_, err := Load(writeStack(t, `
stack: s
resources:
  - kind: FUNCTION
    name: fn
    dependsOn: [ghost]
`))
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Contains(t, err.Error(), `depends on undeclared resource "ghost"`)
}

func TestValidate_UndeclaredRefTarget(t *testing.T) {
	_, err := Load(writeStack(t, `
stack: s
resources:
  - kind: FUNCTION
    name: fn
    config:
      role: ref://ghost/arn
`))
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Contains(t, err.Error(), `references undeclared resource "ghost"`)
}

func TestValidate_CycleIsNotAValidationError(t *testing.T) {
	// Cycles are structural, detected by the plan builder rather than the
	// schema pass.
	spec, err := Load(writeStack(t, `
stack: s
resources:
  - kind: TABLE
    name: a
    dependsOn: [b]
  - kind: ROLE
    name: b
    dependsOn: [a]
`))
	require.NoError(t, err)
	assert.Len(t, spec.Resources, 2)
}
