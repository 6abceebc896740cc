package suite

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psbr27/testPilotOne/internal/types"
)

func writeTempSuite(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "suite.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestJSONLoader_GroupsRowsIntoFlows(t *testing.T) {
	content := `[
		{"sheet":"sheet1","test_name":"create-nf","row_idx":2,"method":"PUT","url":"/nf-instances/abc","expected_status":"201"},
		{"sheet":"sheet1","test_name":"create-nf","row_idx":1,"method":"POST","url":"/subscriptions","expected_status":"201"},
		{"sheet":"sheet1","test_name":"delete-nf","row_idx":3,"method":"DELETE","url":"/nf-instances/abc","expected_status":"204"}
	]`
	path := writeTempSuite(t, content)

	flows, err := JSONLoader{Path: path}.Load()
	require.NoError(t, err)
	require.Len(t, flows, 2)

	assert.Equal(t, "create-nf", flows[0].TestName)
	require.Len(t, flows[0].Steps, 2)
	// row_idx 1 sorts before row_idx 2 even though it appeared second in the file.
	assert.Equal(t, 1, flows[0].Steps[0].RowIdx)
	assert.Equal(t, types.MethodPost, flows[0].Steps[0].Method)
	assert.Equal(t, 2, flows[0].Steps[1].RowIdx)

	assert.Equal(t, "delete-nf", flows[1].TestName)
	assert.Equal(t, types.MethodDelete, flows[1].Steps[0].Method)
}

func TestJSONLoader_CommandOverrideSkipsMethodValidation(t *testing.T) {
	content := `[{"sheet":"sheet1","test_name":"raw-step","row_idx":1,"command":"curl -X PUT https://host/nf-instances/abc"}]`
	path := writeTempSuite(t, content)

	flows, err := JSONLoader{Path: path}.Load()
	require.NoError(t, err)
	require.Len(t, flows, 1)
	assert.Equal(t, "curl -X PUT https://host/nf-instances/abc", flows[0].Steps[0].RawCommand)
	assert.Equal(t, types.Method(""), flows[0].Steps[0].Method)
}

func TestJSONLoader_MissingTestNameIsInputError(t *testing.T) {
	content := `[{"sheet":"sheet1","row_idx":1,"method":"GET","url":"/x"}]`
	path := writeTempSuite(t, content)

	_, err := JSONLoader{Path: path}.Load()
	require.Error(t, err)
	var inputErr *types.InputError
	assert.ErrorAs(t, err, &inputErr)
}

func TestJSONLoader_UnknownMethodIsInputError(t *testing.T) {
	content := `[{"sheet":"sheet1","test_name":"x","row_idx":1,"method":"FETCH","url":"/x"}]`
	path := writeTempSuite(t, content)

	_, err := JSONLoader{Path: path}.Load()
	require.Error(t, err)
	var inputErr *types.InputError
	assert.ErrorAs(t, err, &inputErr)
}
