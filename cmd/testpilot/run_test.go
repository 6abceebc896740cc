package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psbr27/testPilotOne/internal/types"
)

func writeSuite(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "suite.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFlows_FiltersBySheetAndTestName(t *testing.T) {
	path := writeSuite(t, `[
		{"sheet":"sheet1","test_name":"create-nf","row_idx":1,"method":"PUT","url":"/a"},
		{"sheet":"sheet2","test_name":"create-nf","row_idx":1,"method":"PUT","url":"/b"},
		{"sheet":"sheet1","test_name":"delete-nf","row_idx":1,"method":"DELETE","url":"/a"}
	]`)

	runInput = path
	runSheets = "sheet1"
	runTestName = "create-nf"
	defer func() { runSheets, runTestName = "", "" }()

	flows, err := loadFlows(&types.Config{})
	require.NoError(t, err)
	require.Len(t, flows, 1)
	assert.Equal(t, "sheet1", flows[0].Sheet)
	assert.Equal(t, "create-nf", flows[0].TestName)
}

func TestLoadFlows_NoFilterReturnsEverything(t *testing.T) {
	path := writeSuite(t, `[
		{"sheet":"sheet1","test_name":"a","row_idx":1,"method":"GET","url":"/a"},
		{"sheet":"sheet2","test_name":"b","row_idx":1,"method":"GET","url":"/b"}
	]`)

	runInput = path
	runSheets = ""
	runTestName = ""

	flows, err := loadFlows(&types.Config{})
	require.NoError(t, err)
	assert.Len(t, flows, 2)
}
