package main

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abiiranathan/gotpl-analyzer/analyzer/ast"
)

func TestResolveConfigLayers(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, defaultConfigFile), []byte(
		"renderFunction: HTML\nsetFunction: Put\nmaxDepth: 4\n"), 0o644))

	cmd := newRootCmd()
	require.NoError(t, cmd.Flags().Parse([]string{"--set-func", "Assign", "--context-type", "Ctx"}))

	config, err := resolveConfig(dir, "", cmd.Flags())
	require.NoError(t, err)

	assert.Equal(t, "HTML", config.RenderFunctionName, "from the config file")
	assert.Equal(t, "Assign", config.SetFunctionName, "flag beats the config file")
	assert.Equal(t, "Ctx", config.ContextTypeName)
	assert.Equal(t, 4, config.MaxDepth)
	assert.Equal(t, ast.DefaultConfig.GlobalTemplateName, config.GlobalTemplateName)
}

func TestResolveConfigWithoutFile(t *testing.T) {
	cmd := newRootCmd()
	require.NoError(t, cmd.Flags().Parse(nil))

	config, err := resolveConfig(t.TempDir(), "", cmd.Flags())
	require.NoError(t, err)
	assert.Equal(t, ast.DefaultConfig, config)
}

func TestResolveConfigRejectsBadDepth(t *testing.T) {
	cmd := newRootCmd()
	require.NoError(t, cmd.Flags().Parse([]string{"--max-depth", "0"}))

	_, err := resolveConfig(t.TempDir(), "", cmd.Flags())
	assert.ErrorContains(t, err, "--max-depth")
}

func TestResolveConfigMissingExplicitFile(t *testing.T) {
	cmd := newRootCmd()
	require.NoError(t, cmd.Flags().Parse(nil))

	_, err := resolveConfig(t.TempDir(), "/does/not/exist.yaml", cmd.Flags())
	assert.Error(t, err)
}

func TestFilterImportErrors(t *testing.T) {
	errs := []string{
		"type error: could not import github.com/x/y (no such package)",
		"type error: main.go:3:2: undefined: Foo",
		"type error: build constraints exclude all Go files in /tmp/x",
	}
	assert.Equal(t, []string{"type error: main.go:3:2: undefined: Foo"}, filterImportErrors(errs))
}

func TestEncodeJSONCompressed(t *testing.T) {
	result := ast.AnalysisResult{
		RenderCalls: []ast.RenderCall{{File: "main.go", Line: 3, Template: "index.html", Vars: []ast.TemplateVar{}}},
		FuncMaps:    []ast.FuncMapInfo{},
		Errors:      []string{},
	}

	var buf bytes.Buffer
	require.NoError(t, encodeJSON(&buf, result, true))

	gz, err := gzip.NewReader(&buf)
	require.NoError(t, err)
	var got ast.AnalysisResult
	require.NoError(t, json.NewDecoder(gz).Decode(&got))
	assert.Equal(t, result, got)
}
